package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Dashboard DashboardConfig
	Evidence  EvidenceConfig
	Events    EventsConfig
	Exports   ExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// DashboardConfig tunes the read-side listing and stats endpoints. The
// timezone offset pins the "today" window to campus local time so the query
// does not drift with the host's timezone.
type DashboardConfig struct {
	TimezoneOffsetHours int
	StatsCacheTTL       time.Duration
	LatestEvidenceTTL   time.Duration
}

// EvidenceConfig controls photo evidence storage and access.
type EvidenceConfig struct {
	Backend          string
	StorageDir       string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
	CleanupInterval  time.Duration
	CleanupTTL       time.Duration

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
}

// EventsConfig tunes the live notification fan-out.
type EventsConfig struct {
	SubscriberBuffer int
	RedisChannel     string
	PublishWorkers   int
}

// ExportsConfig governs CSV/PDF listing exports.
type ExportsConfig struct {
	MaxRows int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Dashboard = DashboardConfig{
		TimezoneOffsetHours: v.GetInt("DASHBOARD_TIMEZONE_OFFSET"),
		StatsCacheTTL:       parseDuration(v.GetString("DASHBOARD_STATS_CACHE_TTL"), time.Minute),
		LatestEvidenceTTL:   parseDuration(v.GetString("DASHBOARD_LATEST_EVIDENCE_TTL"), 10*time.Minute),
	}

	maxEvidenceSize := v.GetInt64("EVIDENCE_MAX_FILE_SIZE")
	if maxEvidenceSize <= 0 {
		maxEvidenceSize = 5 * 1024 * 1024
	}
	cfg.Evidence = EvidenceConfig{
		Backend:          v.GetString("EVIDENCE_BACKEND"),
		StorageDir:       v.GetString("EVIDENCE_STORAGE_DIR"),
		SignedURLSecret:  v.GetString("EVIDENCE_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("EVIDENCE_SIGNED_URL_TTL"), 30*time.Minute),
		MaxFileSizeBytes: maxEvidenceSize,
		CleanupInterval:  parseDuration(v.GetString("EVIDENCE_CLEANUP_INTERVAL"), time.Hour),
		CleanupTTL:       parseDuration(v.GetString("EVIDENCE_CLEANUP_TTL"), 90*24*time.Hour),
		S3Bucket:         v.GetString("EVIDENCE_S3_BUCKET"),
		S3Region:         v.GetString("EVIDENCE_S3_REGION"),
		S3Endpoint:       v.GetString("EVIDENCE_S3_ENDPOINT"),
		S3PathStyle:      v.GetBool("EVIDENCE_S3_PATH_STYLE"),
	}

	cfg.Events = EventsConfig{
		SubscriberBuffer: v.GetInt("EVENTS_SUBSCRIBER_BUFFER"),
		RedisChannel:     v.GetString("EVENTS_REDIS_CHANNEL"),
		PublishWorkers:   v.GetInt("EVENTS_PUBLISH_WORKERS"),
	}

	cfg.Exports = ExportsConfig{
		MaxRows: v.GetInt("EXPORTS_MAX_ROWS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "dresscode")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	// Campus deployment runs on Philippine time regardless of host zone.
	v.SetDefault("DASHBOARD_TIMEZONE_OFFSET", 8)
	v.SetDefault("DASHBOARD_STATS_CACHE_TTL", "1m")
	v.SetDefault("DASHBOARD_LATEST_EVIDENCE_TTL", "10m")

	v.SetDefault("EVIDENCE_BACKEND", "local")
	v.SetDefault("EVIDENCE_STORAGE_DIR", "./uploads")
	v.SetDefault("EVIDENCE_SIGNED_URL_SECRET", "dev_evidence_secret")
	v.SetDefault("EVIDENCE_SIGNED_URL_TTL", "30m")
	v.SetDefault("EVIDENCE_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("EVIDENCE_CLEANUP_INTERVAL", "1h")
	v.SetDefault("EVIDENCE_CLEANUP_TTL", "2160h")
	v.SetDefault("EVIDENCE_S3_BUCKET", "")
	v.SetDefault("EVIDENCE_S3_REGION", "")
	v.SetDefault("EVIDENCE_S3_ENDPOINT", "")
	v.SetDefault("EVIDENCE_S3_PATH_STYLE", false)

	v.SetDefault("EVENTS_SUBSCRIBER_BUFFER", 16)
	v.SetDefault("EVENTS_REDIS_CHANNEL", "dresscode:events")
	v.SetDefault("EVENTS_PUBLISH_WORKERS", 1)

	v.SetDefault("EXPORTS_MAX_ROWS", 5000)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
