package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/osa-scan/dresscode-api/internal/models"
	"github.com/osa-scan/dresscode-api/pkg/config"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*models.User
	tokens map[string]*models.RefreshToken
	audits []models.AuditLog
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:  make(map[string]*models.User),
		tokens: make(map[string]*models.RefreshToken),
	}
}

func (f *fakeUserRepo) FindByUsername(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (f *fakeUserRepo) UpdateLastLogin(_ context.Context, id string, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.LastLogin = &ts
	}
	return nil
}

func (f *fakeUserRepo) UpdatePassword(_ context.Context, id, hash string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.PasswordHash = hash
	}
	return nil
}

func (f *fakeUserRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if token.ID == "" {
		token.ID = token.Token
	}
	clone := *token
	f.tokens[token.Token] = &clone
	return nil
}

func (f *fakeUserRepo) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.tokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (f *fakeUserRepo) RevokeRefreshToken(_ context.Context, id string, revokedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.ID == id {
			t.Revoked = true
			t.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (f *fakeUserRepo) RevokeUserRefreshTokens(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func (f *fakeUserRepo) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audits = append(f.audits, *log)
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *fakeUserRepo) {
	t.Helper()
	repo := newFakeUserRepo()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	repo.users["u-1"] = &models.User{
		ID:           "u-1",
		Username:     "guard-1",
		PasswordHash: string(hash),
		FullName:     "Guard One",
		Role:         models.RoleSecurity,
		Active:       true,
	}
	cfg := config.JWTConfig{
		Secret:            "test-secret",
		Expiration:        time.Hour,
		RefreshExpiration: 24 * time.Hour,
	}
	return NewAuthService(repo, cfg, nil, nil), repo
}

func TestLoginIssuesTokensAndAudits(t *testing.T) {
	svc, repo := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Username: "guard-1",
		Password: "correct horse",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, models.RoleSecurity, resp.User.Role)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "u-1", claims.UserID)
	require.Equal(t, models.RoleSecurity, claims.Role)

	require.Len(t, repo.audits, 1)
	require.Equal(t, models.AuditActionLogin, repo.audits[0].Action)
}

func TestLoginRejectsBadPasswordAndUnknownUserAlike(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	_, badPass := svc.Login(ctx, models.LoginRequest{Username: "guard-1", Password: "wrong"})
	require.Error(t, badPass)
	_, noUser := svc.Login(ctx, models.LoginRequest{Username: "ghost", Password: "wrong"})
	require.Error(t, noUser)
	require.Equal(t, badPass.Error(), noUser.Error())
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	svc, repo := newAuthFixture(t)
	repo.users["u-1"].Active = false

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Username: "guard-1",
		Password: "correct horse",
	})
	require.Error(t, err)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, repo := newAuthFixture(t)
	ctx := context.Background()

	login, err := svc.Login(ctx, models.LoginRequest{Username: "guard-1", Password: "correct horse"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(ctx, models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The old token was revoked by rotation and cannot be replayed.
	_, err = svc.RefreshToken(ctx, models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)

	require.True(t, repo.tokens[login.RefreshToken].Revoked)
	require.False(t, repo.tokens[refreshed.RefreshToken].Revoked)
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	svc, repo := newAuthFixture(t)
	ctx := context.Background()

	login, err := svc.Login(ctx, models.LoginRequest{Username: "guard-1", Password: "correct horse"})
	require.NoError(t, err)

	require.Error(t, svc.ChangePassword(ctx, "u-1", models.ChangePasswordRequest{
		OldPassword: "wrong",
		NewPassword: "another pass",
	}))
	require.NoError(t, svc.ChangePassword(ctx, "u-1", models.ChangePasswordRequest{
		OldPassword: "correct horse",
		NewPassword: "another pass",
	}))

	require.True(t, repo.tokens[login.RefreshToken].Revoked)

	_, err = svc.Login(ctx, models.LoginRequest{Username: "guard-1", Password: "another pass"})
	require.NoError(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
}
