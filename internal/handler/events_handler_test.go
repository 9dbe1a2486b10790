package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/osa-scan/dresscode-api/internal/middleware"
	"github.com/osa-scan/dresscode-api/internal/models"
	"github.com/osa-scan/dresscode-api/internal/realtime"
)

func TestCanWatchMatrix(t *testing.T) {
	cases := []struct {
		role    models.UserRole
		channel models.Channel
		allowed bool
	}{
		{models.RoleSecurity, models.ChannelSecurity, true},
		{models.RoleSecurity, models.ChannelOSA, false},
		{models.RoleOSA, models.ChannelOSA, true},
		{models.RoleOSA, models.ChannelSecurity, true},
		{models.RoleSuperuser, models.ChannelOSA, true},
		{models.RoleSuperuser, models.ChannelSecurity, true},
	}
	for _, tc := range cases {
		require.Equal(t, tc.allowed, canWatch(tc.role, tc.channel),
			"role %s on channel %s", tc.role, tc.channel)
	}
}

func newEventsRouter(hub *realtime.Hub, role models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewEventsHandler(hub, nil, nil)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{
			UserID:   "u-1",
			Username: "someone",
			Role:     role,
		})
	})
	router.GET("/api/v1/events/:channel", h.Stream)
	return router
}

func TestStreamRejectsUnknownChannel(t *testing.T) {
	router := newEventsRouter(realtime.NewHub(4, nil), models.RoleOSA)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events/admins", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamRejectsForbiddenChannel(t *testing.T) {
	router := newEventsRouter(realtime.NewHub(4, nil), models.RoleSecurity)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events/osa", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

// closeNotifyRecorder adds the http.CloseNotifier method gin's Stream requires,
// which httptest.ResponseRecorder does not implement.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newCloseNotifyRecorder() *closeNotifyRecorder {
	return &closeNotifyRecorder{httptest.NewRecorder(), make(chan bool)}
}

func (r *closeNotifyRecorder) CloseNotify() <-chan bool { return r.closed }

func TestStreamDeliversBroadcastEvents(t *testing.T) {
	hub := realtime.NewHub(4, nil)
	router := newEventsRouter(hub, models.RoleOSA)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/osa", nil).WithContext(ctx)
	rec := newCloseNotifyRecorder()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		router.ServeHTTP(rec, req)
	}()

	// Wait for the subscriber to attach, then push one event and disconnect.
	require.Eventually(t, func() bool {
		return hub.SubscriberCount(models.ChannelOSA) == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.Broadcast(models.ChannelOSA, models.LifecycleEvent{
		Type:     models.EventCreated,
		Name:     models.EventNameNewViolation,
		RecordID: "v-1",
	})
	time.Sleep(50 * time.Millisecond)
	cancel()
	wg.Wait()

	body := rec.Body.String()
	require.Contains(t, body, "event:new-violation")
	require.Contains(t, body, "v-1")
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
}
