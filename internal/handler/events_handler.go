package handler

import (
	"io"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/osa-scan/dresscode-api/internal/models"
	"github.com/osa-scan/dresscode-api/internal/realtime"
	"github.com/osa-scan/dresscode-api/internal/service"
	appErrors "github.com/osa-scan/dresscode-api/pkg/errors"
	"github.com/osa-scan/dresscode-api/pkg/response"
)

const heartbeatInterval = 25 * time.Second

// EventsHandler serves the live dashboard event streams over SSE.
type EventsHandler struct {
	hub     *realtime.Hub
	metrics *service.MetricsService
	logger  *zap.Logger
}

// NewEventsHandler constructs the handler.
func NewEventsHandler(hub *realtime.Hub, metrics *service.MetricsService, logger *zap.Logger) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{hub: hub, metrics: metrics, logger: logger}
}

// canWatch decides whether a role may join a channel. Security staff see only
// their own stream; OSA reviewers may also watch the security feed; superusers
// see everything.
func canWatch(role models.UserRole, channel models.Channel) bool {
	switch role {
	case models.RoleSuperuser:
		return true
	case models.RoleOSA:
		return true
	case models.RoleSecurity:
		return channel == models.ChannelSecurity
	default:
		return false
	}
}

// Stream godoc
// @Summary Subscribe to live violation events
// @Description Server-sent event stream for a role channel. Events are freshness hints; missed events are recovered by re-fetching the listings.
// @Tags events
// @Produce text/event-stream
// @Param channel path string true "Channel name (security or osa)"
// @Success 200 {string} string "event stream"
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{channel} [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	channel := models.Channel(c.Param("channel"))
	if !models.ValidChannel(channel) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "unknown event channel"))
		return
	}

	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if !canWatch(claims.Role, channel) {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role cannot watch this channel"))
		return
	}

	sub := h.hub.Subscribe(channel)
	defer func() {
		sub.Close()
		h.trackClients(channel)
	}()
	h.trackClients(channel)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case event, open := <-sub.C:
			if !open {
				return false
			}
			c.Render(-1, sse.Event{Event: event.Name, Data: event})
			if h.metrics != nil {
				h.metrics.RecordEventEmitted(string(event.Type), string(channel))
			}
			return true
		case <-heartbeat.C:
			c.Render(-1, sse.Event{Event: "ping", Data: time.Now().UTC().Unix()})
			return true
		}
	})
}

func (h *EventsHandler) trackClients(channel models.Channel) {
	if h.metrics != nil {
		h.metrics.SetSSEClients(string(channel), h.hub.SubscriberCount(channel))
	}
}
