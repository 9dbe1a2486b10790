package realtime

import (
	"sync"

	"go.uber.org/zap"

	"github.com/osa-scan/dresscode-api/internal/models"
)

// Subscriber is one connected dashboard. Events arrive on C; the hub never
// blocks on a slow subscriber — when the buffer is full the event is dropped
// for that subscriber only. Live events are freshness hints; a dropped event
// is recovered by the client re-fetching through the query endpoints.
type Subscriber struct {
	C       chan models.LifecycleEvent
	channel models.Channel
	hub     *Hub
	once    sync.Once
}

// Close detaches the subscriber from its channel. Safe to call twice.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s)
	})
}

// Hub is the in-process role-channel broadcast registry.
type Hub struct {
	mu      sync.RWMutex
	members map[models.Channel]map[*Subscriber]struct{}
	buffer  int
	logger  *zap.Logger
}

// NewHub constructs a hub with the given per-subscriber buffer size.
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		members: make(map[models.Channel]map[*Subscriber]struct{}),
		buffer:  buffer,
		logger:  logger,
	}
}

// Subscribe joins the named channel. Membership lasts until Close.
func (h *Hub) Subscribe(channel models.Channel) *Subscriber {
	sub := &Subscriber{
		C:       make(chan models.LifecycleEvent, h.buffer),
		channel: channel,
		hub:     h,
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.members[channel] == nil {
		h.members[channel] = make(map[*Subscriber]struct{})
	}
	h.members[channel][sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.members[sub.channel]; ok {
		delete(set, sub)
	}
	close(sub.C)
}

// Broadcast delivers the event to every current member of the channel,
// at most once each, dropping for members whose buffer is full.
func (h *Hub) Broadcast(channel models.Channel, event models.LifecycleEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.members[channel] {
		select {
		case sub.C <- event:
		default:
			h.logger.Debug("subscriber buffer full, event dropped",
				zap.String("channel", string(channel)),
				zap.String("event", event.Name),
				zap.String("record_id", event.RecordID))
		}
	}
}

// SubscriberCount reports current membership of a channel.
func (h *Hub) SubscriberCount(channel models.Channel) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members[channel])
}
