package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/osa-scan/dresscode-api/internal/models"
	"github.com/osa-scan/dresscode-api/pkg/jobs"
)

type eventBroadcaster interface {
	Broadcast(channel models.Channel, event models.LifecycleEvent)
}

type eventRelay interface {
	Publish(ctx context.Context, channel models.Channel, event models.LifecycleEvent) error
}

// delivery is one (channel, wire name) destination for an event.
type delivery struct {
	Channel models.Channel
	Event   models.LifecycleEvent
}

// EventService owns the routing table between lifecycle events and role
// channels and pushes deliveries through a background queue so record writes
// never wait on fan-out. Transport failures are logged and swallowed; the
// record store stays the source of truth either way.
type EventService struct {
	hub    eventBroadcaster
	relay  eventRelay
	queue  *jobs.Queue[delivery]
	logger *zap.Logger
}

// NewEventService constructs the service. Call Start before publishing.
func NewEventService(hub eventBroadcaster, relay eventRelay, workers int, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &EventService{
		hub:    hub,
		relay:  relay,
		logger: logger,
	}
	s.queue = jobs.NewQueue("event-fanout", s.deliver, jobs.Config{
		Workers: workers,
		Logger:  logger,
	})
	return s
}

// Start launches the fan-out workers.
func (s *EventService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *EventService) Stop() {
	s.queue.Stop()
}

// Publish routes the event to its role channels and enqueues the deliveries.
// Fire-and-forget: a full queue or stopped service drops the hint.
func (s *EventService) Publish(event models.LifecycleEvent) {
	for _, d := range route(event) {
		if err := s.queue.Enqueue(jobs.Job[delivery]{
			ID:      uuid.NewString(),
			Type:    string(event.Type),
			Payload: d,
		}); err != nil {
			s.logger.Warn("event delivery dropped",
				zap.String("record_id", event.RecordID),
				zap.String("channel", string(d.Channel)),
				zap.Error(err))
		}
	}
}

// deliver broadcasts one delivery locally and relays it to peer instances.
// Always returns nil so the queue never retries; live events are at-most-once.
func (s *EventService) deliver(ctx context.Context, job jobs.Job[delivery]) error {
	d := job.Payload
	s.hub.Broadcast(d.Channel, d.Event)
	if s.relay != nil {
		if err := s.relay.Publish(ctx, d.Channel, d.Event); err != nil {
			s.logger.Warn("event relay failed",
				zap.String("record_id", d.Event.RecordID),
				zap.String("channel", string(d.Channel)),
				zap.Error(err))
		}
	}
	return nil
}

// route maps an event to its deliveries:
//
//	created  -> osa as "new-violation", security as "violation-logged"
//	updated  -> the channel that did not originate the change ("violation-updated")
//	deleted  -> osa only ("violation-deleted")
//
// An update whose origin is neither dashboard role goes to both channels.
func route(event models.LifecycleEvent) []delivery {
	named := func(channel models.Channel, name string) delivery {
		ev := event
		ev.Name = name
		return delivery{Channel: channel, Event: ev}
	}

	switch event.Type {
	case models.EventCreated:
		return []delivery{
			named(models.ChannelOSA, models.EventNameNewViolation),
			named(models.ChannelSecurity, models.EventNameViolationLogged),
		}
	case models.EventUpdated:
		switch event.OriginRole {
		case models.RoleSecurity:
			return []delivery{named(models.ChannelOSA, models.EventNameViolationUpdated)}
		case models.RoleOSA:
			return []delivery{named(models.ChannelSecurity, models.EventNameViolationUpdated)}
		default:
			return []delivery{
				named(models.ChannelOSA, models.EventNameViolationUpdated),
				named(models.ChannelSecurity, models.EventNameViolationUpdated),
			}
		}
	case models.EventDeleted:
		return []delivery{named(models.ChannelOSA, models.EventNameViolationDeleted)}
	default:
		return nil
	}
}
