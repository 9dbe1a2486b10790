package models

import "time"

// Channel is a named broadcast group live subscribers join by role.
type Channel string

const (
	ChannelSecurity Channel = "security"
	ChannelOSA      Channel = "osa"
)

// ValidChannel reports whether the name is a known channel.
func ValidChannel(c Channel) bool {
	return c == ChannelSecurity || c == ChannelOSA
}

// EventType classifies a lifecycle event.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event names on the wire, kept stable for dashboard clients.
const (
	EventNameNewViolation     = "new-violation"
	EventNameViolationLogged  = "violation-logged"
	EventNameViolationUpdated = "violation-updated"
	EventNameViolationDeleted = "violation-deleted"
)

// LifecycleEvent is the payload fanned out to live dashboards. Events are
// hints: every field here is recoverable from the record store, and a client
// that misses one re-fetches instead of replaying.
type LifecycleEvent struct {
	Type          EventType        `json:"type"`
	Name          string           `json:"name"`
	RecordID      string           `json:"record_id"`
	Record        *ViolationRecord `json:"record,omitempty"`
	ChangedFields []string         `json:"changed_fields,omitempty"`
	Actor         string           `json:"actor,omitempty"`
	OriginRole    UserRole         `json:"origin_role,omitempty"`
	EmittedAt     time.Time        `json:"emitted_at"`
}
