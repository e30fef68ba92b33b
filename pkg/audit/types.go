package audit

import "time"

// EventType represents the category of audit event
type EventType string

const (
	// EventTypeDecision is one authorization decision for a login attempt.
	EventTypeDecision EventType = "authz.decision"
	// EventTypeResolutionFailure is a login whose claims yielded no username.
	EventTypeResolutionFailure EventType = "authz.username_resolution_failed"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusAllowed EventStatus = "allowed"
	EventStatusDenied  EventStatus = "denied"
	EventStatusError   EventStatus = "error"
)

// Event is a single audit log entry. Claim values are deliberately
// absent; only claim names and the resolved username are recorded.
type Event struct {
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`
	Username  string      `json:"username,omitempty"`
	IdP       string      `json:"idp,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Admin     bool        `json:"admin,omitempty"`
}
