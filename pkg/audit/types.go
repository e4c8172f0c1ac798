package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authorization events
	EventTypeAuthzDecision     EventType = "authz.decision"
	EventTypeAuthzAccessDenied EventType = "authz.access_denied"

	// Roster mutation events
	EventTypeRosterMemberAdd        EventType = "roster.member_add"
	EventTypeRosterMemberRoleChange EventType = "roster.member_role_change"
	EventTypeRosterMemberRemove     EventType = "roster.member_remove"
	EventTypeRosterGlobalRoleChange EventType = "roster.global_role_change"

	// Backfill events
	EventTypeBackfillWrite          EventType = "backfill.membership_write"
	EventTypeBackfillSkip           EventType = "backfill.skip"
	EventTypeBackfillConsistencyFix EventType = "backfill.consistency_fix"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event represents a single audit log entry
type Event struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor and target are user record identifiers.
	ActorID  string `json:"actor_id,omitempty"`
	TargetID string `json:"target_id,omitempty"`

	// Class scope of the event, empty for global role changes.
	ClassID string `json:"class_id,omitempty"`
	Role    string `json:"role,omitempty"`

	// Request context
	RequestID string `json:"request_id,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`

	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an audit event from JSON
func FromJSON(data []byte) (*Event, error) {
	var event Event
	err := json.Unmarshal(data, &event)
	return &event, err
}
