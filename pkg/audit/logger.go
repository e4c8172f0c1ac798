package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/classworks/rosterd/pkg/observability"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *Event) error

	// Close closes the logger and flushes any buffered logs
	Close() error
}

// contextKey is the type for context keys
type contextKey string

// AuditLoggerKey is the context key for the audit logger
const AuditLoggerKey contextKey = "audit_logger"

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, AuditLoggerKey, logger)
}

// FromContext retrieves the audit logger from context, falling back to a
// no-op logger when none is set.
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(AuditLoggerKey).(Logger); ok {
		return logger
	}
	return NopLogger{}
}

// NopLogger discards all events.
type NopLogger struct{}

func (NopLogger) Log(ctx context.Context, event *Event) error { return nil }
func (NopLogger) Close() error                                { return nil }

// NewEvent creates an event with an ID and timestamp filled in.
func NewEvent(eventType EventType, status EventStatus) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		Metadata:  make(map[string]interface{}),
	}
}

// LogDecision records the outcome of an authorization check.
func LogDecision(ctx context.Context, logger Logger, actorID, classID, capability string, allowed bool, reason string) error {
	status := EventStatusSuccess
	eventType := EventTypeAuthzDecision
	if !allowed {
		status = EventStatusDenied
		eventType = EventTypeAuthzAccessDenied
	}
	event := NewEvent(eventType, status)
	event.ActorID = actorID
	event.ClassID = classID
	event.Message = reason
	event.Metadata["capability"] = capability
	event.RequestID = observability.GetRequestID(ctx)
	return logger.Log(ctx, event)
}

// LogMembershipChange records a roster mutation performed by actorID on
// targetID's record.
func LogMembershipChange(ctx context.Context, logger Logger, eventType EventType, actorID, targetID, classID, role string) error {
	event := NewEvent(eventType, EventStatusSuccess)
	event.ActorID = actorID
	event.TargetID = targetID
	event.ClassID = classID
	event.Role = role
	event.RequestID = observability.GetRequestID(ctx)
	return logger.Log(ctx, event)
}

// LogBackfillWrite records a membership written by a backfill heuristic.
func LogBackfillWrite(ctx context.Context, logger Logger, heuristic, targetID, classID, role string) error {
	event := NewEvent(EventTypeBackfillWrite, EventStatusSuccess)
	event.TargetID = targetID
	event.ClassID = classID
	event.Role = role
	event.Metadata["heuristic"] = heuristic
	return logger.Log(ctx, event)
}
