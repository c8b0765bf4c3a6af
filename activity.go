package contacts

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess   ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure   ActivityEventType = "auth.login.failure"
	ActivityEventRefreshRotated ActivityEventType = "auth.refresh.rotated"
	ActivityEventRefreshRevoked ActivityEventType = "auth.refresh.revoked"
)

// ActivityEvent captures audit-friendly information about an auth action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Email      string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// LogActivitySink writes every event to the logger. Sink failures must never
// break the auth flow, so Record always reports nil.
type LogActivitySink struct {
	Logger Logger
}

func (s LogActivitySink) Record(_ context.Context, event ActivityEvent) error {
	logger := s.Logger
	if logger == nil {
		logger = defLogger{}
	}
	logger.Info("auth activity", "event", string(event.EventType), "email", event.Email)
	return nil
}
