package authxero

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSessionStatusChanged ActivityEventType = "session.status.changed"
	ActivityEventLoginSuccess         ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure         ActivityEventType = "auth.login.failure"
	ActivityEventSignupSuccess        ActivityEventType = "auth.signup.success"
	ActivityEventSignupFailure        ActivityEventType = "auth.signup.failure"
	ActivityEventRefreshSuccess       ActivityEventType = "auth.refresh.success"
	ActivityEventRefreshFailure       ActivityEventType = "auth.refresh.failure"
	ActivityEventForcedTermination    ActivityEventType = "auth.session.terminated"
	ActivityEventProvisionAllowed     ActivityEventType = "provision.request.allowed"
	ActivityEventProvisionRejected    ActivityEventType = "provision.request.rejected"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	FromStatus SessionStatus
	ToStatus   SessionStatus
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// Sinks run best-effort: errors are logged, never propagated.
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
