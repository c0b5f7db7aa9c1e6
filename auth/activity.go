package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventUserStatusChanged ActivityEventType = "user.status.changed"
	ActivityEventSignInSuccess     ActivityEventType = "auth.sign_in.success"
	ActivityEventSignInFailure     ActivityEventType = "auth.sign_in.failure"
	ActivityEventSignUp            ActivityEventType = "auth.sign_up"
	ActivityEventSignUpConfirmed   ActivityEventType = "auth.sign_up.confirmed"
	ActivityEventSignOut           ActivityEventType = "auth.sign_out"
	ActivityEventPasswordRestored  ActivityEventType = "auth.password.restored"
)

// ActorRef identifies who triggered an action.
type ActorRef struct {
	ID   string
	Type string
}

// ActorFor builds the reference for a user, anonymous users map to system
func ActorFor(user *User) ActorRef {
	if user.IsAnonymous() {
		return ActorRef{Type: "system"}
	}
	return ActorRef{ID: user.ID.String(), Type: "user"}
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	Driver     string
	FromStatus UserStatus
	ToStatus   UserStatus
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events.
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
