package auth

import (
	"context"
	"time"
)

// TransitionContext is passed into hooks for additional processing.
type TransitionContext struct {
	Actor ActorRef
	User  *User
	From  UserStatus
	To    UserStatus
}

// TransitionHook is executed after a status change is persisted.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// StatusMachine moves users between statuses.
type StatusMachine interface {
	Transition(ctx context.Context, actor ActorRef, user *User, target UserStatus) (*User, error)
	CanTransition(from, to UserStatus) bool
	OnTransition(hook TransitionHook)
}

var statusTransitions = map[UserStatus]map[UserStatus]struct{}{
	UserStatusWaiting: {
		UserStatusActive:   {},
		UserStatusDisabled: {},
	},
	UserStatusActive: {
		UserStatusDisabled: {},
		UserStatusWaiting:  {},
	},
	UserStatusDisabled: {
		UserStatusActive: {},
	},
}

// ReachableStatuses lists from and every status a user in from can move to
func ReachableStatuses(from UserStatus) []UserStatus {
	out := []UserStatus{from}
	for to := range statusTransitions[from] {
		out = append(out, to)
	}
	return out
}

// StatusMachineOption customizes state machine construction.
type StatusMachineOption func(*statusMachine)

// WithStatusMachineClock injects a custom clock.
func WithStatusMachineClock(clock func() time.Time) StatusMachineOption {
	return func(sm *statusMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStatusMachineActivitySink sets the sink used to publish status events.
func WithStatusMachineActivitySink(sink ActivitySink) StatusMachineOption {
	return func(sm *statusMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStatusMachineLogger overrides the logger used for hook and sink failures.
func WithStatusMachineLogger(logger Logger) StatusMachineOption {
	return func(sm *statusMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// NewStatusMachine returns the default implementation backed by users.
func NewStatusMachine(users Users, opts ...StatusMachineOption) StatusMachine {
	sm := &statusMachine{
		users: users,
		transitions:  statusTransitions,
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type statusMachine struct {
	users        Users
	transitions  map[UserStatus]map[UserStatus]struct{}
	hooks        []TransitionHook
	now          func() time.Time
	activitySink ActivitySink
	logger       Logger
}

func (sm *statusMachine) OnTransition(hook TransitionHook) {
	if hook != nil {
		sm.hooks = append(sm.hooks, hook)
	}
}

func (sm *statusMachine) Transition(ctx context.Context, actor ActorRef, user *User, target UserStatus) (*User, error) {
	if user == nil || !IsValidStatus(target) {
		return nil, ErrInvalidTransition
	}

	user.EnsureStatus()
	from := user.Status
	if from == target {
		return user, nil
	}

	if !sm.CanTransition(from, target) {
		return nil, ErrInvalidTransition
	}

	if err := sm.users.UpdateStatus(ctx, user.ID, target); err != nil {
		return nil, err
	}
	user.Status = target

	tc := TransitionContext{
		Actor: actor,
		User:  user,
		From:  from,
		To:    target,
	}

	// hooks notify, a failing hook does not undo the change
	for _, hook := range sm.hooks {
		if err := hook(ctx, tc); err != nil {
			sm.logger.Error("status transition hook failed", "error", err, "user", user.ID.String())
		}
	}

	sm.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventUserStatusChanged,
		Actor:      actor,
		UserID:     user.ID.String(),
		FromStatus: from,
		ToStatus:   target,
	})

	return user, nil
}

func (sm *statusMachine) CanTransition(from, to UserStatus) bool {
	if from == to {
		return true
	}
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (sm *statusMachine) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = sm.now()
	}

	if err := sm.activitySink.Record(ctx, event); err != nil {
		sm.logger.Warn("status machine activity sink error", "error", err)
	}
}
