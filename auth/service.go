package auth

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// SignUpHook runs after a new user was stored
type SignUpHook func(ctx context.Context, user *User) error

// Service is the authentication backend used by the UI layer
type Service struct {
	repo          RepositoryManager
	tokens        *SessionTokens
	statuses      StatusMachine
	permissions   *Permissions
	logger        Logger
	activitySink  ActivitySink
	now           func() time.Time
	signUpEnabled bool
	confirmation  bool
	newUserRoles  []string

	mu             sync.RWMutex
	authenticators map[string]Authenticator
	signUpHooks    []SignUpHook
}

// ServiceOption configures a Service
type ServiceOption func(*Service) *Service

// WithServiceLogger sets the logger
func WithServiceLogger(logger Logger) ServiceOption {
	return func(s *Service) *Service {
		if logger != nil {
			s.logger = logger
		}
		return s
	}
}

// WithActivitySink sets the sink used for sign in, sign up and status events
func WithActivitySink(sink ActivitySink) ServiceOption {
	return func(s *Service) *Service {
		s.activitySink = normalizeActivitySink(sink)
		return s
	}
}

// WithAuthenticator registers an authenticator
func WithAuthenticator(a Authenticator) ServiceOption {
	return func(s *Service) *Service {
		s.authenticators[a.Name()] = a
		return s
	}
}

// WithPermissions replaces the permission registry
func WithPermissions(p *Permissions) ServiceOption {
	return func(s *Service) *Service {
		if p != nil {
			s.permissions = p
		}
		return s
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) *Service {
		if now != nil {
			s.now = now
		}
		return s
	}
}

// NewService creates the backend, the password authenticator is always present
func NewService(repo RepositoryManager, cfg Config, opts ...ServiceOption) *Service {
	if repo == nil {
		panic("Missing RepositoryManager in auth service...")
	}

	s := &Service{
		repo:           repo,
		tokens:         NewSessionTokens([]byte(cfg.GetSigningKey()), cfg.GetTokenExpiration(), cfg.GetIssuer()),
		permissions:    NewPermissions(),
		logger:         defLogger{},
		activitySink:   noopActivitySink{},
		now:            time.Now,
		signUpEnabled:  cfg.GetSignUpEnabled(),
		confirmation:   cfg.GetSignUpConfirmation(),
		newUserRoles:   cfg.GetNewUserRoles(),
		authenticators: map[string]Authenticator{},
	}

	s.authenticators[PasswordAuthenticatorName] = NewPasswordAuthenticator(repo.Users())

	for _, opt := range opts {
		s = opt(s)
	}

	if len(s.newUserRoles) == 0 {
		s.newUserRoles = []string{RoleUser}
	}

	s.statuses = NewStatusMachine(repo.Users(),
		WithStatusMachineLogger(s.logger),
		WithStatusMachineActivitySink(s.activitySink),
		WithStatusMachineClock(s.now),
	)

	return s
}

// RegisterAuthenticator adds or replaces an authenticator at runtime
func (s *Service) RegisterAuthenticator(a Authenticator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticators[a.Name()] = a
}

// OnSignUp registers a hook called after each successful sign up
func (s *Service) OnSignUp(hook SignUpHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signUpHooks = append(s.signUpHooks, hook)
}

// OnStatusChange registers a hook called after each status transition
func (s *Service) OnStatusChange(hook TransitionHook) {
	s.statuses.OnTransition(hook)
}

// Permissions returns the permission registry
func (s *Service) Permissions() *Permissions {
	return s.permissions
}

// SignUpEnabled reports whether new accounts may be created
func (s *Service) SignUpEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signUpEnabled
}

// SetSignUpEnabled toggles sign up at runtime
func (s *Service) SetSignUpEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signUpEnabled = enabled
}

// ConfirmationRequired reports whether new accounts wait for email confirmation
func (s *Service) ConfirmationRequired() bool {
	return s.confirmation
}

// NewUserStatus is the status assigned on sign up
func (s *Service) NewUserStatus() UserStatus {
	if s.confirmation {
		return UserStatusWaiting
	}
	return UserStatusActive
}

// NewUserRoles are the roles assigned on sign up
func (s *Service) NewUserRoles() []string {
	out := make([]string, len(s.newUserRoles))
	copy(out, s.newUserRoles)
	return out
}

func (s *Service) authenticator(driver string) (Authenticator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.authenticators[driver]
	if !ok {
		return nil, ErrAuthenticatorNotRegistered
	}
	return a, nil
}

// SignIn verifies the driver input and returns the signed in user
func (s *Service) SignIn(ctx context.Context, driver string, data url.Values) (*User, error) {
	a, err := s.authenticator(driver)
	if err != nil {
		return nil, err
	}

	user, err := a.SignIn(ctx, data)
	if err != nil {
		s.record(ctx, ActivityEvent{
			EventType: ActivityEventSignInFailure,
			Driver:    driver,
			Metadata:  map[string]any{"error": err.Error()},
		})
		return nil, err
	}

	if !user.IsActive() {
		return nil, ErrUserNotActive
	}

	if err := s.repo.Users().TrackSignIn(ctx, user); err != nil {
		s.logger.Error("track sign in failed", "error", err)
	}

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventSignInSuccess,
		Actor:     ActorFor(user),
		UserID:    user.ID.String(),
		Driver:    driver,
	})

	return user, nil
}

// SignUp creates an account out of the driver input
func (s *Service) SignUp(ctx context.Context, driver string, data url.Values) (*User, error) {
	if !s.SignUpEnabled() {
		return nil, ErrSignUpDisabled
	}

	a, err := s.authenticator(driver)
	if err != nil {
		return nil, err
	}

	user, err := a.SignUp(ctx, data)
	if err != nil {
		return nil, err
	}

	user.Status = s.NewUserStatus()
	user.Roles = s.NewUserRoles()

	if s.confirmation {
		code, err := confirmationCode(user.Login)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create confirmation code")
		}
		user.ConfirmationHash = code
	}

	if user, err = s.repo.Users().Create(ctx, user); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
	}

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventSignUp,
		Actor:     ActorFor(user),
		UserID:    user.ID.String(),
		Driver:    driver,
	})

	s.mu.RLock()
	hooks := append([]SignUpHook(nil), s.signUpHooks...)
	s.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, user); err != nil {
			s.logger.Error("sign up hook failed", "error", err, "user", user.ID.String())
		}
	}

	return user, nil
}

// ConfirmSignUp activates the account owning code
func (s *Service) ConfirmSignUp(ctx context.Context, code string) (*User, error) {
	user, err := s.repo.Users().GetByConfirmationHash(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}

	user.ConfirmationHash = ""
	if user, err = s.repo.Users().Store(ctx, user); err != nil {
		return nil, err
	}

	if user.Status == UserStatusWaiting {
		if user, err = s.statuses.Transition(ctx, ActorFor(user), user, UserStatusActive); err != nil {
			return nil, err
		}
	}

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventSignUpConfirmed,
		Actor:     ActorFor(user),
		UserID:    user.ID.String(),
	})

	return user, nil
}

// RestoreAccount sets a new random password for the user with login.
// The cleartext password is returned so it can be mailed.
func (s *Service) RestoreAccount(ctx context.Context, login string) (*User, string, error) {
	user, err := s.repo.Users().GetByLogin(ctx, login)
	if err != nil {
		return nil, "", err
	}

	if !user.IsActive() {
		return nil, "", ErrUserNotActive
	}

	password := RandomPassword()
	hash, err := HashPassword(password)
	if err != nil {
		return nil, "", err
	}

	user.PasswordHash = hash
	if user, err = s.repo.Users().Store(ctx, user); err != nil {
		return nil, "", err
	}

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventPasswordRestored,
		Actor:     ActorFor(user),
		UserID:    user.ID.String(),
	})

	return user, password, nil
}

// SignOut records the sign out of user
func (s *Service) SignOut(ctx context.Context, user *User) {
	if user.IsAnonymous() {
		return
	}
	s.record(ctx, ActivityEvent{
		EventType: ActivityEventSignOut,
		Actor:     ActorFor(user),
		UserID:    user.ID.String(),
	})
}

// SessionToken issues the cookie value for user
func (s *Service) SessionToken(user *User) (string, error) {
	return s.tokens.Generate(user)
}

// SessionTTL is the lifetime of session tokens
func (s *Service) SessionTTL() time.Duration {
	return s.tokens.Expiration()
}

// UserFromSession resolves the user a session token was issued for
func (s *Service) UserFromSession(ctx context.Context, token string) (*User, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, claims.UID)
}

// TouchActivity updates the last activity timestamp of user
func (s *Service) TouchActivity(ctx context.Context, user *User) error {
	if user.IsAnonymous() {
		return nil
	}
	now := s.now()
	user.LastActivity = &now
	return s.repo.Users().TouchActivity(ctx, user.ID, now)
}

// GetUser finds a user by id
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrUserNotFound
	}

	user, err := s.repo.Users().GetByID(ctx, id)
	if err != nil {
		if IsUserNotFound(err) || isRecordNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// GetUserByNickname finds a user by nickname
func (s *Service) GetUserByNickname(ctx context.Context, nickname string) (*User, error) {
	return s.repo.Users().GetByNickname(ctx, nickname)
}

// GetUserByLogin finds a user by login
func (s *Service) GetUserByLogin(ctx context.Context, login string) (*User, error) {
	return s.repo.Users().GetByLogin(ctx, login)
}

// FindUsers lists users matching q
func (s *Service) FindUsers(ctx context.Context, q UserQuery) ([]*User, int, error) {
	return s.repo.Users().Search(ctx, q)
}

// AdminUsers lists active admins, used for notifications
func (s *Service) AdminUsers(ctx context.Context) ([]*User, error) {
	admins, _, err := s.repo.Users().Search(ctx, UserQuery{
		Status: UserStatusActive,
		Role:   RoleAdmin,
	})
	return admins, err
}

// CreateUser stores a new user with all its fields set. Status and roles
// default to the sign up ones, an empty nickname is derived from the login.
func (s *Service) CreateUser(ctx context.Context, user *User, password string) (*User, error) {
	user.Login = strings.TrimSpace(user.Login)
	if user.Status == "" {
		user.Status = s.NewUserStatus()
	}
	if len(user.Roles) == 0 {
		user.Roles = s.NewUserRoles()
	}

	if password != "" {
		hash, err := HashPassword(password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if user.Nickname != "" {
		ok, err := s.IsFieldUnique(ctx, "nickname", user.Nickname, uuid.Nil)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrNicknameTaken
		}
	}

	created, err := s.repo.Users().Create(ctx, user)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user").
			WithCode(goerrors.CodeConflict)
	}
	return created, nil
}

// SaveUser stores user, a changed status goes through the status machine.
// Nothing is stored when the status change is not allowed.
func (s *Service) SaveUser(ctx context.Context, actor *User, user *User) (*User, error) {
	target := user.Status

	if user.ID != uuid.Nil {
		current, err := s.GetUser(ctx, user.ID.String())
		if err != nil {
			return nil, err
		}
		user.Status = current.Status
	}

	if target != "" && user.Status != "" && !s.statuses.CanTransition(user.Status, target) {
		return nil, ErrInvalidTransition
	}

	saved, err := s.repo.Users().Store(ctx, user)
	if err != nil {
		return nil, err
	}

	if target != "" && target != saved.Status {
		return s.ChangeStatus(ctx, actor, saved, target)
	}

	return saved, nil
}

// ChangeStatus moves user to status
func (s *Service) ChangeStatus(ctx context.Context, actor *User, user *User, status UserStatus) (*User, error) {
	return s.statuses.Transition(ctx, ActorFor(actor), user, status)
}

// IsFieldUnique reports whether no user other than exclude has value in field
func (s *Service) IsFieldUnique(ctx context.Context, field, value string, exclude uuid.UUID) (bool, error) {
	return s.repo.Users().IsFieldUnique(ctx, field, value, exclude)
}

// Roles lists all roles sorted by name
func (s *Service) Roles(ctx context.Context) ([]*Role, error) {
	return s.repo.Roles().All(ctx)
}

// GetRole finds a role by id
func (s *Service) GetRole(ctx context.Context, id string) (*Role, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrRoleNotFound
	}
	role, err := s.repo.Roles().GetByID(ctx, id)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return role, nil
}

// GetRoleByName finds a role by name
func (s *Service) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	return s.repo.Roles().GetByName(ctx, name)
}

// SaveRole stores role, unknown permissions are dropped
func (s *Service) SaveRole(ctx context.Context, role *Role) (*Role, error) {
	perms := make([]string, 0, len(role.Permissions))
	for _, p := range role.Permissions {
		if s.permissions.Has(p) {
			perms = append(perms, p)
		}
	}
	sort.Strings(perms)
	role.Permissions = perms
	return s.repo.Roles().Store(ctx, role)
}

// IsRoleNameUnique reports whether no role other than exclude is named name
func (s *Service) IsRoleNameUnique(ctx context.Context, name string, exclude uuid.UUID) (bool, error) {
	return s.repo.Roles().IsNameUnique(ctx, name, exclude)
}

// Follow makes follower follow following
func (s *Service) Follow(ctx context.Context, follower, following *User) error {
	if follower.IsAnonymous() || following.IsAnonymous() {
		return ErrForbidden
	}
	if follower.Is(following) {
		return goerrors.New("users can not follow themselves", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}
	return s.repo.Follows().Follow(ctx, follower.ID, following.ID)
}

// Unfollow removes the follow relation
func (s *Service) Unfollow(ctx context.Context, follower, following *User) error {
	if follower.IsAnonymous() || following.IsAnonymous() {
		return ErrForbidden
	}
	return s.repo.Follows().Unfollow(ctx, follower.ID, following.ID)
}

// IsFollowing reports whether follower follows following
func (s *Service) IsFollowing(ctx context.Context, follower, following *User) (bool, error) {
	if follower.IsAnonymous() || following.IsAnonymous() {
		return false, nil
	}
	return s.repo.Follows().IsFollowing(ctx, follower.ID, following.ID)
}

// FollowCounts returns the follower and following counts of user
func (s *Service) FollowCounts(ctx context.Context, user *User) (followers int, following int, err error) {
	if followers, err = s.repo.Follows().CountFollowers(ctx, user.ID); err != nil {
		return 0, 0, err
	}
	if following, err = s.repo.Follows().CountFollowing(ctx, user.ID); err != nil {
		return 0, 0, err
	}
	return followers, following, nil
}

func (s *Service) record(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := s.activitySink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink error", "error", err)
	}
}

func confirmationCode(login string) (string, error) {
	id, err := hashid.NewUUID(login + ":" + uuid.NewString())
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(id.String(), "-", ""), nil
}
