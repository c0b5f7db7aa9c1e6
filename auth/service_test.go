package auth

import (
	"context"
	"database/sql"
	"net/url"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type testConfig struct {
	signUp       bool
	confirmation bool
}

func (c testConfig) GetSigningKey() string       { return "test-signing-key-that-is-long-enough" }
func (c testConfig) GetTokenExpiration() int     { return 1 }
func (c testConfig) GetIssuer() string           { return "auth-ui-test" }
func (c testConfig) GetSignUpEnabled() bool      { return c.signUp }
func (c testConfig) GetSignUpConfirmation() bool { return c.confirmation }
func (c testConfig) GetNewUserRoles() []string   { return nil }

func init() {
	SetPasswordHashCost(4)
}

func setupRepo(t *testing.T) RepositoryManager {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})

	repo := NewRepositoryManager(db)
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func setupService(t *testing.T, cfg testConfig, opts ...ServiceOption) *Service {
	t.Helper()
	return NewService(setupRepo(t), cfg, opts...)
}

func signUpValues(login string) url.Values {
	return url.Values{
		"login":            {login},
		"password":         {"secret-password"},
		"password_confirm": {"secret-password"},
		"first_name":       {"Ada"},
		"last_name":        {"Lovelace"},
	}
}

func TestServiceSignUpWithConfirmation(t *testing.T) {
	ctx := context.Background()

	var events []ActivityEvent
	svc := setupService(t, testConfig{signUp: true, confirmation: true},
		WithActivitySink(ActivitySinkFunc(func(_ context.Context, e ActivityEvent) error {
			events = append(events, e)
			return nil
		})),
	)

	var hooked *User
	svc.OnSignUp(func(_ context.Context, u *User) error {
		hooked = u
		return nil
	})

	user, err := svc.SignUp(ctx, PasswordAuthenticatorName, signUpValues("ada@example.com"))
	require.NoError(t, err)
	require.NotNil(t, hooked)

	assert.Equal(t, UserStatusWaiting, user.Status)
	assert.Equal(t, []string{RoleUser}, user.Roles)
	assert.Equal(t, "ada", user.Nickname)
	assert.NotEmpty(t, user.ConfirmationHash)

	_, err = svc.SignIn(ctx, PasswordAuthenticatorName, url.Values{
		"login":    {"ada@example.com"},
		"password": {"secret-password"},
	})
	assert.True(t, IsUserNotActive(err))

	confirmed, err := svc.ConfirmSignUp(ctx, user.ConfirmationHash)
	require.NoError(t, err)
	assert.Equal(t, UserStatusActive, confirmed.Status)
	assert.Empty(t, confirmed.ConfirmationHash)

	_, err = svc.ConfirmSignUp(ctx, user.ConfirmationHash)
	assert.True(t, IsInvalidConfirmationCode(err))

	signedIn, err := svc.SignIn(ctx, PasswordAuthenticatorName, url.Values{
		"login":    {"ada@example.com"},
		"password": {"secret-password"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, signedIn.SignInCount)
	assert.NotEmpty(t, events)
}

func TestServiceSignUpDisabled(t *testing.T) {
	svc := setupService(t, testConfig{signUp: false})

	_, err := svc.SignUp(context.Background(), PasswordAuthenticatorName, signUpValues("bob@example.com"))
	assert.True(t, IsSignUpDisabled(err))
}

func TestServiceSignUpValidation(t *testing.T) {
	svc := setupService(t, testConfig{signUp: true})

	values := signUpValues("not-an-email")
	values.Set("password_confirm", "other")

	_, err := svc.SignUp(context.Background(), PasswordAuthenticatorName, values)
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryValidation, richErr.Category)

	fields, ok := richErr.Metadata["fields"].(map[string]string)
	require.True(t, ok)
	assert.Contains(t, fields, "login")
	assert.Contains(t, fields, "password_confirm")
	assert.NotContains(t, fields, "first_name")
}

func TestServiceSignInErrors(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t, testConfig{signUp: true})

	_, err := svc.SignUp(ctx, PasswordAuthenticatorName, signUpValues("carol@example.com"))
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, PasswordAuthenticatorName, url.Values{
		"login":    {"carol@example.com"},
		"password": {"wrong-password"},
	})
	assert.True(t, IsAuthenticationError(err))

	_, err = svc.SignIn(ctx, PasswordAuthenticatorName, url.Values{
		"login":    {"nobody@example.com"},
		"password": {"secret-password"},
	})
	assert.True(t, IsUserNotFound(err))

	_, err = svc.SignIn(ctx, "unknown", url.Values{})
	assert.Error(t, err)
}

func TestServiceSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t, testConfig{signUp: true})

	user, err := svc.SignUp(ctx, PasswordAuthenticatorName, signUpValues("dan@example.com"))
	require.NoError(t, err)

	token, err := svc.SessionToken(user)
	require.NoError(t, err)

	found, err := svc.UserFromSession(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = svc.UserFromSession(ctx, token+"x")
	assert.Error(t, err)

	_, err = svc.SessionToken(AnonymousUser())
	assert.Error(t, err)
}

func TestServiceStatusChangeHook(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t, testConfig{signUp: true})

	var transitions []TransitionContext
	svc.OnStatusChange(func(_ context.Context, tc TransitionContext) error {
		transitions = append(transitions, tc)
		return nil
	})

	user, err := svc.SignUp(ctx, PasswordAuthenticatorName, signUpValues("erin@example.com"))
	require.NoError(t, err)
	require.Equal(t, UserStatusActive, user.Status)

	admin, err := svc.CreateUser(ctx, &User{Login: "admin@example.com"}, "admin-password")
	require.NoError(t, err)

	_, err = svc.ChangeStatus(ctx, admin, user, UserStatusDisabled)
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, UserStatusActive, transitions[0].From)
	assert.Equal(t, UserStatusDisabled, transitions[0].To)
	assert.Equal(t, admin.ID.String(), transitions[0].Actor.ID)

	stored, err := svc.GetUser(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, UserStatusDisabled, stored.Status)

	_, err = svc.ChangeStatus(ctx, admin, user, UserStatus("archived"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestServiceRestoreAccount(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t, testConfig{signUp: true})

	_, err := svc.SignUp(ctx, PasswordAuthenticatorName, signUpValues("fay@example.com"))
	require.NoError(t, err)

	_, password, err := svc.RestoreAccount(ctx, "fay@example.com")
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, PasswordAuthenticatorName, url.Values{
		"login":    {"fay@example.com"},
		"password": {password},
	})
	assert.NoError(t, err)
}

func TestServiceRolesAndPermissions(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t, testConfig{})

	svc.Permissions().DefineGroup("article", "Articles")
	svc.Permissions().Define("article.create", "Create articles", "article")

	roles, err := svc.Roles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, len(BuiltinRoles()))

	role, err := svc.SaveRole(ctx, &Role{
		Name:        "editor",
		Description: "Editor",
		Permissions: []string{"article.create", "unknown.permission"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"article.create"}, role.Permissions)

	unique, err := svc.IsRoleNameUnique(ctx, "editor", role.ID)
	require.NoError(t, err)
	assert.True(t, unique)

	unique, err = svc.IsRoleNameUnique(ctx, "editor", uuid.Nil)
	require.NoError(t, err)
	assert.False(t, unique)

	found, err := svc.GetRole(ctx, role.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "editor", found.Name)

	_, err = svc.GetRole(ctx, "nope")
	assert.True(t, IsRoleNotFound(err))
}

func TestServiceFindUsersAndFollows(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t, testConfig{signUp: true})

	alice, err := svc.SignUp(ctx, PasswordAuthenticatorName, signUpValues("alice@example.com"))
	require.NoError(t, err)

	values := signUpValues("zed@example.com")
	values.Set("first_name", "Zed")
	zed, err := svc.SignUp(ctx, PasswordAuthenticatorName, values)
	require.NoError(t, err)

	users, total, err := svc.FindUsers(ctx, UserQuery{Search: "ze", Status: UserStatusActive})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, zed.ID, users[0].ID)

	users, _, err = svc.FindUsers(ctx, UserQuery{})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Ada", users[0].FirstName)

	require.NoError(t, svc.Follow(ctx, alice, zed))
	require.NoError(t, svc.Follow(ctx, alice, zed))

	following, err := svc.IsFollowing(ctx, alice, zed)
	require.NoError(t, err)
	assert.True(t, following)

	followers, _, err := svc.FollowCounts(ctx, zed)
	require.NoError(t, err)
	assert.Equal(t, 1, followers)

	assert.Error(t, svc.Follow(ctx, alice, alice))
	assert.True(t, IsForbidden(svc.Follow(ctx, AnonymousUser(), zed)))

	require.NoError(t, svc.Unfollow(ctx, alice, zed))
	following, err = svc.IsFollowing(ctx, alice, zed)
	require.NoError(t, err)
	assert.False(t, following)
}

func TestUniqueUserFieldRule(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t, testConfig{signUp: true})

	user, err := svc.SignUp(ctx, PasswordAuthenticatorName, signUpValues("gil@example.com"))
	require.NoError(t, err)

	rule := UniqueUserFieldRule(ctx, svc.repo.Users(), "nickname", uuid.Nil)
	assert.Error(t, rule.Validate("gil"))
	assert.NoError(t, rule.Validate("someone-else"))

	rule = UniqueUserFieldRule(ctx, svc.repo.Users(), "nickname", user.ID)
	assert.NoError(t, rule.Validate("gil"))
}

func TestServiceSignUpDerivesFreeNickname(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t, testConfig{signUp: true})

	first, err := svc.SignUp(ctx, PasswordAuthenticatorName, signUpValues("john@a.com"))
	require.NoError(t, err)
	assert.Equal(t, "john", first.Nickname)

	second, err := svc.SignUp(ctx, PasswordAuthenticatorName, signUpValues("john@b.com"))
	require.NoError(t, err)
	assert.Equal(t, "john-2", second.Nickname)

	third, err := svc.SignUp(ctx, PasswordAuthenticatorName, signUpValues("john@c.com"))
	require.NoError(t, err)
	assert.Equal(t, "john-3", third.Nickname)
}

func TestServiceSignUpTakenNickname(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t, testConfig{signUp: true})

	_, err := svc.SignUp(ctx, PasswordAuthenticatorName, signUpValues("john@a.com"))
	require.NoError(t, err)

	values := signUpValues("jane@a.com")
	values.Set("nickname", "john")
	_, err = svc.SignUp(ctx, PasswordAuthenticatorName, values)
	require.Error(t, err)
	assert.True(t, IsNicknameTaken(err))

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	fields, ok := richErr.Metadata["fields"].(map[string]string)
	require.True(t, ok)
	assert.Contains(t, fields, "nickname")

	_, err = svc.GetUserByLogin(ctx, "jane@a.com")
	assert.True(t, IsUserNotFound(err))
}

func TestServiceCreateUserNickname(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t, testConfig{signUp: true})

	_, err := svc.CreateUser(ctx, &User{Login: "john@a.com"}, "secret-password")
	require.NoError(t, err)

	derived, err := svc.CreateUser(ctx, &User{Login: "john@b.com"}, "secret-password")
	require.NoError(t, err)
	assert.Equal(t, "john-2", derived.Nickname)

	named, err := svc.CreateUser(ctx, &User{Login: "john@c.com", Nickname: "johnny"}, "secret-password")
	require.NoError(t, err)
	assert.Equal(t, "johnny", named.Nickname)

	_, err = svc.CreateUser(ctx, &User{Login: "john@d.com", Nickname: "johnny"}, "secret-password")
	assert.True(t, IsNicknameTaken(err))
}

func TestServiceSaveUserRejectsTransitionBeforeStoring(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t, testConfig{signUp: true})

	admin, err := svc.CreateUser(ctx, &User{Login: "admin@example.com"}, "admin-password")
	require.NoError(t, err)
	user, err := svc.CreateUser(ctx, &User{Login: "ada@example.com", Status: UserStatusDisabled}, "secret-password")
	require.NoError(t, err)

	user.FirstName = "Changed"
	user.Status = UserStatusWaiting
	_, err = svc.SaveUser(ctx, admin, user)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	stored, err := svc.GetUser(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Empty(t, stored.FirstName)
	assert.Equal(t, UserStatusDisabled, stored.Status)
}

func TestUniqueNicknameTruncatesLongNames(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t, testConfig{signUp: true})

	login := "abcdefghijklmnopqrstuvwxyz0123456789@example.com"
	first, err := svc.CreateUser(ctx, &User{Login: login}, "")
	require.NoError(t, err)
	assert.Len(t, first.Nickname, 32)

	nickname, err := UniqueNickname(ctx, svc, login)
	require.NoError(t, err)
	assert.Len(t, nickname, 32)
	assert.True(t, strings.HasSuffix(nickname, "-2"))
	assert.Regexp(t, nicknameRe, nickname)
}

func TestReachableStatuses(t *testing.T) {
	assert.ElementsMatch(t, []UserStatus{UserStatusDisabled, UserStatusActive}, ReachableStatuses(UserStatusDisabled))
	assert.ElementsMatch(t, []UserStatus{UserStatusActive, UserStatusWaiting, UserStatusDisabled}, ReachableStatuses(UserStatusActive))
}
