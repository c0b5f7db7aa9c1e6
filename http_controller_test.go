package authui_test

import (
	"context"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"testing"

	authui "github.com/goliatone/go-auth-ui"
	"github.com/goliatone/go-auth-ui/auth"
	"github.com/goliatone/go-auth-ui/form"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func formToken(t *testing.T, app *testApp, formName, session string) string {
	t.Helper()
	token, err := app.controller.Tokens.Generate(formName, session)
	require.NoError(t, err)
	return token
}

func signInPost(t *testing.T, app *testApp, values url.Values) *testContext {
	t.Helper()
	if values.Get(form.TokenField) == "" {
		values.Set(form.TokenField, formToken(t, app, "auth-ui-sign-in-password", ""))
	}
	return newTestContext("POST", "/auth/sign-in/password/post").
		withParam("driver", auth.PasswordAuthenticatorName).
		withForm(values)
}

func TestSignInPageRendersDriverForm(t *testing.T) {
	app := newTestApp(t, testConfig())
	ctx := newTestContext("GET", "/auth/sign-in?__redirect=/articles")

	require.NoError(t, app.controller.SignIn(ctx))
	require.NoError(t, app.handled)

	assert.Equal(t, app.controller.Views.SignIn, ctx.view)
	assert.Equal(t, "/articles", ctx.viewData["redirect"])
	assert.Equal(t, "/auth/sign-up/password?__redirect=%2Farticles", ctx.viewData["sign_up_url"])
	assert.Equal(t, "/auth/restore/password?__redirect=%2Farticles", ctx.viewData["restore_url"])

	html, ok := ctx.viewData["form"].(template.HTML)
	require.True(t, ok)
	assert.Contains(t, string(html), `action="/auth/sign-in/password/post"`)
	assert.Contains(t, string(html), form.TokenField)
	assert.Contains(t, string(html), form.RedirectField)

	user, ok := ctx.viewData[authui.CurrentUserKey].(*auth.User)
	require.True(t, ok)
	assert.True(t, user.IsAnonymous())
}

func TestSignInPageRejectsForeignRedirect(t *testing.T) {
	app := newTestApp(t, testConfig())
	ctx := newTestContext("GET", "/auth/sign-in?__redirect=https://evil.example.com")

	require.NoError(t, app.controller.SignIn(ctx))
	assert.Equal(t, "/", ctx.viewData["redirect"])
}

func TestSignInPageRedirectsAuthenticatedUser(t *testing.T) {
	app := newTestApp(t, testConfig())
	user := app.createUser(t, "ada@example.com", false)

	ctx := newTestContext("GET", "/auth/sign-in?__redirect=/articles").withUser(user)

	require.NoError(t, app.controller.SignIn(ctx))
	assert.Equal(t, "/articles", ctx.redirect)
	assert.Equal(t, http.StatusFound, ctx.redirectStatus)
	assert.Empty(t, ctx.view)
}

func TestSignInPageUnknownDriver(t *testing.T) {
	app := newTestApp(t, testConfig())
	ctx := newTestContext("GET", "/auth/sign-in/oauth").withParam("driver", "oauth")

	require.NoError(t, app.controller.SignIn(ctx))
	assert.True(t, authui.IsDriverNotRegistered(app.handled))
}

func TestSignInSubmit(t *testing.T) {
	app := newTestApp(t, testConfig())
	user := app.createUser(t, "ada@example.com", false)

	ctx := signInPost(t, app, url.Values{
		"login":            {"ada@example.com"},
		"password":         {"secret-password"},
		form.RedirectField: {"/articles"},
	})

	require.NoError(t, app.controller.SignInSubmit(ctx))
	require.NoError(t, app.handled)

	assert.Equal(t, "/articles", ctx.redirect)
	assert.Equal(t, http.StatusSeeOther, ctx.redirectStatus)

	cookie := ctx.lastCookie(app.cfg.GetCookieName())
	require.NotNil(t, cookie)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HTTPOnly)

	found, err := app.svc.UserFromSession(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, user.ID, authui.UserFromContext(ctx).ID)
}

func TestSignInSubmitWrongPassword(t *testing.T) {
	app := newTestApp(t, testConfig())
	app.createUser(t, "ada@example.com", false)

	ctx := signInPost(t, app, url.Values{
		"login":            {"ada@example.com"},
		"password":         {"wrong-password"},
		form.RedirectField: {"/articles"},
	})

	require.NoError(t, app.controller.SignInSubmit(ctx))

	assert.Equal(t, flashMessage{Kind: "error", Message: "Authentication error"}, app.flash.last())
	assert.Equal(t, "/auth/sign-in/password?__redirect=%2Farticles", ctx.redirect)
	assert.Equal(t, http.StatusSeeOther, ctx.redirectStatus)
	assert.Nil(t, ctx.lastCookie(app.cfg.GetCookieName()))
}

func TestSignInSubmitInactiveUser(t *testing.T) {
	app := newTestApp(t, testConfig())
	admin := app.createUser(t, "admin@example.com", true)
	user := app.createUser(t, "ada@example.com", false)

	_, err := app.svc.ChangeStatus(context.Background(), admin, user, auth.UserStatusDisabled)
	require.NoError(t, err)

	ctx := signInPost(t, app, url.Values{
		"login":    {"ada@example.com"},
		"password": {"secret-password"},
	})

	require.NoError(t, app.controller.SignInSubmit(ctx))
	assert.Equal(t, "Your account is not active", app.flash.last().Message)
}

func TestSignInSubmitRejectsBadToken(t *testing.T) {
	app := newTestApp(t, testConfig())
	app.createUser(t, "ada@example.com", false)

	ctx := signInPost(t, app, url.Values{
		"login":        {"ada@example.com"},
		"password":     {"secret-password"},
		form.TokenField: {formToken(t, app, "auth-ui-sign-up-password", "")},
	})

	require.NoError(t, app.controller.SignInSubmit(ctx))
	assert.Equal(t, "error", app.flash.last().Kind)
	assert.Equal(t, "form token mismatch", app.flash.last().Message)
	assert.Nil(t, ctx.lastCookie(app.cfg.GetCookieName()))
}

func TestSignInSubmitValidation(t *testing.T) {
	app := newTestApp(t, testConfig())

	ctx := signInPost(t, app, url.Values{
		"login": {"not-an-email"},
	})

	require.NoError(t, app.controller.SignInSubmit(ctx))

	msg := app.flash.last().Message
	assert.Contains(t, msg, "login:")
	assert.Contains(t, msg, "password:")
	assert.Equal(t, "/auth/sign-in/password?__redirect=%2F", ctx.redirect)
}

func signUpValues(login string) url.Values {
	return url.Values{
		"first_name":       {"Ada"},
		"last_name":        {"Lovelace"},
		"login":            {login},
		"password":         {"secret-password"},
		"password_confirm": {"secret-password"},
		form.RedirectField: {"/welcome"},
	}
}

func signUpPost(t *testing.T, app *testApp, values url.Values) *testContext {
	t.Helper()
	values.Set(form.TokenField, formToken(t, app, "auth-ui-sign-up-password", ""))
	return newTestContext("POST", "/auth/sign-up/password/post").
		withParam("driver", auth.PasswordAuthenticatorName).
		withForm(values)
}

func TestSignUpSubmitStartsSession(t *testing.T) {
	app := newTestApp(t, testConfig())
	ctx := signUpPost(t, app, signUpValues("ada@example.com"))

	require.NoError(t, app.controller.SignUpSubmit(ctx))
	require.NoError(t, app.handled)

	assert.Equal(t, "/welcome", ctx.redirect)
	require.NotNil(t, ctx.lastCookie(app.cfg.GetCookieName()))

	user, err := app.svc.GetUserByLogin(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ada", user.Nickname)
	assert.Equal(t, auth.UserStatusActive, user.Status)
}

func TestSignUpSubmitSameLocalPart(t *testing.T) {
	app := newTestApp(t, testConfig())

	require.NoError(t, app.controller.SignUpSubmit(signUpPost(t, app, signUpValues("john@a.com"))))
	require.NoError(t, app.handled)

	ctx := signUpPost(t, app, signUpValues("john@b.com"))
	require.NoError(t, app.controller.SignUpSubmit(ctx))
	require.NoError(t, app.handled)
	assert.Equal(t, "/welcome", ctx.redirect)

	user, err := app.svc.GetUserByLogin(context.Background(), "john@b.com")
	require.NoError(t, err)
	assert.Equal(t, "john-2", user.Nickname)
}

func TestSignUpSubmitTakenNickname(t *testing.T) {
	app := newTestApp(t, testConfig())
	app.createUser(t, "ada@example.com", false)

	values := signUpValues("ada@other.com")
	values.Set("nickname", "ada")
	ctx := signUpPost(t, app, values)

	require.NoError(t, app.controller.SignUpSubmit(ctx))
	assert.Equal(t, "error", app.flash.last().Kind)
	assert.Contains(t, app.flash.last().Message, "nickname:")
	assert.Equal(t, "/auth/sign-up/password?__redirect=%2Fwelcome", ctx.redirect)

	_, err := app.svc.GetUserByLogin(context.Background(), "ada@other.com")
	assert.True(t, auth.IsUserNotFound(err))
}

func TestSignUpSubmitWithConfirmation(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.SignUpConfirmation = true
	app := newTestApp(t, cfg)

	ctx := signUpPost(t, app, signUpValues("ada@example.com"))

	require.NoError(t, app.controller.SignUpSubmit(ctx))

	assert.Equal(t, flashMessage{Kind: "success", Message: "Please check your email to confirm your registration"}, app.flash.last())
	assert.Equal(t, "/welcome", ctx.redirect)
	assert.Nil(t, ctx.lastCookie(app.cfg.GetCookieName()))

	user, err := app.svc.GetUserByLogin(context.Background(), "ada@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, user.ConfirmationHash)

	confirm := newTestContext("GET", "/auth/sign-up/confirm/"+user.ConfirmationHash).
		withParam("code", user.ConfirmationHash)
	require.NoError(t, app.controller.ConfirmSignUp(confirm))
	require.NoError(t, app.handled)
	assert.Equal(t, "/auth/sign-in/password", confirm.redirect)

	user, err = app.svc.GetUserByLogin(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, auth.UserStatusActive, user.Status)
}

func TestSignUpSubmitPasswordMismatch(t *testing.T) {
	app := newTestApp(t, testConfig())

	values := signUpValues("ada@example.com")
	values.Set("password_confirm", "another-password")
	ctx := signUpPost(t, app, values)

	require.NoError(t, app.controller.SignUpSubmit(ctx))

	assert.Contains(t, app.flash.last().Message, "password_confirm")
	assert.Equal(t, "/auth/sign-up/password?__redirect=%2Fwelcome", ctx.redirect)

	_, err := app.svc.GetUserByLogin(context.Background(), "ada@example.com")
	assert.True(t, auth.IsUserNotFound(err))
}

func TestSignUpDisabledIsNotFound(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.SignUpEnabled = false
	app := newTestApp(t, cfg)

	require.NoError(t, app.controller.SignUp(newTestContext("GET", "/auth/sign-up")))
	assert.ErrorIs(t, app.handled, authui.ErrPageNotFound)

	app.handled = nil
	ctx := signUpPost(t, app, signUpValues("ada@example.com"))
	require.NoError(t, app.controller.SignUpSubmit(ctx))
	assert.ErrorIs(t, app.handled, authui.ErrPageNotFound)
}

func TestSignInPageHidesSignUpLinkWhenDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.SignUpEnabled = false
	app := newTestApp(t, cfg)

	ctx := newTestContext("GET", "/auth/sign-in")
	require.NoError(t, app.controller.SignIn(ctx))

	_, ok := ctx.viewData["sign_up_url"]
	assert.False(t, ok)
}

func TestConfirmSignUpInvalidCode(t *testing.T) {
	app := newTestApp(t, testConfig())

	ctx := newTestContext("GET", "/auth/sign-up/confirm/nope").withParam("code", "nope")
	require.NoError(t, app.controller.ConfirmSignUp(ctx))
	assert.True(t, auth.IsInvalidConfirmationCode(app.handled))
}

func restorePost(t *testing.T, app *testApp, login string) *testContext {
	t.Helper()
	return newTestContext("POST", "/auth/restore/password/post").
		withParam("driver", auth.PasswordAuthenticatorName).
		withForm(url.Values{
			"login":         {login},
			form.TokenField: {formToken(t, app, "auth-ui-restore-password", "")},
		})
}

func TestRestoreSubmitChangesPassword(t *testing.T) {
	app := newTestApp(t, testConfig())
	user := app.createUser(t, "ada@example.com", false)

	ctx := restorePost(t, app, "ada@example.com")
	require.NoError(t, app.controller.RestoreSubmit(ctx))

	assert.Equal(t, flashMessage{Kind: "success", Message: "A new password has been sent to your email"}, app.flash.last())
	assert.Equal(t, "/auth/sign-in/password?__redirect=%2F", ctx.redirect)

	stored, err := app.svc.GetUser(context.Background(), user.ID.String())
	require.NoError(t, err)
	assert.NotEqual(t, user.PasswordHash, stored.PasswordHash)
}

func TestRestoreSubmitUnknownLogin(t *testing.T) {
	app := newTestApp(t, testConfig())

	ctx := restorePost(t, app, "nobody@example.com")
	require.NoError(t, app.controller.RestoreSubmit(ctx))

	assert.Equal(t, "success", app.flash.last().Kind)
	assert.True(t, strings.HasPrefix(ctx.redirect, "/auth/sign-in/password"))
}

func TestSignOut(t *testing.T) {
	app := newTestApp(t, testConfig())
	user := app.createUser(t, "ada@example.com", false)

	ctx := newTestContext("GET", "/auth/sign-out?__redirect=/bye").withUser(user)
	require.NoError(t, app.controller.SignOut(ctx))

	assert.Equal(t, "/bye", ctx.redirect)
	assert.True(t, authui.UserFromContext(ctx).IsAnonymous())

	cookie := ctx.lastCookie(app.cfg.GetCookieName())
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
}

func TestProfileView(t *testing.T) {
	app := newTestApp(t, testConfig())
	owner := app.createUser(t, "ada@example.com", false)
	viewer := app.createUser(t, "bob@example.com", false)

	ctx := newTestContext("GET", "/auth/user/ada").withParam("nickname", "ada").withUser(viewer)
	require.NoError(t, app.controller.ProfileView(ctx))
	require.NoError(t, app.handled)

	assert.Equal(t, app.controller.Views.Profile, ctx.view)
	panel, ok := ctx.viewData["panel"].(template.HTML)
	require.True(t, ok)
	assert.Contains(t, string(panel), "@ada")
	assert.Contains(t, string(panel), "auth-ui-follow-button")
	assert.NotContains(t, string(panel), "auth-ui-edit")

	owner.IsPublic = false
	_, err := app.svc.SaveUser(context.Background(), owner, owner)
	require.NoError(t, err)

	ctx = newTestContext("GET", "/auth/user/ada").withParam("nickname", "ada").withUser(viewer)
	require.NoError(t, app.controller.ProfileView(ctx))
	assert.True(t, auth.IsUserNotFound(app.handled))

	app.handled = nil
	ctx = newTestContext("GET", "/auth/user/ada").withParam("nickname", "ada").withUser(owner)
	require.NoError(t, app.controller.ProfileView(ctx))
	require.NoError(t, app.handled)
	panel = ctx.viewData["panel"].(template.HTML)
	assert.Contains(t, string(panel), "/auth/user/ada/edit")
}

func TestProfileEditSubmit(t *testing.T) {
	app := newTestApp(t, testConfig())
	owner := app.createUser(t, "ada@example.com", false)

	values := url.Values{
		"nickname":      {"countess"},
		"first_name":    {"Ada"},
		"last_name":     {"Lovelace"},
		"email":         {"ada@example.com"},
		"phone":         {"+1 650-253-0000"},
		"urls":          {"https://example.com/ada"},
		"is_public":     {"on"},
		"status":        {"disabled"},
		form.TokenField: {formToken(t, app, "auth-ui-user", owner.ID.String())},
	}
	ctx := newTestContext("POST", "/auth/user/ada/edit").
		withParam("nickname", "ada").
		withUser(owner).
		withForm(values)

	require.NoError(t, app.controller.ProfileEditSubmit(ctx))
	require.NoError(t, app.handled)

	assert.Equal(t, flashMessage{Kind: "success", Message: "Profile saved"}, app.flash.last())
	assert.Equal(t, "/auth/user/countess", ctx.redirect)

	stored, err := app.svc.GetUser(context.Background(), owner.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "countess", stored.Nickname)
	assert.Equal(t, "Lovelace", stored.LastName)
	assert.Equal(t, "+16502530000", stored.Phone)
	assert.Equal(t, []string{"https://example.com/ada"}, stored.URLs)
	assert.Equal(t, auth.UserStatusActive, stored.Status, "owners can not change their status")
}

func profileEditPost(t *testing.T, app *testApp, owner *auth.User, values url.Values) *testContext {
	t.Helper()
	values.Set(form.TokenField, formToken(t, app, "auth-ui-user", owner.ID.String()))
	return newTestContext("POST", "/auth/user/"+owner.Nickname+"/edit").
		withParam("nickname", owner.Nickname).
		withUser(owner).
		withForm(values)
}

func TestProfileEditSubmitPasswordKeepsSpaces(t *testing.T) {
	app := newTestApp(t, testConfig())
	owner := app.createUser(t, "ada@example.com", false)

	ctx := profileEditPost(t, app, owner, url.Values{
		"nickname":   {"ada"},
		"first_name": {"Ada"},
		"email":      {"ada@example.com"},
		"password":   {"  new-secret-1  "},
	})

	require.NoError(t, app.controller.ProfileEditSubmit(ctx))
	require.NoError(t, app.handled)
	assert.Equal(t, "/auth/user/ada", ctx.redirect)

	_, err := app.svc.SignIn(context.Background(), auth.PasswordAuthenticatorName, url.Values{
		"login":    {"ada@example.com"},
		"password": {"  new-secret-1  "},
	})
	assert.NoError(t, err)

	_, err = app.svc.SignIn(context.Background(), auth.PasswordAuthenticatorName, url.Values{
		"login":    {"ada@example.com"},
		"password": {"new-secret-1"},
	})
	assert.True(t, auth.IsAuthenticationError(err))
}

func TestProfileEditSubmitShortPassword(t *testing.T) {
	app := newTestApp(t, testConfig())
	owner := app.createUser(t, "ada@example.com", false)

	ctx := profileEditPost(t, app, owner, url.Values{
		"nickname":   {"ada"},
		"first_name": {"Ada"},
		"email":      {"ada@example.com"},
		"password":   {"short"},
	})

	require.NoError(t, app.controller.ProfileEditSubmit(ctx))
	require.NoError(t, app.handled)
	assert.Equal(t, http.StatusBadRequest, ctx.status)

	errs, ok := ctx.viewData["errors"].(map[string]string)
	require.True(t, ok)
	assert.Contains(t, errs, "password")

	_, err := app.svc.SignIn(context.Background(), auth.PasswordAuthenticatorName, url.Values{
		"login":    {"ada@example.com"},
		"password": {"secret-password"},
	})
	assert.NoError(t, err)
}

func TestProfileEditSubmitValidationRendersForm(t *testing.T) {
	app := newTestApp(t, testConfig())
	owner := app.createUser(t, "ada@example.com", false)
	app.createUser(t, "bob@example.com", false)

	ctx := newTestContext("POST", "/auth/user/ada/edit").
		withParam("nickname", "ada").
		withUser(owner).
		withForm(url.Values{
			"nickname":      {"bob"},
			"first_name":    {"Ada"},
			"email":         {"ada@example.com"},
			form.TokenField: {formToken(t, app, "auth-ui-user", owner.ID.String())},
		})

	require.NoError(t, app.controller.ProfileEditSubmit(ctx))
	require.NoError(t, app.handled)

	assert.Equal(t, http.StatusBadRequest, ctx.status)
	assert.Equal(t, app.controller.Views.ProfileEdit, ctx.view)
	errs, ok := ctx.viewData["errors"].(map[string]string)
	require.True(t, ok)
	assert.Contains(t, errs, "nickname")
}

func TestProfileEditForbiddenForOtherUsers(t *testing.T) {
	app := newTestApp(t, testConfig())
	app.createUser(t, "ada@example.com", false)
	other := app.createUser(t, "bob@example.com", false)

	ctx := newTestContext("GET", "/auth/user/ada/edit").withParam("nickname", "ada").withUser(other)
	require.NoError(t, app.controller.ProfileEdit(ctx))
	assert.True(t, auth.IsForbidden(app.handled))
}

func TestAdminCreatesUser(t *testing.T) {
	app := newTestApp(t, testConfig())
	admin := app.createUser(t, "admin@example.com", true)

	get := newTestContext("GET", "/auth/admin/users/0").withParam("id", authui.NewRecordID).withUser(admin)
	require.NoError(t, app.controller.UserEdit(get))
	require.NoError(t, app.handled)
	assert.Equal(t, app.controller.Views.UserEdit, get.view)

	ctx := newTestContext("POST", "/auth/admin/users/0").
		withParam("id", authui.NewRecordID).
		withUser(admin).
		withForm(url.Values{
			"login":         {"carol@example.com"},
			"nickname":      {"carol"},
			"first_name":    {"Carol"},
			"email":         {"carol@example.com"},
			"password":      {"carol-password"},
			"status":        {"active"},
			"roles":         {"user", "admin"},
			form.TokenField: {formToken(t, app, "auth-ui-user", admin.ID.String())},
		})

	require.NoError(t, app.controller.UserSubmit(ctx))
	require.NoError(t, app.handled)
	assert.Equal(t, "/auth/user/carol", ctx.redirect)

	created, err := app.svc.GetUserByLogin(context.Background(), "carol@example.com")
	require.NoError(t, err)
	assert.True(t, created.IsAdmin())
	assert.Equal(t, auth.UserStatusActive, created.Status)

	_, err = app.svc.SignIn(context.Background(), auth.PasswordAuthenticatorName, url.Values{
		"login":    {"carol@example.com"},
		"password": {"carol-password"},
	})
	assert.NoError(t, err)
}

func TestAdminUserFormRejectsUnreachableStatus(t *testing.T) {
	app := newTestApp(t, testConfig())
	admin := app.createUser(t, "admin@example.com", true)
	user := app.createUser(t, "ada@example.com", false)

	_, err := app.svc.ChangeStatus(context.Background(), admin, user, auth.UserStatusDisabled)
	require.NoError(t, err)

	id := user.ID.String()
	ctx := newTestContext("POST", "/auth/admin/users/"+id).
		withParam("id", id).
		withUser(admin).
		withForm(url.Values{
			"login":         {"ada@example.com"},
			"nickname":      {"ada"},
			"first_name":    {"Renamed"},
			"email":         {"ada@example.com"},
			"status":        {string(auth.UserStatusWaiting)},
			"roles":         {"user"},
			form.TokenField: {formToken(t, app, "auth-ui-user", admin.ID.String())},
		})

	require.NoError(t, app.controller.UserSubmit(ctx))
	require.NoError(t, app.handled)
	assert.Equal(t, http.StatusBadRequest, ctx.status)

	errs, ok := ctx.viewData["errors"].(map[string]string)
	require.True(t, ok)
	assert.Contains(t, errs, "status")

	stored, err := app.svc.GetUser(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Ada", stored.FirstName)
	assert.Equal(t, auth.UserStatusDisabled, stored.Status)
}

func TestUsersIndexPicksUser(t *testing.T) {
	app := newTestApp(t, testConfig())
	admin := app.createUser(t, "admin@example.com", true)
	ada := app.createUser(t, "ada@example.com", false)

	ctx := newTestContext("GET", "/auth/admin/users").withUser(admin)
	require.NoError(t, app.controller.UsersIndex(ctx))
	require.NoError(t, app.handled)

	assert.Equal(t, app.controller.Views.Users, ctx.view)
	assert.Equal(t, "/auth/admin/users/0", ctx.viewData["new_url"])
	html, ok := ctx.viewData["form"].(template.HTML)
	require.True(t, ok)
	assert.Contains(t, string(html), `method="get"`)
	assert.Contains(t, string(html), `value="`+ada.ID.String()+`"`)
	assert.Contains(t, string(html), "Ada (ada@example.com)")

	pick := newTestContext("GET", "/auth/admin/users?user="+ada.ID.String()).withUser(admin)
	require.NoError(t, app.controller.UsersIndex(pick))
	require.NoError(t, app.handled)
	assert.Equal(t, "/auth/admin/users/"+ada.ID.String(), pick.redirect)
	assert.Equal(t, http.StatusFound, pick.redirectStatus)

	missing := newTestContext("GET", "/auth/admin/users?user=00000000-0000-0000-0000-000000000001").withUser(admin)
	require.NoError(t, app.controller.UsersIndex(missing))
	assert.True(t, auth.IsUserNotFound(app.handled))
}

func TestUsersIndexIsAdminOnly(t *testing.T) {
	app := newTestApp(t, testConfig())
	user := app.createUser(t, "ada@example.com", false)

	ctx := newTestContext("GET", "/auth/admin/users").withUser(user)
	require.NoError(t, app.controller.UsersIndex(ctx))
	assert.True(t, auth.IsForbidden(app.handled))
}

func TestUserEditNewIsAdminOnly(t *testing.T) {
	app := newTestApp(t, testConfig())
	user := app.createUser(t, "ada@example.com", false)

	ctx := newTestContext("GET", "/auth/admin/users/0").withParam("id", authui.NewRecordID).withUser(user)
	require.NoError(t, app.controller.UserEdit(ctx))
	assert.True(t, auth.IsForbidden(app.handled))
}

func TestSettingsSubmitTogglesSignUp(t *testing.T) {
	app := newTestApp(t, testConfig())
	admin := app.createUser(t, "admin@example.com", true)
	user := app.createUser(t, "ada@example.com", false)

	ctx := newTestContext("GET", "/auth/admin/settings").withUser(user)
	require.NoError(t, app.controller.SettingsEdit(ctx))
	assert.True(t, auth.IsForbidden(app.handled))
	app.handled = nil

	require.True(t, app.svc.SignUpEnabled())

	ctx = newTestContext("POST", "/auth/admin/settings").
		withUser(admin).
		withForm(url.Values{
			"ui_driver":     {"password"},
			form.TokenField: {formToken(t, app, "auth-ui-settings", admin.ID.String())},
		})
	require.NoError(t, app.controller.SettingsSubmit(ctx))
	require.NoError(t, app.handled)

	assert.Equal(t, "Settings saved", app.flash.last().Message)
	assert.False(t, app.svc.SignUpEnabled())
	assert.False(t, app.controller.Settings.SignUpEnabled())
}

func TestRoleSubmit(t *testing.T) {
	app := newTestApp(t, testConfig())
	admin := app.createUser(t, "admin@example.com", true)

	app.svc.Permissions().DefineGroup("article", "Articles")
	app.svc.Permissions().Define("article.create", "Create articles", "article")
	app.svc.Permissions().Define("article.delete", "Delete articles", "article")

	ctx := newTestContext("POST", "/auth/admin/roles/0").
		withParam("id", authui.NewRecordID).
		withUser(admin).
		withForm(url.Values{
			"name":                {"editor"},
			"description":         {"Editor"},
			"permissions_article": {"article.create"},
			form.TokenField:       {formToken(t, app, "auth-ui-role", admin.ID.String())},
		})

	require.NoError(t, app.controller.RoleSubmit(ctx))
	require.NoError(t, app.handled)
	assert.Equal(t, "/auth/admin/roles", ctx.redirect)

	roles, err := app.svc.Roles(context.Background())
	require.NoError(t, err)

	var editor *auth.Role
	for _, r := range roles {
		if r.Name == "editor" {
			editor = r
		}
	}
	require.NotNil(t, editor)
	assert.Equal(t, []string{"article.create"}, editor.Permissions)

	index := newTestContext("GET", "/auth/admin/roles").withUser(admin)
	require.NoError(t, app.controller.RolesIndex(index))
	assert.Equal(t, app.controller.Views.Roles, index.view)
	assert.Equal(t, "/auth/admin/roles/0", index.viewData["new_url"])
}

func TestDefaultErrorHandler(t *testing.T) {
	cfg := testConfig()
	svc := setupService(t, cfg)
	c := authui.NewController(svc, newRegistry(t, cfg, svc), cfg, authui.WithControllerLogger(nopLogger{}))

	ctx := newTestContext("GET", "/auth/user/nobody").withParam("nickname", "nobody")
	require.NoError(t, c.ProfileView(ctx))

	assert.Equal(t, http.StatusNotFound, ctx.status)
	assert.Equal(t, c.Views.NotFound, ctx.view)
	assert.Equal(t, http.StatusNotFound, ctx.viewData["status"])

	ctx = newTestContext("GET", "/boom")
	require.NoError(t, c.ErrorHandler(ctx, goerrors.New("boom", goerrors.CategoryInternal)))
	assert.Equal(t, http.StatusInternalServerError, ctx.status)
	assert.Equal(t, c.Views.Error, ctx.view)
}
