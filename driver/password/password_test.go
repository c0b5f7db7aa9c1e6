package password_test

import (
	"context"
	"net/url"
	"testing"

	authui "github.com/goliatone/go-auth-ui"
	"github.com/goliatone/go-auth-ui/auth"
	"github.com/goliatone/go-auth-ui/driver/password"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverName(t *testing.T) {
	d := password.New()
	assert.Equal(t, auth.PasswordAuthenticatorName, d.Name())
	assert.Equal(t, "Login and password", d.Description())

	d = password.New(password.WithDescription("Email"))
	assert.Equal(t, "Email", d.Description())
}

func TestSignInFormPrefillsLogin(t *testing.T) {
	ctx := router.NewMockContext()
	ctx.QueriesM["login"] = "ada@example.com"

	f, err := password.New().SignInForm(ctx, authui.FormOptions{Name: "auth-ui-sign-in-password"})
	require.NoError(t, err)

	assert.Equal(t, "auth-ui-sign-in-password", f.Name)
	assert.Equal(t, "ada@example.com", f.StringValue("login"))
	assert.True(t, f.Has("password"))

	errs := f.Validate()
	assert.Contains(t, errs, "password")
	assert.NotContains(t, errs, "login")
}

func TestSignUpFormPasswordConfirmation(t *testing.T) {
	f, err := password.New().SignUpForm(router.NewMockContext(), authui.FormOptions{Name: "auth-ui-sign-up-password"})
	require.NoError(t, err)

	require.NoError(t, f.Fill(url.Values{
		"first_name":       {"Ada"},
		"login":            {"ada@example.com"},
		"password":         {"secret-password"},
		"password_confirm": {"other-password"},
	}))

	errs := f.Validate()
	assert.Equal(t, map[string]string{"password_confirm": "passwords do not match"}, errs)

	require.NoError(t, f.Fill(url.Values{"password_confirm": {"secret-password"}}))
	assert.Nil(t, f.Validate())
}

func TestSignUpFormRules(t *testing.T) {
	f, err := password.New().SignUpForm(router.NewMockContext(), authui.FormOptions{})
	require.NoError(t, err)

	require.NoError(t, f.Fill(url.Values{
		"first_name":       {"Ada"},
		"login":            {"not-an-email"},
		"nickname":         {"Bad Nick"},
		"password":         {"short"},
		"password_confirm": {"short"},
	}))

	errs := f.Validate()
	assert.Contains(t, errs, "login")
	assert.Contains(t, errs, "nickname")
	assert.Contains(t, errs, "password")
	assert.NotContains(t, errs, "first_name")
}

func TestRestoreAccountForm(t *testing.T) {
	f, err := password.New().RestoreAccountForm(router.NewMockContext(), authui.FormOptions{})
	require.NoError(t, err)

	assert.True(t, f.Has("login"))
	assert.Contains(t, f.Validate(), "login")

	require.NoError(t, f.Fill(url.Values{"login": {"ada@example.com"}}))
	assert.Nil(t, f.Validate())
}

type takenNicknames map[string]bool

func (n takenNicknames) IsFieldUnique(_ context.Context, field, value string, _ uuid.UUID) (bool, error) {
	return field != "nickname" || !n[value], nil
}

func TestSignUpFormRejectsTakenNickname(t *testing.T) {
	d := password.New(password.WithFieldChecker(takenNicknames{"ada": true}))
	f, err := d.SignUpForm(router.NewMockContext(), authui.FormOptions{})
	require.NoError(t, err)

	values := url.Values{
		"first_name":       {"Ada"},
		"login":            {"ada@example.com"},
		"nickname":         {"ada"},
		"password":         {"secret-password"},
		"password_confirm": {"secret-password"},
	}
	require.NoError(t, f.Fill(values))
	assert.Equal(t, map[string]string{"nickname": "this nickname is already in use"}, f.Validate())

	require.NoError(t, f.Fill(url.Values{"nickname": {"countess"}}))
	assert.Nil(t, f.Validate())
}

func TestSignUpFormKeepsPasswordSpaces(t *testing.T) {
	f, err := password.New().SignUpForm(router.NewMockContext(), authui.FormOptions{})
	require.NoError(t, err)

	require.NoError(t, f.Fill(url.Values{
		"password":         {"  secret-password  "},
		"password_confirm": {"  secret-password  "},
	}))
	assert.Equal(t, "  secret-password  ", f.StringValue("password"))
	assert.NotContains(t, f.Validate(), "password_confirm")
}
