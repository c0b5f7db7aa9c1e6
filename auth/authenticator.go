package auth

import (
	"context"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// PasswordAuthenticatorName is the name the login/password driver uses
const PasswordAuthenticatorName = "password"

// PasswordAuthenticator signs users in with login and password
type PasswordAuthenticator struct {
	users Users
}

var _ Authenticator = (*PasswordAuthenticator)(nil)

// NewPasswordAuthenticator creates an authenticator backed by users
func NewPasswordAuthenticator(users Users) *PasswordAuthenticator {
	return &PasswordAuthenticator{users: users}
}

func (p *PasswordAuthenticator) Name() string {
	return PasswordAuthenticatorName
}

func (p *PasswordAuthenticator) SignIn(ctx context.Context, data url.Values) (*User, error) {
	login := strings.TrimSpace(data.Get("login"))
	password := data.Get("password")

	if login == "" || password == "" {
		return nil, ErrAuthentication
	}

	user, err := p.users.GetByLogin(ctx, login)
	if err != nil {
		return nil, err
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, ErrAuthentication
	}

	return user, nil
}

// SignUpPayload is the input of the password sign up form
type SignUpPayload struct {
	Login           string `form:"login" json:"login"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"password_confirm" json:"password_confirm"`
	FirstName       string `form:"first_name" json:"first_name"`
	LastName        string `form:"last_name" json:"last_name"`
	Nickname        string `form:"nickname" json:"nickname"`
}

// SignUpPayloadFromValues reads the payload out of request input
func SignUpPayloadFromValues(data url.Values) SignUpPayload {
	return SignUpPayload{
		Login:           strings.TrimSpace(data.Get("login")),
		Password:        data.Get("password"),
		ConfirmPassword: data.Get("password_confirm"),
		FirstName:       strings.TrimSpace(data.Get("first_name")),
		LastName:        strings.TrimSpace(data.Get("last_name")),
		Nickname:        strings.TrimSpace(data.Get("nickname")),
	}
}

// Validate will run validation rules
func (r SignUpPayload) Validate() *goerrors.Error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Login, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Length(0, 200)),
		validation.Field(&r.Nickname, NicknameRule),
	)
	return ValidationError("Invalid sign up data", err)
}

func (p *PasswordAuthenticator) SignUp(ctx context.Context, data url.Values) (*User, error) {
	payload := SignUpPayloadFromValues(data)
	if verr := payload.Validate(); verr != nil {
		return nil, verr
	}

	if ok, err := p.users.IsFieldUnique(ctx, "login", payload.Login, uuid.Nil); err != nil {
		return nil, err
	} else if !ok {
		return nil, goerrors.New("this login is already in use", goerrors.CategoryConflict).
			WithCode(goerrors.CodeConflict)
	}

	hash, err := HashPassword(payload.Password)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	nickname := payload.Nickname
	if nickname == "" {
		if nickname, err = UniqueNickname(ctx, p.users, payload.Login); err != nil {
			return nil, err
		}
	} else if ok, err := p.users.IsFieldUnique(ctx, "nickname", nickname, uuid.Nil); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrNicknameTaken
	}

	return &User{
		Login:        payload.Login,
		Email:        payload.Login,
		Nickname:     nickname,
		PasswordHash: hash,
		FirstName:    payload.FirstName,
		LastName:     payload.LastName,
	}, nil
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return goerrors.New("values must match", goerrors.CategoryValidation)
		}
		return nil
	}
}
