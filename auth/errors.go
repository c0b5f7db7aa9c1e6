package auth

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeAuthentication      = "AUTHENTICATION_ERROR"
	TextCodeUserNotFound        = "USER_NOT_FOUND"
	TextCodeUserNotActive       = "USER_NOT_ACTIVE"
	TextCodeRoleNotFound        = "ROLE_NOT_FOUND"
	TextCodeSignUpDisabled      = "SIGN_UP_DISABLED"
	TextCodeInvalidConfirmation = "INVALID_CONFIRMATION_CODE"
	TextCodeForbidden           = "FORBIDDEN"
	TextCodeEmptyString         = "EMPTY_STRING"
	TextCodeAuthenticatorNotSet = "AUTHENTICATOR_NOT_REGISTERED"
	TextCodeInvalidTransition   = "INVALID_USER_STATE_TRANSITION"
	TextCodeNicknameTaken       = "NICKNAME_TAKEN"
)

// ErrAuthentication is returned when credentials do not match
var ErrAuthentication = goerrors.New("authentication error", goerrors.CategoryAuth).
	WithTextCode(TextCodeAuthentication).
	WithCode(goerrors.CodeUnauthorized)

// ErrUserNotFound is returned when a user lookup fails
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrUserNotActive is returned when a valid user is not allowed to sign in
var ErrUserNotActive = goerrors.New("user is not active", goerrors.CategoryAuthz).
	WithTextCode(TextCodeUserNotActive).
	WithCode(goerrors.CodeForbidden)

// ErrRoleNotFound is returned when a role lookup fails
var ErrRoleNotFound = goerrors.New("role not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeRoleNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrSignUpDisabled is returned when sign up is turned off
var ErrSignUpDisabled = goerrors.New("sign up is disabled", goerrors.CategoryAuthz).
	WithTextCode(TextCodeSignUpDisabled).
	WithCode(goerrors.CodeForbidden)

// ErrInvalidConfirmationCode is returned for unknown sign up confirmation codes
var ErrInvalidConfirmationCode = goerrors.New("invalid confirmation code", goerrors.CategoryNotFound).
	WithTextCode(TextCodeInvalidConfirmation).
	WithCode(goerrors.CodeNotFound)

// ErrForbidden is returned when the actor lacks the rights for an operation
var ErrForbidden = goerrors.New("forbidden", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("value must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyString).
	WithCode(goerrors.CodeBadRequest)

// ErrAuthenticatorNotRegistered is returned when no authenticator matches a driver
var ErrAuthenticatorNotRegistered = goerrors.New("authenticator not registered", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAuthenticatorNotSet).
	WithCode(goerrors.CodeNotFound)

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid user state transition", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrNicknameTaken is returned when another user already has the nickname
var ErrNicknameTaken = ValidationError("nickname is already in use", validation.Errors{
	"nickname": errors.New("this nickname is already in use"),
}).WithTextCode(TextCodeNicknameTaken)

// HasTextCode reports whether err carries the given text code
func HasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// IsAuthenticationError checks for failed credentials
func IsAuthenticationError(err error) bool {
	return HasTextCode(err, TextCodeAuthentication)
}

// IsUserNotFound checks for missing users
func IsUserNotFound(err error) bool {
	return HasTextCode(err, TextCodeUserNotFound)
}

// IsUserNotActive checks for users that can not sign in
func IsUserNotActive(err error) bool {
	return HasTextCode(err, TextCodeUserNotActive)
}

// IsRoleNotFound checks for missing roles
func IsRoleNotFound(err error) bool {
	return HasTextCode(err, TextCodeRoleNotFound)
}

// IsForbidden checks for access errors
func IsForbidden(err error) bool {
	return HasTextCode(err, TextCodeForbidden)
}

// IsInvalidConfirmationCode checks for unknown confirmation codes
func IsInvalidConfirmationCode(err error) bool {
	return HasTextCode(err, TextCodeInvalidConfirmation)
}

// IsSignUpDisabled checks for disabled sign up
func IsSignUpDisabled(err error) bool {
	return HasTextCode(err, TextCodeSignUpDisabled)
}

// IsNicknameTaken checks for nickname collisions
func IsNicknameTaken(err error) bool {
	return HasTextCode(err, TextCodeNicknameTaken)
}

// ValidationError converts ozzo field errors into a validation error, the
// field messages are also kept in the "fields" metadata
func ValidationError(message string, err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	es, ok := err.(validation.Errors)
	if !ok {
		return goerrors.Wrap(err, goerrors.CategoryValidation, message).
			WithCode(goerrors.CodeBadRequest)
	}

	fields := make(map[string]string, len(es))
	for field, ferr := range es {
		fields[field] = ferr.Error()
	}
	return goerrors.NewValidationFromMap(message, fields).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{"fields": fields})
}
