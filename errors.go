package authui

import (
	"fmt"

	"github.com/goliatone/go-auth-ui/auth"
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeNoDriversRegistered     = "NO_DRIVERS_REGISTERED"
	TextCodeDriverNotRegistered     = "DRIVER_NOT_REGISTERED"
	TextCodeDriverAlreadyRegistered = "DRIVER_ALREADY_REGISTERED"
	TextCodeInvalidNickname         = "INVALID_NICKNAME_SOURCE"
	TextCodePageNotFound            = "PAGE_NOT_FOUND"
)

// ErrPageNotFound hides routes that are switched off, like sign up
var ErrPageNotFound = goerrors.New("page not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodePageNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrNoDriversRegistered is returned by registry lookups before any driver was registered
var ErrNoDriversRegistered = goerrors.New("there is no authentication UI drivers registered", goerrors.CategoryNotFound).
	WithTextCode(TextCodeNoDriversRegistered).
	WithCode(goerrors.CodeNotFound)

// DriverNotRegistered is returned when a named driver is unknown
func DriverNotRegistered(name string) error {
	return goerrors.New(fmt.Sprintf("authentication UI driver '%s' is not registered", name), goerrors.CategoryNotFound).
		WithTextCode(TextCodeDriverNotRegistered).
		WithCode(goerrors.CodeNotFound).
		WithMetadata(map[string]any{"driver": name})
}

// DriverAlreadyRegistered is returned when a driver name is taken
func DriverAlreadyRegistered(name string) error {
	return goerrors.New(fmt.Sprintf("authentication UI driver '%s' is already registered", name), goerrors.CategoryConflict).
		WithTextCode(TextCodeDriverAlreadyRegistered).
		WithCode(goerrors.CodeConflict).
		WithMetadata(map[string]any{"driver": name})
}

// IsNoDriversRegistered checks for ErrNoDriversRegistered
func IsNoDriversRegistered(err error) bool {
	return auth.HasTextCode(err, TextCodeNoDriversRegistered)
}

// IsDriverNotRegistered checks for DriverNotRegistered errors
func IsDriverNotRegistered(err error) bool {
	return auth.HasTextCode(err, TextCodeDriverNotRegistered)
}

// IsDriverAlreadyRegistered checks for DriverAlreadyRegistered errors
func IsDriverAlreadyRegistered(err error) bool {
	return auth.HasTextCode(err, TextCodeDriverAlreadyRegistered)
}

// statusCode returns the HTTP status carried by err, 500 when unknown
func statusCode(err error) int {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Code > 0 {
		return richErr.Code
	}
	return goerrors.CodeInternal
}
