package authui

import (
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

// Flasher queues messages shown on the next page
type Flasher interface {
	Error(ctx router.Context, message string) router.Context
	Success(ctx router.Context, message string) router.Context
}

type routerFlash struct{}

func (routerFlash) Error(ctx router.Context, message string) router.Context {
	return flash.WithError(ctx, router.ViewContext{
		"error_message":  message,
		"system_message": message,
	})
}

func (routerFlash) Success(ctx router.Context, message string) router.Context {
	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": message,
	})
}
