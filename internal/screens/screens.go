// Package screens holds the per-screen state and behaviour of the mini app.
//
// A screen is mounted with a lifetime context. Unmount cancels it; requests
// still running are aborted and anything they return afterwards is discarded.
package screens

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"reboot-miniapp/internal/api"
)

var (
	// ErrSubmitInFlight is returned when a form is submitted while a previous
	// submission is still running.
	ErrSubmitInFlight = errors.New("submission already in flight")
	// ErrUnmounted is returned when a screen's lifetime ended before a call
	// finished.
	ErrUnmounted = errors.New("screen unmounted")
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a transient toast.
type Notification struct {
	Level       Level
	Title       string
	Description string
}

func success(title, description string) *Notification {
	return &Notification{Level: LevelSuccess, Title: title, Description: description}
}

func failure(title, description string) *Notification {
	return &Notification{Level: LevelError, Title: title, Description: description}
}

// SubmitControl is how a submit button renders.
type SubmitControl struct {
	Label    string
	Disabled bool
}

type lifetime struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
}

func newLifetime(parent context.Context) *lifetime {
	ctx, cancel := context.WithCancel(parent)
	return &lifetime{id: uuid.NewString(), ctx: ctx, cancel: cancel}
}

// ID identifies this mount.
func (l *lifetime) ID() string { return l.id }

// Unmount ends the screen's lifetime.
func (l *lifetime) Unmount() { l.cancel() }

func (l *lifetime) Mounted() bool { return l.ctx.Err() == nil }

// bind returns a context cancelled when either ctx or the screen ends.
func (l *lifetime) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(l.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// errorText is the server's message for API errors and fallback for anything
// else, transport failures included.
func errorText(err error, fallback string) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
