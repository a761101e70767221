// Package gate decides whether the landing screen shows the registration
// form or sends an already registered user to the events listing.
package gate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"reboot-miniapp/internal/identity"
	"reboot-miniapp/internal/models"
)

const DefaultTimeout = 5 * time.Second

type Decision int

const (
	ShowForm Decision = iota
	RedirectEvents
)

func (d Decision) String() string {
	if d == RedirectEvents {
		return "redirect_events"
	}
	return "show_form"
}

type Reason string

const (
	ReasonNoIdentity   Reason = "no_identity"
	ReasonRegistered   Reason = "registered"
	ReasonNotFound     Reason = "not_found"
	ReasonUnregistered Reason = "unregistered"
	ReasonError        Reason = "error"
	ReasonTimeout      Reason = "timeout"
)

type Result struct {
	Decision Decision
	Reason   Reason
	User     *models.User
}

// Lookup fetches a user by host identity id; (nil, nil) means not found.
type Lookup interface {
	GetUserByTelegramID(ctx context.Context, tgID int64) (*models.User, error)
}

type Gate struct {
	lookup  Lookup
	timeout time.Duration
	log     *zap.SugaredLogger
}

func New(lookup Lookup, timeout time.Duration, log *zap.SugaredLogger) *Gate {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Gate{lookup: lookup, timeout: timeout, log: log}
}

type lookupResult struct {
	user *models.User
	err  error
}

// Check issues one lookup raced against the timeout. Whichever settles first
// decides; the lookup context is cancelled on return, so a late answer is
// dropped. Every failure falls back to showing the form.
func (g *Gate) Check(ctx context.Context, snap identity.Snapshot) Result {
	id, ok := snap.Identity()
	if !ok {
		return Result{Decision: ShowForm, Reason: ReasonNoIdentity}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ch := make(chan lookupResult, 1)
	go func() {
		u, err := g.lookup.GetUserByTelegramID(ctx, id.ID)
		ch <- lookupResult{user: u, err: err}
	}()

	select {
	case <-ctx.Done():
		g.log.Infow("registration check did not settle", "tg_id", id.ID, "err", ctx.Err())
		return Result{Decision: ShowForm, Reason: ReasonTimeout}
	case res := <-ch:
		switch {
		case res.err != nil:
			g.log.Warnw("registration check failed", "tg_id", id.ID, "err", res.err)
			return Result{Decision: ShowForm, Reason: ReasonError}
		case res.user == nil:
			return Result{Decision: ShowForm, Reason: ReasonNotFound}
		case !res.user.Registered():
			return Result{Decision: ShowForm, Reason: ReasonUnregistered, User: res.user}
		default:
			return Result{Decision: RedirectEvents, Reason: ReasonRegistered, User: res.user}
		}
	}
}
