package screens

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"reboot-miniapp/internal/identity"
	"reboot-miniapp/internal/models"
)

type EventsAPI interface {
	ListEvents(ctx context.Context) ([]models.Event, error)
	GetUserByTelegramID(ctx context.Context, tgID int64) (*models.User, error)
	SignupForEvent(ctx context.Context, eventID, userID string) (*models.EventSignup, error)
}

// Notifier is told about successful sign-ups. Failures are logged only.
type Notifier interface {
	NotifySignup(ctx context.Context, who models.Identity, ev models.Event) error
}

// EventItem is one row of the listing.
type EventItem struct {
	models.Event
	Registered bool
	SigningUp  bool
}

func (i EventItem) SignupLabel() string {
	switch {
	case i.Registered:
		return "Registered ✓"
	case i.SigningUp:
		return "Signing up..."
	default:
		return "Sign Up"
	}
}

type Events struct {
	*lifetime
	api      EventsAPI
	snap     identity.Snapshot
	notifier Notifier
	log      *zap.SugaredLogger

	mu         sync.Mutex
	events     []models.Event
	registered map[string]bool
	userID     string
	signingUp  string
	loaded     bool
}

func NewEvents(parent context.Context, client EventsAPI, snap identity.Snapshot, notifier Notifier, log *zap.SugaredLogger) *Events {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Events{
		lifetime:   newLifetime(parent),
		api:        client,
		snap:       snap,
		notifier:   notifier,
		log:        log,
		registered: map[string]bool{},
	}
}

// Load fetches the listing and, when there is an identity, the user's
// sign-ups. Only a listing failure is reported.
func (e *Events) Load(ctx context.Context) (*Notification, error) {
	ctx, cancel := e.bind(ctx)
	defer cancel()

	var (
		events  []models.Event
		listErr error
		user    *models.User
	)
	// Both lookups report through the captured variables; the group only
	// fans them out and waits, so one failing never cancels the other.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		events, listErr = e.api.ListEvents(gctx)
		return nil
	})
	if id, ok := e.snap.Identity(); ok {
		g.Go(func() error {
			u, err := e.api.GetUserByTelegramID(gctx, id.ID)
			if err != nil {
				e.log.Debugw("events: user lookup failed", "tg_id", id.ID, "err", err)
				return nil
			}
			user = u
			return nil
		})
	}
	_ = g.Wait() // always nil

	if !e.Mounted() {
		return nil, ErrUnmounted
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = true
	if user != nil {
		e.userID = user.Key()
		e.registered = map[string]bool{}
		for _, s := range user.RegisteredEvents {
			e.registered[s.EventID] = true
		}
	}
	if listErr != nil {
		e.log.Warnw("events: list failed", "err", listErr)
		e.events = nil
		return failure("Failed to load events", ""), nil
	}
	e.events = events
	return nil, nil
}

func (e *Events) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

func (e *Events) UserID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userID
}

func (e *Events) Items() []EventItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]EventItem, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, EventItem{
			Event:      ev,
			Registered: e.registered[ev.ID],
			SigningUp:  e.signingUp == ev.ID,
		})
	}
	return out
}

func (e *Events) IsRegistered(eventID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registered[eventID]
}

// Signup registers the user for an event. One sign-up runs at a time.
func (e *Events) Signup(ctx context.Context, eventID string) (*Notification, error) {
	e.mu.Lock()
	userID := e.userID
	if userID == "" {
		e.mu.Unlock()
		return failure("Please register first", ""), nil
	}
	if e.signingUp != "" {
		e.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	if e.registered[eventID] {
		e.mu.Unlock()
		return nil, nil
	}
	e.signingUp = eventID
	var ev models.Event
	for _, x := range e.events {
		if x.ID == eventID {
			ev = x
		}
	}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.signingUp = ""
		e.mu.Unlock()
	}()

	ctx, cancel := e.bind(ctx)
	defer cancel()
	_, err := e.api.SignupForEvent(ctx, eventID, userID)
	if !e.Mounted() {
		return nil, ErrUnmounted
	}
	if err != nil {
		e.log.Warnw("event signup failed", "event_id", eventID, "user_id", userID, "err", err)
		return failure(errorText(err, "Failed to sign up"), ""), nil
	}

	e.mu.Lock()
	e.registered[eventID] = true
	e.mu.Unlock()

	if id, ok := e.snap.Identity(); ok && e.notifier != nil {
		if ev.ID == "" {
			ev.ID = eventID
		}
		if err := e.notifier.NotifySignup(ctx, id, ev); err != nil {
			e.log.Warnw("signup notification failed", "tg_id", id.ID, "err", err)
		}
	}
	return success("Successfully signed up!", ""), nil
}
