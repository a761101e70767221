package screens

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"reboot-miniapp/internal/form"
	"reboot-miniapp/internal/gate"
	"reboot-miniapp/internal/identity"
	"reboot-miniapp/internal/models"
)

const (
	EventsPath = "/events"

	// RedirectDelay leaves the success toast on screen before navigating.
	RedirectDelay = 1500 * time.Millisecond
)

// Landing is the entry screen. It runs the registration-status gate at most
// once per mount.
type Landing struct {
	*lifetime
	gate *gate.Gate
	snap identity.Snapshot

	once   sync.Once
	result gate.Result
}

func NewLanding(parent context.Context, g *gate.Gate, snap identity.Snapshot) *Landing {
	return &Landing{lifetime: newLifetime(parent), gate: g, snap: snap}
}

// Enter returns the gate decision. The second value is false when the screen
// was unmounted before the decision settled; callers must then do nothing.
func (l *Landing) Enter(ctx context.Context) (gate.Result, bool) {
	l.once.Do(func() {
		ctx, cancel := l.bind(ctx)
		defer cancel()
		l.result = l.gate.Check(ctx, l.snap)
	})
	return l.result, l.Mounted()
}

type Registrar interface {
	RegisterUser(ctx context.Context, rec models.RegistrationRecord) (*models.User, error)
}

// SubmitResult is what a form submission produced. Errors is set when
// validation failed, in which case nothing was sent.
type SubmitResult struct {
	Errors        form.Result
	Notification  *Notification
	Redirect      string
	RedirectAfter time.Duration
	User          *models.User
}

// RegistrationForm submits a new registration. At most one submission is in
// flight; the submit control is disabled for its duration.
type RegistrationForm struct {
	*lifetime
	api  Registrar
	snap identity.Snapshot
	log  *zap.SugaredLogger

	inflight atomic.Bool

	mu     sync.Mutex
	values form.Input
	errors form.Result
}

func NewRegistrationForm(parent context.Context, client Registrar, snap identity.Snapshot, log *zap.SugaredLogger) *RegistrationForm {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &RegistrationForm{
		lifetime: newLifetime(parent),
		api:      client,
		snap:     snap,
		log:      log,
		values:   form.Defaults(),
	}
}

func (f *RegistrationForm) Busy() bool { return f.inflight.Load() }

func (f *RegistrationForm) SubmitControl() SubmitControl {
	if f.Busy() {
		return SubmitControl{Label: "Processing...", Disabled: true}
	}
	return SubmitControl{Label: "Register Now"}
}

// Values returns the last submitted input, or the defaults.
func (f *RegistrationForm) Values() form.Input {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values
}

func (f *RegistrationForm) Errors() form.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errors
}

// CheckField validates a single field as the user edits it.
func (f *RegistrationForm) CheckField(field form.Field, in form.Input) string {
	return form.ValidateField(form.Registration, field, in)
}

func (f *RegistrationForm) Submit(ctx context.Context, in form.Input) (SubmitResult, error) {
	rec, res := form.Decode(form.Registration, in)

	f.mu.Lock()
	f.values = in
	f.errors = res
	f.mu.Unlock()

	if !res.OK() {
		return SubmitResult{Errors: res}, nil
	}
	if !f.inflight.CompareAndSwap(false, true) {
		return SubmitResult{}, ErrSubmitInFlight
	}
	defer f.inflight.Store(false)

	if id, ok := f.snap.Identity(); ok {
		rec.TelegramData = &id
	}

	ctx, cancel := f.bind(ctx)
	defer cancel()
	u, err := f.api.RegisterUser(ctx, rec)
	if !f.Mounted() {
		return SubmitResult{}, ErrUnmounted
	}
	if err != nil {
		f.log.Warnw("registration failed", "err", err)
		return SubmitResult{Notification: failure("Registration failed", errorText(err, "Please try again later."))}, nil
	}
	return SubmitResult{
		Notification:  success("Registration submitted successfully!", "Redirecting to events page..."),
		Redirect:      EventsPath,
		RedirectAfter: RedirectDelay,
		User:          u,
	}, nil
}
