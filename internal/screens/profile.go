package screens

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"reboot-miniapp/internal/form"
	"reboot-miniapp/internal/identity"
	"reboot-miniapp/internal/models"
)

// ErrNotRegistered is returned by Profile.Submit when there is no stored
// record to update.
var ErrNotRegistered = errors.New("user id not found")

type ProfileAPI interface {
	GetUserByTelegramID(ctx context.Context, tgID int64) (*models.User, error)
	UpdateUser(ctx context.Context, id string, rec models.RegistrationRecord) (*models.User, error)
}

// Profile edits an existing registration. It omits the referral source.
type Profile struct {
	*lifetime
	api  ProfileAPI
	snap identity.Snapshot
	log  *zap.SugaredLogger

	inflight atomic.Bool

	mu     sync.Mutex
	userID string
	values form.Input
	errors form.Result
	loaded bool
}

func NewProfile(parent context.Context, client ProfileAPI, snap identity.Snapshot, log *zap.SugaredLogger) *Profile {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Profile{
		lifetime: newLifetime(parent),
		api:      client,
		snap:     snap,
		log:      log,
		values:   form.Defaults(),
	}
}

// Load fetches the stored record and prefills the form. A missing identity or
// record leaves the form empty; lookup failures are logged, not shown.
func (p *Profile) Load(ctx context.Context) error {
	id, ok := p.snap.Identity()
	if !ok {
		p.setLoaded("", form.Defaults())
		return nil
	}

	ctx, cancel := p.bind(ctx)
	defer cancel()
	u, err := p.api.GetUserByTelegramID(ctx, id.ID)
	if !p.Mounted() {
		return ErrUnmounted
	}
	if err != nil {
		p.log.Warnw("profile lookup failed", "tg_id", id.ID, "err", err)
		p.setLoaded("", form.Defaults())
		return nil
	}
	if u == nil {
		p.setLoaded("", form.Defaults())
		return nil
	}
	p.setLoaded(u.Key(), form.FromUser(*u))
	return nil
}

func (p *Profile) setLoaded(userID string, in form.Input) {
	p.mu.Lock()
	p.userID = userID
	p.values = in
	p.errors = form.Result{}
	p.loaded = true
	p.mu.Unlock()
}

func (p *Profile) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

// Registered reports whether Load found a stored record.
func (p *Profile) Registered() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.userID != ""
}

func (p *Profile) Values() form.Input {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values
}

func (p *Profile) Errors() form.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errors
}

func (p *Profile) Busy() bool { return p.inflight.Load() }

func (p *Profile) SubmitControl() SubmitControl {
	if p.Busy() {
		return SubmitControl{Label: "Saving...", Disabled: true}
	}
	return SubmitControl{Label: "Save Changes"}
}

func (p *Profile) Submit(ctx context.Context, in form.Input) (SubmitResult, error) {
	rec, res := form.Decode(form.Profile, in)

	p.mu.Lock()
	p.values = in
	p.errors = res
	userID := p.userID
	p.mu.Unlock()

	if !res.OK() {
		return SubmitResult{Errors: res}, nil
	}
	if userID == "" {
		return SubmitResult{Notification: failure("Update failed", "User ID not found")}, ErrNotRegistered
	}
	if !p.inflight.CompareAndSwap(false, true) {
		return SubmitResult{}, ErrSubmitInFlight
	}
	defer p.inflight.Store(false)

	ctx, cancel := p.bind(ctx)
	defer cancel()
	u, err := p.api.UpdateUser(ctx, userID, rec)
	if !p.Mounted() {
		return SubmitResult{}, ErrUnmounted
	}
	if err != nil {
		p.log.Warnw("profile update failed", "user_id", userID, "err", err)
		return SubmitResult{Notification: failure("Update failed", errorText(err, "Please try again later."))}, nil
	}

	// Refresh from the server's copy, as the next read would.
	if u != nil && u.Registered() {
		p.setLoaded(userID, form.FromUser(*u))
	}
	return SubmitResult{Notification: success("Profile updated successfully!", ""), User: u}, nil
}
