package gate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"reboot-miniapp/internal/identity"
	"reboot-miniapp/internal/models"
)

type fakeLookup struct {
	calls int32
	delay time.Duration
	user  *models.User
	err   error
}

func (f *fakeLookup) GetUserByTelegramID(ctx context.Context, tgID int64) (*models.User, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.user, f.err
}

func hostSnapshot() identity.Snapshot {
	return identity.NewSnapshot(true, &models.Identity{ID: 42, FirstName: "Sara"}, "raw")
}

func TestCheck(t *testing.T) {
	cases := []struct {
		name     string
		lookup   *fakeLookup
		snap     identity.Snapshot
		decision Decision
		reason   Reason
		calls    int32
	}{
		{
			name:     "registered user skips the form",
			lookup:   &fakeLookup{user: &models.User{MongoID: "u1", FullName: "Sara Tesfaye"}},
			snap:     hostSnapshot(),
			decision: RedirectEvents,
			reason:   ReasonRegistered,
			calls:    1,
		},
		{
			name:     "not found shows the form",
			lookup:   &fakeLookup{},
			snap:     hostSnapshot(),
			decision: ShowForm,
			reason:   ReasonNotFound,
			calls:    1,
		},
		{
			name:     "blank name shows the form",
			lookup:   &fakeLookup{user: &models.User{MongoID: "u1", FullName: "  "}},
			snap:     hostSnapshot(),
			decision: ShowForm,
			reason:   ReasonUnregistered,
			calls:    1,
		},
		{
			name:     "lookup error shows the form",
			lookup:   &fakeLookup{err: errors.New("boom")},
			snap:     hostSnapshot(),
			decision: ShowForm,
			reason:   ReasonError,
			calls:    1,
		},
		{
			name:     "no identity skips the lookup",
			lookup:   &fakeLookup{user: &models.User{FullName: "x"}},
			snap:     identity.NewSnapshot(false, nil, ""),
			decision: ShowForm,
			reason:   ReasonNoIdentity,
			calls:    0,
		},
		{
			name:     "host without user skips the lookup",
			lookup:   &fakeLookup{user: &models.User{FullName: "x"}},
			snap:     identity.NewSnapshot(true, nil, "raw"),
			decision: ShowForm,
			reason:   ReasonNoIdentity,
			calls:    0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := New(tc.lookup, time.Second, nil)
			res := g.Check(context.Background(), tc.snap)
			if res.Decision != tc.decision || res.Reason != tc.reason {
				t.Fatalf("Check = %v/%v, want %v/%v", res.Decision, res.Reason, tc.decision, tc.reason)
			}
			if n := atomic.LoadInt32(&tc.lookup.calls); n != tc.calls {
				t.Fatalf("lookup calls = %d, want %d", n, tc.calls)
			}
		})
	}
}

func TestCheckTimeoutFallsBackToForm(t *testing.T) {
	lookup := &fakeLookup{
		delay: time.Second,
		user:  &models.User{FullName: "Late Answer"},
	}
	g := New(lookup, 20*time.Millisecond, nil)

	start := time.Now()
	res := g.Check(context.Background(), hostSnapshot())
	if res.Decision != ShowForm || res.Reason != ReasonTimeout {
		t.Fatalf("Check = %v/%v, want show_form/timeout", res.Decision, res.Reason)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("Check took %v, the timeout did not win", elapsed)
	}
}

func TestCheckCancelledByScreen(t *testing.T) {
	lookup := &fakeLookup{delay: time.Second, user: &models.User{FullName: "x"}}
	g := New(lookup, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := g.Check(ctx, hostSnapshot())
	if res.Decision != ShowForm {
		t.Fatalf("Decision = %v, want show_form", res.Decision)
	}
}
