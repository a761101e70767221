package screens

import (
	"context"
	"errors"
	"testing"
	"time"

	"reboot-miniapp/internal/api"
	"reboot-miniapp/internal/form"
	"reboot-miniapp/internal/gate"
	"reboot-miniapp/internal/models"
)

func validInput() form.Input {
	return form.Input{
		FullName:              "Abebe Kebede",
		Email:                 "abebe@example.com",
		PhoneNumber:           "+251912345678",
		Age:                   "30",
		Weight:                "70",
		Height:                "175",
		HorseRidingExperience: "beginner",
		ReferralSource:        "Telegram",
	}
}

func TestValidInputPassesRegistrationSchema(t *testing.T) {
	if res := form.Validate(form.Registration, validInput()); !res.OK() {
		t.Fatalf("validInput() errors = %v, want none", res.Messages())
	}
}

func TestLandingRedirectsRegisteredUser(t *testing.T) {
	fake := &fakeAPI{user: &models.User{MongoID: "u1", FullName: "Abebe"}}
	l := NewLanding(context.Background(), gate.New(fake, time.Second, nil), hostSnapshot(7))

	res, ok := l.Enter(context.Background())
	if !ok {
		t.Fatal("landing reported unmounted")
	}
	if res.Decision != gate.RedirectEvents {
		t.Fatalf("decision = %v, want redirect", res.Decision)
	}
}

func TestLandingChecksOncePerMount(t *testing.T) {
	fake := &fakeAPI{userErr: errors.New("boom")}
	l := NewLanding(context.Background(), gate.New(fake, time.Second, nil), hostSnapshot(7))

	first, _ := l.Enter(context.Background())
	fake.mu.Lock()
	fake.userErr = nil
	fake.user = &models.User{FullName: "Abebe"}
	fake.mu.Unlock()
	second, _ := l.Enter(context.Background())

	if first.Reason != gate.ReasonError || second.Reason != gate.ReasonError {
		t.Fatalf("reasons = %v, %v; want error twice", first.Reason, second.Reason)
	}
}

func TestLandingTimeoutShowsForm(t *testing.T) {
	fake := &fakeAPI{gate: make(chan struct{})}
	defer close(fake.gate)
	l := NewLanding(context.Background(), gate.New(fake, 20*time.Millisecond, nil), hostSnapshot(7))

	res, ok := l.Enter(context.Background())
	if !ok || res.Decision != gate.ShowForm || res.Reason != gate.ReasonTimeout {
		t.Fatalf("got %+v mounted=%v, want form after timeout", res, ok)
	}
}

func TestLandingUnmountedDuringCheck(t *testing.T) {
	fake := &fakeAPI{gate: make(chan struct{})}
	defer close(fake.gate)
	l := NewLanding(context.Background(), gate.New(fake, time.Minute, nil), hostSnapshot(7))

	go func() {
		time.Sleep(10 * time.Millisecond)
		l.Unmount()
	}()
	if _, ok := l.Enter(context.Background()); ok {
		t.Fatal("decision applied after unmount")
	}
}

func TestRegistrationInvalidInputMakesNoCall(t *testing.T) {
	fake := &fakeAPI{}
	f := NewRegistrationForm(context.Background(), fake, hostSnapshot(7), nil)

	in := validInput()
	in.PhoneNumber = "0912345678"
	res, err := f.Submit(context.Background(), in)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Errors.OK() {
		t.Fatal("expected validation errors")
	}
	if len(fake.records) != 0 {
		t.Fatalf("made %d calls, want none", len(fake.records))
	}
	if got := f.Errors().First(form.PhoneNumber); got == "" {
		t.Fatal("phone error not kept on the form")
	}
}

func TestRegistrationSuccess(t *testing.T) {
	fake := &fakeAPI{registered: &models.User{MongoID: "u1", FullName: "Abebe Kebede"}}
	f := NewRegistrationForm(context.Background(), fake, hostSnapshot(7), nil)

	res, err := f.Submit(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Notification == nil || res.Notification.Level != LevelSuccess ||
		res.Notification.Title != "Registration submitted successfully!" {
		t.Fatalf("notification = %+v", res.Notification)
	}
	if res.Redirect != EventsPath || res.RedirectAfter != RedirectDelay {
		t.Fatalf("redirect = %q after %v", res.Redirect, res.RedirectAfter)
	}
	rec := fake.records[0]
	if rec.TelegramData == nil || rec.TelegramData.ID != 7 {
		t.Fatalf("telegramData = %+v, want host identity", rec.TelegramData)
	}
	if rec.Age != 30 || rec.Weight != 70 {
		t.Fatalf("numbers not coerced: %+v", rec)
	}
}

func TestRegistrationWithoutIdentitySendsNullTelegramData(t *testing.T) {
	fake := &fakeAPI{registered: &models.User{}}
	f := NewRegistrationForm(context.Background(), fake, standaloneSnapshot(), nil)

	if _, err := f.Submit(context.Background(), validInput()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if fake.records[0].TelegramData != nil {
		t.Fatal("telegramData should be null without a host identity")
	}
}

func TestRegistrationFailureMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"server message", &api.Error{Message: "Email already registered"}, "Email already registered"},
		{"transport", errors.New("dial tcp: refused"), "Please try again later."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewRegistrationForm(context.Background(), &fakeAPI{regErr: tt.err}, hostSnapshot(7), nil)
			res, err := f.Submit(context.Background(), validInput())
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			n := res.Notification
			if n == nil || n.Level != LevelError || n.Title != "Registration failed" || n.Description != tt.want {
				t.Fatalf("notification = %+v, want %q", n, tt.want)
			}
			if res.Redirect != "" {
				t.Fatal("failure must not redirect")
			}
			if f.Busy() {
				t.Fatal("form still busy after failure")
			}
		})
	}
}

func TestRegistrationOneSubmissionInFlight(t *testing.T) {
	fake := &fakeAPI{registered: &models.User{}, gate: make(chan struct{})}
	f := NewRegistrationForm(context.Background(), fake, hostSnapshot(7), nil)

	done := make(chan error, 1)
	go func() {
		_, err := f.Submit(context.Background(), validInput())
		done <- err
	}()

	deadline := time.Now().Add(time.Second)
	for !f.Busy() {
		if time.Now().After(deadline) {
			t.Fatal("first submission never started")
		}
		time.Sleep(time.Millisecond)
	}
	if c := f.SubmitControl(); !c.Disabled || c.Label != "Processing..." {
		t.Fatalf("control while busy = %+v", c)
	}
	if _, err := f.Submit(context.Background(), validInput()); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("second submit err = %v, want ErrSubmitInFlight", err)
	}

	close(fake.gate)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if c := f.SubmitControl(); c.Disabled || c.Label != "Register Now" {
		t.Fatalf("control after submit = %+v", c)
	}
	if len(fake.records) != 1 {
		t.Fatalf("calls = %d, want 1", len(fake.records))
	}
}

func TestRegistrationUnmountDiscardsResponse(t *testing.T) {
	fake := &fakeAPI{registered: &models.User{}, gate: make(chan struct{})}
	defer close(fake.gate)
	f := NewRegistrationForm(context.Background(), fake, hostSnapshot(7), nil)

	go func() {
		time.Sleep(10 * time.Millisecond)
		f.Unmount()
	}()
	res, err := f.Submit(context.Background(), validInput())
	if !errors.Is(err, ErrUnmounted) {
		t.Fatalf("err = %v, want ErrUnmounted", err)
	}
	if res.Notification != nil {
		t.Fatal("notification produced after unmount")
	}
}

func TestProfileLoadAndSubmit(t *testing.T) {
	fake := &fakeAPI{user: &models.User{
		MongoID: "u1", FullName: "Abebe Kebede", Email: "abebe@example.com", PhoneNumber: "+251912345678",
		Age: 30, Weight: 70, Height: 175, HorseRidingExperience: models.ExperienceBeginner,
	}}
	p := NewProfile(context.Background(), fake, hostSnapshot(7), nil)
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !p.Registered() {
		t.Fatal("profile should be registered")
	}
	if got := p.Values().Get(form.Age); got != "30" {
		t.Fatalf("prefilled age = %q", got)
	}

	in := p.Values()
	in.FullName = "Abebe K."
	res, err := p.Submit(context.Background(), in)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Notification == nil || res.Notification.Title != "Profile updated successfully!" {
		t.Fatalf("notification = %+v", res.Notification)
	}
	if fake.updates["u1"].FullName != "Abebe K." {
		t.Fatalf("update = %+v", fake.updates["u1"])
	}
}

func TestProfileSubmitWithoutRecord(t *testing.T) {
	p := NewProfile(context.Background(), &fakeAPI{}, hostSnapshot(7), nil)
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	res, err := p.Submit(context.Background(), validInput())
	if !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("err = %v, want ErrNotRegistered", err)
	}
	if res.Notification == nil || res.Notification.Description != "User ID not found" {
		t.Fatalf("notification = %+v", res.Notification)
	}
}
