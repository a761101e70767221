package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"reboot-miniapp/internal/bridge"
	"reboot-miniapp/internal/form"
	"reboot-miniapp/internal/gate"
	"reboot-miniapp/internal/identity"
	"reboot-miniapp/internal/screens"
	"reboot-miniapp/internal/session"
)

const (
	screenLanding  = "landing"
	screenRegister = "register"
	screenProfile  = "profile"
	screenEvents   = "events"
	screenGallery  = "gallery"
	screenTicket   = "ticket"

	// identityWait bounds how long a request waits for identity resolution
	// before it gets the loading page.
	identityWait = 2 * time.Second
)

func mounted[T session.Mount](s *session.Session, name string) (T, bool) {
	var zero T
	m, ok := s.Mounted(name)
	if !ok {
		return zero, false
	}
	t, ok := m.(T)
	return t, ok
}

// launch starts a launch session from what the bootstrap script saw.
func (h *handlers) launch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	raw := strings.TrimSpace(r.PostForm.Get("init_data"))
	src := bridge.Source{Present: raw != "", InitData: raw}
	if !src.Present {
		src = bridge.FromRequest(r)
	}
	var opts []bridge.Option
	if h.cfg.VerifyInitData {
		opts = append(opts, bridge.WithVerification(h.cfg.TelegramToken), bridge.WithMaxAge(h.cfg.InitDataMaxAge))
	}

	if old := h.sessions.FromRequest(r); old != nil {
		h.sessions.Delete(old.ID())
	}
	s := h.sessions.Create(
		func() bridge.Handle { return bridge.Initialize(src, opts...) },
		identity.WithDelay(h.cfg.IdentitySettleDelay),
		identity.WithLogger(h.log),
	)
	session.SetCookie(w, r, s.ID())
	h.log.Infow("launch", "session_id", s.ID(), "host", src.Present)
	http.Redirect(w, r, safeNext(r.PostForm.Get("next")), http.StatusSeeOther)
}

// safeNext keeps redirects on this host. Browsers read a backslash as a
// slash, so "/\host" is as off-site as "//host".
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/launch") {
		return "/"
	}
	if strings.ContainsAny(next, "\\\t\r\n") {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return next
}

// snapshot waits for the identity. When it is not ready in time the loading
// page is written and ok is false.
func (h *handlers) snapshot(w http.ResponseWriter, r *http.Request, s *session.Session) (identity.Snapshot, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), identityWait)
	defer cancel()
	snap, err := s.Identity().Wait(ctx)
	if err == nil {
		return snap, true
	}
	next := "/"
	if r.Method == http.MethodGet {
		next = r.URL.RequestURI()
	}
	h.render(w, http.StatusOK, "loading", page{Title: "Loading", Data: bootstrapView{Next: next}})
	return identity.Snapshot{}, false
}

func showMainButton(s *session.Session, c screens.SubmitControl) {
	b := s.Identity().Handle().MainButton()
	b.SetText(c.Label)
	if c.Disabled {
		b.Disable()
	} else {
		b.Enable()
	}
	b.Show()
}

func hideMainButton(s *session.Session) {
	s.Identity().Handle().MainButton().Hide()
}

// superseded answers a request whose screen was replaced while it ran.
func superseded(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, screens.ErrSubmitInFlight):
		http.Error(w, "A request is already in progress", http.StatusConflict)
	case errors.Is(err, screens.ErrUnmounted):
		http.Error(w, "Screen was closed", http.StatusConflict)
	default:
		return false
	}
	return true
}

func (h *handlers) landing(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	snap, ok := h.snapshot(w, r, s)
	if !ok {
		return
	}

	l := screens.NewLanding(s.Context(), h.gate, snap)
	s.Mount(screenLanding, l)
	res, ok := l.Enter(r.Context())
	if !ok {
		superseded(w, screens.ErrUnmounted)
		return
	}
	h.log.Debugw("registration gate", "session_id", s.ID(), "decision", res.Decision.String(), "reason", res.Reason)
	if res.Decision == gate.RedirectEvents {
		http.Redirect(w, r, screens.EventsPath, http.StatusSeeOther)
		return
	}

	f := screens.NewRegistrationForm(s.Context(), h.api, snap, h.log)
	s.Mount(screenRegister, f)
	showMainButton(s, f.SubmitControl())
	h.render(w, http.StatusOK, "register", screenPage(s, "Register", screenRegister, registerView(f)))
}

func registerView(f *screens.RegistrationForm) formView {
	return formView{
		Action:       "/register",
		Schema:       form.Registration.Name(),
		Values:       f.Values(),
		Errors:       f.Errors().Messages(),
		Control:      f.SubmitControl(),
		Experience:   form.ExperienceOptions,
		Referral:     form.ReferralOptions,
		WithReferral: true,
	}
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	snap, ok := h.snapshot(w, r, s)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	f, ok := mounted[*screens.RegistrationForm](s, screenRegister)
	if !ok {
		f = screens.NewRegistrationForm(s.Context(), h.api, snap, h.log)
		s.Mount(screenRegister, f)
	}
	res, err := f.Submit(r.Context(), form.FromValues(r.PostForm))
	if superseded(w, err) {
		return
	}

	status := http.StatusOK
	if !res.Errors.OK() {
		status = http.StatusUnprocessableEntity
	}
	var extra []screens.Notification
	if res.Notification != nil {
		extra = append(extra, *res.Notification)
	}
	if res.Redirect != "" {
		hideMainButton(s)
	} else {
		showMainButton(s, f.SubmitControl())
	}
	p := screenPage(s, "Register", screenRegister, registerView(f), extra...)
	p.Redirect = res.Redirect
	p.RedirectAfterMs = res.RedirectAfter.Milliseconds()
	h.render(w, status, "register", p)
}

func (h *handlers) validateField(w http.ResponseWriter, r *http.Request) {
	schema, ok := form.SchemaByName(chi.URLParam(r, "schema"))
	field := form.Field(chi.URLParam(r, "field"))
	if !ok || !schema.Has(field) {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	msg := form.ValidateField(schema, field, form.FromValues(r.PostForm))
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"field": string(field), "error": msg})
}

func profileView(p *screens.Profile) formView {
	return formView{
		Action:     "/profile",
		Schema:     form.Profile.Name(),
		Values:     p.Values(),
		Errors:     p.Errors().Messages(),
		Control:    p.SubmitControl(),
		Experience: form.ExperienceOptions,
		Registered: p.Registered(),
	}
}

func (h *handlers) profile(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	snap, ok := h.snapshot(w, r, s)
	if !ok {
		return
	}
	p := screens.NewProfile(s.Context(), h.api, snap, h.log)
	s.Mount(screenProfile, p)
	if superseded(w, p.Load(r.Context())) {
		return
	}
	if p.Registered() {
		showMainButton(s, p.SubmitControl())
	} else {
		hideMainButton(s)
	}
	h.render(w, http.StatusOK, "profile", screenPage(s, "Profile", screenProfile, profileView(p)))
}

func (h *handlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	snap, ok := h.snapshot(w, r, s)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	p, ok := mounted[*screens.Profile](s, screenProfile)
	if !ok {
		p = screens.NewProfile(s.Context(), h.api, snap, h.log)
		s.Mount(screenProfile, p)
		if superseded(w, p.Load(r.Context())) {
			return
		}
	}
	res, err := p.Submit(r.Context(), form.FromValues(r.PostForm))
	status := http.StatusOK
	switch {
	case errors.Is(err, screens.ErrNotRegistered):
		status = http.StatusNotFound
	case superseded(w, err):
		return
	case !res.Errors.OK():
		status = http.StatusUnprocessableEntity
	}
	var extra []screens.Notification
	if res.Notification != nil {
		extra = append(extra, *res.Notification)
	}
	showMainButton(s, p.SubmitControl())
	h.render(w, status, "profile", screenPage(s, "Profile", screenProfile, profileView(p), extra...))
}

func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	snap, ok := h.snapshot(w, r, s)
	if !ok {
		return
	}
	e := screens.NewEvents(s.Context(), h.api, snap, h.notifier, h.log)
	s.Mount(screenEvents, e)
	n, err := e.Load(r.Context())
	if superseded(w, err) {
		return
	}
	hideMainButton(s)
	h.render(w, http.StatusOK, "events", screenPage(s, "Events", screenEvents, eventsView{
		Items:      e.Items(),
		Registered: e.UserID() != "",
	}, notes(n)...))
}

func (h *handlers) signup(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	snap, ok := h.snapshot(w, r, s)
	if !ok {
		return
	}
	e, ok := mounted[*screens.Events](s, screenEvents)
	if !ok {
		e = screens.NewEvents(s.Context(), h.api, snap, h.notifier, h.log)
		s.Mount(screenEvents, e)
		if _, err := e.Load(r.Context()); superseded(w, err) {
			return
		}
	}
	n, err := e.Signup(r.Context(), chi.URLParam(r, "id"))
	if superseded(w, err) {
		return
	}
	if n != nil {
		s.Flash(*n)
	}
	http.Redirect(w, r, screens.EventsPath, http.StatusSeeOther)
}

func galleryPage(s *session.Session, g *screens.Gallery, n *screens.Notification) page {
	return screenPage(s, "Gallery", screenGallery, galleryView{
		Items:     g.Items(),
		HasMore:   g.HasMore(),
		MoreLabel: g.LoadMoreLabel(),
		Loaded:    g.Loaded(),
	}, notes(n)...)
}

func (h *handlers) gallery(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	g := screens.NewGallery(s.Context(), h.api, h.log)
	s.Mount(screenGallery, g)
	n, err := g.Load(r.Context())
	if superseded(w, err) {
		return
	}
	hideMainButton(s)
	h.render(w, http.StatusOK, "gallery", galleryPage(s, g, n))
}

func (h *handlers) galleryMore(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	g, ok := mounted[*screens.Gallery](s, screenGallery)
	if !ok {
		http.Redirect(w, r, "/gallery", http.StatusSeeOther)
		return
	}
	n, _, err := g.LoadMore(r.Context())
	if superseded(w, err) {
		return
	}
	h.render(w, http.StatusOK, "gallery", galleryPage(s, g, n))
}

func (h *handlers) ticket(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	ref := chi.URLParam(r, "reference")
	t := screens.NewTicketVerification(s.Context(), h.api, h.log)
	s.Mount(screenTicket, t)
	v, err := t.Verify(r.Context(), ref)
	if superseded(w, err) {
		return
	}
	hideMainButton(s)
	h.render(w, http.StatusOK, "ticket", screenPage(s, "Ticket", screenTicket, ticketView{Reference: ref, Result: v}))
}

// close asks the host to dismiss the mini app and ends the launch session.
func (h *handlers) close(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	hdl := s.Identity().Handle()
	hdl.Close()
	p := page{Title: "Goodbye", Bridge: bridgeState(hdl)}
	session.ClearCookie(w)
	h.render(w, http.StatusOK, "closed", p)
	h.sessions.Delete(s.ID())
}

func notes(n *screens.Notification) []screens.Notification {
	if n == nil {
		return nil
	}
	return []screens.Notification{*n}
}
