// Package bridge adapts the Telegram WebApp host object.
//
// The real bridge lives in the browser; the server sees what the bootstrap
// script reported about it and records the lifecycle calls the rendered page
// must replay on window.Telegram.WebApp.
package bridge

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"reboot-miniapp/internal/models"
)

const (
	HeaderInitData = "X-Telegram-Init-Data"
	ParamInitData  = "tg_init_data"
	CookieInitData = "tg_init_data"
)

// Source is what the bootstrap script observed about the host.
type Source struct {
	Present  bool
	InitData string
}

// FromRequest looks for a raw initData payload in the header, query and
// cookie, in that order. A payload implies the host is present.
func FromRequest(r *http.Request) Source {
	raw := r.Header.Get(HeaderInitData)
	if raw == "" {
		raw = r.URL.Query().Get(ParamInitData)
	}
	if raw == "" {
		if c, err := r.Cookie(CookieInitData); err == nil {
			if decoded, err := url.QueryUnescape(c.Value); err == nil {
				raw = decoded
			}
		}
	}
	raw = strings.TrimSpace(raw)
	return Source{Present: raw != "", InitData: raw}
}

// Lifecycle lists the host calls a page has to replay.
type Lifecycle struct {
	Ready    bool
	Expanded bool
	Closed   bool
}

// Handle is the capability surface of the host bridge.
type Handle interface {
	IsHost() bool
	Ready()
	Expand()
	Close()
	InitData() string
	User() (models.Identity, bool)
	MainButton() *MainButton
	Lifecycle() Lifecycle
}

type Option func(*options)

type options struct {
	botToken string
	verify   bool
	maxAge   time.Duration
}

// WithVerification checks the initData signature against the bot token.
// An invalid signature leaves the identity unresolved.
func WithVerification(botToken string) Option {
	return func(o *options) {
		o.botToken = botToken
		o.verify = botToken != ""
	}
}

// WithMaxAge rejects verified payloads signed longer ago than d.
// Zero disables the check.
func WithMaxAge(d time.Duration) Option {
	return func(o *options) { o.maxAge = d }
}

// Initialize signals ready and requests full-viewport expansion when the host
// is present. Without a host it returns the standalone handle.
func Initialize(src Source, opts ...Option) Handle {
	if !src.Present {
		return Standalone()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	w := &webApp{initData: src.InitData, button: NewMainButton()}
	if data, err := ParseInitData(src.InitData); err == nil && data.User != nil {
		if !o.verify || VerifyInitData(src.InitData, o.botToken, o.maxAge) == nil {
			w.user = *data.User
			w.hasUser = true
		}
	}
	w.Ready()
	w.Expand()
	return w
}

type webApp struct {
	mu        sync.Mutex
	initData  string
	user      models.Identity
	hasUser   bool
	lifecycle Lifecycle
	button    *MainButton
}

func (w *webApp) IsHost() bool { return true }

func (w *webApp) Ready() {
	w.mu.Lock()
	w.lifecycle.Ready = true
	w.mu.Unlock()
}

func (w *webApp) Expand() {
	w.mu.Lock()
	w.lifecycle.Expanded = true
	w.mu.Unlock()
}

func (w *webApp) Close() {
	w.mu.Lock()
	w.lifecycle.Closed = true
	w.mu.Unlock()
}

func (w *webApp) InitData() string { return w.initData }

func (w *webApp) User() (models.Identity, bool) {
	return w.user, w.hasUser
}

func (w *webApp) MainButton() *MainButton { return w.button }

func (w *webApp) Lifecycle() Lifecycle {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lifecycle
}

type standalone struct {
	button *MainButton
}

// Standalone is the null handle used when the app is opened outside Telegram.
// Lifecycle calls are no-ops and there is never a user.
func Standalone() Handle {
	return &standalone{button: NewMainButton()}
}

func (standalone) IsHost() bool                  { return false }
func (standalone) Ready()                        {}
func (standalone) Expand()                       {}
func (standalone) Close()                        {}
func (standalone) InitData() string              { return "" }
func (standalone) User() (models.Identity, bool) { return models.Identity{}, false }
func (s *standalone) MainButton() *MainButton    { return s.button }
func (standalone) Lifecycle() Lifecycle          { return Lifecycle{} }
