// Package session keeps launch sessions in memory. A launch session is one
// opening of the mini app: it owns the identity context and the screens
// currently mounted for it.
package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reboot-miniapp/internal/identity"
	"reboot-miniapp/internal/screens"
)

const CookieName = "reboot_session"

// Mount is a screen with a lifetime.
type Mount interface {
	ID() string
	Unmount()
}

type Session struct {
	id       string
	ctx      context.Context
	cancel   context.CancelFunc
	identity *identity.Context

	mu        sync.Mutex
	expiresAt time.Time
	mounts    map[string]Mount
	flashes   []screens.Notification
}

func (s *Session) ID() string { return s.id }

// Context ends when the session is removed. Screens are mounted under it.
func (s *Session) Context() context.Context { return s.ctx }

func (s *Session) Identity() *identity.Context { return s.identity }

// Mount registers m under name, unmounting whatever was there before.
func (s *Session) Mount(name string, m Mount) {
	s.mu.Lock()
	prev := s.mounts[name]
	s.mounts[name] = m
	s.mu.Unlock()
	if prev != nil && prev != m {
		prev.Unmount()
	}
}

// Mounted returns the screen currently mounted under name.
func (s *Session) Mounted(name string) (Mount, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mounts[name]
	return m, ok
}

func (s *Session) Unmount(name string) {
	s.mu.Lock()
	m := s.mounts[name]
	delete(s.mounts, name)
	s.mu.Unlock()
	if m != nil {
		m.Unmount()
	}
}

// Flash queues a notification for the next rendered page.
func (s *Session) Flash(n screens.Notification) {
	s.mu.Lock()
	s.flashes = append(s.flashes, n)
	s.mu.Unlock()
}

// TakeFlashes returns and clears queued notifications.
func (s *Session) TakeFlashes() []screens.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.flashes
	s.flashes = nil
	return out
}

func (s *Session) touch(now time.Time, ttl time.Duration) {
	s.mu.Lock()
	s.expiresAt = now.Add(ttl)
	s.mu.Unlock()
}

func (s *Session) expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.After(s.expiresAt)
}

// close ends every mounted screen and any identity resolution still running.
func (s *Session) close() {
	s.cancel()
	s.mu.Lock()
	mounts := s.mounts
	s.mounts = map[string]Mount{}
	s.mu.Unlock()
	for _, m := range mounts {
		m.Unmount()
	}
}

// Store is a thread-safe in-memory session store. Sessions expire after ttl
// without use.
type Store struct {
	ttl time.Duration
	log *zap.SugaredLogger
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore(ttl time.Duration, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Store{ttl: ttl, log: log, now: time.Now, sessions: map[string]*Session{}}
}

// Create stores a new session and starts resolving its identity.
func (st *Store) Create(init identity.Initializer, opts ...identity.Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        uuid.NewString(),
		ctx:       ctx,
		cancel:    cancel,
		identity:  identity.New(init, opts...),
		expiresAt: st.now().Add(st.ttl),
		mounts:    map[string]Mount{},
	}
	st.mu.Lock()
	st.sessions[s.id] = s
	st.mu.Unlock()

	s.identity.Start(ctx)
	st.log.Debugw("session created", "session_id", s.id)
	return s
}

// Get returns a live session and extends it, or nil if missing or expired.
func (st *Store) Get(id string) *Session {
	if id == "" {
		return nil
	}
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil
	}
	now := st.now()
	if s.expired(now) {
		st.Delete(id)
		return nil
	}
	s.touch(now, st.ttl)
	return s
}

func (st *Store) Delete(id string) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if ok {
		s.close()
	}
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep removes expired sessions and reports how many went.
func (st *Store) Sweep() int {
	now := st.now()
	var gone []*Session
	st.mu.Lock()
	for id, s := range st.sessions {
		if s.expired(now) {
			gone = append(gone, s)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()
	for _, s := range gone {
		s.close()
	}
	return len(gone)
}

// Run sweeps periodically until ctx ends, then closes every session.
func (st *Store) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			st.closeAll()
			return
		case <-t.C:
			if n := st.Sweep(); n > 0 {
				st.log.Debugw("sessions expired", "count", n)
			}
		}
	}
}

func (st *Store) closeAll() {
	st.mu.Lock()
	all := st.sessions
	st.sessions = map[string]*Session{}
	st.mu.Unlock()
	for _, s := range all {
		s.close()
	}
}

// FromRequest returns the session named by the request cookie.
func (st *Store) FromRequest(r *http.Request) *Session {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return nil
	}
	return st.Get(c.Value)
}

// SetCookie writes the session cookie. The mini app is framed by the
// Telegram web clients, so over TLS the cookie must be SameSite=None.
func SetCookie(w http.ResponseWriter, r *http.Request, id string) {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, c)
}

func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
