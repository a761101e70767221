// Package identity resolves who is using the mini app for one launch.
package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"reboot-miniapp/internal/bridge"
	"reboot-miniapp/internal/models"
)

type State int

const (
	Uninitialized State = iota
	Resolving
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Resolving:
		return "resolving"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Snapshot is the resolved identity. It is immutable; accessors return copies.
type Snapshot struct {
	isHost   bool
	identity *models.Identity
	initData string
}

func NewSnapshot(isHost bool, id *models.Identity, initData string) Snapshot {
	s := Snapshot{isHost: isHost, initData: initData}
	if id != nil {
		cp := *id
		s.identity = &cp
	}
	return s
}

func (s Snapshot) IsHost() bool { return s.isHost }

func (s Snapshot) Identity() (models.Identity, bool) {
	if s.identity == nil {
		return models.Identity{}, false
	}
	return *s.identity, true
}

func (s Snapshot) InitData() string { return s.initData }

// Initializer connects to the host bridge.
type Initializer func() bridge.Handle

// Context holds the bridge connection and identity for one launch. It is
// written once by Start and read-only afterwards.
type Context struct {
	init  Initializer
	delay time.Duration
	log   *zap.SugaredLogger

	once  sync.Once
	ready chan struct{}

	mu     sync.RWMutex
	state  State
	snap   Snapshot
	handle bridge.Handle
}

type Option func(*Context)

// WithDelay sets how long Start waits before touching the bridge, to give the
// host time to inject its object.
func WithDelay(d time.Duration) Option {
	return func(c *Context) { c.delay = d }
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Context) { c.log = log }
}

func New(init Initializer, opts ...Option) *Context {
	c := &Context{
		init:   init,
		ready:  make(chan struct{}),
		log:    zap.NewNop().Sugar(),
		handle: bridge.Standalone(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins resolution in the background. Only the first call has any
// effect. Cancelling ctx before the delay elapses finishes resolution in
// standalone mode.
func (c *Context) Start(ctx context.Context) {
	c.once.Do(func() {
		c.setState(Resolving)
		go c.resolve(ctx)
	})
}

func (c *Context) resolve(ctx context.Context) {
	handle := bridge.Standalone()
	snap := NewSnapshot(false, nil, "")

	defer func() {
		if r := recover(); r != nil {
			c.log.Errorw("identity resolution panicked", "panic", r)
			handle = bridge.Standalone()
			snap = NewSnapshot(false, nil, "")
		}
		c.finish(handle, snap)
	}()

	if c.delay > 0 {
		t := time.NewTimer(c.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			c.log.Debugw("identity resolution cancelled", "err", ctx.Err())
			return
		case <-t.C:
		}
	}

	if c.init == nil {
		return
	}
	h := c.init()
	if h == nil || !h.IsHost() {
		return
	}
	handle = h
	if u, ok := h.User(); ok {
		snap = NewSnapshot(true, &u, h.InitData())
		c.log.Debugw("identity resolved", "tg_id", u.ID)
		return
	}
	snap = NewSnapshot(true, nil, h.InitData())
	c.log.Debugw("host present without user")
}

func (c *Context) finish(h bridge.Handle, snap Snapshot) {
	c.mu.Lock()
	c.handle = h
	c.snap = snap
	c.state = Ready
	c.mu.Unlock()
	close(c.ready)
}

func (c *Context) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Context) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Snapshot returns the identity once the context is ready.
func (c *Context) Snapshot() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != Ready {
		return Snapshot{}, false
	}
	return c.snap, true
}

// Handle returns the bridge handle; standalone until resolution finishes.
func (c *Context) Handle() bridge.Handle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handle
}

// Wait blocks until the context is ready or ctx is done.
func (c *Context) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-c.ready:
		snap, _ := c.Snapshot()
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}
