package session

import (
	"errors"
	"sync"

	"github.com/tramsim/consist/pkg/core"
)

var (
	ErrNoSession     = errors.New("no session running")
	ErrSessionActive = errors.New("session already running")
)

// Context holds the current session
type Context struct {
	mu      sync.RWMutex
	session *core.Session
	active  bool
}

// NewContext creates a new Context with default values
func NewContext() *Context {
	return &Context{
		session: &core.Session{Name: "No session started"},
	}
}

// Get returns the current session, or the placeholder if none was started
func (c *Context) Get() *core.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Active reports whether a session is running
func (c *Context) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Start sets the current session
func (c *Context) Start(s *core.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return ErrSessionActive
	}
	c.session = s
	c.active = true
	return nil
}

// End marks the session as finished and returns it
func (c *Context) End() (*core.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return nil, ErrNoSession
	}
	c.active = false
	return c.session, nil
}
