package config

import (
	"sync"
	"time"
)

// SessionOverride pins a session to a model for a number of turns.
// RemainingTurns nil means unlimited.
type SessionOverride struct {
	Model          string
	RemainingTurns *int
	CreatedAt      time.Time
}

// Runtime holds the admin-mutable scalars: enabled, dry-run, and overrides.
// All other configuration is immutable after startup. A single RWMutex keeps
// reads consistent across concurrent request handlers.
type Runtime struct {
	mu               sync.RWMutex
	enabled          bool
	dryRun           bool
	globalForceModel string
	sessions         map[string]*SessionOverride
}

// NewRuntime seeds the mutable state from the loaded configuration.
func NewRuntime(cfg *Config) *Runtime {
	return &Runtime{
		enabled:  cfg.Enabled,
		dryRun:   cfg.DryRun,
		sessions: make(map[string]*SessionOverride),
	}
}

func (rt *Runtime) Enabled() bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.enabled
}

func (rt *Runtime) SetEnabled(v bool) {
	rt.mu.Lock()
	rt.enabled = v
	rt.mu.Unlock()
}

func (rt *Runtime) DryRun() bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.dryRun
}

func (rt *Runtime) SetDryRun(v bool) {
	rt.mu.Lock()
	rt.dryRun = v
	rt.mu.Unlock()
}

// GlobalOverride returns the force model, or "" when unset.
func (rt *Runtime) GlobalOverride() string {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.globalForceModel
}

func (rt *Runtime) SetGlobalOverride(model string) {
	rt.mu.Lock()
	rt.globalForceModel = model
	rt.mu.Unlock()
}

func (rt *Runtime) ClearGlobalOverride() {
	rt.SetGlobalOverride("")
}

// UpsertSession installs or replaces a session override. turns nil means
// unlimited.
func (rt *Runtime) UpsertSession(sessionID, model string, turns *int) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.sessions[sessionID] = &SessionOverride{
		Model:          model,
		RemainingTurns: turns,
		CreatedAt:      time.Now(),
	}
}

func (rt *Runtime) DeleteSession(sessionID string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	delete(rt.sessions, sessionID)
}

// ConsumeSession returns the override model for a session and burns one
// turn. A session that reaches zero turns is removed.
func (rt *Runtime) ConsumeSession(sessionID string) (string, bool) {
	if sessionID == "" {
		return "", false
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	s, ok := rt.sessions[sessionID]
	if !ok {
		return "", false
	}
	if s.RemainingTurns != nil {
		*s.RemainingTurns--
		if *s.RemainingTurns <= 0 {
			delete(rt.sessions, sessionID)
		}
	}
	return s.Model, true
}

// Sessions returns a point-in-time copy of the session override table.
func (rt *Runtime) Sessions() map[string]SessionOverride {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	out := make(map[string]SessionOverride, len(rt.sessions))
	for id, s := range rt.sessions {
		out[id] = *s
	}
	return out
}
