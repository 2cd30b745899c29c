package wizard

import (
	"context"
	"sync"
	"time"
)

// defaultIdleTTL mirrors the snapshot TTL so a controller never outlives the
// snapshot it could resume from.
const defaultIdleTTL = 30 * 24 * time.Hour

type managedController struct {
	ctl      *Controller
	lastSeen time.Time
}

// Manager hands out one long-lived controller per wizard session. Debounce
// timers live inside the controller, so the same instance must serve every
// request of a session. Controllers idle past the TTL are evicted; their
// session resumes from the persisted snapshot on the next request.
type Manager struct {
	mu          sync.Mutex
	deps        Deps
	idleTTL     time.Duration
	controllers map[string]*managedController

	now func() time.Time
}

func NewManager(deps Deps, idleTTL time.Duration) *Manager {
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	return &Manager{
		deps:        deps,
		idleTTL:     idleTTL,
		controllers: map[string]*managedController{},
		now:         time.Now,
	}
}

// Controller returns the session's controller, building it (and resuming its
// snapshot) on first use.
func (m *Manager) Controller(ctx context.Context, sessionID string) *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictIdleLocked()
	if mc, ok := m.controllers[sessionID]; ok {
		mc.lastSeen = m.now()
		return mc.ctl
	}
	mc := &managedController{ctl: NewController(ctx, sessionID, m.deps), lastSeen: m.now()}
	m.controllers[sessionID] = mc
	return mc.ctl
}

// Sessions reports how many controllers are live.
func (m *Manager) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.controllers)
}

// evictIdleLocked drops controllers nobody has touched within the TTL. Any
// debounce timer of an idle controller fired long ago, so nothing pending is
// lost. Called with m.mu held.
func (m *Manager) evictIdleLocked() {
	cutoff := m.now().Add(-m.idleTTL)
	for id, mc := range m.controllers {
		if mc.lastSeen.Before(cutoff) {
			delete(m.controllers, id)
		}
	}
}
