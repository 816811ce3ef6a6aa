package watchpoint

import (
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kolkov/spreadcall/internal/spread/guard"
	"github.com/kolkov/spreadcall/internal/spread/realm"
)

// ErrRetired is returned by Arm for a guard that was already retired.
var ErrRetired = errors.New("watchpoint: guard already retired")

// Retirement reasons.
const (
	ReasonSlotMutated = "watched slot mutated"
	ReasonPoisoned    = "default protocol poisoned"
	ReasonReplaced    = "replaced by a new guard"
	ReasonBailout     = "guard check failed"
)

// Watchpoint is a registration of guards against one slot.
type Watchpoint struct {
	Slot   realm.SlotRef
	guards map[*guard.Guard]struct{}
}

// Len returns the number of guards depending on the slot.
func (w *Watchpoint) Len() int { return len(w.guards) }

// Stats counts manager activity.
type Stats struct {
	Fired     uint64 // Mutations that hit at least one guard.
	Retired   uint64 // Guards retired for any reason.
	Poisoned  uint64 // Guards retired by registry poisoning.
	Installed uint64 // Guards currently registered.
}

// Manager maps slots to dependent guards and retires them on mutation.
type Manager struct {
	realm  *realm.Realm
	logger *zap.Logger

	mu      sync.Mutex
	slots   map[realm.SlotRef]*Watchpoint
	byGuard map[*guard.Guard][]*Watchpoint

	fired    atomic.Uint64
	retired  atomic.Uint64
	poisoned atomic.Uint64
}

// NewManager creates a manager observing r. A nil logger disables logging.
func NewManager(r *realm.Realm, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		realm:   r,
		logger:  logger,
		slots:   make(map[realm.SlotRef]*Watchpoint),
		byGuard: make(map[*guard.Guard][]*Watchpoint),
	}
	r.Observe(m)
	r.Registry().OnPoison(m.onPoison)
	return m
}

// Register subscribes g to every slot it depends on.
func (m *Manager) Register(g *guard.Guard) ([]*Watchpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registerLocked(g)
}

// Arm registers g and runs publish under the manager lock, so that no
// retirement can observe a registered-but-unpublished or
// published-but-unregistered guard. If publish fails, the registration is
// rolled back.
func (m *Manager) Arm(g *guard.Guard, publish func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.registerLocked(g); err != nil {
		return err
	}
	if err := publish(); err != nil {
		m.unlinkLocked(g)
		return err
	}
	return nil
}

// Replace is Arm for a publish that may displace an installed guard. The
// displaced guard returned by publish is retired, without notifying its
// owner, before the manager lock is released, so no watchpoint ever sees
// both guards registered for the same site.
func (m *Manager) Replace(g *guard.Guard, publish func() (*guard.Guard, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.registerLocked(g); err != nil {
		return err
	}
	old, err := publish()
	if err != nil {
		m.unlinkLocked(g)
		return err
	}
	if old != nil && old != g {
		m.retireLocked(old, ReasonReplaced, false)
	}
	return nil
}

func (m *Manager) registerLocked(g *guard.Guard) ([]*Watchpoint, error) {
	if g.Retired() {
		return nil, ErrRetired
	}
	if wps, ok := m.byGuard[g]; ok {
		return wps, nil
	}

	slots := g.Slots()
	wps := make([]*Watchpoint, 0, len(slots))
	for _, slot := range slots {
		wp := m.slots[slot]
		if wp == nil {
			wp = &Watchpoint{Slot: slot, guards: make(map[*guard.Guard]struct{})}
			m.slots[slot] = wp
		}
		wp.guards[g] = struct{}{}
		wps = append(wps, wp)
	}
	m.byGuard[g] = wps
	return wps, nil
}

// OnMutation implements realm.MutationObserver.
func (m *Manager) OnMutation(slot realm.SlotRef) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wp := m.slots[slot]
	if wp == nil || len(wp.guards) == 0 {
		return
	}
	m.fired.Add(1)

	victims := make([]*guard.Guard, 0, len(wp.guards))
	for g := range wp.guards {
		victims = append(victims, g)
	}
	for _, g := range victims {
		m.retireLocked(g, ReasonSlotMutated, true)
	}
	m.logger.Debug("watchpoint fired",
		zap.Stringer("slot", slot),
		zap.Int("guards", len(victims)))
}

// Retire retires g and invalidates its owner. It returns false if g was not
// registered.
func (m *Manager) Retire(g *guard.Guard, reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retireLocked(g, reason, true)
}

// Detach retires g without invalidating its owner. Used when the owner has
// already published a replacement.
func (m *Manager) Detach(g *guard.Guard) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retireLocked(g, ReasonReplaced, false)
}

func (m *Manager) retireLocked(g *guard.Guard, reason string, notifyOwner bool) bool {
	if !m.unlinkLocked(g) {
		return false
	}
	if notifyOwner && g.Owner() != nil {
		g.Owner().Invalidate(g, reason)
	}
	g.Retire()
	m.retired.Add(1)
	m.logger.Debug("guard retired",
		zap.Stringer("guard", g),
		zap.String("reason", reason))
	return true
}

func (m *Manager) unlinkLocked(g *guard.Guard) bool {
	wps, ok := m.byGuard[g]
	if !ok {
		return false
	}
	for _, wp := range wps {
		delete(wp.guards, g)
		if len(wp.guards) == 0 {
			delete(m.slots, wp.Slot)
		}
	}
	delete(m.byGuard, g)
	return true
}

func (m *Manager) onPoison(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int
	for g := range m.byGuard {
		if g.AssumesDefaultProtocol() && m.retireLocked(g, ReasonPoisoned, true) {
			n++
		}
	}
	m.poisoned.Add(uint64(n))
	m.logger.Info("default iteration protocol poisoned",
		zap.String("cause", reason),
		zap.Int("retired", n))
}

// Watchers returns how many guards depend on slot.
func (m *Manager) Watchers(slot realm.SlotRef) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if wp := m.slots[slot]; wp != nil {
		return wp.Len()
	}
	return 0
}

// Registered reports whether g is currently registered.
func (m *Manager) Registered(g *guard.Guard) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byGuard[g]
	return ok
}

// Stats returns a snapshot of manager counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	installed := uint64(len(m.byGuard))
	m.mu.Unlock()
	return Stats{
		Fired:     m.fired.Load(),
		Retired:   m.retired.Load(),
		Poisoned:  m.poisoned.Load(),
		Installed: installed,
	}
}
