package install

import (
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kolkov/spreadcall/internal/spread/guard"
	"github.com/kolkov/spreadcall/internal/spread/realm"
	"github.com/kolkov/spreadcall/internal/spread/site"
	"github.com/kolkov/spreadcall/internal/spread/watchpoint"
)

var (
	// ErrPoisoned rejects guards that assume a default protocol the registry
	// no longer vouches for.
	ErrPoisoned = errors.New("install: default iteration protocol poisoned")

	// ErrIdentityChanged rejects guards whose captured identities no longer
	// match the realm's slots.
	ErrIdentityChanged = errors.New("install: guarded identity changed since synthesis")
)

// FastPath reads the argument list directly from array storage.
//
// Performance: one read-locked scan and copy, no protocol dispatch and no
// iterator allocation.
func FastPath(arr *realm.Object) ([]realm.Value, bool) {
	return arr.CopyDense()
}

// Stats counts installer outcomes.
type Stats struct {
	Installed uint64 // Specializations published.
	Replaced  uint64 // Installed over a different guard.
	Unchanged uint64 // Skipped because an equivalent guard was installed.
	Rejected  uint64 // Stale, poisoned or identity-changed requests.
}

// Installer publishes specializations.
type Installer struct {
	realm   *realm.Realm
	manager *watchpoint.Manager
	logger  *zap.Logger

	installed atomic.Uint64
	replaced  atomic.Uint64
	unchanged atomic.Uint64
	rejected  atomic.Uint64
}

// NewInstaller creates an installer. A nil logger disables logging.
func NewInstaller(r *realm.Realm, m *watchpoint.Manager, logger *zap.Logger) *Installer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Installer{realm: r, manager: m, logger: logger}
}

// Install publishes g at s for the call site's current generation.
func (in *Installer) Install(s *site.CallSite, g *guard.Guard) (bool, error) {
	return in.InstallAt(s, g, s.Generation())
}

// InstallAt publishes g at s if s is still at generation gen.
//
// It returns false with a nil error when an equivalent guard is already
// installed. Any other failure leaves the call site unchanged.
func (in *Installer) InstallAt(s *site.CallSite, g *guard.Guard, gen uint64) (bool, error) {
	var (
		ok  bool
		err error
	)
	in.realm.StableSlots(func() {
		ok, err = in.installStable(s, g, gen)
	})
	if err != nil {
		in.rejected.Add(1)
		in.logger.Debug("install rejected",
			zap.String("site", s.ID),
			zap.Stringer("guard", g),
			zap.Error(err))
	}
	return ok, err
}

func (in *Installer) installStable(s *site.CallSite, g *guard.Guard, gen uint64) (bool, error) {
	if cur := s.Specialization(); cur != nil && cur.Guard.Equivalent(g) {
		in.unchanged.Add(1)
		return false, nil
	}
	if g.AssumesDefaultProtocol() && !in.realm.Registry().IsDefaultProtocolIntact() {
		return false, ErrPoisoned
	}
	if !g.Current() {
		return false, ErrIdentityChanged
	}

	spec := &site.Specialization{Guard: g, Path: FastPath, Generation: gen}
	// The new specialization is published before the displaced guard
	// retires: a retired guard must never be visible as published.
	err := in.manager.Replace(g, func() (*guard.Guard, error) {
		prev, err := s.Publish(spec)
		if err != nil || prev == nil {
			return nil, err
		}
		in.replaced.Add(1)
		return prev.Guard, nil
	})
	if err != nil {
		return false, err
	}

	in.installed.Add(1)
	in.logger.Debug("fast path installed",
		zap.String("site", s.ID),
		zap.Stringer("guard", g),
		zap.Uint64("generation", gen))
	return true, nil
}

// Stats returns a snapshot of installer counters.
func (in *Installer) Stats() Stats {
	return Stats{
		Installed: in.installed.Load(),
		Replaced:  in.replaced.Load(),
		Unchanged: in.unchanged.Load(),
		Rejected:  in.rejected.Load(),
	}
}
