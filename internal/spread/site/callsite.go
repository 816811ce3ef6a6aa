package site

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kolkov/spreadcall/internal/spread/guard"
	"github.com/kolkov/spreadcall/internal/spread/realm"
)

var (
	// ErrStale is returned by Publish when the call site was demoted or its
	// feedback was reset after the specialization was requested.
	ErrStale = errors.New("site: specialization request is stale")

	// ErrInvariant marks a fast path that could run without a live guard.
	// It is only ever raised as a panic value.
	ErrInvariant = errors.New("site: fast path published without a live guard")
)

// State is the call-site state machine position.
type State uint8

const (
	// Unqualified is the initial state.
	Unqualified State = iota
	// Qualified means the feedback streak reached the threshold.
	Qualified
	// Specialized means a fast path is installed.
	Specialized
	// Demoted means a fast path was retired and feedback is rebuilding.
	Demoted
)

func (s State) String() string {
	switch s {
	case Unqualified:
		return "UNQUALIFIED"
	case Qualified:
		return "QUALIFIED"
	case Specialized:
		return "SPECIALIZED"
	case Demoted:
		return "DEMOTED"
	default:
		return "UNKNOWN"
	}
}

// FastPath reads an argument list straight from array storage. It reports
// false if the storage turned out to hold a hole.
type FastPath func(arr *realm.Object) ([]realm.Value, bool)

// Specialization is an installed fast path and the guard protecting it.
type Specialization struct {
	Guard *guard.Guard
	Path  FastPath

	// Generation is the call-site generation the request was made in.
	Generation uint64
}

// CallSite is one expansion-call location.
type CallSite struct {
	// ID names the call site.
	ID string

	executions atomic.Uint64
	streak     atomic.Uint32
	spec       atomic.Pointer[Specialization]
	demoted    atomic.Bool
	pending    atomic.Bool

	// generation advances on every demotion and feedback reset. Background
	// compilations carry the generation they were requested in and are
	// rejected if it has moved on.
	generation atomic.Uint64

	// installs and demotions count transitions for diagnostics.
	installs  atomic.Uint64
	demotions atomic.Uint64

	mu sync.Mutex
}

// New creates an unqualified call site.
func New(id string) *CallSite {
	return &CallSite{ID: id}
}

// RecordExecution counts one execution and returns the new total.
func (s *CallSite) RecordExecution() uint64 {
	return s.executions.Add(1)
}

// ExecutionCount returns the number of recorded executions.
func (s *CallSite) ExecutionCount() uint64 {
	return s.executions.Load()
}

// QualifiedStreak returns the number of consecutive qualifying executions.
func (s *CallSite) QualifiedStreak() uint32 {
	return s.streak.Load()
}

// ExtendStreak adds one qualifying execution and returns the new streak.
func (s *CallSite) ExtendStreak() uint32 {
	return s.streak.Add(1)
}

// ResetStreak clears the streak after a disqualifying observation. Pending
// background compilations become stale.
func (s *CallSite) ResetStreak() {
	if s.streak.Swap(0) != 0 || s.pending.Load() {
		s.generation.Add(1)
	}
}

// Specialization returns the published specialization, or nil.
//
//go:nosplit
func (s *CallSite) Specialization() *Specialization {
	return s.spec.Load()
}

// FastPathInstalled reports whether a specialization is published.
func (s *CallSite) FastPathInstalled() bool {
	return s.spec.Load() != nil
}

// Demoted reports whether the site was demoted and has not re-qualified.
func (s *CallSite) Demoted() bool {
	return s.demoted.Load()
}

// Generation returns the current generation.
func (s *CallSite) Generation() uint64 {
	return s.generation.Load()
}

// TryBeginCompile marks a compilation as pending. It returns false if one
// already is.
func (s *CallSite) TryBeginCompile() bool {
	return s.pending.CompareAndSwap(false, true)
}

// EndCompile clears the pending mark.
func (s *CallSite) EndCompile() {
	s.pending.Store(false)
}

// CompilePending reports whether a compilation is queued or running.
func (s *CallSite) CompilePending() bool {
	return s.pending.Load()
}

// Installs returns how many specializations were published.
func (s *CallSite) Installs() uint64 { return s.installs.Load() }

// Demotions returns how many times the site was demoted.
func (s *CallSite) Demotions() uint64 { return s.demotions.Load() }

// State returns the state-machine position for the given threshold.
// A site only counts as qualified while the default protocol is intact,
// since a poisoned realm never grants a new specialization.
func (s *CallSite) State(threshold uint32, protocolIntact bool) State {
	switch {
	case s.spec.Load() != nil:
		return Specialized
	case protocolIntact && s.streak.Load() >= threshold:
		return Qualified
	case s.demoted.Load():
		return Demoted
	default:
		return Unqualified
	}
}

// Publish atomically installs spec. The caller must have registered every
// watchpoint the guard depends on and must hold the watchpoint manager lock,
// so that no retirement can interleave.
//
// It returns the previously published specialization, or ErrStale if the
// request's generation is no longer current.
func (s *CallSite) Publish(spec *Specialization) (*Specialization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if spec.Generation != s.generation.Load() {
		return nil, ErrStale
	}
	if spec.Guard.Retired() {
		panic(fmt.Errorf("%w: publishing %s at %s", ErrInvariant, spec.Guard, s.ID))
	}
	prev := s.spec.Swap(spec)
	s.demoted.Store(false)
	s.installs.Add(1)
	return prev, nil
}

// Invalidate implements guard.Owner. If g backs the published
// specialization, the fast path is withdrawn, the site is demoted and its
// feedback streak restarts from zero. Guards that are not published are
// ignored.
func (s *CallSite) Invalidate(g *guard.Guard, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.spec.Load()
	if cur == nil || cur.Guard != g {
		return
	}
	s.spec.Store(nil)
	s.demoted.Store(true)
	s.streak.Store(0)
	s.generation.Add(1)
	s.demotions.Add(1)
}

// MustBeLive panics if spec is still published while its guard is retired.
// Invalidate withdraws a specialization before its guard retires, so this
// can only fire on an engine bug.
func (s *CallSite) MustBeLive(spec *Specialization) {
	if spec.Guard.Retired() && s.spec.Load() == spec {
		panic(fmt.Errorf("%w: %s retired but still published at %s", ErrInvariant, spec.Guard, s.ID))
	}
}

var _ guard.Owner = (*CallSite)(nil)
