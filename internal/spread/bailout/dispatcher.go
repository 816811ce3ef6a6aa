// Package bailout implements the fast-path entry check and the transfer to
// the general path when it fails.
//
// Enter never raises: it returns a Result that either carries the argument
// list read from storage or the Reason the fast path was refused. Bailout
// then retires the guard and demotes the call site; the caller runs general
// expansion for the current execution, so the transfer is invisible to the
// program being executed.
package bailout

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kolkov/spreadcall/internal/spread/expand"
	"github.com/kolkov/spreadcall/internal/spread/guard"
	"github.com/kolkov/spreadcall/internal/spread/realm"
	"github.com/kolkov/spreadcall/internal/spread/site"
	"github.com/kolkov/spreadcall/internal/spread/watchpoint"
)

// Reason explains why the fast path was not taken.
type Reason uint8

const (
	// ReasonNone means the fast path produced the arguments.
	ReasonNone Reason = iota
	// ReasonNotInstalled means no specialization is published.
	ReasonNotInstalled
	// ReasonRetired means the specialization was retired while in flight.
	ReasonRetired
	// ReasonTooLong means the array holds more elements than one call may
	// pass. General expansion reports the error.
	ReasonTooLong
	// ReasonClass through ReasonAdvance mirror the guard checks.
	ReasonClass
	ReasonNoHoles
	ReasonPrototype
	ReasonProtocol
	ReasonAdvance
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNotInstalled:
		return "not installed"
	case ReasonRetired:
		return "retired"
	case ReasonTooLong:
		return "too many arguments"
	case ReasonClass:
		return "class check failed"
	case ReasonNoHoles:
		return "hole check failed"
	case ReasonPrototype:
		return "prototype check failed"
	case ReasonProtocol:
		return "protocol check failed"
	case ReasonAdvance:
		return "advance check failed"
	default:
		return "unknown"
	}
}

// GuardFailure reports whether r is a guard predicate failure, the only
// reasons that demote a call site.
func (r Reason) GuardFailure() bool {
	return r >= ReasonClass
}

func reasonFor(c guard.Check) Reason {
	switch c {
	case guard.CheckClass:
		return ReasonClass
	case guard.CheckNoHoles:
		return ReasonNoHoles
	case guard.CheckPrototype:
		return ReasonPrototype
	case guard.CheckProtocol:
		return ReasonProtocol
	case guard.CheckAdvance:
		return ReasonAdvance
	default:
		return ReasonNone
	}
}

// Result is the outcome of a fast-path entry.
type Result struct {
	// Args is the argument list when Reason is ReasonNone.
	Args []realm.Value

	// Reason is why the fast path was refused.
	Reason Reason

	// Spec is the specialization that was entered, if any.
	Spec *site.Specialization
}

// Fast reports whether the fast path produced the arguments.
func (r Result) Fast() bool { return r.Reason == ReasonNone }

// Dispatcher guards fast-path entry.
type Dispatcher struct {
	manager *watchpoint.Manager
	logger  *zap.Logger
	maxArgs int

	bailouts atomic.Uint64
}

// NewDispatcher creates a dispatcher that refuses argument lists longer
// than maxArgs. A non-positive maxArgs selects expand.DefaultMaxArguments.
// A nil logger disables logging.
func NewDispatcher(m *watchpoint.Manager, maxArgs int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxArgs <= 0 {
		maxArgs = expand.DefaultMaxArguments
	}
	return &Dispatcher{manager: m, logger: logger, maxArgs: maxArgs}
}

// Enter re-checks every guard predicate against v and, on success, reads
// the argument list from storage.
//
// The hole check runs on every entry: hole-freedom is a value property that
// can change without any watched-slot write.
func (d *Dispatcher) Enter(s *site.CallSite, v realm.Value) Result {
	spec := s.Specialization()
	if spec == nil {
		return Result{Reason: ReasonNotInstalled}
	}
	if spec.Guard.Retired() {
		s.MustBeLive(spec)
		return Result{Reason: ReasonRetired, Spec: spec}
	}
	if c, ok := spec.Guard.Check(v); !ok {
		return Result{Reason: reasonFor(c), Spec: spec}
	}

	// Check passed, so v is a *realm.Object array.
	args, ok := spec.Path(v.(*realm.Object))
	if !ok {
		// A hole appeared between the check and the copy.
		return Result{Reason: ReasonNoHoles, Spec: spec}
	}
	if len(args) > d.maxArgs {
		return Result{Reason: ReasonTooLong, Spec: spec}
	}
	return Result{Args: args, Spec: spec}
}

// Bailout handles a refused entry. For guard failures it retires the guard
// and demotes the call site so later executions stop attempting the fast
// path until feedback re-qualifies it. It reports whether the site was
// demoted.
func (d *Dispatcher) Bailout(s *site.CallSite, res Result) bool {
	if !res.Reason.GuardFailure() || res.Spec == nil {
		return false
	}
	d.bailouts.Add(1)
	if !d.manager.Retire(res.Spec.Guard, watchpoint.ReasonBailout) {
		// Someone else retired it first; make sure it is withdrawn.
		s.Invalidate(res.Spec.Guard, watchpoint.ReasonBailout)
	}
	d.logger.Debug("bailout",
		zap.String("site", s.ID),
		zap.Stringer("reason", res.Reason))
	return true
}

// Bailouts returns the number of guard-failure bailouts.
func (d *Dispatcher) Bailouts() uint64 { return d.bailouts.Load() }
