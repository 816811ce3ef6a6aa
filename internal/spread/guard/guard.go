package guard

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/kolkov/spreadcall/internal/spread/realm"
	"github.com/kolkov/spreadcall/internal/spread/shape"
)

// ErrNotQualified is returned when synthesis is attempted from an
// observation that does not qualify for the fast path.
var ErrNotQualified = errors.New("guard: observation does not qualify")

// Check identifies one guard predicate.
type Check uint8

const (
	// CheckNone means no predicate failed.
	CheckNone Check = iota
	// CheckClass verifies the container class.
	CheckClass
	// CheckNoHoles verifies the array is hole-free.
	CheckNoHoles
	// CheckPrototype verifies prototype identity.
	CheckPrototype
	// CheckProtocol verifies the resolved @@iterator identity.
	CheckProtocol
	// CheckAdvance verifies the iterator advance method identity.
	CheckAdvance
)

func (c Check) String() string {
	switch c {
	case CheckNone:
		return "none"
	case CheckClass:
		return "class"
	case CheckNoHoles:
		return "no-holes"
	case CheckPrototype:
		return "prototype"
	case CheckProtocol:
		return "protocol"
	case CheckAdvance:
		return "advance"
	default:
		return "unknown"
	}
}

// Owner is the call site a guard belongs to. The watchpoint manager calls
// Invalidate when a slot the guard depends on is mutated.
type Owner interface {
	Invalidate(g *Guard, reason string)
}

// Predicate is one captured check.
type Predicate struct {
	Check Check
	// Want is the identity captured at synthesis. Nil for CheckClass and
	// CheckNoHoles, which test value properties.
	Want realm.Value
}

// Guard is the conjunction of predicates protecting one fast path.
type Guard struct {
	// ID identifies the guard in logs.
	ID uuid.UUID

	realm      *realm.Realm
	owner      Owner
	predicates [5]Predicate

	// instance is the array observed at synthesis. Its own @@iterator slot is
	// watched in addition to the two realm protocol slots.
	instance *realm.Object

	retired atomic.Bool
}

// Synthesize builds a guard from a qualifying observation.
func Synthesize(r *realm.Realm, obs shape.Observation, owner Owner) (*Guard, error) {
	if !obs.Qualifies(r) {
		return nil, fmt.Errorf("%w: %s", ErrNotQualified, obs.Why(r))
	}
	return &Guard{
		ID:       uuid.New(),
		realm:    r,
		owner:    owner,
		instance: obs.Value,
		predicates: [5]Predicate{
			{Check: CheckClass},
			{Check: CheckNoHoles},
			{Check: CheckPrototype, Want: obs.Prototype},
			{Check: CheckProtocol, Want: obs.ProtocolMethod},
			{Check: CheckAdvance, Want: obs.AdvanceMethod},
		},
	}, nil
}

// Owner returns the owning call site.
func (g *Guard) Owner() Owner { return g.owner }

// Realm returns the realm the guard's identities were captured from.
func (g *Guard) Realm() *realm.Realm { return g.realm }

// Predicates returns the ordered predicates.
func (g *Guard) Predicates() []Predicate {
	out := g.predicates
	return out[:]
}

// Check evaluates every predicate in order against v and returns the first
// failing check. It returns (CheckNone, true) when the fast path is sound
// for v.
//
// Performance: four O(1) identity comparisons and one O(n) hole scan.
func (g *Guard) Check(v realm.Value) (Check, bool) {
	obj, ok := v.(*realm.Object)
	if !ok || obj == nil || obj.Class() != realm.ClassArray {
		return CheckClass, false
	}
	if !obj.IsDense() {
		return CheckNoHoles, false
	}
	if obj.Prototype() != g.predicates[2].Want {
		return CheckPrototype, false
	}
	if m, _ := obj.Lookup(realm.SymbolIterator); !realm.SameValue(m, g.predicates[3].Want) {
		return CheckProtocol, false
	}
	if m := g.realm.ArrayIteratorPrototype().Get(realm.KeyNext); !realm.SameValue(m, g.predicates[4].Want) {
		return CheckAdvance, false
	}
	return CheckNone, true
}

// Current reports whether the captured identities still match the realm's
// protocol slots. Callers should hold the realm's slot lock.
func (g *Guard) Current() bool {
	r := g.realm
	iter, _ := r.ArrayPrototype().GetOwn(realm.SymbolIterator)
	next, _ := r.ArrayIteratorPrototype().GetOwn(realm.KeyNext)
	return realm.SameValue(iter, g.predicates[3].Want) &&
		realm.SameValue(next, g.predicates[4].Want) &&
		(g.instance == nil || !g.instance.HasOwn(realm.SymbolIterator))
}

// AssumesDefaultProtocol reports whether the guard relies on the realm's
// standard protocol methods. Every synthesized guard does; the registry
// latch retires them all.
func (g *Guard) AssumesDefaultProtocol() bool {
	return realm.SameValue(g.predicates[3].Want, g.realm.DefaultIterator()) &&
		realm.SameValue(g.predicates[4].Want, g.realm.DefaultNext())
}

// Slots lists the identity-sensitive slots the guard depends on.
func (g *Guard) Slots() []realm.SlotRef {
	slots := []realm.SlotRef{g.realm.IteratorSlot(), g.realm.NextSlot()}
	if g.instance != nil {
		slots = append(slots, realm.SlotRef{Holder: g.instance, Key: realm.SymbolIterator})
	}
	return slots
}

// Equivalent reports whether g and other capture the same identities and
// watch the same instance, in which case reinstalling other over g is a
// no-op.
func (g *Guard) Equivalent(other *Guard) bool {
	if g == other {
		return true
	}
	if other == nil || g.realm != other.realm || g.instance != other.instance {
		return false
	}
	return g.predicates == other.predicates
}

// Retire latches the guard as retired. It returns true only for the call
// that performed the transition.
func (g *Guard) Retire() bool {
	return g.retired.CompareAndSwap(false, true)
}

// Retired reports whether the guard has been retired.
//
//go:nosplit
func (g *Guard) Retired() bool {
	return g.retired.Load()
}

func (g *Guard) String() string {
	return "guard " + g.ID.String()[:8]
}
