// Package shape classifies the argument of an expansion call.
//
// A ShapeObservation is the per-execution snapshot the feedback recorder and
// the guard synthesizer work from. It is ephemeral: produced and consumed
// within one execution.
package shape

import (
	"github.com/kolkov/spreadcall/internal/spread/realm"
)

// Observation is the shape snapshot of one expansion-call argument.
type Observation struct {
	// Value is the observed argument. Nil when the argument is not an object.
	Value *realm.Object

	// Class is the container class tag.
	Class realm.Class

	// IsObject is false for primitives and undefined.
	IsObject bool

	// Dense is true when the array has no holes.
	Dense bool

	// Length is the element count at observation time.
	Length int

	// Prototype is the value's prototype identity.
	Prototype *realm.Object

	// OwnProtocol is true when the value carries its own @@iterator.
	OwnProtocol bool

	// ProtocolMethod is the @@iterator method the value resolves to.
	ProtocolMethod realm.Value

	// AdvanceMethod is the "next" method on %ArrayIteratorPrototype%.
	AdvanceMethod realm.Value
}

// Classify observes v.
//
// Performance: O(1) identity reads plus one O(n) hole scan for arrays.
func Classify(r *realm.Realm, v realm.Value) Observation {
	obj, ok := v.(*realm.Object)
	if !ok || obj == nil {
		return Observation{}
	}

	obs := Observation{
		Value:         obj,
		Class:         obj.Class(),
		IsObject:      true,
		Prototype:     obj.Prototype(),
		AdvanceMethod: r.ArrayIteratorPrototype().Get(realm.KeyNext),
	}
	obs.ProtocolMethod, _ = obj.Lookup(realm.SymbolIterator)
	obs.OwnProtocol = obj.HasOwn(realm.SymbolIterator)
	if obs.Class == realm.ClassArray {
		obs.Length = obj.Len()
		obs.Dense = obj.IsDense()
	}
	return obs
}

// Qualifies reports whether the observation describes a dense, hole-free
// array on the standard prototype that inherits the standard protocol.
func (o Observation) Qualifies(r *realm.Realm) bool {
	return o.IsObject &&
		o.Class == realm.ClassArray &&
		o.Dense &&
		o.Prototype == r.ArrayPrototype() &&
		!o.OwnProtocol &&
		realm.SameValue(o.ProtocolMethod, r.DefaultIterator()) &&
		realm.SameValue(o.AdvanceMethod, r.DefaultNext())
}

// Why returns a short reason the observation does not qualify, or "" if it
// does.
func (o Observation) Why(r *realm.Realm) string {
	switch {
	case !o.IsObject:
		return "not an object"
	case o.Class != realm.ClassArray:
		return "not an array"
	case !o.Dense:
		return "array has holes"
	case o.Prototype != r.ArrayPrototype():
		return "prototype is not Array.prototype"
	case o.OwnProtocol:
		return "own @@iterator"
	case !realm.SameValue(o.ProtocolMethod, r.DefaultIterator()):
		return "Array.prototype[@@iterator] modified"
	case !realm.SameValue(o.AdvanceMethod, r.DefaultNext()):
		return "%ArrayIteratorPrototype%.next modified"
	default:
		return ""
	}
}
