package realm

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kolkov/spreadcall/internal/spread/protocol"
)

// SlotRef names one identity-sensitive slot: a property key on a specific
// holder object.
type SlotRef struct {
	Holder *Object
	Key    PropertyKey
}

func (s SlotRef) String() string {
	return fmt.Sprintf("%s.%s", s.Holder, s.Key)
}

// MutationObserver is notified synchronously before a watched slot write
// becomes visible.
type MutationObserver interface {
	OnMutation(slot SlotRef)
}

// MutationObserverFunc adapts a function to MutationObserver.
type MutationObserverFunc func(slot SlotRef)

// OnMutation implements MutationObserver.
func (f MutationObserverFunc) OnMutation(slot SlotRef) { f(slot) }

// Realm owns the standard prototypes and the protocol registry.
type Realm struct {
	nextID atomic.Uint64

	objectProto        *Object
	arrayProto         *Object
	arrayIteratorProto *Object

	// Captured at creation. These never change even if the prototype slots
	// that initially held them are overwritten.
	defaultIterator *Object
	defaultNext     *Object

	registry *protocol.Registry

	// slotMu serializes watched-slot writes. Held exclusively by writers
	// across notification and store, shared by StableSlots.
	slotMu sync.RWMutex

	obsMu     sync.RWMutex
	observers []MutationObserver
}

// New creates a realm with the standard prototypes installed.
func New() *Realm {
	r := &Realm{registry: protocol.NewRegistry()}

	r.objectProto = r.alloc(ClassObject, nil)
	r.arrayProto = r.alloc(ClassObject, r.objectProto)
	r.arrayIteratorProto = r.alloc(ClassObject, r.objectProto)

	r.defaultIterator = r.NewFunction("values", r.arrayValues)
	r.defaultNext = r.NewFunction("next", r.arrayIteratorNext)

	// Installed directly: the realm is not yet shared, there is nothing to
	// notify.
	r.arrayProto.store(SymbolIterator, r.defaultIterator)
	r.arrayIteratorProto.store(KeyNext, r.defaultNext)
	return r
}

func (r *Realm) alloc(class Class, proto *Object) *Object {
	return &Object{
		id:    r.nextID.Add(1),
		class: class,
		realm: r,
		proto: proto,
	}
}

// Registry returns the realm's iteration protocol registry.
func (r *Realm) Registry() *protocol.Registry { return r.registry }

// ObjectPrototype returns Object.prototype.
func (r *Realm) ObjectPrototype() *Object { return r.objectProto }

// ArrayPrototype returns the standard Array.prototype.
func (r *Realm) ArrayPrototype() *Object { return r.arrayProto }

// ArrayIteratorPrototype returns %ArrayIteratorPrototype%.
func (r *Realm) ArrayIteratorPrototype() *Object { return r.arrayIteratorProto }

// DefaultIterator returns the standard Array.prototype[@@iterator] method as
// installed at realm creation.
func (r *Realm) DefaultIterator() *Object { return r.defaultIterator }

// DefaultNext returns the standard %ArrayIteratorPrototype%.next method as
// installed at realm creation.
func (r *Realm) DefaultNext() *Object { return r.defaultNext }

// IteratorSlot is Array.prototype[@@iterator].
func (r *Realm) IteratorSlot() SlotRef {
	return SlotRef{Holder: r.arrayProto, Key: SymbolIterator}
}

// NextSlot is %ArrayIteratorPrototype%.next.
func (r *Realm) NextSlot() SlotRef {
	return SlotRef{Holder: r.arrayIteratorProto, Key: KeyNext}
}

// IsProtocolSlot reports whether slot is one of the two realm-wide protocol
// slots whose override poisons the registry.
func (r *Realm) IsProtocolSlot(slot SlotRef) bool {
	return slot == r.IteratorSlot() || slot == r.NextSlot()
}

// NewObject creates an ordinary object. A nil proto means Object.prototype.
func (r *Realm) NewObject(proto *Object) *Object {
	if proto == nil {
		proto = r.objectProto
	}
	return r.alloc(ClassObject, proto)
}

// NewArray creates a dense array with the given elements and the standard
// Array.prototype.
func (r *Realm) NewArray(vals ...Value) *Object {
	a := r.alloc(ClassArray, r.arrayProto)
	a.elems = append(make([]Value, 0, len(vals)), vals...)
	return a
}

// NewFunction creates a native function object.
func (r *Realm) NewFunction(name string, fn NativeFunc) *Object {
	f := r.alloc(ClassFunction, r.objectProto)
	f.name = name
	f.native = fn
	return f
}

// NewIterResult creates an iterator result object {value, done}.
func (r *Realm) NewIterResult(v Value, done bool) *Object {
	o := r.alloc(ClassObject, r.objectProto)
	o.props = map[PropertyKey]Value{KeyValue: v, KeyDone: done}
	return o
}

// Observe registers a mutation observer. Observers are never removed; they
// live as long as the realm.
func (r *Realm) Observe(obs MutationObserver) {
	r.obsMu.Lock()
	r.observers = append(r.observers, obs)
	r.obsMu.Unlock()
}

// StableSlots runs fn while no watched-slot write is in progress. Slot
// identities read inside fn stay current until fn returns.
func (r *Realm) StableSlots(fn func()) {
	r.slotMu.RLock()
	defer r.slotMu.RUnlock()
	fn()
}

// writeSlot performs a watched write (present=true) or delete
// (present=false). See the package documentation for the ordering.
func (r *Realm) writeSlot(slot SlotRef, v Value, present bool) {
	r.slotMu.Lock()
	defer r.slotMu.Unlock()

	old, had := slot.Holder.GetOwn(slot.Key)
	if had == present && (!present || SameValue(old, v)) {
		return
	}

	if r.IsProtocolSlot(slot) {
		r.registry.Poison(fmt.Sprintf("%s overridden", slot))
	}

	r.obsMu.RLock()
	observers := r.observers
	r.obsMu.RUnlock()
	for _, obs := range observers {
		obs.OnMutation(slot)
	}

	if present {
		slot.Holder.store(slot.Key, v)
	} else {
		slot.Holder.remove(slot.Key)
	}
}

// arrayValues is the default Array.prototype[@@iterator].
func (r *Realm) arrayValues(this Value, _ []Value) (Value, error) {
	target, ok := this.(*Object)
	if !ok || target.class != ClassArray {
		return Undefined, NewTypeError("Array.prototype[@@iterator] called on %s", Format(this))
	}
	it := r.alloc(ClassArrayIterator, r.arrayIteratorProto)
	it.iter = &arrayIterState{target: target}
	return it, nil
}

// arrayIteratorNext is the default %ArrayIteratorPrototype%.next.
func (r *Realm) arrayIteratorNext(this Value, _ []Value) (Value, error) {
	it, ok := this.(*Object)
	if !ok || it.class != ClassArrayIterator {
		return Undefined, NewTypeError("next method called on incompatible %s", Format(this))
	}

	it.mu.Lock()
	st := it.iter
	if st.done || st.next >= st.target.Len() {
		st.done = true
		it.mu.Unlock()
		return r.NewIterResult(Undefined, true), nil
	}
	i := st.next
	st.next++
	it.mu.Unlock()

	return r.NewIterResult(st.target.Element(i), false), nil
}
