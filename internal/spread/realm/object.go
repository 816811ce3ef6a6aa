package realm

import (
	"fmt"
	"sync"
)

// Class tags the internal kind of an object.
type Class uint8

const (
	// ClassObject is an ordinary object.
	ClassObject Class = iota
	// ClassArray is an array with indexed element storage.
	ClassArray
	// ClassFunction is a callable object.
	ClassFunction
	// ClassArrayIterator is an iterator produced by the default @@iterator.
	ClassArrayIterator
)

func (c Class) String() string {
	switch c {
	case ClassObject:
		return "Object"
	case ClassArray:
		return "Array"
	case ClassFunction:
		return "Function"
	case ClassArrayIterator:
		return "Array Iterator"
	default:
		return "Unknown"
	}
}

// NativeFunc implements a callable object.
type NativeFunc func(this Value, args []Value) (Value, error)

// Object is a heap object: ordinary object, array, function or iterator.
//
// Identity is pointer identity; ID is a stable realm-unique number used in
// logs and slot references.
type Object struct {
	id    uint64
	class Class
	realm *Realm

	mu    sync.RWMutex
	proto *Object
	props map[PropertyKey]Value

	// elems is the backing storage for ClassArray objects.
	elems []Value

	// name and native are set for ClassFunction objects.
	name   string
	native NativeFunc

	// iter is the cursor for ClassArrayIterator objects.
	iter *arrayIterState
}

type arrayIterState struct {
	target *Object
	next   int
	done   bool
}

// ID returns the realm-unique object id.
func (o *Object) ID() uint64 { return o.id }

// Class returns the object's class tag.
func (o *Object) Class() Class { return o.class }

// Realm returns the realm the object was created in.
func (o *Object) Realm() *Realm { return o.realm }

func (o *Object) String() string {
	if o == nil {
		return "null"
	}
	if o.class == ClassFunction {
		return fmt.Sprintf("[Function %s #%d]", o.name, o.id)
	}
	return fmt.Sprintf("[%s #%d]", o.class, o.id)
}

// Prototype returns the current prototype, or nil.
func (o *Object) Prototype() *Object {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.proto
}

// SetPrototype reassigns the prototype. Prototype identity is a value
// property checked on every guarded entry, so this is not a watched write.
func (o *Object) SetPrototype(proto *Object) {
	o.mu.Lock()
	o.proto = proto
	o.mu.Unlock()
}

// GetOwn returns an own property.
func (o *Object) GetOwn(key PropertyKey) (Value, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.props[key]
	return v, ok
}

// HasOwn reports whether key is an own property.
func (o *Object) HasOwn(key PropertyKey) bool {
	_, ok := o.GetOwn(key)
	return ok
}

// Get looks key up along the prototype chain. Missing keys yield Undefined.
func (o *Object) Get(key PropertyKey) Value {
	v, _ := o.Lookup(key)
	return v
}

// Lookup looks key up along the prototype chain and reports the holder.
func (o *Object) Lookup(key PropertyKey) (Value, *Object) {
	for cur := o; cur != nil; {
		cur.mu.RLock()
		v, ok := cur.props[key]
		next := cur.proto
		cur.mu.RUnlock()
		if ok {
			return v, cur
		}
		cur = next
	}
	return Undefined, nil
}

// Set stores an own property. Writes to @@iterator and "next" go through
// the realm's watched-slot protocol and are announced to observers before
// they become visible.
func (o *Object) Set(key PropertyKey, v Value) {
	if key.watched() {
		o.realm.writeSlot(SlotRef{Holder: o, Key: key}, v, true)
		return
	}
	o.store(key, v)
}

// Delete removes an own property. Deleting a watched slot is announced like
// a write, since it changes which method the lookup resolves to.
func (o *Object) Delete(key PropertyKey) {
	if key.watched() {
		o.realm.writeSlot(SlotRef{Holder: o, Key: key}, nil, false)
		return
	}
	o.remove(key)
}

func (o *Object) store(key PropertyKey, v Value) {
	o.mu.Lock()
	if o.props == nil {
		o.props = make(map[PropertyKey]Value)
	}
	o.props[key] = v
	o.mu.Unlock()
}

func (o *Object) remove(key PropertyKey) {
	o.mu.Lock()
	delete(o.props, key)
	o.mu.Unlock()
}

// Name returns a function's name.
func (o *Object) Name() string { return o.name }

// IsCallable reports whether o can be called.
func (o *Object) IsCallable() bool {
	return o != nil && o.class == ClassFunction && o.native != nil
}

// Call invokes a function object.
func (o *Object) Call(this Value, args []Value) (Value, error) {
	if !o.IsCallable() {
		return Undefined, NewTypeError("%s is not a function", Format(o))
	}
	return o.native(this, args)
}

// Call invokes v if it is callable.
func Call(v Value, this Value, args []Value) (Value, error) {
	fn, ok := v.(*Object)
	if !ok || !fn.IsCallable() {
		return Undefined, NewTypeError("%s is not a function", Format(v))
	}
	return fn.native(this, args)
}
