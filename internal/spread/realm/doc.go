// Package realm implements the minimal object model the spread-call engine
// speculates over.
//
// A Realm owns the standard prototypes (Array.prototype and
// %ArrayIteratorPrototype%), the default iteration methods stored on them,
// the realm's protocol.Registry, and the mutation notification source.
//
// # Identity-Sensitive Slots
//
// Only two property keys can change how an array is spread: @@iterator and
// "next". A write to either key on any object is a watched-slot write:
//
//  1. The realm's slot lock is taken exclusively.
//  2. If the slot is one of the two standard protocol slots, the registry is
//     poisoned (synchronously retiring every guard that assumed it).
//  3. Every MutationObserver is notified with the SlotRef.
//  4. Only then is the new value stored and made visible.
//
// Writes that store the identical value do not notify. Writes to any other
// key never take the slot lock.
//
// # Thread Safety
//
// Object properties and array elements are guarded by a per-object RWMutex.
// Watched-slot writes are serialized by the realm slot lock, which callers
// can hold shared via StableSlots to read a consistent set of protocol
// identities. Observers run with the slot lock held and must not call back
// into StableSlots or write watched slots.
package realm
