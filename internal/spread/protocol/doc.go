// Package protocol implements the process-wide iteration protocol registry.
//
// The registry answers one question for the speculation engine: may a guard
// still assume that arrays iterate through the standard protocol? The answer
// starts as yes and can only ever flip to no.
//
// # Lifecycle
//
// The registry is a one-way latch:
//
//	intact  --Poison()-->  poisoned   (terminal, never resets)
//
// Overriding Array.prototype[@@iterator] or %ArrayIteratorPrototype%.next is
// observable by every array in the realm, so once it happens no later guard
// may treat the default protocol as assumable.
//
// # Thread Safety
//
// IsDefaultProtocolIntact is a single atomic load and may be called from any
// goroutine. Poison runs subscribers synchronously on the poisoning goroutine
// before it returns, which is what makes poisoning a synchronization point
// for every call site that depended on the default protocol.
package protocol
