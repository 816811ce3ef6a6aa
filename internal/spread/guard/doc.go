// Package guard synthesizes and evaluates fast-path guards.
//
// A Guard is an ordered conjunction of five predicates, each comparing the
// entering value against an identity captured at synthesis time:
//
//  1. CheckClass:     the value is an array
//  2. CheckNoHoles:   the array has no holes (re-scanned on every entry)
//  3. CheckPrototype: its prototype is the captured Array.prototype
//  4. CheckProtocol:  @@iterator resolves to the captured default method
//  5. CheckAdvance:   %ArrayIteratorPrototype%.next is the captured method
//
// Checks 1-3 alone cannot rule out a protocol override that yields values
// different from storage; checks 4-5 close that gap. Omitting any one of the
// five re-admits an observable difference between the fast path and general
// expansion.
//
// # Lifecycle
//
// A guard is immutable once synthesized except for its retire latch. It is
// owned by exactly one call site, installed at most once, and retired at
// most once. A retired guard is never reinstalled.
package guard
