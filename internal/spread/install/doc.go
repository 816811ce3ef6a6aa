// Package install activates specialized fast paths.
//
// The Installer turns a guard into a published site.Specialization whose
// fast path copies the argument list straight out of array storage,
// skipping protocol dispatch. Installation runs inside the realm's
// StableSlots section and the watchpoint manager's lock, so from every
// executing goroutine's point of view it is a single atomic step: either no
// fast path, or a fast path with all watchpoints registered.
//
// The Compiler moves installation off the executing goroutine. Requests are
// queued to a bounded channel served by worker goroutines supervised by an
// errgroup; a request whose call site moved to a new generation while it
// waited is rejected at publish time.
package install
