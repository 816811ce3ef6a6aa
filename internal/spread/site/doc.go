// Package site holds per call-site speculation state.
//
// Each CallSite moves through a cyclic state machine:
//
//	UNQUALIFIED --streak >= threshold, protocol intact--> QUALIFIED
//	QUALIFIED   --install-->                              SPECIALIZED
//	SPECIALIZED --watchpoint fires / guard check fails--> DEMOTED
//	DEMOTED     --streak rebuilds-->                      QUALIFIED
//
// There is no terminal state. A call site is created on first execution and
// lives as long as the code that contains it.
//
// # Publication
//
// The active specialization is published through a single atomic.Pointer.
// An executing goroutine observes either no specialization or a complete one
// whose watchpoints are already registered; never a partial one. Publish and
// Invalidate are serialized by a per-site mutex, and Invalidate clears the
// pointer before the guard's retire latch is set, so a published
// specialization holding a retired guard is an invariant violation.
package site
