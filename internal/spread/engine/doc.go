// Package engine composes the speculation components into the single entry
// point the runtime calls for every expansion call.
//
// # Control Flow
//
// ExecuteExpansionCall(site, value, target):
//
//  1. If a specialization is published, the bailout dispatcher re-checks the
//     guard. On success the argument list comes straight from storage and
//     the target is called.
//  2. On a guard failure the guard is retired and the site demoted; this
//     execution continues on the general path.
//  3. Unspecialized executions go through the feedback recorder. Once the
//     streak reaches the threshold and the default protocol is intact, a
//     guard is synthesized and installed, synchronously or on the
//     background compiler.
//  4. The general executor expands the value through the full iteration
//     protocol and the target is called.
//
// Watched-slot writes retire guards ahead of time through the watchpoint
// manager, without the call site having to run again.
//
// # Errors
//
// Bailouts are never errors. ExecuteExpansionCall returns an error only when
// the program itself fails: a non-iterable argument, a throwing iterator, or
// a throwing target.
package engine
