// Package watchpoint implements the invalidation manager.
//
// A Watchpoint links one identity-sensitive slot to the set of guards that
// depend on it. The relation is many-to-many: every guard depends on the two
// realm protocol slots plus its observed instance's own @@iterator slot, and
// every protocol slot backs every installed guard.
//
// # Invalidation Protocol
//
// The Manager is a realm.MutationObserver. Realm writes announce a slot
// before the new value is visible; OnMutation then, synchronously and under
// the manager lock:
//
//  1. Collects every guard depending on the slot
//  2. Unlinks each guard from all of its watchpoints
//  3. Invalidates the owning call site (withdraws the fast path, demotes,
//     clears the feedback streak)
//  4. Latches the guard retired
//
// Step 3 precedes step 4, so a call site never publishes a retired guard.
// The Manager also subscribes to the realm's protocol registry: poisoning
// retires every guard that assumed the default protocol.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Lock order is realm slot lock,
// then manager lock, then call-site lock.
package watchpoint
