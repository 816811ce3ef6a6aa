// Package api holds the process-wide default realm and engine.
//
// The default engine is created during init() with zap.NewNop logging and
// the default threshold. Configure replaces it; callers that keep handles
// from Realm() must re-fetch them after Configure, since a new engine comes
// with a new realm.
//
// When speculation is disabled every call takes the general path.
package api

import (
	"sync"
	"sync/atomic"

	"github.com/kolkov/spreadcall/internal/spread/engine"
	"github.com/kolkov/spreadcall/internal/spread/expand"
	"github.com/kolkov/spreadcall/internal/spread/realm"
)

var (
	// enabled controls whether call sites may be specialized.
	enabled atomic.Bool

	// current is the default engine. Swapped only by Configure.
	current atomic.Pointer[engine.Engine]

	// configMu serializes Configure and Fini.
	configMu sync.Mutex

	general = expand.NewExecutor(0)
)

func init() {
	current.Store(engine.New(realm.New(), engine.Options{}))
	enabled.Store(true)
}

// Enable turns speculation on.
func Enable() { enabled.Store(true) }

// Disable turns speculation off. Published fast paths stay installed but
// are not entered.
func Disable() { enabled.Store(false) }

// Enabled reports whether speculation is on.
func Enabled() bool { return enabled.Load() }

// Engine returns the default engine.
func Engine() *engine.Engine { return current.Load() }

// Realm returns the default engine's realm.
func Realm() *realm.Realm { return current.Load().Realm() }

// Configure replaces the default engine with one built from opts over a
// fresh realm. The previous engine is closed.
func Configure(opts engine.Options) error {
	configMu.Lock()
	defer configMu.Unlock()

	prev := current.Swap(engine.New(realm.New(), opts))
	return prev.Close()
}

// Execute evaluates target(...value) at the call site named siteID.
func Execute(siteID string, value, target realm.Value) (engine.CallResult, error) {
	e := current.Load()
	if !enabled.Load() {
		args, err := general.Expand(value)
		if err != nil {
			return engine.CallResult{Value: realm.Undefined}, err
		}
		v, err := realm.Call(target, realm.Undefined, args)
		return engine.CallResult{Value: v, Path: engine.PathGeneral}, err
	}
	return e.ExecuteExpansionCall(e.Site(siteID), value, target)
}

// Stats returns the default engine's counters.
func Stats() engine.Stats { return current.Load().Stats() }

// Fini drains the default engine's background compiler.
func Fini() error {
	configMu.Lock()
	defer configMu.Unlock()
	return current.Load().Close()
}
