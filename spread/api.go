// Package spread provides the public API for speculative expansion calls.
//
// See doc.go for detailed documentation and examples.
package spread

import (
	internal "github.com/kolkov/spreadcall/internal/spread/api"
	"github.com/kolkov/spreadcall/internal/spread/engine"
	"github.com/kolkov/spreadcall/internal/spread/realm"
)

// Value is a realm value: nil (null), realm.Undefined, bool, float64,
// string or *Object.
type Value = realm.Value

// Object is a realm object.
type Object = realm.Object

// Realm is the object world an engine specializes against.
type Realm = realm.Realm

// Result is the outcome of one expansion call.
type Result = engine.CallResult

// Options configures the default engine.
type Options = engine.Options

// Stats is a snapshot of the default engine's counters.
type Stats = engine.Stats

// Undefined is the realm's undefined value.
var Undefined = realm.Undefined

// SymbolIterator is the well-known @@iterator key.
var SymbolIterator = realm.SymbolIterator

// Key returns the string property key name.
func Key(name string) realm.PropertyKey { return realm.Key(name) }

// Configure replaces the default engine. Handles obtained from [DefaultRealm]
// before the call belong to the old realm.
func Configure(opts Options) error {
	return internal.Configure(opts)
}

// DefaultRealm returns the realm of the default engine.
func DefaultRealm() *Realm {
	return internal.Realm()
}

// Call evaluates target(...value) at the call site named site.
//
// The first threshold executions of a site run the full iteration protocol.
// Once every one of them saw a dense plain array with intact iteration
// behavior, the site gets a guarded fast path that reads the array storage
// directly. Anything that could make the fast path observably different
// retires it before the change is visible.
//
// Example:
//
//	r := spread.DefaultRealm()
//	res, err := spread.Call("main.go:12", r.NewArray(1.0, 2.0), add)
func Call(site string, value, target Value) (Result, error) {
	return internal.Execute(site, value, target)
}

// Invoke calls fn with the given receiver and arguments.
func Invoke(fn, this Value, args ...Value) (Value, error) {
	return realm.Call(fn, this, args)
}

// Enable turns speculation on.
func Enable() { internal.Enable() }

// Disable forces every call onto the general path.
func Disable() { internal.Disable() }

// GetStats returns the default engine's counters.
func GetStats() Stats { return internal.Stats() }

// Fini drains pending background compilation.
func Fini() error { return internal.Fini() }
