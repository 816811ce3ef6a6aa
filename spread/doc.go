// Package spread provides speculative specialization of expansion calls
// (f(...xs)) over a small prototype-based object model.
//
// # Quick Start
//
//	r := spread.DefaultRealm()
//	add := r.NewFunction("add", func(_ spread.Value, args []spread.Value) (spread.Value, error) {
//		return args[0].(float64) + args[1].(float64), nil
//	})
//	res, err := spread.Call("site-1", r.NewArray(1.0, 2.0), add)
//
// # How It Works
//
// Each call site records whether its argument was a hole-free array whose
// iteration behavior is the realm default. After [Options.Threshold]
// consecutive qualifying executions the engine synthesizes a guard:
//   - the argument is an array
//   - it has no holes
//   - its prototype is %Array.prototype%
//   - its @@iterator resolves to the default values function
//   - %ArrayIteratorPrototype%.next is the default
//
// The guard is registered on watchpoints for every slot it depends on.
// Writing a watched slot retires the guard and demotes the site before the
// write can be observed. Replacing a default protocol slot at all poisons
// the realm, so no site specializes against the default protocol again.
//
// A guard that fails on entry demotes the site and the call proceeds on
// the general path. Sites may requalify afterwards.
//
// # Configuration
//
// The cmd/spreadcall tool reads the same settings from YAML and SPREADCALL_*
// environment variables.
package spread
