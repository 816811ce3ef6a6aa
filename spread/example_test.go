package spread_test

import (
	"fmt"

	"github.com/kolkov/spreadcall/spread"
)

func add(r *spread.Realm) *spread.Object {
	return r.NewFunction("add", func(_ spread.Value, args []spread.Value) (spread.Value, error) {
		return args[0].(float64) + args[1].(float64), nil
	})
}

// Example demonstrates a call site reaching the fast path.
func Example() {
	_ = spread.Configure(spread.Options{Threshold: 3})
	defer spread.Fini()

	r := spread.DefaultRealm()
	fn := add(r)
	for i := 0; i < 5; i++ {
		res, _ := spread.Call("example", r.NewArray(1.0, 2.0), fn)
		fmt.Println(res.Value, res.Path)
	}

	// Output:
	// 3 general
	// 3 general
	// 3 general
	// 3 fast
	// 3 fast
}

// Example_iteratorOverride shows an own @@iterator taking effect on a
// specialized call site.
func Example_iteratorOverride() {
	_ = spread.Configure(spread.Options{Threshold: 2})
	defer spread.Fini()

	r := spread.DefaultRealm()
	fn := add(r)
	for i := 0; i < 2; i++ {
		_, _ = spread.Call("override", r.NewArray(1.0, 2.0), fn)
	}

	values := r.ArrayPrototype().Get(spread.SymbolIterator)
	other := r.NewArray(3.0, 4.0)
	arr := r.NewArray(1.0, 2.0)
	arr.Set(spread.SymbolIterator, r.NewFunction("iter", func(_ spread.Value, _ []spread.Value) (spread.Value, error) {
		return spread.Invoke(values, other)
	}))

	res, _ := spread.Call("override", arr, fn)
	fmt.Println(res.Value, res.Path, res.Bailout)

	// Output:
	// 7 general protocol check failed
}

// ExampleGetInfo shows version information.
func ExampleGetInfo() {
	info := spread.GetInfo()
	fmt.Println(info.Version, spread.Canonical())

	// Output:
	// 0.1.0 v0.1.0
}
