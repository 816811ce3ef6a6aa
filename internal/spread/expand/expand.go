// Package expand implements general, protocol-respecting spread expansion.
//
// This is the reference semantics every fast path must match: look up
// @@iterator, call it, look up "next" on the returned iterator, and call it
// until a result reports done, collecting each yielded value.
package expand

import (
	"errors"
	"fmt"

	"github.com/kolkov/spreadcall/internal/spread/realm"
)

// DefaultMaxArguments bounds the number of values one expansion may yield.
const DefaultMaxArguments = 1 << 16

var (
	// ErrNotIterable is returned when the value has no callable @@iterator.
	ErrNotIterable = errors.New("expand: value is not iterable")

	// ErrBadIterator is returned when @@iterator does not return an object
	// or a step result is not an object.
	ErrBadIterator = errors.New("expand: iterator protocol violated")

	// ErrTooManyArguments is returned when an expansion exceeds the
	// argument limit.
	ErrTooManyArguments = errors.New("expand: too many arguments in spread call")
)

// Executor performs general expansion.
type Executor struct {
	MaxArguments int
}

// NewExecutor returns an executor with the given argument limit. A
// non-positive limit selects DefaultMaxArguments.
func NewExecutor(maxArgs int) *Executor {
	if maxArgs <= 0 {
		maxArgs = DefaultMaxArguments
	}
	return &Executor{MaxArguments: maxArgs}
}

// Expand produces the argument list for v by running the iteration
// protocol to completion.
func (e *Executor) Expand(v realm.Value) ([]realm.Value, error) {
	obj, ok := v.(*realm.Object)
	if !ok || obj == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotIterable, realm.Format(v))
	}

	method := obj.Get(realm.SymbolIterator)
	if fn, ok := method.(*realm.Object); !ok || !fn.IsCallable() {
		return nil, fmt.Errorf("%w: %s[@@iterator] is %s", ErrNotIterable, obj, realm.Format(method))
	}

	itv, err := realm.Call(method, obj, nil)
	if err != nil {
		return nil, err
	}
	it, ok := itv.(*realm.Object)
	if !ok || it == nil {
		return nil, fmt.Errorf("%w: @@iterator returned %s", ErrBadIterator, realm.Format(itv))
	}
	next := it.Get(realm.KeyNext)

	var args []realm.Value
	for {
		res, err := realm.Call(next, it, nil)
		if err != nil {
			return nil, err
		}
		step, ok := res.(*realm.Object)
		if !ok || step == nil {
			return nil, fmt.Errorf("%w: next returned %s", ErrBadIterator, realm.Format(res))
		}
		if realm.ToBoolean(step.Get(realm.KeyDone)) {
			return args, nil
		}
		if len(args) >= e.MaxArguments {
			return nil, fmt.Errorf("%w: limit %d", ErrTooManyArguments, e.MaxArguments)
		}
		args = append(args, step.Get(realm.KeyValue))
	}
}
