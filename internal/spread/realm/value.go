package realm

import (
	"fmt"
	"math"
	"strconv"
)

// Value is any value the object model can hold: float64, string, bool,
// Undefined or *Object.
type Value any

type undefinedType struct{}

func (undefinedType) String() string { return "undefined" }

// Undefined is the undefined value.
var Undefined Value = undefinedType{}

type holeType struct{}

func (holeType) String() string { return "<hole>" }

// Hole marks a missing element in array storage. It never escapes through
// Get or Element; those return Undefined for holes.
var Hole Value = holeType{}

// PropertyKey names a property: a string key or a well-known symbol.
type PropertyKey struct {
	name   string
	symbol bool
}

// Key returns the string property key name.
func Key(name string) PropertyKey {
	return PropertyKey{name: name}
}

// Well-known keys.
var (
	// SymbolIterator is the @@iterator well-known symbol.
	SymbolIterator = PropertyKey{name: "Symbol.iterator", symbol: true}

	// KeyNext is the iterator advance method name.
	KeyNext = Key("next")

	// KeyValue and KeyDone are the iterator result fields.
	KeyValue = Key("value")
	KeyDone  = Key("done")
)

// IsSymbol reports whether k is a symbol key.
func (k PropertyKey) IsSymbol() bool { return k.symbol }

func (k PropertyKey) String() string {
	if k.symbol {
		return "@@" + k.name[len("Symbol."):]
	}
	return k.name
}

// watched reports whether writes to k can change spread behavior.
func (k PropertyKey) watched() bool {
	return k == SymbolIterator || k == KeyNext
}

// SameValue reports whether a and b are the identical value. Objects
// compare by identity.
func SameValue(a, b Value) bool {
	return a == b
}

// ToBoolean converts v to a boolean the way iterator results are tested.
func ToBoolean(v Value) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case string:
		return x != ""
	case *Object:
		return x != nil
	default:
		return false
	}
}

// Format renders v for diagnostics.
func Format(v Value) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return strconv.Quote(x)
	case *Object:
		return x.String()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

// TypeError is raised by the object model when a value has the wrong kind,
// for example calling a non-function.
type TypeError struct {
	Msg string
}

func (e *TypeError) Error() string {
	return "TypeError: " + e.Msg
}

// NewTypeError formats a TypeError.
func NewTypeError(format string, args ...any) *TypeError {
	return &TypeError{Msg: fmt.Sprintf(format, args...)}
}
