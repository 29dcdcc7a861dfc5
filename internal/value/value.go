// Package value implements FlowQuery's dynamic value domain: null, boolean,
// number (IEEE-754 double with an integer fast path), string, ordered
// sequence, and insertion-ordered mapping (spec.md §3, §9). It is grounded
// on the teacher's internal/jsonvalue.Value — a tagged struct rather than
// interface{}, for the same reason: simpler, type-safe downstream use in
// the evaluator and builtins.
package value

import "math"

// Kind identifies which alternative of the value domain a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindMap:
		return "object"
	default:
		return "unknown"
	}
}

// Value is an immutable FlowQuery runtime value (spec.md §3: "Values are
// immutable once produced by an operation"). Mapping values are
// insertion-ordered; Array values preserve element order.
type Value struct {
	kind Kind

	b   bool
	num float64
	// isInt records that num happens to be integer-valued, so String() and
	// f-string coercion can print "3" instead of "3.0" (the "integer fast
	// path" of spec.md §3 is purely a presentation/equality convenience —
	// arithmetic always happens in float64).
	isInt bool
	str   string
	arr   []Value
	keys  []string
	m     map[string]Value
}

// Null is the canonical null value.
var Null = Value{kind: KindNull}

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns a number value known to be integer-valued.
func Int(n int64) Value { return Value{kind: KindNumber, num: float64(n), isInt: true} }

// Float returns a number value.
func Float(f float64) Value {
	v := Value{kind: KindNumber, num: f}
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		v.isInt = true
	}
	return v
}

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Array returns a sequence value. The slice is taken by reference; callers
// must not mutate it afterwards (copy-on-write is the caller's
// responsibility, per spec.md §9).
func Array(elems []Value) Value { return Value{kind: KindArray, arr: elems} }

// EmptyArray returns a new, empty sequence value.
func EmptyArray() Value { return Value{kind: KindArray, arr: []Value{}} }

// Map returns an insertion-ordered mapping value built from keys (in
// order) and the matching values.
func Map(keys []string, values []Value) Value {
	m := make(map[string]Value, len(keys))
	ks := make([]string, 0, len(keys))
	for i, k := range keys {
		if _, exists := m[k]; !exists {
			ks = append(ks, k)
		}
		m[k] = values[i]
	}
	return Value{kind: KindMap, keys: ks, m: m}
}

// EmptyMap returns a new, empty mapping value.
func EmptyMap() Value { return Value{kind: KindMap, keys: []string{}, m: map[string]Value{}} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Bool() bool { return v.b }
func (v Value) Number() float64 { return v.num }
func (v Value) IsInt() bool { return v.isInt }
func (v Value) Int() int64 { return int64(v.num) }
func (v Value) Str() string { return v.str }
func (v Value) Elements() []Value { return v.arr }
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindMap:
		return len(v.keys)
	case KindString:
		return len([]rune(v.str))
	default:
		return 0
	}
}

// Keys returns the mapping's keys in insertion order. Returns nil for
// non-map values.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// Get looks up key in a mapping value. Returns Null and false if v is not a
// map or the key is absent (lookups on a non-mapping/non-array/missing key
// are a benign null, never an error — spec.md §7).
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Null, false
	}
	val, ok := v.m[key]
	return val, ok
}

// Truthy implements FlowQuery's falsy set: null, the number zero, and the
// empty string/array/map are falsy; everything else (including any
// non-empty collection) is truthy (spec.md §4.5).
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.b
	case KindNumber:
		return v.num != 0
	case KindString:
		return v.str != ""
	case KindArray:
		return len(v.arr) > 0
	case KindMap:
		return len(v.keys) > 0
	default:
		return false
	}
}

// TypeName returns one of "number", "string", "boolean", "array",
// "object", "null" — the result of the type() builtin (spec.md §4.9).
func (v Value) TypeName() string { return v.kind.String() }
