// Package builtins implements FlowQuery's built-in scalar, aggregate, and
// async functions (spec.md §4.9, C9), registered against the generic
// internal/registry.Registry rather than dispatched through a bespoke
// Context interface the way the teacher's internal/interp/builtins does —
// FlowQuery's builtins only ever need the argument values and a context.Context
// for cancellation, so the extra indirection the teacher's Context interface
// buys (AST-node error sites, Variant helpers, I/O callbacks) has nothing to
// attach to here. Organised the same way the teacher organises its builtins
// package: one file per concern (scalar.go, aggregate.go, async.go), a single
// Register entry point wiring everything into a Registry (register.go).
package builtins

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/flowquery-lang/flowquery/internal/value"
)

func argErr(name string, format string, args ...any) error {
	return fmt.Errorf("%s(): %s", name, fmt.Sprintf(format, args...))
}

// rangeFn implements range(a, b): an inclusive integer sequence from a to b.
// b < a yields an empty array rather than an error, matching the teacher's
// "empty range, not exception" convention for bounds-driven built-ins
// (e.g. Slice/Copy in internal/interp/builtins/array.go).
func rangeFn(_ context.Context, args []value.Value) (value.Value, error) {
	a, b := args[0], args[1]
	if a.Kind() != value.KindNumber || b.Kind() != value.KindNumber {
		return value.Null, argErr("range", "expects two numbers, got %s and %s", a.TypeName(), b.TypeName())
	}
	lo, hi := a.Int(), b.Int()
	if hi < lo {
		return value.EmptyArray(), nil
	}
	out := make([]value.Value, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, value.Int(i))
	}
	return value.Array(out), nil
}

// randFn implements rand(): a uniform float in [0, 1). Not seeded per-Runner
// (spec.md names no seeding hook for rand, unlike the teacher's
// RandSeed/SetRandSeed pair), so it shares the package-level math/rand
// source exactly as the teacher's not-yet-migrated Random() does.
func randFn(_ context.Context, _ []value.Value) (value.Value, error) {
	return value.Float(rand.Float64()), nil
}

// roundFn implements round(x[, digits]). With no digits it is the teacher's
// banker's-rounding Round() (round-half-to-even, always Integer); with
// digits it rounds to that many decimal places and returns a Float.
func roundFn(_ context.Context, args []value.Value) (value.Value, error) {
	x := args[0]
	if x.Kind() != value.KindNumber {
		return value.Null, argErr("round", "expects a number, got %s", x.TypeName())
	}
	if len(args) == 1 {
		return value.Int(int64(math.RoundToEven(x.Number()))), nil
	}
	d := args[1]
	if d.Kind() != value.KindNumber {
		return value.Null, argErr("round", "digits must be a number, got %s", d.TypeName())
	}
	factor := math.Pow(10, d.Number())
	return value.Float(math.Round(x.Number()*factor) / factor), nil
}

func splitFn(_ context.Context, args []value.Value) (value.Value, error) {
	s, sep := args[0], args[1]
	if s.Kind() != value.KindString || sep.Kind() != value.KindString {
		return value.Null, argErr("split", "expects two strings, got %s and %s", s.TypeName(), sep.TypeName())
	}
	parts := strings.Split(s.Str(), sep.Str())
	out := make([]value.Value, len(parts))
	for i, p := range parts {
		out[i] = value.String(p)
	}
	return value.Array(out), nil
}

func joinFn(_ context.Context, args []value.Value) (value.Value, error) {
	arr, sep := args[0], args[1]
	if arr.Kind() != value.KindArray {
		return value.Null, argErr("join", "expects an array as first argument, got %s", arr.TypeName())
	}
	if sep.Kind() != value.KindString {
		return value.Null, argErr("join", "separator must be a string, got %s", sep.TypeName())
	}
	parts := make([]string, len(arr.Elements()))
	for i, el := range arr.Elements() {
		parts[i] = value.CoerceForFString(el)
	}
	return value.String(strings.Join(parts, sep.Str())), nil
}

func tojsonFn(_ context.Context, args []value.Value) (value.Value, error) {
	s := args[0]
	if s.Kind() != value.KindString {
		return value.Null, argErr("tojson", "expects a string, got %s", s.TypeName())
	}
	v, err := value.ParseJSON([]byte(s.Str()))
	if err != nil {
		return value.Null, argErr("tojson", "invalid JSON: %v", err)
	}
	return v, nil
}

func stringifyFn(_ context.Context, args []value.Value) (value.Value, error) {
	return value.String(value.Stringify(args[0])), nil
}

func replaceFn(_ context.Context, args []value.Value) (value.Value, error) {
	s, a, b := args[0], args[1], args[2]
	if s.Kind() != value.KindString || a.Kind() != value.KindString || b.Kind() != value.KindString {
		return value.Null, argErr("replace", "expects three strings")
	}
	return value.String(strings.ReplaceAll(s.Str(), a.Str(), b.Str())), nil
}

func sizeFn(_ context.Context, args []value.Value) (value.Value, error) {
	v := args[0]
	switch v.Kind() {
	case value.KindString, value.KindArray, value.KindMap:
		return value.Int(int64(v.Len())), nil
	default:
		return value.Null, argErr("size", "expects a string, array, or object, got %s", v.TypeName())
	}
}

func keysFn(_ context.Context, args []value.Value) (value.Value, error) {
	v := args[0]
	if v.Kind() != value.KindMap {
		return value.Null, argErr("keys", "expects an object, got %s", v.TypeName())
	}
	ks := v.Keys()
	out := make([]value.Value, len(ks))
	for i, k := range ks {
		out[i] = value.String(k)
	}
	return value.Array(out), nil
}

func typeFn(_ context.Context, args []value.Value) (value.Value, error) {
	return value.String(args[0].TypeName()), nil
}

func coalesceFn(_ context.Context, args []value.Value) (value.Value, error) {
	for _, a := range args {
		if !a.IsNull() {
			return a, nil
		}
	}
	return value.Null, nil
}

func toIntegerFn(_ context.Context, args []value.Value) (value.Value, error) {
	v := args[0]
	switch v.Kind() {
	case value.KindNumber:
		return value.Int(v.Int()), nil
	case value.KindBool:
		if v.Bool() {
			return value.Int(1), nil
		}
		return value.Int(0), nil
	case value.KindString:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.Str()), 64)
		if err != nil {
			return value.Null, nil
		}
		return value.Int(int64(n)), nil
	default:
		return value.Null, nil
	}
}

func toFloatFn(_ context.Context, args []value.Value) (value.Value, error) {
	v := args[0]
	switch v.Kind() {
	case value.KindNumber:
		return value.Float(v.Number()), nil
	case value.KindString:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.Str()), 64)
		if err != nil {
			return value.Null, nil
		}
		return value.Float(n), nil
	default:
		return value.Null, nil
	}
}

func toStringFn(_ context.Context, args []value.Value) (value.Value, error) {
	return value.String(value.CoerceForFString(args[0])), nil
}

func toBooleanFn(_ context.Context, args []value.Value) (value.Value, error) {
	return value.Bool(args[0].Truthy()), nil
}
