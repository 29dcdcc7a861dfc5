package builtins

import (
	"fmt"

	"github.com/flowquery-lang/flowquery/internal/registry"
	"github.com/flowquery-lang/flowquery/internal/value"
)

// sumAcc implements sum(x): numeric addition, or string concatenation if the
// first contributing value is a string (spec.md §4.9, §9 Open Question 3:
// "sum on strings concatenating is an accepted quirk ... should be
// documented, not silently turned into a type error"). Once a kind is
// settled by the first non-null value, every later value must match it.
type sumAcc struct {
	started  bool
	isString bool
	isInt    bool
	num      float64
	str      string
}

func newSumAcc() registry.Accumulator { return &sumAcc{isInt: true} }

func (a *sumAcc) Add(v value.Value) error {
	if v.IsNull() {
		return nil
	}
	if !a.started {
		a.started = true
		a.isString = v.Kind() == value.KindString
	}
	if a.isString {
		if v.Kind() != value.KindString {
			return fmt.Errorf("sum(): cannot mix string and %s", v.TypeName())
		}
		a.str += v.Str()
		return nil
	}
	if v.Kind() != value.KindNumber {
		return fmt.Errorf("sum(): expects numbers, got %s", v.TypeName())
	}
	a.num += v.Number()
	if !v.IsInt() {
		a.isInt = false
	}
	return nil
}

func (a *sumAcc) Finish() (value.Value, error) {
	if a.isString {
		return value.String(a.str), nil
	}
	if a.isInt {
		return value.Int(int64(a.num)), nil
	}
	return value.Float(a.num), nil
}

// avgAcc implements avg(x): sum/count over numeric input, null for an empty
// group (spec.md §4.9 "avg uniform sum+count ... null for empty").
type avgAcc struct {
	sum   float64
	count int64
}

func newAvgAcc() registry.Accumulator { return &avgAcc{} }

func (a *avgAcc) Add(v value.Value) error {
	if v.IsNull() {
		return nil
	}
	if v.Kind() != value.KindNumber {
		return fmt.Errorf("avg(): expects numbers, got %s", v.TypeName())
	}
	a.sum += v.Number()
	a.count++
	return nil
}

func (a *avgAcc) Finish() (value.Value, error) {
	if a.count == 0 {
		return value.Null, nil
	}
	return value.Float(a.sum / float64(a.count)), nil
}

// collectAcc implements collect(x): appends every contributing value in
// arrival order. DISTINCT dedup happens upstream, in exec's
// addToAccumulator, before Add is ever called (spec.md §4.8) — collect
// itself has no dedup logic of its own.
type collectAcc struct {
	elems []value.Value
}

func newCollectAcc() registry.Accumulator { return &collectAcc{} }

func (a *collectAcc) Add(v value.Value) error {
	a.elems = append(a.elems, v)
	return nil
}

func (a *collectAcc) Finish() (value.Value, error) {
	if a.elems == nil {
		return value.EmptyArray(), nil
	}
	return value.Array(a.elems), nil
}

// minMaxAcc backs both min(x) and max(x): it tracks the current extreme
// among same-kind orderable values (number or string), ignoring nulls.
type minMaxAcc struct {
	wantMax bool
	has     bool
	best    value.Value
}

func newMinAcc() registry.Accumulator { return &minMaxAcc{} }
func newMaxAcc() registry.Accumulator { return &minMaxAcc{wantMax: true} }

func (a *minMaxAcc) Add(v value.Value) error {
	if v.IsNull() {
		return nil
	}
	if !a.has {
		a.best = v
		a.has = true
		return nil
	}
	cmp, ok := value.Ordered(a.best, v)
	if !ok {
		return fmt.Errorf("min/max(): cannot compare %s with %s", a.best.TypeName(), v.TypeName())
	}
	if (a.wantMax && cmp < 0) || (!a.wantMax && cmp > 0) {
		a.best = v
	}
	return nil
}

func (a *minMaxAcc) Finish() (value.Value, error) {
	if !a.has {
		return value.Null, nil
	}
	return a.best, nil
}

// countAcc implements count([x]): counts one contribution per Add call,
// including null values — count() with no argument feeds value.Null once
// per group row (exec.feedAggregate's "len(fc.Args)==0" case), so this
// accumulator must count occurrences, not non-null values.
type countAcc struct {
	n int64
}

func newCountAcc() registry.Accumulator { return &countAcc{} }

func (a *countAcc) Add(value.Value) error {
	a.n++
	return nil
}

func (a *countAcc) Finish() (value.Value, error) {
	return value.Int(a.n), nil
}
