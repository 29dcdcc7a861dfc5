package builtins

import (
	"testing"

	"github.com/flowquery-lang/flowquery/internal/value"
)

func TestSumAccNumeric(t *testing.T) {
	acc := newSumAcc()
	for _, v := range []value.Value{value.Int(1), value.Null, value.Int(2), value.Float(0.5)} {
		if err := acc.Add(v); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	got, err := acc.Finish()
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if got.Number() != 3.5 {
		t.Errorf("sum = %v, want 3.5", got.Number())
	}
}

func TestSumAccString(t *testing.T) {
	acc := newSumAcc()
	acc.Add(value.String("a"))
	acc.Add(value.String("b"))
	got, _ := acc.Finish()
	if got.Str() != "ab" {
		t.Errorf("sum of strings = %q, want \"ab\"", got.Str())
	}
}

func TestSumAccMixedTypesErrors(t *testing.T) {
	acc := newSumAcc()
	acc.Add(value.Int(1))
	if err := acc.Add(value.String("x")); err == nil {
		t.Error("expected an error mixing number and string in sum()")
	}
}

func TestAvgAccEmptyIsNull(t *testing.T) {
	acc := newAvgAcc()
	got, err := acc.Finish()
	if err != nil || !got.IsNull() {
		t.Errorf("avg() over no rows = %v, %v; want null", got, err)
	}
}

func TestAvgAcc(t *testing.T) {
	acc := newAvgAcc()
	acc.Add(value.Int(2))
	acc.Add(value.Int(4))
	got, _ := acc.Finish()
	if got.Number() != 3 {
		t.Errorf("avg(2,4) = %v, want 3", got.Number())
	}
}

func TestCollectAccPreservesArrivalOrder(t *testing.T) {
	acc := newCollectAcc()
	acc.Add(value.Int(3))
	acc.Add(value.Int(1))
	acc.Add(value.Int(2))
	got, _ := acc.Finish()
	elems := got.Elements()
	if len(elems) != 3 || elems[0].Int() != 3 || elems[1].Int() != 1 || elems[2].Int() != 2 {
		t.Errorf("collect() = %v, want arrival order [3,1,2]", elems)
	}
}

func TestMinMaxAccIgnoreNulls(t *testing.T) {
	minAcc := newMinAcc()
	maxAcc := newMaxAcc()
	for _, v := range []value.Value{value.Int(5), value.Null, value.Int(1), value.Int(3)} {
		minAcc.Add(v)
		maxAcc.Add(v)
	}
	gotMin, _ := minAcc.Finish()
	gotMax, _ := maxAcc.Finish()
	if gotMin.Int() != 1 {
		t.Errorf("min = %v, want 1", gotMin)
	}
	if gotMax.Int() != 5 {
		t.Errorf("max = %v, want 5", gotMax)
	}
}

func TestMinMaxAccEmptyIsNull(t *testing.T) {
	acc := newMinAcc()
	got, _ := acc.Finish()
	if !got.IsNull() {
		t.Errorf("min() over no rows = %v, want null", got)
	}
}

func TestCountAccCountsNullsToo(t *testing.T) {
	acc := newCountAcc()
	acc.Add(value.Null)
	acc.Add(value.Int(1))
	acc.Add(value.Null)
	got, _ := acc.Finish()
	if got.Int() != 3 {
		t.Errorf("count() = %v, want 3 (count() feeds null once per row)", got)
	}
}
