package exec

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/flowquery-lang/flowquery/internal/builtins"
	"github.com/flowquery-lang/flowquery/internal/parser"
	"github.com/flowquery-lang/flowquery/internal/registry"
	"github.com/flowquery-lang/flowquery/internal/value"
)

// testRun parses and runs source with every builtin registered, mirroring
// the teacher's testEval helper (internal/interp/interpreter_test.go)
// adapted to FlowQuery's row-producing Run instead of a single Eval result.
func testRun(t *testing.T, source string, opts ...Option) []value.Value {
	t.Helper()
	reg := registry.New()
	builtins.Register(reg)
	prog, err := parser.Parse(source, reg)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	ex := New(reg, source, "<test>", opts...)
	rows, err := ex.Run(context.Background(), prog)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	return rows
}

func TestReturnArithmetic(t *testing.T) {
	rows := testRun(t, "RETURN 1 + 2 * 3 AS x")
	if len(rows) != 1 || rows[0].Kind() != value.KindMap {
		t.Fatalf("unexpected rows: %v", rows)
	}
	got, _ := rows[0].Get("x")
	if got.Int() != 7 {
		t.Errorf("1 + 2 * 3 = %v, want 7", got)
	}
}

func TestWithChainAndReference(t *testing.T) {
	rows := testRun(t, "WITH 2 AS a WITH a * 10 AS b RETURN b AS result")
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	got, _ := rows[0].Get("result")
	if got.Int() != 20 {
		t.Errorf("result = %v, want 20", got)
	}
}

func TestUnwindProducesOneRowPerElement(t *testing.T) {
	rows := testRun(t, "UNWIND [1,2,3] AS n RETURN n * n AS sq")
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	want := []int64{1, 4, 9}
	for i, row := range rows {
		got, _ := row.Get("sq")
		if got.Int() != want[i] {
			t.Errorf("row %d: sq = %v, want %d", i, got, want[i])
		}
	}
}

func TestUnwindNullSourceProducesNoRows(t *testing.T) {
	rows := testRun(t, "WITH null AS s UNWIND s AS n RETURN n AS x")
	if len(rows) != 0 {
		t.Errorf("expected 0 rows from UNWIND null, got %d", len(rows))
	}
}

func TestWhereFiltersRows(t *testing.T) {
	rows := testRun(t, "UNWIND [1,2,3,4,5] AS n WHERE n % 2 = 0 RETURN n AS even")
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	first, _ := rows[0].Get("even")
	second, _ := rows[1].Get("even")
	if first.Int() != 2 || second.Int() != 4 {
		t.Errorf("got %v, %v; want 2, 4", first, second)
	}
}

func TestLimitStopsProduction(t *testing.T) {
	rows := testRun(t, "UNWIND [1,2,3,4,5] AS n LIMIT 2 RETURN n AS x")
	if len(rows) != 2 {
		t.Fatalf("expected exactly 2 rows from LIMIT 2, got %d", len(rows))
	}
}

func TestReturnDistinctDeduplicates(t *testing.T) {
	rows := testRun(t, "UNWIND [1,1,2,2,3] AS n RETURN DISTINCT n AS x")
	if len(rows) != 3 {
		t.Fatalf("expected 3 distinct rows, got %d", len(rows))
	}
}

func TestReturnDistinctNormalizesUnicodeForm(t *testing.T) {
	// nfc is a precomposed "é"; nfd is "e" + combining acute. They must
	// collapse under RETURN DISTINCT's dedup, matching value.Equal.
	nfc := "é"
	nfd := "é"
	source := `UNWIND ["` + nfc + `", "` + nfd + `"] AS s RETURN DISTINCT s AS x`
	rows := testRun(t, source)
	if len(rows) != 1 {
		t.Fatalf("expected NFC/NFD forms to dedup to 1 row, got %d", len(rows))
	}
}

func TestAggregationGroupsByMappableKey(t *testing.T) {
	rows := testRun(t, `UNWIND [1,2,3,4] AS n WITH n % 2 AS parity, sum(n) AS total RETURN parity, total`)
	if len(rows) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(rows))
	}
	totals := map[int64]int64{}
	for _, row := range rows {
		parity, _ := row.Get("parity")
		total, _ := row.Get("total")
		totals[parity.Int()] = total.Int()
	}
	if totals[0] != 6 || totals[1] != 4 {
		t.Errorf("grouped totals = %v, want {0:6, 1:4}", totals)
	}
}

func TestUngroupedAggregateOverZeroRowsEmitsOneRow(t *testing.T) {
	rows := testRun(t, "UNWIND [] AS n RETURN count(n) AS c")
	if len(rows) != 1 {
		t.Fatalf("expected 1 row for an ungrouped aggregate over zero input rows, got %d", len(rows))
	}
	c, _ := rows[0].Get("c")
	if c.Int() != 0 {
		t.Errorf("count() over zero rows = %v, want 0", c)
	}
}

func TestGroupedAggregateOverZeroRowsEmitsNoRows(t *testing.T) {
	rows := testRun(t, "UNWIND [] AS n WITH n AS k, count(n) AS c RETURN k, c")
	if len(rows) != 0 {
		t.Errorf("expected 0 groups when a mappable key exists but no rows arrive, got %d", len(rows))
	}
}

func TestIsNullAndCoalesce(t *testing.T) {
	rows := testRun(t, "RETURN coalesce(null, null, 5) AS x")
	got, _ := rows[0].Get("x")
	if got.Int() != 5 {
		t.Errorf("coalesce(null,null,5) = %v, want 5", got)
	}
}

func TestLookupOutOfRangeIsNullNotError(t *testing.T) {
	rows := testRun(t, "RETURN [1,2,3][10] AS x")
	got, _ := rows[0].Get("x")
	if !got.IsNull() {
		t.Errorf("out-of-range index = %v, want null", got)
	}
}

func TestNegativeIndexWrapsFromEnd(t *testing.T) {
	rows := testRun(t, "RETURN [1,2,3][-1] AS x")
	got, _ := rows[0].Get("x")
	if got.Int() != 3 {
		t.Errorf("[1,2,3][-1] = %v, want 3", got)
	}
}

func TestDivisionByZeroIsNullNotError(t *testing.T) {
	rows := testRun(t, "RETURN 1 / 0 AS x")
	got, _ := rows[0].Get("x")
	if !got.IsNull() {
		t.Errorf("1/0 = %v, want null", got)
	}
}

func TestNullComparisonsAreFalseNotNull(t *testing.T) {
	rows := testRun(t, `RETURN null = null AS eq, null <> null AS neq, 1 < null AS lt, null >= 2 AS gte`)
	row := rows[0]

	eq, _ := row.Get("eq")
	if eq.IsNull() || eq.Truthy() {
		t.Errorf("null = null should be false, got %v", eq)
	}
	neq, _ := row.Get("neq")
	if neq.IsNull() || neq.Truthy() {
		t.Errorf("null <> null should be false, got %v", neq)
	}
	lt, _ := row.Get("lt")
	if lt.IsNull() || lt.Truthy() {
		t.Errorf("1 < null should be false, got %v", lt)
	}
	gte, _ := row.Get("gte")
	if gte.IsNull() || gte.Truthy() {
		t.Errorf("null >= 2 should be false, got %v", gte)
	}
}

func TestUnresolvedReferenceIsAnError(t *testing.T) {
	reg := registry.New()
	builtins.Register(reg)
	prog, err := parser.Parse("RETURN doesNotExist AS x", reg)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	ex := New(reg, "RETURN doesNotExist AS x", "<test>")
	if _, err := ex.Run(context.Background(), prog); err == nil {
		t.Error("expected an execution error for an unresolved reference")
	}
}

func TestLoadJSONArrayEmitsOneRowPerElement(t *testing.T) {
	reg := registry.New()
	builtins.Register(reg)
	source := `LOAD JSON FROM "http://example.invalid/data" AS item RETURN item AS x`
	prog, err := parser.Parse(source, reg)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	client := &jsonDoer{body: `[{"a":1},{"a":2}]`}
	ex := New(reg, source, "<test>", WithHTTPClient(client))
	rows, err := ex.Run(context.Background(), prog)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows from a 2-element JSON array, got %d", len(rows))
	}
}

func TestCallYieldLessTerminalCollectsEachElement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"n":1},{"n":2},{"n":3}]`))
	}))
	defer srv.Close()

	reg := registry.New()
	builtins.Register(reg, builtins.WithHTTPClient(srv.Client()))
	source := `CALL fetchJson("` + srv.URL + `")`
	prog, err := parser.Parse(source, reg)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	ex := New(reg, source, "<test>")
	rows, err := ex.Run(context.Background(), prog)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 collected rows, got %d", len(rows))
	}
	n, _ := rows[1].Get("n")
	if n.Int() != 2 {
		t.Errorf("row 1's n = %v, want 2", n)
	}
}

func TestCallWithYieldBindsNamedFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"n":1},{"n":2}]`))
	}))
	defer srv.Close()

	reg := registry.New()
	builtins.Register(reg, builtins.WithHTTPClient(srv.Client()))
	source := `CALL fetchJson("` + srv.URL + `") YIELD n RETURN n * 10 AS x`
	prog, err := parser.Parse(source, reg)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	ex := New(reg, source, "<test>")
	rows, err := ex.Run(context.Background(), prog)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	x, _ := rows[0].Get("x")
	if x.Int() != 10 {
		t.Errorf("first row x = %v, want 10", x)
	}
}

// jsonDoer returns a canned 200 response with a JSON body, bypassing the
// network entirely (spec.md §9 "External Interfaces are swappable for
// tests").
type jsonDoer struct{ body string }

func (d *jsonDoer) Do(req *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(strings.NewReader(d.body)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}
