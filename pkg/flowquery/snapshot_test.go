package flowquery

import (
	"context"
	"testing"

	"github.com/flowquery-lang/flowquery/internal/value"
	"github.com/gkampitakis/go-snaps/snaps"
)

// TestCanonicalResultSnapshots snapshots the canonical-JSON result of a small
// set of representative pipelines, the same way the teacher snapshots an
// interpreter run's captured output (internal/interp/fixture_test.go).
func TestCanonicalResultSnapshots(t *testing.T) {
	cases := []struct {
		name   string
		source string
	}{
		{"arithmetic", "RETURN 1 + 2 * 3 AS x"},
		{"unwind_filter", "UNWIND [1,2,3,4,5] AS n WHERE n % 2 = 0 RETURN n AS even"},
		{"aggregation", "UNWIND [1,2,3,4] AS n WITH n % 2 AS parity, sum(n) AS total RETURN parity, total"},
		{"fstring_and_case", `WITH 3 AS n RETURN f"n={n}" AS label, CASE WHEN n > 2 THEN "big" ELSE "small" END AS size`},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			runner, err := New(c.source)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if err := runner.Run(context.Background()); err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			snaps.MatchSnapshot(t, value.CanonicalJSON(value.Array(runner.Results())))
		})
	}
}
