package flowquery

import (
	"context"
	"errors"
	"testing"

	"github.com/flowquery-lang/flowquery/internal/registry"
	"github.com/flowquery-lang/flowquery/internal/value"
)

func TestNewParsesEagerlyAndFailsFast(t *testing.T) {
	if _, err := New("RETURN ("); err == nil {
		t.Fatal("expected New to fail fast on a syntax error")
	}
}

func TestRunnerRunAndResults(t *testing.T) {
	runner, err := New("UNWIND [1,2,3] AS n RETURN n * 2 AS doubled")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	rows := runner.Results()
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	got, _ := rows[1].Get("doubled")
	if got.Int() != 4 {
		t.Errorf("row 1 doubled = %v, want 4", got)
	}
}

func TestRunnerWithRegistryIsolatesCustomFunctions(t *testing.T) {
	reg := registry.New()
	reg.RegisterScalar("double", 1, func(_ context.Context, args []value.Value) (value.Value, error) {
		return value.Int(args[0].Int() * 2), nil
	})
	runner, err := New("RETURN double(21) AS x", WithRegistry(reg))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	got, _ := runner.Results()[0].Get("x")
	if got.Int() != 42 {
		t.Errorf("double(21) = %v, want 42", got)
	}

	if _, ok := DefaultRegistry.ResolveScalar("double"); ok {
		t.Error("expected a scoped registry's custom function not to leak into DefaultRegistry")
	}
}

func TestRunnerMaxRowsCapsResults(t *testing.T) {
	runner, err := New("UNWIND [1,2,3,4,5] AS n RETURN n AS x", WithMaxRows(2))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(runner.Results()) != 2 {
		t.Errorf("expected WithMaxRows(2) to cap results at 2, got %d", len(runner.Results()))
	}
}

func TestFormatErrorUsesCaretFormatForCompilerErrors(t *testing.T) {
	_, err := New("RETURN (")
	out := FormatError(err, false)
	if out == "" {
		t.Error("expected a non-empty formatted error")
	}
}

func TestFormatErrorFallsBackForPlainErrors(t *testing.T) {
	out := FormatError(errors.New("plain failure"), false)
	if out != "plain failure" {
		t.Errorf("FormatError(plain) = %q, want \"plain failure\"", out)
	}
}

func TestRunnerUnregisterRemovesFunction(t *testing.T) {
	reg := registry.New()
	reg.RegisterScalar("double", 1, func(_ context.Context, args []value.Value) (value.Value, error) {
		return value.Int(args[0].Int() * 2), nil
	})
	runner, err := New("RETURN 1 AS x", WithRegistry(reg))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !runner.Unregister("double") {
		t.Error("expected Unregister to report success for a previously-registered function")
	}
	if _, ok := runner.Metadata("double"); ok {
		t.Error("expected metadata to be gone after Unregister")
	}
}
