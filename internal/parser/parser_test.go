package parser

import (
	"context"
	"testing"

	"github.com/flowquery-lang/flowquery/internal/ferrors"
	"github.com/flowquery-lang/flowquery/internal/registry"
	"github.com/flowquery-lang/flowquery/internal/value"
)

func testRegistry() *registry.Registry {
	reg := registry.New()
	reg.RegisterScalar("range", 2, func(context.Context, []value.Value) (value.Value, error) {
		return value.Null, nil
	})
	reg.RegisterAggregate("sum", 1, func() registry.Accumulator { return nil })
	return reg
}

func TestParseSimpleReturn(t *testing.T) {
	prog, err := Parse("RETURN 1 + 1 AS answer", testRegistry())
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if prog.First == nil || prog.Terminal == nil {
		t.Fatal("expected a non-empty program with a terminal operation")
	}
}

func errKind(t *testing.T, err error) ferrors.Kind {
	t.Helper()
	ce, ok := err.(*ferrors.CompilerError)
	if !ok {
		t.Fatalf("expected *ferrors.CompilerError, got %T: %v", err, err)
	}
	return ce.Kind
}

func TestParseArityMismatch(t *testing.T) {
	_, err := Parse("RETURN range(1) AS r", testRegistry())
	if err == nil {
		t.Fatal("expected range(1) to fail to parse (fixed arity 2)")
	}
	if got := errKind(t, err); got != ferrors.ArityMismatch {
		t.Errorf("expected ArityMismatch, got %s", got)
	}
}

func TestParseUnknownFunction(t *testing.T) {
	_, err := Parse("RETURN nope(1) AS x", testRegistry())
	if err == nil {
		t.Fatal("expected an unknown function to fail to parse")
	}
	if got := errKind(t, err); got != ferrors.UnknownFunction {
		t.Errorf("expected UnknownFunction, got %s", got)
	}
}

func TestParseNestedAggregateRejected(t *testing.T) {
	_, err := Parse("RETURN sum(sum(1)) AS total", testRegistry())
	if err == nil {
		t.Fatal("expected nested aggregate calls to fail to parse")
	}
	if got := errKind(t, err); got != ferrors.NestedAggregate {
		t.Errorf("expected NestedAggregate, got %s", got)
	}
}

func TestParseMissingWhitespaceRejected(t *testing.T) {
	// The LIMIT count and the following WITH keyword lex as separate tokens
	// (digits don't merge with letters) but with no whitespace between them,
	// which the top-level operation loop must reject.
	_, err := Parse("WITH 1 AS a LIMIT 1WITH 2 AS b RETURN a, b", testRegistry())
	if err == nil {
		t.Fatal("expected a missing separator between LIMIT's count and the next operation to fail to parse")
	}
	if got := errKind(t, err); got != ferrors.ExpectedWhitespace {
		t.Errorf("expected ExpectedWhitespace, got %s", got)
	}
}

func TestParseDuplicateReturnRejected(t *testing.T) {
	_, err := Parse("RETURN 1 RETURN 1", testRegistry())
	if err == nil {
		t.Fatal("expected a second RETURN to fail to parse")
	}
	if got := errKind(t, err); got != ferrors.DuplicateReturn {
		t.Errorf("expected DuplicateReturn, got %s", got)
	}
}

func TestParseUnexpectedTokenReportsFirstError(t *testing.T) {
	_, err := Parse("RETURN (", testRegistry())
	if err == nil {
		t.Fatal("expected an unterminated expression to fail to parse")
	}
	if got := errKind(t, err); got != ferrors.UnexpectedToken {
		t.Errorf("expected UnexpectedToken, got %s", got)
	}
}
