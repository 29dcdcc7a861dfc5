package ast

import (
	"testing"

	"github.com/flowquery-lang/flowquery/internal/token"
)

func numberLit(v float64) Expression {
	return &NumberLiteral{Tok: token.Token{Kind: token.NUMBER}, Value: v}
}

func TestContainsAggregateFindsNestedCall(t *testing.T) {
	agg := &FunctionCall{Tok: token.Token{Kind: token.IDENTIFIER}, Name: "sum", IsAggregate: true, Args: []Expression{numberLit(1)}}
	wrapped := &BinaryExpr{Tok: token.Token{Kind: token.PLUS}, Operator: "+", Left: numberLit(1), Right: agg}
	if !ContainsAggregate(wrapped) {
		t.Error("expected ContainsAggregate to find an aggregate nested in a binary expression")
	}
}

func TestContainsAggregateFalseForPlainExpression(t *testing.T) {
	plain := &BinaryExpr{Tok: token.Token{Kind: token.PLUS}, Operator: "+", Left: numberLit(1), Right: numberLit(2)}
	if ContainsAggregate(plain) {
		t.Error("expected ContainsAggregate to be false for an aggregate-free expression")
	}
}

func TestContainsAggregateLooksInsideNonAggregateCallArgs(t *testing.T) {
	agg := &FunctionCall{Tok: token.Token{Kind: token.IDENTIFIER}, Name: "sum", IsAggregate: true, Args: []Expression{numberLit(1)}}
	outer := &FunctionCall{Tok: token.Token{Kind: token.IDENTIFIER}, Name: "round", IsAggregate: false, Args: []Expression{agg}}
	if !ContainsAggregate(outer) {
		t.Error("expected ContainsAggregate to look inside a non-aggregate call's arguments")
	}
}

func TestWithOpIsAggregatedReflectsItems(t *testing.T) {
	agg := &FunctionCall{Tok: token.Token{Kind: token.IDENTIFIER}, Name: "sum", IsAggregate: true, Args: []Expression{numberLit(1)}}
	op := &WithOp{Items: []*WithItem{{Root: agg, Alias: "total"}}}
	if !op.IsAggregated() {
		t.Error("expected WithOp.IsAggregated() to be true when an item contains an aggregate")
	}

	plainOp := &WithOp{Items: []*WithItem{{Root: numberLit(1), Alias: "x"}}}
	if plainOp.IsAggregated() {
		t.Error("expected WithOp.IsAggregated() to be false with no aggregate items")
	}
}

func TestProgramStringJoinsOperationChain(t *testing.T) {
	with := &WithOp{OpCommon: OpCommon{Tok: token.Token{Kind: token.WITH, Literal: "WITH"}}, Items: []*WithItem{{Root: numberLit(1), Alias: "x"}}}
	ret := &ReturnOp{OpCommon: OpCommon{Tok: token.Token{Kind: token.RETURN, Literal: "RETURN"}}, Items: []*WithItem{{Root: &Reference{Tok: token.Token{Kind: token.IDENTIFIER}, Name: "x"}, Alias: "x"}}}
	with.SetNext(ret)
	prog := &Program{First: with, Terminal: ret}

	s := prog.String()
	if s == "" {
		t.Fatal("expected a non-empty Program.String()")
	}
	if prog.TokenLiteral() != "WITH" {
		t.Errorf("Program.TokenLiteral() = %q, want \"WITH\"", prog.TokenLiteral())
	}
}

func TestEmptyProgramStringAndPos(t *testing.T) {
	prog := &Program{}
	if prog.String() != "" {
		t.Errorf("empty Program.String() = %q, want \"\"", prog.String())
	}
	if prog.TokenLiteral() != "" {
		t.Errorf("empty Program.TokenLiteral() = %q, want \"\"", prog.TokenLiteral())
	}
	if prog.Pos().Line != 1 || prog.Pos().Column != 1 {
		t.Errorf("empty Program.Pos() = %v, want {1,1}", prog.Pos())
	}
}
