// Package ast defines the Abstract Syntax Tree node types produced by
// internal/parser: expression trees (number/string/reference/lookup/
// map/array/f-string/case/operator/function-call variants) and the chain of
// pipeline operations (With/Unwind/Load/Call/Where/Return/Limit) linked in
// execution order, per spec.md §3 and §4.4 (C4).
//
// Following the teacher's AST design, nodes carry only downward edges —
// there are no parent pointers here; the parser tracks nesting (e.g. for
// nested-aggregate detection) on its own stack, and the evaluator never
// needs to walk upward.
package ast

import (
	"bytes"
	"strings"

	"github.com/flowquery-lang/flowquery/internal/token"
)

// Node is the base interface every AST node implements.
type Node interface {
	TokenLiteral() string
	String() string
	Pos() token.Position
}

// Expression is any node that evaluates to a Value. Operator nodes
// additionally report precedence/associativity; internal/parser folds
// operators by its own opPrecedence table and does not call these. IsOperand distinguishes leaves from
// operators, mirroring the teacher's isOperator()/isOperand() virtual hooks.
type Expression interface {
	Node
	expressionNode()
	IsOperator() bool
	IsOperand() bool
	Precedence() int
	LeftAssociative() bool
}

// baseExpr supplies the default, non-operator answers to the Expression
// capability set; operator node types override Precedence/IsOperator.
type baseExpr struct{}

func (baseExpr) expressionNode()         {}
func (baseExpr) IsOperator() bool        { return false }
func (baseExpr) IsOperand() bool         { return true }
func (baseExpr) Precedence() int         { return 0 }
func (baseExpr) LeftAssociative() bool   { return true }

// Program is the root of a parsed FlowQuery source: the first operation in
// the chain plus a direct pointer to the terminal operation (spec.md §3
// invariant: exactly one RETURN, or a trailing CALL without YIELD, is
// terminal).
type Program struct {
	First    Operation
	Terminal Operation
}

func (p *Program) TokenLiteral() string {
	if p.First != nil {
		return p.First.TokenLiteral()
	}
	return ""
}

func (p *Program) Pos() token.Position {
	if p.First != nil {
		return p.First.Pos()
	}
	return token.Position{Line: 1, Column: 1}
}

func (p *Program) String() string {
	var out bytes.Buffer
	for op := p.First; op != nil; op = op.Next() {
		out.WriteString(op.String())
		if op.Next() != nil {
			out.WriteString(" ")
		}
	}
	return out.String()
}

// joinStrings is a small formatting helper shared by several String()
// implementations below.
func joinStrings(items []string, sep string) string {
	return strings.Join(items, sep)
}
