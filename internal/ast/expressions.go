package ast

import (
	"bytes"

	"github.com/flowquery-lang/flowquery/internal/token"
	"github.com/flowquery-lang/flowquery/internal/value"
)

// NumberLiteral is a numeric literal operand.
type NumberLiteral struct {
	baseExpr
	Tok   token.Token
	Value float64
	IsInt bool
}

func (n *NumberLiteral) TokenLiteral() string  { return n.Tok.Literal }
func (n *NumberLiteral) Pos() token.Position   { return n.Tok.Pos }
func (n *NumberLiteral) String() string        { return n.Tok.Literal }

// StringLiteral is a quoted string operand.
type StringLiteral struct {
	baseExpr
	Tok   token.Token
	Value string
}

func (s *StringLiteral) TokenLiteral() string { return s.Tok.Literal }
func (s *StringLiteral) Pos() token.Position  { return s.Tok.Pos }
func (s *StringLiteral) String() string       { return "\"" + s.Value + "\"" }

// NullLiteral is the NULL keyword used as an operand.
type NullLiteral struct {
	baseExpr
	Tok token.Token
}

func (n *NullLiteral) TokenLiteral() string { return n.Tok.Literal }
func (n *NullLiteral) Pos() token.Position  { return n.Tok.Pos }
func (n *NullLiteral) String() string       { return "NULL" }

// Identifier is a bare name node. The parser does not build it: projection
// aliases, map-literal keys, YIELD targets and comprehension variables are
// kept as plain strings on their parent nodes.
type Identifier struct {
	Tok   token.Token
	Value string
}

func (i *Identifier) TokenLiteral() string { return i.Tok.Literal }
func (i *Identifier) Pos() token.Position  { return i.Tok.Pos }
func (i *Identifier) String() string       { return i.Value }

// Reference reads the current value of a named binding established by a
// preceding With/Unwind/Load/Call (spec.md §3 "Binding environment"). It
// carries only the name — resolution to the declaring operation's holder
// happens by name at evaluation time (spec.md §9: "Slot-id resolution at
// parse time is an optimisation; the semantics are as if by name").
type Reference struct {
	baseExpr
	Tok  token.Token
	Name string
}

func (r *Reference) TokenLiteral() string { return r.Tok.Literal }
func (r *Reference) Pos() token.Position  { return r.Tok.Pos }
func (r *Reference) String() string       { return r.Name }

// Lookup indexes Root by Index: Root.name (Index is a StringLiteral holding
// name) or Root[expr].
type Lookup struct {
	baseExpr
	Tok   token.Token
	Root  Expression
	Index Expression
}

func (l *Lookup) TokenLiteral() string { return l.Tok.Literal }
func (l *Lookup) Pos() token.Position  { return l.Tok.Pos }
func (l *Lookup) String() string {
	return l.Root.String() + "[" + l.Index.String() + "]"
}

// RangeLookup is a slice lookup Root[Start:End] with either bound optional.
type RangeLookup struct {
	baseExpr
	Tok   token.Token
	Root  Expression
	Start Expression // nil => default 0
	End   Expression // nil => default length
}

func (r *RangeLookup) TokenLiteral() string { return r.Tok.Literal }
func (r *RangeLookup) Pos() token.Position  { return r.Tok.Pos }
func (r *RangeLookup) String() string {
	var b bytes.Buffer
	b.WriteString(r.Root.String())
	b.WriteString("[")
	if r.Start != nil {
		b.WriteString(r.Start.String())
	}
	b.WriteString(":")
	if r.End != nil {
		b.WriteString(r.End.String())
	}
	b.WriteString("]")
	return b.String()
}

// MapEntry is one key/value pair of a MapLiteral, kept in source order so
// the runtime value.Map built from it stays insertion-ordered.
type MapEntry struct {
	Key   string
	Value Expression
}

// MapLiteral is an associative-array literal `{k: v, ...}`.
type MapLiteral struct {
	baseExpr
	Tok     token.Token
	Entries []MapEntry
}

func (m *MapLiteral) TokenLiteral() string { return m.Tok.Literal }
func (m *MapLiteral) Pos() token.Position  { return m.Tok.Pos }
func (m *MapLiteral) String() string {
	parts := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		parts[i] = e.Key + ": " + e.Value.String()
	}
	return "{" + joinStrings(parts, ", ") + "}"
}

// ArrayLiteral is an ordered-sequence literal `[a, b, c]`.
type ArrayLiteral struct {
	baseExpr
	Tok      token.Token
	Elements []Expression
}

func (a *ArrayLiteral) TokenLiteral() string { return a.Tok.Literal }
func (a *ArrayLiteral) Pos() token.Position  { return a.Tok.Pos }
func (a *ArrayLiteral) String() string {
	parts := make([]string, len(a.Elements))
	for i, e := range a.Elements {
		parts[i] = e.String()
	}
	return "[" + joinStrings(parts, ", ") + "]"
}

// FString is an f-string literal: literal text chunks interleaved with
// embedded expression holes. len(Segments) == len(Exprs)+1.
type FString struct {
	baseExpr
	Tok      token.Token
	Segments []string
	Exprs    []Expression
}

func (f *FString) TokenLiteral() string { return f.Tok.Literal }
func (f *FString) Pos() token.Position  { return f.Tok.Pos }
func (f *FString) String() string {
	var b bytes.Buffer
	b.WriteString("f\"")
	for i, seg := range f.Segments {
		b.WriteString(seg)
		if i < len(f.Exprs) {
			b.WriteString("{")
			b.WriteString(f.Exprs[i].String())
			b.WriteString("}")
		}
	}
	b.WriteString("\"")
	return b.String()
}

// WhenClause is one WHEN cond THEN result arm of a CaseExpr.
type WhenClause struct {
	Cond Expression
	Then Expression
}

// CaseExpr evaluates Whens in order, yielding the first truthy arm's Then,
// or Else if none match.
type CaseExpr struct {
	baseExpr
	Tok  token.Token
	Whens []WhenClause
	Else  Expression
}

func (c *CaseExpr) TokenLiteral() string { return c.Tok.Literal }
func (c *CaseExpr) Pos() token.Position  { return c.Tok.Pos }
func (c *CaseExpr) String() string {
	var b bytes.Buffer
	b.WriteString("CASE ")
	for _, w := range c.Whens {
		b.WriteString("WHEN ")
		b.WriteString(w.Cond.String())
		b.WriteString(" THEN ")
		b.WriteString(w.Then.String())
		b.WriteString(" ")
	}
	b.WriteString("ELSE ")
	b.WriteString(c.Else.String())
	b.WriteString(" END")
	return b.String()
}

// operator precedence levels, low to high (spec.md §4.5).
const (
	PrecOr = iota + 1
	PrecAnd
	PrecComparison
	PrecAdditive
	PrecMultiplicative
	PrecUnary
	PrecPower
)

var binaryPrecedence = map[string]int{
	"OR": PrecOr, "AND": PrecAnd,
	"=": PrecComparison, "<>": PrecComparison, "<": PrecComparison,
	">": PrecComparison, "<=": PrecComparison, ">=": PrecComparison,
	"+": PrecAdditive, "-": PrecAdditive,
	"*": PrecMultiplicative, "/": PrecMultiplicative, "%": PrecMultiplicative,
	"^": PrecPower,
}

// BinaryExpr is a binary operator application.
type BinaryExpr struct {
	Tok      token.Token
	Operator string
	Left     Expression
	Right    Expression
}

func (b *BinaryExpr) expressionNode()       {}
func (b *BinaryExpr) TokenLiteral() string  { return b.Tok.Literal }
func (b *BinaryExpr) Pos() token.Position   { return b.Tok.Pos }
func (b *BinaryExpr) IsOperator() bool      { return true }
func (b *BinaryExpr) IsOperand() bool       { return false }
func (b *BinaryExpr) Precedence() int       { return binaryPrecedence[b.Operator] }
func (b *BinaryExpr) LeftAssociative() bool { return b.Operator != "^" }
func (b *BinaryExpr) String() string {
	return "(" + b.Left.String() + " " + b.Operator + " " + b.Right.String() + ")"
}

// UnaryExpr is a prefix operator application: NOT expr or unary -expr.
type UnaryExpr struct {
	baseExpr
	Tok      token.Token
	Operator string
	Operand  Expression
}

func (u *UnaryExpr) TokenLiteral() string { return u.Tok.Literal }
func (u *UnaryExpr) Pos() token.Position  { return u.Tok.Pos }
func (u *UnaryExpr) IsOperator() bool     { return true }
func (u *UnaryExpr) Precedence() int      { return PrecUnary }
func (u *UnaryExpr) String() string {
	sep := ""
	if u.Operator == "NOT" {
		sep = " "
	}
	return "(" + u.Operator + sep + u.Operand.String() + ")"
}

// IsNullExpr implements `expr IS [NOT] NULL`.
type IsNullExpr struct {
	baseExpr
	Tok     token.Token
	Operand Expression
	Negate  bool
}

func (e *IsNullExpr) TokenLiteral() string { return e.Tok.Literal }
func (e *IsNullExpr) Pos() token.Position  { return e.Tok.Pos }
func (e *IsNullExpr) IsOperator() bool     { return true }
func (e *IsNullExpr) Precedence() int      { return PrecComparison }
func (e *IsNullExpr) String() string {
	if e.Negate {
		return "(" + e.Operand.String() + " IS NOT NULL)"
	}
	return "(" + e.Operand.String() + " IS NULL)"
}

// FunctionCall is a function-call expression: Name(Args...). For an
// aggregate function occurrence, Overridden is nil until the executor's
// finish() pass sets it to the bucket's finalised value before re-walking
// the reducing expression (spec.md §4.8, §9 "Aggregate overriding"), and
// Predicate (non-nil precisely when the sole argument used `x IN coll |
// proj [WHERE cond]` syntax) carries the comprehension.
type FunctionCall struct {
	baseExpr
	Tok       token.Token
	Name      string
	Args      []Expression
	Distinct  bool
	Predicate *PredicateExpr

	IsAggregate bool
	Overridden  *value.Value
}

func (f *FunctionCall) TokenLiteral() string { return f.Tok.Literal }
func (f *FunctionCall) Pos() token.Position  { return f.Tok.Pos }
func (f *FunctionCall) String() string {
	var b bytes.Buffer
	b.WriteString(f.Name)
	b.WriteString("(")
	if f.Distinct {
		b.WriteString("DISTINCT ")
	}
	if f.Predicate != nil {
		b.WriteString(f.Predicate.String())
	} else {
		parts := make([]string, len(f.Args))
		for i, a := range f.Args {
			parts[i] = a.String()
		}
		b.WriteString(joinStrings(parts, ", "))
	}
	b.WriteString(")")
	return b.String()
}

// PredicateExpr is the list-comprehension form `name IN coll | proj [WHERE
// cond]` that may appear as the sole argument of an aggregate call (spec.md
// §4.5 "Predicate (list-comprehension) form", GLOSSARY "Predicate form").
// It is not itself independently evaluable — only the enclosing
// FunctionCall's aggregate drives its iteration.
type PredicateExpr struct {
	Tok        token.Token
	VarName    string
	Source     Expression
	Projection Expression
	Filter     Expression // nil if no WHERE clause
}

func (p *PredicateExpr) TokenLiteral() string { return p.Tok.Literal }
func (p *PredicateExpr) Pos() token.Position  { return p.Tok.Pos }
func (p *PredicateExpr) String() string {
	s := p.VarName + " IN " + p.Source.String() + " | " + p.Projection.String()
	if p.Filter != nil {
		s += " WHERE " + p.Filter.String()
	}
	return s
}

// ExpressionWrapper is the finalised Shunting-Yard output: a single root
// expression plus an optional alias and an optional overridden value used
// while aggregating or while binding a CALL's YIELD targets (spec.md §3).
type ExpressionWrapper struct {
	Tok   token.Token
	Root  Expression
	Alias string

	// HasExplicitAlias distinguishes `expr AS alias` from an
	// auto-generated alias (bare-reference name or expr<i>), which matters
	// for alias-visibility diagnostics and pretty-printing.
	HasExplicitAlias bool

	Overridden *value.Value
}

func (e *ExpressionWrapper) TokenLiteral() string { return e.Tok.Literal }
func (e *ExpressionWrapper) Pos() token.Position  { return e.Tok.Pos }
func (e *ExpressionWrapper) String() string {
	if e.HasExplicitAlias {
		return e.Root.String() + " AS " + e.Alias
	}
	return e.Root.String()
}

// ContainsAggregate reports whether the expression subtree rooted at expr
// contains at least one aggregate FunctionCall occurrence (spec.md §3:
// "An expression containing at least one aggregate forms an *aggregated*
// projection").
func ContainsAggregate(expr Expression) bool {
	switch e := expr.(type) {
	case *FunctionCall:
		if e.IsAggregate {
			return true
		}
		for _, a := range e.Args {
			if ContainsAggregate(a) {
				return true
			}
		}
		return false
	case *BinaryExpr:
		return ContainsAggregate(e.Left) || ContainsAggregate(e.Right)
	case *UnaryExpr:
		return ContainsAggregate(e.Operand)
	case *IsNullExpr:
		return ContainsAggregate(e.Operand)
	case *Lookup:
		return ContainsAggregate(e.Root) || ContainsAggregate(e.Index)
	case *RangeLookup:
		if ContainsAggregate(e.Root) {
			return true
		}
		if e.Start != nil && ContainsAggregate(e.Start) {
			return true
		}
		if e.End != nil && ContainsAggregate(e.End) {
			return true
		}
		return false
	case *ArrayLiteral:
		for _, el := range e.Elements {
			if ContainsAggregate(el) {
				return true
			}
		}
		return false
	case *MapLiteral:
		for _, entry := range e.Entries {
			if ContainsAggregate(entry.Value) {
				return true
			}
		}
		return false
	case *FString:
		for _, ex := range e.Exprs {
			if ContainsAggregate(ex) {
				return true
			}
		}
		return false
	case *CaseExpr:
		for _, w := range e.Whens {
			if ContainsAggregate(w.Cond) || ContainsAggregate(w.Then) {
				return true
			}
		}
		if e.Else != nil {
			return ContainsAggregate(e.Else)
		}
		return false
	default:
		return false
	}
}
