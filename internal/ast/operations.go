package ast

import (
	"bytes"

	"github.com/flowquery-lang/flowquery/internal/token"
)

// Operation is one stage of a FlowQuery operation chain (spec.md §3: WITH,
// UNWIND, LOAD, CALL, RETURN). Operations form a singly-linked list via
// Next/SetNext; Program.First is the chain head and Program.Terminal its
// tail (a ReturnOp or a YIELD-less CallOp once parsing succeeds, spec.md
// §4.7).
type Operation interface {
	Node
	operationNode()
	Next() Operation
	SetNext(Operation)
	Where() *ExpressionWrapper
	SetWhere(*ExpressionWrapper)
	Limit() *int64
	SetLimit(int64)
}

// OpCommon holds the fields shared by every operation kind: the leading
// token, the optional trailing WHERE filter, the optional trailing LIMIT,
// and the link to the next operation in the chain. Concrete operation
// types embed it the way the teacher's statement nodes embed a shared
// position/comment holder.
type OpCommon struct {
	Tok       token.Token
	WhereExpr *ExpressionWrapper
	LimitN    *int64
	Nxt       Operation
}

func (o *OpCommon) operationNode()    {}
func (o *OpCommon) TokenLiteral() string { return o.Tok.Literal }
func (o *OpCommon) Pos() token.Position  { return o.Tok.Pos }

func (o *OpCommon) Next() Operation         { return o.Nxt }
func (o *OpCommon) SetNext(next Operation)  { o.Nxt = next }
func (o *OpCommon) Where() *ExpressionWrapper { return o.WhereExpr }
func (o *OpCommon) SetWhere(w *ExpressionWrapper) { o.WhereExpr = w }
func (o *OpCommon) Limit() *int64 { return o.LimitN }
func (o *OpCommon) SetLimit(n int64) { o.LimitN = &n }

func writeSuffix(b *bytes.Buffer, o Operation) {
	if w := o.Where(); w != nil {
		b.WriteString(" WHERE ")
		b.WriteString(w.String())
	}
	if l := o.Limit(); l != nil {
		b.WriteString(" LIMIT ")
		b.WriteString(itoa(*l))
	}
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// WithItem is one projection of a WITH clause.
type WithItem = ExpressionWrapper

// WithOp implements WITH item [, item ...] [WHERE ...] [LIMIT ...]
// (spec.md §4.7). It both renames/reshapes the binding environment and,
// when any item contains an aggregate, performs grouping (spec.md §3
// "Aggregated projection").
type WithOp struct {
	OpCommon
	Items []*WithItem
}

func (w *WithOp) String() string {
	var b bytes.Buffer
	b.WriteString("WITH ")
	for i, item := range w.Items {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(item.String())
	}
	writeSuffix(&b, w)
	return b.String()
}

// IsAggregated reports whether any projection of this WITH contains an
// aggregate function occurrence, which switches the executor from a
// pass-through map to a group-and-reduce stage (spec.md §3, §4.8).
func (w *WithOp) IsAggregated() bool {
	for _, item := range w.Items {
		if ContainsAggregate(item.Root) {
			return true
		}
	}
	return false
}

// UnwindOp implements UNWIND expr AS name [WHERE ...] [LIMIT ...]
// (spec.md §4.7), expanding each element of a sequence-valued expression
// into its own row.
type UnwindOp struct {
	OpCommon
	Source Expression
	Alias  string
}

func (u *UnwindOp) String() string {
	var b bytes.Buffer
	b.WriteString("UNWIND ")
	b.WriteString(u.Source.String())
	b.WriteString(" AS ")
	b.WriteString(u.Alias)
	writeSuffix(&b, u)
	return b.String()
}

// LoadOption is one key: value pair in a LOAD clause's option block
// (HEADERS or POST body — spec.md §4.9).
type LoadOption struct {
	Key   string
	Value Expression
}

// LoadOp implements LOAD [JSON|CSV|TEXT] FROM expr [HEADERS expr] [POST expr]
// AS name (spec.md §4.9), the provider that turns an external resource into an
// async binding consumed row-by-row by the rest of the chain.
type LoadOp struct {
	OpCommon
	Source  Expression
	Format  string // "JSON" | "CSV" | "TEXT", defaults to "JSON"
	Options []LoadOption
	Alias   string
}

func (l *LoadOp) String() string {
	var b bytes.Buffer
	b.WriteString("LOAD FROM ")
	b.WriteString(l.Source.String())
	if l.Format != "" {
		b.WriteString(" AS ")
		b.WriteString(l.Format)
	}
	if len(l.Options) > 0 {
		b.WriteString(" {")
		for i, opt := range l.Options {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(opt.Key)
			b.WriteString(": ")
			b.WriteString(opt.Value.String())
		}
		b.WriteString("}")
	}
	b.WriteString(" AS ")
	b.WriteString(l.Alias)
	writeSuffix(&b, l)
	return b.String()
}

// CallOp implements CALL name(args...) YIELD a [, b ...] [WHERE ...]
// [LIMIT ...] (spec.md §4.9 "registered async/table-valued functions").
type CallOp struct {
	OpCommon
	Name   string
	Args   []Expression
	Yields []string
}

func (c *CallOp) String() string {
	var b bytes.Buffer
	b.WriteString("CALL ")
	b.WriteString(c.Name)
	b.WriteString("(")
	for i, a := range c.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	b.WriteString(")")
	if len(c.Yields) > 0 {
		b.WriteString(" YIELD ")
		for i, y := range c.Yields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(y)
		}
	}
	writeSuffix(&b, c)
	return b.String()
}

// ReturnOp implements RETURN item [, item ...] [WHERE ...] [LIMIT ...], the
// terminal operation of every well-formed program that does not end in a
// YIELD-less CALL (spec.md §4.7). Like
// WithOp, a RETURN whose items contain aggregates performs the final
// grouping-and-reduce over the entire remaining row stream.
type ReturnOp struct {
	OpCommon
	Items    []*WithItem
	Distinct bool
}

func (r *ReturnOp) String() string {
	var b bytes.Buffer
	b.WriteString("RETURN ")
	if r.Distinct {
		b.WriteString("DISTINCT ")
	}
	for i, item := range r.Items {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(item.String())
	}
	writeSuffix(&b, r)
	return b.String()
}

// IsAggregated reports whether any projection of this RETURN contains an
// aggregate function occurrence (spec.md §3, §4.8).
func (r *ReturnOp) IsAggregated() bool {
	for _, item := range r.Items {
		if ContainsAggregate(item.Root) {
			return true
		}
	}
	return false
}
