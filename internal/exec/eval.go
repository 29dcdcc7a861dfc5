package exec

import (
	"context"
	"math"
	"strings"

	"github.com/flowquery-lang/flowquery/internal/ast"
	"github.com/flowquery-lang/flowquery/internal/ferrors"
	"github.com/flowquery-lang/flowquery/internal/value"
)

// evalExpr walks an expression tree against env, the row currently being
// produced (spec.md §4.5, §9 "Binding via references"). It is the runtime
// counterpart of the parser's precedence-climbing expr.go: where the parser
// only needs to know shapes and precedence, evalExpr needs actual values.
func (ex *Executor) evalExpr(ctx context.Context, expr ast.Expression, env *Env) (value.Value, error) {
	select {
	case <-ctx.Done():
		return value.Null, ex.execErrAt(ferrors.Cancelled, expr.Pos(), ctx.Err().Error())
	default:
	}

	switch e := expr.(type) {
	case *ast.NumberLiteral:
		if e.IsInt {
			return value.Int(int64(e.Value)), nil
		}
		return value.Float(e.Value), nil
	case *ast.StringLiteral:
		return value.String(e.Value), nil
	case *ast.NullLiteral:
		return value.Null, nil
	case *ast.Reference:
		v, ok := env.Get(e.Name)
		if !ok {
			return value.Null, ex.execErrAt(ferrors.UnresolvedReference, e.Pos(), "unresolved reference %q", e.Name)
		}
		return v, nil
	case *ast.Lookup:
		return ex.evalLookup(ctx, e, env)
	case *ast.RangeLookup:
		return ex.evalRangeLookup(ctx, e, env)
	case *ast.MapLiteral:
		return ex.evalMapLiteral(ctx, e, env)
	case *ast.ArrayLiteral:
		return ex.evalArrayLiteral(ctx, e, env)
	case *ast.FString:
		return ex.evalFString(ctx, e, env)
	case *ast.CaseExpr:
		return ex.evalCase(ctx, e, env)
	case *ast.UnaryExpr:
		return ex.evalUnary(ctx, e, env)
	case *ast.IsNullExpr:
		operand, err := ex.evalExpr(ctx, e.Operand, env)
		if err != nil {
			return value.Null, err
		}
		if e.Negate {
			return value.Bool(!operand.IsNull()), nil
		}
		return value.Bool(operand.IsNull()), nil
	case *ast.BinaryExpr:
		return ex.evalBinary(ctx, e, env)
	case *ast.FunctionCall:
		return ex.evalFunctionCall(ctx, e, env)
	default:
		return value.Null, ex.execErrAt(ferrors.TypeMismatch, expr.Pos(), "cannot evaluate %T", expr)
	}
}

func (ex *Executor) evalUnary(ctx context.Context, e *ast.UnaryExpr, env *Env) (value.Value, error) {
	v, err := ex.evalExpr(ctx, e.Operand, env)
	if err != nil {
		return value.Null, err
	}
	switch e.Operator {
	case "NOT":
		if v.IsNull() {
			return value.Null, nil
		}
		return value.Bool(!v.Truthy()), nil
	case "-":
		if v.IsNull() {
			return value.Null, nil
		}
		if v.Kind() != value.KindNumber {
			return value.Null, ex.execErrAt(ferrors.TypeMismatch, e.Pos(), "unary - requires a number, got %s", v.TypeName())
		}
		if v.IsInt() {
			return value.Int(-v.Int()), nil
		}
		return value.Float(-v.Number()), nil
	default:
		return value.Null, ex.execErrAt(ferrors.TypeMismatch, e.Pos(), "unknown unary operator %q", e.Operator)
	}
}

// evalBinary implements arithmetic, comparison, and AND/OR/NULL semantics
// (spec.md §4.5): arithmetic with a NULL operand yields NULL, but a
// comparison with a NULL operand yields false rather than NULL — null is
// only testable via IS NULL / IS NOT NULL. Division by zero yields NULL
// rather than erroring (spec.md §7 note), and AND/OR short-circuit without
// forcing the other operand's kind.
func (ex *Executor) evalBinary(ctx context.Context, e *ast.BinaryExpr, env *Env) (value.Value, error) {
	if e.Operator == "AND" || e.Operator == "OR" {
		return ex.evalLogical(ctx, e, env)
	}

	left, err := ex.evalExpr(ctx, e.Left, env)
	if err != nil {
		return value.Null, err
	}
	right, err := ex.evalExpr(ctx, e.Right, env)
	if err != nil {
		return value.Null, err
	}

	switch e.Operator {
	case "=":
		return value.Bool(value.EqualsOp(left, right)), nil
	case "<>":
		if left.IsNull() || right.IsNull() {
			return value.Bool(false), nil
		}
		return value.Bool(!value.EqualsOp(left, right)), nil
	case "<", ">", "<=", ">=":
		if left.IsNull() || right.IsNull() {
			return value.Bool(false), nil
		}
		cmp, ok := value.Ordered(left, right)
		if !ok {
			return value.Bool(false), nil
		}
		switch e.Operator {
		case "<":
			return value.Bool(cmp < 0), nil
		case ">":
			return value.Bool(cmp > 0), nil
		case "<=":
			return value.Bool(cmp <= 0), nil
		default:
			return value.Bool(cmp >= 0), nil
		}
	case "+":
		if left.Kind() == value.KindString || right.Kind() == value.KindString {
			if left.IsNull() || right.IsNull() {
				return value.Null, nil
			}
			return value.String(value.CoerceForFString(left) + value.CoerceForFString(right)), nil
		}
		return ex.evalArith(e, left, right, func(a, b float64) float64 { return a + b })
	case "-":
		return ex.evalArith(e, left, right, func(a, b float64) float64 { return a - b })
	case "*":
		return ex.evalArith(e, left, right, func(a, b float64) float64 { return a * b })
	case "/":
		if left.IsNull() || right.IsNull() {
			return value.Null, nil
		}
		if left.Kind() != value.KindNumber || right.Kind() != value.KindNumber {
			return value.Null, ex.execErrAt(ferrors.TypeMismatch, e.Pos(), "/ requires numbers, got %s and %s", left.TypeName(), right.TypeName())
		}
		if right.Number() == 0 {
			return value.Null, nil // benign null, spec.md §7 note on DivisionByZero
		}
		return value.Float(left.Number() / right.Number()), nil
	case "%":
		if left.IsNull() || right.IsNull() {
			return value.Null, nil
		}
		if left.Kind() != value.KindNumber || right.Kind() != value.KindNumber {
			return value.Null, ex.execErrAt(ferrors.TypeMismatch, e.Pos(), "%% requires numbers, got %s and %s", left.TypeName(), right.TypeName())
		}
		if right.Number() == 0 {
			return value.Null, nil
		}
		return value.Float(math.Mod(left.Number(), right.Number())), nil
	case "^":
		return ex.evalArith(e, left, right, math.Pow)
	default:
		return value.Null, ex.execErrAt(ferrors.TypeMismatch, e.Pos(), "unknown operator %q", e.Operator)
	}
}

func (ex *Executor) evalArith(e *ast.BinaryExpr, left, right value.Value, op func(a, b float64) float64) (value.Value, error) {
	if left.IsNull() || right.IsNull() {
		return value.Null, nil
	}
	if left.Kind() != value.KindNumber || right.Kind() != value.KindNumber {
		return value.Null, ex.execErrAt(ferrors.TypeMismatch, e.Pos(), "%s requires numbers, got %s and %s", e.Operator, left.TypeName(), right.TypeName())
	}
	result := op(left.Number(), right.Number())
	if left.IsInt() && right.IsInt() && result == math.Trunc(result) {
		return value.Int(int64(result)), nil
	}
	return value.Float(result), nil
}

func (ex *Executor) evalLogical(ctx context.Context, e *ast.BinaryExpr, env *Env) (value.Value, error) {
	left, err := ex.evalExpr(ctx, e.Left, env)
	if err != nil {
		return value.Null, err
	}
	if e.Operator == "AND" {
		if !left.IsNull() && !left.Truthy() {
			return value.Bool(false), nil
		}
	} else {
		if !left.IsNull() && left.Truthy() {
			return value.Bool(true), nil
		}
	}
	right, err := ex.evalExpr(ctx, e.Right, env)
	if err != nil {
		return value.Null, err
	}
	if left.IsNull() || right.IsNull() {
		// three-valued short-circuit: AND is false (not null) if either
		// known operand is false; OR is true if either known operand is
		// true; otherwise the result is null (spec.md §4.5).
		if e.Operator == "AND" && !right.IsNull() && !right.Truthy() {
			return value.Bool(false), nil
		}
		if e.Operator == "OR" && !right.IsNull() && right.Truthy() {
			return value.Bool(true), nil
		}
		return value.Null, nil
	}
	if e.Operator == "AND" {
		return value.Bool(left.Truthy() && right.Truthy()), nil
	}
	return value.Bool(left.Truthy() || right.Truthy()), nil
}

// evalLookup implements Root.name and Root[expr] (spec.md §4.5): a missing
// map key or out-of-range array index is a benign null, never an error.
func (ex *Executor) evalLookup(ctx context.Context, e *ast.Lookup, env *Env) (value.Value, error) {
	root, err := ex.evalExpr(ctx, e.Root, env)
	if err != nil {
		return value.Null, err
	}
	if root.IsNull() {
		return value.Null, nil
	}

	if id, ok := e.Index.(*ast.Identifier); ok {
		if root.Kind() != value.KindMap {
			return value.Null, nil
		}
		v, _ := root.Get(id.Value)
		return v, nil
	}

	idx, err := ex.evalExpr(ctx, e.Index, env)
	if err != nil {
		return value.Null, err
	}
	if idx.IsNull() {
		return value.Null, nil
	}

	switch root.Kind() {
	case value.KindMap:
		v, _ := root.Get(idx.Str())
		return v, nil
	case value.KindArray:
		if idx.Kind() != value.KindNumber {
			return value.Null, nil
		}
		elems := root.Elements()
		i := normalizeIndex(idx.Int(), len(elems))
		if i < 0 || i >= len(elems) {
			return value.Null, nil
		}
		return elems[i], nil
	default:
		return value.Null, nil
	}
}

// normalizeIndex applies Python-style negative-index wraparound: -1 is the
// last element (spec.md §4.5 "Lookups").
func normalizeIndex(i int64, length int) int {
	if i < 0 {
		i += int64(length)
	}
	return int(i)
}

func (ex *Executor) evalRangeLookup(ctx context.Context, e *ast.RangeLookup, env *Env) (value.Value, error) {
	root, err := ex.evalExpr(ctx, e.Root, env)
	if err != nil {
		return value.Null, err
	}
	if root.IsNull() {
		return value.Null, nil
	}
	if root.Kind() != value.KindArray && root.Kind() != value.KindString {
		return value.Null, ex.execErrAt(ferrors.TypeMismatch, e.Pos(), "range lookup requires an array or string, got %s", root.TypeName())
	}

	length := root.Len()
	start, end := 0, length
	if e.Start != nil {
		v, err := ex.evalExpr(ctx, e.Start, env)
		if err != nil {
			return value.Null, err
		}
		if !v.IsNull() {
			start = clampIndex(normalizeIndex(v.Int(), length), length)
		}
	}
	if e.End != nil {
		v, err := ex.evalExpr(ctx, e.End, env)
		if err != nil {
			return value.Null, err
		}
		if !v.IsNull() {
			end = clampIndex(normalizeIndex(v.Int(), length), length)
		}
	}
	if start > end {
		start = end
	}

	if root.Kind() == value.KindString {
		r := []rune(root.Str())
		return value.String(string(r[start:end])), nil
	}
	elems := root.Elements()
	out := make([]value.Value, end-start)
	copy(out, elems[start:end])
	return value.Array(out), nil
}

func clampIndex(i, length int) int {
	if i < 0 {
		return 0
	}
	if i > length {
		return length
	}
	return i
}

func (ex *Executor) evalMapLiteral(ctx context.Context, e *ast.MapLiteral, env *Env) (value.Value, error) {
	keys := make([]string, len(e.Entries))
	vals := make([]value.Value, len(e.Entries))
	for i, entry := range e.Entries {
		v, err := ex.evalExpr(ctx, entry.Value, env)
		if err != nil {
			return value.Null, err
		}
		keys[i] = entry.Key
		vals[i] = v
	}
	return value.Map(keys, vals), nil
}

func (ex *Executor) evalArrayLiteral(ctx context.Context, e *ast.ArrayLiteral, env *Env) (value.Value, error) {
	vals := make([]value.Value, len(e.Elements))
	for i, el := range e.Elements {
		v, err := ex.evalExpr(ctx, el, env)
		if err != nil {
			return value.Null, err
		}
		vals[i] = v
	}
	return value.Array(vals), nil
}

func (ex *Executor) evalFString(ctx context.Context, e *ast.FString, env *Env) (value.Value, error) {
	var b strings.Builder
	for i, seg := range e.Segments {
		b.WriteString(seg)
		if i < len(e.Exprs) {
			v, err := ex.evalExpr(ctx, e.Exprs[i], env)
			if err != nil {
				return value.Null, err
			}
			b.WriteString(value.CoerceForFString(v))
		}
	}
	return value.String(b.String()), nil
}

func (ex *Executor) evalCase(ctx context.Context, e *ast.CaseExpr, env *Env) (value.Value, error) {
	for _, w := range e.Whens {
		cond, err := ex.evalExpr(ctx, w.Cond, env)
		if err != nil {
			return value.Null, err
		}
		if cond.Truthy() {
			return ex.evalExpr(ctx, w.Then, env)
		}
	}
	return ex.evalExpr(ctx, e.Else, env)
}

// evalFunctionCall dispatches a scalar call to the registry, or — for an
// aggregate occurrence — returns the value finish() has already substituted
// into Overridden (spec.md §4.8, §9 "Aggregate overriding"). The parser does
// not reject aggregate calls outside WITH/RETURN projections (in a WHERE or
// an UNWIND source, say); such an occurrence reaches this point with no
// Overridden value and is reported as a TypeMismatch execution error.
func (ex *Executor) evalFunctionCall(ctx context.Context, e *ast.FunctionCall, env *Env) (value.Value, error) {
	if e.IsAggregate {
		if e.Overridden == nil {
			return value.Null, ex.execErrAt(ferrors.TypeMismatch, e.Pos(), "aggregate %q evaluated outside of grouping", e.Name)
		}
		return *e.Overridden, nil
	}

	fn, ok := ex.reg.ResolveScalar(e.Name)
	if !ok {
		return value.Null, ex.execErrAt(ferrors.UnresolvedReference, e.Pos(), "unknown function %q", e.Name)
	}
	args := make([]value.Value, len(e.Args))
	for i, a := range e.Args {
		v, err := ex.evalExpr(ctx, a, env)
		if err != nil {
			return value.Null, err
		}
		args[i] = v
	}
	v, err := fn(ctx, args)
	if err != nil {
		return value.Null, ex.execErrAt(ferrors.InvalidArgument, e.Pos(), "%s: %v", e.Name, err)
	}
	return v, nil
}
