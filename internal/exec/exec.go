// Package exec implements the FlowQuery operation executor (spec.md §4.8,
// C8): a tree-walking, pull-through-push driver over the operation chain
// built by internal/parser.
//
// Grounded on the teacher's interpreter driver (internal/interp), adapted
// from DWScript's statement-at-a-time evaluation to FlowQuery's row-stream
// model: each operation's run() pushes zero or more rows into next.run(),
// the terminal operation collects results, and a second finish() pass
// (spec.md §4.8 "Driver contract") walks the same chain so aggregated
// WITH/RETURN stages can emit their grouped rows once every input row has
// been seen.
package exec

import (
	"context"
	"errors"
	"fmt"
	"io"

	"net/http"

	"github.com/flowquery-lang/flowquery/internal/ast"
	"github.com/flowquery-lang/flowquery/internal/ferrors"
	"github.com/flowquery-lang/flowquery/internal/registry"
	"github.com/flowquery-lang/flowquery/internal/token"
	"github.com/flowquery-lang/flowquery/internal/value"
)

// errLimitStop is the stop signal a LIMIT-bearing operation raises once it
// has produced its quota of rows (spec.md §4.7 "stops the driver after
// producing the given number of rows at that stage"). It bubbles up through
// every upstream loop on the synchronous call stack until it reaches the
// chain's root Run call, which treats it as ordinary completion rather than
// a failure — equivalent to "caught at the initiating operation" because
// the chain has no branching: unwinding the whole stack is exactly
// equivalent to stopping upstream production at that point.
var errLimitStop = errors.New("flowquery: limit reached")

// HTTPDoer is the subset of *http.Client the LOAD operation needs,
// satisfied by *http.Client itself and swappable via WithHTTPClient for
// tests (spec.md §9 "External Interfaces"). The stdlib net/http is the only
// HTTP client across the whole retrieval pack (grep found no third-party
// HTTP library in any example repo's go.mod), so there is no ecosystem
// alternative to wire in here.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures an Executor.
type Options struct {
	HTTPClient HTTPDoer
	MaxRows    int
	Trace      io.Writer
}

// Option mutates Options; see WithHTTPClient and WithMaxRows.
type Option func(*Options)

// WithHTTPClient overrides the HTTP client LOAD's URL form uses to fetch
// remote resources (spec.md §6 "External Interfaces").
func WithHTTPClient(c HTTPDoer) Option {
	return func(o *Options) { o.HTTPClient = c }
}

// WithMaxRows bounds the total number of rows Run will collect, independent
// of any in-query LIMIT, as a defensive ceiling for runaway queries. A
// negative value means unbounded; zero permits no rows.
func WithMaxRows(n int) Option {
	return func(o *Options) { o.MaxRows = n }
}

// WithTrace enables one trace line per operation invocation, written to w
// (spec.md §1.1, mirroring the teacher's `dwscript run --trace`).
func WithTrace(w io.Writer) Option {
	return func(o *Options) { o.Trace = w }
}

// Executor runs one parsed *ast.Program to completion. It is not safe for
// concurrent use; create one Executor per Run (spec.md §5 "single-threaded,
// pull-push execution").
type Executor struct {
	reg    *registry.Registry
	opts   Options
	source string
	file   string

	results      []value.Value
	distinctSeen map[string]bool

	rowCounts map[ast.Operation]int64
	aggStates map[ast.Operation]*aggState
}

// New constructs an Executor bound to reg for one Run. source/file are used
// only for execution-error source-context formatting (spec.md §7).
func New(reg *registry.Registry, source, file string, opts ...Option) *Executor {
	o := Options{MaxRows: -1}
	for _, fn := range opts {
		fn(&o)
	}
	return &Executor{
		reg:       reg,
		opts:      o,
		source:    source,
		file:      file,
		rowCounts: make(map[ast.Operation]int64),
		aggStates: make(map[ast.Operation]*aggState),
	}
}

// Run drives prog to completion starting from a single empty seed row and
// returns every row RETURN collected (spec.md §4.7, §4.8).
func (ex *Executor) Run(ctx context.Context, prog *ast.Program) ([]value.Value, error) {
	if prog.First == nil {
		return nil, nil
	}
	if err := ex.run(ctx, prog.First, newEnv()); err != nil && !errors.Is(err, errLimitStop) {
		return nil, err
	}
	if err := ex.finish(ctx, prog.First); err != nil {
		return nil, err
	}
	if ex.results == nil {
		return []value.Value{}, nil
	}
	return ex.results, nil
}

func (ex *Executor) execErrAt(kind ferrors.Kind, pos token.Position, format string, args ...interface{}) error {
	return ferrors.NewCompilerError(kind, pos, fmt.Sprintf(format, args...), ex.source, ex.file)
}

// run dispatches one incoming row to op, which evaluates it against op's own
// semantics and pushes zero or more outgoing rows to op.Next() (spec.md
// §4.8 "each operation exposes run()").
func (ex *Executor) run(ctx context.Context, op ast.Operation, env *Env) error {
	if ex.opts.Trace != nil {
		fmt.Fprintf(ex.opts.Trace, "run  %T\n", op)
	}
	switch o := op.(type) {
	case *ast.WithOp:
		return ex.runWith(ctx, o, env)
	case *ast.UnwindOp:
		return ex.runUnwind(ctx, o, env)
	case *ast.LoadOp:
		return ex.runLoad(ctx, o, env)
	case *ast.CallOp:
		return ex.runCall(ctx, o, env)
	case *ast.ReturnOp:
		return ex.runReturn(ctx, o, env)
	default:
		return fmt.Errorf("exec: unknown operation type %T", op)
	}
}

// finish walks the chain a second time after run() has returned, giving
// aggregated WITH/RETURN stages — which only accumulated during run() — a
// chance to emit their grouped rows (spec.md §4.8).
func (ex *Executor) finish(ctx context.Context, op ast.Operation) error {
	switch o := op.(type) {
	case *ast.WithOp:
		if !o.IsAggregated() {
			return ex.finishNext(ctx, op)
		}
		return ex.finishAggregated(ctx, o, o.Items)
	case *ast.ReturnOp:
		if !o.IsAggregated() {
			return nil
		}
		return ex.finishAggregated(ctx, o, o.Items)
	default:
		return ex.finishNext(ctx, op)
	}
}

func (ex *Executor) finishNext(ctx context.Context, op ast.Operation) error {
	if next := op.Next(); next != nil {
		return ex.finish(ctx, next)
	}
	return nil
}

// checkLimit reports errLimitStop once op has already produced its declared
// LIMIT of rows.
func (ex *Executor) checkLimit(op ast.Operation) error {
	lim := op.Limit()
	if lim == nil {
		return nil
	}
	if ex.rowCounts[op] >= *lim {
		return errLimitStop
	}
	return nil
}

// forward applies op's trailing WHERE and LIMIT to a candidate outgoing row
// and, if it survives both, pushes it to op.Next(). A row is either skipped
// (WHERE false) or stops the whole upstream chain (LIMIT reached); both are
// ordinary, non-error outcomes from the caller's perspective except that the
// latter propagates errLimitStop so enclosing loops can stop pulling more
// input (spec.md §4.7).
func (ex *Executor) forward(ctx context.Context, op ast.Operation, row *Env) error {
	if w := op.Where(); w != nil {
		pass, err := ex.evalWhere(ctx, w, row)
		if err != nil {
			return err
		}
		if !pass {
			return nil
		}
	}
	if err := ex.checkLimit(op); err != nil {
		return err
	}
	ex.rowCounts[op]++
	if next := op.Next(); next != nil {
		return ex.run(ctx, next, row)
	}
	return nil
}

func (ex *Executor) evalWhere(ctx context.Context, w *ast.ExpressionWrapper, env *Env) (bool, error) {
	v, err := ex.evalExpr(ctx, w.Root, env)
	if err != nil {
		return false, err
	}
	return v.Truthy(), nil
}

// projectedRow is the result of evaluating a WITH/RETURN item list against
// one row: parallel Keys/Vals slices in declaration order, plus an Env view
// for WHERE clauses and downstream reference resolution to use.
type projectedRow struct {
	Keys []string
	Vals []value.Value
}

func (r *projectedRow) toEnv() *Env {
	e := newEnv()
	for i, k := range r.Keys {
		e.Set(k, r.Vals[i])
	}
	return e
}

func (r *projectedRow) toValue() value.Value {
	return value.Map(r.Keys, r.Vals)
}

func (ex *Executor) evalProjection(ctx context.Context, items []*ast.WithItem, env *Env) (*projectedRow, error) {
	row := &projectedRow{Keys: make([]string, len(items)), Vals: make([]value.Value, len(items))}
	for i, item := range items {
		v, err := ex.evalExpr(ctx, item.Root, env)
		if err != nil {
			return nil, err
		}
		row.Keys[i] = item.Alias
		row.Vals[i] = v
	}
	return row, nil
}

func (ex *Executor) runWith(ctx context.Context, op *ast.WithOp, env *Env) error {
	if op.IsAggregated() {
		return ex.accumulate(ctx, op, op.Items, env)
	}
	row, err := ex.evalProjection(ctx, op.Items, env)
	if err != nil {
		return err
	}
	return ex.forward(ctx, op, row.toEnv())
}

func (ex *Executor) runUnwind(ctx context.Context, op *ast.UnwindOp, env *Env) error {
	src, err := ex.evalExpr(ctx, op.Source, env)
	if err != nil {
		return err
	}
	if src.IsNull() {
		return nil
	}
	if src.Kind() != value.KindArray {
		return ex.execErrAt(ferrors.TypeMismatch, op.Source.Pos(), "UNWIND source must be an array, got %s", src.TypeName())
	}
	for _, el := range src.Elements() {
		row := env.clone()
		row.Set(op.Alias, el)
		if err := ex.forward(ctx, op, row); err != nil {
			return err
		}
	}
	return nil
}

// runCall drives a registered async provider (spec.md §4.8 "Call"). A
// YIELD-less CALL is guaranteed terminal by the parser
// (ferrors.CallRequiresYield otherwise), so that branch builds and collects
// a final row itself instead of pushing to op.Next(), which is always nil.
func (ex *Executor) runCall(ctx context.Context, op *ast.CallOp, env *Env) error {
	provider, ok := ex.reg.ResolveAsync(op.Name)
	if !ok {
		return ex.execErrAt(ferrors.UnresolvedReference, op.Pos(), "unknown async provider %q", op.Name)
	}
	args := make([]value.Value, len(op.Args))
	for i, a := range op.Args {
		v, err := ex.evalExpr(ctx, a, env)
		if err != nil {
			return err
		}
		args[i] = v
	}
	seq, err := provider(ctx, args)
	if err != nil {
		return ex.execErrAt(ferrors.AsyncProviderError, op.Pos(), "%s: %v", op.Name, err)
	}
	defer seq.Close()

	for {
		v, ok, err := seq.Next(ctx)
		if err != nil {
			return ex.execErrAt(ferrors.AsyncProviderError, op.Pos(), "%s: %v", op.Name, err)
		}
		if !ok {
			return nil
		}

		if len(op.Yields) == 0 {
			if err := ex.emitCallRow(ctx, op, v); err != nil {
				return err
			}
			continue
		}

		row := env.clone()
		if v.Kind() == value.KindMap {
			for _, y := range op.Yields {
				bound, _ := v.Get(y)
				row.Set(y, bound)
			}
		} else {
			if len(op.Yields) != 1 {
				return ex.execErrAt(ferrors.TypeMismatch, op.Pos(), "%s: scalar result requires exactly one YIELD name", op.Name)
			}
			row.Set(op.Yields[0], v)
		}
		if err := ex.forward(ctx, op, row); err != nil {
			return err
		}
	}
}

// emitCallRow handles a YIELD-less terminal CALL's per-element row: scalars
// become {"value": v}, mappings are collected as-is (spec.md §4.8 "collect
// each element into a row with field `value` ... or as-is").
func (ex *Executor) emitCallRow(ctx context.Context, op *ast.CallOp, v value.Value) error {
	var row *projectedRow
	if v.Kind() == value.KindMap {
		row = &projectedRow{Keys: v.Keys(), Vals: make([]value.Value, len(v.Keys()))}
		for i, k := range row.Keys {
			row.Vals[i], _ = v.Get(k)
		}
	} else {
		row = &projectedRow{Keys: []string{"value"}, Vals: []value.Value{v}}
	}

	if w := op.Where(); w != nil {
		pass, err := ex.evalWhere(ctx, w, row.toEnv())
		if err != nil {
			return err
		}
		if !pass {
			return nil
		}
	}
	if err := ex.checkLimit(op); err != nil {
		return err
	}
	if ex.opts.MaxRows >= 0 && len(ex.results) >= ex.opts.MaxRows {
		return errLimitStop
	}
	ex.rowCounts[op]++
	ex.results = append(ex.results, row.toValue())
	return nil
}

func (ex *Executor) runReturn(ctx context.Context, op *ast.ReturnOp, env *Env) error {
	if op.IsAggregated() {
		return ex.accumulate(ctx, op, op.Items, env)
	}
	row, err := ex.evalProjection(ctx, op.Items, env)
	if err != nil {
		return err
	}
	return ex.emitReturnRow(ctx, op, row)
}

// emitReturnRow applies RETURN's WHERE/LIMIT/DISTINCT and, if the row
// survives, appends it to ex.results. Shared by the non-aggregated path
// above and finishAggregated's per-bucket emission.
func (ex *Executor) emitReturnRow(ctx context.Context, op *ast.ReturnOp, row *projectedRow) error {
	if w := op.Where(); w != nil {
		pass, err := ex.evalWhere(ctx, w, row.toEnv())
		if err != nil {
			return err
		}
		if !pass {
			return nil
		}
	}
	if err := ex.checkLimit(op); err != nil {
		return err
	}

	v := row.toValue()
	if op.Distinct {
		key := value.DedupKey(v)
		if ex.distinctSeen == nil {
			ex.distinctSeen = make(map[string]bool)
		}
		if ex.distinctSeen[key] {
			return nil
		}
		ex.distinctSeen[key] = true
	}

	if ex.opts.MaxRows >= 0 && len(ex.results) >= ex.opts.MaxRows {
		return errLimitStop
	}
	ex.rowCounts[op]++
	ex.results = append(ex.results, v)
	return nil
}
