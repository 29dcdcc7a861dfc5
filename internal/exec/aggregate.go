package exec

import (
	"context"

	"github.com/flowquery-lang/flowquery/internal/ast"
	"github.com/flowquery-lang/flowquery/internal/ferrors"
	"github.com/flowquery-lang/flowquery/internal/registry"
	"github.com/flowquery-lang/flowquery/internal/value"
)

// groupBucket is one group's accumulated state: one Accumulator per distinct
// aggregate FunctionCall *occurrence* in the projection (spec.md §9
// "accumulator-per-aggregate-occurrence" — `WITH sum(a) AS x, sum(b) AS y`
// keeps two independent accumulators even though both call sum), plus
// per-occurrence DISTINCT dedup sets and the first row seen for this group,
// used to evaluate the group's mappable items once the group is finalised.
type groupBucket struct {
	sampleEnv    *Env
	accums       map[*ast.FunctionCall]registry.Accumulator
	distinctSeen map[*ast.FunctionCall]map[string]bool
}

// aggState is the accumulated grouping state for one aggregated WITH/RETURN
// operation, built fresh per Run and stored off the AST in
// Executor.aggStates (spec.md §9 "Aggregation state kept off the AST").
type aggState struct {
	buckets map[string]*groupBucket
	order   []string
}

// accumulate is the run()-phase handler shared by aggregated WithOp and
// ReturnOp: it classifies each item as mappable (no aggregate — contributes
// to the group key) or reducing (contains an aggregate — contributes
// accumulator input), and feeds env's values into the appropriate bucket.
// It never emits a row; grouped output is only produced by finishAggregated
// after the whole input stream has been seen (spec.md §4.8).
func (ex *Executor) accumulate(ctx context.Context, op ast.Operation, items []*ast.WithItem, env *Env) error {
	keyParts := make([]string, 0, len(items))
	keyVals := make([]value.Value, 0, len(items))
	for _, item := range items {
		if ast.ContainsAggregate(item.Root) {
			continue
		}
		v, err := ex.evalExpr(ctx, item.Root, env)
		if err != nil {
			return err
		}
		keyParts = append(keyParts, item.Alias)
		keyVals = append(keyVals, v)
	}
	groupKey := value.DedupKey(value.Map(keyParts, keyVals))

	st := ex.aggStates[op]
	if st == nil {
		st = &aggState{buckets: make(map[string]*groupBucket)}
		ex.aggStates[op] = st
	}
	bucket := st.buckets[groupKey]
	if bucket == nil {
		bucket = &groupBucket{
			sampleEnv:    env.clone(),
			accums:       make(map[*ast.FunctionCall]registry.Accumulator),
			distinctSeen: make(map[*ast.FunctionCall]map[string]bool),
		}
		st.buckets[groupKey] = bucket
		st.order = append(st.order, groupKey)
	}

	for _, item := range items {
		if !ast.ContainsAggregate(item.Root) {
			continue
		}
		for _, fc := range collectAggregateCalls(item.Root) {
			if err := ex.feedAggregate(ctx, fc, env, bucket); err != nil {
				return err
			}
		}
	}
	return nil
}

// feedAggregate evaluates one aggregate FunctionCall occurrence's input for
// the current row and adds it to that occurrence's accumulator, expanding
// the predicate (list-comprehension) form `x IN coll | proj [WHERE cond]`
// into one Add per surviving element (spec.md §4.5 "Predicate form", §4.8).
func (ex *Executor) feedAggregate(ctx context.Context, fc *ast.FunctionCall, env *Env, bucket *groupBucket) error {
	if fc.Predicate != nil {
		src, err := ex.evalExpr(ctx, fc.Predicate.Source, env)
		if err != nil {
			return err
		}
		if src.IsNull() {
			return nil
		}
		if src.Kind() != value.KindArray {
			return ex.execErrAt(ferrors.TypeMismatch, fc.Predicate.Pos(), "predicate source must be an array, got %s", src.TypeName())
		}
		for _, el := range src.Elements() {
			child := env.clone()
			child.Set(fc.Predicate.VarName, el)
			if fc.Predicate.Filter != nil {
				fv, err := ex.evalExpr(ctx, fc.Predicate.Filter, child)
				if err != nil {
					return err
				}
				if !fv.Truthy() {
					continue
				}
			}
			pv, err := ex.evalExpr(ctx, fc.Predicate.Projection, child)
			if err != nil {
				return err
			}
			if err := ex.addToAccumulator(fc, bucket, pv); err != nil {
				return err
			}
		}
		return nil
	}

	if len(fc.Args) == 0 {
		return ex.addToAccumulator(fc, bucket, value.Null)
	}
	v, err := ex.evalExpr(ctx, fc.Args[0], env)
	if err != nil {
		return err
	}
	return ex.addToAccumulator(fc, bucket, v)
}

func (ex *Executor) addToAccumulator(fc *ast.FunctionCall, bucket *groupBucket, v value.Value) error {
	if fc.Distinct {
		seen := bucket.distinctSeen[fc]
		if seen == nil {
			seen = make(map[string]bool)
			bucket.distinctSeen[fc] = seen
		}
		key := value.DedupKey(v)
		if seen[key] {
			return nil
		}
		seen[key] = true
	}

	acc, err := ex.accumulatorFor(fc, bucket)
	if err != nil {
		return err
	}
	return acc.Add(v)
}

func (ex *Executor) accumulatorFor(fc *ast.FunctionCall, bucket *groupBucket) (registry.Accumulator, error) {
	if acc, ok := bucket.accums[fc]; ok {
		return acc, nil
	}
	factory, ok := ex.reg.ResolveAggregate(fc.Name)
	if !ok {
		return nil, ex.execErrAt(ferrors.UnresolvedReference, fc.Pos(), "unknown aggregate function %q", fc.Name)
	}
	acc := factory()
	bucket.accums[fc] = acc
	return acc, nil
}

// collectAggregateCalls returns every aggregate FunctionCall occurrence in
// expr's subtree, mirroring ast.ContainsAggregate's traversal but collecting
// node pointers instead of a boolean.
func collectAggregateCalls(expr ast.Expression) []*ast.FunctionCall {
	var out []*ast.FunctionCall
	var walk func(ast.Expression)
	walk = func(e ast.Expression) {
		switch n := e.(type) {
		case *ast.FunctionCall:
			if n.IsAggregate {
				out = append(out, n)
				return
			}
			for _, a := range n.Args {
				walk(a)
			}
		case *ast.BinaryExpr:
			walk(n.Left)
			walk(n.Right)
		case *ast.UnaryExpr:
			walk(n.Operand)
		case *ast.IsNullExpr:
			walk(n.Operand)
		case *ast.Lookup:
			walk(n.Root)
			walk(n.Index)
		case *ast.RangeLookup:
			walk(n.Root)
			if n.Start != nil {
				walk(n.Start)
			}
			if n.End != nil {
				walk(n.End)
			}
		case *ast.ArrayLiteral:
			for _, el := range n.Elements {
				walk(el)
			}
		case *ast.MapLiteral:
			for _, entry := range n.Entries {
				walk(entry.Value)
			}
		case *ast.FString:
			for _, sub := range n.Exprs {
				walk(sub)
			}
		case *ast.CaseExpr:
			for _, w := range n.Whens {
				walk(w.Cond)
				walk(w.Then)
			}
			if n.Else != nil {
				walk(n.Else)
			}
		}
	}
	walk(expr)
	return out
}

// finishAggregated emits every accumulated group of an aggregated WITH or
// RETURN, in first-seen order (spec.md §4.8 "finish() ... emit their
// accumulated groups"). Each group's reducing items are (re-)evaluated
// after substituting each aggregate occurrence's finished value into its
// Overridden slot, then the Overridden slots are cleared again so a later
// group's evaluation starts clean (spec.md §9 "Aggregate overriding").
//
// When the projection has no mappable item at all (every item contains an
// aggregate), a query over zero input rows still reports one group with
// each aggregate's empty-input result — the usual `SELECT count(*)` ungrouped
// aggregate semantics. A projection with at least one mappable item instead
// reports zero groups for zero input rows, since no group-key values exist
// to report.
func (ex *Executor) finishAggregated(ctx context.Context, op ast.Operation, items []*ast.WithItem) error {
	st := ex.aggStates[op]
	if st == nil {
		hasMappable := false
		for _, item := range items {
			if !ast.ContainsAggregate(item.Root) {
				hasMappable = true
				break
			}
		}
		if hasMappable {
			return ex.finishNext(ctx, op)
		}
		st = &aggState{buckets: map[string]*groupBucket{"": {accums: map[*ast.FunctionCall]registry.Accumulator{}}}}
		st.order = []string{""}
	}

	for _, key := range st.order {
		bucket := st.buckets[key]
		finals := make(map[*ast.FunctionCall]value.Value, len(bucket.accums))
		for _, item := range items {
			for _, fc := range collectAggregateCalls(item.Root) {
				if _, done := finals[fc]; done {
					continue
				}
				acc, err := ex.accumulatorFor(fc, bucket)
				if err != nil {
					return err
				}
				v, err := acc.Finish()
				if err != nil {
					return err
				}
				finals[fc] = v
			}
		}
		for fc, v := range finals {
			vv := v
			fc.Overridden = &vv
		}

		env := bucket.sampleEnv
		if env == nil {
			env = newEnv()
		}
		row, err := ex.evalProjection(ctx, items, env)

		for fc := range finals {
			fc.Overridden = nil
		}
		if err != nil {
			return err
		}

		if retOp, ok := op.(*ast.ReturnOp); ok {
			if err := ex.emitReturnRow(ctx, retOp, row); err != nil {
				return err
			}
		} else {
			if err := ex.forward(ctx, op, row.toEnv()); err != nil {
				return err
			}
		}
	}

	return ex.finishNext(ctx, op)
}
