package builtins

import (
	"context"
	"net/http"

	"github.com/flowquery-lang/flowquery/internal/registry"
	"github.com/flowquery-lang/flowquery/internal/value"
)

// Options configures Register, mirroring the teacher's functional-options
// convention (e.g. lexer.Option) rather than a struct of required fields.
type Options struct {
	HTTPClient *http.Client
}

// Option mutates Options.
type Option func(*Options)

// WithHTTPClient overrides the client fetchJson issues requests through,
// matching exec.WithHTTPClient's shape for the LOAD HTTP form.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Options) { o.HTTPClient = c }
}

// Register wires every built-in scalar, aggregate, and async function into
// reg (spec.md §4.9, C9). Arities are declared so the parser can raise
// ArityMismatch synchronously (spec.md §8: `RETURN range(1)` must fail to
// parse) rather than leaving arity checking to runtime.
func Register(reg *registry.Registry, opts ...Option) {
	o := Options{HTTPClient: http.DefaultClient}
	for _, opt := range opts {
		opt(&o)
	}

	reg.RegisterScalar("range", 2, rangeFn)
	reg.RegisterScalar("rand", 0, randFn)
	reg.RegisterScalar("round", -1, roundFn) // 1 or 2 args; -1 skips the parser's fixed-arity check
	reg.RegisterScalar("split", 2, splitFn)
	reg.RegisterScalar("join", 2, joinFn)
	reg.RegisterScalar("tojson", 1, tojsonFn)
	reg.RegisterScalar("stringify", 1, stringifyFn)
	reg.RegisterScalar("replace", 3, replaceFn)
	reg.RegisterScalar("size", 1, sizeFn)
	reg.RegisterScalar("keys", 1, keysFn)
	reg.RegisterScalar("type", 1, typeFn)
	reg.RegisterScalar("coalesce", -1, coalesceFn)
	reg.RegisterScalar("toInteger", 1, toIntegerFn)
	reg.RegisterScalar("toFloat", 1, toFloatFn)
	reg.RegisterScalar("toString", 1, toStringFn)
	reg.RegisterScalar("toBoolean", 1, toBooleanFn)
	reg.RegisterScalar("functions", 0, functionsFn(reg))

	reg.RegisterAggregate("sum", 1, newSumAcc)
	reg.RegisterAggregate("avg", 1, newAvgAcc)
	reg.RegisterAggregate("collect", 1, newCollectAcc)
	reg.RegisterAggregate("min", 1, newMinAcc)
	reg.RegisterAggregate("max", 1, newMaxAcc)
	reg.RegisterAggregate("count", -1, newCountAcc) // count() or count(x)

	reg.RegisterAsync("fetchJson", -1, fetchJsonProvider(o.HTTPClient)) // fetchJson(url[, options])
}

// functionsFn closes over reg to implement functions(): an in-language
// projection of the registry's own metadata catalog (spec.md §4.6
// "listFunctions", §4.9 "functions() returns the metadata catalog").
func functionsFn(reg *registry.Registry) func(context.Context, []value.Value) (value.Value, error) {
	return func(_ context.Context, _ []value.Value) (value.Value, error) {
		metas := reg.List(registry.ListFilter{})
		out := make([]value.Value, len(metas))
		for i, m := range metas {
			out[i] = value.Map(
				[]string{"name", "category", "arity"},
				[]value.Value{value.String(m.Name), value.String(string(m.Category)), value.Int(int64(m.Arity))},
			)
		}
		return value.Array(out), nil
	}
}
