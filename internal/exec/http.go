package exec

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"net/http"
	"strings"

	"github.com/flowquery-lang/flowquery/internal/ast"
	"github.com/flowquery-lang/flowquery/internal/ferrors"
	"github.com/flowquery-lang/flowquery/internal/registry"
	"github.com/flowquery-lang/flowquery/internal/value"
)

// runLoad dispatches LOAD to either the async-provider form or the HTTP URL
// form, distinguishing them the way spec.md §4.7 does: a Source that
// syntactically parses as a FunctionCall naming a registered async provider
// is the provider form; anything else evaluates to a URL/string (spec.md
// §4.8 "Load (async-function form)" / "Load (URL form)").
func (ex *Executor) runLoad(ctx context.Context, op *ast.LoadOp, env *Env) error {
	if fc, ok := op.Source.(*ast.FunctionCall); ok {
		if provider, ok := ex.reg.ResolveAsync(fc.Name); ok {
			return ex.runLoadAsync(ctx, op, fc, provider, env)
		}
	}

	urlVal, err := ex.evalExpr(ctx, op.Source, env)
	if err != nil {
		return err
	}
	if urlVal.Kind() != value.KindString {
		return ex.execErrAt(ferrors.TypeMismatch, op.Source.Pos(), "LOAD FROM must be a string URL, got %s", urlVal.TypeName())
	}
	return ex.runLoadHTTP(ctx, op, env, urlVal.Str())
}

// runLoadAsync handles `LOAD FROM provider(args) AS alias` (spec.md §4.8
// "Load (async-function form)"): a mapping element is decomposed into one
// binding per key, a scalar element is bound to the single alias.
func (ex *Executor) runLoadAsync(ctx context.Context, op *ast.LoadOp, fc *ast.FunctionCall, provider registry.AsyncProvider, env *Env) error {
	args := make([]value.Value, len(fc.Args))
	for i, a := range fc.Args {
		v, err := ex.evalExpr(ctx, a, env)
		if err != nil {
			return err
		}
		args[i] = v
	}
	seq, err := provider(ctx, args)
	if err != nil {
		return ex.execErrAt(ferrors.AsyncProviderError, op.Source.Pos(), "%s: %v", fc.Name, err)
	}
	defer seq.Close()

	for {
		v, ok, err := seq.Next(ctx)
		if err != nil {
			return ex.execErrAt(ferrors.AsyncProviderError, op.Source.Pos(), "%s: %v", fc.Name, err)
		}
		if !ok {
			return nil
		}
		row := env.clone()
		if v.Kind() == value.KindMap {
			for _, k := range v.Keys() {
				bound, _ := v.Get(k)
				row.Set(k, bound)
			}
		} else {
			row.Set(op.Alias, v)
		}
		if err := ex.forward(ctx, op, row); err != nil {
			return err
		}
	}
}

func (ex *Executor) runLoadHTTP(ctx context.Context, op *ast.LoadOp, env *Env, rawURL string) error {
	var body io.Reader
	method := http.MethodGet
	headers := map[string]string{}

	for _, opt := range op.Options {
		v, err := ex.evalExpr(ctx, opt.Value, env)
		if err != nil {
			return err
		}
		switch opt.Key {
		case "HEADERS":
			if v.Kind() != value.KindMap {
				return ex.execErrAt(ferrors.TypeMismatch, opt.Value.Pos(), "HEADERS must be an object, got %s", v.TypeName())
			}
			for _, k := range v.Keys() {
				hv, _ := v.Get(k)
				headers[k] = value.CoerceForFString(hv)
			}
		case "POST":
			method = http.MethodPost
			body = strings.NewReader(value.CanonicalJSON(v))
		}
	}

	if body != nil {
		if _, ok := headers["Content-Type"]; !ok {
			headers["Content-Type"] = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return ex.execErrAt(ferrors.LoadFailed, op.Source.Pos(), "%s: %v", rawURL, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := ex.opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return ex.execErrAt(ferrors.LoadFailed, op.Source.Pos(), "%s: %v", rawURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ex.execErrAt(ferrors.LoadFailed, op.Source.Pos(), "%s: %v", rawURL, err)
	}
	if resp.StatusCode >= 400 {
		return ex.execErrAt(ferrors.LoadFailed, op.Source.Pos(), "%s: HTTP %d", rawURL, resp.StatusCode)
	}

	switch op.Format {
	case "CSV":
		return ex.emitLoadCSV(ctx, op, env, raw)
	case "TEXT":
		row := env.clone()
		row.Set(op.Alias, value.String(string(raw)))
		return ex.forward(ctx, op, row)
	default:
		return ex.emitLoadJSON(ctx, op, env, raw)
	}
}

// emitLoadJSON parses raw as JSON and, if the top-level value is an array,
// emits one row per element; otherwise emits a single row (spec.md §4.8
// "yielding either a single parsed value or iterating a top-level JSON
// array").
func (ex *Executor) emitLoadJSON(ctx context.Context, op *ast.LoadOp, env *Env, raw []byte) error {
	v, err := value.ParseJSON(raw)
	if err != nil {
		return ex.execErrAt(ferrors.LoadFailed, op.Source.Pos(), "invalid JSON response: %v", err)
	}
	if v.Kind() == value.KindArray {
		for _, el := range v.Elements() {
			row := env.clone()
			row.Set(op.Alias, el)
			if err := ex.forward(ctx, op, row); err != nil {
				return err
			}
		}
		return nil
	}
	row := env.clone()
	row.Set(op.Alias, v)
	return ex.forward(ctx, op, row)
}

// emitLoadCSV parses raw as a CSV document (header row + data rows) and
// emits one row per data row, the row's value a mapping keyed by the header
// columns. stdlib encoding/csv is the only CSV support anywhere in the
// retrieval pack (no example repo imports a third-party CSV library), so
// there is no ecosystem alternative to reach for here.
func (ex *Executor) emitLoadCSV(ctx context.Context, op *ast.LoadOp, env *Env, raw []byte) error {
	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return ex.execErrAt(ferrors.LoadFailed, op.Source.Pos(), "invalid CSV response: %v", err)
	}
	if len(records) == 0 {
		return nil
	}
	header := records[0]
	for _, rec := range records[1:] {
		vals := make([]value.Value, len(header))
		for i := range header {
			if i < len(rec) {
				vals[i] = value.String(rec[i])
			} else {
				vals[i] = value.Null
			}
		}
		row := env.clone()
		row.Set(op.Alias, value.Map(header, vals))
		if err := ex.forward(ctx, op, row); err != nil {
			return err
		}
	}
	return nil
}
