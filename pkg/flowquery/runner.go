// Package flowquery is FlowQuery's embedding API (spec.md §4.10, §6, C10):
// construct a Runner over source text (parsing happens immediately and
// fails fast), then run it to completion and read back its result rows.
// Grounded on the teacher's pkg/dwscript engine (New()/engine.Parse(source))
// for the "construct once, parse eagerly, execute later" shape, adapted from
// DWScript's statement-tree model to FlowQuery's single-pipeline model: a
// Runner wraps exactly one parsed program rather than a mutable session.
package flowquery

import (
	"context"
	"io"
	"net/http"

	"github.com/flowquery-lang/flowquery/internal/ast"
	"github.com/flowquery-lang/flowquery/internal/builtins"
	"github.com/flowquery-lang/flowquery/internal/exec"
	"github.com/flowquery-lang/flowquery/internal/ferrors"
	"github.com/flowquery-lang/flowquery/internal/parser"
	"github.com/flowquery-lang/flowquery/internal/registry"
	"github.com/flowquery-lang/flowquery/internal/value"
)

// DefaultRegistry is the process-wide registry every Runner falls back to
// unless constructed with WithRegistry, pre-populated with every built-in
// (spec.md §4.9). Mirrors the teacher's builtins.DefaultRegistry /
// init()-time RegisterAll pattern (internal/interp/builtins/register.go).
var DefaultRegistry = registry.New()

func init() {
	builtins.Register(DefaultRegistry)
}

// config collects Runner construction options (spec.md §1.3 ambient
// configuration: "configured purely through constructor options").
type config struct {
	trace      io.Writer
	httpClient *http.Client
	reg        *registry.Registry
	maxRows    int
	file       string
}

// Option configures a Runner, following the teacher's functional-options
// convention (internal/lexer.Option, evaluator.Config).
type Option func(*config)

// WithTrace enables per-operation-invocation tracing to w, mirroring the
// teacher's `dwscript run --trace` (spec.md §1.1).
func WithTrace(w io.Writer) Option { return func(c *config) { c.trace = w } }

// WithHTTPClient overrides the client used by LOAD's URL form. It does not
// change fetchJson, which keeps the client it was registered with.
func WithHTTPClient(client *http.Client) Option { return func(c *config) { c.httpClient = client } }

// WithRegistry overlays a scoped registry instead of DefaultRegistry, the
// test-isolation mechanism named in spec.md §4.6/§9.
func WithRegistry(reg *registry.Registry) Option { return func(c *config) { c.reg = reg } }

// WithMaxRows sets a defensive result-row ceiling independent of any LIMIT
// clause in the query itself (spec.md §1.3).
func WithMaxRows(n int) Option { return func(c *config) { c.maxRows = n } }

// WithFile attaches a file name to parse/execution errors, for CLI use.
func WithFile(name string) Option { return func(c *config) { c.file = name } }

// Runner parses one FlowQuery source string and drives it to completion
// (spec.md §4.10). A Runner is single-use: construct, Run, read Results.
type Runner struct {
	source string
	prog   *ast.Program
	reg    *registry.Registry
	cfg    config
	ex     *exec.Executor
	rows   []value.Value
}

// New parses source immediately, returning a *ferrors.CompilerError (wrapped
// as error) on any syntax problem — "fail fast on syntax errors" (spec.md
// §4.10, §6 "Construct Runner(source) — parse immediately; return error on
// parse failure").
func New(source string, opts ...Option) (*Runner, error) {
	cfg := config{maxRows: -1, httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(&cfg)
	}
	reg := cfg.reg
	if reg == nil {
		reg = DefaultRegistry
	}

	var prog *ast.Program
	var err error
	if cfg.file != "" {
		prog, err = parser.ParseFile(source, cfg.file, reg)
	} else {
		prog, err = parser.Parse(source, reg)
	}
	if err != nil {
		return nil, err
	}

	return &Runner{source: source, prog: prog, reg: reg, cfg: cfg}, nil
}

// Run executes the parsed pipeline to completion (spec.md §4.10 "run() is
// asynchronous (it awaits async providers)" — realised in Go via ctx and
// synchronous blocking calls on the goroutine that calls Run, since FlowQuery
// has no parallel operation execution to await across). Execution errors are
// returned here, never from New.
func (r *Runner) Run(ctx context.Context) error {
	var execOpts []exec.Option
	execOpts = append(execOpts, exec.WithHTTPClient(r.cfg.httpClient))
	if r.cfg.maxRows >= 0 {
		execOpts = append(execOpts, exec.WithMaxRows(r.cfg.maxRows))
	}
	if r.cfg.trace != nil {
		execOpts = append(execOpts, exec.WithTrace(r.cfg.trace))
	}

	r.ex = exec.New(r.reg, r.source, r.cfg.file, execOpts...)
	rows, err := r.ex.Run(ctx, r.prog)
	r.rows = rows
	return err
}

// Results returns the terminal operation's row buffer (spec.md §4.10
// "results reads the terminal operation's buffer"), empty until Run has
// completed successfully.
func (r *Runner) Results() []value.Value {
	return r.rows
}

// RegisterScalar adds or replaces a scalar function in this Runner's
// registry (spec.md §6 "register(name, definition)"). Go has no single
// "definition" value that covers scalar/aggregate/async uniformly the way
// a dynamic host language would, so the embedding API's one register() verb
// becomes three typed proxies instead — one per registry.Registry method.
func (r *Runner) RegisterScalar(name string, arity int, fn registry.ScalarFunc) {
	r.reg.RegisterScalar(name, arity, fn)
}

// RegisterAggregate adds or replaces an aggregate function (spec.md §6).
func (r *Runner) RegisterAggregate(name string, arity int, factory registry.AccumulatorFactory) {
	r.reg.RegisterAggregate(name, arity, factory)
}

// RegisterAsync adds or replaces an async provider (spec.md §6).
func (r *Runner) RegisterAsync(name string, arity int, provider registry.AsyncProvider) {
	r.reg.RegisterAsync(name, arity, provider)
}

// Unregister removes name from this Runner's registry (spec.md §6).
func (r *Runner) Unregister(name string) bool {
	return r.reg.Unregister(name)
}

// List returns metadata for every function visible to this Runner matching
// filter (spec.md §6 "list({category})").
func (r *Runner) List(filter registry.ListFilter) []registry.Metadata {
	return r.reg.List(filter)
}

// Metadata returns one function's metadata (spec.md §6 "metadata(name)").
func (r *Runner) Metadata(name string) (registry.Metadata, bool) {
	return r.reg.Metadata(name)
}

// FormatError pretty-prints err with source context and a caret pointer if
// it is a *ferrors.CompilerError, else falls back to err.Error().
func FormatError(err error, color bool) string {
	if ce, ok := err.(*ferrors.CompilerError); ok {
		return ce.Format(color)
	}
	return err.Error()
}
