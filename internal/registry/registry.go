// Package registry implements the FlowQuery function registry (spec.md
// §4.6, C6): a name-keyed catalog of scalar, aggregate, predicate, and
// async functions, with metadata for introspection and a scoped-overlay
// child registry for test isolation (spec.md §9 "Global registry").
//
// Grounded on the teacher's FunctionRegistry
// (internal/interp/types/function_registry.go): case-insensitive name
// normalization, a name->entry map, and a metadata projection distinct from
// the callable itself. FlowQuery functions are not overloaded by arity the
// way DWScript's are — one name names exactly one entry — so the teacher's
// per-name overload slice collapses to a single *entry here.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/text/cases"

	"github.com/flowquery-lang/flowquery/internal/value"
)

// Category is one of the four function kinds spec.md §4.6 names.
type Category string

const (
	CategoryScalar    Category = "scalar"
	CategoryAggregate Category = "aggregate"
	CategoryPredicate Category = "predicate"
	CategoryAsync     Category = "async"
)

// Metadata is the introspectable shape of a registered function, returned
// by List and by the in-language functions() builtin (spec.md §4.6, §4.9).
type Metadata struct {
	Name     string
	Category Category
	// Arity is the fixed argument count, or -1 if the function accepts a
	// variable number of arguments (spec.md §4.6: "parameter-count mismatch
	// on call is a parse-time error when the function declares a fixed
	// count").
	Arity int
}

// Accumulator holds one group's running aggregate state (spec.md §4.8
// "accumulator element"). Add is called once per contributing row's
// argument value; Finish produces the group's final value.
type Accumulator interface {
	Add(v value.Value) error
	Finish() (value.Value, error)
}

// AccumulatorFactory produces a fresh Accumulator for a new group bucket.
type AccumulatorFactory func() Accumulator

// ScalarFunc is a pure function invoked once per row.
type ScalarFunc func(ctx context.Context, args []value.Value) (value.Value, error)

// AsyncSequence is a lazy, pull-driven sequence of values (spec.md §9
// "Async iteration", §6 "Async-provider contract"). Next blocks until the
// next element is available, the sequence is exhausted (ok=false), or ctx
// is cancelled. Close releases provider resources on early termination,
// e.g. from LIMIT.
type AsyncSequence interface {
	Next(ctx context.Context) (v value.Value, ok bool, err error)
	Close()
}

// AsyncProvider constructs a lazy sequence from call arguments — the
// generate(args…) hook of spec.md §6.
type AsyncProvider func(ctx context.Context, args []value.Value) (AsyncSequence, error)

type entry struct {
	meta      Metadata
	scalar    ScalarFunc
	aggregate AccumulatorFactory
	async     AsyncProvider
}

// Registry is a process-wide or scoped catalog of callable functions.
// Reads are safe for concurrent use once registration has settled (spec.md
// §5: "the function registry is mutated only during process setup ...
// once execution begins it must be read-only").
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	parent   *Registry
	warnings []string
}

// New returns an empty root registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Child returns a scoped overlay registry: lookups fall through to the
// parent when absent locally, but registrations and unregistrations only
// ever affect the child — the "scoped registry overlay" spec.md §9
// recommends for test isolation without mutating the shared catalog.
func (r *Registry) Child() *Registry {
	return &Registry{entries: make(map[string]*entry), parent: r}
}

// nameFolder performs full Unicode case folding (not just ASCII
// strings.ToLower) so function names resolve identically under any casing,
// the same way the teacher's builtins use golang.org/x/text/cases for
// UpperCase/string comparisons (internal/interp/builtins/strings.go).
var nameFolder = cases.Fold()

func normalize(name string) string { return nameFolder.String(name) }

func (r *Registry) register(name string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := normalize(name)
	if _, exists := r.entries[key]; exists {
		r.warnings = append(r.warnings, fmt.Sprintf("function %q re-registered, overwriting previous definition", name))
	}
	r.entries[key] = e
}

// RegisterScalar adds or replaces a scalar function. arity is -1 for a
// variadic function.
func (r *Registry) RegisterScalar(name string, arity int, fn ScalarFunc) {
	r.register(name, &entry{meta: Metadata{Name: name, Category: CategoryScalar, Arity: arity}, scalar: fn})
}

// RegisterAggregate adds or replaces an aggregate function.
func (r *Registry) RegisterAggregate(name string, arity int, factory AccumulatorFactory) {
	r.register(name, &entry{meta: Metadata{Name: name, Category: CategoryAggregate, Arity: arity}, aggregate: factory})
}

// RegisterAsync adds or replaces an async provider function.
func (r *Registry) RegisterAsync(name string, arity int, provider AsyncProvider) {
	r.register(name, &entry{meta: Metadata{Name: name, Category: CategoryAsync, Arity: arity}, async: provider})
}

// Unregister removes a function by name from this registry (not from any
// parent it overlays). Returns true if something was removed.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := normalize(name)
	if _, exists := r.entries[key]; exists {
		delete(r.entries, key)
		return true
	}
	return false
}

func (r *Registry) lookup(name string) (*entry, bool) {
	r.mu.RLock()
	e, ok := r.entries[normalize(name)]
	r.mu.RUnlock()
	if ok {
		return e, true
	}
	if r.parent != nil {
		return r.parent.lookup(name)
	}
	return nil, false
}

// Metadata returns the metadata for a registered function, across this
// registry and any parent it overlays.
func (r *Registry) Metadata(name string) (Metadata, bool) {
	e, ok := r.lookup(name)
	if !ok {
		return Metadata{}, false
	}
	return e.meta, true
}

// ResolveScalar returns the callable for a registered scalar function.
func (r *Registry) ResolveScalar(name string) (ScalarFunc, bool) {
	e, ok := r.lookup(name)
	if !ok || e.scalar == nil {
		return nil, false
	}
	return e.scalar, true
}

// ResolveAggregate returns the accumulator factory for a registered
// aggregate function.
func (r *Registry) ResolveAggregate(name string) (AccumulatorFactory, bool) {
	e, ok := r.lookup(name)
	if !ok || e.aggregate == nil {
		return nil, false
	}
	return e.aggregate, true
}

// ResolveAsync returns the provider for a registered async function.
func (r *Registry) ResolveAsync(name string) (AsyncProvider, bool) {
	e, ok := r.lookup(name)
	if !ok || e.async == nil {
		return nil, false
	}
	return e.async, true
}

// ListFilter narrows List's result set (spec.md §4.6 "listFunctions").
type ListFilter struct {
	Category  Category // zero value means "any category"
	AsyncOnly bool
	SyncOnly bool
}

// List returns metadata for every function visible through this registry
// (including any parent it overlays), matching filter, sorted by name so
// that repeated calls and the functions() builtin that projects this order
// into a result array are deterministic (spec.md §8 "Determinism") rather
// than following Go's randomized map iteration order. It backs both the
// embedding API's list({category}) and the in-language functions() builtin
// (spec.md §4.6, §4.9, §6).
func (r *Registry) List(filter ListFilter) []Metadata {
	seen := make(map[string]Metadata)
	for reg := r; reg != nil; reg = reg.parent {
		reg.mu.RLock()
		for key, e := range reg.entries {
			if _, already := seen[key]; already {
				continue // child overlay entry shadows parent's
			}
			seen[key] = e.meta
		}
		reg.mu.RUnlock()
	}

	out := make([]Metadata, 0, len(seen))
	for _, m := range seen {
		if filter.Category != "" && m.Category != filter.Category {
			continue
		}
		if filter.AsyncOnly && m.Category != CategoryAsync {
			continue
		}
		if filter.SyncOnly && m.Category == CategoryAsync {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Warnings returns the duplicate-registration warnings accumulated so far
// (spec.md §4.6: "duplicate registration is a warning and overwrites").
func (r *Registry) Warnings() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.warnings...)
}

// CheckArity reports whether argc is compatible with name's declared
// arity, used by the parser to raise ArityMismatch at parse time (spec.md
// §4.6, §7).
func (r *Registry) CheckArity(name string, argc int) bool {
	meta, ok := r.Metadata(name)
	if !ok {
		return true // unknown-function is reported separately
	}
	if meta.Arity < 0 {
		return true
	}
	return meta.Arity == argc
}
