package exec

import "github.com/flowquery-lang/flowquery/internal/value"

// Env is the binding environment: a flat, mutable alias->value table shared
// by the whole operation chain during one synchronous execution step
// (spec.md §9 "Binding via references": "a separate binding environment
// indexed by name rather than AST-walking"). Because the driver is
// single-threaded and pull-push, no locking is required (spec.md §5).
type Env struct {
	values map[string]value.Value
}

func newEnv() *Env {
	return &Env{values: make(map[string]value.Value)}
}

func (e *Env) Get(name string) (value.Value, bool) {
	v, ok := e.values[name]
	return v, ok
}

func (e *Env) Set(name string, v value.Value) {
	e.values[name] = v
}

func (e *Env) Delete(name string) {
	delete(e.values, name)
}

// clone returns a shallow copy, used whenever an operation fans a single
// incoming row out into several outgoing rows (UNWIND elements, LOAD/CALL
// sequence items) so each branch mutates its own bindings only.
func (e *Env) clone() *Env {
	cp := make(map[string]value.Value, len(e.values))
	for k, v := range e.values {
		cp[k] = v
	}
	return &Env{values: cp}
}
