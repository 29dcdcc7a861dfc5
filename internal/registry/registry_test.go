package registry

import (
	"context"
	"testing"

	"github.com/flowquery-lang/flowquery/internal/value"
)

func noopScalar(_ context.Context, args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Null, nil
	}
	return args[0], nil
}

func TestRegisterAndResolveScalar(t *testing.T) {
	reg := New()
	reg.RegisterScalar("Echo", 1, noopScalar)

	fn, ok := reg.ResolveScalar("echo")
	if !ok {
		t.Fatal("expected case-insensitive lookup to find Echo")
	}
	v, err := fn(context.Background(), []value.Value{value.Int(7)})
	if err != nil || v.Int() != 7 {
		t.Errorf("expected 7, nil; got %v, %v", v, err)
	}
}

func TestCaseInsensitiveUnicodeFolding(t *testing.T) {
	reg := New()
	reg.RegisterScalar("größe", 1, noopScalar)

	if _, ok := reg.ResolveScalar("GRÖSSE"); !ok {
		t.Error("expected Unicode case folding to match GRÖSSE to größe")
	}
}

func TestDuplicateRegistrationWarns(t *testing.T) {
	reg := New()
	reg.RegisterScalar("dup", 1, noopScalar)
	reg.RegisterScalar("DUP", 1, noopScalar)

	if len(reg.Warnings()) != 1 {
		t.Errorf("expected exactly one warning, got %d: %v", len(reg.Warnings()), reg.Warnings())
	}
}

func TestUnregister(t *testing.T) {
	reg := New()
	reg.RegisterScalar("temp", 0, noopScalar)

	if !reg.Unregister("TEMP") {
		t.Fatal("expected Unregister to report removal")
	}
	if _, ok := reg.ResolveScalar("temp"); ok {
		t.Error("expected temp to be gone after Unregister")
	}
	if reg.Unregister("temp") {
		t.Error("expected second Unregister to report false")
	}
}

func TestChildOverlayShadowsParentWithoutMutatingIt(t *testing.T) {
	parent := New()
	parent.RegisterScalar("shared", 1, noopScalar)

	child := parent.Child()
	child.RegisterScalar("shared", 2, noopScalar) // shadow with a different arity
	child.RegisterScalar("only-child", 0, noopScalar)

	meta, ok := child.Metadata("shared")
	if !ok || meta.Arity != 2 {
		t.Errorf("expected child's shadowed arity 2, got %+v, %v", meta, ok)
	}

	parentMeta, _ := parent.Metadata("shared")
	if parentMeta.Arity != 1 {
		t.Errorf("expected parent's own entry untouched (arity 1), got %+v", parentMeta)
	}

	if _, ok := parent.Metadata("only-child"); ok {
		t.Error("expected child-only registration not to leak into parent")
	}
}

func TestListDedupesShadowedEntries(t *testing.T) {
	parent := New()
	parent.RegisterScalar("shared", 1, noopScalar)
	parent.RegisterAggregate("agg", 1, func() Accumulator { return nil })

	child := parent.Child()
	child.RegisterScalar("shared", 2, noopScalar)

	metas := child.List(ListFilter{})
	count := 0
	for _, m := range metas {
		if m.Name == "shared" {
			count++
			if m.Arity != 2 {
				t.Errorf("expected shadowed metadata to win, got arity %d", m.Arity)
			}
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one 'shared' entry in List, got %d", count)
	}
}

func TestListFilterByCategory(t *testing.T) {
	reg := New()
	reg.RegisterScalar("s", 1, noopScalar)
	reg.RegisterAggregate("a", 1, func() Accumulator { return nil })
	reg.RegisterAsync("p", -1, func(context.Context, []value.Value) (AsyncSequence, error) { return nil, nil })

	scalarsOnly := reg.List(ListFilter{Category: CategoryScalar})
	if len(scalarsOnly) != 1 || scalarsOnly[0].Name != "s" {
		t.Errorf("expected exactly the scalar entry, got %+v", scalarsOnly)
	}

	syncOnly := reg.List(ListFilter{SyncOnly: true})
	if len(syncOnly) != 2 {
		t.Errorf("expected scalar+aggregate under SyncOnly, got %d", len(syncOnly))
	}

	asyncOnly := reg.List(ListFilter{AsyncOnly: true})
	if len(asyncOnly) != 1 || asyncOnly[0].Name != "p" {
		t.Errorf("expected exactly the async entry, got %+v", asyncOnly)
	}
}

func TestListIsSortedByName(t *testing.T) {
	reg := New()
	reg.RegisterScalar("zeta", 1, noopScalar)
	reg.RegisterScalar("alpha", 1, noopScalar)
	reg.RegisterScalar("mu", 1, noopScalar)

	for i := 0; i < 5; i++ {
		metas := reg.List(ListFilter{})
		if len(metas) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(metas))
		}
		if metas[0].Name != "alpha" || metas[1].Name != "mu" || metas[2].Name != "zeta" {
			t.Fatalf("expected List to be sorted by name on every call, got %+v", metas)
		}
	}
}

func TestCheckArity(t *testing.T) {
	reg := New()
	reg.RegisterScalar("fixed", 2, noopScalar)
	reg.RegisterScalar("variadic", -1, noopScalar)

	cases := []struct {
		name string
		argc int
		want bool
	}{
		{"fixed", 2, true},
		{"fixed", 1, false},
		{"fixed", 3, false},
		{"variadic", 0, true},
		{"variadic", 99, true},
		{"unknown", 5, true}, // unknown-function is reported separately, not an arity error
	}
	for _, c := range cases {
		if got := reg.CheckArity(c.name, c.argc); got != c.want {
			t.Errorf("CheckArity(%q, %d) = %v, want %v", c.name, c.argc, got, c.want)
		}
	}
}
