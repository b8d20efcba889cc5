package derivepoet

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
)

func TestBoundSet(t *testing.T) {
	var b BoundSet
	t1, t2 := MustType("T1"), MustType("Vec<T2>")
	b.Add(t1, TraitDisplay.Symbol())
	b.Add(t2, TraitDisplay.Symbol())
	b.Add(t1, TraitOctal.Symbol())
	b.Add(MustType("T1"), TraitDisplay.Symbol())

	var other BoundSet
	other.Add(t2, TraitLowerHex.Symbol())
	other.Add(t1, TraitOctal.Symbol())
	b.Merge(&other)

	if b.Len() != 2 {
		t.Fatalf("expected 2 bounded types, got %d", b.Len())
	}
	var preds []string
	for _, ty := range b.BoundedTypes() {
		preds = append(preds, b.predicate(ty.String()).String())
	}
	expected := []string{
		"T1: ::core::fmt::Display + ::core::fmt::Octal",
		"Vec<T2>: ::core::fmt::Display + ::core::fmt::LowerHex",
	}
	if diff := cmp.Diff(expected, preds); diff != "" {
		t.Errorf("wrong predicates (-expected, +actual):\n%s", diff)
	}
	if n := len(b.Traits("T1")); n != 2 {
		t.Errorf("expected 2 traits for T1, got %d", n)
	}
	if b.Traits("T3") != nil {
		t.Error("unexpected traits for T3")
	}
}

func parseBounds(t *testing.T, src string) ([]*BoundPredicate, error) {
	t.Helper()
	toks, err := Lex(src, Pos{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return ParseBoundList(toks, Pos{Line: 1, Column: 1})
}

func TestParseBoundList(t *testing.T) {
	preds, err := parseBounds(t, "T: Display + Debug, Vec<U>: Into<(A, B)> + ?Sized,")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(preds) != 2 {
		t.Fatalf("expected 2 predicates, got %d", len(preds))
	}
	if preds[0].Bounded.String() != "T" || preds[1].Bounded.String() != "Vec<U>" {
		t.Errorf("wrong bounded types: %s, %s", preds[0].Bounded, preds[1].Bounded)
	}
	if diff := cmp.Diff([]string{"Display", "Debug"}, preds[0].Bounds); diff != "" {
		t.Errorf("wrong bounds (-expected, +actual):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Into<(A, B)>", "?Sized"}, preds[1].Bounds); diff != "" {
		t.Errorf("wrong bounds (-expected, +actual):\n%s", diff)
	}
	if s := preds[1].String(); s != "Vec<U>: Into<(A, B)> + ?Sized" {
		t.Errorf("wrong predicate %q", s)
	}
}

func TestParseBoundList_Errors(t *testing.T) {
	for _, tc := range []struct {
		src, msg string
	}{
		{"", "1:1: empty bound list; expected at least one `Type: Trait` predicate"},
		{"T", "1:1: expected `:` in bound `T`"},
		{": Debug", "1:1: expected type before `:`"},
		{"T:", "1:2: empty bound list for `T`; expected at least one trait"},
		{"T: Debug +", "1:2: expected trait bound in `T: Debug +`"},
		{"T: + Debug", "1:4: expected trait bound in `T: + Debug`"},
		{"'a: 'b", "1:1: lifetime bounds are not supported in `bound(...)`, only trait bounds are"},
		{"T: 'static", "1:4: lifetime bounds are not supported in `bound(...)`, only trait bounds are"},
		{"for<'a> T: Fn(&'a u8)", "1:1: higher-ranked trait bounds are not supported in `bound(...)`"},
	} {
		_, err := parseBounds(t, tc.src)
		if err == nil {
			t.Errorf("%q: expected error", tc.src)
			continue
		}
		if err.Error() != tc.msg {
			t.Errorf("%q: expected %q, got %q", tc.src, tc.msg, err.Error())
		}
		if !errors.Is(err, ErrSyntax) {
			t.Errorf("%q: expected syntax error", tc.src)
		}
	}
}

func TestApplyOverrides(t *testing.T) {
	g := Generics{Params: []*GenericParam{LifetimeParam("'a"), TypeParam("T"), TypeParam("U")}}
	var inferred BoundSet
	inferred.Add(MustType("T"), TraitDisplay.Symbol())
	inferred.Add(MustType("&'a U"), TraitDisplay.Symbol())
	inferred.Add(MustType("Vec<T>"), TraitDebug.Symbol())

	overrides, err := parseBounds(t, "T: MyTrait")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	preds, err := applyOverrides(&g, "Foo", &inferred, overrides)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var strs []string
	for _, p := range preds {
		strs = append(strs, p.String())
	}
	expected := []string{"&'a U: ::core::fmt::Display", "T: MyTrait"}
	if diff := cmp.Diff(expected, strs); diff != "" {
		t.Errorf("wrong predicates (-expected, +actual):\n%s", diff)
	}

	for src, msg := range map[string]string{
		"V: Debug":       "1:1: unknown generic type parameter `V` in bound; `Foo` declares no such parameter",
		"String: Debug":  "1:1: unknown generic type parameter `String` in bound; `Foo` declares no such parameter",
		"Vec<u8>: Debug": "1:1: bound on `Vec<u8>` does not mention any generic type parameter of `Foo`",
	} {
		overrides, err := parseBounds(t, src)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err = applyOverrides(&g, "Foo", &inferred, overrides)
		if err == nil {
			t.Errorf("%q: expected error", src)
			continue
		}
		if err.Error() != msg {
			t.Errorf("%q: expected %q, got %q", src, msg, err.Error())
		}
		if !errors.Is(err, ErrReference) {
			t.Errorf("%q: expected reference error", src)
		}
	}
}
