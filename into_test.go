package derivepoet

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
)

func TestPlanInto_Owned(t *testing.T) {
	plan, err := PlanInto(point())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	impls := plan.Impls()
	if len(impls) != 1 {
		t.Fatalf("expected 1 impl, got %d", len(impls))
	}
	expected := `#[automatically_derived]
impl ::core::convert::From<Point> for (i32, i32) {
    #[inline]
    fn from(value: Point) -> Self {
        (<i32 as ::core::convert::From<_>>::from(value.x), <i32 as ::core::convert::From<_>>::from(value.y))
    }
}
`
	if diff := cmp.Diff(expected, impls[0].String()); diff != "" {
		t.Errorf("wrong impl (-expected, +actual):\n%s", diff)
	}

	comps, err := plan.Unapply(map[string]interface{}{"x": 1, "y": 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]interface{}{1, 2}, comps); diff != "" {
		t.Errorf("wrong components (-expected, +actual):\n%s", diff)
	}
	if _, err := plan.Unapply(map[string]interface{}{"x": 1}); err == nil {
		t.Errorf("expected error for a missing field")
	}
}

func TestPlanInto_References(t *testing.T) {
	item := point().AddAttr(MustAttribute(`into(ref, ref_mut)`))
	plan, err := PlanInto(item)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var modes []string
	for _, c := range plan.Conversions {
		modes = append(modes, c.Mode.String())
	}
	if diff := cmp.Diff([]string{"ref", "ref_mut"}, modes); diff != "" {
		t.Errorf("wrong modes (-expected, +actual):\n%s", diff)
	}

	impls := plan.Impls()
	for _, want := range []string{
		"impl<'__derive_more_into> ::core::convert::From<&'__derive_more_into Point> for (&'__derive_more_into i32, &'__derive_more_into i32) {",
		"fn from(value: &'__derive_more_into Point) -> Self {",
		"(<&i32 as ::core::convert::From<_>>::from(&value.x), <&i32 as ::core::convert::From<_>>::from(&value.y))",
	} {
		if s := impls[0].String(); !strings.Contains(s, want) {
			t.Errorf("ref impl is missing %q:\n%s", want, s)
		}
	}
	for _, want := range []string{
		"::core::convert::From<&'__derive_more_into mut Point> for (&'__derive_more_into mut i32, &'__derive_more_into mut i32) {",
		"<&mut i32 as ::core::convert::From<_>>::from(&mut value.y)",
	} {
		if s := impls[1].String(); !strings.Contains(s, want) {
			t.Errorf("ref_mut impl is missing %q:\n%s", want, s)
		}
	}

	generic := NewStruct("Holder", UnnamedFields(MustType("&'a T"))).
		AddParam(LifetimeParam("'a")).
		AddParam(TypeParam("T")).
		AddAttr(MustAttribute(`into(ref)`))
	plan, err = PlanInto(generic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s := plan.Impls()[0].String(); !strings.Contains(s, "impl<'a, '__derive_more_into, T> ::core::convert::From<&'__derive_more_into Holder<'a, T>> for &'__derive_more_into &'a T {") {
		t.Errorf("wrong impl header:\n%s", s)
	}
}

func TestPlanInto_TypesAndSkip(t *testing.T) {
	item := NewStruct("Pair", NamedFields(
		NewField("a", MustType("i32")),
		NewField("cache", MustType("Vec<u8>")).AddAttr(MustAttribute(`into(skip)`)),
		NewField("b", MustType("i32")),
	)).
		AddAttr(MustAttribute(`into(owned((i64, i64)), ref)`))
	plan, err := PlanInto(item)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var kept []string
	for _, f := range plan.Fields {
		kept = append(kept, f.Name)
	}
	if diff := cmp.Diff([]string{"a", "b"}, kept); diff != "" {
		t.Errorf("wrong fields (-expected, +actual):\n%s", diff)
	}
	if len(plan.Conversions) != 2 {
		t.Fatalf("expected 2 conversions, got %d", len(plan.Conversions))
	}
	if diff := cmp.Diff([]string{"i64", "i64"}, plan.Conversions[0].Targets()); diff != "" {
		t.Errorf("wrong targets (-expected, +actual):\n%s", diff)
	}
	owned := plan.Impls()[0].String()
	if !strings.Contains(owned, "(<i64 as ::core::convert::From<_>>::from(value.a), <i64 as ::core::convert::From<_>>::from(value.b))") {
		t.Errorf("expected skipped field to be left out:\n%s", owned)
	}

	comps, err := plan.Unapply(map[string]interface{}{"a": 1, "b": 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]interface{}{1, 2}, comps); diff != "" {
		t.Errorf("wrong components (-expected, +actual):\n%s", diff)
	}
}

func TestPlanInto_Errors(t *testing.T) {
	_, err := PlanInto(NewEnum("E", NewVariant("A", UnitFields())))
	checkErr(t, err, ErrUnsupported, "`Into` cannot be derived for enums")
	_, err = PlanInto(NewUnion("U", NamedFields(NewField("a", MustType("u8")))))
	checkErr(t, err, ErrUnsupported, "`Into` cannot be derived for unions")

	_, err = PlanInto(point().AddAttr(MustAttribute(`into()`)))
	if !errors.Is(err, ErrSyntax) {
		t.Errorf("expected syntax error for an empty list, got %v", err)
	}

	_, err = PlanInto(point().AddAttr(MustAttribute(`into((i64, i64, i64))`)))
	if !errors.Is(err, ErrShape) || !strings.Contains(err.Error(), "Wrong tuple length: expected 2, found 3. Consider removing last 1 type: `(i64, i64)`") {
		t.Errorf("expected tuple length error, got %v", err)
	}

	twice := NewStruct("S", NamedFields(
		NewField("a", MustType("u8")).
			AddAttr(MustAttribute(`into(skip)`)).
			AddAttr(MustAttribute(`into(skip)`)),
	))
	_, err = PlanInto(twice)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
}
