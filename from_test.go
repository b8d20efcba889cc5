package derivepoet

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
)

func TestPlanFrom_Struct(t *testing.T) {
	plan, err := PlanFrom(point())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	impls := plan.Impls()
	if len(impls) != 1 {
		t.Fatalf("expected 1 impl, got %d", len(impls))
	}
	expected := `#[automatically_derived]
impl ::core::convert::From<(i32, i32)> for Point {
    #[inline]
    fn from(value: (i32, i32)) -> Self {
        Point { x: value.0, y: value.1 }
    }
}
`
	if diff := cmp.Diff(expected, impls[0].String()); diff != "" {
		t.Errorf("wrong impl (-expected, +actual):\n%s", diff)
	}

	fields, err := plan.Conversions[0].Apply([]interface{}{1, 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(map[string]interface{}{"x": 1, "y": 2}, fields); diff != "" {
		t.Errorf("wrong fields (-expected, +actual):\n%s", diff)
	}
	if _, err := plan.Conversions[0].Apply([]interface{}{1}); err == nil {
		t.Errorf("expected error for a missing component")
	}
}

func TestPlanFrom_Forward(t *testing.T) {
	item := NewStruct("Pair", UnnamedFields(MustType("i32"), MustType("i64"))).
		AddAttr(MustAttribute(`from(forward)`))
	plan, err := PlanFrom(item)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := `#[automatically_derived]
impl<__FromT0, __FromT1> ::core::convert::From<(__FromT0, __FromT1)> for Pair
where
    i32: ::core::convert::From<__FromT0>,
    i64: ::core::convert::From<__FromT1>,
{
    #[inline]
    fn from(value: (__FromT0, __FromT1)) -> Self {
        Pair(<i32 as ::core::convert::From<__FromT0>>::from(value.0), <i64 as ::core::convert::From<__FromT1>>::from(value.1))
    }
}
`
	if diff := cmp.Diff(expected, plan.Impls()[0].String()); diff != "" {
		t.Errorf("wrong impl (-expected, +actual):\n%s", diff)
	}
}

func TestPlanFrom_Types(t *testing.T) {
	item := NewStruct("Wide", UnnamedFields(MustType("i64"))).
		AddAttr(MustAttribute(`from(i8, i16)`)).
		AddAttr(MustAttribute(`from(i32)`))
	plan, err := PlanFrom(item)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sources []string
	for _, c := range plan.Conversions {
		sources = append(sources, c.Shape.SourceType())
	}
	if diff := cmp.Diff([]string{"i8", "i16", "i32"}, sources); diff != "" {
		t.Errorf("wrong sources (-expected, +actual):\n%s", diff)
	}
	impl := plan.Impls()[1].String()
	if !strings.Contains(impl, "Wide(<i64 as ::core::convert::From<i16>>::from(value))") {
		t.Errorf("expected conversion of the component:\n%s", impl)
	}

	tuple := point().AddAttr(MustAttribute(`from((i16, i16))`))
	plan, err = PlanFrom(tuple)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	impl = plan.Impls()[0].String()
	for _, want := range []string{
		"impl ::core::convert::From<(i16, i16)> for Point {",
		"Point { x: <i32 as ::core::convert::From<i16>>::from(value.0), y: <i32 as ::core::convert::From<i16>>::from(value.1) }",
	} {
		if !strings.Contains(impl, want) {
			t.Errorf("impl is missing %q:\n%s", want, impl)
		}
	}
}

func TestPlanFrom_Enum(t *testing.T) {
	variantNames := func(p *FromPlan) []string {
		var names []string
		for _, c := range p.Conversions {
			names = append(names, c.Variant.Name)
		}
		return names
	}

	implicit := NewEnum("Value",
		NewVariant("Int", UnnamedFields(MustType("i64"))),
		NewVariant("Text", UnnamedFields(MustType("String"))),
		NewVariant("Nothing", UnitFields()),
	)
	plan, err := PlanFrom(implicit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"Int", "Text"}, variantNames(plan)); diff != "" {
		t.Errorf("wrong variants (-expected, +actual):\n%s", diff)
	}
	if impl := plan.Impls()[0].String(); !strings.Contains(impl, "        Value::Int(value)\n") {
		t.Errorf("expected variant constructor:\n%s", impl)
	}

	marked := NewEnum("Value",
		NewVariant("Int", UnnamedFields(MustType("i64"))),
		NewVariant("Text", UnnamedFields(MustType("String"))).AddAttr(MustAttribute(`from`)),
		NewVariant("Nothing", UnitFields()),
	)
	plan, err = PlanFrom(marked)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"Text"}, variantNames(plan)); diff != "" {
		t.Errorf("wrong variants (-expected, +actual):\n%s", diff)
	}

	skipped := NewEnum("Value",
		NewVariant("Int", UnnamedFields(MustType("i64"))),
		NewVariant("Other", UnnamedFields(MustType("i64"))).AddAttr(MustAttribute(`from(skip)`)),
	)
	plan, err = PlanFrom(skipped)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"Int"}, variantNames(plan)); diff != "" {
		t.Errorf("wrong variants (-expected, +actual):\n%s", diff)
	}
}

func TestPlanFrom_Errors(t *testing.T) {
	_, err := PlanFrom(NewUnion("U", NamedFields(NewField("a", MustType("u8")))))
	checkErr(t, err, ErrUnsupported, "`From` cannot be derived for unions")

	_, err = PlanFrom(point().AddAttr(MustAttribute(`from(i32)`)))
	if !errors.Is(err, ErrShape) || !strings.Contains(err.Error(), "Expected tuple: `(i32, _)`") {
		t.Errorf("expected shape error, got %v", err)
	}
	if diff := cmp.Diff([]string{"(i32, _)"}, errors.GetAllHints(err)); diff != "" {
		t.Errorf("wrong hints (-expected, +actual):\n%s", diff)
	}

	_, err = PlanFrom(point().AddAttr(MustAttribute(`from(forward)`)).AddAttr(MustAttribute(`from(i32)`)))
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected conflict, got %v", err)
	}

	_, err = PlanFrom(point().AddAttr(MustAttribute(`from`)))
	if !errors.Is(err, ErrSyntax) {
		t.Errorf("expected syntax error for bare attribute on a struct, got %v", err)
	}

	// errors of all variants are reported
	item := NewEnum("E",
		NewVariant("A", UnnamedFields(MustType("u8"), MustType("u8"))).AddAttr(MustAttribute(`from(u8)`)),
		NewVariant("B", UnnamedFields(MustType("u8"), MustType("u8"))).AddAttr(MustAttribute(`from(u16)`)),
	)
	_, err = PlanFrom(item)
	if errs := Flatten(err); len(errs) != 2 {
		t.Errorf("expected 2 errors, got %d: %v", len(errs), err)
	}
}
