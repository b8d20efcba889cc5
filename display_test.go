package derivepoet

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
)

func point() *Item {
	return NewStruct("Point", NamedFields(
		NewField("x", MustType("i32")),
		NewField("y", MustType("i32")),
	))
}

func TestPlanDisplay_Template(t *testing.T) {
	item := point().AddAttr(MustAttribute(`display("({x}, {y})")`))
	plan, err := PlanDisplay(item, TraitDisplay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := `#[automatically_derived]
impl ::core::fmt::Display for Point {
    fn fmt(&self, __derive_more_f: &mut ::core::fmt::Formatter<'_>) -> ::core::fmt::Result {
        match self {
            Self { x, y } => ::core::write!(__derive_more_f, "({x}, {y})"),
        }
    }
}
`
	if diff := cmp.Diff(expected, plan.Impl().String()); diff != "" {
		t.Errorf("wrong impl (-expected, +actual):\n%s", diff)
	}

	s, err := plan.Preview("", Values{"x": 1, "y": -2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != "(1, -2)" {
		t.Errorf("wrong preview %q", s)
	}
}

func TestPlanDisplay_Inferred(t *testing.T) {
	wrapper := NewStruct("Wrapper", UnnamedFields(MustType("i32")))
	plan, err := PlanDisplay(wrapper, TraitLowerHex)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	impl := plan.Impl().String()
	if !strings.Contains(impl, "impl ::core::fmt::LowerHex for Wrapper {") {
		t.Errorf("wrong impl header:\n%s", impl)
	}
	if !strings.Contains(impl, "Self(_0) => ::core::fmt::LowerHex::fmt(_0, __derive_more_f),") {
		t.Errorf("expected delegation to the field:\n%s", impl)
	}
	if s, err := plan.Preview("", Values{"_0": 255}); err != nil || s != "ff" {
		t.Errorf("wrong preview %q (%v)", s, err)
	}

	unit := NewStruct("Unit", UnitFields())
	plan, err = PlanDisplay(unit, TraitDisplay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if impl := plan.Impl().String(); !strings.Contains(impl, `Self => __derive_more_f.write_str("Unit"),`) {
		t.Errorf("expected the name to be written:\n%s", impl)
	}
	if s, err := plan.Preview("", nil); err != nil || s != "Unit" {
		t.Errorf("wrong preview %q (%v)", s, err)
	}

	_, err = PlanDisplay(point(), TraitDisplay)
	checkErr(t, err, ErrShape, "Cannot automatically infer format for types with more than 1 field")
}

func TestPlanDisplay_Enum(t *testing.T) {
	shape := NewEnum("Shape",
		NewVariant("Circle", UnnamedFields(MustType("f64"))).
			AddAttr(MustAttribute(`display("circle of radius {_0:.1}")`)),
		NewVariant("Empty", UnitFields()),
		NewVariant("Square", NamedFields(NewField("side", MustType("u32")))),
	)
	plan, err := PlanDisplay(shape, TraitDisplay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var names []string
	for _, arm := range plan.Arms {
		names = append(names, arm.Name())
	}
	if diff := cmp.Diff([]string{"Circle", "Empty", "Square"}, names); diff != "" {
		t.Errorf("wrong arms (-expected, +actual):\n%s", diff)
	}

	testCases := []struct {
		variant  string
		vals     Values
		expected string
	}{
		{"Circle", Values{"_0": 1.25}, "circle of radius 1.2"},
		{"Empty", nil, "Empty"},
		{"Square", Values{"side": uint32(3)}, "3"},
	}
	for _, tc := range testCases {
		s, err := plan.Preview(tc.variant, tc.vals)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.variant, err)
			continue
		}
		if s != tc.expected {
			t.Errorf("%s: expected %q; got %q", tc.variant, tc.expected, s)
		}
	}

	_, err = plan.Preview("", nil)
	checkErr(t, err, ErrReference, "`Shape` is an enum; a variant must be given")
	_, err = plan.Preview("Triangle", nil)
	checkErr(t, err, ErrReference, "no variant `Triangle` in `Shape`")

	empty, err := PlanDisplay(NewEnum("Never"), TraitDisplay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if impl := empty.Impl().String(); !strings.Contains(impl, "        match *self {}\n") {
		t.Errorf("expected an empty match:\n%s", impl)
	}
}

func TestPlanDisplay_Affix(t *testing.T) {
	item := NewEnum("Tagged",
		NewVariant("Num", UnnamedFields(MustType("i32"))),
		NewVariant("Pair", UnnamedFields(MustType("i32"), MustType("i32"))).
			AddAttr(MustAttribute(`display("{_0}:{_1}")`)),
		NewVariant("None", UnitFields()),
	).AddAttr(MustAttribute(`display("[{}]")`))
	plan, err := PlanDisplay(item, TraitDisplay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testCases := []struct {
		variant  string
		vals     Values
		expected string
	}{
		{"Num", Values{"_0": 5}, "[5]"},
		{"Pair", Values{"_0": 1, "_1": 2}, "[1:2]"},
		{"None", nil, "[None]"},
	}
	for _, tc := range testCases {
		s, err := plan.Preview(tc.variant, tc.vals)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.variant, err)
			continue
		}
		if s != tc.expected {
			t.Errorf("%s: expected %q; got %q", tc.variant, tc.expected, s)
		}
	}

	impl := plan.Impl().String()
	for _, want := range []string{
		"struct __derive_more_DisplayAs<F>(F)",
		"impl<F> ::core::fmt::Display for __derive_more_DisplayAs<F>",
		`Self::Num(_0) => ::core::write!(__derive_more_f, "[{}]", __derive_more_DisplayAs(|__derive_more_f| ::core::fmt::Display::fmt(_0, __derive_more_f))),`,
		`Self::None => ::core::write!(__derive_more_f, "[{}]", __derive_more_DisplayAs(|__derive_more_f| __derive_more_f.write_str("None"))),`,
	} {
		if !strings.Contains(impl, want) {
			t.Errorf("impl is missing %q:\n%s", want, impl)
		}
	}

	bad := NewEnum("Bad", NewVariant("A", UnitFields())).AddAttr(MustAttribute(`display("{} {}")`))
	_, err = PlanDisplay(bad, TraitDisplay)
	if !errors.Is(err, ErrShape) || !strings.Contains(err.Error(), "outer `enum` template is an affix spec") {
		t.Errorf("expected affix error, got %v", err)
	}
}

func TestPlanDisplay_Wildcard(t *testing.T) {
	item := NewEnum("Status",
		NewVariant("Ok", UnitFields()),
		NewVariant("Err", UnnamedFields(MustType("String"))),
	).AddAttr(MustAttribute(`display("status")`))
	plan, err := PlanDisplay(item, TraitDisplay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Arms) != 0 || plan.Wildcard == nil {
		t.Fatalf("expected a single wildcard arm")
	}
	if s, err := plan.Preview("Err", nil); err != nil || s != "status" {
		t.Errorf("wrong preview %q (%v)", s, err)
	}
	if impl := plan.Impl().String(); !strings.Contains(impl, `_ => ::core::write!(__derive_more_f, "status"),`) {
		t.Errorf("expected wildcard arm:\n%s", impl)
	}

	item.Variants[1].AddAttr(MustAttribute(`display("error: {_0}")`))
	_, err = PlanDisplay(item, TraitDisplay)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if !strings.Contains(err.Error(), "so variant `Err` cannot have its own; maybe you want to add a placeholder?") {
		t.Errorf("wrong message: %v", err)
	}
}

func TestPlanDisplay_Bounds(t *testing.T) {
	item := NewStruct("Pair", NamedFields(
		NewField("a", MustType("T1")),
		NewField("b", MustType("T2")),
		NewField("n", MustType("usize")),
	)).
		AddParam(TypeParam("T1")).
		AddParam(TypeParam("T2")).
		AddAttr(MustAttribute(`display("{a} {a:o} {b} {b:x} {n}")`))
	plan, err := PlanDisplay(item, TraitDisplay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkPredicates(t, plan.Predicates(),
		"T1: ::core::fmt::Display + ::core::fmt::Octal",
		"T2: ::core::fmt::Display + ::core::fmt::LowerHex")

	item.AddAttr(MustAttribute(`display(bound(T1: Debug))`))
	plan, err = PlanDisplay(item, TraitDisplay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkPredicates(t, plan.Predicates(),
		"T2: ::core::fmt::Display + ::core::fmt::LowerHex",
		"T1: Debug")
	impl := plan.Impl().String()
	if !strings.Contains(impl, "impl<T1, T2> ::core::fmt::Display for Pair<T1, T2>\nwhere\n    T2: ") {
		t.Errorf("wrong impl header:\n%s", impl)
	}

	s, err := plan.Preview("", Values{"a": 8, "b": 255, "n": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != "8 10 255 ff 1" {
		t.Errorf("wrong preview %q", s)
	}
}

func TestPlanDisplay_PositionalBounds(t *testing.T) {
	item := NewStruct("Pair", NamedFields(
		NewField("a", MustType("T1")),
		NewField("b", MustType("T2")),
	)).
		AddParam(TypeParam("T1")).
		AddParam(TypeParam("T2")).
		AddAttr(MustAttribute(`display("{} {} <-> {0:o} {1:#x}", a, b)`))
	plan, err := PlanDisplay(item, TraitDisplay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkPredicates(t, plan.Predicates(),
		"T1: ::core::fmt::Display + ::core::fmt::Octal",
		"T2: ::core::fmt::Display + ::core::fmt::LowerHex")
	if impl := plan.Impl().String(); !strings.Contains(impl, `::core::write!(__derive_more_f, "{} {} <-> {0:o} {1:#x}", a, b)`) {
		t.Errorf("expected explicit arguments to be passed through:\n%s", impl)
	}
	s, err := plan.Preview("", Values{"a": 8, "b": 255})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != "8 255 <-> 10 0xff" {
		t.Errorf("wrong preview %q", s)
	}
}

func TestPlanDisplay_Errors(t *testing.T) {
	_, err := PlanDisplay(NewUnion("U", NamedFields(NewField("a", MustType("u8")))), TraitDisplay)
	checkErr(t, err, ErrUnsupported, "`Display` cannot be derived for unions")

	// every variant is checked
	item := NewEnum("E",
		NewVariant("A", UnnamedFields(MustType("u8"), MustType("u8"))),
		NewVariant("B", UnitFields()),
		NewVariant("C", UnnamedFields(MustType("u8"), MustType("u8"))),
	)
	_, err = PlanDisplay(item, TraitDisplay)
	if errs := Flatten(err); len(errs) != 2 {
		t.Errorf("expected 2 errors, got %d: %v", len(errs), err)
	}

	dup := point().
		AddAttr(MustAttribute(`display("{x}")`)).
		AddAttr(MustAttribute(`display("{y}")`))
	_, err = PlanDisplay(dup, TraitDisplay)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected conflict, got %v", err)
	}

	unknown := point().AddAttr(MustAttribute(`display("{x}", bound(T: Display))`))
	if _, err := PlanDisplay(unknown, TraitDisplay); err == nil {
		t.Errorf("expected error for bound inside a template attribute")
	}

	noParam := point().
		AddAttr(MustAttribute(`display("{x}")`)).
		AddAttr(MustAttribute(`display(bound(T: Display))`))
	_, err = PlanDisplay(noParam, TraitDisplay)
	if !errors.Is(err, ErrReference) || !strings.Contains(err.Error(), "unknown generic type parameter `T`") {
		t.Errorf("expected unknown parameter error, got %v", err)
	}
}

func checkPredicates(t *testing.T, preds []*CodeBlock, expected ...string) {
	t.Helper()
	actual := make([]string, len(preds))
	for i, p := range preds {
		actual[i] = p.String()
	}
	if diff := cmp.Diff(expected, actual); diff != "" {
		t.Errorf("wrong predicates (-expected, +actual):\n%s", diff)
	}
}
