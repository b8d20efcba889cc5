package derivepoet

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDerives(t *testing.T) {
	names := map[string]bool{}
	for _, n := range Derives() {
		names[n] = true
	}
	for _, n := range []string{"Display", "Debug", "UpperHex", "Pointer", "From", "Into"} {
		if !names[n] {
			t.Errorf("%s should be supported", n)
		}
	}
}

func TestExpandAll(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	g := NewGenerator(WithLogger(zap.New(core)))

	item := point().
		AddAttr(MustAttribute(`display("({x}, {y})")`)).
		AddDerive("Debug", "Clone", "Display", "derive_more::From", "derive_more::Frobnicate")
	exps, err := g.ExpandAll(item)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var derives []string
	for _, e := range exps {
		derives = append(derives, e.Derive)
		if len(e.Impls) != 1 {
			t.Errorf("%s: expected 1 impl, got %d", e.Derive, len(e.Impls))
		}
	}
	if diff := cmp.Diff([]string{"Display", "From"}, derives); diff != "" {
		t.Errorf("wrong expansions (-expected, +actual):\n%s", diff)
	}

	warnings := logs.FilterMessage("skipping unknown derive").All()
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
	if d := warnings[0].ContextMap()["derive"]; d != "derive_more::Frobnicate" {
		t.Errorf("warning names wrong derive %v", d)
	}
	if n := logs.FilterMessage("derived").Len(); n != 2 {
		t.Errorf("expected 2 debug records, got %d", n)
	}
}

func TestExpand(t *testing.T) {
	g := NewGenerator()
	_, err := g.Expand(point(), "Clone")
	checkErr(t, err, ErrUnsupported, "unsupported derive `Clone`")

	// qualified names reach the formatting derive of the same name
	item := NewStruct("Id", UnnamedFields(MustType("u64")))
	exp, err := g.Expand(item, "derive_more::Debug")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exp.Derive != "Debug" {
		t.Errorf("wrong derive %q", exp.Derive)
	}
}

func TestExpandAll_Errors(t *testing.T) {
	g := NewGenerator()
	// Display cannot be inferred for two fields, and Into is not supported
	// on enums: both are reported and nothing is expanded
	item := NewEnum("E",
		NewVariant("A", UnnamedFields(MustType("u8"), MustType("u8"))),
	).AddDerive("Display", "From", "Into")
	exps, err := g.ExpandAll(item)
	if exps != nil {
		t.Errorf("expected no expansions, got %d", len(exps))
	}
	errs := Flatten(err)
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(errs), err)
	}
	if !errors.Is(errs[0], ErrShape) || !errors.Is(errs[1], ErrUnsupported) {
		t.Errorf("wrong error classes: %v", err)
	}
}

func TestExpandFile(t *testing.T) {
	g := NewGenerator()
	good := point().
		AddAttr(MustAttribute(`display("({x}, {y})")`)).
		AddDerive("Display", "From")
	bad := NewStruct("Bad", NamedFields(
		NewField("a", MustType("u8")),
		NewField("b", MustType("u8")),
	)).AddDerive("Display")
	unit := NewStruct("Marker", UnitFields()).AddDerive("Debug", "Display")

	f, err := g.ExpandFile("shapes.rs", good, bad, unit)
	checkErr(t, err, ErrShape, "Cannot automatically infer format for types with more than 1 field")
	if f.NumElements() != 3 {
		t.Errorf("expected impls of the good items to be kept, got %d", f.NumElements())
	}
	if f.Name != "shapes.rs" {
		t.Errorf("wrong file name %q", f.Name)
	}
}
