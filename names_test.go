package derivepoet

import "testing"

func TestSnakeCase(t *testing.T) {
	checkName(t, SnakeCase, "foo", "foo")
	checkName(t, SnakeCase, "FooBar", "foo_bar")
	checkName(t, SnakeCase, "fooBar", "foo_bar")
	checkName(t, SnakeCase, "XMLParser", "xml_parser")
	checkName(t, SnakeCase, "Point3D", "point3_d")
}

func TestPascalCase(t *testing.T) {
	checkName(t, PascalCase, "foo", "Foo")
	checkName(t, PascalCase, "foo_bar", "FooBar")
	checkName(t, PascalCase, "_foo__bar_", "FooBar")
	checkName(t, PascalCase, "ünit", "Ünit")
}

func TestUnraw(t *testing.T) {
	checkName(t, Unraw, "r#type", "type")
	checkName(t, Unraw, "value", "value")
	if alias := FieldAlias(2); alias != "_2" {
		t.Errorf("FieldAlias(2): expected %q; got %q", "_2", alias)
	}
}

func TestIsIdentifier(t *testing.T) {
	testCases := map[string]bool{
		"foo":    true,
		"_foo":   true,
		"Ünit":   true,
		"r#type": true,
		"type":   false,
		"Self":   false,
		"_":      false,
		"1foo":   false,
		"foo-1":  false,
		"":       false,
	}
	for s, expected := range testCases {
		if actual := IsIdentifier(s); actual != expected {
			t.Errorf("IsIdentifier(%q): expected %v; got %v", s, expected, actual)
		}
	}
}

func checkName(t *testing.T, fn func(string) string, input, output string) {
	actual := fn(input)
	if actual != output {
		t.Errorf("%q: expected %q; got %q", input, output, actual)
	}
}
