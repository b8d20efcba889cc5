package derivepoet

import (
	"fmt"
	"strings"
)

// ShapeKind is an enumeration of the ways a conversion source (or target)
// lines up with the fields of a struct or variant.
type ShapeKind int

const (
	// One declared type covering the single field (or no fields).
	ShapeSingle ShapeKind = iota + 1
	// A tuple with one component per field.
	ShapeTuple
	// One fresh generic parameter per field.
	ShapeForwarded
)

// Shape is the resolved source shape of one conversion.
type Shape struct {
	Kind ShapeKind
	// Components has one type per field, in field order.
	Components []*Type
	// Declared is the type as written, or nil for inferred and forwarded
	// shapes.
	Declared *Type
	// Fresh are the generic parameters a forwarded shape introduces.
	Fresh []string
}

// ReconcileShape checks a declared type against a field count and returns
// its per-field components. A tuple must have exactly one component per
// field when there is more than one field; any other type is only accepted
// for at most one field. With exactly one field, the whole declared type is
// the component, even if it is a tuple.
func ReconcileShape(declared *Type, fieldCount int) (Shape, error) {
	switch {
	case fieldCount == 0:
		return Shape{Kind: ShapeSingle, Declared: declared}, nil
	case fieldCount == 1:
		return Shape{Kind: ShapeSingle, Declared: declared, Components: []*Type{declared}}, nil
	case declared.Kind() != KindTuple:
		return Shape{}, withSuggestion(
			diagf(ErrShape, declared.Pos(), "Expected tuple: `(%s, %s)`", declared, strings.TrimSuffix(strings.Repeat("_, ", fieldCount-1), ", ")),
			fmt.Sprintf("(%s, %s)", declared, strings.TrimSuffix(strings.Repeat("_, ", fieldCount-1), ", ")))
	}
	elems := declared.Elems()
	switch m := len(elems); {
	case m < fieldCount:
		k := fieldCount - m
		parts := make([]string, 0, fieldCount)
		for _, e := range elems {
			parts = append(parts, e.String())
		}
		for i := 0; i < k; i++ {
			parts = append(parts, "_")
		}
		suggestion := "(" + strings.Join(parts, ", ") + ")"
		return Shape{}, withSuggestion(
			diagf(ErrShape, declared.Pos(), "Wrong tuple length: expected %d, found %d. Consider adding %d more type%s: `%s`", fieldCount, m, k, plural(k), suggestion),
			suggestion)
	case m > fieldCount:
		k := m - fieldCount
		suggestion := "(" + typesString(elems[:fieldCount]) + ")"
		return Shape{}, withSuggestion(
			diagf(ErrShape, declared.Pos(), "Wrong tuple length: expected %d, found %d. Consider removing last %d type%s: `%s`", fieldCount, m, k, plural(k), suggestion),
			suggestion)
	}
	return Shape{Kind: ShapeTuple, Declared: declared, Components: elems}, nil
}

// InferredShape is the shape of a conversion from the fields' own types.
func InferredShape(fields Fields) Shape {
	tys := fields.Types()
	if len(tys) <= 1 {
		return Shape{Kind: ShapeSingle, Components: tys}
	}
	return Shape{Kind: ShapeTuple, Components: tys}
}

// ForwardedShape introduces one fresh generic parameter per field, named
// "__FromT0", "__FromT1", and so on.
func ForwardedShape(fields Fields) Shape {
	s := Shape{Kind: ShapeForwarded}
	for i := range fields.List {
		name := fmt.Sprintf("__FromT%d", i)
		s.Fresh = append(s.Fresh, name)
		s.Components = append(s.Components, MustType(name))
	}
	return s
}

// SourceType renders the type of the whole conversion source: the declared
// type if there is one, otherwise the components as a tuple.
func (s Shape) SourceType() string {
	if s.Declared != nil {
		return s.Declared.String()
	}
	strs := make([]string, len(s.Components))
	for i, c := range s.Components {
		strs[i] = c.String()
	}
	return tupleString(strs)
}

// accessor returns the expression that extracts component i from "value".
func (s Shape) accessor(i int) string {
	if len(s.Components) == 1 {
		return "value"
	}
	return fmt.Sprintf("value.%d", i)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
