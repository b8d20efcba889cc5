package derivepoet

import (
	"fmt"
	"strings"
)

// FmtArg is one explicit argument following a format template in an
// attribute: either a positional expression or "name = expr".
type FmtArg struct {
	// Name is empty for positional arguments.
	Name string
	Expr []Token
	Pos  Pos
}

func (a FmtArg) String() string {
	if a.Name != "" {
		return a.Name + " = " + TokensString(a.Expr)
	}
	return TokensString(a.Expr)
}

// bareIdent returns the expression's identifier if the expression is just
// one identifier.
func (a FmtArg) bareIdent() (string, bool) {
	if len(a.Expr) == 1 && a.Expr[0].Kind == TokenIdent {
		return Unraw(a.Expr[0].Text), true
	}
	return "", false
}

// ResolvedKind describes what an argument reference resolved to.
type ResolvedKind int

const (
	// The reference names a field of the struct or variant.
	ResolvedField ResolvedKind = iota + 1
	// The reference names an explicit argument whose expression is opaque.
	ResolvedExpr
	// The reference is a name that is neither an explicit argument nor a
	// field. It is left for the compiler to resolve (e.g. a constant in
	// scope) and contributes no bounds.
	ResolvedPassThrough
)

// Resolved is the target of an argument reference.
type Resolved struct {
	Kind  ResolvedKind
	Field *Field
	// Arg is the explicit argument, for ResolvedExpr (and for ResolvedField
	// when the field was named through an argument).
	Arg *FmtArg
	// Name is the referenced name, for ResolvedPassThrough.
	Name string
}

// Key returns the name under which a preview looks up the resolved value:
// the field's identity, the pass-through name, or the argument expression.
func (r *Resolved) Key() string {
	switch r.Kind {
	case ResolvedField:
		return r.Field.Identity()
	case ResolvedPassThrough:
		return r.Name
	default:
		return TokensString(r.Arg.Expr)
	}
}

// ResolvedPlaceholder pairs a placeholder with the resolution of its
// value, width, and precision arguments.
type ResolvedPlaceholder struct {
	*Placeholder
	Value     *Resolved
	Width     *Resolved
	Precision *Resolved
}

// resolver resolves placeholders against explicit arguments and the fields
// in scope.
type resolver struct {
	args   []FmtArg
	named  map[string]int
	fields map[string]*Field
	used   []bool
}

func newResolver(args []FmtArg, fields Fields) (*resolver, error) {
	r := &resolver{
		args:   args,
		named:  map[string]int{},
		fields: map[string]*Field{},
		used:   make([]bool, len(args)),
	}
	seenNamed := false
	for i, a := range args {
		if a.Name == "" {
			if seenNamed {
				return nil, diagf(ErrSyntax, a.Pos, "positional arguments cannot follow named arguments")
			}
			continue
		}
		seenNamed = true
		if _, ok := r.named[a.Name]; ok {
			return nil, diagf(ErrSyntax, a.Pos, "duplicate argument named `%s`", a.Name)
		}
		r.named[a.Name] = i
	}
	for _, f := range fields.List {
		r.fields[f.Identity()] = f
	}
	return r, nil
}

func (r *resolver) resolveArg(i int) *Resolved {
	r.used[i] = true
	a := &r.args[i]
	if id, ok := a.bareIdent(); ok {
		if f, ok := r.fields[id]; ok {
			return &Resolved{Kind: ResolvedField, Field: f, Arg: a}
		}
	}
	return &Resolved{Kind: ResolvedExpr, Arg: a}
}

func (r *resolver) resolve(ref ArgumentRef, pos Pos) (*Resolved, error) {
	if ref.Kind == ArgPositional {
		if ref.Index >= len(r.args) {
			return nil, diagf(ErrShape, pos, "invalid reference to positional argument %d (%s)", ref.Index, describeArgCount(len(r.args)))
		}
		return r.resolveArg(ref.Index), nil
	}
	if i, ok := r.named[ref.Name]; ok {
		return r.resolveArg(i), nil
	}
	if f, ok := r.fields[ref.Name]; ok {
		return &Resolved{Kind: ResolvedField, Field: f}, nil
	}
	return &Resolved{Kind: ResolvedPassThrough, Name: ref.Name}, nil
}

func describeArgCount(n int) string {
	switch n {
	case 0:
		return "no arguments were given"
	case 1:
		return "there is 1 argument"
	default:
		return fmt.Sprintf("there are %d arguments", n)
	}
}

// finish reports arguments that no placeholder referenced.
func (r *resolver) finish() error {
	var unused []string
	var first Pos
	for i, used := range r.used {
		if used {
			continue
		}
		if len(unused) == 0 {
			first = r.args[i].Pos
		}
		if r.args[i].Name != "" {
			unused = append(unused, fmt.Sprintf("named argument `%s`", r.args[i].Name))
		} else {
			unused = append(unused, fmt.Sprintf("argument %d", i))
		}
	}
	switch len(unused) {
	case 0:
		return nil
	case 1:
		return diagf(ErrShape, first, "%s never used", unused[0])
	default:
		return diagf(ErrShape, first, "multiple unused formatting arguments: %s", strings.Join(unused, ", "))
	}
}

// ResolveTemplate resolves every placeholder of tmpl against the explicit
// arguments and the given fields. Referencing an argument that does not exist
// and leaving an argument unused are both errors.
func ResolveTemplate(tmpl *FormatTemplate, args []FmtArg, fields Fields) ([]*ResolvedPlaceholder, error) {
	r, err := newResolver(args, fields)
	if err != nil {
		return nil, err
	}
	var ret []*ResolvedPlaceholder
	for _, ph := range tmpl.Placeholders() {
		rp := &ResolvedPlaceholder{Placeholder: ph}
		if rp.Value, err = r.resolve(ph.Arg, tmpl.Pos); err != nil {
			return nil, err
		}
		if ph.Width != nil {
			if rp.Width, err = r.resolve(*ph.Width, tmpl.Pos); err != nil {
				return nil, err
			}
		}
		if ph.Precision != nil {
			if rp.Precision, err = r.resolve(*ph.Precision, tmpl.Pos); err != nil {
				return nil, err
			}
		}
		ret = append(ret, rp)
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return ret, nil
}
