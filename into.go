package derivepoet

import (
	"strings"
)

// AccessMode is how an Into conversion takes the struct: by value, by shared
// reference, or by mutable reference.
type AccessMode int

const (
	AccessOwned AccessMode = iota
	AccessRef
	AccessRefMut
)

func (m AccessMode) String() string {
	switch m {
	case AccessRef:
		return "ref"
	case AccessRefMut:
		return "ref_mut"
	default:
		return "owned"
	}
}

// intoLifetime is the lifetime added to the impls of the reference modes.
const intoLifetime = "'__derive_more_into"

// IntoConversion is one Into impl, which is rendered as a From impl on the
// target tuple.
type IntoConversion struct {
	Mode AccessMode
	// Shape lines the target components up with Fields. Its Declared type is
	// nil when the target is the tuple of the field types.
	Shape Shape
}

// IntoPlan lists the Into conversions derived for a struct. Owned
// conversions come first, then ref, then ref_mut.
type IntoPlan struct {
	Item *Item
	// Fields are the fields that take part in the conversion: all fields
	// except skipped ones.
	Fields      []*Field
	Conversions []*IntoConversion
}

// PlanInto resolves the "into" attributes of a struct and of its fields.
func PlanInto(item *Item) (*IntoPlan, error) {
	switch item.Kind {
	case ItemEnum:
		return nil, diagf(ErrUnsupported, item.Pos, "`Into` cannot be derived for enums")
	case ItemUnion:
		return nil, diagf(ErrUnsupported, item.Pos, "`Into` cannot be derived for unions")
	}

	plan := &IntoPlan{Item: item}
	for _, f := range item.Fields.List {
		skip, err := fieldSkipped(f)
		if err != nil {
			return nil, err
		}
		if !skip {
			plan.Fields = append(plan.Fields, f)
		}
	}
	kept := Fields{Style: item.Fields.Style, List: plan.Fields}

	var form *AccessForm
	for _, a := range attrsNamed(item.Attrs, "into") {
		next, err := ParseIntoAttr(a, kept)
		if err != nil {
			return nil, err
		}
		if form == nil {
			form = next
			continue
		}
		form.Owned = mergeAccess(form.Owned, next.Owned)
		form.Ref = mergeAccess(form.Ref, next.Ref)
		form.RefMut = mergeAccess(form.RefMut, next.RefMut)
	}
	if form == nil {
		form = &AccessForm{Owned: &AccessTypes{}}
	}

	modes := []struct {
		mode AccessMode
		tys  *AccessTypes
	}{
		{AccessOwned, form.Owned},
		{AccessRef, form.Ref},
		{AccessRefMut, form.RefMut},
	}
	for _, m := range modes {
		if m.tys == nil {
			continue
		}
		if len(m.tys.Types) == 0 {
			plan.Conversions = append(plan.Conversions, &IntoConversion{Mode: m.mode, Shape: InferredShape(kept)})
			continue
		}
		for _, ty := range m.tys.Types {
			shape, err := ReconcileShape(ty, len(plan.Fields))
			if err != nil {
				return nil, err
			}
			plan.Conversions = append(plan.Conversions, &IntoConversion{Mode: m.mode, Shape: shape})
		}
	}
	return plan, nil
}

func mergeAccess(dst, src *AccessTypes) *AccessTypes {
	switch {
	case dst == nil:
		return src
	case src == nil:
		return dst
	}
	return &AccessTypes{Types: append(append([]*Type(nil), dst.Types...), src.Types...)}
}

// fieldSkipped reports whether the field carries "#[into(skip)]". Only one
// such attribute is allowed per field.
func fieldSkipped(f *Field) (bool, error) {
	attrs := attrsNamed(f.Attrs, "into")
	if len(attrs) > 1 {
		return false, diagf(ErrConflict, attrs[1].Pos, "only single `#[into(...)]` attribute is allowed here")
	}
	if len(attrs) == 0 {
		return false, nil
	}
	if _, err := ParseIntoFieldAttr(attrs[0]); err != nil {
		return false, err
	}
	return true, nil
}

// Impls renders one impl block per conversion.
func (p *IntoPlan) Impls() []*ImplSpec {
	impls := make([]*ImplSpec, len(p.Conversions))
	for i, c := range p.Conversions {
		impls[i] = c.impl(p)
	}
	return impls
}

// refPrefix returns the reference sigil for the mode, with the lifetime if
// withLifetime is set: "", "&", "&mut ", "&'lf ", "&'lf mut ".
func (m AccessMode) refPrefix(withLifetime bool) string {
	if m == AccessOwned {
		return ""
	}
	var sb strings.Builder
	sb.WriteByte('&')
	if withLifetime {
		sb.WriteString(intoLifetime + " ")
	}
	if m == AccessRefMut {
		sb.WriteString("mut ")
	}
	return sb.String()
}

// Targets returns the target component types as they appear in the impl
// header, like "&'__derive_more_into i32".
func (c *IntoConversion) Targets() []string {
	prefix := c.Mode.refPrefix(true)
	tys := make([]string, len(c.Shape.Components))
	for i, t := range c.Shape.Components {
		tys[i] = prefix + t.String()
	}
	return tys
}

func (c *IntoConversion) impl(p *IntoPlan) *ImplSpec {
	item := p.Item
	var extra []*GenericParam
	if c.Mode != AccessOwned {
		extra = append(extra, LifetimeParam(intoLifetime))
	}
	src := c.Mode.refPrefix(true) + item.SelfType()
	impl := NewImpl(Printf("%s<%s>", SymFrom, src), Print(tupleString(c.Targets()))).
		SetParams(item.Generics.ImplParams(extra...)).
		AddAttr("automatically_derived")
	for _, w := range item.Generics.Where {
		impl.AddWhere(Print(w))
	}

	bodyPrefix := c.Mode.refPrefix(false)
	parts := make([]string, len(p.Fields))
	args := make([]interface{}, 0, len(p.Fields))
	for i, f := range p.Fields {
		parts[i] = "<%s as %s<_>>::from(" + bodyPrefix + "value." + f.Member() + ")"
		args = append(args, bodyPrefix+c.Shape.Components[i].String(), SymFrom)
	}
	body := Printlnf("("+strings.Join(parts, ", ")+")", args...)

	fn := NewFn("from").
		AddAttr("inline").
		AddArg("value", Print(src)).
		SetResult(Print("Self")).
		SetBody(body)
	return impl.AddFn(fn)
}
