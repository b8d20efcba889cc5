package derivepoet

// FromConversion is one From impl: a conversion from a source shape into a
// struct or one variant of an enum.
type FromConversion struct {
	// Variant is nil for structs.
	Variant *Variant
	Fields  Fields
	Shape   Shape
}

// FromPlan lists the From impls derived for one item, in declaration order.
type FromPlan struct {
	Item        *Item
	Conversions []*FromConversion
}

// PlanFrom resolves the "from" attributes of item. Structs always get at
// least one conversion. For enums, if any variant is marked (bare "#[from]",
// explicit types, or "forward"), only marked variants are converted;
// otherwise every variant with fields is.
func PlanFrom(item *Item) (*FromPlan, error) {
	plan := &FromPlan{Item: item}
	switch item.Kind {
	case ItemUnion:
		return nil, diagf(ErrUnsupported, item.Pos, "`From` cannot be derived for unions")
	case ItemStruct:
		form, err := structFromForm(item.Attrs, item.Fields)
		if err != nil {
			return nil, err
		}
		convs, err := fromConversions(nil, item.Fields, form)
		if err != nil {
			return nil, err
		}
		plan.Conversions = convs
		return plan, nil
	}

	forms := make([]AttributeForm, len(item.Variants))
	var errs Diagnostics
	explicit := false
	for i, v := range item.Variants {
		form, err := variantFromForm(v.Attrs, v.Fields)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		switch form.(type) {
		case *MarkerForm, *TypesForm, *ForwardForm:
			explicit = true
		}
		forms[i] = form
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	for i, v := range item.Variants {
		form := forms[i]
		if _, ok := form.(*SkipForm); ok {
			continue
		}
		if form == nil && (explicit || v.Fields.Len() == 0) {
			continue
		}
		convs, err := fromConversions(v, v.Fields, form)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		plan.Conversions = append(plan.Conversions, convs...)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return plan, nil
}

// structFromForm combines the "from" attributes of a struct. Type lists
// accumulate; anything else may only appear once.
func structFromForm(attrs []*Attribute, fields Fields) (AttributeForm, error) {
	var form AttributeForm
	for _, a := range attrsNamed(attrs, "from") {
		next, err := ParseFromAttr(a, fields, false)
		if err != nil {
			return nil, err
		}
		prev, isTypes := form.(*TypesForm)
		more, moreTypes := next.(*TypesForm)
		switch {
		case form == nil:
			form = next
		case isTypes && moreTypes:
			form = &TypesForm{Pos: prev.Pos, Types: append(append([]*Type(nil), prev.Types...), more.Types...)}
		default:
			return nil, diagf(ErrConflict, a.Pos, "Only single `#[from(...)]` attribute is allowed here")
		}
	}
	return form, nil
}

// variantFromForm returns the only "from" attribute of a variant, if any.
func variantFromForm(attrs []*Attribute, fields Fields) (AttributeForm, error) {
	var form AttributeForm
	for _, a := range attrsNamed(attrs, "from") {
		next, err := ParseFromAttr(a, fields, true)
		if err != nil {
			return nil, err
		}
		if form != nil {
			return nil, diagf(ErrConflict, form.Position(), "Only single `#[from(...)]` attribute is allowed here")
		}
		form = next
	}
	return form, nil
}

func fromConversions(v *Variant, fields Fields, form AttributeForm) ([]*FromConversion, error) {
	switch f := form.(type) {
	case *TypesForm:
		var convs []*FromConversion
		for _, ty := range f.Types {
			shape, err := ReconcileShape(ty, fields.Len())
			if err != nil {
				return nil, err
			}
			convs = append(convs, &FromConversion{Variant: v, Fields: fields, Shape: shape})
		}
		return convs, nil
	case *ForwardForm:
		return []*FromConversion{{Variant: v, Fields: fields, Shape: ForwardedShape(fields)}}, nil
	default:
		return []*FromConversion{{Variant: v, Fields: fields, Shape: InferredShape(fields)}}, nil
	}
}

// Impls renders one impl block per conversion.
func (p *FromPlan) Impls() []*ImplSpec {
	impls := make([]*ImplSpec, len(p.Conversions))
	for i, c := range p.Conversions {
		impls[i] = c.impl(p.Item)
	}
	return impls
}

// path returns the constructor path, like "Foo" or "Foo::Bar".
func (c *FromConversion) path(item *Item) string {
	if c.Variant == nil {
		return item.Name
	}
	return item.Name + "::" + c.Variant.Name
}

func (c *FromConversion) impl(item *Item) *ImplSpec {
	src := c.Shape.SourceType()
	var fresh []*GenericParam
	for _, name := range c.Shape.Fresh {
		fresh = append(fresh, TypeParam(name))
	}
	impl := NewImpl(Printf("%s<%s>", SymFrom, src), Print(item.SelfType())).
		SetParams(item.Generics.ImplParams(fresh...)).
		AddAttr("automatically_derived")
	for _, w := range item.Generics.Where {
		impl.AddWhere(Print(w))
	}
	for i, name := range c.Shape.Fresh {
		impl.AddWhere(Printf("%s: %s<%s>", c.Fields.List[i].Type, SymFrom, name))
	}

	exprs := make([]string, c.Fields.Len())
	args := make([]interface{}, 0, c.Fields.Len())
	for i, f := range c.Fields.List {
		if c.Shape.Kind == ShapeForwarded || c.Shape.Declared != nil {
			// converted component by component
			exprs[i] = "<%s as %s<%s>>::from(" + c.Shape.accessor(i) + ")"
			args = append(args, f.Type, SymFrom, c.Shape.Components[i])
		} else {
			exprs[i] = c.Shape.accessor(i)
		}
	}
	body := Printlnf(c.Fields.Construct(c.path(item), exprs), args...)

	fn := NewFn("from").
		AddAttr("inline").
		AddArg("value", Print(src)).
		SetResult(Print("Self")).
		SetBody(body)
	return impl.AddFn(fn)
}
