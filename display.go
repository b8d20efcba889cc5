package derivepoet

import (
	"strings"
	"text/template"
)

// RenderKind is an enumeration of the ways one match arm renders its value.
type RenderKind int

const (
	// Format a template with resolved arguments.
	RenderTemplate RenderKind = iota + 1
	// Delegate to the derived trait's implementation for the only field.
	RenderDelegate
	// Write the name of a struct or variant that has no fields.
	RenderName
	// Format an outer template whose single placeholder is filled by the
	// rendering of the variant (the Inner render).
	RenderAffix
)

// Render describes how one arm of a formatting implementation produces its
// output.
type Render struct {
	Kind RenderKind

	// For RenderTemplate.
	Template *FormatTemplate
	Lit      Token
	Args     []FmtArg
	Resolved []*ResolvedPlaceholder

	// For RenderDelegate.
	Field *Field

	// For RenderName.
	Name string

	// For RenderAffix. Outer is always a RenderTemplate.
	Outer *Render
	Inner *Render
}

// ArmPlan is one arm of the generated match over self.
type ArmPlan struct {
	// Variant is nil for structs and for the wildcard arm.
	Variant *Variant
	Fields  Fields
	Pattern string
	Render  *Render
}

// Name returns the name of the arm's variant, or the empty string.
func (a *ArmPlan) Name() string {
	if a.Variant == nil {
		return ""
	}
	return a.Variant.Name
}

// DisplayPlan is the resolved form of a formatting derivation for one item.
// It can be rendered into an impl block with Impl, or evaluated against
// sample values with Preview.
type DisplayPlan struct {
	Trait TraitTag
	Item  *Item
	Arms  []*ArmPlan
	// Wildcard is set when an enum's own template has no placeholders and
	// applies to every variant. Arms is empty in that case.
	Wildcard *Render
	// Bounds are the inferred bounds, before overrides are applied.
	Bounds    *BoundSet
	Overrides []*BoundPredicate

	needsHelper bool
}

// containerMode describes how an enum's own template applies to variants.
type containerMode int

const (
	containerNone containerMode = iota
	containerWildcard
	containerAffix
)

// displayState accumulates the plan while folding over the variants of an
// enum. Errors of independent variants are all collected.
type displayState struct {
	plan  *DisplayPlan
	mode  containerMode
	outer *Render
	errs  Diagnostics
}

// PlanDisplay resolves the formatting attributes of item for the given trait.
func PlanDisplay(item *Item, trait TraitTag) (*DisplayPlan, error) {
	if item.Kind == ItemUnion {
		return nil, diagf(ErrUnsupported, item.Pos, "`%s` cannot be derived for unions", trait)
	}
	form, overrides, err := collectFormatAttrs(item.Attrs, trait, true)
	if err != nil {
		return nil, err
	}
	st := &displayState{plan: &DisplayPlan{
		Trait:     trait,
		Item:      item,
		Bounds:    &BoundSet{},
		Overrides: overrides,
	}}

	if item.Kind == ItemStruct {
		r, err := st.render(item.Name, item.Fields, form, item.Pos)
		if err != nil {
			return nil, err
		}
		st.plan.Arms = []*ArmPlan{{Fields: item.Fields, Pattern: item.Fields.Pattern("Self"), Render: r}}
	} else {
		if err := st.container(form); err != nil {
			return nil, err
		}
		for _, v := range item.Variants {
			st.variant(v)
		}
		if err := st.errs.Err(); err != nil {
			return nil, err
		}
	}

	// report bad overrides now rather than when rendering
	if _, err := applyOverrides(&item.Generics, item.Name, st.plan.Bounds, overrides); err != nil {
		return nil, err
	}
	return st.plan, nil
}

// collectFormatAttrs returns the template (at most one) and the bound
// overrides (accumulated) among attrs.
func collectFormatAttrs(attrs []*Attribute, trait TraitTag, allowBounds bool) (*TemplateForm, []*BoundPredicate, error) {
	var tmpl *TemplateForm
	var bounds []*BoundPredicate
	for _, a := range attrsNamed(attrs, trait.AttrName()) {
		form, err := ParseFormatAttr(a)
		if err != nil {
			return nil, nil, err
		}
		switch f := form.(type) {
		case *TemplateForm:
			if tmpl != nil {
				return nil, nil, diagf(ErrConflict, f.Pos, "only single `#[%s(\"...\", ...)]` attribute is allowed here", trait.AttrName())
			}
			tmpl = f
		case *BoundsForm:
			if !allowBounds {
				return nil, nil, diagf(ErrSyntax, f.Pos, "`#[%s(bound(...))]` is only allowed on the item itself", trait.AttrName())
			}
			bounds = append(bounds, f.Predicates...)
		}
	}
	return tmpl, bounds, nil
}

// container decides how the enum's own template, if any, applies.
func (st *displayState) container(form *TemplateForm) error {
	if form == nil {
		return nil
	}
	tmpl, err := form.Template()
	if err != nil {
		return err
	}
	phs := tmpl.Placeholders()
	switch {
	case len(phs) == 0:
		resolved, err := ResolveTemplate(tmpl, form.Args, Fields{})
		if err != nil {
			return err
		}
		st.mode = containerWildcard
		st.plan.Wildcard = &Render{Kind: RenderTemplate, Template: tmpl, Lit: form.Lit, Args: form.Args, Resolved: resolved}
		return nil
	case len(phs) == 1 && phs[0].Implicit && len(form.Args) == 0 &&
		phs[0].Width == nil && phs[0].Precision == nil:
		resolved := []*ResolvedPlaceholder{{Placeholder: phs[0]}}
		st.mode = containerAffix
		st.outer = &Render{Kind: RenderTemplate, Template: tmpl, Lit: form.Lit, Resolved: resolved}
		st.plan.needsHelper = true
		return nil
	}
	return diagf(ErrShape, form.Pos, "outer `enum` template is an affix spec that expects no args and at most 1 placeholder for inner variant display")
}

// variant adds the arm for v, or records why it cannot be rendered.
func (st *displayState) variant(v *Variant) {
	form, _, err := collectFormatAttrs(v.Attrs, st.plan.Trait, false)
	if err != nil {
		st.errs = append(st.errs, err)
		return
	}
	if st.mode == containerWildcard {
		if form != nil {
			st.errs = append(st.errs, diagf(ErrConflict, form.Pos,
				"`%s` has a `#[%s(...)]` template without placeholders, which applies to all variants, so variant `%s` cannot have its own; maybe you want to add a placeholder?",
				st.plan.Item.Name, st.plan.Trait.AttrName(), v.Name))
		}
		return
	}
	r, err := st.render(v.Name, v.Fields, form, v.Pos)
	if err != nil {
		st.errs = append(st.errs, err)
		return
	}
	if st.mode == containerAffix {
		r = &Render{Kind: RenderAffix, Outer: st.outer, Inner: r}
	}
	st.plan.Arms = append(st.plan.Arms, &ArmPlan{
		Variant: v,
		Fields:  v.Fields,
		Pattern: v.Fields.Pattern("Self::" + v.Name),
		Render:  r,
	})
}

// render resolves the template of a struct or variant, or infers one, and
// records the bounds the rendering needs.
func (st *displayState) render(name string, fields Fields, form *TemplateForm, pos Pos) (*Render, error) {
	g := &st.plan.Item.Generics
	if form != nil {
		tmpl, err := form.Template()
		if err != nil {
			return nil, err
		}
		resolved, err := ResolveTemplate(tmpl, form.Args, fields)
		if err != nil {
			return nil, err
		}
		for _, rp := range resolved {
			if rp.Value.Kind == ResolvedField {
				inferFieldBound(st.plan.Bounds, g, rp.Value.Field, rp.Trait)
			}
		}
		return &Render{Kind: RenderTemplate, Template: tmpl, Lit: form.Lit, Args: form.Args, Resolved: resolved}, nil
	}
	switch fields.Len() {
	case 0:
		return &Render{Kind: RenderName, Name: name}, nil
	case 1:
		inferFieldBound(st.plan.Bounds, g, fields.List[0], st.plan.Trait)
		return &Render{Kind: RenderDelegate, Field: fields.List[0]}, nil
	}
	return nil, diagf(ErrShape, pos, "Cannot automatically infer format for types with more than 1 field")
}

// Predicates returns the where predicates the impl needs beyond those the
// item declares: inferred bounds merged with the overrides.
func (p *DisplayPlan) Predicates() []*CodeBlock {
	preds, err := applyOverrides(&p.Item.Generics, p.Item.Name, p.Bounds, p.Overrides)
	if err != nil {
		// PlanDisplay already validated the overrides
		panic(err)
	}
	return preds
}

// Impl renders the plan as an impl block.
func (p *DisplayPlan) Impl() *ImplSpec {
	impl := NewImpl(Printf("%s", p.Trait.Symbol()), Print(p.Item.SelfType())).
		SetParams(p.Item.Generics.ImplParams()).
		AddAttr("automatically_derived")
	for _, w := range p.Item.Generics.Where {
		impl.AddWhere(Print(w))
	}
	impl.AddWhere(p.Predicates()...)

	fn := NewFn("fmt").
		SetReceiver("&self").
		AddArg("__derive_more_f", Printf("&mut %s<'_>", SymFormatter)).
		SetResult(Printf("%s", SymFmtResult)).
		SetBody(p.body())
	return impl.AddFn(fn)
}

func (p *DisplayPlan) body() *CodeBlock {
	body := &CodeBlock{}
	if p.needsHelper && len(p.Arms) > 0 {
		body.RenderTemplate(displayAsTemplate, displayAsData{
			Fn:        SymFn,
			Formatter: SymFormatter,
			Result:    SymFmtResult,
			Trait:     p.affixTrait().Symbol(),
		})
	}
	switch {
	case p.Wildcard != nil:
		body.Println("match self {")
		body.Printlnf("    _ => %s,", p.Wildcard.expr(p.Trait))
		body.Println("}")
	case len(p.Arms) == 0:
		body.Println("match *self {}")
	default:
		body.Println("match self {")
		for _, arm := range p.Arms {
			body.Printlnf("    %s => %s,", arm.Pattern, arm.Render.expr(p.Trait))
		}
		body.Println("}")
	}
	return body
}

// affixTrait is the trait the outer placeholder of an affix template uses.
func (p *DisplayPlan) affixTrait() TraitTag {
	for _, arm := range p.Arms {
		if arm.Render.Kind == RenderAffix {
			return arm.Render.Outer.Resolved[0].Trait
		}
	}
	return TraitDisplay
}

// expr returns the expression that writes the rendering to the formatter
// "__derive_more_f".
func (r *Render) expr(trait TraitTag) *CodeBlock {
	switch r.Kind {
	case RenderName:
		return Printf(`__derive_more_f.write_str("%s")`, r.Name)
	case RenderDelegate:
		return Printf("%s::fmt(%s, __derive_more_f)", trait.Symbol(), r.Field.Binding())
	case RenderAffix:
		return Printf("%s(__derive_more_f, %s, __derive_more_DisplayAs(|__derive_more_f| %s))",
			SymWrite, r.Outer.Lit.Text, r.Inner.expr(trait))
	default:
		return Printf("%s(__derive_more_f, %s)", SymWrite, strings.Join(r.writeArgs(), ", "))
	}
}

// writeArgs returns the literal and the arguments of the write! call. Fields
// referenced by name are captured implicitly, except raw identifiers, which
// format strings cannot name and so are passed explicitly.
func (r *Render) writeArgs() []string {
	args := []string{r.Lit.Text}
	for _, a := range r.Args {
		args = append(args, a.String())
	}
	seen := map[string]bool{}
	capture := func(res *Resolved) {
		if res == nil || res.Kind != ResolvedField || res.Arg != nil {
			return
		}
		b := res.Field.Binding()
		if !strings.HasPrefix(b, "r#") || seen[b] {
			return
		}
		seen[b] = true
		args = append(args, res.Field.Identity()+" = "+b)
	}
	for _, rp := range r.Resolved {
		capture(rp.Value)
		capture(rp.Width)
		capture(rp.Precision)
	}
	return args
}

type displayAsData struct {
	Fn, Formatter, Result, Trait Symbol
}

var displayAsTemplate = template.Must(template.New("displayAs").Parse(
	`struct __derive_more_DisplayAs<F>(F)
where
    F: {{.Fn}}(&mut {{.Formatter}}<'_>) -> {{.Result}};

impl<F> {{.Trait}} for __derive_more_DisplayAs<F>
where
    F: {{.Fn}}(&mut {{.Formatter}}<'_>) -> {{.Result}},
{
    fn fmt(&self, __derive_more_f: &mut {{.Formatter}}<'_>) -> {{.Result}} {
        (self.0)(__derive_more_f)
    }
}

`))
