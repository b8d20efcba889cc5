package derivepoet

import (
	"fmt"
	"strings"
)

// AttributeForm is the parsed shape of one derive attribute. The concrete
// types are MarkerForm, TypesForm, ForwardForm, SkipForm, AccessForm,
// TemplateForm and BoundsForm.
type AttributeForm interface {
	// Position of the attribute the form was parsed from.
	Position() Pos
}

// MarkerForm is a bare attribute without arguments, like "#[from]".
type MarkerForm struct{ Pos Pos }

// TypesForm lists explicit source types, like "#[from(i32, (u8, u8))]".
type TypesForm struct {
	Pos   Pos
	Types []*Type
}

// ForwardForm is "#[from(forward)]".
type ForwardForm struct{ Pos Pos }

// SkipForm is "#[from(skip)]" or "#[from(ignore)]" (and likewise for into).
type SkipForm struct{ Pos Pos }

// AccessTypes are the target types of one access mode of Into. An empty
// list means the tuple of the field types.
type AccessTypes struct {
	Types []*Type
}

// AccessForm lists the Into targets per access mode, like
// "#[into(owned, ref(i32), ref_mut)]". Modes that were not mentioned are nil.
type AccessForm struct {
	Pos    Pos
	Owned  *AccessTypes
	Ref    *AccessTypes
	RefMut *AccessTypes
}

// TemplateForm is a format template with its arguments, like
// `#[display("{} <-> {}", a, b)]`.
type TemplateForm struct {
	Pos Pos
	// Lit is the string literal token, as written.
	Lit  Token
	Args []FmtArg
}

// BoundsForm is a bound override, like "#[display(bound(T: Debug))]".
type BoundsForm struct {
	Pos        Pos
	Predicates []*BoundPredicate
}

func (f *MarkerForm) Position() Pos   { return f.Pos }
func (f *TypesForm) Position() Pos    { return f.Pos }
func (f *ForwardForm) Position() Pos  { return f.Pos }
func (f *SkipForm) Position() Pos     { return f.Pos }
func (f *AccessForm) Position() Pos   { return f.Pos }
func (f *TemplateForm) Position() Pos { return f.Pos }
func (f *BoundsForm) Position() Pos   { return f.Pos }

// Template parses the form's literal as a format template.
func (f *TemplateForm) Template() (*FormatTemplate, error) {
	return ParseFormatTemplate(f.Lit.Value, f.Lit.Pos)
}

// ParseFormatAttr parses one formatting attribute, such as
// `#[display("{a}")]` or `#[debug(bound(T: Debug))]`. The result is a
// *TemplateForm or a *BoundsForm.
func ParseFormatAttr(a *Attribute) (AttributeForm, error) {
	if a.Style != AttrList {
		return nil, diagf(ErrSyntax, a.Pos, "expected `#[%s(\"...\", ...)]` or `#[%s(bound(...))]`", a.Path, a.Path)
	}
	c := NewCursor(a.Args, a.ArgsPos)
	first, ok := c.Peek()
	if !ok {
		return nil, diagf(ErrSyntax, a.ArgsPos, "expected a string literal or `bound(...)` in `#[%s(...)]`", a.Path)
	}
	switch {
	case first.Kind == TokenString:
		c.Next()
		form := &TemplateForm{Pos: a.Pos, Lit: first}
		if c.IsEmpty() {
			return form, nil
		}
		if !c.EatPunct(",") {
			return nil, c.unexpected("`,`")
		}
		args, err := parseFmtArgs(c.Rest())
		if err != nil {
			return nil, err
		}
		form.Args = args
		return form, nil

	case first.IsIdent("fmt") && isNameValue(c):
		return nil, legacyFmtError(a)

	case first.IsIdent("bound"):
		if isNameValue(c) {
			return nil, legacyBoundError(a, c)
		}
		fork := c.Fork()
		fork.Next()
		group, ok := fork.Next()
		if !ok || !group.IsGroup(DelimParen) {
			return nil, fork.unexpected("`(`")
		}
		if !fork.IsEmpty() {
			return nil, fork.unexpected("end of attribute")
		}
		preds, err := ParseBoundList(group.Inner, group.Pos)
		if err != nil {
			return nil, err
		}
		c.AdvanceTo(fork)
		return &BoundsForm{Pos: a.Pos, Predicates: preds}, nil
	}
	return nil, diagf(ErrSyntax, first.Pos, "unknown argument `%s` in `#[%s(...)]`, expected a string literal or `bound(...)`", first.String(), a.Path)
}

// isNameValue reports whether the next token is followed by '='.
func isNameValue(c *Cursor) bool {
	t, ok := c.PeekAt(1)
	return ok && t.IsPunct("=")
}

func parseFmtArgs(toks []Token) ([]FmtArg, error) {
	parts, err := SplitTopLevel(toks, false)
	if err != nil {
		return nil, err
	}
	args := make([]FmtArg, len(parts))
	for i, p := range parts {
		arg := FmtArg{Pos: p[0].Pos, Expr: p}
		if len(p) > 2 && p[0].Kind == TokenIdent && p[1].IsPunct("=") {
			arg.Name = Unraw(p[0].Text)
			arg.Expr = spaced(p[2:], false)
		} else if len(p) == 2 && p[1].IsPunct("=") {
			return nil, diagf(ErrSyntax, p[1].Pos, "expected expression after `=`")
		}
		args[i] = arg
	}
	return args, nil
}

// legacyFmtError rejects `#[display(fmt = "...", args)]`, suggesting the same
// template and arguments without "fmt =".
func legacyFmtError(a *Attribute) error {
	rest := a.Args[2:]
	suggestion := fmt.Sprintf("#[%s(%s)]", a.Path, TokensString(spaced(rest, false)))
	err := diagf(ErrSyntax, a.Args[0].Pos, "legacy syntax, remove `fmt =` and use `%s` instead", suggestion)
	return withSuggestion(err, suggestion)
}

// legacyBoundError rejects `#[display(bound = "T: Trait")]`.
func legacyBoundError(a *Attribute, c *Cursor) error {
	val, _ := c.PeekAt(2)
	inner := val.String()
	if val.Kind == TokenString {
		inner = val.Value
	}
	suggestion := fmt.Sprintf("#[%s(bound(%s))]", a.Path, inner)
	err := diagf(ErrSyntax, a.Args[0].Pos, "legacy syntax, use `%s` instead", suggestion)
	return withSuggestion(err, suggestion)
}

// ParseFromAttr parses one "from" attribute. On enum variants, bare "#[from]"
// and skip/ignore are allowed; on structs they are not.
func ParseFromAttr(a *Attribute, fields Fields, onVariant bool) (AttributeForm, error) {
	if a.Style == AttrPath {
		if !onVariant {
			return nil, diagf(ErrSyntax, a.Pos, "bare `#[from]` is only allowed on enum variants; use `#[from(types...)]` or `#[from(forward)]`")
		}
		return &MarkerForm{Pos: a.Pos}, nil
	}
	if a.Style != AttrList {
		return nil, diagf(ErrSyntax, a.Pos, "expected `#[from(...)]`")
	}
	c := NewCursor(a.Args, a.ArgsPos)
	if c.IsEmpty() {
		return nil, diagf(ErrSyntax, a.ArgsPos, "expected a type, `forward`, `skip`, or `ignore` in `#[from(...)]`")
	}

	ahead := c.Fork()
	if name, ok := ahead.PeekIdent(); ok {
		ahead.Next()
		switch {
		case name == "forward" && ahead.IsEmpty():
			c.AdvanceTo(ahead)
			return &ForwardForm{Pos: a.Pos}, nil
		case (name == "skip" || name == "ignore") && ahead.IsEmpty():
			if !onVariant {
				return nil, diagf(ErrSyntax, a.Pos, "`#[from(%s)]` is only allowed on enum variants", name)
			}
			c.AdvanceTo(ahead)
			return &SkipForm{Pos: a.Pos}, nil
		case name == "types":
			if t, ok := ahead.Peek(); ok && t.IsGroup(DelimParen) {
				return nil, legacyFromTypesError(a, t, fields)
			}
		}
	}

	tys, err := parseTypeList(c.Rest())
	if err != nil {
		return nil, err
	}
	return &TypesForm{Pos: a.Pos, Types: tys}, nil
}

func parseTypeList(toks []Token) ([]*Type, error) {
	parts, err := SplitTopLevel(toks, true)
	if err != nil {
		return nil, err
	}
	tys := make([]*Type, len(parts))
	for i, p := range parts {
		if tys[i], err = ParseType(spaced(p, false)); err != nil {
			return nil, err
		}
	}
	return tys, nil
}

// legacyTypeNames returns the type names in a legacy "types(...)" list. String
// literals name the type they contain.
func legacyTypeNames(group Token) ([]string, error) {
	parts, err := SplitTopLevel(group.Inner, true)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(parts))
	for i, p := range parts {
		if len(p) == 1 && p[0].Kind == TokenString {
			names[i] = p[0].Value
		} else {
			names[i] = TokensString(p)
		}
	}
	return names, nil
}

// repeatForFields spells a legacy type the way the new syntax needs it: as
// is for zero or one fields, or repeated into a tuple for more.
func repeatForFields(ty string, fields Fields) string {
	if fields.Len() <= 1 {
		return ty
	}
	parts := make([]string, fields.Len())
	for i := range parts {
		parts[i] = ty
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// fieldsTypeString spells the fields' own type: nothing for zero fields,
// the type for one, and a tuple for more.
func fieldsTypeString(fields Fields) (string, bool) {
	switch fields.Len() {
	case 0:
		return "", false
	case 1:
		return fields.List[0].Type.String(), true
	default:
		return "(" + typesString(fields.Types()) + ")", true
	}
}

func legacyFromTypesError(a *Attribute, group Token, fields Fields) error {
	names, err := legacyTypeNames(group)
	if err != nil {
		return err
	}
	var parts []string
	for _, n := range names {
		parts = append(parts, repeatForFields(n, fields))
	}
	if own, ok := fieldsTypeString(fields); ok {
		parts = append(parts, own)
	}
	suggestion := strings.Join(parts, ", ")
	return withSuggestion(
		diagf(ErrSyntax, a.Pos, "legacy syntax, remove `types` and use `%s` instead", suggestion),
		suggestion)
}

// ParseIntoAttr parses one struct-level "into" attribute.
func ParseIntoAttr(a *Attribute, fields Fields) (*AccessForm, error) {
	if a.Style != AttrList {
		return nil, diagf(ErrSyntax, a.Pos, "expected `#[into(...)]`")
	}
	if err := checkLegacyInto(a, fields); err != nil {
		return nil, err
	}
	form := &AccessForm{Pos: a.Pos}
	c := NewCursor(a.Args, a.ArgsPos)
	if c.IsEmpty() {
		return nil, diagf(ErrSyntax, a.ArgsPos, "expected a type, `owned`, `ref`, or `ref_mut` in `#[into(...)]`")
	}
	var topLevel *Type
	hasWrapped := false
	for !c.IsEmpty() {
		ahead := c.Fork()
		name, _ := ahead.PeekIdent()
		var mode **AccessTypes
		switch name {
		case "owned":
			mode = &form.Owned
		case "ref":
			mode = &form.Ref
		case "ref_mut":
			mode = &form.RefMut
		}
		if mode != nil {
			ahead.Next()
			if next, ok := ahead.Peek(); !ok || next.IsPunct(",") || next.IsGroup(DelimParen) {
				hasWrapped = true
				if *mode == nil {
					*mode = &AccessTypes{}
				}
				if ok && next.IsGroup(DelimParen) {
					ahead.Next()
					tys, err := parseTypeList(next.Inner)
					if err != nil {
						return nil, err
					}
					(*mode).Types = append((*mode).Types, tys...)
				}
				c.AdvanceTo(ahead)
				if !c.IsEmpty() && !c.EatPunct(",") {
					return nil, c.unexpected("`,`")
				}
				continue
			}
		}
		// a plain type, up to the next top-level comma
		toks := c.Rest()
		parts, err := SplitTopLevel(toks, true)
		if err != nil {
			return nil, err
		}
		ty, err := ParseType(spaced(parts[0], false))
		if err != nil {
			return nil, err
		}
		if topLevel == nil {
			topLevel = ty
		}
		if form.Owned == nil {
			form.Owned = &AccessTypes{}
		}
		form.Owned.Types = append(form.Owned.Types, ty)
		consumed := len(parts[0])
		if consumed < len(toks) {
			consumed++ // the comma
		}
		c = NewCursor(toks[consumed:], a.ArgsPos)
	}
	if topLevel != nil && hasWrapped {
		return nil, withSuggestion(
			diagf(ErrConflict, topLevel.Pos(), "mixing regular types with wrapped into `owned`/`ref`/`ref_mut` is not allowed, try wrapping this type into `owned(%[1]s), ref(%[1]s), ref_mut(%[1]s)`", topLevel),
			fmt.Sprintf("owned(%[1]s), ref(%[1]s), ref_mut(%[1]s)", topLevel))
	}
	return form, nil
}

// checkLegacyInto rejects the legacy forms "#[into(types(...))]" and
// "#[into(owned, ref(types(...)), ...)]", suggesting a rewrite.
func checkLegacyInto(a *Attribute, fields Fields) error {
	parts, err := SplitTopLevel(a.Args, true)
	if err != nil || len(parts) == 0 {
		return nil
	}
	var topLevel []string
	modes := map[string]*[]string{}
	anyTypes := false
	for _, p := range parts {
		if p[0].Kind != TokenIdent {
			return nil
		}
		name := p[0].Text
		switch {
		case len(p) == 2 && name == "types" && p[1].IsGroup(DelimParen):
			names, err := legacyTypeNames(p[1])
			if err != nil {
				return nil
			}
			topLevel = append(topLevel, names...)
			anyTypes = anyTypes || len(names) > 0
		case name == "owned" || name == "ref" || name == "ref_mut":
			list := modes[name]
			if list == nil {
				list = &[]string{}
				modes[name] = list
			}
			if len(p) == 1 {
				continue
			}
			// mode(types(...))
			if len(p) != 2 || !p[1].IsGroup(DelimParen) || len(p[1].Inner) != 2 ||
				!p[1].Inner[0].IsIdent("types") || !p[1].Inner[1].IsGroup(DelimParen) {
				return nil
			}
			names, err := legacyTypeNames(p[1].Inner[1])
			if err != nil {
				return nil
			}
			*list = append(*list, names...)
			anyTypes = anyTypes || len(names) > 0
		default:
			return nil
		}
	}
	if !anyTypes {
		return nil
	}

	if len(modes) == 0 {
		suggestion := strings.Join(topLevel, ", ")
		return withSuggestion(
			diagf(ErrSyntax, a.ArgsPos, "legacy syntax, remove `types` and use `%s` instead", suggestion),
			suggestion)
	}
	own, hasOwn := fieldsTypeString(fields)
	var rewritten []string
	for _, name := range []string{"owned", "ref", "ref_mut"} {
		list := modes[name]
		if list == nil {
			continue
		}
		if len(topLevel) == 0 && len(*list) == 0 {
			rewritten = append(rewritten, name)
			continue
		}
		var tys []string
		for _, t := range append(append([]string(nil), *list...), topLevel...) {
			tys = append(tys, repeatForFields(t, fields))
		}
		if hasOwn {
			tys = append(tys, own)
		}
		rewritten = append(rewritten, fmt.Sprintf("%s(%s)", name, strings.Join(tys, ", ")))
	}
	suggestion := strings.Join(rewritten, ", ")
	return withSuggestion(
		diagf(ErrSyntax, a.ArgsPos, "legacy syntax, use `%s` instead", suggestion),
		suggestion)
}

// ParseIntoFieldAttr parses a field-level "into" attribute, which may only
// be "#[into(skip)]" or "#[into(ignore)]".
func ParseIntoFieldAttr(a *Attribute) (*SkipForm, error) {
	if a.Style != AttrList {
		return nil, diagf(ErrSyntax, a.Pos, "expected `#[into(skip)]`")
	}
	c := NewCursor(a.Args, a.ArgsPos)
	name, ok := c.PeekIdent()
	if ok && (name == "skip" || name == "ignore") {
		c.Next()
		if c.IsEmpty() {
			return &SkipForm{Pos: a.Pos}, nil
		}
	}
	if len(a.Args) == 0 {
		return nil, diagf(ErrSyntax, a.ArgsPos, "expected `skip`, found end of input")
	}
	return nil, diagf(ErrSyntax, a.Args[0].Pos, "expected `skip`, found: `%s`", TokensString(a.Args))
}
