package derivepoet

import (
	"strings"
)

// BoundSet is an ordered mapping from bounded types to the traits they must
// implement. Both the bounded types and each type's traits keep the order in
// which they were first added; adding a pair twice has no effect.
type BoundSet struct {
	keys   []string
	types  map[string]*Type
	traits map[string][]Symbol
}

// Add records that ty must implement trait.
func (b *BoundSet) Add(ty *Type, trait Symbol) {
	key := ty.String()
	if b.types == nil {
		b.types = map[string]*Type{}
		b.traits = map[string][]Symbol{}
	}
	if _, ok := b.types[key]; !ok {
		b.keys = append(b.keys, key)
		b.types[key] = ty
	}
	for _, t := range b.traits[key] {
		if t == trait {
			return
		}
	}
	b.traits[key] = append(b.traits[key], trait)
}

// Merge adds every entry of other to b.
func (b *BoundSet) Merge(other *BoundSet) {
	for _, k := range other.keys {
		for _, t := range other.traits[k] {
			b.Add(other.types[k], t)
		}
	}
}

func (b *BoundSet) Len() int {
	return len(b.keys)
}

// Traits returns the traits recorded for the bounded type spelled ty.
func (b *BoundSet) Traits(ty string) []Symbol {
	return b.traits[ty]
}

// BoundedTypes returns the bounded types, in order.
func (b *BoundSet) BoundedTypes() []*Type {
	ret := make([]*Type, len(b.keys))
	for i, k := range b.keys {
		ret[i] = b.types[k]
	}
	return ret
}

// predicate renders the bound for one bounded type, like
// "T: ::core::fmt::Display + ::core::fmt::Octal".
func (b *BoundSet) predicate(key string) *CodeBlock {
	traits := b.traits[key]
	format := "%s: " + strings.TrimSuffix(strings.Repeat("%s + ", len(traits)), " + ")
	args := []interface{}{key}
	for _, t := range traits {
		args = append(args, t)
	}
	return Printf(format, args...)
}

// BoundPredicate is one predicate of a bound override, as in
// `#[display(bound(T: Display + Debug))]`.
type BoundPredicate struct {
	Bounded *Type
	// Bounds are the trait bounds after the ':', as written.
	Bounds []string
	Pos    Pos
	toks   []Token
}

func (p *BoundPredicate) String() string {
	return TokensString(p.toks)
}

// ParseBoundList parses the contents of "bound(...)": a comma-separated
// list of where predicates. Only trait bounds are allowed: lifetime bounds
// and higher-ranked bounds are rejected, as is an empty list.
func ParseBoundList(toks []Token, pos Pos) ([]*BoundPredicate, error) {
	if len(toks) == 0 {
		return nil, diagf(ErrSyntax, pos, "empty bound list; expected at least one `Type: Trait` predicate")
	}
	parts, err := SplitTopLevel(toks, true)
	if err != nil {
		return nil, err
	}
	preds := make([]*BoundPredicate, len(parts))
	for i, part := range parts {
		if preds[i], err = parseBoundPredicate(part); err != nil {
			return nil, err
		}
	}
	return preds, nil
}

func parseBoundPredicate(toks []Token) (*BoundPredicate, error) {
	first := toks[0]
	if first.IsIdent("for") && len(toks) > 1 && toks[1].IsPunct("<") {
		return nil, diagf(ErrSyntax, first.Pos, "higher-ranked trait bounds are not supported in `bound(...)`")
	}
	if first.Kind == TokenLifetime {
		return nil, diagf(ErrSyntax, first.Pos, "lifetime bounds are not supported in `bound(...)`, only trait bounds are")
	}
	colon := -1
	depth := 0
	for i, t := range toks {
		if t.IsPunct("<") {
			depth++
		} else if t.IsPunct(">") {
			depth--
		} else if t.IsPunct(":") && depth == 0 {
			colon = i
			break
		}
	}
	if colon < 0 {
		return nil, diagf(ErrSyntax, first.Pos, "expected `:` in bound `%s`", TokensString(toks))
	}
	if colon == 0 {
		return nil, diagf(ErrSyntax, first.Pos, "expected type before `:`")
	}
	ty, err := ParseType(toks[:colon])
	if err != nil {
		return nil, err
	}
	rest := toks[colon+1:]
	if len(rest) == 0 {
		return nil, diagf(ErrSyntax, toks[colon].Pos, "empty bound list for `%s`; expected at least one trait", ty)
	}
	pred := &BoundPredicate{Bounded: ty, Pos: first.Pos, toks: toks}
	start := 0
	depth = 0
	for i := 0; i <= len(rest); i++ {
		if i < len(rest) {
			t := rest[i]
			if t.IsPunct("<") {
				depth++
			} else if t.IsPunct(">") {
				depth--
			}
			if !(t.IsPunct("+") && depth == 0) {
				continue
			}
		}
		bound := rest[start:i]
		if len(bound) == 0 {
			pos := toks[colon].Pos
			if i < len(rest) {
				pos = rest[i].Pos
			}
			return nil, diagf(ErrSyntax, pos, "expected trait bound in `%s`", TokensString(toks))
		}
		switch {
		case bound[0].Kind == TokenLifetime:
			return nil, diagf(ErrSyntax, bound[0].Pos, "lifetime bounds are not supported in `bound(...)`, only trait bounds are")
		case bound[0].IsIdent("for"):
			return nil, diagf(ErrSyntax, bound[0].Pos, "higher-ranked trait bounds are not supported in `bound(...)`")
		}
		pred.Bounds = append(pred.Bounds, TokensString(bound))
		start = i + 1
	}
	return pred, nil
}

// applyOverrides combines inferred bounds with override predicates. Each
// override must mention at least one of the item's type parameters. Inferred
// entries whose bounded type mentions a parameter named by any override are
// discarded; the overrides follow the remaining entries, verbatim.
func applyOverrides(g *Generics, itemName string, inferred *BoundSet, overrides []*BoundPredicate) ([]*CodeBlock, error) {
	var overridden []string
	for _, o := range overrides {
		params := g.TypeParamsIn(o.Bounded)
		if len(params) == 0 {
			toks := o.Bounded.Tokens()
			if len(toks) == 1 && toks[0].Kind == TokenIdent {
				return nil, diagf(ErrReference, o.Pos, "unknown generic type parameter `%s` in bound; `%s` declares no such parameter", o.Bounded, itemName)
			}
			return nil, diagf(ErrReference, o.Pos, "bound on `%s` does not mention any generic type parameter of `%s`", o.Bounded, itemName)
		}
		overridden = append(overridden, params...)
	}
	var preds []*CodeBlock
	for _, ty := range inferred.BoundedTypes() {
		if ty.MentionsAny(overridden) {
			continue
		}
		preds = append(preds, inferred.predicate(ty.String()))
	}
	for _, o := range overrides {
		preds = append(preds, Print(o.String()))
	}
	return preds, nil
}

// inferFieldBound records "FieldTy: Trait" if the field's type mentions one
// of the item's type parameters.
func inferFieldBound(b *BoundSet, g *Generics, f *Field, trait TraitTag) {
	if len(g.TypeParamsIn(f.Type)) == 0 {
		return
	}
	b.Add(f.Type, trait.Symbol())
}
