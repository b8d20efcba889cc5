package derivepoet

import (
	"strings"
)

// TypeKind is an enumeration of the categories of Types that the generator
// needs to tell apart.
type TypeKind int

const (
	KindInvalid TypeKind = iota
	// The type is a tuple, written as a parenthesized list with at least one
	// top-level comma, or the unit type "()". The type's Elems() method
	// returns the components. A parenthesized type without a comma, like
	// "(T)", is not a tuple.
	KindTuple
	// The type is a reference, like "&T" or "&'a mut T". The type's Elem()
	// method returns the referenced type.
	KindRef
	// The type is a path, possibly qualified and possibly with generic
	// arguments, like "Vec<T>" or "::core::option::Option<u8>".
	KindPath
	// Any other type: arrays, slices, pointers, function pointers, trait
	// objects, and so on. Only the tokens are available.
	KindOther
)

// Type is a Rust type, nominally. It keeps the tokens it was spelled with and
// enough structure to decompose tuples and references. It is not suitable for
// any kind of type analysis.
type Type struct {
	toks  []Token
	kind  TypeKind
	elems []*Type
}

// ParseType parses a type from its tokens.
func ParseType(toks []Token) (*Type, error) {
	if len(toks) == 0 {
		return nil, diagf(ErrSyntax, Pos{}, "expected type, found end of input")
	}
	t := &Type{toks: toks, kind: KindOther}
	first := toks[0]
	switch {
	case len(toks) == 1 && first.IsGroup(DelimParen):
		parts, err := SplitTopLevel(first.Inner, true)
		if err != nil {
			return nil, err
		}
		inner := first.Inner
		isTuple := len(inner) == 0 || len(parts) > 1 || inner[len(inner)-1].IsPunct(",")
		if !isTuple {
			break
		}
		t.kind = KindTuple
		for _, p := range parts {
			e, err := ParseType(p)
			if err != nil {
				return nil, err
			}
			t.elems = append(t.elems, e)
		}
	case first.IsPunct("&") || first.IsPunct("&&"):
		rest := toks[1:]
		if len(rest) > 0 && rest[0].Kind == TokenLifetime {
			rest = rest[1:]
		}
		if len(rest) > 0 && rest[0].IsIdent("mut") {
			rest = rest[1:]
		}
		if len(rest) == 0 {
			return nil, diagf(ErrSyntax, first.Pos, "expected type after `&`")
		}
		elem, err := ParseType(rest)
		if err != nil {
			return nil, err
		}
		t.kind = KindRef
		t.elems = []*Type{elem}
	case first.Kind == TokenIdent || first.IsPunct("::") || first.IsPunct("<"):
		if first.Kind == TokenIdent && (first.Text == "dyn" || first.Text == "impl" || first.Text == "fn" || first.Text == "unsafe" || first.Text == "extern") {
			break
		}
		t.kind = KindPath
	}
	return t, nil
}

// NewType lexes and parses the given type text.
func NewType(s string) (*Type, error) {
	toks, err := Lex(s, Pos{})
	if err != nil {
		return nil, err
	}
	return ParseType(toks)
}

// MustType is like NewType but panics if s is not a valid type.
func MustType(s string) *Type {
	t, err := NewType(s)
	if err != nil {
		panic(err)
	}
	return t
}

// TupleType returns a tuple of the given types. A single element gets a
// trailing comma, so it remains a tuple.
func TupleType(elems ...*Type) *Type {
	var inner []Token
	for i, e := range elems {
		if i > 0 {
			inner = append(inner, Punct(","))
		}
		inner = append(inner, spaced(e.toks, i > 0)...)
	}
	if len(elems) == 1 {
		inner = append(inner, Punct(","))
	}
	return &Type{
		toks:  []Token{{Kind: TokenGroup, Delim: DelimParen, Inner: inner}},
		kind:  KindTuple,
		elems: elems,
	}
}

// RefType returns a reference to elem with the given (possibly empty)
// lifetime.
func RefType(lifetime string, mutable bool, elem *Type) *Type {
	toks := []Token{Punct("&")}
	if lifetime != "" {
		toks = append(toks, Token{Kind: TokenLifetime, Text: lifetime})
	}
	if mutable {
		toks = append(toks, Token{Kind: TokenIdent, Text: "mut", SpaceBefore: lifetime != ""})
	}
	toks = append(toks, spaced(elem.toks, lifetime != "" || mutable)...)
	return &Type{toks: toks, kind: KindRef, elems: []*Type{elem}}
}

// spaced returns toks with the SpaceBefore flag of the first token set to sp.
func spaced(toks []Token, sp bool) []Token {
	if len(toks) == 0 || toks[0].SpaceBefore == sp {
		return toks
	}
	cp := make([]Token, len(toks))
	copy(cp, toks)
	cp[0].SpaceBefore = sp
	return cp
}

func (t *Type) Kind() TypeKind {
	return t.kind
}

// Elems returns the components of a tuple type, or nil for other kinds.
func (t *Type) Elems() []*Type {
	if t.kind != KindTuple {
		return nil
	}
	return t.elems
}

// Elem returns the referenced type of a reference, or nil for other kinds.
func (t *Type) Elem() *Type {
	if t.kind != KindRef {
		return nil
	}
	return t.elems[0]
}

// Tokens returns the tokens the type is spelled with.
func (t *Type) Tokens() []Token {
	return t.toks
}

// Pos returns the position of the type's first token.
func (t *Type) Pos() Pos {
	if len(t.toks) == 0 {
		return Pos{}
	}
	return t.toks[0].Pos
}

func (t *Type) String() string {
	return TokensString(t.toks)
}

// Mentions reports whether the type refers to the given generic parameter.
// Lifetimes are named with their leading quote. An identifier that follows
// "::" is a path segment, not a parameter, so "Foo::T" does not mention T
// but "T::Item" does.
func (t *Type) Mentions(name string) bool {
	return mentions(t.toks, name)
}

// MentionsAny reports whether the type refers to any of the given names.
func (t *Type) MentionsAny(names []string) bool {
	for _, n := range names {
		if t.Mentions(n) {
			return true
		}
	}
	return false
}

func mentions(toks []Token, name string) bool {
	lifetime := strings.HasPrefix(name, "'")
	for i, tok := range toks {
		switch tok.Kind {
		case TokenGroup:
			if mentions(tok.Inner, name) {
				return true
			}
		case TokenLifetime:
			if lifetime && tok.Text == name {
				return true
			}
		case TokenIdent:
			if !lifetime && tok.Text == name && (i == 0 || !toks[i-1].IsPunct("::")) {
				return true
			}
		}
	}
	return false
}

// typesString joins types with ", ".
func typesString(tys []*Type) string {
	strs := make([]string, len(tys))
	for i, ty := range tys {
		strs[i] = ty.String()
	}
	return strings.Join(strs, ", ")
}

// tupleString renders types the way a generated impl spells a field tuple:
// "()" for none, the bare type for one, and a parenthesized list otherwise.
func tupleString(tys []string) string {
	if len(tys) == 1 {
		return tys[0]
	}
	return "(" + strings.Join(tys, ", ") + ")"
}
