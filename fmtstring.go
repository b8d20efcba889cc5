package derivepoet

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TraitTag identifies one of the formatting traits of core::fmt.
type TraitTag int

const (
	TraitDisplay TraitTag = iota
	TraitDebug
	TraitBinary
	TraitOctal
	TraitLowerHex
	TraitUpperHex
	TraitLowerExp
	TraitUpperExp
	TraitPointer
)

type traitInfo struct {
	name string
	// attribute name, like "lower_hex"
	attr string
	// format spec type, like "x"
	spec string
}

// traits is indexed by TraitTag.
var traits = func() []traitInfo {
	specs := []struct{ name, spec string }{
		{"Display", ""},
		{"Debug", "?"},
		{"Binary", "b"},
		{"Octal", "o"},
		{"LowerHex", "x"},
		{"UpperHex", "X"},
		{"LowerExp", "e"},
		{"UpperExp", "E"},
		{"Pointer", "p"},
	}
	ret := make([]traitInfo, len(specs))
	for i, s := range specs {
		ret[i] = traitInfo{name: s.name, attr: SnakeCase(s.name), spec: s.spec}
	}
	return ret
}()

// AllTraits returns every formatting trait, in declaration order.
func AllTraits() []TraitTag {
	ret := make([]TraitTag, len(traits))
	for i := range traits {
		ret[i] = TraitTag(i)
	}
	return ret
}

func (t TraitTag) String() string {
	return traits[t].name
}

// AttrName returns the name of the attribute that configures the derivation
// of the trait, such as "lower_hex" for LowerHex.
func (t TraitTag) AttrName() string {
	return traits[t].attr
}

// Symbol returns the trait's path in core::fmt.
func (t TraitTag) Symbol() Symbol {
	return ModuleFmt.Symbol(traits[t].name)
}

// TraitByName returns the trait with the given name, such as "LowerHex".
func TraitByName(name string) (TraitTag, bool) {
	for i, info := range traits {
		if info.name == name {
			return TraitTag(i), true
		}
	}
	return 0, false
}

// TraitByAttr returns the trait configured by the given attribute name.
func TraitByAttr(attr string) (TraitTag, bool) {
	for i, info := range traits {
		if info.attr == attr {
			return TraitTag(i), true
		}
	}
	return 0, false
}

// traitForSpecType maps the type part of a format spec to its trait.
func traitForSpecType(ty string) (TraitTag, bool) {
	switch ty {
	case "":
		return TraitDisplay, true
	case "?", "x?", "X?":
		return TraitDebug, true
	}
	for i, info := range traits {
		if info.spec == ty {
			return TraitTag(i), true
		}
	}
	return 0, false
}

// ArgKind distinguishes positional and named argument references.
type ArgKind int

const (
	ArgPositional ArgKind = iota
	ArgNamed
)

// ArgumentRef refers to a format argument by position or by name.
type ArgumentRef struct {
	Kind  ArgKind
	Index int
	Name  string
}

func Positional(i int) ArgumentRef {
	return ArgumentRef{Kind: ArgPositional, Index: i}
}

func Named(name string) ArgumentRef {
	return ArgumentRef{Kind: ArgNamed, Name: name}
}

func (a ArgumentRef) String() string {
	if a.Kind == ArgNamed {
		return a.Name
	}
	return strconv.Itoa(a.Index)
}

// Align is the alignment of a padded placeholder.
type Align int

const (
	AlignNone Align = iota
	AlignLeft
	AlignCenter
	AlignRight
)

// Sign is the sign flag of a format spec.
type Sign int

const (
	SignNone Sign = iota
	SignPlus
	SignMinus
)

// CountKind describes how a width or precision is given.
type CountKind int

const (
	// A literal number, like the 5 in "{:5}".
	CountLiteral CountKind = iota
	// A reference to an argument, like "{:1$}" or "{:w$}".
	CountArg
	// The precision "*", which takes the next implicit argument.
	CountStar
)

// Count is a width or precision.
type Count struct {
	Kind  CountKind
	Value int
	// Arg is the argument a CountArg refers to. For CountStar it is the
	// implicit position that was consumed.
	Arg ArgumentRef
}

// FormatSpec is everything after the ':' of a placeholder.
type FormatSpec struct {
	// Fill is the padding character, or zero for the default (a space).
	Fill      rune
	Align     Align
	Sign      Sign
	Alternate bool
	ZeroPad   bool
	Width     *Count
	Precision *Count
	// Type is the trait selector as written: "", "?", "x?", "x", and so on.
	Type string
}

// Placeholder is one "{...}" in a format template.
type Placeholder struct {
	// Arg is the argument whose value is formatted.
	Arg ArgumentRef
	// Implicit is true when the placeholder names no argument and took the
	// next position.
	Implicit bool
	// Width and Precision are the arguments that supply the width and
	// precision, if they come from arguments.
	Width     *ArgumentRef
	Precision *ArgumentRef
	Trait     TraitTag
	Spec      FormatSpec
	// Offset is the byte offset of the opening brace in the template.
	Offset int
	// Text is the placeholder as written, braces included.
	Text string
}

// Segment is a piece of a format template: either literal text (with "{{"
// and "}}" already unescaped) or a placeholder.
type Segment struct {
	Literal     string
	Placeholder *Placeholder
}

// FormatTemplate is a parsed format string. It is immutable once parsed.
type FormatTemplate struct {
	// Source is the template text (the value of the string literal).
	Source   string
	Segments []Segment
	Pos      Pos
}

// ParseFormatTemplate parses a format string. The position is that of the
// string literal and is used for errors.
func ParseFormatTemplate(src string, pos Pos) (*FormatTemplate, error) {
	p := &fmtParser{src: src, pos: pos}
	if err := p.parse(); err != nil {
		return nil, err
	}
	return &FormatTemplate{Source: src, Segments: p.segs, Pos: pos}, nil
}

// Placeholders returns the template's placeholders, in order.
func (t *FormatTemplate) Placeholders() []*Placeholder {
	var ret []*Placeholder
	for _, s := range t.Segments {
		if s.Placeholder != nil {
			ret = append(ret, s.Placeholder)
		}
	}
	return ret
}

// ImplicitCount returns how many implicit positions the template consumes.
func (t *FormatTemplate) ImplicitCount() int {
	n := 0
	for _, ph := range t.Placeholders() {
		if ph.Implicit {
			n++
		}
		if ph.Spec.Precision != nil && ph.Spec.Precision.Kind == CountStar {
			n++
		}
	}
	return n
}

func (t *FormatTemplate) String() string {
	return t.Source
}

type fmtParser struct {
	src  string
	off  int
	pos  Pos
	next int
	segs []Segment
	lit  strings.Builder
}

func (p *fmtParser) errorf(format string, args ...interface{}) error {
	return diagf(ErrSyntax, p.pos, "invalid format string: "+format, args...)
}

func (p *fmtParser) flushLiteral() {
	if p.lit.Len() > 0 {
		p.segs = append(p.segs, Segment{Literal: p.lit.String()})
		p.lit.Reset()
	}
}

func (p *fmtParser) parse() error {
	for p.off < len(p.src) {
		c := p.src[p.off]
		switch {
		case c == '{' && strings.HasPrefix(p.src[p.off:], "{{"):
			p.lit.WriteByte('{')
			p.off += 2
		case c == '}' && strings.HasPrefix(p.src[p.off:], "}}"):
			p.lit.WriteByte('}')
			p.off += 2
		case c == '}':
			return p.errorf("unmatched `}` found")
		case c == '{':
			p.flushLiteral()
			ph, err := p.placeholder()
			if err != nil {
				return err
			}
			p.segs = append(p.segs, Segment{Placeholder: ph})
		default:
			p.lit.WriteByte(c)
			p.off++
		}
	}
	p.flushLiteral()
	return nil
}

func (p *fmtParser) peek() rune {
	if p.off >= len(p.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(p.src[p.off:])
	return r
}

func (p *fmtParser) peekAt(n int) rune {
	off := p.off
	for ; n > 0 && off < len(p.src); n-- {
		_, sz := utf8.DecodeRuneInString(p.src[off:])
		off += sz
	}
	if off >= len(p.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(p.src[off:])
	return r
}

func (p *fmtParser) advance() rune {
	r, sz := utf8.DecodeRuneInString(p.src[p.off:])
	p.off += sz
	return r
}

func (p *fmtParser) consume(r rune) bool {
	if p.off < len(p.src) && p.peek() == r {
		p.advance()
		return true
	}
	return false
}

// integer reads a decimal number, if there is one.
func (p *fmtParser) integer() (int, bool, error) {
	start := p.off
	for p.off < len(p.src) && p.src[p.off] >= '0' && p.src[p.off] <= '9' {
		p.off++
	}
	if p.off == start {
		return 0, false, nil
	}
	v, err := strconv.Atoi(p.src[start:p.off])
	if err != nil {
		return 0, false, p.errorf("number `%s` is too large", p.src[start:p.off])
	}
	return v, true, nil
}

// identifier reads an identifier, if there is one.
func (p *fmtParser) identifier() string {
	start := p.off
	if !isIdentStart(p.peek()) {
		return ""
	}
	for p.off < len(p.src) && isIdentContinue(p.peek()) {
		p.advance()
	}
	return p.src[start:p.off]
}

func (p *fmtParser) placeholder() (*Placeholder, error) {
	start := p.off
	p.off++ // '{'
	ph := &Placeholder{Offset: start}

	var arg *ArgumentRef
	if n, ok, err := p.integer(); err != nil {
		return nil, err
	} else if ok {
		ref := Positional(n)
		arg = &ref
	} else if name := p.identifier(); name != "" {
		if name == "_" {
			return nil, p.errorf("invalid argument name `_`")
		}
		ref := Named(name)
		arg = &ref
	}

	if p.consume(':') {
		if err := p.spec(&ph.Spec); err != nil {
			return nil, err
		}
	}
	for p.off < len(p.src) && unicode.IsSpace(p.peek()) {
		p.advance()
	}
	if p.off >= len(p.src) {
		return nil, p.errorf("expected `}` but string was terminated")
	}
	if !p.consume('}') {
		return nil, p.errorf("expected `}`, found `%c`", p.peek())
	}
	ph.Text = p.src[start:p.off]

	trait, ok := traitForSpecType(ph.Spec.Type)
	if !ok {
		return nil, diagf(ErrSyntax, p.pos, "unknown format trait `%s`", ph.Spec.Type)
	}
	ph.Trait = trait

	// "{:.*}" takes the precision from the next position, before the value
	if prec := ph.Spec.Precision; prec != nil {
		if prec.Kind == CountStar {
			prec.Arg = Positional(p.next)
			p.next++
		}
		if prec.Kind != CountLiteral {
			ref := prec.Arg
			ph.Precision = &ref
		}
	}
	if w := ph.Spec.Width; w != nil && w.Kind == CountArg {
		ref := w.Arg
		ph.Width = &ref
	}
	if arg != nil {
		ph.Arg = *arg
	} else {
		ph.Arg = Positional(p.next)
		ph.Implicit = true
		p.next++
	}
	return ph, nil
}

func isAlign(r rune) bool {
	return r == '<' || r == '^' || r == '>'
}

func alignOf(r rune) Align {
	switch r {
	case '<':
		return AlignLeft
	case '^':
		return AlignCenter
	default:
		return AlignRight
	}
}

func (p *fmtParser) spec(spec *FormatSpec) error {
	// [[fill]align]
	if first := p.peek(); first != 0 && isAlign(p.peekAt(1)) {
		p.advance()
		spec.Fill = first
		spec.Align = alignOf(p.advance())
	} else if isAlign(first) {
		spec.Align = alignOf(p.advance())
	}
	// [sign]
	if p.consume('+') {
		spec.Sign = SignPlus
	} else if p.consume('-') {
		spec.Sign = SignMinus
	}
	// ['#']
	if p.consume('#') {
		spec.Alternate = true
	}
	// ['0'], unless it is the width parameter "0$"
	haveWidth := false
	if p.peek() == '0' {
		if p.peekAt(1) == '$' {
			p.off += 2
			spec.Width = &Count{Kind: CountArg, Arg: Positional(0)}
			haveWidth = true
		} else {
			p.off++
			spec.ZeroPad = true
		}
	}
	// [width]
	if !haveWidth {
		c, err := p.count()
		if err != nil {
			return err
		}
		spec.Width = c
	}
	// ['.' precision]
	if p.consume('.') {
		if p.consume('*') {
			spec.Precision = &Count{Kind: CountStar}
		} else {
			c, err := p.count()
			if err != nil {
				return err
			}
			if c == nil {
				return p.errorf("expected precision after `.`")
			}
			spec.Precision = c
		}
	}
	// type
	start := p.off
	if p.consume('?') {
		spec.Type = "?"
		return nil
	}
	if name := p.identifier(); name != "" {
		if (name == "x" || name == "X") && p.consume('?') {
			spec.Type = name + "?"
			return nil
		}
		spec.Type = name
		return nil
	}
	if p.off < len(p.src) && p.peek() != '}' && !unicode.IsSpace(p.peek()) {
		p.off = start
		return p.errorf("expected `}`, found `%c`", p.peek())
	}
	return nil
}

// count reads "N", "N$", or "name$". A bare identifier is left in place:
// it is the type selector.
func (p *fmtParser) count() (*Count, error) {
	n, ok, err := p.integer()
	if err != nil {
		return nil, err
	}
	if ok {
		if p.consume('$') {
			return &Count{Kind: CountArg, Arg: Positional(n)}, nil
		}
		return &Count{Kind: CountLiteral, Value: n}, nil
	}
	save := p.off
	if name := p.identifier(); name != "" {
		if p.consume('$') {
			return &Count{Kind: CountArg, Arg: Named(name)}, nil
		}
		p.off = save
	}
	return nil, nil
}
