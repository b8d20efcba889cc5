package derivepoet

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Pos is a location in annotated source. Lines and columns are 1-based and
// columns count runes, not bytes. The zero value is an unknown position.
type Pos struct {
	File   string
	Line   int
	Column int
}

// IsValid returns true if p refers to an actual location.
func (p Pos) IsValid() bool {
	return p.Line > 0
}

func (p Pos) String() string {
	if !p.IsValid() {
		if p.File != "" {
			return p.File
		}
		return "-"
	}
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Offset returns the position n runes to the right of p on the same line.
func (p Pos) Offset(n int) Pos {
	if !p.IsValid() {
		return p
	}
	p.Column += n
	return p
}

// TokenKind is an enumeration of the categories of lexical tokens.
type TokenKind int

const (
	TokenInvalid TokenKind = iota
	// An identifier or keyword. Raw identifiers keep their "r#" prefix in
	// the token's text.
	TokenIdent
	// A lifetime, such as 'a or 'static. The text includes the quote.
	TokenLifetime
	// A string literal (plain, raw, or byte). The token's Value holds the
	// unescaped contents.
	TokenString
	// A numeric literal, including any suffix.
	TokenNumber
	// A character or byte literal.
	TokenChar
	// Punctuation. Multi-character operators like "::" and "->" are a single
	// token.
	TokenPunct
	// A delimited group. The token's Delim describes the delimiters and Inner
	// holds the tokens between them.
	TokenGroup
)

func (k TokenKind) String() string {
	switch k {
	case TokenIdent:
		return "identifier"
	case TokenLifetime:
		return "lifetime"
	case TokenString:
		return "string literal"
	case TokenNumber:
		return "number"
	case TokenChar:
		return "character literal"
	case TokenPunct:
		return "punctuation"
	case TokenGroup:
		return "group"
	default:
		return "invalid token"
	}
}

// Delimiter identifies the brackets around a group token.
type Delimiter int

const (
	DelimNone Delimiter = iota
	DelimParen
	DelimBracket
	DelimBrace
)

func (d Delimiter) open() string {
	switch d {
	case DelimParen:
		return "("
	case DelimBracket:
		return "["
	case DelimBrace:
		return "{"
	}
	return ""
}

func (d Delimiter) close() string {
	switch d {
	case DelimParen:
		return ")"
	case DelimBracket:
		return "]"
	case DelimBrace:
		return "}"
	}
	return ""
}

// Token is one node of a token tree.
type Token struct {
	Kind TokenKind
	// Text is the token as written in source. It is empty for groups.
	Text string
	// Value is the unescaped contents of a string literal.
	Value string
	Delim Delimiter
	Inner []Token
	Pos   Pos
	// SpaceBefore records whether whitespace separated this token from the
	// one before it, so that printed tokens keep the original spacing.
	SpaceBefore bool
}

// Ident returns an identifier token with the given name.
func Ident(name string) Token {
	return Token{Kind: TokenIdent, Text: name}
}

// Punct returns a punctuation token.
func Punct(p string) Token {
	return Token{Kind: TokenPunct, Text: p}
}

// IsIdent returns true if t is the identifier name.
func (t Token) IsIdent(name string) bool {
	return t.Kind == TokenIdent && t.Text == name
}

// IsPunct returns true if t is the punctuation p.
func (t Token) IsPunct(p string) bool {
	return t.Kind == TokenPunct && t.Text == p
}

// IsGroup returns true if t is a group with the given delimiters.
func (t Token) IsGroup(d Delimiter) bool {
	return t.Kind == TokenGroup && t.Delim == d
}

func (t Token) String() string {
	if t.Kind == TokenGroup {
		return t.Delim.open() + TokensString(t.Inner) + t.Delim.close()
	}
	return t.Text
}

// TokensString prints tokens the way they were spelled in source, with a
// single space wherever the source had whitespace.
func TokensString(toks []Token) string {
	var sb strings.Builder
	for i, t := range toks {
		if i > 0 && t.SpaceBefore {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.String())
	}
	return sb.String()
}

// multi-character punctuation, longest first
var puncts = []string{
	"..=", "...",
	"::", "->", "=>", "==", "!=", "<=", ">=", "&&", "||", "..",
	"+=", "-=", "*=", "/=", "%=", "^=", "&=", "|=",
}

// Lex tokenizes Rust token text, such as the arguments of an attribute or the
// spelling of a type. The start position is the location of the first byte
// of src; it is used to position every token.
func Lex(src string, start Pos) ([]Token, error) {
	if !start.IsValid() {
		start.Line, start.Column = 1, 1
	}
	l := &lexer{src: src, pos: start}
	return l.lexGroup(DelimNone, start)
}

type lexer struct {
	src string
	off int
	pos Pos
}

func (l *lexer) eof() bool {
	return l.off >= len(l.src)
}

func (l *lexer) peekAt(n int) rune {
	off := l.off
	for ; n > 0 && off < len(l.src); n-- {
		_, sz := utf8.DecodeRuneInString(l.src[off:])
		off += sz
	}
	if off >= len(l.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[off:])
	return r
}

func (l *lexer) peek() rune {
	return l.peekAt(0)
}

func (l *lexer) next() rune {
	r, sz := utf8.DecodeRuneInString(l.src[l.off:])
	l.off += sz
	if r == '\n' {
		l.pos.Line++
		l.pos.Column = 1
	} else {
		l.pos.Column++
	}
	return r
}

func (l *lexer) skipSpace() (bool, error) {
	skipped := false
	for !l.eof() {
		r := l.peek()
		switch {
		case unicode.IsSpace(r):
			l.next()
		case r == '/' && l.peekAt(1) == '/':
			for !l.eof() && l.peek() != '\n' {
				l.next()
			}
		case r == '/' && l.peekAt(1) == '*':
			start := l.pos
			l.next()
			l.next()
			depth := 1
			for depth > 0 {
				if l.eof() {
					return false, diagf(ErrSyntax, start, "unterminated block comment")
				}
				switch {
				case l.peek() == '*' && l.peekAt(1) == '/':
					l.next()
					l.next()
					depth--
				case l.peek() == '/' && l.peekAt(1) == '*':
					l.next()
					l.next()
					depth++
				default:
					l.next()
				}
			}
		default:
			return skipped, nil
		}
		skipped = true
	}
	return skipped, nil
}

func (l *lexer) lexGroup(delim Delimiter, open Pos) ([]Token, error) {
	var toks []Token
	for {
		space, err := l.skipSpace()
		if err != nil {
			return nil, err
		}
		if l.eof() {
			if delim != DelimNone {
				return nil, diagf(ErrSyntax, open, "unclosed delimiter `%s`", delim.open())
			}
			return toks, nil
		}
		start := l.pos
		r := l.peek()
		var tok Token
		switch {
		case r == ')' || r == ']' || r == '}':
			l.next()
			if delim == DelimNone || string(r) != delim.close() {
				return nil, diagf(ErrSyntax, start, "unexpected closing delimiter `%c`", r)
			}
			return toks, nil
		case r == '(' || r == '[' || r == '{':
			l.next()
			d := map[rune]Delimiter{'(': DelimParen, '[': DelimBracket, '{': DelimBrace}[r]
			inner, err := l.lexGroup(d, start)
			if err != nil {
				return nil, err
			}
			tok = Token{Kind: TokenGroup, Delim: d, Inner: inner}
		case r == '"':
			tok, err = l.lexString(0)
		case r == 'r' && (l.peekAt(1) == '"' || (l.peekAt(1) == '#' && (l.peekAt(2) == '"' || l.peekAt(2) == '#'))):
			tok, err = l.lexRawString(1)
		case r == 'b' && l.peekAt(1) == '"':
			tok, err = l.lexString(1)
		case r == 'b' && l.peekAt(1) == 'r' && (l.peekAt(2) == '"' || l.peekAt(2) == '#'):
			tok, err = l.lexRawString(2)
		case r == 'b' && l.peekAt(1) == '\'':
			l.next()
			tok, err = l.lexCharOrLifetime()
			tok.Text = "b" + tok.Text
		case r == '\'':
			tok, err = l.lexCharOrLifetime()
		case r == 'r' && l.peekAt(1) == '#' && isIdentStart(l.peekAt(2)):
			l.next()
			l.next()
			tok = Token{Kind: TokenIdent, Text: "r#" + l.lexIdentText()}
		case isIdentStart(r):
			tok = Token{Kind: TokenIdent, Text: l.lexIdentText()}
		case r >= '0' && r <= '9':
			tok = l.lexNumber()
		default:
			tok = l.lexPunct()
		}
		if err != nil {
			return nil, err
		}
		tok.Pos = start
		tok.SpaceBefore = space
		toks = append(toks, tok)
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentContinue(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (l *lexer) lexIdentText() string {
	start := l.off
	for !l.eof() && isIdentContinue(l.peek()) {
		l.next()
	}
	return l.src[start:l.off]
}

func (l *lexer) lexNumber() Token {
	start := l.off
	for !l.eof() {
		r := l.peek()
		switch {
		case isIdentContinue(r):
			l.next()
		case r == '.' && l.peekAt(1) >= '0' && l.peekAt(1) <= '9':
			l.next()
		case (r == '+' || r == '-') && l.off > start && isExponentMarker(l.src[start:l.off]):
			l.next()
		default:
			return Token{Kind: TokenNumber, Text: l.src[start:l.off]}
		}
	}
	return Token{Kind: TokenNumber, Text: l.src[start:l.off]}
}

// isExponentMarker reports whether a decimal literal so far ends in an
// exponent marker, so that a following sign belongs to the literal.
func isExponentMarker(lit string) bool {
	last := lit[len(lit)-1]
	if last != 'e' && last != 'E' {
		return false
	}
	return strings.Trim(lit[:len(lit)-1], "0123456789._") == "" && len(lit) > 1
}

func (l *lexer) lexPunct() Token {
	rest := l.src[l.off:]
	for _, p := range puncts {
		if strings.HasPrefix(rest, p) {
			for range p {
				l.next()
			}
			return Token{Kind: TokenPunct, Text: p}
		}
	}
	r := l.next()
	return Token{Kind: TokenPunct, Text: string(r)}
}

func (l *lexer) lexCharOrLifetime() (Token, error) {
	start := l.pos
	from := l.off
	l.next() // opening quote
	if l.eof() {
		return Token{}, diagf(ErrSyntax, start, "unterminated character literal")
	}
	if l.peek() == '\\' {
		for !l.eof() && l.peek() != '\'' && l.peek() != '\n' {
			if l.next() == '\\' && !l.eof() {
				l.next()
			}
		}
		if l.eof() || l.peek() != '\'' {
			return Token{}, diagf(ErrSyntax, start, "unterminated character literal")
		}
		l.next()
		return Token{Kind: TokenChar, Text: l.src[from:l.off]}, nil
	}
	first := l.next()
	if !l.eof() && l.peek() == '\'' {
		l.next()
		return Token{Kind: TokenChar, Text: l.src[from:l.off]}, nil
	}
	if !isIdentStart(first) {
		return Token{}, diagf(ErrSyntax, start, "unterminated character literal")
	}
	l.lexIdentText()
	return Token{Kind: TokenLifetime, Text: l.src[from:l.off]}, nil
}

// lexString lexes a quoted string literal. prefix is the number of prefix
// runes (such as the "b" of a byte string) before the opening quote.
func (l *lexer) lexString(prefix int) (Token, error) {
	start := l.pos
	from := l.off
	for i := 0; i < prefix; i++ {
		l.next()
	}
	l.next() // opening quote
	for {
		if l.eof() {
			return Token{}, diagf(ErrSyntax, start, "unterminated string literal")
		}
		r := l.next()
		if r == '\\' {
			if l.eof() {
				return Token{}, diagf(ErrSyntax, start, "unterminated string literal")
			}
			l.next()
			continue
		}
		if r == '"' {
			break
		}
	}
	text := l.src[from:l.off]
	body := text[prefix+1 : len(text)-1]
	val, err := unescape(body, start.Offset(prefix+1))
	if err != nil {
		return Token{}, err
	}
	return Token{Kind: TokenString, Text: text, Value: val}, nil
}

// lexRawString lexes r"..." and r#"..."# literals. prefix counts the runes
// before the hashes (1 for "r", 2 for "br").
func (l *lexer) lexRawString(prefix int) (Token, error) {
	start := l.pos
	from := l.off
	for i := 0; i < prefix; i++ {
		l.next()
	}
	hashes := 0
	for !l.eof() && l.peek() == '#' {
		l.next()
		hashes++
	}
	if l.eof() || l.peek() != '"' {
		return Token{}, diagf(ErrSyntax, start, "expected `\"` in raw string literal")
	}
	l.next()
	terminator := "\"" + strings.Repeat("#", hashes)
	bodyStart := l.off
	for {
		if l.eof() {
			return Token{}, diagf(ErrSyntax, start, "unterminated raw string literal")
		}
		if strings.HasPrefix(l.src[l.off:], terminator) {
			body := l.src[bodyStart:l.off]
			for range terminator {
				l.next()
			}
			return Token{Kind: TokenString, Text: l.src[from:l.off], Value: body}, nil
		}
		l.next()
	}
}

// unescape processes the escape sequences of a non-raw string literal body.
func unescape(s string, pos Pos) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var sb strings.Builder
	for i := 0; i < len(s); {
		c := s[i]
		if c != '\\' {
			r, sz := utf8.DecodeRuneInString(s[i:])
			sb.WriteRune(r)
			i += sz
			continue
		}
		if i+1 >= len(s) {
			return "", diagf(ErrSyntax, pos, "invalid trailing backslash in string literal")
		}
		esc := s[i+1]
		i += 2
		switch esc {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\':
			sb.WriteByte('\\')
		case '0':
			sb.WriteByte(0)
		case '\'':
			sb.WriteByte('\'')
		case '"':
			sb.WriteByte('"')
		case 'x':
			if i+2 > len(s) {
				return "", diagf(ErrSyntax, pos, "invalid `\\x` escape in string literal")
			}
			v, err := strconv.ParseUint(s[i:i+2], 16, 8)
			if err != nil {
				return "", diagf(ErrSyntax, pos, "invalid `\\x` escape in string literal")
			}
			sb.WriteByte(byte(v))
			i += 2
		case 'u':
			end := strings.IndexByte(s[i:], '}')
			if i >= len(s) || s[i] != '{' || end < 0 {
				return "", diagf(ErrSyntax, pos, "invalid `\\u` escape in string literal")
			}
			digits := strings.ReplaceAll(s[i+1:i+end], "_", "")
			v, err := strconv.ParseUint(digits, 16, 32)
			if err != nil || !utf8.ValidRune(rune(v)) {
				return "", diagf(ErrSyntax, pos, "invalid `\\u` escape in string literal")
			}
			sb.WriteRune(rune(v))
			i += end + 1
		case '\n':
			// line continuation: skip the newline and leading whitespace
			for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
				i++
			}
		case '\r':
			if i < len(s) && s[i] == '\n' {
				i++
			}
			for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
				i++
			}
		default:
			return "", diagf(ErrSyntax, pos, "unknown character escape `\\%c`", esc)
		}
	}
	return sb.String(), nil
}

// Cursor walks a token slice. Forking a cursor allows speculative parsing:
// the fork is advanced freely, and the original only moves if AdvanceTo is
// called with the fork.
type Cursor struct {
	toks []Token
	idx  int
	// position reported once the tokens are exhausted
	end Pos
}

// NewCursor returns a cursor over toks. The end position is used for errors
// about missing input after the last token.
func NewCursor(toks []Token, end Pos) *Cursor {
	return &Cursor{toks: toks, end: end}
}

// Fork returns an independent copy of c.
func (c *Cursor) Fork() *Cursor {
	cp := *c
	return &cp
}

// AdvanceTo moves c to where fork f is. The fork must have been created from c.
func (c *Cursor) AdvanceTo(f *Cursor) {
	c.idx = f.idx
}

func (c *Cursor) IsEmpty() bool {
	return c.idx >= len(c.toks)
}

func (c *Cursor) Peek() (Token, bool) {
	return c.PeekAt(0)
}

// PeekAt returns the token n positions ahead without consuming anything.
func (c *Cursor) PeekAt(n int) (Token, bool) {
	if c.idx+n >= len(c.toks) {
		return Token{}, false
	}
	return c.toks[c.idx+n], true
}

func (c *Cursor) Next() (Token, bool) {
	t, ok := c.Peek()
	if ok {
		c.idx++
	}
	return t, ok
}

// Pos returns the position of the next token, or the end position if there
// are none left.
func (c *Cursor) Pos() Pos {
	if t, ok := c.Peek(); ok {
		return t.Pos
	}
	return c.end
}

// Rest returns the unconsumed tokens and moves c to the end.
func (c *Cursor) Rest() []Token {
	rest := c.toks[c.idx:]
	c.idx = len(c.toks)
	return rest
}

func (c *Cursor) PeekPunct(p string) bool {
	t, ok := c.Peek()
	return ok && t.IsPunct(p)
}

// EatPunct consumes the next token if it is the punctuation p.
func (c *Cursor) EatPunct(p string) bool {
	if c.PeekPunct(p) {
		c.idx++
		return true
	}
	return false
}

// PeekIdent returns the next token's text if it is an identifier.
func (c *Cursor) PeekIdent() (string, bool) {
	t, ok := c.Peek()
	if !ok || t.Kind != TokenIdent {
		return "", false
	}
	return t.Text, true
}

// EatIdent consumes the next token if it is the identifier name.
func (c *Cursor) EatIdent(name string) bool {
	if t, ok := c.Peek(); ok && t.IsIdent(name) {
		c.idx++
		return true
	}
	return false
}

// unexpected builds an error about the next token (or the end of input).
func (c *Cursor) unexpected(want string) error {
	t, ok := c.Peek()
	if !ok {
		return diagf(ErrSyntax, c.end, "expected %s, found end of input", want)
	}
	return diagf(ErrSyntax, t.Pos, "expected %s, found `%s`", want, t.String())
}

// SplitTopLevel splits toks on commas that are not nested in a group. When
// angleAware is true, commas between unbalanced '<' and '>' (as in generic
// argument lists of types) do not split. A single trailing comma is allowed.
// An empty element between two commas is an error.
func SplitTopLevel(toks []Token, angleAware bool) ([][]Token, error) {
	var parts [][]Token
	depth := 0
	start := 0
	for i, t := range toks {
		if angleAware && t.Kind == TokenPunct {
			switch t.Text {
			case "<":
				depth++
			case ">":
				if depth > 0 {
					depth--
				}
			}
		}
		if depth == 0 && t.IsPunct(",") {
			if i == start {
				return nil, diagf(ErrSyntax, t.Pos, "expected item, found `,`")
			}
			parts = append(parts, toks[start:i])
			start = i + 1
		}
	}
	if start < len(toks) {
		parts = append(parts, toks[start:])
	}
	return parts, nil
}
