package derivepoet

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SnakeCase returns the snake_case form of a PascalCase or camelCase name.
// Runs of capitals are treated as one word, so "XMLParser" becomes
// "xml_parser".
func SnakeCase(s string) string {
	runes := []rune(s)
	var sb strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prev != '_' && (unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower)) {
					sb.WriteByte('_')
				}
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// PascalCase returns the PascalCase form of a snake_case name. It does not try
// to verify that s is a valid identifier.
func PascalCase(s string) string {
	var sb strings.Builder
	for _, part := range strings.Split(s, "_") {
		if part == "" {
			continue
		}
		r, sz := utf8.DecodeRuneInString(part)
		if r == utf8.RuneError {
			panic(fmt.Sprintf("%q is not valid UTF8", s))
		}
		sb.WriteRune(unicode.ToUpper(r))
		sb.WriteString(part[sz:])
	}
	return sb.String()
}

// FieldAlias returns the binding name used for the unnamed field at the given
// index: "_0", "_1", and so on.
func FieldAlias(index int) string {
	return "_" + strconv.Itoa(index)
}

// Unraw strips the "r#" prefix from a raw identifier.
func Unraw(name string) string {
	return strings.TrimPrefix(name, "r#")
}

// IsIdentifier returns true if s is a valid Rust identifier (raw identifiers
// included). Keywords are not identifiers unless written raw.
func IsIdentifier(s string) bool {
	raw := strings.HasPrefix(s, "r#")
	s = Unraw(s)
	if s == "" || s == "_" {
		return false
	}
	for i, r := range s {
		if i == 0 && !isIdentStart(r) {
			return false
		}
		if !isIdentContinue(r) {
			return false
		}
	}
	return raw || !IsKeyword(s)
}

// IsKeyword returns true if s is a strict or reserved Rust keyword.
func IsKeyword(s string) bool {
	_, ok := keywords[s]
	return ok
}

var keywords = map[string]struct{}{
	"as": {}, "break": {}, "const": {}, "continue": {}, "crate": {}, "else": {},
	"enum": {}, "extern": {}, "false": {}, "fn": {}, "for": {}, "if": {},
	"impl": {}, "in": {}, "let": {}, "loop": {}, "match": {}, "mod": {},
	"move": {}, "mut": {}, "pub": {}, "ref": {}, "return": {}, "self": {},
	"Self": {}, "static": {}, "struct": {}, "super": {}, "trait": {},
	"true": {}, "type": {}, "unsafe": {}, "use": {}, "where": {}, "while": {},
	"async": {}, "await": {}, "dyn": {}, "abstract": {}, "become": {},
	"box": {}, "do": {}, "final": {}, "macro": {}, "override": {}, "priv": {},
	"typeof": {}, "unsized": {}, "virtual": {}, "yield": {}, "try": {},
}
