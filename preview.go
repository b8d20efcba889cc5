package derivepoet

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
)

// Values supplies the values a preview formats, keyed by field identity
// ("name" or "_0"), by pass-through name, or by the text of an argument
// expression (such as "a.len()").
type Values map[string]interface{}

// Thunk is a deferred rendering. It writes its output at most once; invoking
// it a second time is an error.
type Thunk struct {
	fn      func(*strings.Builder) error
	invoked bool
}

// NewThunk returns a thunk that runs fn when invoked.
func NewThunk(fn func(*strings.Builder) error) *Thunk {
	return &Thunk{fn: fn}
}

// Invoke runs the deferred rendering into sb.
func (t *Thunk) Invoke(sb *strings.Builder) error {
	if t.invoked {
		return errors.New("deferred rendering already consumed")
	}
	t.invoked = true
	return t.fn(sb)
}

// Preview evaluates the plan the way the generated impl would format a value
// of the item. For enums, variant selects the arm; for structs it must be
// empty.
func (p *DisplayPlan) Preview(variant string, vals Values) (string, error) {
	var sb strings.Builder
	if p.Wildcard != nil {
		if err := p.evalRender(&sb, p.Wildcard, vals); err != nil {
			return "", err
		}
		return sb.String(), nil
	}
	for _, arm := range p.Arms {
		if arm.Name() != variant {
			continue
		}
		if err := p.evalRender(&sb, arm.Render, vals); err != nil {
			return "", err
		}
		return sb.String(), nil
	}
	if variant == "" {
		return "", diagf(ErrReference, p.Item.Pos, "`%s` is an enum; a variant must be given", p.Item.Name)
	}
	return "", diagf(ErrReference, p.Item.Pos, "no variant `%s` in `%s`", variant, p.Item.Name)
}

func (p *DisplayPlan) evalRender(sb *strings.Builder, r *Render, vals Values) error {
	switch r.Kind {
	case RenderName:
		sb.WriteString(r.Name)
		return nil
	case RenderDelegate:
		v, err := lookupValue(&Resolved{Kind: ResolvedField, Field: r.Field}, vals)
		if err != nil {
			return err
		}
		s, err := formatValue(v, FormatSpec{}, p.Trait, nil, nil)
		if err != nil {
			return err
		}
		sb.WriteString(s)
		return nil
	case RenderAffix:
		inner := NewThunk(func(isb *strings.Builder) error {
			return p.evalRender(isb, r.Inner, vals)
		})
		return evalTemplate(sb, r.Outer, vals, inner)
	default:
		return evalTemplate(sb, r, vals, nil)
	}
}

// evalTemplate formats a template render. A placeholder without a resolved
// value (the outer placeholder of an affix) formats implicit.
func evalTemplate(sb *strings.Builder, r *Render, vals Values, implicit interface{}) error {
	next := 0
	for _, seg := range r.Template.Segments {
		if seg.Placeholder == nil {
			sb.WriteString(seg.Literal)
			continue
		}
		rp := r.Resolved[next]
		next++

		var v interface{}
		if rp.Value == nil {
			v = implicit
		} else {
			var err error
			if v, err = lookupValue(rp.Value, vals); err != nil {
				return err
			}
		}
		width, err := countValue(rp.Spec.Width, rp.Width, vals)
		if err != nil {
			return err
		}
		prec, err := countValue(rp.Spec.Precision, rp.Precision, vals)
		if err != nil {
			return err
		}
		s, err := formatValue(v, rp.Spec, rp.Trait, width, prec)
		if err != nil {
			return errors.Wrapf(err, "formatting %s", rp.Text)
		}
		sb.WriteString(s)
	}
	return nil
}

func lookupValue(res *Resolved, vals Values) (interface{}, error) {
	key := res.Key()
	v, ok := vals[key]
	if !ok {
		return nil, diagf(ErrReference, Pos{}, "no value given for `%s`", key)
	}
	return v, nil
}

// countValue returns the width or precision of a placeholder, if it has one.
func countValue(c *Count, res *Resolved, vals Values) (*int, error) {
	if c == nil {
		return nil, nil
	}
	if c.Kind == CountLiteral {
		n := c.Value
		return &n, nil
	}
	v, err := lookupValue(res, vals)
	if err != nil {
		return nil, err
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if rv.Int() >= 0 {
			n := int(rv.Int())
			return &n, nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n := int(rv.Uint())
		return &n, nil
	}
	return nil, errors.Newf("width or precision `%s` must be a non-negative integer, got %T", res.Key(), v)
}

// formatValue formats v the way the given trait and spec would in Rust.
func formatValue(v interface{}, spec FormatSpec, trait TraitTag, width, prec *int) (string, error) {
	if t, ok := v.(*Thunk); ok {
		var sb strings.Builder
		if err := t.Invoke(&sb); err != nil {
			return "", err
		}
		v = sb.String()
	}

	rv := reflect.ValueOf(v)
	var prefix, body string
	numeric := false
	switch {
	case v == nil:
		return "", errors.New("cannot format a nil value")

	case isInteger(rv):
		numeric = true
		neg, mag, bits := integerParts(rv)
		switch trait {
		case TraitBinary, TraitOctal, TraitLowerHex, TraitUpperHex:
			body = radixString(neg, mag, bits, trait)
			if spec.Alternate {
				prefix = map[TraitTag]string{TraitBinary: "0b", TraitOctal: "0o", TraitLowerHex: "0x", TraitUpperHex: "0x"}[trait]
			}
		case TraitLowerExp, TraitUpperExp:
			f := float64(mag)
			if neg {
				f = -f
			}
			prefix, body = splitSign(expString(f, prec, trait == TraitUpperExp))
		case TraitDebug, TraitDisplay:
			if trait == TraitDebug && (spec.Type == "x?" || spec.Type == "X?") {
				body = radixString(neg, mag, bits, TraitLowerHex)
				if spec.Type == "X?" {
					body = strings.ToUpper(body)
				}
				if spec.Alternate {
					prefix = "0x"
				}
				break
			}
			body = strconv.FormatUint(mag, 10)
			if neg {
				prefix = "-"
			}
		default:
			return "", errors.Newf("`%s` is not implemented for %T", trait, v)
		}

	case rv.Kind() == reflect.Float32 || rv.Kind() == reflect.Float64:
		numeric = true
		f := rv.Float()
		bits := 64
		if rv.Kind() == reflect.Float32 {
			bits = 32
		}
		var s string
		switch trait {
		case TraitDisplay:
			s = floatString(f, prec, bits, false)
		case TraitDebug:
			s = floatString(f, prec, bits, true)
		case TraitLowerExp, TraitUpperExp:
			s = expString(f, prec, trait == TraitUpperExp)
		default:
			return "", errors.Newf("`%s` is not implemented for %T", trait, v)
		}
		prefix, body = splitSign(s)

	case rv.Kind() == reflect.Bool:
		if trait != TraitDisplay && trait != TraitDebug {
			return "", errors.Newf("`%s` is not implemented for bool", trait)
		}
		body = strconv.FormatBool(rv.Bool())

	case rv.Kind() == reflect.String:
		s := rv.String()
		switch trait {
		case TraitDisplay:
			body = truncate(s, prec)
		case TraitDebug:
			body = debugQuote(s)
		default:
			return "", errors.Newf("`%s` is not implemented for strings", trait)
		}

	case trait == TraitPointer:
		switch rv.Kind() {
		case reflect.Ptr, reflect.UnsafePointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			body = fmt.Sprintf("%#x", rv.Pointer())
		default:
			return "", errors.Newf("`Pointer` is not implemented for %T", v)
		}

	default:
		switch trait {
		case TraitDisplay:
			s, ok := v.(fmt.Stringer)
			if !ok {
				return "", errors.Newf("`Display` is not implemented for %T", v)
			}
			body = truncate(s.String(), prec)
		case TraitDebug:
			body = fmt.Sprintf("%+v", v)
		default:
			return "", errors.Newf("`%s` is not implemented for %T", trait, v)
		}
	}

	if numeric && spec.Sign == SignPlus && !strings.HasPrefix(prefix, "-") {
		prefix = "+" + prefix
	}
	return pad(prefix, body, spec, numeric, width), nil
}

func isInteger(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

// integerParts returns the sign, magnitude, and width in bits of an integer.
func integerParts(rv reflect.Value) (neg bool, mag uint64, bits int) {
	bits = rv.Type().Bits()
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		if i < 0 {
			return true, uint64(-(i + 1)) + 1, bits
		}
		return false, uint64(i), bits
	}
	return false, rv.Uint(), bits
}

// radixString formats an integer in base 2, 8, or 16. Negative numbers are
// shown in two's complement at their own width, as Rust does.
func radixString(neg bool, mag uint64, bits int, trait TraitTag) string {
	u := mag
	if neg {
		u = -mag
		if bits < 64 {
			u &= (uint64(1) << uint(bits)) - 1
		}
	}
	switch trait {
	case TraitBinary:
		return strconv.FormatUint(u, 2)
	case TraitOctal:
		return strconv.FormatUint(u, 8)
	case TraitUpperHex:
		return strings.ToUpper(strconv.FormatUint(u, 16))
	default:
		return strconv.FormatUint(u, 16)
	}
}

func splitSign(s string) (string, string) {
	if strings.HasPrefix(s, "-") {
		return "-", s[1:]
	}
	return "", s
}

// floatString formats a float for Display or Debug. Without a precision,
// Display uses the shortest representation that round-trips and never an
// exponent; Debug always shows a fractional part and switches to exponent
// notation for very large or very small magnitudes.
func floatString(f float64, prec *int, bits int, debug bool) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	if prec != nil {
		return strconv.FormatFloat(f, 'f', *prec, bits)
	}
	if debug {
		abs := math.Abs(f)
		if abs >= 1e16 || (abs != 0 && abs < 1e-4) {
			return expString(f, nil, false)
		}
	}
	s := strconv.FormatFloat(f, 'f', -1, bits)
	if debug && !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// expString formats f in Rust's exponent notation, like "1.2345e3".
func expString(f float64, prec *int, upper bool) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	p := -1
	if prec != nil {
		p = *prec
	}
	s := strconv.FormatFloat(f, 'e', p, 64)
	mant, exp, _ := strings.Cut(s, "e")
	sign := ""
	if strings.HasPrefix(exp, "-") {
		sign = "-"
	}
	exp = strings.TrimLeft(exp[1:], "0")
	if exp == "" {
		exp = "0"
	}
	marker := "e"
	if upper {
		marker = "E"
	}
	return mant + marker + sign + exp
}

func truncate(s string, prec *int) string {
	if prec == nil || utf8.RuneCountInString(s) <= *prec {
		return s
	}
	return string([]rune(s)[:*prec])
}

// debugQuote quotes a string the way Rust's Debug does.
func debugQuote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case 0:
			sb.WriteString(`\0`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&sb, `\u{%x}`, r)
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// pad applies the width of spec. Zero padding goes between the sign (or
// radix prefix) and the digits and ignores fill and alignment. Numbers are
// right-aligned by default, everything else left-aligned.
func pad(prefix, body string, spec FormatSpec, numeric bool, width *int) string {
	n := utf8.RuneCountInString(prefix) + utf8.RuneCountInString(body)
	if width == nil || n >= *width {
		return prefix + body
	}
	missing := *width - n
	if spec.ZeroPad && numeric {
		return prefix + strings.Repeat("0", missing) + body
	}
	fill := " "
	if spec.Fill != 0 {
		fill = string(spec.Fill)
	}
	align := spec.Align
	if align == AlignNone {
		align = AlignLeft
		if numeric {
			align = AlignRight
		}
	}
	var left, right int
	switch align {
	case AlignLeft:
		right = missing
	case AlignRight:
		left = missing
	case AlignCenter:
		left = missing / 2
		right = missing - left
	}
	return strings.Repeat(fill, left) + prefix + body + strings.Repeat(fill, right)
}

// Apply evaluates the conversion on a source value given as its components
// (one per field, in field order) and returns the resulting field values,
// keyed by field identity. Components of declared shapes are taken as
// already converted.
func (c *FromConversion) Apply(components []interface{}) (map[string]interface{}, error) {
	if len(components) != c.Fields.Len() {
		return nil, errors.Newf("conversion from `%s` takes %d component(s), got %d", c.Shape.SourceType(), c.Fields.Len(), len(components))
	}
	out := make(map[string]interface{}, len(components))
	for i, f := range c.Fields.List {
		out[f.Identity()] = components[i]
	}
	return out, nil
}

// Unapply evaluates the conversion on a struct given as its field values,
// keyed by field identity, and returns the target tuple's components.
// Skipped fields are ignored.
func (p *IntoPlan) Unapply(fields map[string]interface{}) ([]interface{}, error) {
	out := make([]interface{}, len(p.Fields))
	for i, f := range p.Fields {
		v, ok := fields[f.Identity()]
		if !ok {
			return nil, errors.Newf("no value given for field `%s`", f.Identity())
		}
		out[i] = v
	}
	return out, nil
}
