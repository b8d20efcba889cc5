package derivepoet

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
)

// checkErr verifies the message, class, and hints of err.
func checkErr(t *testing.T, err error, class error, msg string, hints ...string) {
	t.Helper()
	if err == nil {
		t.Errorf("expected error %q", msg)
		return
	}
	if err.Error() != msg {
		t.Errorf("wrong error:\nexpected %q\n     got %q", msg, err.Error())
	}
	if !errors.Is(err, class) {
		t.Errorf("%q: wrong error class", msg)
	}
	if diff := cmp.Diff(hints, errors.GetAllHints(err)); diff != "" {
		t.Errorf("%q: wrong hints (-expected, +actual):\n%s", msg, diff)
	}
}

func TestParseFormatAttr(t *testing.T) {
	form, err := ParseFormatAttr(MustAttribute(`display("{a} <-> {}", b, n = a + 1)`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tf, ok := form.(*TemplateForm)
	if !ok {
		t.Fatalf("expected template form, got %T", form)
	}
	if tf.Lit.Value != "{a} <-> {}" {
		t.Errorf("wrong literal %q", tf.Lit.Value)
	}
	var args []string
	for _, a := range tf.Args {
		args = append(args, a.String())
	}
	if diff := cmp.Diff([]string{"b", "n = a + 1"}, args); diff != "" {
		t.Errorf("wrong arguments (-expected, +actual):\n%s", diff)
	}
	tmpl, err := tf.Template()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tmpl.Pos != (Pos{Line: 1, Column: 9}) {
		t.Errorf("template should be positioned at the literal, got %v", tmpl.Pos)
	}

	form, err = ParseFormatAttr(MustAttribute(`lower_hex(bound(T: LowerHex, U: Clone))`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bf, ok := form.(*BoundsForm)
	if !ok {
		t.Fatalf("expected bounds form, got %T", form)
	}
	if len(bf.Predicates) != 2 || bf.Predicates[1].String() != "U: Clone" {
		t.Errorf("wrong predicates %v", bf.Predicates)
	}
	if bf.Position() != (Pos{Line: 1, Column: 1}) {
		t.Errorf("wrong position %v", bf.Position())
	}
}

func TestParseFormatAttr_Errors(t *testing.T) {
	for _, tc := range []struct {
		attr  string
		class error
		msg   string
		hints []string
	}{
		{
			attr:  `display(fmt = "{}: {}", _0, _1)`,
			class: ErrSyntax,
			msg:   "1:9: legacy syntax, remove `fmt =` and use `#[display(\"{}: {}\", _0, _1)]` instead",
			hints: []string{`#[display("{}: {}", _0, _1)]`},
		},
		{
			attr:  `display(bound = "T: Display")`,
			class: ErrSyntax,
			msg:   "1:9: legacy syntax, use `#[display(bound(T: Display))]` instead",
			hints: []string{"#[display(bound(T: Display))]"},
		},
		{
			attr:  `display`,
			class: ErrSyntax,
			msg:   "1:1: expected `#[display(\"...\", ...)]` or `#[display(bound(...))]`",
		},
		{
			attr:  `display()`,
			class: ErrSyntax,
			msg:   "1:8: expected a string literal or `bound(...)` in `#[display(...)]`",
		},
		{
			attr:  `display(name)`,
			class: ErrSyntax,
			msg:   "1:9: unknown argument `name` in `#[display(...)]`, expected a string literal or `bound(...)`",
		},
		{
			attr:  `display("{}" _0)`,
			class: ErrSyntax,
			msg:   "1:14: expected `,`, found `_0`",
		},
		{
			attr:  `display(bound(T: Debug) extra)`,
			class: ErrSyntax,
			msg:   "1:25: expected end of attribute, found `extra`",
		},
		{
			attr:  `display("{}", x =)`,
			class: ErrSyntax,
			msg:   "1:17: expected expression after `=`",
		},
	} {
		_, err := ParseFormatAttr(MustAttribute(tc.attr))
		checkErr(t, err, tc.class, tc.msg, tc.hints...)
	}
}

func TestParseFromAttr(t *testing.T) {
	one := UnnamedFields(MustType("i64"))

	form, err := ParseFromAttr(MustAttribute("from(i32, (u8, u8), Vec<(A, B)>)"), one, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tf, ok := form.(*TypesForm)
	if !ok {
		t.Fatalf("expected types form, got %T", form)
	}
	if s := typesString(tf.Types); s != "i32, (u8, u8), Vec<(A, B)>" {
		t.Errorf("wrong types %q", s)
	}

	if form, err = ParseFromAttr(MustAttribute("from(forward)"), one, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := form.(*ForwardForm); !ok {
		t.Errorf("expected forward form, got %T", form)
	}
	if form, err = ParseFromAttr(MustAttribute("from"), one, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := form.(*MarkerForm); !ok {
		t.Errorf("expected marker form, got %T", form)
	}
	for _, skip := range []string{"from(skip)", "from(ignore)"} {
		if form, err = ParseFromAttr(MustAttribute(skip), one, true); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := form.(*SkipForm); !ok {
			t.Errorf("expected skip form, got %T", form)
		}
	}
	// a type that happens to be named like a keyword of the attribute
	if form, err = ParseFromAttr(MustAttribute("from(forward::Thing)"), one, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := form.(*TypesForm); !ok {
		t.Errorf("expected types form, got %T", form)
	}
}

func TestParseFromAttr_Errors(t *testing.T) {
	one := UnnamedFields(MustType("i64"))
	two := NamedFields(NewField("a", MustType("i32")), NewField("b", MustType("u8")))

	_, err := ParseFromAttr(MustAttribute("from"), one, false)
	checkErr(t, err, ErrSyntax, "1:1: bare `#[from]` is only allowed on enum variants; use `#[from(types...)]` or `#[from(forward)]`")
	_, err = ParseFromAttr(MustAttribute("from(skip)"), one, false)
	checkErr(t, err, ErrSyntax, "1:1: `#[from(skip)]` is only allowed on enum variants")
	_, err = ParseFromAttr(MustAttribute("from()"), one, false)
	checkErr(t, err, ErrSyntax, "1:5: expected a type, `forward`, `skip`, or `ignore` in `#[from(...)]`")
	_, err = ParseFromAttr(MustAttribute(`from(types(i32, "&str"))`), one, false)
	checkErr(t, err, ErrSyntax, "1:1: legacy syntax, remove `types` and use `i32, &str, i64` instead", "i32, &str, i64")
	_, err = ParseFromAttr(MustAttribute(`from(types(i32))`), two, false)
	checkErr(t, err, ErrSyntax, "1:1: legacy syntax, remove `types` and use `(i32, i32), (i32, u8)` instead", "(i32, i32), (i32, u8)")
}

func accessStrings(a *AccessTypes) []string {
	if a == nil {
		return nil
	}
	ret := []string{}
	for _, ty := range a.Types {
		ret = append(ret, ty.String())
	}
	return ret
}

func TestParseIntoAttr(t *testing.T) {
	two := UnnamedFields(MustType("i32"), MustType("f64"))
	for _, tc := range []struct {
		attr                string
		owned, ref, refMut []string
	}{
		{attr: "into(owned, ref, ref_mut)", owned: []string{}, ref: []string{}, refMut: []string{}},
		{attr: "into(ref)", ref: []string{}},
		{attr: "into((i64, f64), (i32, f32))", owned: []string{"(i64, f64)", "(i32, f32)"}},
		{attr: "into(owned((i64, f64)), ref((i32, f64)), owned(Wrapper<A, B>))", owned: []string{"(i64, f64)", "Wrapper<A, B>"}, ref: []string{"(i32, f64)"}},
	} {
		form, err := ParseIntoAttr(MustAttribute(tc.attr), two)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.attr, err)
			continue
		}
		if diff := cmp.Diff(tc.owned, accessStrings(form.Owned)); diff != "" {
			t.Errorf("%s: wrong owned (-expected, +actual):\n%s", tc.attr, diff)
		}
		if diff := cmp.Diff(tc.ref, accessStrings(form.Ref)); diff != "" {
			t.Errorf("%s: wrong ref (-expected, +actual):\n%s", tc.attr, diff)
		}
		if diff := cmp.Diff(tc.refMut, accessStrings(form.RefMut)); diff != "" {
			t.Errorf("%s: wrong ref_mut (-expected, +actual):\n%s", tc.attr, diff)
		}
	}
}

func TestParseIntoAttr_Errors(t *testing.T) {
	two := UnnamedFields(MustType("i32"), MustType("f64"))

	_, err := ParseIntoAttr(MustAttribute("into(i64, ref)"), two)
	checkErr(t, err, ErrConflict,
		"1:6: mixing regular types with wrapped into `owned`/`ref`/`ref_mut` is not allowed, try wrapping this type into `owned(i64), ref(i64), ref_mut(i64)`",
		"owned(i64), ref(i64), ref_mut(i64)")
	_, err = ParseIntoAttr(MustAttribute("into()"), two)
	checkErr(t, err, ErrSyntax, "1:5: expected a type, `owned`, `ref`, or `ref_mut` in `#[into(...)]`")
	_, err = ParseIntoAttr(MustAttribute("into"), two)
	checkErr(t, err, ErrSyntax, "1:1: expected `#[into(...)]`")
	_, err = ParseIntoAttr(MustAttribute("into(ref(i32) owned)"), two)
	checkErr(t, err, ErrSyntax, "1:15: expected `,`, found `owned`")
	_, err = ParseIntoAttr(MustAttribute(`into(types(i64, "String"))`), two)
	checkErr(t, err, ErrSyntax, "1:5: legacy syntax, remove `types` and use `i64, String` instead", "i64, String")
	_, err = ParseIntoAttr(MustAttribute(`into(owned, ref(types(i64)))`), two)
	checkErr(t, err, ErrSyntax,
		"1:5: legacy syntax, use `owned, ref((i64, i64), (i32, f64))` instead",
		"owned, ref((i64, i64), (i32, f64))")
}

func TestParseIntoFieldAttr(t *testing.T) {
	for _, src := range []string{"into(skip)", "into(ignore)"} {
		if _, err := ParseIntoFieldAttr(MustAttribute(src)); err != nil {
			t.Errorf("%s: unexpected error: %v", src, err)
		}
	}
	_, err := ParseIntoFieldAttr(MustAttribute("into(owned)"))
	checkErr(t, err, ErrSyntax, "1:6: expected `skip`, found: `owned`")
	_, err = ParseIntoFieldAttr(MustAttribute("into()"))
	checkErr(t, err, ErrSyntax, "1:5: expected `skip`, found end of input")
	_, err = ParseIntoFieldAttr(MustAttribute("into"))
	checkErr(t, err, ErrSyntax, "1:1: expected `#[into(skip)]`")
}
