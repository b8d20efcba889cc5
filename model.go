package derivepoet

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// ItemKind is an enumeration of the kinds of annotated items.
type ItemKind int

const (
	ItemInvalid ItemKind = iota
	ItemStruct
	ItemEnum
	ItemUnion
)

func (k ItemKind) String() string {
	switch k {
	case ItemStruct:
		return "struct"
	case ItemEnum:
		return "enum"
	case ItemUnion:
		return "union"
	default:
		return "item"
	}
}

// Item is an annotated data type declaration: the input of every derivation.
type Item struct {
	Kind     ItemKind
	Name     string
	Generics Generics
	Attrs    []*Attribute
	// Fields of a struct or union.
	Fields Fields
	// Variants of an enum.
	Variants []*Variant
	// Derives lists the derive names requested for the item, in order.
	Derives []string
	Pos     Pos
}

// NewStruct returns a struct item with the given fields.
func NewStruct(name string, fields Fields) *Item {
	return &Item{Kind: ItemStruct, Name: name, Fields: fields}
}

// NewEnum returns an enum item with the given variants.
func NewEnum(name string, variants ...*Variant) *Item {
	return &Item{Kind: ItemEnum, Name: name, Variants: variants}
}

// NewUnion returns a union item with the given fields.
func NewUnion(name string, fields Fields) *Item {
	return &Item{Kind: ItemUnion, Name: name, Fields: fields}
}

func (i *Item) AddAttr(a *Attribute) *Item {
	i.Attrs = append(i.Attrs, a)
	return i
}

func (i *Item) AddParam(p *GenericParam) *Item {
	i.Generics.Params = append(i.Generics.Params, p)
	return i
}

func (i *Item) AddWhere(predicate string) *Item {
	i.Generics.Where = append(i.Generics.Where, predicate)
	return i
}

func (i *Item) AddDerive(names ...string) *Item {
	i.Derives = append(i.Derives, names...)
	return i
}

// SelfType returns the item's type as it is spelled in an impl header, such
// as "Foo<'a, T>".
func (i *Item) SelfType() string {
	return i.Name + i.Generics.TypeArgs()
}

// Variant is one variant of an enum.
type Variant struct {
	Name   string
	Attrs  []*Attribute
	Fields Fields
	Pos    Pos
}

func NewVariant(name string, fields Fields) *Variant {
	return &Variant{Name: name, Fields: fields}
}

func (v *Variant) AddAttr(a *Attribute) *Variant {
	v.Attrs = append(v.Attrs, a)
	return v
}

// FieldsStyle describes how the fields of a struct or variant are declared.
type FieldsStyle int

const (
	// No fields and no delimiters: "struct S;" or "V".
	FieldsUnit FieldsStyle = iota
	// Positional fields: "struct S(A, B);" or "V(A, B)".
	FieldsUnnamed
	// Named fields: "struct S { a: A }" or "V { a: A }".
	FieldsNamed
)

// Fields are the fields of a struct, union, or enum variant.
type Fields struct {
	Style FieldsStyle
	List  []*Field
}

// UnitFields returns the fields of a unit struct or variant.
func UnitFields() Fields {
	return Fields{Style: FieldsUnit}
}

// UnnamedFields returns positional fields with the given types.
func UnnamedFields(types ...*Type) Fields {
	fs := Fields{Style: FieldsUnnamed}
	for i, t := range types {
		fs.List = append(fs.List, &Field{Index: i, Type: t})
	}
	return fs
}

// NamedFields returns named fields. Their indexes are assigned in order.
func NamedFields(fields ...*Field) Fields {
	for i, f := range fields {
		f.Index = i
	}
	return Fields{Style: FieldsNamed, List: fields}
}

func (fs Fields) Len() int {
	return len(fs.List)
}

// Types returns the declared types of the fields, in order.
func (fs Fields) Types() []*Type {
	tys := make([]*Type, len(fs.List))
	for i, f := range fs.List {
		tys[i] = f.Type
	}
	return tys
}

// Pattern returns the destructuring pattern that binds every field to its
// binding name, prefixed with path: "Self { a, b }", "Self(_0, _1)", or
// just "Self".
func (fs Fields) Pattern(path string) string {
	switch fs.Style {
	case FieldsNamed:
		if len(fs.List) == 0 {
			return path + " {}"
		}
		names := make([]string, len(fs.List))
		for i, f := range fs.List {
			names[i] = f.Name
		}
		return path + " { " + strings.Join(names, ", ") + " }"
	case FieldsUnnamed:
		names := make([]string, len(fs.List))
		for i, f := range fs.List {
			names[i] = f.Binding()
		}
		return path + "(" + strings.Join(names, ", ") + ")"
	default:
		return path
	}
}

// Construct returns the expression that builds a value at path from the
// given per-field expressions, in the fields' declaration style.
func (fs Fields) Construct(path string, exprs []string) string {
	switch fs.Style {
	case FieldsNamed:
		if len(fs.List) == 0 {
			return path + " {}"
		}
		inits := make([]string, len(fs.List))
		for i, f := range fs.List {
			inits[i] = f.Name + ": " + exprs[i]
		}
		return path + " { " + strings.Join(inits, ", ") + " }"
	case FieldsUnnamed:
		return path + "(" + strings.Join(exprs, ", ") + ")"
	default:
		return path
	}
}

// Field is one field of a struct, union, or enum variant.
type Field struct {
	// Name is empty for positional fields.
	Name  string
	Index int
	Type  *Type
	Attrs []*Attribute
	Pos   Pos
}

// NewField returns a named field.
func NewField(name string, ty *Type) *Field {
	return &Field{Name: name, Type: ty}
}

func (f *Field) AddAttr(a *Attribute) *Field {
	f.Attrs = append(f.Attrs, a)
	return f
}

// Binding returns the name the field is bound to in a destructuring
// pattern: its own name, or "_N" for positional fields.
func (f *Field) Binding() string {
	if f.Name != "" {
		return f.Name
	}
	return FieldAlias(f.Index)
}

// Identity is the name a format placeholder uses to refer to the field. It
// is the binding with any raw identifier prefix removed.
func (f *Field) Identity() string {
	return Unraw(f.Binding())
}

// Member returns the field's name or index, as used after a '.' to access it.
func (f *Field) Member() string {
	if f.Name != "" {
		return f.Name
	}
	return fmt.Sprint(f.Index)
}

// ParamKind is an enumeration of the kinds of generic parameters.
type ParamKind int

const (
	ParamLifetime ParamKind = iota + 1
	ParamType
	ParamConst
)

// GenericParam is one generic parameter of an item.
type GenericParam struct {
	Kind ParamKind
	// Name includes the leading quote for lifetimes.
	Name string
	// Bounds declared inline, after the ':', as written.
	Bounds string
	// Type of a const parameter.
	ConstType string
	// Default value as written, if any. Defaults never appear in impls.
	Default string
}

func LifetimeParam(name string, bounds ...string) *GenericParam {
	return &GenericParam{Kind: ParamLifetime, Name: name, Bounds: strings.Join(bounds, " + ")}
}

func TypeParam(name string, bounds ...string) *GenericParam {
	return &GenericParam{Kind: ParamType, Name: name, Bounds: strings.Join(bounds, " + ")}
}

func ConstParam(name, ty string) *GenericParam {
	return &GenericParam{Kind: ParamConst, Name: name, ConstType: ty}
}

// decl renders the parameter as declared in an impl header.
func (p *GenericParam) decl() string {
	switch {
	case p.Kind == ParamConst:
		return "const " + p.Name + ": " + p.ConstType
	case p.Bounds != "":
		return p.Name + ": " + p.Bounds
	default:
		return p.Name
	}
}

// Generics are the generic parameters and where clause of an item.
type Generics struct {
	Params []*GenericParam
	// Where predicates, as written.
	Where []string
}

// ParseGenerics parses a generic parameter list, like "<'a, T: Clone, const
// N: usize>". The angle brackets are optional.
func ParseGenerics(src string, pos Pos) (Generics, error) {
	toks, err := Lex(src, pos)
	if err != nil {
		return Generics{}, err
	}
	if len(toks) > 0 && toks[0].IsPunct("<") {
		if !toks[len(toks)-1].IsPunct(">") {
			return Generics{}, diagf(ErrSyntax, toks[0].Pos, "unclosed generic parameter list")
		}
		toks = toks[1 : len(toks)-1]
	}
	parts, err := SplitTopLevel(toks, true)
	if err != nil {
		return Generics{}, err
	}
	var g Generics
	for _, part := range parts {
		p, err := parseGenericParam(part)
		if err != nil {
			return Generics{}, err
		}
		g.Params = append(g.Params, p)
	}
	return g, nil
}

func parseGenericParam(toks []Token) (*GenericParam, error) {
	c := NewCursor(toks, toks[len(toks)-1].Pos)
	first, _ := c.Next()
	p := &GenericParam{Name: first.Text}
	switch {
	case first.Kind == TokenLifetime:
		p.Kind = ParamLifetime
	case first.IsIdent("const"):
		name, ok := c.Next()
		if !ok || name.Kind != TokenIdent || !c.EatPunct(":") {
			return nil, diagf(ErrSyntax, first.Pos, "malformed const parameter")
		}
		p.Kind, p.Name = ParamConst, name.Text
		ty, def := splitDefault(c.Rest())
		p.ConstType, p.Default = TokensString(ty), TokensString(def)
		return p, nil
	case first.Kind == TokenIdent:
		p.Kind = ParamType
	default:
		return nil, diagf(ErrSyntax, first.Pos, "expected generic parameter, found `%s`", first.String())
	}
	if c.EatPunct(":") {
		bounds, def := splitDefault(c.Rest())
		p.Bounds, p.Default = TokensString(bounds), TokensString(def)
	} else if c.EatPunct("=") {
		p.Default = TokensString(c.Rest())
	} else if !c.IsEmpty() {
		return nil, c.unexpected("`:` or `,`")
	}
	return p, nil
}

// splitDefault splits "Bounds = Default" at the first top-level '='.
func splitDefault(toks []Token) ([]Token, []Token) {
	depth := 0
	for i, t := range toks {
		switch {
		case t.IsPunct("<"):
			depth++
		case t.IsPunct(">"):
			depth--
		case t.IsPunct("=") && depth == 0:
			return toks[:i], toks[i+1:]
		}
	}
	return toks, nil
}

// ParseWhereClause parses a where clause (the leading "where" keyword is
// optional) into its predicates.
func ParseWhereClause(src string, pos Pos) ([]string, error) {
	toks, err := Lex(src, pos)
	if err != nil {
		return nil, err
	}
	if len(toks) > 0 && toks[0].IsIdent("where") {
		toks = toks[1:]
	}
	parts, err := SplitTopLevel(toks, true)
	if err != nil {
		return nil, err
	}
	preds := make([]string, len(parts))
	for i, p := range parts {
		preds[i] = TokensString(p)
	}
	return preds, nil
}

// Lookup returns the parameter with the given name, or nil.
func (g *Generics) Lookup(name string) *GenericParam {
	for _, p := range g.Params {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// TypeParamNames returns the names of the type parameters, in order.
func (g *Generics) TypeParamNames() []string {
	var names []string
	for _, p := range g.Params {
		if p.Kind == ParamType {
			names = append(names, p.Name)
		}
	}
	return names
}

// TypeParamsIn returns the type parameters that ty mentions, in declaration
// order.
func (g *Generics) TypeParamsIn(ty *Type) []string {
	var names []string
	for _, p := range g.Params {
		if p.Kind == ParamType && ty.Mentions(p.Name) {
			names = append(names, p.Name)
		}
	}
	return names
}

// ordered returns the parameters with lifetimes first, the order the
// compiler requires in an impl header.
func ordered(params []*GenericParam) []*GenericParam {
	var lts, rest []*GenericParam
	for _, p := range params {
		if p.Kind == ParamLifetime {
			lts = append(lts, p)
		} else {
			rest = append(rest, p)
		}
	}
	return append(lts, rest...)
}

// ImplParams renders the parameter declarations of an impl header, including
// any extra parameters, like "<'a, T: Clone>". It returns an empty string
// if there are none.
func (g *Generics) ImplParams(extra ...*GenericParam) string {
	all := ordered(append(append([]*GenericParam(nil), g.Params...), extra...))
	if len(all) == 0 {
		return ""
	}
	decls := make([]string, len(all))
	for i, p := range all {
		decls[i] = p.decl()
	}
	return "<" + strings.Join(decls, ", ") + ">"
}

// TypeArgs renders the arguments that apply the item's own parameters, like
// "<'a, T>". It returns an empty string if there are none.
func (g *Generics) TypeArgs() string {
	all := ordered(g.Params)
	if len(all) == 0 {
		return ""
	}
	names := make([]string, len(all))
	for i, p := range all {
		names[i] = p.Name
	}
	return "<" + strings.Join(names, ", ") + ">"
}

// AttrStyle describes the form of an attribute.
type AttrStyle int

const (
	// #[path]
	AttrPath AttrStyle = iota
	// #[path(args...)]
	AttrList
	// #[path = value]
	AttrNameValue
)

// Attribute is one outer attribute of an item, variant, or field.
type Attribute struct {
	// Path is the attribute's path, with segments joined by "::".
	Path  string
	Style AttrStyle
	// Args are the tokens inside the parentheses of a list attribute or
	// after the '=' of a name-value attribute.
	Args []Token
	Pos  Pos
	// ArgsPos is the position of the opening parenthesis (or the value),
	// where errors about missing arguments point.
	ArgsPos Pos
}

// ParseAttribute parses the contents of an attribute, without the "#[" and
// "]", such as `display("{}", a)`.
func ParseAttribute(src string, pos Pos) (*Attribute, error) {
	toks, err := Lex(src, pos)
	if err != nil {
		return nil, err
	}
	c := NewCursor(toks, pos)
	a := &Attribute{Pos: c.Pos()}
	var segs []string
	for {
		name, ok := c.PeekIdent()
		if !ok {
			return nil, c.unexpected("attribute path")
		}
		c.Next()
		segs = append(segs, name)
		if !c.EatPunct("::") {
			break
		}
	}
	a.Path = strings.Join(segs, "::")
	tok, ok := c.Peek()
	switch {
	case !ok:
		a.Style = AttrPath
		a.ArgsPos = a.Pos
	case tok.IsGroup(DelimParen):
		c.Next()
		a.Style, a.Args, a.ArgsPos = AttrList, tok.Inner, tok.Pos
	case tok.IsPunct("="):
		c.Next()
		a.Style, a.ArgsPos = AttrNameValue, c.Pos()
		a.Args = c.Rest()
		if len(a.Args) == 0 {
			return nil, diagf(ErrSyntax, tok.Pos, "expected value after `=`")
		}
	default:
		return nil, c.unexpected("`(` or `=`")
	}
	if !c.IsEmpty() {
		return nil, c.unexpected("end of attribute")
	}
	return a, nil
}

// MustAttribute is like ParseAttribute but panics on error. It is intended
// for building items in code.
func MustAttribute(src string) *Attribute {
	a, err := ParseAttribute(src, Pos{})
	if err != nil {
		panic(err)
	}
	return a
}

func (a *Attribute) String() string {
	switch a.Style {
	case AttrList:
		return "#[" + a.Path + "(" + TokensString(a.Args) + ")]"
	case AttrNameValue:
		return "#[" + a.Path + " = " + TokensString(a.Args) + "]"
	default:
		return "#[" + a.Path + "]"
	}
}

// attrsNamed returns the attributes with the given path.
func attrsNamed(attrs []*Attribute, path string) []*Attribute {
	var ret []*Attribute
	for _, a := range attrs {
		if a.Path == path {
			ret = append(ret, a)
		}
	}
	return ret
}

// RustFile represents a generated Rust source file. Its elements are
// rendered in the order they were added. When UseImports is set, every
// module referenced through a Symbol gets a use declaration at the top of the
// file and references are shortened accordingly; otherwise references keep
// their absolute paths.
type RustFile struct {
	Uses

	// The name of the file. This should not include a path, only a file
	// name with a ".rs" extension.
	Name string
	// Comment lines that appear at the top of the file.
	Comment string
	// Whether to shorten references with use declarations.
	UseImports bool
	// The elements of the file.
	elements []FileElement
}

// NewRustFile returns an empty file with the given name.
func NewRustFile(fileName string) *RustFile {
	if filepath.Base(fileName) != fileName {
		panic("Rust file name must be a base name with no path")
	}
	if filepath.Ext(fileName) != ".rs" {
		panic("Rust file name must have a '.rs' extension")
	}
	return &RustFile{Name: fileName}
}

func (f *RustFile) AddElement(e FileElement) *RustFile {
	f.elements = append(f.elements, e)
	return f
}

// AddImpls adds the given impl blocks to the file.
func (f *RustFile) AddImpls(impls ...*ImplSpec) *RustFile {
	for _, i := range impls {
		f.AddElement(i)
	}
	return f
}

func (f *RustFile) NumElements() int {
	return len(f.elements)
}

func (f *RustFile) ElementAt(i int) FileElement {
	return f.elements[i]
}

// WriteRustFile renders the given file to w.
func WriteRustFile(w io.Writer, f *RustFile) error {
	if f.UseImports {
		for _, e := range f.elements {
			e.qualify(&f.Uses)
		}
	}
	var buf bytes.Buffer
	if err := f.writeTo(&buf); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteRustFiles renders each file to the writer returned by outFn for the
// file's name. If the writer is also an io.Closer, it is closed after the
// file is written.
func WriteRustFiles(outFn func(name string) (io.Writer, error), files ...*RustFile) error {
	for _, file := range files {
		w, err := outFn(file.Name)
		if err != nil {
			return err
		}
		err = WriteRustFile(w, file)
		if c, ok := w.(io.Closer); ok {
			if cerr := c.Close(); err == nil {
				err = cerr
			}
		}
		if err != nil {
			return errors.Wrapf(err, "writing %s", file.Name)
		}
	}
	return nil
}

// WriteRustFilesToFileSystem renders the files into rootDir, creating it if
// necessary.
func WriteRustFilesToFileSystem(rootDir string, files ...*RustFile) error {
	return WriteRustFiles(func(name string) (io.Writer, error) {
		if err := os.MkdirAll(rootDir, os.ModePerm); err != nil {
			return nil, err
		}
		return os.OpenFile(filepath.Join(rootDir, name), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	}, files...)
}

func (f *RustFile) writeTo(w *bytes.Buffer) error {
	// sections are separated by a blank line
	sep := false
	if f.Comment != "" {
		writeComment(f.Comment, w, 0)
		sep = true
	}
	if specs := f.UseSpecs(); f.UseImports && len(specs) > 0 {
		if sep {
			w.WriteRune('\n')
		}
		for _, u := range specs {
			fmt.Fprintf(w, "use %s;\n", u)
		}
		sep = true
	}
	for _, el := range f.elements {
		if sep {
			w.WriteRune('\n')
		}
		if err := el.writeTo(w, 0); err != nil {
			return err
		}
		sep = true
	}
	return nil
}

func writeComment(comment string, w *bytes.Buffer, indent int) {
	if comment == "" {
		return
	}
	for _, line := range strings.Split(comment, "\n") {
		writeIndent(w, indent)
		if line == "" {
			w.WriteString("//\n")
		} else {
			fmt.Fprintf(w, "// %s\n", line)
		}
	}
}

// FileElement is a top-level element of a RustFile.
type FileElement interface {
	writeTo(b *bytes.Buffer, indent int) error
	qualify(uses *Uses)
}

// ImplSpec is a trait implementation block.
type ImplSpec struct {
	Comment string
	// Outer attributes, without "#[" and "]".
	Attrs []string
	// Params is the rendered parameter list, with angle brackets, or empty.
	Params  string
	Trait   *CodeBlock
	ForType *CodeBlock
	Where   []*CodeBlock
	fns     []*FnSpec
}

// NewImpl returns an impl of trait for the given type.
func NewImpl(trait, forType *CodeBlock) *ImplSpec {
	return &ImplSpec{Trait: trait, ForType: forType}
}

func (s *ImplSpec) AddAttr(attr string) *ImplSpec {
	s.Attrs = append(s.Attrs, attr)
	return s
}

func (s *ImplSpec) SetParams(params string) *ImplSpec {
	s.Params = params
	return s
}

func (s *ImplSpec) AddWhere(preds ...*CodeBlock) *ImplSpec {
	s.Where = append(s.Where, preds...)
	return s
}

func (s *ImplSpec) AddFn(fn *FnSpec) *ImplSpec {
	s.fns = append(s.fns, fn)
	return s
}

func (s *ImplSpec) Fns() []*FnSpec {
	return s.fns
}

// String renders the impl block with absolute paths.
func (s *ImplSpec) String() string {
	var b bytes.Buffer
	if err := s.writeTo(&b, 0); err != nil {
		return fmt.Sprintf("!(%v)", err)
	}
	return b.String()
}

func (s *ImplSpec) qualify(uses *Uses) {
	s.Trait.qualify(uses)
	s.ForType.qualify(uses)
	for _, w := range s.Where {
		w.qualify(uses)
	}
	for _, fn := range s.fns {
		fn.qualify(uses)
	}
}

func (s *ImplSpec) writeTo(b *bytes.Buffer, indent int) error {
	writeComment(s.Comment, b, indent)
	for _, a := range s.Attrs {
		writeIndent(b, indent)
		fmt.Fprintf(b, "#[%s]\n", a)
	}
	writeIndent(b, indent)
	fmt.Fprintf(b, "impl%s %s for %s", s.Params, s.Trait, s.ForType)
	if len(s.Where) > 0 {
		b.WriteRune('\n')
		writeIndent(b, indent)
		b.WriteString("where\n")
		for _, w := range s.Where {
			writeIndent(b, indent+1)
			fmt.Fprintf(b, "%s,\n", w)
		}
		writeIndent(b, indent)
		b.WriteString("{\n")
	} else {
		b.WriteString(" {\n")
	}
	for i, fn := range s.fns {
		if i > 0 {
			b.WriteRune('\n')
		}
		if err := fn.writeTo(b, indent+1); err != nil {
			return err
		}
	}
	writeIndent(b, indent)
	b.WriteString("}\n")
	return nil
}

// FnSpec is a function inside an impl block.
type FnSpec struct {
	Comment, Name string
	Attrs         []string
	// Receiver, such as "&self", or empty for associated functions.
	Receiver string
	Args     []ArgSpec
	Result   *CodeBlock
	Body     *CodeBlock
}

// ArgSpec is one function argument.
type ArgSpec struct {
	Name string
	Type *CodeBlock
}

func NewFn(name string) *FnSpec {
	return &FnSpec{Name: name, Body: &CodeBlock{}}
}

func (f *FnSpec) AddAttr(attr string) *FnSpec {
	f.Attrs = append(f.Attrs, attr)
	return f
}

func (f *FnSpec) SetReceiver(recv string) *FnSpec {
	f.Receiver = recv
	return f
}

func (f *FnSpec) AddArg(name string, ty *CodeBlock) *FnSpec {
	f.Args = append(f.Args, ArgSpec{Name: name, Type: ty})
	return f
}

func (f *FnSpec) SetResult(ty *CodeBlock) *FnSpec {
	f.Result = ty
	return f
}

func (f *FnSpec) SetBody(body *CodeBlock) *FnSpec {
	f.Body = body
	return f
}

func (f *FnSpec) qualify(uses *Uses) {
	for _, a := range f.Args {
		a.Type.qualify(uses)
	}
	if f.Result != nil {
		f.Result.qualify(uses)
	}
	f.Body.qualify(uses)
}

func (f *FnSpec) writeTo(b *bytes.Buffer, indent int) error {
	writeComment(f.Comment, b, indent)
	for _, a := range f.Attrs {
		writeIndent(b, indent)
		fmt.Fprintf(b, "#[%s]\n", a)
	}
	writeIndent(b, indent)
	fmt.Fprintf(b, "fn %s(", f.Name)
	var params []string
	if f.Receiver != "" {
		params = append(params, f.Receiver)
	}
	for _, a := range f.Args {
		params = append(params, fmt.Sprintf("%s: %s", a.Name, a.Type))
	}
	b.WriteString(strings.Join(params, ", "))
	b.WriteRune(')')
	if f.Result != nil {
		fmt.Fprintf(b, " -> %s", f.Result)
	}
	b.WriteString(" {\n")
	if err := f.Body.writeTo(b, indent+1); err != nil {
		return err
	}
	writeIndent(b, indent)
	b.WriteString("}\n")
	return nil
}
