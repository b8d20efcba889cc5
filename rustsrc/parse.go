// Package rustsrc finds annotated data types in Rust source files and turns
// them into derivepoet items. It uses the tree-sitter Rust grammar to locate
// structs, enums, and unions (including those nested in inline modules)
// together with their attributes, generics, variants, and fields. Attribute
// arguments and types are then lexed by derivepoet, so every token carries
// its position in the file.
package rustsrc

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"

	"github.com/jhump/derivepoet"
)

// File is the result of scanning one source file.
type File struct {
	Name string
	// Items are the structs, enums, and unions of the file, in source order.
	Items []*derivepoet.Item
}

// Derived returns the items that list at least one derive.
func (f *File) Derived() []*derivepoet.Item {
	var items []*derivepoet.Item
	for _, it := range f.Items {
		if len(it.Derives) > 0 {
			items = append(items, it)
		}
	}
	return items
}

// Parse scans the Rust source in src. The file name is only used for
// positions. Malformed items are reported and left out; the other items are
// still returned.
func Parse(ctx context.Context, filename string, src []byte) (*File, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(rust.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", filename)
	}
	defer tree.Close()

	s := &scanner{src: src, file: &File{Name: filename}, filename: filename}
	s.indexLines()
	root := tree.RootNode()
	if root.HasError() {
		if n := firstError(root); n != nil {
			return nil, errors.Mark(&derivepoet.Diagnostic{
				Pos: s.pos(n.StartByte()),
				Msg: "syntax error in Rust source",
			}, derivepoet.ErrSyntax)
		}
	}
	s.walk(root)
	return s.file, s.errs.Err()
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if e := firstError(n.Child(i)); e != nil {
			return e
		}
	}
	return nil
}

type scanner struct {
	src        []byte
	filename   string
	lineStarts []int
	file       *File
	errs       derivepoet.Diagnostics
}

func (s *scanner) indexLines() {
	s.lineStarts = []int{0}
	for i, b := range s.src {
		if b == '\n' {
			s.lineStarts = append(s.lineStarts, i+1)
		}
	}
}

// pos converts a byte offset into a position with a rune-based column.
func (s *scanner) pos(off uint32) derivepoet.Pos {
	o := int(off)
	line := sort.Search(len(s.lineStarts), func(i int) bool { return s.lineStarts[i] > o }) - 1
	start := s.lineStarts[line]
	return derivepoet.Pos{
		File:   s.filename,
		Line:   line + 1,
		Column: utf8.RuneCount(s.src[start:o]) + 1,
	}
}

func (s *scanner) text(n *sitter.Node) string {
	return string(s.src[n.StartByte():n.EndByte()])
}

// walk visits the items of a source file or module body. Outer attributes
// are sibling nodes that precede the item they apply to.
func (s *scanner) walk(n *sitter.Node) {
	var pending []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "attribute_item":
			pending = append(pending, child)
			continue
		case "line_comment", "block_comment":
			continue
		case "struct_item", "enum_item", "union_item":
			if item, err := s.item(child, pending); err != nil {
				s.errs = append(s.errs, derivepoet.Flatten(err)...)
			} else if item != nil {
				s.file.Items = append(s.file.Items, item)
			}
		case "mod_item":
			if body := child.ChildByFieldName("body"); body != nil {
				s.walk(body)
			}
		}
		pending = nil
	}
}

// attrs parses attribute nodes. Derive lists are returned separately.
func (s *scanner) attrs(nodes []*sitter.Node) ([]*derivepoet.Attribute, []string, error) {
	var attrs []*derivepoet.Attribute
	var derives []string
	for _, n := range nodes {
		text := s.text(n)
		if !strings.HasPrefix(text, "#[") || !strings.HasSuffix(text, "]") {
			continue
		}
		a, err := derivepoet.ParseAttribute(text[2:len(text)-1], s.pos(n.StartByte()+2))
		if err != nil {
			return nil, nil, err
		}
		if a.Path != "derive" {
			attrs = append(attrs, a)
			continue
		}
		parts, err := derivepoet.SplitTopLevel(a.Args, false)
		if err != nil {
			return nil, nil, err
		}
		for _, p := range parts {
			derives = append(derives, derivepoet.TokensString(p))
		}
	}
	return attrs, derives, nil
}

func (s *scanner) item(n *sitter.Node, attrNodes []*sitter.Node) (*derivepoet.Item, error) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return nil, nil
	}
	item := &derivepoet.Item{Name: s.text(name), Pos: s.pos(name.StartByte())}
	switch n.Type() {
	case "struct_item":
		item.Kind = derivepoet.ItemStruct
	case "enum_item":
		item.Kind = derivepoet.ItemEnum
	default:
		item.Kind = derivepoet.ItemUnion
	}

	var err error
	if item.Attrs, item.Derives, err = s.attrs(attrNodes); err != nil {
		return nil, err
	}
	if tp := n.ChildByFieldName("type_parameters"); tp != nil {
		if item.Generics, err = derivepoet.ParseGenerics(s.text(tp), s.pos(tp.StartByte())); err != nil {
			return nil, err
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "where_clause" {
			continue
		}
		preds, err := derivepoet.ParseWhereClause(s.text(c), s.pos(c.StartByte()))
		if err != nil {
			return nil, err
		}
		item.Generics.Where = append(item.Generics.Where, preds...)
	}

	body := n.ChildByFieldName("body")
	if item.Kind == derivepoet.ItemEnum {
		if body != nil {
			if item.Variants, err = s.variants(body); err != nil {
				return nil, err
			}
		}
		return item, nil
	}
	if item.Fields, err = s.fields(body); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *scanner) variants(list *sitter.Node) ([]*derivepoet.Variant, error) {
	var variants []*derivepoet.Variant
	var pending []*sitter.Node
	for i := 0; i < int(list.NamedChildCount()); i++ {
		c := list.NamedChild(i)
		switch c.Type() {
		case "attribute_item":
			pending = append(pending, c)
			continue
		case "enum_variant":
			name := c.ChildByFieldName("name")
			v := &derivepoet.Variant{Name: s.text(name), Pos: s.pos(name.StartByte())}
			attrs, _, err := s.attrs(pending)
			if err != nil {
				return nil, err
			}
			v.Attrs = attrs
			if v.Fields, err = s.fields(c.ChildByFieldName("body")); err != nil {
				return nil, err
			}
			variants = append(variants, v)
		}
		pending = nil
	}
	return variants, nil
}

// fields converts a field list node, or nil for unit structs and variants.
func (s *scanner) fields(body *sitter.Node) (derivepoet.Fields, error) {
	if body == nil {
		return derivepoet.UnitFields(), nil
	}
	var fs derivepoet.Fields
	switch body.Type() {
	case "field_declaration_list":
		fs.Style = derivepoet.FieldsNamed
	case "ordered_field_declaration_list":
		fs.Style = derivepoet.FieldsUnnamed
	default:
		return derivepoet.UnitFields(), nil
	}

	var pending []*sitter.Node
	for i := 0; i < int(body.NamedChildCount()); i++ {
		c := body.NamedChild(i)
		var f *derivepoet.Field
		var tyNode *sitter.Node
		switch {
		case c.Type() == "attribute_item":
			pending = append(pending, c)
			continue
		case c.Type() == "visibility_modifier", c.Type() == "line_comment", c.Type() == "block_comment":
			continue
		case fs.Style == derivepoet.FieldsNamed:
			if c.Type() != "field_declaration" {
				continue
			}
			f = &derivepoet.Field{Name: s.text(c.ChildByFieldName("name"))}
			tyNode = c.ChildByFieldName("type")
		default:
			// the type of a positional field
			f = &derivepoet.Field{}
			tyNode = c
		}
		f.Index = len(fs.List)
		f.Pos = s.pos(c.StartByte())
		attrs, _, err := s.attrs(pending)
		if err != nil {
			return derivepoet.Fields{}, err
		}
		f.Attrs = attrs
		pending = nil

		toks, err := derivepoet.Lex(s.text(tyNode), s.pos(tyNode.StartByte()))
		if err != nil {
			return derivepoet.Fields{}, err
		}
		if f.Type, err = derivepoet.ParseType(toks); err != nil {
			return derivepoet.Fields{}, err
		}
		fs.List = append(fs.List, f)
	}
	return fs, nil
}
