package derivepoet

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// CodeBlock is a sequence of lines of Rust code. Arguments that are Symbols
// (or Modules) are rewritten before rendering, according to the use
// declarations of the file the block ends up in.
type CodeBlock struct {
	lines []line
}

func (cb *CodeBlock) Print(text string) *CodeBlock {
	return cb.Printf("%s", text)
}

func (cb *CodeBlock) Println(text string) *CodeBlock {
	return cb.Printlnf("%s", text)
}

func (cb *CodeBlock) Printf(fmt string, args ...interface{}) *CodeBlock {
	cb.lines = append(cb.lines, line{format: fmt, args: args})
	return cb
}

func (cb *CodeBlock) Printlnf(fmt string, args ...interface{}) *CodeBlock {
	return cb.Printf(fmt+"\n", args...)
}

// RenderTemplate adds the output of the given template to the block. The
// data is rewritten with Uses.QualifyTemplateData before the template
// executes.
func (cb *CodeBlock) RenderTemplate(tmpl *template.Template, data interface{}) *CodeBlock {
	cb.lines = append(cb.lines, line{tmpl: tmpl, data: data})
	return cb
}

// AddCode appends the lines of other to cb, indented by the given number of
// levels.
func (cb *CodeBlock) AddCode(indent int, other *CodeBlock) *CodeBlock {
	for _, l := range other.lines {
		l.indent += indent
		cb.lines = append(cb.lines, l)
	}
	return cb
}

// IsEmpty returns true if no lines have been added.
func (cb *CodeBlock) IsEmpty() bool {
	return cb == nil || len(cb.lines) == 0
}

func Print(text string) *CodeBlock {
	return (&CodeBlock{}).Print(text)
}

func Println(text string) *CodeBlock {
	return (&CodeBlock{}).Println(text)
}

func Printf(fmt string, args ...interface{}) *CodeBlock {
	return (&CodeBlock{}).Printf(fmt, args...)
}

func Printlnf(fmt string, args ...interface{}) *CodeBlock {
	return (&CodeBlock{}).Printlnf(fmt, args...)
}

func (cb *CodeBlock) qualify(uses *Uses) {
	for li := range cb.lines {
		l := &cb.lines[li]
		if l.tmpl != nil {
			l.data = uses.QualifyTemplateData(l.data)
			continue
		}
		for i := range l.args {
			switch a := l.args[i].(type) {
			case Symbol:
				l.args[i] = uses.EnsureImported(a)
			case *Symbol:
				sym := uses.EnsureImported(*a)
				l.args[i] = &sym
			case Module:
				l.args[i] = Module{Path: a.Path, Name: strings.TrimSuffix(uses.RegisterUse(a.Path), "::")}
			case *CodeBlock:
				a.qualify(uses)
			case interface{ ToSymbol() Symbol }:
				l.args[i] = uses.EnsureImported(a.ToSymbol())
			}
		}
	}
}

// String renders the block without any indentation.
func (cb *CodeBlock) String() string {
	var b bytes.Buffer
	if err := cb.writeTo(&b, 0); err != nil {
		return fmt.Sprintf("!(%v)", err)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (cb *CodeBlock) writeTo(b *bytes.Buffer, indent int) error {
	var pending bytes.Buffer
	atLineStart := true
	for _, l := range cb.lines {
		var text string
		if l.tmpl != nil {
			var tb bytes.Buffer
			if err := l.tmpl.Execute(&tb, l.data); err != nil {
				return err
			}
			text = tb.String()
		} else {
			text = fmt.Sprintf(l.format, formatArgs(l.args)...)
		}
		for _, r := range text {
			if atLineStart && r != '\n' {
				writeIndent(&pending, indent+l.indent)
			}
			pending.WriteRune(r)
			atLineStart = r == '\n'
		}
	}
	b.Write(pending.Bytes())
	return nil
}

// formatArgs converts Modules into their rendered prefix so they print the
// same way in any verb.
func formatArgs(args []interface{}) []interface{} {
	var ret []interface{}
	for i, a := range args {
		if m, ok := a.(Module); ok {
			if ret == nil {
				ret = make([]interface{}, len(args))
				copy(ret, args)
			}
			if m.Name != "" {
				ret[i] = m.Name
			} else {
				ret[i] = "::" + m.Path
			}
		}
	}
	if ret == nil {
		return args
	}
	return ret
}

func writeIndent(b *bytes.Buffer, indent int) {
	for i := 0; i < indent; i++ {
		b.WriteString("    ")
	}
}

type line struct {
	format string
	args   []interface{}
	tmpl   *template.Template
	data   interface{}
	indent int
}
