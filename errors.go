package derivepoet

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Error classes. Every diagnostic produced by this package is marked with
// exactly one of these, so callers can use errors.Is to tell them apart.
var (
	// ErrSyntax marks malformed templates, attribute arguments, and bound
	// lists, as well as legacy attribute syntax.
	ErrSyntax = errors.New("syntax error")
	// ErrShape marks arity mismatches and templates whose placeholders do not
	// fit the shape of the annotated item.
	ErrShape = errors.New("shape error")
	// ErrConflict marks duplicate or mutually exclusive attributes.
	ErrConflict = errors.New("conflicting attributes")
	// ErrReference marks bounds and references naming things that are not in
	// scope.
	ErrReference = errors.New("unresolved reference")
	// ErrUnsupported marks derivations requested for an item kind that the
	// derivation does not support (e.g. Into on an enum).
	ErrUnsupported = errors.New("unsupported item")
)

// Diagnostic is an error tied to a position in the annotated source.
type Diagnostic struct {
	Pos Pos
	Msg string
}

func (d *Diagnostic) Error() string {
	if !d.Pos.IsValid() {
		return d.Msg
	}
	return d.Pos.String() + ": " + d.Msg
}

func diagf(class error, pos Pos, format string, args ...interface{}) error {
	d := &Diagnostic{Pos: pos, Msg: fmt.Sprintf(format, args...)}
	return errors.Mark(d, class)
}

// withSuggestion attaches a suggested rewrite as a user-facing hint. The
// message of err should already spell the suggestion out; the hint makes it
// available to tools via errors.GetAllHints.
func withSuggestion(err error, suggestion string) error {
	return errors.WithHint(err, suggestion)
}

// PositionOf returns the source position carried by err, if any.
func PositionOf(err error) (Pos, bool) {
	var d *Diagnostic
	if errors.As(err, &d) {
		return d.Pos, d.Pos.IsValid()
	}
	return Pos{}, false
}

// Diagnostics is a list of errors collected while examining independent
// parts of one item (such as the variants of an enum). Each element keeps
// its own position.
type Diagnostics []error

func (ds Diagnostics) Error() string {
	msgs := make([]string, len(ds))
	for i, d := range ds {
		msgs[i] = d.Error()
	}
	return strings.Join(msgs, "\n")
}

// Is reports whether any of the collected errors matches target.
func (ds Diagnostics) Is(target error) bool {
	for _, d := range ds {
		if errors.Is(d, target) {
			return true
		}
	}
	return false
}

// Err returns nil when no errors were collected, the single error when
// exactly one was, and the list otherwise.
func (ds Diagnostics) Err() error {
	switch len(ds) {
	case 0:
		return nil
	case 1:
		return ds[0]
	default:
		return ds
	}
}

// Flatten returns the individual errors in err. A Diagnostics value is
// expanded; any other error is returned as the only element.
func Flatten(err error) []error {
	if err == nil {
		return nil
	}
	var ds Diagnostics
	if errors.As(err, &ds) {
		var out []error
		for _, d := range ds {
			out = append(out, Flatten(d)...)
		}
		return out
	}
	return []error{err}
}
