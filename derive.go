package derivepoet

import (
	"sort"
	"strings"

	"go.uber.org/zap"
)

// derivePrefix qualifies derive names that would otherwise name a standard
// library derive.
const derivePrefix = "derive_more::"

// deriver produces the impls for one derive name.
type deriver func(item *Item) ([]*ImplSpec, error)

var derivers = func() map[string]deriver {
	m := map[string]deriver{
		"From": func(item *Item) ([]*ImplSpec, error) {
			p, err := PlanFrom(item)
			if err != nil {
				return nil, err
			}
			return p.Impls(), nil
		},
		"Into": func(item *Item) ([]*ImplSpec, error) {
			p, err := PlanInto(item)
			if err != nil {
				return nil, err
			}
			return p.Impls(), nil
		},
	}
	for _, t := range AllTraits() {
		t := t
		m[t.String()] = func(item *Item) ([]*ImplSpec, error) {
			p, err := PlanDisplay(item, t)
			if err != nil {
				return nil, err
			}
			return []*ImplSpec{p.Impl()}, nil
		}
	}
	return m
}()

// stdDerives are derive names that, unqualified, refer to the standard
// library's derives rather than ours.
var stdDerives = map[string]bool{"Debug": true}

// Derives returns the supported derive names, sorted.
func Derives() []string {
	names := make([]string, 0, len(derivers))
	for n := range derivers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// lookupDerive resolves a derive name as written in a derive list. The
// second result is false for names this package does not handle.
func lookupDerive(name string) (string, deriver, bool) {
	qualified := strings.HasPrefix(name, derivePrefix)
	base := strings.TrimPrefix(name, derivePrefix)
	if !qualified && stdDerives[base] {
		return base, nil, false
	}
	d, ok := derivers[base]
	return base, d, ok
}

// Expansion is the output of one derive on one item.
type Expansion struct {
	Item   *Item
	Derive string
	Impls  []*ImplSpec
}

// Generator expands derives on items.
type Generator struct {
	log *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger used for per-item debug records and warnings.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		g.log = l
	}
}

// NewGenerator returns a generator with the given options. By default it
// logs nothing.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{log: zap.NewNop()}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Expand runs a single derive on item. The derive name may be qualified
// with "derive_more::".
func (g *Generator) Expand(item *Item, derive string) (*Expansion, error) {
	base, d, ok := lookupDerive(derive)
	if !ok {
		return nil, diagf(ErrUnsupported, item.Pos, "unsupported derive `%s`", derive)
	}
	impls, err := d(item)
	if err != nil {
		g.log.Debug("derive failed",
			zap.String("item", item.Name),
			zap.String("derive", base),
			zap.Error(err))
		return nil, err
	}
	g.log.Debug("derived",
		zap.String("item", item.Name),
		zap.String("derive", base),
		zap.Int("impls", len(impls)))
	return &Expansion{Item: item, Derive: base, Impls: impls}, nil
}

// ExpandAll runs every supported derive listed on the item, in order.
// Derives that belong to the standard library or other crates are skipped.
// Either every derive succeeds, or no expansions are returned and the error
// lists every failure.
func (g *Generator) ExpandAll(item *Item) ([]*Expansion, error) {
	var exps []*Expansion
	var errs Diagnostics
	for _, name := range item.Derives {
		if _, _, ok := lookupDerive(name); !ok {
			if strings.HasPrefix(name, derivePrefix) {
				g.log.Warn("skipping unknown derive",
					zap.String("item", item.Name),
					zap.String("derive", name))
			}
			continue
		}
		exp, err := g.Expand(item, name)
		if err != nil {
			errs = append(errs, Flatten(err)...)
			continue
		}
		exps = append(exps, exp)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return exps, nil
}

// ExpandFile expands every item into a new file with the given name. Items
// that fail do not contribute impls; their errors are collected and returned
// together with the file holding the impls of the other items.
func (g *Generator) ExpandFile(name string, items ...*Item) (*RustFile, error) {
	f := NewRustFile(name)
	var errs Diagnostics
	for _, item := range items {
		exps, err := g.ExpandAll(item)
		if err != nil {
			errs = append(errs, Flatten(err)...)
			continue
		}
		for _, e := range exps {
			f.AddImpls(e.Impls...)
		}
	}
	return f, errs.Err()
}
