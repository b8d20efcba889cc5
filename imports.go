package derivepoet

import (
	"fmt"
	"sort"
	"strings"
)

// Module is a Rust module path, like "core::fmt". The name is the local name
// the module is referenced by once it has been brought into scope with a use
// declaration. A module with an empty name is referenced by its absolute
// path ("::core::fmt").
type Module struct {
	Path, Name string
}

// NewModule returns a module for the given crate-rooted path. Its name is
// empty, so symbols in it are rendered with absolute paths until a Uses
// qualifies them.
func NewModule(path string) Module {
	return Module{Path: strings.TrimPrefix(path, "::")}
}

func (m Module) Symbol(name string) Symbol {
	return Symbol{Module: m, Name: name}
}

// Base returns the last segment of the module path.
func (m Module) Base() string {
	if i := strings.LastIndex(m.Path, "::"); i >= 0 {
		return m.Path[i+2:]
	}
	return m.Path
}

// Symbol references a named item in a module: a trait, type, or macro.
type Symbol struct {
	Module Module
	Name   string
}

// NewSymbol returns a symbol for the given module path and name.
func NewSymbol(modulePath, name string) Symbol {
	return NewModule(modulePath).Symbol(name)
}

// String prints the symbol as it should appear in Rust source. If the
// symbol's module has a name, it is used as the prefix ("fmt::Display");
// otherwise the absolute path is used ("::core::fmt::Display").
func (s Symbol) String() string {
	switch {
	case s.Module.Name != "":
		return s.Module.Name + "::" + s.Name
	case s.Module.Path != "":
		return "::" + s.Module.Path + "::" + s.Name
	default:
		return s.Name
	}
}

// Well-known modules and symbols referenced by generated code.
var (
	ModuleFmt     = NewModule("core::fmt")
	ModuleConvert = NewModule("core::convert")
	ModuleOps     = NewModule("core::ops")
	ModuleCore    = NewModule("core")

	SymFormatter = ModuleFmt.Symbol("Formatter")
	SymFmtResult = ModuleFmt.Symbol("Result")
	SymFrom      = ModuleConvert.Symbol("From")
	SymFn        = ModuleOps.Symbol("Fn")
	SymWrite     = ModuleCore.Symbol("write!")
)

// Uses accumulates the modules referenced by a generated Rust file and
// assigns each a local name for a use declaration. Conflicting names get a
// numeric suffix, so "::core::fmt" and "::std::fmt" are imported as "fmt" and
// "fmt1".
//
// Uses is not thread-safe.
type Uses struct {
	usesByPath  map[string]useDef
	pathsByName map[string]string
}

type useDef struct {
	name    string
	isAlias bool
}

// NewUses returns an empty set of use declarations. Names given as reserved
// will never be assigned to a module (for example, names of items declared in
// the same file).
func NewUses(reserved ...string) *Uses {
	u := &Uses{}
	for _, r := range reserved {
		u.Reserve(r)
	}
	return u
}

// Reserve marks name as unavailable for module aliases.
func (u *Uses) Reserve(name string) {
	u.init()
	if _, ok := u.pathsByName[name]; !ok {
		u.pathsByName[name] = ""
	}
}

func (u *Uses) init() {
	if u.usesByPath == nil {
		u.usesByPath = map[string]useDef{}
		u.pathsByName = map[string]string{}
	}
}

// RegisterUse brings the module with the given path into scope and returns
// the prefix for symbols in it, including the trailing "::". It is safe to
// register the same module repeatedly; the same prefix is returned every time.
func (u *Uses) RegisterUse(path string) string {
	return u.prefixForModule(NewModule(path).Path, true)
}

// PrefixForModule returns the prefix to use for qualifying symbols from the
// given module. This method panics if the module was never registered.
func (u *Uses) PrefixForModule(path string) string {
	return u.prefixForModule(NewModule(path).Path, false)
}

func (u *Uses) prefixForModule(path string, registerIfNotFound bool) string {
	if ex, ok := u.usesByPath[path]; ok {
		return ex.name + "::"
	}
	if !registerIfNotFound {
		panic(fmt.Sprintf("module %q never registered", path))
	}
	u.init()

	base := Module{Path: path}.Base()
	n := base
	suffix := 1
	for {
		if _, ok := u.pathsByName[n]; !ok && !IsKeyword(n) {
			u.pathsByName[n] = path
			u.usesByPath[path] = useDef{name: n, isAlias: n != base}
			return n + "::"
		}
		n = fmt.Sprintf("%s%d", base, suffix)
		suffix++
	}
}

// EnsureImported registers the symbol's module and returns a symbol whose
// module carries the local name, so that String() renders the short form.
func (u *Uses) EnsureImported(sym Symbol) Symbol {
	return u.qualify(sym, true)
}

// Qualify is like EnsureImported but panics if the symbol's module was never
// registered.
func (u *Uses) Qualify(sym Symbol) Symbol {
	return u.qualify(sym, false)
}

func (u *Uses) qualify(sym Symbol, registerIfNotFound bool) Symbol {
	if sym.Module.Path == "" {
		return sym
	}
	name := strings.TrimSuffix(u.prefixForModule(sym.Module.Path, registerIfNotFound), "::")
	if name != sym.Module.Name {
		return Symbol{Module: Module{Path: sym.Module.Path, Name: name}, Name: sym.Name}
	}
	return sym
}

// UseSpecs returns the use declarations accumulated so far, sorted by path.
func (u *Uses) UseSpecs() []UseSpec {
	specs := make([]UseSpec, 0, len(u.usesByPath))
	for path, def := range u.usesByPath {
		spec := UseSpec{Path: path}
		if def.isAlias {
			spec.Alias = def.name
		}
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool {
		return specs[i].Path < specs[j].Path
	})
	return specs
}

// UseSpec describes one use declaration. The Alias is empty if the module is
// referenced by its own name.
type UseSpec struct {
	Alias string
	Path  string
}

// String returns the declaration body, without the "use" keyword and the
// trailing semicolon. For example:
//
//	::core::fmt
//	::std::fmt as fmt1
func (s UseSpec) String() string {
	if s.Alias == "" {
		return "::" + s.Path
	}
	return "::" + s.Path + " as " + s.Alias
}
