// Package derivepoet generates Rust trait implementations for data types
// annotated in the style of the derive_more crate. It covers the formatting
// derives (Display, Binary, Octal, LowerHex, UpperHex, LowerExp, UpperExp,
// Pointer, and Debug) and the conversion derives From and Into.
//
// Items
//
// The input of every derivation is an Item: a struct, enum, or union with
// its generics, attributes, fields, and variants. Items can be built by hand
// with NewStruct, NewEnum, and friends, or scanned from Rust source with the
// rustsrc sub-package. Attributes keep their argument tokens, each with a
// position, so errors point at the offending spot in the source.
//
// Plans
//
// Each derive is computed in two steps. First a plan is made from the item:
// PlanDisplay, PlanFrom, and PlanInto validate the item's attributes and
// decide what every arm, conversion, and bound looks like. Errors found here
// are classified with ErrSyntax, ErrShape, ErrConflict, ErrReference, or
// ErrUnsupported, and carry a Pos. Suggested rewrites for legacy attribute
// syntax are attached as hints (see errors.GetAllHints in
// github.com/cockroachdb/errors).
//
// A plan can then be rendered into impl blocks (ImplSpec). Plans can also be
// evaluated directly: DisplayPlan.Preview formats given field values the way
// the generated impl would, and FromConversion.Apply and IntoPlan.Unapply
// run conversions on plain values. These are mostly useful in tests.
//
// Files
//
// A Generator expands every derive listed on an item and collects the
// resulting impls into a RustFile. RustFile embeds Uses, which tracks the
// modules the generated code refers to. When a file's UseImports field is
// set, those modules get use declarations and references are shortened;
// otherwise every reference is an absolute path such as
// "::core::fmt::Display".
//
// Code Blocks
//
// Function bodies are not modeled. They are CodeBlocks built with Print*
// methods that resemble those of the "fmt" package, or rendered from
// "text/template" templates. Symbol and Module values used as format
// arguments or inside template data are re-qualified when the file is
// written, so they always match the file's use declarations.
package derivepoet
