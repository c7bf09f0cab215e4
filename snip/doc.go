// Package snip removes functions from WebAssembly modules, replacing
// them with traps.
//
// Targets are selected by debug name, regular expression, or built-in
// profile (Rust formatting and panicking machinery). Call sites of a
// snipped function are rewritten to preserve argument side effects and
// trap; indirect-call table slots receive type-matching stub functions
// so signatures stay valid. Everything made unreachable by the removal
// is collected and the index spaces compacted, so snipping a large
// subsystem shrinks the binary rather than just neutering it.
//
//	out, stats, err := snip.Snip(data, snip.Config{
//	    SnipRustFmtCode: true,
//	})
//
// Selection is all-or-nothing: a bad pattern or unknown name fails the
// whole pass before any mutation.
package snip
