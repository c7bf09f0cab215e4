// Package engine implements the snip transformation pipeline.
//
// The pipeline runs in fixed phases over a parsed module:
//
//  1. Select: resolve debug names, compile patterns, and compute the set
//     of snip targets plus the export-retention filter. All selection
//     errors surface here, before any mutation.
//  2. Rewrite: replace direct calls to snipped functions with drops and
//     an unreachable trap, preserving argument side effects.
//  3. Patch: redirect indirect-call table slots, ref.func references,
//     and the start function to synthesized trap stubs of matching type.
//  4. Prune: delete exports of snipped functions and function exports
//     excluded by the retention filter.
//  5. Collect: mark reachable functions, globals, and types from the
//     surviving roots, sweep the rest, and remap every index space in
//     a single pass.
package engine
