// Package wasmsnip replaces WebAssembly functions with traps.
//
// Compilers for languages with rich runtimes tend to drag formatting,
// panicking, and other machinery into every binary. When that code can
// never legitimately run, snipping it replaces the function bodies with
// a trap and removes everything only they referenced, often cutting the
// binary substantially.
//
// The library is organized into a few packages:
//
//	wasm-snip/           Root package with version information
//	├── snip/            Public API: Snip, SnipModule, Config, Stats
//	│   └── internal/engine/  Selection, rewriting, patching, collection
//	├── wasm/            Core WASM binary decode/encode primitives
//	├── errors/          Structured error types
//	└── cmd/wasm-snip/   Command-line tool
//
// # Quick Start
//
//	out, stats, err := snip.Snip(wasmBytes, snip.Config{
//	    Functions:       []string{"annoying_space_waster"},
//	    SnipRustFmtCode: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("removed %d functions\n", stats.RemovedFunctions)
//
// # How snipping works
//
// Each selected function is forced dead. Direct call sites are rewritten
// to drop the already-evaluated arguments and trap, preserving argument
// side effects. References that must stay type-correct (indirect-call
// table slots, ref.func, the start function) are redirected to
// synthesized stubs whose body is a single unreachable. Exports of
// snipped functions are pruned, snipped imports are unimported, and a
// reachability pass collects every function, global, and type that
// survived only because the snipped code used it.
//
// Selection is all-or-nothing: unknown names, ambiguous names, and
// malformed patterns fail the pass before any mutation.
package wasmsnip
