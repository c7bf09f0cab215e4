package engine

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-snip/wasm"
)

// Result reports everything one snip pass did to the module.
type Result struct {
	SnippedFuncs   int // functions selected for snipping
	StubsAdded     int // trap stubs synthesized
	RemovedExports int
	RemovedFuncs   int // local functions collected
	RemovedImports int // snipped function imports removed
	RemovedGlobals int
	RemovedTypes   int
}

// Run executes the full snip pipeline on the module in place:
// select targets, rewrite call sites, patch tables and the start
// function, prune exports, then collect everything left dead.
//
// Selection failures happen before any mutation, so on error the
// module is unchanged. A pass that selects nothing and filters
// nothing leaves the module untouched.
func Run(m *wasm.Module, cfg Config) (Result, error) {
	var res Result

	sel, err := Select(m, cfg)
	if err != nil {
		return res, err
	}
	res.SnippedFuncs = len(sel.Snipped)

	if len(sel.Snipped) == 0 && !sel.Filtering() {
		Logger().Debug("nothing selected, module unchanged")
		return res, nil
	}

	stubs := NewStubProvider(m)

	if err := RewriteCalls(m, sel.Snipped, stubs); err != nil {
		return res, err
	}
	if err := PatchTables(m, sel.Snipped, stubs); err != nil {
		return res, err
	}
	res.StubsAdded = stubs.Created()

	res.RemovedExports = PruneExports(m, sel.Snipped, sel)

	collected, err := Collect(m, sel.Snipped)
	if err != nil {
		return res, err
	}
	res.RemovedFuncs = collected.RemovedFuncs
	res.RemovedImports = collected.RemovedImports
	res.RemovedGlobals = collected.RemovedGlobals
	res.RemovedTypes = collected.RemovedTypes

	Logger().Info("snip pass complete",
		zap.Int("snipped", res.SnippedFuncs),
		zap.Int("stubs", res.StubsAdded),
		zap.Int("removed_funcs", res.RemovedFuncs),
		zap.Int("removed_imports", res.RemovedImports),
		zap.Int("removed_exports", res.RemovedExports),
		zap.Int("removed_globals", res.RemovedGlobals),
		zap.Int("removed_types", res.RemovedTypes))

	return res, nil
}
