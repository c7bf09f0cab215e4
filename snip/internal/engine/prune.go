package engine

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-snip/wasm"
)

// PruneExports deletes exports that reference snipped functions, plus
// function exports excluded by the retention filter. Non-function exports
// are never touched by retention. Returns the number of exports removed.
func PruneExports(m *wasm.Module, snipped map[uint32]bool, sel *Selection) int {
	kept := m.Exports[:0]
	removed := 0

	for _, exp := range m.Exports {
		if exp.Kind == wasm.KindFunc {
			if snipped[exp.Idx] || !sel.RetainsExport(exp.Name) {
				Logger().Debug("pruned export",
					zap.String("name", exp.Name),
					zap.Uint32("func", exp.Idx))
				removed++
				continue
			}
		}
		kept = append(kept, exp)
	}

	m.Exports = kept
	return removed
}
