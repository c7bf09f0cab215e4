package engine

import (
	"sort"

	"github.com/wippyai/wasm-snip/errors"
	"github.com/wippyai/wasm-snip/wasm"
)

// NameIndex maps debug names to function indices and back, covering the
// whole function index space (imports and locals alike).
type NameIndex struct {
	ByName map[string]uint32
	ByIdx  map[uint32]string
}

// BuildNameIndex resolves the module's function-name subsection into a
// bidirectional index. Name-based selection requires it: a module without
// function names yields a missing_name_data error, and two functions
// sharing one debug name yield duplicate_name.
func BuildNameIndex(m *wasm.Module) (*NameIndex, error) {
	if m.Names == nil || len(m.Names.Funcs) == 0 {
		return nil, errors.MissingNameData()
	}

	idx := &NameIndex{
		ByName: make(map[string]uint32, len(m.Names.Funcs)),
		ByIdx:  make(map[uint32]string, len(m.Names.Funcs)),
	}

	// Walk indices in order so a duplicate reports the same pair
	// regardless of map iteration order.
	indices := make([]uint32, 0, len(m.Names.Funcs))
	for funcIdx := range m.Names.Funcs {
		indices = append(indices, funcIdx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	for _, funcIdx := range indices {
		name := m.Names.Funcs[funcIdx]
		if prev, ok := idx.ByName[name]; ok {
			return nil, errors.DuplicateName(name, prev, funcIdx)
		}
		idx.ByName[name] = funcIdx
		idx.ByIdx[funcIdx] = name
	}

	return idx, nil
}

// Resolve looks up a single function by debug name.
func (idx *NameIndex) Resolve(name string) (uint32, bool) {
	funcIdx, ok := idx.ByName[name]
	return funcIdx, ok
}
