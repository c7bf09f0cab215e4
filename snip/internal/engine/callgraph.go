package engine

import (
	"fmt"

	"github.com/wippyai/wasm-snip/wasm"
)

// FuncRefs captures the index-space references made by one function body:
// the functions it calls or takes references to, the globals it accesses,
// and the type indices it names in call_indirect immediates and block
// types.
type FuncRefs struct {
	Funcs   []uint32
	Globals []uint32
	Types   []uint32
}

// CallGraph maps each local function index to the references its body
// makes. Imported functions have no bodies and no entry.
type CallGraph map[uint32]FuncRefs

// BuildCallGraph analyzes a module and constructs the reference graph
// used by the reachability collector.
func BuildCallGraph(m *wasm.Module) (CallGraph, error) {
	cg := make(CallGraph, len(m.Code))
	numImported := uint32(m.NumImportedFuncs())

	for i, body := range m.Code {
		funcIdx := numImported + uint32(i)
		refs, err := ScanBodyRefs(body.Code)
		if err != nil {
			return nil, fmt.Errorf("decode func %d: %w", funcIdx, err)
		}
		cg[funcIdx] = refs
	}

	return cg, nil
}

// ScanBodyRefs decodes one code sequence and collects its references.
func ScanBodyRefs(code []byte) (FuncRefs, error) {
	var refs FuncRefs
	instrs, err := wasm.DecodeInstructions(code)
	if err != nil {
		return refs, err
	}

	for _, instr := range instrs {
		switch instr.Opcode {
		case wasm.OpCall, wasm.OpReturnCall:
			if imm, ok := instr.Imm.(wasm.CallImm); ok {
				refs.Funcs = appendUnique(refs.Funcs, imm.FuncIdx)
			}
		case wasm.OpRefFunc:
			if imm, ok := instr.Imm.(wasm.RefFuncImm); ok {
				refs.Funcs = appendUnique(refs.Funcs, imm.FuncIdx)
			}
		case wasm.OpCallIndirect, wasm.OpReturnCallIndirect:
			if imm, ok := instr.Imm.(wasm.CallIndirectImm); ok {
				refs.Types = appendUnique(refs.Types, imm.TypeIdx)
			}
		case wasm.OpGlobalGet, wasm.OpGlobalSet:
			if imm, ok := instr.Imm.(wasm.GlobalImm); ok {
				refs.Globals = appendUnique(refs.Globals, imm.GlobalIdx)
			}
		case wasm.OpBlock, wasm.OpLoop, wasm.OpIf:
			if imm, ok := instr.Imm.(wasm.BlockImm); ok && imm.Type >= 0 {
				refs.Types = appendUnique(refs.Types, uint32(imm.Type))
			}
		}
	}

	return refs, nil
}

func appendUnique(slice []uint32, val uint32) []uint32 {
	for _, v := range slice {
		if v == val {
			return slice
		}
	}
	return append(slice, val)
}
