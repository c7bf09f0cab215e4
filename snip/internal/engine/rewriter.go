package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-snip/errors"
	"github.com/wippyai/wasm-snip/wasm"
)

// RewriteCalls replaces every direct call to a snipped function with one
// drop per argument followed by unreachable. The arguments were already
// evaluated in order by the preceding instructions, so their side effects
// are preserved exactly; unreachable makes the stack polymorphic, so no
// result value needs synthesizing.
//
// ref.func references to snipped functions inside code are redirected to
// type-matching trap stubs. Bodies of snipped functions are skipped: they
// are about to be deleted.
func RewriteCalls(m *wasm.Module, snipped map[uint32]bool, stubs *StubProvider) error {
	if len(snipped) == 0 {
		return nil
	}

	numImported := uint32(m.NumImportedFuncs())
	// Stubs appended mid-pass must not be rewritten.
	numBodies := len(m.Code)

	for i := 0; i < numBodies; i++ {
		funcIdx := numImported + uint32(i)
		if snipped[funcIdx] {
			continue
		}

		instrs, err := wasm.DecodeInstructions(m.Code[i].Code)
		if err != nil {
			return errors.Wrap(errors.PhaseRewrite, errors.KindInvalidData, err,
				fmt.Sprintf("decode func %d", funcIdx))
		}

		rewritten, changed, err := rewriteBody(m, instrs, snipped, stubs)
		if err != nil {
			return err
		}
		if changed {
			m.Code[i].Code = wasm.EncodeInstructions(rewritten)
			Logger().Debug("rewrote call sites", zap.Uint32("func", funcIdx))
		}
	}

	return nil
}

func rewriteBody(m *wasm.Module, instrs []wasm.Instruction, snipped map[uint32]bool, stubs *StubProvider) ([]wasm.Instruction, bool, error) {
	out := make([]wasm.Instruction, 0, len(instrs))
	changed := false

	for _, instr := range instrs {
		if target, ok := instr.GetCallTarget(); ok && snipped[target] {
			ft := m.GetFuncType(target)
			if ft == nil {
				return nil, false, errors.OutOfBounds(errors.PhaseRewrite, []string{"funcs"}, int(target), int(m.NumFuncs()))
			}
			for range ft.Params {
				out = append(out, wasm.Instruction{Opcode: wasm.OpDrop})
			}
			out = append(out, wasm.Instruction{Opcode: wasm.OpUnreachable})
			changed = true
			continue
		}

		if instr.Opcode == wasm.OpRefFunc {
			if imm, ok := instr.Imm.(wasm.RefFuncImm); ok && snipped[imm.FuncIdx] {
				stubIdx, err := stubs.StubFor(imm.FuncIdx)
				if err != nil {
					return nil, false, err
				}
				instr.Imm = wasm.RefFuncImm{FuncIdx: stubIdx}
				changed = true
			}
		}

		out = append(out, instr)
	}

	return out, changed, nil
}
