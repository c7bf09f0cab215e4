package engine

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-snip/errors"
	"github.com/wippyai/wasm-snip/wasm"
)

// StubProvider synthesizes trap stubs: local functions whose body is a
// single unreachable, one per distinct function type. Stubs stand in for
// snipped functions wherever a type-safe reference must survive (table
// slots, ref.func, the start function).
type StubProvider struct {
	m      *wasm.Module
	byType map[uint32]uint32 // type index -> stub function index
}

// NewStubProvider creates a provider appending stubs to the module.
func NewStubProvider(m *wasm.Module) *StubProvider {
	return &StubProvider{m: m, byType: make(map[uint32]uint32)}
}

// Created returns the number of stubs synthesized so far.
func (s *StubProvider) Created() int {
	return len(s.byType)
}

// StubFor returns the stub standing in for the given function, creating
// it on first use for that function's type.
func (s *StubProvider) StubFor(target uint32) (uint32, error) {
	typeIdx, ok := s.m.FuncTypeIdx(target)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhasePatch, []string{"funcs"}, int(target), int(s.m.NumFuncs()))
	}
	if stubIdx, ok := s.byType[typeIdx]; ok {
		return stubIdx, nil
	}

	stubIdx := uint32(s.m.NumFuncs())
	s.m.Funcs = append(s.m.Funcs, typeIdx)
	s.m.Code = append(s.m.Code, wasm.FuncBody{
		Code: []byte{wasm.OpUnreachable, wasm.OpEnd},
	})
	s.byType[typeIdx] = stubIdx

	Logger().Debug("synthesized trap stub",
		zap.Uint32("func", stubIdx),
		zap.Uint32("type", typeIdx))
	return stubIdx, nil
}

// PatchTables redirects every reference a snipped function may retain
// outside code bodies: element segment entries (both index vectors and
// ref.func expressions), ref.func in global initializers, and the start
// function. Each reference is replaced with a type-matching stub.
func PatchTables(m *wasm.Module, snipped map[uint32]bool, stubs *StubProvider) error {
	for i := range m.Elements {
		elem := &m.Elements[i]

		for j, funcIdx := range elem.FuncIdxs {
			if !snipped[funcIdx] {
				continue
			}
			stubIdx, err := stubs.StubFor(funcIdx)
			if err != nil {
				return err
			}
			elem.FuncIdxs[j] = stubIdx
		}

		for j, expr := range elem.Exprs {
			patched, changed, err := patchExprRefs(expr, snipped, stubs)
			if err != nil {
				return errors.Wrap(errors.PhasePatch, errors.KindInvalidData, err, "element expression")
			}
			if changed {
				elem.Exprs[j] = patched
			}
		}
	}

	for i := range m.Globals {
		patched, changed, err := patchExprRefs(m.Globals[i].Init, snipped, stubs)
		if err != nil {
			return errors.Wrap(errors.PhasePatch, errors.KindInvalidData, err, "global initializer")
		}
		if changed {
			m.Globals[i].Init = patched
		}
	}

	if m.Start != nil && snipped[*m.Start] {
		stubIdx, err := stubs.StubFor(*m.Start)
		if err != nil {
			return err
		}
		m.Start = &stubIdx
	}

	return nil
}

// patchExprRefs rewrites ref.func references to snipped functions inside
// a constant expression.
func patchExprRefs(expr []byte, snipped map[uint32]bool, stubs *StubProvider) ([]byte, bool, error) {
	if len(expr) == 0 {
		return expr, false, nil
	}
	instrs, err := wasm.DecodeInstructions(expr)
	if err != nil {
		return nil, false, err
	}

	changed := false
	for i := range instrs {
		if instrs[i].Opcode != wasm.OpRefFunc {
			continue
		}
		imm, ok := instrs[i].Imm.(wasm.RefFuncImm)
		if !ok || !snipped[imm.FuncIdx] {
			continue
		}
		stubIdx, err := stubs.StubFor(imm.FuncIdx)
		if err != nil {
			return nil, false, err
		}
		instrs[i].Imm = wasm.RefFuncImm{FuncIdx: stubIdx}
		changed = true
	}

	if !changed {
		return expr, false, nil
	}
	return wasm.EncodeInstructions(instrs), true, nil
}
