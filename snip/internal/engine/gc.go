package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-snip/errors"
	"github.com/wippyai/wasm-snip/wasm"
)

// CollectResult reports what the reachability collector deleted.
type CollectResult struct {
	RemovedFuncs   int // local functions
	RemovedImports int // snipped function imports
	RemovedGlobals int // local globals
	RemovedTypes   int
}

// Collect removes everything made dead by snipping: unreferenced local
// functions, local globals, and types, plus the snipped function imports.
// Imported entities are otherwise never deleted.
//
// Roots are the surviving exports, the start function, element segment
// references, and offset/initializer expressions. After the sweep a
// single remap pass rewrites every function, global, and type index in
// the module, including the name section.
func Collect(m *wasm.Module, snipped map[uint32]bool) (CollectResult, error) {
	var res CollectResult

	cg, err := BuildCallGraph(m)
	if err != nil {
		return res, errors.Wrap(errors.PhaseCollect, errors.KindInvalidData, err, "build call graph")
	}

	numImportedFuncs := uint32(m.NumImportedFuncs())
	numImportedGlobals := uint32(m.NumImportedGlobals())

	liveFuncs := make(map[uint32]bool)
	liveGlobals := make(map[uint32]bool)
	liveTypes := make(map[uint32]bool)
	var funcQueue, globalQueue []uint32

	markType := func(t uint32) {
		if int(t) < len(m.Types) {
			liveTypes[t] = true
		}
	}
	markFunc := func(f uint32) {
		// Snipped functions are forced dead; every reference to them
		// was rewritten before collection.
		if snipped[f] || liveFuncs[f] {
			return
		}
		liveFuncs[f] = true
		funcQueue = append(funcQueue, f)
	}
	markGlobal := func(g uint32) {
		if liveGlobals[g] {
			return
		}
		liveGlobals[g] = true
		globalQueue = append(globalQueue, g)
	}
	markExpr := func(expr []byte, what string) error {
		if len(expr) == 0 {
			return nil
		}
		refs, err := ScanBodyRefs(expr)
		if err != nil {
			return errors.Wrap(errors.PhaseCollect, errors.KindInvalidData, err, what)
		}
		for _, f := range refs.Funcs {
			markFunc(f)
		}
		for _, g := range refs.Globals {
			markGlobal(g)
		}
		return nil
	}

	// Roots.
	for _, exp := range m.Exports {
		switch exp.Kind {
		case wasm.KindFunc:
			markFunc(exp.Idx)
		case wasm.KindGlobal:
			markGlobal(exp.Idx)
		}
	}
	if m.Start != nil {
		markFunc(*m.Start)
	}
	for i := range m.Elements {
		elem := &m.Elements[i]
		for _, funcIdx := range elem.FuncIdxs {
			markFunc(funcIdx)
		}
		for _, expr := range elem.Exprs {
			if err := markExpr(expr, "element expression"); err != nil {
				return res, err
			}
		}
		if err := markExpr(elem.Offset, "element offset"); err != nil {
			return res, err
		}
	}
	for i := range m.Data {
		if err := markExpr(m.Data[i].Offset, "data offset"); err != nil {
			return res, err
		}
	}

	// Transitive marking over the combined func/global worklist.
	for len(funcQueue) > 0 || len(globalQueue) > 0 {
		if len(funcQueue) > 0 {
			f := funcQueue[len(funcQueue)-1]
			funcQueue = funcQueue[:len(funcQueue)-1]

			if typeIdx, ok := m.FuncTypeIdx(f); ok {
				markType(typeIdx)
			}
			if f >= numImportedFuncs {
				refs := cg[f]
				for _, callee := range refs.Funcs {
					markFunc(callee)
				}
				for _, g := range refs.Globals {
					markGlobal(g)
				}
				for _, t := range refs.Types {
					markType(t)
				}
			}
			continue
		}

		g := globalQueue[len(globalQueue)-1]
		globalQueue = globalQueue[:len(globalQueue)-1]
		if g >= numImportedGlobals {
			localIdx := g - numImportedGlobals
			if int(localIdx) < len(m.Globals) {
				if err := markExpr(m.Globals[localIdx].Init, fmt.Sprintf("global %d init", g)); err != nil {
					return res, err
				}
			}
		}
	}

	// Surviving function imports keep their types alive even when nothing
	// references them; the collector never deletes imports.
	funcIdx := uint32(0)
	for _, imp := range m.Imports {
		if imp.Desc.Kind != wasm.KindFunc {
			continue
		}
		if !snipped[funcIdx] {
			markType(imp.Desc.TypeIdx)
		}
		funcIdx++
	}

	// Sweep and build the remaps.
	funcRemap := make(map[uint32]uint32)
	globalRemap := make(map[uint32]uint32)
	typeRemap := make(map[uint32]uint32)

	// Function imports: drop the snipped ones.
	newImports := m.Imports[:0]
	oldFuncIdx := uint32(0)
	newFuncIdx := uint32(0)
	for _, imp := range m.Imports {
		if imp.Desc.Kind == wasm.KindFunc {
			if snipped[oldFuncIdx] {
				Logger().Debug("removed snipped import",
					zap.String("module", imp.Module),
					zap.String("name", imp.Name))
				res.RemovedImports++
				oldFuncIdx++
				continue
			}
			funcRemap[oldFuncIdx] = newFuncIdx
			oldFuncIdx++
			newFuncIdx++
		}
		newImports = append(newImports, imp)
	}
	m.Imports = newImports

	// Local functions: keep the marked ones.
	newFuncs := make([]uint32, 0, len(m.Funcs))
	newCode := make([]wasm.FuncBody, 0, len(m.Code))
	for i, typeIdx := range m.Funcs {
		old := numImportedFuncs + uint32(i)
		if !liveFuncs[old] {
			res.RemovedFuncs++
			continue
		}
		funcRemap[old] = newFuncIdx
		newFuncIdx++
		newFuncs = append(newFuncs, typeIdx)
		newCode = append(newCode, m.Code[i])
	}
	m.Funcs = newFuncs
	m.Code = newCode

	// Globals: imported globals always survive.
	for g := uint32(0); g < numImportedGlobals; g++ {
		globalRemap[g] = g
	}
	newGlobals := make([]wasm.Global, 0, len(m.Globals))
	nextGlobal := numImportedGlobals
	for i := range m.Globals {
		old := numImportedGlobals + uint32(i)
		if !liveGlobals[old] {
			res.RemovedGlobals++
			continue
		}
		globalRemap[old] = nextGlobal
		nextGlobal++
		newGlobals = append(newGlobals, m.Globals[i])
	}
	m.Globals = newGlobals

	// Types.
	newTypes := make([]wasm.FuncType, 0, len(m.Types))
	nextType := uint32(0)
	for i := range m.Types {
		if !liveTypes[uint32(i)] {
			res.RemovedTypes++
			continue
		}
		typeRemap[uint32(i)] = nextType
		nextType++
		newTypes = append(newTypes, m.Types[i])
	}
	m.Types = newTypes

	if err := remapModule(m, funcRemap, globalRemap, typeRemap); err != nil {
		return res, err
	}

	return res, nil
}

// remapModule rewrites every function, global, and type index after the
// sweep compacted the index spaces.
func remapModule(m *wasm.Module, funcRemap, globalRemap, typeRemap map[uint32]uint32) error {
	remap := func(table map[uint32]uint32, old uint32) uint32 {
		if idx, ok := table[old]; ok {
			return idx
		}
		return old
	}

	for i := range m.Imports {
		if m.Imports[i].Desc.Kind == wasm.KindFunc {
			m.Imports[i].Desc.TypeIdx = remap(typeRemap, m.Imports[i].Desc.TypeIdx)
		}
	}

	for i := range m.Funcs {
		m.Funcs[i] = remap(typeRemap, m.Funcs[i])
	}

	for i := range m.Code {
		remapped, changed, err := remapExpr(m.Code[i].Code, funcRemap, globalRemap, typeRemap)
		if err != nil {
			return errors.Wrap(errors.PhaseCollect, errors.KindInvalidData, err, fmt.Sprintf("remap code %d", i))
		}
		if changed {
			m.Code[i].Code = remapped
		}
	}

	for i := range m.Exports {
		switch m.Exports[i].Kind {
		case wasm.KindFunc:
			m.Exports[i].Idx = remap(funcRemap, m.Exports[i].Idx)
		case wasm.KindGlobal:
			m.Exports[i].Idx = remap(globalRemap, m.Exports[i].Idx)
		}
	}

	if m.Start != nil {
		newStart := remap(funcRemap, *m.Start)
		m.Start = &newStart
	}

	for i := range m.Elements {
		elem := &m.Elements[i]
		for j := range elem.FuncIdxs {
			elem.FuncIdxs[j] = remap(funcRemap, elem.FuncIdxs[j])
		}
		for j := range elem.Exprs {
			remapped, changed, err := remapExpr(elem.Exprs[j], funcRemap, globalRemap, typeRemap)
			if err != nil {
				return errors.Wrap(errors.PhaseCollect, errors.KindInvalidData, err, "remap element expression")
			}
			if changed {
				elem.Exprs[j] = remapped
			}
		}
		remapped, changed, err := remapExpr(elem.Offset, funcRemap, globalRemap, typeRemap)
		if err != nil {
			return errors.Wrap(errors.PhaseCollect, errors.KindInvalidData, err, "remap element offset")
		}
		if changed {
			elem.Offset = remapped
		}
	}

	for i := range m.Globals {
		remapped, changed, err := remapExpr(m.Globals[i].Init, funcRemap, globalRemap, typeRemap)
		if err != nil {
			return errors.Wrap(errors.PhaseCollect, errors.KindInvalidData, err, fmt.Sprintf("remap global %d init", i))
		}
		if changed {
			m.Globals[i].Init = remapped
		}
	}

	for i := range m.Data {
		remapped, changed, err := remapExpr(m.Data[i].Offset, funcRemap, globalRemap, typeRemap)
		if err != nil {
			return errors.Wrap(errors.PhaseCollect, errors.KindInvalidData, err, fmt.Sprintf("remap data %d offset", i))
		}
		if changed {
			m.Data[i].Offset = remapped
		}
	}

	remapNames(m.Names, funcRemap)
	return nil
}

// remapNames rewrites function indices in the name section, dropping
// entries for deleted functions.
func remapNames(ns *wasm.NameSection, funcRemap map[uint32]uint32) {
	if ns == nil {
		return
	}

	if len(ns.Funcs) > 0 {
		newFuncs := make(map[uint32]string, len(ns.Funcs))
		for old, name := range ns.Funcs {
			if idx, ok := funcRemap[old]; ok {
				newFuncs[idx] = name
			}
		}
		ns.Funcs = newFuncs
	}

	if len(ns.Locals) > 0 {
		newLocals := make(map[uint32]map[uint32]string, len(ns.Locals))
		for old, locals := range ns.Locals {
			if idx, ok := funcRemap[old]; ok {
				newLocals[idx] = locals
			}
		}
		ns.Locals = newLocals
	}
}

// remapExpr rewrites call, ref.func, call_indirect, global, and block
// type indices inside one instruction sequence.
func remapExpr(code []byte, funcRemap, globalRemap, typeRemap map[uint32]uint32) ([]byte, bool, error) {
	if len(code) == 0 {
		return code, false, nil
	}
	instrs, err := wasm.DecodeInstructions(code)
	if err != nil {
		return nil, false, err
	}

	changed := false
	for i := range instrs {
		switch instrs[i].Opcode {
		case wasm.OpCall, wasm.OpReturnCall:
			if imm, ok := instrs[i].Imm.(wasm.CallImm); ok {
				if idx, ok := funcRemap[imm.FuncIdx]; ok && idx != imm.FuncIdx {
					instrs[i].Imm = wasm.CallImm{FuncIdx: idx}
					changed = true
				}
			}
		case wasm.OpRefFunc:
			if imm, ok := instrs[i].Imm.(wasm.RefFuncImm); ok {
				if idx, ok := funcRemap[imm.FuncIdx]; ok && idx != imm.FuncIdx {
					instrs[i].Imm = wasm.RefFuncImm{FuncIdx: idx}
					changed = true
				}
			}
		case wasm.OpCallIndirect, wasm.OpReturnCallIndirect:
			if imm, ok := instrs[i].Imm.(wasm.CallIndirectImm); ok {
				if idx, ok := typeRemap[imm.TypeIdx]; ok && idx != imm.TypeIdx {
					imm.TypeIdx = idx
					instrs[i].Imm = imm
					changed = true
				}
			}
		case wasm.OpGlobalGet, wasm.OpGlobalSet:
			if imm, ok := instrs[i].Imm.(wasm.GlobalImm); ok {
				if idx, ok := globalRemap[imm.GlobalIdx]; ok && idx != imm.GlobalIdx {
					instrs[i].Imm = wasm.GlobalImm{GlobalIdx: idx}
					changed = true
				}
			}
		case wasm.OpBlock, wasm.OpLoop, wasm.OpIf:
			if imm, ok := instrs[i].Imm.(wasm.BlockImm); ok && imm.Type >= 0 {
				if idx, ok := typeRemap[uint32(imm.Type)]; ok && int32(idx) != imm.Type {
					instrs[i].Imm = wasm.BlockImm{Type: int32(idx)}
					changed = true
				}
			}
		}
	}

	if !changed {
		return code, false, nil
	}
	return wasm.EncodeInstructions(instrs), true, nil
}
