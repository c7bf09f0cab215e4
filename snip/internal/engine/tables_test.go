package engine

import (
	"testing"

	"github.com/wippyai/wasm-snip/wasm"
)

// TestStubProvider_Memoizes tests one stub per function type.
func TestStubProvider_Memoizes(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{Params: []wasm.ValType{wasm.ValI32}}},
		Funcs: []uint32{0, 0},
		Code:  []wasm.FuncBody{bodyOf(), bodyOf()},
	}

	stubs := NewStubProvider(m)
	first, err := stubs.StubFor(0)
	if err != nil {
		t.Fatalf("StubFor(0): %v", err)
	}
	second, err := stubs.StubFor(1)
	if err != nil {
		t.Fatalf("StubFor(1): %v", err)
	}

	if first != second {
		t.Errorf("stubs differ: %d vs %d, want shared", first, second)
	}
	if first != 2 {
		t.Errorf("stub index = %d, want 2", first)
	}
	if stubs.Created() != 1 {
		t.Errorf("Created() = %d, want 1", stubs.Created())
	}

	if m.Funcs[2] != 0 {
		t.Errorf("stub type = %d, want 0", m.Funcs[2])
	}
	body := m.Code[2].Code
	if len(body) != 2 || body[0] != wasm.OpUnreachable || body[1] != wasm.OpEnd {
		t.Errorf("stub body = %v, want unreachable/end", body)
	}
}

// TestStubProvider_DistinctTypes tests separate stubs for separate types.
func TestStubProvider_DistinctTypes(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}, {Results: []wasm.ValType{wasm.ValI32}}},
		Funcs: []uint32{0, 1},
		Code:  []wasm.FuncBody{bodyOf(), bodyOf()},
	}

	stubs := NewStubProvider(m)
	a, _ := stubs.StubFor(0)
	b, err := stubs.StubFor(1)
	if err != nil {
		t.Fatalf("StubFor(1): %v", err)
	}
	if a == b {
		t.Error("distinct types share a stub")
	}
	if stubs.Created() != 2 {
		t.Errorf("Created() = %d, want 2", stubs.Created())
	}
}

// TestStubProvider_OutOfBounds tests an invalid target index.
func TestStubProvider_OutOfBounds(t *testing.T) {
	m := &wasm.Module{}
	stubs := NewStubProvider(m)
	if _, err := stubs.StubFor(5); err == nil {
		t.Error("StubFor(5) succeeded on empty module")
	}
}

// TestPatchTables_ElementFuncIdxs tests element index vector patching.
func TestPatchTables_ElementFuncIdxs(t *testing.T) {
	m := &wasm.Module{
		Types:  []wasm.FuncType{{}},
		Funcs:  []uint32{0, 0},
		Code:   []wasm.FuncBody{bodyOf(), bodyOf()},
		Tables: []wasm.TableType{{ElemType: byte(wasm.ValFuncRef), Limits: wasm.Limits{Min: 2}}},
		Elements: []wasm.Element{
			{Offset: constExpr(0), FuncIdxs: []uint32{0, 1}},
		},
	}

	stubs := NewStubProvider(m)
	if err := PatchTables(m, map[uint32]bool{0: true}, stubs); err != nil {
		t.Fatalf("PatchTables: %v", err)
	}

	if m.Elements[0].FuncIdxs[0] != 2 {
		t.Errorf("slot 0 = %d, want stub 2", m.Elements[0].FuncIdxs[0])
	}
	if m.Elements[0].FuncIdxs[1] != 1 {
		t.Errorf("slot 1 = %d, want 1 untouched", m.Elements[0].FuncIdxs[1])
	}
}

// TestPatchTables_ElementExprs tests ref.func expression patching.
func TestPatchTables_ElementExprs(t *testing.T) {
	m := &wasm.Module{
		Types:  []wasm.FuncType{{}},
		Funcs:  []uint32{0},
		Code:   []wasm.FuncBody{bodyOf()},
		Tables: []wasm.TableType{{ElemType: byte(wasm.ValFuncRef), Limits: wasm.Limits{Min: 1}}},
		Elements: []wasm.Element{
			{
				Flags:  4,
				Offset: constExpr(0),
				Exprs:  [][]byte{refFuncExpr(0)},
			},
		},
	}

	stubs := NewStubProvider(m)
	if err := PatchTables(m, map[uint32]bool{0: true}, stubs); err != nil {
		t.Fatalf("PatchTables: %v", err)
	}

	instrs, err := wasm.DecodeInstructions(m.Elements[0].Exprs[0])
	if err != nil {
		t.Fatalf("decode patched expr: %v", err)
	}
	imm, ok := instrs[0].Imm.(wasm.RefFuncImm)
	if !ok || imm.FuncIdx != 1 {
		t.Errorf("expr ref = %v, want stub 1", instrs[0].Imm)
	}
}

// TestPatchTables_GlobalInit tests ref.func in global initializers.
func TestPatchTables_GlobalInit(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Funcs: []uint32{0},
		Code:  []wasm.FuncBody{bodyOf()},
		Globals: []wasm.Global{
			{
				Type: wasm.GlobalType{ValType: wasm.ValFuncRef},
				Init: refFuncExpr(0),
			},
		},
	}

	stubs := NewStubProvider(m)
	if err := PatchTables(m, map[uint32]bool{0: true}, stubs); err != nil {
		t.Fatalf("PatchTables: %v", err)
	}

	instrs, err := wasm.DecodeInstructions(m.Globals[0].Init)
	if err != nil {
		t.Fatalf("decode patched init: %v", err)
	}
	imm, ok := instrs[0].Imm.(wasm.RefFuncImm)
	if !ok || imm.FuncIdx != 1 {
		t.Errorf("init ref = %v, want stub 1", instrs[0].Imm)
	}
}

// TestPatchTables_Start tests a snipped start function.
func TestPatchTables_Start(t *testing.T) {
	start := uint32(0)
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Funcs: []uint32{0},
		Code:  []wasm.FuncBody{bodyOf()},
		Start: &start,
	}

	stubs := NewStubProvider(m)
	if err := PatchTables(m, map[uint32]bool{0: true}, stubs); err != nil {
		t.Fatalf("PatchTables: %v", err)
	}

	if m.Start == nil || *m.Start != 1 {
		t.Errorf("start = %v, want stub 1", m.Start)
	}
}

// TestPatchTables_SharedStub tests that table slots and the start
// function share one stub per type.
func TestPatchTables_SharedStub(t *testing.T) {
	start := uint32(0)
	m := &wasm.Module{
		Types:  []wasm.FuncType{{}},
		Funcs:  []uint32{0},
		Code:   []wasm.FuncBody{bodyOf()},
		Start:  &start,
		Tables: []wasm.TableType{{ElemType: byte(wasm.ValFuncRef), Limits: wasm.Limits{Min: 1}}},
		Elements: []wasm.Element{
			{Offset: constExpr(0), FuncIdxs: []uint32{0}},
		},
	}

	stubs := NewStubProvider(m)
	if err := PatchTables(m, map[uint32]bool{0: true}, stubs); err != nil {
		t.Fatalf("PatchTables: %v", err)
	}

	if stubs.Created() != 1 {
		t.Errorf("Created() = %d, want 1 shared stub", stubs.Created())
	}
	if m.Elements[0].FuncIdxs[0] != *m.Start {
		t.Errorf("table slot %d and start %d should share the stub",
			m.Elements[0].FuncIdxs[0], *m.Start)
	}
}

// TestPatchTables_Untouched tests that unrelated references survive.
func TestPatchTables_Untouched(t *testing.T) {
	m := &wasm.Module{
		Types:  []wasm.FuncType{{}},
		Funcs:  []uint32{0, 0},
		Code:   []wasm.FuncBody{bodyOf(), bodyOf()},
		Tables: []wasm.TableType{{ElemType: byte(wasm.ValFuncRef), Limits: wasm.Limits{Min: 1}}},
		Elements: []wasm.Element{
			{Offset: constExpr(0), FuncIdxs: []uint32{1}},
		},
	}

	stubs := NewStubProvider(m)
	if err := PatchTables(m, map[uint32]bool{0: true}, stubs); err != nil {
		t.Fatalf("PatchTables: %v", err)
	}

	if stubs.Created() != 0 {
		t.Errorf("Created() = %d, want 0", stubs.Created())
	}
	if m.Elements[0].FuncIdxs[0] != 1 {
		t.Errorf("slot = %d, want 1 untouched", m.Elements[0].FuncIdxs[0])
	}
}
