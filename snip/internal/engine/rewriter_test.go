package engine

import (
	"testing"

	"github.com/wippyai/wasm-snip/wasm"
)

// TestRewriteCalls_DropsArguments tests that a call to a snipped function
// becomes one drop per parameter followed by unreachable.
func TestRewriteCalls_DropsArguments(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{
			{},
			{Params: []wasm.ValType{wasm.ValI32, wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}},
		},
		Funcs: []uint32{1, 0},
		Code: []wasm.FuncBody{
			bodyOf(), // doomed, func 0
			bodyOf( // caller, func 1
				wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 7}},
				wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 8}},
				wasm.Instruction{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: 0}},
				wasm.Instruction{Opcode: wasm.OpDrop},
			),
		},
	}

	stubs := NewStubProvider(m)
	if err := RewriteCalls(m, map[uint32]bool{0: true}, stubs); err != nil {
		t.Fatalf("RewriteCalls: %v", err)
	}

	instrs, err := wasm.DecodeInstructions(m.Code[1].Code)
	if err != nil {
		t.Fatalf("decode rewritten body: %v", err)
	}

	want := []byte{
		wasm.OpI32Const, wasm.OpI32Const,
		wasm.OpDrop, wasm.OpDrop, wasm.OpUnreachable,
		wasm.OpDrop, wasm.OpEnd,
	}
	if len(instrs) != len(want) {
		t.Fatalf("rewritten body has %d instructions, want %d", len(instrs), len(want))
	}
	for i, op := range want {
		if instrs[i].Opcode != op {
			t.Errorf("instr %d opcode = 0x%02x, want 0x%02x", i, instrs[i].Opcode, op)
		}
	}
}

// TestRewriteCalls_NoParams tests a call to a nullary snipped function.
func TestRewriteCalls_NoParams(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Funcs: []uint32{0, 0},
		Code: []wasm.FuncBody{
			bodyOf(),
			bodyOf(wasm.Instruction{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: 0}}),
		},
	}

	stubs := NewStubProvider(m)
	if err := RewriteCalls(m, map[uint32]bool{0: true}, stubs); err != nil {
		t.Fatalf("RewriteCalls: %v", err)
	}

	instrs, err := wasm.DecodeInstructions(m.Code[1].Code)
	if err != nil {
		t.Fatalf("decode rewritten body: %v", err)
	}
	if len(instrs) != 2 || instrs[0].Opcode != wasm.OpUnreachable || instrs[1].Opcode != wasm.OpEnd {
		t.Errorf("rewritten body = %v, want unreachable/end", instrs)
	}
}

// TestRewriteCalls_ReturnCall tests tail calls to snipped functions.
func TestRewriteCalls_ReturnCall(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{
			{},
			{Params: []wasm.ValType{wasm.ValI64}},
		},
		Funcs: []uint32{1, 0},
		Code: []wasm.FuncBody{
			bodyOf(),
			bodyOf(
				wasm.Instruction{Opcode: wasm.OpI64Const, Imm: wasm.I64Imm{Value: 1}},
				wasm.Instruction{Opcode: wasm.OpReturnCall, Imm: wasm.CallImm{FuncIdx: 0}},
			),
		},
	}

	stubs := NewStubProvider(m)
	if err := RewriteCalls(m, map[uint32]bool{0: true}, stubs); err != nil {
		t.Fatalf("RewriteCalls: %v", err)
	}

	instrs, err := wasm.DecodeInstructions(m.Code[1].Code)
	if err != nil {
		t.Fatalf("decode rewritten body: %v", err)
	}
	want := []byte{wasm.OpI64Const, wasm.OpDrop, wasm.OpUnreachable, wasm.OpEnd}
	if len(instrs) != len(want) {
		t.Fatalf("rewritten body has %d instructions, want %d", len(instrs), len(want))
	}
	for i, op := range want {
		if instrs[i].Opcode != op {
			t.Errorf("instr %d opcode = 0x%02x, want 0x%02x", i, instrs[i].Opcode, op)
		}
	}
}

// TestRewriteCalls_SkipsSnippedBodies tests that snipped function bodies
// are not rewritten.
func TestRewriteCalls_SkipsSnippedBodies(t *testing.T) {
	// Two snipped functions calling each other.
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Funcs: []uint32{0, 0},
		Code: []wasm.FuncBody{
			bodyOf(wasm.Instruction{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: 1}}),
			bodyOf(wasm.Instruction{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: 0}}),
		},
	}
	before0 := append([]byte(nil), m.Code[0].Code...)
	before1 := append([]byte(nil), m.Code[1].Code...)

	stubs := NewStubProvider(m)
	if err := RewriteCalls(m, map[uint32]bool{0: true, 1: true}, stubs); err != nil {
		t.Fatalf("RewriteCalls: %v", err)
	}

	if string(m.Code[0].Code) != string(before0) || string(m.Code[1].Code) != string(before1) {
		t.Error("snipped bodies were rewritten")
	}
}

// TestRewriteCalls_RefFuncRedirect tests that ref.func in code is
// redirected to a trap stub.
func TestRewriteCalls_RefFuncRedirect(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Funcs: []uint32{0, 0},
		Code: []wasm.FuncBody{
			bodyOf(), // doomed, func 0
			bodyOf( // func 1 takes a reference to doomed
				wasm.Instruction{Opcode: wasm.OpRefFunc, Imm: wasm.RefFuncImm{FuncIdx: 0}},
				wasm.Instruction{Opcode: wasm.OpDrop},
			),
		},
	}

	stubs := NewStubProvider(m)
	if err := RewriteCalls(m, map[uint32]bool{0: true}, stubs); err != nil {
		t.Fatalf("RewriteCalls: %v", err)
	}

	if stubs.Created() != 1 {
		t.Fatalf("Created() = %d, want 1", stubs.Created())
	}

	instrs, err := wasm.DecodeInstructions(m.Code[1].Code)
	if err != nil {
		t.Fatalf("decode rewritten body: %v", err)
	}
	imm, ok := instrs[0].Imm.(wasm.RefFuncImm)
	if !ok || imm.FuncIdx != 2 {
		t.Errorf("ref.func imm = %v, want stub index 2", instrs[0].Imm)
	}

	// Stub body appended after the snapshot must be untouched.
	stubBody := m.Code[2].Code
	if len(stubBody) != 2 || stubBody[0] != wasm.OpUnreachable || stubBody[1] != wasm.OpEnd {
		t.Errorf("stub body = %v, want unreachable/end", stubBody)
	}
}

// TestRewriteCalls_NoSnips tests the no-op path.
func TestRewriteCalls_NoSnips(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Funcs: []uint32{0},
		Code: []wasm.FuncBody{
			bodyOf(wasm.Instruction{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: 0}}),
		},
	}
	before := append([]byte(nil), m.Code[0].Code...)

	stubs := NewStubProvider(m)
	if err := RewriteCalls(m, nil, stubs); err != nil {
		t.Fatalf("RewriteCalls: %v", err)
	}
	if string(m.Code[0].Code) != string(before) {
		t.Error("body changed without snips")
	}
}
