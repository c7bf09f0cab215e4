package wasm_test

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/wippyai/wasm-snip/wasm"
)

func TestNameSectionRoundTrip(t *testing.T) {
	ns := &wasm.NameSection{
		Module:    "mymodule",
		HasModule: true,
		Funcs: map[uint32]string{
			0: "imported_log",
			2: "main",
			5: "helper",
		},
		Locals: map[uint32]map[uint32]string{
			2: {0: "argc", 1: "argv"},
		},
	}

	payload := ns.Encode()
	if payload == nil {
		t.Fatal("Encode returned nil for non-empty section")
	}

	decoded, err := wasm.DecodeNameSection(payload)
	if err != nil {
		t.Fatalf("DecodeNameSection: %v", err)
	}

	if !decoded.HasModule || decoded.Module != "mymodule" {
		t.Errorf("module name: got %q (has=%v)", decoded.Module, decoded.HasModule)
	}
	if !reflect.DeepEqual(decoded.Funcs, ns.Funcs) {
		t.Errorf("function names mismatch: got %v, want %v", decoded.Funcs, ns.Funcs)
	}
	if !reflect.DeepEqual(decoded.Locals, ns.Locals) {
		t.Errorf("local names mismatch: got %v, want %v", decoded.Locals, ns.Locals)
	}
}

func TestNameSectionEncodeEmpty(t *testing.T) {
	if payload := (&wasm.NameSection{}).Encode(); payload != nil {
		t.Errorf("empty section should encode to nil, got %d bytes", len(payload))
	}

	var ns *wasm.NameSection
	if payload := ns.Encode(); payload != nil {
		t.Error("nil section should encode to nil")
	}
}

func TestNameSectionEmptyModuleName(t *testing.T) {
	ns := &wasm.NameSection{HasModule: true}

	payload := ns.Encode()
	if payload == nil {
		t.Fatal("section with empty module name should still encode")
	}

	decoded, err := wasm.DecodeNameSection(payload)
	if err != nil {
		t.Fatalf("DecodeNameSection: %v", err)
	}
	if !decoded.HasModule {
		t.Error("HasModule should survive a round trip")
	}
	if decoded.Module != "" {
		t.Errorf("expected empty module name, got %q", decoded.Module)
	}
}

func TestNameSectionDropsUnknownSubsections(t *testing.T) {
	// Function subsection followed by a label subsection (id 3),
	// which is not preserved.
	payload := []byte{
		0x01, 0x08, // function subsection, size 8
		0x01,                         // 1 entry
		0x00,                         // func index 0
		0x05, 'h', 'e', 'l', 'l', 'o', // name
		0x03, 0x01, // label subsection, size 1
		0x00, // payload
	}

	decoded, err := wasm.DecodeNameSection(payload)
	if err != nil {
		t.Fatalf("DecodeNameSection: %v", err)
	}

	if name, ok := decoded.FuncName(0); !ok || name != "hello" {
		t.Errorf("FuncName(0) = %q, %v; want %q, true", name, ok, "hello")
	}
}

func TestNameSectionTruncatedSubsection(t *testing.T) {
	payload := []byte{
		0x01, 0x0A, // function subsection claims 10 bytes
		0x01, // only 1 byte of payload
	}

	if _, err := wasm.DecodeNameSection(payload); err == nil {
		t.Error("expected error for truncated subsection payload")
	}
}

func TestNameSectionFuncName(t *testing.T) {
	var ns *wasm.NameSection
	if _, ok := ns.FuncName(0); ok {
		t.Error("nil section should report no names")
	}

	ns = &wasm.NameSection{Funcs: map[uint32]string{3: "f"}}
	if name, ok := ns.FuncName(3); !ok || name != "f" {
		t.Errorf("FuncName(3) = %q, %v", name, ok)
	}
	if _, ok := ns.FuncName(4); ok {
		t.Error("FuncName(4) should miss")
	}
}

func TestModuleNameSectionRoundTrip(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{Params: nil, Results: nil}},
		Funcs: []uint32{0},
		Code:  []wasm.FuncBody{{Code: []byte{wasm.OpEnd}}},
		Names: &wasm.NameSection{
			Funcs: map[uint32]string{0: "entry"},
		},
		CustomSections: []wasm.CustomSection{
			{Name: "producers", Data: []byte{0x00}},
		},
	}

	encoded := m.Encode()
	parsed, err := wasm.ParseModule(encoded)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}

	if parsed.Names == nil {
		t.Fatal("name section should be decoded on parse")
	}
	if name, ok := parsed.Names.FuncName(0); !ok || name != "entry" {
		t.Errorf("FuncName(0) = %q, %v; want %q, true", name, ok, "entry")
	}

	// The raw custom section survives alongside the decoded names.
	if len(parsed.CustomSections) != 1 || parsed.CustomSections[0].Name != "producers" {
		t.Fatalf("unexpected custom sections: %+v", parsed.CustomSections)
	}
	if !bytes.Equal(parsed.CustomSections[0].Data, []byte{0x00}) {
		t.Error("producers payload mismatch")
	}
}

func TestModuleMalformedNameSection(t *testing.T) {
	// A custom section named "name" whose payload is not a valid
	// name section must fail the parse.
	data := []byte{
		0x00, 0x61, 0x73, 0x6D, // magic
		0x01, 0x00, 0x00, 0x00, // version
		0x00, 0x08, // custom section, size 8
		0x04, 'n', 'a', 'm', 'e', // section name
		0x01, 0x05, 0x00, // function subsection claims 5 bytes, has 1
	}

	if _, err := wasm.ParseModule(data); err == nil {
		t.Error("expected error for malformed name section")
	}
}
