package wasm

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/wippyai/wasm-snip/wasm/internal/binary"
)

// NameSection holds the decoded "name" custom section.
//
// Only the module (0), function (1), and local (2) subsections are
// retained; other subsections are dropped on parse since their contents
// would go stale once function indices shift.
type NameSection struct {
	// Module is the optional module name, empty when absent.
	Module string

	// HasModule distinguishes an empty module name from a missing one.
	HasModule bool

	// Funcs maps function indices to debug names.
	Funcs map[uint32]string

	// Locals maps function indices to per-local name maps.
	Locals map[uint32]map[uint32]string
}

// FuncName returns the debug name of a function, if present.
func (ns *NameSection) FuncName(funcIdx uint32) (string, bool) {
	if ns == nil || ns.Funcs == nil {
		return "", false
	}
	name, ok := ns.Funcs[funcIdx]
	return name, ok
}

// DecodeNameSection parses the payload of a "name" custom section
// (the bytes after the section name).
func DecodeNameSection(data []byte) (*NameSection, error) {
	r := binary.NewReader(bytes.NewReader(data))
	ns := &NameSection{}

	for {
		id, err := r.ReadByte()
		if err != nil {
			break // end of payload
		}
		size, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError("name subsection size", err)
		}
		payload, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, r.WrapError("name subsection payload", err)
		}

		sr := binary.NewReader(bytes.NewReader(payload))
		switch id {
		case NameSubsecModule:
			name, err := sr.ReadName()
			if err != nil {
				return nil, fmt.Errorf("module name: %w", err)
			}
			ns.Module = name
			ns.HasModule = true

		case NameSubsecFunction:
			funcs, err := readNameMap(sr)
			if err != nil {
				return nil, fmt.Errorf("function names: %w", err)
			}
			ns.Funcs = funcs

		case NameSubsecLocal:
			count, err := sr.ReadU32()
			if err != nil {
				return nil, fmt.Errorf("local names: %w", err)
			}
			ns.Locals = make(map[uint32]map[uint32]string, count)
			for i := uint32(0); i < count; i++ {
				funcIdx, err := sr.ReadU32()
				if err != nil {
					return nil, fmt.Errorf("local names func index: %w", err)
				}
				locals, err := readNameMap(sr)
				if err != nil {
					return nil, fmt.Errorf("local names for func %d: %w", funcIdx, err)
				}
				ns.Locals[funcIdx] = locals
			}

		default:
			// Label, type, and other extended subsections are not preserved.
		}
	}

	return ns, nil
}

// Encode serializes the name section payload (without the custom section
// header). Returns nil if the section carries no information.
func (ns *NameSection) Encode() []byte {
	if ns == nil {
		return nil
	}
	w := binary.NewWriter()

	if ns.HasModule {
		sub := binary.NewWriter()
		sub.WriteName(ns.Module)
		writeNameSubsection(w, NameSubsecModule, sub.Bytes())
	}

	if len(ns.Funcs) > 0 {
		sub := binary.NewWriter()
		writeNameMap(sub, ns.Funcs)
		writeNameSubsection(w, NameSubsecFunction, sub.Bytes())
	}

	if len(ns.Locals) > 0 {
		sub := binary.NewWriter()
		sub.WriteU32(uint32(len(ns.Locals)))
		for _, funcIdx := range sortedKeys(ns.Locals) {
			sub.WriteU32(funcIdx)
			writeNameMap(sub, ns.Locals[funcIdx])
		}
		writeNameSubsection(w, NameSubsecLocal, sub.Bytes())
	}

	if w.Len() == 0 {
		return nil
	}
	return w.Bytes()
}

func readNameMap(r *binary.Reader) (map[uint32]string, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	names := make(map[uint32]string, count)
	for i := uint32(0); i < count; i++ {
		idx, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		name, err := r.ReadName()
		if err != nil {
			return nil, err
		}
		names[idx] = name
	}
	return names, nil
}

func writeNameMap(w *binary.Writer, names map[uint32]string) {
	w.WriteU32(uint32(len(names)))
	for _, idx := range sortedKeys(names) {
		w.WriteU32(idx)
		w.WriteName(names[idx])
	}
}

func writeNameSubsection(w *binary.Writer, id byte, payload []byte) {
	w.Byte(id)
	w.WriteU32(uint32(len(payload)))
	w.WriteBytes(payload)
}

func sortedKeys[V any](m map[uint32]V) []uint32 {
	keys := make([]uint32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
