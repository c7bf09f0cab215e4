package snip

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-snip/errors"
	"github.com/wippyai/wasm-snip/snip/internal/engine"
	"github.com/wippyai/wasm-snip/wasm"
)

// Config configures one snip pass.
type Config struct {
	// Functions are exact debug names to snip. A name that does not
	// resolve fails the pass.
	Functions []string

	// Patterns are regular expressions matched against every debug
	// name; matching functions are snipped.
	Patterns []string

	// KeepExports and KeepExportPatterns restrict which function
	// exports survive. When both are empty every export is kept.
	KeepExports        []string
	KeepExportPatterns []string

	// SnipRustFmtCode snips the Rust core::fmt/std::fmt machinery.
	SnipRustFmtCode bool

	// SnipRustPanickingCode snips core::panicking/std::panicking.
	SnipRustPanickingCode bool

	// SkipProducers drops the "producers" custom section from output.
	SkipProducers bool
}

// Stats reports what one pass did.
type Stats struct {
	SnippedFunctions int
	RemovedFunctions int
	RemovedImports   int
	RemovedExports   int
	RemovedGlobals   int
	RemovedTypes     int
	StubsAdded       int
	OriginalSize     int
	OutputSize       int
}

// Snip parses a WebAssembly binary, snips the configured functions, and
// returns the re-encoded module. On error nothing is emitted and the
// input is unaffected.
func Snip(wasmData []byte, cfg Config) ([]byte, Stats, error) {
	m, err := wasm.ParseModule(wasmData)
	if err != nil {
		return nil, Stats{}, errors.ParseFailed("module", err)
	}

	stats, err := SnipModule(m, cfg)
	if err != nil {
		return nil, stats, err
	}

	out := m.Encode()
	stats.OriginalSize = len(wasmData)
	stats.OutputSize = len(out)
	return out, stats, nil
}

// SnipModule runs the pass on an already parsed module in place.
// Selection completes before the first mutation, so on error the module
// is unchanged.
func SnipModule(m *wasm.Module, cfg Config) (Stats, error) {
	patterns := append([]string(nil), cfg.Patterns...)
	patterns = append(patterns, profilePatterns(cfg)...)

	res, err := engine.Run(m, engine.Config{
		Functions:    cfg.Functions,
		Patterns:     patterns,
		KeepExports:  cfg.KeepExports,
		KeepPatterns: cfg.KeepExportPatterns,
	})
	if err != nil {
		return Stats{}, err
	}

	if cfg.SkipProducers {
		dropCustomSection(m, "producers")
	}

	return Stats{
		SnippedFunctions: res.SnippedFuncs,
		RemovedFunctions: res.RemovedFuncs,
		RemovedImports:   res.RemovedImports,
		RemovedExports:   res.RemovedExports,
		RemovedGlobals:   res.RemovedGlobals,
		RemovedTypes:     res.RemovedTypes,
		StubsAdded:       res.StubsAdded,
	}, nil
}

func dropCustomSection(m *wasm.Module, name string) {
	kept := m.CustomSections[:0]
	for _, sec := range m.CustomSections {
		if sec.Name == name {
			continue
		}
		kept = append(kept, sec)
	}
	m.CustomSections = kept
}

// SetLogger installs a logger for the pass; the default is a nop.
func SetLogger(l *zap.Logger) {
	engine.SetLogger(l)
}
