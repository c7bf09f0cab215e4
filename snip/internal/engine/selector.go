package engine

import (
	"regexp"
	"sort"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-snip/errors"
	"github.com/wippyai/wasm-snip/wasm"
)

// Config configures one snip pass.
type Config struct {
	// Functions are exact debug names to snip.
	Functions []string

	// Patterns are regular expressions matched against every debug name;
	// matching functions are snipped. Profile patterns arrive merged in.
	Patterns []string

	// KeepExports and KeepPatterns form the export-retention filter.
	// When both are empty every export survives (snipped targets aside);
	// otherwise only function exports matching the filter are kept.
	// Non-function exports are never subject to retention.
	KeepExports  []string
	KeepPatterns []string
}

func (c Config) selectsByName() bool {
	return len(c.Functions) > 0 || len(c.Patterns) > 0
}

// Selection is the outcome of target selection: the snip set and the
// export-retention filter, computed before any mutation.
type Selection struct {
	// Snipped holds the function indices to snip.
	Snipped map[uint32]bool

	keepNames    map[string]bool
	keepPatterns []*regexp.Regexp
	filtering    bool
}

// RetainsExport reports whether a function export with the given name
// survives the retention filter.
func (s *Selection) RetainsExport(name string) bool {
	if !s.filtering {
		return true
	}
	if s.keepNames[name] {
		return true
	}
	for _, re := range s.keepPatterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// Filtering reports whether an export-retention filter is active.
func (s *Selection) Filtering() bool {
	return s.filtering
}

// Select computes the snip set and retention filter for the module.
// All patterns compile and all exact names resolve before it returns;
// a failure leaves the module untouched.
func Select(m *wasm.Module, cfg Config) (*Selection, error) {
	sel := &Selection{
		Snipped:   make(map[uint32]bool),
		keepNames: make(map[string]bool, len(cfg.KeepExports)),
		filtering: len(cfg.KeepExports) > 0 || len(cfg.KeepPatterns) > 0,
	}

	// Compile everything up front so a bad pattern is all-or-nothing.
	patterns, err := compilePatterns(cfg.Patterns)
	if err != nil {
		return nil, err
	}
	sel.keepPatterns, err = compilePatterns(cfg.KeepPatterns)
	if err != nil {
		return nil, err
	}
	for _, name := range cfg.KeepExports {
		sel.keepNames[name] = true
	}

	if !cfg.selectsByName() {
		return sel, nil
	}

	idx, err := BuildNameIndex(m)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, name := range cfg.Functions {
		funcIdx, ok := idx.Resolve(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		sel.Snipped[funcIdx] = true
	}
	if len(missing) == 1 {
		return nil, errors.UnknownFunction(missing[0])
	}
	if len(missing) > 1 {
		return nil, errors.NewUnknownFunctionsError(missing)
	}

	if len(patterns) > 0 {
		// Deterministic order keeps logs stable.
		indices := make([]uint32, 0, len(idx.ByIdx))
		for funcIdx := range idx.ByIdx {
			indices = append(indices, funcIdx)
		}
		sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

		for _, funcIdx := range indices {
			if sel.Snipped[funcIdx] {
				continue
			}
			name := idx.ByIdx[funcIdx]
			for _, re := range patterns {
				if re.MatchString(name) {
					sel.Snipped[funcIdx] = true
					Logger().Debug("pattern selected function",
						zap.Uint32("func", funcIdx),
						zap.String("name", name),
						zap.String("pattern", re.String()))
					break
				}
			}
		}
	}

	return sel, nil
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, errors.PatternCompile(p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}
