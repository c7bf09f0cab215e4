package main

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	snerr "github.com/wippyai/wasm-snip/errors"
	"github.com/wippyai/wasm-snip/snip"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

type options struct {
	output             string
	patterns           []string
	keepExports        []string
	keepPatterns       []string
	snipRustFmt        bool
	snipRustPanicking  bool
	skipProducers      bool
	verify             bool
	verbose            bool
	interactive        bool
}

func newRootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "wasm-snip [flags] <input.wasm> [function]...",
		Short: "Replace WebAssembly functions with traps",
		Long: `wasm-snip replaces selected functions in a WebAssembly module with
traps, rewrites their call sites to preserve argument side effects,
patches indirect-call tables with type-matching stubs, and removes
everything made unreachable.

Functions are named as positional arguments, selected by regex with
-p, or chosen from built-in profiles for Rust's formatting and
panicking machinery.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	flags.StringArrayVarP(&opts.patterns, "pattern", "p", nil, "snip functions matching this regex (repeatable)")
	flags.StringArrayVarP(&opts.keepExports, "keep", "k", nil, "keep only this function export (repeatable)")
	flags.StringArrayVarP(&opts.keepPatterns, "keep-pattern", "x", nil, "keep function exports matching this regex (repeatable)")
	flags.BoolVar(&opts.snipRustFmt, "snip-rust-fmt-code", false, "snip Rust's core::fmt and std::fmt machinery")
	flags.BoolVar(&opts.snipRustPanicking, "snip-rust-panicking-code", false, "snip Rust's core::panicking and std::panicking machinery")
	flags.BoolVar(&opts.skipProducers, "skip-producers-section", false, "drop the producers custom section from output")
	flags.BoolVar(&opts.verify, "verify", false, "compile the output with wazero before writing it")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log pass details and stats to stderr")
	flags.BoolVarP(&opts.interactive, "interactive", "i", false, "pick functions from a list")

	return cmd
}

func run(cmd *cobra.Command, args []string, opts options) error {
	if opts.verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer logger.Sync()
		snip.SetLogger(logger)
	}

	input := args[0]
	functions := args[1:]

	data, err := os.ReadFile(input)
	if err != nil {
		return snerr.IOFailed(input, err)
	}

	if opts.interactive {
		picked, err := pickFunctions(data)
		if err != nil {
			return err
		}
		functions = append(functions, picked...)
	}

	out, stats, err := snip.Snip(data, snip.Config{
		Functions:             functions,
		Patterns:              opts.patterns,
		KeepExports:           opts.keepExports,
		KeepExportPatterns:    opts.keepPatterns,
		SnipRustFmtCode:       opts.snipRustFmt,
		SnipRustPanickingCode: opts.snipRustPanicking,
		SkipProducers:         opts.skipProducers,
	})
	if err != nil {
		return err
	}

	if opts.verify {
		if err := snip.Verify(cmd.Context(), out); err != nil {
			return err
		}
	}

	if opts.output == "" || opts.output == "-" {
		if _, err := os.Stdout.Write(out); err != nil {
			return snerr.IOFailed("stdout", err)
		}
	} else if err := os.WriteFile(opts.output, out, 0o644); err != nil {
		return snerr.IOFailed(opts.output, err)
	}

	if opts.verbose {
		printStats(stats)
	}
	return nil
}

func printStats(s snip.Stats) {
	fmt.Fprintf(os.Stderr, "snipped functions:  %d\n", s.SnippedFunctions)
	fmt.Fprintf(os.Stderr, "removed functions:  %d\n", s.RemovedFunctions)
	fmt.Fprintf(os.Stderr, "removed imports:    %d\n", s.RemovedImports)
	fmt.Fprintf(os.Stderr, "removed exports:    %d\n", s.RemovedExports)
	fmt.Fprintf(os.Stderr, "removed globals:    %d\n", s.RemovedGlobals)
	fmt.Fprintf(os.Stderr, "removed types:      %d\n", s.RemovedTypes)
	fmt.Fprintf(os.Stderr, "stubs added:        %d\n", s.StubsAdded)
	fmt.Fprintf(os.Stderr, "size:               %d -> %d bytes\n", s.OriginalSize, s.OutputSize)
}

func printError(err error) {
	var serr *snerr.Error
	if stderrors.As(err, &serr) {
		fmt.Fprintf(os.Stderr, "%s [%s] %s\n", color.RedString("error:"), serr.Phase, serr.Message())
		for cause := stderrors.Unwrap(serr); cause != nil; cause = stderrors.Unwrap(cause) {
			fmt.Fprintf(os.Stderr, "  %s %v\n", color.YellowString("caused by:"), cause)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), err)
	for cause := stderrors.Unwrap(err); cause != nil; cause = stderrors.Unwrap(cause) {
		fmt.Fprintf(os.Stderr, "  %s %v\n", color.YellowString("caused by:"), cause)
	}
}
