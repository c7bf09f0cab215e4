// Package errors provides structured error types for the wasm-snip pass.
//
// Errors are categorized by Phase (where in the pass the error occurred)
// and Kind (error category). The Error type includes rich context: the
// function or pattern involved, a location path, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseSelect, errors.KindPatternCompile).
//		Pattern(".*core::fmt[").
//		Detail("invalid pattern").
//		Cause(compileErr).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnknownFunction("main")
//	err := errors.MissingNameData()
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
