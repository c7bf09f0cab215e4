package snip

import (
	"context"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/wasm-snip/errors"
)

// Verify compiles a WebAssembly binary with wazero, checking that the
// output is still a structurally valid module.
func Verify(ctx context.Context, wasmData []byte) error {
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer rt.Close(ctx)

	if _, err := rt.CompileModule(ctx, wasmData); err != nil {
		return errors.EncodeFailed("output failed verification", err)
	}
	return nil
}
