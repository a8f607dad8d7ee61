package client

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/tetratelabs/wazero"
)

// ErrNoEmbeddedToken marks a wasm module with no signed token inside.
var ErrNoEmbeddedToken = errors.New("wasm module carries no embedded token")

// tokenSectionName is the custom section signed modules embed their raw
// token under.
const tokenSectionName = "jwt"

// ExtractModuleToken pulls the raw signed token out of a wasm module's
// custom section.
func ExtractModuleToken(ctx context.Context, wasmBytes []byte) (string, error) {
	runtime := wazero.NewRuntimeWithConfig(ctx,
		wazero.NewRuntimeConfig().WithCustomSections(true))
	defer runtime.Close(ctx) //nolint:errcheck

	compiled, err := runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return "", fmt.Errorf("compile wasm module: %w", err)
	}
	defer compiled.Close(ctx) //nolint:errcheck

	for _, section := range compiled.CustomSections() {
		if section.Name() == tokenSectionName {
			return string(section.Data()), nil
		}
	}
	return "", ErrNoEmbeddedToken
}

// ExtractModuleTokenFromFile reads a wasm file and extracts its embedded
// token.
func ExtractModuleTokenFromFile(ctx context.Context, path string) (string, error) {
	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read module: %w", err)
	}
	return ExtractModuleToken(ctx, wasmBytes)
}
