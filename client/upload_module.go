package client

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/ewbankkit/gantry/internal/token"
)

// UploadModule uploads a signed wasm module from disk. The actor subject is
// derived from the token embedded in the module itself, so callers only
// name the file. Returns the actor subject the module was stored under.
func (c *Client) UploadModule(ctx context.Context, path string) (string, error) {
	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read module: %w", err)
	}
	raw, err := ExtractModuleToken(ctx, wasmBytes)
	if err != nil {
		return "", err
	}
	decoded, err := token.Crack(raw)
	if err != nil {
		return "", err
	}
	if decoded.Variant != token.VariantActor {
		return "", fmt.Errorf("%w: embedded token is not an actor token", token.ErrInvalidToken)
	}

	err = c.Upload(ctx, decoded.Subject, bytes.NewReader(wasmBytes), uint64(len(wasmBytes)))
	if err != nil {
		return "", err
	}
	return decoded.Subject, nil
}
