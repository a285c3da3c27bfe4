// Package assets holds the compiled-in fallback tensor used when the CLI is
// given no "-d <file>" (spec §6): the REDESIGN equivalent of the original's
// bin2c-generated byte array, via go:embed instead of a generated .c source.
//
// The embed stores the tensor's raw 294912 decompressed cell bytes rather
// than a full header+LZW container: every tensor read from disk still goes
// through tensor.Load's container format, but the built-in default is
// constructed directly from its cell data with tensor.FromBytes.
package assets

import (
	_ "embed"
	"fmt"

	"github.com/dbry/skipper/internal/skipper/fault"
	"github.com/dbry/skipper/internal/skipper/tensor"
)

//go:embed fallback.tensor
var fallbackCells []byte

// Fallback returns the built-in classification tensor.
func Fallback() (*tensor.Tensor, error) {
	t, err := tensor.FromBytes(fallbackCells)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrAssetLoad, err)
	}

	return t, nil
}
