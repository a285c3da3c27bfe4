// Package fault collects the sentinel errors shared across the skipper
// packages. Generic I/O sentinels are re-exported from primordium/fault, the
// same sentinels the teacher wraps in every audit package (e.g.
// internal/audit/clipping, internal/audit/truepeak); sentinels below that
// name a skipper-specific invariant (tensor shape, buffer overrun,
// segmentation/splicer state) have no upstream equivalent and are declared
// here.
package fault

import (
	"errors"

	"github.com/farcloser/primordium/fault"
)

// ErrReadFailure wraps an underlying I/O read error, identically to how the
// teacher's audit packages use primordium/fault.ErrReadFailure.
var ErrReadFailure = fault.ErrReadFailure

var (
	// ErrArgument indicates an invalid or out-of-range command-line argument.
	ErrArgument = errors.New("invalid argument")

	// ErrAssetLoad indicates the discrimination tensor could not be loaded.
	ErrAssetLoad = errors.New("tensor asset load failure")

	// ErrInvalidTensor indicates a tensor file failed header or shape validation.
	ErrInvalidTensor = errors.New("invalid tensor file")

	// ErrChecksumMismatch indicates a decompressed tensor failed its additive checksum.
	ErrChecksumMismatch = errors.New("tensor checksum mismatch")

	// ErrLZWFailure indicates the LZW codec reported a stream error.
	ErrLZWFailure = errors.New("lzw codec failure")

	// ErrStreamOverrun indicates a fixed-size byte stream was read or written past its bounds unexpectedly.
	ErrStreamOverrun = errors.New("stream buffer overrun")

	// ErrBufferOverrun indicates the output ring saturated with no confirmed audio to flush.
	ErrBufferOverrun = errors.New("buffer full with no confirmed samples")

	// ErrTransitionOutOfRange indicates a confirmed transition landed before the start of the output ring.
	ErrTransitionOutOfRange = errors.New("skipped transition, buffer out of range")

	// ErrDegenerateWindow indicates a malformed trigger list inside a window that should have attacks and decays.
	ErrDegenerateWindow = errors.New("degenerate attack/decay window")

	// ErrWriteFailure wraps an underlying I/O write error. primordium/fault has
	// no write-failure sentinel to re-export (the audit packages that import
	// it are read-only analyzers), so this one stays local.
	ErrWriteFailure = errors.New("write failure")
)
