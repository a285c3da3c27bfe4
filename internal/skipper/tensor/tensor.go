// Package tensor implements the 4-D classification table and its on-disk
// container format: a 12-byte header (version, additive checksum,
// dimensions) followed by an LZW-framed payload of the tensor's raw bytes.
package tensor

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dbry/skipper/internal/skipper/fault"
	"github.com/dbry/skipper/internal/skipper/lzw"
	"github.com/dbry/skipper/internal/skipper/stream"
)

// Axis sizes of T[range_dB][cycles>>1][low_third>>4][mid_third>>4].
const (
	DimRange  = 48
	DimCycles = 24
	DimLow    = 16
	DimMid    = 16

	cellCount = DimRange * DimCycles * DimLow * DimMid

	formatVersion = 1

	minMaxBits = 9
	maxMaxBits = 16
)

// Tensor is the flattened 4-D signed-byte classification table, values
// constrained to [-99, 99]: positive is music-like, negative talk-like,
// zero unseen.
type Tensor struct {
	cells [cellCount]int8
}

// New returns a zero-valued (all-unseen) tensor.
func New() *Tensor {
	return &Tensor{}
}

func clampAxis(v, max int) int {
	if v < 0 {
		return 0
	}

	if v > max {
		return max
	}

	return v
}

func index(h, i, j, k int) int {
	return ((h*DimCycles+i)*DimLow+j)*DimMid + k
}

// Get reads the cell at (h,i,j,k), clamping each index to its axis bound
// exactly as the window analyzer's tensor lookup does.
func (t *Tensor) Get(h, i, j, k int) int8 {
	h = clampAxis(h, DimRange-1)
	i = clampAxis(i, DimCycles-1)
	j = clampAxis(j, DimLow-1)
	k = clampAxis(k, DimMid-1)

	return t.cells[index(h, i, j, k)]
}

// Set writes the cell at (h,i,j,k), saturating the value to [-99, 99].
// Indices are not clamped: the builder (C7) addresses every cell directly
// and an out-of-range index there is a programming error, not user input.
func (t *Tensor) Set(h, i, j, k int, v int) {
	if v > 99 {
		v = 99
	}

	if v < -99 {
		v = -99
	}

	t.cells[index(h, i, j, k)] = int8(v)
}

// Bytes returns the flat byte-for-byte contents of the tensor, for
// checksumming and compression.
func (t *Tensor) Bytes() []byte {
	out := make([]byte, cellCount)
	for i, v := range t.cells {
		out[i] = byte(v)
	}

	return out
}

// FromBytes builds a Tensor directly from its flat cell bytes, bypassing
// the container header/checksum/LZW framing. Used for the embedded
// fallback tensor (internal/skipper/assets), which is compiled in as raw
// cell data rather than a full container file; every on-disk tensor file
// still goes through Load.
func FromBytes(b []byte) (*Tensor, error) {
	return fromBytes(b)
}

func fromBytes(b []byte) (*Tensor, error) {
	if len(b) != cellCount {
		return nil, fmt.Errorf("%w: decompressed payload is %d bytes, want %d", fault.ErrInvalidTensor, len(b), cellCount)
	}

	t := New()
	for i, v := range b {
		t.cells[i] = int8(v)
	}

	return t, nil
}

func checksum(b []byte) uint32 {
	var sum uint32

	for _, v := range b {
		sum += uint32(v)
	}

	return sum
}

type header struct {
	Version  uint32
	Checksum uint32
	Dims     [4]byte
}

var wantDims = [4]byte{DimRange, DimCycles, DimLow, DimMid}

// Write encodes the tensor as header + best-of-maxbits LZW payload, as
// described in spec §4.7: every maxbits in [9,16] is tried against a
// scratch streamer sized exactly to the uncompressed payload, and any
// attempt that wraps (grows past that size) is rejected as "did not help".
func Write(w io.Writer, t *Tensor) error {
	raw := t.Bytes()
	sum := checksum(raw)

	bestBits := 0
	bestOut := []byte(nil)

	for bits := minMaxBits; bits <= maxMaxBits; bits++ {
		scratch := stream.New(len(raw))

		idx := 0
		src := func() (byte, error) {
			if idx == len(raw) {
				return 0, io.EOF
			}

			b := raw[idx]
			idx++

			return b, nil
		}

		if err := lzw.Compress(scratch.WriteByte, src, bits); err != nil {
			continue
		}

		if scratch.Wrapped() != 0 {
			// Compression did not help at this width; the scratch buffer
			// overran its sizeof(tensor) bound.
			continue
		}

		out := make([]byte, scratch.Index())
		copy(out, scratch.Bytes()[:scratch.Index()])

		if bestOut == nil || len(out) < len(bestOut) {
			bestBits = bits
			bestOut = out
		}
	}

	if bestOut == nil {
		return fmt.Errorf("%w: no maxbits width compressed the tensor within its own size", fault.ErrInvalidTensor)
	}

	hdr := header{Version: formatVersion, Checksum: sum, Dims: wantDims}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, hdr.Version); err != nil {
		return fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
	}

	if err := binary.Write(&buf, binary.LittleEndian, hdr.Checksum); err != nil {
		return fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
	}

	buf.Write(hdr.Dims[:])

	// The fixed 12-byte header (matching the original C tensor_header
	// struct) has no room for the chosen maxbits, so it leads the payload
	// instead: Decompress needs it to mirror the same width-growth cap
	// Compress used, or the bitstream desyncs the moment the dictionary
	// approaches that cap.
	buf.WriteByte(byte(bestBits))
	buf.Write(bestOut)

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
	}

	return nil
}

// Load decodes a tensor container: header validation, LZW decompression
// into a buffer sized exactly to the uncompressed tensor, exact-consumption
// checks on both the compressed reader and the decompressed writer, and a
// final additive-checksum verification (spec §4.7 read path).
func Load(r io.Reader) (*Tensor, error) {
	all, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	if len(all) < 13 {
		return nil, fmt.Errorf("%w: file shorter than header", fault.ErrInvalidTensor)
	}

	var hdr header

	hdr.Version = binary.LittleEndian.Uint32(all[0:4])
	hdr.Checksum = binary.LittleEndian.Uint32(all[4:8])
	copy(hdr.Dims[:], all[8:12])

	if hdr.Version != formatVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", fault.ErrInvalidTensor, hdr.Version, formatVersion)
	}

	if hdr.Dims != wantDims {
		return nil, fmt.Errorf("%w: dimensions %v, want %v", fault.ErrInvalidTensor, hdr.Dims, wantDims)
	}

	maxbits := int(all[12])
	payload := all[13:]

	reader := stream.Wrap(payload)
	writer := stream.New(cellCount)

	if err := lzw.Decompress(writer.WriteByte, reader.ReadByte, maxbits); err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrInvalidTensor, err)
	}

	if !reader.Exhausted() {
		return nil, fmt.Errorf("%w: compressed payload not exactly consumed", fault.ErrInvalidTensor)
	}

	if err := writer.CheckFill(); err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrInvalidTensor, err)
	}

	t, err := fromBytes(writer.Bytes())
	if err != nil {
		return nil, err
	}

	if got := checksum(writer.Bytes()); hdr.Checksum-got != 0 {
		return nil, fmt.Errorf("%w: header %d, computed %d", fault.ErrChecksumMismatch, hdr.Checksum, got)
	}

	return t, nil
}
