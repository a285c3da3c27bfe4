// Package stream implements the fixed-size, wrap-detecting byte buffer that
// drives the LZW codec on both sides of the tensor container: a Streamer is
// simultaneously a byte source for decompression and a byte sink for
// compression, over a single pre-allocated buffer (spec §4.6, §5 — no mid-run
// resizing).
package stream

import (
	"io"

	"github.com/dbry/skipper/internal/skipper/fault"
)

// Streamer is a byte-level source/sink over an in-memory buffer. Reading past
// the end reports io.EOF; writing past the end wraps around to index 0 and
// increments Wrapped, so a caller can distinguish "buffer exactly consumed"
// from "overrun" with a single post-hoc check of Wrapped == 0.
type Streamer struct {
	buffer  []byte
	index   uint32
	wrapped uint32
}

// New allocates a Streamer over a fresh buffer of the given size.
func New(size int) *Streamer {
	return &Streamer{buffer: make([]byte, size)}
}

// Wrap builds a Streamer over an existing buffer, for read-side use where the
// caller already owns the backing bytes (e.g. a file's payload slice).
func Wrap(buf []byte) *Streamer {
	return &Streamer{buffer: buf}
}

// Size reports the capacity of the underlying buffer.
func (s *Streamer) Size() int { return len(s.buffer) }

// Index reports the current read/write cursor.
func (s *Streamer) Index() uint32 { return s.index }

// Wrapped reports how many times a write cursor has wrapped around the end
// of the buffer. Zero wraps on the write side, combined with Index == Size
// on the read side, is the container format's definition of "exact fit".
func (s *Streamer) Wrapped() uint32 { return s.wrapped }

// Exhausted reports whether the read cursor has consumed the entire buffer.
func (s *Streamer) Exhausted() bool { return s.index == uint32(len(s.buffer)) }

// ReadByte implements the source side: lzw.Reader.
func (s *Streamer) ReadByte() (byte, error) {
	if s.index == uint32(len(s.buffer)) {
		return 0, io.EOF
	}

	b := s.buffer[s.index]
	s.index++

	return b, nil
}

// WriteByte implements the sink side: lzw.Writer. On overflow it wraps the
// cursor back to zero and counts the wrap rather than growing the buffer —
// growth would hide the overrun the caller needs to detect.
func (s *Streamer) WriteByte(b byte) {
	if s.index == uint32(len(s.buffer)) {
		s.index = 0
		s.wrapped++
	}

	s.buffer[s.index] = b
	s.index++
}

// Bytes returns the backing buffer. Valid to inspect after a write pass that
// reported Wrapped() == 0 and Index() == Size() (an exact fill).
func (s *Streamer) Bytes() []byte { return s.buffer }

// CheckFill validates that a write pass exactly filled the buffer once, with
// no overrun: the container write/read paths both require this (spec §4.7).
func (s *Streamer) CheckFill() error {
	if s.wrapped != 0 {
		return fault.ErrStreamOverrun
	}

	if s.index != uint32(len(s.buffer)) {
		return fault.ErrStreamOverrun
	}

	return nil
}
