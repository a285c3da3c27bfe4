// Package lzw implements the byte-callback streaming LZW-AB codec skipper
// uses to frame the tensor container payload. It is a standard variable-width
// (9..maxbits) LZW with a clear code and an end-of-information code, driven
// entirely through byte-source/byte-sink callbacks so it can compress or
// decompress against any backing store — in skipper's case, the fixed-size
// wrap-detecting Streamer in internal/skipper/stream.
//
// No published Go LZW package exposes this exact shape (adjustable maxbits,
// push/pull byte callbacks instead of io.Reader/io.Writer, explicit clear
// code triggered by dictionary exhaustion); it is implemented here rather
// than imported. See DESIGN.md.
package lzw

import (
	"errors"
	"fmt"
	"io"

	"github.com/dbry/skipper/internal/skipper/fault"
)

const (
	minBits   = 9
	clearCode = 256
	eoiCode   = 257
	firstCode = 258
)

// Writer is a byte sink: it accepts one byte at a time.
type Writer func(b byte)

// Reader is a byte source: it returns io.EOF when the stream is exhausted.
type Reader func() (byte, error)

type bitWriter struct {
	dst  Writer
	acc  uint32
	bits int
}

func (w *bitWriter) writeCode(code, width int) {
	w.acc |= uint32(code) << w.bits
	w.bits += width

	for w.bits >= 8 {
		w.dst(byte(w.acc & 0xff))
		w.acc >>= 8
		w.bits -= 8
	}
}

func (w *bitWriter) flush() {
	if w.bits > 0 {
		w.dst(byte(w.acc & 0xff))
		w.acc = 0
		w.bits = 0
	}
}

type bitReader struct {
	src  Reader
	acc  uint32
	bits int
}

// readCode pulls width bits, reading as many source bytes as needed. It
// tolerates io.EOF once the tail of the stream has been fully buffered: the
// final code (always eoiCode) may be shorter than a full source byte.
func (r *bitReader) readCode(width int) (int, error) {
	for r.bits < width {
		b, err := r.src()
		if err != nil {
			if errors.Is(err, io.EOF) && r.bits > 0 {
				break
			}

			return 0, err
		}

		r.acc |= uint32(b) << r.bits
		r.bits += 8
	}

	mask := uint32(1<<width) - 1
	code := int(r.acc & mask)
	r.acc >>= width
	r.bits -= width

	if r.bits < 0 {
		r.bits = 0
	}

	return code, nil
}

type entry struct {
	prefix int // index into dict, or a literal byte value if < firstCode
	suffix byte
}

type dictionary struct {
	strings map[string]int // compress side: string -> code
	entries []entry        // decompress side: code - firstCode -> entry
	next    int
	width   int
	maxbits int
}

func newDictionary(maxbits int) *dictionary {
	d := &dictionary{maxbits: maxbits}
	d.reset()

	return d
}

func (d *dictionary) reset() {
	d.strings = make(map[string]int, 4096)
	d.entries = d.entries[:0]
	d.next = firstCode
	d.width = minBits
}

func (d *dictionary) full() bool {
	return d.next >= 1<<d.maxbits
}

func (d *dictionary) growWidthIfNeeded() {
	if d.next-1 == (1<<d.width)-1 && d.width < d.maxbits {
		d.width++
	}
}

// Compress reads bytes from src until io.EOF and writes the LZW-AB encoding
// of them, one byte at a time, to dst. maxbits bounds the dictionary at
// 1<<maxbits entries (9..16).
func Compress(dst Writer, src Reader, maxbits int) error {
	if maxbits < minBits || maxbits > 16 {
		return fmt.Errorf("%w: maxbits %d out of range", fault.ErrLZWFailure, maxbits)
	}

	bw := &bitWriter{dst: dst}
	dict := newDictionary(maxbits)

	bw.writeCode(clearCode, dict.width)

	first, err := src()
	if err != nil {
		if errors.Is(err, io.EOF) {
			bw.writeCode(eoiCode, dict.width)
			bw.flush()

			return nil
		}

		return fmt.Errorf("%w: %w", fault.ErrLZWFailure, err)
	}

	currentCode := int(first)
	current := string(first)

	for {
		next, err := src()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: %w", fault.ErrLZWFailure, err)
			}

			bw.writeCode(currentCode, dict.width)

			// The decoder adds one more dictionary entry on reading
			// currentCode; step the width schedule the same way so the
			// end-of-information code is written at the width it reads.
			dict.next++
			dict.growWidthIfNeeded()

			bw.writeCode(eoiCode, dict.width)
			bw.flush()

			return nil
		}

		candidate := current + string(next)

		if code, ok := dict.strings[candidate]; ok {
			current = candidate
			currentCode = code

			continue
		}

		bw.writeCode(currentCode, dict.width)

		dict.strings[candidate] = dict.next
		dict.next++
		dict.growWidthIfNeeded()

		if dict.full() {
			bw.writeCode(clearCode, dict.width)
			dict.reset()
		}

		current = string(next)
		currentCode = int(next)
	}
}

// Decompress reads an LZW-AB stream from src and writes the decoded bytes to
// dst, one byte at a time, until it sees the end-of-information code.
// maxbits must be the same dictionary bound Compress was called with: the
// width growth schedule below follows dictionary.growWidthIfNeeded's, and
// diverges from the encoder the moment the dictionary approaches a
// different cap. The decoder adds each entry one code later than the
// encoder, so it widens one entry earlier than the encoder's own check.
func Decompress(dst Writer, src Reader, maxbits int) error {
	if maxbits < minBits || maxbits > 16 {
		return fmt.Errorf("%w: maxbits %d out of range", fault.ErrLZWFailure, maxbits)
	}

	br := &bitReader{src: src}

	var dict []entry

	width := minBits
	next := firstCode
	prevCode := -1

	reset := func() {
		dict = dict[:0]
		next = firstCode
		width = minBits
		prevCode = -1
	}

	// resolve expands a code into its byte sequence and returns its first byte.
	resolve := func(code int) ([]byte, byte) {
		var stack []byte

		for code >= firstCode {
			e := dict[code-firstCode]
			stack = append(stack, e.suffix)
			code = e.prefix
		}

		first := byte(code)
		stack = append(stack, first)

		out := make([]byte, len(stack))
		for i, b := range stack {
			out[len(stack)-1-i] = b
		}

		return out, first
	}

	for {
		code, err := br.readCode(width)
		if err != nil {
			return fmt.Errorf("%w: %w", fault.ErrLZWFailure, err)
		}

		if code == clearCode {
			reset()

			continue
		}

		if code == eoiCode {
			return nil
		}

		var out []byte

		switch {
		case code < firstCode:
			out = []byte{byte(code)}
		case code-firstCode < len(dict):
			out, _ = resolve(code)
		case code-firstCode == len(dict) && prevCode >= 0:
			prevOut, prevFirst := resolve(prevCode)
			out = append(append([]byte{}, prevOut...), prevFirst)
		default:
			return fault.ErrLZWFailure
		}

		for _, b := range out {
			dst(b)
		}

		if prevCode >= 0 {
			dict = append(dict, entry{prefix: prevCode, suffix: out[0]})
			next++

			if next == (1<<width)-1 && width < maxbits {
				width++
			}
		}

		prevCode = code
	}
}
