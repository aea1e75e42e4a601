// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bitstream provides least-significant-bit-first bit I/O as used by
// DEFLATE.
package bitstream

import "io"

// PendingSize is the size of the writer's output buffer. It is flushed to the
// sink whenever it fills up.
const PendingSize = 1 << 16

// Writer packs bit fields into bytes, least significant bit first.
// The first error returned by the sink is sticky.
type Writer struct {
	w       io.Writer
	pending []byte
	acc     uint32
	nbits   uint // Always below 8 between calls
	written int64
	err     error
}

// NewWriter returns a Writer emitting bytes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, pending: make([]byte, 0, PendingSize)}
}

// Reset discards all state and directs output to w.
func (bw *Writer) Reset(w io.Writer) {
	bw.w = w
	bw.pending = bw.pending[:0]
	bw.acc, bw.nbits = 0, 0
	bw.written = 0
	bw.err = nil
}

// WriteBits appends the low n bits of v. n must not exceed 32. Wide values
// are written in two halves so that the accumulator never holds 32 bits.
func (bw *Writer) WriteBits(v uint32, n uint) {
	if n > 16 {
		bw.WriteBits(v&0xffff, 16)
		v, n = v>>16, n-16
	}
	bw.acc |= (v & (1<<n - 1)) << bw.nbits
	bw.nbits += n
	for bw.nbits >= 8 {
		bw.putByte(byte(bw.acc))
		bw.acc >>= 8
		bw.nbits -= 8
	}
}

// AlignToByte pads the current byte with zero bits.
func (bw *Writer) AlignToByte() {
	if bw.nbits > 0 {
		bw.putByte(byte(bw.acc))
		bw.acc, bw.nbits = 0, 0
	}
}

// WriteBytes appends p verbatim. The writer must be byte aligned.
func (bw *Writer) WriteBytes(p []byte) {
	bw.mustAligned()
	for len(p) > 0 {
		if len(bw.pending) == cap(bw.pending) {
			bw.flushPending()
		}
		n := copy(bw.pending[len(bw.pending):cap(bw.pending)], p)
		bw.pending = bw.pending[:len(bw.pending)+n]
		p = p[n:]
	}
}

// WriteUint16LE appends v in little-endian order. The writer must be byte aligned.
func (bw *Writer) WriteUint16LE(v uint16) {
	bw.mustAligned()
	bw.putByte(byte(v))
	bw.putByte(byte(v >> 8))
}

// WriteUint16BE appends v in big-endian order. The writer must be byte aligned.
func (bw *Writer) WriteUint16BE(v uint16) {
	bw.mustAligned()
	bw.putByte(byte(v >> 8))
	bw.putByte(byte(v))
}

// WriteUint32BE appends v in big-endian order. The writer must be byte aligned.
func (bw *Writer) WriteUint32BE(v uint32) {
	bw.WriteUint16BE(uint16(v >> 16))
	bw.WriteUint16BE(uint16(v))
}

// Flush writes all whole bytes to the sink. Bits of an incomplete byte stay
// buffered.
func (bw *Writer) Flush() error {
	bw.flushPending()
	return bw.err
}

// Written returns the number of bytes handed to the sink so far.
func (bw *Writer) Written() int64 { return bw.written }

// Err returns the first error reported by the sink.
func (bw *Writer) Err() error { return bw.err }

func (bw *Writer) putByte(b byte) {
	if len(bw.pending) == cap(bw.pending) {
		bw.flushPending()
	}
	bw.pending = append(bw.pending, b)
}

func (bw *Writer) flushPending() {
	if len(bw.pending) == 0 {
		return
	}
	if bw.err == nil {
		n, err := bw.w.Write(bw.pending)
		bw.written += int64(n)
		if err == nil && n < len(bw.pending) {
			err = io.ErrShortWrite
		}
		bw.err = err
	}
	bw.pending = bw.pending[:0]
}

func (bw *Writer) mustAligned() {
	if bw.nbits != 0 {
		panic("bitstream: byte write on unaligned writer")
	}
}
