// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bitstream

import (
	"bufio"
	"io"
)

type byteReader interface {
	io.Reader
	io.ByteReader
}

// Reader extracts bit fields from a byte source, least significant bit first.
// Reads past the end of the source report failure without consuming anything.
type Reader struct {
	r     byteReader
	acc   uint32
	nbits uint // Valid bits in acc, below 32
	eof   bool
	err   error
}

// NewReader returns a Reader over r. Sources that do not implement
// io.ByteReader are buffered.
func NewReader(r io.Reader) *Reader {
	br := &Reader{}
	br.Reset(r)
	return br
}

// Reset discards all state and reads from r.
func (br *Reader) Reset(r io.Reader) {
	if b, ok := r.(byteReader); ok {
		br.r = b
	} else {
		br.r = bufio.NewReader(r)
	}
	br.acc, br.nbits = 0, 0
	br.eof = false
	br.err = nil
}

// MaxPeek is the widest field PeekBits and ReadBits accept. Refilling a byte
// at a time then leaves at most 31 bits buffered.
const MaxPeek = 24

// fill tries to buffer at least n bits.
func (br *Reader) fill(n uint) bool {
	for br.nbits < n {
		if br.eof {
			return false
		}
		b, err := br.r.ReadByte()
		if err != nil {
			br.eof = true
			if err != io.EOF {
				br.err = err
			}
			return false
		}
		br.acc |= uint32(b) << br.nbits
		br.nbits += 8
	}
	return true
}

// PeekBits returns the next n bits (n <= MaxPeek) without consuming them.
// If the source cannot supply n bits, ok is false and v holds whatever bits
// are available, zero padded.
func (br *Reader) PeekBits(n uint) (v uint32, ok bool) {
	if n > MaxPeek {
		panic("bitstream: peek wider than MaxPeek")
	}
	ok = br.fill(n)
	return br.acc & (1<<n - 1), ok
}

// ReadBits consumes and returns the next n bits.
func (br *Reader) ReadBits(n uint) (uint32, bool) {
	v, ok := br.PeekBits(n)
	if !ok {
		return 0, false
	}
	br.SkipBits(n)
	return v, true
}

// SkipBits drops n already buffered bits.
func (br *Reader) SkipBits(n uint) {
	if n > br.nbits {
		panic("bitstream: skipping unbuffered bits")
	}
	br.acc >>= n
	br.nbits -= n
}

// AvailableBits reports how many bits are currently buffered.
func (br *Reader) AvailableBits() uint { return br.nbits }

// AlignToByte drops the bits left in a partially consumed byte.
func (br *Reader) AlignToByte() {
	br.SkipBits(br.nbits % 8)
}

// ReadUint16LE reads a little-endian value from a byte aligned position.
func (br *Reader) ReadUint16LE() (uint16, bool) {
	v, ok := br.ReadBits(16)
	return uint16(v), ok
}

// ReadUint32BE reads a big-endian value from a byte aligned position.
func (br *Reader) ReadUint32BE() (uint32, bool) {
	var v uint32
	for range 4 {
		b, ok := br.ReadBits(8)
		if !ok {
			return 0, false
		}
		v = v<<8 | b
	}
	return v, true
}

// ReadBytes fills p with raw bytes. The reader must be byte aligned.
// Buffered bits are drained before the source is read.
func (br *Reader) ReadBytes(p []byte) (int, error) {
	if br.nbits%8 != 0 {
		panic("bitstream: byte read on unaligned reader")
	}
	n := 0
	for n < len(p) && br.nbits > 0 {
		p[n] = byte(br.acc)
		br.acc >>= 8
		br.nbits -= 8
		n++
	}
	if n == len(p) {
		return n, nil
	}
	if br.eof {
		return n, io.ErrUnexpectedEOF
	}
	m, err := io.ReadFull(br.r, p[n:])
	n += m
	if err != nil {
		br.eof = true
		if err != io.EOF && err != io.ErrUnexpectedEOF {
			br.err = err
		}
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}

// Err returns a read error other than end of input, if one occurred.
func (br *Reader) Err() error { return br.err }
