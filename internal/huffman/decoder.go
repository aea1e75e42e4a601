// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package huffman

import (
	"errors"

	"github.com/lemon4ksan/logzip/internal/bitstream"
	"github.com/lemon4ksan/logzip/internal/bitutil"
)

// MaxCodeLength is the longest code a DEFLATE stream may use.
const MaxCodeLength = 15

const (
	primaryBits = 9
	primarySize = 1 << primaryBits
)

var (
	// ErrInvalidLengths reports a length set that does not form a prefix code.
	ErrInvalidLengths = errors.New("huffman: invalid code lengths")
	// ErrInvalidCode reports a bit pattern that no symbol is assigned to.
	ErrInvalidCode = errors.New("huffman: invalid code")
	// ErrNeedBits reports that the input ended inside a code.
	ErrNeedBits = errors.New("huffman: input ended inside a code")
)

// Decoder maps bit patterns to symbols through a 9-bit primary table and
// secondary tables for longer codes.
//
// A primary entry is either sym<<4|len for codes up to 9 bits, -(off<<4)|bits
// linking to the secondary table at off indexed by the next bits, or 0 for an
// unused pattern.
type Decoder struct {
	table []int32
}

// NewDecoder builds a decoder for the canonical code described by lengths.
// Incomplete codes are accepted; over-subscribed ones are not.
func NewDecoder(lengths []uint8) (*Decoder, error) {
	var count [MaxCodeLength + 1]int
	maxLen := 0
	for _, l := range lengths {
		if l > MaxCodeLength {
			return nil, ErrInvalidLengths
		}
		count[l]++
		maxLen = max(maxLen, int(l))
	}
	count[0] = 0

	var next [MaxCodeLength + 2]int
	code, left := 0, 1
	for bits := 1; bits <= MaxCodeLength; bits++ {
		left <<= 1
		left -= count[bits]
		if left < 0 {
			return nil, ErrInvalidLengths
		}
		code = (code + count[bits-1]) << 1
		next[bits] = code
	}

	codes := make([]int, len(lengths))
	for sym, l := range lengths {
		if l != 0 {
			codes[sym] = int(bitutil.Reverse(uint16(next[l]), uint(l)))
			next[l]++
		}
	}

	d := &Decoder{table: make([]int32, primarySize)}

	// Size every secondary table by the longest code sharing its prefix.
	if maxLen > primaryBits {
		var subBits [primarySize]int
		for sym, l := range lengths {
			if int(l) > primaryBits {
				p := codes[sym] & (primarySize - 1)
				subBits[p] = max(subBits[p], int(l)-primaryBits)
			}
		}
		for p, bits := range subBits {
			if bits == 0 {
				continue
			}
			off := len(d.table)
			d.table = append(d.table, make([]int32, 1<<bits)...)
			d.table[p] = -int32(off<<4) | int32(bits)
		}
	}

	for sym, l := range lengths {
		if l == 0 {
			continue
		}
		c, n := codes[sym], int(l)
		if n <= primaryBits {
			entry := int32(sym<<4 | n)
			for i := c; i < primarySize; i += 1 << n {
				d.table[i] = entry
			}
			continue
		}
		link := d.table[c&(primarySize-1)]
		off := int(-(link >> 4))
		bits := int(link & 0xf)
		entry := int32(sym<<4 | n)
		for i := c >> primaryBits; i < 1<<bits; i += 1 << (n - primaryBits) {
			d.table[off+i] = entry
		}
	}
	return d, nil
}

// Decode reads one symbol from r.
func (d *Decoder) Decode(r *bitstream.Reader) (int, error) {
	v, ok := r.PeekBits(primaryBits)
	avail := uint(primaryBits)
	if !ok {
		avail = r.AvailableBits()
	}
	e := d.table[v]
	if e < 0 {
		bits := uint(e & 0xf)
		off := int(-(e >> 4))
		v, ok = r.PeekBits(primaryBits + bits)
		avail = primaryBits + bits
		if !ok {
			avail = r.AvailableBits()
		}
		e = d.table[off+int(v>>primaryBits)]
	}
	if e == 0 {
		if !ok {
			return 0, ErrNeedBits
		}
		return 0, ErrInvalidCode
	}
	n := uint(e & 0xf)
	if n > avail {
		return 0, ErrNeedBits
	}
	r.SkipBits(n)
	return int(e >> 4), nil
}
