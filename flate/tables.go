// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flate

import (
	"sync"

	"github.com/lemon4ksan/logzip/internal/bitutil"
	"github.com/lemon4ksan/logzip/internal/huffman"
)

const (
	windowSize = 1 << 15
	windowMask = windowSize - 1

	hashBits  = 15
	hashSize  = 1 << hashBits
	hashMask  = hashSize - 1
	hashShift = (hashBits + minMatch - 1) / minMatch

	minMatch     = 3
	maxMatch     = 258
	minLookahead = maxMatch + minMatch + 1
	maxDist      = windowSize - minLookahead
	tooFar       = 4096

	literalCount    = 286
	distanceCount   = 30
	codeLengthCount = 19
	endBlock        = 256

	tallyBufferSize = 1 << 14
	maxStoredBlock  = min(65535, bitPendingSize-5)
	bitPendingSize  = 1 << 16

	// ringSize is the decompressor's output buffer. Only the last windowSize
	// bytes are addressable by back-references.
	ringSize = 1 << 16
	ringMask = ringSize - 1
)

// Block types.
const (
	blockStored  = 0
	blockFixed   = 1
	blockDynamic = 2
)

var lengthBase = [29]uint16{
	3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31,
	35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258,
}

var lengthExtra = [29]uint8{
	0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2,
	3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0,
}

var distBase = [30]uint16{
	1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193,
	257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577,
}

var distExtra = [30]uint8{
	0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6,
	7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13,
}

type strategy int

const (
	strategyStored strategy = iota
	strategyFast
	strategyLazy
)

// levelConfig tunes the match finder for one compression level.
type levelConfig struct {
	good, lazy, nice, chain int
	strategy                strategy
}

var levels = [10]levelConfig{
	{0, 0, 0, 0, strategyStored},
	{4, 4, 8, 4, strategyFast},
	{4, 5, 16, 8, strategyFast},
	{4, 6, 32, 32, strategyFast},
	{4, 4, 16, 16, strategyFast},
	{8, 16, 32, 32, strategyLazy},
	{8, 16, 128, 128, strategyLazy},
	{8, 32, 128, 256, strategyLazy},
	{32, 128, 258, 1024, strategyLazy},
	{32, 258, 258, 4096, strategyLazy},
}

type staticCode struct {
	codes   []uint16
	lengths []uint8
}

// fixedLiteralCode is the literal/length code of fixed Huffman blocks.
var fixedLiteralCode = sync.OnceValue(func() staticCode {
	c := staticCode{codes: make([]uint16, literalCount), lengths: make([]uint8, literalCount)}
	for i := range literalCount {
		switch {
		case i < 144:
			c.codes[i] = bitutil.Reverse16(uint16(0x030+i) << 8)
			c.lengths[i] = 8
		case i < 256:
			c.codes[i] = bitutil.Reverse16(uint16(0x190-144+i) << 7)
			c.lengths[i] = 9
		case i < 280:
			c.codes[i] = bitutil.Reverse16(uint16(i-256) << 9)
			c.lengths[i] = 7
		default:
			c.codes[i] = bitutil.Reverse16(uint16(0x0c0-280+i) << 8)
			c.lengths[i] = 8
		}
	}
	return c
})

// fixedDistanceCode is the distance code of fixed Huffman blocks.
var fixedDistanceCode = sync.OnceValue(func() staticCode {
	c := staticCode{codes: make([]uint16, distanceCount), lengths: make([]uint8, distanceCount)}
	for i := range distanceCount {
		c.codes[i] = bitutil.Reverse16(uint16(i) << 11)
		c.lengths[i] = 5
	}
	return c
})

func fixedLiteralLengths() []uint8 {
	lengths := make([]uint8, 288)
	for i := range lengths {
		switch {
		case i < 144:
			lengths[i] = 8
		case i < 256:
			lengths[i] = 9
		case i < 280:
			lengths[i] = 7
		default:
			lengths[i] = 8
		}
	}
	return lengths
}

var fixedLiteralDecoder = sync.OnceValue(func() *huffman.Decoder {
	d, err := huffman.NewDecoder(fixedLiteralLengths())
	if err != nil {
		panic(err)
	}
	return d
})

var fixedDistanceDecoder = sync.OnceValue(func() *huffman.Decoder {
	lengths := make([]uint8, 32)
	for i := range lengths {
		lengths[i] = 5
	}
	d, err := huffman.NewDecoder(lengths)
	if err != nil {
		panic(err)
	}
	return d
})

// lengthCode maps a match length minus 3 to its literal/length symbol.
func lengthCode(n int) int {
	if n == 255 {
		return 285
	}
	code := 257
	for n >= 8 {
		code += 4
		n >>= 1
	}
	return code + n
}

// distanceCode maps a distance minus 1 to its distance symbol.
func distanceCode(dist int) int {
	code := 0
	for dist >= 4 {
		code += 2
		dist >>= 1
	}
	return code + dist
}
