// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flate

import (
	"github.com/lemon4ksan/logzip/internal/bitstream"
	"github.com/lemon4ksan/logzip/internal/bitutil"
	"github.com/lemon4ksan/logzip/internal/huffman"
)

// blockWriter buffers literals and matches of the current block and emits
// the block in whichever of the three encodings is smallest.
type blockWriter struct {
	bw   *bitstream.Writer
	lit  *huffman.Tree
	dist *huffman.Tree
	bl   *huffman.Tree

	// A zero distance marks a literal, otherwise lits holds length-3.
	lits  []uint8
	dists []uint16
	extra int
}

func newBlockWriter(bw *bitstream.Writer) *blockWriter {
	return &blockWriter{
		bw:    bw,
		lit:   huffman.NewTree(literalCount, 257, 15),
		dist:  huffman.NewTree(distanceCount, 1, 15),
		bl:    huffman.NewTree(codeLengthCount, 4, 7),
		lits:  make([]uint8, 0, tallyBufferSize),
		dists: make([]uint16, 0, tallyBufferSize),
	}
}

func (b *blockWriter) reset() {
	b.lits = b.lits[:0]
	b.dists = b.dists[:0]
	b.extra = 0
	b.lit.Reset()
	b.dist.Reset()
	b.bl.Reset()
}

func (b *blockWriter) full() bool { return len(b.lits) >= tallyBufferSize }

func (b *blockWriter) tallyLiteral(c byte) bool {
	b.lits = append(b.lits, c)
	b.dists = append(b.dists, 0)
	b.lit.Add(int(c))
	return b.full()
}

func (b *blockWriter) tallyMatch(dist, length int) bool {
	b.lits = append(b.lits, uint8(length-minMatch))
	b.dists = append(b.dists, uint16(dist))

	lc := lengthCode(length - minMatch)
	b.lit.Add(lc)
	if lc >= 265 && lc < 285 {
		b.extra += (lc - 261) / 4
	}
	dc := distanceCode(dist - 1)
	b.dist.Add(dc)
	if dc >= 4 {
		b.extra += dc/2 - 1
	}
	return b.full()
}

// flush ends the current block. stored holds the block's raw bytes and is
// nil when they are no longer in the window.
func (b *blockWriter) flush(stored []byte, last bool) {
	b.lit.Add(endBlock)
	b.lit.Build()
	b.dist.Build()
	b.lit.CountLengthCodes(b.bl)
	b.dist.CountLengthCodes(b.bl)
	b.bl.Build()

	blCodes := 4
	for i := codeLengthCount - 1; i > blCodes; i-- {
		if b.bl.Lengths()[bitutil.CodeLengthOrder[i]] > 0 {
			blCodes = i + 1
			break
		}
	}

	optBits := 14 + blCodes*3 + b.bl.EncodedBits() + b.lit.EncodedBits() +
		b.dist.EncodedBits() + b.extra

	staticBits := b.extra
	fl, fd := fixedLiteralCode(), fixedDistanceCode()
	for i, l := range fl.lengths {
		staticBits += b.lit.Freq(i) * int(l)
	}
	for i, l := range fd.lengths {
		staticBits += b.dist.Freq(i) * int(l)
	}
	optBits = min(optBits, staticBits)

	switch {
	case stored != nil && len(stored) <= 65535 && len(stored)+4 < optBits>>3:
		b.flushStored(stored, last)
	case optBits == staticBits:
		b.writeHeader(blockFixed, last)
		b.lit.SetStatic(fl.codes, fl.lengths)
		b.dist.SetStatic(fd.codes, fd.lengths)
		b.writeSymbols()
		b.reset()
	default:
		b.writeHeader(blockDynamic, last)
		b.writeTrees(blCodes)
		b.writeSymbols()
		b.reset()
	}
}

// flushStored ends the current block as a stored block holding data.
func (b *blockWriter) flushStored(data []byte, last bool) {
	b.writeHeader(blockStored, last)
	b.bw.AlignToByte()
	b.bw.WriteUint16LE(uint16(len(data)))
	b.bw.WriteUint16LE(^uint16(len(data)))
	b.bw.WriteBytes(data)
	b.reset()
}

func (b *blockWriter) writeHeader(typ int, last bool) {
	v := uint32(typ << 1)
	if last {
		v |= 1
	}
	b.bw.WriteBits(v, 3)
}

func (b *blockWriter) writeTrees(blCodes int) {
	b.bl.BuildCodes()
	b.lit.BuildCodes()
	b.dist.BuildCodes()

	b.bw.WriteBits(uint32(b.lit.NumCodes()-257), 5)
	b.bw.WriteBits(uint32(b.dist.NumCodes()-1), 5)
	b.bw.WriteBits(uint32(blCodes-4), 4)
	for i := range blCodes {
		b.bw.WriteBits(uint32(b.bl.Lengths()[bitutil.CodeLengthOrder[i]]), 3)
	}
	b.lit.WriteLengths(b.bw, b.bl)
	b.dist.WriteLengths(b.bw, b.bl)
}

func (b *blockWriter) writeSymbols() {
	for i, d := range b.dists {
		v := int(b.lits[i])
		if d == 0 {
			b.lit.Encode(b.bw, v)
			continue
		}
		dist := int(d) - 1

		lc := lengthCode(v)
		b.lit.Encode(b.bw, lc)
		if bits := (lc - 261) / 4; bits > 0 && bits <= 5 {
			b.bw.WriteBits(uint32(v&(1<<bits-1)), uint(bits))
		}

		dc := distanceCode(dist)
		b.dist.Encode(b.bw, dc)
		if bits := dc/2 - 1; bits > 0 {
			b.bw.WriteBits(uint32(dist&(1<<bits-1)), uint(bits))
		}
	}
	b.lit.Encode(b.bw, endBlock)
}
