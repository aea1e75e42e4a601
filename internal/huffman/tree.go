// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package huffman builds length-limited canonical Huffman codes for the
// DEFLATE encoder and decodes them through lookup tables.
package huffman

import (
	"github.com/lemon4ksan/logzip/internal/bitstream"
	"github.com/lemon4ksan/logzip/internal/bitutil"
)

// Repeat codes of the code length alphabet.
const (
	RepeatPrevious = 16 // previous length 3-6 times, 2 extra bits
	RepeatZero     = 17 // zero 3-10 times, 3 extra bits
	RepeatZeroLong = 18 // zero 11-138 times, 7 extra bits
)

// Tree collects symbol frequencies and derives canonical codes no longer
// than a fixed maximum.
type Tree struct {
	freqs     []int
	lengths   []uint8
	codes     []uint16
	counts    []int
	minCodes  int
	numCodes  int
	maxLength int
}

// NewTree returns an empty tree over the given number of symbols.
// At least minCodes lengths are transmitted in a dynamic header.
func NewTree(symbols, minCodes, maxLength int) *Tree {
	return &Tree{
		freqs:     make([]int, symbols),
		lengths:   make([]uint8, symbols),
		codes:     make([]uint16, symbols),
		counts:    make([]int, maxLength),
		minCodes:  minCodes,
		maxLength: maxLength,
	}
}

// Add records one occurrence of sym.
func (t *Tree) Add(sym int) { t.freqs[sym]++ }

// AddN records n occurrences of sym.
func (t *Tree) AddN(sym, n int) { t.freqs[sym] += n }

// Freq returns the recorded frequency of sym.
func (t *Tree) Freq(sym int) int { return t.freqs[sym] }

// Lengths returns the code length of every symbol. The slice is owned by the tree.
func (t *Tree) Lengths() []uint8 { return t.lengths }

// NumCodes returns the number of code lengths to transmit.
func (t *Tree) NumCodes() int { return t.numCodes }

// Reset clears frequencies, lengths and codes.
func (t *Tree) Reset() {
	clear(t.freqs)
	clear(t.lengths)
	clear(t.codes)
	t.numCodes = 0
}

// SetStatic installs a predefined code. The frequencies are kept.
func (t *Tree) SetStatic(codes []uint16, lengths []uint8) {
	copy(t.codes, codes)
	copy(t.lengths, lengths)
}

// EncodedBits returns the number of bits needed to code the recorded
// symbols with the current lengths.
func (t *Tree) EncodedBits() int {
	n := 0
	for i, f := range t.freqs {
		n += f * int(t.lengths[i])
	}
	return n
}

// Encode writes the code of sym.
func (t *Tree) Encode(w *bitstream.Writer, sym int) {
	w.WriteBits(uint32(t.codes[sym]), uint(t.lengths[sym]))
}

// Build derives code lengths from the recorded frequencies.
// Nodes are ordered by frequency, ties broken by depth, so that shallow
// trees are preferred.
func (t *Tree) Build() {
	heap := make([]int, len(t.freqs))
	heapLen := 0
	maxCode := 0

	for n, freq := range t.freqs {
		if freq == 0 {
			continue
		}
		pos := heapLen
		heapLen++
		for pos > 0 {
			ppos := (pos - 1) / 2
			if t.freqs[heap[ppos]] <= freq {
				break
			}
			heap[pos] = heap[ppos]
			pos = ppos
		}
		heap[pos] = n
		maxCode = n
	}

	// A valid code needs two leaves even for a single used symbol.
	for heapLen < 2 {
		node := 0
		if maxCode < 2 {
			maxCode++
			node = maxCode
		}
		heap[heapLen] = node
		heapLen++
	}

	t.numCodes = max(maxCode+1, t.minCodes)

	numLeafs := heapLen
	numNodes := numLeafs
	childs := make([]int, 4*heapLen-2)
	values := make([]int, 2*heapLen-1)

	for i := 0; i < heapLen; i++ {
		node := heap[i]
		childs[2*i] = node
		childs[2*i+1] = -1
		values[i] = t.freqs[node] << 8
		heap[i] = i
	}

	for heapLen > 1 {
		first := heap[0]
		heapLen--
		last := heap[heapLen]

		ppos := siftHole(heap, values, heapLen)
		siftUp(heap, values, ppos, last)

		second := heap[0]
		last = numNodes
		numNodes++
		childs[2*last] = first
		childs[2*last+1] = second
		mindepth := min(values[first]&0xff, values[second]&0xff)
		values[last] = values[first] + values[second] - mindepth + 1

		ppos = siftHole(heap, values, heapLen)
		siftUp(heap, values, ppos, last)
	}

	if heap[0] != len(childs)/2-1 {
		panic("huffman: heap invariant violated")
	}

	t.buildLengths(childs)
}

// siftHole moves the hole at the heap root down to a leaf, always following
// the smaller child, and returns its final position.
func siftHole(heap, values []int, heapLen int) int {
	ppos, path := 0, 1
	for path < heapLen {
		if path+1 < heapLen && values[heap[path]] > values[heap[path+1]] {
			path++
		}
		heap[ppos] = heap[path]
		ppos = path
		path = path*2 + 1
	}
	return ppos
}

// siftUp places node at the hole pos, moving larger parents down.
func siftUp(heap, values []int, pos, node int) {
	v := values[node]
	for pos > 0 {
		parent := (pos - 1) / 2
		if values[heap[parent]] <= v {
			break
		}
		heap[pos] = heap[parent]
		pos = parent
	}
	heap[pos] = node
}

func (t *Tree) buildLengths(childs []int) {
	clear(t.lengths)
	clear(t.counts)

	numNodes := len(childs) / 2
	numLeafs := (numNodes + 1) / 2
	overflow := 0

	depth := make([]int, numNodes)
	for i := numNodes - 1; i >= 0; i-- {
		if childs[2*i+1] != -1 {
			bits := depth[i] + 1
			if bits > t.maxLength {
				bits = t.maxLength
				overflow++
			}
			depth[childs[2*i]] = bits
			depth[childs[2*i+1]] = bits
		} else {
			t.counts[depth[i]-1]++
			t.lengths[childs[2*i]] = uint8(depth[i])
		}
	}

	if overflow == 0 {
		return
	}

	// Move leaves down from shorter length classes until the Kraft sum fits
	// again, then hand out the corrected lengths in merge order, least
	// frequent leaves first.
	incr := t.maxLength - 1
	for overflow > 0 {
		incr--
		for t.counts[incr] == 0 {
			incr--
		}
		for {
			t.counts[incr]--
			incr++
			t.counts[incr]++
			overflow -= 1 << (t.maxLength - 1 - incr)
			if overflow <= 0 || incr >= t.maxLength-1 {
				break
			}
		}
	}
	t.counts[t.maxLength-1] += overflow
	t.counts[t.maxLength-2] -= overflow

	nodePtr := 2 * numLeafs
	for bits := t.maxLength; bits != 0; bits-- {
		n := t.counts[bits-1]
		for n > 0 {
			childPtr := 2 * childs[nodePtr]
			nodePtr++
			if childs[childPtr+1] == -1 {
				t.lengths[childs[childPtr]] = uint8(bits)
				n--
			}
		}
	}
}

// BuildCodes assigns canonical codes from the current lengths.
func (t *Tree) BuildCodes() {
	nextCode := make([]int, t.maxLength)
	code := 0
	for bits := 0; bits < t.maxLength; bits++ {
		nextCode[bits] = code
		code += t.counts[bits] << (15 - bits)
	}
	for i := 0; i < t.numCodes; i++ {
		bits := int(t.lengths[i])
		if bits > 0 {
			t.codes[i] = bitutil.Reverse16(uint16(nextCode[bits-1]))
			nextCode[bits-1] += 1 << (16 - bits)
		}
	}
}

// lengthRuns walks the transmitted lengths as runs the way a dynamic header
// codes them and calls emit for every run. count is the repeat count of a
// repeat code or the number of plain lengths to write.
func (t *Tree) lengthRuns(emit func(sym, count int)) {
	prev := -1
	i := 0
	for i < t.numCodes {
		count := 1
		cur := int(t.lengths[i])
		maxRun, minRun := 6, 3
		if cur == 0 {
			maxRun = 138
		} else if prev != cur {
			emit(cur, 1)
			count = 0
		}
		prev = cur
		i++

		for i < t.numCodes && prev == int(t.lengths[i]) {
			i++
			count++
			if count >= maxRun {
				break
			}
		}

		switch {
		case count < minRun:
			if count > 0 {
				emit(prev, count)
			}
		case prev != 0:
			emit(RepeatPrevious, count)
		case count <= 10:
			emit(RepeatZero, count)
		default:
			emit(RepeatZeroLong, count)
		}
	}
}

// CountLengthCodes adds the code length symbols needed to transmit this
// tree's lengths to the frequencies of bl.
func (t *Tree) CountLengthCodes(bl *Tree) {
	t.lengthRuns(func(sym, count int) {
		if sym < RepeatPrevious {
			bl.AddN(sym, count)
		} else {
			bl.Add(sym)
		}
	})
}

// WriteLengths transmits this tree's lengths coded with bl.
func (t *Tree) WriteLengths(w *bitstream.Writer, bl *Tree) {
	t.lengthRuns(func(sym, count int) {
		switch sym {
		case RepeatPrevious:
			bl.Encode(w, sym)
			w.WriteBits(uint32(count-3), 2)
		case RepeatZero:
			bl.Encode(w, sym)
			w.WriteBits(uint32(count-3), 3)
		case RepeatZeroLong:
			bl.Encode(w, sym)
			w.WriteBits(uint32(count-11), 7)
		default:
			for range count {
				bl.Encode(w, sym)
			}
		}
	})
}
