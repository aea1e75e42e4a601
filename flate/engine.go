// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flate

// compressor is the LZ77 stage. It keeps the last 2*windowSize input bytes
// and finds matches through hash chains over 3-byte prefixes.
type compressor struct {
	levelConfig
	blocks *blockWriter

	window []byte
	head   []uint16
	prev   []uint16
	insH   int

	blockStart int
	strStart   int
	lookahead  int
	matchStart int
	matchLen   int
	prevAvail  bool

	input []byte
}

func newCompressor(level int, blocks *blockWriter) *compressor {
	d := &compressor{
		levelConfig: levels[level],
		blocks:      blocks,
		window:      make([]byte, 2*windowSize),
		head:        make([]uint16, hashSize),
		prev:        make([]uint16, windowSize),
	}
	d.reset()
	return d
}

func (d *compressor) reset() {
	clear(d.head)
	clear(d.prev)
	d.insH = 0
	d.blockStart, d.strStart = 1, 1
	d.lookahead = 0
	d.matchStart = 0
	d.matchLen = minMatch - 1
	d.prevAvail = false
	d.input = nil
}

// write compresses as much of p as possible. Bytes that do not yet form a
// full lookahead stay in the window until more input or finish arrives.
func (d *compressor) write(p []byte) {
	d.input = p
	for {
		d.fillWindow()
		if !d.step(false, false) && len(d.input) == 0 {
			return
		}
	}
}

// finish compresses everything still buffered and emits the final block.
func (d *compressor) finish() {
	for {
		d.fillWindow()
		if !d.step(true, true) {
			return
		}
	}
}

func (d *compressor) step(flush, finish bool) bool {
	switch d.strategy {
	case strategyStored:
		return d.saveStored(flush, finish)
	case strategyFast:
		return d.compressFast(flush, finish)
	default:
		return d.compressLazy(flush, finish)
	}
}

func (d *compressor) updateHash() {
	d.insH = int(d.window[d.strStart])<<hashShift ^ int(d.window[d.strStart+1])
}

// insertString adds the string at strStart to its hash chain and returns
// the previous head of the chain.
func (d *compressor) insertString() int {
	h := (d.insH<<hashShift ^ int(d.window[d.strStart+minMatch-1])) & hashMask
	match := d.head[h]
	d.prev[d.strStart&windowMask] = match
	d.head[h] = uint16(d.strStart)
	d.insH = h
	return int(match)
}

func (d *compressor) slideWindow() {
	copy(d.window, d.window[windowSize:])
	d.matchStart -= windowSize
	d.strStart -= windowSize
	d.blockStart -= windowSize

	rebase := func(s []uint16) {
		for i, m := range s {
			if m >= windowSize {
				s[i] = m - windowSize
			} else {
				s[i] = 0
			}
		}
	}
	rebase(d.head)
	rebase(d.prev)
}

func (d *compressor) fillWindow() {
	if d.strStart >= windowSize+maxDist {
		d.slideWindow()
	}
	for d.lookahead < minLookahead && len(d.input) > 0 {
		end := d.strStart + d.lookahead
		n := copy(d.window[end:], d.input)
		d.input = d.input[n:]
		d.lookahead += n
	}
	if d.lookahead >= minMatch {
		d.updateHash()
	}
}

// findLongestMatch walks the hash chain starting at cur for a match longer
// than the current one.
func (d *compressor) findLongestMatch(cur int) bool {
	chain := d.chain
	nice := min(d.nice, d.lookahead)
	scan := d.strStart
	bestLen := max(d.matchLen, minMatch-1)
	limit := max(scan-maxDist, 0)
	maxLen := min(maxMatch, d.lookahead)

	if bestLen >= d.good {
		chain >>= 2
	}

	win := d.window
	for bestLen < maxLen {
		if win[cur+bestLen] == win[scan+bestLen] && win[cur] == win[scan] && win[cur+1] == win[scan+1] {
			n := matchLength(win[cur:cur+maxLen], win[scan:scan+maxLen])
			if n > bestLen {
				d.matchStart = cur
				bestLen = n
				if n >= nice {
					break
				}
			}
		}
		cur = int(d.prev[cur&windowMask])
		if cur <= limit {
			break
		}
		chain--
		if chain == 0 {
			break
		}
	}

	d.matchLen = min(bestLen, d.lookahead)
	return d.matchLen >= minMatch
}

func matchLength(a, b []byte) int {
	for i := range a {
		if a[i] != b[i] {
			return i
		}
	}
	return len(a)
}

// blockBytes returns the raw bytes of the pending block if they are still
// in the window.
func (d *compressor) blockBytes(n int) []byte {
	if d.blockStart < 0 {
		return nil
	}
	return d.window[d.blockStart : d.blockStart+n]
}

func (d *compressor) flushBlock(n int, last bool) {
	d.blocks.flush(d.blockBytes(n), last)
	d.blockStart += n
}

func (d *compressor) saveStored(flush, finish bool) bool {
	if !flush && d.lookahead == 0 {
		return false
	}
	d.strStart += d.lookahead
	d.lookahead = 0

	n := d.strStart - d.blockStart
	if n >= maxStoredBlock || (d.blockStart < windowSize && n >= maxDist) || flush {
		last := finish
		if n > maxStoredBlock {
			n = maxStoredBlock
			last = false
		}
		d.blocks.flushStored(d.window[d.blockStart:d.blockStart+n], last)
		d.blockStart += n
		return !last
	}
	return true
}

func (d *compressor) compressFast(flush, finish bool) bool {
	if d.lookahead < minLookahead && !flush {
		return false
	}

	for d.lookahead >= minLookahead || flush {
		if d.lookahead == 0 {
			d.flushBlock(d.strStart-d.blockStart, finish)
			return false
		}
		if d.strStart > 2*windowSize-minLookahead {
			d.slideWindow()
		}

		if d.lookahead >= minMatch {
			if head := d.insertString(); head != 0 && d.strStart-head <= maxDist && d.findLongestMatch(head) {
				full := d.blocks.tallyMatch(d.strStart-d.matchStart, d.matchLen)

				d.lookahead -= d.matchLen
				if d.matchLen <= d.lazy && d.lookahead >= minMatch {
					for d.matchLen--; d.matchLen > 0; d.matchLen-- {
						d.strStart++
						d.insertString()
					}
					d.strStart++
				} else {
					d.strStart += d.matchLen
					if d.lookahead >= minMatch-1 {
						d.updateHash()
					}
				}
				d.matchLen = minMatch - 1

				// The block ends after the match so that its raw bytes
				// cover everything tallied.
				if full {
					last := finish && d.lookahead == 0
					d.flushBlock(d.strStart-d.blockStart, last)
					if last {
						return false
					}
				}
				continue
			}
		}

		d.blocks.tallyLiteral(d.window[d.strStart])
		d.strStart++
		d.lookahead--

		if d.blocks.full() {
			last := finish && d.lookahead == 0
			d.flushBlock(d.strStart-d.blockStart, last)
			return !last
		}
	}
	return true
}

func (d *compressor) compressLazy(flush, finish bool) bool {
	if d.lookahead < minLookahead && !flush {
		return false
	}

	for d.lookahead >= minLookahead || flush {
		if d.lookahead == 0 {
			if d.prevAvail {
				d.blocks.tallyLiteral(d.window[d.strStart-1])
			}
			d.prevAvail = false
			d.flushBlock(d.strStart-d.blockStart, finish)
			return false
		}
		if d.strStart >= 2*windowSize-minLookahead {
			d.slideWindow()
		}

		prevMatch, prevLen := d.matchStart, d.matchLen

		if d.lookahead >= minMatch {
			head := d.insertString()
			if head != 0 && d.strStart-head <= maxDist && d.findLongestMatch(head) {
				// A short match far away costs more than the literals.
				if d.matchLen == minMatch && d.strStart-d.matchStart > tooFar {
					d.matchLen = minMatch - 1
				}
			}
		}

		if prevLen >= minMatch && d.matchLen <= prevLen {
			d.blocks.tallyMatch(d.strStart-1-prevMatch, prevLen)
			for prevLen -= 2; ; {
				d.strStart++
				d.lookahead--
				if d.lookahead >= minMatch {
					d.insertString()
				}
				prevLen--
				if prevLen <= 0 {
					break
				}
			}
			d.strStart++
			d.lookahead--
			d.prevAvail = false
			d.matchLen = minMatch - 1
		} else {
			if d.prevAvail {
				d.blocks.tallyLiteral(d.window[d.strStart-1])
			}
			d.prevAvail = true
			d.strStart++
			d.lookahead--
		}

		if d.blocks.full() {
			n := d.strStart - d.blockStart
			if d.prevAvail {
				n--
			}
			last := finish && d.lookahead == 0 && !d.prevAvail
			d.flushBlock(n, last)
			return !last
		}
	}
	return true
}
