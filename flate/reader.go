// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flate

import (
	"errors"
	"fmt"
	"io"

	"github.com/lemon4ksan/logzip/internal/bitstream"
	"github.com/lemon4ksan/logzip/internal/bitutil"
	"github.com/lemon4ksan/logzip/internal/checksum"
	"github.com/lemon4ksan/logzip/internal/huffman"
)

type phase int

const (
	phaseBlockHeader phase = iota
	phaseStored
	phaseHuffman
	phaseTrailer
	phaseDone
)

var errTruncated = fmt.Errorf("%w: unexpected end of data", ErrFormat)

// Reader decompresses a zlib or raw DEFLATE stream.
//
// Decoded bytes are kept in a 64 KiB ring until read; decoding pauses while
// fewer than maxMatch bytes of the ring are free. A Reader is not safe for
// concurrent use.
type Reader struct {
	br  *bitstream.Reader
	raw bool

	phase phase
	final bool

	ring    []byte
	written int64 // total bytes decoded
	unread  int

	storedLeft int
	lit, dist  *huffman.Decoder

	sum uint32
	err error
}

// NewReader returns a Reader decompressing r. Without WithRaw the zlib
// header is read and validated immediately.
func NewReader(r io.Reader, opts ...Option) (*Reader, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	zr := &Reader{raw: cfg.raw, ring: make([]byte, ringSize)}
	if err := zr.Reset(r); err != nil {
		return nil, err
	}
	return zr, nil
}

// Reset discards the Reader's state and decompresses from r.
func (zr *Reader) Reset(r io.Reader) error {
	if zr.br == nil {
		zr.br = bitstream.NewReader(r)
	} else {
		zr.br.Reset(r)
	}
	zr.phase = phaseBlockHeader
	zr.final = false
	zr.written, zr.unread = 0, 0
	zr.storedLeft = 0
	zr.lit, zr.dist = nil, nil
	zr.sum = checksum.Init
	zr.err = nil

	if !zr.raw {
		v, ok := zr.br.ReadBits(16)
		if !ok {
			zr.err = zr.inputError()
			return zr.err
		}
		// The header is stored most significant byte first.
		h := uint16(v&0xff)<<8 | uint16(v>>8)
		if err := checkZlibHeader(h); err != nil {
			zr.err = err
			return err
		}
	}
	return nil
}

// Read reads decompressed data into p. A checksum mismatch is reported after
// all decoded data has been delivered.
func (zr *Reader) Read(p []byte) (int, error) {
	n := 0
	for {
		if zr.unread > 0 {
			m := zr.copyOut(p[n:])
			n += m
			if n == len(p) {
				return n, nil
			}
		}
		if zr.err != nil {
			return n, zr.err
		}
		if n > 0 {
			return n, nil
		}
		zr.err = zr.decode()
	}
}

// Close releases nothing and exists so that Reader satisfies io.ReadCloser.
func (zr *Reader) Close() error { return nil }

func (zr *Reader) copyOut(p []byte) int {
	n := 0
	for n < len(p) && zr.unread > 0 {
		start := int((zr.written - int64(zr.unread)) & ringMask)
		chunk := min(zr.unread, ringSize-start, len(p)-n)
		copy(p[n:], zr.ring[start:start+chunk])
		n += chunk
		zr.unread -= chunk
	}
	return n
}

func (zr *Reader) free() int { return ringSize - zr.unread }

func (zr *Reader) emit(b byte) {
	zr.ring[zr.written&ringMask] = b
	zr.written++
	zr.unread++
}

func (zr *Reader) inputError() error {
	if err := zr.br.Err(); err != nil {
		return err
	}
	return errTruncated
}

// decode advances the state machine until output is produced, the stream
// ends or an error occurs.
func (zr *Reader) decode() error {
	for zr.unread == 0 {
		var err error
		switch zr.phase {
		case phaseBlockHeader:
			err = zr.readBlockHeader()
		case phaseStored:
			err = zr.readStored()
		case phaseHuffman:
			err = zr.readHuffman()
		case phaseTrailer:
			err = zr.readTrailer()
		case phaseDone:
			return io.EOF
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (zr *Reader) endBlock() {
	if zr.final {
		zr.phase = phaseTrailer
	} else {
		zr.phase = phaseBlockHeader
	}
}

func (zr *Reader) readBlockHeader() error {
	v, ok := zr.br.ReadBits(3)
	if !ok {
		return zr.inputError()
	}
	zr.final = v&1 == 1

	switch v >> 1 {
	case blockStored:
		zr.br.AlignToByte()
		n, ok1 := zr.br.ReadUint16LE()
		nn, ok2 := zr.br.ReadUint16LE()
		if !ok1 || !ok2 {
			return zr.inputError()
		}
		if n != ^nn {
			return fmt.Errorf("%w: stored block length check failed", ErrFormat)
		}
		zr.storedLeft = int(n)
		zr.phase = phaseStored
		if n == 0 {
			zr.endBlock()
		}
	case blockFixed:
		zr.lit, zr.dist = fixedLiteralDecoder(), fixedDistanceDecoder()
		zr.phase = phaseHuffman
	case blockDynamic:
		if err := zr.readDynamicHeader(); err != nil {
			return err
		}
		zr.phase = phaseHuffman
	default:
		return fmt.Errorf("%w: %w: reserved block type", ErrFormat, ErrUnsupported)
	}
	return nil
}

func (zr *Reader) readDynamicHeader() error {
	v, ok := zr.br.ReadBits(14)
	if !ok {
		return zr.inputError()
	}
	nlit := int(v&0x1f) + 257
	ndist := int(v>>5&0x1f) + 1
	nclen := int(v>>10) + 4
	if nlit > literalCount {
		return fmt.Errorf("%w: %d literal/length codes", ErrFormat, nlit)
	}

	var clens [codeLengthCount]uint8
	for i := range nclen {
		l, ok := zr.br.ReadBits(3)
		if !ok {
			return zr.inputError()
		}
		clens[bitutil.CodeLengthOrder[i]] = uint8(l)
	}
	cl, err := huffman.NewDecoder(clens[:])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFormat, err)
	}

	lengths := make([]uint8, nlit+ndist)
	for i := 0; i < len(lengths); {
		sym, err := cl.Decode(zr.br)
		if err != nil {
			return zr.symbolError(err)
		}
		if sym < huffman.RepeatPrevious {
			lengths[i] = uint8(sym)
			i++
			continue
		}

		var rep uint8
		var bits uint
		var count int
		switch sym {
		case huffman.RepeatPrevious:
			if i == 0 {
				return fmt.Errorf("%w: repeat with no previous length", ErrFormat)
			}
			rep, bits, count = lengths[i-1], 2, 3
		case huffman.RepeatZero:
			bits, count = 3, 3
		default:
			bits, count = 7, 11
		}
		x, ok := zr.br.ReadBits(bits)
		if !ok {
			return zr.inputError()
		}
		count += int(x)
		if i+count > len(lengths) {
			return fmt.Errorf("%w: code lengths overflow", ErrFormat)
		}
		for range count {
			lengths[i] = rep
			i++
		}
	}

	if lengths[endBlock] == 0 {
		return fmt.Errorf("%w: missing end-of-block code", ErrFormat)
	}
	if zr.lit, err = huffman.NewDecoder(lengths[:nlit]); err != nil {
		return fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if zr.dist, err = huffman.NewDecoder(lengths[nlit:]); err != nil {
		return fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return nil
}

func (zr *Reader) symbolError(err error) error {
	if errors.Is(err, huffman.ErrNeedBits) {
		return zr.inputError()
	}
	return fmt.Errorf("%w: %w", ErrFormat, err)
}

func (zr *Reader) readStored() error {
	for zr.storedLeft > 0 && zr.free() > 0 {
		pos := int(zr.written & ringMask)
		n := min(zr.storedLeft, zr.free(), ringSize-pos)
		m, err := zr.br.ReadBytes(zr.ring[pos : pos+n])
		zr.sum = checksum.Update(zr.sum, zr.ring[pos:pos+m])
		zr.written += int64(m)
		zr.unread += m
		zr.storedLeft -= m
		if err != nil {
			return zr.inputError()
		}
	}
	if zr.storedLeft == 0 {
		zr.endBlock()
	}
	return nil
}

func (zr *Reader) readHuffman() error {
	start := zr.written
	defer func() {
		zr.updateSum(start)
	}()

	for zr.free() >= maxMatch {
		sym, err := zr.lit.Decode(zr.br)
		if err != nil {
			return zr.symbolError(err)
		}
		switch {
		case sym < endBlock:
			zr.emit(byte(sym))
			continue
		case sym == endBlock:
			zr.endBlock()
			return nil
		case sym-257 >= len(lengthBase):
			return fmt.Errorf("%w: invalid length symbol %d", ErrFormat, sym)
		}

		idx := sym - 257
		length := int(lengthBase[idx])
		if n := uint(lengthExtra[idx]); n > 0 {
			x, ok := zr.br.ReadBits(n)
			if !ok {
				return zr.inputError()
			}
			length += int(x)
		}

		dsym, err := zr.dist.Decode(zr.br)
		if err != nil {
			return zr.symbolError(err)
		}
		if dsym >= len(distBase) {
			return fmt.Errorf("%w: invalid distance symbol %d", ErrFormat, dsym)
		}
		dist := int(distBase[dsym])
		if n := uint(distExtra[dsym]); n > 0 {
			x, ok := zr.br.ReadBits(n)
			if !ok {
				return zr.inputError()
			}
			dist += int(x)
		}
		if int64(dist) > zr.written {
			return fmt.Errorf("%w: distance %d beyond start of output", ErrFormat, dist)
		}

		// Byte by byte so that overlapping copies repeat the pattern.
		for range length {
			zr.emit(zr.ring[(zr.written-int64(dist))&ringMask])
		}
	}
	return nil
}

// updateSum adds the bytes decoded since position start to the checksum.
func (zr *Reader) updateSum(start int64) {
	for start < zr.written {
		pos := int(start & ringMask)
		n := int(min(zr.written-start, int64(ringSize-pos)))
		zr.sum = checksum.Update(zr.sum, zr.ring[pos:pos+n])
		start += int64(n)
	}
}

func (zr *Reader) readTrailer() error {
	zr.phase = phaseDone
	if zr.raw {
		return io.EOF
	}
	zr.br.AlignToByte()
	want, ok := zr.br.ReadUint32BE()
	if !ok {
		return zr.inputError()
	}
	if want != zr.sum {
		return fmt.Errorf("%w: got %08x, want %08x", ErrChecksum, zr.sum, want)
	}
	return io.EOF
}
