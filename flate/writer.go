// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flate

import (
	"io"

	"github.com/lemon4ksan/logzip/internal/bitstream"
	"github.com/lemon4ksan/logzip/internal/checksum"
)

// Writer compresses data written to it into a zlib or raw DEFLATE stream.
// A Writer is not safe for concurrent use.
type Writer struct {
	cfg    config
	bw     *bitstream.Writer
	blocks *blockWriter
	lz     *compressor
	sum    uint32
	closed bool
}

// NewWriter returns a Writer compressing to w. Without WithRaw the zlib
// header is emitted before any data.
func NewWriter(w io.Writer, opts ...Option) (*Writer, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	bw := bitstream.NewWriter(w)
	blocks := newBlockWriter(bw)
	zw := &Writer{
		cfg:    cfg,
		bw:     bw,
		blocks: blocks,
		lz:     newCompressor(cfg.level, blocks),
	}
	zw.start()
	return zw, nil
}

func (zw *Writer) start() {
	zw.sum = checksum.Init
	zw.closed = false
	if !zw.cfg.raw {
		zw.bw.WriteUint16BE(zlibHeader(zw.cfg.level))
	}
}

// Level returns the compression level the Writer was created with.
func (zw *Writer) Level() int { return zw.cfg.level }

// Write compresses p. Compressed bytes reach the underlying writer as whole
// blocks complete; the tail is emitted by Close.
func (zw *Writer) Write(p []byte) (int, error) {
	if zw.closed {
		return 0, ErrClosed
	}
	if err := zw.bw.Err(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	zw.sum = checksum.Update(zw.sum, p)
	zw.lz.write(p)
	if err := zw.bw.Flush(); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close writes the final block and, for zlib streams, the Adler-32 trailer.
// It does not close the underlying writer.
func (zw *Writer) Close() error {
	if zw.closed {
		return nil
	}
	zw.closed = true
	zw.lz.finish()
	zw.bw.AlignToByte()
	if !zw.cfg.raw {
		zw.bw.WriteUint32BE(zw.sum)
	}
	return zw.bw.Flush()
}

// Reset discards the Writer's state and makes it equivalent to a new Writer
// with the same options writing to w.
func (zw *Writer) Reset(w io.Writer) {
	zw.bw.Reset(w)
	zw.blocks.reset()
	zw.lz.reset()
	zw.start()
}
