// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logzip

import (
	"fmt"
	"io"
	"sync"

	"github.com/lemon4ksan/logzip/flate"
)

// CompressionMethod represents the compression algorithm used for an entry.
type CompressionMethod uint16

// Built-in compression methods.
const (
	Stored   CompressionMethod = 0 // No compression - data stored as-is
	Deflated CompressionMethod = 8 // DEFLATE compression
)

func (m CompressionMethod) String() string {
	switch m {
	case Stored:
		return "Stored"
	case Deflated:
		return "Deflated"
	}
	return fmt.Sprintf("Method(%d)", uint16(m))
}

// Compression levels for the DEFLATE algorithm.
const (
	NoCompression    = flate.NoCompression
	DeflateSuperFast = flate.BestSpeed
	DeflateFast      = 3
	DeflateNormal    = flate.DefaultCompression
	DeflateMaximum   = flate.BestCompression
)

// Compressor writes the compressed form of src to dest and returns the
// number of uncompressed bytes consumed.
type Compressor interface {
	Compress(src io.Reader, dest io.Writer) (int64, error)
}

// Decompressor returns a reader of the decompressed form of src.
type Decompressor interface {
	Decompress(src io.Reader) (io.ReadCloser, error)
}

// StoredCompressor implements no compression (STORE method)
type StoredCompressor struct{}

func (sc *StoredCompressor) Compress(src io.Reader, dest io.Writer) (int64, error) {
	return io.Copy(dest, src)
}

// DeflateCompressor produces raw DEFLATE data, reusing writers across calls.
type DeflateCompressor struct {
	level int
	pool  sync.Pool
}

// NewDeflateCompressor creates a reusable compressor for a specific level.
// Levels outside [NoCompression, DeflateMaximum] select DeflateNormal.
func NewDeflateCompressor(level int) *DeflateCompressor {
	if level < NoCompression || level > DeflateMaximum {
		level = DeflateNormal
	}
	d := &DeflateCompressor{level: level}
	d.pool.New = func() any {
		w, _ := flate.NewWriter(io.Discard, flate.WithLevel(level), flate.WithRaw())
		return w
	}
	return d
}

// Level returns the compression level of the writers.
func (d *DeflateCompressor) Level() int { return d.level }

func (d *DeflateCompressor) Compress(src io.Reader, dest io.Writer) (int64, error) {
	w := d.pool.Get().(*flate.Writer)
	defer d.pool.Put(w)

	w.Reset(dest)

	n, err := io.Copy(w, src)
	if err != nil {
		return n, err
	}
	return n, w.Close()
}

// StoredDecompressor implements the "Store" method (no compression)
type StoredDecompressor struct{}

func (sd *StoredDecompressor) Decompress(src io.Reader) (io.ReadCloser, error) {
	if rc, ok := src.(io.ReadCloser); ok {
		return rc, nil
	}
	return io.NopCloser(src), nil
}

// DeflateDecompressor implements the "Deflate" method
type DeflateDecompressor struct{}

func (dd *DeflateDecompressor) Decompress(src io.Reader) (io.ReadCloser, error) {
	r, err := flate.NewReader(src, flate.WithRaw())
	if err != nil {
		return nil, err
	}
	return r, nil
}

type compressorKey struct {
	method CompressionMethod
	level  int
}

// codecs is the registry shared by an archive and its entries.
type codecs struct {
	mu            sync.RWMutex
	compressors   map[compressorKey]Compressor
	decompressors map[CompressionMethod]Decompressor
}

func newCodecs() *codecs {
	return &codecs{
		compressors: make(map[compressorKey]Compressor),
		decompressors: map[CompressionMethod]Decompressor{
			Stored:   new(StoredDecompressor),
			Deflated: new(DeflateDecompressor),
		},
	}
}

// compressor looks up custom compressors first and falls back to the
// built-in Deflate/Store methods.
func (c *codecs) compressor(method CompressionMethod, level int) (Compressor, error) {
	key := compressorKey{method: method, level: level}

	c.mu.RLock()
	val, ok := c.compressors[key]
	c.mu.RUnlock()
	if ok {
		return val, nil
	}

	switch method {
	case Stored:
		return new(StoredCompressor), nil
	case Deflated:
		c.mu.Lock()
		defer c.mu.Unlock()

		// Double check if the key was just inserted
		if val, ok := c.compressors[key]; ok {
			return val, nil
		}
		c.compressors[key] = NewDeflateCompressor(level)
		return c.compressors[key], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAlgorithm, method)
	}
}

func (c *codecs) decompressor(method CompressionMethod) (Decompressor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.decompressors[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAlgorithm, method)
	}
	return d, nil
}
