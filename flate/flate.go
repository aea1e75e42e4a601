// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package flate implements the DEFLATE compressed data format (RFC 1951)
// and its zlib wrapper (RFC 1950).
//
// The compressor follows the classic hash-chain design: levels 1-4 commit
// matches greedily, levels 5-9 defer each match by one byte in case a longer
// one follows, and level 0 emits stored blocks only. Every block is sent in
// whichever of the stored, fixed or dynamic encodings is smallest.
//
// Streams are zlib wrapped unless WithRaw is given:
//
//	var buf bytes.Buffer
//	w, _ := flate.NewWriter(&buf, flate.WithLevel(9))
//	w.Write(data)
//	w.Close()
//
//	out, err := flate.Decompress(buf.Bytes())
package flate

import (
	"bytes"
	"io"
)

// Compress returns data compressed as a single stream.
func Compress(data []byte, opts ...Option) ([]byte, error) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress returns the decompressed contents of data.
// On ErrChecksum the decoded bytes are returned along with the error; the
// caller must treat them as corrupt.
func Decompress(data []byte, opts ...Option) ([]byte, error) {
	r, err := NewReader(bytes.NewReader(data), opts...)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
