// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flate

import "errors"

var (
	// ErrFormat is returned for malformed or truncated streams.
	ErrFormat = errors.New("flate: invalid compressed data")

	// ErrChecksum is returned when the Adler-32 trailer does not match the
	// decompressed data. The data is still delivered to the caller.
	ErrChecksum = errors.New("flate: checksum mismatch")

	// ErrUnsupported is returned for valid but unsupported stream features
	// such as preset dictionaries.
	ErrUnsupported = errors.New("flate: unsupported feature")

	// ErrLevel is returned for a compression level outside 0..9.
	ErrLevel = errors.New("flate: invalid compression level")

	// ErrClosed is returned when writing to a closed Writer.
	ErrClosed = errors.New("flate: writer is closed")
)
