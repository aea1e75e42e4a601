// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logzip

import (
	"errors"

	"github.com/lemon4ksan/logzip/flate"
)

var (
	// ErrLevel is returned for compression levels outside [0, 9].
	ErrLevel = flate.ErrLevel

	// ErrFormat is returned when the input is not a valid ZIP archive or an
	// entry's compressed data is malformed.
	ErrFormat = errors.New("zip: not a valid zip file")

	// ErrAlgorithm is returned when a compression method is not supported.
	ErrAlgorithm = errors.New("zip: unsupported compression algorithm")

	// ErrChecksum is returned when an entry's CRC-32 does not match its data.
	ErrChecksum = errors.New("zip: checksum error")

	// ErrSizeMismatch is returned when the uncompressed size does not match the header.
	ErrSizeMismatch = errors.New("zip: uncompressed size mismatch")

	// ErrFileNotFound is returned when the requested entry is not in the archive.
	ErrFileNotFound = errors.New("zip: file not found")

	// ErrDuplicateEntry is returned when adding an entry whose name already exists.
	ErrDuplicateEntry = errors.New("zip: duplicate file name")

	// ErrInvalidName is returned for empty names, names with a drive colon and
	// names escaping the archive root.
	ErrInvalidName = errors.New("zip: invalid file name")

	// ErrFilenameTooLong is returned when a filename exceeds 65535 bytes.
	ErrFilenameTooLong = errors.New("zip: filename too long")

	// ErrTooLarge is returned when an entry or the archive outgrows the 32-bit
	// size and offset fields.
	ErrTooLarge = errors.New("zip: archive too large")

	// ErrClosed is returned by operations on a closed archive.
	ErrClosed = errors.New("zip: archive is closed")
)
