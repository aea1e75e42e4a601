// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logzip

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"
	"math"
	"strings"

	"github.com/lemon4ksan/logzip/internal"
	"github.com/lemon4ksan/logzip/internal/sys"
)

// eocdSearchLen is the window scanned for the end of central directory
// record: the fixed record plus the longest possible comment. A signature
// may begin up to three bytes before the window.
const eocdSearchLen = internal.EndOfCentralDirLen + math.MaxUint16

const (
	flagEncrypted      = 0x1
	flagDataDescriptor = 0x8
	flagUTF8           = 0x800
)

// zipReader handles low-level reading of ZIP archive structure.
type zipReader struct {
	src      io.ReaderAt // Source of archive data
	fileSize int64       // Total size of the archive
}

func newZipReader(src io.ReaderAt, size int64) *zipReader {
	return &zipReader{src: src, fileSize: size}
}

// findEndOfCentralDir scans backwards from the end of the source for the
// end of central directory signature and decodes the record.
func (zr *zipReader) findEndOfCentralDir() (int64, internal.EndOfCentralDirectory, error) {
	var end internal.EndOfCentralDirectory

	if zr.fileSize < internal.EndOfCentralDirLen {
		return 0, end, fmt.Errorf("%w: file too small", ErrFormat)
	}

	searchLen := min(zr.fileSize, eocdSearchLen+3)
	start := zr.fileSize - searchLen
	buf := make([]byte, searchLen)
	if _, err := zr.src.ReadAt(buf, start); err != nil && err != io.EOF {
		return 0, end, fmt.Errorf("read at %d: %w", start, err)
	}

	for p := len(buf) - internal.EndOfCentralDirLen; p >= 0; p-- {
		if binary.LittleEndian.Uint32(buf[p:]) != internal.EndOfCentralDirSignature {
			continue
		}
		sr := io.NewSectionReader(zr.src, start+int64(p)+4, zr.fileSize-start-int64(p)-4)
		end, err := internal.ReadEndOfCentralDir(sr)
		if err != nil {
			return 0, end, fmt.Errorf("%w: end of central directory: %w", ErrFormat, err)
		}
		return start + int64(p), end, nil
	}

	return 0, end, fmt.Errorf("%w: no end of central directory signature found", ErrFormat)
}

// readCentralDir decodes the central directory preceding the end record at
// endOffset. It also returns the number of bytes found in front of the
// archive, which every local header offset is relative to.
func (zr *zipReader) readCentralDir(endOffset int64, end internal.EndOfCentralDirectory) ([]internal.CentralDirectory, int64, error) {
	dirStart := endOffset - int64(end.CentralDirSize)
	if dirStart < 0 {
		return nil, 0, fmt.Errorf("%w: central directory size %d exceeds its position", ErrFormat, end.CentralDirSize)
	}
	base := dirStart - int64(end.CentralDirOffset)
	if base < 0 {
		return nil, 0, fmt.Errorf("%w: central directory offset %d beyond its position", ErrFormat, end.CentralDirOffset)
	}

	entries := make([]internal.CentralDirectory, 0, end.TotalNumberOfEntries)
	cdReader := io.NewSectionReader(zr.src, dirStart, int64(end.CentralDirSize))

	for i := range int(end.TotalNumberOfEntries) {
		if !zr.verifySignature(cdReader, internal.CentralDirectorySignature) {
			return nil, 0, fmt.Errorf("%w: expected central directory signature at entry %d", ErrFormat, i)
		}
		entry, err := internal.ReadCentralDirEntry(cdReader)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: central directory entry %d: %w", ErrFormat, i, err)
		}
		entries = append(entries, entry)
	}

	return entries, base, nil
}

// readPayload checks the entry's local header and loads its still
// compressed data into memory.
func (zr *zipReader) readPayload(base int64, entry internal.CentralDirectory) ([]byte, error) {
	if entry.GeneralPurposeBitFlag&flagEncrypted != 0 {
		return nil, fmt.Errorf("%w: %s is encrypted", ErrAlgorithm, entry.Filename)
	}

	offset := base + int64(entry.LocalHeaderOffset)
	if offset >= zr.fileSize {
		return nil, fmt.Errorf("%w: local header of %s beyond end of file", ErrFormat, entry.Filename)
	}
	header, err := internal.ReadLocalFileHeader(io.NewSectionReader(zr.src, offset, zr.fileSize-offset))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFormat, entry.Filename, err)
	}

	dataOffset := offset + header.DataOffset()
	size := int64(entry.CompressedSize)
	if dataOffset+size > zr.fileSize {
		return nil, fmt.Errorf("%w: data of %s truncated", ErrFormat, entry.Filename)
	}

	payload := make([]byte, size)
	if n, err := zr.src.ReadAt(payload, dataOffset); n < len(payload) {
		return nil, fmt.Errorf("%w: read %s: %w", ErrFormat, entry.Filename, err)
	}
	return payload, nil
}

// verifySignature checks whether the next 4 bytes match the given signature.
func (zr *zipReader) verifySignature(r io.Reader, s uint32) bool {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return false
	}
	return binary.LittleEndian.Uint32(buf[:]) == s
}

// newItemFromCentralDir creates an Item holding payload as read from an
// archive.
func newItemFromCentralDir(entry internal.CentralDirectory, payload []byte) *Item {
	name, isDir := strings.CutSuffix(entry.Filename, "/")
	host := sys.HostSystem(entry.VersionMadeBy >> 8)

	return &Item{
		name:              name,
		isDir:             isDir,
		mode:              sys.FileMode(host, entry.ExternalFileAttributes, isDir),
		modTime:           msDosToTime(entry.LastModFileDate, entry.LastModFileTime),
		method:            CompressionMethod(entry.CompressionMethod),
		data:              payload,
		compressed:        true,
		storedFlags:       entry.GeneralPurposeBitFlag &^ flagDataDescriptor,
		uncompressedSize:  int64(entry.UncompressedSize),
		compressedSize:    int64(entry.CompressedSize),
		crc32:             entry.CRC32,
		localHeaderOffset: int64(entry.LocalHeaderOffset),
		hostSystem:        host,
	}
}

// checksumReader verifies the size and CRC-32 of decompressed data as it is
// read. Mismatches are reported in place of io.EOF.
type checksumReader struct {
	rc     io.ReadCloser
	hash   hash.Hash32
	verify bool
	want   uint32
	read   int64
	size   int64
}

func (cr *checksumReader) Read(p []byte) (int, error) {
	n, err := cr.rc.Read(p)
	if n > 0 {
		cr.read += int64(n)
		if cr.read > cr.size {
			return n, fmt.Errorf("%w: more than %d bytes", ErrSizeMismatch, cr.size)
		}
		cr.hash.Write(p[:n])
	}

	switch {
	case err == io.EOF:
		if cr.read != cr.size {
			return n, fmt.Errorf("%w: read %d, want %d", ErrSizeMismatch, cr.read, cr.size)
		}
		if got := cr.hash.Sum32(); cr.verify && got != cr.want {
			return n, fmt.Errorf("%w: got %08x, want %08x", ErrChecksum, got, cr.want)
		}
	case err != nil && !errors.Is(err, ErrFormat):
		err = fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return n, err
}

func (cr *checksumReader) Close() error {
	return cr.rc.Close()
}
