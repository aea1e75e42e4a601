// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logzip

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"

	"github.com/lemon4ksan/logzip/internal"
	"github.com/lemon4ksan/logzip/internal/sys"
)

const (
	versionMadeBy = 45
	versionNeeded = 20
)

// zipWriter handles the low-level writing of ZIP archive structure.
type zipWriter struct {
	dest       io.WriteSeeker // Target stream for writing archive data
	base       int64          // Position of the archive start within dest
	offset     int64          // Current write position relative to base
	codecs     *codecs        // Registry of available compressors
	centralDir bytes.Buffer   // Central directory accumulated until Finish
	entries    int
}

// newZipWriter creates a writer that appends the archive at the current
// position of dest.
func newZipWriter(dest io.WriteSeeker, codecs *codecs) (*zipWriter, error) {
	base, err := dest.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("seek destination: %w", err)
	}
	return &zipWriter{dest: dest, base: base, codecs: codecs}, nil
}

// WriteItem writes the local header and payload of an item, then records
// its central directory entry. The header is written with a zeroed CRC and
// sizes which are patched in once the payload is known.
func (zw *zipWriter) WriteItem(ctx context.Context, it *Item) error {
	if zw.offset > math.MaxUint32 {
		return fmt.Errorf("%w: local header offset %d", ErrTooLarge, zw.offset)
	}

	raw := it.compressed
	if !raw {
		size, err := it.size()
		if err != nil {
			return err
		}
		if it.isDir || size == 0 {
			it.method = Stored
			it.level = NoCompression
		}
		it.crc32, it.compressedSize, it.uncompressedSize = 0, 0, 0
	}

	it.localHeaderOffset = zw.offset
	if err := zw.writeLocalHeader(it); err != nil {
		return err
	}

	if raw {
		n, err := zw.dest.Write(it.data)
		zw.offset += int64(n)
		if err != nil {
			return fmt.Errorf("copy raw: %w", err)
		}
	} else if !it.isDir {
		if err := zw.encodeItem(ctx, it); err != nil {
			return err
		}
		if err := zw.updateLocalHeader(it); err != nil {
			return err
		}
	}

	it.hostSystem = sys.DefaultHostSystem
	zw.addCentralDirEntry(it)
	return nil
}

// Finish writes the central directory and the end record and returns the
// size of the archive.
func (zw *zipWriter) Finish() (int64, error) {
	if zw.entries > math.MaxUint16 {
		return zw.offset, fmt.Errorf("%w: %d entries", ErrTooLarge, zw.entries)
	}

	dirOffset, dirSize := zw.offset, int64(zw.centralDir.Len())
	if dirOffset > math.MaxUint32 || dirSize > math.MaxUint32 {
		return zw.offset, fmt.Errorf("%w: central directory at %d", ErrTooLarge, dirOffset)
	}

	n, err := zw.dest.Write(zw.centralDir.Bytes())
	zw.offset += int64(n)
	if err != nil {
		return zw.offset, fmt.Errorf("write central directory: %w", err)
	}

	end := internal.EncodeEndOfCentralDirRecord(zw.entries, uint32(dirSize), uint32(dirOffset), "")
	n, err = zw.dest.Write(end)
	zw.offset += int64(n)
	if err != nil {
		return zw.offset, fmt.Errorf("write end of central directory: %w", err)
	}
	return zw.offset, nil
}

func (zw *zipWriter) writeLocalHeader(it *Item) error {
	name := it.headerName()
	dosDate, dosTime := timeToMsDos(it.modTime)

	header := internal.LocalFileHeader{
		VersionNeededToExtract: versionNeeded,
		GeneralPurposeBitFlag:  it.flags(),
		CompressionMethod:      uint16(it.method),
		LastModFileTime:        dosTime,
		LastModFileDate:        dosDate,
		CRC32:                  it.crc32,
		CompressedSize:         uint32(it.compressedSize),
		UncompressedSize:       uint32(it.uncompressedSize),
		FilenameLength:         uint16(len(name)),
		Filename:               name,
	}

	n, err := zw.dest.Write(header.Encode())
	zw.offset += int64(n)
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// encodeItem compresses the item's content into dest while collecting its
// CRC-32 and sizes.
func (zw *zipWriter) encodeItem(ctx context.Context, it *Item) error {
	comp, err := zw.codecs.compressor(it.method, it.level)
	if err != nil {
		return err
	}
	src, err := it.reader()
	if err != nil {
		return err
	}
	defer src.Close()

	sizeCounter := &byteCountWriter{dest: zw.dest}
	hasher := crc32.NewIEEE()

	uncompressed, err := comp.Compress(io.TeeReader(&contextReader{ctx: ctx, r: src}, hasher), sizeCounter)
	zw.offset += sizeCounter.bytesWritten
	if err != nil {
		return fmt.Errorf("compress: %w", err)
	}

	if uncompressed > math.MaxUint32 || sizeCounter.bytesWritten > math.MaxUint32 {
		return fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, it.name, uncompressed)
	}

	it.crc32 = hasher.Sum32()
	it.uncompressedSize = uncompressed
	it.compressedSize = sizeCounter.bytesWritten
	return nil
}

// updateLocalHeader seeks back to the CRC field of the item's local header,
// writes the CRC and sizes, and returns to the end of the payload.
func (zw *zipWriter) updateLocalHeader(it *Item) error {
	if _, err := zw.dest.Seek(zw.base+it.localHeaderOffset+internal.LocalCRCOffset, io.SeekStart); err != nil {
		return fmt.Errorf("seek to CRC position: %w", err)
	}

	var buf [12]byte
	binary.LittleEndian.PutUint32(buf[0:4], it.crc32)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(it.compressedSize))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(it.uncompressedSize))

	if _, err := zw.dest.Write(buf[:]); err != nil {
		return fmt.Errorf("write CRC and sizes: %w", err)
	}

	if _, err := zw.dest.Seek(zw.base+zw.offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek to end of the entry: %w", err)
	}
	return nil
}

func (zw *zipWriter) addCentralDirEntry(it *Item) {
	name := it.headerName()
	dosDate, dosTime := timeToMsDos(it.modTime)

	entry := internal.CentralDirectory{
		VersionMadeBy:          uint16(sys.DefaultHostSystem)<<8 | versionMadeBy,
		VersionNeededToExtract: versionNeeded,
		GeneralPurposeBitFlag:  it.flags(),
		CompressionMethod:      uint16(it.method),
		LastModFileTime:        dosTime,
		LastModFileDate:        dosDate,
		CRC32:                  it.crc32,
		CompressedSize:         uint32(it.compressedSize),
		UncompressedSize:       uint32(it.uncompressedSize),
		FilenameLength:         uint16(len(name)),
		ExternalFileAttributes: sys.ExternalAttributes(it.mode),
		LocalHeaderOffset:      uint32(it.localHeaderOffset),
		Filename:               name,
	}

	zw.centralDir.Write(entry.Encode())
	zw.entries++
}

// flags returns the general purpose bit flag. A payload copied from another
// archive keeps the flags it was stored with, since its name encoding and
// speed class are unchanged. Otherwise names are always UTF-8 and bits 1
// and 2 carry the DEFLATE speed class.
func (it *Item) flags() uint16 {
	if it.compressed {
		return it.storedFlags
	}
	flags := uint16(flagUTF8)
	if it.method != Deflated {
		return flags
	}
	switch it.level {
	case DeflateSuperFast:
		flags |= 0x6
	case 2, DeflateFast:
		flags |= 0x4
	case 8, DeflateMaximum:
		flags |= 0x2
	}
	return flags
}
