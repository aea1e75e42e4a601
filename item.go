// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logzip

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"time"

	"github.com/lemon4ksan/logzip/internal/sys"
)

// maxPrealloc caps the buffer reserved up front from an untrusted size field.
const maxPrealloc = 16 << 20

// Item is a single entry of an Archive. An Item either reads its content
// from a source supplied by the caller, opens it on demand, holds it in
// memory, or holds the still-compressed payload read from an existing
// archive. Compressed payloads are inflated on first access.
//
// An Item is not safe for concurrent use.
type Item struct {
	name    string // Path within the archive, without a trailing slash
	isDir   bool
	mode    fs.FileMode
	modTime time.Time

	method CompressionMethod
	level  int

	src   io.Reader                     // Uncompressed source, nil once buffered into data
	owned bool                          // src is closed when the item releases it
	open  func() (io.ReadCloser, error) // Opens the content for each read, used instead of src
	data  []byte                        // Buffered content, or the raw payload when compressed

	compressed       bool   // data is the payload exactly as stored in an archive
	storedFlags      uint16 // General purpose flags of that payload, less the data descriptor bit
	checkCRC         bool
	uncompressedSize int64
	compressedSize   int64
	crc32            uint32

	localHeaderOffset int64
	hostSystem        sys.HostSystem
	codecs            *codecs
}

// ItemOption configures an entry as it is added.
type ItemOption func(*Item)

// WithItemLevel overrides the archive's default compression level.
func WithItemLevel(level int) ItemOption {
	return func(it *Item) { it.level = level }
}

// WithMode sets the permission bits recorded in the external attributes.
func WithMode(mode fs.FileMode) ItemOption {
	return func(it *Item) { it.mode = it.mode&^fs.ModePerm | mode.Perm() }
}

// WithModTime sets the modification time. The zero time is recorded as the
// earliest DOS date, 1980-01-01.
func WithModTime(t time.Time) ItemOption {
	return func(it *Item) { it.modTime = t }
}

// Name returns the entry's path within the archive.
func (it *Item) Name() string { return it.name }

// IsDir returns true if the entry represents a directory.
func (it *Item) IsDir() bool { return it.isDir }

// Mode returns the entry's file mode.
func (it *Item) Mode() fs.FileMode { return it.mode }

// ModTime returns the entry's modification time.
func (it *Item) ModTime() time.Time { return it.modTime }

// Method returns the method the entry is saved with.
func (it *Item) Method() CompressionMethod { return it.method }

// Level returns the DEFLATE level the entry is saved with.
func (it *Item) Level() int { return it.level }

// Compressed reports whether the entry still holds the payload read from an
// archive. It turns false once the content has been decompressed.
func (it *Item) Compressed() bool { return it.compressed }

// UncompressedSize returns the size of the content as of the last open,
// save or decompression.
func (it *Item) UncompressedSize() int64 { return it.uncompressedSize }

// CompressedSize returns the size of the payload as of the last open or save.
func (it *Item) CompressedSize() int64 { return it.compressedSize }

// CRC32 returns the CRC-32 of the content as of the last open or save.
func (it *Item) CRC32() uint32 { return it.crc32 }

// HostSystem returns the system recorded as the entry's creator.
func (it *Item) HostSystem() sys.HostSystem { return it.hostSystem }

// SetLevel changes the compression level. A payload read from an archive is
// decompressed first, since it can no longer be copied as is.
func (it *Item) SetLevel(level int) error {
	if err := checkLevel(level); err != nil {
		return err
	}
	if level == it.level {
		return nil
	}
	if it.compressed {
		if err := it.decompress(); err != nil {
			return err
		}
	}
	it.level = level
	return nil
}

// Data returns the uncompressed content. A compressed payload is inflated,
// verified against its CRC-32 and kept in place of the payload. Content
// read from a caller's source is buffered, and an owned source is closed.
func (it *Item) Data() ([]byte, error) {
	if it.compressed {
		if err := it.decompress(); err != nil {
			return nil, err
		}
		return it.data, nil
	}
	if err := it.buffer(); err != nil {
		return nil, err
	}
	return it.data, nil
}

// Open returns a reader of the uncompressed content. Unlike Data, a
// compressed payload is inflated on the fly and nothing is cached; the CRC
// is checked when the reader reaches the end.
func (it *Item) Open() (io.ReadCloser, error) {
	if it.compressed {
		return it.openPayload()
	}
	return it.reader()
}

func (it *Item) headerName() string {
	if it.isDir {
		return it.name + "/"
	}
	return it.name
}

// openPayload wraps the compressed payload in its decompressor.
func (it *Item) openPayload() (io.ReadCloser, error) {
	d, err := it.codecs.decompressor(it.method)
	if err != nil {
		return nil, err
	}
	rc, err := d.Decompress(bytes.NewReader(it.data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return &checksumReader{
		rc:     rc,
		hash:   crc32.NewIEEE(),
		verify: it.checkCRC,
		want:   it.crc32,
		size:   it.uncompressedSize,
	}, nil
}

func (it *Item) decompress() error {
	rc, err := it.openPayload()
	if err != nil {
		return err
	}
	defer rc.Close()

	var buf bytes.Buffer
	buf.Grow(int(min(it.uncompressedSize, maxPrealloc)))
	if _, err := buf.ReadFrom(rc); err != nil {
		return fmt.Errorf("%s: %w", it.name, err)
	}

	it.data = buf.Bytes()
	it.compressed = false
	return nil
}

// buffer reads the caller's source into memory and releases it.
func (it *Item) buffer() error {
	if it.open != nil {
		rc, err := it.open()
		if err != nil {
			return fmt.Errorf("open %s: %w", it.name, err)
		}
		data, err := io.ReadAll(rc)
		if cerr := rc.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", it.name, err)
		}
		it.open, it.data = nil, data
		return nil
	}
	if it.src == nil {
		return nil
	}
	if s, ok := it.src.(io.Seeker); ok {
		if _, err := s.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewind %s: %w", it.name, err)
		}
	}
	data, err := io.ReadAll(it.src)
	if err != nil {
		return fmt.Errorf("read %s: %w", it.name, err)
	}
	if err := it.release(); err != nil {
		return err
	}
	it.data = data
	return nil
}

// reader returns the uncompressed content from its start. Lazy sources are
// opened and must be closed by the caller. Seekable sources are rewound so
// that an archive can be saved more than once; others are buffered on
// first use.
func (it *Item) reader() (io.ReadCloser, error) {
	if it.open != nil {
		rc, err := it.open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", it.name, err)
		}
		return rc, nil
	}
	if it.src == nil {
		return io.NopCloser(bytes.NewReader(it.data)), nil
	}
	if s, ok := it.src.(io.Seeker); ok {
		if _, err := s.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewind %s: %w", it.name, err)
		}
		return io.NopCloser(it.src), nil
	}
	if err := it.buffer(); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(it.data)), nil
}

// size returns the length of the uncompressed content, or -1 for a lazy
// source whose length cannot be told without reading it.
func (it *Item) size() (int64, error) {
	switch {
	case it.compressed:
		return it.uncompressedSize, nil
	case it.open != nil:
		return it.lazySize()
	case it.src == nil:
		return int64(len(it.data)), nil
	}
	if s, ok := it.src.(io.Seeker); ok {
		n, err := s.Seek(0, io.SeekEnd)
		if err != nil {
			return 0, fmt.Errorf("size of %s: %w", it.name, err)
		}
		return n, nil
	}
	if err := it.buffer(); err != nil {
		return 0, err
	}
	return int64(len(it.data)), nil
}

func (it *Item) lazySize() (int64, error) {
	rc, err := it.open()
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", it.name, err)
	}
	defer rc.Close()

	s, ok := rc.(io.Seeker)
	if !ok {
		return -1, nil
	}
	n, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("size of %s: %w", it.name, err)
	}
	return n, nil
}

// release drops the caller's source, closing it if the item owns it.
func (it *Item) release() error {
	src, owned := it.src, it.owned
	it.src, it.owned, it.open = nil, false, nil
	if c, ok := src.(io.Closer); ok && owned {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close %s: %w", it.name, err)
		}
	}
	return nil
}

// update replaces the content. The item is saved deflated from now on.
func (it *Item) update(r io.Reader, owned bool) error {
	if it.isDir {
		return fmt.Errorf("%w: %s is a directory", ErrInvalidName, it.name)
	}
	err := it.release()
	it.src, it.owned = r, owned
	it.data = nil
	it.compressed = false
	it.uncompressedSize, it.compressedSize, it.crc32 = 0, 0, 0
	it.method = Deflated
	return err
}

func checkLevel(level int) error {
	if level < NoCompression || level > DeflateMaximum {
		return fmt.Errorf("%w: %d", ErrLevel, level)
	}
	return nil
}
