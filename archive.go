// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logzip implements DEFLATE compression and a small ZIP archive
// manager built on it. It is used to pack rotated-out log files.
//
// The codec itself lives in the flate subpackage. This package provides
// the container: an [Archive] is an ordered set of [Item] entries which can
// be added, replaced, removed and saved, or loaded from an existing file.
//
// # Basic Usage
//
// Creating an archive:
//
//	archive := logzip.NewArchive(logzip.WithLevel(logzip.DeflateMaximum))
//	defer archive.Close()
//	archive.AddFile("app.log")
//	archive.AddString("notes/README", "rotated by logzip")
//	archive.SaveFile("app.zip")
//
// Modifying an existing archive:
//
//	archive, _ := logzip.OpenFile("app.zip")
//
//	// Entries keep their compressed payload until it is needed
//	item, _ := archive.Item("app.log")
//	data, _ := item.Data()
//
//	archive.UpdateBytes("app.log", bytes.ToUpper(data))
//	archive.RemoveMatching(regexp.MustCompile(`\.tmp$`))
//	archive.SaveFile("app.zip")
//
// Loaded payloads are copied into the new archive as they are unless their
// compression level is changed with [Item.SetLevel].
package logzip

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/lemon4ksan/logzip/internal/sys"
)

// ArchiveConfig defines archive-wide settings.
type ArchiveConfig struct {
	// Level is the default DEFLATE level for new entries (0-9).
	Level int

	// CheckCRC enables verification of the CRC-32 of loaded entries when
	// they are decompressed.
	CheckCRC bool

	// NamePreprocessor, if set, rewrites every name passed to the Add
	// methods before it is normalized.
	NamePreprocessor func(string) string

	// OnItemProcessed is a callback triggered after an entry is loaded,
	// saved or extracted.
	OnItemProcessed func(*Item, error)
}

// ArchiveOption configures an archive on creation.
type ArchiveOption func(*ArchiveConfig)

// WithLevel sets the default compression level.
func WithLevel(level int) ArchiveOption {
	return func(c *ArchiveConfig) { c.Level = level }
}

// WithCRCCheck enables or disables CRC-32 verification of loaded entries.
func WithCRCCheck(enabled bool) ArchiveOption {
	return func(c *ArchiveConfig) { c.CheckCRC = enabled }
}

// WithNamePreprocessor sets a function applied to names of added entries.
func WithNamePreprocessor(fn func(string) string) ArchiveOption {
	return func(c *ArchiveConfig) { c.NamePreprocessor = fn }
}

// WithOnItemProcessed sets the per-entry callback.
func WithOnItemProcessed(fn func(*Item, error)) ArchiveOption {
	return func(c *ArchiveConfig) { c.OnItemProcessed = fn }
}

// Archive is an in-memory ZIP archive. Its methods are safe for concurrent
// use, but the Items it returns are not.
type Archive struct {
	mu     sync.RWMutex
	config ArchiveConfig
	items  []*Item          // Entries in insertion order
	index  map[string]*Item // Entries by normalized name
	codecs *codecs
	closed bool
}

// NewArchive creates an empty archive. Entries are deflated at
// DeflateNormal and CRCs are checked unless options say otherwise.
func NewArchive(opts ...ArchiveOption) *Archive {
	config := ArchiveConfig{
		Level:    DeflateNormal,
		CheckCRC: true,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &Archive{
		config: config,
		index:  make(map[string]*Item),
		codecs: newCodecs(),
	}
}

// Open loads the archive stored in r, which holds size bytes.
func Open(r io.ReaderAt, size int64, opts ...ArchiveOption) (*Archive, error) {
	a := NewArchive(opts...)
	if err := a.Load(r, size); err != nil {
		return nil, err
	}
	return a, nil
}

// OpenFile loads the archive stored at path. All payloads are read into
// memory, so the file is closed before OpenFile returns.
func OpenFile(path string, opts ...ArchiveOption) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return Open(f, stat.Size(), opts...)
}

// Config returns the archive's configuration.
func (a *Archive) Config() ArchiveConfig {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}

// RegisterCompressor sets the compressor used for the given method and
// level, replacing the built-in one.
func (a *Archive) RegisterCompressor(method CompressionMethod, level int, c Compressor) {
	a.codecs.mu.Lock()
	defer a.codecs.mu.Unlock()
	a.codecs.compressors[compressorKey{method: method, level: level}] = c
}

// RegisterDecompressor sets the decompressor used for the given method.
func (a *Archive) RegisterDecompressor(method CompressionMethod, d Decompressor) {
	a.codecs.mu.Lock()
	defer a.codecs.mu.Unlock()
	a.codecs.decompressors[method] = d
}

// AddItem adds an entry whose content is read from r when the archive is
// saved. If owned is true the archive closes r once it is no longer
// needed; on error the caller keeps ownership.
func (a *Archive) AddItem(name string, r io.Reader, owned bool, opts ...ItemOption) (*Item, error) {
	it := a.newItem(false)
	it.src, it.owned = r, owned
	if err := a.addEntry(it, name, opts); err != nil {
		return nil, err
	}
	return it, nil
}

// AddBytes adds an entry holding a copy of data.
func (a *Archive) AddBytes(name string, data []byte, opts ...ItemOption) (*Item, error) {
	return a.AddItem(name, bytes.NewReader(bytes.Clone(data)), false, opts...)
}

// AddString adds an entry holding content.
func (a *Archive) AddString(name string, content string, opts ...ItemOption) (*Item, error) {
	return a.AddItem(name, strings.NewReader(content), false, opts...)
}

// AddLazy adds an entry whose content is obtained by calling open each
// time it is read or saved. The returned reader is closed after every use,
// so no source is held between saves.
func (a *Archive) AddLazy(name string, open func() (io.ReadCloser, error), opts ...ItemOption) (*Item, error) {
	it := a.newItem(false)
	it.open = open
	if err := a.addEntry(it, name, opts); err != nil {
		return nil, err
	}
	return it, nil
}

// AddFile adds the file at path under the same name. Its modification time
// and permissions are recorded; options may override them. The file is
// opened only while the entry is read or saved.
func (a *Archive) AddFile(path string, opts ...ItemOption) (*Item, error) {
	return a.AddFileAs(path, path, opts...)
}

// AddFileAs is like AddFile but stores the file under name.
func (a *Archive) AddFileAs(name, path string, opts ...ItemOption) (*Item, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidName, path)
	}

	opts = append([]ItemOption{WithModTime(stat.ModTime()), WithMode(stat.Mode())}, opts...)
	it, err := a.AddLazy(name, func() (io.ReadCloser, error) { return os.Open(path) }, opts...)
	if err != nil {
		return nil, err
	}
	it.uncompressedSize = stat.Size()
	return it, nil
}

// AddDirectory adds an explicit directory entry.
func (a *Archive) AddDirectory(name string, opts ...ItemOption) (*Item, error) {
	it := a.newItem(true)
	if err := a.addEntry(it, name, opts); err != nil {
		return nil, err
	}
	return it, nil
}

// Item returns the entry with the given name.
func (a *Archive) Item(name string) (*Item, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return nil, ErrClosed
	}
	it, ok := a.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	return it, nil
}

// ItemAt returns the i-th entry in insertion order.
func (a *Archive) ItemAt(i int) (*Item, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return nil, ErrClosed
	}
	if i < 0 || i >= len(a.items) {
		return nil, fmt.Errorf("%w: index %d out of range", ErrFileNotFound, i)
	}
	return a.items[i], nil
}

// Items returns a copy of the list of entries.
func (a *Archive) Items() []*Item {
	a.mu.RLock()
	defer a.mu.RUnlock()
	result := make([]*Item, len(a.items))
	copy(result, a.items)
	return result
}

// Len returns the number of entries.
func (a *Archive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.items)
}

// Index returns the position of the named entry, or -1.
func (a *Archive) Index(name string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	it, ok := a.lookup(name)
	if !ok {
		return -1
	}
	return a.position(it)
}

// Find returns every entry whose name matches re, in archive order.
func (a *Archive) Find(re *regexp.Regexp) []*Item {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var matches []*Item
	for _, it := range a.items {
		if re.MatchString(it.name) {
			matches = append(matches, it)
		}
	}
	return matches
}

// Remove deletes the named entry and releases its source.
func (a *Archive) Remove(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	it, ok := a.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	return a.removeAt(a.position(it))
}

// RemoveAt deletes the i-th entry and releases its source.
func (a *Archive) RemoveAt(i int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if i < 0 || i >= len(a.items) {
		return fmt.Errorf("%w: index %d out of range", ErrFileNotFound, i)
	}
	return a.removeAt(i)
}

// RemoveMatching deletes every entry whose name matches re and returns how
// many were removed. Entries are removed even if releasing their source
// fails; those failures are returned together.
func (a *Archive) RemoveMatching(re *regexp.Regexp) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return 0, ErrClosed
	}

	var result *multierror.Error
	kept := a.items[:0]
	removed := 0
	for _, it := range a.items {
		if !re.MatchString(it.name) {
			kept = append(kept, it)
			continue
		}
		delete(a.index, it.name)
		removed++
		if err := it.release(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	clear(a.items[len(kept):])
	a.items = kept

	return removed, result.ErrorOrNil()
}

// Update replaces the content of the named entry with r. The entry is
// deflated at its current level when the archive is next saved.
func (a *Archive) Update(name string, r io.Reader, owned bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	it, ok := a.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	return it.update(r, owned)
}

// UpdateBytes replaces the content of the named entry with a copy of data.
func (a *Archive) UpdateBytes(name string, data []byte) error {
	return a.Update(name, bytes.NewReader(bytes.Clone(data)), false)
}

// Close releases the sources of all entries. Further operations return
// ErrClosed. Closing an already closed archive is a no-op.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	var result *multierror.Error
	for _, it := range a.items {
		if err := it.release(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	a.items = nil
	clear(a.index)
	return result.ErrorOrNil()
}

// Load parses an existing ZIP archive from the reader and appends its
// entries. Compressed payloads are read into memory and decompressed on
// first access. On error the archive is left unchanged.
func (a *Archive) Load(src io.ReaderAt, size int64) error {
	zr := newZipReader(src, size)
	endOffset, end, err := zr.findEndOfCentralDir()
	if err != nil {
		return err
	}
	entries, base, err := zr.readCentralDir(endOffset, end)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}

	items := make([]*Item, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		payload, err := zr.readPayload(base, entry)
		if err != nil {
			return err
		}

		it := newItemFromCentralDir(entry, payload)
		if it.name, err = cleanName(it.name); err != nil {
			return fmt.Errorf("%w: %w", ErrFormat, err)
		}
		if _, dup := a.index[it.name]; dup || seen[it.name] {
			return fmt.Errorf("%w: %s", ErrDuplicateEntry, it.name)
		}
		seen[it.name] = true

		it.level = a.config.Level
		it.checkCRC = a.config.CheckCRC
		it.codecs = a.codecs
		items = append(items, it)
	}

	for _, it := range items {
		a.items = append(a.items, it)
		a.index[it.name] = it
		a.notify(it, nil)
	}
	return nil
}

// Save writes the archive to w and returns the number of bytes written.
// Seekable writers receive the archive directly; for others it is
// assembled in memory first.
func (a *Archive) Save(w io.Writer) (int64, error) {
	return a.SaveWithContext(context.Background(), w)
}

// SaveWithContext writes the archive with context support.
func (a *Archive) SaveWithContext(ctx context.Context, w io.Writer) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return 0, ErrClosed
	}

	var mem *memoryBuffer
	ws, ok := w.(io.WriteSeeker)
	if ok {
		_, err := ws.Seek(0, io.SeekCurrent)
		ok = err == nil
	}
	if !ok {
		mem = new(memoryBuffer)
		ws = mem
	}

	zw, err := newZipWriter(ws, a.codecs)
	if err != nil {
		return 0, fmt.Errorf("zip: %w", err)
	}

	for _, it := range a.items {
		if err := ctx.Err(); err != nil {
			return zw.offset, err
		}

		err := zw.WriteItem(ctx, it)
		if err != nil {
			err = fmt.Errorf("zip: write %s: %w", it.name, err)
		}
		a.notify(it, err)
		if err != nil {
			return zw.offset, err
		}
	}

	n, err := zw.Finish()
	if err != nil {
		return n, fmt.Errorf("zip: %w", err)
	}

	if mem != nil {
		written, err := w.Write(mem.Bytes())
		return int64(written), err
	}
	return n, nil
}

// SaveFile writes the archive to a new file at path. The file is removed
// if saving fails.
func (a *Archive) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	_, err = a.Save(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
	}
	return err
}

// Extract writes every entry below dir, creating directories as needed.
// Permissions and modification times are restored on a best-effort basis.
func (a *Archive) Extract(dir string) error {
	return a.ExtractWithContext(context.Background(), dir)
}

// ExtractWithContext extracts entries with context support. Failures of
// individual entries are collected and extraction continues.
func (a *Archive) ExtractWithContext(ctx context.Context, dir string) error {
	a.mu.RLock()
	closed := a.closed
	items := make([]*Item, len(a.items))
	copy(items, a.items)
	a.mu.RUnlock()

	if closed {
		return ErrClosed
	}

	dir = filepath.Clean(dir)
	var result *multierror.Error
	var dirsToRestore []*Item

	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		fpath := filepath.Join(dir, filepath.FromSlash(it.name))
		if !strings.HasPrefix(fpath, dir+string(os.PathSeparator)) {
			err := fmt.Errorf("%w: %s escapes %s", ErrInvalidName, it.name, dir)
			result = multierror.Append(result, err)
			a.notify(it, err)
			continue
		}

		if it.isDir {
			err := os.MkdirAll(fpath, 0755)
			if err != nil {
				result = multierror.Append(result, err)
			} else {
				dirsToRestore = append(dirsToRestore, it)
			}
			a.notify(it, err)
			continue
		}

		err := extractItem(ctx, it, fpath)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			err = fmt.Errorf("extract %s: %w", it.name, err)
			result = multierror.Append(result, err)
		}
		a.notify(it, err)
	}

	for i := len(dirsToRestore) - 1; i >= 0; i-- {
		d := dirsToRestore[i]
		os.Chtimes(filepath.Join(dir, filepath.FromSlash(d.name)), time.Now(), d.modTime)
	}

	return result.ErrorOrNil()
}

// FS returns a read-only view of the archive.
func (a *Archive) FS() fs.FS {
	return &archiveFS{a: a}
}

func extractItem(ctx context.Context, it *Item, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	src, err := it.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return err
	}

	_, err = io.Copy(dst, &contextReader{ctx: ctx, r: src})
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	perm := it.mode.Perm()
	if perm == 0 {
		perm = 0644
	}
	// Metadata may not be supported by the target file system.
	os.Chmod(path, perm)
	os.Chtimes(path, time.Now(), it.modTime)
	return nil
}

func (a *Archive) newItem(isDir bool) *Item {
	it := &Item{
		isDir:      isDir,
		mode:       0644,
		modTime:    time.Now(),
		method:     Deflated,
		level:      a.config.Level,
		checkCRC:   a.config.CheckCRC,
		hostSystem: sys.DefaultHostSystem,
		codecs:     a.codecs,
	}
	if isDir {
		it.mode = fs.ModeDir | 0755
		it.method = Stored
		it.level = NoCompression
	}
	return it
}

// addEntry validates the name and options of a new entry and appends it.
func (a *Archive) addEntry(it *Item, name string, opts []ItemOption) error {
	if a.config.NamePreprocessor != nil {
		name = a.config.NamePreprocessor(name)
	}
	clean, err := cleanName(name)
	if err != nil {
		return err
	}
	it.name = clean

	for _, opt := range opts {
		opt(it)
	}
	if err := checkLevel(it.level); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if _, ok := a.index[it.name]; ok {
		return fmt.Errorf("%w: '%s' already exists", ErrDuplicateEntry, it.name)
	}

	a.items = append(a.items, it)
	a.index[it.name] = it
	return nil
}

func (a *Archive) lookup(name string) (*Item, bool) {
	clean, err := cleanName(name)
	if err != nil {
		return nil, false
	}
	it, ok := a.index[clean]
	return it, ok
}

func (a *Archive) position(it *Item) int {
	for i, v := range a.items {
		if v == it {
			return i
		}
	}
	return -1
}

func (a *Archive) removeAt(i int) error {
	it := a.items[i]
	a.items = append(a.items[:i], a.items[i+1:]...)
	delete(a.index, it.name)
	return it.release()
}

func (a *Archive) notify(it *Item, err error) {
	if a.config.OnItemProcessed != nil {
		a.config.OnItemProcessed(it, err)
	}
}
