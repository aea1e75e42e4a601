// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logzip

import (
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"
)

var (
	_ fs.FS          = (*archiveFS)(nil)
	_ fs.StatFS      = (*archiveFS)(nil)
	_ fs.ReadDirFS   = (*archiveFS)(nil)
	_ fs.ReadDirFile = (*fsDir)(nil)
)

type archiveFS struct {
	a *Archive
}

// Open implements fs.FS. Regular entries are decompressed as they are read.
func (afs *archiveFS) Open(name string) (fs.File, error) {
	it, err := afs.entry(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}

	if it.isDir {
		return &fsDir{item: it, a: afs.a}, nil
	}

	rc, err := it.Open()
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &fsFile{item: it, rc: rc}, nil
}

// Stat implements fs.StatFS.
func (afs *archiveFS) Stat(name string) (fs.FileInfo, error) {
	it, err := afs.entry(name)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	return itemInfo{it}, nil
}

// ReadDir implements fs.ReadDirFS.
func (afs *archiveFS) ReadDir(name string) ([]fs.DirEntry, error) {
	it, err := afs.entry(name)
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	if !it.isDir {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	return (&fsDir{item: it, a: afs.a}).ReadDir(-1)
}

// entry resolves the root, explicit entries and directories implied by the
// names of other entries.
func (afs *archiveFS) entry(name string) (*Item, error) {
	if !fs.ValidPath(name) {
		return nil, fs.ErrInvalid
	}
	if name == "." {
		return syntheticDir("."), nil
	}

	afs.a.mu.RLock()
	defer afs.a.mu.RUnlock()

	if afs.a.closed {
		return nil, fs.ErrClosed
	}
	if it, ok := afs.a.index[name]; ok {
		return it, nil
	}

	prefix := name + "/"
	for _, it := range afs.a.items {
		if strings.HasPrefix(it.name, prefix) {
			return syntheticDir(name), nil
		}
	}
	return nil, fs.ErrNotExist
}

func syntheticDir(name string) *Item {
	return &Item{
		name:    name,
		isDir:   true,
		mode:    fs.ModeDir | 0755,
		modTime: time.Now(),
	}
}

// fsFile wraps a regular entry to satisfy fs.File.
type fsFile struct {
	item *Item
	rc   io.ReadCloser
}

func (f *fsFile) Stat() (fs.FileInfo, error) { return itemInfo{f.item}, nil }
func (f *fsFile) Read(b []byte) (int, error) { return f.rc.Read(b) }
func (f *fsFile) Close() error               { return f.rc.Close() }

// fsDir wraps a directory entry to satisfy fs.ReadDirFile.
type fsDir struct {
	item    *Item
	a       *Archive
	entries []fs.DirEntry // Remaining entries, loaded on the first ReadDir
	loaded  bool
}

func (d *fsDir) Stat() (fs.FileInfo, error) { return itemInfo{d.item}, nil }
func (d *fsDir) Close() error               { return nil }
func (d *fsDir) Read(b []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.item.name, Err: fs.ErrInvalid}
}

// ReadDir lists the direct children of the directory sorted by name.
func (d *fsDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if !d.loaded {
		d.entries = d.children()
		d.loaded = true
	}

	if n <= 0 {
		entries := d.entries
		d.entries = nil
		return entries, nil
	}
	if len(d.entries) == 0 {
		return nil, io.EOF
	}

	n = min(n, len(d.entries))
	entries := d.entries[:n]
	d.entries = d.entries[n:]
	return entries, nil
}

func (d *fsDir) children() []fs.DirEntry {
	d.a.mu.RLock()
	defer d.a.mu.RUnlock()

	dirPath := ""
	if d.item.name != "." {
		dirPath = d.item.name + "/"
	}

	seen := make(map[string]bool)
	var entries []fs.DirEntry

	for _, it := range d.a.items {
		rel, ok := strings.CutPrefix(it.name, dirPath)
		if !ok || rel == "" {
			continue
		}

		child, _, nested := strings.Cut(rel, "/")
		if seen[child] {
			continue
		}
		seen[child] = true

		info := fs.FileInfo(itemInfo{it})
		if nested {
			info = itemInfo{syntheticDir(dirPath + child)}
		}
		entries = append(entries, fs.FileInfoToDirEntry(info))
	}

	slices.SortFunc(entries, func(x, y fs.DirEntry) int {
		return strings.Compare(x.Name(), y.Name())
	})
	return entries
}

type itemInfo struct{ it *Item }

func (i itemInfo) Name() string       { return path.Base(i.it.name) }
func (i itemInfo) Mode() fs.FileMode  { return i.it.mode }
func (i itemInfo) ModTime() time.Time { return i.it.modTime }
func (i itemInfo) IsDir() bool        { return i.it.isDir }
func (i itemInfo) Sys() any           { return nil }

// Size reports the uncompressed size recorded in the archive, or the
// length of the buffered content of an entry not yet saved.
func (i itemInfo) Size() int64 {
	if !i.it.compressed && i.it.src == nil && i.it.data != nil {
		return int64(len(i.it.data))
	}
	return i.it.uncompressedSize
}
