// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rotate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/lemon4ksan/logzip"
)

// ArchiveExt is appended to the name of a compressed log file.
const ArchiveExt = ".zip"

// CompressFile packs the file at path into path+".zip" as a single entry
// named after the file's base name, then removes the original. The new
// archive is read back and its checksum verified before anything is
// removed; on failure the original is kept and the archive deleted.
func CompressFile(path string, opts ...logzip.ArchiveOption) (string, error) {
	dest := path + ArchiveExt

	archive := logzip.NewArchive(opts...)
	defer archive.Close()

	if _, err := archive.AddFileAs(filepath.Base(path), path); err != nil {
		return "", fmt.Errorf("rotate: compress %s: %w", path, err)
	}
	if err := archive.SaveFile(dest); err != nil {
		return "", fmt.Errorf("rotate: compress %s: %w", path, err)
	}
	if err := verify(dest, opts); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("rotate: verify %s: %w", dest, err)
	}

	if err := os.Remove(path); err != nil {
		return dest, fmt.Errorf("rotate: remove %s: %w", path, err)
	}
	return dest, nil
}

func verify(path string, opts []logzip.ArchiveOption) error {
	opts = append(opts[:len(opts):len(opts)], logzip.WithCRCCheck(true))
	archive, err := logzip.OpenFile(path, opts...)
	if err != nil {
		return err
	}
	defer archive.Close()

	for _, it := range archive.Items() {
		rc, err := it.Open()
		if err != nil {
			return err
		}
		_, err = io.Copy(io.Discard, rc)
		if cerr := rc.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}
	return nil
}
