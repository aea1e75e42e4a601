// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux || darwin

package logzip_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/lemon4ksan/logzip"
)

func TestAddFile_ManyFilesUnderDescriptorLimit(t *testing.T) {
	dir := t.TempDir()
	const count = 200
	for i := range count {
		name := filepath.Join(dir, fmt.Sprintf("f%03d.log", i))
		if err := os.WriteFile(name, []byte{byte(i)}, 0644); err != nil {
			t.Fatal(err)
		}
	}

	var old syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &old); err != nil {
		t.Skipf("getrlimit: %v", err)
	}
	limit := old
	limit.Cur = 64
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &limit); err != nil {
		t.Skipf("setrlimit: %v", err)
	}
	defer syscall.Setrlimit(syscall.RLIMIT_NOFILE, &old)

	a := logzip.NewArchive(logzip.WithNamePreprocessor(logzip.TrimPrefix(dir + "/")))
	defer a.Close()
	for i := range count {
		if _, err := a.AddFile(filepath.Join(dir, fmt.Sprintf("f%03d.log", i))); err != nil {
			t.Fatalf("AddFile #%d: %v", i, err)
		}
	}

	var buf bytes.Buffer
	if _, err := a.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}

	b, err := logzip.Open(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Close()
	if b.Len() != count {
		t.Fatalf("Len = %d, want %d", b.Len(), count)
	}
	it, _ := b.Item("f123.log")
	if data, err := it.Data(); err != nil || !bytes.Equal(data, []byte{123}) {
		t.Errorf("f123.log = %v, %v", data, err)
	}
}
