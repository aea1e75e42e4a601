// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	kflate "github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

// capture runs the command line with the given standard input and returns
// what it wrote to standard output.
func capture(t *testing.T, input []byte, args ...string) ([]byte, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	stdin, stdout, stderr = bytes.NewReader(input), &out, &errOut
	t.Cleanup(func() { stdin, stdout, stderr = os.Stdin, os.Stdout, os.Stderr })

	err := run(args)
	if err != nil {
		t.Logf("stderr: %s", errOut.String())
	}
	return out.Bytes(), err
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestZipListUnzip(t *testing.T) {
	src := t.TempDir()
	files := map[string]string{
		"app/app-2024-01-02-000.log": strings.Repeat("GET /health 200\n", 300),
		"app/old/archive.log":        "rotated",
		"app/empty.log":              "",
	}
	writeTree(t, src, files)
	archivePath := filepath.Join(t.TempDir(), "logs.zip")

	out, err := capture(t, nil, "zip", "-level", "9", "-C", src, archivePath, filepath.Join(src, "app"))
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	if !strings.Contains(string(out), "  adding: app/app-2024-01-02-000.log (deflated") {
		t.Errorf("zip output:\n%s", out)
	}
	if !strings.Contains(string(out), "  adding: app/empty.log (stored 0%)") {
		t.Errorf("empty file should be stored:\n%s", out)
	}

	out, err = capture(t, nil, "list", archivePath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"app/", "app/old/archive.log", "Deflated", "5 files"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("list output lacks %q:\n%s", want, out)
		}
	}

	dest := t.TempDir()
	if _, err := capture(t, nil, "unzip", "-d", dest, archivePath); err != nil {
		t.Fatalf("unzip: %v", err)
	}
	for name, content := range files {
		got, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(name)))
		if err != nil || string(got) != content {
			t.Errorf("%s: content mismatch (err %v)", name, err)
		}
	}
}

func TestPack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app-2024-01-02-000.log")
	writeTree(t, dir, map[string]string{"app-2024-01-02-000.log": "line\nline\nline\n"})

	out, err := capture(t, nil, "pack", path)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if !strings.Contains(string(out), path+".zip") {
		t.Errorf("output: %s", out)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Error("original should be removed")
	}

	out, err = capture(t, nil, "list", path+".zip")
	if err != nil || !strings.Contains(string(out), "app-2024-01-02-000.log") {
		t.Errorf("list: %v\n%s", err, out)
	}
}

func TestDeflateInflate(t *testing.T) {
	input := bytes.Repeat([]byte("2024-01-02T10:00:00Z level=INFO msg=ok\n"), 500)

	t.Run("zlib", func(t *testing.T) {
		packed, err := capture(t, input, "deflate", "-level", "9")
		if err != nil {
			t.Fatalf("deflate: %v", err)
		}

		zr, err := zlib.NewReader(bytes.NewReader(packed))
		if err != nil {
			t.Fatalf("zlib.NewReader: %v", err)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(zr); err != nil || !bytes.Equal(buf.Bytes(), input) {
			t.Errorf("klauspost zlib could not read our stream (err %v)", err)
		}

		unpacked, err := capture(t, packed, "inflate")
		if err != nil || !bytes.Equal(unpacked, input) {
			t.Errorf("inflate: %v", err)
		}
	})

	t.Run("raw", func(t *testing.T) {
		var theirs bytes.Buffer
		fw, _ := kflate.NewWriter(&theirs, kflate.BestSpeed)
		fw.Write(input)
		fw.Close()

		unpacked, err := capture(t, theirs.Bytes(), "inflate", "-raw")
		if err != nil || !bytes.Equal(unpacked, input) {
			t.Errorf("inflate -raw: %v", err)
		}

		packed, err := capture(t, input, "deflate", "-raw")
		if err != nil {
			t.Fatalf("deflate -raw: %v", err)
		}
		if _, err := capture(t, packed, "inflate"); err == nil {
			t.Error("a raw stream should not pass as zlib")
		}
	})
}

func TestRun_Usage(t *testing.T) {
	for _, args := range [][]string{
		nil,
		{"frobnicate"},
		{"zip", "only-archive.zip"},
		{"list"},
		{"deflate", "-level"},
	} {
		if _, err := capture(t, nil, args...); !errors.Is(err, errUsage) {
			t.Errorf("run(%q) = %v, want a usage error", args, err)
		}
	}

	if _, err := capture(t, []byte("payload"), "deflate", "-level", "12"); err == nil || errors.Is(err, errUsage) {
		t.Errorf("invalid level: %v", err)
	}
}

func TestRatio(t *testing.T) {
	tests := []struct {
		size, packed int64
		want         int
	}{
		{0, 0, 0},
		{100, 25, 75},
		{100, 100, 0},
		{10, 12, 0},
	}
	for _, tt := range tests {
		if got := ratio(tt.size, tt.packed); got != tt.want {
			t.Errorf("ratio(%d, %d) = %d, want %d", tt.size, tt.packed, got, tt.want)
		}
	}
}
