// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sys

import (
	"io/fs"
	"testing"
)

func TestExternalAttributesRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		mode fs.FileMode
	}{
		{"regular", 0644},
		{"executable", 0755},
		{"read only", 0444},
		{"directory", 0755 | fs.ModeDir},
		{"symlink", 0777 | fs.ModeSymlink},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := ExternalAttributes(tt.mode)
			got := FileMode(DefaultHostSystem, attrs, tt.mode.IsDir())
			if got != tt.mode {
				t.Errorf("FileMode(ExternalAttributes(%v)) = %v", tt.mode, got)
			}
		})
	}
}

func TestExternalAttributesDOSBits(t *testing.T) {
	if attrs := ExternalAttributes(0755 | fs.ModeDir); attrs&dosDirectory == 0 {
		t.Errorf("directory attrs %#x lack the DOS directory bit", attrs)
	}
	if attrs := ExternalAttributes(0444); attrs&dosReadOnly == 0 {
		t.Errorf("read-only attrs %#x lack the DOS read-only bit", attrs)
	}
	if attrs := ExternalAttributes(0644); attrs>>16 != S_IFREG|0644 {
		t.Errorf("regular file mode bits = %o", attrs>>16)
	}
}

func TestFileModeFromDOSHost(t *testing.T) {
	if got := FileMode(HostSystemFAT, dosDirectory, false); !got.IsDir() {
		t.Errorf("DOS directory decoded as %v", got)
	}
	if got := FileMode(HostSystemNTFS, dosReadOnly|dosArchive, false); got != 0444 {
		t.Errorf("DOS read-only file decoded as %v", got)
	}
	if got := FileMode(HostSystemUNIX, 0, true); got != 0755|fs.ModeDir {
		t.Errorf("UNIX record without mode bits decoded as %v", got)
	}
}

func TestHostSystemString(t *testing.T) {
	if HostSystemUNIX.String() != "UNIX" || HostSystem(200).String() != "Unknown" {
		t.Errorf("unexpected names: %s, %s", HostSystemUNIX, HostSystem(200))
	}
}
