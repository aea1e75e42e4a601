// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logzip

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"io/fs"
	"strings"
	"testing"

	"github.com/lemon4ksan/logzip/internal"
	"github.com/lemon4ksan/logzip/internal/sys"
)

func makeEOCD(entries uint16, cdSize, cdOffset uint32, comment string) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, internal.EndOfCentralDirSignature)
	binary.Write(buf, binary.LittleEndian, uint16(0))            // Disk number
	binary.Write(buf, binary.LittleEndian, uint16(0))            // Disk number with start
	binary.Write(buf, binary.LittleEndian, entries)              // Entries on disk
	binary.Write(buf, binary.LittleEndian, entries)              // Total entries
	binary.Write(buf, binary.LittleEndian, cdSize)               // Size of CD
	binary.Write(buf, binary.LittleEndian, cdOffset)             // Offset of CD
	binary.Write(buf, binary.LittleEndian, uint16(len(comment))) // Comment len
	buf.WriteString(comment)
	return buf.Bytes()
}

func TestFindEndOfCentralDir(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		wantOffset int64
		wantErr    bool
	}{
		{
			name: "Simple EOCD at end",
			data: makeEOCD(5, 100, 200, ""),
		},
		{
			name: "EOCD with comment",
			data: makeEOCD(1, 50, 10, "This is a comment"),
		},
		{
			name:       "EOCD preceded by garbage",
			data:       append([]byte("garbage data..."), makeEOCD(1, 50, 10, "Comment")...),
			wantOffset: 15,
		},
		{
			name:       "Fake EOCD signature in comment",
			data:       append([]byte("prefix"), makeEOCD(1, 50, 10, "Fake PK\x05\x06 signature")...),
			wantOffset: 6, // too close to the end to start a record
		},
		{
			name:    "File too small",
			data:    []byte("too short"),
			wantErr: true,
		},
		{
			name:    "No EOCD signature",
			data:    make([]byte, 100),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			zr := newZipReader(bytes.NewReader(tt.data), int64(len(tt.data)))

			offset, _, err := zr.findEndOfCentralDir()
			if (err != nil) != tt.wantErr {
				t.Fatalf("findEndOfCentralDir() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrFormat) {
					t.Errorf("error %v is not ErrFormat", err)
				}
				return
			}
			if offset != tt.wantOffset {
				t.Errorf("offset = %d, want %d", offset, tt.wantOffset)
			}
		})
	}
}

func TestFindEndOfCentralDir_Comment(t *testing.T) {
	comment := "short"
	data := append(make([]byte, 1034), makeEOCD(1, 10, 10, comment)...)

	zr := newZipReader(bytes.NewReader(data), int64(len(data)))
	offset, end, err := zr.findEndOfCentralDir()
	if err != nil {
		t.Fatalf("findEndOfCentralDir: %v", err)
	}
	if offset != 1034 {
		t.Errorf("offset = %d, want 1034", offset)
	}
	if end.Comment != comment || end.TotalNumberOfEntries != 1 {
		t.Errorf("decoded %+v", end)
	}
}

func TestFindEndOfCentralDir_SearchWindow(t *testing.T) {
	eocd := makeEOCD(0, 0, 0, "")

	// The record is found as long as at most 65556 bytes follow its signature.
	for _, tt := range []struct {
		junk  int
		found bool
	}{
		{0, true},
		{65535, true},
		{65538, true},
		{65539, false},
	} {
		data := append(bytes.Clone(eocd), bytes.Repeat([]byte{0xAA}, tt.junk)...)
		zr := newZipReader(bytes.NewReader(data), int64(len(data)))

		_, _, err := zr.findEndOfCentralDir()
		if found := err == nil; found != tt.found {
			t.Errorf("junk %d: found = %v (err %v), want %v", tt.junk, found, err, tt.found)
		}
	}
}

func TestReadCentralDir_Errors(t *testing.T) {
	zr := newZipReader(bytes.NewReader(nil), 100)

	if _, _, err := zr.readCentralDir(10, internal.EndOfCentralDirectory{CentralDirSize: 20}); !errors.Is(err, ErrFormat) {
		t.Errorf("oversized directory: err = %v", err)
	}
	if _, _, err := zr.readCentralDir(10, internal.EndOfCentralDirectory{CentralDirOffset: 20}); !errors.Is(err, ErrFormat) {
		t.Errorf("offset beyond position: err = %v", err)
	}

	bogus := bytes.Repeat([]byte{0x55}, 60)
	zr = newZipReader(bytes.NewReader(bogus), int64(len(bogus)))
	end := internal.EndOfCentralDirectory{TotalNumberOfEntries: 1, CentralDirSize: 50}
	if _, _, err := zr.readCentralDir(50, end); !errors.Is(err, ErrFormat) {
		t.Errorf("bad signature: err = %v", err)
	}
}

func TestReadPayload(t *testing.T) {
	header := internal.LocalFileHeader{
		CompressionMethod: uint16(Stored),
		FilenameLength:    5,
		Filename:          "a.txt",
	}
	data := append([]byte("JUNK"), header.Encode()...)
	data = append(data, "hello"...)

	zr := newZipReader(bytes.NewReader(data), int64(len(data)))
	entry := internal.CentralDirectory{Filename: "a.txt", CompressedSize: 5}

	payload, err := zr.readPayload(4, entry)
	if err != nil {
		t.Fatalf("readPayload: %v", err)
	}
	if string(payload) != "hello" {
		t.Errorf("payload = %q", payload)
	}

	entry.CompressedSize = 6
	if _, err := zr.readPayload(4, entry); !errors.Is(err, ErrFormat) {
		t.Errorf("truncated payload: err = %v", err)
	}

	if _, err := zr.readPayload(0, internal.CentralDirectory{Filename: "a.txt"}); !errors.Is(err, ErrFormat) {
		t.Errorf("wrong local header position: err = %v", err)
	}

	entry = internal.CentralDirectory{Filename: "a.txt", GeneralPurposeBitFlag: flagEncrypted}
	if _, err := zr.readPayload(4, entry); !errors.Is(err, ErrAlgorithm) {
		t.Errorf("encrypted entry: err = %v", err)
	}
}

func TestNewItemFromCentralDir(t *testing.T) {
	tests := []struct {
		name       string
		entry      internal.CentralDirectory
		wantName   string
		wantDir    bool
		wantMode   fs.FileMode
		wantMethod CompressionMethod
	}{
		{
			name: "Unix file",
			entry: internal.CentralDirectory{
				VersionMadeBy:          uint16(sys.HostSystemUNIX)<<8 | 45,
				CompressionMethod:      uint16(Deflated),
				ExternalFileAttributes: (sys.S_IFREG | 0600) << 16,
				Filename:               "logs/app.log",
			},
			wantName:   "logs/app.log",
			wantMode:   0600,
			wantMethod: Deflated,
		},
		{
			name: "Directory",
			entry: internal.CentralDirectory{
				VersionMadeBy:          uint16(sys.HostSystemUNIX)<<8 | 45,
				ExternalFileAttributes: (sys.S_IFDIR | 0755) << 16,
				Filename:               "logs/",
			},
			wantName:   "logs",
			wantDir:    true,
			wantMode:   fs.ModeDir | 0755,
			wantMethod: Stored,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := newItemFromCentralDir(tt.entry, nil)
			if it.Name() != tt.wantName || it.IsDir() != tt.wantDir {
				t.Errorf("name/dir = %q/%v, want %q/%v", it.Name(), it.IsDir(), tt.wantName, tt.wantDir)
			}
			if it.Mode() != tt.wantMode {
				t.Errorf("mode = %v, want %v", it.Mode(), tt.wantMode)
			}
			if it.Method() != tt.wantMethod {
				t.Errorf("method = %v, want %v", it.Method(), tt.wantMethod)
			}
			if !it.Compressed() {
				t.Error("loaded item should hold its compressed payload")
			}
		})
	}
}

func TestChecksumReader(t *testing.T) {
	content := "Hello, checksum"
	crc := crc32.ChecksumIEEE([]byte(content))

	tests := []struct {
		name    string
		verify  bool
		want    uint32
		size    int64
		wantErr error
	}{
		{"Valid", true, crc, int64(len(content)), nil},
		{"Bad CRC", true, crc ^ 1, int64(len(content)), ErrChecksum},
		{"Bad CRC unchecked", false, crc ^ 1, int64(len(content)), nil},
		{"Short", true, crc, int64(len(content)) + 1, ErrSizeMismatch},
		{"Long", true, crc, int64(len(content)) - 1, ErrSizeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cr := &checksumReader{
				rc:     io.NopCloser(strings.NewReader(content)),
				hash:   crc32.NewIEEE(),
				verify: tt.verify,
				want:   tt.want,
				size:   tt.size,
			}
			_, err := io.ReadAll(cr)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("ReadAll error = %v, want %v", err, tt.wantErr)
			}
			if err := cr.Close(); err != nil {
				t.Errorf("Close: %v", err)
			}
		})
	}
}

func TestChecksumReader_WrapsSourceErrors(t *testing.T) {
	cr := &checksumReader{
		rc:   io.NopCloser(io.MultiReader(strings.NewReader("abc"), errReader{})),
		hash: crc32.NewIEEE(),
		size: 10,
	}
	_, err := io.ReadAll(cr)
	if !errors.Is(err, ErrFormat) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("err = %v, want ErrFormat wrapping the source error", err)
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }
