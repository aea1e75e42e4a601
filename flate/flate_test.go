// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flate_test

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"testing"
	"testing/iotest"

	kflate "github.com/klauspost/compress/flate"
	kzlib "github.com/klauspost/compress/zlib"

	"github.com/lemon4ksan/logzip/flate"
)

// logLines returns n bytes of repetitive log-like text.
func logLines(rng *rand.Rand, n int) []byte {
	var buf bytes.Buffer
	levels := []string{"INFO", "WARN", "DEBUG", "ERROR"}
	for buf.Len() < n {
		fmt.Fprintf(&buf, "2025-03-%02d 12:%02d:%02d %s request id=%d path=/api/v1/items/%d status=%d\n",
			rng.Intn(28)+1, rng.Intn(60), rng.Intn(60), levels[rng.Intn(len(levels))],
			rng.Intn(100000), rng.Intn(500), 200+rng.Intn(4)*100)
	}
	return buf.Bytes()[:n]
}

func randomBytes(rng *rand.Rand, n int) []byte {
	b := make([]byte, n)
	rng.Read(b)
	return b
}

type corpus struct {
	name string
	gen  func(*rand.Rand, int) []byte
}

var corpora = []corpus{
	{"log", logLines},
	{"random", randomBytes},
	{"zeros", func(_ *rand.Rand, n int) []byte { return make([]byte, n) }},
	{"period3", func(_ *rand.Rand, n int) []byte { return bytes.Repeat([]byte("abc"), n/3+1)[:n] }},
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	sizes := []int{0, 1, 2, 3, 258, 259, 32768, 32769, 65537}
	for range 3 {
		sizes = append(sizes, rng.Intn(200000))
	}

	for _, c := range corpora {
		for _, size := range sizes {
			data := c.gen(rng, size)
			for level := flate.NoCompression; level <= flate.BestCompression; level++ {
				for _, raw := range []bool{false, true} {
					name := fmt.Sprintf("%s/%d/level%d/raw=%v", c.name, size, level, raw)
					t.Run(name, func(t *testing.T) {
						opts := []flate.Option{flate.WithLevel(level)}
						if raw {
							opts = append(opts, flate.WithRaw())
						}
						compressed, err := flate.Compress(data, opts...)
						if err != nil {
							t.Fatalf("Compress() error = %v", err)
						}
						var readOpts []flate.Option
						if raw {
							readOpts = append(readOpts, flate.WithRaw())
						}
						got, err := flate.Decompress(compressed, readOpts...)
						if err != nil {
							t.Fatalf("Decompress() error = %v", err)
						}
						if !bytes.Equal(got, data) {
							t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(data))
						}
					})
				}
			}
		}
	}
}

func TestCompressionShrinksLogs(t *testing.T) {
	data := logLines(rand.New(rand.NewSource(1)), 100000)
	for _, level := range []int{1, 6, 9} {
		out, err := flate.Compress(data, flate.WithLevel(level))
		if err != nil {
			t.Fatal(err)
		}
		if len(out) > len(data)/2 {
			t.Errorf("level %d: %d -> %d bytes", level, len(data), len(out))
		}
	}
}

func TestStoredNeverExpandsMuch(t *testing.T) {
	data := randomBytes(rand.New(rand.NewSource(5)), 300000)
	for _, level := range []int{0, 1, 6, 9} {
		out, err := flate.Compress(data, flate.WithLevel(level), flate.WithRaw())
		if err != nil {
			t.Fatal(err)
		}
		// Five bytes of framing per stored block plus headers.
		if limit := len(data) + len(data)/1000 + 64; len(out) > limit {
			t.Errorf("level %d: %d bytes of random data grew to %d", level, len(data), len(out))
		}
	}
}

func TestInteropWithKlauspost(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	data := append(logLines(rng, 150000), randomBytes(rng, 40000)...)

	t.Run("our zlib, their reader", func(t *testing.T) {
		for _, level := range []int{0, 1, 4, 6, 9} {
			compressed, err := flate.Compress(data, flate.WithLevel(level))
			if err != nil {
				t.Fatal(err)
			}
			zr, err := kzlib.NewReader(bytes.NewReader(compressed))
			if err != nil {
				t.Fatalf("level %d: kzlib.NewReader() error = %v", level, err)
			}
			got, err := io.ReadAll(zr)
			if err != nil {
				t.Fatalf("level %d: read error = %v", level, err)
			}
			if !bytes.Equal(got, data) {
				t.Fatalf("level %d: mismatch", level)
			}
		}
	})

	t.Run("our raw, their reader", func(t *testing.T) {
		compressed, err := flate.Compress(data, flate.WithRaw())
		if err != nil {
			t.Fatal(err)
		}
		got, err := io.ReadAll(kflate.NewReader(bytes.NewReader(compressed)))
		if err != nil || !bytes.Equal(got, data) {
			t.Fatalf("read error = %v, equal = %v", err, bytes.Equal(got, data))
		}
	})

	t.Run("their zlib, our reader", func(t *testing.T) {
		for _, level := range []int{kzlib.NoCompression, kzlib.BestSpeed, kzlib.DefaultCompression, kzlib.BestCompression} {
			var buf bytes.Buffer
			zw, err := kzlib.NewWriterLevel(&buf, level)
			if err != nil {
				t.Fatal(err)
			}
			zw.Write(data)
			zw.Close()
			got, err := flate.Decompress(buf.Bytes())
			if err != nil {
				t.Fatalf("level %d: Decompress() error = %v", level, err)
			}
			if !bytes.Equal(got, data) {
				t.Fatalf("level %d: mismatch", level)
			}
		}
	})

	t.Run("their raw, our reader", func(t *testing.T) {
		var buf bytes.Buffer
		fw, err := kflate.NewWriter(&buf, kflate.BestCompression)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(data)
		fw.Close()
		got, err := flate.Decompress(buf.Bytes(), flate.WithRaw())
		if err != nil || !bytes.Equal(got, data) {
			t.Fatalf("Decompress() error = %v, equal = %v", err, bytes.Equal(got, data))
		}
	})
}

func TestChecksumCorruption(t *testing.T) {
	data := logLines(rand.New(rand.NewSource(3)), 5000)
	compressed, err := flate.Compress(data)
	if err != nil {
		t.Fatal(err)
	}
	for i := len(compressed) - 4; i < len(compressed); i++ {
		bad := bytes.Clone(compressed)
		bad[i] ^= 0x01
		got, err := flate.Decompress(bad)
		if !errors.Is(err, flate.ErrChecksum) {
			t.Errorf("byte %d: error = %v, want ErrChecksum", i, err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("byte %d: decoded data not returned with checksum error", i)
		}
	}
}

func TestTruncatedStream(t *testing.T) {
	data := logLines(rand.New(rand.NewSource(4)), 20000)
	compressed, err := flate.Compress(data, flate.WithRaw())
	if err != nil {
		t.Fatal(err)
	}
	for _, cut := range []int{0, 1, len(compressed) / 2, len(compressed) - 1} {
		_, err := flate.Decompress(compressed[:cut], flate.WithRaw())
		if !errors.Is(err, flate.ErrFormat) {
			t.Errorf("cut at %d: error = %v, want ErrFormat", cut, err)
		}
	}
}

func TestHeaderValidation(t *testing.T) {
	tests := []struct {
		name        string
		header      []byte
		unsupported bool
	}{
		{"check bits", []byte{0x78, 0x9d}, false},
		{"method", []byte{0x77, 0x85}, true},
		{"window", []byte{0x88, 0x98}, false},
		{"preset dictionary", []byte{0x78, 0xbb}, true},
		{"short", []byte{0x78}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := flate.NewReader(bytes.NewReader(tt.header))
			if !errors.Is(err, flate.ErrFormat) {
				t.Fatalf("NewReader() error = %v, want ErrFormat", err)
			}
			if errors.Is(err, flate.ErrUnsupported) != tt.unsupported {
				t.Errorf("ErrUnsupported match = %v, want %v", !tt.unsupported, tt.unsupported)
			}
		})
	}
}

func TestMalformedBlocks(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"reserved block type", []byte{0x07}},
		{"stored length check", []byte{0x01, 0x05, 0x00, 0x00, 0x00}},
		{"distance before start", []byte{0x03, 0x02, 0x00, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := flate.Decompress(tt.raw, flate.WithRaw())
			if !errors.Is(err, flate.ErrFormat) {
				t.Errorf("error = %v, want ErrFormat", err)
			}
		})
	}
}

func TestOneByteReads(t *testing.T) {
	data := logLines(rand.New(rand.NewSource(6)), 70000)
	compressed, err := flate.Compress(data, flate.WithLevel(9))
	if err != nil {
		t.Fatal(err)
	}
	r, err := flate.NewReader(iotest.OneByteReader(bytes.NewReader(compressed)))
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(iotest.OneByteReader(r))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("mismatch after one-byte reads")
	}
}

func TestWriterStreaming(t *testing.T) {
	data := logLines(rand.New(rand.NewSource(8)), 123457)
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.WithLevel(5))
	if err != nil {
		t.Fatal(err)
	}
	for chunk := data; len(chunk) > 0; {
		n := min(len(chunk), 777)
		if _, err := w.Write(chunk[:n]); err != nil {
			t.Fatal(err)
		}
		chunk = chunk[n:]
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("x")); !errors.Is(err, flate.ErrClosed) {
		t.Errorf("Write after Close error = %v", err)
	}

	got, err := flate.Decompress(buf.Bytes())
	if err != nil || !bytes.Equal(got, data) {
		t.Fatalf("Decompress() error = %v, equal = %v", err, bytes.Equal(got, data))
	}

	var again bytes.Buffer
	w.Reset(&again)
	w.Write(data)
	w.Close()
	if !bytes.Equal(again.Bytes(), buf.Bytes()) {
		t.Errorf("Reset writer produced different output")
	}
}

func TestInvalidLevel(t *testing.T) {
	for _, level := range []int{-1, 10} {
		if _, err := flate.NewWriter(io.Discard, flate.WithLevel(level)); !errors.Is(err, flate.ErrLevel) {
			t.Errorf("level %d: error = %v", level, err)
		}
	}
}
