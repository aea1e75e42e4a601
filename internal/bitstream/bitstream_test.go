// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bitstream

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestWriterPacksLSBFirst(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteBits(1, 1)
	w.WriteBits(0b01, 2)
	w.WriteBits(0b11111, 5)
	w.WriteBits(0x3, 3)
	w.AlignToByte()
	w.WriteUint16LE(0x1234)
	w.WriteUint16BE(0x1234)
	w.WriteUint32BE(0xdeadbeef)
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	want := []byte{0xfb, 0x03, 0x34, 0x12, 0x12, 0x34, 0xde, 0xad, 0xbe, 0xef}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("got % x, want % x", buf.Bytes(), want)
	}
	if w.Written() != int64(len(want)) {
		t.Errorf("Written() = %d", w.Written())
	}
}

func TestWriterAutoFlush(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	data := bytes.Repeat([]byte{0xa5}, 3*PendingSize+17)
	w.WriteBytes(data)
	for range 10 {
		w.WriteBits(0xff, 8)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != len(data)+10 {
		t.Errorf("got %d bytes, want %d", buf.Len(), len(data)+10)
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("boom") }

func TestWriterStickyError(t *testing.T) {
	w := NewWriter(failWriter{})
	w.WriteBits(1, 8)
	if err := w.Flush(); err == nil {
		t.Fatal("expected error")
	}
	w.WriteBits(1, 8)
	if w.Flush() == nil {
		t.Fatal("error was not sticky")
	}
}

func TestWriterUnalignedBytePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	w := NewWriter(io.Discard)
	w.WriteBits(1, 3)
	w.WriteBytes([]byte{1})
}

func TestReaderRoundTrip(t *testing.T) {
	fields := []struct {
		v uint32
		n uint
	}{
		{1, 1}, {2, 2}, {0x7f, 7}, {0x1ff, 9}, {0, 3}, {0xabcd, 16}, {0x15, 5}, {0x12345, 17},
	}
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, f := range fields {
		w.WriteBits(f.v, f.n)
	}
	w.AlignToByte()
	w.WriteBytes([]byte("tail"))
	w.Flush()

	r := NewReader(bytes.NewReader(buf.Bytes()))
	for i, f := range fields {
		got, ok := r.ReadBits(f.n)
		if !ok || got != f.v {
			t.Fatalf("field %d: got %#x ok=%v, want %#x", i, got, ok, f.v)
		}
	}
	r.AlignToByte()
	tail := make([]byte, 4)
	if _, err := r.ReadBytes(tail); err != nil || string(tail) != "tail" {
		t.Fatalf("ReadBytes = %q, %v", tail, err)
	}
	if _, ok := r.ReadBits(1); ok {
		t.Error("read past end of input")
	}
	if r.Err() != nil {
		t.Errorf("Err() = %v", r.Err())
	}
}

func TestReaderPeekShort(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x05}))
	v, ok := r.PeekBits(9)
	if ok {
		t.Fatal("peek beyond input succeeded")
	}
	if v != 0x05 || r.AvailableBits() != 8 {
		t.Errorf("partial peek = %#x with %d bits", v, r.AvailableBits())
	}
	if v, ok := r.ReadBits(3); !ok || v != 0x5 {
		t.Errorf("ReadBits(3) = %#x, %v", v, ok)
	}
}

func TestReaderBytesDrainAccumulator(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{1, 2, 3, 4, 5, 6}))
	if _, ok := r.PeekBits(24); !ok {
		t.Fatal("peek failed")
	}
	p := make([]byte, 5)
	n, err := r.ReadBytes(p)
	if err != nil || n != 5 || !bytes.Equal(p, []byte{1, 2, 3, 4, 5}) {
		t.Fatalf("ReadBytes = %v, %d, %v", p, n, err)
	}
	if _, err := r.ReadBytes(make([]byte, 2)); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("short read error = %v", err)
	}
}

func TestReadUint32BE(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0xde, 0xad, 0xbe, 0xef}))
	v, ok := r.ReadUint32BE()
	if !ok || v != 0xdeadbeef {
		t.Errorf("ReadUint32BE = %#x, %v", v, ok)
	}
}

func TestAccumulatorBelow32Bits(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for i := range 8 {
		w.WriteBits(uint32(i), uint(i%8))
		w.WriteBits(0xdeadbeef, 32)
		if w.nbits >= 8 {
			t.Fatalf("writer holds %d bits after a call", w.nbits)
		}
	}
	w.AlignToByte()
	w.Flush()

	r := NewReader(bytes.NewReader(buf.Bytes()))
	for i := range 8 {
		if v, ok := r.ReadBits(uint(i % 8)); !ok || v != uint32(i) {
			t.Fatalf("field %d: got %#x, %v", i, v, ok)
		}
		lo, _ := r.ReadBits(16)
		if r.nbits >= 32 {
			t.Fatalf("reader holds %d bits", r.nbits)
		}
		hi, ok := r.ReadBits(16)
		if !ok || hi<<16|lo != 0xdeadbeef {
			t.Fatalf("field %d: got %#x", i, hi<<16|lo)
		}
	}
}

func TestReaderPeekTooWidePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	r := NewReader(bytes.NewReader(make([]byte, 8)))
	r.PeekBits(MaxPeek + 1)
}
