// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package huffman

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/lemon4ksan/logzip/internal/bitstream"
)

// kraft returns the Kraft sum of lengths scaled by 2^15.
func kraft(lengths []uint8) int {
	sum := 0
	for _, l := range lengths {
		if l > 0 {
			sum += 1 << (15 - l)
		}
	}
	return sum
}

func fibonacciFreqs(n int) []int {
	freqs := make([]int, n)
	a, b := 1, 1
	for i := range freqs {
		freqs[i] = a
		a, b = b, a+b
	}
	return freqs
}

func TestTreeLengthsAreBoundedAndComplete(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tests := []struct {
		name      string
		symbols   int
		minCodes  int
		maxLength int
		freqs     []int
	}{
		{"literal uniform", 286, 257, 15, nil},
		{"code lengths skewed", 19, 4, 7, fibonacciFreqs(19)},
		{"literal skewed", 286, 257, 15, fibonacciFreqs(25)},
		{"distance two", 30, 1, 15, []int{5, 0, 0, 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := NewTree(tt.symbols, tt.minCodes, tt.maxLength)
			if tt.freqs == nil {
				for range 10000 {
					tree.Add(rng.Intn(tt.symbols))
				}
			} else {
				for sym, f := range tt.freqs {
					tree.AddN(sym, f)
				}
			}
			tree.Build()
			tree.BuildCodes()

			for sym, l := range tree.Lengths() {
				if int(l) > tt.maxLength {
					t.Fatalf("symbol %d has length %d > %d", sym, l, tt.maxLength)
				}
				if tree.Freq(sym) > 0 && l == 0 {
					t.Fatalf("used symbol %d has no code", sym)
				}
			}
			if got := kraft(tree.Lengths()); got != 1<<15 {
				t.Errorf("Kraft sum = %d/32768, want complete code", got)
			}
			if tree.NumCodes() < tt.minCodes {
				t.Errorf("NumCodes() = %d < %d", tree.NumCodes(), tt.minCodes)
			}
		})
	}
}

func TestTreeSingleSymbolGetsPartner(t *testing.T) {
	tree := NewTree(30, 1, 15)
	tree.AddN(0, 10)
	tree.Build()
	l := tree.Lengths()
	if l[0] != 1 || l[1] != 1 {
		t.Errorf("lengths = %v, want two 1-bit codes", l[:3])
	}
	if tree.NumCodes() != 2 {
		t.Errorf("NumCodes() = %d", tree.NumCodes())
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	tree := NewTree(286, 257, 15)
	msg := make([]int, 5000)
	for i := range msg {
		// Geometric-ish distribution produces long codes.
		s := 0
		for s < 285 && rng.Intn(3) == 0 {
			s++
		}
		msg[i] = s
		tree.Add(s)
	}
	tree.Build()
	tree.BuildCodes()

	var buf bytes.Buffer
	w := bitstream.NewWriter(&buf)
	for _, s := range msg {
		tree.Encode(w, s)
	}
	w.AlignToByte()
	w.Flush()
	if got, want := buf.Len(), (tree.EncodedBits()+7)/8; got != want {
		t.Errorf("encoded %d bytes, EncodedBits predicts %d", got, want)
	}

	dec, err := NewDecoder(tree.Lengths())
	if err != nil {
		t.Fatal(err)
	}
	r := bitstream.NewReader(bytes.NewReader(buf.Bytes()))
	for i, want := range msg {
		got, err := dec.Decode(r)
		if err != nil {
			t.Fatalf("symbol %d: %v", i, err)
		}
		if got != want {
			t.Fatalf("symbol %d: got %d, want %d", i, got, want)
		}
	}
}

func TestWriteLengthsMatchesCounts(t *testing.T) {
	lit := NewTree(286, 257, 15)
	for i := 0; i < 40; i++ {
		lit.AddN(i*7%286, i+1)
	}
	lit.Add(256)
	lit.Build()
	lit.BuildCodes()

	bl := NewTree(19, 4, 7)
	lit.CountLengthCodes(bl)
	bl.Build()
	bl.BuildCodes()

	var buf bytes.Buffer
	w := bitstream.NewWriter(&buf)
	lit.WriteLengths(w, bl)
	w.AlignToByte()
	w.Flush()

	// Decode the transmitted lengths back.
	dec, err := NewDecoder(bl.Lengths())
	if err != nil {
		t.Fatal(err)
	}
	r := bitstream.NewReader(bytes.NewReader(buf.Bytes()))
	var got []uint8
	for len(got) < lit.NumCodes() {
		sym, err := dec.Decode(r)
		if err != nil {
			t.Fatal(err)
		}
		switch sym {
		case RepeatPrevious:
			n, _ := r.ReadBits(2)
			prev := got[len(got)-1]
			for range n + 3 {
				got = append(got, prev)
			}
		case RepeatZero:
			n, _ := r.ReadBits(3)
			got = append(got, make([]uint8, n+3)...)
		case RepeatZeroLong:
			n, _ := r.ReadBits(7)
			got = append(got, make([]uint8, n+11)...)
		default:
			got = append(got, uint8(sym))
		}
	}
	if !bytes.Equal(got, lit.Lengths()[:lit.NumCodes()]) {
		t.Errorf("decoded lengths differ from the tree")
	}
}

func TestNewDecoderRejects(t *testing.T) {
	tests := []struct {
		name    string
		lengths []uint8
	}{
		{"too long", []uint8{16, 1}},
		{"over-subscribed", []uint8{1, 1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewDecoder(tt.lengths); !errors.Is(err, ErrInvalidLengths) {
				t.Errorf("NewDecoder() error = %v", err)
			}
		})
	}
}

func TestDecoderIncompleteCode(t *testing.T) {
	dec, err := NewDecoder([]uint8{1})
	if err != nil {
		t.Fatal(err)
	}
	r := bitstream.NewReader(bytes.NewReader([]byte{0x02, 0x00}))
	if sym, err := dec.Decode(r); err != nil || sym != 0 {
		t.Fatalf("Decode() = %d, %v", sym, err)
	}
	if _, err := dec.Decode(r); !errors.Is(err, ErrInvalidCode) {
		t.Errorf("unused code error = %v", err)
	}
}

func TestDecoderNeedBits(t *testing.T) {
	lengths := make([]uint8, 20)
	for i := range lengths {
		lengths[i] = 5
	}
	lengths = append(lengths, 12, 12)
	dec, err := NewDecoder(lengths)
	if err != nil {
		t.Fatal(err)
	}
	r := bitstream.NewReader(bytes.NewReader(nil))
	if _, err := dec.Decode(r); !errors.Is(err, ErrNeedBits) {
		t.Errorf("empty input error = %v", err)
	}
}
