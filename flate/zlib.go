// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flate

import "fmt"

const (
	zlibDeflate   = 8
	zlibMaxWindow = 65535
	zlibDictFlag  = 0x20
)

// zlibHeader returns the CMF/FLG pair for a deflate stream with a 32 KiB
// window compressed at level.
func zlibHeader(level int) uint16 {
	h := (zlibDeflate + 7<<4) << 8
	h |= ((level >> 2) & 3) << 6
	h += 31 - h%31
	return uint16(h)
}

// checkZlibHeader validates a CMF/FLG pair.
func checkZlibHeader(h uint16) error {
	if h%31 != 0 {
		return fmt.Errorf("%w: bad zlib header check bits", ErrFormat)
	}
	if method := h >> 8 & 0xf; method != zlibDeflate {
		return fmt.Errorf("%w: %w: compression method %d", ErrFormat, ErrUnsupported, method)
	}
	if window := 1 << (h>>12 + 8); window > zlibMaxWindow {
		return fmt.Errorf("%w: window size %d", ErrFormat, window)
	}
	if h&zlibDictFlag != 0 {
		return fmt.Errorf("%w: %w: preset dictionary", ErrFormat, ErrUnsupported)
	}
	return nil
}
