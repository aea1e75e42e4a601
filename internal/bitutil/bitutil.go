// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bitutil holds small bit manipulation helpers shared by the
// Huffman coder and the DEFLATE codec.
package bitutil

// CodeLengthOrder is the order in which code length code lengths are
// transmitted in a dynamic block header.
var CodeLengthOrder = [19]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

var reverse8 [256]uint8

func init() {
	for i := range reverse8 {
		var r uint8
		for b := 0; b < 8; b++ {
			if i&(1<<b) != 0 {
				r |= 0x80 >> b
			}
		}
		reverse8[i] = r
	}
}

// Reverse16 reverses all 16 bits of v.
func Reverse16(v uint16) uint16 {
	return uint16(reverse8[v&0xff])<<8 | uint16(reverse8[v>>8])
}

// Reverse returns the low n bits of v in reverse order.
func Reverse(v uint16, n uint) uint16 {
	return Reverse16(v) >> (16 - n)
}
