// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package checksum implements the Adler-32 checksum carried in zlib trailers.
package checksum

const (
	// Init is the checksum of empty input.
	Init = 1

	mod = 65521
	// nmax is the largest n such that 255*n*(n+1)/2 + (n+1)*(mod-1) <= 2^32-1,
	// rounded down for a margin.
	nmax = 3800
)

// Update returns the checksum of the data already summed into sum followed by p.
func Update(sum uint32, p []byte) uint32 {
	s1, s2 := sum&0xffff, sum>>16
	for len(p) > 0 {
		var q []byte
		if len(p) > nmax {
			p, q = p[:nmax], p[nmax:]
		}
		for _, b := range p {
			s1 += uint32(b)
			s2 += s1
		}
		s1 %= mod
		s2 %= mod
		p = q
	}
	return s2<<16 | s1
}

// Checksum returns the Adler-32 checksum of data.
func Checksum(data []byte) uint32 {
	return Update(Init, data)
}
