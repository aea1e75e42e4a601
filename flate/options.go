// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flate

import "fmt"

// Compression levels.
const (
	NoCompression      = 0
	BestSpeed          = 1
	DefaultCompression = 6
	BestCompression    = 9
)

type config struct {
	level int
	raw   bool
}

// Option configures a Writer or Reader.
type Option func(*config)

// WithLevel sets the compression level, 0 (stored) through 9 (smallest).
// Readers ignore it.
func WithLevel(level int) Option {
	return func(c *config) { c.level = level }
}

// WithRaw disables the zlib header and Adler-32 trailer. ZIP entries are
// stored this way.
func WithRaw() Option {
	return func(c *config) { c.raw = true }
}

func newConfig(opts []Option) (config, error) {
	c := config{level: DefaultCompression}
	for _, opt := range opts {
		opt(&c)
	}
	if c.level < NoCompression || c.level > BestCompression {
		return c, fmt.Errorf("%w: %d", ErrLevel, c.level)
	}
	return c, nil
}
