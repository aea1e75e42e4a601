// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rotate writes log records to a series of dated files and packs
// every file it rotates out into a single-entry ZIP archive.
//
// Files are named <prefix>-YYYY-MM-DD-NNN<ext>. A new file is started when
// the current one reaches Config.MaxFileSize or the calendar date changes;
// the previous file is then compressed to <name>.zip and removed. Only the
// newest Config.MaxFiles files are kept.
//
//	sink, err := rotate.NewFileSink(rotate.Config{Dir: "logs", Prefix: "app"})
//	if err != nil {
//		return err
//	}
//	defer sink.Close()
//
//	logger := slog.New(slog.NewTextHandler(rotate.Safe(rotate.Locked(sink)), nil))
package rotate

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/lemon4ksan/logzip"
)

// Defaults applied to a zero Config.
const (
	DefaultPrefix      = "log"
	DefaultExt         = ".log"
	DefaultMaxFileSize = 10 << 20
	DefaultMaxFiles    = 30
)

// Config controls a FileSink.
type Config struct {
	Dir         string // Directory holding the log files, "." if empty
	Prefix      string // File name prefix
	Ext         string // Extension of uncompressed files, including the dot
	MaxFileSize int64  // Size at which the current file is rotated out
	MaxFiles    int    // Number of files kept, negative for no limit
	NoCompress  bool   // Leave rotated files uncompressed

	// Archive configures the archives of rotated files. The default packs
	// them at logzip.DeflateMaximum.
	Archive []logzip.ArchiveOption

	Logger *slog.Logger
	Now    func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Dir == "" {
		c.Dir = "."
	}
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
	if c.Ext == "" {
		c.Ext = DefaultExt
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.MaxFiles == 0 {
		c.MaxFiles = DefaultMaxFiles
	}
	if c.Archive == nil {
		c.Archive = []logzip.ArchiveOption{logzip.WithLevel(logzip.DeflateMaximum)}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Sink receives formatted log records.
type Sink interface {
	io.Writer
	io.Closer
}

type chain []Sink

// Chain returns a Sink writing every record to each of sinks in order.
// A failing sink does not stop the others; their errors are combined.
func Chain(sinks ...Sink) Sink {
	return chain(sinks)
}

func (c chain) Write(p []byte) (int, error) {
	var result *multierror.Error
	for _, s := range c {
		if _, err := s.Write(p); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c chain) Close() error {
	var result *multierror.Error
	for _, s := range c {
		if err := s.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

type locked struct {
	mu   sync.Mutex
	sink Sink
}

// Locked serializes calls to s so it can be shared between goroutines.
func Locked(s Sink) Sink {
	return &locked{sink: s}
}

func (l *locked) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sink.Write(p)
}

func (l *locked) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sink.Close()
}

type safe struct {
	sink   Sink
	closed bool
}

// Safe returns a Sink that never fails a write, so a broken log file cannot
// take the application down with it. Integrity failures of a rotated-out
// archive (logzip.ErrChecksum) are still reported. Writes after Close are
// dropped.
//
// The returned Sink is not safe for concurrent use; wrap it with Locked.
func Safe(s Sink) Sink {
	return &safe{sink: s}
}

func (s *safe) Write(p []byte) (int, error) {
	if s.closed {
		return len(p), nil
	}
	if _, err := s.sink.Write(p); errors.Is(err, logzip.ErrChecksum) {
		return 0, err
	}
	return len(p), nil
}

func (s *safe) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.sink.Close(); errors.Is(err, logzip.ErrChecksum) {
		return err
	}
	return nil
}
