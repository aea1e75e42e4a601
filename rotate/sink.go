// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rotate

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
)

// ErrClosed is returned by writes to a closed FileSink.
var ErrClosed = errors.New("rotate: sink is closed")

// FileSink is a Sink writing to rotating log files. It is not safe for
// concurrent use; wrap it with Locked.
type FileSink struct {
	cfg      Config
	provider *Provider
	policy   Policy
	log      *slog.Logger

	file    *os.File
	path    string
	state   *FileState
	started bool
	closed  bool
}

// NewFileSink creates the log directory if needed and removes files beyond
// cfg.MaxFiles. No file is opened until the first write.
func NewFileSink(cfg Config) (*FileSink, error) {
	cfg = cfg.withDefaults()
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, err
	}

	s := &FileSink{
		cfg:      cfg,
		provider: NewProvider(cfg.Dir, cfg.Prefix, cfg.Ext, cfg.Now().Location()),
		policy:   Policy{MaxFileSize: cfg.MaxFileSize},
		log:      cfg.Logger,
	}
	s.deleteOld()
	return s, nil
}

// Provider returns the Provider naming the sink's files.
func (s *FileSink) Provider() *Provider { return s.provider }

// Path returns the path of the file currently written to, or "" when no
// file is open.
func (s *FileSink) Path() string { return s.path }

// Write appends p to the current file, switching files first if the policy
// requires it. A failure to compress the previous file is returned after p
// has been written to the new one.
func (s *FileSink) Write(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}

	rotateErr := s.prepare()
	if s.file == nil {
		return 0, rotateErr
	}

	n, err := s.file.Write(p)
	s.state.Size += int64(n)
	if err != nil {
		return n, multierror.Append(rotateErr, err)
	}
	return n, rotateErr
}

// Rotate closes and compresses the current file. The next write opens a
// new one.
func (s *FileSink) Rotate() error {
	if s.closed {
		return ErrClosed
	}
	if s.file == nil {
		return nil
	}
	return s.retire()
}

// Close closes the current file without compressing it. A later FileSink
// over the same directory resumes it.
func (s *FileSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file, s.state, s.path = nil, nil, ""
	return err
}

func (s *FileSink) prepare() error {
	now := s.cfg.Now()
	if !s.policy.NeedsNewFile(s.state, now) {
		return nil
	}

	var result *multierror.Error
	if s.file != nil {
		if err := s.retire(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := s.open(now); err != nil {
		result = multierror.Append(result, err)
	}
	s.deleteOld()
	return result.ErrorOrNil()
}

// open starts the next file. The first file opened by a sink may be the
// newest existing one, if it is from today and still has room.
func (s *FileSink) open(now time.Time) error {
	if !s.started {
		s.started = true
		if ok, err := s.resume(now); ok || err != nil {
			return err
		}
	}

	next, err := s.provider.Next(now)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(next.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}

	s.file, s.path = f, next.Path
	s.state = &FileState{Created: now}
	s.log.Debug("opened log file", slog.String("path", next.Path))
	return nil
}

func (s *FileSink) resume(now time.Time) (bool, error) {
	last, ok, err := s.provider.Last()
	if err != nil || !ok || last.Compressed || !sameDay(last.Date, now) {
		return false, err
	}

	f, err := os.OpenFile(last.Path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return false, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return false, err
	}

	state := &FileState{Created: now, Size: stat.Size()}
	if s.policy.NeedsNewFile(state, now) {
		f.Close()
		return false, nil
	}

	s.file, s.path, s.state = f, last.Path, state
	s.log.Debug("resumed log file", slog.String("path", last.Path), slog.Int64("size", stat.Size()))
	return true, nil
}

// retire closes the current file and compresses it unless disabled.
func (s *FileSink) retire() error {
	path, size := s.path, s.state.Size
	err := s.file.Close()
	s.file, s.state, s.path = nil, nil, ""
	if err != nil {
		s.log.Error("close log file", slog.String("path", path), slog.Any("err", err))
		return err
	}

	if s.cfg.NoCompress {
		s.log.Info("rotated log file", slog.String("path", path), slog.Int64("size", size))
		return nil
	}

	dest, err := CompressFile(path, s.cfg.Archive...)
	if err != nil {
		s.log.Error("compress log file", slog.String("path", path), slog.Any("err", err))
		return err
	}
	s.log.Info("rotated log file",
		slog.String("path", path),
		slog.String("archive", dest),
		slog.Int64("size", size))
	return nil
}

func (s *FileSink) deleteOld() {
	n, err := s.provider.DeleteOld(s.cfg.MaxFiles)
	if err != nil {
		s.log.Warn("delete old log files", slog.String("dir", s.cfg.Dir), slog.Any("err", err))
	}
	if n > 0 {
		s.log.Debug("deleted old log files", slog.String("dir", s.cfg.Dir), slog.Int("count", n))
	}
}
