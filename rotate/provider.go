// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rotate

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
)

const dateLayout = "2006-01-02"

// LogFile describes a log file found in, or planned for, the log directory.
type LogFile struct {
	Path       string
	Date       time.Time // Calendar date encoded in the name
	Index      int       // Sequence number within the date
	Compressed bool      // File has been packed into an archive
}

// Provider names log files and enumerates the existing ones.
type Provider struct {
	dir    string
	prefix string
	ext    string
	loc    *time.Location
	re     *regexp.Regexp
}

// NewProvider returns a Provider for files named <prefix>-YYYY-MM-DD-NNN<ext>
// in dir. Dates in file names are interpreted in loc.
func NewProvider(dir, prefix, ext string, loc *time.Location) *Provider {
	if loc == nil {
		loc = time.Local
	}
	pattern := fmt.Sprintf(`^%s-(\d{4}-\d{2}-\d{2})-(\d+)%s(%s)?$`,
		regexp.QuoteMeta(prefix), regexp.QuoteMeta(ext), regexp.QuoteMeta(ArchiveExt))

	return &Provider{
		dir:    dir,
		prefix: prefix,
		ext:    ext,
		loc:    loc,
		re:     regexp.MustCompile(pattern),
	}
}

// Name returns the path of the uncompressed file for the given date and
// index. Indices are padded to three digits.
func (p *Provider) Name(date time.Time, index int) string {
	name := fmt.Sprintf("%s-%s-%03d%s", p.prefix, date.In(p.loc).Format(dateLayout), index, p.ext)
	return filepath.Join(p.dir, name)
}

// List returns the log files in the directory, oldest first. Files that do
// not follow the naming scheme are ignored.
func (p *Provider) List() ([]LogFile, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, err
	}

	var files []LogFile
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		m := p.re.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		date, err := time.ParseInLocation(dateLayout, m[1], p.loc)
		if err != nil {
			continue
		}
		index, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		files = append(files, LogFile{
			Path:       filepath.Join(p.dir, entry.Name()),
			Date:       date,
			Index:      index,
			Compressed: m[3] != "",
		})
	}

	slices.SortFunc(files, func(a, b LogFile) int {
		return cmp.Or(a.Date.Compare(b.Date), cmp.Compare(a.Index, b.Index))
	})
	return files, nil
}

// Last returns the newest log file, if any.
func (p *Provider) Last() (LogFile, bool, error) {
	files, err := p.List()
	if err != nil || len(files) == 0 {
		return LogFile{}, false, err
	}
	return files[len(files)-1], true, nil
}

// Next returns the file that follows the newest existing one. The index
// continues within the same date and restarts at zero on a new date.
func (p *Provider) Next(now time.Time) (LogFile, error) {
	last, ok, err := p.Last()
	if err != nil {
		return LogFile{}, err
	}

	date := p.day(now)
	index := 0
	if ok && last.Date.Equal(date) {
		index = last.Index + 1
	}
	return LogFile{Path: p.Name(date, index), Date: date, Index: index}, nil
}

// DeleteOld removes the oldest files so that at most keep remain. It returns
// the number of files removed; failures are collected and do not stop the
// remaining deletions.
func (p *Provider) DeleteOld(keep int) (int, error) {
	if keep < 0 {
		return 0, nil
	}
	files, err := p.List()
	if err != nil {
		return 0, err
	}
	if len(files) <= keep {
		return 0, nil
	}

	var (
		removed int
		result  *multierror.Error
	)
	for _, f := range files[:len(files)-keep] {
		if err := os.Remove(f.Path); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		removed++
	}
	return removed, result.ErrorOrNil()
}

func (p *Provider) day(t time.Time) time.Time {
	y, m, d := t.In(p.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, p.loc)
}
