// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rotate

import "time"

// FileState is what Policy looks at to decide whether the current file is
// still usable.
type FileState struct {
	Created time.Time // Date the file was opened for
	Size    int64     // Bytes written so far
}

// Policy decides when to switch to a new log file.
type Policy struct {
	MaxFileSize int64
}

// NeedsNewFile reports whether a new file must be opened before writing at
// time now. A nil cur means no file is open.
func (p Policy) NeedsNewFile(cur *FileState, now time.Time) bool {
	switch {
	case cur == nil:
		return true
	case p.MaxFileSize > 0 && cur.Size >= p.MaxFileSize:
		return true
	default:
		return !sameDay(cur.Created, now)
	}
}

func sameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
