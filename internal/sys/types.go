// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sys maps between Go file modes and the host-dependent external
// attributes of a central directory record.
package sys

import "io/fs"

// HostSystem is the upper byte of the "version made by" field.
type HostSystem uint8

const (
	HostSystemFAT    HostSystem = 0  // MS-DOS and OS/2
	HostSystemUNIX   HostSystem = 3  // UNIX
	HostSystemNTFS   HostSystem = 10 // Windows NTFS
	HostSystemVFAT   HostSystem = 14 // VFAT
	HostSystemDarwin HostSystem = 19 // OS X (Darwin)
)

// DefaultHostSystem is written into every record this package produces.
const DefaultHostSystem = HostSystemUNIX

func (h HostSystem) String() string {
	switch h {
	case HostSystemFAT:
		return "MS-DOS/OS2 (FAT)"
	case HostSystemUNIX:
		return "UNIX"
	case HostSystemNTFS:
		return "Windows NTFS"
	case HostSystemVFAT:
		return "VFAT"
	case HostSystemDarwin:
		return "OS X (Darwin)"
	}
	return "Unknown"
}

// IsUnix reports whether the upper 16 bits of the external attributes hold
// a POSIX mode.
func (h HostSystem) IsUnix() bool {
	return h == HostSystemUNIX || h == HostSystemDarwin
}

// POSIX file type bits.
const (
	S_IFMT  = 0170000
	S_IFREG = 0100000
	S_IFDIR = 0040000
	S_IFLNK = 0120000
)

// DOS attribute bits stored in the low byte.
const (
	dosReadOnly  = 0x01
	dosDirectory = 0x10
	dosArchive   = 0x20
)

// ExternalAttributes encodes mode for a record made by a UNIX host. The DOS
// bits are set as well so that DOS-minded readers recognise directories.
func ExternalAttributes(mode fs.FileMode) uint32 {
	attrs := uint32(mode.Perm())
	switch {
	case mode.IsDir():
		attrs |= S_IFDIR
	case mode&fs.ModeSymlink != 0:
		attrs |= S_IFLNK
	default:
		attrs |= S_IFREG
	}
	attrs <<= 16

	if mode.IsDir() {
		attrs |= dosDirectory
	} else {
		attrs |= dosArchive
	}
	if mode&0200 == 0 {
		attrs |= dosReadOnly
	}
	return attrs
}

// FileMode decodes the external attributes of a record made by host.
func FileMode(host HostSystem, attrs uint32, isDir bool) fs.FileMode {
	if host.IsUnix() && attrs>>16 != 0 {
		unixMode := attrs >> 16
		mode := fs.FileMode(unixMode & 0777)
		switch unixMode & S_IFMT {
		case S_IFDIR:
			mode |= fs.ModeDir
		case S_IFLNK:
			mode |= fs.ModeSymlink
		}
		if isDir {
			mode |= fs.ModeDir
		}
		return mode
	}

	mode := fs.FileMode(0644)
	if isDir || attrs&dosDirectory != 0 {
		mode = 0755 | fs.ModeDir
	}
	if attrs&dosReadOnly != 0 {
		mode &^= 0222
	}
	return mode
}
