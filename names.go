// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logzip

import (
	"fmt"
	"math"
	"path"
	"strings"
)

// TrimPrefix returns a name preprocessor that strips prefix from every name
// added to an archive. It is typically used to store files relative to the
// directory they were collected from.
func TrimPrefix(prefix string) func(string) string {
	prefix = strings.ReplaceAll(prefix, "\\", "/")
	return func(name string) string {
		return strings.TrimPrefix(strings.ReplaceAll(name, "\\", "/"), prefix)
	}
}

// cleanName normalizes an entry name to the form stored in the archive:
// forward slashes, no leading slash, no "." or ".." elements.
func cleanName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if strings.Contains(name, ":") {
		return "", fmt.Errorf("%w: %q contains a drive separator", ErrInvalidName, name)
	}

	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	switch {
	case name == "":
		return "", fmt.Errorf("%w: empty name", ErrInvalidName)
	case len(name)+1 > math.MaxUint16:
		return "", fmt.Errorf("%w (%d bytes)", ErrFilenameTooLong, len(name))
	}
	return name, nil
}
