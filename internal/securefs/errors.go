// Package securefs provides filesystem writes confined to a base
// directory.
package securefs

import (
	"github.com/tphakala/plantdoc/internal/errors"
)

var (
	// ErrPathTraversal indicates a path that escapes the base directory.
	ErrPathTraversal = errors.NewStd("security error: path attempts to traverse outside base directory")

	// ErrInvalidPath indicates an empty or absolute path where a relative one is required.
	ErrInvalidPath = errors.NewStd("security error: invalid path specification")
)
