package static

import (
	"errors"
	"fmt"
)

var (
	ErrPathTraversal = errors.New("path escapes document root")
	ErrNotFound      = errors.New("file not found")
	ErrIO            = errors.New("file read failed")

	// ErrTruncated reports a file that ended before its stat size
	ErrTruncated = fmt.Errorf("%w: file truncated", ErrIO)
)
