package compressor

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned for inputs that cannot be decoded or re-encoded.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	ErrInvalidMaxSize   = errors.New("max size must be positive")
	ErrInvalidDimension = errors.New("max width or height must be positive")
	ErrInvalidIteration = errors.New("max iteration must be positive")
	ErrInvalidQuality   = errors.New("initial quality must be between 0 and 1")
)

// Error wraps a failure of the compression routine for one file.
type Error struct {
	FileName string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("compress %s: %v", e.FileName, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
