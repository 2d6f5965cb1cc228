package dataset

import (
	"errors"
	"fmt"
)

// ErrInvalidPath indicates the dataset path is empty or not a directory.
var ErrInvalidPath = errors.New("invalid dataset path")

// MissingFileError indicates a required dataset file is absent.
type MissingFileError struct {
	Path string
	Err  error
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("missing dataset file %s", e.Path)
}

func (e *MissingFileError) Unwrap() error { return e.Err }

// InvalidFileError indicates a dataset file exists but cannot be used.
type InvalidFileError struct {
	Path string
	Err  error
}

func (e *InvalidFileError) Error() string {
	return fmt.Sprintf("invalid dataset file %s: %v", e.Path, e.Err)
}

func (e *InvalidFileError) Unwrap() error { return e.Err }
