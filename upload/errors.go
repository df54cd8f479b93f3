package upload

import (
	"errors"
	"fmt"
)

var (
	ErrNotMultipart    = errors.New("request is not multipart/form-data")
	ErrMissingBoundary = errors.New("multipart boundary is missing")
	ErrMissingFilename = errors.New("file name is missing")
)

// TransportError is returned when reading the inbound stream fails: the
// client went away or the multipart framing is broken.
type TransportError struct {
	Filename string
	Err      error
}

func (e *TransportError) Error() string {
	if e.Filename == "" {
		return fmt.Sprintf("transport: %v", e.Err)
	}
	return fmt.Sprintf("transport: reading %s: %v", e.Filename, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StorageError is returned when the destination sink cannot be created,
// written or flushed.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
