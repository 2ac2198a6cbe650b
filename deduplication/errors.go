package deduplication

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks articles or requests that lack data a detection step requires
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidThreshold is returned for similarity thresholds outside (0, 1]
	ErrInvalidThreshold = errors.New("similarity threshold must be in (0, 1]")
	// ErrDanglingCanonical is returned when a mapping points at an article that is itself a duplicate
	ErrDanglingCanonical = errors.New("canonical article is marked as duplicate")
)

// StorageError wraps a failure of the storage collaborator during a pass
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
