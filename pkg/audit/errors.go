package audit

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by a Recorder or Storage after Close.
var ErrClosed = errors.New("decision log closed")

// StorageError reports which backend operation failed, such as
// ("sqlite", "store") or ("memory", "query").
type StorageError struct {
	Backend   string
	Operation string
	Cause     error
}

func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("decision log %s %s: %v", e.Backend, e.Operation, e.Cause)
}

func (e *StorageError) Unwrap() error { return e.Cause }
