package store

import (
	"errors"
	"fmt"

	"github.com/leftmike/sortkv/kv"
)

var (
	ErrInvalidBatchOperation = errors.New("store: invalid batch operation")
	ErrBackendUnavailable    = errors.New("store: backend unavailable")
)

// BackendError wraps an error returned by the backend while performing Op.
type BackendError struct {
	Op  string
	Err error
}

func (be *BackendError) Error() string {
	return fmt.Sprintf("store: %s: %s", be.Op, be.Err)
}

func (be *BackendError) Unwrap() error {
	return be.Err
}

// BatchError identifies the first operation of a batch which could not be validated or
// encoded.
type BatchError struct {
	Index int
	Op    Op
	Err   error
}

func (be *BatchError) Error() string {
	return fmt.Sprintf("store: batch operation %d: %s", be.Index, be.Err)
}

func (be *BatchError) Unwrap() error {
	return be.Err
}

func backendError(op string, err error) error {
	if errors.Is(err, kv.ErrClosed) {
		return fmt.Errorf("store: %s: %w", op, ErrBackendUnavailable)
	}
	return &BackendError{Op: op, Err: err}
}
