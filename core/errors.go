package core

import (
	"errors"
	"fmt"
)

var (
	ErrEmbeddingFailed   = errors.New("embedding failed")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrIndexClosed       = errors.New("index closed")
)

// OpError annotates a failure with the operation and the record it belongs to.
type OpError struct {
	Op  string
	ID  string
	Err error
}

func (e *OpError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s [id=%s]: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func NewOpError(op, id string, err error) *OpError {
	return &OpError{Op: op, ID: id, Err: err}
}
