package tasks

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPageOutOfRange  = errors.New("page out of range")
	ErrInvalidPageSize = errors.New("page size must be at least 1")
)

// ValidationError is returned when required fields are empty.
type ValidationError struct {
	Missing []string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("required fields missing: %s", strings.Join(e.Missing, ", "))
}

type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.ID)
}

// DecodeError wraps a failure to read an import file.
type DecodeError struct {
	Source string
	Err    error
}

func (e DecodeError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("decode: %v", e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Source, e.Err)
}

func (e DecodeError) Unwrap() error { return e.Err }

// PersistenceError wraps a storage read or write failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e PersistenceError) Unwrap() error { return e.Err }
