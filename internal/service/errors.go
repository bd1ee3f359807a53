package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("file not found")
	ErrQuotaExceeded      = errors.New("upload limit exceeded")
	ErrNotWhitelisted     = errors.New("user not whitelisted")
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrUserExists         = errors.New("username already registered")
	ErrUserLimitReached   = errors.New("user limit reached")
	ErrBusy               = errors.New("service busy, try again")
)

// ValidationError rejects input before any I/O happens.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// StorageError wraps an object store failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
