package store

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed storage errors via errors.Is.
var (
	ErrStorageRead  = errors.New("store: storage read failed")
	ErrStorageWrite = errors.New("store: storage write failed")
)

// ErrSchemaMismatch indicates the storage file's header row differs from the
// fixed column schema.
var ErrSchemaMismatch = errors.New("store: column schema mismatch")

// StorageReadError wraps a failure to read or parse the storage file.
// The operation failed; the caller may retry.
type StorageReadError struct {
	Path string
	Err  error
}

func (e *StorageReadError) Error() string {
	return fmt.Sprintf("store: reading %s: %v", e.Path, e.Err)
}

func (e *StorageReadError) Unwrap() error { return e.Err }

// Is reports whether target is ErrStorageRead.
func (e *StorageReadError) Is(target error) bool { return target == ErrStorageRead }

// StorageWriteError wraps a failure to persist the storage file.
// The previous file content is left untouched.
type StorageWriteError struct {
	Path string
	Err  error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("store: writing %s: %v", e.Path, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }

// Is reports whether target is ErrStorageWrite.
func (e *StorageWriteError) Is(target error) bool { return target == ErrStorageWrite }
