package domain

import (
	"context"
	goerrors "errors"
	"fmt"
	"syscall"

	"github.com/grailbio/base/errors"
)

// IOError is a read, write, flush, or setup failure of a file handle.
// Code carries the native error number when one is available.
type IOError struct {
	Op   string // "write", "read", "fdatasync", "FlushFileBuffers", ...
	Path string
	Code syscall.Errno
	Err  error
}

func (e *IOError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("io error: %s %s: error code %d: %v", e.Op, e.Path, uintptr(e.Code), e.Err)
	}
	return fmt.Sprintf("io error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError wraps err, extracting its errno if it carries one.
func NewIOError(op, path string, err error) error {
	ioErr := &IOError{Op: op, Path: path, Err: err}
	var errno syscall.Errno
	if goerrors.As(err, &errno) {
		ioErr.Code = errno
	}
	return ioErr
}

// AsIOError reports whether err's chain holds an *IOError.
func AsIOError(err error) (*IOError, bool) {
	var ioErr *IOError
	ok := goerrors.As(err, &ioErr)
	return ioErr, ok
}

// CorruptionError reports the first byte that did not read back as written.
type CorruptionError struct {
	Path   string
	Offset int64
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("data verification failed at position %d of %s", e.Offset, e.Path)
}

// Corruption returns an Integrity error naming the absolute offset.
func Corruption(path string, offset int64) error {
	return errors.E(errors.Integrity, &CorruptionError{Path: path, Offset: offset})
}

// CorruptionOffset returns the offset carried by a corruption error.
func CorruptionOffset(err error) (int64, bool) {
	var ce *CorruptionError
	if !goerrors.As(err, &ce) {
		return 0, false
	}
	return ce.Offset, true
}

func ArgumentError(format string, args ...interface{}) error {
	return errors.E(errors.Invalid, fmt.Sprintf(format, args...))
}

func PlatformUnsupported(goos string) error {
	return errors.E(errors.NotSupported, "unsupported operating system:", goos)
}

func KeyNotFound(fileID string) error {
	return errors.E(errors.NotExist, "no key found for file ID:", fileID)
}

func Disposed(name string) error {
	return errors.E(errors.Precondition, name, "used after disposal")
}

// Canceled classifies a context error as Canceled or Timeout.
func Canceled(err error, msg string) error {
	if goerrors.Is(err, context.DeadlineExceeded) {
		return errors.E(errors.Timeout, msg, err)
	}
	return errors.E(errors.Canceled, msg, err)
}
