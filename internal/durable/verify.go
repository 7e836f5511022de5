package durable

import (
	"bytes"
	"context"
	"io"

	"objectstorage/internal/core/domain"
	"objectstorage/internal/platform"
)

// VerificationBuffer reads written data back and compares it against
// what was meant to be written. It is not safe for concurrent use.
type VerificationBuffer struct {
	path     string
	buf      []byte
	disposed bool
}

func NewVerificationBuffer(path string, size, align int) *VerificationBuffer {
	return &VerificationBuffer{
		path: path,
		buf:  platform.AlignedBuffer(size, align),
	}
}

// Verify reads len(original) bytes from src at position and fails with an
// Integrity error naming the absolute offset of the first difference.
// Bytes missing from the file count as a difference.
func (v *VerificationBuffer) Verify(ctx context.Context, src io.ReaderAt, position int64, original []byte) error {
	if v.disposed {
		return domain.Disposed("verification buffer")
	}
	if len(original) > len(v.buf) {
		return domain.ArgumentError("verification of %d bytes exceeds buffer size %d", len(original), len(v.buf))
	}
	if err := ctx.Err(); err != nil {
		return domain.Canceled(err, "verification")
	}

	got := v.buf[:len(original)]
	n, err := src.ReadAt(got, position)
	if err != nil && err != io.EOF {
		return domain.NewIOError("read-back", v.path, err)
	}
	if bytes.Equal(got[:n], original[:n]) {
		if n < len(original) {
			return domain.Corruption(v.path, position+int64(n))
		}
		return nil
	}
	for i := 0; i < n; i++ {
		if got[i] != original[i] {
			return domain.Corruption(v.path, position+int64(i))
		}
	}
	return nil
}

// Dispose zeroes the buffer. Any later Verify fails.
func (v *VerificationBuffer) Dispose() {
	if v.disposed {
		return
	}
	clear(v.buf)
	v.buf = nil
	v.disposed = true
}
