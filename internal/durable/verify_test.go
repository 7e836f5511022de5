package durable

import (
	"bytes"
	"context"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"objectstorage/internal/core/domain"
)

func TestVerificationBuffer_Verify(t *testing.T) {
	written := []byte("0123456789abcdef")

	tests := []struct {
		name       string
		onDisk     []byte
		position   int64
		original   []byte
		wantOffset int64
		wantErr    bool
	}{
		{name: "match", onDisk: written, position: 0, original: written},
		{name: "match at position", onDisk: written, position: 10, original: written[10:]},
		{name: "first byte differs", onDisk: []byte("X123456789abcdef"), position: 0, original: written, wantOffset: 0, wantErr: true},
		{name: "later byte differs", onDisk: []byte("0123456789abXdef"), position: 4, original: written[4:], wantOffset: 12, wantErr: true},
		{name: "short file", onDisk: written[:8], position: 0, original: written, wantOffset: 8, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewVerificationBuffer("test.bin", 512, 512)
			err := v.Verify(context.Background(), bytes.NewReader(tt.onDisk), tt.position, tt.original)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(errors.Integrity, err))
			off, ok := domain.CorruptionOffset(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantOffset, off)
		})
	}
}

func TestVerificationBuffer_Limits(t *testing.T) {
	v := NewVerificationBuffer("test.bin", 512, 512)

	err := v.Verify(context.Background(), bytes.NewReader(nil), 0, make([]byte, 513))
	assert.True(t, errors.Is(errors.Invalid, err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = v.Verify(ctx, bytes.NewReader([]byte("a")), 0, []byte("a"))
	assert.True(t, errors.Is(errors.Canceled, err))

	v.Dispose()
	v.Dispose()
	err = v.Verify(context.Background(), bytes.NewReader([]byte("a")), 0, []byte("a"))
	assert.True(t, errors.Is(errors.Precondition, err))
}
