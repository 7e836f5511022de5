package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"objectstorage/internal/core/domain"
)

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Put(ctx, domain.EncryptionKey{FileID: "a", EncryptedFilePrivateKey: "one"}))
	rec, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "one", rec.EncryptedFilePrivateKey)

	require.NoError(t, s.Put(ctx, domain.EncryptionKey{FileID: "a", EncryptedFilePrivateKey: "two"}))
	rec, err = s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "two", rec.EncryptedFilePrivateKey)
}

func TestGetMissing(t *testing.T) {
	_, err := New().Get(context.Background(), "nope")
	assert.True(t, errors.Is(errors.NotExist, err), "got %v", err)
}

func TestPutRejectsEmptyID(t *testing.T) {
	err := New().Put(context.Background(), domain.EncryptionKey{})
	assert.True(t, errors.Is(errors.Invalid, err), "got %v", err)
}

func TestCloseDropsRecords(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Put(ctx, domain.EncryptionKey{FileID: "a", EncryptedFilePrivateKey: "one"}))
	require.NoError(t, s.Close())
	_, err := s.Get(ctx, "a")
	assert.True(t, errors.Is(errors.NotExist, err), "got %v", err)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New()
	assert.True(t, errors.Is(errors.Canceled, s.Put(ctx, domain.EncryptionKey{FileID: "a"})))
	_, err := s.Get(ctx, "a")
	assert.True(t, errors.Is(errors.Canceled, err))
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("file-%d", i)
			assert.NoError(t, s.Put(ctx, domain.EncryptionKey{FileID: id, EncryptedFilePrivateKey: id}))
			rec, err := s.Get(ctx, id)
			if assert.NoError(t, err) {
				assert.Equal(t, id, rec.EncryptedFilePrivateKey)
			}
		}(i)
	}
	wg.Wait()
	for i := 0; i < 32; i++ {
		_, err := s.Get(ctx, fmt.Sprintf("file-%d", i))
		assert.NoError(t, err)
	}
}
