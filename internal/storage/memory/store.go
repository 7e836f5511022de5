// Package memory keeps key records in a process-local map.
package memory

import (
	"context"
	"sync"

	"objectstorage/internal/core/domain"
	"objectstorage/internal/storage"
)

type Store struct {
	mu      sync.RWMutex
	records map[string]domain.EncryptionKey
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{records: make(map[string]domain.EncryptionKey)}
}

func (s *Store) Put(ctx context.Context, rec domain.EncryptionKey) error {
	if err := storage.CheckContext(ctx); err != nil {
		return err
	}
	if rec.FileID == "" {
		return domain.ArgumentError("key record has no file id")
	}
	s.mu.Lock()
	s.records[rec.FileID] = rec
	s.mu.Unlock()
	return nil
}

func (s *Store) Get(ctx context.Context, fileID string) (domain.EncryptionKey, error) {
	if err := storage.CheckContext(ctx); err != nil {
		return domain.EncryptionKey{}, err
	}
	s.mu.RLock()
	rec, ok := s.records[fileID]
	s.mu.RUnlock()
	if !ok {
		return domain.EncryptionKey{}, domain.KeyNotFound(fileID)
	}
	return rec, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	clear(s.records)
	s.mu.Unlock()
	return nil
}
