package mocks

import (
	"context"
	"sync"

	"objectstorage/internal/core/domain"
)

// MockKeyStore keeps keys in memory and rejects a retrieval whose master
// key differs from the one used to store.
type MockKeyStore struct {
	StoreKeyFunc    func(ctx context.Context, fileID, filePrivateKey, masterKey string) (string, error)
	RetrieveKeyFunc func(ctx context.Context, fileID, masterKey string) (string, error)

	mu      sync.Mutex
	entries map[string][2]string
	Stores  int
}

func NewMockKeyStore() *MockKeyStore {
	m := &MockKeyStore{entries: make(map[string][2]string)}
	m.StoreKeyFunc = func(_ context.Context, fileID, filePrivateKey, masterKey string) (string, error) {
		m.entries[fileID] = [2]string{filePrivateKey, masterKey}
		return filePrivateKey, nil
	}
	m.RetrieveKeyFunc = func(_ context.Context, fileID, masterKey string) (string, error) {
		e, ok := m.entries[fileID]
		if !ok {
			return "", domain.KeyNotFound(fileID)
		}
		if e[1] != masterKey {
			return "", domain.ArgumentError("wrong master key")
		}
		return e[0], nil
	}
	return m
}

func (m *MockKeyStore) StoreKey(ctx context.Context, fileID, filePrivateKey, masterKey string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stores++
	return m.StoreKeyFunc(ctx, fileID, filePrivateKey, masterKey)
}

func (m *MockKeyStore) RetrieveKey(ctx context.Context, fileID, masterKey string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RetrieveKeyFunc(ctx, fileID, masterKey)
}
