package mocks

import (
	"bytes"

	"objectstorage/internal/pkg/crypto/aes"
)

// MockEncryptor defaults to fixed keys and IVs over the real cipher, so
// tests can predict the ciphertext and still round-trip it.
type MockEncryptor struct {
	GenerateKeyFunc  func() ([]byte, error)
	GenerateIVFunc   func() ([]byte, error)
	EncryptChunkFunc func(chunk []byte, key []byte, iv []byte) ([]byte, error)
	DecryptChunkFunc func(encryptedChunk []byte, key []byte, iv []byte) ([]byte, error)
	NewEncrypterFunc func(key []byte, iv []byte) (aes.Encrypter, error)
	NewDecrypterFunc func(key []byte, iv []byte) (aes.Decrypter, error)
}

func NewMockEncryptor() *MockEncryptor {
	impl := aes.NewAESEncryptor(32)
	return &MockEncryptor{
		GenerateKeyFunc: func() ([]byte, error) {
			return bytes.Repeat([]byte{1}, 32), nil
		},
		GenerateIVFunc: func() ([]byte, error) {
			return bytes.Repeat([]byte{2}, aes.IVSize), nil
		},
		EncryptChunkFunc: impl.EncryptChunk,
		DecryptChunkFunc: impl.DecryptChunk,
		NewEncrypterFunc: impl.NewEncrypter,
		NewDecrypterFunc: impl.NewDecrypter,
	}
}

func (m *MockEncryptor) GenerateKey() ([]byte, error) {
	return m.GenerateKeyFunc()
}

func (m *MockEncryptor) GenerateIV() ([]byte, error) {
	return m.GenerateIVFunc()
}

func (m *MockEncryptor) EncryptChunk(chunk []byte, key []byte, iv []byte) ([]byte, error) {
	return m.EncryptChunkFunc(chunk, key, iv)
}

func (m *MockEncryptor) DecryptChunk(encryptedChunk []byte, key []byte, iv []byte) ([]byte, error) {
	return m.DecryptChunkFunc(encryptedChunk, key, iv)
}

func (m *MockEncryptor) NewEncrypter(key []byte, iv []byte) (aes.Encrypter, error) {
	return m.NewEncrypterFunc(key, iv)
}

func (m *MockEncryptor) NewDecrypter(key []byte, iv []byte) (aes.Decrypter, error) {
	return m.NewDecrypterFunc(key, iv)
}
