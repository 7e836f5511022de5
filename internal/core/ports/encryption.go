// objectstorage/internal/core/ports/encryption.go
package ports

import (
	"context"

	"objectstorage/internal/core/domain"
	"objectstorage/internal/pkg/crypto/aes"
)

type ObjectStorage interface {
	EncryptFile(ctx context.Context, req domain.EncryptionRequest, masterKey string) error
	DecryptFile(ctx context.Context, req domain.DecryptionRequest, masterKey string) error
}

type Encryptor interface {
	GenerateKey() ([]byte, error)
	GenerateIV() ([]byte, error)
	EncryptChunk(chunk []byte, key []byte, iv []byte) ([]byte, error)
	DecryptChunk(encryptedChunk []byte, key []byte, iv []byte) ([]byte, error)
	NewEncrypter(key []byte, iv []byte) (aes.Encrypter, error)
	NewDecrypter(key []byte, iv []byte) (aes.Decrypter, error)
}

// KeyStore stores per-file keys wrapped under a caller master key.
type KeyStore interface {
	StoreKey(ctx context.Context, fileID, filePrivateKey, masterKey string) (string, error)
	RetrieveKey(ctx context.Context, fileID, masterKey string) (string, error)
}

// KeyBackend persists envelope records. Get fails with a NotExist
// error for unknown ids.
type KeyBackend interface {
	Put(ctx context.Context, key domain.EncryptionKey) error
	Get(ctx context.Context, fileID string) (domain.EncryptionKey, error)
}

// SpaceChecker reports free bytes on the volume holding dir.
type SpaceChecker interface {
	FreeBytes(dir string) (uint64, error)
}
