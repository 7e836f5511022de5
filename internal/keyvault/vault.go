// objectstorage/internal/keyvault/vault.go
package keyvault

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/hkdf"

	"objectstorage/internal/core/domain"
	"objectstorage/internal/core/ports"
	"objectstorage/internal/logging"
	"objectstorage/internal/pkg/crypto/aes"
)

const (
	keySize = 32

	masterInfo = "objectstorage master layer"
	systemInfo = "objectstorage system layer"
)

// System key modes.
const (
	SystemKeyRandom = "random"
	SystemKeyDevice = "device"
)

// Service wraps each file key twice before it reaches the backend: first
// under a key derived from the caller's master key, then under the
// system key. The record is useless without both.
type Service struct {
	backend   ports.KeyBackend
	cipher    *aes.AESEncryptor
	systemKey []byte
	log       logrus.FieldLogger
}

var _ ports.KeyStore = (*Service)(nil)

func New(backend ports.KeyBackend, systemKey []byte, log logrus.FieldLogger) (*Service, error) {
	if len(systemKey) != keySize {
		return nil, domain.ArgumentError("system key must be %d bytes, got %d", keySize, len(systemKey))
	}
	return &Service{
		backend:   backend,
		cipher:    aes.NewAESEncryptor(keySize),
		systemKey: append([]byte(nil), systemKey...),
		log:       logging.OrDiscard(log),
	}, nil
}

// RandomSystemKey returns a key that lives only as long as the process.
// Records wrapped with it cannot be read by another process.
func RandomSystemKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate system key: %w", err)
	}
	return key, nil
}

// DeviceSystemKey derives a stable system key bound to one host.
func DeviceSystemKey(hostID string) ([]byte, error) {
	if hostID == "" {
		return nil, domain.ArgumentError("host id must not be empty")
	}
	return derive([]byte(hostID), systemInfo)
}

// StoreKey wraps filePrivateKey and saves it under fileID, replacing any
// earlier record. It returns the stored ciphertext.
func (s *Service) StoreKey(ctx context.Context, fileID, filePrivateKey, masterKey string) (string, error) {
	if fileID == "" || masterKey == "" {
		return "", domain.ArgumentError("file id and master key must not be empty")
	}
	masterLayer, err := derive([]byte(masterKey), masterInfo)
	if err != nil {
		return "", err
	}
	defer clear(masterLayer)

	first, err := s.seal([]byte(filePrivateKey), masterLayer)
	if err != nil {
		return "", err
	}
	final, err := s.seal([]byte(first), s.systemKey)
	if err != nil {
		return "", err
	}

	if err := s.backend.Put(ctx, domain.EncryptionKey{FileID: fileID, EncryptedFilePrivateKey: final}); err != nil {
		return "", errors.E("failed to persist key record", fileID, err)
	}
	s.log.WithField("file_id", fileID).Debug("file key stored")
	return final, nil
}

// RetrieveKey unwraps the file key stored under fileID. A master key
// other than the one used to store fails with NotAllowed.
func (s *Service) RetrieveKey(ctx context.Context, fileID, masterKey string) (string, error) {
	if fileID == "" || masterKey == "" {
		return "", domain.ArgumentError("file id and master key must not be empty")
	}
	record, err := s.backend.Get(ctx, fileID)
	if err != nil {
		return "", err
	}

	first, err := s.open(record.EncryptedFilePrivateKey, s.systemKey)
	if err != nil {
		return "", errors.E(errors.Integrity, "failed to unwrap system layer of", fileID, err)
	}
	masterLayer, err := derive([]byte(masterKey), masterInfo)
	if err != nil {
		return "", err
	}
	defer clear(masterLayer)

	plain, err := s.open(string(first), masterLayer)
	if err != nil {
		return "", errors.E(errors.NotAllowed, "master key does not open key record", fileID, err)
	}
	return string(plain), nil
}

// seal returns base64(IV || AES-CBC(data)).
func (s *Service) seal(data, key []byte) (string, error) {
	iv, err := s.cipher.GenerateIV()
	if err != nil {
		return "", err
	}
	ct, err := s.cipher.EncryptChunk(data, key, iv)
	if err != nil {
		return "", fmt.Errorf("failed to seal key layer: %w", err)
	}
	return base64.StdEncoding.EncodeToString(append(iv, ct...)), nil
}

func (s *Service) open(sealed string, key []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key layer: %w", err)
	}
	if len(raw) < aes.IVSize+aes.BlockSize {
		return nil, fmt.Errorf("key layer too short: %d bytes", len(raw))
	}
	return s.cipher.DecryptChunk(raw[aes.IVSize:], key, raw[:aes.IVSize])
}

func derive(secret []byte, info string) ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}
