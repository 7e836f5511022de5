package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/grailbio/base/errors"

	"objectstorage/internal/core/domain"
	"objectstorage/internal/core/ports"
)

// Backend names accepted in Config.Backend.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendS3     = "s3"
)

// Store is a key backend that may hold resources until closed.
type Store interface {
	ports.KeyBackend
	Close() error
}

// Config holds configuration for key record backends
type Config struct {
	Backend    string
	Path       string // badger directory
	BucketName string
	Region     string
	KeyPrefix  string
}

// Validate checks that the fields the selected backend needs are set.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendBadger:
		if c.Path == "" {
			return errors.E(errors.Invalid, "badger backend needs a path")
		}
	case BackendS3:
		if c.BucketName == "" {
			return errors.E(errors.Invalid, "s3 backend needs a bucket name")
		}
	default:
		return errors.E(errors.Invalid, "unknown key store backend:", c.Backend)
	}
	return nil
}

// KeyName returns the object name of fileID's record under prefix.
func KeyName(prefix, fileID string) string {
	return path.Join(prefix, fileID+".json")
}

// MarshalRecord encodes a record for backends that store bytes.
func MarshalRecord(rec domain.EncryptionKey) ([]byte, error) {
	if rec.FileID == "" {
		return nil, domain.ArgumentError("key record has no file id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key record: %w", err)
	}
	return data, nil
}

// UnmarshalRecord decodes data and checks that it belongs to fileID.
func UnmarshalRecord(fileID string, data []byte) (domain.EncryptionKey, error) {
	var rec domain.EncryptionKey
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.EncryptionKey{}, errors.E(errors.Integrity, "failed to parse key record", fileID, err)
	}
	if rec.FileID != fileID {
		return domain.EncryptionKey{}, errors.E(errors.Integrity, fmt.Sprintf("key record for %q holds file id %q", fileID, rec.FileID))
	}
	return rec, nil
}

// CheckContext is the common guard backends run before blocking work.
func CheckContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return domain.Canceled(err, "key store")
	}
	return nil
}
