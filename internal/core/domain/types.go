// objectstorage/internal/core/domain/types.go
package domain

import (
	"github.com/grailbio/base/errors"
)

// EncryptionRequest names the plaintext file to encrypt and where the
// ciphertext goes. FileID keys the envelope record in the key store.
type EncryptionRequest struct {
	FileID          string
	SourcePath      string
	DestinationPath string
}

// DecryptionRequest names the ciphertext file to decrypt and where the
// recovered plaintext goes.
type DecryptionRequest struct {
	FileID          string
	SourcePath      string
	DestinationPath string
}

// EncryptionKey is the envelope record persisted by key backends.
type EncryptionKey struct {
	FileID                  string `json:"fileId"`
	EncryptedFilePrivateKey string `json:"encryptedFilePrivateKey"`
}

func (r EncryptionRequest) Validate() error {
	return validatePaths(r.FileID, r.SourcePath, r.DestinationPath)
}

func (r DecryptionRequest) Validate() error {
	return validatePaths(r.FileID, r.SourcePath, r.DestinationPath)
}

func validatePaths(fileID, src, dst string) error {
	switch {
	case fileID == "":
		return errors.E(errors.Invalid, "file id must not be empty")
	case src == "":
		return errors.E(errors.Invalid, "source path must not be empty")
	case dst == "":
		return errors.E(errors.Invalid, "destination path must not be empty")
	case src == dst:
		return errors.E(errors.Invalid, "source and destination must differ:", src)
	}
	return nil
}
