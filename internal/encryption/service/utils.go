package service

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/grailbio/base/errors"

	"objectstorage/internal/core/domain"
	"objectstorage/internal/pkg/crypto/aes"
)

func encodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

func decodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.E(errors.Integrity, "malformed file key", err)
	}
	if len(key) != domain.FileKeySize {
		return nil, errors.E(errors.Integrity, fmt.Sprintf("file key has %d bytes, want %d", len(key), domain.FileKeySize))
	}
	return key, nil
}

// cipherTextSize returns the size of the encrypted file for a plaintext
// of n bytes: the IV plus the padded body.
func cipherTextSize(n int64) int64 {
	return domain.IVSize + (n/aes.BlockSize+1)*aes.BlockSize
}

func (s *EncryptionService) checkSpace(src, dst string) error {
	if s.opts.space == nil {
		return nil
	}
	info, err := os.Stat(src)
	if err != nil {
		return errors.E("failed to stat source", src, err)
	}
	need := uint64(cipherTextSize(info.Size()))
	dir := filepath.Dir(dst)
	free, err := s.opts.space.FreeBytes(dir)
	if err != nil {
		return errors.E("failed to query free space of", dir, err)
	}
	if free < need {
		return errors.E(errors.ResourcesExhausted,
			fmt.Sprintf("insufficient disk space in %s: need %d bytes, %d available", dir, need, free))
	}
	return nil
}
