package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/sirupsen/logrus"

	"objectstorage/internal/core/domain"
	"objectstorage/internal/durable"
	"objectstorage/internal/encryption/chunking"
	"objectstorage/internal/pkg/crypto/aes"
	"objectstorage/internal/platform"
)

// DecryptFile reverses EncryptFile. It runs as a single loop without a
// pipe: each chunk is read, decrypted and written before the next read.
// On failure the destination is deleted.
func (s *EncryptionService) DecryptFile(ctx context.Context, req domain.DecryptionRequest, masterKey string) (err error) {
	if err := req.Validate(); err != nil {
		return err
	}
	if masterKey == "" {
		return domain.ArgumentError("master key must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return domain.Canceled(err, "decrypt")
	}

	log := s.log.WithFields(logrus.Fields{"file_id": req.FileID, "op": "decrypt"})
	log.WithField("master_key_supplied", true).Debug("decrypting file")
	start := time.Now()
	so := s.opts.streamOptions(log)

	src, err := durable.Open(req.SourcePath, so)
	if err != nil {
		return errors.E("failed to open source", err)
	}
	defer src.Close()

	dst, err := durable.Create(req.DestinationPath, so)
	if err != nil {
		return errors.E("failed to create destination", err)
	}
	defer func() {
		if err != nil {
			dst.Abort(err)
		}
	}()

	iv := make([]byte, domain.IVSize)
	if n, err := io.ReadFull(src, iv); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return errors.E(errors.Integrity, fmt.Sprintf("missing IV: read %d of %d bytes", n, domain.IVSize))
		}
		return errors.E("failed to read IV", err)
	}
	size, err := src.Size()
	if err != nil {
		return err
	}
	if body := size - domain.IVSize; body == 0 || body%aes.BlockSize != 0 {
		return errors.E(errors.Integrity, fmt.Sprintf("ciphertext body of %d bytes is not a whole number of blocks", body))
	}

	encoded, err := s.keys.RetrieveKey(ctx, req.FileID, masterKey)
	if err != nil {
		return errors.E("failed to retrieve file key", err)
	}
	key, err := decodeKey(encoded)
	if err != nil {
		return err
	}
	defer clear(key)

	dec, err := s.encryptor.NewDecrypter(key, iv)
	if err != nil {
		return fmt.Errorf("failed to create decrypter: %w", err)
	}
	reader, err := chunking.NewChunkReader(src, s.opts.chunkSize)
	if err != nil {
		return err
	}

	buf := platform.AlignedBuffer(s.opts.chunkSize, so.SectorAlignment)
	defer clear(buf)
	for {
		if err = ctx.Err(); err != nil {
			return domain.Canceled(err, "decrypting")
		}
		n, rerr := reader.Read(buf)
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return errors.E("failed to read chunk", rerr)
		}
		out, derr := dec.Update(buf[:n])
		if derr != nil {
			return errors.E(errors.Integrity, "failed to decrypt chunk", derr)
		}
		if err = writeAll(ctx, dst, out); err != nil {
			return errors.E("failed to write plaintext", err)
		}
	}

	tail, err := dec.Final()
	if err != nil {
		return errors.E(errors.Integrity, "failed to decrypt final block", err)
	}
	if err = writeAll(ctx, dst, tail); err != nil {
		return errors.E("failed to write plaintext", err)
	}
	if err = dst.Flush(ctx); err != nil {
		return errors.E("failed to flush plaintext", err)
	}
	if err = dst.Close(); err != nil {
		return errors.E("failed to close destination", err)
	}

	log.WithFields(logrus.Fields{
		"bytes":    dst.Position(),
		"duration": time.Since(start).String(),
	}).Info("file decrypted")
	return nil
}
