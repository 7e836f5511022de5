package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"objectstorage/internal/core/domain"
	"objectstorage/internal/durable"
	"objectstorage/internal/encryption/chunking"
	"objectstorage/internal/pkg/crypto/aes"
)

// EncryptFile writes [IV][ciphertext] of the source to the destination
// under a fresh file key, which is stored wrapped under masterKey. A
// reader goroutine and a cipher goroutine are joined by a bounded pipe,
// so memory use does not depend on file size. On failure the destination
// is deleted.
func (s *EncryptionService) EncryptFile(ctx context.Context, req domain.EncryptionRequest, masterKey string) (err error) {
	if err := req.Validate(); err != nil {
		return err
	}
	if masterKey == "" {
		return domain.ArgumentError("master key must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return domain.Canceled(err, "encrypt")
	}

	log := s.log.WithFields(logrus.Fields{"file_id": req.FileID, "op": "encrypt"})
	log.WithField("master_key_supplied", true).Debug("encrypting file")
	start := time.Now()

	if err := s.checkSpace(req.SourcePath, req.DestinationPath); err != nil {
		return err
	}

	// Generate encryption key
	key, err := s.encryptor.GenerateKey()
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	defer clear(key)
	if _, err := s.keys.StoreKey(ctx, req.FileID, encodeKey(key), masterKey); err != nil {
		return errors.E("failed to store file key", err)
	}

	iv, err := s.encryptor.GenerateIV()
	if err != nil {
		return fmt.Errorf("failed to generate IV: %w", err)
	}
	enc, err := s.encryptor.NewEncrypter(key, iv)
	if err != nil {
		return fmt.Errorf("failed to create encrypter: %w", err)
	}

	dst, err := durable.Create(req.DestinationPath, s.opts.streamOptions(log))
	if err != nil {
		return errors.E("failed to create destination", err)
	}
	defer func() {
		if err != nil {
			dst.Abort(err)
		}
	}()

	if _, err = dst.WriteRange(ctx, iv, 0, len(iv)); err != nil {
		return errors.E("failed to write IV", err)
	}
	if err = dst.Flush(ctx); err != nil {
		return errors.E("failed to flush IV", err)
	}

	if err = s.encryptStream(ctx, req.SourcePath, dst, enc, log); err != nil {
		return err
	}

	if err = dst.Flush(ctx); err != nil {
		return errors.E("failed to flush ciphertext", err)
	}
	if err = dst.Close(); err != nil {
		return errors.E("failed to close destination", err)
	}

	log.WithFields(logrus.Fields{
		"bytes":    dst.Position(),
		"duration": time.Since(start).String(),
	}).Info("file encrypted")
	return nil
}

func (s *EncryptionService) encryptStream(ctx context.Context, srcPath string, dst *durable.Stream, enc aes.Encrypter, log logrus.FieldLogger) error {
	pipe, err := chunking.NewPipe(s.opts.pause, s.opts.resume)
	if err != nil {
		return err
	}
	// the pipe holds at most pause/chunk buffers; one more each for the
	// producer and the consumer
	pool, err := chunking.NewBufferPool(s.opts.chunkSize, s.opts.streamOptions(log).SectorAlignment,
		s.opts.pause/s.opts.chunkSize+2)
	if err != nil {
		return err
	}
	defer pool.Release()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.produce(gctx, srcPath, pipe, pool, log)
		pipe.CloseWithError(err)
		return err
	})
	g.Go(func() error {
		err := s.consume(gctx, pipe, pool, dst, enc)
		if err != nil {
			pipe.CloseRead(err)
		}
		return err
	})
	return g.Wait()
}

// produce reads the source in whole chunks and queues them in order.
func (s *EncryptionService) produce(ctx context.Context, srcPath string, pipe *chunking.Pipe, pool *chunking.BufferPool, log logrus.FieldLogger) error {
	src, err := durable.Open(srcPath, s.opts.streamOptions(log))
	if err != nil {
		return errors.E("failed to open source", err)
	}
	defer src.Close()

	reader, err := chunking.NewChunkReader(src, s.opts.chunkSize)
	if err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return domain.Canceled(err, "reading source")
		}
		buf, err := pool.Get(ctx)
		if err != nil {
			return err
		}
		n, err := reader.Read(buf)
		if err == io.EOF {
			pool.Put(buf)
			return nil
		}
		if err != nil {
			pool.Put(buf)
			return errors.E("failed to read chunk", err)
		}
		if err := pipe.Write(ctx, buf[:n]); err != nil {
			pool.Put(buf)
			return err
		}
	}
}

// consume encrypts queued chunks and writes the ciphertext, ending with
// the padded final block.
func (s *EncryptionService) consume(ctx context.Context, pipe *chunking.Pipe, pool *chunking.BufferPool, dst *durable.Stream, enc aes.Encrypter) error {
	for {
		if err := ctx.Err(); err != nil {
			return domain.Canceled(err, "encrypting")
		}
		chunk, err := pipe.Read(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		out := enc.Update(chunk)
		pool.Put(chunk)
		if err := writeAll(ctx, dst, out); err != nil {
			return errors.E("failed to write ciphertext", err)
		}
	}
	if err := writeAll(ctx, dst, enc.Final()); err != nil {
		return errors.E("failed to write final block", err)
	}
	return nil
}

func writeAll(ctx context.Context, dst *durable.Stream, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	_, err := dst.WriteRange(ctx, p, 0, len(p))
	return err
}
