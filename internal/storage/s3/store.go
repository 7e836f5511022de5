package s3

import (
	"bytes"
	"context"
	goerrors "errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/grailbio/base/errors"

	"objectstorage/internal/core/domain"
	"objectstorage/internal/storage"
)

// API is the part of the S3 client the store uses.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type Store struct {
	client API
	config storage.Config
}

var _ storage.Store = (*Store)(nil)

func New(client API, config storage.Config) *Store {
	return &Store{
		client: client,
		config: config,
	}
}

func (s *Store) Put(ctx context.Context, rec domain.EncryptionKey) error {
	if err := storage.CheckContext(ctx); err != nil {
		return err
	}
	data, err := storage.MarshalRecord(rec)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.BucketName),
		Key:         aws.String(storage.KeyName(s.config.KeyPrefix, rec.FileID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return errors.E(errors.Unavailable, "failed to store key record", rec.FileID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, fileID string) (domain.EncryptionKey, error) {
	if err := storage.CheckContext(ctx); err != nil {
		return domain.EncryptionKey{}, err
	}
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.BucketName),
		Key:    aws.String(storage.KeyName(s.config.KeyPrefix, fileID)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if goerrors.As(err, &nsk) {
			return domain.EncryptionKey{}, domain.KeyNotFound(fileID)
		}
		return domain.EncryptionKey{}, errors.E(errors.Unavailable, "failed to get key record", fileID, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return domain.EncryptionKey{}, fmt.Errorf("failed to read key record: %w", err)
	}
	return storage.UnmarshalRecord(fileID, data)
}

func (s *Store) Close() error {
	return nil
}

// GetConfig returns the store configuration
func (s *Store) GetConfig() storage.Config {
	return s.config
}
