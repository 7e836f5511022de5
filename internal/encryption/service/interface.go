package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"objectstorage/internal/core/domain"
	"objectstorage/internal/core/ports"
)

type Service interface {
	EncryptFile(ctx context.Context, req domain.EncryptionRequest, masterKey string) error
	DecryptFile(ctx context.Context, req domain.DecryptionRequest, masterKey string) error
}

type EncryptionService struct {
	encryptor ports.Encryptor
	keys      ports.KeyStore
	opts      options
	log       logrus.FieldLogger
}

var _ ports.ObjectStorage = (*EncryptionService)(nil)

func NewService(encryptor ports.Encryptor, keys ports.KeyStore, opts ...Option) (Service, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return &EncryptionService{
		encryptor: encryptor,
		keys:      keys,
		opts:      o,
		log:       o.log,
	}, nil
}
