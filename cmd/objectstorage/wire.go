package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/sirupsen/logrus"

	"objectstorage/internal/config"
	"objectstorage/internal/device"
	"objectstorage/internal/durable"
	"objectstorage/internal/encryption/service"
	"objectstorage/internal/keyvault"
	"objectstorage/internal/logging"
	"objectstorage/internal/pkg/crypto/aes"
	"objectstorage/internal/storage"
	"objectstorage/internal/storage/badger"
	"objectstorage/internal/storage/memory"
	"objectstorage/internal/storage/s3"
)

type app struct {
	cfg   config.Config
	log   *logrus.Logger
	store storage.Store
	keys  *keyvault.Service
}

func newApp(ctx context.Context, cfg config.Config, out io.Writer) (*app, error) {
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, out)
	if err != nil {
		return nil, err
	}
	info := device.Describe()
	log.WithFields(logrus.Fields{
		"platform": info.Platform,
		"host":     info.Hostname,
		"cpu":      info.CPUModel,
		"memory":   info.TotalMemory,
	}).Debug("host")

	store, err := openStore(ctx, cfg.Storage(), log)
	if err != nil {
		return nil, err
	}
	sysKey, err := systemKey(cfg.SystemKey)
	if err != nil {
		store.Close()
		return nil, err
	}
	defer clear(sysKey)
	if cfg.SystemKey == keyvault.SystemKeyRandom && cfg.KeyStore.Backend != storage.BackendMemory {
		log.Warn("random system key: stored records are readable only by this process")
	}

	keys, err := keyvault.New(store, sysKey, log)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &app{cfg: cfg, log: log, store: store, keys: keys}, nil
}

func openStore(ctx context.Context, cfg storage.Config, log logrus.FieldLogger) (storage.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case storage.BackendBadger:
		store, err := badger.Open(cfg.Path, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	case storage.BackendS3:
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("unable to load SDK config: %w", err)
		}
		store, err := s3.NewClient(ctx, awsCfg, cfg.BucketName, s3.WithKeyPrefix(cfg.KeyPrefix))
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return memory.New(), nil
}

func systemKey(mode string) ([]byte, error) {
	if mode == keyvault.SystemKeyDevice {
		id, err := device.HostID(device.AppID)
		if err != nil {
			return nil, err
		}
		return keyvault.DeviceSystemKey(id)
	}
	return keyvault.RandomSystemKey()
}

// service builds the pipeline for files written under dstDir.
func (a *app) service(dstDir string) (service.Service, error) {
	align := a.cfg.SectorAlignment
	if align == 0 {
		align = device.SectorSize(dstDir)
		if a.cfg.ChunkSize%align != 0 {
			a.log.WithFields(logrus.Fields{"sector": align, "chunk_size": a.cfg.ChunkSize}).
				Warn("probed sector size does not divide the chunk size, using default alignment")
			align = 0
		}
	}
	opts := []service.Option{
		service.WithChunkSize(a.cfg.ChunkSize),
		service.WithStreamOptions(durable.Options{
			SectorAlignment: align,
			FlushTimeout:    a.cfg.FlushTimeout,
		}),
		service.WithLogger(a.log),
	}
	if a.cfg.SpaceCheck {
		opts = append(opts, service.WithSpaceChecker(device.DiskSpace{}))
	}
	return service.NewService(aes.NewAESEncryptor(32), a.keys, opts...)
}

func (a *app) Close() error {
	return a.store.Close()
}

func dirOf(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Dir(path)
	}
	return filepath.Dir(abs)
}
