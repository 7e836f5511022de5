// Package badger persists key records in a local badger database.
package badger

import (
	"context"
	goerrors "errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/grailbio/base/errors"
	"github.com/sirupsen/logrus"

	"objectstorage/internal/core/domain"
	"objectstorage/internal/logging"
	"objectstorage/internal/storage"
)

const keyPrefix = "key/"

type Store struct {
	db  *badger.DB
	log logrus.FieldLogger
}

var _ storage.Store = (*Store)(nil)

// Open opens or creates the database in dir. Writes are synced before
// they return, a lost record makes its file unreadable.
func Open(dir string, log logrus.FieldLogger) (*Store, error) {
	if dir == "" {
		return nil, domain.ArgumentError("badger directory must not be empty")
	}
	return open(badger.DefaultOptions(dir), log)
}

// OpenInMemory opens a database that lives only in memory.
func OpenInMemory(log logrus.FieldLogger) (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), log)
}

func open(opts badger.Options, log logrus.FieldLogger) (*Store, error) {
	log = logging.OrDiscard(log).WithField("component", "badger")
	opts = opts.WithSyncWrites(true).WithLogger(quietLogger{log})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.E(errors.Unavailable, "failed to open key database", opts.Dir, err)
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) Put(ctx context.Context, rec domain.EncryptionKey) error {
	if err := storage.CheckContext(ctx); err != nil {
		return err
	}
	data, err := storage.MarshalRecord(rec)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(rec.FileID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to write key record %s: %w", rec.FileID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, fileID string) (domain.EncryptionKey, error) {
	if err := storage.CheckContext(ctx); err != nil {
		return domain.EncryptionKey{}, err
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(fileID))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if goerrors.Is(err, badger.ErrKeyNotFound) {
		return domain.EncryptionKey{}, domain.KeyNotFound(fileID)
	}
	if err != nil {
		return domain.EncryptionKey{}, fmt.Errorf("failed to read key record %s: %w", fileID, err)
	}
	return storage.UnmarshalRecord(fileID, data)
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close key database: %w", err)
	}
	return nil
}

func recordKey(fileID string) []byte {
	return []byte(keyPrefix + fileID)
}

// quietLogger sends badger's chatter to debug and keeps its warnings.
type quietLogger struct {
	log logrus.FieldLogger
}

func (q quietLogger) Errorf(f string, v ...interface{})   { q.log.Errorf(f, v...) }
func (q quietLogger) Warningf(f string, v ...interface{}) { q.log.Warnf(f, v...) }
func (q quietLogger) Infof(f string, v ...interface{})    { q.log.Debugf(f, v...) }
func (q quietLogger) Debugf(f string, v ...interface{})   { q.log.Debugf(f, v...) }
