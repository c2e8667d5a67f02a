package boltdb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/agromarket/internal/client/storage"
)

var (
	// BoltDB bucket names
	bucketOperations = []byte("operations")        // seq -> storedOperation
	bucketOpIndex    = []byte("operation_index")   // operation_id -> seq
	bucketConflicts  = []byte("conflicts")         // conflict_id -> SyncConflict
	bucketState      = []byte("sync_state")        // "current" -> SyncState
	bucketRemote     = []byte("remote_operations") // operation_id -> SyncOperation

	allBuckets = [][]byte{bucketOperations, bucketOpIndex, bucketConflicts, bucketState, bucketRemote}
)

// Storage represents BoltDB storage implementation for client
type Storage struct {
	db *bbolt.DB
}

var _ storage.Store = (*Storage)(nil)

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// Открываем BoltDB; таймаут защищает от зависания, если файл занят другим процессом
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open boltdb: %w", storage.ErrStorage, err)
	}

	s := &Storage{db: db}

	// Инициализируем buckets
	if err := s.initBuckets(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to initialize buckets: %w", storage.ErrStorage, err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

// view и update оборачивают транзакции и приводят ошибки к storage.ErrStorage
func (s *Storage) view(action string, fn func(tx *bbolt.Tx) error) error {
	if s.db == nil {
		return wrapErr(action, storage.ErrStorageClosed)
	}
	return wrapErr(action, s.db.View(fn))
}

func (s *Storage) update(action string, fn func(tx *bbolt.Tx) error) error {
	if s.db == nil {
		return wrapErr(action, storage.ErrStorageClosed)
	}
	return wrapErr(action, s.db.Update(fn))
}

// wrapErr помечает ошибки хранилища; доменные sentinel-ошибки возвращаются как есть
func wrapErr(action string, err error) error {
	if err == nil {
		return nil
	}
	for _, domain := range []error{
		storage.ErrOperationNotFound,
		storage.ErrDuplicateOperation,
		storage.ErrConflictNotFound,
		storage.ErrConflictResolved,
	} {
		if errors.Is(err, domain) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %w", storage.ErrStorage, action, err)
}

// bucket возвращает bucket или ошибку, если он был удален
func bucket(tx *bbolt.Tx, name []byte) (*bbolt.Bucket, error) {
	b := tx.Bucket(name)
	if b == nil {
		return nil, fmt.Errorf("%s bucket not found", name)
	}
	return b, nil
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
