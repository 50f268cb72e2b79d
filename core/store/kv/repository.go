package kv

import (
	"go.dedis.ch/forecast/core/store"
	"golang.org/x/xerrors"
)

// Repository exposes a single bucket of the database as a store repository.
//
// - implements store.Repository
type Repository struct {
	db     DB
	bucket []byte
}

// NewRepository returns a repository that reads and writes in the bucket of
// the database.
func NewRepository(db DB, bucket string) Repository {
	return Repository{
		db:     db,
		bucket: []byte(bucket),
	}
}

// View implements store.Repository. A bucket that does not exist yet is read
// as an empty store.
func (r Repository) View(fn func(store.Readable) error) error {
	return r.db.View(func(txn ReadableTx) error {
		return fn(readable{bucket: txn.GetBucket(r.bucket)})
	})
}

// Update implements store.Repository. The function runs inside a writable
// database transaction that is rolled back when it returns an error.
func (r Repository) Update(fn func(store.TxSnapshot) error) error {
	return r.db.Update(func(txn WritableTx) error {
		bucket, err := txn.GetBucketOrCreate(r.bucket)
		if err != nil {
			return xerrors.Errorf("bucket: %v", err)
		}

		snap := snapshot{
			readable:    readable{bucket: bucket},
			bucket:      bucket,
			Transaction: txn,
		}

		return fn(snap)
	})
}

// readable is a store.Readable over a bucket. The values are copied because
// the memory of bbolt is only valid during the transaction.
type readable struct {
	bucket Bucket
}

func (r readable) Get(key []byte) ([]byte, error) {
	if r.bucket == nil {
		return nil, nil
	}

	value := r.bucket.Get(key)
	if value == nil {
		return nil, nil
	}

	return append([]byte{}, value...), nil
}

// snapshot is the writable counterpart bound to the database transaction.
//
// - implements store.TxSnapshot
type snapshot struct {
	readable
	store.Transaction

	bucket Bucket
}

func (s snapshot) Set(key, value []byte) error {
	err := s.bucket.Set(key, value)
	if err != nil {
		return xerrors.Errorf("failed to set: %v", err)
	}

	return nil
}

func (s snapshot) Delete(key []byte) error {
	err := s.bucket.Delete(key)
	if err != nil {
		return xerrors.Errorf("failed to delete: %v", err)
	}

	return nil
}
