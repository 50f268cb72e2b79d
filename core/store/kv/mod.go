// Package kv is the persistent storage of a node. It opens a bbolt database
// (https://github.com/etcd-io/bbolt) and exposes one of its buckets as a
// store.Repository, so that a ledger transition is a single bbolt transaction.
package kv

import "go.dedis.ch/forecast/core/store"

// Bucket is a set of keys of the database.
type Bucket interface {
	// Get returns the value of the key, or nil if it is not set. The value is
	// only valid during the transaction.
	Get(key []byte) []byte

	Set(key, value []byte) error

	Delete(key []byte) error
}

// ReadableTx is a read-only transaction.
type ReadableTx interface {
	// GetBucket returns the bucket, or nil if it was never created.
	GetBucket(name []byte) Bucket
}

// WritableTx is a transaction that commits when its function returns nil.
type WritableTx interface {
	ReadableTx
	store.Transaction

	GetBucketOrCreate(name []byte) (Bucket, error)
}

// DB is a key/value database with atomic transactions.
type DB interface {
	View(fn func(ReadableTx) error) error

	Update(fn func(WritableTx) error) error

	Close() error
}
