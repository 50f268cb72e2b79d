// Package store defines the primitives of a simple key/value storage.
//
// A ledger transition never writes to the store directly. It receives a
// snapshot bound to a transaction of the repository: the writes become visible
// only when the transition succeeds, and they are all dropped otherwise.
package store

// Readable is the interface for a readable store.
type Readable interface {
	Get(key []byte) ([]byte, error)
}

// Writable is the interface for a writable store.
type Writable interface {
	Set(key []byte, value []byte) error
	Delete(key []byte) error
}

// Snapshot is a state of the store that can be read and write independently. A
// write is applied only to the snapshot reference.
type Snapshot interface {
	Readable
	Writable
}

// Transaction is a generic interface that store implementations can use to
// provide atomicity.
type Transaction interface {
	// OnCommit adds a callback to be executed after the transaction
	// successfully commits.
	OnCommit(func())
}

// TxSnapshot is a snapshot bound to an atomic transaction.
type TxSnapshot interface {
	Snapshot
	Transaction
}

// Repository is the interface of a store that is read through views and
// updated atomically.
type Repository interface {
	// View executes the read-only function on the latest committed state.
	View(fn func(Readable) error) error

	// Update executes the function on a staged snapshot. The writes are
	// committed only if the function returns nil, otherwise they are
	// discarded.
	Update(fn func(TxSnapshot) error) error
}
