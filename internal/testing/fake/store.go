package fake

import "go.dedis.ch/forecast/core/store"

// InMemorySnapshot is a fake implementation of a store snapshot.
//
// - implements store.Snapshot
// - implements store.Transaction
type InMemorySnapshot struct {
	values    map[string][]byte
	callbacks []func()

	ErrRead   error
	ErrWrite  error
	ErrDelete error
}

// NewSnapshot creates a new empty snapshot.
func NewSnapshot() *InMemorySnapshot {
	return &InMemorySnapshot{
		values: make(map[string][]byte),
	}
}

// NewBadSnapshot creates a new empty snapshot that will always return an error.
func NewBadSnapshot() *InMemorySnapshot {
	return &InMemorySnapshot{
		values:    make(map[string][]byte),
		ErrRead:   fakeErr,
		ErrWrite:  fakeErr,
		ErrDelete: fakeErr,
	}
}

// Get implements store.Readable.
func (snap *InMemorySnapshot) Get(key []byte) ([]byte, error) {
	return snap.values[string(key)], snap.ErrRead
}

// Set implements store.Writable.
func (snap *InMemorySnapshot) Set(key, value []byte) error {
	if snap.ErrWrite != nil {
		return snap.ErrWrite
	}

	snap.values[string(key)] = value

	return nil
}

// Delete implements store.Writable.
func (snap *InMemorySnapshot) Delete(key []byte) error {
	delete(snap.values, string(key))

	return snap.ErrDelete
}

// OnCommit implements store.Transaction. The callbacks are kept until Commit
// is called by the test.
func (snap *InMemorySnapshot) OnCommit(fn func()) {
	snap.callbacks = append(snap.callbacks, fn)
}

// Commit runs the registered callbacks.
func (snap *InMemorySnapshot) Commit() {
	for _, fn := range snap.callbacks {
		fn()
	}

	snap.callbacks = nil
}

// Len returns the number of keys in the snapshot.
func (snap *InMemorySnapshot) Len() int {
	return len(snap.values)
}

var _ store.TxSnapshot = (*InMemorySnapshot)(nil)
