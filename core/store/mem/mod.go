// Package mem implements an in-memory repository.
//
// Updates are staged on a child layer that records the writes and the
// deletions on top of the committed state. The layer is merged into the
// committed state only when the update succeeds.
package mem

import (
	"sync"

	"go.dedis.ch/forecast/core/store"
)

type item struct {
	value   []byte
	deleted bool
}

// Store is an in-memory implementation of a repository.
//
// - implements store.Repository
type Store struct {
	sync.RWMutex

	entries map[string][]byte
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string][]byte),
	}
}

// Get implements store.Readable. It returns the committed value of the key, or
// nil if it does not exist.
func (s *Store) Get(key []byte) ([]byte, error) {
	s.RLock()
	defer s.RUnlock()

	return s.entries[string(key)], nil
}

// View implements store.Repository.
func (s *Store) View(fn func(store.Readable) error) error {
	s.RLock()
	defer s.RUnlock()

	return fn(committed{store: s})
}

// Update implements store.Repository. It stages the writes of the function and
// merges them only if no error is returned. Callbacks registered on the
// transaction are executed after the merge.
func (s *Store) Update(fn func(store.TxSnapshot) error) error {
	s.Lock()

	layer := newLayer(committed{store: s})

	err := fn(layer)
	if err != nil {
		s.Unlock()
		return err
	}

	for key, it := range layer.items {
		if it.deleted {
			delete(s.entries, key)
		} else {
			s.entries[key] = it.value
		}
	}

	s.Unlock()

	for _, cb := range layer.callbacks {
		cb()
	}

	return nil
}

// committed is a lock-free reader of the committed entries, used while the
// caller already holds the lock.
type committed struct {
	store *Store
}

func (c committed) Get(key []byte) ([]byte, error) {
	return c.store.entries[string(key)], nil
}

// layer is a staged snapshot on top of a readable parent.
//
// - implements store.TxSnapshot
type layer struct {
	parent    store.Readable
	items     map[string]item
	callbacks []func()
}

func newLayer(parent store.Readable) *layer {
	return &layer{
		parent: parent,
		items:  make(map[string]item),
	}
}

// Get implements store.Readable. It looks up the staged writes first and then
// the parent.
func (l *layer) Get(key []byte) ([]byte, error) {
	it, found := l.items[string(key)]
	if found {
		if it.deleted {
			return nil, nil
		}

		return it.value, nil
	}

	return l.parent.Get(key)
}

// Set implements store.Writable.
func (l *layer) Set(key, value []byte) error {
	l.items[string(key)] = item{value: append([]byte{}, value...)}

	return nil
}

// Delete implements store.Writable.
func (l *layer) Delete(key []byte) error {
	l.items[string(key)] = item{deleted: true}

	return nil
}

// OnCommit implements store.Transaction.
func (l *layer) OnCommit(fn func()) {
	l.callbacks = append(l.callbacks, fn)
}
