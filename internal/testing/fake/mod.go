// Package fake provides fake implementations for interfaces commonly used in
// the repository.
//
// The implementations offer configuration to return errors when it is needed
// by the unit test and it is also possible to record the call of functions of
// an object in some cases.
package fake

import (
	"fmt"
	"sync"

	"go.dedis.ch/forecast/crypto"
	"golang.org/x/xerrors"
)

var fakeErr = xerrors.New("fake error")

// GetError returns the fake error used in the fake implementations.
func GetError() error {
	return fakeErr
}

// Err returns the message of an error wrapping the fake error.
func Err(msg string) string {
	return fmt.Sprintf("%s: %v", msg, fakeErr)
}

// Call is a tool to keep track of a function calls.
type Call struct {
	sync.Mutex
	calls [][]interface{}
}

// Get returns the nth call ith parameter.
func (c *Call) Get(n, i int) interface{} {
	c.Lock()
	defer c.Unlock()

	return c.calls[n][i]
}

// Len returns the number of calls.
func (c *Call) Len() int {
	c.Lock()
	defer c.Unlock()

	return len(c.calls)
}

// Add adds a call to the list.
func (c *Call) Add(args ...interface{}) {
	c.Lock()
	c.calls = append(c.calls, args)
	c.Unlock()
}

// Signature is a fake implementation of crypto.Signature.
type Signature struct {
	err error
}

// NewBadSignature returns a signature that fails to marshal.
func NewBadSignature() Signature {
	return Signature{err: fakeErr}
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s Signature) MarshalBinary() ([]byte, error) {
	return []byte("fake signature"), s.err
}

// Equal implements crypto.Signature.
func (s Signature) Equal(o crypto.Signature) bool {
	_, ok := o.(Signature)
	return ok
}

// Identity is a fake implementation of access.Identity.
type Identity struct {
	Name string
	err  error
}

// NewBadIdentity returns an identity that fails to marshal.
func NewBadIdentity() Identity {
	return Identity{err: fakeErr}
}

// MarshalText implements encoding.TextMarshaler.
func (i Identity) MarshalText() ([]byte, error) {
	return []byte("fake:" + i.Name), i.err
}

// Equal implements access.Identity.
func (i Identity) Equal(other interface{}) bool {
	o, ok := other.(Identity)
	return ok && o.Name == i.Name
}

// String implements fmt.Stringer.
func (i Identity) String() string {
	return "fake:" + i.Name
}

// Counter is a helper to delay a failure until the value reaches zero. A nil
// counter is always done.
type Counter struct {
	sync.Mutex
	value int
}

// NewCounter returns a counter starting at the given value.
func NewCounter(value int) *Counter {
	return &Counter{value: value}
}

// Done returns true when the counter reached zero.
func (c *Counter) Done() bool {
	if c == nil {
		return true
	}

	c.Lock()
	defer c.Unlock()

	return c.value <= 0
}

// Decrease decrements the counter.
func (c *Counter) Decrease() {
	if c == nil {
		return
	}

	c.Lock()
	c.value--
	c.Unlock()
}
