// Package access defines the interfaces for the Access Rights Control.
//
// An access service stores, for a credential, the groups of identities that
// are allowed to use it. The ledger uses it for two concerns: the operator
// role of the price oracle and the decryption rights on the confidential
// handles.
package access

import (
	"encoding"
	"strings"

	"go.dedis.ch/forecast/core/store"
)

// Identity is an abstraction to uniquely identify a signer.
type Identity interface {
	encoding.TextMarshaler

	// Equal returns true when the other object is the same identity.
	Equal(other interface{}) bool
}

// Credential defines the piece of information that can be used to gain
// access.
type Credential interface {
	// GetID returns the identifier for the credential.
	GetID() []byte

	// GetRule returns the rule that the credential wants to access.
	GetRule() string
}

// Service is an access control service.
type Service interface {
	// Match returns nil if the group of identities have access to the given
	// credentials, otherwise an error explaining why.
	Match(store store.Readable, creds Credential, idents ...Identity) error

	// Grant updates the store so that the group of identities will have access
	// to the credentials. Granting an existing group is a no-op.
	Grant(store store.Snapshot, creds Credential, idents ...Identity) error
}

// Compile returns a compacted rule from the string segments.
func Compile(segments ...string) string {
	return strings.Join(segments, ":")
}
