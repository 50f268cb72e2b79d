// This file contains the implementation of contract credentials and of the
// identity of a contract.

package access

import (
	"bytes"
)

// ContractCredential defines the credential for a contract. It contains the
// name of the contract and an associated command.
type ContractCredential struct {
	id       []byte
	contract string
	command  string
}

// NewContractCreds creates new credential from the associated identifier, the
// name of the contract and its command.
func NewContractCreds(id []byte, contract, command string) ContractCredential {
	return ContractCredential{
		id:       id,
		contract: contract,
		command:  command,
	}
}

// GetID implements access.Credential. It returns the identifier for the
// credential.
func (cc ContractCredential) GetID() []byte {
	return append([]byte{}, cc.id...)
}

// GetRule implements access.Credential. It returns the scope of the credential.
func (cc ContractCredential) GetRule() string {
	return Compile(cc.contract, cc.command)
}

// ContractIdentity is the identity of a contract. A contract cannot sign, but
// it can be granted rights like any other principal.
//
// - implements access.Identity
type ContractIdentity struct {
	name string
}

// NewContractIdentity returns the identity of the named contract.
func NewContractIdentity(name string) ContractIdentity {
	return ContractIdentity{name: name}
}

// MarshalText implements encoding.TextMarshaler.
func (ci ContractIdentity) MarshalText() ([]byte, error) {
	return []byte("contract:" + ci.name), nil
}

// Equal implements access.Identity.
func (ci ContractIdentity) Equal(other interface{}) bool {
	o, ok := other.(ContractIdentity)
	return ok && o.name == ci.name
}

// String implements fmt.Stringer.
func (ci ContractIdentity) String() string {
	return "contract:" + ci.name
}

// SameIdentity returns true if both identities have the same text form. It
// allows comparing identities restored from the store with the ones of a
// transaction.
func SameIdentity(a, b Identity) bool {
	if a == nil || b == nil {
		return false
	}

	ta, err := a.MarshalText()
	if err != nil {
		return false
	}

	tb, err := b.MarshalText()
	if err != nil {
		return false
	}

	return bytes.Equal(ta, tb)
}
