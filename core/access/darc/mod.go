// Package darc implements the access service of the ledger with Distributed
// Access Rights Control.
//
// The permission of a credential is stored as a JSON document at the
// credential identifier. It maps every rule to the groups of identities that
// are allowed to use it.
package darc

import (
	"encoding/json"

	"go.dedis.ch/forecast/core/access"
	"go.dedis.ch/forecast/core/store"
	"golang.org/x/xerrors"
)

// Permission is the set of rules of one credential.
type Permission struct {
	Rules map[string]*Expression `json:"rules"`
}

// NewPermission returns an empty permission.
func NewPermission() *Permission {
	return &Permission{Rules: map[string]*Expression{}}
}

// Evolve grants the rule to the group of identities.
func (perm *Permission) Evolve(rule string, idents ...access.Identity) error {
	expr, found := perm.Rules[rule]
	if !found {
		expr = &Expression{}
		perm.Rules[rule] = expr
	}

	return expr.Evolve(idents...)
}

// Match returns nil if the group of identities is allowed for the rule.
func (perm *Permission) Match(rule string, idents ...access.Identity) error {
	expr, found := perm.Rules[rule]
	if !found {
		return xerrors.Errorf("rule '%s' not found", rule)
	}

	err := expr.Match(idents...)
	if err != nil {
		return xerrors.Errorf("rule '%s': %v", rule, err)
	}

	return nil
}

// Service keeps the permissions in the store of the ledger, so that a grant
// is part of the transition that made it.
//
// - implements access.Service
type Service struct {
	encode func(interface{}) ([]byte, error)
}

// NewService returns the service with the JSON encoding of the permissions.
func NewService() Service {
	return Service{encode: json.Marshal}
}

// Match implements access.Service.
func (srvc Service) Match(r store.Readable, creds access.Credential, idents ...access.Identity) error {
	perm, err := load(r, creds.GetID())
	if err != nil {
		return xerrors.Errorf("store failed: %v", err)
	}

	if perm == nil {
		return xerrors.Errorf("permission %#x not found", creds.GetID())
	}

	err = perm.Match(creds.GetRule(), idents...)
	if err != nil {
		return xerrors.Errorf("permission: %v", err)
	}

	return nil
}

// Grant implements access.Service. The permission is created on the first
// grant of its credential.
func (srvc Service) Grant(snap store.Snapshot, creds access.Credential, idents ...access.Identity) error {
	perm, err := load(snap, creds.GetID())
	if err != nil {
		return xerrors.Errorf("store failed: %v", err)
	}

	if perm == nil {
		perm = NewPermission()
	}

	err = perm.Evolve(creds.GetRule(), idents...)
	if err != nil {
		return xerrors.Errorf("failed to evolve: %v", err)
	}

	data, err := srvc.encode(perm)
	if err != nil {
		return xerrors.Errorf("failed to serialize: %v", err)
	}

	err = snap.Set(creds.GetID(), data)
	if err != nil {
		return xerrors.Errorf("store failed to write: %v", err)
	}

	return nil
}

// load returns the permission stored at the key, or nil.
func load(r store.Readable, key []byte) (*Permission, error) {
	data, err := r.Get(key)
	if err != nil {
		return nil, xerrors.Errorf("while reading: %v", err)
	}

	if data == nil {
		return nil, nil
	}

	perm := NewPermission()

	err = json.Unmarshal(data, perm)
	if err != nil {
		return nil, xerrors.Errorf("permission malformed: %v", err)
	}

	return perm, nil
}
