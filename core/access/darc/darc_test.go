package darc

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/forecast/core/access"
	"go.dedis.ch/forecast/internal/testing/fake"
)

func TestService_Match(t *testing.T) {
	store := fake.NewSnapshot()

	alice := fake.Identity{Name: "alice"}
	bob := fake.Identity{Name: "bob"}

	creds := access.NewContractCreds([]byte{0xaa}, "test", "match")

	srvc := NewService()

	err := srvc.Grant(store, creds, alice)
	require.NoError(t, err)

	err = srvc.Match(store, creds, alice)
	require.NoError(t, err)

	err = srvc.Match(store, creds, alice, bob)
	require.EqualError(t, err,
		"permission: rule 'test:match': unauthorized: [fake:alice fake:bob]")

	err = srvc.Match(store, creds, bob)
	require.EqualError(t, err, "permission: rule 'test:match': unauthorized: [fake:bob]")

	err = srvc.Match(store, access.NewContractCreds([]byte{0xaa}, "test", "other"), alice)
	require.EqualError(t, err, "permission: rule 'test:other' not found")

	err = srvc.Match(fake.NewBadSnapshot(), creds, alice)
	require.EqualError(t, err, fake.Err("store failed: while reading"))

	err = srvc.Match(store, access.NewContractCreds([]byte{0xcc}, "", ""))
	require.EqualError(t, err, "permission 0xcc not found")

	store.Set([]byte{0xbb}, []byte{})
	err = srvc.Match(store, access.NewContractCreds([]byte{0xbb}, "", ""), alice)
	require.EqualError(t, err,
		"store failed: permission malformed: unexpected end of JSON input")

	err = srvc.Match(store, creds, fake.NewBadIdentity())
	require.EqualError(t, err,
		fake.Err("permission: rule 'test:match': failed to marshal identity"))
}

func TestService_Grant(t *testing.T) {
	store := fake.NewSnapshot()

	creds := access.NewContractCreds([]byte{0xaa}, "test", "grant")

	alice := fake.Identity{Name: "alice"}
	bob := fake.Identity{Name: "bob"}

	srvc := NewService()

	require.NoError(t, srvc.Grant(store, creds, alice))
	require.NoError(t, srvc.Grant(store, creds, bob))

	before, err := store.Get([]byte{0xaa})
	require.NoError(t, err)

	// Granting twice the same identity does not change the permission.
	require.NoError(t, srvc.Grant(store, creds, alice))

	after, err := store.Get([]byte{0xaa})
	require.NoError(t, err)
	require.Equal(t, before, after)

	require.NoError(t, srvc.Match(store, creds, alice))
	require.NoError(t, srvc.Match(store, creds, bob))

	err = srvc.Grant(fake.NewBadSnapshot(), creds)
	require.EqualError(t, err, fake.Err("store failed: while reading"))

	err = srvc.Grant(store, creds, fake.NewBadIdentity())
	require.EqualError(t, err, fake.Err("failed to evolve: failed to marshal identity"))

	srvc.encode = func(interface{}) ([]byte, error) {
		return nil, fake.GetError()
	}
	err = srvc.Grant(store, creds, alice)
	require.EqualError(t, err, fake.Err("failed to serialize"))

	badStore := fake.NewSnapshot()
	badStore.ErrWrite = fake.GetError()
	err = NewService().Grant(badStore, creds, alice)
	require.EqualError(t, err, fake.Err("store failed to write"))
}

func TestExpression_Evolve(t *testing.T) {
	expr := &Expression{}

	require.NoError(t, expr.Evolve())
	require.Len(t, expr.Groups, 0)

	a := fake.Identity{Name: "a"}
	b := fake.Identity{Name: "b"}

	require.NoError(t, expr.Evolve(a, b))
	require.NoError(t, expr.Evolve(b, a))
	require.NoError(t, expr.Evolve(a))
	require.Len(t, expr.Groups, 2)

	require.NoError(t, expr.Match(b, a))
	require.NoError(t, expr.Match(a))
	require.Error(t, expr.Match(b))
}
