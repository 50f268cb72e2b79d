package confidential

import (
	"context"
	"encoding/binary"

	"go.dedis.ch/forecast/crypto"
	"golang.org/x/xerrors"
)

// ErrNotAllowed is returned when a principal asks for a value it was not
// granted.
var ErrNotAllowed = xerrors.New("not allowed")

// ProofDigest returns the message an owner signs to attest that the batch of
// inputs was encrypted by them for the ledger identified by the domain.
func ProofDigest(domain string, owner []byte, inputs [][]byte) []byte {
	h := crypto.NewHashFactory(crypto.Sha256).New()

	h.Write([]byte(domain))
	h.Write(owner)

	for _, digest := range inputs {
		h.Write(digest)
	}

	return h.Sum(nil)
}

// Authorization is a time-boxed permission signed by a user that allows the
// engine to re-encrypt the user's values for an ephemeral key.
type Authorization struct {
	// PublicKey is the ephemeral public key the values are re-encrypted for.
	PublicKey []byte `json:"publicKey"`

	// Domain is the identity of the ledger.
	Domain string `json:"domain"`

	// NotBefore and NotAfter bound the validity in unix seconds.
	NotBefore int64 `json:"notBefore"`
	NotAfter  int64 `json:"notAfter"`
}

// Digest returns the message the user signs.
func (a Authorization) Digest() []byte {
	h := crypto.NewHashFactory(crypto.Sha256).New()

	h.Write(a.PublicKey)
	h.Write([]byte(a.Domain))

	buffer := make([]byte, 16)
	binary.BigEndian.PutUint64(buffer, uint64(a.NotBefore))
	binary.BigEndian.PutUint64(buffer[8:], uint64(a.NotAfter))
	h.Write(buffer)

	return h.Sum(nil)
}

// ReencryptRequest asks the engine for the value of a handle encrypted for
// the ephemeral key of the authorization.
type ReencryptRequest struct {
	Handle        Handle        `json:"handle"`
	User          string        `json:"user"`
	Authorization Authorization `json:"authorization"`
	Signature     []byte        `json:"signature"`
}

// Relayer forwards re-encryption requests to the engine.
type Relayer interface {
	Reencrypt(ctx context.Context, req ReencryptRequest) (Ciphertext, error)
}
