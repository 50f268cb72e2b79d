// Package coproc implements a confidential engine backed by a trusted
// co-processor.
//
// The co-processor holds an ElGamal key pair on the Ed25519 curve. Every value
// it references is stored encrypted for its own key, so the ledger state never
// contains a plaintext. Operations decrypt the operands in memory, compute the
// result and store it encrypted under a fresh handle.
//
// The decryption rights are recorded with the access control service: a handle
// is a credential with the rule "coproc:decrypt". A user can get a value only
// through a re-encryption for an ephemeral key it authorized.
package coproc

import (
	"encoding/binary"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"go.dedis.ch/forecast"
	"go.dedis.ch/forecast/confidential"
	"go.dedis.ch/forecast/core/access"
	"go.dedis.ch/forecast/core/access/darc"
	"go.dedis.ch/forecast/core/store"
	"go.dedis.ch/forecast/core/store/prefixed"
	"go.dedis.ch/forecast/crypto"
	"go.dedis.ch/forecast/crypto/ed25519"
	"go.dedis.ch/kyber/v3"
	"golang.org/x/xerrors"
)

const (
	valuesPrefix = "coproc.values"
	aclPrefix    = "coproc.acl"
	seqPrefix    = "coproc.seq"

	contractName  = "coproc"
	decryptRule   = "decrypt"
	ciphertextLen = 64
)

var seqKey = []byte("seq")

var promOps = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "forecast_coproc_operations_total",
	Help: "total number of operations of the co-processor",
}, []string{"op"})

func init() {
	forecast.PromCollectors = append(forecast.PromCollectors, promOps)
}

// Service is the co-processor engine.
//
// - implements confidential.Engine
type Service struct {
	secret  kyber.Scalar
	pubkey  kyber.Point
	domain  string
	access  access.Service
	hashFac crypto.HashFactory
	now     func() time.Time
}

// GenerateKey returns a new random private key for the co-processor.
func GenerateKey() kyber.Scalar {
	suite := ed25519.Suite()
	return suite.Scalar().Pick(suite.RandomStream())
}

// NewService returns a co-processor using the private key. The domain is the
// identity of the ledger the inputs must be encrypted for.
func NewService(secret kyber.Scalar, domain string) *Service {
	return &Service{
		secret:  secret,
		pubkey:  ed25519.Suite().Point().Mul(secret, nil),
		domain:  domain,
		access:  darc.NewService(),
		hashFac: crypto.NewHashFactory(crypto.Sha3_256),
		now:     time.Now,
	}
}

// GetPublicKey returns the key the inputs must be encrypted for.
func (s *Service) GetPublicKey() kyber.Point {
	return s.pubkey
}

// GetDomain returns the identity of the ledger.
func (s *Service) GetDomain() string {
	return s.domain
}

// Bind implements confidential.Engine. The operations of the session are
// counted once the transition commits.
func (s *Service) Bind(snap store.TxSnapshot) confidential.Session {
	return &session{
		srvc:   s,
		tx:     snap,
		values: prefixed.NewSnapshot(valuesPrefix, snap),
		acl:    prefixed.NewSnapshot(aclPrefix, snap),
		seq:    prefixed.NewSnapshot(seqPrefix, snap),
	}
}

// Reencrypt returns the value of the handle encrypted for the ephemeral key of
// the request, if the authorization is valid and the user was granted the
// handle.
func (s *Service) Reencrypt(r store.Readable, req confidential.ReencryptRequest) (confidential.Ciphertext, error) {
	var ct confidential.Ciphertext

	user, err := ed25519.ParsePublicKey(req.User)
	if err != nil {
		return ct, xerrors.Errorf("user: %v", err)
	}

	auth := req.Authorization

	if auth.Domain != s.domain {
		return ct, xerrors.Errorf("authorization for '%s' instead of '%s'", auth.Domain, s.domain)
	}

	now := s.now().Unix()
	if now < auth.NotBefore || now > auth.NotAfter {
		return ct, xerrors.Errorf("authorization outside of [%d, %d] at %d",
			auth.NotBefore, auth.NotAfter, now)
	}

	err = user.Verify(auth.Digest(), ed25519.NewSignature(req.Signature))
	if err != nil {
		return ct, xerrors.Errorf("invalid authorization: %v", err)
	}

	ephemeral := ed25519.Suite().Point()
	err = ephemeral.UnmarshalBinary(auth.PublicKey)
	if err != nil {
		return ct, xerrors.Errorf("malformed ephemeral key: %v", err)
	}

	values := prefixed.NewReadable(valuesPrefix, r)

	value, err := s.load(values, req.Handle)
	if err != nil {
		return ct, err
	}

	err = s.access.Match(prefixed.NewReadable(aclPrefix, r), decryptCreds(req.Handle), user)
	if err != nil {
		return ct, xerrors.Errorf("%w: %v", confidential.ErrNotAllowed, err)
	}

	data, err := confidential.EncodeValue(req.Handle.Type(), value)
	if err != nil {
		return ct, xerrors.Errorf("failed to encode: %v", err)
	}

	ct, err = confidential.Encrypt(ephemeral, data)
	if err != nil {
		return ct, xerrors.Errorf("failed to encrypt: %v", err)
	}

	promOps.WithLabelValues("reencrypt").Inc()

	return ct, nil
}

func (s *Service) load(r store.Readable, h confidential.Handle) (*uint256.Int, error) {
	if h.IsZero() {
		return nil, xerrors.Errorf("%w: zero handle", confidential.ErrUnknownHandle)
	}

	raw, err := r.Get(h[:])
	if err != nil {
		return nil, xerrors.Errorf("failed to read: %v", err)
	}

	if len(raw) != ciphertextLen {
		return nil, xerrors.Errorf("%w: %v", confidential.ErrUnknownHandle, h)
	}

	ct := confidential.Ciphertext{K: raw[:32], C: raw[32:]}

	data, err := confidential.Decrypt(s.secret, ct)
	if err != nil {
		return nil, xerrors.Errorf("failed to decrypt %v: %v", h, err)
	}

	value, err := confidential.DecodeValue(h.Type(), data)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode %v: %v", h, err)
	}

	return value, nil
}

func decryptCreds(h confidential.Handle) access.Credential {
	return access.NewContractCreds(h.Bytes(), contractName, decryptRule)
}

func readSeq(r store.Readable) (uint64, error) {
	value, err := r.Get(seqKey)
	if err != nil {
		return 0, xerrors.Errorf("failed to read sequence: %v", err)
	}

	if len(value) != 8 {
		return 0, nil
	}

	return binary.BigEndian.Uint64(value), nil
}
