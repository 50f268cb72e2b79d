// Package client implements the operations a user performs outside of the
// ledger: encrypting the inputs of a prediction for the engine, and turning a
// handle the user was granted into a plaintext value.
//
// Decryption is a round trip. The client generates an ephemeral key pair,
// signs a time-boxed authorization for it, and asks the relayer to re-encrypt
// the value of the handle for the ephemeral key. Only the client can then
// decrypt the answer.
package client

import (
	"context"
	"time"

	"github.com/holiman/uint256"
	"go.dedis.ch/forecast/confidential"
	"go.dedis.ch/forecast/crypto"
	"go.dedis.ch/forecast/crypto/ed25519"
	"go.dedis.ch/kyber/v3"
	"golang.org/x/xerrors"
)

// DefaultTTL is the validity of an authorization.
const DefaultTTL = 5 * time.Minute

// ErrUninitialized is returned when the handle is the zero sentinel, meaning
// the value was never created.
var ErrUninitialized = xerrors.New("uninitialized value")

// KeyPair is an ephemeral ElGamal key pair.
type KeyPair struct {
	Secret kyber.Scalar
	Public kyber.Point
}

// GenerateKeyPair returns a new random key pair.
func GenerateKeyPair() KeyPair {
	suite := ed25519.Suite()

	secret := suite.Scalar().Pick(suite.RandomStream())

	return KeyPair{
		Secret: secret,
		Public: suite.Point().Mul(secret, nil),
	}
}

// Client is the confidential client of a user.
type Client struct {
	signer    crypto.Signer
	engineKey kyber.Point
	domain    string
	relayer   confidential.Relayer
	now       func() time.Time
}

// NewClient returns a client for the user of the signer. The engine key and
// the domain identify the ledger.
func NewClient(signer crypto.Signer, engineKey kyber.Point, domain string,
	relayer confidential.Relayer) *Client {

	return &Client{
		signer:    signer,
		engineKey: engineKey,
		domain:    domain,
		relayer:   relayer,
		now:       time.Now,
	}
}

// Plaintext is a value to encrypt with its type.
type Plaintext struct {
	Type  confidential.Type
	Value *uint256.Int
}

// EncryptInputs encrypts the values for the engine and returns a single proof
// that the user produced all of them for the ledger.
func (c *Client) EncryptInputs(values ...Plaintext) ([]confidential.Input, confidential.Proof, error) {
	var proof confidential.Proof

	owner, err := c.signer.GetPublicKey().MarshalText()
	if err != nil {
		return nil, proof, xerrors.Errorf("failed to marshal identity: %v", err)
	}

	inputs := make([]confidential.Input, len(values))
	digests := make([][]byte, len(values))

	for i, pt := range values {
		inputs[i], err = confidential.EncryptInput(c.engineKey, pt.Type, pt.Value, c.domain, owner)
		if err != nil {
			return nil, proof, xerrors.Errorf("failed to encrypt input %d: %w", i, err)
		}

		digests[i] = inputs[i].Digest()
	}

	sig, err := c.sign(confidential.ProofDigest(c.domain, owner, digests))
	if err != nil {
		return nil, proof, xerrors.Errorf("failed to sign inputs: %v", err)
	}

	proof = confidential.Proof{
		Inputs:    digests,
		Signature: sig,
	}

	return inputs, proof, nil
}

// Authorize signs an authorization for the key pair valid for the given
// duration.
func (c *Client) Authorize(kp KeyPair, ttl time.Duration) (confidential.Authorization, []byte, error) {
	pub, err := kp.Public.MarshalBinary()
	if err != nil {
		return confidential.Authorization{}, nil, xerrors.Errorf("failed to marshal key: %v", err)
	}

	now := c.now()

	auth := confidential.Authorization{
		PublicKey: pub,
		Domain:    c.domain,
		NotBefore: now.Unix(),
		NotAfter:  now.Add(ttl).Unix(),
	}

	sig, err := c.sign(auth.Digest())
	if err != nil {
		return auth, nil, xerrors.Errorf("failed to sign authorization: %v", err)
	}

	return auth, sig, nil
}

// Decrypt returns the plaintext value of the handle. It fails with
// ErrUninitialized for the zero handle.
func (c *Client) Decrypt(ctx context.Context, h confidential.Handle) (*uint256.Int, error) {
	if h.IsZero() {
		return nil, ErrUninitialized
	}

	user, err := c.signer.GetPublicKey().MarshalText()
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal identity: %v", err)
	}

	kp := GenerateKeyPair()

	auth, sig, err := c.Authorize(kp, DefaultTTL)
	if err != nil {
		return nil, err
	}

	req := confidential.ReencryptRequest{
		Handle:        h,
		User:          string(user),
		Authorization: auth,
		Signature:     sig,
	}

	ct, err := c.relayer.Reencrypt(ctx, req)
	if err != nil {
		return nil, xerrors.Errorf("relayer: %w", err)
	}

	data, err := confidential.Decrypt(kp.Secret, ct)
	if err != nil {
		return nil, xerrors.Errorf("failed to decrypt: %v", err)
	}

	value, err := confidential.DecodeValue(h.Type(), data)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode: %v", err)
	}

	return value, nil
}

func (c *Client) sign(msg []byte) ([]byte, error) {
	sig, err := c.signer.Sign(msg)
	if err != nil {
		return nil, err
	}

	return sig.MarshalBinary()
}
