// Package ed25519 implements the keys of the ledger participants on the
// Edwards 25519 curve, with Schnorr signatures.
//
// A public key is at the same time a verifier and an access identity, so that
// the ledger grants rights to the key that signed a transaction. Its text form
// is the hexadecimal encoding of the point with the "schnorr:" prefix.
package ed25519

import (
	"bytes"
	"encoding/hex"
	"strings"

	"go.dedis.ch/forecast/crypto"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/kyber/v3/suites"
	"golang.org/x/xerrors"
)

const textPrefix = "schnorr:"

var suite = suites.MustFind("Ed25519")

// Suite returns the group of the keys. The confidential engine encrypts on the
// same curve.
func Suite() suites.Suite {
	return suite
}

// PublicKey is a point of the curve.
//
// - implements crypto.PublicKey
// - implements access.Identity
type PublicKey struct {
	point kyber.Point
}

// ParsePublicKey returns the public key of the text form.
func ParsePublicKey(text string) (PublicKey, error) {
	encoded, found := strings.CutPrefix(text, textPrefix)
	if !found {
		return PublicKey{}, xerrors.Errorf("malformed public key '%s': missing prefix", text)
	}

	data, err := hex.DecodeString(encoded)
	if err != nil {
		return PublicKey{}, xerrors.Errorf("malformed public key '%s': %v", text, err)
	}

	point := suite.Point()

	err = point.UnmarshalBinary(data)
	if err != nil {
		return PublicKey{}, xerrors.Errorf("malformed public key '%s': %v", text, err)
	}

	return PublicKey{point: point}, nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (pk PublicKey) MarshalBinary() ([]byte, error) {
	return pk.point.MarshalBinary()
}

// MarshalText implements encoding.TextMarshaler. The ledger stores the
// accounts under this form.
func (pk PublicKey) MarshalText() ([]byte, error) {
	data, err := pk.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal point: %v", err)
	}

	return []byte(textPrefix + hex.EncodeToString(data)), nil
}

// Verify implements crypto.PublicKey.
func (pk PublicKey) Verify(msg []byte, sig crypto.Signature) error {
	s, ok := sig.(Signature)
	if !ok {
		return xerrors.Errorf("invalid signature type '%T'", sig)
	}

	err := schnorr.Verify(suite, pk.point, msg, s)
	if err != nil {
		return xerrors.Errorf("schnorr verify failed: %v", err)
	}

	return nil
}

// Equal implements crypto.PublicKey. A key without a point equals nothing.
func (pk PublicKey) Equal(other interface{}) bool {
	o, ok := other.(PublicKey)

	return ok && pk.point != nil && o.point != nil && pk.point.Equal(o.point)
}

// String implements fmt.Stringer. It is shortened to the first 8 bytes for the
// logs.
func (pk PublicKey) String() string {
	text, err := pk.MarshalText()
	if err != nil {
		return textPrefix + "?"
	}

	return string(text[:len(textPrefix)+16])
}

// Signature is a Schnorr signature.
//
// - implements crypto.Signature
type Signature []byte

// NewSignature returns the signature of the bytes.
func NewSignature(data []byte) Signature {
	return Signature(data)
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (sig Signature) MarshalBinary() ([]byte, error) {
	return sig, nil
}

// Equal implements crypto.Signature.
func (sig Signature) Equal(other crypto.Signature) bool {
	o, ok := other.(Signature)

	return ok && bytes.Equal(sig, o)
}

// Signer holds a private key.
//
// - implements crypto.Signer
type Signer struct {
	secret kyber.Scalar
	public kyber.Point
}

// NewSigner returns a signer with a random key.
func NewSigner() Signer {
	return newSigner(suite.Scalar().Pick(suite.RandomStream()))
}

// NewSignerFromBytes returns the signer of the private key written by
// MarshalBinary.
func NewSignerFromBytes(data []byte) (Signer, error) {
	secret := suite.Scalar()

	err := secret.UnmarshalBinary(data)
	if err != nil {
		return Signer{}, xerrors.Errorf("failed to unmarshal private key: %v", err)
	}

	return newSigner(secret), nil
}

func newSigner(secret kyber.Scalar) Signer {
	return Signer{
		secret: secret,
		public: suite.Point().Mul(secret, nil),
	}
}

// GetPublicKey implements crypto.Signer.
func (s Signer) GetPublicKey() crypto.PublicKey {
	return PublicKey{point: s.public}
}

// MarshalBinary implements encoding.BinaryMarshaler. It returns the private
// key.
func (s Signer) MarshalBinary() ([]byte, error) {
	return s.secret.MarshalBinary()
}

// Sign implements crypto.Signer.
func (s Signer) Sign(msg []byte) (crypto.Signature, error) {
	sig, err := schnorr.Sign(suite, s.secret, msg)
	if err != nil {
		return nil, xerrors.Errorf("failed to sign: %v", err)
	}

	return Signature(sig), nil
}
