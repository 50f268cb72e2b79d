package confidential

import (
	"github.com/holiman/uint256"
	"go.dedis.ch/forecast/crypto"
	"go.dedis.ch/forecast/crypto/ed25519"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/util/random"
	"golang.org/x/xerrors"
)

// Ciphertext is an ElGamal ciphertext (K, C) on the Ed25519 curve.
type Ciphertext struct {
	K []byte `json:"k"`
	C []byte `json:"c"`
}

// Encrypt embeds the message into a point and ElGamal-encrypts it for the
// public key.
func Encrypt(pubkey kyber.Point, message []byte) (Ciphertext, error) {
	ct, _, err := encrypt(pubkey, message)

	return ct, err
}

// EncryptInput encrypts the value for the engine key of the ledger of the
// domain. The input carries a proof that the owner knows the randomness of the
// ciphertext, so that a ciphertext copied from another input cannot be
// submitted by a different owner.
func EncryptInput(pubkey kyber.Point, t Type, value *uint256.Int, domain string,
	owner []byte) (Input, error) {

	data, err := EncodeValue(t, value)
	if err != nil {
		return Input{}, err
	}

	ct, k, err := encrypt(pubkey, data)
	if err != nil {
		return Input{}, err
	}

	in := Input{Type: t, Ciphertext: ct}

	suite := ed25519.Suite()

	r := suite.Scalar().Pick(random.New())
	R := suite.Point().Mul(r, nil)

	rbuf, err := R.MarshalBinary()
	if err != nil {
		return Input{}, xerrors.Errorf("failed to marshal commitment: %v", err)
	}

	c := in.challenge(domain, owner, rbuf)
	z := suite.Scalar().Add(r, suite.Scalar().Mul(c, k))

	zbuf, err := z.MarshalBinary()
	if err != nil {
		return Input{}, xerrors.Errorf("failed to marshal response: %v", err)
	}

	in.Knowledge = append(rbuf, zbuf...)

	return in, nil
}

// VerifyKnowledge returns nil if the proof of knowledge of the input was made
// by the owner for the domain. It checks z*G == R + c*K.
func (in Input) VerifyKnowledge(domain string, owner []byte) error {
	suite := ed25519.Suite()

	size := suite.PointLen()
	if len(in.Knowledge) != size+suite.ScalarLen() {
		return xerrors.Errorf("invalid knowledge length %d", len(in.Knowledge))
	}

	R := suite.Point()
	err := R.UnmarshalBinary(in.Knowledge[:size])
	if err != nil {
		return xerrors.Errorf("malformed commitment: %v", err)
	}

	z := suite.Scalar()
	err = z.UnmarshalBinary(in.Knowledge[size:])
	if err != nil {
		return xerrors.Errorf("malformed response: %v", err)
	}

	K := suite.Point()
	err = K.UnmarshalBinary(in.Ciphertext.K)
	if err != nil {
		return xerrors.Errorf("malformed K: %v", err)
	}

	c := in.challenge(domain, owner, in.Knowledge[:size])

	left := suite.Point().Mul(z, nil)
	right := suite.Point().Add(R, suite.Point().Mul(c, K))

	if !left.Equal(right) {
		return xerrors.New("wrong knowledge of the randomness")
	}

	return nil
}

func (in Input) challenge(domain string, owner []byte, commitment []byte) kyber.Scalar {
	h := crypto.NewHashFactory(crypto.Sha3_256).New()

	h.Write([]byte(domain))
	h.Write(owner)
	h.Write(in.Digest())
	h.Write(commitment)

	return ed25519.Suite().Scalar().SetBytes(h.Sum(nil))
}

func encrypt(pubkey kyber.Point, message []byte) (Ciphertext, kyber.Scalar, error) {
	suite := ed25519.Suite()

	if len(message) > suite.Point().EmbedLen() {
		return Ciphertext{}, nil, xerrors.Errorf("message too long")
	}

	M := suite.Point().Embed(message, random.New())

	k := suite.Scalar().Pick(random.New())
	K := suite.Point().Mul(k, nil)
	S := suite.Point().Mul(k, pubkey)
	C := S.Add(S, M)

	kbuf, err := K.MarshalBinary()
	if err != nil {
		return Ciphertext{}, nil, xerrors.Errorf("failed to marshal K: %v", err)
	}

	cbuf, err := C.MarshalBinary()
	if err != nil {
		return Ciphertext{}, nil, xerrors.Errorf("failed to marshal C: %v", err)
	}

	return Ciphertext{K: kbuf, C: cbuf}, k, nil
}

// Decrypt recovers the embedded message with the private key.
func Decrypt(secret kyber.Scalar, ct Ciphertext) ([]byte, error) {
	suite := ed25519.Suite()

	K := suite.Point()
	err := K.UnmarshalBinary(ct.K)
	if err != nil {
		return nil, xerrors.Errorf("malformed K: %v", err)
	}

	C := suite.Point()
	err = C.UnmarshalBinary(ct.C)
	if err != nil {
		return nil, xerrors.Errorf("malformed C: %v", err)
	}

	S := suite.Point().Mul(secret, K)
	M := suite.Point().Sub(C, S)

	message, err := M.Data()
	if err != nil {
		return nil, xerrors.Errorf("failed to extract embedded data: %v", err)
	}

	return message, nil
}

// Bytes returns the concatenation of K and C.
func (ct Ciphertext) Bytes() []byte {
	return append(append([]byte{}, ct.K...), ct.C...)
}

// EncodeValue returns the fixed-size big-endian form of the value for the
// type.
func EncodeValue(t Type, value *uint256.Int) ([]byte, error) {
	if !t.Valid() {
		return nil, xerrors.Errorf("unknown type %v", t)
	}

	if value.Gt(t.Max()) {
		return nil, xerrors.Errorf("%w: %s > %s", ErrOverflow, value.Dec(), t.Max().Dec())
	}

	full := value.Bytes32()

	return full[32-t.Size():], nil
}

// DecodeValue parses the fixed-size form of a value of the type.
func DecodeValue(t Type, data []byte) (*uint256.Int, error) {
	if !t.Valid() {
		return nil, xerrors.Errorf("unknown type %v", t)
	}

	if len(data) != t.Size() {
		return nil, xerrors.Errorf("invalid length %d for %v", len(data), t)
	}

	value := new(uint256.Int).SetBytes(data)

	if value.Gt(t.Max()) {
		return nil, xerrors.Errorf("%w: %s > %s", ErrOverflow, value.Dec(), t.Max().Dec())
	}

	return value, nil
}
