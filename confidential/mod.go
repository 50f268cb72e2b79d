// Package confidential defines the engine that computes on encrypted values.
//
// The ledger never sees the values it computes with. It manipulates opaque
// handles, and every operation returns a new handle. The only way to make a
// value depend on an encrypted condition is Select, and the only way to read a
// value is to be granted the right to decrypt its handle.
//
// An engine is bound to the snapshot of a ledger transition so that the
// handles it produces and the grants it records are committed or discarded
// together with the rest of the transition.
package confidential

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/holiman/uint256"
	"go.dedis.ch/forecast/core/access"
	"go.dedis.ch/forecast/core/store"
	"go.dedis.ch/forecast/crypto"
	"golang.org/x/xerrors"
)

var (
	// ErrInvalidProof is returned when an external input is not attested to be
	// honestly encrypted for the ledger.
	ErrInvalidProof = xerrors.New("invalid proof")

	// ErrTypeMismatch is returned when the operands of an operation have
	// incompatible types.
	ErrTypeMismatch = xerrors.New("type mismatch")

	// ErrUnknownHandle is returned when a handle was never produced by the
	// engine.
	ErrUnknownHandle = xerrors.New("unknown handle")

	// ErrOverflow is returned when a plaintext does not fit the type.
	ErrOverflow = xerrors.New("value overflows type")
)

// Type is the type of an encrypted value.
type Type byte

const (
	// Uint8 is an encrypted unsigned integer of 8 bits.
	Uint8 Type = iota + 1
	// Uint64 is an encrypted unsigned integer of 64 bits.
	Uint64
	// Uint128 is an encrypted unsigned integer of 128 bits.
	Uint128
	// Bool is an encrypted boolean.
	Bool
)

// Bits returns the width of the type, or zero for an unknown type.
func (t Type) Bits() uint {
	switch t {
	case Uint8, Bool:
		return 8
	case Uint64:
		return 64
	case Uint128:
		return 128
	default:
		return 0
	}
}

// Size returns the number of bytes of the encoded plaintext.
func (t Type) Size() int {
	return int(t.Bits() / 8)
}

// Valid returns true if the type is known.
func (t Type) Valid() bool {
	return t.Bits() > 0
}

// Max returns the largest value of the type.
func (t Type) Max() *uint256.Int {
	if t == Bool {
		return uint256.NewInt(1)
	}

	max := new(uint256.Int).Lsh(uint256.NewInt(1), t.Bits())
	return max.SubUint64(max, 1)
}

// String implements fmt.Stringer.
func (t Type) String() string {
	switch t {
	case Uint8:
		return "Enc8"
	case Uint64:
		return "Enc64"
	case Uint128:
		return "Enc128"
	case Bool:
		return "EncBool"
	default:
		return fmt.Sprintf("Type(%d)", byte(t))
	}
}

// HandleSize is the size in bytes of a handle.
const HandleSize = 32

// Handle is the opaque reference to an encrypted value. The last byte is the
// type of the value. The zero handle references nothing.
type Handle [HandleSize]byte

// ZeroHandle is the sentinel of an uninitialized value.
var ZeroHandle Handle

// NewHandle returns a handle from its binary form.
func NewHandle(data []byte) (Handle, error) {
	var h Handle

	if len(data) != HandleSize {
		return h, xerrors.Errorf("invalid handle length %d", len(data))
	}

	copy(h[:], data)

	return h, nil
}

// Type returns the type of the value referenced by the handle.
func (h Handle) Type() Type {
	return Type(h[HandleSize-1])
}

// IsZero returns true if the handle is the sentinel.
func (h Handle) IsZero() bool {
	return h == ZeroHandle
}

// Bytes returns the binary form of the handle.
func (h Handle) Bytes() []byte {
	return append([]byte{}, h[:]...)
}

// MarshalText implements encoding.TextMarshaler.
func (h Handle) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(h[:])), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Handle) UnmarshalText(text []byte) error {
	data, err := hex.DecodeString(string(text))
	if err != nil {
		return xerrors.Errorf("malformed handle: %v", err)
	}

	handle, err := NewHandle(data)
	if err != nil {
		return err
	}

	*h = handle

	return nil
}

// String implements fmt.Stringer.
func (h Handle) String() string {
	return fmt.Sprintf("%s:%x", h.Type(), h[:8])
}

// Input is a value encrypted by a client for the engine, together with the
// type it claims to have and the proof that its owner made the ciphertext.
type Input struct {
	Type       Type       `json:"type"`
	Ciphertext Ciphertext `json:"ciphertext"`
	Knowledge  []byte     `json:"knowledge"`
}

// Digest returns the fingerprint of the input.
func (in Input) Digest() []byte {
	h := crypto.NewHashFactory(crypto.Sha256).New()

	h.Write([]byte{byte(in.Type)})
	h.Write(in.Ciphertext.Bytes())

	return h.Sum(nil)
}

// Proof attests that the author of a batch of inputs encrypted them for the
// ledger. It lists the digests of the inputs and is signed by the author.
type Proof struct {
	Inputs    [][]byte `json:"inputs"`
	Signature []byte   `json:"signature"`
}

// Contains returns true if the input is part of the batch.
func (p Proof) Contains(in Input) bool {
	digest := in.Digest()

	for _, d := range p.Inputs {
		if bytes.Equal(d, digest) {
			return true
		}
	}

	return false
}

// Session is the set of operations available while the engine is bound to a
// ledger transition.
type Session interface {
	// FromExternal verifies that the input is part of the proof and imports
	// it as a new handle. It fails with ErrInvalidProof if the input is not
	// attested by the owner for the ledger.
	FromExternal(in Input, proof Proof, owner access.Identity) (Handle, error)

	// Lift encrypts a plaintext value deterministically.
	Lift(t Type, value *uint256.Int) (Handle, error)

	Gt(a, b Handle) (Handle, error)
	Lt(a, b Handle) (Handle, error)
	Eq(a, b Handle) (Handle, error)

	And(a, b Handle) (Handle, error)
	Or(a, b Handle) (Handle, error)

	// Select returns a handle to the value of a if the condition is true,
	// otherwise to the value of b.
	Select(cond, a, b Handle) (Handle, error)

	// Add returns the sum of both values, modulo the width of the type.
	Add(a, b Handle) (Handle, error)

	// Grant makes the principal an authorized decryptor of the handle. Grants
	// are idempotent and never revoked.
	Grant(h Handle, principal access.Identity) error

	// IsGranted returns true if the principal is allowed to decrypt the
	// handle.
	IsGranted(h Handle, principal access.Identity) (bool, error)
}

// Engine is a confidential computation engine.
type Engine interface {
	// Bind returns a session that reads and writes the state of the engine in
	// the snapshot of a transition.
	Bind(snap store.TxSnapshot) Session
}
