package coproc

import (
	"encoding/binary"

	"github.com/holiman/uint256"
	"go.dedis.ch/forecast/confidential"
	"go.dedis.ch/forecast/core/access"
	"go.dedis.ch/forecast/core/store"
	"go.dedis.ch/forecast/crypto"
	"go.dedis.ch/forecast/crypto/ed25519"
	"golang.org/x/xerrors"
)

// session is the engine bound to the snapshot of a transition.
//
// - implements confidential.Session
type session struct {
	srvc   *Service
	tx     store.Transaction
	values store.Snapshot
	acl    store.Snapshot
	seq    store.Snapshot
}

// FromExternal implements confidential.Session. The proof is the signature of
// the owner over the digests of a batch of inputs for the domain of the
// ledger. Each input must also prove that the owner encrypted it.
func (s *session) FromExternal(in confidential.Input, proof confidential.Proof,
	owner access.Identity) (confidential.Handle, error) {

	var h confidential.Handle

	if !in.Type.Valid() {
		return h, xerrors.Errorf("%w: unknown type %v", confidential.ErrInvalidProof, in.Type)
	}

	if !proof.Contains(in) {
		return h, xerrors.Errorf("%w: input not in the batch", confidential.ErrInvalidProof)
	}

	verifier, ok := owner.(interface {
		Verify(msg []byte, sig crypto.Signature) error
	})
	if !ok {
		return h, xerrors.Errorf("%w: owner '%v' cannot verify", confidential.ErrInvalidProof, owner)
	}

	text, err := owner.MarshalText()
	if err != nil {
		return h, xerrors.Errorf("failed to marshal owner: %v", err)
	}

	digest := confidential.ProofDigest(s.srvc.domain, text, proof.Inputs)

	err = verifier.Verify(digest, ed25519.NewSignature(proof.Signature))
	if err != nil {
		return h, xerrors.Errorf("%w: %v", confidential.ErrInvalidProof, err)
	}

	err = in.VerifyKnowledge(s.srvc.domain, text)
	if err != nil {
		return h, xerrors.Errorf("%w: %v", confidential.ErrInvalidProof, err)
	}

	data, err := confidential.Decrypt(s.srvc.secret, in.Ciphertext)
	if err != nil {
		return h, xerrors.Errorf("%w: %v", confidential.ErrInvalidProof, err)
	}

	value, err := confidential.DecodeValue(in.Type, data)
	if err != nil {
		return h, xerrors.Errorf("%w: %v", confidential.ErrInvalidProof, err)
	}

	return s.emit("external", in.Type, value, nil)
}

// Lift implements confidential.Session. Every call returns a fresh handle.
func (s *session) Lift(t confidential.Type, value *uint256.Int) (confidential.Handle, error) {
	if value.Gt(t.Max()) {
		return confidential.ZeroHandle,
			xerrors.Errorf("%w: %s for %v", confidential.ErrOverflow, value.Dec(), t)
	}

	return s.emit("lift", t, value, nil)
}

// Gt implements confidential.Session.
func (s *session) Gt(a, b confidential.Handle) (confidential.Handle, error) {
	return s.compare("gt", a, b, func(x, y *uint256.Int) bool { return x.Gt(y) })
}

// Lt implements confidential.Session.
func (s *session) Lt(a, b confidential.Handle) (confidential.Handle, error) {
	return s.compare("lt", a, b, func(x, y *uint256.Int) bool { return x.Lt(y) })
}

// Eq implements confidential.Session.
func (s *session) Eq(a, b confidential.Handle) (confidential.Handle, error) {
	return s.compare("eq", a, b, func(x, y *uint256.Int) bool { return x.Eq(y) })
}

// And implements confidential.Session.
func (s *session) And(a, b confidential.Handle) (confidential.Handle, error) {
	return s.logic("and", a, b, func(x, y bool) bool { return x && y })
}

// Or implements confidential.Session.
func (s *session) Or(a, b confidential.Handle) (confidential.Handle, error) {
	return s.logic("or", a, b, func(x, y bool) bool { return x || y })
}

// Select implements confidential.Session.
func (s *session) Select(cond, a, b confidential.Handle) (confidential.Handle, error) {
	if cond.Type() != confidential.Bool {
		return confidential.ZeroHandle,
			xerrors.Errorf("%w: condition is %v", confidential.ErrTypeMismatch, cond.Type())
	}

	if a.Type() != b.Type() {
		return confidential.ZeroHandle,
			xerrors.Errorf("%w: %v != %v", confidential.ErrTypeMismatch, a.Type(), b.Type())
	}

	values, err := s.loadAll(cond, a, b)
	if err != nil {
		return confidential.ZeroHandle, err
	}

	res := values[2]
	if !values[0].IsZero() {
		res = values[1]
	}

	return s.emit("select", a.Type(), res, []confidential.Handle{cond, a, b})
}

// Add implements confidential.Session.
func (s *session) Add(a, b confidential.Handle) (confidential.Handle, error) {
	if a.Type() != b.Type() || a.Type() == confidential.Bool {
		return confidential.ZeroHandle,
			xerrors.Errorf("%w: %v + %v", confidential.ErrTypeMismatch, a.Type(), b.Type())
	}

	values, err := s.loadAll(a, b)
	if err != nil {
		return confidential.ZeroHandle, err
	}

	sum := new(uint256.Int).Add(values[0], values[1])
	sum.And(sum, a.Type().Max())

	return s.emit("add", a.Type(), sum, []confidential.Handle{a, b})
}

// Grant implements confidential.Session.
func (s *session) Grant(h confidential.Handle, principal access.Identity) error {
	err := s.exists(h)
	if err != nil {
		return err
	}

	err = s.srvc.access.Grant(s.acl, decryptCreds(h), principal)
	if err != nil {
		return xerrors.Errorf("failed to grant: %v", err)
	}

	return nil
}

// IsGranted implements confidential.Session.
func (s *session) IsGranted(h confidential.Handle, principal access.Identity) (bool, error) {
	err := s.exists(h)
	if err != nil {
		return false, err
	}

	err = s.srvc.access.Match(s.acl, decryptCreds(h), principal)

	return err == nil, nil
}

func (s *session) compare(op string, a, b confidential.Handle,
	fn func(x, y *uint256.Int) bool) (confidential.Handle, error) {

	if a.Type() != b.Type() {
		return confidential.ZeroHandle,
			xerrors.Errorf("%w: %v %s %v", confidential.ErrTypeMismatch, a.Type(), op, b.Type())
	}

	values, err := s.loadAll(a, b)
	if err != nil {
		return confidential.ZeroHandle, err
	}

	return s.emit(op, confidential.Bool, boolValue(fn(values[0], values[1])),
		[]confidential.Handle{a, b})
}

func (s *session) logic(op string, a, b confidential.Handle,
	fn func(x, y bool) bool) (confidential.Handle, error) {

	if a.Type() != confidential.Bool || b.Type() != confidential.Bool {
		return confidential.ZeroHandle,
			xerrors.Errorf("%w: %v %s %v", confidential.ErrTypeMismatch, a.Type(), op, b.Type())
	}

	values, err := s.loadAll(a, b)
	if err != nil {
		return confidential.ZeroHandle, err
	}

	return s.emit(op, confidential.Bool, boolValue(fn(!values[0].IsZero(), !values[1].IsZero())),
		[]confidential.Handle{a, b})
}

func (s *session) loadAll(handles ...confidential.Handle) ([]*uint256.Int, error) {
	values := make([]*uint256.Int, len(handles))

	for i, h := range handles {
		value, err := s.srvc.load(s.values, h)
		if err != nil {
			return nil, xerrors.Errorf("operand %d: %w", i, err)
		}

		values[i] = value
	}

	return values, nil
}

func (s *session) exists(h confidential.Handle) error {
	if h.IsZero() {
		return xerrors.Errorf("%w: zero handle", confidential.ErrUnknownHandle)
	}

	raw, err := s.values.Get(h[:])
	if err != nil {
		return xerrors.Errorf("failed to read: %v", err)
	}

	if raw == nil {
		return xerrors.Errorf("%w: %v", confidential.ErrUnknownHandle, h)
	}

	return nil
}

// emit stores the value encrypted for the co-processor under a new handle
// derived from the operation, the operands and the sequence number.
func (s *session) emit(op string, t confidential.Type, value *uint256.Int,
	inputs []confidential.Handle) (confidential.Handle, error) {

	var h confidential.Handle

	data, err := confidential.EncodeValue(t, value)
	if err != nil {
		return h, xerrors.Errorf("failed to encode: %v", err)
	}

	ct, err := confidential.Encrypt(s.srvc.pubkey, data)
	if err != nil {
		return h, xerrors.Errorf("failed to encrypt: %v", err)
	}

	seq, err := readSeq(s.seq)
	if err != nil {
		return h, err
	}

	buffer := make([]byte, 8)
	binary.BigEndian.PutUint64(buffer, seq+1)

	err = s.seq.Set(seqKey, buffer)
	if err != nil {
		return h, xerrors.Errorf("failed to write sequence: %v", err)
	}

	digest := s.srvc.hashFac.New()
	digest.Write([]byte(op))
	digest.Write(buffer)
	digest.Write([]byte{byte(t)})

	for _, input := range inputs {
		digest.Write(input[:])
	}

	copy(h[:], digest.Sum(nil))
	h[confidential.HandleSize-1] = byte(t)

	err = s.values.Set(h[:], ct.Bytes())
	if err != nil {
		return confidential.ZeroHandle, xerrors.Errorf("failed to store value: %v", err)
	}

	s.tx.OnCommit(func() {
		promOps.WithLabelValues(op).Inc()
	})

	return h, nil
}

func boolValue(b bool) *uint256.Int {
	if b {
		return uint256.NewInt(1)
	}

	return uint256.NewInt(0)
}
