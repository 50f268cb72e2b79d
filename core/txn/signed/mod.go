// Package signed implements transactions signed by their author.
//
// The digest of a transaction covers its nonce, its arguments and the public
// key of its author. The nonce is the number of transactions of the author that
// the ledger accepted before, so that a transaction cannot be replayed.
package signed

import (
	"encoding/binary"
	"io"
	"sort"
	"sync"

	"go.dedis.ch/forecast"
	"go.dedis.ch/forecast/core/access"
	"go.dedis.ch/forecast/core/txn"
	"go.dedis.ch/forecast/crypto"
	"golang.org/x/xerrors"
)

// Transaction is a transaction signed by its author.
//
// - implements txn.Transaction
type Transaction struct {
	nonce  uint64
	args   map[string][]byte
	author crypto.PublicKey
	sig    crypto.Signature
	digest []byte
}

type options struct {
	args    map[string][]byte
	sig     crypto.Signature
	hashFac crypto.HashFactory
}

// Option is an option to create a transaction.
type Option func(*options)

// WithArg sets the argument of the key.
func WithArg(key string, value []byte) Option {
	return func(o *options) {
		o.args[key] = value
	}
}

// WithSignature sets the signature of a transaction received from its author.
func WithSignature(sig crypto.Signature) Option {
	return func(o *options) {
		o.sig = sig
	}
}

// WithHashFactory replaces the SHA-256 digest.
func WithHashFactory(f crypto.HashFactory) Option {
	return func(o *options) {
		o.hashFac = f
	}
}

// NewTransaction returns a transaction of the author with the nonce. A
// signature given as an option must be valid for the digest.
func NewTransaction(nonce uint64, author crypto.PublicKey, opts ...Option) (*Transaction, error) {
	o := options{
		args:    make(map[string][]byte),
		hashFac: crypto.NewHashFactory(crypto.Sha256),
	}

	for _, opt := range opts {
		opt(&o)
	}

	tx := &Transaction{
		nonce:  nonce,
		args:   o.args,
		author: author,
	}

	h := o.hashFac.New()

	err := tx.Fingerprint(h)
	if err != nil {
		return nil, xerrors.Errorf("failed to fingerprint: %v", err)
	}

	tx.digest = h.Sum(nil)

	if o.sig != nil {
		err = author.Verify(tx.digest, o.sig)
		if err != nil {
			return nil, xerrors.Errorf("invalid signature: %v", err)
		}

		tx.sig = o.sig
	}

	return tx, nil
}

// GetID implements txn.Transaction. It returns the digest.
func (t *Transaction) GetID() []byte {
	return t.digest
}

// GetNonce implements txn.Transaction.
func (t *Transaction) GetNonce() uint64 {
	return t.nonce
}

// GetIdentity implements txn.Transaction. It returns the public key of the
// author.
func (t *Transaction) GetIdentity() access.Identity {
	return t.author
}

// GetArg implements txn.Transaction.
func (t *Transaction) GetArg(key string) []byte {
	return t.args[key]
}

// GetSignature returns the signature, or nil if the transaction is not signed.
func (t *Transaction) GetSignature() crypto.Signature {
	return t.sig
}

// Sign signs the digest. The signer must be the author.
func (t *Transaction) Sign(signer crypto.Signer) error {
	if !signer.GetPublicKey().Equal(t.author) {
		return xerrors.New("signer is not the author")
	}

	sig, err := signer.Sign(t.digest)
	if err != nil {
		return xerrors.Errorf("failed to sign: %v", err)
	}

	t.sig = sig

	return nil
}

// Fingerprint implements txn.Transaction. It writes the nonce, the arguments
// sorted by key, each with the lengths of the key and of the value, and the
// public key of the author.
func (t *Transaction) Fingerprint(w io.Writer) error {
	_, err := w.Write(binary.BigEndian.AppendUint64(nil, t.nonce))
	if err != nil {
		return xerrors.Errorf("failed to write nonce: %v", err)
	}

	keys := make([]string, 0, len(t.args))
	for key := range t.args {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		_, err = w.Write(withLengths([]byte(key), t.args[key]))
		if err != nil {
			return xerrors.Errorf("failed to write arg '%s': %v", key, err)
		}
	}

	pk, err := t.author.MarshalBinary()
	if err != nil {
		return xerrors.Errorf("failed to marshal public key: %v", err)
	}

	_, err = w.Write(pk)
	if err != nil {
		return xerrors.Errorf("failed to write public key: %v", err)
	}

	return nil
}

func withLengths(parts ...[]byte) []byte {
	var out []byte

	for _, part := range parts {
		out = binary.BigEndian.AppendUint32(out, uint32(len(part)))
		out = append(out, part...)
	}

	return out
}

// Client returns the nonce that the next transaction of an identity must have.
type Client interface {
	GetNonce(access.Identity) (uint64, error)
}

// Manager creates the transactions of a signer with consecutive nonces. A
// refused transaction does not consume its nonce, so the manager must be
// synchronized before the next one.
//
// - implements txn.Manager
type Manager struct {
	sync.Mutex

	signer  crypto.Signer
	client  Client
	nonce   uint64
	hashFac crypto.HashFactory
}

// NewManager returns a manager for the signer. It starts at nonce zero until it
// is synchronized.
func NewManager(signer crypto.Signer, client Client) *Manager {
	return &Manager{
		signer:  signer,
		client:  client,
		hashFac: crypto.NewHashFactory(crypto.Sha256),
	}
}

// Make implements txn.Manager. It returns a signed transaction with the
// arguments and the next nonce.
func (m *Manager) Make(args ...txn.Arg) (txn.Transaction, error) {
	m.Lock()
	defer m.Unlock()

	opts := make([]Option, 0, len(args)+1)
	for _, arg := range args {
		opts = append(opts, WithArg(arg.Key, arg.Value))
	}

	opts = append(opts, WithHashFactory(m.hashFac))

	tx, err := NewTransaction(m.nonce, m.signer.GetPublicKey(), opts...)
	if err != nil {
		return nil, xerrors.Errorf("failed to create tx: %v", err)
	}

	err = tx.Sign(m.signer)
	if err != nil {
		return nil, err
	}

	m.nonce++

	return tx, nil
}

// Sync implements txn.Manager. It fetches the nonce of the signer from the
// client.
func (m *Manager) Sync() error {
	nonce, err := m.client.GetNonce(m.signer.GetPublicKey())
	if err != nil {
		return xerrors.Errorf("client: %v", err)
	}

	m.Lock()
	m.nonce = nonce
	m.Unlock()

	forecast.Logger.Debug().Uint64("nonce", nonce).Msg("manager synchronized")

	return nil
}
