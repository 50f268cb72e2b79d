// Package serial implements an ordering service that applies the transactions
// one after the other, in the order they are submitted.
//
// Each transaction is executed inside an update of the repository. The current
// day is sampled once before the execution and the staged snapshot is
// committed only if the transaction is accepted. A transaction with a wrong
// nonce is refused before it reaches the execution.
package serial

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.dedis.ch/forecast"
	"go.dedis.ch/forecast/core/access"
	"go.dedis.ch/forecast/core/clock"
	"go.dedis.ch/forecast/core/execution"
	"go.dedis.ch/forecast/core/store"
	"go.dedis.ch/forecast/core/store/prefixed"
	"go.dedis.ch/forecast/core/txn"
	"golang.org/x/xerrors"
)

const noncePrefix = "nonce"

var (
	promAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "forecast_serial_transactions_accepted_total",
		Help: "total number of accepted transactions",
	})

	promRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "forecast_serial_transactions_rejected_total",
		Help: "total number of rejected transactions",
	})
)

func init() {
	forecast.PromCollectors = append(forecast.PromCollectors, promAccepted, promRejected)
}

// errRejected aborts the update of a transaction that was not accepted.
var errRejected = xerrors.New("transaction rejected")

// Service is an ordering service that serializes the transactions.
//
// - implements ordering.Service
type Service struct {
	sync.Mutex

	repo   store.Repository
	exec   execution.Service
	clock  clock.Clock
	logger zerolog.Logger
}

// NewService creates a new service that applies the transactions to the
// repository with the execution service.
func NewService(repo store.Repository, exec execution.Service, c clock.Clock) *Service {
	return &Service{
		repo:   repo,
		exec:   exec,
		clock:  c,
		logger: forecast.Logger.With().Str("service", "serial").Logger(),
	}
}

// Submit implements ordering.Service. It applies the transaction as a single
// atomic transition.
func (s *Service) Submit(ctx context.Context, tx txn.Transaction) (execution.Result, error) {
	s.Lock()
	defer s.Unlock()

	err := ctx.Err()
	if err != nil {
		return execution.Result{}, xerrors.Errorf("context: %v", err)
	}

	step := execution.Step{
		Current: tx,
		Day:     s.clock.CurrentDay(),
	}

	var res execution.Result

	err = s.repo.Update(func(snap store.TxSnapshot) error {
		nonces := prefixed.NewSnapshot(noncePrefix, snap)

		key, err := nonceKey(tx.GetIdentity())
		if err != nil {
			return xerrors.Errorf("identity: %v", err)
		}

		expected, err := readNonce(nonces, key)
		if err != nil {
			return err
		}

		if tx.GetNonce() != expected {
			res.Message = xerrors.Errorf("nonce '%d' != '%d'", tx.GetNonce(), expected).Error()
			return errRejected
		}

		res, err = s.exec.Execute(snap, step)
		if err != nil {
			return xerrors.Errorf("failed to execute tx: %v", err)
		}

		if !res.Accepted {
			return errRejected
		}

		return writeNonce(nonces, key, expected+1)
	})

	if xerrors.Is(err, errRejected) {
		promRejected.Inc()

		s.logger.Info().
			Hex("tx", tx.GetID()).
			Uint64("day", uint64(step.Day)).
			Str("reason", res.Message).
			Msg("transaction refused")

		return res, nil
	}

	if err != nil {
		return execution.Result{}, xerrors.Errorf("failed to update: %v", err)
	}

	promAccepted.Inc()

	s.logger.Debug().
		Hex("tx", tx.GetID()).
		Uint64("day", uint64(step.Day)).
		Msg("transaction accepted")

	return res, nil
}

// GetNonce implements ordering.Service and signed.Client. It returns the nonce
// the next transaction of the identity must have.
func (s *Service) GetNonce(ident access.Identity) (uint64, error) {
	key, err := nonceKey(ident)
	if err != nil {
		return 0, xerrors.Errorf("identity: %v", err)
	}

	var nonce uint64

	err = s.repo.View(func(r store.Readable) error {
		nonce, err = readNonce(prefixed.NewReadable(noncePrefix, r), key)
		return err
	})

	if err != nil {
		return 0, xerrors.Errorf("failed to read: %v", err)
	}

	return nonce, nil
}

// View implements ordering.Service.
func (s *Service) View(fn func(store.Readable) error) error {
	return s.repo.View(fn)
}

func nonceKey(ident access.Identity) ([]byte, error) {
	if ident == nil {
		return nil, xerrors.New("missing identity")
	}

	return ident.MarshalText()
}

func readNonce(r store.Readable, key []byte) (uint64, error) {
	value, err := r.Get(key)
	if err != nil {
		return 0, xerrors.Errorf("failed to read nonce: %v", err)
	}

	if len(value) != 8 {
		return 0, nil
	}

	return binary.BigEndian.Uint64(value), nil
}

func writeNonce(w store.Writable, key []byte, nonce uint64) error {
	buffer := make([]byte, 8)
	binary.BigEndian.PutUint64(buffer, nonce)

	err := w.Set(key, buffer)
	if err != nil {
		return xerrors.Errorf("failed to write nonce: %v", err)
	}

	return nil
}
