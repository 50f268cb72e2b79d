package forecast

import (
	"github.com/holiman/uint256"
	"go.dedis.ch/forecast/core/access"
	"go.dedis.ch/forecast/core/store"
	"go.dedis.ch/forecast/core/store/prefixed"
	"golang.org/x/xerrors"
)

// Deposit credits the external balance of the account. Only the operator can
// fund an account.
func (l *Ledger) Deposit(snap store.TxSnapshot, caller access.Identity, account string,
	amount *uint256.Int) error {

	ly := newLayout(snap)

	err := l.checkOperator(ly, caller)
	if err != nil {
		return err
	}

	if account == "" {
		return xerrors.New("missing account")
	}

	if amount == nil || amount.IsZero() {
		return xerrors.Errorf("%w: deposit of zero", ErrValueOutOfRange)
	}

	err = credit(ly.balances, []byte(account), amount)
	if err != nil {
		return xerrors.Errorf("failed to deposit: %w", err)
	}

	l.logger.Info().
		Str("account", account).
		Str("amount", amount.Dec()).
		Msg("deposit")

	return nil
}

// Balance returns the external balance of the account.
func (l *Ledger) Balance(r store.Readable, account string) (*uint256.Int, error) {
	amount, err := readAmount(prefixed.NewReadable(balancesPrefix, r), []byte(account))
	if err != nil {
		return nil, xerrors.Errorf("balances: %v", err)
	}

	return amount, nil
}

// Custody returns the total of the stakes held by the ledger.
func (l *Ledger) Custody(r store.Readable) (*uint256.Int, error) {
	amount, err := readAmount(prefixed.NewReadable(custodyPrefix, r), custodyKey)
	if err != nil {
		return nil, xerrors.Errorf("custody: %v", err)
	}

	return amount, nil
}

// escrow moves the stake from the balance of the user to the custody of the
// ledger.
func escrow(ly layout, user []byte, stake *uint256.Int) error {
	balance, err := readAmount(ly.balances, user)
	if err != nil {
		return xerrors.Errorf("balances: %v", err)
	}

	if balance.Lt(stake) {
		return xerrors.Errorf("%w: balance %s < stake %s",
			ErrInsufficientFunds, balance.Dec(), stake.Dec())
	}

	err = writeAmount(ly.balances, user, new(uint256.Int).Sub(balance, stake))
	if err != nil {
		return xerrors.Errorf("failed to debit: %w", err)
	}

	err = credit(ly.custody, custodyKey, stake)
	if err != nil {
		return xerrors.Errorf("custody: %w", err)
	}

	return nil
}

func credit(snap store.Snapshot, key []byte, amount *uint256.Int) error {
	if amount == nil {
		return xerrors.New("missing amount")
	}

	current, err := readAmount(snap, key)
	if err != nil {
		return err
	}

	sum, overflow := new(uint256.Int).AddOverflow(current, amount)
	if overflow {
		return xerrors.Errorf("%w: sum overflows", ErrValueOutOfRange)
	}

	return writeAmount(snap, key, sum)
}
