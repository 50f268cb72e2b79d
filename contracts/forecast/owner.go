package forecast

import (
	"github.com/holiman/uint256"
	"go.dedis.ch/forecast/core/access"
	"go.dedis.ch/forecast/core/clock"
	"go.dedis.ch/forecast/core/store"
	"go.dedis.ch/forecast/core/store/prefixed"
	"go.dedis.ch/forecast/notify"
	"golang.org/x/xerrors"
)

// Genesis initializes the ledger with the operator and the initial balances,
// keyed by the text of the identities.
func (l *Ledger) Genesis(snap store.TxSnapshot, owner access.Identity,
	balances map[string]*uint256.Int, today clock.Day) error {

	ly := newLayout(snap)

	current, err := ly.owner.Get(ownerKey)
	if err != nil {
		return xerrors.Errorf("failed to read owner: %v", err)
	}

	if len(current) > 0 {
		return xerrors.Errorf("%w: owner is %s", ErrAlreadyInitialized, current)
	}

	text, err := identityText(owner)
	if err != nil {
		return xerrors.Errorf("owner: %v", err)
	}

	err = ly.owner.Set(ownerKey, text)
	if err != nil {
		return xerrors.Errorf("failed to store owner: %v", err)
	}

	err = l.access.Grant(ly.access, operatorCreds, owner)
	if err != nil {
		return xerrors.Errorf("failed to grant operator: %v", err)
	}

	for account, amount := range balances {
		err = credit(ly.balances, []byte(account), amount)
		if err != nil {
			return xerrors.Errorf("balance of '%s': %w", account, err)
		}
	}

	evt := notify.NewEvent(notify.OwnerUpdated)
	evt.Day = uint64(today)
	evt.New = string(text)

	l.publish(snap, evt)

	return nil
}

// Owner returns the text of the operator identity, or an empty string before
// the genesis.
func (l *Ledger) Owner(r store.Readable) (string, error) {
	owner, err := prefixed.NewReadable(ownerPrefix, r).Get(ownerKey)
	if err != nil {
		return "", xerrors.Errorf("failed to read owner: %v", err)
	}

	return string(owner), nil
}

func (l *Ledger) checkOperator(ly layout, caller access.Identity) error {
	if caller == nil {
		return xerrors.Errorf("%w: missing identity", ErrUnauthorized)
	}

	err := l.access.Match(ly.access, operatorCreds, caller)
	if err != nil {
		return xerrors.Errorf("%w: %v", ErrUnauthorized, err)
	}

	return nil
}
