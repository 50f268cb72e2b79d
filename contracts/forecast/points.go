package forecast

import (
	"github.com/holiman/uint256"
	"go.dedis.ch/forecast/confidential"
	"go.dedis.ch/forecast/core/access"
	"go.dedis.ch/forecast/core/store"
	"go.dedis.ch/forecast/core/store/prefixed"
	"golang.org/x/xerrors"
)

// Account is the points account of a user. An account that was never
// initialized has the zero handle, which differs from an encrypted zero.
type Account struct {
	Points confidential.Handle
}

// Initialized returns true if the account holds a handle.
func (a Account) Initialized() bool {
	return !a.Points.IsZero()
}

// GetPoints returns the handle to the encrypted points of the user, or the
// zero handle if the user has no account.
func (l *Ledger) GetPoints(r store.Readable, user string) (confidential.Handle, error) {
	acc, err := readAccount(prefixed.NewReadable(pointsPrefix, r), []byte(user))
	if err != nil {
		return confidential.ZeroHandle, err
	}

	return acc.Points, nil
}

// initPoints creates the account of the user with an encrypted zero if it does
// not exist yet.
func (l *Ledger) initPoints(session confidential.Session, ly layout, user []byte,
	caller access.Identity) (Account, error) {

	acc, err := readAccount(ly.points, user)
	if err != nil {
		return acc, err
	}

	if acc.Initialized() {
		return acc, nil
	}

	h, err := session.Lift(confidential.Uint128, uint256.NewInt(0))
	if err != nil {
		return acc, xerrors.Errorf("failed to initialize points: %w", err)
	}

	acc.Points = h

	return acc, l.writeAccount(session, ly, user, caller, acc)
}

// addPoints adds the reward to the points of the user.
func (l *Ledger) addPoints(session confidential.Session, ly layout, user []byte,
	caller access.Identity, reward confidential.Handle) error {

	acc, err := l.initPoints(session, ly, user, caller)
	if err != nil {
		return err
	}

	sum, err := session.Add(acc.Points, reward)
	if err != nil {
		return xerrors.Errorf("failed to add points: %w", err)
	}

	return l.writeAccount(session, ly, user, caller, Account{Points: sum})
}

func (l *Ledger) writeAccount(session confidential.Session, ly layout, user []byte,
	caller access.Identity, acc Account) error {

	err := l.grant(session, caller, acc.Points)
	if err != nil {
		return err
	}

	err = ly.points.Set(user, acc.Points.Bytes())
	if err != nil {
		return xerrors.Errorf("failed to store points: %v", err)
	}

	return nil
}

func readAccount(r store.Readable, user []byte) (Account, error) {
	data, err := r.Get(user)
	if err != nil {
		return Account{}, xerrors.Errorf("failed to read points: %v", err)
	}

	if len(data) == 0 {
		return Account{}, nil
	}

	h, err := confidential.NewHandle(data)
	if err != nil {
		return Account{}, xerrors.Errorf("malformed points: %v", err)
	}

	return Account{Points: h}, nil
}
