package forecast

import (
	"github.com/holiman/uint256"
	"go.dedis.ch/forecast/confidential"
	"go.dedis.ch/forecast/core/clock"
	"go.dedis.ch/forecast/core/store"
)

// Viewer is the interface of a service that gives read access to the latest
// committed state.
type Viewer interface {
	View(fn func(store.Readable) error) error
}

// Reader exposes the read operations of the ledger on the committed state.
type Reader struct {
	ledger *Ledger
	viewer Viewer
	clock  clock.Clock
}

// NewReader returns a reader of the ledger.
func NewReader(ledger *Ledger, viewer Viewer, c clock.Clock) Reader {
	return Reader{
		ledger: ledger,
		viewer: viewer,
		clock:  c,
	}
}

// CurrentDay returns the current day of the ledger.
func (r Reader) CurrentDay() clock.Day {
	return r.clock.CurrentDay()
}

// Owner returns the text of the operator identity.
func (r Reader) Owner() (owner string, err error) {
	err = r.viewer.View(func(s store.Readable) error {
		owner, err = r.ledger.Owner(s)
		return err
	})

	return
}

// GetPrice returns the price of the asset for the day, and whether it is
// recorded.
func (r Reader) GetPrice(asset Asset, day clock.Day) (price uint64, recorded bool, err error) {
	err = r.viewer.View(func(s store.Readable) error {
		price, recorded, err = r.ledger.GetPrice(s, asset, day)
		return err
	})

	return
}

// GetLatestDay returns the day of the latest price of the asset.
func (r Reader) GetLatestDay(asset Asset) (day clock.Day, err error) {
	err = r.viewer.View(func(s store.Readable) error {
		day, err = r.ledger.GetLatestDay(s, asset)
		return err
	})

	return
}

// GetPrediction returns the prediction of the user for the asset and the day.
func (r Reader) GetPrediction(user string, asset Asset, day clock.Day) (pred Prediction, err error) {
	err = r.viewer.View(func(s store.Readable) error {
		pred, err = r.ledger.GetPrediction(s, user, asset, day)
		return err
	})

	return
}

// GetPoints returns the handle to the points of the user.
func (r Reader) GetPoints(user string) (h confidential.Handle, err error) {
	err = r.viewer.View(func(s store.Readable) error {
		h, err = r.ledger.GetPoints(s, user)
		return err
	})

	return
}

// Balance returns the external balance of the account.
func (r Reader) Balance(account string) (amount *uint256.Int, err error) {
	err = r.viewer.View(func(s store.Readable) error {
		amount, err = r.ledger.Balance(s, account)
		return err
	})

	return
}

// Custody returns the total of the stakes held by the ledger.
func (r Reader) Custody() (amount *uint256.Int, err error) {
	err = r.viewer.View(func(s store.Readable) error {
		amount, err = r.ledger.Custody(s)
		return err
	})

	return
}
