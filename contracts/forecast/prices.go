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

// RecordPrice records the price of the asset for the current day. Only the
// operator can record a price, and only once per asset and day.
func (l *Ledger) RecordPrice(snap store.TxSnapshot, caller access.Identity, asset Asset,
	price *uint256.Int, today clock.Day) error {

	ly := newLayout(snap)

	err := l.checkOperator(ly, caller)
	if err != nil {
		return err
	}

	if !asset.Valid() {
		return xerrors.Errorf("%w: %v", ErrInvalidAsset, asset)
	}

	if price == nil || !price.IsUint64() {
		return xerrors.Errorf("%w: price does not fit 64 bits", ErrValueOutOfRange)
	}

	key := priceKey(asset, today)

	_, recorded, err := readUint64(ly.prices, key)
	if err != nil {
		return xerrors.Errorf("prices: %v", err)
	}

	if recorded {
		return xerrors.Errorf("%w: %v on day %d", ErrAlreadyRecorded, asset, today)
	}

	err = writeUint64(ly.prices, key, price.Uint64())
	if err != nil {
		return xerrors.Errorf("failed to store price: %v", err)
	}

	err = writeUint64(ly.latest, []byte{byte(asset)}, uint64(today))
	if err != nil {
		return xerrors.Errorf("failed to store latest day: %v", err)
	}

	evt := notify.NewEvent(notify.PriceRecorded)
	evt.Asset = asset.String()
	evt.Day = uint64(today)
	evt.Price = price.Uint64()

	l.publish(snap, evt)
	count(snap, promPrices, asset)

	return nil
}

// GetPrice returns the price of the asset for the day, and whether it is
// recorded. An absent price is zero.
func (l *Ledger) GetPrice(r store.Readable, asset Asset, day clock.Day) (uint64, bool, error) {
	price, recorded, err := readUint64(prefixed.NewReadable(pricesPrefix, r), priceKey(asset, day))
	if err != nil {
		return 0, false, xerrors.Errorf("prices: %v", err)
	}

	return price, recorded, nil
}

// GetLatestDay returns the day of the most recent price of the asset, or zero
// when none was recorded.
func (l *Ledger) GetLatestDay(r store.Readable, asset Asset) (clock.Day, error) {
	day, _, err := readUint64(prefixed.NewReadable(latestPrefix, r), []byte{byte(asset)})
	if err != nil {
		return 0, xerrors.Errorf("latest: %v", err)
	}

	return clock.Day(day), nil
}
