package forecast

import (
	"encoding/binary"

	"github.com/holiman/uint256"
	"go.dedis.ch/forecast/core/access"
	"go.dedis.ch/forecast/core/clock"
	"go.dedis.ch/forecast/core/store"
	"go.dedis.ch/forecast/core/store/prefixed"
	"golang.org/x/xerrors"
)

// Namespaces of the ledger state in the store.
const (
	ownerPrefix       = "forecast.owner"
	pricesPrefix      = "forecast.prices"
	latestPrefix      = "forecast.latest"
	predictionsPrefix = "forecast.predictions"
	pointsPrefix      = "forecast.points"
	balancesPrefix    = "forecast.balances"
	custodyPrefix     = "forecast.custody"
	accessPrefix      = "forecast.access"
)

var (
	ownerKey   = []byte("owner")
	custodyKey = []byte("total")

	operatorCreds = access.NewContractCreds([]byte("operator"), ContractName, "operate")
)

// priceKey is the asset followed by the big-endian day.
func priceKey(asset Asset, day clock.Day) []byte {
	key := make([]byte, 9)
	key[0] = byte(asset)
	binary.BigEndian.PutUint64(key[1:], uint64(day))

	return key
}

// predictionKey is the price key followed by the text of the user, so that
// every key has a fixed-size head.
func predictionKey(user []byte, asset Asset, day clock.Day) []byte {
	return append(priceKey(asset, day), user...)
}

func identityText(ident access.Identity) ([]byte, error) {
	if ident == nil {
		return nil, xerrors.New("missing identity")
	}

	text, err := ident.MarshalText()
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal identity: %v", err)
	}

	return text, nil
}

func readUint64(r store.Readable, key []byte) (uint64, bool, error) {
	value, err := r.Get(key)
	if err != nil {
		return 0, false, xerrors.Errorf("failed to read: %v", err)
	}

	if len(value) == 0 {
		return 0, false, nil
	}

	if len(value) != 8 {
		return 0, false, xerrors.Errorf("malformed value of length %d", len(value))
	}

	return binary.BigEndian.Uint64(value), true, nil
}

func writeUint64(w store.Writable, key []byte, value uint64) error {
	buffer := make([]byte, 8)
	binary.BigEndian.PutUint64(buffer, value)

	return w.Set(key, buffer)
}

// readAmount returns the 128-bit amount at the key, or zero when absent.
func readAmount(r store.Readable, key []byte) (*uint256.Int, error) {
	value, err := r.Get(key)
	if err != nil {
		return nil, xerrors.Errorf("failed to read: %v", err)
	}

	if len(value) == 0 {
		return uint256.NewInt(0), nil
	}

	if len(value) != 16 {
		return nil, xerrors.Errorf("malformed amount of length %d", len(value))
	}

	return new(uint256.Int).SetBytes(value), nil
}

func writeAmount(w store.Writable, key []byte, amount *uint256.Int) error {
	if amount.BitLen() > 128 {
		return xerrors.Errorf("%w: amount %s", ErrValueOutOfRange, amount.Dec())
	}

	buffer := amount.Bytes32()

	return w.Set(key, buffer[16:])
}

// layout is the set of namespaces of a snapshot.
type layout struct {
	owner       store.Snapshot
	prices      store.Snapshot
	latest      store.Snapshot
	predictions store.Snapshot
	points      store.Snapshot
	balances    store.Snapshot
	custody     store.Snapshot
	access      store.Snapshot
}

func newLayout(snap store.Snapshot) layout {
	return layout{
		owner:       prefixed.NewSnapshot(ownerPrefix, snap),
		prices:      prefixed.NewSnapshot(pricesPrefix, snap),
		latest:      prefixed.NewSnapshot(latestPrefix, snap),
		predictions: prefixed.NewSnapshot(predictionsPrefix, snap),
		points:      prefixed.NewSnapshot(pointsPrefix, snap),
		balances:    prefixed.NewSnapshot(balancesPrefix, snap),
		custody:     prefixed.NewSnapshot(custodyPrefix, snap),
		access:      prefixed.NewSnapshot(accessPrefix, snap),
	}
}
