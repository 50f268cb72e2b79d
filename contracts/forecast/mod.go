// Package forecast implements the confidential prediction ledger as a native
// contract.
//
// An operator records the price of each asset once per day. A user predicts,
// for the next day, whether the price will be greater or less than a value,
// and escrows a stake. Both the predicted value and the direction are
// encrypted for the confidential engine. Once the day has elapsed and its price
// is recorded, the user confirms the prediction: the ledger computes on the
// encrypted values whether it was correct and adds the stake, or zero, to the
// encrypted points of the user. The ledger never learns which predictions were
// correct.
//
// Every operation is a single transition on a snapshot: it either applies all
// its writes and notifications, or fails and leaves the state untouched.
package forecast

import (
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.dedis.ch/forecast"
	"go.dedis.ch/forecast/confidential"
	"go.dedis.ch/forecast/core/access"
	"go.dedis.ch/forecast/core/access/darc"
	"go.dedis.ch/forecast/notify"
	"golang.org/x/xerrors"
)

// ContractName is the name of the contract.
const ContractName = "go.dedis.ch/forecast.Ledger"

var (
	// ErrUnauthorized is returned when the caller lacks the role required by
	// the operation.
	ErrUnauthorized = xerrors.New("unauthorized")

	// ErrInvalidAsset is returned for an asset outside of the enumeration.
	ErrInvalidAsset = xerrors.New("invalid asset")

	// ErrValueOutOfRange is returned when a value exceeds its storage width.
	ErrValueOutOfRange = xerrors.New("value out of range")

	// ErrAlreadyRecorded is returned when the price of the day is already
	// recorded.
	ErrAlreadyRecorded = xerrors.New("price already recorded")

	// ErrPredictionExists is returned when the user already predicted for the
	// asset and the day.
	ErrPredictionExists = xerrors.New("prediction exists")

	// ErrAlreadyConfirmed is returned when the prediction is already settled.
	ErrAlreadyConfirmed = xerrors.New("prediction already confirmed")

	// ErrNoStake is returned when a prediction is placed without stake.
	ErrNoStake = xerrors.New("no stake")

	// ErrStakeTooLarge is returned when the stake does not fit 128 bits. It
	// wraps ErrValueOutOfRange.
	ErrStakeTooLarge = xerrors.Errorf("stake too large: %w", ErrValueOutOfRange)

	// ErrTooEarly is returned when a prediction is confirmed before its day
	// has elapsed.
	ErrTooEarly = xerrors.New("too early")

	// ErrPriceNotRecorded is returned when the price of the day of the
	// prediction is not recorded.
	ErrPriceNotRecorded = xerrors.New("price not recorded")

	// ErrPredictionMissing is returned when the user has no prediction for the
	// asset and the day.
	ErrPredictionMissing = xerrors.New("prediction missing")

	// ErrInsufficientFunds is returned when the balance of the user is below
	// the stake.
	ErrInsufficientFunds = xerrors.New("insufficient funds")

	// ErrAlreadyInitialized is returned when the genesis is applied twice.
	ErrAlreadyInitialized = xerrors.New("already initialized")
)

// Asset is the identifier of a priced asset.
type Asset uint8

const (
	// ETH is the primary asset.
	ETH Asset = iota
	// BTC is the secondary asset.
	BTC

	// AssetCount is the number of supported assets.
	AssetCount = 2
)

var assetNames = [AssetCount]string{"ETH", "BTC"}

// Valid returns true if the asset is part of the enumeration.
func (a Asset) Valid() bool {
	return int(a) < AssetCount
}

// String implements fmt.Stringer.
func (a Asset) String() string {
	if !a.Valid() {
		return "Asset(" + strconv.Itoa(int(a)) + ")"
	}

	return assetNames[a]
}

// ParseAsset parses the name or the index of an asset. The asset is not
// validated so that the operations can report ErrInvalidAsset.
func ParseAsset(text string) (Asset, error) {
	for i, name := range assetNames {
		if strings.EqualFold(name, text) {
			return Asset(i), nil
		}
	}

	index, err := strconv.ParseUint(text, 10, 8)
	if err != nil {
		return 0, xerrors.Errorf("%w: '%s'", ErrInvalidAsset, text)
	}

	return Asset(index), nil
}

// Direction values of a prediction, by convention.
const (
	DirectionGreater = 1
	DirectionLess    = 2
)

var (
	promPrices = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forecast_prices_recorded_total",
		Help: "total number of recorded prices",
	}, []string{"asset"})

	promPlaced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forecast_predictions_placed_total",
		Help: "total number of placed predictions",
	}, []string{"asset"})

	promConfirmed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forecast_predictions_confirmed_total",
		Help: "total number of confirmed predictions",
	}, []string{"asset"})
)

func init() {
	forecast.PromCollectors = append(forecast.PromCollectors, promPrices, promPlaced, promConfirmed)
}

// Ledger implements the operations of the prediction ledger on a snapshot.
type Ledger struct {
	engine   confidential.Engine
	access   access.Service
	self     access.Identity
	notifier notify.Notifier
	logger   zerolog.Logger
}

// NewLedger returns a ledger that computes with the engine and publishes the
// notifications of committed transitions to the notifier.
func NewLedger(engine confidential.Engine, notifier notify.Notifier) *Ledger {
	return &Ledger{
		engine:   engine,
		access:   darc.NewService(),
		self:     access.NewContractIdentity(ContractName),
		notifier: notifier,
		logger:   forecast.Logger.With().Str("contract", "forecast").Logger(),
	}
}

// Identity returns the principal of the ledger itself.
func (l *Ledger) Identity() access.Identity {
	return l.self
}
