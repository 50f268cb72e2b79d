package forecast

import (
	"encoding/json"
	"strconv"

	"github.com/holiman/uint256"
	"go.dedis.ch/forecast/confidential"
	"go.dedis.ch/forecast/core/access"
	"go.dedis.ch/forecast/core/clock"
	"go.dedis.ch/forecast/core/store"
	"go.dedis.ch/forecast/core/store/prefixed"
	"go.dedis.ch/forecast/notify"
	"golang.org/x/xerrors"
)

// State is the state of a prediction.
type State uint8

const (
	// Absent is the state of a prediction that was never placed.
	Absent State = iota
	// Open is the state of a placed prediction waiting for its confirmation.
	Open
	// Confirmed is the state of a settled prediction.
	Confirmed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Open:
		return "open"
	case Confirmed:
		return "confirmed"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Prediction is the record of a user for an asset and a day. The price and
// the direction are only known by the confidential engine.
type Prediction struct {
	State     State
	Price     confidential.Handle
	Direction confidential.Handle
	Stake     *uint256.Int
}

// Exists returns true if the prediction was placed.
func (p Prediction) Exists() bool {
	return p.State != Absent
}

type predictionJSON struct {
	State     State               `json:"state"`
	Price     confidential.Handle `json:"price"`
	Direction confidential.Handle `json:"direction"`
	Stake     string              `json:"stake"`
}

// MarshalJSON implements json.Marshaler.
func (p Prediction) MarshalJSON() ([]byte, error) {
	m := predictionJSON{
		State:     p.State,
		Price:     p.Price,
		Direction: p.Direction,
		Stake:     "0",
	}

	if p.Stake != nil {
		m.Stake = p.Stake.Dec()
	}

	return json.Marshal(m)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Prediction) UnmarshalJSON(data []byte) error {
	var m predictionJSON

	err := json.Unmarshal(data, &m)
	if err != nil {
		return err
	}

	stake, err := uint256.FromDecimal(m.Stake)
	if err != nil {
		return xerrors.Errorf("malformed stake '%s': %v", m.Stake, err)
	}

	*p = Prediction{
		State:     m.State,
		Price:     m.Price,
		Direction: m.Direction,
		Stake:     stake,
	}

	return nil
}

// PlacePrediction creates the prediction of the caller for the asset on the
// next day. The price and the direction are imported from the inputs
// encrypted by the caller, and the stake is moved from the balance of the
// caller to the custody of the ledger.
func (l *Ledger) PlacePrediction(snap store.TxSnapshot, caller access.Identity, asset Asset,
	price, direction confidential.Input, proof confidential.Proof, stake *uint256.Int,
	today clock.Day) error {

	if !asset.Valid() {
		return xerrors.Errorf("%w: %v", ErrInvalidAsset, asset)
	}

	if stake == nil || stake.IsZero() {
		return ErrNoStake
	}

	if stake.BitLen() > 128 {
		return xerrors.Errorf("%w: %s", ErrStakeTooLarge, stake.Dec())
	}

	user, err := identityText(caller)
	if err != nil {
		return xerrors.Errorf("caller: %v", err)
	}

	ly := newLayout(snap)
	day := today + 1
	key := predictionKey(user, asset, day)

	current, err := readPrediction(ly.predictions, key)
	if err != nil {
		return err
	}

	if current.Exists() {
		return xerrors.Errorf("%w: %v on day %d is %v", ErrPredictionExists, asset, day, current.State)
	}

	if price.Type != confidential.Uint64 {
		return xerrors.Errorf("%w: price is %v", confidential.ErrTypeMismatch, price.Type)
	}

	if direction.Type != confidential.Uint8 {
		return xerrors.Errorf("%w: direction is %v", confidential.ErrTypeMismatch, direction.Type)
	}

	session := l.engine.Bind(snap)

	priceHandle, err := session.FromExternal(price, proof, caller)
	if err != nil {
		return xerrors.Errorf("price: %w", err)
	}

	dirHandle, err := session.FromExternal(direction, proof, caller)
	if err != nil {
		return xerrors.Errorf("direction: %w", err)
	}

	err = escrow(ly, user, stake)
	if err != nil {
		return xerrors.Errorf("escrow: %w", err)
	}

	pred := Prediction{
		State:     Open,
		Price:     priceHandle,
		Direction: dirHandle,
		Stake:     new(uint256.Int).Set(stake),
	}

	err = writePrediction(ly.predictions, key, pred)
	if err != nil {
		return err
	}

	err = l.grant(session, caller, priceHandle, dirHandle)
	if err != nil {
		return err
	}

	_, err = l.initPoints(session, ly, user, caller)
	if err != nil {
		return err
	}

	evt := notify.NewEvent(notify.PredictionPlaced)
	evt.Asset = asset.String()
	evt.Day = uint64(day)
	evt.User = string(user)
	evt.Stake = stake.Dec()

	l.publish(snap, evt)
	count(snap, promPlaced, asset)

	return nil
}

// ConfirmPrediction settles the prediction of the caller for the asset and the
// day. The reward, the stake when the prediction is correct and zero
// otherwise, is added to the encrypted points of the caller.
func (l *Ledger) ConfirmPrediction(snap store.TxSnapshot, caller access.Identity, asset Asset,
	day clock.Day, today clock.Day) error {

	if !asset.Valid() {
		return xerrors.Errorf("%w: %v", ErrInvalidAsset, asset)
	}

	if day > today {
		return xerrors.Errorf("%w: day %d is after %d", ErrTooEarly, day, today)
	}

	ly := newLayout(snap)

	price, recorded, err := readUint64(ly.prices, priceKey(asset, day))
	if err != nil {
		return xerrors.Errorf("prices: %v", err)
	}

	if !recorded {
		return xerrors.Errorf("%w: %v on day %d", ErrPriceNotRecorded, asset, day)
	}

	user, err := identityText(caller)
	if err != nil {
		return xerrors.Errorf("caller: %v", err)
	}

	key := predictionKey(user, asset, day)

	pred, err := readPrediction(ly.predictions, key)
	if err != nil {
		return err
	}

	switch pred.State {
	case Absent:
		return xerrors.Errorf("%w: %v on day %d", ErrPredictionMissing, asset, day)
	case Confirmed:
		return xerrors.Errorf("%w: %v on day %d", ErrAlreadyConfirmed, asset, day)
	}

	session := l.engine.Bind(snap)

	reward, err := settle(session, price, pred)
	if err != nil {
		return xerrors.Errorf("failed to settle: %w", err)
	}

	err = l.addPoints(session, ly, user, caller, reward)
	if err != nil {
		return err
	}

	pred.State = Confirmed

	err = writePrediction(ly.predictions, key, pred)
	if err != nil {
		return err
	}

	evt := notify.NewEvent(notify.PredictionConfirmed)
	evt.Asset = asset.String()
	evt.Day = uint64(day)
	evt.Price = price
	evt.User = string(user)

	l.publish(snap, evt)
	count(snap, promConfirmed, asset)

	return nil
}

// GetPrediction returns the prediction of the user for the asset and the day.
// An absent prediction has zero handles.
func (l *Ledger) GetPrediction(r store.Readable, user string, asset Asset, day clock.Day) (Prediction, error) {
	return readPrediction(prefixed.NewReadable(predictionsPrefix, r),
		predictionKey([]byte(user), asset, day))
}

// grant allows both the ledger and the caller to decrypt the handles.
func (l *Ledger) grant(session confidential.Session, caller access.Identity,
	handles ...confidential.Handle) error {

	for _, h := range handles {
		for _, principal := range []access.Identity{l.self, caller} {
			err := session.Grant(h, principal)
			if err != nil {
				return xerrors.Errorf("failed to grant %v: %w", h, err)
			}
		}
	}

	return nil
}

func readPrediction(r store.Readable, key []byte) (Prediction, error) {
	pred := Prediction{Stake: uint256.NewInt(0)}

	data, err := r.Get(key)
	if err != nil {
		return pred, xerrors.Errorf("failed to read prediction: %v", err)
	}

	if len(data) == 0 {
		return pred, nil
	}

	err = json.Unmarshal(data, &pred)
	if err != nil {
		return pred, xerrors.Errorf("malformed prediction: %v", err)
	}

	return pred, nil
}

func writePrediction(w store.Writable, key []byte, pred Prediction) error {
	data, err := json.Marshal(pred)
	if err != nil {
		return xerrors.Errorf("failed to encode prediction: %v", err)
	}

	err = w.Set(key, data)
	if err != nil {
		return xerrors.Errorf("failed to store prediction: %v", err)
	}

	return nil
}
