package forecast

import (
	"encoding/json"
	"strconv"

	"github.com/holiman/uint256"
	"go.dedis.ch/forecast/confidential"
	"go.dedis.ch/forecast/core/clock"
	"go.dedis.ch/forecast/core/execution"
	"go.dedis.ch/forecast/core/execution/native"
	"go.dedis.ch/forecast/core/store"
	"golang.org/x/xerrors"
)

const (
	// CmdArg is the argument's name to indicate the kind of command we want
	// to run on the contract. Should be one of the Command type.
	CmdArg = "forecast:command"

	// AssetArg is the argument's name for the asset, by name or index.
	AssetArg = "forecast:asset"

	// PriceArg is the argument's name for the decimal price to record.
	PriceArg = "forecast:price"

	// DayArg is the argument's name for the decimal day of a prediction.
	DayArg = "forecast:day"

	// PriceInputArg is the argument's name for the encrypted predicted price.
	PriceInputArg = "forecast:price_input"

	// DirectionInputArg is the argument's name for the encrypted direction.
	DirectionInputArg = "forecast:direction_input"

	// ProofArg is the argument's name for the proof of the encrypted inputs.
	ProofArg = "forecast:proof"

	// StakeArg is the argument's name for the decimal stake.
	StakeArg = "forecast:stake"

	// AccountArg is the argument's name for the identity credited by a
	// deposit.
	AccountArg = "forecast:account"

	// AmountArg is the argument's name for the decimal amount of a deposit.
	AmountArg = "forecast:amount"
)

// Command defines a type of command for the forecast contract.
type Command string

const (
	// CmdRecordPrice records the price of the day.
	CmdRecordPrice Command = "RECORD_PRICE"

	// CmdPlacePrediction places a prediction for the next day.
	CmdPlacePrediction Command = "PLACE_PREDICTION"

	// CmdConfirmPrediction settles a prediction.
	CmdConfirmPrediction Command = "CONFIRM_PREDICTION"

	// CmdDeposit credits the balance of an account.
	CmdDeposit Command = "DEPOSIT"
)

// RegisterContract registers the forecast contract to the given execution
// service.
func RegisterContract(exec *native.Service, c Contract) {
	exec.Set(ContractName, c)
}

// Contract decodes the transactions and runs the operations of the ledger.
//
// - implements native.Contract
type Contract struct {
	ledger *Ledger
}

// NewContract creates a new contract for the ledger.
func NewContract(ledger *Ledger) Contract {
	return Contract{ledger: ledger}
}

// Execute implements native.Contract. It runs the appropriate command on the
// day of the step.
func (c Contract) Execute(snap store.TxSnapshot, step execution.Step) error {
	cmd := step.Current.GetArg(CmdArg)
	if len(cmd) == 0 {
		return xerrors.Errorf("'%s' not found in tx arg", CmdArg)
	}

	var err error

	switch Command(cmd) {
	case CmdRecordPrice:
		err = c.recordPrice(snap, step)
	case CmdPlacePrediction:
		err = c.placePrediction(snap, step)
	case CmdConfirmPrediction:
		err = c.confirmPrediction(snap, step)
	case CmdDeposit:
		err = c.deposit(snap, step)
	default:
		return xerrors.Errorf("unknown command: %s", cmd)
	}

	if err != nil {
		return xerrors.Errorf("failed to %s: %w", cmd, err)
	}

	return nil
}

func (c Contract) recordPrice(snap store.TxSnapshot, step execution.Step) error {
	asset, err := assetArg(step)
	if err != nil {
		return err
	}

	price, err := amountArg(step, PriceArg)
	if err != nil {
		return err
	}

	err = c.ledger.RecordPrice(snap, step.Current.GetIdentity(), asset, price, step.Day)
	if err != nil {
		return err
	}

	c.ledger.logger.Info().
		Str("asset", asset.String()).
		Uint64("day", uint64(step.Day)).
		Str("price", price.Dec()).
		Msg("price recorded")

	return nil
}

func (c Contract) placePrediction(snap store.TxSnapshot, step execution.Step) error {
	asset, err := assetArg(step)
	if err != nil {
		return err
	}

	stake, err := amountArg(step, StakeArg)
	if err != nil {
		return err
	}

	var price, direction confidential.Input
	var proof confidential.Proof

	err = jsonArg(step, PriceInputArg, &price)
	if err != nil {
		return err
	}

	err = jsonArg(step, DirectionInputArg, &direction)
	if err != nil {
		return err
	}

	err = jsonArg(step, ProofArg, &proof)
	if err != nil {
		return err
	}

	return c.ledger.PlacePrediction(snap, step.Current.GetIdentity(), asset,
		price, direction, proof, stake, step.Day)
}

func (c Contract) confirmPrediction(snap store.TxSnapshot, step execution.Step) error {
	asset, err := assetArg(step)
	if err != nil {
		return err
	}

	day, err := strconv.ParseUint(string(step.Current.GetArg(DayArg)), 10, 64)
	if err != nil {
		return xerrors.Errorf("invalid '%s': %v", DayArg, err)
	}

	return c.ledger.ConfirmPrediction(snap, step.Current.GetIdentity(), asset,
		clock.Day(day), step.Day)
}

func (c Contract) deposit(snap store.TxSnapshot, step execution.Step) error {
	account := step.Current.GetArg(AccountArg)
	if len(account) == 0 {
		return xerrors.Errorf("'%s' not found in tx arg", AccountArg)
	}

	amount, err := amountArg(step, AmountArg)
	if err != nil {
		return err
	}

	return c.ledger.Deposit(snap, step.Current.GetIdentity(), string(account), amount)
}

func assetArg(step execution.Step) (Asset, error) {
	value := step.Current.GetArg(AssetArg)
	if len(value) == 0 {
		return 0, xerrors.Errorf("'%s' not found in tx arg", AssetArg)
	}

	return ParseAsset(string(value))
}

// amountArg parses a decimal argument. A value above 256 bits is reported as
// out of range.
func amountArg(step execution.Step, key string) (*uint256.Int, error) {
	value := step.Current.GetArg(key)
	if len(value) == 0 {
		return nil, xerrors.Errorf("'%s' not found in tx arg", key)
	}

	amount, err := uint256.FromDecimal(string(value))
	if err != nil {
		return nil, xerrors.Errorf("%w: '%s': %v", ErrValueOutOfRange, key, err)
	}

	return amount, nil
}

func jsonArg(step execution.Step, key string, v interface{}) error {
	value := step.Current.GetArg(key)
	if len(value) == 0 {
		return xerrors.Errorf("'%s' not found in tx arg", key)
	}

	err := json.Unmarshal(value, v)
	if err != nil {
		return xerrors.Errorf("malformed '%s': %v", key, err)
	}

	return nil
}
