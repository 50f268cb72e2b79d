package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"go.dedis.ch/forecast/cli"
	"go.dedis.ch/forecast/cli/node"
	"go.dedis.ch/forecast/confidential"
	"go.dedis.ch/forecast/confidential/client"
	"go.dedis.ch/forecast/confidential/coproc"
	ledger "go.dedis.ch/forecast/contracts/forecast"
	"go.dedis.ch/forecast/core/clock"
	"go.dedis.ch/forecast/core/execution/native"
	"go.dedis.ch/forecast/core/ordering"
	"go.dedis.ch/forecast/core/txn"
	"go.dedis.ch/forecast/core/txn/signed"
	"go.dedis.ch/forecast/crypto"
	"go.dedis.ch/forecast/crypto/ed25519"
	"go.dedis.ch/forecast/crypto/loader"
	"golang.org/x/xerrors"
)

const submitTimeout = 30 * time.Second

// getManager returns the manager of the transactions of the signer.
var getManager = func(signer crypto.Signer, c signed.Client) txn.Manager {
	return signed.NewManager(signer, c)
}

// printer is the output of the actions executed by the CLI itself.
var printer io.Writer = os.Stdout

// recordPriceAction records the price of the current day.
//
// - implements node.ActionTemplate
type recordPriceAction struct{}

// Execute implements node.ActionTemplate.
func (a recordPriceAction) Execute(ctx node.Context) error {
	return submit(ctx,
		txn.Arg{Key: ledger.CmdArg, Value: []byte(ledger.CmdRecordPrice)},
		txn.Arg{Key: ledger.AssetArg, Value: []byte(ctx.Flags.String("asset"))},
		txn.Arg{Key: ledger.PriceArg, Value: []byte(ctx.Flags.String("price"))},
	)
}

// placePredictionAction encrypts the predicted price and direction with the
// key of the user, and places the prediction.
//
// - implements node.ActionTemplate
type placePredictionAction struct{}

// Execute implements node.ActionTemplate.
func (a placePredictionAction) Execute(ctx node.Context) error {
	var engine *coproc.Service

	err := ctx.Injector.Resolve(&engine)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	signer, err := getSigner(ctx.Flags)
	if err != nil {
		return xerrors.Errorf("failed to get signer: %v", err)
	}

	price, err := uint256.FromDecimal(ctx.Flags.String("price"))
	if err != nil {
		return xerrors.Errorf("invalid price '%s': %v", ctx.Flags.String("price"), err)
	}

	direction, err := parseDirection(ctx.Flags.String("direction"))
	if err != nil {
		return err
	}

	cl := client.NewClient(signer, engine.GetPublicKey(), engine.GetDomain(), nil)

	inputs, proof, err := cl.EncryptInputs(
		client.Plaintext{Type: confidential.Uint64, Value: price},
		client.Plaintext{Type: confidential.Uint8, Value: uint256.NewInt(direction)},
	)
	if err != nil {
		return xerrors.Errorf("failed to encrypt: %v", err)
	}

	priceInput, err := json.Marshal(inputs[0])
	if err != nil {
		return xerrors.Errorf("failed to encode price: %v", err)
	}

	directionInput, err := json.Marshal(inputs[1])
	if err != nil {
		return xerrors.Errorf("failed to encode direction: %v", err)
	}

	rawProof, err := json.Marshal(proof)
	if err != nil {
		return xerrors.Errorf("failed to encode proof: %v", err)
	}

	return submitAs(ctx, signer,
		txn.Arg{Key: ledger.CmdArg, Value: []byte(ledger.CmdPlacePrediction)},
		txn.Arg{Key: ledger.AssetArg, Value: []byte(ctx.Flags.String("asset"))},
		txn.Arg{Key: ledger.PriceInputArg, Value: priceInput},
		txn.Arg{Key: ledger.DirectionInputArg, Value: directionInput},
		txn.Arg{Key: ledger.ProofArg, Value: rawProof},
		txn.Arg{Key: ledger.StakeArg, Value: []byte(ctx.Flags.String("stake"))},
	)
}

// confirmPredictionAction settles a prediction.
//
// - implements node.ActionTemplate
type confirmPredictionAction struct{}

// Execute implements node.ActionTemplate.
func (a confirmPredictionAction) Execute(ctx node.Context) error {
	return submit(ctx,
		txn.Arg{Key: ledger.CmdArg, Value: []byte(ledger.CmdConfirmPrediction)},
		txn.Arg{Key: ledger.AssetArg, Value: []byte(ctx.Flags.String("asset"))},
		txn.Arg{Key: ledger.DayArg, Value: []byte(ctx.Flags.String("day"))},
	)
}

// depositAction credits the balance of an account.
//
// - implements node.ActionTemplate
type depositAction struct{}

// Execute implements node.ActionTemplate.
func (a depositAction) Execute(ctx node.Context) error {
	return submit(ctx,
		txn.Arg{Key: ledger.CmdArg, Value: []byte(ledger.CmdDeposit)},
		txn.Arg{Key: ledger.AccountArg, Value: []byte(ctx.Flags.String("account"))},
		txn.Arg{Key: ledger.AmountArg, Value: []byte(ctx.Flags.String("amount"))},
	)
}

// showPriceAction prints the price of a day.
//
// - implements node.ActionTemplate
type showPriceAction struct{}

// Execute implements node.ActionTemplate.
func (a showPriceAction) Execute(ctx node.Context) error {
	var reader ledger.Reader

	err := ctx.Injector.Resolve(&reader)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	asset, day, err := assetAndDay(ctx.Flags)
	if err != nil {
		return err
	}

	price, recorded, err := reader.GetPrice(asset, day)
	if err != nil {
		return xerrors.Errorf("failed to read price: %v", err)
	}

	if !recorded {
		fmt.Fprintf(ctx.Out, "%v: no price on day %d", asset, day)
		return nil
	}

	fmt.Fprintf(ctx.Out, "%v: %d on day %d", asset, price, day)

	return nil
}

// showPredictionAction prints the public fields of a prediction.
//
// - implements node.ActionTemplate
type showPredictionAction struct{}

// Execute implements node.ActionTemplate.
func (a showPredictionAction) Execute(ctx node.Context) error {
	var reader ledger.Reader

	err := ctx.Injector.Resolve(&reader)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	asset, day, err := assetAndDay(ctx.Flags)
	if err != nil {
		return err
	}

	pred, err := reader.GetPrediction(ctx.Flags.String("user"), asset, day)
	if err != nil {
		return xerrors.Errorf("failed to read prediction: %v", err)
	}

	fmt.Fprintf(ctx.Out, "state=%v stake=%s price=%v direction=%v",
		pred.State, pred.Stake.Dec(), pred.Price, pred.Direction)

	return nil
}

// showPointsAction prints the handle of the points of a user.
//
// - implements node.ActionTemplate
type showPointsAction struct{}

// Execute implements node.ActionTemplate.
func (a showPointsAction) Execute(ctx node.Context) error {
	var reader ledger.Reader

	err := ctx.Injector.Resolve(&reader)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	h, err := reader.GetPoints(ctx.Flags.String("user"))
	if err != nil {
		return xerrors.Errorf("failed to read points: %v", err)
	}

	if h.IsZero() {
		fmt.Fprint(ctx.Out, "uninitialized")
		return nil
	}

	text, _ := h.MarshalText()
	fmt.Fprintf(ctx.Out, "%s", text)

	return nil
}

// decryptPointsAction decrypts the points of the owner of the key through a
// re-encryption by the engine.
//
// - implements node.ActionTemplate
type decryptPointsAction struct{}

// Execute implements node.ActionTemplate.
func (a decryptPointsAction) Execute(ctx node.Context) error {
	var engine *coproc.Service

	err := ctx.Injector.Resolve(&engine)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	var srvc ordering.Service

	err = ctx.Injector.Resolve(&srvc)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	var reader ledger.Reader

	err = ctx.Injector.Resolve(&reader)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	signer, err := getSigner(ctx.Flags)
	if err != nil {
		return xerrors.Errorf("failed to get signer: %v", err)
	}

	user, err := signer.GetPublicKey().MarshalText()
	if err != nil {
		return xerrors.Errorf("failed to marshal identity: %v", err)
	}

	h, err := reader.GetPoints(string(user))
	if err != nil {
		return xerrors.Errorf("failed to read points: %v", err)
	}

	relayer := coproc.NewRelayer(engine, srvc)
	cl := client.NewClient(signer, engine.GetPublicKey(), engine.GetDomain(), relayer)

	c, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	points, err := cl.Decrypt(c, h)
	if err != nil {
		return xerrors.Errorf("failed to decrypt: %v", err)
	}

	fmt.Fprintf(ctx.Out, "%s", points.Dec())

	return nil
}

// showBalanceAction prints the balance of an account and the custody.
//
// - implements node.ActionTemplate
type showBalanceAction struct{}

// Execute implements node.ActionTemplate.
func (a showBalanceAction) Execute(ctx node.Context) error {
	var reader ledger.Reader

	err := ctx.Injector.Resolve(&reader)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	balance, err := reader.Balance(ctx.Flags.String("account"))
	if err != nil {
		return xerrors.Errorf("failed to read balance: %v", err)
	}

	custody, err := reader.Custody()
	if err != nil {
		return xerrors.Errorf("failed to read custody: %v", err)
	}

	fmt.Fprintf(ctx.Out, "balance=%s custody=%s", balance.Dec(), custody.Dec())

	return nil
}

// generateKey runs in the CLI. It creates the key file if it does not exist
// and prints the public key.
func generateKey(flags cli.Flags) error {
	l := loader.NewFileLoader(flags.Path("path"))

	data, err := l.LoadOrCreate(loader.GeneratorFunc(ed25519.NewSigner().MarshalBinary))
	if err != nil {
		return xerrors.Errorf("failed to load key: %v", err)
	}

	signer, err := ed25519.NewSignerFromBytes(data)
	if err != nil {
		return xerrors.Errorf("failed to unmarshal signer: %v", err)
	}

	text, err := signer.GetPublicKey().MarshalText()
	if err != nil {
		return xerrors.Errorf("failed to marshal public key: %v", err)
	}

	fmt.Fprintln(printer, string(text))

	return nil
}

func submit(ctx node.Context, args ...txn.Arg) error {
	signer, err := getSigner(ctx.Flags)
	if err != nil {
		return xerrors.Errorf("failed to get signer: %v", err)
	}

	return submitAs(ctx, signer, args...)
}

// submitAs signs the transaction with the next nonce of the signer and waits
// for the result.
func submitAs(ctx node.Context, signer crypto.Signer, args ...txn.Arg) error {
	var srvc ordering.Service

	err := ctx.Injector.Resolve(&srvc)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	manager := getManager(signer, srvc)

	err = manager.Sync()
	if err != nil {
		return xerrors.Errorf("failed to sync manager: %v", err)
	}

	args = append([]txn.Arg{{Key: native.ContractArg, Value: []byte(ledger.ContractName)}}, args...)

	tx, err := manager.Make(args...)
	if err != nil {
		return xerrors.Errorf("creating transaction: %v", err)
	}

	c, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	res, err := srvc.Submit(c, tx)
	if err != nil {
		return xerrors.Errorf("failed to submit: %v", err)
	}

	if !res.Accepted {
		return xerrors.Errorf("transaction refused: %s", res.Message)
	}

	fmt.Fprintf(ctx.Out, "accepted %x", tx.GetID())

	return nil
}

// getSigner creates a signer from the signerFlag flag.
func getSigner(flags cli.Flags) (crypto.Signer, error) {
	l := loader.NewFileLoader(flags.Path(signerFlag))

	data, err := l.Load()
	if err != nil {
		return nil, xerrors.Errorf("failed to load signer: %v", err)
	}

	signer, err := ed25519.NewSignerFromBytes(data)
	if err != nil {
		return nil, xerrors.Errorf("failed to unmarshal signer: %v", err)
	}

	return signer, nil
}

func parseDirection(text string) (uint64, error) {
	switch strings.ToLower(text) {
	case "greater", "gt":
		return ledger.DirectionGreater, nil
	case "less", "lt":
		return ledger.DirectionLess, nil
	}

	direction, err := strconv.ParseUint(text, 10, 8)
	if err != nil {
		return 0, xerrors.Errorf("invalid direction '%s'", text)
	}

	return direction, nil
}

func assetAndDay(flags cli.Flags) (ledger.Asset, clock.Day, error) {
	asset, err := ledger.ParseAsset(flags.String("asset"))
	if err != nil {
		return 0, 0, err
	}

	day, err := strconv.ParseUint(flags.String("day"), 10, 64)
	if err != nil {
		return 0, 0, xerrors.Errorf("invalid day '%s'", flags.String("day"))
	}

	return asset, clock.Day(day), nil
}
