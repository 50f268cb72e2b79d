package forecast

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/forecast/core/clock"
	"go.dedis.ch/forecast/core/execution"
	"go.dedis.ch/forecast/core/execution/native"
	"go.dedis.ch/forecast/core/txn/signed"
	"go.dedis.ch/forecast/crypto/ed25519"
	"golang.org/x/xerrors"
)

func TestContract_Execute(t *testing.T) {
	env := newEnv(t)
	contract := NewContract(env.ledger)

	step := makeStep(t, env.operator, 3, CmdArg, "")
	err := contract.Execute(env.snap, step)
	require.EqualError(t, err, "'forecast:command' not found in tx arg")

	step = makeStep(t, env.operator, 3, CmdArg, "PING")
	err = contract.Execute(env.snap, step)
	require.EqualError(t, err, "unknown command: PING")

	step = makeStep(t, env.operator, 3, CmdArg, string(CmdRecordPrice))
	err = contract.Execute(env.snap, step)
	require.EqualError(t, err, "failed to RECORD_PRICE: 'forecast:asset' not found in tx arg")

	step = makeStep(t, env.operator, 3, CmdArg, string(CmdRecordPrice), AssetArg, "ETH")
	err = contract.Execute(env.snap, step)
	require.EqualError(t, err, "failed to RECORD_PRICE: 'forecast:price' not found in tx arg")

	step = makeStep(t, env.operator, 3, CmdArg, string(CmdRecordPrice), AssetArg, "ETH",
		PriceArg, "-1")
	err = contract.Execute(env.snap, step)
	require.True(t, xerrors.Is(err, ErrValueOutOfRange))

	step = makeStep(t, env.operator, 3, CmdArg, string(CmdRecordPrice), AssetArg, "SOL",
		PriceArg, "1")
	err = contract.Execute(env.snap, step)
	require.True(t, xerrors.Is(err, ErrInvalidAsset))

	step = makeStep(t, env.operator, 3, CmdArg, string(CmdRecordPrice), AssetArg, "1",
		PriceArg, "42")
	err = contract.Execute(env.snap, step)
	require.NoError(t, err)

	price, recorded, err := env.ledger.GetPrice(env.snap, BTC, 3)
	require.NoError(t, err)
	require.True(t, recorded)
	require.Equal(t, uint64(42), price)

	step = makeStep(t, env.user, 3, CmdArg, string(CmdPlacePrediction), AssetArg, "ETH",
		StakeArg, "1", PriceInputArg, "{")
	err = contract.Execute(env.snap, step)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to PLACE_PREDICTION: malformed 'forecast:price_input': ")

	step = makeStep(t, env.user, 3, CmdArg, string(CmdConfirmPrediction), AssetArg, "ETH",
		DayArg, "abc")
	err = contract.Execute(env.snap, step)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to CONFIRM_PREDICTION: invalid 'forecast:day': ")

	step = makeStep(t, env.user, 3, CmdArg, string(CmdConfirmPrediction), AssetArg, "ETH",
		DayArg, "4")
	err = contract.Execute(env.snap, step)
	require.True(t, xerrors.Is(err, ErrTooEarly))

	step = makeStep(t, env.operator, 3, CmdArg, string(CmdDeposit), AmountArg, "5")
	err = contract.Execute(env.snap, step)
	require.EqualError(t, err, "failed to DEPOSIT: 'forecast:account' not found in tx arg")

	step = makeStep(t, env.operator, 3, CmdArg, string(CmdDeposit),
		AccountArg, env.text(env.user), AmountArg, "5")
	err = contract.Execute(env.snap, step)
	require.NoError(t, err)

	balance, err := env.ledger.Balance(env.snap, env.text(env.user))
	require.NoError(t, err)
	require.Equal(t, "1005", balance.Dec())
}

func TestContract_Register(t *testing.T) {
	exec := native.NewExecution()
	RegisterContract(exec, NewContract(nil))

	require.Panics(t, func() {
		RegisterContract(exec, NewContract(nil))
	})
}

// -----------------------------------------------------------------------------
// Utility functions

func makeStep(t *testing.T, signer ed25519.Signer, day clock.Day, args ...string) execution.Step {
	opts := []signed.Option{}
	for i := 0; i+1 < len(args); i += 2 {
		if args[i+1] != "" {
			opts = append(opts, signed.WithArg(args[i], []byte(args[i+1])))
		}
	}

	tx, err := signed.NewTransaction(0, signer.GetPublicKey(), opts...)
	require.NoError(t, err)

	return execution.Step{Current: tx, Day: day}
}
