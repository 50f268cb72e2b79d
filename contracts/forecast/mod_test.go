package forecast

import (
	"context"
	"sync"
	"testing"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/forecast/confidential"
	"go.dedis.ch/forecast/confidential/client"
	"go.dedis.ch/forecast/confidential/coproc"
	"go.dedis.ch/forecast/core/access"
	"go.dedis.ch/forecast/core/clock"
	"go.dedis.ch/forecast/core/store"
	"go.dedis.ch/forecast/crypto/ed25519"
	"go.dedis.ch/forecast/internal/testing/fake"
	"go.dedis.ch/forecast/notify"
	"golang.org/x/xerrors"
)

const testDomain = "forecast-test"

func TestAsset_Parse(t *testing.T) {
	asset, err := ParseAsset("eth")
	require.NoError(t, err)
	require.Equal(t, ETH, asset)

	asset, err = ParseAsset("BTC")
	require.NoError(t, err)
	require.Equal(t, BTC, asset)

	asset, err = ParseAsset("7")
	require.NoError(t, err)
	require.False(t, asset.Valid())
	require.Equal(t, "Asset(7)", asset.String())

	_, err = ParseAsset("DOGE")
	require.True(t, xerrors.Is(err, ErrInvalidAsset))
}

func TestLedger_Genesis(t *testing.T) {
	env := newEnv(t)

	owner, err := env.ledger.Owner(env.snap)
	require.NoError(t, err)
	require.Equal(t, env.text(env.operator), owner)

	balance, err := env.ledger.Balance(env.snap, env.text(env.user))
	require.NoError(t, err)
	require.Equal(t, "1000", balance.Dec())

	require.Equal(t, []notify.Kind{notify.OwnerUpdated}, env.notifier.kinds())

	err = env.ledger.Genesis(env.snap, env.user.GetPublicKey(), nil, 0)
	require.True(t, xerrors.Is(err, ErrAlreadyInitialized))

	err = NewLedger(env.engine, nil).Genesis(fake.NewBadSnapshot(), env.operator.GetPublicKey(), nil, 0)
	require.EqualError(t, err, fake.Err("failed to read owner"))

	err = NewLedger(env.engine, nil).Genesis(fake.NewSnapshot(), nil, nil, 0)
	require.EqualError(t, err, "owner: missing identity")
}

func TestLedger_RecordPrice(t *testing.T) {
	env := newEnv(t)
	env.notifier.reset()

	operator := env.operator.GetPublicKey()

	// The role is checked before the arguments.
	err := env.ledger.RecordPrice(env.snap, env.user.GetPublicKey(), Asset(5), uint256.NewInt(1), 10)
	require.True(t, xerrors.Is(err, ErrUnauthorized))

	err = env.ledger.RecordPrice(env.snap, operator, Asset(5), uint256.NewInt(1), 10)
	require.True(t, xerrors.Is(err, ErrInvalidAsset))

	tooBig := new(uint256.Int).Lsh(uint256.NewInt(1), 64)
	err = env.ledger.RecordPrice(env.snap, operator, ETH, tooBig, 10)
	require.True(t, xerrors.Is(err, ErrValueOutOfRange))

	counted := testutil.ToFloat64(promPrices.WithLabelValues(ETH.String()))

	err = env.ledger.RecordPrice(env.snap, operator, ETH, uint256.NewInt(2000), 10)
	require.NoError(t, err)

	// Events and counters are published only once the transition is
	// committed.
	require.Empty(t, env.notifier.kinds())
	require.Equal(t, counted, testutil.ToFloat64(promPrices.WithLabelValues(ETH.String())))
	env.snap.Commit()
	require.Equal(t, []notify.Kind{notify.PriceRecorded}, env.notifier.kinds())
	require.Equal(t, counted+1, testutil.ToFloat64(promPrices.WithLabelValues(ETH.String())))

	err = env.ledger.RecordPrice(env.snap, operator, ETH, uint256.NewInt(3000), 10)
	require.True(t, xerrors.Is(err, ErrAlreadyRecorded))

	price, recorded, err := env.ledger.GetPrice(env.snap, ETH, 10)
	require.NoError(t, err)
	require.True(t, recorded)
	require.Equal(t, uint64(2000), price)

	price, recorded, err = env.ledger.GetPrice(env.snap, BTC, 10)
	require.NoError(t, err)
	require.False(t, recorded)
	require.Zero(t, price)

	day, err := env.ledger.GetLatestDay(env.snap, ETH)
	require.NoError(t, err)
	require.Equal(t, clock.Day(10), day)

	day, err = env.ledger.GetLatestDay(env.snap, BTC)
	require.NoError(t, err)
	require.Zero(t, day)

	// The maximum of 64 bits is accepted.
	err = env.ledger.RecordPrice(env.snap, operator, BTC, uint256.NewInt(^uint64(0)), 11)
	require.NoError(t, err)

	_, _, err = env.ledger.GetPrice(fake.NewBadSnapshot(), ETH, 10)
	require.EqualError(t, err, fake.Err("prices: failed to read"))
}

func TestLedger_PlacePrediction(t *testing.T) {
	env := newEnv(t)
	env.notifier.reset()

	caller := env.user.GetPublicKey()
	price, dir, proof := env.inputs(t, 1900, DirectionGreater)
	stake := uint256.NewInt(100)

	err := env.ledger.PlacePrediction(env.snap, caller, Asset(2), price, dir, proof, stake, 9)
	require.True(t, xerrors.Is(err, ErrInvalidAsset))

	err = env.ledger.PlacePrediction(env.snap, caller, ETH, price, dir, proof, uint256.NewInt(0), 9)
	require.True(t, xerrors.Is(err, ErrNoStake))

	tooBig := new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	err = env.ledger.PlacePrediction(env.snap, caller, ETH, price, dir, proof, tooBig, 9)
	require.True(t, xerrors.Is(err, ErrStakeTooLarge))
	require.True(t, xerrors.Is(err, ErrValueOutOfRange))

	err = env.ledger.PlacePrediction(env.snap, caller, ETH, dir, price, proof, stake, 9)
	require.True(t, xerrors.Is(err, confidential.ErrTypeMismatch))

	err = env.ledger.PlacePrediction(env.snap, caller, ETH, price, dir, proof, uint256.NewInt(5000), 9)
	require.True(t, xerrors.Is(err, ErrInsufficientFunds))

	err = env.ledger.PlacePrediction(env.snap, caller, ETH, price, dir, proof, stake, 9)
	require.NoError(t, err)

	env.snap.Commit()
	require.Equal(t, []notify.Kind{notify.PredictionPlaced}, env.notifier.kinds())

	// The prediction is for the next day.
	pred, err := env.ledger.GetPrediction(env.snap, env.text(env.user), ETH, 10)
	require.NoError(t, err)
	require.Equal(t, Open, pred.State)
	require.Equal(t, "100", pred.Stake.Dec())
	require.Equal(t, confidential.Uint64, pred.Price.Type())
	require.Equal(t, confidential.Uint8, pred.Direction.Type())

	session := env.engine.Bind(env.snap)
	for _, h := range []confidential.Handle{pred.Price, pred.Direction} {
		for _, principal := range []access.Identity{env.ledger.Identity(), caller} {
			granted, err := session.IsGranted(h, principal)
			require.NoError(t, err)
			require.True(t, granted)
		}

		granted, err := session.IsGranted(h, env.operator.GetPublicKey())
		require.NoError(t, err)
		require.False(t, granted)
	}

	require.Equal(t, uint64(1900), env.decrypt(t, pred.Price).Uint64())
	require.Equal(t, uint64(DirectionGreater), env.decrypt(t, pred.Direction).Uint64())

	// The account is initialized with an encrypted zero.
	points, err := env.ledger.GetPoints(env.snap, env.text(env.user))
	require.NoError(t, err)
	require.False(t, points.IsZero())
	require.True(t, env.decrypt(t, points).IsZero())

	balance, err := env.ledger.Balance(env.snap, env.text(env.user))
	require.NoError(t, err)
	require.Equal(t, "900", balance.Dec())

	custody, err := env.ledger.Custody(env.snap)
	require.NoError(t, err)
	require.Equal(t, "100", custody.Dec())

	price, dir, proof = env.inputs(t, 2500, DirectionLess)
	err = env.ledger.PlacePrediction(env.snap, caller, ETH, price, dir, proof, stake, 9)
	require.True(t, xerrors.Is(err, ErrPredictionExists))

	// Another asset or another day is a different key.
	err = env.ledger.PlacePrediction(env.snap, caller, BTC, price, dir, proof, stake, 9)
	require.NoError(t, err)

	err = env.ledger.PlacePrediction(env.snap, caller, ETH, price, dir, proof, stake, 10)
	require.NoError(t, err)
}

func TestLedger_PlacePrediction_InvalidProof(t *testing.T) {
	env := newEnv(t)

	caller := env.user.GetPublicKey()
	price, dir, proof := env.inputs(t, 1900, DirectionGreater)
	stake := uint256.NewInt(100)

	// Inputs signed by another user.
	err := env.ledger.PlacePrediction(env.snap, env.operator.GetPublicKey(), ETH,
		price, dir, proof, stake, 9)
	require.True(t, xerrors.Is(err, confidential.ErrInvalidProof))

	other, _, _ := env.inputs(t, 1800, DirectionGreater)
	err = env.ledger.PlacePrediction(env.snap, caller, ETH, other, dir, proof, stake, 9)
	require.True(t, xerrors.Is(err, confidential.ErrInvalidProof))

	proof.Signature[0] ^= 0xff
	err = env.ledger.PlacePrediction(env.snap, caller, ETH, price, dir, proof, stake, 9)
	require.True(t, xerrors.Is(err, confidential.ErrInvalidProof))

	pred, err := env.ledger.GetPrediction(env.snap, env.text(env.user), ETH, 10)
	require.NoError(t, err)
	require.False(t, pred.Exists())
	require.True(t, pred.Price.IsZero())
}

func TestLedger_ConfirmPrediction(t *testing.T) {
	env := newEnv(t)
	env.notifier.reset()

	caller := env.user.GetPublicKey()
	operator := env.operator.GetPublicKey()

	price, dir, proof := env.inputs(t, 1900, DirectionGreater)
	require.NoError(t, env.ledger.PlacePrediction(env.snap, caller, ETH, price, dir, proof,
		uint256.NewInt(100), 9))

	err := env.ledger.ConfirmPrediction(env.snap, caller, Asset(9), 10, 10)
	require.True(t, xerrors.Is(err, ErrInvalidAsset))

	err = env.ledger.ConfirmPrediction(env.snap, caller, ETH, 10, 9)
	require.True(t, xerrors.Is(err, ErrTooEarly))

	err = env.ledger.ConfirmPrediction(env.snap, caller, ETH, 10, 10)
	require.True(t, xerrors.Is(err, ErrPriceNotRecorded))

	require.NoError(t, env.ledger.RecordPrice(env.snap, operator, ETH, uint256.NewInt(2100), 10))

	err = env.ledger.ConfirmPrediction(env.snap, operator, ETH, 10, 10)
	require.True(t, xerrors.Is(err, ErrPredictionMissing))

	before, err := env.ledger.GetPoints(env.snap, env.text(env.user))
	require.NoError(t, err)

	env.snap.Commit()
	env.notifier.reset()

	err = env.ledger.ConfirmPrediction(env.snap, caller, ETH, 10, 10)
	require.NoError(t, err)

	env.snap.Commit()
	require.Equal(t, []notify.Kind{notify.PredictionConfirmed}, env.notifier.kinds())

	pred, err := env.ledger.GetPrediction(env.snap, env.text(env.user), ETH, 10)
	require.NoError(t, err)
	require.Equal(t, Confirmed, pred.State)

	after, err := env.ledger.GetPoints(env.snap, env.text(env.user))
	require.NoError(t, err)
	require.NotEqual(t, before, after)
	require.Equal(t, "100", env.decrypt(t, after).Dec())

	granted, err := env.engine.Bind(env.snap).IsGranted(after, env.ledger.Identity())
	require.NoError(t, err)
	require.True(t, granted)

	err = env.ledger.ConfirmPrediction(env.snap, caller, ETH, 10, 11)
	require.True(t, xerrors.Is(err, ErrAlreadyConfirmed))

	unchanged, err := env.ledger.GetPoints(env.snap, env.text(env.user))
	require.NoError(t, err)
	require.Equal(t, after, unchanged)
}

func TestLedger_Settlement(t *testing.T) {
	testCases := []struct {
		name      string
		predicted uint64
		direction uint64
		actual    uint64
		reward    uint64
	}{
		{"greater and above", 1900, DirectionGreater, 2000, 100},
		{"greater and below", 2100, DirectionGreater, 2000, 0},
		{"less and below", 2100, DirectionLess, 2000, 100},
		{"less and above", 1900, DirectionLess, 2000, 0},
		{"greater and equal", 2000, DirectionGreater, 2000, 0},
		{"less and equal", 2000, DirectionLess, 2000, 0},
		{"unknown direction", 1900, 3, 2000, 0},
		{"zero direction", 2100, 0, 2000, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newEnv(t)

			price, dir, proof := env.inputs(t, tc.predicted, tc.direction)
			require.NoError(t, env.ledger.PlacePrediction(env.snap, env.user.GetPublicKey(), ETH,
				price, dir, proof, uint256.NewInt(100), 0))

			require.NoError(t, env.ledger.RecordPrice(env.snap, env.operator.GetPublicKey(), ETH,
				uint256.NewInt(tc.actual), 1))

			require.NoError(t, env.ledger.ConfirmPrediction(env.snap, env.user.GetPublicKey(),
				ETH, 1, 1))

			points, err := env.ledger.GetPoints(env.snap, env.text(env.user))
			require.NoError(t, err)
			require.Equal(t, tc.reward, env.decrypt(t, points).Uint64())
		})
	}
}

func TestLedger_PointsAccumulate(t *testing.T) {
	env := newEnv(t)

	caller := env.user.GetPublicKey()
	operator := env.operator.GetPublicKey()

	for day, stake := range []uint64{100, 250, 50} {
		price, dir, proof := env.inputs(t, 1000, DirectionGreater)
		require.NoError(t, env.ledger.PlacePrediction(env.snap, caller, BTC, price, dir, proof,
			uint256.NewInt(stake), clock.Day(day)))

		require.NoError(t, env.ledger.RecordPrice(env.snap, operator, BTC,
			uint256.NewInt(2000), clock.Day(day+1)))

		require.NoError(t, env.ledger.ConfirmPrediction(env.snap, caller, BTC,
			clock.Day(day+1), clock.Day(day+1)))
	}

	points, err := env.ledger.GetPoints(env.snap, env.text(env.user))
	require.NoError(t, err)
	require.Equal(t, uint64(400), env.decrypt(t, points).Uint64())

	custody, err := env.ledger.Custody(env.snap)
	require.NoError(t, err)
	require.Equal(t, "400", custody.Dec())
}

func TestLedger_GetPoints(t *testing.T) {
	env := newEnv(t)

	// No account is the zero sentinel, which cannot be decrypted.
	points, err := env.ledger.GetPoints(env.snap, env.text(env.user))
	require.NoError(t, err)
	require.True(t, points.IsZero())
	require.False(t, Account{Points: points}.Initialized())

	_, err = env.client(env.user).Decrypt(context.Background(), points)
	require.Equal(t, client.ErrUninitialized, err)

	_, err = env.ledger.GetPoints(fake.NewBadSnapshot(), env.text(env.user))
	require.EqualError(t, err, fake.Err("failed to read points"))

	env.snap.Set([]byte(pointsPrefix+"/"+env.text(env.user)), []byte{1, 2})
	_, err = env.ledger.GetPoints(env.snap, env.text(env.user))
	require.EqualError(t, err, "malformed points: invalid handle length 2")
}

func TestLedger_Deposit(t *testing.T) {
	env := newEnv(t)

	account := env.text(env.user)

	err := env.ledger.Deposit(env.snap, env.user.GetPublicKey(), account, uint256.NewInt(1))
	require.True(t, xerrors.Is(err, ErrUnauthorized))

	err = env.ledger.Deposit(env.snap, env.operator.GetPublicKey(), account, uint256.NewInt(0))
	require.True(t, xerrors.Is(err, ErrValueOutOfRange))

	err = env.ledger.Deposit(env.snap, env.operator.GetPublicKey(), "", uint256.NewInt(1))
	require.EqualError(t, err, "missing account")

	err = env.ledger.Deposit(env.snap, env.operator.GetPublicKey(), account, uint256.NewInt(24))
	require.NoError(t, err)

	balance, err := env.ledger.Balance(env.snap, account)
	require.NoError(t, err)
	require.Equal(t, "1024", balance.Dec())

	max := new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))
	err = env.ledger.Deposit(env.snap, env.operator.GetPublicKey(), account, max)
	require.True(t, xerrors.Is(err, ErrValueOutOfRange))
}

func TestPrediction_JSON(t *testing.T) {
	pred := Prediction{
		State:     Open,
		Price:     confidential.Handle{1, 31: byte(confidential.Uint64)},
		Direction: confidential.Handle{2, 31: byte(confidential.Uint8)},
		Stake:     uint256.NewInt(12345),
	}

	w := fake.NewSnapshot()
	require.NoError(t, writePrediction(w, []byte("key"), pred))

	restored, err := readPrediction(w, []byte("key"))
	require.NoError(t, err)
	require.Equal(t, pred, restored)

	w.Set([]byte("bad"), []byte(`{"stake":"abc"}`))
	_, err = readPrediction(w, []byte("bad"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "malformed prediction: malformed stake 'abc'")

	require.Equal(t, "absent", Absent.String())
	require.Equal(t, "confirmed", Confirmed.String())
	require.Equal(t, "State(9)", State(9).String())
}

// -----------------------------------------------------------------------------
// Utility functions

type testEnv struct {
	snap     *fake.InMemorySnapshot
	engine   *coproc.Service
	ledger   *Ledger
	notifier *fakeNotifier
	operator ed25519.Signer
	user     ed25519.Signer
}

func newEnv(t *testing.T) *testEnv {
	env := &testEnv{
		snap:     fake.NewSnapshot(),
		engine:   coproc.NewService(coproc.GenerateKey(), testDomain),
		notifier: &fakeNotifier{},
		operator: ed25519.NewSigner(),
		user:     ed25519.NewSigner(),
	}

	env.ledger = NewLedger(env.engine, env.notifier)

	balances := map[string]*uint256.Int{
		env.text(env.user): uint256.NewInt(1000),
	}

	err := env.ledger.Genesis(env.snap, env.operator.GetPublicKey(), balances, 0)
	require.NoError(t, err)

	env.snap.Commit()

	return env
}

func (env *testEnv) text(signer ed25519.Signer) string {
	text, err := signer.GetPublicKey().MarshalText()
	if err != nil {
		panic(err)
	}

	return string(text)
}

func (env *testEnv) client(signer ed25519.Signer) *client.Client {
	relayer := coproc.NewRelayer(env.engine, snapViewer{snap: env.snap})

	return client.NewClient(signer, env.engine.GetPublicKey(), testDomain, relayer)
}

func (env *testEnv) inputs(t *testing.T, price, direction uint64) (confidential.Input,
	confidential.Input, confidential.Proof) {

	inputs, proof, err := env.client(env.user).EncryptInputs(
		client.Plaintext{Type: confidential.Uint64, Value: uint256.NewInt(price)},
		client.Plaintext{Type: confidential.Uint8, Value: uint256.NewInt(direction)},
	)
	require.NoError(t, err)

	return inputs[0], inputs[1], proof
}

func (env *testEnv) decrypt(t *testing.T, h confidential.Handle) *uint256.Int {
	value, err := env.client(env.user).Decrypt(context.Background(), h)
	require.NoError(t, err)

	return value
}

type snapViewer struct {
	snap store.Readable
}

func (v snapViewer) View(fn func(store.Readable) error) error {
	return fn(v.snap)
}

type fakeNotifier struct {
	sync.Mutex
	events []notify.Event
}

func (n *fakeNotifier) Notify(ctx context.Context, evt notify.Event) error {
	n.Lock()
	n.events = append(n.events, evt)
	n.Unlock()

	return nil
}

func (n *fakeNotifier) Close() error {
	return nil
}

func (n *fakeNotifier) kinds() []notify.Kind {
	n.Lock()
	defer n.Unlock()

	kinds := make([]notify.Kind, len(n.events))
	for i, evt := range n.events {
		kinds[i] = evt.Kind
	}

	n.events = nil

	return kinds
}

func (n *fakeNotifier) reset() {
	n.Lock()
	n.events = nil
	n.Unlock()
}
