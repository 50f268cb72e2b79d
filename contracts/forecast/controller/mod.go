// Package controller implements the initializer of the forecast ledger for a
// node. It opens the database, loads the key of the confidential engine,
// applies the genesis configuration and serves the API on the HTTP proxy. The
// actions let the operator and the users submit transactions and read the
// ledger from the command line.
package controller

import (
	"path/filepath"

	"go.dedis.ch/forecast"
	"go.dedis.ch/forecast/cli"
	"go.dedis.ch/forecast/cli/node"
	"go.dedis.ch/forecast/confidential/coproc"
	ledger "go.dedis.ch/forecast/contracts/forecast"
	"go.dedis.ch/forecast/contracts/forecast/api"
	"go.dedis.ch/forecast/core/clock"
	"go.dedis.ch/forecast/core/execution/native"
	"go.dedis.ch/forecast/core/ordering/serial"
	"go.dedis.ch/forecast/core/store"
	"go.dedis.ch/forecast/core/store/kv"
	"go.dedis.ch/forecast/crypto/ed25519"
	"go.dedis.ch/forecast/crypto/loader"
	"go.dedis.ch/forecast/notify"
	"go.dedis.ch/forecast/proxy"
	"go.dedis.ch/kyber/v3"
	"golang.org/x/xerrors"
)

const (
	dbName     = "forecast.db"
	bucketName = "forecast"
	engineKey  = "engine.key"

	// notifyQueueSize is the number of events waiting for the sinks before a
	// transition blocks on its notifications.
	notifyQueueSize = 256

	defaultRate = api.DefaultRate

	// signerFlag names the key file of the author of a transaction.
	signerFlag = "key"
)

// NewController returns the initializer of the forecast ledger.
func NewController() node.Initializer {
	return controller{}
}

// controller is the initializer of the ledger.
//
// - implements node.Initializer
type controller struct{}

// resources are the components closed when the node stops.
type resources struct {
	db       kv.DB
	notifier notify.Notifier
}

// SetCommands implements node.Initializer.
func (c controller) SetCommands(builder node.Builder) {
	builder.SetStartFlags(cli.StringFlag{
		Name:     "genesis",
		Usage:    "path to the YAML genesis configuration",
		Required: true,
	})

	keyFlag := cli.StringFlag{
		Name:     signerFlag,
		Usage:    "path to the private keyfile",
		Required: true,
	}

	assetFlag := cli.StringFlag{
		Name:     "asset",
		Usage:    "asset by name or index",
		Required: true,
	}

	dayFlag := cli.StringFlag{
		Name:     "day",
		Usage:    "day index",
		Required: true,
	}

	userFlag := cli.StringFlag{
		Name:     "user",
		Usage:    "public key of the user",
		Required: true,
	}

	cmd := builder.SetCommand("price")
	cmd.SetDescription("manage the daily prices")

	sub := cmd.SetSubCommand("record")
	sub.SetDescription("record the price of an asset for the current day")
	sub.SetFlags(keyFlag, assetFlag, cli.StringFlag{
		Name:     "price",
		Usage:    "price of the asset",
		Required: true,
	})
	sub.SetAction(builder.MakeAction(recordPriceAction{}))

	sub = cmd.SetSubCommand("show")
	sub.SetDescription("show the price of an asset for a day")
	sub.SetFlags(assetFlag, dayFlag)
	sub.SetAction(builder.MakeAction(showPriceAction{}))

	cmd = builder.SetCommand("prediction")
	cmd.SetDescription("manage the predictions")

	sub = cmd.SetSubCommand("place")
	sub.SetDescription("place an encrypted prediction for the next day")
	sub.SetFlags(keyFlag, assetFlag,
		cli.StringFlag{
			Name:     "price",
			Usage:    "predicted price, encrypted before submission",
			Required: true,
		},
		cli.StringFlag{
			Name:     "direction",
			Usage:    "greater or less, encrypted before submission",
			Required: true,
		},
		cli.StringFlag{
			Name:     "stake",
			Usage:    "amount escrowed from the balance",
			Required: true,
		},
	)
	sub.SetAction(builder.MakeAction(placePredictionAction{}))

	sub = cmd.SetSubCommand("confirm")
	sub.SetDescription("settle a prediction once the price of its day is recorded")
	sub.SetFlags(keyFlag, assetFlag, dayFlag)
	sub.SetAction(builder.MakeAction(confirmPredictionAction{}))

	sub = cmd.SetSubCommand("show")
	sub.SetDescription("show the public fields of a prediction")
	sub.SetFlags(userFlag, assetFlag, dayFlag)
	sub.SetAction(builder.MakeAction(showPredictionAction{}))

	cmd = builder.SetCommand("points")
	cmd.SetDescription("read the encrypted points")

	sub = cmd.SetSubCommand("show")
	sub.SetDescription("show the handle of the points of a user")
	sub.SetFlags(userFlag)
	sub.SetAction(builder.MakeAction(showPointsAction{}))

	sub = cmd.SetSubCommand("decrypt")
	sub.SetDescription("decrypt the points of the owner of the key")
	sub.SetFlags(keyFlag)
	sub.SetAction(builder.MakeAction(decryptPointsAction{}))

	cmd = builder.SetCommand("balance")
	cmd.SetDescription("manage the balances")

	sub = cmd.SetSubCommand("deposit")
	sub.SetDescription("credit the balance of an account")
	sub.SetFlags(keyFlag,
		cli.StringFlag{
			Name:     "account",
			Usage:    "public key of the credited account",
			Required: true,
		},
		cli.StringFlag{
			Name:     "amount",
			Usage:    "amount to credit",
			Required: true,
		},
	)
	sub.SetAction(builder.MakeAction(depositAction{}))

	sub = cmd.SetSubCommand("show")
	sub.SetDescription("show the balance of an account and the custody")
	sub.SetFlags(cli.StringFlag{
		Name:     "account",
		Usage:    "public key of the account",
		Required: true,
	})
	sub.SetAction(builder.MakeAction(showBalanceAction{}))

	cmd = builder.SetCommand("key")
	cmd.SetDescription("manage the keys of the users")

	sub = cmd.SetSubCommand("generate")
	sub.SetDescription("generate a key if the file does not exist and print its public key")
	sub.SetFlags(cli.StringFlag{
		Name:     "path",
		Usage:    "path to the private keyfile",
		Required: true,
	})
	sub.SetAction(generateKey)
}

// OnStart implements node.Initializer. It opens the ledger stored in the
// config folder and applies the genesis if the ledger is new.
func (c controller) OnStart(flags cli.Flags, inj node.Injector) error {
	cfg, err := LoadConfig(flags.Path("genesis"))
	if err != nil {
		return xerrors.Errorf("genesis: %v", err)
	}

	dir := flags.Path("config")

	secret, err := loadEngineKey(filepath.Join(dir, engineKey))
	if err != nil {
		return xerrors.Errorf("engine key: %v", err)
	}

	db, err := kv.New(filepath.Join(dir, dbName))
	if err != nil {
		return xerrors.Errorf("failed to open database: %v", err)
	}

	clk, err := clock.NewBucketed(cfg.Bucket)
	if err != nil {
		db.Close()
		return xerrors.Errorf("clock: %v", err)
	}

	repo := kv.NewRepository(db, bucketName)
	engine := coproc.NewService(secret, ledger.ContractName)
	var notifier notify.Notifier

	sink := cfg.Notify.Build()
	if sink != nil {
		notifier = notify.NewQueue(sink, notifyQueueSize)
	}

	lg := ledger.NewLedger(engine, notifier)

	exec := native.NewExecution()
	ledger.RegisterContract(exec, ledger.NewContract(lg))

	srvc := serial.NewService(repo, exec, clk)

	err = genesis(repo, lg, cfg, clk.CurrentDay())
	if err != nil {
		if notifier != nil {
			notifier.Close()
		}

		db.Close()
		return xerrors.Errorf("genesis: %v", err)
	}

	reader := ledger.NewReader(lg, srvc, clk)

	inj.Inject(&resources{db: db, notifier: notifier})
	inj.Inject(srvc)
	inj.Inject(engine)
	inj.Inject(reader)

	var p proxy.Proxy

	err = inj.Resolve(&p)
	if err != nil {
		forecast.Logger.Warn().Msg("no proxy available, the API is not served")
		return nil
	}

	api.NewService(reader, engine, coproc.NewRelayer(engine, srvc), cfg.Rate).Register(p)

	return nil
}

// OnStop implements node.Initializer. It closes the notifiers and the
// database.
func (c controller) OnStop(inj node.Injector) error {
	var res *resources

	err := inj.Resolve(&res)
	if err != nil {
		return xerrors.Errorf("failed to resolve resources: %v", err)
	}

	if res.notifier != nil {
		err = res.notifier.Close()
		if err != nil {
			forecast.Logger.Warn().Err(err).Msg("failed to close notifier")
		}
	}

	err = res.db.Close()
	if err != nil {
		return xerrors.Errorf("failed to close database: %v", err)
	}

	return nil
}

// genesis initializes the ledger unless it already has an operator.
func genesis(repo store.Repository, lg *ledger.Ledger, cfg Config, today clock.Day) error {
	operator, err := cfg.OperatorKey()
	if err != nil {
		return err
	}

	balances, err := cfg.InitialBalances()
	if err != nil {
		return err
	}

	err = repo.Update(func(snap store.TxSnapshot) error {
		return lg.Genesis(snap, operator, balances, today)
	})

	if xerrors.Is(err, ledger.ErrAlreadyInitialized) {
		forecast.Logger.Info().Msg("ledger already initialized")
		return nil
	}

	if err != nil {
		return err
	}

	forecast.Logger.Info().Str("operator", cfg.Operator).Msg("ledger initialized")

	return nil
}

func loadEngineKey(path string) (kyber.Scalar, error) {
	l := loader.NewFileLoader(path)

	data, err := l.LoadOrCreate(loader.GeneratorFunc(func() ([]byte, error) {
		return coproc.GenerateKey().MarshalBinary()
	}))
	if err != nil {
		return nil, xerrors.Errorf("failed to load: %v", err)
	}

	secret := ed25519.Suite().Scalar()

	err = secret.UnmarshalBinary(data)
	if err != nil {
		return nil, xerrors.Errorf("failed to unmarshal: %v", err)
	}

	return secret, nil
}
