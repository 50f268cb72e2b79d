package node

import (
	"fmt"
	"os"

	"go.dedis.ch/forecast/cli"
)

func ExampleCLIBuilder_Build() {
	builder := NewBuilder(quoteController{})

	cmd := builder.SetCommand("assets")

	cmd.SetFlags(cli.StringFlag{
		Name:  "asset",
		Usage: "name of the asset",
		Value: "ETH",
	})

	// The action runs in the CLI process. Actions created with MakeAction run
	// on the daemon once it is started with "start".
	cmd.SetAction(func(flags cli.Flags) error {
		fmt.Printf("tracking %s", flags.String("asset"))
		return nil
	})

	app := builder.Build()

	err := app.Run([]string{os.Args[0], "assets", "--asset", "BTC"})
	if err != nil {
		panic("app failed: " + err.Error())
	}

	// Output: tracking BTC
}

// Quoter is a component injected and resolved on the daemon side.
type Quoter interface {
	Quote(asset string) uint64
}

type fixedQuoter map[string]uint64

func (q fixedQuoter) Quote(asset string) uint64 {
	return q[asset]
}

// quoteAction prints the price of an asset on the daemon.
//
// - implements node.ActionTemplate
type quoteAction struct{}

// Execute implements node.ActionTemplate.
func (quoteAction) Execute(ctx Context) error {
	var quoter Quoter
	err := ctx.Injector.Resolve(&quoter)
	if err != nil {
		return err
	}

	asset := ctx.Flags.String("asset")

	fmt.Fprintf(ctx.Out, "%s: %d", asset, quoter.Quote(asset))

	return nil
}

// quoteController defines the quote command and injects the quoter when the
// daemon starts.
//
// - implements node.Initializer
type quoteController struct{}

// SetCommands implements node.Initializer.
func (quoteController) SetCommands(builder Builder) {
	cmd := builder.SetCommand("quote")
	cmd.SetDescription("print the price of an asset")
	cmd.SetFlags(cli.StringFlag{
		Name:  "asset",
		Usage: "name of the asset",
		Value: "ETH",
	})
	cmd.SetAction(builder.MakeAction(quoteAction{}))
}

// OnStart implements node.Initializer.
func (quoteController) OnStart(flags cli.Flags, inj Injector) error {
	inj.Inject(fixedQuoter{"ETH": 2000, "BTC": 60000})

	return nil
}

// OnStop implements node.Initializer.
func (quoteController) OnStop(Injector) error {
	return nil
}
