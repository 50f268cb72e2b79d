// Package main implements a node of the forecast ledger.
//
// Unix example:
//
//	# Create the keys of the operator and of a user.
//	forecast key generate --path operator.key
//	forecast key generate --path user.key
//
//	# Start the node with a genesis file that names the operator.
//	LLVL=info forecast --config /tmp/node1 start --genesis genesis.yaml \
//	  --proxyaddr 127.0.0.1:8080
//
//	# Record a price, place and settle a prediction.
//	forecast --config /tmp/node1 price record --key operator.key \
//	  --asset ETH --price 2000
//	forecast --config /tmp/node1 prediction place --key user.key \
//	  --asset ETH --price 1900 --direction greater --stake 100
//	forecast --config /tmp/node1 prediction confirm --key user.key \
//	  --asset ETH --day 19650
//	forecast --config /tmp/node1 points decrypt --key user.key
package main

import (
	"fmt"
	"io"
	"os"

	"go.dedis.ch/forecast/cli/node"
	forecast "go.dedis.ch/forecast/contracts/forecast/controller"
	proxy "go.dedis.ch/forecast/proxy/http/controller"
)

type config struct {
	Channel chan os.Signal
	Writer  io.Writer
}

func main() {
	err := run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	return runWithCfg(args, config{Writer: os.Stdout})
}

func runWithCfg(args []string, cfg config) error {
	builder := node.NewBuilderWithCfg(
		cfg.Channel,
		cfg.Writer,
		proxy.NewController(),
		forecast.NewController(),
	)

	app := builder.Build()

	return app.Run(args)
}
