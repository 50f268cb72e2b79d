// Package controller implements the initializer of the HTTP proxy of a node.
// The proxy is started before the other controllers so that they can register
// their handlers on it.
package controller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.dedis.ch/forecast"
	"go.dedis.ch/forecast/cli"
	"go.dedis.ch/forecast/cli/node"
	"go.dedis.ch/forecast/proxy"
	"go.dedis.ch/forecast/proxy/http"
	"golang.org/x/xerrors"
)

const (
	defaultAddr = "127.0.0.1:8080"
	defaultProm = "/metrics"
)

var proxyFac func(string) proxy.Proxy = func(addr string) proxy.Proxy {
	return http.NewHTTP(addr)
}

// NewController returns the initializer of the HTTP proxy.
func NewController() node.Initializer {
	return controller{
		registerer: prometheus.DefaultRegisterer,
	}
}

// controller creates, starts and injects the HTTP proxy.
//
// - implements node.Initializer
type controller struct {
	registerer prometheus.Registerer
}

// SetCommands implements node.Initializer.
func (c controller) SetCommands(builder node.Builder) {
	builder.SetStartFlags(
		cli.StringFlag{
			Name:     "proxyaddr",
			Usage:    "address of the HTTP proxy",
			Required: false,
			Value:    defaultAddr,
		},
		cli.StringFlag{
			Name:     "prompath",
			Usage:    "path of the prometheus handler, disabled if empty",
			Required: false,
			Value:    defaultProm,
		},
	)

	cmd := builder.SetCommand("proxy")
	cmd.SetDescription("manage the HTTP proxy")

	sub := cmd.SetSubCommand("addr")
	sub.SetDescription("print the address of the HTTP proxy")
	sub.SetAction(builder.MakeAction(addrAction{}))
}

// OnStart implements node.Initializer. It injects the proxy once it listens.
func (c controller) OnStart(flags cli.Flags, inj node.Injector) error {
	p := proxyFac(flags.String("proxyaddr"))

	err := p.Listen()
	if err != nil {
		return xerrors.Errorf("failed to start proxy server: %v", err)
	}

	path := flags.String("prompath")
	if path != "" {
		for _, collector := range forecast.PromCollectors {
			err := c.registerer.Register(collector)
			if err != nil {
				forecast.Logger.Warn().Err(err).Msg("failed to register collector")
			}
		}

		p.RegisterHandler(path, promhttp.Handler().ServeHTTP)
	}

	inj.Inject(p)

	forecast.Logger.Info().Msgf("started proxy server on %s", p.GetAddr())

	return nil
}

// OnStop implements node.Initializer. It stops the proxy if any.
func (c controller) OnStop(inj node.Injector) error {
	var p proxy.Proxy

	err := inj.Resolve(&p)
	if err != nil {
		return xerrors.Errorf("failed to resolve proxy: %v", err)
	}

	err = p.Stop()
	if err != nil {
		return xerrors.Errorf("failed to stop proxy server: %v", err)
	}

	return nil
}
