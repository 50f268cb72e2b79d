// This file implements the builder of the application of a node.

package node

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	urfave "github.com/urfave/cli/v2"
	"go.dedis.ch/forecast"
	"go.dedis.ch/forecast/cli"
	"go.dedis.ch/forecast/cli/ucli"
	"golang.org/x/xerrors"
)

// CLIBuilder builds the application of a node: the start command that runs the
// initializers and the daemon, and the commands of the initializers.
//
// - implements node.Builder
// - implements cli.Builder
type CLIBuilder struct {
	cli.Builder

	inits         []Initializer
	injector      Injector
	actions       *actionMap
	daemonFactory DaemonFactory
	startFlags    []cli.Flag

	// The node stops when sigs receives or is closed. It is bound to SIGINT
	// and SIGTERM only when the builder created it.
	sigs   chan os.Signal
	notify bool
}

// NewBuilder returns the builder of an application that stops on SIGINT or
// SIGTERM and prints to the standard output.
func NewBuilder(inits ...Initializer) *CLIBuilder {
	return NewBuilderWithCfg(nil, nil, inits...)
}

// NewBuilderWithCfg returns the builder of an application that stops when the
// channel receives or is closed, and prints the outputs of the actions to the
// writer. A nil argument falls back to the behavior of NewBuilder.
func NewBuilderWithCfg(sigs chan os.Signal, out io.Writer, inits ...Initializer) *CLIBuilder {
	b := &CLIBuilder{
		inits:    inits,
		injector: NewInjector(),
		actions:  &actionMap{},
		sigs:     sigs,
	}

	if b.sigs == nil {
		b.sigs = make(chan os.Signal, 1)
		b.notify = true
	}

	if out == nil {
		out = os.Stdout
	}

	b.daemonFactory = unixFactory{
		injector: b.injector,
		actions:  b.actions,
		out:      out,
	}

	b.Builder = ucli.NewBuilder("forecast", nil, cli.StringFlag{
		Name:  "config",
		Usage: "folder of the data of the node and of the daemon socket",
		Value: ".forecast",
	})

	return b
}

// SetStartFlags implements node.Builder.
func (b *CLIBuilder) SetStartFlags(flags ...cli.Flag) {
	b.startFlags = append(b.startFlags, flags...)
}

// MakeAction implements node.Builder. The action sends the flags of the
// command, of its parents and of the application to the daemon.
func (b *CLIBuilder) MakeAction(tmpl ActionTemplate) cli.Action {
	id := b.actions.Set(tmpl)

	return func(flags cli.Flags) error {
		client, err := b.daemonFactory.NewClient(flags)
		if err != nil {
			return xerrors.Errorf("failed to create client: %v", err)
		}

		ctx, ok := flags.(*urfave.Context)
		if !ok {
			return xerrors.Errorf("unexpected flags %T", flags)
		}

		err = client.Send(Request{Action: id, Flags: collectFlags(ctx)})
		if err != nil {
			// The message comes from the daemon and is shown as is.
			return xerrors.Opaque(err)
		}

		return nil
	}
}

// Build implements cli.Builder. The start command comes after the commands of
// the initializers.
func (b *CLIBuilder) Build() cli.Application {
	for _, initializer := range b.inits {
		initializer.SetCommands(b)
	}

	start := b.SetCommand("start")
	start.SetDescription("start the node")
	start.SetFlags(b.startFlags...)
	start.SetAction(b.start)

	return b.Builder.Build()
}

// start runs the node until it is stopped. The initializers start in order and
// stop in reverse order, so that a component stops before the ones it depends
// on. The daemon accepts requests once every initializer started.
func (b *CLIBuilder) start(flags cli.Flags) error {
	if b.notify {
		signal.Notify(b.sigs, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(b.sigs)
	}

	dir := flags.Path("config")
	if dir != "" {
		err := os.MkdirAll(dir, 0700)
		if err != nil {
			return xerrors.Errorf("failed to create config folder: %v", err)
		}
	}

	daemon, err := b.daemonFactory.NewDaemon(flags)
	if err != nil {
		return xerrors.Errorf("failed to create daemon: %v", err)
	}

	for i, initializer := range b.inits {
		err = initializer.OnStart(flags, b.injector)
		if err != nil {
			b.rollback(i)
			return xerrors.Errorf("failed to start %T: %v", initializer, err)
		}
	}

	err = daemon.Listen()
	if err != nil {
		b.rollback(len(b.inits))
		return xerrors.Errorf("failed to start daemon: %v", err)
	}

	forecast.Logger.Info().Str("config", dir).Msg("node started")

	<-b.sigs

	err = daemon.Close()
	if err != nil {
		forecast.Logger.Warn().Err(err).Msg("failed to close daemon")
	}

	for i := len(b.inits) - 1; i >= 0; i-- {
		err = b.inits[i].OnStop(b.injector)
		if err != nil {
			return xerrors.Errorf("failed to stop %T: %v", b.inits[i], err)
		}
	}

	forecast.Logger.Info().Msg("node stopped")

	return nil
}

// rollback stops the first n initializers after a failed start.
func (b *CLIBuilder) rollback(n int) {
	for i := n - 1; i >= 0; i-- {
		err := b.inits[i].OnStop(b.injector)
		if err != nil {
			forecast.Logger.Warn().Err(err).Msgf("failed to stop %T", b.inits[i])
		}
	}
}

// collectFlags reads the flags along the lineage of the context, from the
// command up to the application.
func collectFlags(ctx *urfave.Context) FlagSet {
	fset := make(FlagSet)

	for _, c := range ctx.Lineage() {
		var defs []urfave.Flag

		if c.Command != nil {
			defs = append(defs, c.Command.Flags...)
		}

		if c.App != nil {
			defs = append(defs, c.App.Flags...)
		}

		for _, def := range defs {
			names := def.Names()
			if len(names) == 0 {
				continue
			}

			value := c.Value(names[0])

			// Only the underlying slice has a JSON form.
			slice, ok := value.(urfave.StringSlice)
			if ok {
				value = slice.Value()
			}

			fset[names[0]] = value
		}
	}

	return fset
}

// actionMap assigns to each template the identifier that the clients send.
type actionMap struct {
	templates []ActionTemplate
}

func (m *actionMap) Set(tmpl ActionTemplate) uint16 {
	m.templates = append(m.templates, tmpl)
	return uint16(len(m.templates) - 1)
}

func (m *actionMap) Get(id uint16) ActionTemplate {
	if int(id) >= len(m.templates) {
		return nil
	}

	return m.templates[id]
}
