// Package node builds the command-line application of a forecast node.
//
// The application has a start command that runs the node. Modules plug in as
// initializers: they declare their commands, start their components and inject
// them for the actions. An action created with MakeAction does not run in the
// process of the command. It is forwarded with its flags to the daemon of the
// running node, which executes it next to the components and streams its
// output back.
package node

import (
	"io"

	"go.dedis.ch/forecast/cli"
)

// Builder is given to the initializers to declare their commands.
type Builder interface {
	SetCommand(name string) cli.CommandBuilder

	// SetStartFlags adds flags to the start command.
	SetStartFlags(...cli.Flag)

	// MakeAction returns an action that runs the template on the daemon.
	MakeAction(ActionTemplate) cli.Action
}

// ActionTemplate is an action executed by the daemon.
type ActionTemplate interface {
	Execute(Context) error
}

// Context is what an action receives on the daemon.
type Context struct {
	Injector Injector
	Flags    cli.Flags
	Out      io.Writer
}

// Injector gives the actions access to the components of the node.
type Injector interface {
	// Resolve sets the pointed value to the first injected dependency that is
	// assignable to it.
	Resolve(interface{}) error

	Inject(interface{})
}

// Initializer is a module of the node.
type Initializer interface {
	SetCommands(Builder)

	// OnStart starts the components of the module and injects them.
	OnStart(cli.Flags, Injector) error

	// OnStop releases the components of the module.
	OnStop(Injector) error
}

// Request asks the daemon to execute an action with the given flags.
type Request struct {
	Action uint16  `json:"action"`
	Flags  FlagSet `json:"flags"`
}

// Client sends requests to the daemon of a running node.
type Client interface {
	Send(Request) error
}

// Daemon serves the requests of the clients while the node runs.
type Daemon interface {
	Listen() error
	Close() error
}

// DaemonFactory creates the daemon and its clients from the flags of the
// application.
type DaemonFactory interface {
	NewClient(cli.Flags) (Client, error)
	NewDaemon(cli.Flags) (Daemon, error)
}
