// Package cli abstracts the construction of a command-line application, so
// that the modules of a node declare their commands without depending on the
// library that parses the arguments.
//
//	builder := ucli.NewBuilder("forecast", nil)
//
//	cmd := builder.SetCommand("price")
//	cmd.SetDescription("manage the daily prices")
//	cmd.SetFlags(cli.StringFlag{Name: "asset", Value: "ETH"})
//	cmd.SetAction(func(flags cli.Flags) error {
//		fmt.Println(flags.String("asset"))
//		return nil
//	})
//
//	err := builder.Build().Run(os.Args)
package cli

import "time"

// Builder collects the commands of an application.
type Builder interface {
	// SetCommand adds a top-level command and returns its builder.
	SetCommand(name string) CommandBuilder

	Build() Application
}

// Application is a runnable command-line application.
type Application interface {
	Run(arguments []string) error
}

// CommandBuilder defines a command.
type CommandBuilder interface {
	SetDescription(value string)

	// SetFlags replaces the flags of the command.
	SetFlags(...Flag)

	SetAction(Action)

	// SetSubCommand adds a command nested under this one and returns its
	// builder.
	SetSubCommand(name string) CommandBuilder
}

// Action is executed when a command is invoked.
type Action func(Flags) error

// Flag is the definition of a flag.
type Flag interface {
	Flag()
}

// Flags gives an action the values of the flags it was invoked with. The flags
// of the parent commands and of the application are included. A flag that is
// not set returns the zero value of its type.
type Flags interface {
	String(name string) string
	StringSlice(name string) []string
	Duration(name string) time.Duration
	Path(name string) string
	Int(name string) int
	Bool(name string) bool
}
