// Package ucli implements the cli builder on top of urfave/cli.
package ucli

import (
	"fmt"

	urfave "github.com/urfave/cli/v2"
	"go.dedis.ch/forecast/cli"
)

// Builder is the root of an urfave application.
//
// - implements cli.Builder
type Builder struct {
	name     string
	action   cli.Action
	flags    []cli.Flag
	commands []*command
}

// NewBuilder returns the builder of an application with global flags. The
// action runs when no command is given and can be nil.
func NewBuilder(name string, action cli.Action, flags ...cli.Flag) cli.Builder {
	return &Builder{
		name:   name,
		action: action,
		flags:  flags,
	}
}

// SetCommand implements cli.Builder.
func (b *Builder) SetCommand(name string) cli.CommandBuilder {
	cmd := &command{name: name}
	b.commands = append(b.commands, cmd)

	return cmd
}

// Build implements cli.Builder. It returns an *urfave.App. It panics if a
// flag has a type that urfave cannot represent.
func (b *Builder) Build() cli.Application {
	app := &urfave.App{
		Name:     b.name,
		Flags:    convertFlags(b.flags),
		Action:   wrap(b.action),
		Commands: convertCommands(b.commands),
	}

	app.Setup()

	return app
}

// command is a node of the tree of commands.
//
// - implements cli.CommandBuilder
type command struct {
	name        string
	description string
	flags       []cli.Flag
	action      cli.Action
	children    []*command
}

// SetDescription implements cli.CommandBuilder.
func (c *command) SetDescription(value string) {
	c.description = value
}

// SetFlags implements cli.CommandBuilder.
func (c *command) SetFlags(flags ...cli.Flag) {
	c.flags = flags
}

// SetAction implements cli.CommandBuilder.
func (c *command) SetAction(action cli.Action) {
	c.action = action
}

// SetSubCommand implements cli.CommandBuilder.
func (c *command) SetSubCommand(name string) cli.CommandBuilder {
	child := &command{name: name}
	c.children = append(c.children, child)

	return child
}

func convertCommands(cmds []*command) []*urfave.Command {
	res := make([]*urfave.Command, len(cmds))

	for i, cmd := range cmds {
		res[i] = &urfave.Command{
			Name:        cmd.name,
			Usage:       cmd.description,
			Flags:       convertFlags(cmd.flags),
			Action:      wrap(cmd.action),
			Subcommands: convertCommands(cmd.children),
		}
	}

	return res
}

func convertFlags(flags []cli.Flag) []urfave.Flag {
	res := make([]urfave.Flag, len(flags))

	for i, f := range flags {
		res[i] = convertFlag(f)
	}

	return res
}

func convertFlag(f cli.Flag) urfave.Flag {
	switch flag := f.(type) {
	case cli.StringFlag:
		return &urfave.StringFlag{Name: flag.Name, Usage: flag.Usage,
			Required: flag.Required, Value: flag.Value}
	case cli.StringSliceFlag:
		return &urfave.StringSliceFlag{Name: flag.Name, Usage: flag.Usage,
			Required: flag.Required, Value: urfave.NewStringSlice(flag.Value...)}
	case cli.DurationFlag:
		return &urfave.DurationFlag{Name: flag.Name, Usage: flag.Usage,
			Required: flag.Required, Value: flag.Value}
	case cli.IntFlag:
		return &urfave.IntFlag{Name: flag.Name, Usage: flag.Usage,
			Required: flag.Required, Value: flag.Value}
	case cli.BoolFlag:
		return &urfave.BoolFlag{Name: flag.Name, Usage: flag.Usage,
			Required: flag.Required, Value: flag.Value}
	default:
		panic(fmt.Sprintf("unsupported flag %T", f))
	}
}

// wrap adapts the action to urfave. The context of urfave is passed as the
// flags.
func wrap(action cli.Action) urfave.ActionFunc {
	if action == nil {
		return nil
	}

	return func(ctx *urfave.Context) error {
		return action(ctx)
	}
}
