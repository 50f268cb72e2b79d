package ucli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	urfave "github.com/urfave/cli/v2"
	"go.dedis.ch/forecast/cli"
	"golang.org/x/xerrors"
)

func TestBuilder_Build(t *testing.T) {
	called := false

	builder := NewBuilder("forecast", func(flags cli.Flags) error {
		called = true
		require.Equal(t, ".forecast", flags.Path("config"))
		return nil
	}, cli.StringFlag{Name: "config", Value: ".forecast"})

	app := builder.Build().(*urfave.App)
	require.Equal(t, "forecast", app.Name)
	require.Len(t, app.Flags, 1)

	err := app.Run([]string{"forecast"})
	require.NoError(t, err)
	require.True(t, called)
}

func TestBuilder_Run(t *testing.T) {
	builder := NewBuilder("forecast", nil, cli.StringFlag{Name: "config"})

	var got []interface{}

	cmd := builder.SetCommand("price")
	cmd.SetDescription("manage the prices")

	sub := cmd.SetSubCommand("record")
	sub.SetFlags(
		cli.StringFlag{Name: "asset", Required: true},
		cli.IntFlag{Name: "price", Value: 1},
		cli.DurationFlag{Name: "timeout", Value: time.Second},
		cli.StringSliceFlag{Name: "tag"},
		cli.BoolFlag{Name: "dry"},
	)
	sub.SetAction(func(flags cli.Flags) error {
		got = append(got, flags.Path("config"), flags.String("asset"), flags.Int("price"),
			flags.Duration("timeout"), flags.StringSlice("tag"), flags.Bool("dry"))
		return nil
	})

	app := builder.Build().(*urfave.App)

	err := app.Run([]string{"forecast", "--config", "dir", "price", "record",
		"--asset", "ETH", "--price", "2000", "--tag", "a", "--tag", "b", "--dry"})
	require.NoError(t, err)
	require.Equal(t, []interface{}{"dir", "ETH", 2000, time.Second, []string{"a", "b"}, true}, got)

	app.Writer = new(bytes.Buffer)
	app.ErrWriter = new(bytes.Buffer)

	err = app.Run([]string{"forecast", "price", "record"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "Required flag")
}

func TestBuilder_ActionError(t *testing.T) {
	builder := NewBuilder("forecast", nil)

	builder.SetCommand("fail").SetAction(func(cli.Flags) error {
		return xerrors.New("oops")
	})

	err := builder.Build().Run([]string{"forecast", "fail"})
	require.EqualError(t, err, "oops")
}

func TestCommand_Tree(t *testing.T) {
	builder := NewBuilder("forecast", nil).(*Builder)

	cmd := builder.SetCommand("prediction")
	cmd.SetSubCommand("place")
	cmd.SetSubCommand("confirm")
	builder.SetCommand("points")

	app := builder.Build().(*urfave.App)

	prediction := app.Command("prediction")
	require.NotNil(t, prediction)
	require.Len(t, prediction.Subcommands, 2)
	require.Equal(t, "confirm", prediction.Subcommands[1].Name)
	require.NotNil(t, app.Command("points"))
}

func TestConvertFlag(t *testing.T) {
	flags := convertFlags([]cli.Flag{
		cli.StringFlag{Name: "a", Value: "x"},
		cli.StringSliceFlag{Name: "b", Value: []string{"x", "y"}},
		cli.DurationFlag{Name: "c", Value: time.Minute},
		cli.IntFlag{Name: "d", Value: 1},
		cli.BoolFlag{Name: "e", Required: true},
	})

	require.Len(t, flags, 5)

	for i, name := range []string{"a", "b", "c", "d", "e"} {
		require.Equal(t, name, flags[i].Names()[0])
	}

	require.Equal(t, []string{"x", "y"}, flags[1].(*urfave.StringSliceFlag).Value.Value())
	require.True(t, flags[4].(*urfave.BoolFlag).Required)
}

func TestConvertFlag_Unsupported(t *testing.T) {
	require.PanicsWithValue(t, "unsupported flag <nil>", func() {
		convertFlag(nil)
	})
}

func TestWrap(t *testing.T) {
	require.Nil(t, wrap(nil))

	action := wrap(func(flags cli.Flags) error {
		return xerrors.New("oops")
	})

	require.EqualError(t, action(nil), "oops")
}
