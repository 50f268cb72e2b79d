package node

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFlagSet_RoundTrip(t *testing.T) {
	in := FlagSet{
		"asset":   "ETH",
		"config":  "/tmp/node",
		"price":   2000,
		"timeout": time.Minute,
		"tags":    []string{"a", "b"},
		"dry":     true,
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var fset FlagSet
	require.NoError(t, json.Unmarshal(data, &fset))

	require.Equal(t, "ETH", fset.String("asset"))
	require.Equal(t, "/tmp/node", fset.Path("config"))
	require.Equal(t, 2000, fset.Int("price"))
	require.Equal(t, time.Minute, fset.Duration("timeout"))
	require.Equal(t, []string{"a", "b"}, fset.StringSlice("tags"))
	require.True(t, fset.Bool("dry"))
}

func TestFlagSet_WrongTypes(t *testing.T) {
	fset := FlagSet{
		"number": 1.5,
		"text":   "abc",
		"mixed":  []interface{}{"a", 1.0},
	}

	require.Equal(t, "", fset.String("number"))
	require.Equal(t, "", fset.Path("missing"))
	require.Equal(t, 0, fset.Int("number"))
	require.Equal(t, 0, fset.Int("text"))
	require.Equal(t, time.Duration(0), fset.Duration("text"))
	require.Nil(t, fset.StringSlice("mixed"))
	require.Nil(t, fset.StringSlice("text"))
	require.False(t, fset.Bool("text"))

	require.Equal(t, 7, FlagSet{"n": 7}.Int("n"))
	require.Equal(t, "", FlagSet(nil).String("asset"))
}
