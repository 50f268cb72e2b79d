package forecast

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLogLevel(t *testing.T) {
	require.Equal(t, zerolog.InfoLevel, logLevel(""))
	require.Equal(t, zerolog.WarnLevel, logLevel("warn"))
	require.Equal(t, zerolog.DebugLevel, logLevel("debug"))
	require.Equal(t, zerolog.TraceLevel, logLevel("verbose"))
}
