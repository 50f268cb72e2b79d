// Package forecast is the root of a confidential prediction ledger. It holds
// the global logger and the collection of prometheus collectors that the
// packages register at init time.
package forecast

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// EnvLogLevel is the name of the environment variable to change the logging
// level.
const EnvLogLevel = "LLVL"

// Logger is the logger of every package. It prints the info level and above
// unless LLVL names another zerolog level. An unknown name prints everything.
var Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
	Level(logLevel(os.Getenv(EnvLogLevel))).
	With().Timestamp().Caller().Logger()

// PromCollectors exposes prometheus metrics. Packages append their collectors
// and the HTTP proxy registers them on demand.
var PromCollectors []prometheus.Collector

func logLevel(name string) zerolog.Level {
	if name == "" {
		return zerolog.InfoLevel
	}

	level, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.TraceLevel
	}

	return level
}
