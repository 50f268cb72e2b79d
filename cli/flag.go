package cli

import "time"

// Definitions of the flags. Value is the default when the flag is not given.
type (
	// StringFlag is a flag parsed as a string.
	StringFlag struct {
		Name, Usage string
		Required    bool
		Value       string
	}

	// StringSliceFlag is a flag that collects the values of its repetitions.
	StringSliceFlag struct {
		Name, Usage string
		Required    bool
		Value       []string
	}

	// DurationFlag is a flag parsed as a duration, like "24h".
	DurationFlag struct {
		Name, Usage string
		Required    bool
		Value       time.Duration
	}

	// IntFlag is a flag parsed as an integer.
	IntFlag struct {
		Name, Usage string
		Required    bool
		Value       int
	}

	// BoolFlag is a flag set to true by its presence.
	BoolFlag struct {
		Name, Usage string
		Required    bool
		Value       bool
	}
)

// Flag implements cli.Flag.
func (StringFlag) Flag() {}

// Flag implements cli.Flag.
func (StringSliceFlag) Flag() {}

// Flag implements cli.Flag.
func (DurationFlag) Flag() {}

// Flag implements cli.Flag.
func (IntFlag) Flag() {}

// Flag implements cli.Flag.
func (BoolFlag) Flag() {}
