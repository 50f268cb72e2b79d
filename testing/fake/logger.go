// Package fake provides test helpers that other modules can use in their own
// tests.
package fake

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// CheckLog returns a logger and a check function. When called, the function
// will verify if the logger has seen the message printed.
func CheckLog(msg string) (zerolog.Logger, func(t *testing.T)) {
	buffer := &syncBuffer{}

	check := func(t *testing.T) {
		require.Contains(t, buffer.String(), fmt.Sprintf(`"%s"`, msg))
	}

	return zerolog.New(buffer), check
}

// CountLog returns a logger and a function that counts the number of lines
// containing the message.
func CountLog(msg string) (zerolog.Logger, func() int) {
	buffer := &syncBuffer{}

	count := func() int {
		return strings.Count(buffer.String(), fmt.Sprintf(`"%s"`, msg))
	}

	return zerolog.New(buffer), count
}

type syncBuffer struct {
	sync.Mutex
	buffer bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.Lock()
	defer b.Unlock()

	return b.buffer.Write(p)
}

func (b *syncBuffer) String() string {
	b.Lock()
	defer b.Unlock()

	return b.buffer.String()
}
