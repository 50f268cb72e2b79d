// Package clock defines the capability that provides the current day index to
// the ledger.
//
// The ledger never reads the wall clock by itself. Every transition samples the
// clock once and uses the same day index for all its checks.
package clock

import (
	"sync"
	"time"

	"golang.org/x/xerrors"
)

// DefaultBucket is the default length of a day bucket.
const DefaultBucket = 24 * time.Hour

// Day is the index of a fixed-length time bucket.
type Day uint64

// Clock is the interface of the capability returning the current day.
type Clock interface {
	CurrentDay() Day
}

// Bucketed is a clock that divides the unix time in buckets of a fixed length.
//
// - implements clock.Clock
type Bucketed struct {
	bucket time.Duration
	now    func() time.Time
}

// NewBucketed returns a clock that uses the system time and buckets of the
// given length.
func NewBucketed(bucket time.Duration) (Bucketed, error) {
	if bucket < time.Second {
		return Bucketed{}, xerrors.Errorf("bucket length '%v' is below a second", bucket)
	}

	return Bucketed{bucket: bucket, now: time.Now}, nil
}

// CurrentDay implements clock.Clock. It returns the unix time divided by the
// bucket length.
func (c Bucketed) CurrentDay() Day {
	secs := c.now().Unix()
	if secs < 0 {
		return 0
	}

	return Day(uint64(secs) / uint64(c.bucket/time.Second))
}

// Fixed is a clock that always returns the same day.
//
// - implements clock.Clock
type Fixed Day

// CurrentDay implements clock.Clock.
func (c Fixed) CurrentDay() Day {
	return Day(c)
}

// Manual is a clock that is moved forward explicitly.
//
// - implements clock.Clock
type Manual struct {
	sync.Mutex
	day Day
}

// NewManual returns a manual clock starting at the given day.
func NewManual(day Day) *Manual {
	return &Manual{day: day}
}

// CurrentDay implements clock.Clock.
func (c *Manual) CurrentDay() Day {
	c.Lock()
	defer c.Unlock()

	return c.day
}

// Set moves the clock to the day. The clock never goes backward.
func (c *Manual) Set(day Day) {
	c.Lock()
	if day > c.day {
		c.day = day
	}
	c.Unlock()
}

// Advance moves the clock forward by the given number of days.
func (c *Manual) Advance(n uint64) {
	c.Lock()
	c.day += Day(n)
	c.Unlock()
}
