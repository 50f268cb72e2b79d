// Package notify defines the notifications published by the ledger and the
// sinks they can be sent to.
//
// Notifications form an append-only log. They are published only after the
// transition that produced them is committed, and a failure to publish never
// affects the ledger state.
package notify

import (
	"context"
	"encoding/json"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.dedis.ch/forecast"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// Kind is the kind of a notification.
type Kind string

const (
	// OwnerUpdated is published when the operator of the ledger is set.
	OwnerUpdated Kind = "OwnerUpdated"
	// PriceRecorded is published when the price of a day is recorded.
	PriceRecorded Kind = "PriceRecorded"
	// PredictionPlaced is published when a prediction is created.
	PredictionPlaced Kind = "PredictionPlaced"
	// PredictionConfirmed is published when a prediction is settled.
	PredictionConfirmed Kind = "PredictionConfirmed"
)

// Event is a notification of the ledger. Only the fields relevant to the kind
// are set.
type Event struct {
	ID    string `json:"id"`
	Kind  Kind   `json:"kind"`
	Asset string `json:"asset,omitempty"`
	Day   uint64 `json:"day"`
	Price uint64 `json:"price,omitempty"`
	User  string `json:"user,omitempty"`
	Stake string `json:"stake,omitempty"`
	Old   string `json:"old,omitempty"`
	New   string `json:"new,omitempty"`
}

// NewEvent returns an event of the kind with a unique identifier.
func NewEvent(kind Kind) Event {
	return Event{
		ID:   xid.New().String(),
		Kind: kind,
	}
}

// Key returns the key the event is partitioned by.
func (e Event) Key() string {
	if e.User != "" {
		return e.User
	}

	return e.Asset
}

// Notifier is the interface of a sink of notifications.
type Notifier interface {
	Notify(ctx context.Context, evt Event) error

	Close() error
}

// Log is a notifier that writes the events to a logger.
//
// - implements notify.Notifier
type Log struct {
	logger zerolog.Logger
}

// NewLog returns a notifier writing to the global logger.
func NewLog() Log {
	return NewLogWithLogger(forecast.Logger)
}

// NewLogWithLogger returns a notifier writing to the given logger.
func NewLogWithLogger(logger zerolog.Logger) Log {
	return Log{logger: logger.With().Str("notifier", "log").Logger()}
}

// Notify implements notify.Notifier.
func (l Log) Notify(ctx context.Context, evt Event) error {
	l.logger.Info().
		Str("id", evt.ID).
		Str("kind", string(evt.Kind)).
		Str("asset", evt.Asset).
		Uint64("day", evt.Day).
		Uint64("price", evt.Price).
		Str("user", evt.User).
		Str("stake", evt.Stake).
		Msg("notification")

	return nil
}

// Close implements notify.Notifier.
func (l Log) Close() error {
	return nil
}

// Multi is a notifier that forwards the events to several notifiers
// concurrently.
//
// - implements notify.Notifier
type Multi struct {
	notifiers []Notifier
}

// NewMulti returns a notifier forwarding to all the notifiers.
func NewMulti(notifiers ...Notifier) Multi {
	return Multi{notifiers: notifiers}
}

// Notify implements notify.Notifier. It returns the first error of the
// notifiers, after all of them are done. A failing notifier does not cancel
// the others.
func (m Multi) Notify(ctx context.Context, evt Event) error {
	var g errgroup.Group

	for _, n := range m.notifiers {
		n := n
		g.Go(func() error {
			return n.Notify(ctx, evt)
		})
	}

	err := g.Wait()
	if err != nil {
		return xerrors.Errorf("failed to notify: %v", err)
	}

	return nil
}

// Close implements notify.Notifier.
func (m Multi) Close() error {
	var first error

	for _, n := range m.notifiers {
		err := n.Close()
		if err != nil && first == nil {
			first = err
		}
	}

	if first != nil {
		return xerrors.Errorf("failed to close: %v", first)
	}

	return nil
}

// Encode returns the JSON form of the event.
func Encode(evt Event) ([]byte, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, xerrors.Errorf("failed to encode event: %v", err)
	}

	return data, nil
}
