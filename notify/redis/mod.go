// Package redis implements a notifier that publishes the events on a Redis
// pub/sub channel and appends them to a Redis stream.
//
// Subscribers of the channel get the events as they happen, and the stream
// keeps an ordered log that can be read from any position.
package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.dedis.ch/forecast/notify"
	"golang.org/x/xerrors"
)

// streamMaxLen is the approximate maximum length of the stream.
const streamMaxLen int64 = 10000

// Notifier publishes the events to Redis.
//
// - implements notify.Notifier
type Notifier struct {
	rdb     *redis.Client
	channel string
	stream  string
}

// NewNotifier returns a notifier connected to the Redis server at the address.
// The stream is skipped when its name is empty.
func NewNotifier(addr, channel, stream string) *Notifier {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	return &Notifier{
		rdb:     rdb,
		channel: channel,
		stream:  stream,
	}
}

// Notify implements notify.Notifier.
func (n *Notifier) Notify(ctx context.Context, evt notify.Event) error {
	payload, err := notify.Encode(evt)
	if err != nil {
		return err
	}

	err = n.rdb.Publish(ctx, n.channel, payload).Err()
	if err != nil {
		return xerrors.Errorf("redis: publish %s: %v", n.channel, err)
	}

	if n.stream == "" {
		return nil
	}

	args := &redis.XAddArgs{
		Stream: n.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"kind":    string(evt.Kind),
			"payload": payload,
		},
	}

	err = n.rdb.XAdd(ctx, args).Err()
	if err != nil {
		return xerrors.Errorf("redis: stream append %s: %v", n.stream, err)
	}

	return nil
}

// Close implements notify.Notifier.
func (n *Notifier) Close() error {
	return n.rdb.Close()
}
