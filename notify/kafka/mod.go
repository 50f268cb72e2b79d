// Package kafka implements a notifier that writes the events to a Kafka topic.
// The events of a user land in the same partition so that their order is
// preserved for the consumers.
package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.dedis.ch/forecast/notify"
	"golang.org/x/xerrors"
)

// Writer is the interface of the Kafka writer.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Notifier publishes the events to a Kafka topic.
//
// - implements notify.Notifier
type Notifier struct {
	writer Writer
}

// NewNotifier returns a notifier writing to the topic of the brokers.
func NewNotifier(brokers []string, topic string) *Notifier {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		RequiredAcks:           kafka.RequireAll,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}

	return NewNotifierWithWriter(writer)
}

// NewNotifierWithWriter returns a notifier using the given writer.
func NewNotifierWithWriter(w Writer) *Notifier {
	return &Notifier{writer: w}
}

// Notify implements notify.Notifier.
func (n *Notifier) Notify(ctx context.Context, evt notify.Event) error {
	value, err := notify.Encode(evt)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(evt.Key()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(evt.Kind)},
		},
	}

	err = n.writer.WriteMessages(ctx, msg)
	if err != nil {
		return xerrors.Errorf("kafka write: %v", err)
	}

	return nil
}

// Close implements notify.Notifier.
func (n *Notifier) Close() error {
	return n.writer.Close()
}
