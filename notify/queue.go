package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.dedis.ch/forecast"
	"golang.org/x/xerrors"
)

// deliveryTimeout bounds the delivery of one event to the sink of a queue.
const deliveryTimeout = 10 * time.Second

// Queue is a notifier that delivers the events to a sink in the background, in
// the order they are queued. Queuing only blocks when the buffer is full.
//
// - implements notify.Notifier
type Queue struct {
	sync.RWMutex

	sink    Notifier
	events  chan Event
	done    chan struct{}
	closed  bool
	logger  zerolog.Logger
	timeout time.Duration
}

// NewQueue returns a queue of the given size in front of the sink.
func NewQueue(sink Notifier, size int) *Queue {
	q := &Queue{
		sink:    sink,
		events:  make(chan Event, size),
		done:    make(chan struct{}),
		logger:  forecast.Logger.With().Str("notifier", "queue").Logger(),
		timeout: deliveryTimeout,
	}

	go q.run()

	return q
}

// Notify implements notify.Notifier. It returns once the event is queued, or
// with an error when the context is done before.
func (q *Queue) Notify(ctx context.Context, evt Event) error {
	q.RLock()
	defer q.RUnlock()

	if q.closed {
		return xerrors.New("queue closed")
	}

	select {
	case q.events <- evt:
		return nil
	case <-ctx.Done():
		return xerrors.Errorf("queue full: %v", ctx.Err())
	}
}

// Close implements notify.Notifier. It delivers the queued events before it
// closes the sink.
func (q *Queue) Close() error {
	q.Lock()

	if q.closed {
		q.Unlock()
		return nil
	}

	q.closed = true
	close(q.events)
	q.Unlock()

	<-q.done

	err := q.sink.Close()
	if err != nil {
		return xerrors.Errorf("failed to close sink: %v", err)
	}

	return nil
}

func (q *Queue) run() {
	defer close(q.done)

	for evt := range q.events {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)

		err := q.sink.Notify(ctx, evt)
		if err != nil {
			q.logger.Warn().Err(err).
				Str("id", evt.ID).
				Str("kind", string(evt.Kind)).
				Msg("failed to deliver event")
		}

		cancel()
	}
}
