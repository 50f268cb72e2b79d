package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/forecast/internal/testing/fake"
	tfake "go.dedis.ch/forecast/testing/fake"
)

func TestQueue_Notify(t *testing.T) {
	sink := &recorder{}
	q := NewQueue(sink, 4)

	first := NewEvent(PriceRecorded)
	second := NewEvent(PredictionPlaced)

	require.NoError(t, q.Notify(context.Background(), first))
	require.NoError(t, q.Notify(context.Background(), second))

	// The queued events are delivered before the sink is closed.
	require.NoError(t, q.Close())
	require.Equal(t, []Event{first, second}, sink.events)

	err := q.Notify(context.Background(), first)
	require.EqualError(t, err, "queue closed")

	require.NoError(t, q.Close())
}

func TestQueue_SlowSinkDoesNotBlock(t *testing.T) {
	started := make(chan struct{})
	sink := &blockingSink{started: started, release: make(chan struct{})}
	q := NewQueue(sink, 2)

	// The first event is taken by the worker, the next two fill the buffer.
	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		require.NoError(t, q.Notify(ctx, NewEvent(PriceRecorded)))
		cancel()

		if i == 0 {
			<-started
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := q.Notify(ctx, NewEvent(PriceRecorded))
	require.EqualError(t, err, "queue full: context deadline exceeded")

	close(sink.release)
	require.NoError(t, q.Close())
}

func TestQueue_DeliveryFailure(t *testing.T) {
	logger, check := tfake.CheckLog("failed to deliver event")

	q := NewQueue(&recorder{err: fake.GetError()}, 1)
	q.logger = logger

	require.NoError(t, q.Notify(context.Background(), NewEvent(PriceRecorded)))

	err := q.Close()
	require.EqualError(t, err, fake.Err("failed to close sink"))

	check(t)
}

// -----------------------------------------------------------------------------
// Utility functions

// blockingSink holds the first event until it is released.
type blockingSink struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (s *blockingSink) Notify(ctx context.Context, evt Event) error {
	s.once.Do(func() { close(s.started) })

	<-s.release

	return nil
}

func (s *blockingSink) Close() error {
	return nil
}
