package forecast

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.dedis.ch/forecast/core/store"
	"go.dedis.ch/forecast/notify"
)

const notifyTimeout = 10 * time.Second

// publish sends the event to the notifier once the transition is committed.
// A failure is only logged as it cannot affect the ledger anymore.
func (l *Ledger) publish(snap store.Transaction, evt notify.Event) {
	if l.notifier == nil {
		return
	}

	snap.OnCommit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		err := l.notifier.Notify(ctx, evt)
		if err != nil {
			l.logger.Warn().Err(err).
				Str("id", evt.ID).
				Str("kind", string(evt.Kind)).
				Msg("failed to publish event")
		}
	})
}

// count increments the counter of the asset once the transition is committed.
func count(snap store.Transaction, counter *prometheus.CounterVec, asset Asset) {
	snap.OnCommit(func() {
		counter.WithLabelValues(asset.String()).Inc()
	})
}
