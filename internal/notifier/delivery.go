package notifier

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/truthsource/syncwatch/internal/metrics"
	"github.com/truthsource/syncwatch/internal/source"
	"github.com/truthsource/syncwatch/internal/storage"
)

// maxDeliveryAttempts bounds retries of a failing transport before the
// notification is marked failed for good.
const maxDeliveryAttempts = 3

// DeliveryWorker drains pending notifications and delivers them through
// the dispatcher. Transport failures leave the notification pending and
// are retried on later sweeps, up to maxDeliveryAttempts.
type DeliveryWorker struct {
	store      storage.Store
	dispatcher *Dispatcher
	clock      source.Clock
	interval   time.Duration
	batchSize  int
}

// NewDeliveryWorker creates a delivery worker sweeping every interval.
func NewDeliveryWorker(store storage.Store, dispatcher *Dispatcher, clock source.Clock, interval time.Duration) *DeliveryWorker {
	if clock == nil {
		clock = source.SystemClock{}
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &DeliveryWorker{
		store:      store,
		dispatcher: dispatcher,
		clock:      clock,
		interval:   interval,
		batchSize:  50,
	}
}

// Run sweeps until the context is canceled.
func (w *DeliveryWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.DeliverPending(ctx); err != nil {
				log.Printf("notifier: delivery sweep: %v", err)
			}
		}
	}
}

// DeliverPending delivers one batch of pending notifications. Returns
// the number delivered. Rate-limited sends stay pending without counting
// an attempt; transport failures count one and become terminal once the
// attempt budget is spent.
func (w *DeliveryWorker) DeliverPending(ctx context.Context) (int, error) {
	pending, err := w.store.Notifications().ListPending(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, n := range pending {
		alert, err := w.store.Alerts().GetByID(ctx, n.AlertID)
		if err != nil {
			w.markFailed(ctx, n.ID, "alert not found: "+err.Error())
			continue
		}

		err = w.dispatcher.Dispatch(ctx, alert, n.Channel, n.Recipient)
		switch {
		case err == nil:
			if err := w.store.Notifications().MarkDelivered(ctx, n.ID, w.clock.Now().UTC()); err != nil {
				log.Printf("notifier: mark delivered %s: %v", n.ID, err)
			}
			metrics.NotificationsTotal.WithLabelValues(n.Channel, "delivered").Inc()
			delivered++
		case errors.Is(err, ErrRateLimited):
			// Leave pending, the window will open again.
			metrics.NotificationsTotal.WithLabelValues(n.Channel, "rate_limited").Inc()
			return delivered, nil
		default:
			if n.Attempts+1 >= maxDeliveryAttempts {
				metrics.NotificationsTotal.WithLabelValues(n.Channel, "failed").Inc()
				w.markFailed(ctx, n.ID, err.Error())
				continue
			}
			metrics.NotificationsTotal.WithLabelValues(n.Channel, "retried").Inc()
			if err := w.store.Notifications().RecordAttempt(ctx, n.ID, err.Error()); err != nil {
				log.Printf("notifier: record attempt %s: %v", n.ID, err)
			}
		}
	}
	return delivered, nil
}

func (w *DeliveryWorker) markFailed(ctx context.Context, id, message string) {
	if err := w.store.Notifications().MarkFailed(ctx, id, message, w.clock.Now().UTC()); err != nil {
		log.Printf("notifier: mark failed %s: %v", id, err)
	}
}
