package workers

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Guyuepp/feed-like/domain"
	"github.com/Guyuepp/feed-like/internal/metrics"
)

const (
	reconcileQueueSize = 1024
	reconcileBatchSize = 100

	// DefaultReconcileInterval is how long a partial batch waits before it is flushed.
	DefaultReconcileInterval = time.Second
)

type reconcileLikesWorker struct {
	tx       domain.Transactor
	interval time.Duration
	ch       chan domain.Likeable
}

var _ domain.LikeReconciler = (*reconcileLikesWorker)(nil)

func NewReconcileLikesWorker(tx domain.Transactor, interval time.Duration) *reconcileLikesWorker {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	return &reconcileLikesWorker{
		tx:       tx,
		interval: interval,
		ch:       make(chan domain.Likeable, reconcileQueueSize),
	}
}

// Send queues item for reconciliation, dropping it if the queue is full
func (w *reconcileLikesWorker) Send(item domain.Likeable) {
	select {
	case w.ch <- item:
	default:
		metrics.ReconcileDropped.Inc()
		logrus.Infof("ReconcileLikesWorker's channel is full, %s %d dropped", item.LikeableType(), item.LikeableID())
	}
}

// Start runs until ctx is canceled, then flushes what is already queued and returns.
func (w *reconcileLikesWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	batch := make([]domain.Likeable, 0, reconcileBatchSize)
	for {
		select {
		case item := <-w.ch:
			batch = append(batch, item)
			if len(batch) == reconcileBatchSize {
				w.flush(ctx, batch)
				batch = make([]domain.Likeable, 0, reconcileBatchSize)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(ctx, batch)
				batch = make([]domain.Likeable, 0, reconcileBatchSize)
			}
		case <-ctx.Done():
			logrus.Info("shutting down ReconcileLikesWorker, flushing remaining items...")
			w.drain(batch)
			return
		}
	}
}

func (w *reconcileLikesWorker) drain(batch []domain.Likeable) {
	for {
		select {
		case item := <-w.ch:
			batch = append(batch, item)
		default:
			// the caller's context is already done
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			w.flush(ctx, batch)
			return
		}
	}
}

type itemKey struct {
	itemType string
	id       int64
}

func (w *reconcileLikesWorker) flush(ctx context.Context, batch []domain.Likeable) {
	seen := make(map[itemKey]struct{}, len(batch))
	for _, item := range batch {
		key := itemKey{itemType: item.LikeableType(), id: item.LikeableID()}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		err := w.tx.Atomic(ctx, func(u domain.AtomicUnit) error {
			return u.Counters().Reconcile(ctx, item)
		})
		if err != nil {
			metrics.ReconcileRuns.WithLabelValues(metrics.ResultError).Inc()
			logrus.Errorf("failed to reconcile likes of %s %d: %v", key.itemType, key.id, err)
			continue
		}
		metrics.ReconcileRuns.WithLabelValues(metrics.ResultOK).Inc()
	}
}
