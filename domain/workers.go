package domain

import "context"

// LikeReconciler repairs the like counters of items handed to it, asynchronously.
type LikeReconciler interface {
	Start(ctx context.Context)

	// Send queues the item for reconciliation. It never blocks.
	Send(item Likeable)
}
