package domain

import (
	"context"
	"time"
)

// LikeRelation is one actor's like of one likeable item
type LikeRelation struct {
	ID           int64     // Row identifier
	ItemID       int64     // Identifier of the liked item
	ItemType     string    // Discriminator of the liked item, e.g. "feeds"
	ActorID      int64     // User who liked the item
	TargetUserID int64     // Author of the item at the time of the like
	CreatedAt    time.Time // Creation timestamp
}

// Likeable is any content that can receive likes.
type Likeable interface {
	LikeableID() int64
	LikeableType() string
	// LikeableOwnerID is the author whose aggregate likes counter follows this item.
	LikeableOwnerID() int64
}

// Actor identifies the user acting on a likeable item. Both UserID and User satisfy it.
type Actor interface {
	ActorID() int64
}

// RelationStore persists like relations keyed by (item, type, actor).
type RelationStore interface {
	// Exists reports whether the actor has a like row for the item.
	Exists(ctx context.Context, itemID int64, itemType string, actorID int64) (bool, error)

	// Create inserts the relation unless one already exists for the key.
	// created is false when the existing row is returned instead.
	Create(ctx context.Context, itemID int64, itemType string, actorID, targetUserID int64) (rel LikeRelation, created bool, err error)

	// Find returns ErrNotFound if there is no relation for the key.
	Find(ctx context.Context, itemID int64, itemType string, actorID int64) (LikeRelation, error)

	// Delete removes the relation. removed is false when it was already gone.
	Delete(ctx context.Context, rel LikeRelation) (removed bool, err error)

	// ListByItem returns every relation of the item, oldest first.
	ListByItem(ctx context.Context, itemID int64, itemType string) ([]LikeRelation, error)
}

// CounterLedger mutates the item like counter and the author aggregate together.
// Implementations must be bound to the same transaction as the RelationStore they
// are used with, see Transactor.
type CounterLedger interface {
	ApplyLike(ctx context.Context, item Likeable) error
	ApplyUnlike(ctx context.Context, item Likeable) error

	// Reconcile recomputes both counters from the relation rows.
	Reconcile(ctx context.Context, item Likeable) error
}

// AtomicUnit exposes the stores bound to one running transaction.
type AtomicUnit interface {
	Relations() RelationStore
	Counters() CounterLedger
}

// Transactor runs fn inside a single transaction. Any error returned by fn, or a panic,
// rolls the whole unit back.
type Transactor interface {
	Atomic(ctx context.Context, fn func(u AtomicUnit) error) error
}

// LikeStatusCache caches whether an actor liked an item. Entries never expire.
// A reader fills a missing entry in two steps: Lease before reading the store, Set
// after. Invalidate drops leases too, so a status read before a concurrent write
// commits is never stored.
type LikeStatusCache interface {
	// Get returns ErrCacheMiss when no status is present.
	Get(ctx context.Context, itemID int64, itemType string, actorID int64) (bool, error)
	// Lease returns ErrConflict when the entry holds a status or another lease.
	Lease(ctx context.Context, itemID int64, itemType string, actorID int64) (lease string, err error)
	// Set stores the status only while lease is still held.
	Set(ctx context.Context, itemID int64, itemType string, actorID int64, lease string, liked bool) error
	Invalidate(ctx context.Context, itemID int64, itemType string, actorID int64) error
}

type LikeUsecase interface {
	Liked(ctx context.Context, item Likeable, actor Actor) (bool, error)
	Like(ctx context.Context, item Likeable, actor Actor) (LikeRelation, error)
	Unlike(ctx context.Context, item Likeable, actor Actor) (bool, error)
	ForgetLike(ctx context.Context, item Likeable, actor Actor)
	Likes(ctx context.Context, item Likeable) ([]LikeRelation, error)
}
