package domain

import (
	"context"
	"time"
)

// LikeableFeed is the item type recorded on likes of feeds
const LikeableFeed = "feeds"

// Feed is representing the Feed data struct
type Feed struct {
	ID        int64     // Unique identifier for the feed
	UserID    int64     // Author of the feed
	Content   string    // Feed body content
	LikeCount int64     // Number of likes
	CreatedAt time.Time // Creation timestamp
	UpdatedAt time.Time // Last update timestamp
}

var _ Likeable = Feed{}

func (f Feed) LikeableID() int64      { return f.ID }
func (f Feed) LikeableType() string   { return LikeableFeed }
func (f Feed) LikeableOwnerID() int64 { return f.UserID }

// FeedRepository defines the read access this module needs on feeds
type FeedRepository interface {
	// GetByID retrieves a single feed by its ID.
	// Returns ErrNotFound if the feed doesn't exist.
	GetByID(ctx context.Context, id int64) (Feed, error)
	// Store inserts f and sets its ID and timestamps.
	Store(ctx context.Context, f *Feed) error
}
