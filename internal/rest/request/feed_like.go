package request

// FeedLike is bound from /feeds/:id/like
type FeedLike struct {
	FeedID int64 `uri:"id" binding:"required,gt=0"`
}
