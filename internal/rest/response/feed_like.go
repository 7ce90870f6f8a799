package response

import "github.com/Guyuepp/feed-like/domain"

type LikeRelation struct {
	ID           int64  `json:"id"`
	FeedID       int64  `json:"feed_id"`
	UserID       int64  `json:"user_id"`
	TargetUserID int64  `json:"target_user_id"`
	CreatedAt    string `json:"created_at"`
}

func NewLikeRelationFromDomain(r *domain.LikeRelation) LikeRelation {
	return LikeRelation{
		ID:           r.ID,
		FeedID:       r.ItemID,
		UserID:       r.ActorID,
		TargetUserID: r.TargetUserID,
		CreatedAt:    r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

type FeedLikes struct {
	FeedID int64          `json:"feed_id"`
	Total  int            `json:"total"`
	Likes  []LikeRelation `json:"likes"`
}

func NewFeedLikesFromDomain(feedID int64, rels []domain.LikeRelation) FeedLikes {
	likes := make([]LikeRelation, 0, len(rels))
	for i := range rels {
		likes = append(likes, NewLikeRelationFromDomain(&rels[i]))
	}
	return FeedLikes{
		FeedID: feedID,
		Total:  len(likes),
		Likes:  likes,
	}
}

type Liked struct {
	Liked bool `json:"liked"`
}

type Unliked struct {
	IsChanged bool `json:"is_changed"`
}
