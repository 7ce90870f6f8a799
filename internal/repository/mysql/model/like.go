package model

import (
	"time"

	"github.com/Guyuepp/feed-like/domain"
)

// Like is one row of the polymorphic likes table.
// uk_likes_likeable_user makes the relation a set per (item, type, user).
type Like struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	LikeableID   int64     `gorm:"column:likeable_id;not null;uniqueIndex:uk_likes_likeable_user,priority:1"`
	LikeableType string    `gorm:"column:likeable_type;type:varchar(64);not null;uniqueIndex:uk_likes_likeable_user,priority:2"`
	UserID       int64     `gorm:"column:user_id;not null;uniqueIndex:uk_likes_likeable_user,priority:3"`
	TargetUser   int64     `gorm:"column:target_user;not null;index"`
	CreatedAt    time.Time `gorm:"type:datetime"`
	UpdatedAt    time.Time `gorm:"type:datetime"`
}

func (Like) TableName() string {
	return "likes"
}

func (m *Like) ToDomain() domain.LikeRelation {
	return domain.LikeRelation{
		ID:           m.ID,
		ItemID:       m.LikeableID,
		ItemType:     m.LikeableType,
		ActorID:      m.UserID,
		TargetUserID: m.TargetUser,
		CreatedAt:    m.CreatedAt,
	}
}
