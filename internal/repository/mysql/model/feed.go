package model

import (
	"time"

	"github.com/Guyuepp/feed-like/domain"
)

type Feed struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    int64     `gorm:"column:user_id;not null;index"`
	Content   string    `gorm:"type:text;not null"`
	LikeCount int64     `gorm:"column:like_count;not null;default:0"`
	CreatedAt time.Time `gorm:"type:datetime"`
	UpdatedAt time.Time `gorm:"type:datetime"`
}

func (Feed) TableName() string {
	return "feeds"
}

func (m *Feed) ToDomain() domain.Feed {
	return domain.Feed{
		ID:        m.ID,
		UserID:    m.UserID,
		Content:   m.Content,
		LikeCount: m.LikeCount,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func NewFeedFromDomain(f *domain.Feed) *Feed {
	return &Feed{
		ID:        f.ID,
		UserID:    f.UserID,
		Content:   f.Content,
		LikeCount: f.LikeCount,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}
