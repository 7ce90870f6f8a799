package model

import (
	"time"

	"github.com/Guyuepp/feed-like/domain"
)

type UserExtra struct {
	UserID     int64     `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	LikesCount int64     `gorm:"column:likes_count;not null;default:0"`
	CreatedAt  time.Time `gorm:"type:datetime"`
	UpdatedAt  time.Time `gorm:"type:datetime"`
}

func (UserExtra) TableName() string {
	return "user_extras"
}

func (m *UserExtra) ToDomain() domain.UserExtra {
	return domain.UserExtra{
		UserID:     m.UserID,
		LikesCount: m.LikesCount,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// Tables lists every table owned by this module, for AutoMigrate.
func Tables() []any {
	return []any{&Feed{}, &Like{}, &UserExtra{}}
}
