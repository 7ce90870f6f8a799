package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Guyuepp/feed-like/domain"
	"github.com/Guyuepp/feed-like/internal/repository/mysql/model"
)

type feedRepository struct {
	DB *gorm.DB
}

var _ domain.FeedRepository = (*feedRepository)(nil)

func NewFeedRepository(db *gorm.DB) *feedRepository {
	return &feedRepository{DB: db}
}

func (m *feedRepository) GetByID(ctx context.Context, id int64) (res domain.Feed, err error) {
	var feed model.Feed
	err = m.DB.WithContext(ctx).First(&feed, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return res, domain.ErrNotFound
	}
	if err != nil {
		return res, err
	}
	res = feed.ToDomain()
	return
}

// Store inserts a new feed and fills in its generated fields.
func (m *feedRepository) Store(ctx context.Context, f *domain.Feed) error {
	feedModel := model.NewFeedFromDomain(f)
	if err := m.DB.WithContext(ctx).Create(feedModel).Error; err != nil {
		return err
	}
	f.ID = feedModel.ID
	f.CreatedAt = feedModel.CreatedAt
	f.UpdatedAt = feedModel.UpdatedAt
	return nil
}
