package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Guyuepp/feed-like/domain"
	"github.com/Guyuepp/feed-like/internal/repository/mysql/model"
)

type userExtraRepository struct {
	DB *gorm.DB
}

var _ domain.UserExtraRepository = (*userExtraRepository)(nil)

func NewUserExtraRepository(db *gorm.DB) *userExtraRepository {
	return &userExtraRepository{
		DB: db,
	}
}

// GetByUserID returns a zero record for a user none of whose items was ever liked.
func (m *userExtraRepository) GetByUserID(ctx context.Context, userID int64) (domain.UserExtra, error) {
	var extra model.UserExtra
	err := m.DB.WithContext(ctx).First(&extra, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.UserExtra{UserID: userID}, nil
	}
	if err != nil {
		return domain.UserExtra{}, err
	}
	return extra.ToDomain(), nil
}

func (m *userExtraRepository) GetByUserIDs(ctx context.Context, uids []int64) ([]domain.UserExtra, error) {
	var extras []model.UserExtra
	err := m.DB.WithContext(ctx).Model(&model.UserExtra{}).Where("user_id in ?", uids).Find(&extras).Error
	res := make([]domain.UserExtra, len(extras))
	for i := range extras {
		res[i] = extras[i].ToDomain()
	}
	return res, err
}
