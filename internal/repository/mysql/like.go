package mysql

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Guyuepp/feed-like/domain"
	"github.com/Guyuepp/feed-like/internal/repository/mysql/model"
)

type likeRepository struct {
	DB *gorm.DB
}

var _ domain.RelationStore = (*likeRepository)(nil)

// NewLikeRepository returns a RelationStore on db, which may be a running transaction
func NewLikeRepository(db *gorm.DB) *likeRepository {
	return &likeRepository{DB: db}
}

func (m *likeRepository) byKey(ctx context.Context, itemID int64, itemType string, actorID int64) *gorm.DB {
	return m.DB.WithContext(ctx).
		Where("likeable_id = ? AND likeable_type = ? AND user_id = ?", itemID, itemType, actorID)
}

func (m *likeRepository) Exists(ctx context.Context, itemID int64, itemType string, actorID int64) (bool, error) {
	var count int64
	err := m.byKey(ctx, itemID, itemType, actorID).
		Model(&model.Like{}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts with ON CONFLICT DO NOTHING so the unique index decides which of two
// racing inserts wins. The loser reads back the winner's row.
func (m *likeRepository) Create(ctx context.Context, itemID int64, itemType string, actorID, targetUserID int64) (domain.LikeRelation, bool, error) {
	row := model.Like{
		LikeableID:   itemID,
		LikeableType: itemType,
		UserID:       actorID,
		TargetUser:   targetUserID,
	}
	result := m.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row)
	if result.Error != nil {
		if !isDuplicateKey(result.Error) {
			return domain.LikeRelation{}, false, result.Error
		}
		logrus.Infof("like of %s %d by user %d lost an insert race", itemType, itemID, actorID)
	} else if result.RowsAffected > 0 {
		return row.ToDomain(), true, nil
	}

	existing, err := m.Find(ctx, itemID, itemType, actorID)
	if err != nil {
		return domain.LikeRelation{}, false, err
	}
	return existing, false, nil
}

func (m *likeRepository) Find(ctx context.Context, itemID int64, itemType string, actorID int64) (domain.LikeRelation, error) {
	var row model.Like
	err := m.byKey(ctx, itemID, itemType, actorID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.LikeRelation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.LikeRelation{}, err
	}
	return row.ToDomain(), nil
}

func (m *likeRepository) Delete(ctx context.Context, rel domain.LikeRelation) (bool, error) {
	result := m.byKey(ctx, rel.ItemID, rel.ItemType, rel.ActorID).Delete(&model.Like{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (m *likeRepository) ListByItem(ctx context.Context, itemID int64, itemType string) ([]domain.LikeRelation, error) {
	var rows []model.Like
	err := m.DB.WithContext(ctx).
		Where("likeable_id = ? AND likeable_type = ?", itemID, itemType).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	rels := make([]domain.LikeRelation, 0, len(rows))
	for i := range rows {
		rels = append(rels, rows[i].ToDomain())
	}
	return rels, nil
}
