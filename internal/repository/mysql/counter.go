package mysql

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Guyuepp/feed-like/domain"
	"github.com/Guyuepp/feed-like/internal/repository/mysql/model"
)

// likeableTable maps an item type to the table holding its like_count column.
// Every such table also carries user_id for the author.
type likeableTable struct {
	itemType string
	table    string
}

var likeableTables = []likeableTable{
	{itemType: domain.LikeableFeed, table: model.Feed{}.TableName()},
}

func tableFor(itemType string) (string, error) {
	for _, t := range likeableTables {
		if t.itemType == itemType {
			return t.table, nil
		}
	}
	return "", fmt.Errorf("%w: unknown likeable type %q", domain.ErrBadParamInput, itemType)
}

type counterLedger struct {
	DB *gorm.DB
}

var _ domain.CounterLedger = (*counterLedger)(nil)

// NewCounterLedger returns a CounterLedger on db. Callers pair it with a RelationStore
// on the same transaction.
func NewCounterLedger(db *gorm.DB) *counterLedger {
	return &counterLedger{DB: db}
}

func (m *counterLedger) ApplyLike(ctx context.Context, item domain.Likeable) error {
	table, err := tableFor(item.LikeableType())
	if err != nil {
		return err
	}

	result := m.DB.WithContext(ctx).
		Table(table).
		Where("id = ?", item.LikeableID()).
		UpdateColumn("like_count", gorm.Expr("like_count + ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}

	return m.addAuthorLikes(ctx, item.LikeableOwnerID())
}

func (m *counterLedger) addAuthorLikes(ctx context.Context, userID int64) error {
	return m.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"likes_count": gorm.Expr("likes_count + ?", 1),
				"updated_at":  time.Now(),
			}),
		}).
		Create(&model.UserExtra{UserID: userID, LikesCount: 1}).Error
}

// ApplyUnlike never takes a counter below zero. A counter already at zero means it
// drifted, which Reconcile repairs.
func (m *counterLedger) ApplyUnlike(ctx context.Context, item domain.Likeable) error {
	table, err := tableFor(item.LikeableType())
	if err != nil {
		return err
	}

	result := m.DB.WithContext(ctx).
		Table(table).
		Where("id = ? AND like_count > 0", item.LikeableID()).
		UpdateColumn("like_count", gorm.Expr("like_count - ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		logrus.Warnf("like_count of %s %d not decremented, row missing or already zero", item.LikeableType(), item.LikeableID())
	}

	result = m.DB.WithContext(ctx).
		Model(&model.UserExtra{}).
		Where("user_id = ? AND likes_count > 0", item.LikeableOwnerID()).
		UpdateColumn("likes_count", gorm.Expr("likes_count - ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		logrus.Warnf("likes_count of user %d not decremented, row missing or already zero", item.LikeableOwnerID())
	}
	return nil
}

// Reconcile rewrites the item counter from the likes table and the author aggregate
// from the item counters. Call it inside a transaction.
//
// The item and every other item of the author are locked first, in id order, the
// same row order ApplyLike takes. The aggregate is then summed by the UPDATE
// itself, so a like committed after the item count was read still lands in it.
func (m *counterLedger) Reconcile(ctx context.Context, item domain.Likeable) error {
	table, err := tableFor(item.LikeableType())
	if err != nil {
		return err
	}
	db := m.DB.WithContext(ctx)
	owner := item.LikeableOwnerID()

	lock := db.Table(table).
		Where("id = ? OR user_id = ?", item.LikeableID(), owner).
		Order("id")
	if db.Dialector.Name() != "sqlite" {
		lock = lock.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	var ids []int64
	if err := lock.Pluck("id", &ids).Error; err != nil {
		return err
	}
	if !slices.Contains(ids, item.LikeableID()) {
		return domain.ErrNotFound
	}

	// first consistent read of the transaction, its snapshot is taken after the locks
	var count int64
	err = db.Model(&model.Like{}).
		Where("likeable_id = ? AND likeable_type = ?", item.LikeableID(), item.LikeableType()).
		Count(&count).Error
	if err != nil {
		return err
	}
	err = db.Table(table).
		Where("id = ?", item.LikeableID()).
		UpdateColumn("like_count", count).Error
	if err != nil {
		return err
	}

	err = db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.UserExtra{UserID: owner}).Error
	if err != nil {
		return err
	}

	sums := make([]string, 0, len(likeableTables))
	subqueries := make([]any, 0, len(likeableTables))
	for _, t := range likeableTables {
		sums = append(sums, "(?)")
		subqueries = append(subqueries, db.Table(t.table).
			Select("COALESCE(SUM(like_count), 0)").
			Where("user_id = ?", owner))
	}
	return db.Model(&model.UserExtra{}).
		Where("user_id = ?", owner).
		UpdateColumns(map[string]any{
			"likes_count": gorm.Expr(strings.Join(sums, " + "), subqueries...),
			"updated_at":  time.Now(),
		}).Error
}
