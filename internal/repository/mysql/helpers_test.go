package mysql_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-faker/faker/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Guyuepp/feed-like/domain"
	"github.com/Guyuepp/feed-like/internal/repository/mysql"
	"github.com/Guyuepp/feed-like/internal/repository/mysql/model"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// every connection to :memory: is a separate database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.Tables()...))
	return db
}

// setupFileDB opens a WAL database with several connections, for tests that need
// transactions from different goroutines to really overlap.
func setupFileDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "feed.db") + "?_journal_mode=WAL&_busy_timeout=10000&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(4)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.Tables()...))
	return db
}

func seedFeed(t *testing.T, db *gorm.DB, authorID int64) domain.Feed {
	t.Helper()
	f := domain.Feed{UserID: authorID, Content: faker.Sentence()}
	require.NoError(t, mysql.NewFeedRepository(db).Store(context.Background(), &f))
	return f
}

func likeCount(t *testing.T, db *gorm.DB, feedID int64) int64 {
	t.Helper()
	f, err := mysql.NewFeedRepository(db).GetByID(context.Background(), feedID)
	require.NoError(t, err)
	return f.LikeCount
}

func authorLikes(t *testing.T, db *gorm.DB, userID int64) int64 {
	t.Helper()
	extra, err := mysql.NewUserExtraRepository(db).GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	return extra.LikesCount
}
