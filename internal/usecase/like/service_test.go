package like_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-faker/faker/v4"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Guyuepp/feed-like/domain"
	"github.com/Guyuepp/feed-like/internal/repository/mysql"
	"github.com/Guyuepp/feed-like/internal/repository/mysql/model"
	"github.com/Guyuepp/feed-like/internal/repository/redis"
	"github.com/Guyuepp/feed-like/internal/usecase/like"
)

type recordingReconciler struct {
	mu    sync.Mutex
	items []domain.Likeable
}

func (r *recordingReconciler) Start(context.Context) {}

func (r *recordingReconciler) Send(item domain.Likeable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
}

func (r *recordingReconciler) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

type fixture struct {
	db         *gorm.DB
	mr         *miniredis.Miniredis
	cache      domain.LikeStatusCache
	svc        *like.Service
	reconciler *recordingReconciler
}

// setup runs the service on a WAL database with several connections, so concurrent
// calls overlap the way they do against MySQL.
func setup(t *testing.T) *fixture {
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

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		db:         db,
		mr:         mr,
		cache:      redis.NewLikeStatusCache(client),
		reconciler: &recordingReconciler{},
	}
	f.svc = f.service(mysql.NewLikeRepository(db))
	return f
}

func (f *fixture) service(rs domain.RelationStore) *like.Service {
	return like.NewService(mysql.NewTransactor(f.db), rs, f.cache, f.reconciler, 0)
}

func (f *fixture) feed(t *testing.T, authorID int64) domain.Feed {
	t.Helper()
	feed := domain.Feed{UserID: authorID, Content: faker.Paragraph()}
	require.NoError(t, mysql.NewFeedRepository(f.db).Store(context.Background(), &feed))
	return feed
}

func (f *fixture) likeCount(t *testing.T, feedID int64) int64 {
	t.Helper()
	feed, err := mysql.NewFeedRepository(f.db).GetByID(context.Background(), feedID)
	require.NoError(t, err)
	return feed.LikeCount
}

func (f *fixture) authorLikes(t *testing.T, userID int64) int64 {
	t.Helper()
	extra, err := mysql.NewUserExtraRepository(f.db).GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	return extra.LikesCount
}

func (f *fixture) relations(t *testing.T, feedID int64) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&model.Like{}).Where("likeable_id = ?", feedID).Count(&n).Error)
	return n
}

func TestLikedReflectsLike(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	feed := f.feed(t, 3)

	liked, err := f.svc.Liked(ctx, feed, domain.UserID(7))
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Equal(t, "0", mustGet(t, f.mr, redis.LikeStatusKey(feed.ID, domain.LikeableFeed, 7)))

	rel, err := f.svc.Like(ctx, feed, domain.UserID(7))
	require.NoError(t, err)
	assert.Equal(t, feed.ID, rel.ItemID)
	assert.Equal(t, domain.LikeableFeed, rel.ItemType)
	assert.Equal(t, int64(7), rel.ActorID)
	assert.Equal(t, feed.UserID, rel.TargetUserID)

	liked, err = f.svc.Liked(ctx, feed, domain.UserID(7))
	require.NoError(t, err)
	assert.True(t, liked)

	// a full user value names the same actor
	liked, err = f.svc.Liked(ctx, feed, domain.User{ID: 7, Username: faker.Username()})
	require.NoError(t, err)
	assert.True(t, liked)

	liked, err = f.svc.Liked(ctx, feed, domain.UserID(8))
	require.NoError(t, err)
	assert.False(t, liked)
}

func TestLikeIsIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	feed := f.feed(t, 3)

	first, err := f.svc.Like(ctx, feed, domain.UserID(7))
	require.NoError(t, err)
	second, err := f.svc.Like(ctx, feed, domain.UserID(7))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(1), f.relations(t, feed.ID))
	assert.Equal(t, int64(1), f.likeCount(t, feed.ID))
	assert.Equal(t, int64(1), f.authorLikes(t, 3))
	assert.Equal(t, 1, f.reconciler.count())
}

func TestUnlikeIsIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	feed := f.feed(t, 3)

	removed, err := f.svc.Unlike(ctx, feed, domain.UserID(7))
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Zero(t, f.likeCount(t, feed.ID))
	assert.Zero(t, f.authorLikes(t, 3))

	_, err = f.svc.Like(ctx, feed, domain.UserID(7))
	require.NoError(t, err)

	removed, err = f.svc.Unlike(ctx, feed, domain.UserID(7))
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = f.svc.Unlike(ctx, feed, domain.UserID(7))
	require.NoError(t, err)
	assert.False(t, removed)

	assert.Zero(t, f.relations(t, feed.ID))
	assert.Zero(t, f.likeCount(t, feed.ID))
	assert.Zero(t, f.authorLikes(t, 3))
	assert.Equal(t, 2, f.reconciler.count())

	liked, err := f.svc.Liked(ctx, feed, domain.UserID(7))
	require.NoError(t, err)
	assert.False(t, liked)
}

func TestCountersFollowRelations(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.feed(t, 3)
	b := f.feed(t, 3)
	other := f.feed(t, 4)

	for _, actor := range []domain.UserID{7, 8, 9} {
		_, err := f.svc.Like(ctx, a, actor)
		require.NoError(t, err)
	}
	for _, actor := range []domain.UserID{7, 8} {
		_, err := f.svc.Like(ctx, b, actor)
		require.NoError(t, err)
	}
	_, err := f.svc.Like(ctx, other, domain.UserID(7))
	require.NoError(t, err)
	_, err = f.svc.Unlike(ctx, a, domain.UserID(8))
	require.NoError(t, err)

	for _, feed := range []domain.Feed{a, b, other} {
		assert.Equal(t, f.relations(t, feed.ID), f.likeCount(t, feed.ID))
	}
	assert.Equal(t, f.likeCount(t, a.ID)+f.likeCount(t, b.ID), f.authorLikes(t, 3))
	assert.Equal(t, int64(4), f.authorLikes(t, 3))
	assert.Equal(t, int64(1), f.authorLikes(t, 4))
}

func TestLikeOverwritesStaleStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	feed := f.feed(t, 3)
	key := redis.LikeStatusKey(feed.ID, domain.LikeableFeed, 7)

	require.NoError(t, f.mr.Set(key, "0"))
	_, err := f.svc.Like(ctx, feed, domain.UserID(7))
	require.NoError(t, err)
	assert.False(t, f.mr.Exists(key))

	liked, err := f.svc.Liked(ctx, feed, domain.UserID(7))
	require.NoError(t, err)
	assert.True(t, liked)

	_, err = f.svc.Unlike(ctx, feed, domain.UserID(7))
	require.NoError(t, err)
	assert.False(t, f.mr.Exists(key))

	liked, err = f.svc.Liked(ctx, feed, domain.UserID(7))
	require.NoError(t, err)
	assert.False(t, liked)
}

func TestForgetLikeDropsCachedStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	feed := f.feed(t, 3)
	key := redis.LikeStatusKey(feed.ID, domain.LikeableFeed, 7)

	// the relation was removed behind the service's back
	require.NoError(t, f.mr.Set(key, "1"))
	liked, err := f.svc.Liked(ctx, feed, domain.UserID(7))
	require.NoError(t, err)
	assert.True(t, liked)

	f.svc.ForgetLike(ctx, feed, domain.UserID(7))
	assert.False(t, f.mr.Exists(key))

	liked, err = f.svc.Liked(ctx, feed, domain.UserID(7))
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Zero(t, f.likeCount(t, feed.ID))
}

func TestLikeOfMissingFeedRollsBack(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	missing := domain.Feed{ID: 404, UserID: 3}

	_, err := f.svc.Like(ctx, missing, domain.UserID(7))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Zero(t, f.relations(t, missing.ID))
	assert.Zero(t, f.authorLikes(t, 3))
	assert.Zero(t, f.reconciler.count())

	liked, err := f.svc.Liked(ctx, missing, domain.UserID(7))
	require.NoError(t, err)
	assert.False(t, liked)
}

func TestCacheOutageDoesNotFailOperations(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	feed := f.feed(t, 3)
	f.mr.SetError("ERR cache unavailable")

	_, err := f.svc.Like(ctx, feed, domain.UserID(7))
	require.NoError(t, err)

	liked, err := f.svc.Liked(ctx, feed, domain.UserID(7))
	require.NoError(t, err)
	assert.True(t, liked)

	removed, err := f.svc.Unlike(ctx, feed, domain.UserID(7))
	require.NoError(t, err)
	assert.True(t, removed)

	f.svc.ForgetLike(ctx, feed, domain.UserID(7))

	f.mr.SetError("")
	liked, err = f.svc.Liked(ctx, feed, domain.UserID(7))
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Zero(t, f.likeCount(t, feed.ID))
}

func TestConcurrentLikesBySameActorCountOnce(t *testing.T) {
	f := setup(t)
	feed := f.feed(t, 3)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			_, err := f.svc.Like(ctx, feed, domain.UserID(7))
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(1), f.relations(t, feed.ID))
	assert.Equal(t, int64(1), f.likeCount(t, feed.ID))
	assert.Equal(t, int64(1), f.authorLikes(t, 3))
}

func TestConcurrentLikesByManyActors(t *testing.T) {
	f := setup(t)
	feed := f.feed(t, 3)

	g, ctx := errgroup.WithContext(context.Background())
	for actor := int64(1); actor <= 20; actor++ {
		g.Go(func() error {
			if _, err := f.svc.Like(ctx, feed, domain.UserID(actor)); err != nil {
				return err
			}
			if actor%4 == 0 {
				_, err := f.svc.Unlike(ctx, feed, domain.UserID(actor))
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(15), f.relations(t, feed.ID))
	assert.Equal(t, int64(15), f.likeCount(t, feed.ID))
	assert.Equal(t, int64(15), f.authorLikes(t, 3))
}

func TestLikesListsActorsInOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	feed := f.feed(t, 3)

	rels, err := f.svc.Likes(ctx, feed)
	require.NoError(t, err)
	assert.Empty(t, rels)

	for _, actor := range []domain.UserID{9, 7, 8} {
		_, err := f.svc.Like(ctx, feed, actor)
		require.NoError(t, err)
	}
	_, err = f.svc.Unlike(ctx, feed, domain.UserID(7))
	require.NoError(t, err)

	rels, err = f.svc.Likes(ctx, feed)
	require.NoError(t, err)
	require.Len(t, rels, 2)
	assert.Equal(t, int64(9), rels[0].ActorID)
	assert.Equal(t, int64(8), rels[1].ActorID)
	assert.Equal(t, feed.UserID, rels[0].TargetUserID)
}

func TestNilArguments(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	feed := f.feed(t, 3)

	_, err := f.svc.Liked(ctx, feed, nil)
	assert.ErrorIs(t, err, domain.ErrBadParamInput)
	_, err = f.svc.Like(ctx, nil, domain.UserID(7))
	assert.ErrorIs(t, err, domain.ErrBadParamInput)
	_, err = f.svc.Unlike(ctx, feed, nil)
	assert.ErrorIs(t, err, domain.ErrBadParamInput)
	_, err = f.svc.Likes(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrBadParamInput)
	f.svc.ForgetLike(ctx, nil, nil)
}

func TestStoreFailureIsReturned(t *testing.T) {
	boom := errors.New("connection refused")
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	rec := &recordingReconciler{}

	svc := like.NewService(failingTransactor{err: boom}, failingRelations{err: boom}, redis.NewLikeStatusCache(client), rec, 0)
	feed := domain.Feed{ID: 12, UserID: 3}

	_, err := svc.Like(context.Background(), feed, domain.UserID(7))
	assert.ErrorIs(t, err, boom)

	_, err = svc.Unlike(context.Background(), feed, domain.UserID(7))
	assert.ErrorIs(t, err, boom)

	_, err = svc.Liked(context.Background(), feed, domain.UserID(7))
	assert.ErrorIs(t, err, boom)
	_, err = svc.Likes(context.Background(), feed)
	assert.ErrorIs(t, err, boom)

	// only the unused lease is left, it expires on its own
	_, err = redis.NewLikeStatusCache(client).Get(context.Background(), 12, domain.LikeableFeed, 7)
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
	assert.Positive(t, mr.TTL(redis.LikeStatusKey(12, domain.LikeableFeed, 7)))
	assert.Zero(t, rec.count())
}

type failingTransactor struct{ err error }

func (f failingTransactor) Atomic(context.Context, func(domain.AtomicUnit) error) error {
	return f.err
}

type failingRelations struct{ err error }

func (f failingRelations) Exists(context.Context, int64, string, int64) (bool, error) {
	return false, f.err
}

func (f failingRelations) Create(context.Context, int64, string, int64, int64) (domain.LikeRelation, bool, error) {
	return domain.LikeRelation{}, false, f.err
}

func (f failingRelations) Find(context.Context, int64, string, int64) (domain.LikeRelation, error) {
	return domain.LikeRelation{}, f.err
}

func (f failingRelations) Delete(context.Context, domain.LikeRelation) (bool, error) {
	return false, f.err
}

func (f failingRelations) ListByItem(context.Context, int64, string) ([]domain.LikeRelation, error) {
	return nil, f.err
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
