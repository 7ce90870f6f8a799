package like

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/Guyuepp/feed-like/domain"
	"github.com/Guyuepp/feed-like/internal/metrics"
)

// DefaultCacheTimeout bounds every status cache call when none is configured.
const DefaultCacheTimeout = 200 * time.Millisecond

// sharedLookupTimeout bounds a store lookup shared by concurrent Liked calls. The
// lookup does not inherit any single caller's cancellation.
const sharedLookupTimeout = 5 * time.Second

var tracer = otel.Tracer("github.com/Guyuepp/feed-like/internal/usecase/like")

type Service struct {
	tx           domain.Transactor
	relations    domain.RelationStore
	statusCache  domain.LikeStatusCache
	reconciler   domain.LikeReconciler
	cacheTimeout time.Duration

	lookups singleflight.Group
}

var _ domain.LikeUsecase = (*Service)(nil)

// NewService will create a new like service object. reconciler may be nil.
func NewService(tx domain.Transactor, rs domain.RelationStore, sc domain.LikeStatusCache, r domain.LikeReconciler, cacheTimeout time.Duration) *Service {
	if cacheTimeout <= 0 {
		cacheTimeout = DefaultCacheTimeout
	}
	return &Service{
		tx:           tx,
		relations:    rs,
		statusCache:  sc,
		reconciler:   r,
		cacheTimeout: cacheTimeout,
	}
}

// Liked answers from the status cache and falls back to the relation store on a miss,
// caching what it found. Concurrent misses on one key share a single store lookup.
func (s *Service) Liked(ctx context.Context, item domain.Likeable, actor domain.Actor) (liked bool, err error) {
	if item == nil || actor == nil {
		return false, domain.ErrBadParamInput
	}
	actorID := actor.ActorID()
	ctx, span := startSpan(ctx, "Liked", item, actorID)
	defer func() { finish(span, "liked", err) }()

	if liked, ok := s.cachedStatus(ctx, item, actorID); ok {
		return liked, nil
	}

	key := fmt.Sprintf("%s:%d:%d", item.LikeableType(), item.LikeableID(), actorID)
	ch := s.lookups.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLookupTimeout)
		defer cancel()
		return s.lookup(ctx, item, actorID)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		logrus.Errorf("failed to check like of %s %d by user %d: %v", item.LikeableType(), item.LikeableID(), actorID, res.Err)
		return false, fmt.Errorf("check like: %w", res.Err)
	}
	return res.Val.(bool), nil
}

// lookup reads the store under a cache lease. Without the lease the answer is
// returned but not cached.
func (s *Service) lookup(ctx context.Context, item domain.Likeable, actorID int64) (bool, error) {
	lease := s.lease(ctx, item, actorID)
	exists, err := s.relations.Exists(ctx, item.LikeableID(), item.LikeableType(), actorID)
	if err != nil {
		return false, err
	}
	if lease != "" {
		s.populate(ctx, item, actorID, lease, exists)
	}
	return exists, nil
}

// Like records that actor likes item and returns the relation, whether it was created
// now or already existed. Counters move only when the relation is new.
func (s *Service) Like(ctx context.Context, item domain.Likeable, actor domain.Actor) (rel domain.LikeRelation, err error) {
	if item == nil || actor == nil {
		return domain.LikeRelation{}, domain.ErrBadParamInput
	}
	actorID := actor.ActorID()
	ctx, span := startSpan(ctx, "Like", item, actorID)
	defer func() { finish(span, "like", err) }()

	s.invalidate(ctx, item, actorID)
	var created bool
	err = s.tx.Atomic(ctx, func(u domain.AtomicUnit) error {
		var err error
		rel, created, err = u.Relations().Create(ctx, item.LikeableID(), item.LikeableType(), actorID, item.LikeableOwnerID())
		if err != nil {
			return err
		}
		if !created {
			return nil
		}
		return u.Counters().ApplyLike(ctx, item)
	})
	s.invalidate(ctx, item, actorID)
	if err != nil {
		logrus.Errorf("failed to like %s %d by user %d: %v", item.LikeableType(), item.LikeableID(), actorID, err)
		return domain.LikeRelation{}, fmt.Errorf("like %s %d: %w", item.LikeableType(), item.LikeableID(), err)
	}

	span.SetAttributes(attribute.Bool("like.created", created))
	if created {
		s.reconcile(item)
	}
	return rel, nil
}

// Unlike removes actor's like of item. It reports false, with no side effect on the
// counters, when there was nothing to remove.
func (s *Service) Unlike(ctx context.Context, item domain.Likeable, actor domain.Actor) (removed bool, err error) {
	if item == nil || actor == nil {
		return false, domain.ErrBadParamInput
	}
	actorID := actor.ActorID()
	ctx, span := startSpan(ctx, "Unlike", item, actorID)
	defer func() { finish(span, "unlike", err) }()

	rel, err := s.relations.Find(ctx, item.LikeableID(), item.LikeableType(), actorID)
	s.invalidate(ctx, item, actorID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		logrus.Errorf("failed to find like of %s %d by user %d: %v", item.LikeableType(), item.LikeableID(), actorID, err)
		return false, fmt.Errorf("unlike %s %d: %w", item.LikeableType(), item.LikeableID(), err)
	}

	err = s.tx.Atomic(ctx, func(u domain.AtomicUnit) error {
		var err error
		removed, err = u.Relations().Delete(ctx, rel)
		if err != nil || !removed {
			return err
		}
		return u.Counters().ApplyUnlike(ctx, item)
	})
	s.invalidate(ctx, item, actorID)
	if err != nil {
		logrus.Errorf("failed to unlike %s %d by user %d: %v", item.LikeableType(), item.LikeableID(), actorID, err)
		return false, fmt.Errorf("unlike %s %d: %w", item.LikeableType(), item.LikeableID(), err)
	}

	if removed {
		s.reconcile(item)
	}
	return removed, nil
}

// ForgetLike drops the cached status only. Code that changes likes without going
// through this service calls it to keep Liked truthful.
func (s *Service) ForgetLike(ctx context.Context, item domain.Likeable, actor domain.Actor) {
	if item == nil || actor == nil {
		return
	}
	s.invalidate(ctx, item, actor.ActorID())
}

// Likes lists who liked item, oldest like first.
func (s *Service) Likes(ctx context.Context, item domain.Likeable) (rels []domain.LikeRelation, err error) {
	if item == nil {
		return nil, domain.ErrBadParamInput
	}
	ctx, span := tracer.Start(ctx, "like.Likes", trace.WithAttributes(
		attribute.String("like.item_type", item.LikeableType()),
		attribute.Int64("like.item_id", item.LikeableID()),
	))
	defer func() { finish(span, "likes", err) }()

	rels, err = s.relations.ListByItem(ctx, item.LikeableID(), item.LikeableType())
	if err != nil {
		logrus.Errorf("failed to list likes of %s %d: %v", item.LikeableType(), item.LikeableID(), err)
		return nil, fmt.Errorf("list likes of %s %d: %w", item.LikeableType(), item.LikeableID(), err)
	}
	span.SetAttributes(attribute.Int("like.count", len(rels)))
	return rels, nil
}

func (s *Service) cachedStatus(ctx context.Context, item domain.Likeable, actorID int64) (bool, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.cacheTimeout)
	defer cancel()

	liked, err := s.statusCache.Get(ctx, item.LikeableID(), item.LikeableType(), actorID)
	switch {
	case err == nil:
		metrics.StatusCacheLookups.WithLabelValues(metrics.ResultHit).Inc()
		return liked, true
	case errors.Is(err, domain.ErrCacheMiss):
		metrics.StatusCacheLookups.WithLabelValues(metrics.ResultMiss).Inc()
	default:
		metrics.StatusCacheLookups.WithLabelValues(metrics.ResultError).Inc()
		metrics.StatusCacheErrors.WithLabelValues("get").Inc()
		logrus.Warnf("like status cache get error: %v", err)
	}
	return false, false
}

func (s *Service) lease(ctx context.Context, item domain.Likeable, actorID int64) string {
	ctx, cancel := context.WithTimeout(ctx, s.cacheTimeout)
	defer cancel()

	lease, err := s.statusCache.Lease(ctx, item.LikeableID(), item.LikeableType(), actorID)
	if errors.Is(err, domain.ErrConflict) {
		return ""
	}
	if err != nil {
		metrics.StatusCacheErrors.WithLabelValues("lease").Inc()
		logrus.Warnf("like status cache lease error: %v", err)
		return ""
	}
	return lease
}

func (s *Service) populate(ctx context.Context, item domain.Likeable, actorID int64, lease string, liked bool) {
	ctx, cancel := context.WithTimeout(ctx, s.cacheTimeout)
	defer cancel()

	if err := s.statusCache.Set(ctx, item.LikeableID(), item.LikeableType(), actorID, lease, liked); err != nil {
		metrics.StatusCacheErrors.WithLabelValues("set").Inc()
		logrus.Warnf("like status cache set error: %v", err)
	}
}

// invalidate outlives a canceled request: skipping it after a commit would leave a stale entry.
func (s *Service) invalidate(ctx context.Context, item domain.Likeable, actorID int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cacheTimeout)
	defer cancel()

	if err := s.statusCache.Invalidate(ctx, item.LikeableID(), item.LikeableType(), actorID); err != nil {
		metrics.StatusCacheErrors.WithLabelValues("invalidate").Inc()
		logrus.Warnf("like status cache invalidate error: %v", err)
	}
}

func (s *Service) reconcile(item domain.Likeable) {
	if s.reconciler != nil {
		s.reconciler.Send(item)
	}
}

func startSpan(ctx context.Context, name string, item domain.Likeable, actorID int64) (context.Context, trace.Span) {
	return tracer.Start(ctx, "like."+name, trace.WithAttributes(
		attribute.String("like.item_type", item.LikeableType()),
		attribute.Int64("like.item_id", item.LikeableID()),
		attribute.Int64("like.actor_id", actorID),
	))
}

func finish(span trace.Span, operation string, err error) {
	result := metrics.ResultOK
	if err != nil {
		result = metrics.ResultError
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.LikeOperations.WithLabelValues(operation, result).Inc()
	span.End()
}
