package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Guyuepp/feed-like/domain"
)

// KeyLikeStatus is <item prefix>-like:<item id>,<actor id>, e.g. feed-like:12,7
const KeyLikeStatus = "%s-like:%d,%d"

// DefaultLeaseTTL bounds how long a crashed reader can keep an entry from being filled.
const DefaultLeaseTTL = 10 * time.Second

const (
	likedValue    = "1"
	notLikedValue = "0"
	leasePrefix   = "lease:"
)

// keyPrefixes keeps keys compatible with those written by the existing feed code.
var keyPrefixes = map[string]string{
	domain.LikeableFeed: "feed",
}

// setIfLeaseHeld replaces the reader's lease with the status. A writer's DEL in
// between removes the lease, and the stale status is dropped.
var setIfLeaseHeld = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2])
	return 1
end
return 0
`)

type likeStatusCache struct {
	client   *redis.Client
	leaseTTL time.Duration
}

var _ domain.LikeStatusCache = (*likeStatusCache)(nil)

func NewLikeStatusCache(client *redis.Client) *likeStatusCache {
	return &likeStatusCache{client: client, leaseTTL: DefaultLeaseTTL}
}

func LikeStatusKey(itemID int64, itemType string, actorID int64) string {
	prefix, ok := keyPrefixes[itemType]
	if !ok {
		prefix = itemType
	}
	return fmt.Sprintf(KeyLikeStatus, prefix, itemID, actorID)
}

func (c *likeStatusCache) Get(ctx context.Context, itemID int64, itemType string, actorID int64) (bool, error) {
	key := LikeStatusKey(itemID, itemType, actorID)
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, domain.ErrCacheMiss
	} else if err != nil {
		return false, err
	}

	switch {
	case val == likedValue:
		return true, nil
	case val == notLikedValue:
		return false, nil
	case strings.HasPrefix(val, leasePrefix):
		return false, domain.ErrCacheMiss
	default:
		logrus.Warnf("unexpected value %q under %s, treating as miss", val, key)
		return false, domain.ErrCacheMiss
	}
}

// Lease reserves an empty entry for the caller. It returns domain.ErrConflict when the
// entry already holds a status or another reader's lease.
func (c *likeStatusCache) Lease(ctx context.Context, itemID int64, itemType string, actorID int64) (string, error) {
	token := leasePrefix + uuid.NewString()
	ok, err := c.client.SetNX(ctx, LikeStatusKey(itemID, itemType, actorID), token, c.leaseTTL).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrConflict
	}
	return token, nil
}

// Set stores the status without expiry, only if lease is still in place.
func (c *likeStatusCache) Set(ctx context.Context, itemID int64, itemType string, actorID int64, lease string, liked bool) error {
	val := notLikedValue
	if liked {
		val = likedValue
	}
	key := LikeStatusKey(itemID, itemType, actorID)
	stored, err := setIfLeaseHeld.Run(ctx, c.client, []string{key}, lease, val).Int()
	if err != nil {
		return err
	}
	if stored == 0 {
		logrus.Debugf("lease on %s was invalidated, status not cached", key)
	}
	return nil
}

func (c *likeStatusCache) Invalidate(ctx context.Context, itemID int64, itemType string, actorID int64) error {
	return c.client.Del(ctx, LikeStatusKey(itemID, itemType, actorID)).Err()
}
