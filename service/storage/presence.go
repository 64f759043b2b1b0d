package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redisx "IMGateway/service/storage/redis"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// presence key: im:presence:<user>
// value: the user's broadcast status; TTL bounds staleness if the
// gateway dies without cleaning up.
func presenceKey(user string) string { return "im:presence:" + user }

func lastSeenKey(user string) string { return "im:lastseen:" + user }

// PresenceOnline mirrors a user's live status into redis and renews the TTL.
func PresenceOnline(ctx context.Context, user, status string, ttl time.Duration) error {
	rdb := redisx.Client()
	if rdb == nil {
		return fmt.Errorf("redis not initialized")
	}
	return rdb.Set(ctx, presenceKey(user), status, ttl).Err()
}

// PresenceOffline drops the presence key and records last-seen.
func PresenceOffline(ctx context.Context, user string, lastSeen time.Time) error {
	rdb := redisx.Client()
	if rdb == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := rdb.Del(ctx, presenceKey(user)).Err(); err != nil {
		return err
	}
	return rdb.Set(ctx, lastSeenKey(user), strconv.FormatInt(lastSeen.Unix(), 10), 0).Err()
}

// PresenceLookup reports the mirrored status for a user.
func PresenceLookup(ctx context.Context, user string) (status string, online bool, err error) {
	rdb := redisx.Client()
	if rdb == nil {
		return "", false, fmt.Errorf("redis not initialized")
	}
	val, err := rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}
