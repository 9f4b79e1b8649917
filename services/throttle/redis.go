package throttle

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/auth"
)

const keyPrefix = "caipa:login-attempts:"

// RedisLimiter shares counters between API instances. Each counter expires lockout
// after the first failure it records.
type RedisLimiter struct {
	rdb     redis.UniversalClient
	max     int
	lockout time.Duration
}

var _ auth.AttemptLimiter = (*RedisLimiter)(nil)

func NewRedisLimiter(rdb redis.UniversalClient, max int, lockout time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, max: max, lockout: lockout}
}

// NewRedisClient connects to conf.Address and pings it.
func NewRedisClient(ctx context.Context, conf core.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Address,
		Password: conf.Password,
		DB:       conf.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "pinging redis at %s", conf.Address)
	}
	return rdb, nil
}

func (l *RedisLimiter) Blocked(ctx context.Context, key string) (bool, error) {
	if l.max <= 0 {
		return false, nil
	}
	n, err := l.rdb.Get(ctx, keyPrefix+key).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, errors.Wrap(err, "getting attempts")
	}
	return n >= l.max, nil
}

func (l *RedisLimiter) Fail(ctx context.Context, key string) error {
	k := keyPrefix + key
	n, err := l.rdb.Incr(ctx, k).Result()
	if err != nil {
		return errors.Wrap(err, "counting attempt")
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, k, l.lockout).Err(); err != nil {
			return errors.Wrap(err, "setting lockout")
		}
	}
	return nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return errors.Wrap(l.rdb.Del(ctx, keyPrefix+key).Err(), "clearing attempts")
}
