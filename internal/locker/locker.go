package locker

import (
	"context"
	"errors"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/comunidadednb/billing-service/internal/config"
)

// ErrLockHeld is returned when another plan change for the same subscriber
// is already in flight.
var ErrLockHeld = errors.New("plan change already in progress")

const lockTTL = 30 * time.Second

// Locker serializes plan changes per subscriber. Release is returned as a
// closure so callers cannot unlock a key they never acquired.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// NewLocker wires the Redis-backed locker, or the no-op one when no Redis
// address is configured. The optimistic version check on the subscriber row
// still guards correctness without Redis; the lock only avoids burning
// provider API calls on doomed concurrent requests.
func NewLocker(cfg *config.Config, logger *zap.Logger) Locker {
	if cfg.RedisAddr == "" {
		logger.Warn("redis not configured, plan-change locking disabled")
		return NoopLocker{}
	}
	client := goredislib.NewClient(&goredislib.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	rs := redsync.New(goredis.NewPool(client))
	return &redisLocker{rs: rs, logger: logger.Named("locker")}
}

type redisLocker struct {
	rs     *redsync.Redsync
	logger *zap.Logger
}

func (l *redisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	mutex := l.rs.NewMutex("planchange:"+key,
		redsync.WithExpiry(lockTTL),
		redsync.WithTries(1),
	)
	if err := mutex.LockContext(ctx); err != nil {
		if isContention(err) {
			return nil, ErrLockHeld
		}
		return nil, err
	}
	return func() {
		if _, err := mutex.Unlock(); err != nil {
			// Expiry reclaims the lock if unlock fails.
			l.logger.Warn("unlock failed", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

// isContention reports whether a lock acquisition failed because another
// holder has the mutex. redsync surfaces that as ErrFailed or, when quorum
// nodes report the key taken, as *ErrTaken.
func isContention(err error) bool {
	if errors.Is(err, redsync.ErrFailed) {
		return true
	}
	var taken *redsync.ErrTaken
	return errors.As(err, &taken)
}

// NoopLocker acquires every lock immediately.
type NoopLocker struct{}

func (NoopLocker) Acquire(_ context.Context, _ string) (func(), error) {
	return func() {}, nil
}
