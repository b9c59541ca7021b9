package job

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether a task of the given type may start now. When it
// may not, retryIn is the wait until it may.
type Limiter interface {
	Allow(ctx context.Context, taskType string) (retryIn time.Duration, allowed bool, err error)
}

// RedisLimiter counts task starts in fixed one-minute windows stored in
// Redis, so every worker process shares the same budget.
type RedisLimiter struct {
	rdb    redis.Cmdable
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter allows limit starts per task type per minute.
func NewRedisLimiter(rdb redis.Cmdable, limit int) *RedisLimiter {
	return &RedisLimiter{
		rdb:    rdb,
		limit:  int64(limit),
		window: time.Minute,
		now:    time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, taskType string) (time.Duration, bool, error) {
	key, retryIn := windowKey(taskType, l.now(), l.window)

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, false, fmt.Errorf("failed to count %s starts: %w", taskType, err)
	}

	if incr.Val() > l.limit {
		return retryIn, false, nil
	}
	return 0, true, nil
}

// windowKey returns the counter key of the window containing now and the
// time left until the next window opens.
func windowKey(taskType string, now time.Time, window time.Duration) (string, time.Duration) {
	start := now.Truncate(window)
	key := fmt.Sprintf("ratelimit:%s:%d", taskType, start.Unix()/int64(window/time.Second))
	return key, start.Add(window).Sub(now)
}
