package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payflow-be/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// LockTTL bounds how long a crashed holder blocks an order.
	LockTTL = 30 * time.Second
	// LockPollInterval is the wait between SET NX attempts.
	LockPollInterval = 50 * time.Millisecond
)

var ErrLockLost = errors.New("order lock expired before release")

// releaseScript deletes the key only when it still carries our token, so a
// holder whose TTL ran out cannot free someone else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes per order across every instance sharing one Redis.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	poll   time.Duration
}

func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client, ttl: LockTTL, poll: LockPollInterval}
}

func lockKey(orderID string) string {
	return fmt.Sprintf("lock:order:%s", orderID)
}

func (l *RedisLocker) Lock(ctx context.Context, orderID string) (func(), error) {
	key := lockKey(orderID)
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis SETNX error: %w", err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.poll):
		}
	}

	return func() {
		// the caller's ctx may already be canceled; release regardless
		relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		n, err := releaseScript.Run(relCtx, l.client, []string{key}, token).Int()
		if err != nil {
			logger.FromCtx(ctx).Error("failed to release order lock", zap.String("key", key), zap.Error(err))
			return
		}
		if n == 0 {
			logger.FromCtx(ctx).Warn("order lock released after expiry",
				zap.String("key", key), zap.Error(ErrLockLost))
		}
	}, nil
}
