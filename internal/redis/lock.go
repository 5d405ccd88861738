package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	ErrLockNotAcquired = errors.New("slot lock not acquired")
)

// Locker is used by the booking service to serialise creates for one
// doctor slot across api-server replicas.
type Locker interface {
	WithSlotLock(ctx context.Context, doctorID uuid.UUID, start time.Time, fn func(ctx context.Context) error) error
}

type redisSlotLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisSlotLocker creates a locker that uses a per doctor slot Redis key.
// A failed release leaves the key until its TTL runs out and is only logged.
func NewRedisSlotLocker(client *redis.Client, ttl time.Duration, logger zerolog.Logger) Locker {
	return &redisSlotLocker{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// SlotKey is the Redis key guarding one doctor's slot.
func SlotKey(doctorID uuid.UUID, start time.Time) string {
	return fmt.Sprintf("lock:slot:%s:%d", doctorID.String(), start.Unix())
}

func (l *redisSlotLocker) WithSlotLock(ctx context.Context, doctorID uuid.UUID, start time.Time, fn func(ctx context.Context) error) error {
	key := SlotKey(doctorID, start)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire slot lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		// release with a fresh context so a cancelled request still frees the key
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := l.release(releaseCtx, key, token); err != nil {
			l.logger.Warn().Err(err).Str("key", key).Dur("ttl", l.ttl).Msg("slot lock not released")
		}
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisSlotLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot lock: %w", err)
	}
	return nil
}
