package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	ErrLockNotAcquired = errors.New("slot lock not acquired")
)

// Locker guards the booking critical section of a single time slot.
type Locker interface {
	WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error
}

func slotLockKey(slotID uuid.UUID) string {
	return fmt.Sprintf("lock:time_slot:%s", slotID.String())
}

type redisSlotLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisSlotLocker creates a locker that uses a per slot Redis key, so
// bookings are serialised across every api-server instance.
func NewRedisSlotLocker(client *redis.Client, ttl time.Duration, logger zerolog.Logger) Locker {
	return &redisSlotLocker{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "slot_lock").Logger(),
	}
}

func (l *redisSlotLocker) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	key := slotLockKey(slotID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire slot lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		// the caller's ctx may already be cancelled
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := l.release(releaseCtx, key, token); err != nil {
			l.logger.Warn().Err(err).Str("key", key).Msg("slot lock release failed; it will expire with its ttl")
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

type localSlotLocker struct {
	mu   sync.Mutex
	held map[uuid.UUID]struct{}
}

// NewLocalSlotLocker returns an in-process Locker. It only serialises
// bookings within one process and suits single-instance deployments and
// tests.
func NewLocalSlotLocker() Locker {
	return &localSlotLocker{held: make(map[uuid.UUID]struct{})}
}

func (l *localSlotLocker) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if _, busy := l.held[slotID]; busy {
		l.mu.Unlock()
		return ErrLockNotAcquired
	}
	l.held[slotID] = struct{}{}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, slotID)
		l.mu.Unlock()
	}()

	return fn(ctx)
}
