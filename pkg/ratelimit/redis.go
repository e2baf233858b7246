package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrLockLost is returned by RedisSlot.Unlock when the lease expired before
// the holder released the slot.
var ErrLockLost = errors.New("rate slot lock lost")

var slotErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cratesio_rate_gate_slot_errors_total",
	Help: "Total Rate Slot backend errors by operation",
}, []string{"operation"})

// releaseScript stores the completion time and deletes the lock, but only if
// the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	if ARGV[2] ~= "" then
		redis.call("SET", KEYS[2], ARGV[2])
	end
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisSlotConfig configures a RedisSlot.
type RedisSlotConfig struct {
	// KeyPrefix namespaces the slot keys (default: none).
	KeyPrefix string

	// Lease is the TTL of the lock key (default: DefaultLockLease).
	Lease time.Duration

	// Poll is the retry interval while the lock is held elsewhere
	// (default: DefaultLockPoll).
	Poll time.Duration
}

// RedisSlot is a Slot shared by every process pointing at the same Redis keys.
// Within one process, holders are first serialized by a local token so that
// only one goroutine polls Redis at a time.
type RedisSlot struct {
	redis  *redis.Client
	local  chan struct{}
	config RedisSlotConfig
	logger zerolog.Logger

	// owner is the lock value of the current holder; guarded by local.
	owner string
}

// NewRedisSlot creates a Redis backed slot.
func NewRedisSlot(redisClient *redis.Client, cfg RedisSlotConfig, logger zerolog.Logger) *RedisSlot {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if cfg.Lease <= 0 {
		cfg.Lease = DefaultLockLease
	}
	if cfg.Poll <= 0 {
		cfg.Poll = DefaultLockPoll
	}
	return &RedisSlot{
		redis:  redisClient,
		local:  make(chan struct{}, 1),
		config: cfg,
		logger: logger,
	}
}

func (s *RedisSlot) lockKey() string { return s.config.KeyPrefix + RedisKeyLock }

func (s *RedisSlot) lastKey() string { return s.config.KeyPrefix + RedisKeyLastCompletion }

// Lock acquires the local token, then the Redis lock, and reads the last
// completion time.
func (s *RedisSlot) Lock(ctx context.Context) (time.Time, error) {
	select {
	case s.local <- struct{}{}:
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	}

	last, err := s.acquire(ctx)
	if err != nil {
		<-s.local
		return time.Time{}, err
	}
	return last, nil
}

func (s *RedisSlot) acquire(ctx context.Context) (time.Time, error) {
	owner := uuid.NewString()
	for {
		ok, err := s.redis.SetNX(ctx, s.lockKey(), owner, s.config.Lease).Result()
		if err != nil {
			slotErrorsTotal.WithLabelValues("lock").Inc()
			return time.Time{}, fmt.Errorf("acquire rate slot lock: %w", err)
		}
		if ok {
			break
		}

		t := time.NewTimer(s.config.Poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return time.Time{}, ctx.Err()
		case <-t.C:
		}
	}
	s.owner = owner

	nanos, err := s.redis.Get(ctx, s.lastKey()).Int64()
	switch {
	case err == redis.Nil:
		return time.Time{}, nil
	case err != nil:
		slotErrorsTotal.WithLabelValues("read").Inc()
		s.release(context.WithoutCancel(ctx), time.Time{})
		return time.Time{}, fmt.Errorf("read last completion: %w", err)
	}

	s.logger.Debug().Time("last_completion", time.Unix(0, nanos)).Msg("Rate slot acquired")
	return time.Unix(0, nanos), nil
}

// Unlock stores completed and releases both the Redis lock and the local token.
func (s *RedisSlot) Unlock(ctx context.Context, completed time.Time) error {
	defer func() { <-s.local }()
	return s.release(ctx, completed)
}

func (s *RedisSlot) release(ctx context.Context, completed time.Time) error {
	value := ""
	if !completed.IsZero() {
		value = strconv.FormatInt(completed.UnixNano(), 10)
	}

	n, err := releaseScript.Run(ctx, s.redis, []string{s.lockKey(), s.lastKey()}, s.owner, value).Int()
	if err != nil {
		slotErrorsTotal.WithLabelValues("unlock").Inc()
		return fmt.Errorf("release rate slot lock: %w", err)
	}
	if n == 0 {
		slotErrorsTotal.WithLabelValues("lease").Inc()
		return ErrLockLost
	}
	return nil
}
