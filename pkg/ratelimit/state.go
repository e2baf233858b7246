// Package ratelimit implements the crates.io crawler-policy gate.
// A single Rate Slot holds the completion time of the last request; the Gate
// holds the slot exclusively for the whole wait, send and classify lifecycle of
// a request, so requests sharing a slot never overlap and consecutive
// completions are spaced by at least the configured interval.
package ratelimit

import (
	"context"
	"time"
)

// Redis keys for the shared slot. The prefix is configurable per RedisSlot.
const (
	RedisKeyLock           = "cratesio:rate_limit:lock"
	RedisKeyLastCompletion = "cratesio:rate_limit:last_completion"
)

// Defaults for the Redis slot.
const (
	// DefaultLockLease bounds how long a crashed holder can keep the Redis lock.
	DefaultLockLease = 2 * time.Minute

	// DefaultLockPoll is the interval between lock attempts while another
	// process holds the slot.
	DefaultLockPoll = 10 * time.Millisecond
)

// Clock is the time source of the gate.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the wall clock. Times it returns carry a monotonic reading.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Sleep waits for d or ctx.
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
