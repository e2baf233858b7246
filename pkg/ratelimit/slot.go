package ratelimit

import (
	"context"
	"time"
)

// Slot is the Rate Slot: a cell holding the completion time of the last
// request, guarded by an exclusive token of capacity one.
type Slot interface {
	// Lock acquires exclusive access and returns the last recorded completion,
	// or the zero time if no request has completed yet.
	Lock(ctx context.Context) (time.Time, error)

	// Unlock records completed (unless it is the zero time) and releases
	// exclusive access. It must only be called after a successful Lock.
	Unlock(ctx context.Context, completed time.Time) error
}

// MemorySlot is an in-process Slot. Every client cloned from the same
// configuration shares one MemorySlot.
type MemorySlot struct {
	token chan struct{}
	last  time.Time
}

// NewMemorySlot creates an empty in-process slot.
func NewMemorySlot() *MemorySlot {
	return &MemorySlot{token: make(chan struct{}, 1)}
}

// Lock takes the token, waiting for the current holder to release it.
func (s *MemorySlot) Lock(ctx context.Context) (time.Time, error) {
	select {
	case s.token <- struct{}{}:
		return s.last, nil
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	}
}

// Unlock records completed and returns the token.
func (s *MemorySlot) Unlock(_ context.Context, completed time.Time) error {
	if !completed.IsZero() {
		s.last = completed
	}
	<-s.token
	return nil
}

// Last returns the recorded completion time. It takes the token, so it waits
// for an in-flight request to finish.
func (s *MemorySlot) Last(ctx context.Context) (time.Time, error) {
	last, err := s.Lock(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return last, s.Unlock(ctx, time.Time{})
}
