package ratelimit

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var gateWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "cratesio_rate_gate_wait_seconds",
	Help:    "Time spent waiting for the minimum request interval",
	Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
})

// Gate enforces the minimum interval between request completions on a Slot.
type Gate struct {
	slot     Slot
	interval time.Duration
	clock    Clock
	logger   zerolog.Logger
}

// NewGate creates a gate over slot. A nil clock means SystemClock.
func NewGate(slot Slot, interval time.Duration, clock Clock, logger zerolog.Logger) *Gate {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Gate{
		slot:     slot,
		interval: interval,
		clock:    clock,
		logger:   logger,
	}
}

// Interval returns the configured minimum interval.
func (g *Gate) Interval() time.Duration { return g.interval }

// Run executes fn while holding the slot exclusively.
//
// If the previous completion is younger than the interval, Run sleeps for the
// remainder before calling fn, still holding the slot. fn reports whether the
// remote side produced a response; only then is the current time recorded as
// the new completion. A failure before any response leaves the slot untouched.
func (g *Gate) Run(ctx context.Context, fn func(ctx context.Context) (responded bool, err error)) error {
	last, err := g.slot.Lock(ctx)
	if err != nil {
		return err
	}

	var completed time.Time
	defer func() {
		if err := g.slot.Unlock(context.WithoutCancel(ctx), completed); err != nil {
			g.logger.Error().Err(err).Msg("Failed to release rate slot")
		}
	}()

	if !last.IsZero() {
		if wait := g.interval - g.clock.Now().Sub(last); wait > 0 {
			g.logger.Debug().Dur("wait", wait).Msg("Waiting for rate slot interval")
			gateWaitSeconds.Observe(wait.Seconds())
			if err := g.clock.Sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	responded, err := fn(ctx)
	if responded {
		completed = g.clock.Now()
	}
	return err
}
