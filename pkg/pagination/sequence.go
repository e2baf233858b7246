package pagination

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Done is returned by Next once the sequence is exhausted.
var Done = errors.New("no more items in sequence")

var pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cratesio_pages_fetched_total",
	Help: "Total page fetches by collection and outcome",
}, []string{"collection", "outcome"})

// PageFunc fetches one page of a collection. Page numbers start at 1.
type PageFunc[T any] func(ctx context.Context, page uint64) ([]T, error)

// State of a Sequence.
type State int

const (
	StateIdle State = iota
	StateFetchPending
	StateBuffered
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchPending:
		return "fetch_pending"
	case StateBuffered:
		return "buffered"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Status is the outcome of a single Poll.
type Status int

const (
	// Ready means an item (or the terminal error) was returned.
	Ready Status = iota
	// Pending means a page fetch is in flight; poll again once it completes.
	Pending
	// Exhausted means the sequence is closed.
	Exhausted
)

type pageFetch[T any] struct {
	page  uint64
	done  chan struct{}
	items []T
	err   error
}

// Sequence is a lazy, forward-only iterator over a paginated collection.
// It is safe for concurrent use; at most one page fetch is in flight at any
// time.
type Sequence[T any] struct {
	name   string
	fetch  PageFunc[T]
	logger zerolog.Logger

	mu      sync.Mutex
	page    uint64
	items   []T
	pending *pageFetch[T]
	closed  bool
}

// NewSequence creates a sequence starting at page start. A start below 1 is
// treated as 1. name labels logs and metrics.
func NewSequence[T any](name string, start uint64, fetch PageFunc[T], logger zerolog.Logger) *Sequence[T] {
	if start < 1 {
		start = 1
	}
	return &Sequence[T]{
		name:   name,
		fetch:  fetch,
		logger: logger.With().Str("collection", name).Logger(),
		page:   start,
	}
}

// State reports the current state.
func (s *Sequence[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return StateClosed
	case len(s.items) > 0:
		return StateBuffered
	case s.pending != nil:
		return StateFetchPending
	default:
		return StateIdle
	}
}

// NextPage returns the page number the next fetch will request.
func (s *Sequence[T]) NextPage() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Poll advances the sequence without blocking.
//
// With Ready it returns either an item or the fetch error that closed the
// sequence. With Pending a fetch is in flight; a fetch started by this call
// uses ctx. With Exhausted the sequence is closed.
func (s *Sequence[T]) Poll(ctx context.Context) (T, Status, error) {
	var zero T

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return zero, Exhausted, nil
	}

	if len(s.items) > 0 {
		item := s.items[0]
		s.items[0] = zero
		s.items = s.items[1:]
		return item, Ready, nil
	}

	if pf := s.pending; pf != nil {
		select {
		case <-pf.done:
		default:
			return zero, Pending, nil
		}
		s.pending = nil

		if pf.err != nil {
			s.closed = true
			pagesFetchedTotal.WithLabelValues(s.name, "error").Inc()
			s.logger.Debug().Err(pf.err).Uint64("page", pf.page).Msg("Page fetch failed, closing sequence")
			return zero, Ready, pf.err
		}
		if len(pf.items) == 0 {
			s.closed = true
			pagesFetchedTotal.WithLabelValues(s.name, "empty").Inc()
			s.logger.Debug().Uint64("page", pf.page).Msg("Empty page, closing sequence")
			return zero, Exhausted, nil
		}

		pagesFetchedTotal.WithLabelValues(s.name, "items").Inc()
		s.items = pf.items[1:]
		return pf.items[0], Ready, nil
	}

	pf := &pageFetch[T]{page: s.page, done: make(chan struct{})}
	s.page++
	s.pending = pf

	s.logger.Debug().Uint64("page", pf.page).Msg("Fetching page")
	go func() {
		defer close(pf.done)
		pf.items, pf.err = s.fetch(ctx, pf.page)
	}()

	return zero, Pending, nil
}

// Next returns the next item, blocking while a page is fetched. It returns
// Done once the sequence is exhausted. If ctx ends while waiting, ctx.Err()
// is returned and the in-flight fetch keeps running; a later call picks up its
// result.
func (s *Sequence[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		item, status, err := s.Poll(ctx)
		switch status {
		case Ready:
			return item, err
		case Exhausted:
			return zero, Done
		}
		if err := s.wait(ctx); err != nil {
			return zero, err
		}
	}
}

func (s *Sequence[T]) wait(ctx context.Context) error {
	s.mu.Lock()
	pf := s.pending
	s.mu.Unlock()
	if pf == nil {
		return nil
	}
	select {
	case <-pf.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// All returns an iterator over the remaining items. Iteration stops after the
// first error, which is yielded with a zero item.
func (s *Sequence[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			item, err := s.Next(ctx)
			if errors.Is(err, Done) {
				return
			}
			if !yield(item, err) || err != nil {
				return
			}
		}
	}
}

// Take pulls up to n items. It stops early at the end of the sequence and
// returns the items read so far together with any error.
func (s *Sequence[T]) Take(ctx context.Context, n int) ([]T, error) {
	out := make([]T, 0, max(n, 0))
	for len(out) < n {
		item, err := s.Next(ctx)
		if errors.Is(err, Done) {
			break
		}
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
	return out, nil
}
