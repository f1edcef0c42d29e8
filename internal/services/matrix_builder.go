package services

import (
	"context"
	"courier-route-service/internal/domain"
	"courier-route-service/internal/platform/obs"
	"courier-route-service/internal/ports"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

const defaultQueryTimeout = 10 * time.Second

// MatrixBuilder turns a stop set snapshot into a DistanceMatrix by issuing
// one routing query per unordered pair concurrently.
//
// Failed or timed-out pairs are left as domain.UnknownDistance and recorded
// in the matrix failure list; they never abort the build.
type MatrixBuilder struct {
	client  ports.RoutingClient
	timeout time.Duration
	sem     *semaphore.Weighted
}

type MatrixBuilderOption func(*MatrixBuilder)

// WithQueryTimeout bounds every pairwise query. Non-positive values keep the default.
func WithQueryTimeout(d time.Duration) MatrixBuilderOption {
	return func(b *MatrixBuilder) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithMaxInFlight caps concurrent routing queries. Zero means unbounded.
func WithMaxInFlight(n int) MatrixBuilderOption {
	return func(b *MatrixBuilder) {
		if n > 0 {
			b.sem = semaphore.NewWeighted(int64(n))
		} else {
			b.sem = nil
		}
	}
}

func NewMatrixBuilder(client ports.RoutingClient, opts ...MatrixBuilderOption) *MatrixBuilder {
	b := &MatrixBuilder{client: client, timeout: defaultQueryTimeout}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// PairCount returns n*(n-1)/2, the number of queries for n stops.
func PairCount(n int) int {
	if n < 2 {
		return 0
	}
	return n * (n - 1) / 2
}

type pairOutcome struct {
	i, j int
	err  error
}

// Build returns once every pair has either succeeded or failed. Cancelling ctx
// turns outstanding pairs into failures; it does not leave the build pending.
func (b *MatrixBuilder) Build(ctx context.Context, snap domain.Snapshot) domain.DistanceMatrix {
	n := snap.Size()
	m := domain.NewDistanceMatrix(n, snap.Generation)

	total := PairCount(n)
	if total == 0 {
		return m
	}

	start := time.Now()
	coords := snap.Coordinates()

	// Each pair owns its outcome slot and its two matrix cells, so goroutines
	// never write the same memory.
	outcomes := make([]pairOutcome, total)
	var completed atomic.Int64
	finished := make(chan struct{})

	k := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			go func(slot, i, j int) {
				meters, err := b.query(ctx, coords[i], coords[j])
				if err == nil {
					m.Set(i, j, meters)
				}
				outcomes[slot] = pairOutcome{i: i, j: j, err: err}

				if completed.Add(1) == int64(total) {
					close(finished)
				}
			}(k, i, j)
			k++
		}
	}

	<-finished

	for _, o := range outcomes {
		if o.err != nil {
			m.Failures = append(m.Failures, domain.PairFailure{I: o.i, J: o.j, Err: o.err})
		}
	}

	ev := log.Info()
	if m.Partial() {
		ev = log.Warn()
	}
	ev.Uint64("generation", snap.Generation).
		Int("stops", n).
		Int("pairs", total).
		Int("failures", len(m.Failures)).
		Int64("dur_ms", time.Since(start).Milliseconds()).
		Msg("distance matrix built")

	return m
}

// query runs one routing call under its own deadline. The select keeps the
// deadline effective even for clients that ignore ctx.
func (b *MatrixBuilder) query(ctx context.Context, origin, destination domain.Coordinates) (int, error) {
	if b.sem != nil {
		if err := b.sem.Acquire(ctx, 1); err != nil {
			obs.RoutingQueries.WithLabelValues("canceled").Inc()
			return 0, fmt.Errorf("wait for routing slot: %w", err)
		}
		defer b.sem.Release(1)
	}

	qctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type result struct {
		meters int
		err    error
	}
	ch := make(chan result, 1)

	start := time.Now()
	go func() {
		meters, err := b.client.Query(qctx, origin, destination)
		ch <- result{meters: meters, err: err}
	}()

	var r result
	select {
	case r = <-ch:
	case <-qctx.Done():
		if ctx.Err() != nil {
			r.err = fmt.Errorf("routing query canceled: %w", ctx.Err())
		} else {
			r.err = fmt.Errorf("no answer within %s: %w", b.timeout, domain.ErrRoutingTimeout)
		}
	}
	obs.RoutingDuration.Observe(time.Since(start).Seconds())

	if r.err == nil && r.meters < 0 {
		r.err = fmt.Errorf("negative distance %d: %w", r.meters, domain.ErrRoutingService)
	}
	obs.RoutingQueries.WithLabelValues(queryOutcome(r.err)).Inc()

	return r.meters, r.err
}

func queryOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrRoutingTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, domain.ErrRoutingUnreachable):
		return "unreachable"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
