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

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrSessionClosed = errors.New("session closed")

const publishTimeout = 10 * time.Second

// build is the in-flight matrix computation. Only the most recent one may publish.
type build struct {
	id         string
	generation uint64
	cancel     context.CancelFunc
}

// publication is the matrix the optimizer was last asked about.
type publication struct {
	id         string
	generation uint64
	size       int
}

// Session owns the StopSet and serializes every mutation, build completion and
// optimizer answer on one goroutine (Run). Readers use the atomically
// published snapshot, status and order and never touch the StopSet.
type Session struct {
	builder  *MatrixBuilder
	channel  ports.OptimizationChannel
	reporter ports.StatusReporter
	now      func() time.Time
	cmds     chan func()
	stopped  chan struct{}
	snapshot atomic.Pointer[domain.Snapshot]
	status   atomic.Pointer[domain.CycleStatus]
	order    atomic.Pointer[domain.OptimizedOrder]
	started  atomic.Bool

	// Owned by the Run goroutine.
	set        *domain.StopSet
	reconciler *Reconciler
	runCtx     context.Context
	building   *build
	published  *publication

	// Generation produced by the last dispatcher-originated mutation. Unstamped
	// deletes are only valid against it.
	dispatcherGen uint64
}

type SessionOption func(*Session)

func WithStatusReporter(r ports.StatusReporter) SessionOption {
	return func(s *Session) {
		if r != nil {
			s.reporter = r
		}
	}
}

func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

func NewSession(builder *MatrixBuilder, channel ports.OptimizationChannel, opts ...SessionOption) *Session {
	s := &Session{
		builder:  builder,
		channel:  channel,
		reporter: nopReporter{},
		now:      time.Now,
		cmds:     make(chan func()),
		stopped:  make(chan struct{}),
		set:      domain.NewStopSet(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reconciler = NewReconciler(s.set.Snapshot)

	snap := s.set.Snapshot()
	s.snapshot.Store(&snap)
	s.status.Store(&domain.CycleStatus{Phase: domain.PhaseIdle, UpdatedAt: s.now()})

	return s
}

// Run processes commands until ctx is done. It must be called exactly once.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("session: Run called twice")
	}
	s.runCtx = ctx
	defer close(s.stopped)

	for {
		select {
		case <-ctx.Done():
			if s.building != nil {
				s.building.cancel()
			}
			return nil
		case cmd := <-s.cmds:
			cmd()
		}
	}
}

// do executes fn on the Run goroutine and waits for it.
func (s *Session) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	cmd := func() {
		defer close(done)
		fn()
	}

	select {
	case s.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrSessionClosed
	}

	// Run executes every command it receives before it can stop, so once the
	// send succeeded fn always completes.
	<-done
	return nil
}

// post enqueues fn without waiting for it. It gives up if the session stops.
func (s *Session) post(fn func()) {
	select {
	case s.cmds <- fn:
	case <-s.stopped:
	}
}

func (s *Session) Snapshot() domain.Snapshot {
	return *s.snapshot.Load()
}

func (s *Session) Status() domain.CycleStatus {
	return *s.status.Load()
}

// Order returns the last applied optimized order, if it still matches the live stop set.
func (s *Session) Order() (domain.OptimizedOrder, bool) {
	o := s.order.Load()
	if o == nil {
		return domain.OptimizedOrder{}, false
	}
	return *o, true
}

// Replace swaps the stop list for stops, keeping the current position pinned.
func (s *Session) Replace(ctx context.Context, stops []domain.Stop) (uint64, error) {
	var gen uint64
	err := s.do(ctx, func() {
		gen = s.set.ReplaceAll(stops)
		s.afterMutation(ctx, "replace", true)
	})
	return gen, err
}

func (s *Session) Append(ctx context.Context, stops []domain.Stop) (uint64, error) {
	var gen uint64
	err := s.do(ctx, func() {
		gen = s.set.Append(stops)
		s.afterMutation(ctx, "append", true)
	})
	return gen, err
}

// Delete removes stops by index. Indices are checked against asOf, or against
// the generation of the last dispatcher mutation when asOf is nil, so an
// unstamped delete is rejected once a local change (a position fix) has moved
// the indices.
func (s *Session) Delete(ctx context.Context, indices []int, asOf *uint64) (uint64, error) {
	var (
		gen    uint64
		result error
	)
	err := s.do(ctx, func() {
		basis := s.dispatcherGen
		if asOf != nil {
			basis = *asOf
		}

		gen, result = s.set.Remove(indices, basis)
		if result != nil {
			s.reject(ctx, result)
			return
		}
		s.afterMutation(ctx, "delete", true)
	})
	if err != nil {
		return 0, err
	}
	return gen, result
}

// UpdatePosition pins c as the current position. It reports whether the stop set changed.
func (s *Session) UpdatePosition(ctx context.Context, c domain.Coordinates) (bool, error) {
	var changed bool
	err := s.do(ctx, func() {
		changed = s.set.PinCurrentPosition(c)
		if changed {
			s.afterMutation(ctx, "position", false)
		}
	})
	return changed, err
}

// afterMutation publishes the new snapshot and acknowledges it. fromDispatcher
// marks mutations whose indices the dispatcher already knows.
func (s *Session) afterMutation(ctx context.Context, op string, fromDispatcher bool) {
	snap := s.set.Snapshot()
	s.snapshot.Store(&snap)
	if fromDispatcher {
		s.dispatcherGen = snap.Generation
	}
	s.order.Store(nil)
	obs.StopSetGeneration.Set(float64(snap.Generation))

	log.Info().
		Str("op", op).
		Uint64("generation", snap.Generation).
		Int("stops", snap.Size()).
		Msg("stop set changed")

	if err := s.reporter.StopsChanged(ctx, snap.Generation, snap.Size()); err != nil {
		log.Warn().Err(err).Uint64("generation", snap.Generation).Msg("acknowledge stop set failed")
	}
}

func (s *Session) reject(ctx context.Context, cause error) {
	reason := RejectionReason(cause)
	log.Warn().Err(cause).Str("reason", reason).Msg("rejected")

	if err := s.reporter.Rejected(ctx, reason, cause.Error()); err != nil {
		log.Warn().Err(err).Str("reason", reason).Msg("report rejection failed")
	}
}

// Optimize starts a new optimization cycle against the current stop set and
// returns its id. Any build still running is cancelled and its result ignored.
func (s *Session) Optimize(ctx context.Context) (string, error) {
	var id string
	err := s.do(ctx, func() {
		snap := s.set.Snapshot()

		if s.building != nil {
			s.building.cancel()
			obs.MatrixBuilds.WithLabelValues("superseded").Inc()
			log.Info().Str("cycle_id", s.building.id).Msg("matrix build superseded")
		}

		id = uuid.NewString()
		bctx, cancel := context.WithCancel(s.runCtx)
		s.building = &build{id: id, generation: snap.Generation, cancel: cancel}

		s.setStatus(domain.CycleStatus{
			ID:         id,
			Phase:      domain.PhaseBuilding,
			Generation: snap.Generation,
			Size:       snap.Size(),
		})

		go func() {
			m := s.builder.Build(bctx, snap)
			m.CycleID = id
			s.post(func() { s.onMatrixBuilt(m) })
		}()
	})
	return id, err
}

func (s *Session) onMatrixBuilt(m domain.DistanceMatrix) {
	b := s.building
	if b == nil || b.id != m.CycleID {
		log.Debug().Str("cycle_id", m.CycleID).Msg("discarding result of superseded build")
		return
	}
	b.cancel()
	s.building = nil

	status := domain.CycleStatus{
		ID:         m.CycleID,
		Generation: m.Generation,
		Size:       m.Size(),
		Partial:    m.Partial(),
	}

	if live := s.set.Generation(); live != m.Generation {
		obs.MatrixBuilds.WithLabelValues("stale").Inc()
		cause := fmt.Errorf("matrix for generation %d discarded, live generation %d: %w", m.Generation, live, domain.ErrStale)
		status.Phase = domain.PhaseIdle
		status.Outcome = domain.OutcomeRejected
		status.Reason = cause.Error()
		s.setStatus(status)
		s.reject(s.runCtx, cause)
		return
	}

	status.Phase = domain.PhasePublished
	s.setStatus(status)

	ctx, cancel := context.WithTimeout(s.runCtx, publishTimeout)
	defer cancel()

	if err := s.channel.Publish(ctx, m); err != nil {
		obs.MatrixBuilds.WithLabelValues("publish_failed").Inc()
		log.Error().Err(err).Str("cycle_id", m.CycleID).Msg("publish matrix failed")
		status.Phase = domain.PhaseIdle
		status.Outcome = domain.OutcomeRejected
		status.Reason = fmt.Sprintf("publish matrix: %v", err)
		s.setStatus(status)
		return
	}

	result := "complete"
	if m.Partial() {
		result = "partial"
	}
	obs.MatrixBuilds.WithLabelValues(result).Inc()

	s.published = &publication{id: m.CycleID, generation: m.Generation, size: m.Size()}
	status.Phase = domain.PhaseAwaitingAnswer
	s.setStatus(status)
}

// Permutation applies an optimizer answer to the live stop set. Stale or
// malformed answers are rejected and reported; nothing is applied.
func (s *Session) Permutation(ctx context.Context, ans domain.PermutationAnswer) (domain.OptimizedOrder, error) {
	var (
		order  domain.OptimizedOrder
		result error
	)
	err := s.do(ctx, func() {
		order, result = s.applyPermutation(ans)
		if result != nil {
			obs.Permutations.WithLabelValues(RejectionReason(result)).Inc()
			s.reject(ctx, result)
			return
		}
		obs.Permutations.WithLabelValues("applied").Inc()
	})
	if err != nil {
		return domain.OptimizedOrder{}, err
	}
	return order, result
}

func (s *Session) applyPermutation(ans domain.PermutationAnswer) (domain.OptimizedOrder, error) {
	pub := s.published
	if pub == nil {
		return domain.OptimizedOrder{}, fmt.Errorf("apply permutation: no matrix was published: %w", domain.ErrStale)
	}
	if ans.CycleID != "" && ans.CycleID != pub.id {
		return domain.OptimizedOrder{}, fmt.Errorf("apply permutation: answer for cycle %s, last published %s: %w",
			ans.CycleID, pub.id, domain.ErrStale)
	}

	if ans.Generation != nil && *ans.Generation != pub.generation {
		return domain.OptimizedOrder{}, fmt.Errorf("apply permutation: answer for generation %d, last published %d: %w",
			*ans.Generation, pub.generation, domain.ErrStale)
	}

	status := domain.CycleStatus{ID: pub.id, Phase: domain.PhaseIdle, Generation: pub.generation, Size: pub.size}
	if cur := s.Status(); cur.ID == pub.id {
		status.Partial = cur.Partial
	}

	expected := pub.generation
	order, err := s.reconciler.ApplyAt(ans.Order, pub.size, &expected)
	if err != nil {
		// A rejected answer never disturbs a build that is already under way.
		if s.building == nil {
			status.Outcome = domain.OutcomeRejected
			status.Reason = err.Error()
			s.setStatus(status)
		}
		return domain.OptimizedOrder{}, err
	}
	order.CycleID = pub.id

	s.order.Store(&order)
	if s.building == nil {
		status.Outcome = domain.OutcomeApplied
		s.setStatus(status)
	}

	log.Info().
		Str("cycle_id", pub.id).
		Uint64("generation", order.Generation).
		Ints("permutation", order.Permutation).
		Msg("optimized order applied")

	return order, nil
}

func (s *Session) setStatus(st domain.CycleStatus) {
	st.UpdatedAt = s.now()
	s.status.Store(&st)
}

type nopReporter struct{}

func (nopReporter) StopsChanged(context.Context, uint64, int) error { return nil }
func (nopReporter) Rejected(context.Context, string, string) error  { return nil }
