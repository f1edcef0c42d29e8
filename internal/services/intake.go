package services

import (
	"context"
	"courier-route-service/internal/domain"
	"courier-route-service/internal/platform/obs"
	"courier-route-service/internal/ports"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const defaultGeocodeParallelism = 4

// Resolver geocodes address labels into stops, preserving input order.
type Resolver struct {
	geocoder ports.Geocoder
	limit    int
}

func NewResolver(g ports.Geocoder, parallelism int) *Resolver {
	if parallelism <= 0 {
		parallelism = defaultGeocodeParallelism
	}
	return &Resolver{geocoder: g, limit: parallelism}
}

// Resolve returns the stops for every label that could be geocoded, in input
// order. Labels the geocoder does not know are returned in missing; any other
// geocoder failure aborts the whole call.
func (r *Resolver) Resolve(ctx context.Context, labels []string) (stops []domain.Stop, missing []string, err error) {
	defer obs.Time(ctx, "resolver.Resolve")(&err)

	type slot struct {
		stop  domain.Stop
		found bool
	}
	slots := make([]slot, len(labels))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)

	for i, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}

		g.Go(func() error {
			c, err := r.geocoder.Resolve(gctx, label)
			if errors.Is(err, domain.ErrAddressNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("resolve %q: %w", label, err)
			}
			slots[i] = slot{stop: domain.NewStop(label, c), found: true}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	stops = make([]domain.Stop, 0, len(labels))
	for i, s := range slots {
		if s.found {
			stops = append(stops, s.stop)
			continue
		}
		if l := strings.TrimSpace(labels[i]); l != "" {
			missing = append(missing, l)
		}
	}

	return stops, missing, nil
}

// Intake feeds dispatcher events into the session in arrival order.
// Handlers run synchronously on the caller's goroutine; the next event is
// not read until the previous one has been applied.
type Intake struct {
	session  *Session
	resolver *Resolver
	reporter ports.StatusReporter
}

func NewIntake(session *Session, resolver *Resolver, reporter ports.StatusReporter) *Intake {
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &Intake{session: session, resolver: resolver, reporter: reporter}
}

// Bind registers the intake as the handler of stop events and optimizer answers.
func (in *Intake) Bind(events ports.EventSource, answers ports.OptimizationChannel) {
	events.OnStopEvent(func(ctx context.Context, event any) {
		if err := in.HandleStopEvent(ctx, event); err != nil {
			log.Warn().Err(err).Msg("stop event not applied")
		}
	})
	answers.OnPermutation(func(ctx context.Context, ans domain.PermutationAnswer) {
		if _, err := in.session.Permutation(ctx, ans); err != nil {
			log.Warn().Err(err).Str("cycle_id", ans.CycleID).Msg("permutation not applied")
		}
	})
}

func (in *Intake) HandleStopEvent(ctx context.Context, event any) error {
	switch ev := event.(type) {
	case domain.ReplaceStops:
		obs.DispatcherEvents.WithLabelValues("bulk-replace").Inc()
		stops, err := in.resolve(ctx, ev.Labels)
		if err != nil {
			return err
		}
		_, err = in.session.Replace(ctx, stops)
		return err

	case domain.AddStops:
		obs.DispatcherEvents.WithLabelValues("add").Inc()
		stops, err := in.resolve(ctx, ev.Labels)
		if err != nil {
			return err
		}
		if len(stops) == 0 {
			return nil
		}
		_, err = in.session.Append(ctx, stops)
		return err

	case domain.DeleteStops:
		obs.DispatcherEvents.WithLabelValues("delete").Inc()
		_, err := in.session.Delete(ctx, ev.Indices, ev.Generation)
		return err

	default:
		err := fmt.Errorf("stop event of type %T: %w", event, domain.ErrMalformedEvent)
		in.report(ctx, err)
		return err
	}
}

func (in *Intake) resolve(ctx context.Context, labels []string) ([]domain.Stop, error) {
	stops, missing, err := in.resolver.Resolve(ctx, labels)
	if err != nil {
		in.report(ctx, err)
		return nil, err
	}

	if len(missing) > 0 {
		nf := fmt.Errorf("%s: %w", strings.Join(missing, "; "), domain.ErrAddressNotFound)
		log.Warn().Strs("labels", missing).Msg("addresses not found")
		in.report(ctx, nf)
	}

	return stops, nil
}

func (in *Intake) report(ctx context.Context, cause error) {
	if err := in.reporter.Rejected(ctx, RejectionReason(cause), cause.Error()); err != nil {
		log.Warn().Err(err).Msg("report rejection failed")
	}
}
