package services

import (
	"context"
	"courier-route-service/internal/domain"
	"courier-route-service/internal/ports"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

type positionSink interface {
	UpdatePosition(ctx context.Context, c domain.Coordinates) (bool, error)
}

// Locator polls the position source until it has a fix and pins it as the
// current position. With a refresh interval it keeps polling afterwards.
type Locator struct {
	source     ports.PositionSource
	sink       positionSink
	retryDelay time.Duration
	refresh    time.Duration
}

func NewLocator(source ports.PositionSource, sink positionSink, retryDelay, refresh time.Duration) *Locator {
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return &Locator{source: source, sink: sink, retryDelay: retryDelay, refresh: refresh}
}

// Run returns when ctx is done, when permission is denied, or after the first
// fix if no refresh interval is set.
func (l *Locator) Run(ctx context.Context) error {
	for {
		c, err := l.source.CurrentCoordinate(ctx)
		switch {
		case errors.Is(err, domain.ErrPermissionDenied):
			log.Warn().Err(err).Msg("current position disabled")
			return nil
		case err != nil:
			log.Debug().Err(err).Dur("retry_in", l.retryDelay).Msg("current position unavailable")
			if !sleep(ctx, l.retryDelay) {
				return nil
			}
			continue
		}

		if _, err := l.sink.UpdatePosition(ctx, c); err != nil {
			if errors.Is(err, ErrSessionClosed) || ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Msg("pin current position failed")
		}

		if l.refresh <= 0 {
			return nil
		}
		if !sleep(ctx, l.refresh) {
			return nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
