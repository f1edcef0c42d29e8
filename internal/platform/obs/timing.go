package obs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ctxKey string

const RequestIDKey ctxKey = "req_id"

// Time logs the duration of op when the returned func is deferred.
// A non-nil *errp is logged at warn level.
//
//	defer obs.Time(ctx, "ors.Query")(&err)
func Time(ctx context.Context, op string) func(errp *error) {
	start := time.Now()

	reqID, _ := ctx.Value(RequestIDKey).(string)

	return func(errp *error) {
		var ev *zerolog.Event
		if errp != nil && *errp != nil {
			ev = log.Warn().Err(*errp)
		} else {
			ev = log.Debug()
		}
		ev.Str("req_id", reqID).
			Str("op", op).
			Int64("dur_ms", time.Since(start).Milliseconds()).
			Msg("timing")
	}
}
