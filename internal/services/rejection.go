package services

import (
	"courier-route-service/internal/domain"
	"errors"
)

// RejectionReason maps an error to the short reason code sent to the dispatcher.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrMalformedPermutation):
		return "malformed_permutation"
	case errors.Is(err, domain.ErrStaleIndex):
		return "stale_index"
	case errors.Is(err, domain.ErrStale):
		return "stale"
	case errors.Is(err, domain.ErrIndexOutOfRange):
		return "index_out_of_range"
	case errors.Is(err, domain.ErrAddressNotFound):
		return "address_not_found"
	case errors.Is(err, domain.ErrMalformedEvent):
		return "malformed_event"
	case errors.Is(err, domain.ErrNoStops):
		return "no_stops"
	default:
		return "error"
	}
}
