package domain

import "errors"

var (
	ErrAddressNotFound     = errors.New("address not found")
	ErrLocationUnavailable = errors.New("location unavailable")
	ErrPermissionDenied    = errors.New("location permission denied")

	ErrRoutingUnreachable = errors.New("routing service unreachable")
	ErrRoutingTimeout     = errors.New("routing query timed out")
	ErrRoutingService     = errors.New("routing service error")

	// ErrStaleIndex is returned when indices refer to an older stop set generation.
	ErrStaleIndex = errors.New("stale index")
	// ErrStale is returned when a permutation was computed against a stop set that no longer exists.
	ErrStale                = errors.New("stale permutation")
	ErrMalformedPermutation = errors.New("malformed permutation")
	ErrIndexOutOfRange      = errors.New("index out of range")
	ErrMalformedEvent       = errors.New("malformed event")
	ErrNoStops              = errors.New("no stops")
)
