package domain

import "fmt"

// StopSet is the ordered, generation-tracked collection of stops for one session.
// When a current position is known it is always pinned at index 0.
//
// A StopSet is not safe for concurrent use. It is owned by a single writer
// (the session event loop); everything else reads immutable Snapshots.
type StopSet struct {
	stops      []Stop
	current    *Stop
	generation uint64
}

func NewStopSet() *StopSet {
	return &StopSet{}
}

// Snapshot is an immutable copy of a StopSet at a given generation.
type Snapshot struct {
	Stops      []Stop
	Generation uint64
}

func (s Snapshot) Size() int { return len(s.Stops) }

// Return the coordinates of every stop in snapshot order.
func (s Snapshot) Coordinates() []Coordinates {
	out := make([]Coordinates, len(s.Stops))
	for i, st := range s.Stops {
		out[i] = st.Coordinates
	}
	return out
}

func (s *StopSet) Generation() uint64 { return s.generation }

func (s *StopSet) Len() int { return len(s.stops) }

// Snapshot copies the live contents. The returned slice is never shared with the set.
func (s *StopSet) Snapshot() Snapshot {
	stops := make([]Stop, len(s.stops))
	copy(stops, s.stops)
	return Snapshot{Stops: stops, Generation: s.generation}
}

// ReplaceAll swaps the full contents and re-inserts the current position at index 0.
// Stops flagged as current position in the input are dropped.
func (s *StopSet) ReplaceAll(stops []Stop) uint64 {
	next := make([]Stop, 0, len(stops)+1)
	if s.current != nil {
		next = append(next, *s.current)
	}
	next = append(next, withoutCurrent(stops)...)

	s.stops = next
	s.generation++
	return s.generation
}

// Append inserts stops at the end.
func (s *StopSet) Append(stops []Stop) uint64 {
	s.stops = append(s.stops, withoutCurrent(stops)...)
	s.generation++
	return s.generation
}

// Remove deletes the entries at indices, which must have been computed against
// generation asOf. Either every index is removed or none is.
func (s *StopSet) Remove(indices []int, asOf uint64) (uint64, error) {
	if asOf != s.generation {
		return s.generation, fmt.Errorf("remove stops: indices for generation %d, live generation %d: %w",
			asOf, s.generation, ErrStaleIndex)
	}

	drop := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(s.stops) {
			return s.generation, fmt.Errorf("remove stops: index %d not in [0,%d): %w", i, len(s.stops), ErrIndexOutOfRange)
		}
		drop[i] = struct{}{}
	}
	if len(drop) == 0 {
		return s.generation, nil
	}

	next := make([]Stop, 0, len(s.stops)-len(drop))
	for i, st := range s.stops {
		if _, ok := drop[i]; ok {
			if st.IsCurrentPosition {
				s.current = nil
			}
			continue
		}
		next = append(next, st)
	}

	s.stops = next
	s.generation++
	return s.generation, nil
}

// PinCurrentPosition installs or moves the current-position entry at index 0.
// It reports whether the set changed.
func (s *StopSet) PinCurrentPosition(c Coordinates) bool {
	st := CurrentPositionStop(c)
	s.current = &st

	if len(s.stops) > 0 && s.stops[0].IsCurrentPosition {
		if s.stops[0].Coordinates == c {
			return false
		}
		next := make([]Stop, len(s.stops))
		copy(next, s.stops)
		next[0] = st
		s.stops = next
	} else {
		s.stops = append([]Stop{st}, s.stops...)
	}

	s.generation++
	return true
}

func withoutCurrent(stops []Stop) []Stop {
	out := make([]Stop, 0, len(stops))
	for _, st := range stops {
		if st.IsCurrentPosition {
			continue
		}
		out = append(out, st)
	}
	return out
}
