package domain

// OptimizedOrder is the result of applying an optimizer permutation to the
// stop set of the matching generation.
type OptimizedOrder struct {
	CycleID     string
	Generation  uint64
	Permutation []int
	Stops       []Stop
}

func (o OptimizedOrder) Coordinates() []Coordinates {
	out := make([]Coordinates, len(o.Stops))
	for i, st := range o.Stops {
		out[i] = st.Coordinates
	}
	return out
}
