package domain

// Inbound dispatcher events. Generation fields are optional because older
// dispatchers do not stamp them.

type ReplaceStops struct {
	Labels []string
}

type AddStops struct {
	Labels []string
}

type DeleteStops struct {
	Indices    []int
	Generation *uint64
}

type PermutationAnswer struct {
	Order      []int
	CycleID    string
	Generation *uint64
}
