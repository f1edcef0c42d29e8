package services

import (
	"courier-route-service/internal/domain"
	"fmt"
)

// Reconciler maps an optimizer permutation onto the live stop set.
type Reconciler struct {
	current func() domain.Snapshot
}

// NewReconciler reads the live stop set through current on every Apply.
func NewReconciler(current func() domain.Snapshot) *Reconciler {
	return &Reconciler{current: current}
}

// Apply validates permutation as a bijection over [0, expectedSize) and checks
// that the live stop set still has expectedSize stops.
func (r *Reconciler) Apply(permutation []int, expectedSize int) (domain.OptimizedOrder, error) {
	return r.ApplyAt(permutation, expectedSize, nil)
}

// ApplyAt is Apply with an additional generation check when expectedGeneration is set.
func (r *Reconciler) ApplyAt(permutation []int, expectedSize int, expectedGeneration *uint64) (domain.OptimizedOrder, error) {
	if err := ValidatePermutation(permutation, expectedSize); err != nil {
		return domain.OptimizedOrder{}, err
	}

	live := r.current()
	if live.Size() != expectedSize {
		return domain.OptimizedOrder{}, fmt.Errorf("apply permutation: computed for %d stops, live set has %d: %w",
			expectedSize, live.Size(), domain.ErrStale)
	}
	if expectedGeneration != nil && *expectedGeneration != live.Generation {
		return domain.OptimizedOrder{}, fmt.Errorf("apply permutation: computed for generation %d, live generation %d: %w",
			*expectedGeneration, live.Generation, domain.ErrStale)
	}

	stops := make([]domain.Stop, len(permutation))
	for pos, idx := range permutation {
		stops[pos] = live.Stops[idx]
	}

	perm := make([]int, len(permutation))
	copy(perm, permutation)

	return domain.OptimizedOrder{
		Generation:  live.Generation,
		Permutation: perm,
		Stops:       stops,
	}, nil
}

// ValidatePermutation reports domain.ErrMalformedPermutation unless p contains
// every index in [0, size) exactly once.
func ValidatePermutation(p []int, size int) error {
	if size < 0 {
		return fmt.Errorf("permutation size %d: %w", size, domain.ErrMalformedPermutation)
	}
	if len(p) != size {
		return fmt.Errorf("permutation has %d entries, want %d: %w", len(p), size, domain.ErrMalformedPermutation)
	}

	seen := make([]bool, size)
	for pos, idx := range p {
		if idx < 0 || idx >= size {
			return fmt.Errorf("permutation[%d] = %d out of range [0,%d): %w", pos, idx, size, domain.ErrMalformedPermutation)
		}
		if seen[idx] {
			return fmt.Errorf("permutation[%d] = %d repeated: %w", pos, idx, domain.ErrMalformedPermutation)
		}
		seen[idx] = true
	}

	return nil
}
