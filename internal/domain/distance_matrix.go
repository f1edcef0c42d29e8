package domain

// UnknownDistance marks a cell whose routing query failed or timed out.
const UnknownDistance = -1

// PairFailure records why the distance between stops I and J (I < J) is unknown.
type PairFailure struct {
	I   int
	J   int
	Err error
}

// DistanceMatrix is the symmetric N x N matrix of road distances in meters,
// tagged with the stop set generation it was built against.
type DistanceMatrix struct {
	CycleID    string
	Generation uint64
	Cells      [][]int
	Failures   []PairFailure
}

// NewDistanceMatrix allocates an n x n matrix with a zero diagonal and every
// other cell unknown.
func NewDistanceMatrix(n int, generation uint64) DistanceMatrix {
	cells := make([][]int, n)
	for i := range cells {
		cells[i] = make([]int, n)
		for j := range cells[i] {
			if i != j {
				cells[i][j] = UnknownDistance
			}
		}
	}
	return DistanceMatrix{Generation: generation, Cells: cells}
}

func (m DistanceMatrix) Size() int { return len(m.Cells) }

// Partial reports whether at least one pair is unknown.
func (m DistanceMatrix) Partial() bool { return len(m.Failures) > 0 }

func (m DistanceMatrix) At(i, j int) int { return m.Cells[i][j] }

// Set writes both (i,j) and (j,i).
func (m DistanceMatrix) Set(i, j, meters int) {
	m.Cells[i][j] = meters
	m.Cells[j][i] = meters
}
