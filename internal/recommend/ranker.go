package recommend

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// DefaultDecay is the similarity lost per unit of standardized distance.
const DefaultDecay = 8.0

// Candidate is a library point with its position in the library.
type Candidate struct {
	ID     int
	Vector ScaledVector
}

// Neighbor is a ranked candidate
type Neighbor struct {
	ID       int
	Distance float64
}

// Rank returns the k candidates closest to query by Euclidean distance, nearest
// first. Equal distances keep library order. A k larger than the library returns
// the whole library; a negative k returns nil.
func Rank(query ScaledVector, library []Candidate, k int) []Neighbor {
	if k < 0 {
		return nil
	}

	neighbors := make([]Neighbor, len(library))
	for i, c := range library {
		neighbors[i] = Neighbor{
			ID:       c.ID,
			Distance: floats.Distance(query[:], c.Vector[:], 2),
		}
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Distance < neighbors[j].Distance
	})

	if k < len(neighbors) {
		neighbors = neighbors[:k]
	}
	return neighbors
}

// Score maps a distance onto [0, 100] with a linear decay floored at 0.
// Scores are only comparable between queries made against the same scaling.
func Score(distance, decay float64) float64 {
	return math.Max(0, 100-distance*decay)
}
