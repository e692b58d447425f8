package histogram

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// incremental bins values against edges fixed at construction. Each Add
// costs O(len(values)).
type incremental struct {
	h     Histogram
	min   float64
	max   float64
	width float64
	total int64
}

func NewIncremental(bins int, min, max float64) (Strategy, error) {
	if bins <= 0 {
		return nil, fmt.Errorf("%d bins: %w", bins, ErrorInvalidBins)
	}

	if !validRange(min, max) {
		return nil, fmt.Errorf("[%v, %v]: %w", min, max, ErrorInvalidRange)
	}

	edges := floats.Span(make([]float64, bins+1), min, max)
	edges[bins] = max

	return &incremental{
		h: Histogram{
			BinEdges: edges,
			Counts:   make([]int64, bins),
		},
		min:   min,
		max:   max,
		width: (max - min) / float64(bins),
	}, nil
}

func (s *incremental) String() string {
	return PolicyIncremental.String()
}

func (s *incremental) Add(values []float64) {
	for _, v := range values {
		switch {
		case math.IsNaN(v):
			s.h.Invalid++
		case v < s.min:
			s.h.Underflow++
		case v > s.max:
			s.h.Overflow++
		default:
			s.h.Counts[s.bin(v)]++
			s.total++
		}
	}
}

// bin maps v in [min, max] to its bin; the last bin is closed on the right.
func (s *incremental) bin(v float64) int {
	n := len(s.h.Counts)
	edges := s.h.BinEdges

	i := int((v - s.min) / s.width)
	if i >= n {
		i = n - 1
	}

	if i < 0 {
		i = 0
	}

	// Span rounding can disagree with the division by one bin.
	if i > 0 && v < edges[i] {
		i--
	} else if i < n-1 && v >= edges[i+1] {
		i++
	}

	return i
}

func (s *incremental) Snapshot() Histogram {
	return s.h.clone()
}

func (s *incremental) Total() int64 {
	return s.total
}
