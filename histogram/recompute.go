package histogram

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// recompute keeps every value and rebuilds the bins over the data's own
// min/max after each Add.
type recompute struct {
	bins    int
	values  []float64
	invalid int64
	h       Histogram
}

func NewRecompute(bins int) (Strategy, error) {
	if bins <= 0 {
		return nil, fmt.Errorf("%d bins: %w", bins, ErrorInvalidBins)
	}

	s := &recompute{bins: bins}
	s.rebuild()

	return s, nil
}

func (s *recompute) String() string {
	return PolicyRecompute.String()
}

func (s *recompute) Add(values []float64) {
	if len(values) == 0 {
		return
	}

	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			s.invalid++

			continue
		}

		s.values = append(s.values, v)
	}

	sort.Float64s(s.values)
	s.rebuild()
}

func (s *recompute) rebuild() {
	lo, hi := 0.0, 1.0

	if n := len(s.values); n > 0 {
		lo, hi = s.values[0], s.values[n-1]
		if lo == hi {
			lo, hi = lo-0.5, hi+0.5
		}
	}

	edges := floats.Span(make([]float64, s.bins+1), lo, hi)
	edges[s.bins] = hi

	// A range only a few ulps wide rounds to repeated edges.
	for !increasing(edges) {
		pad := float64(s.bins) * ulp(math.Max(math.Abs(lo), math.Abs(hi)))
		lo, hi = lo-pad, hi+pad

		floats.Span(edges, lo, hi)
		edges[s.bins] = hi
	}

	// stat.Histogram bins are half open; nudge the last divider so the
	// maximum lands in the final bin.
	dividers := append([]float64(nil), edges...)
	dividers[s.bins] = math.Nextafter(hi, math.Inf(1))

	weights := stat.Histogram(nil, dividers, s.values, nil)

	counts := make([]int64, s.bins)
	for i, w := range weights {
		counts[i] = int64(w)
	}

	s.h = Histogram{
		BinEdges: edges,
		Counts:   counts,
		Invalid:  s.invalid,
	}
}

func (s *recompute) Snapshot() Histogram {
	return s.h.clone()
}

func (s *recompute) Total() int64 {
	return int64(len(s.values))
}

func increasing(edges []float64) bool {
	for i := 1; i < len(edges); i++ {
		if edges[i] <= edges[i-1] {
			return false
		}
	}

	return true
}

func ulp(x float64) float64 {
	return math.Nextafter(x, math.Inf(1)) - x
}
