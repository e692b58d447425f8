package histogram

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"
)

func randomValues(r *rand.Rand, n int, min, max float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = min + r.Float64()*(max-min)
	}

	return out
}

// feed splits values into random batches and adds them one batch at a time.
func feed(s Strategy, r *rand.Rand, values []float64) {
	for len(values) > 0 {
		n := 1 + r.Intn(len(values))
		s.Add(values[:n])
		values = values[n:]
	}
}

func TestAccumulationIsOrderAndBatchIndependent(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	for _, p := range []Policy{PolicyIncremental, PolicyRecompute} {
		t.Run(p.String(), func(t *testing.T) {
			values := randomValues(r, 500, 1, 5)

			ref, err := New(p, 64, 1, 5)
			if err != nil {
				t.Fatal(err)
			}

			ref.Add(values)
			want := ref.Snapshot()

			for trial := 0; trial < 20; trial++ {
				shuffled := append([]float64(nil), values...)
				r.Shuffle(len(shuffled), func(i, j int) {
					shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
				})

				s, _ := New(p, 64, 1, 5)
				feed(s, r, shuffled)

				got := s.Snapshot()
				if got.Total() != int64(len(values)) || s.Total() != int64(len(values)) {
					t.Fatalf("total = %d/%d, want %d", got.Total(), s.Total(), len(values))
				}

				if !reflect.DeepEqual(got.Counts, want.Counts) {
					t.Fatalf("trial %d: counts differ from single-batch accumulation", trial)
				}
			}
		})
	}
}

func TestSnapshotIsIdempotentAndDetached(t *testing.T) {
	for _, p := range []Policy{PolicyIncremental, PolicyRecompute} {
		t.Run(p.String(), func(t *testing.T) {
			s, err := New(p, 8, 0, 1)
			if err != nil {
				t.Fatal(err)
			}

			s.Add([]float64{0.1, 0.2, 0.9})

			a := s.Snapshot()
			b := s.Snapshot()

			if !reflect.DeepEqual(a, b) {
				t.Fatalf("snapshots differ: %+v vs %+v", a, b)
			}

			a.Counts[0] = 100
			a.BinEdges[0] = -1

			c := s.Snapshot()
			if !reflect.DeepEqual(b, c) {
				t.Fatal("mutating a snapshot changed the accumulator")
			}
		})
	}
}

func TestIncrementalBinning(t *testing.T) {
	s, err := NewIncremental(4, 0, 4)
	if err != nil {
		t.Fatal(err)
	}

	s.Add([]float64{0, 0.999, 1, 3.5, 4, -0.1, 4.1, math.NaN()})

	h := s.Snapshot()

	if want := []float64{0, 1, 2, 3, 4}; !reflect.DeepEqual(h.BinEdges, want) {
		t.Errorf("edges = %v, want %v", h.BinEdges, want)
	}

	if want := []int64{2, 1, 0, 2}; !reflect.DeepEqual(h.Counts, want) {
		t.Errorf("counts = %v, want %v", h.Counts, want)
	}

	if h.Underflow != 1 || h.Overflow != 1 || h.Invalid != 1 {
		t.Errorf("under/over/invalid = %d/%d/%d, want 1/1/1", h.Underflow, h.Overflow, h.Invalid)
	}

	if h.Total()+h.Underflow+h.Overflow+h.Invalid != 8 {
		t.Error("every fed value must be accounted for")
	}
}

func TestIncrementalEdgesStrictlyIncreasing(t *testing.T) {
	s, err := NewIncremental(1024, 1, 5)
	if err != nil {
		t.Fatal(err)
	}

	edges := s.Snapshot().BinEdges
	if len(edges) != 1025 {
		t.Fatalf("len(edges) = %d", len(edges))
	}

	for i := 1; i < len(edges); i++ {
		if edges[i] <= edges[i-1] {
			t.Fatalf("edges[%d]=%v <= edges[%d]=%v", i, edges[i], i-1, edges[i-1])
		}
	}
}

func TestRecomputeRange(t *testing.T) {
	s, err := NewRecompute(10)
	if err != nil {
		t.Fatal(err)
	}

	if h := s.Snapshot(); h.BinEdges[0] != 0 || h.BinEdges[10] != 1 || h.Total() != 0 {
		t.Errorf("empty histogram = %+v", h)
	}

	s.Add([]float64{2})

	h := s.Snapshot()
	if h.BinEdges[0] != 1.5 || h.BinEdges[10] != 2.5 || h.Total() != 1 {
		t.Errorf("degenerate range not widened: %+v", h)
	}

	s.Add([]float64{-3, 7, math.Inf(1)})

	h = s.Snapshot()
	if h.BinEdges[0] != -3 || h.BinEdges[10] != 7 {
		t.Errorf("edges = [%v, %v], want [-3, 7]", h.BinEdges[0], h.BinEdges[10])
	}

	if h.Counts[9] != 1 || h.Counts[0] != 1 || h.Total() != 3 || h.Invalid != 1 {
		t.Errorf("counts = %v invalid = %d", h.Counts, h.Invalid)
	}
}

func TestRecomputeNarrowRange(t *testing.T) {
	s, err := NewRecompute(1024)
	if err != nil {
		t.Fatal(err)
	}

	s.Add([]float64{1, 1 + 1e-13})

	h := s.Snapshot()
	for i := 1; i < len(h.BinEdges); i++ {
		if h.BinEdges[i] <= h.BinEdges[i-1] {
			t.Fatalf("edge %d = %v not above %v", i, h.BinEdges[i], h.BinEdges[i-1])
		}
	}

	if h.BinEdges[0] > 1 || h.BinEdges[1024] < 1+1e-13 || h.Total() != 2 {
		t.Errorf("edges [%v, %v] total %d", h.BinEdges[0], h.BinEdges[1024], h.Total())
	}
}

func TestConstructorErrors(t *testing.T) {
	if _, err := NewIncremental(0, 0, 1); !errors.Is(err, ErrorInvalidBins) {
		t.Errorf("bins: %v", err)
	}

	if _, err := NewIncremental(4, 1, 1); !errors.Is(err, ErrorInvalidRange) {
		t.Errorf("range: %v", err)
	}

	if _, err := NewIncremental(4, math.Inf(-1), 1); !errors.Is(err, ErrorInvalidRange) {
		t.Errorf("inf range: %v", err)
	}

	if _, err := NewRecompute(-2); !errors.Is(err, ErrorInvalidBins) {
		t.Errorf("recompute bins: %v", err)
	}

	if _, err := New(Policy(9), 4, 0, 1); !errors.Is(err, ErrorUnknownPolicy) {
		t.Errorf("policy: %v", err)
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{
		"":            PolicyIncremental,
		"incremental": PolicyIncremental,
		"recompute":   PolicyRecompute,
	} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %v, %v", in, got, err)
		}
	}

	if _, err := ParsePolicy("lazy"); !errors.Is(err, ErrorUnknownPolicy) {
		t.Errorf("err = %v", err)
	}
}

func TestCenters(t *testing.T) {
	h := Histogram{BinEdges: []float64{0, 2, 4}}
	if got := h.Centers(); !reflect.DeepEqual(got, []float64{1, 3}) {
		t.Errorf("centers = %v", got)
	}
}
