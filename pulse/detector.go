package pulse

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrorInvalidThreshold    = errors.New("threshold must be finite")
	ErrorInvalidEdgeFraction = errors.New("edge fraction must be in [0, 0.5)")
	ErrorInvalidGain         = errors.New("gain must be finite and non-zero")
	ErrorInvalidMaxPulses    = errors.New("max pulses must not be negative")
	ErrorInvalidBaseline     = errors.New("unknown baseline mode")
)

type Candidate struct {
	Index     int
	Baseline  float64
	Peak      float64
	Amplitude float64
}

type Result struct {
	Candidates []Candidate
	Accepted   []int

	signed bool
}

// Amplitudes returns the values of accepted candidates as they should be
// histogrammed.
func (r Result) Amplitudes() []float64 {
	out := make([]float64, 0, len(r.Accepted))

	for _, i := range r.Accepted {
		a := r.Candidates[i].Amplitude
		if !r.signed {
			a = math.Abs(a)
		}

		out = append(out, a)
	}

	return out
}

// Recent copies the raw samples of the last accepted chunk, nil when no
// chunk passed.
func (r Result) Recent(chunks [][]float64) []float64 {
	if len(r.Accepted) == 0 {
		return nil
	}

	c := chunks[r.Accepted[len(r.Accepted)-1]]
	out := make([]float64, len(c))
	copy(out, c)

	return out
}

type Detector struct {
	opts    Options
	scratch []float64
}

func NewDetector(opts ...Option) (*Detector, error) {
	d := &Detector{
		opts: Options{
			EdgeFraction: DefaultEdgeFraction,
			Gain:         DefaultGain,
		},
	}

	for _, o := range opts {
		o(&d.opts)
	}

	if math.IsNaN(d.opts.Threshold) || math.IsInf(d.opts.Threshold, 0) {
		return nil, ErrorInvalidThreshold
	}

	if !(d.opts.EdgeFraction >= 0 && d.opts.EdgeFraction < 0.5) {
		return nil, fmt.Errorf("edge fraction %v: %w", d.opts.EdgeFraction, ErrorInvalidEdgeFraction)
	}

	if d.opts.Gain == 0 || math.IsNaN(d.opts.Gain) || math.IsInf(d.opts.Gain, 0) {
		return nil, ErrorInvalidGain
	}

	if d.opts.MaxPulses < 0 {
		return nil, ErrorInvalidMaxPulses
	}

	if d.opts.Baseline != BaselineMin && d.opts.Baseline != BaselineMean {
		return nil, ErrorInvalidBaseline
	}

	return d, nil
}

func (d *Detector) Options() Options {
	return d.opts
}

// Window returns the [lo, hi) range of an n-sample chunk that baseline and
// peak are measured over.
func (d *Detector) Window(n int) (int, int) {
	lo := int(float64(n) * d.opts.EdgeFraction)
	hi := n - lo

	if hi <= lo {
		return 0, n
	}

	return lo, hi
}

func (d *Detector) Detect(chunks [][]float64) Result {
	res := Result{signed: d.opts.Signed}
	if len(chunks) == 0 {
		return res
	}

	res.Candidates = make([]Candidate, len(chunks))

	for i, c := range chunks {
		res.Candidates[i] = d.measure(i, c)

		if d.opts.MaxPulses > 0 && len(res.Accepted) >= d.opts.MaxPulses {
			continue
		}

		if d.accept(res.Candidates[i].Amplitude) {
			res.Accepted = append(res.Accepted, i)
		}
	}

	return res
}

func (d *Detector) accept(amp float64) bool {
	if math.IsNaN(amp) {
		return false
	}

	if !d.opts.Signed {
		amp = math.Abs(amp)
	}

	return amp >= d.opts.Threshold
}

func (d *Detector) measure(index int, chunk []float64) Candidate {
	lo, hi := d.Window(len(chunk))

	d.scratch = d.scratch[:0]
	for _, v := range chunk[lo:hi] {
		if !math.IsNaN(v) {
			d.scratch = append(d.scratch, v)
		}
	}

	if len(d.scratch) == 0 {
		nan := math.NaN()

		return Candidate{Index: index, Baseline: nan, Peak: nan, Amplitude: nan}
	}

	peak := floats.Max(d.scratch)

	var base float64
	if d.opts.Baseline == BaselineMean {
		base = stat.Mean(d.scratch, nil)
	} else {
		base = floats.Min(d.scratch)
	}

	return Candidate{
		Index:     index,
		Baseline:  base,
		Peak:      peak,
		Amplitude: (peak - base) * d.opts.Gain,
	}
}
