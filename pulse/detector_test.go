package pulse

import (
	"errors"
	"math"
	"testing"
)

// pulseChunk builds an n-sample chunk sitting at base with a square pulse of
// the given height in the middle fifth.
func pulseChunk(n int, base, height float64) []float64 {
	c := make([]float64, n)
	for i := range c {
		c[i] = base
	}

	for i := 2 * n / 5; i < 3*n/5; i++ {
		c[i] = base + height
	}

	return c
}

func mustDetector(t *testing.T, opts ...Option) *Detector {
	t.Helper()

	d, err := NewDetector(opts...)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	return d
}

func TestDetectAcceptsEveryPassingChunk(t *testing.T) {
	d := mustDetector(t, OptionWithThreshold(1))

	chunks := [][]float64{
		pulseChunk(100, 0, 2),
		pulseChunk(100, 0, 0.5),
		pulseChunk(100, 0.2, 3),
	}

	res := d.Detect(chunks)
	if len(res.Candidates) != 3 {
		t.Fatalf("candidates = %d, want 3", len(res.Candidates))
	}

	if len(res.Accepted) != 2 || res.Accepted[0] != 0 || res.Accepted[1] != 2 {
		t.Fatalf("accepted = %v, want [0 2]", res.Accepted)
	}

	amps := res.Amplitudes()
	if math.Abs(amps[0]-2) > 1e-12 || math.Abs(amps[1]-3) > 1e-12 {
		t.Errorf("amplitudes = %v", amps)
	}

	recent := res.Recent(chunks)
	want := chunks[2][50]
	if len(recent) != 100 || recent[50] != want {
		t.Errorf("recent trace should be a copy of chunk 2")
	}

	recent[50] = 0
	if chunks[2][50] != want {
		t.Error("recent trace aliases the chunk")
	}
}

func TestDetectIgnoresEdges(t *testing.T) {
	d := mustDetector(t, OptionWithThreshold(1))

	c := make([]float64, 100)
	c[0] = 50
	c[99] = -50

	res := d.Detect([][]float64{c})
	if len(res.Accepted) != 0 {
		t.Fatalf("edge spikes were accepted: %+v", res.Candidates[0])
	}

	if res.Candidates[0].Amplitude != 0 {
		t.Errorf("amplitude = %v, want 0", res.Candidates[0].Amplitude)
	}
}

func TestDetectBaselineModes(t *testing.T) {
	c := pulseChunk(100, 1, 4)

	min := mustDetector(t, OptionWithBaseline(BaselineMin)).Detect([][]float64{c})
	if min.Candidates[0].Baseline != 1 || min.Candidates[0].Amplitude != 4 {
		t.Errorf("min baseline candidate = %+v", min.Candidates[0])
	}

	mean := mustDetector(t, OptionWithBaseline(BaselineMean)).Detect([][]float64{c})
	// 20 of the 80 central samples are high.
	if got := mean.Candidates[0].Baseline; math.Abs(got-2) > 1e-12 {
		t.Errorf("mean baseline = %v, want 2", got)
	}
}

func TestDetectSignedThreshold(t *testing.T) {
	chunks := [][]float64{pulseChunk(50, 0, 1.5)}

	for _, tc := range []struct {
		name      string
		signed    bool
		gain      float64
		threshold float64
		accepted  int
	}{
		{"unsigned inverted gain", false, -1, 1, 1},
		{"signed inverted gain", true, -1, 1, 0},
		{"signed negative threshold", true, -1, -2, 1},
		{"signed plain", true, 1, 1, 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d := mustDetector(t,
				OptionWithSignedThreshold(tc.signed),
				OptionWithGain(tc.gain),
				OptionWithThreshold(tc.threshold))

			res := d.Detect(chunks)
			if len(res.Accepted) != tc.accepted {
				t.Fatalf("accepted = %d, want %d", len(res.Accepted), tc.accepted)
			}

			if tc.accepted == 1 && !tc.signed && res.Amplitudes()[0] < 0 {
				t.Error("unsigned mode should report absolute amplitudes")
			}
		})
	}
}

func TestDetectMaxPulses(t *testing.T) {
	d := mustDetector(t, OptionWithThreshold(1), OptionWithMaxPulses(1))

	chunks := [][]float64{pulseChunk(20, 0, 2), pulseChunk(20, 0, 5)}

	res := d.Detect(chunks)
	if len(res.Accepted) != 1 || res.Accepted[0] != 0 {
		t.Fatalf("accepted = %v, want [0]", res.Accepted)
	}
}

func TestDetectGain(t *testing.T) {
	d := mustDetector(t, OptionWithThreshold(1), OptionWithGain(1000))

	res := d.Detect([][]float64{pulseChunk(100, 0, 0.002)})
	if len(res.Accepted) != 1 {
		t.Fatal("2 mV pulse should pass a 1 mV threshold after V->mV gain")
	}
}

func TestDetectNaN(t *testing.T) {
	d := mustDetector(t, OptionWithThreshold(0))

	c := pulseChunk(10, 0, 1)
	for i := 1; i < 9; i++ {
		c[i] = math.NaN()
	}

	res := d.Detect([][]float64{c})
	if len(res.Accepted) != 0 {
		t.Error("chunk without finite central samples was accepted")
	}

	partial := pulseChunk(100, 0, 2)
	partial[30] = math.NaN()

	res = d.Detect([][]float64{partial})
	if len(res.Accepted) != 1 || res.Candidates[0].Amplitude != 2 {
		t.Errorf("NaN samples should be skipped, got %+v", res.Candidates[0])
	}
}

func TestDetectNoChunks(t *testing.T) {
	res := mustDetector(t).Detect(nil)
	if len(res.Candidates) != 0 || len(res.Accepted) != 0 {
		t.Fatal("expected empty result")
	}

	if res.Recent(nil) != nil {
		t.Fatal("expected nil trace")
	}
}

func TestNewDetectorValidation(t *testing.T) {
	cases := []struct {
		name string
		opt  Option
		want error
	}{
		{"nan threshold", OptionWithThreshold(math.NaN()), ErrorInvalidThreshold},
		{"edge too wide", OptionWithEdgeFraction(0.5), ErrorInvalidEdgeFraction},
		{"negative edge", OptionWithEdgeFraction(-0.1), ErrorInvalidEdgeFraction},
		{"zero gain", OptionWithGain(0), ErrorInvalidGain},
		{"negative max", OptionWithMaxPulses(-1), ErrorInvalidMaxPulses},
		{"baseline", OptionWithBaseline(Baseline(7)), ErrorInvalidBaseline},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewDetector(tc.opt); !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestWindowSmallChunk(t *testing.T) {
	d := mustDetector(t)

	if lo, hi := d.Window(3); lo != 0 || hi != 3 {
		t.Errorf("Window(3) = [%d,%d), want [0,3)", lo, hi)
	}

	if lo, hi := d.Window(100); lo != 10 || hi != 90 {
		t.Errorf("Window(100) = [%d,%d), want [10,90)", lo, hi)
	}
}

func TestParseBaseline(t *testing.T) {
	for s, want := range map[string]Baseline{"": BaselineMin, "min": BaselineMin, "mean": BaselineMean} {
		if b, err := ParseBaseline(s); err != nil || b != want {
			t.Errorf("ParseBaseline(%q) = %v, %v", s, b, err)
		}
	}

	if _, err := ParseBaseline("median"); !errors.Is(err, ErrorInvalidBaseline) {
		t.Errorf("err = %v", err)
	}
}
