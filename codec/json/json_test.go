package json

import (
	"errors"
	"math"
	"testing"
	"time"

	"pha/acquisition"
	"pha/deadtime"
	"pha/histogram"
	"pha/waveform"
)

func TestSnapshotRoundTrip(t *testing.T) {
	p := NewDefault()

	in := &acquisition.Snapshot{
		Sequence: 7,
		RunID:    "run",
		Time:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Final:    true,
		State:    acquisition.State{LegitCount: 12, Iterations: 20, Phase: acquisition.PhaseCompleted},
		Histogram: histogram.Histogram{
			BinEdges: []float64{1, 2, 3},
			Counts:   []int64{4, 8},
			Overflow: 1,
		},
		Deadtime: deadtime.Stats{Value: 12.5, OK: true, Level: deadtime.LevelYellow, Unit: "ms"},
		Trace:    waveform.Samples{0, 3, math.NaN()},
	}

	b, err := p.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}

	v, err := p.Unmarshal(b)
	if err != nil {
		t.Fatal(err)
	}

	out, ok := v.(*acquisition.Snapshot)
	if !ok {
		t.Fatalf("decoded %T", v)
	}

	if out.Sequence != 7 || out.State.Phase != acquisition.PhaseCompleted || out.Deadtime.Level != deadtime.LevelYellow {
		t.Errorf("decoded %+v", out)
	}

	if out.Histogram.Total() != 12 || out.Histogram.Overflow != 1 || !out.Time.Equal(in.Time) {
		t.Errorf("histogram %+v", out.Histogram)
	}

	if len(out.Trace) != 3 || !math.IsNaN(out.Trace[2]) {
		t.Errorf("trace %v", out.Trace)
	}
}

func TestBufferRoundTrip(t *testing.T) {
	p := NewDefault()

	b, err := p.Marshal(&waveform.Buffer{Sequence: 3, Samples: waveform.Samples{0.5, 1.5}})
	if err != nil {
		t.Fatal(err)
	}

	if string(b[:10]) != `{"Buffer":` {
		t.Errorf("envelope %s", b)
	}

	v, err := p.Unmarshal(b)
	if err != nil {
		t.Fatal(err)
	}

	if buf := v.(*waveform.Buffer); buf.Sequence != 3 || len(buf.Samples) != 2 {
		t.Errorf("decoded %+v", buf)
	}
}

func TestErrors(t *testing.T) {
	p := NewCodec()

	type ping struct{ N int }

	if _, err := p.Register(ping{}); !errors.Is(err, ErrorNoPointer) {
		t.Errorf("register value err = %v", err)
	}

	if id, err := p.Register(&ping{}); err != nil || id != "ping" {
		t.Fatalf("register = %q, %v", id, err)
	}

	if _, err := p.Register(&ping{}); !errors.Is(err, ErrorRegistered) {
		t.Errorf("double register err = %v", err)
	}

	if _, err := p.Marshal(&waveform.Buffer{}); !errors.Is(err, ErrorNotRegister) {
		t.Errorf("marshal unknown err = %v", err)
	}

	if _, err := p.Unmarshal([]byte(`{"pong":{}}`)); !errors.Is(err, ErrorNotRegister) {
		t.Errorf("unmarshal unknown err = %v", err)
	}

	if _, err := p.Unmarshal([]byte(`{"ping":{},"pong":{}}`)); !errors.Is(err, ErrorInvaildJSONData) {
		t.Errorf("two keys err = %v", err)
	}

	if _, err := p.Unmarshal([]byte(`[`)); err == nil {
		t.Error("garbage decoded")
	}
}
