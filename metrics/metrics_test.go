package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"pha/acquisition"
	"pha/deadtime"
	"pha/histogram"
)

func snapshot() *acquisition.Snapshot {
	return &acquisition.Snapshot{
		Sequence: 4,
		State: acquisition.State{
			LegitCount:      30,
			Iterations:      41,
			Processed:       40,
			TransientErrors: 1,
		},
		Progress:   0.3,
		Histogram:  histogram.Histogram{Overflow: 2},
		Deadtime:   deadtime.Stats{Value: 12, Last: 11, Max: 25, OK: true, Level: deadtime.LevelYellow, Unit: "ms", Kind: "median"},
		Amplitudes: []float64{1.5, 2.5, 4.5},
	}
}

func TestPublishUpdatesGauges(t *testing.T) {
	m := NewMonitor("pha_test")

	if err := m.Publish(snapshot()); err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct {
		name string
		got  float64
		want float64
	}{
		{"legit", testutil.ToFloat64(m.LegitGauge), 30},
		{"iterations", testutil.ToFloat64(m.IterationGauge), 41},
		{"progress", testutil.ToFloat64(m.ProgressGauge), 0.3},
		{"transient", testutil.ToFloat64(m.ErrorsGauge.WithLabelValues("transient")), 1},
		{"overflow", testutil.ToFloat64(m.Overflow.WithLabelValues("over")), 2},
		{"median", testutil.ToFloat64(m.DeadtimeGauge.WithLabelValues("median", "ms")), 12},
		{"max", testutil.ToFloat64(m.DeadtimeGauge.WithLabelValues("max", "ms")), 25},
		{"level", testutil.ToFloat64(m.DeadtimeLevel), 1},
		{"snapshots", testutil.ToFloat64(m.Snapshots.WithLabelValues("false")), 1},
	} {
		if tc.got != tc.want {
			t.Errorf("%s = %v, want %v", tc.name, tc.got, tc.want)
		}
	}

	if n := testutil.CollectAndCount(m.Amplitudes); n != 1 {
		t.Errorf("amplitude histogram series = %d", n)
	}
}

func TestHandler(t *testing.T) {
	m := NewMonitor("pha_test", OptionWithBuckets(1, 5, 4))
	_ = m.Publish(snapshot())

	ts := httptest.NewServer(m.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/heart")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("heart status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		"pha_test_legit_pulses 30",
		`pha_test_pulse_amplitude_bucket{le="2"} 1`,
		"pha_test_pulse_amplitude_count 3",
	} {
		if !strings.Contains(string(b), want) {
			t.Errorf("metrics output lacks %q", want)
		}
	}
}

func TestSystemSampler(t *testing.T) {
	m := NewMonitor("pha_test")
	m.getSys()

	if testutil.ToFloat64(m.MemoryUseGauge) <= 0 {
		t.Error("memory use not sampled")
	}
}
