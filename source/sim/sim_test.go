package sim

import (
	"errors"
	"math"
	"testing"

	"pha/pulse"
	"pha/waveform"
)

func TestReadRequiresOpen(t *testing.T) {
	s, err := NewSource()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Read(); !errors.Is(err, ErrorNotOpen) {
		t.Errorf("read err = %v", err)
	}

	if err := s.Close(); !errors.Is(err, ErrorNotOpen) {
		t.Errorf("close err = %v", err)
	}

	if err := s.Open(0, 1e6); !errors.Is(err, ErrorInvalidOption) {
		t.Errorf("open err = %v", err)
	}
}

func TestInvalidOptions(t *testing.T) {
	for name, o := range map[string]Option{
		"window": OptionWithWindow(2),
		"rate":   OptionWithPulseRate(1.5),
		"noise":  OptionWithNoise(-1),
		"spread": OptionWithAmplitude(1, -1),
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := NewSource(o); !errors.Is(err, ErrorInvalidOption) {
				t.Errorf("err = %v", err)
			}
		})
	}
}

func TestEveryWindowDetected(t *testing.T) {
	s, err := NewSource(
		OptionWithWindow(100),
		OptionWithPulseRate(1),
		OptionWithAmplitude(2.5, 0),
		OptionWithNoise(0),
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Open(1050, 1e6); err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	buf, err := s.Read()
	if err != nil {
		t.Fatal(err)
	}

	if len(buf) != 1050 {
		t.Fatalf("len = %d", len(buf))
	}

	chunks, err := waveform.Chunk(buf, 100)
	if err != nil {
		t.Fatal(err)
	}

	d, err := pulse.NewDetector(pulse.OptionWithThreshold(1))
	if err != nil {
		t.Fatal(err)
	}

	amps := d.Detect(chunks).Amplitudes()
	if len(amps) != 10 {
		t.Fatalf("detected %d pulses", len(amps))
	}

	for _, a := range amps {
		if math.Abs(a-2.5) > 1e-12 {
			t.Errorf("amplitude %v", a)
		}
	}
}

func TestQuiet(t *testing.T) {
	s, err := NewSource(OptionWithPulseRate(0), OptionWithNoise(0.01))
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Open(1000, 1e6); err != nil {
		t.Fatal(err)
	}

	buf, _ := s.Read()
	for _, v := range buf {
		if math.Abs(v) > 0.2 {
			t.Fatalf("sample %v above noise", v)
		}
	}
}

func TestSeedRepeats(t *testing.T) {
	read := func() []float64 {
		s, err := NewSource(OptionWithSeed(42), OptionWithNoise(0.1), OptionWithAmplitude(3, 0.5))
		if err != nil {
			t.Fatal(err)
		}

		if err := s.Open(500, 1e6); err != nil {
			t.Fatal(err)
		}

		b, err := s.Read()
		if err != nil {
			t.Fatal(err)
		}

		return b
	}

	a, b := read(), read()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}
