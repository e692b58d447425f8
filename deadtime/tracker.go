package deadtime

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrorInvalidBufferSize = errors.New("buffer size must be positive")
	ErrorInvalidSampleRate = errors.New("sample rate must be positive and finite")
	ErrorInvalidUnit       = errors.New("deadtime unit must be positive")
	ErrorUnknownUnit       = errors.New("unknown deadtime unit")
)

type Stats struct {
	Value float64 `json:"value"`
	Last  float64 `json:"last"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
	OK    bool    `json:"ok"`
	Level Level   `json:"level"`
	Unit  string  `json:"unit"`
	Kind  string  `json:"kind"`
}

// Tracker measures, per loop iteration, the wall-clock gap since the last
// read plus the time the instrument needs to fill one buffer.
type Tracker struct {
	opts Options
	fill float64

	prev    time.Time
	started bool
	last    float64
	max     float64
}

func NewTracker(bufferSize int, sampleRate float64, opts ...Option) (*Tracker, error) {
	if bufferSize <= 0 {
		return nil, fmt.Errorf("%d: %w", bufferSize, ErrorInvalidBufferSize)
	}

	if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("%v: %w", sampleRate, ErrorInvalidSampleRate)
	}

	t := &Tracker{
		opts: Options{
			Unit:       time.Millisecond,
			Thresholds: DefaultThresholds,
		},
		fill: float64(bufferSize) / sampleRate,
	}

	for _, o := range opts {
		o(&t.opts)
	}

	if t.opts.Unit <= 0 {
		return nil, ErrorInvalidUnit
	}

	if t.opts.Statistic == nil {
		t.opts.Statistic = NewMedian()
	}

	return t, nil
}

// FillTime is the nominal time to acquire one buffer.
func (t *Tracker) FillTime() time.Duration {
	return time.Duration(t.fill * float64(time.Second))
}

// Record closes the iteration that ended at now. The first call only stores
// the timestamp.
func (t *Tracker) Record(now time.Time) (float64, bool) {
	if !t.started {
		t.started = true
		t.prev = now

		return 0, false
	}

	gap := now.Sub(t.prev)
	t.prev = now

	sample := (gap.Seconds() + t.fill) / t.opts.Unit.Seconds()

	t.last = sample
	if sample > t.max || t.opts.Statistic.Count() == 0 {
		t.max = sample
	}

	t.opts.Statistic.Add(sample)

	return sample, true
}

func (t *Tracker) Stats() Stats {
	v, ok := t.opts.Statistic.Value()

	s := Stats{
		Value: v,
		Last:  t.last,
		Max:   t.max,
		Count: t.opts.Statistic.Count(),
		OK:    ok,
		Unit:  UnitName(t.opts.Unit),
		Kind:  t.opts.Statistic.String(),
	}

	if ok {
		s.Level = t.opts.Thresholds.Grade(v)
	}

	return s
}

func UnitName(d time.Duration) string {
	switch d {
	case time.Millisecond:
		return "ms"
	case time.Microsecond:
		return "us"
	case time.Second:
		return "s"
	}

	return d.String()
}

func ParseUnit(s string) (time.Duration, error) {
	switch s {
	case "ms", "":
		return time.Millisecond, nil
	case "us", "µs":
		return time.Microsecond, nil
	case "s":
		return time.Second, nil
	}

	return 0, fmt.Errorf("%q: %w", s, ErrorUnknownUnit)
}
