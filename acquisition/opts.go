package acquisition

import (
	"fmt"
	"math"
	"time"

	"pha/deadtime"
	"pha/histogram"
	"pha/pulse"
)

// Config holds every tunable of a run. Zero values are not defaults; start
// from DefaultConfig.
type Config struct {
	BufferSize           int
	WindowSize           int
	SamplingFrequency    float64
	Threshold            float64
	SignedThreshold      bool
	EdgeFraction         float64
	Baseline             pulse.Baseline
	Gain                 float64
	MaxPulsesPerBuffer   int
	BinCount             int
	HistogramPolicy      histogram.Policy
	HistogramMin         float64
	HistogramMax         float64
	TargetCount          int
	PersistOnCompletion  bool
	PublishEvery         int
	DeadtimeUnit         time.Duration
	DeadtimeStatistic    string
	DeadtimeThresholds   deadtime.Thresholds
	MaxConsecutiveErrors int
}

func DefaultConfig() Config {
	return Config{
		BufferSize:          1000,
		WindowSize:          1000,
		SamplingFrequency:   1e6,
		Threshold:           1.0,
		EdgeFraction:        pulse.DefaultEdgeFraction,
		Baseline:            pulse.BaselineMin,
		Gain:                pulse.DefaultGain,
		BinCount:            1024,
		HistogramPolicy:     histogram.PolicyIncremental,
		HistogramMin:        1.0,
		HistogramMax:        5.0,
		TargetCount:         1001,
		PersistOnCompletion: true,
		PublishEvery:        10,
		DeadtimeUnit:        time.Millisecond,
		DeadtimeStatistic:   "median",
		DeadtimeThresholds:  deadtime.DefaultThresholds,
	}
}

func invalid(format string, a ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, a...), ErrorInvalidConfiguration)
}

// Validate checks the parts of the configuration that no component checks
// on construction.
func (c Config) Validate() error {
	if c.BufferSize <= 0 {
		return invalid("buffer size %d", c.BufferSize)
	}

	if c.WindowSize <= 0 || c.WindowSize > c.BufferSize {
		return invalid("window size %d with buffer size %d", c.WindowSize, c.BufferSize)
	}

	if !(c.SamplingFrequency > 0) || math.IsInf(c.SamplingFrequency, 0) {
		return invalid("sampling frequency %v", c.SamplingFrequency)
	}

	if c.BinCount <= 0 {
		return invalid("bin count %d", c.BinCount)
	}

	if c.TargetCount <= 0 {
		return invalid("target count %d", c.TargetCount)
	}

	if c.PublishEvery <= 0 {
		return invalid("publish every %d", c.PublishEvery)
	}

	if c.MaxConsecutiveErrors < 0 {
		return invalid("max consecutive errors %d", c.MaxConsecutiveErrors)
	}

	if c.DeadtimeThresholds.Warn > c.DeadtimeThresholds.Critical {
		return invalid("deadtime warn %v above critical %v", c.DeadtimeThresholds.Warn, c.DeadtimeThresholds.Critical)
	}

	return nil
}

type Options struct {
	Config     Config
	Clock      func() time.Time
	Histogram  histogram.Strategy
	Statistic  deadtime.Statistic
	RunID      string
	ConfigHash string
	Settings   map[string]string
}

type Option func(*Options)

func OptionWithConfig(c Config) Option {
	return func(o *Options) {
		o.Config = c
	}
}

func OptionWithClock(f func() time.Time) Option {
	return func(o *Options) {
		o.Clock = f
	}
}

// OptionWithHistogram overrides the strategy built from the configuration.
func OptionWithHistogram(h histogram.Strategy) Option {
	return func(o *Options) {
		o.Histogram = h
	}
}

func OptionWithStatistic(s deadtime.Statistic) Option {
	return func(o *Options) {
		o.Statistic = s
	}
}

func OptionWithMaxConsecutiveErrors(n int) Option {
	return func(o *Options) {
		o.Config.MaxConsecutiveErrors = n
	}
}

func OptionWithTargetCount(n int) Option {
	return func(o *Options) {
		o.Config.TargetCount = n
	}
}

func OptionWithPublishEvery(n int) Option {
	return func(o *Options) {
		o.Config.PublishEvery = n
	}
}

func OptionWithRunID(id string) Option {
	return func(o *Options) {
		o.RunID = id
	}
}

func OptionWithConfigHash(h string) Option {
	return func(o *Options) {
		o.ConfigHash = h
	}
}

// OptionWithSettings attaches run metadata to the final snapshot.
func OptionWithSettings(s map[string]string) Option {
	return func(o *Options) {
		o.Settings = s
	}
}
