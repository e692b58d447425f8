package pulse

import (
	"fmt"
)

type Baseline int

const (
	BaselineMin Baseline = iota
	BaselineMean
)

func (b Baseline) String() string {
	switch b {
	case BaselineMin:
		return "min"
	case BaselineMean:
		return "mean"
	}

	return "unknown"
}

func ParseBaseline(s string) (Baseline, error) {
	switch s {
	case "min", "":
		return BaselineMin, nil
	case "mean":
		return BaselineMean, nil
	}

	return 0, fmt.Errorf("%q: %w", s, ErrorInvalidBaseline)
}

const (
	DefaultEdgeFraction = 0.1
	DefaultGain         = 1.0
)

type Options struct {
	Threshold    float64
	Signed       bool
	EdgeFraction float64
	Baseline     Baseline
	MaxPulses    int
	Gain         float64
}

type Option func(*Options)

func OptionWithThreshold(t float64) Option {
	return func(o *Options) {
		o.Threshold = t
	}
}

// OptionWithSignedThreshold compares peak-baseline directly instead of its
// absolute value.
func OptionWithSignedThreshold(s bool) Option {
	return func(o *Options) {
		o.Signed = s
	}
}

// OptionWithEdgeFraction sets the share of samples trimmed from each end of
// a chunk before baseline and peak are taken.
func OptionWithEdgeFraction(f float64) Option {
	return func(o *Options) {
		o.EdgeFraction = f
	}
}

func OptionWithBaseline(b Baseline) Option {
	return func(o *Options) {
		o.Baseline = b
	}
}

// OptionWithMaxPulses caps accepted chunks per buffer, 0 means unlimited.
func OptionWithMaxPulses(n int) Option {
	return func(o *Options) {
		o.MaxPulses = n
	}
}

func OptionWithGain(g float64) Option {
	return func(o *Options) {
		o.Gain = g
	}
}
