package sim

import (
	"time"
)

const (
	DefaultWindow    = 100
	DefaultPulseRate = 0.5
	DefaultAmplitude = 3.0
)

type Options struct {
	Seed      int64
	Window    int
	PulseRate float64
	Amplitude float64
	Spread    float64
	Noise     float64
	Delay     time.Duration
}

type Option func(*Options)

func OptionWithSeed(s int64) Option {
	return func(o *Options) {
		o.Seed = s
	}
}

// OptionWithWindow should match the loop window so that at most one pulse
// lands in each chunk.
func OptionWithWindow(w int) Option {
	return func(o *Options) {
		o.Window = w
	}
}

// OptionWithPulseRate is the probability that a window carries a pulse.
func OptionWithPulseRate(r float64) Option {
	return func(o *Options) {
		o.PulseRate = r
	}
}

func OptionWithAmplitude(a, spread float64) Option {
	return func(o *Options) {
		o.Amplitude = a
		o.Spread = spread
	}
}

func OptionWithNoise(n float64) Option {
	return func(o *Options) {
		o.Noise = n
	}
}

// OptionWithDelay makes every Read take at least d, like a digitizer
// waiting for its trigger.
func OptionWithDelay(d time.Duration) Option {
	return func(o *Options) {
		o.Delay = d
	}
}
