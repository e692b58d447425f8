package deadtime

import (
	"time"
)

type Options struct {
	Unit       time.Duration
	Statistic  Statistic
	Thresholds Thresholds
}

type Option func(*Options)

// OptionWithUnit sets the unit samples are expressed in, e.g. time.Millisecond.
func OptionWithUnit(u time.Duration) Option {
	return func(o *Options) {
		o.Unit = u
	}
}

func OptionWithStatistic(s Statistic) Option {
	return func(o *Options) {
		o.Statistic = s
	}
}

func OptionWithThresholds(t Thresholds) Option {
	return func(o *Options) {
		o.Thresholds = t
	}
}
