package serial

import (
	"time"
)

const (
	DefaultBaud        = 115200
	DefaultReadTimeout = 2 * time.Second
)

type Options struct {
	Port        string
	Baud        int
	ReadTimeout time.Duration
	Dial        Dialer
}

type Option func(*Options)

func OptionWithPort(p string) Option {
	return func(o *Options) {
		o.Port = p
	}
}

func OptionWithBaud(b int) Option {
	return func(o *Options) {
		o.Baud = b
	}
}

func OptionWithReadTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.ReadTimeout = d
	}
}

// OptionWithDialer replaces the tty opener, mostly for tests.
func OptionWithDialer(d Dialer) Option {
	return func(o *Options) {
		o.Dial = d
	}
}
