package ws

import (
	"time"
)

const (
	DefaultMaxConnNum     uint32        = 64
	DefaultMaxWriteBufLen uint32        = 16
	DefaultMaxMsgLen      uint32        = 4096
	DefaultHTTPTimeOut    time.Duration = 1000 * time.Millisecond
)

type Options struct {
	MaxConnNum     uint32
	MaxWriteBufLen uint32
	MaxMsgLen      uint32
	HTTPTimeout    time.Duration
}

type Option func(*Options)

func OptionWithMaxConnNum(n uint32) Option {
	return func(o *Options) {
		o.MaxConnNum = n
	}
}

// OptionWithMaxWriteBufLen bounds how many snapshots may queue for one
// client before it is dropped.
func OptionWithMaxWriteBufLen(n uint32) Option {
	return func(o *Options) {
		o.MaxWriteBufLen = n
	}
}

func OptionWithHTTPTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.HTTPTimeout = d
	}
}
