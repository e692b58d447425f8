package broker

import (
	"time"
)

const DefaultTimeout = 5 * time.Second

type Options struct {
	Name     string
	Addr     string
	Password string

	// GroupID names the kafka consumer group.
	GroupID string

	// Exchange, ExchangeType and Queue configure rabbit bindings.
	Exchange     string
	ExchangeType string
	Queue        string

	Timeout time.Duration
}

type Option func(*Options)

func OptionWithName(name string) Option {
	return func(o *Options) {
		o.Name = name
	}
}

func OptionWithAddr(addr string) Option {
	return func(o *Options) {
		o.Addr = addr
	}
}

func OptionWithPassword(pw string) Option {
	return func(o *Options) {
		o.Password = pw
	}
}

func OptionWithGroupID(id string) Option {
	return func(o *Options) {
		o.GroupID = id
	}
}

func OptionWithExchange(name, kind string) Option {
	return func(o *Options) {
		o.Exchange = name
		o.ExchangeType = kind
	}
}

func OptionWithQueue(name string) Option {
	return func(o *Options) {
		o.Queue = name
	}
}

func OptionWithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

func NewOptions(opts ...Option) Options {
	o := Options{
		Timeout: DefaultTimeout,
	}

	for _, v := range opts {
		v(&o)
	}

	return o
}
