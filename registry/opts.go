package registry

import (
	"context"
	"time"
)

const (
	DefaultTTL     = 30 * time.Second
	DefaultTimeout = 5 * time.Second
)

type Options struct {
	Addr     string
	Password string
	Timeout  time.Duration
	Context  context.Context
}

type RegisterOptions struct {
	TTL    time.Duration
	Domain string
}

type DeregisterOptions struct {
	Domain string
}

type ListOptions struct {
	Domain string
}

type RegisterOption func(*RegisterOptions)

type DeregisterOption func(*DeregisterOptions)

type ListOption func(*ListOptions)

type Option func(*Options)

func OptionWithAddr(a string) Option {
	return func(o *Options) {
		o.Addr = a
	}
}

func OptionWithPassword(p string) Option {
	return func(o *Options) {
		o.Password = p
	}
}

func OptionWithTimeout(t time.Duration) Option {
	return func(o *Options) {
		o.Timeout = t
	}
}

func NewOptions(opts ...Option) Options {
	o := Options{Timeout: DefaultTimeout}

	for _, v := range opts {
		v(&o)
	}

	return o
}

func RegisterOptionWithTTL(t time.Duration) RegisterOption {
	return func(o *RegisterOptions) {
		o.TTL = t
	}
}

func RegisterOptionWithDomain(d string) RegisterOption {
	return func(o *RegisterOptions) {
		o.Domain = d
	}
}

func DeregisterOptionWithDomain(d string) DeregisterOption {
	return func(o *DeregisterOptions) {
		o.Domain = d
	}
}

func ListOptionWithDomain(d string) ListOption {
	return func(o *ListOptions) {
		o.Domain = d
	}
}

func NewRegisterOptions(opts ...RegisterOption) RegisterOptions {
	o := RegisterOptions{TTL: DefaultTTL, Domain: DefaultDomain}

	for _, v := range opts {
		v(&o)
	}

	return o
}

func NewDeregisterOptions(opts ...DeregisterOption) DeregisterOptions {
	o := DeregisterOptions{Domain: DefaultDomain}

	for _, v := range opts {
		v(&o)
	}

	return o
}

func NewListOptions(opts ...ListOption) ListOptions {
	o := ListOptions{Domain: DefaultDomain}

	for _, v := range opts {
		v(&o)
	}

	return o
}
