package log

import (
	"go.uber.org/zap/zapcore"
)

type Options struct {
	Level       zapcore.Level
	Encoding    string
	Development bool
}

type Option func(*Options)

func OptionWithLevel(l zapcore.Level) Option {
	return func(o *Options) {
		o.Level = l
	}
}

// OptionWithEncoding accepts "json" or "console".
func OptionWithEncoding(e string) Option {
	return func(o *Options) {
		o.Encoding = e
	}
}

func OptionWithDevelopment(d bool) Option {
	return func(o *Options) {
		o.Development = d
	}
}
