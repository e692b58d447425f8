package log

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	_callerInfo = "NoCallerFile"
)

const CallHierarchy int = 2

var _log atomic.Value

func init() {
	_log.Store(zap.NewNop())
}

func logger() *zap.Logger {
	return _log.Load().(*zap.Logger)
}

// SetLogger replaces the package logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}

	_log.Store(l)
}

func JSON(v interface{}) string {
	return fmt.Sprintf("%+v", v)
}

func withCaller(f []zapcore.Field) []zapcore.Field {
	_, file, line, ok := runtime.Caller(CallHierarchy)
	callerInfo := _callerInfo

	if ok {
		callerInfo = fmt.Sprintf("%s:%d", file, line)
	}

	t := make([]zapcore.Field, 0, len(f)+1)
	t = append(t, zap.String("caller", callerInfo))

	return append(t, f...)
}

func Debug(p string, f ...zapcore.Field) {
	l := logger()
	if !l.Core().Enabled(zapcore.DebugLevel) {
		return
	}

	l.Debug(p, withCaller(f)...)
}

func Info(p string, f ...zapcore.Field) {
	l := logger()
	if !l.Core().Enabled(zapcore.InfoLevel) {
		return
	}

	l.Info(p, withCaller(f)...)
}

func Warn(p string, f ...zapcore.Field) {
	l := logger()
	if !l.Core().Enabled(zapcore.WarnLevel) {
		return
	}

	l.Warn(p, withCaller(f)...)
}

func Error(p string, f ...zapcore.Field) {
	l := logger()
	if !l.Core().Enabled(zapcore.ErrorLevel) {
		return
	}

	l.Error(p, withCaller(f)...)
}

func Sync() {
	_ = logger().Sync()
}

func Init(servername string, opts ...Option) error {
	o := Options{
		Level:    zapcore.DebugLevel,
		Encoding: "json",
	}

	for _, v := range opts {
		v(&o)
	}

	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "msg",
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.FullCallerEncoder,
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(o.Level),
		Development:      o.Development,
		Encoding:         o.Encoding,
		EncoderConfig:    encoderConfig,
		InitialFields:    map[string]interface{}{"servername": servername},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	l, err := config.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger %w", err)
	}

	SetLogger(l)

	return nil
}
