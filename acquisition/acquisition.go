package acquisition

import (
	"errors"

	"pha/waveform"
)

var (
	ErrorInvalidConfiguration = waveform.ErrorInvalidConfiguration
	ErrorSource               = errors.New("source failure")
	ErrorTransientRead        = errors.New("transient read error")
	ErrorTooManyErrors        = errors.New("too many consecutive transient errors")
	ErrorAlreadyRun           = errors.New("loop already run")
)

// Source is the instrument a loop pulls buffers from. Read blocks until a
// buffer is available; timeouts are the source's business.
type Source interface {
	Open(bufferSize int, sampleRate float64) error
	Read() ([]float64, error)
	Close() error
}

// Sink receives snapshots in loop order. Snapshots are never mutated after
// Publish, so a sink may keep them.
type Sink interface {
	Publish(*Snapshot) error
}

type SinkFunc func(*Snapshot) error

func (f SinkFunc) Publish(s *Snapshot) error {
	return f(s)
}
