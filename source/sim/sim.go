package sim

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"pha/log"
)

var (
	ErrorNotOpen       = errors.New("source not open")
	ErrorInvalidOption = errors.New("invalid simulator option")
)

// Source synthesizes buffers of exponentially decaying pulses on a noisy
// zero baseline. The same seed always yields the same buffers.
type Source struct {
	opts Options
	rnd  *rand.Rand

	bufferSize int
	sampleRate float64
	open       bool
	reads      uint64
}

func NewSource(opts ...Option) (*Source, error) {
	s := &Source{
		opts: Options{
			Seed:      1,
			Window:    DefaultWindow,
			PulseRate: DefaultPulseRate,
			Amplitude: DefaultAmplitude,
		},
	}

	for _, o := range opts {
		o(&s.opts)
	}

	switch {
	case s.opts.Window < 4:
		return nil, fmt.Errorf("window %d: %w", s.opts.Window, ErrorInvalidOption)
	case s.opts.PulseRate < 0 || s.opts.PulseRate > 1:
		return nil, fmt.Errorf("pulse rate %v: %w", s.opts.PulseRate, ErrorInvalidOption)
	case s.opts.Spread < 0 || s.opts.Noise < 0 || s.opts.Delay < 0:
		return nil, fmt.Errorf("negative spread, noise or delay: %w", ErrorInvalidOption)
	}

	return s, nil
}

func (s *Source) Open(bufferSize int, sampleRate float64) error {
	if bufferSize < 1 || !(sampleRate > 0) {
		return fmt.Errorf("buffer size %d sample rate %v: %w", bufferSize, sampleRate, ErrorInvalidOption)
	}

	s.bufferSize = bufferSize
	s.sampleRate = sampleRate
	s.rnd = rand.New(rand.NewSource(s.opts.Seed))
	s.reads = 0
	s.open = true

	log.Debug("OpenSimulator",
		zap.Int("bufferSize", bufferSize),
		zap.Float64("sampleRate", sampleRate),
		zap.Int64("seed", s.opts.Seed),
	)

	return nil
}

func (s *Source) Read() ([]float64, error) {
	if !s.open {
		return nil, ErrorNotOpen
	}

	if s.opts.Delay > 0 {
		time.Sleep(s.opts.Delay)
	}

	buf := make([]float64, s.bufferSize)
	for i := range buf {
		buf[i] = s.rnd.NormFloat64() * s.opts.Noise
	}

	w := s.opts.Window
	for start := 0; start+w <= len(buf); start += w {
		if s.rnd.Float64() >= s.opts.PulseRate {
			continue
		}

		s.inject(buf[start:start+w], s.opts.Amplitude+s.rnd.NormFloat64()*s.opts.Spread)
	}

	s.reads++

	return buf, nil
}

// inject adds a pulse that rises at a quarter of the window and decays over
// an eighth of it, so the peak stays clear of the trimmed edges.
func (s *Source) inject(chunk []float64, amp float64) {
	rise := len(chunk) / 4
	tau := float64(len(chunk)) / 8

	for i := rise; i < len(chunk); i++ {
		chunk[i] += amp * math.Exp(-float64(i-rise)/tau)
	}
}

func (s *Source) Close() error {
	if !s.open {
		return ErrorNotOpen
	}

	s.open = false

	log.Debug("CloseSimulator", zap.Uint64("reads", s.reads))

	return nil
}
