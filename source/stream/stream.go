// Package stream turns buffers a remote digitizer publishes on a broker
// topic into an acquisition source.
package stream

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"pha/broker"
	"pha/codec/json"
	"pha/log"
	"pha/waveform"
)

const (
	DefaultDepth   = 16
	DefaultTimeout = 5 * time.Second
)

var (
	ErrorNotOpen     = errors.New("stream not open")
	ErrorNoTopic     = errors.New("stream topic required")
	ErrorTimeout     = errors.New("no buffer within timeout")
	ErrorNotABuffer  = errors.New("message is not a buffer")
	ErrorAlreadyOpen = errors.New("stream already open")
)

type Options struct {
	Topic   string
	Depth   int
	Timeout time.Duration
}

type Option func(*Options)

func OptionWithTopic(t string) Option {
	return func(o *Options) {
		o.Topic = t
	}
}

// OptionWithDepth bounds how many buffers wait for the loop; newer ones are
// dropped while the queue is full.
func OptionWithDepth(n int) Option {
	return func(o *Options) {
		o.Depth = n
	}
}

func OptionWithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// Source does not own the broker connection; the caller connects before
// Open and disconnects after Close. A Source is opened once: brokers offer
// no unsubscribe, so after Close its handler stays subscribed and discards
// every message undecoded.
type Source struct {
	opts  Options
	b     broker.Broker
	codec *json.Processor

	mtx     sync.Mutex
	open    bool
	ch      chan *waveform.Buffer
	lastSeq uint64
	dropped uint64
}

func NewSource(b broker.Broker, opts ...Option) (*Source, error) {
	s := &Source{
		opts: Options{
			Depth:   DefaultDepth,
			Timeout: DefaultTimeout,
		},
		b:     b,
		codec: json.NewDefault(),
	}

	for _, o := range opts {
		o(&s.opts)
	}

	if s.opts.Topic == "" {
		return nil, ErrorNoTopic
	}

	if s.opts.Depth < 1 {
		s.opts.Depth = 1
	}

	return s, nil
}

func (s *Source) Open(bufferSize int, sampleRate float64) error {
	s.mtx.Lock()
	if s.ch != nil {
		s.mtx.Unlock()

		return ErrorAlreadyOpen
	}

	s.ch = make(chan *waveform.Buffer, s.opts.Depth)
	s.open = true
	s.mtx.Unlock()

	if err := s.b.Subscribe(s.opts.Topic, s.handle); err != nil {
		s.mtx.Lock()
		s.open = false
		s.mtx.Unlock()

		return errors.Wrapf(err, "failed to subscribe %s on %s", s.opts.Topic, s.b.String())
	}

	log.Info("OpenStream",
		zap.String("broker", s.b.String()),
		zap.String("topic", s.opts.Topic),
		zap.Int("bufferSize", bufferSize),
		zap.Float64("sampleRate", sampleRate),
	)

	return nil
}

func (s *Source) handle(e broker.Event) error {
	s.mtx.Lock()
	open := s.open
	s.mtx.Unlock()

	if !open {
		return nil
	}

	v, err := s.codec.Unmarshal(e.Message().Body)
	if err != nil {
		log.Warn("DecodeBuffer", zap.String("topic", e.Topic()), zap.String("err", err.Error()))

		return errors.Wrap(err, "failed to decode buffer")
	}

	buf, ok := v.(*waveform.Buffer)
	if !ok {
		return ErrorNotABuffer
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if !s.open {
		return nil
	}

	if s.lastSeq != 0 && buf.Sequence > s.lastSeq+1 {
		log.Warn("MissedBuffer", zap.Uint64("after", s.lastSeq), zap.Uint64("got", buf.Sequence))
	}

	if buf.Sequence > s.lastSeq {
		s.lastSeq = buf.Sequence
	}

	select {
	case s.ch <- buf:
	default:
		s.dropped++
		log.Warn("DropBuffer", zap.Uint64("sequence", buf.Sequence), zap.Uint64("dropped", s.dropped))
	}

	return e.Ack()
}

// Read waits up to the timeout for the next buffer. A timeout is an
// ordinary read error, so the loop counts it as transient.
func (s *Source) Read() ([]float64, error) {
	s.mtx.Lock()
	open, ch := s.open, s.ch
	s.mtx.Unlock()

	if !open {
		return nil, ErrorNotOpen
	}

	t := time.NewTimer(s.opts.Timeout)
	defer t.Stop()

	select {
	case buf := <-ch:
		return buf.Samples, nil
	case <-t.C:
		return nil, errors.Wrapf(ErrorTimeout, "%s after %s", s.opts.Topic, s.opts.Timeout)
	}
}

func (s *Source) Close() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if !s.open {
		return ErrorNotOpen
	}

	s.open = false

	log.Info("CloseStream", zap.String("topic", s.opts.Topic), zap.Uint64("dropped", s.dropped))

	return nil
}

func (s *Source) Dropped() uint64 {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.dropped
}
