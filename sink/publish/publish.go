package publish

import (
	"errors"
	"fmt"
	"strconv"

	"pha/acquisition"
	"pha/broker"
	"pha/codec/json"
)

var ErrorNoTopic = errors.New("publish topic required")

type Options struct {
	LiveTopic  string
	FinalTopic string
}

type Option func(*Options)

func OptionWithLiveTopic(t string) Option {
	return func(o *Options) {
		o.LiveTopic = t
	}
}

// OptionWithFinalTopic names the durable topic the final snapshot, raw
// amplitude log included, is archived on.
func OptionWithFinalTopic(t string) Option {
	return func(o *Options) {
		o.FinalTopic = t
	}
}

// Sink puts snapshots on a broker. Live snapshots go to the live topic, the
// final one to both topics.
type Sink struct {
	opts  Options
	b     broker.Broker
	codec *json.Processor
}

func NewSink(b broker.Broker, opts ...Option) (*Sink, error) {
	s := &Sink{
		b:     b,
		codec: json.NewDefault(),
	}

	for _, o := range opts {
		o(&s.opts)
	}

	if s.opts.LiveTopic == "" && s.opts.FinalTopic == "" {
		return nil, ErrorNoTopic
	}

	return s, nil
}

func (s *Sink) Publish(snap *acquisition.Snapshot) error {
	body, err := s.codec.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot %w", err)
	}

	msg := &broker.Message{
		Header: map[string]string{
			"run":      snap.RunID,
			"sequence": strconv.FormatUint(snap.Sequence, 10),
			"final":    strconv.FormatBool(snap.Final),
		},
		Body: body,
	}

	if s.opts.LiveTopic != "" {
		if err := s.b.Publish(s.opts.LiveTopic, msg); err != nil {
			return fmt.Errorf("failed to publish to %s %w", s.opts.LiveTopic, err)
		}
	}

	if snap.Final && s.opts.FinalTopic != "" {
		if err := s.b.Publish(s.opts.FinalTopic, msg); err != nil {
			return fmt.Errorf("failed to publish to %s %w", s.opts.FinalTopic, err)
		}
	}

	return nil
}

func (s *Sink) String() string {
	return "publish:" + s.b.String()
}
