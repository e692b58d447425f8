package stream

import (
	"strconv"
	"time"

	"github.com/pkg/errors"

	"pha/broker"
	"pha/codec/json"
	"pha/waveform"
)

// Publisher is the digitizer end of a stream: it numbers buffers and puts
// them on the topic a Source reads.
type Publisher struct {
	b          broker.Broker
	topic      string
	sampleRate float64
	codec      *json.Processor
	seq        uint64
	now        func() time.Time
}

func NewPublisher(b broker.Broker, topic string, sampleRate float64) (*Publisher, error) {
	if topic == "" {
		return nil, ErrorNoTopic
	}

	return &Publisher{
		b:          b,
		topic:      topic,
		sampleRate: sampleRate,
		codec:      json.NewDefault(),
		now:        time.Now,
	}, nil
}

func (p *Publisher) Publish(samples []float64) error {
	p.seq++

	body, err := p.codec.Marshal(&waveform.Buffer{
		Sequence:   p.seq,
		Time:       p.now(),
		SampleRate: p.sampleRate,
		Samples:    samples,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to encode buffer %d", p.seq)
	}

	m := &broker.Message{
		Header: map[string]string{"sequence": strconv.FormatUint(p.seq, 10)},
		Body:   body,
	}

	return errors.Wrapf(p.b.Publish(p.topic, m), "failed to publish buffer %d", p.seq)
}

func (p *Publisher) Sequence() uint64 {
	return p.seq
}
