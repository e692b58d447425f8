package pha

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pha/log"
	"pha/source/stream"
)

// Digitize stands in for a remote digitizer: it publishes simulated buffers
// on the stream topic another pha reads with a stream source. It stops after
// n buffers, or when ctx is done if n is 0, and returns how many went out.
func (app *App) Digitize(ctx context.Context, n uint64) (uint64, error) {
	s := app.conf.Source

	b, err := app.Broker(s.Stream.Broker)
	if err != nil {
		return 0, err
	}

	if err := b.Connect(); err != nil {
		return 0, fmt.Errorf("failed to connect %s %w", s.Stream.Broker, err)
	}
	defer b.Disconnect()

	src, err := newSim(s.Sim, app.acq.WindowSize)
	if err != nil {
		return 0, err
	}

	if err := src.Open(app.acq.BufferSize, app.acq.SamplingFrequency); err != nil {
		return 0, err
	}
	defer src.Close()

	p, err := stream.NewPublisher(b, s.Stream.Topic, app.acq.SamplingFrequency)
	if err != nil {
		return 0, err
	}

	log.Info("StartDigitize", zap.String("broker", b.String()), zap.String("topic", s.Stream.Topic), zap.Uint64("count", n))

	for n == 0 || p.Sequence() < n {
		if ctx.Err() != nil {
			break
		}

		buf, err := src.Read()
		if err != nil {
			return p.Sequence(), err
		}

		if err := p.Publish(buf); err != nil {
			return p.Sequence(), err
		}
	}

	log.Info("StopDigitize", zap.Uint64("published", p.Sequence()))

	return p.Sequence(), nil
}
