package sink

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"pha/acquisition"
	"pha/log"
	"pha/util/pipeline"
)

// Multi publishes to every sink in order. A failing sink does not stop the
// ones after it.
type Multi []acquisition.Sink

func (m Multi) Publish(s *acquisition.Snapshot) error {
	var errs []error

	for _, v := range m {
		if err := v.Publish(s); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Async decouples a slow sink from the loop. Snapshots reach the wrapped
// sink in publish order. Live snapshots are dropped with
// pipeline.ErrorChanFull when the queue is full; the final snapshot waits
// for room.
type Async struct {
	name string
	next acquisition.Sink
	p    *pipeline.Pipeline[*acquisition.Snapshot]
}

func NewAsync(name string, next acquisition.Sink, depth int) *Async {
	a := &Async{
		name: name,
		next: next,
	}

	a.p = pipeline.NewPipeline(depth, a.deliver)

	go a.p.Run()

	return a
}

func (a *Async) deliver(s *acquisition.Snapshot) {
	if err := a.next.Publish(s); err != nil {
		log.Warn("PublishSnapshot",
			zap.String("sink", a.name),
			zap.Uint64("sequence", s.Sequence),
			zap.String("err", err.Error()))
	}
}

func (a *Async) Publish(s *acquisition.Snapshot) error {
	if s.Final {
		return a.p.Put(context.Background(), s)
	}

	return a.p.Go(s)
}

// Close waits until every accepted snapshot was delivered.
func (a *Async) Close() {
	a.p.Stop()
}
