package memory

import (
	"sync"

	"pha/broker"
)

type event struct {
	t   string
	m   *broker.Message
	err error
}

func (e *event) Topic() string {
	return e.t
}

func (e *event) Message() *broker.Message {
	return e.m
}

func (e *event) Ack() error {
	return nil
}

func (e *event) Error() error {
	return e.err
}

// memoryBroker delivers synchronously inside Publish. It backs tests and
// single-process setups where a digitizer and the analyzer share a binary.
type memoryBroker struct {
	opts broker.Options

	mtx       sync.RWMutex
	connected bool
	subs      map[string][]broker.Handler
}

func NewBroker(opts ...broker.Option) broker.Broker {
	return &memoryBroker{
		opts: broker.NewOptions(opts...),
		subs: make(map[string][]broker.Handler),
	}
}

func (b *memoryBroker) String() string {
	return "memory-broker"
}

func (b *memoryBroker) Options() broker.Options {
	return b.opts
}

func (b *memoryBroker) Connect() error {
	b.mtx.Lock()
	b.connected = true
	b.mtx.Unlock()

	return nil
}

func (b *memoryBroker) Disconnect() error {
	b.mtx.Lock()
	b.connected = false
	b.subs = make(map[string][]broker.Handler)
	b.mtx.Unlock()

	return nil
}

func (b *memoryBroker) Publish(topic string, m *broker.Message) error {
	b.mtx.RLock()
	if !b.connected {
		b.mtx.RUnlock()

		return broker.ErrorNotConnected
	}

	hs := append([]broker.Handler(nil), b.subs[topic]...)
	b.mtx.RUnlock()

	for _, h := range hs {
		e := &event{t: topic, m: m}
		e.err = h(e)
	}

	return nil
}

func (b *memoryBroker) Subscribe(topic string, h broker.Handler) error {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	if !b.connected {
		return broker.ErrorNotConnected
	}

	b.subs[topic] = append(b.subs[topic], h)

	return nil
}
