package pha

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"pha/acquisition"
	"pha/broker"
	"pha/broker/memory"
	"pha/config"
	"pha/registry"
	"pha/source/stream"
)

type finals struct {
	mtx  sync.Mutex
	last *acquisition.Snapshot
	n    int
}

func (f *finals) Publish(s *acquisition.Snapshot) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	f.n++
	if s.Final {
		f.last = s
	}

	return nil
}

func TestRunSimulated(t *testing.T) {
	c := config.Default()
	c.Acquisition.TargetCount = 20
	c.Source.Sim.PulseRate = 1
	c.Source.Sim.Noise = 0.01

	app, err := NewApp(c)
	if err != nil {
		t.Fatal(err)
	}

	f := &finals{}
	app.AddSink(f)

	res, err := app.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if res.State.Phase != acquisition.PhaseCompleted || res.State.LegitCount != 21 {
		t.Errorf("state %+v", res.State)
	}

	if f.last == nil {
		t.Fatal("no final snapshot")
	}

	if f.last.ConfigHash != app.Fingerprint() || f.last.Settings["target_count"] != "20" {
		t.Errorf("final metadata %q %v", f.last.ConfigHash, f.last.Settings)
	}

	if len(f.last.RawAmplitudes) != 21 {
		t.Errorf("raw log %d", len(f.last.RawAmplitudes))
	}

	if uint64(f.n) != res.Published {
		t.Errorf("sink saw %d of %d snapshots", f.n, res.Published)
	}
}

func TestRunCancelled(t *testing.T) {
	c := config.Default()
	c.Source.Sim.PulseRate = 0
	c.Source.Sim.Delay = time.Millisecond

	app, err := NewApp(c)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	res, err := app.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if res.State.Phase != acquisition.PhaseInterrupted || res.State.LegitCount != 0 {
		t.Errorf("state %+v", res.State)
	}
}

func TestRunFromStream(t *testing.T) {
	c := config.Default()
	c.Acquisition.TargetCount = 5
	c.Acquisition.PublishEvery = 1
	c.Brokers = []config.Broker{{Name: "local", Kind: config.BrokerMemory}}
	c.Source.Kind = config.SourceStream
	c.Source.Stream.Broker = "local"
	c.Source.Stream.Timeout = 20 * time.Millisecond
	c.Publish.Broker = "local"

	app, err := NewApp(c)
	if err != nil {
		t.Fatal(err)
	}

	b, err := app.Broker("local")
	if err != nil {
		t.Fatal(err)
	}

	buf := make([]float64, c.Acquisition.BufferSize)
	buf[500] = 3

	done := make(chan struct{})
	go func() {
		p, _ := stream.NewPublisher(b, c.Source.Stream.Topic, 1e6)

		for {
			select {
			case <-done:
				return
			default:
			}

			_ = p.Publish(buf)
			time.Sleep(time.Millisecond)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := app.Run(ctx)
	close(done)

	if err != nil {
		t.Fatal(err)
	}

	if res.State.Phase != acquisition.PhaseCompleted || res.State.LegitCount != 6 {
		t.Errorf("state %+v", res.State)
	}

	if res.Histogram.Total() != 6 {
		t.Errorf("binned %d", res.Histogram.Total())
	}
}

func TestBrokers(t *testing.T) {
	c := config.Default()
	c.Brokers = []config.Broker{{Name: "a", Kind: config.BrokerMemory}}

	app, err := NewApp(c)
	if err != nil {
		t.Fatal(err)
	}

	if err := app.AddBroker(memory.NewBroker(broker.OptionWithName("a"))); !errors.Is(err, ErrorNameIsExist) {
		t.Errorf("err = %v", err)
	}

	if _, err := app.Broker("b"); !errors.Is(err, ErrorBrokerIsNotExist) {
		t.Errorf("err = %v", err)
	}

	c.Publish.Broker = "missing"
	if _, err := NewApp(c); !errors.Is(err, config.ErrorUnknownBroker) {
		t.Errorf("err = %v", err)
	}
}

func TestDigitize(t *testing.T) {
	c := config.Default()
	c.Brokers = []config.Broker{{Name: "local", Kind: config.BrokerMemory}}
	c.Source.Stream.Broker = "local"

	app, err := NewApp(c)
	if err != nil {
		t.Fatal(err)
	}

	n, err := app.Digitize(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}

	if n != 3 {
		t.Errorf("published %d", n)
	}
}

func TestRegistryTTLRejected(t *testing.T) {
	c := config.Default()
	c.Registry.TTL = 1

	if _, err := NewApp(c); !errors.Is(err, config.ErrorRegistryTTL) {
		t.Errorf("err = %v", err)
	}
}

type fakeRegistry struct {
	mtx        sync.Mutex
	registered []*registry.Service
	removed    []string
	released   bool
}

func (f *fakeRegistry) Init() error {
	return nil
}

func (f *fakeRegistry) Register(s *registry.Service, _ ...registry.RegisterOption) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	f.registered = append(f.registered, s)

	return nil
}

func (f *fakeRegistry) DeRegister(s *registry.Service, _ ...registry.DeregisterOption) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	f.removed = append(f.removed, s.ID)

	return nil
}

func (f *fakeRegistry) ListServices(...registry.ListOption) ([]*registry.Service, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	return f.registered, nil
}

func (f *fakeRegistry) Options() registry.Options {
	return registry.Options{}
}

func (f *fakeRegistry) Release() error {
	f.released = true

	return nil
}

func (f *fakeRegistry) String() string {
	return "fake"
}

func TestAnnounce(t *testing.T) {
	c := config.Default()
	c.Acquisition.TargetCount = 2
	c.Source.Sim.PulseRate = 1
	c.Websocket.Addr = "127.0.0.1:0"
	c.Metrics.Addr = "127.0.0.1:0"
	c.Metrics.SystemInterval = 0

	app, err := NewApp(c)
	if err != nil {
		t.Fatal(err)
	}

	reg := &fakeRegistry{}
	app.SetRegistry(reg)

	f := &finals{}
	app.AddSink(f)

	if _, err := app.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(reg.registered) == 0 {
		t.Fatal("run not announced")
	}

	s := reg.registered[0]
	if s.ID != f.last.RunID {
		t.Errorf("announced run %q, want %q", s.ID, f.last.RunID)
	}

	host, port, err := net.SplitHostPort(s.Metrics)
	if err != nil || host != "127.0.0.1" || port == "0" || port == "" {
		t.Errorf("metrics endpoint %q %v", s.Metrics, err)
	}

	if s.Live != "ws://"+s.Metrics+"/live" {
		t.Errorf("live endpoint %q, metrics %q", s.Live, s.Metrics)
	}

	if s.Metadata["config"] != app.Fingerprint() {
		t.Errorf("metadata %v", s.Metadata)
	}

	if len(reg.removed) != 1 || reg.removed[0] != s.ID || !reg.released {
		t.Errorf("not withdrawn: %v released=%v", reg.removed, reg.released)
	}

	runs, err := app.Runs()
	if err != nil || len(runs) == 0 {
		t.Errorf("runs %v %v", runs, err)
	}
}
