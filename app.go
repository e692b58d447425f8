package pha

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"pha/acquisition"
	"pha/broker"
	"pha/broker/kafka"
	"pha/broker/memory"
	"pha/broker/rabbit"
	"pha/broker/redis"
	"pha/config"
	"pha/log"
	"pha/metrics"
	"pha/registry"
	"pha/sink"
	"pha/sink/publish"
	"pha/sink/ws"
	"pha/source/serial"
	"pha/source/sim"
	"pha/source/stream"
	"pha/util/profile"
)

// App runs one acquisition with everything around it: brokers, the
// configured source, log and metrics sinks, the live websocket feed and
// the broker publisher.
type App struct {
	conf     config.Config
	acq      acquisition.Config
	hash     string
	settings map[string]string

	brokers map[string]broker.Broker
	bound   map[string]string
	reg     registry.Registry
	src     acquisition.Source
	extra   []acquisition.Sink

	closers []func()
}

func newBroker(c config.Broker) broker.Broker {
	opts := []broker.Option{
		broker.OptionWithName(c.Name),
		broker.OptionWithAddr(c.Addr),
		broker.OptionWithPassword(c.Password),
		broker.OptionWithGroupID(c.GroupID),
		broker.OptionWithExchange(c.Exchange, ""),
		broker.OptionWithQueue(c.Queue),
	}

	switch c.Kind {
	case config.BrokerRedis:
		return redis.NewBroker(opts...)
	case config.BrokerKafka:
		return kafka.NewBroker(opts...)
	case config.BrokerRabbit:
		return rabbit.NewBroker(opts...)
	}

	return memory.NewBroker(opts...)
}

// Run acquires until the loop ends, the context is cancelled or the
// process receives SIGINT or SIGTERM. Everything Run started is stopped
// before it returns, the final snapshot delivered first.
func (app *App) Run(ctx context.Context) (acquisition.Result, error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer app.close()

	if err := app.connect(); err != nil {
		return acquisition.Result{}, err
	}

	src, err := app.source()
	if err != nil {
		return acquisition.Result{}, err
	}

	sinks, err := app.sinks()
	if err != nil {
		return acquisition.Result{}, err
	}

	if app.conf.Pprof != "" {
		p, err := profile.Start(app.conf.Pprof, "")
		if err != nil {
			return acquisition.Result{}, fmt.Errorf("failed to start profile %w", err)
		}

		app.closers = append(app.closers, p.Stop)
	}

	loop, err := acquisition.NewLoop(src, sinks,
		acquisition.OptionWithConfig(app.acq),
		acquisition.OptionWithConfigHash(app.hash),
		acquisition.OptionWithSettings(app.settings),
	)
	if err != nil {
		return acquisition.Result{}, err
	}

	if err := app.announce(loop.RunID()); err != nil {
		return acquisition.Result{}, err
	}

	log.Info("StartApp",
		zap.String("name", app.conf.Name),
		zap.String("run", loop.RunID()),
		zap.String("source", app.conf.Source.Kind),
		zap.String("config", app.hash),
		zap.Int("sinks", len(sinks)),
	)

	res, err := loop.Run(ctx)

	fields := []zap.Field{
		zap.String("run", loop.RunID()),
		zap.String("phase", res.State.Phase.String()),
		zap.Int("legit", res.State.LegitCount),
		zap.Uint64("published", res.Published),
	}

	if err != nil {
		log.Error("StopApp", append(fields, zap.String("err", err.Error()))...)
	} else {
		log.Info("StopApp", fields...)
	}

	return res, err
}

func (app *App) connect() error {
	for name, b := range app.brokers {
		if err := b.Connect(); err != nil {
			return fmt.Errorf("failed to connect %s %w", name, err)
		}

		b := b
		app.closers = append(app.closers, func() {
			if err := b.Disconnect(); err != nil {
				log.Warn("DisconnectBroker", zap.String("broker", b.String()), zap.String("err", err.Error()))
			}
		})
	}

	return nil
}

func (app *App) source() (acquisition.Source, error) {
	if app.src != nil {
		return app.src, nil
	}

	s := app.conf.Source

	switch s.Kind {
	case config.SourceSerial:
		return serial.NewSource(
			serial.OptionWithPort(s.Serial.Port),
			serial.OptionWithBaud(s.Serial.Baud),
			serial.OptionWithReadTimeout(s.Serial.ReadTimeout),
		)
	case config.SourceStream:
		b, err := app.Broker(s.Stream.Broker)
		if err != nil {
			return nil, err
		}

		return stream.NewSource(b,
			stream.OptionWithTopic(s.Stream.Topic),
			stream.OptionWithDepth(s.Stream.Depth),
			stream.OptionWithTimeout(s.Stream.Timeout),
		)
	}

	return newSim(s.Sim, app.acq.WindowSize)
}

func newSim(c config.Sim, window int) (*sim.Source, error) {
	return sim.NewSource(
		sim.OptionWithSeed(c.Seed),
		sim.OptionWithWindow(window),
		sim.OptionWithPulseRate(c.PulseRate),
		sim.OptionWithAmplitude(c.Amplitude, c.Spread),
		sim.OptionWithNoise(c.Noise),
		sim.OptionWithDelay(c.Delay),
	)
}

func (app *App) sinks() (sink.Multi, error) {
	sinks := sink.Multi{sink.Log{}}
	muxes := make(map[string]*http.ServeMux)

	mux := func(addr string) *http.ServeMux {
		if m, ok := muxes[addr]; ok {
			return m
		}

		m := http.NewServeMux()
		muxes[addr] = m

		return m
	}

	if addr := app.conf.Metrics.Addr; addr != "" {
		m := metrics.NewMonitor(metrics.DefaultNamespace,
			metrics.OptionWithBuckets(app.acq.HistogramMin, app.acq.HistogramMax, metrics.DefaultBucketCount))
		mux(addr).Handle("/", m.Handler())
		sinks = append(sinks, m)

		if d := app.conf.Metrics.SystemInterval; d > 0 {
			app.closers = append(app.closers, m.StartSystem(d).Stop)
		}
	}

	if addr := app.conf.Websocket.Addr; addr != "" {
		svr := ws.NewServer()
		mux(addr).Handle(app.conf.Websocket.Path, svr)
		sinks = append(sinks, svr)
		app.closers = append(app.closers, svr.Stop)
	}

	if p := app.conf.Publish; p.Broker != "" {
		b, err := app.Broker(p.Broker)
		if err != nil {
			return nil, err
		}

		s, err := publish.NewSink(b,
			publish.OptionWithLiveTopic(p.LiveTopic),
			publish.OptionWithFinalTopic(p.FinalTopic),
		)
		if err != nil {
			return nil, err
		}

		a := sink.NewAsync(s.String(), s, p.Queue)
		sinks = append(sinks, a)
		app.closers = append(app.closers, a.Close)
	}

	for addr, m := range muxes {
		if err := app.serve(addr, m); err != nil {
			return nil, err
		}
	}

	return append(sinks, app.extra...), nil
}

func (app *App) serve(addr string, h http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen %s %w", addr, err)
	}

	if app.bound == nil {
		app.bound = make(map[string]string)
	}
	app.bound[addr] = ln.Addr().String()

	srv := &http.Server{Handler: h, ReadHeaderTimeout: DefaultReadTimeout}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("ServeHTTP", zap.String("addr", addr), zap.String("err", err.Error()))
		}
	}()

	app.closers = append(app.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()

		_ = srv.Shutdown(ctx)
	})

	log.Info("ServeHTTP", zap.String("addr", ln.Addr().String()))

	return nil
}

// close stops what Run started in reverse order, so queued snapshots
// drain before the brokers they go to disconnect.
func (app *App) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		app.closers[i]()
	}

	app.closers = nil
}
