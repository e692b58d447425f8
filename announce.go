package pha

import (
	"fmt"

	"go.uber.org/zap"

	"pha/config"
	"pha/log"
	"pha/registry"
	"pha/registry/redis"
	"pha/registry/zookeeper"
	"pha/util/addr"
	"pha/util/timer"
)

func newRegistry(c config.Registry) registry.Registry {
	opts := []registry.Option{
		registry.OptionWithAddr(c.Addr),
		registry.OptionWithPassword(c.Password),
	}

	if c.Kind == config.RegistryZookeeper {
		return zookeeper.NewRegistry(opts...)
	}

	return redis.NewRegistry(opts...)
}

// SetRegistry replaces the registry the configuration names.
func (app *App) SetRegistry(r registry.Registry) {
	app.reg = r
}

func (app *App) resolveRegistry() registry.Registry {
	if app.reg == nil && app.conf.Registry.Kind != "" {
		app.reg = newRegistry(app.conf.Registry)
	}

	return app.reg
}

// listening returns the address the server for a configured listen address
// actually bound, so a ":0" port is advertised as the one the kernel chose.
func (app *App) listening(listen string) string {
	if b, ok := app.bound[listen]; ok {
		return b
	}

	return listen
}

func (app *App) service(runID string) (*registry.Service, error) {
	s := &registry.Service{
		ID:   runID,
		Name: app.conf.Name,
		Metadata: map[string]string{
			"config": app.hash,
			"source": app.conf.Source.Kind,
		},
	}

	if a := app.conf.Metrics.Addr; a != "" {
		m, err := addr.Advertise(app.listening(a))
		if err != nil {
			return nil, err
		}

		s.Metrics = m
	}

	if a := app.conf.Websocket.Addr; a != "" {
		l, err := addr.Advertise(app.listening(a))
		if err != nil {
			return nil, err
		}

		s.Live = "ws://" + l + app.conf.Websocket.Path
	}

	return s, nil
}

// announce registers the run and keeps the entry fresh until Run returns.
func (app *App) announce(runID string) error {
	r := app.resolveRegistry()
	if r == nil {
		return nil
	}

	s, err := app.service(runID)
	if err != nil {
		return fmt.Errorf("failed to advertise %w", err)
	}

	if err := r.Init(); err != nil {
		return fmt.Errorf("failed to init registry %w", err)
	}

	ttl := app.conf.Registry.TTL
	if ttl <= 0 {
		ttl = registry.DefaultTTL
	}

	domain := app.conf.Registry.Domain
	if domain == "" {
		domain = registry.DefaultDomain
	}

	register := func() error {
		return r.Register(s, registry.RegisterOptionWithTTL(ttl), registry.RegisterOptionWithDomain(domain))
	}

	if err := register(); err != nil {
		_ = r.Release()

		return fmt.Errorf("failed to register %w", err)
	}

	t := timer.NewTicker(ttl/2, func() {
		if err := register(); err != nil {
			log.Warn("RegisterRun", zap.String("registry", r.String()), zap.String("err", err.Error()))
		}
	})

	app.closers = append(app.closers, func() {
		t.Stop()

		if err := r.DeRegister(s, registry.DeregisterOptionWithDomain(domain)); err != nil {
			log.Warn("DeregisterRun", zap.String("registry", r.String()), zap.String("err", err.Error()))
		}

		if err := r.Release(); err != nil {
			log.Warn("ReleaseRegistry", zap.String("err", err.Error()))
		}
	})

	log.Info("RegisterRun", zap.String("registry", r.String()), zap.String("run", runID), zap.String("live", s.Live))

	return nil
}

// Runs lists the runs announced in the configured registry.
func (app *App) Runs() ([]*registry.Service, error) {
	r := app.resolveRegistry()
	if r == nil {
		return nil, nil
	}

	if err := r.Init(); err != nil {
		return nil, fmt.Errorf("failed to init registry %w", err)
	}
	defer r.Release()

	domain := app.conf.Registry.Domain
	if domain == "" {
		domain = registry.DefaultDomain
	}

	return r.ListServices(registry.ListOptionWithDomain(domain))
}
