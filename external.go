package pha

import (
	"errors"
	"fmt"
	"time"

	"pha/acquisition"
	"pha/broker"
	"pha/config"
)

const (
	DefaultShutdownTimeout = 3 * time.Second
	DefaultReadTimeout     = 5 * time.Second
)

var (
	ErrorNameIsExist      = errors.New("name is exist")
	ErrorBrokerIsNotExist = errors.New("broker is not exist")
)

// NewApp prepares a run from a validated configuration. Brokers named in
// the configuration are created but not connected until Run.
func NewApp(c config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	acq, err := c.Acquisition.Build()
	if err != nil {
		return nil, err
	}

	hash, err := config.Fingerprint(c.Acquisition)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint acquisition %w", err)
	}

	settings, err := config.Settings(c.Acquisition)
	if err != nil {
		return nil, fmt.Errorf("failed to flatten settings %w", err)
	}

	app := &App{
		conf:     c,
		acq:      acq,
		hash:     hash,
		settings: settings,
		brokers:  make(map[string]broker.Broker),
	}

	for _, b := range c.Brokers {
		if err := app.AddBroker(newBroker(b)); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// AddBroker registers brokers under their option names.
func (app *App) AddBroker(brokers ...broker.Broker) error {
	for _, v := range brokers {
		if _, ok := app.brokers[v.Options().Name]; ok {
			return fmt.Errorf("%q: %w", v.Options().Name, ErrorNameIsExist)
		}

		app.brokers[v.Options().Name] = v
	}

	return nil
}

// Broker returns the named broker, connected once Run has started.
func (app *App) Broker(name string) (broker.Broker, error) {
	b, ok := app.brokers[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrorBrokerIsNotExist)
	}

	return b, nil
}

// SetSource replaces the source the configuration names.
func (app *App) SetSource(src acquisition.Source) {
	app.src = src
}

// AddSink adds a sink next to the configured ones.
func (app *App) AddSink(sinks ...acquisition.Sink) {
	app.extra = append(app.extra, sinks...)
}

func (app *App) Fingerprint() string {
	return app.hash
}
