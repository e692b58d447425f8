package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"pha/acquisition"
	"pha/deadtime"
	"pha/histogram"
	"pha/pulse"
)

var (
	ErrorUnknownSource = errors.New("unknown source kind")
	ErrorUnknownBroker = errors.New("unknown broker")
	ErrorDuplicateName = errors.New("duplicate broker name")
	ErrorBrokerKind    = errors.New("unknown broker kind")
	ErrorRegistryKind  = errors.New("unknown registry kind")
	ErrorRegistryTTL   = errors.New("registry ttl too short")
)

// MinRegistryTTL bounds how often a run re-registers, at half the TTL.
const MinRegistryTTL = time.Second

const (
	SourceSim    = "sim"
	SourceSerial = "serial"
	SourceStream = "stream"

	BrokerRedis  = "redis"
	BrokerKafka  = "kafka"
	BrokerRabbit = "rabbit"
	BrokerMemory = "memory"

	RegistryRedis     = "redis"
	RegistryZookeeper = "zookeeper"
)

type Config struct {
	Name        string      `yaml:"name"`
	Log         Log         `yaml:"log"`
	Acquisition Acquisition `yaml:"acquisition"`
	Source      Source      `yaml:"source"`
	Brokers     []Broker    `yaml:"brokers"`
	Publish     Publish     `yaml:"publish"`
	Metrics     Metrics     `yaml:"metrics"`
	Websocket   Websocket   `yaml:"websocket"`
	Registry    Registry    `yaml:"registry"`
	Pprof       string      `yaml:"pprof"`
}

type Log struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

// Acquisition mirrors acquisition.Config with the enumerations spelled out.
type Acquisition struct {
	BufferSize           int        `yaml:"buffer_size"`
	WindowSize           int        `yaml:"window_size"`
	SamplingFrequency    float64    `yaml:"sampling_frequency"`
	Threshold            float64    `yaml:"threshold"`
	SignedThreshold      bool       `yaml:"signed_threshold"`
	EdgeFraction         float64    `yaml:"edge_fraction"`
	Baseline             string     `yaml:"baseline"`
	Gain                 float64    `yaml:"gain"`
	MaxPulsesPerBuffer   int        `yaml:"max_pulses_per_buffer"`
	BinCount             int        `yaml:"bin_count"`
	HistogramPolicy      string     `yaml:"histogram_policy"`
	HistogramRange       [2]float64 `yaml:"histogram_range,flow"`
	TargetCount          int        `yaml:"target_count"`
	PersistOnCompletion  bool       `yaml:"persist_on_completion"`
	PublishEvery         int        `yaml:"publish_every"`
	DeadtimeUnit         string     `yaml:"deadtime_unit"`
	DeadtimeStatistic    string     `yaml:"deadtime_statistic"`
	DeadtimeWarn         float64    `yaml:"deadtime_warn"`
	DeadtimeCritical     float64    `yaml:"deadtime_critical"`
	MaxConsecutiveErrors int        `yaml:"max_consecutive_errors"`
}

type Source struct {
	Kind   string `yaml:"kind"`
	Sim    Sim    `yaml:"sim"`
	Serial Serial `yaml:"serial"`
	Stream Stream `yaml:"stream"`
}

type Sim struct {
	Seed      int64         `yaml:"seed"`
	PulseRate float64       `yaml:"pulse_rate"`
	Amplitude float64       `yaml:"amplitude"`
	Spread    float64       `yaml:"spread"`
	Noise     float64       `yaml:"noise"`
	Delay     time.Duration `yaml:"delay"`
}

type Serial struct {
	Port        string        `yaml:"port"`
	Baud        int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

type Stream struct {
	Broker  string        `yaml:"broker"`
	Topic   string        `yaml:"topic"`
	Depth   int           `yaml:"depth"`
	Timeout time.Duration `yaml:"timeout"`
}

type Broker struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	GroupID  string `yaml:"group_id"`
	Exchange string `yaml:"exchange"`
	Queue    string `yaml:"queue"`
}

type Publish struct {
	Broker     string `yaml:"broker"`
	LiveTopic  string `yaml:"live_topic"`
	FinalTopic string `yaml:"final_topic"`
	Queue      int    `yaml:"queue"`
}

type Metrics struct {
	Addr           string        `yaml:"addr"`
	SystemInterval time.Duration `yaml:"system_interval"`
}

type Websocket struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

// Registry announces the run; an empty kind disables it.
type Registry struct {
	Kind     string        `yaml:"kind"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	Domain   string        `yaml:"domain"`
	TTL      time.Duration `yaml:"ttl"`
}

func Default() Config {
	d := acquisition.DefaultConfig()

	return Config{
		Name: "pha",
		Log: Log{
			Level:    "info",
			Encoding: "json",
		},
		Acquisition: Acquisition{
			BufferSize:           d.BufferSize,
			WindowSize:           d.WindowSize,
			SamplingFrequency:    d.SamplingFrequency,
			Threshold:            d.Threshold,
			SignedThreshold:      d.SignedThreshold,
			EdgeFraction:         d.EdgeFraction,
			Baseline:             d.Baseline.String(),
			Gain:                 d.Gain,
			MaxPulsesPerBuffer:   d.MaxPulsesPerBuffer,
			BinCount:             d.BinCount,
			HistogramPolicy:      d.HistogramPolicy.String(),
			HistogramRange:       [2]float64{d.HistogramMin, d.HistogramMax},
			TargetCount:          d.TargetCount,
			PersistOnCompletion:  d.PersistOnCompletion,
			PublishEvery:         d.PublishEvery,
			DeadtimeUnit:         deadtime.UnitName(d.DeadtimeUnit),
			DeadtimeStatistic:    d.DeadtimeStatistic,
			DeadtimeWarn:         d.DeadtimeThresholds.Warn,
			DeadtimeCritical:     d.DeadtimeThresholds.Critical,
			MaxConsecutiveErrors: d.MaxConsecutiveErrors,
		},
		Source: Source{
			Kind: SourceSim,
			Sim: Sim{
				Seed:      1,
				PulseRate: 0.5,
				Amplitude: 3,
				Spread:    0.5,
				Noise:     0.05,
			},
			Serial: Serial{
				Baud:        115200,
				ReadTimeout: 2 * time.Second,
			},
			Stream: Stream{
				Topic:   "pha.buffers",
				Depth:   16,
				Timeout: 5 * time.Second,
			},
		},
		Publish: Publish{
			LiveTopic:  "pha.live",
			FinalTopic: "pha.final",
			Queue:      64,
		},
		Metrics: Metrics{
			SystemInterval: 5 * time.Second,
		},
		Websocket: Websocket{
			Path: "/live",
		},
		Registry: Registry{
			Domain: "pha",
			TTL:    30 * time.Second,
		},
	}
}

// Load reads a YAML file over the defaults. Keys the file leaves out keep
// their default value; unknown keys are an error.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %w", err)
	}

	return Parse(b)
}

func Parse(b []byte) (Config, error) {
	c := Default()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to decode config %w", err)
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

func (c Config) Validate() error {
	if _, err := c.Acquisition.Build(); err != nil {
		return err
	}

	names := make(map[string]bool, len(c.Brokers))
	for _, b := range c.Brokers {
		if names[b.Name] {
			return fmt.Errorf("%q: %w", b.Name, ErrorDuplicateName)
		}

		names[b.Name] = true

		switch b.Kind {
		case BrokerRedis, BrokerKafka, BrokerRabbit, BrokerMemory:
		default:
			return fmt.Errorf("%q: %w", b.Kind, ErrorBrokerKind)
		}
	}

	switch c.Source.Kind {
	case SourceSim, SourceSerial:
	case SourceStream:
		if !names[c.Source.Stream.Broker] {
			return fmt.Errorf("stream source %q: %w", c.Source.Stream.Broker, ErrorUnknownBroker)
		}
	default:
		return fmt.Errorf("%q: %w", c.Source.Kind, ErrorUnknownSource)
	}

	if c.Publish.Broker != "" && !names[c.Publish.Broker] {
		return fmt.Errorf("publish %q: %w", c.Publish.Broker, ErrorUnknownBroker)
	}

	switch c.Registry.Kind {
	case "", RegistryRedis, RegistryZookeeper:
	default:
		return fmt.Errorf("%q: %w", c.Registry.Kind, ErrorRegistryKind)
	}

	if ttl := c.Registry.TTL; ttl < 0 || (ttl > 0 && ttl < MinRegistryTTL) {
		return fmt.Errorf("%v: %w", ttl, ErrorRegistryTTL)
	}

	return nil
}

// Build converts to the loop's configuration and validates it. Every error
// wraps acquisition.ErrorInvalidConfiguration.
func (a Acquisition) Build() (acquisition.Config, error) {
	wrap := func(err error) error {
		return fmt.Errorf("%w: %w", acquisition.ErrorInvalidConfiguration, err)
	}

	baseline, err := pulse.ParseBaseline(a.Baseline)
	if err != nil {
		return acquisition.Config{}, wrap(err)
	}

	policy, err := histogram.ParsePolicy(a.HistogramPolicy)
	if err != nil {
		return acquisition.Config{}, wrap(err)
	}

	unit, err := deadtime.ParseUnit(a.DeadtimeUnit)
	if err != nil {
		return acquisition.Config{}, wrap(err)
	}

	if _, err := deadtime.ParseStatistic(a.DeadtimeStatistic); err != nil {
		return acquisition.Config{}, wrap(err)
	}

	c := acquisition.Config{
		BufferSize:          a.BufferSize,
		WindowSize:          a.WindowSize,
		SamplingFrequency:   a.SamplingFrequency,
		Threshold:           a.Threshold,
		SignedThreshold:     a.SignedThreshold,
		EdgeFraction:        a.EdgeFraction,
		Baseline:            baseline,
		Gain:                a.Gain,
		MaxPulsesPerBuffer:  a.MaxPulsesPerBuffer,
		BinCount:            a.BinCount,
		HistogramPolicy:     policy,
		HistogramMin:        a.HistogramRange[0],
		HistogramMax:        a.HistogramRange[1],
		TargetCount:         a.TargetCount,
		PersistOnCompletion: a.PersistOnCompletion,
		PublishEvery:        a.PublishEvery,
		DeadtimeUnit:        unit,
		DeadtimeStatistic:   a.DeadtimeStatistic,
		DeadtimeThresholds: deadtime.Thresholds{
			Warn:     a.DeadtimeWarn,
			Critical: a.DeadtimeCritical,
		},
		MaxConsecutiveErrors: a.MaxConsecutiveErrors,
	}

	if err := c.Validate(); err != nil {
		return acquisition.Config{}, err
	}

	if policy == histogram.PolicyIncremental {
		if _, err := histogram.NewIncremental(c.BinCount, c.HistogramMin, c.HistogramMax); err != nil {
			return acquisition.Config{}, wrap(err)
		}
	}

	return c, nil
}
