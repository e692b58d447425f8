package acquisition

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pha/deadtime"
	"pha/histogram"
	"pha/log"
	"pha/pulse"
	"pha/waveform"
)

// Loop drives one acquisition run: read, chunk, detect, accumulate,
// publish, until the target pulse count is exceeded or the run is
// cancelled. Everything it owns is touched by the Run goroutine only.
type Loop struct {
	opts Options
	cfg  Config

	src  Source
	sink Sink

	detector *pulse.Detector
	hist     histogram.Strategy
	dead     *deadtime.Tracker

	running int32

	state     State
	raw       []float64
	fresh     []float64
	trace     []float64
	sequence  uint64
	published int
}

func NewLoop(src Source, sink Sink, opts ...Option) (*Loop, error) {
	if src == nil || sink == nil {
		return nil, invalid("source and sink are required")
	}

	l := &Loop{
		opts: Options{
			Config: DefaultConfig(),
			Clock:  time.Now,
		},
		src:  src,
		sink: sink,
	}

	for _, o := range opts {
		o(&l.opts)
	}

	l.cfg = l.opts.Config

	if err := l.cfg.Validate(); err != nil {
		return nil, err
	}

	if l.opts.Clock == nil {
		l.opts.Clock = time.Now
	}

	if l.opts.RunID == "" {
		l.opts.RunID = uuid.NewString()
	}

	d, err := pulse.NewDetector(
		pulse.OptionWithThreshold(l.cfg.Threshold),
		pulse.OptionWithSignedThreshold(l.cfg.SignedThreshold),
		pulse.OptionWithEdgeFraction(l.cfg.EdgeFraction),
		pulse.OptionWithBaseline(l.cfg.Baseline),
		pulse.OptionWithMaxPulses(l.cfg.MaxPulsesPerBuffer),
		pulse.OptionWithGain(l.cfg.Gain))
	if err != nil {
		return nil, fmt.Errorf("failed to create detector %w: %w", ErrorInvalidConfiguration, err)
	}

	l.detector = d

	l.hist = l.opts.Histogram
	if l.hist == nil {
		h, err := histogram.New(l.cfg.HistogramPolicy, l.cfg.BinCount, l.cfg.HistogramMin, l.cfg.HistogramMax)
		if err != nil {
			return nil, fmt.Errorf("failed to create histogram %w: %w", ErrorInvalidConfiguration, err)
		}

		l.hist = h
	}

	stat := l.opts.Statistic
	if stat == nil {
		stat, err = deadtime.ParseStatistic(l.cfg.DeadtimeStatistic)
		if err != nil {
			return nil, fmt.Errorf("failed to create statistic %w: %w", ErrorInvalidConfiguration, err)
		}
	}

	l.dead, err = deadtime.NewTracker(l.cfg.BufferSize, l.cfg.SamplingFrequency,
		deadtime.OptionWithUnit(l.cfg.DeadtimeUnit),
		deadtime.OptionWithStatistic(stat),
		deadtime.OptionWithThresholds(l.cfg.DeadtimeThresholds))
	if err != nil {
		return nil, fmt.Errorf("failed to create deadtime tracker %w: %w", ErrorInvalidConfiguration, err)
	}

	l.raw = make([]float64, 0, l.cfg.TargetCount+1)

	return l, nil
}

func (l *Loop) RunID() string {
	return l.opts.RunID
}

func (l *Loop) Config() Config {
	return l.cfg
}

// Run executes the acquisition. Cancellation of ctx is observed between
// iterations and ends the run in PhaseInterrupted with a nil error.
func (l *Loop) Run(ctx context.Context) (Result, error) {
	if !atomic.CompareAndSwapInt32(&l.running, 0, 1) {
		return Result{}, ErrorAlreadyRun
	}

	l.state.Phase = PhaseRunning

	log.Info("StartAcquisition",
		zap.String("run", l.opts.RunID),
		zap.Int("buffer", l.cfg.BufferSize),
		zap.Int("window", l.cfg.WindowSize),
		zap.Float64("rate", l.cfg.SamplingFrequency),
		zap.Int("target", l.cfg.TargetCount),
		zap.String("histogram", l.hist.String()))

	if err := l.src.Open(l.cfg.BufferSize, l.cfg.SamplingFrequency); err != nil {
		if cerr := l.src.Close(); cerr != nil {
			log.Warn("CloseSource", zap.String("err", cerr.Error()))
		}

		l.state.Phase = PhaseFailed
		log.Error("OpenSource", zap.String("err", err.Error()))

		return l.result(), fmt.Errorf("failed to open source %w: %w", ErrorSource, err)
	}

	phase, runErr := l.iterate(ctx)

	if err := l.src.Close(); err != nil {
		l.state.Phase = PhaseFailed
		log.Error("CloseSource", zap.String("err", err.Error()))

		return l.result(), fmt.Errorf("failed to close source %w: %w", ErrorSource, err)
	}

	l.state.Phase = phase
	l.publish(true, l.opts.Clock())

	log.Info("FinishAcquisition",
		zap.String("run", l.opts.RunID),
		zap.String("phase", phase.String()),
		zap.Int("legit", l.state.LegitCount),
		zap.Int("iterations", l.state.Iterations),
		zap.Int("transient", l.state.TransientErrors))

	return l.result(), runErr
}

func (l *Loop) iterate(ctx context.Context) (Phase, error) {
	consecutive := 0

	for l.state.LegitCount <= l.cfg.TargetCount {
		if ctx.Err() != nil {
			return PhaseInterrupted, nil
		}

		buf, err := l.src.Read()
		now := l.opts.Clock()

		if err == nil {
			err = waveform.Validate(buf)
		}

		if err != nil {
			err = fmt.Errorf("%w: %w", ErrorTransientRead, err)

			l.state.Iterations++
			l.state.TransientErrors++
			consecutive++

			log.Warn("TransientReadError",
				zap.Int("iteration", l.state.Iterations),
				zap.String("err", err.Error()))

			if limit := l.cfg.MaxConsecutiveErrors; limit > 0 && consecutive >= limit {
				return PhaseFailed, fmt.Errorf("%d in a row, last %v: %w", consecutive, err, ErrorTooManyErrors)
			}

			continue
		}

		consecutive = 0
		l.process(buf, now)
	}

	return PhaseCompleted, nil
}

func (l *Loop) process(buf []float64, now time.Time) {
	if len(buf) != l.cfg.BufferSize {
		log.Debug("BufferLength", zap.Int("want", l.cfg.BufferSize), zap.Int("got", len(buf)))
	}

	l.dead.Record(now)

	// window was validated in NewLoop
	chunks, _ := waveform.Chunk(buf, l.cfg.WindowSize)

	res := l.detector.Detect(chunks)
	amps := res.Amplitudes()

	l.hist.Add(amps)
	l.raw = append(l.raw, amps...)
	l.fresh = append(l.fresh, amps...)

	if tr := res.Recent(chunks); tr != nil {
		l.trace = tr
	}

	l.state.LegitCount += len(amps)
	l.state.Processed++
	l.state.Iterations++

	if step := l.state.LegitCount / l.cfg.PublishEvery; step > l.published {
		l.published = step
		l.publish(false, now)
	}
}

// snapshot is stamped by the caller so that the clock is read once per
// iteration and deadtime samples see only read timestamps.
func (l *Loop) snapshot(final bool, at time.Time) *Snapshot {
	l.sequence++

	s := &Snapshot{
		Sequence:   l.sequence,
		RunID:      l.opts.RunID,
		Time:       at,
		Final:      final,
		State:      l.state,
		Progress:   math.Min(1, float64(l.state.LegitCount)/float64(l.cfg.TargetCount)),
		ConfigHash: l.opts.ConfigHash,
		Histogram:  l.hist.Snapshot(),
		Deadtime:   l.dead.Stats(),
		Trace:      clone(l.trace),
		Amplitudes: l.fresh,
	}

	l.fresh = nil

	if final {
		if l.cfg.PersistOnCompletion {
			s.RawAmplitudes = clone(l.raw)
		}

		if len(l.opts.Settings) > 0 {
			s.Settings = make(map[string]string, len(l.opts.Settings))
			for k, v := range l.opts.Settings {
				s.Settings[k] = v
			}
		}
	}

	return s
}

func (l *Loop) publish(final bool, at time.Time) {
	s := l.snapshot(final, at)

	if err := l.sink.Publish(s); err != nil {
		l.state.SinkErrors++
		log.Warn("PublishSnapshot",
			zap.Uint64("sequence", s.Sequence),
			zap.Bool("final", final),
			zap.String("err", err.Error()))
	}
}

func (l *Loop) result() Result {
	return Result{
		State:     l.state,
		Histogram: l.hist.Snapshot(),
		Deadtime:  l.dead.Stats(),
		Published: l.sequence,
	}
}

func clone(v []float64) []float64 {
	if v == nil {
		return nil
	}

	out := make([]float64, len(v))
	copy(out, v)

	return out
}
