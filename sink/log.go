package sink

import (
	"go.uber.org/zap"

	"pha/acquisition"
	"pha/log"
)

// Log reports progress through the package logger, which is what an
// operator watching the console sees.
type Log struct{}

func (Log) Publish(s *acquisition.Snapshot) error {
	fields := []zap.Field{
		zap.String("run", s.RunID),
		zap.Uint64("sequence", s.Sequence),
		zap.String("phase", s.State.Phase.String()),
		zap.Int("legit", s.State.LegitCount),
		zap.Int("iterations", s.State.Iterations),
		zap.Float64("progress", s.Progress),
	}

	if s.Deadtime.OK {
		fields = append(fields,
			zap.Float64("deadtime", s.Deadtime.Value),
			zap.String("unit", s.Deadtime.Unit),
			zap.String("level", s.Deadtime.Level.String()))
	}

	if !s.Final {
		log.Info("Progress", fields...)

		return nil
	}

	h := s.Histogram
	fields = append(fields,
		zap.Int64("binned", h.Total()),
		zap.Int64("underflow", h.Underflow),
		zap.Int64("overflow", h.Overflow),
		zap.Int("raw", len(s.RawAmplitudes)),
		zap.String("config", s.ConfigHash))

	log.Info("FinalSnapshot", fields...)

	return nil
}
