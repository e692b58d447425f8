package deadtime

import (
	"encoding/json"
)

type Level int

const (
	LevelGreen Level = iota
	LevelYellow
	LevelRed
)

func (l Level) String() string {
	switch l {
	case LevelGreen:
		return "green"
	case LevelYellow:
		return "yellow"
	case LevelRed:
		return "red"
	}

	return "unknown"
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Level) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	switch s {
	case "yellow":
		*l = LevelYellow
	case "red":
		*l = LevelRed
	default:
		*l = LevelGreen
	}

	return nil
}

// Thresholds are in the tracker's unit. Values at or above Warn are yellow,
// at or above Critical red.
type Thresholds struct {
	Warn     float64
	Critical float64
}

var DefaultThresholds = Thresholds{Warn: 10, Critical: 20}

func (t Thresholds) Grade(v float64) Level {
	switch {
	case v >= t.Critical:
		return LevelRed
	case v >= t.Warn:
		return LevelYellow
	}

	return LevelGreen
}
