package acquisition

import (
	"encoding/json"
	"time"

	"pha/deadtime"
	"pha/histogram"
	"pha/waveform"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseCompleted
	PhaseInterrupted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseCompleted:
		return "completed"
	case PhaseInterrupted:
		return "interrupted"
	case PhaseFailed:
		return "failed"
	}

	return "unknown"
}

func (p Phase) Terminal() bool {
	return p >= PhaseCompleted
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	*p = PhaseIdle

	for c := PhaseIdle; c <= PhaseFailed; c++ {
		if c.String() == s {
			*p = c
		}
	}

	return nil
}

type State struct {
	LegitCount      int   `json:"legit_count"`
	Iterations      int   `json:"iterations"`
	Processed       int   `json:"processed"`
	TransientErrors int   `json:"transient_errors"`
	SinkErrors      int   `json:"sink_errors"`
	Phase           Phase `json:"phase"`
}

// Snapshot is a detached copy of everything a display or archive needs.
// Optional parts are empty early in a run.
type Snapshot struct {
	Sequence   uint64    `json:"sequence"`
	RunID      string    `json:"run_id"`
	Time       time.Time `json:"time"`
	Final      bool      `json:"final"`
	State      State     `json:"state"`
	Progress   float64   `json:"progress"`
	ConfigHash string    `json:"config_hash,omitempty"`

	Histogram histogram.Histogram `json:"histogram"`
	Deadtime  deadtime.Stats      `json:"deadtime"`

	// Trace holds the raw samples of the most recently accepted chunk.
	Trace waveform.Samples `json:"trace,omitempty"`
	// Amplitudes accepted since the previous snapshot.
	Amplitudes waveform.Samples `json:"amplitudes,omitempty"`
	// RawAmplitudes is the full log, on the final snapshot of a persisting run.
	RawAmplitudes waveform.Samples  `json:"raw_amplitudes,omitempty"`
	Settings      map[string]string `json:"settings,omitempty"`
}

type Result struct {
	State     State
	Histogram histogram.Histogram
	Deadtime  deadtime.Stats
	Published uint64
}
