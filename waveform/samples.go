package waveform

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Samples is a run of float samples that survives JSON: non-finite values
// travel as null and come back as NaN.
type Samples []float64

func (s Samples) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}

	b := make([]byte, 0, 2+len(s)*8)
	b = append(b, '[')

	for i, v := range s {
		if i > 0 {
			b = append(b, ',')
		}

		if math.IsNaN(v) || math.IsInf(v, 0) {
			b = append(b, "null"...)
			continue
		}

		b = strconv.AppendFloat(b, v, 'g', -1, 64)
	}

	return append(b, ']'), nil
}

func (s *Samples) UnmarshalJSON(b []byte) error {
	var raw []*float64
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	if raw == nil {
		*s = nil

		return nil
	}

	out := make(Samples, len(raw))
	for i, p := range raw {
		if p == nil {
			out[i] = math.NaN()
			continue
		}

		out[i] = *p
	}

	*s = out

	return nil
}

// Buffer is one acquisition buffer as a remote digitizer publishes it.
type Buffer struct {
	Sequence   uint64    `json:"sequence"`
	Time       time.Time `json:"time"`
	SampleRate float64   `json:"sample_rate,omitempty"`
	Samples    Samples   `json:"samples"`
}
