package histogram

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrorInvalidBins   = errors.New("bin count must be positive")
	ErrorInvalidRange  = errors.New("histogram range must be finite with min < max")
	ErrorUnknownPolicy = errors.New("unknown histogram policy")
)

type Policy int

const (
	PolicyIncremental Policy = iota
	PolicyRecompute
)

func (p Policy) String() string {
	switch p {
	case PolicyIncremental:
		return "incremental"
	case PolicyRecompute:
		return "recompute"
	}

	return "unknown"
}

func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "incremental", "":
		return PolicyIncremental, nil
	case "recompute":
		return PolicyRecompute, nil
	}

	return 0, fmt.Errorf("%q: %w", s, ErrorUnknownPolicy)
}

// Histogram is a point-in-time copy of an accumulator. Values that fell
// outside the bins are tallied separately and are not part of Counts.
type Histogram struct {
	BinEdges  []float64 `json:"bin_edges"`
	Counts    []int64   `json:"counts"`
	Underflow int64     `json:"underflow,omitempty"`
	Overflow  int64     `json:"overflow,omitempty"`
	Invalid   int64     `json:"invalid,omitempty"`
}

func (h Histogram) Total() int64 {
	var n int64
	for _, c := range h.Counts {
		n += c
	}

	return n
}

// Centers returns the midpoint of every bin, the x axis used for plotting.
func (h Histogram) Centers() []float64 {
	if len(h.BinEdges) < 2 {
		return nil
	}

	out := make([]float64, len(h.BinEdges)-1)
	for i := range out {
		out[i] = 0.5 * (h.BinEdges[i] + h.BinEdges[i+1])
	}

	return out
}

func (h Histogram) clone() Histogram {
	c := h
	c.BinEdges = append([]float64(nil), h.BinEdges...)
	c.Counts = append([]int64(nil), h.Counts...)

	return c
}

type Strategy interface {
	Add(values []float64)
	Snapshot() Histogram
	Total() int64
	String() string
}

// New builds the strategy for p. The range is ignored by PolicyRecompute,
// which derives it from the data.
func New(p Policy, bins int, min, max float64) (Strategy, error) {
	switch p {
	case PolicyIncremental:
		return NewIncremental(bins, min, max)
	case PolicyRecompute:
		return NewRecompute(bins)
	}

	return nil, ErrorUnknownPolicy
}

func validRange(min, max float64) bool {
	if math.IsNaN(min) || math.IsNaN(max) || math.IsInf(min, 0) || math.IsInf(max, 0) {
		return false
	}

	return min < max
}
