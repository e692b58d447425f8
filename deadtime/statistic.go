package deadtime

import (
	"errors"
	"fmt"
	"sort"
)

var ErrorUnknownStatistic = errors.New("unknown deadtime statistic")

// Statistic reduces deadtime samples to the single number shown to the
// operator.
type Statistic interface {
	Add(float64)
	Value() (float64, bool)
	Count() int
	String() string
}

type mean struct {
	total float64
	n     int
}

func NewMean() Statistic {
	return &mean{}
}

func (m *mean) Add(v float64) {
	m.total += v
	m.n++
}

func (m *mean) Value() (float64, bool) {
	if m.n == 0 {
		return 0, false
	}

	return m.total / float64(m.n), true
}

func (m *mean) Count() int {
	return m.n
}

func (m *mean) String() string {
	return "mean"
}

// median keeps every sample sorted. For an even count it reports the upper
// of the two middle samples.
type median struct {
	sorted []float64
}

func NewMedian() Statistic {
	return &median{}
}

func (m *median) Add(v float64) {
	i := sort.SearchFloat64s(m.sorted, v)
	m.sorted = append(m.sorted, 0)
	copy(m.sorted[i+1:], m.sorted[i:])
	m.sorted[i] = v
}

func (m *median) Value() (float64, bool) {
	if len(m.sorted) == 0 {
		return 0, false
	}

	return m.sorted[len(m.sorted)/2], true
}

func (m *median) Count() int {
	return len(m.sorted)
}

func (m *median) String() string {
	return "median"
}

func ParseStatistic(s string) (Statistic, error) {
	switch s {
	case "median", "":
		return NewMedian(), nil
	case "mean":
		return NewMean(), nil
	}

	return nil, fmt.Errorf("%q: %w", s, ErrorUnknownStatistic)
}
