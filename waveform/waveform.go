package waveform

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrorInvalidConfiguration = errors.New("invalid configuration")
	ErrorInvalidWindowSize    = fmt.Errorf("window size must be positive: %w", ErrorInvalidConfiguration)
	ErrorEmptyBuffer          = errors.New("empty buffer")
	ErrorAllNaN               = errors.New("buffer holds no finite samples")
)

// Count returns how many whole windows fit into n samples.
func Count(n, window int) int {
	if window <= 0 || n < window {
		return 0
	}

	return n / window
}

// Chunk splits buf into consecutive, non-overlapping windows of the given
// size. Trailing samples that do not fill a window are dropped. The chunks
// alias buf; their capacity is clipped so appending to one cannot clobber
// the next.
func Chunk(buf []float64, window int) ([][]float64, error) {
	if window <= 0 {
		return nil, fmt.Errorf("window %d: %w", window, ErrorInvalidWindowSize)
	}

	n := Count(len(buf), window)
	chunks := make([][]float64, n)

	for i := 0; i < n; i++ {
		lo, hi := i*window, (i+1)*window
		chunks[i] = buf[lo:hi:hi]
	}

	return chunks, nil
}

// Validate reports buffers that cannot carry a pulse at all.
func Validate(buf []float64) error {
	if len(buf) == 0 {
		return ErrorEmptyBuffer
	}

	for _, v := range buf {
		if !math.IsNaN(v) {
			return nil
		}
	}

	return ErrorAllNaN
}
