package waveform

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestChunkCount(t *testing.T) {
	for n := 0; n <= 64; n++ {
		for w := 1; w <= 70; w++ {
			buf := make([]float64, n)

			chunks, err := Chunk(buf, w)
			if err != nil {
				t.Fatalf("Chunk(len=%d, w=%d): %v", n, w, err)
			}

			if len(chunks) != n/w {
				t.Fatalf("Chunk(len=%d, w=%d) = %d chunks, want %d", n, w, len(chunks), n/w)
			}

			for i, c := range chunks {
				if len(c) != w {
					t.Fatalf("chunk %d has %d samples, want %d", i, len(c), w)
				}
			}
		}
	}
}

func TestChunkEmptyBuffer(t *testing.T) {
	chunks, err := Chunk(nil, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(chunks) != 0 {
		t.Fatalf("got %d chunks, want 0", len(chunks))
	}
}

func TestChunkInvalidWindow(t *testing.T) {
	for _, w := range []int{0, -1, -100} {
		_, err := Chunk([]float64{1, 2, 3}, w)
		if !errors.Is(err, ErrorInvalidConfiguration) {
			t.Errorf("Chunk(w=%d) err = %v, want ErrorInvalidConfiguration", w, err)
		}
	}
}

func TestChunkViewsAndOrder(t *testing.T) {
	buf := []float64{0, 1, 2, 3, 4, 5, 6}

	chunks, err := Chunk(buf, 3)
	if err != nil {
		t.Fatal(err)
	}

	if chunks[1][0] != 3 || chunks[1][2] != 5 {
		t.Fatalf("second chunk = %v", chunks[1])
	}

	buf[4] = 40
	if chunks[1][1] != 40 {
		t.Error("chunks should alias the buffer")
	}

	_ = append(chunks[0], 99)
	if buf[3] != 3 {
		t.Error("append to a chunk overwrote the next chunk")
	}
}

func TestValidate(t *testing.T) {
	nan := math.NaN()

	cases := []struct {
		name string
		buf  []float64
		want error
	}{
		{"empty", nil, ErrorEmptyBuffer},
		{"all nan", []float64{nan, nan}, ErrorAllNaN},
		{"one finite", []float64{nan, 1, nan}, nil},
		{"plain", []float64{0, 0, 0}, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := Validate(tc.buf); !errors.Is(err, tc.want) {
				t.Errorf("Validate = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestSamplesJSON(t *testing.T) {
	in := Samples{1.5, math.NaN(), -2, math.Inf(1)}

	b, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}

	if string(b) != "[1.5,null,-2,null]" {
		t.Fatalf("encoded %s", b)
	}

	var out Samples
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}

	if len(out) != 4 || out[0] != 1.5 || !math.IsNaN(out[1]) || out[2] != -2 || !math.IsNaN(out[3]) {
		t.Errorf("decoded %v", out)
	}

	var empty Samples
	if err := json.Unmarshal([]byte("null"), &empty); err != nil || empty != nil {
		t.Errorf("null decoded to %v, %v", empty, err)
	}
}
