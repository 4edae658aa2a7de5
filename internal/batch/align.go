package batch

import (
	"fmt"

	"github.com/example/go-wavenet-vocoder/internal/tensor"
)

// AlignLengths trims the waveform and the feature sequence to their shared
// minimum length. The two streams come from independent extraction
// pipelines and may drift by a few samples/frames; trimming is always from
// the tail, never padding.
//
// A post-trim length mismatch cannot happen given the trim logic and is
// treated as an internal bug: it panics rather than returning an error.
func AlignLengths(x []float32, h *tensor.Matrix) ([]float32, *tensor.Matrix) {
	n := min(len(x), h.Rows())

	x = x[:n]
	if h.Rows() != n {
		trimmed, err := h.NarrowRows(0, n)
		if err != nil {
			panic(fmt.Sprintf("batch: align trim failed: %v", err))
		}
		h = trimmed
	}

	if len(x) != h.Rows() {
		panic(fmt.Sprintf("batch: post-trim length mismatch: %d samples vs %d frames", len(x), h.Rows()))
	}

	return x, h
}
