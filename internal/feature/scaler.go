package feature

import (
	"fmt"

	"github.com/example/go-wavenet-vocoder/internal/safetensors"
	"github.com/example/go-wavenet-vocoder/internal/tensor"
)

// Stats holds per-dimension normalization statistics.
type Stats struct {
	Mean  []float32
	Scale []float32
}

// LoadStats reads "mean" and "scale" vectors from a statistics file.
func LoadStats(path string) (*Stats, error) {
	tensors, err := safetensors.Load(path)
	if err != nil {
		return nil, err
	}

	mean, ok := tensors[KeyMean]
	if !ok {
		return nil, fmt.Errorf("feature: %s: missing %q tensor", path, KeyMean)
	}

	scale, ok := tensors[KeyScale]
	if !ok {
		return nil, fmt.Errorf("feature: %s: missing %q tensor", path, KeyScale)
	}

	if err := checkVector(mean.Shape); err != nil {
		return nil, fmt.Errorf("feature: %s: %q: %w", path, KeyMean, err)
	}
	if err := checkVector(scale.Shape); err != nil {
		return nil, fmt.Errorf("feature: %s: %q: %w", path, KeyScale, err)
	}

	if len(mean.Data) != len(scale.Data) {
		return nil, fmt.Errorf("feature: %s: mean dim %d != scale dim %d", path, len(mean.Data), len(scale.Data))
	}

	for i, s := range scale.Data {
		if s == 0 {
			return nil, fmt.Errorf("feature: %s: scale[%d] is zero", path, i)
		}
	}

	return &Stats{Mean: mean.Data, Scale: scale.Data}, nil
}

// Dim returns the number of feature dimensions covered by the statistics.
func (s *Stats) Dim() int { return len(s.Mean) }

// Normalize returns (x - mean) / scale applied per feature dimension.
// The statistics cover the leading columns of m; any extra columns (e.g. an
// appended speaker code) pass through unchanged.
func (s *Stats) Normalize(m *tensor.Matrix) (*tensor.Matrix, error) {
	if m.Cols() < s.Dim() {
		return nil, fmt.Errorf("feature: matrix has %d dims, statistics cover %d", m.Cols(), s.Dim())
	}

	out := m.Clone()
	for r := range out.Rows() {
		row := out.Row(r)
		for c := range s.Dim() {
			row[c] = (row[c] - s.Mean[c]) / s.Scale[c]
		}
	}

	return out, nil
}
