package feature

import "github.com/example/go-wavenet-vocoder/internal/tensor"

// WaveStage transforms raw samples before quantization.
type WaveStage func([]float32) []float32

// WaveTransform maps a raw waveform window to quantized class indices.
// It is the terminal stage of the waveform pipeline.
type WaveTransform func([]float32) []int64

// FeatTransform transforms a feature window.
type FeatTransform func(*tensor.Matrix) (*tensor.Matrix, error)

// ComposeWave chains stages in order and finishes with quantize.
func ComposeWave(quantize WaveTransform, stages ...WaveStage) WaveTransform {
	return func(x []float32) []int64 {
		for _, stage := range stages {
			x = stage(x)
		}
		return quantize(x)
	}
}

// ComposeFeat chains feature stages in order, stopping at the first error.
func ComposeFeat(stages ...FeatTransform) FeatTransform {
	return func(m *tensor.Matrix) (*tensor.Matrix, error) {
		var err error
		for _, stage := range stages {
			m, err = stage(m)
			if err != nil {
				return nil, err
			}
		}
		return m, nil
	}
}

// MuLawTransform returns the waveform quantization stage.
func MuLawTransform(nQuantize int) WaveTransform {
	return func(x []float32) []int64 {
		return MuLawEncode(x, nQuantize)
	}
}

// NormalizeTransform returns the statistics-based feature scaling stage.
func NormalizeTransform(stats *Stats) FeatTransform {
	return stats.Normalize
}
