// Package feature loads per-utterance acoustic feature records and provides
// the composable transforms applied to training windows: mu-law
// quantization for the waveform and statistics-based normalization for the
// features.
package feature

import (
	"errors"
	"fmt"

	"github.com/example/go-wavenet-vocoder/internal/safetensors"
	"github.com/example/go-wavenet-vocoder/internal/tensor"
)

// Safetensors keys inside feature records and statistics files.
const (
	KeyFeat        = "feat"
	KeySpeakerCode = "speaker_code"
	KeyMean        = "mean"
	KeyScale       = "scale"
)

// Record is one utterance's feature content: a [frames, dim] matrix and an
// optional per-utterance speaker code vector.
type Record struct {
	Feats       *tensor.Matrix
	SpeakerCode []float32
}

// ReadRecord loads a feature file. The "feat" tensor must be 2-D; the
// optional "speaker_code" tensor must be a vector.
func ReadRecord(path string) (*Record, error) {
	tensors, err := safetensors.Load(path)
	if err != nil {
		return nil, err
	}

	feat, ok := tensors[KeyFeat]
	if !ok {
		return nil, fmt.Errorf("feature: %s: missing %q tensor", path, KeyFeat)
	}

	if len(feat.Shape) != 2 {
		return nil, fmt.Errorf("feature: %s: %q must be 2-D, got shape %v", path, KeyFeat, feat.Shape)
	}

	feats, err := tensor.FromData(feat.Data, int(feat.Shape[0]), int(feat.Shape[1]))
	if err != nil {
		return nil, fmt.Errorf("feature: %s: %w", path, err)
	}

	rec := &Record{Feats: feats}

	if sc, ok := tensors[KeySpeakerCode]; ok {
		if err := checkVector(sc.Shape); err != nil {
			return nil, fmt.Errorf("feature: %s: %q: %w", path, KeySpeakerCode, err)
		}
		rec.SpeakerCode = sc.Data
	}

	return rec, nil
}

// TileConcat broadcasts code across all frames of feats and concatenates it
// along the feature axis, producing [frames, dim+len(code)].
func TileConcat(feats *tensor.Matrix, code []float32) (*tensor.Matrix, error) {
	if feats == nil {
		return nil, errors.New("feature: tile-concat on nil matrix")
	}

	tiled, err := tensor.NewMatrix(feats.Rows(), len(code))
	if err != nil {
		return nil, err
	}

	for r := range tiled.Rows() {
		copy(tiled.Row(r), code)
	}

	return feats.ConcatCols(tiled)
}

func checkVector(shape []int64) error {
	switch len(shape) {
	case 1:
		return nil
	case 2:
		if shape[0] == 1 || shape[1] == 1 {
			return nil
		}
	}

	return fmt.Errorf("must be a vector, got shape %v", shape)
}
