// Package checkpoint persists and restores training state: model
// parameters, optimizer moments, and the iteration counter.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/go-wavenet-vocoder/internal/safetensors"
	"github.com/example/go-wavenet-vocoder/internal/tensor"
)

const (
	modelPrefix     = "model."
	optimizerPrefix = "optimizer."
	iterationsKey   = "iterations"
)

// Path returns the checkpoint filename for an iteration count inside dir.
func Path(dir string, iterations int) string {
	return filepath.Join(dir, fmt.Sprintf("checkpoint-%d.safetensors", iterations))
}

// Save writes one checkpoint file named by the iteration count, creating
// dir if absent and overwriting any previous file for the same iteration.
func Save(dir string, params []*tensor.Param, optState map[string][]float32, iterations int) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("checkpoint: create %s: %w", dir, err)
	}

	tensors := make([]safetensors.Tensor, 0, len(params)+len(optState)+1)
	for _, p := range params {
		tensors = append(tensors, safetensors.Tensor{
			Name:  modelPrefix + p.Name,
			Shape: []int64{int64(len(p.Value))},
			Data:  append([]float32(nil), p.Value...),
		})
	}

	for name, data := range optState {
		tensors = append(tensors, safetensors.Tensor{
			Name:  optimizerPrefix + name,
			Shape: []int64{int64(len(data))},
			Data:  append([]float32(nil), data...),
		})
	}

	tensors = append(tensors, safetensors.Tensor{
		Name:  iterationsKey,
		Shape: []int64{1},
		Data:  []float32{float32(iterations)},
	})

	path := Path(dir, iterations)
	if err := safetensors.Save(path, tensors); err != nil {
		return "", err
	}

	return path, nil
}

// Load restores parameter values in place from a checkpoint file and
// returns the optimizer state and the stored iteration counter. Every
// model parameter must be present with a matching size; failure here is
// fatal to the caller, which has no recovery policy beyond aborting.
func Load(path string, params []*tensor.Param) (map[string][]float32, int, error) {
	tensors, err := safetensors.Load(path)
	if err != nil {
		return nil, 0, err
	}

	for _, p := range params {
		t, ok := tensors[modelPrefix+p.Name]
		if !ok {
			return nil, 0, fmt.Errorf("checkpoint: %s: missing parameter %q", path, p.Name)
		}

		if len(t.Data) != len(p.Value) {
			return nil, 0, fmt.Errorf("checkpoint: %s: parameter %q has %d values, model expects %d",
				path, p.Name, len(t.Data), len(p.Value))
		}

		copy(p.Value, t.Data)
	}

	optState := make(map[string][]float32)
	for name, t := range tensors {
		if strings.HasPrefix(name, optimizerPrefix) {
			optState[strings.TrimPrefix(name, optimizerPrefix)] = t.Data
		}
	}

	iter, ok := tensors[iterationsKey]
	if !ok || len(iter.Data) != 1 {
		return nil, 0, fmt.Errorf("checkpoint: %s: missing iteration counter", path)
	}

	return optState, int(iter.Data[0]), nil
}
