// Package optim implements the Adam optimizer used by the training loop.
package optim

import (
	"fmt"
	"math"

	"github.com/example/go-wavenet-vocoder/internal/tensor"
)

// AdamConfig carries the optimizer hyperparameters. Zero-valued fields fall
// back to the usual defaults.
type AdamConfig struct {
	LR      float64
	Beta1   float64
	Beta2   float64
	Epsilon float64
}

func (c AdamConfig) withDefaults() AdamConfig {
	if c.LR == 0 {
		c.LR = 1e-3
	}
	if c.Beta1 == 0 {
		c.Beta1 = 0.9
	}
	if c.Beta2 == 0 {
		c.Beta2 = 0.999
	}
	if c.Epsilon == 0 {
		c.Epsilon = 1e-8
	}

	return c
}

// Adam updates parameters from their accumulated gradients, keeping
// per-parameter first and second moment estimates with bias correction.
type Adam struct {
	cfg    AdamConfig
	params []*tensor.Param
	step   int

	m map[string][]float32
	v map[string][]float32
}

// NewAdam creates an optimizer over params.
func NewAdam(params []*tensor.Param, cfg AdamConfig) *Adam {
	a := &Adam{
		cfg:    cfg.withDefaults(),
		params: params,
		m:      make(map[string][]float32, len(params)),
		v:      make(map[string][]float32, len(params)),
	}

	for _, p := range params {
		a.m[p.Name] = make([]float32, len(p.Value))
		a.v[p.Name] = make([]float32, len(p.Value))
	}

	return a
}

// Step applies one update from the current gradients and clears them.
func (a *Adam) Step() {
	a.step++

	c1 := 1 - math.Pow(a.cfg.Beta1, float64(a.step))
	c2 := 1 - math.Pow(a.cfg.Beta2, float64(a.step))

	for _, p := range a.params {
		m := a.m[p.Name]
		v := a.v[p.Name]

		for i, g := range p.Grad {
			gf := float64(g)

			mi := a.cfg.Beta1*float64(m[i]) + (1-a.cfg.Beta1)*gf
			vi := a.cfg.Beta2*float64(v[i]) + (1-a.cfg.Beta2)*gf*gf
			m[i] = float32(mi)
			v[i] = float32(vi)

			mhat := mi / c1
			vhat := vi / c2

			p.Value[i] -= float32(a.cfg.LR * mhat / (math.Sqrt(vhat) + a.cfg.Epsilon))
		}

		p.ZeroGrad()
	}
}

// StepCount returns the number of updates applied so far.
func (a *Adam) StepCount() int { return a.step }

// State exports the optimizer state as named vectors for checkpointing.
// Moment vectors are namespaced per parameter; the step counter rides along
// as a one-element vector.
func (a *Adam) State() map[string][]float32 {
	out := make(map[string][]float32, 2*len(a.params)+1)
	for _, p := range a.params {
		out[p.Name+".exp_avg"] = append([]float32(nil), a.m[p.Name]...)
		out[p.Name+".exp_avg_sq"] = append([]float32(nil), a.v[p.Name]...)
	}
	out["step"] = []float32{float32(a.step)}

	return out
}

// LoadState restores moment vectors and the step counter from named
// tensors. Every parameter must be covered; sizes must match exactly.
func (a *Adam) LoadState(tensors map[string][]float32) error {
	for _, p := range a.params {
		m, ok := tensors[p.Name+".exp_avg"]
		if !ok {
			return fmt.Errorf("optim: missing first moment for %q", p.Name)
		}
		v, ok := tensors[p.Name+".exp_avg_sq"]
		if !ok {
			return fmt.Errorf("optim: missing second moment for %q", p.Name)
		}

		if len(m) != len(p.Value) || len(v) != len(p.Value) {
			return fmt.Errorf("optim: moment size mismatch for %q: %d/%d vs %d", p.Name, len(m), len(v), len(p.Value))
		}

		copy(a.m[p.Name], m)
		copy(a.v[p.Name], v)
	}

	step, ok := tensors["step"]
	if !ok || len(step) != 1 {
		return fmt.Errorf("optim: missing step counter in optimizer state")
	}
	a.step = int(step[0])

	return nil
}
