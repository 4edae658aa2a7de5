package wavenet

import (
	"math"

	"github.com/example/go-wavenet-vocoder/internal/tensor"
)

func addInto(dst, src *tensor.Matrix) {
	tensor.Axpy(dst.RawData(), 1, src.RawData())
}

func tanhOf(m *tensor.Matrix) *tensor.Matrix {
	out := m.Clone()
	data := out.RawData()
	for i, v := range data {
		data[i] = float32(math.Tanh(float64(v)))
	}

	return out
}

func sigmoidOf(m *tensor.Matrix) *tensor.Matrix {
	out := m.Clone()
	data := out.RawData()
	for i, v := range data {
		data[i] = float32(1 / (1 + math.Exp(-float64(v))))
	}

	return out
}

func reluOf(m *tensor.Matrix) *tensor.Matrix {
	out := m.Clone()
	data := out.RawData()
	for i, v := range data {
		if v < 0 {
			data[i] = 0
		}
	}

	return out
}

func mulOf(a, b *tensor.Matrix) *tensor.Matrix {
	out := a.Clone()
	data := out.RawData()
	bd := b.RawData()
	for i := range data {
		data[i] *= bd[i]
	}

	return out
}

// reluMaskInto zeroes grad wherever the cached ReLU output was zero.
func reluMaskInto(grad, reluOut *tensor.Matrix) {
	g := grad.RawData()
	r := reluOut.RawData()
	for i := range g {
		if r[i] == 0 {
			g[i] = 0
		}
	}
}
