package wavenet

import (
	"math"
	"math/rand/v2"

	"github.com/example/go-wavenet-vocoder/internal/tensor"
)

// conv1D is a causal 1-D convolution over [channels, steps] matrices.
// Causality comes from an implicit left pad of (kernel-1)*dilation zeros,
// so output step t depends only on input steps <= t.
type conv1D struct {
	inCh     int
	outCh    int
	kernel   int
	dilation int

	// weight is [outCh, inCh, kernel] flattened row-major.
	weight *tensor.Param
	bias   *tensor.Param

	// input cache for the backward pass, valid until the next forward.
	x *tensor.Matrix
}

func newConv1D(name string, inCh, outCh, kernel, dilation int, rng *rand.Rand) *conv1D {
	c := &conv1D{
		inCh:     inCh,
		outCh:    outCh,
		kernel:   kernel,
		dilation: dilation,
		weight:   tensor.NewParam(name+".weight", outCh*inCh*kernel),
		bias:     tensor.NewParam(name+".bias", outCh),
	}

	// Uniform in [-1/sqrt(fanIn), 1/sqrt(fanIn)].
	bound := float32(1 / math.Sqrt(float64(inCh*kernel)))
	for i := range c.weight.Value {
		c.weight.Value[i] = (rng.Float32()*2 - 1) * bound
	}
	for i := range c.bias.Value {
		c.bias.Value[i] = (rng.Float32()*2 - 1) * bound
	}

	return c
}

func (c *conv1D) params() []*tensor.Param {
	return []*tensor.Param{c.weight, c.bias}
}

// wIndex returns the flat weight index of (out, in, tap).
func (c *conv1D) wIndex(o, i, j int) int {
	return (o*c.inCh+i)*c.kernel + j
}

// forward computes y[o, t] = bias[o] + sum_{i, j} w[o, i, j] * x[i, t-(kernel-1-j)*dilation],
// with out-of-range input steps reading as zero.
func (c *conv1D) forward(x *tensor.Matrix) *tensor.Matrix {
	steps := x.Cols()
	y, _ := tensor.NewMatrix(c.outCh, steps)

	tensor.ParallelFor(c.outCh, func(lo, hi int) {
		for o := lo; o < hi; o++ {
			yRow := y.Row(o)
			for t := range yRow {
				yRow[t] = c.bias.Value[o]
			}

			for i := range c.inCh {
				xRow := x.Row(i)
				for j := range c.kernel {
					w := c.weight.Value[c.wIndex(o, i, j)]
					if w == 0 {
						continue
					}

					offset := (c.kernel - 1 - j) * c.dilation
					if offset >= steps {
						continue
					}
					tensor.Axpy(yRow[offset:], w, xRow)
				}
			}
		}
	})

	c.x = x
	return y
}

// backward accumulates weight/bias gradients from grad and, when
// needInputGrad is set, returns the gradient with respect to the cached
// input. Aux and entry convolutions skip the input gradient: nothing
// trainable sits below them.
func (c *conv1D) backward(grad *tensor.Matrix, needInputGrad bool) *tensor.Matrix {
	steps := grad.Cols()

	tensor.ParallelFor(c.outCh, func(lo, hi int) {
		for o := lo; o < hi; o++ {
			gRow := grad.Row(o)

			var b float32
			for _, g := range gRow {
				b += g
			}
			c.bias.Grad[o] += b

			for i := range c.inCh {
				xRow := c.x.Row(i)
				for j := range c.kernel {
					offset := (c.kernel - 1 - j) * c.dilation
					if offset >= steps {
						continue
					}
					// dL/dw[o,i,j] = sum_t g[o,t] * x[i,t-offset]
					c.weight.Grad[c.wIndex(o, i, j)] += tensor.Dot(gRow[offset:], xRow)
				}
			}
		}
	})

	if !needInputGrad {
		return nil
	}

	gx, _ := tensor.NewMatrix(c.inCh, steps)
	tensor.ParallelFor(c.inCh, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			gxRow := gx.Row(i)
			for o := range c.outCh {
				gRow := grad.Row(o)
				for j := range c.kernel {
					w := c.weight.Value[c.wIndex(o, i, j)]
					if w == 0 {
						continue
					}

					offset := (c.kernel - 1 - j) * c.dilation
					if offset >= steps {
						continue
					}
					// dL/dx[i,s] += w * g[o,s+offset]
					tensor.Axpy(gxRow, w, gRow[offset:])
				}
			}
		}
	})

	return gx
}
