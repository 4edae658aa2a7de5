// Package wavenet implements the gated dilated-causal-convolution network
// trained for next-sample prediction over mu-law classes, together with its
// hand-derived backward pass.
package wavenet

import (
	"fmt"
	"math/rand/v2"

	"github.com/example/go-wavenet-vocoder/internal/tensor"
)

// Config holds the architecture hyperparameters.
type Config struct {
	NQuantize     int
	NAux          int
	NResch        int
	NSkipch       int
	DilationDepth int
	NRepeat       int
	KernelSize    int
}

// WaveNet maps (quantized waveform window, feature window) to per-step
// class logits. Forward caches the activations Backward needs; a WaveNet is
// therefore not safe for concurrent use.
type WaveNet struct {
	cfg       Config
	dilations []int

	causal *conv1D
	blocks []*residualBlock
	post1  *conv1D
	post2  *conv1D

	receptiveField int

	// forward caches
	relu1 *tensor.Matrix
	relu2 *tensor.Matrix
}

// New builds a WaveNet with weights drawn from rng.
func New(cfg Config, rng *rand.Rand) (*WaveNet, error) {
	if cfg.NQuantize < 2 || cfg.NAux < 1 || cfg.NResch < 1 || cfg.NSkipch < 1 {
		return nil, fmt.Errorf("wavenet: invalid channel config %+v", cfg)
	}

	if cfg.DilationDepth < 1 || cfg.NRepeat < 1 || cfg.KernelSize < 2 {
		return nil, fmt.Errorf("wavenet: invalid dilation config %+v", cfg)
	}

	var dilations []int
	for range cfg.NRepeat {
		for i := range cfg.DilationDepth {
			dilations = append(dilations, 1<<i)
		}
	}

	sum := 0
	for _, d := range dilations {
		sum += d
	}

	w := &WaveNet{
		cfg:       cfg,
		dilations: dilations,
		causal:    newConv1D("causal", cfg.NQuantize, cfg.NResch, cfg.KernelSize, 1, rng),
		post1:     newConv1D("conv_post_1", cfg.NSkipch, cfg.NSkipch, 1, 1, rng),
		post2:     newConv1D("conv_post_2", cfg.NSkipch, cfg.NQuantize, 1, 1, rng),
		// The entry causal convolution contributes its own kernel-1 steps
		// of history on top of the dilated stack.
		receptiveField: (cfg.KernelSize-1)*sum + cfg.KernelSize - 1,
	}

	for i, d := range dilations {
		w.blocks = append(w.blocks, newResidualBlock(fmt.Sprintf("blocks.%d", i), cfg, d, rng))
	}

	return w, nil
}

// ReceptiveField returns the number of preceding samples an output step
// depends on.
func (w *WaveNet) ReceptiveField() int { return w.receptiveField }

// Parameters returns all trainable parameters in a stable order.
func (w *WaveNet) Parameters() []*tensor.Param {
	params := w.causal.params()
	for _, b := range w.blocks {
		params = append(params, b.params()...)
	}
	params = append(params, w.post1.params()...)
	params = append(params, w.post2.params()...)

	return params
}

// ZeroGrad clears all parameter gradients.
func (w *WaveNet) ZeroGrad() {
	for _, p := range w.Parameters() {
		p.ZeroGrad()
	}
}

// Forward computes per-step class logits [NQuantize, len(input)] from a
// quantized waveform window and its channel-first feature window.
func (w *WaveNet) Forward(input []int64, feats *tensor.Matrix) (*tensor.Matrix, error) {
	if feats.Rows() != w.cfg.NAux {
		return nil, fmt.Errorf("wavenet: feature dims %d, model expects %d", feats.Rows(), w.cfg.NAux)
	}

	if feats.Cols() != len(input) {
		return nil, fmt.Errorf("wavenet: %d feature frames for %d samples", feats.Cols(), len(input))
	}

	onehot, err := tensor.NewMatrix(w.cfg.NQuantize, len(input))
	if err != nil {
		return nil, err
	}
	for t, cls := range input {
		if cls < 0 || cls >= int64(w.cfg.NQuantize) {
			return nil, fmt.Errorf("wavenet: class %d at step %d outside [0, %d)", cls, t, w.cfg.NQuantize)
		}
		onehot.Set(int(cls), t, 1)
	}

	x := w.causal.forward(onehot)

	skipSum, err := tensor.NewMatrix(w.cfg.NSkipch, len(input))
	if err != nil {
		return nil, err
	}

	for _, b := range w.blocks {
		var skip *tensor.Matrix
		x, skip = b.forward(x, feats)
		addInto(skipSum, skip)
	}

	w.relu1 = reluOf(skipSum)
	p1 := w.post1.forward(w.relu1)
	w.relu2 = reluOf(p1)

	return w.post2.forward(w.relu2), nil
}

// Backward accumulates parameter gradients for the logit gradient produced
// by the loss. Must follow a Forward call on the same window.
func (w *WaveNet) Backward(gradLogits *tensor.Matrix) error {
	if w.relu1 == nil {
		return fmt.Errorf("wavenet: backward without forward")
	}

	g := w.post2.backward(gradLogits, true)
	reluMaskInto(g, w.relu2)
	g = w.post1.backward(g, true)
	reluMaskInto(g, w.relu1)

	// g is now the gradient on the skip sum, shared by every block's skip
	// output. The residual trunk gradient starts at zero: the final block's
	// residual output feeds nothing.
	gradX, err := tensor.NewMatrix(w.cfg.NResch, g.Cols())
	if err != nil {
		return err
	}

	for i := len(w.blocks) - 1; i >= 0; i-- {
		gradX = w.blocks[i].backward(gradX, g)
	}

	w.causal.backward(gradX, false)
	return nil
}

// residualBlock is one gated unit: dilated tanh/sigmoid convolutions over
// the trunk, 1x1 conditioning convolutions over the features, and 1x1
// projections to the skip and residual paths.
type residualBlock struct {
	dilTanh *conv1D
	dilSig  *conv1D
	auxTanh *conv1D
	auxSig  *conv1D
	skip    *conv1D
	res     *conv1D

	tanhOut *tensor.Matrix
	sigOut  *tensor.Matrix
}

func newResidualBlock(name string, cfg Config, dilation int, rng *rand.Rand) *residualBlock {
	return &residualBlock{
		dilTanh: newConv1D(name+".dil_tanh", cfg.NResch, cfg.NResch, cfg.KernelSize, dilation, rng),
		dilSig:  newConv1D(name+".dil_sigmoid", cfg.NResch, cfg.NResch, cfg.KernelSize, dilation, rng),
		auxTanh: newConv1D(name+".aux_1x1_tanh", cfg.NAux, cfg.NResch, 1, 1, rng),
		auxSig:  newConv1D(name+".aux_1x1_sigmoid", cfg.NAux, cfg.NResch, 1, 1, rng),
		skip:    newConv1D(name+".skip_1x1", cfg.NResch, cfg.NSkipch, 1, 1, rng),
		res:     newConv1D(name+".res_1x1", cfg.NResch, cfg.NResch, 1, 1, rng),
	}
}

func (b *residualBlock) params() []*tensor.Param {
	var params []*tensor.Param
	for _, c := range []*conv1D{b.dilTanh, b.dilSig, b.auxTanh, b.auxSig, b.skip, b.res} {
		params = append(params, c.params()...)
	}

	return params
}

func (b *residualBlock) forward(x, feats *tensor.Matrix) (res, skip *tensor.Matrix) {
	preTanh := b.dilTanh.forward(x)
	addInto(preTanh, b.auxTanh.forward(feats))

	preSig := b.dilSig.forward(x)
	addInto(preSig, b.auxSig.forward(feats))

	b.tanhOut = tanhOf(preTanh)
	b.sigOut = sigmoidOf(preSig)

	gated := mulOf(b.tanhOut, b.sigOut)

	res = b.res.forward(gated)
	addInto(res, x)

	return res, b.skip.forward(gated)
}

// backward consumes the gradients on the block's residual output and on the
// shared skip sum, and returns the gradient on the block's trunk input.
func (b *residualBlock) backward(gradRes, gradSkip *tensor.Matrix) *tensor.Matrix {
	gradGated := b.skip.backward(gradSkip, true)
	addInto(gradGated, b.res.backward(gradRes, true))

	// Gate: gated = tanhOut * sigOut.
	gradTanhPre := gradGated.Clone()
	gradSigPre := gradGated.Clone()

	dTanh := gradTanhPre.RawData()
	dSig := gradSigPre.RawData()
	th := b.tanhOut.RawData()
	sg := b.sigOut.RawData()
	for i := range dTanh {
		dTanh[i] *= sg[i] * (1 - th[i]*th[i])
		dSig[i] *= th[i] * sg[i] * (1 - sg[i])
	}

	// Residual identity path.
	gradX := gradRes.Clone()
	addInto(gradX, b.dilTanh.backward(gradTanhPre, true))
	addInto(gradX, b.dilSig.backward(gradSigPre, true))

	// Conditioning convolutions only need weight gradients.
	b.auxTanh.backward(gradTanhPre, false)
	b.auxSig.backward(gradSigPre, false)

	return gradX
}
