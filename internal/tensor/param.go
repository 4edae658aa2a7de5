package tensor

// Param is one trainable parameter tensor with its gradient accumulator.
// Parameters are flat; layers impose their own indexing over Value.
type Param struct {
	Name  string
	Value []float32
	Grad  []float32
}

// NewParam creates a zero-valued parameter of the given size.
func NewParam(name string, size int) *Param {
	return &Param{
		Name:  name,
		Value: make([]float32, size),
		Grad:  make([]float32, size),
	}
}

// ZeroGrad clears the gradient accumulator.
func (p *Param) ZeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}
