package tensor

// Dot returns the dot product of a and b.
// If the lengths differ, the shorter length is used.
func Dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var sum float32
	for i := range n {
		sum += a[i] * b[i]
	}

	return sum
}

// Axpy computes dst += alpha * src element-wise.
// If src and dst lengths differ, the shorter length is used.
func Axpy(dst []float32, alpha float32, src []float32) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}

	if n == 0 || alpha == 0 {
		return
	}

	for i := range n {
		dst[i] += alpha * src[i]
	}
}

// Scale computes dst *= alpha element-wise.
func Scale(dst []float32, alpha float32) {
	for i := range dst {
		dst[i] *= alpha
	}
}
