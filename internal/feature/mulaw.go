package feature

import "math"

// MuLawEncode maps samples in [-1, 1] onto nQuantize discrete classes
// using the mu-law companding curve with mu = nQuantize - 1.
func MuLawEncode(x []float32, nQuantize int) []int64 {
	mu := float64(nQuantize - 1)
	denom := math.Log(1 + mu)

	out := make([]int64, len(x))
	for i, v := range x {
		fv := float64(v)
		fx := sign(fv) * math.Log(1+mu*math.Abs(fv)) / denom
		cls := int64(math.Floor((fx+1)/2*mu + 0.5))
		if cls < 0 {
			cls = 0
		}
		if cls > int64(mu) {
			cls = int64(mu)
		}
		out[i] = cls
	}

	return out
}

// MuLawDecode maps classes back to float samples in [-1, 1]. The inverse of
// MuLawEncode up to quantization error.
func MuLawDecode(y []int64, nQuantize int) []float32 {
	mu := float64(nQuantize - 1)

	out := make([]float32, len(y))
	for i, cls := range y {
		fx := 2*float64(cls)/mu - 1
		out[i] = float32(sign(fx) / mu * (math.Pow(1+mu, math.Abs(fx)) - 1))
	}

	return out
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
