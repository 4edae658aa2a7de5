package wavenet

import (
	"fmt"
	"math"

	"github.com/example/go-wavenet-vocoder/internal/tensor"
)

// MaskedCrossEntropy computes mean softmax cross-entropy over the steps at
// index >= from, discarding the warm-up region where the receptive field is
// not yet filled with real context. It returns the loss and the gradient
// with respect to the logits (zero inside the masked region).
func MaskedCrossEntropy(logits *tensor.Matrix, target []int64, from int) (float32, *tensor.Matrix, error) {
	classes := logits.Rows()
	steps := logits.Cols()

	if steps != len(target) {
		return 0, nil, fmt.Errorf("wavenet: %d logit steps for %d targets", steps, len(target))
	}

	if from < 0 {
		from = 0
	}

	if from >= steps {
		return 0, nil, fmt.Errorf("wavenet: mask start %d leaves no scored steps out of %d", from, steps)
	}

	counted := steps - from
	inv := 1 / float32(counted)

	grad, err := tensor.NewMatrix(classes, steps)
	if err != nil {
		return 0, nil, err
	}

	var loss float64
	for t := from; t < steps; t++ {
		cls := target[t]
		if cls < 0 || cls >= int64(classes) {
			return 0, nil, fmt.Errorf("wavenet: target class %d at step %d outside [0, %d)", cls, t, classes)
		}

		// Log-sum-exp with max subtraction for stability.
		maxv := logits.At(0, t)
		for c := 1; c < classes; c++ {
			if v := logits.At(c, t); v > maxv {
				maxv = v
			}
		}

		var sum float64
		for c := range classes {
			sum += math.Exp(float64(logits.At(c, t) - maxv))
		}
		logSum := math.Log(sum)

		loss += logSum - float64(logits.At(int(cls), t)-maxv)

		for c := range classes {
			p := float32(math.Exp(float64(logits.At(c, t)-maxv)) / sum)
			if int64(c) == cls {
				p -= 1
			}
			grad.Set(c, t, p*inv)
		}
	}

	return float32(loss) * inv, grad, nil
}
