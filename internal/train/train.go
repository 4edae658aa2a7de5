// Package train drives the iteration loop: pull a batch, run the model,
// step the optimizer, report progress, and checkpoint periodically.
package train

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/go-wavenet-vocoder/internal/batch"
	"github.com/example/go-wavenet-vocoder/internal/tensor"
)

// Model is the trained network, a black box from the loop's point of view:
// forward to per-step class logits, backward from the logit gradient.
type Model interface {
	ReceptiveField() int
	Forward(input []int64, feats *tensor.Matrix) (*tensor.Matrix, error)
	Backward(gradLogits *tensor.Matrix) error
}

// Optimizer applies one parameter update from accumulated gradients.
type Optimizer interface {
	Step()
}

// Criterion computes the scalar loss and the logit gradient, scoring only
// steps at index >= from.
type Criterion func(logits *tensor.Matrix, target []int64, from int) (float32, *tensor.Matrix, error)

// Config parameterizes the loop.
type Config struct {
	NIters         int
	LogInterval    int
	CheckpointEach int

	// Save persists a checkpoint for the given iteration count. Called
	// every CheckpointEach iterations and once, unconditionally, at the
	// final iteration.
	Save func(iterations int) error

	Logger *slog.Logger

	// now is injectable for cadence tests; nil means time.Now.
	now func() time.Time
}

// Run executes iterations [sess.Iteration, cfg.NIters). After resume the
// checkpointed iteration is re-executed rather than skipped; this mirrors
// the established checkpoint numbering and is relied on by downstream
// tooling, so it is preserved as-is.
func Run(cfg Config, model Model, opt Optimizer, criterion Criterion, src batch.Source, sess *Session) error {
	if cfg.NIters <= 0 {
		return fmt.Errorf("train: n_iters must be positive, got %d", cfg.NIters)
	}

	if cfg.LogInterval <= 0 || cfg.CheckpointEach <= 0 {
		return fmt.Errorf("train: interval %d and checkpoint %d must be positive", cfg.LogInterval, cfg.CheckpointEach)
	}

	if cfg.Save == nil {
		return errors.New("train: checkpoint save hook is required")
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	now := cfg.now
	if now == nil {
		now = time.Now
	}

	for i := sess.Iteration; i < cfg.NIters; i++ {
		start := now()

		b, err := src.Next()
		if err != nil {
			return fmt.Errorf("train: iteration %d: %w", i, err)
		}

		logits, err := model.Forward(b.Input, b.Feats)
		if err != nil {
			return fmt.Errorf("train: iteration %d: forward: %w", i, err)
		}

		loss, grad, err := criterion(logits, b.Target, model.ReceptiveField())
		if err != nil {
			return fmt.Errorf("train: iteration %d: loss: %w", i, err)
		}

		if err := model.Backward(grad); err != nil {
			return fmt.Errorf("train: iteration %d: backward: %w", i, err)
		}

		opt.Step()

		elapsed := now().Sub(start)
		sess.Accumulate(float64(loss), elapsed)
		sess.Iteration = i + 1

		log.Debug("batch done", "iter", i+1, "loss", loss, "sec_per_batch", elapsed.Seconds())

		if (i+1)%cfg.LogInterval == 0 {
			meanLoss, meanTime := sess.Flush()
			remaining := time.Duration(cfg.NIters-(i+1)) * meanTime

			log.Info("progress",
				"iter", i+1,
				"loss", meanLoss,
				"sec_per_batch", meanTime.Seconds(),
				"estimated_remaining", FormatETA(remaining),
			)
		}

		if (i+1)%cfg.CheckpointEach == 0 {
			if err := cfg.Save(i + 1); err != nil {
				return fmt.Errorf("train: iteration %d: %w", i, err)
			}
			log.Info("checkpoint created", "iter", i+1)
		}
	}

	// Final checkpoint, unconditional; overwrites the periodic one when
	// NIters lands on the cadence.
	if err := cfg.Save(cfg.NIters); err != nil {
		return fmt.Errorf("train: final checkpoint: %w", err)
	}
	log.Info("checkpoint created", "iter", cfg.NIters)

	return nil
}

// FormatETA renders a duration as DD:HH:MM:SS.
func FormatETA(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	secs := int64(d.Seconds())
	days := secs / 86400
	hours := secs % 86400 / 3600
	minutes := secs % 3600 / 60
	seconds := secs % 60

	return fmt.Sprintf("%02d:%02d:%02d:%02d", days, hours, minutes, seconds)
}
