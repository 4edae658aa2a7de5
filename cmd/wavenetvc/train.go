package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/example/go-wavenet-vocoder/internal/batch"
	"github.com/example/go-wavenet-vocoder/internal/checkpoint"
	"github.com/example/go-wavenet-vocoder/internal/compute"
	"github.com/example/go-wavenet-vocoder/internal/config"
	"github.com/example/go-wavenet-vocoder/internal/corpus"
	"github.com/example/go-wavenet-vocoder/internal/feature"
	"github.com/example/go-wavenet-vocoder/internal/optim"
	"github.com/example/go-wavenet-vocoder/internal/tensor"
	"github.com/example/go-wavenet-vocoder/internal/train"
	"github.com/example/go-wavenet-vocoder/internal/wavenet"
	"github.com/spf13/cobra"
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the vocoder on a waveform/feature corpus",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if err := config.Validate(cfg); err != nil {
				return err
			}

			return runTraining(cfg)
		},
	}

	return cmd
}

func runTraining(cfg config.Config) error {
	// Refuse to start on a scalar CPU before touching any data.
	if err := compute.Require(); err != nil {
		return err
	}
	slog.Info("accelerator detected", "isa", compute.Detect().Name)

	tensor.SetWorkers(cfg.Runtime.Threads)

	pairs, err := corpus.Index(cfg.Paths.WavDir, cfg.Paths.FeatDir)
	if err != nil {
		return err
	}
	slog.Info("corpus indexed", "utterances", pairs.Len())

	stats, err := feature.LoadStats(cfg.Paths.Stats)
	if err != nil {
		return err
	}

	initRNG := rand.New(rand.NewPCG(cfg.Training.Seed, 1))
	shuffleRNG := rand.New(rand.NewPCG(cfg.Training.Seed, 2))

	model, err := wavenet.New(wavenet.Config{
		NQuantize:     cfg.Model.NQuantize,
		NAux:          cfg.Model.NAux,
		NResch:        cfg.Model.NResch,
		NSkipch:       cfg.Model.NSkipch,
		DilationDepth: cfg.Model.DilationDepth,
		NRepeat:       cfg.Model.NRepeat,
		KernelSize:    cfg.Model.KernelSize,
	}, initRNG)
	if err != nil {
		return err
	}
	slog.Info("model initialized", "receptive_field", model.ReceptiveField())

	opt := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: cfg.Training.LR})

	sess := &train.Session{}
	if cfg.Training.Resume != "" {
		optState, iterations, err := checkpoint.Load(cfg.Training.Resume, model.Parameters())
		if err != nil {
			return err
		}

		if err := opt.LoadState(optState); err != nil {
			return err
		}

		sess.Iteration = iterations
		slog.Info("resumed from checkpoint", "path", cfg.Training.Resume, "iter", iterations)
	}

	mode, err := config.NormalizeBatchMode(cfg.Training.BatchMode)
	if err != nil {
		return err
	}

	batchSize := cfg.Training.BatchSize
	if mode == config.BatchModeWhole {
		batchSize = 0
	}

	gen, err := batch.New(batch.Config{
		Pairs:          pairs,
		ReceptiveField: model.ReceptiveField(),
		BatchSize:      batchSize,
		WaveTransform:  feature.MuLawTransform(cfg.Model.NQuantize),
		FeatTransform:  feature.NormalizeTransform(stats),
		UseSpeakerCode: cfg.Training.UseSpeakerCode,
		Shuffle:        !cfg.Training.NoShuffle,
		Rand:           shuffleRNG,
	})
	if err != nil {
		return err
	}

	var src batch.Source = gen
	if cfg.Training.Prefetch > 0 {
		pf := batch.NewPrefetcher(context.Background(), gen, cfg.Training.Prefetch)
		defer func() {
			if err := pf.Close(); err != nil {
				slog.Warn("prefetcher shutdown", "error", err)
			}
		}()
		src = pf
	}

	save := func(iterations int) error {
		path, err := checkpoint.Save(cfg.Paths.ExpDir, model.Parameters(), opt.State(), iterations)
		if err != nil {
			return err
		}
		slog.Debug("checkpoint written", "path", path)
		return nil
	}

	slog.Info("training started",
		"iter", sess.Iteration,
		"n_iters", cfg.Training.NIters,
		"batch_mode", mode,
		"batch_size", batchSize,
	)

	err = train.Run(train.Config{
		NIters:         cfg.Training.NIters,
		LogInterval:    cfg.Training.Interval,
		CheckpointEach: cfg.Training.Checkpoint,
		Save:           save,
		Logger:         slog.Default(),
	}, model, opt, wavenet.MaskedCrossEntropy, src, sess)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	slog.Info("training finished", "iter", sess.Iteration)

	return nil
}
