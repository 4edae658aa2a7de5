// Package config loads trainer settings from defaults, an optional config
// file, environment variables, and command-line flags, in ascending
// precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths    PathsConfig    `mapstructure:"paths"`
	Model    ModelConfig    `mapstructure:"model"`
	Training TrainingConfig `mapstructure:"training"`
	Runtime  RuntimeConfig  `mapstructure:"runtime"`

	Verbose int `mapstructure:"verbose"`
}

type PathsConfig struct {
	WavDir  string `mapstructure:"wav_dir"`
	FeatDir string `mapstructure:"feat_dir"`
	ExpDir  string `mapstructure:"exp_dir"`
	Stats   string `mapstructure:"stats"`
}

type ModelConfig struct {
	NQuantize     int `mapstructure:"n_quantize"`
	NAux          int `mapstructure:"n_aux"`
	NResch        int `mapstructure:"n_resch"`
	NSkipch       int `mapstructure:"n_skipch"`
	DilationDepth int `mapstructure:"dilation_depth"`
	NRepeat       int `mapstructure:"n_repeat"`
	KernelSize    int `mapstructure:"kernel_size"`
}

type TrainingConfig struct {
	LR             float64 `mapstructure:"lr"`
	BatchSize      int     `mapstructure:"batch_size"`
	NIters         int     `mapstructure:"n_iters"`
	Checkpoint     int     `mapstructure:"checkpoint"`
	Interval       int     `mapstructure:"interval"`
	Resume         string  `mapstructure:"resume"`
	Seed           uint64  `mapstructure:"seed"`
	UseSpeakerCode bool    `mapstructure:"use_speaker_code"`
	NoShuffle      bool    `mapstructure:"no_shuffle"`
	Prefetch       int     `mapstructure:"prefetch"`
	BatchMode      string  `mapstructure:"batch_mode"`
}

type RuntimeConfig struct {
	Threads int `mapstructure:"threads"`
}

// Batch modes: fixed-size overlap windows or one whole utterance per batch.
const (
	BatchModeFixed = "fixed"
	BatchModeWhole = "whole"
)

// NormalizeBatchMode canonicalizes the batch mode string; empty defaults
// to fixed.
func NormalizeBatchMode(raw string) (string, error) {
	mode := strings.ToLower(strings.TrimSpace(raw))
	if mode == "" {
		mode = BatchModeFixed
	}
	switch mode {
	case BatchModeFixed, BatchModeWhole:
		return mode, nil
	default:
		return "", fmt.Errorf("invalid batch mode %q (expected %s|%s)", raw, BatchModeFixed, BatchModeWhole)
	}
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			WavDir:  "",
			FeatDir: "",
			ExpDir:  "exp",
			Stats:   "",
		},
		Model: ModelConfig{
			NQuantize:     256,
			NAux:          28,
			NResch:        512,
			NSkipch:       256,
			DilationDepth: 10,
			NRepeat:       3,
			KernelSize:    2,
		},
		Training: TrainingConfig{
			LR:             1e-3,
			BatchSize:      20000,
			NIters:         200000,
			Checkpoint:     25000,
			Interval:       1000,
			Resume:         "",
			Seed:           1,
			UseSpeakerCode: false,
			NoShuffle:      false,
			Prefetch:       0,
			BatchMode:      BatchModeFixed,
		},
		Runtime: RuntimeConfig{
			Threads: 0,
		},
		Verbose: 1,
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("wav-dir", defaults.Paths.WavDir, "Directory of training waveforms")
	fs.String("feat-dir", defaults.Paths.FeatDir, "Directory of auxiliary feature files")
	fs.String("exp-dir", defaults.Paths.ExpDir, "Output directory for checkpoints")
	fs.String("stats", defaults.Paths.Stats, "Path to the feature statistics file")
	fs.Int("n-quantize", defaults.Model.NQuantize, "Number of waveform quantization levels")
	fs.Int("n-aux", defaults.Model.NAux, "Number of auxiliary feature dimensions")
	fs.Int("n-resch", defaults.Model.NResch, "Number of residual channels")
	fs.Int("n-skipch", defaults.Model.NSkipch, "Number of skip channels")
	fs.Int("dilation-depth", defaults.Model.DilationDepth, "Dilation doubling depth per repeat")
	fs.Int("n-repeat", defaults.Model.NRepeat, "Number of dilation stack repeats")
	fs.Int("kernel-size", defaults.Model.KernelSize, "Dilated convolution kernel size")
	fs.Float64("lr", defaults.Training.LR, "Learning rate")
	fs.Int("batch-size", defaults.Training.BatchSize, "Samples per training window")
	fs.Int("n-iters", defaults.Training.NIters, "Total number of training iterations")
	fs.Int("checkpoint", defaults.Training.Checkpoint, "Iterations between checkpoints")
	fs.Int("interval", defaults.Training.Interval, "Iterations between progress reports")
	fs.String("resume", defaults.Training.Resume, "Checkpoint file to resume from")
	fs.Uint64("seed", defaults.Training.Seed, "Corpus shuffle and init seed")
	fs.Bool("use-speaker-code", defaults.Training.UseSpeakerCode, "Append speaker codes to features")
	fs.Bool("no-shuffle", defaults.Training.NoShuffle, "Keep corpus in sorted order")
	fs.Int("prefetch", defaults.Training.Prefetch, "Batches to prepare ahead (0 disables)")
	fs.String("batch-mode", defaults.Training.BatchMode, "Batch mode: fixed or whole")
	fs.Int("threads", defaults.Runtime.Threads, "Worker goroutines for math kernels (0 = all CPUs)")
	fs.Int("verbose", defaults.Verbose, "Verbosity: 0 warnings, 1 progress, 2 per-batch")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("WAVENETVC")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("wavenetvc")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

// Validate rejects settings the trainer cannot run with. Paths are checked
// for presence only; existence is the doctor's job.
func Validate(cfg Config) error {
	if cfg.Paths.WavDir == "" {
		return fmt.Errorf("wav-dir is required")
	}
	if cfg.Paths.FeatDir == "" {
		return fmt.Errorf("feat-dir is required")
	}
	if cfg.Paths.Stats == "" {
		return fmt.Errorf("stats is required")
	}
	if cfg.Model.NQuantize < 2 {
		return fmt.Errorf("n-quantize must be at least 2, got %d", cfg.Model.NQuantize)
	}
	if cfg.Training.BatchSize < 0 {
		return fmt.Errorf("batch-size must not be negative, got %d", cfg.Training.BatchSize)
	}
	if cfg.Training.NIters <= 0 {
		return fmt.Errorf("n-iters must be positive, got %d", cfg.Training.NIters)
	}
	if cfg.Training.Checkpoint <= 0 {
		return fmt.Errorf("checkpoint must be positive, got %d", cfg.Training.Checkpoint)
	}
	if cfg.Training.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %d", cfg.Training.Interval)
	}
	if cfg.Training.Prefetch < 0 {
		return fmt.Errorf("prefetch must not be negative, got %d", cfg.Training.Prefetch)
	}
	if _, err := NormalizeBatchMode(cfg.Training.BatchMode); err != nil {
		return err
	}

	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.wav_dir", c.Paths.WavDir)
	v.SetDefault("paths.feat_dir", c.Paths.FeatDir)
	v.SetDefault("paths.exp_dir", c.Paths.ExpDir)
	v.SetDefault("paths.stats", c.Paths.Stats)
	v.SetDefault("model.n_quantize", c.Model.NQuantize)
	v.SetDefault("model.n_aux", c.Model.NAux)
	v.SetDefault("model.n_resch", c.Model.NResch)
	v.SetDefault("model.n_skipch", c.Model.NSkipch)
	v.SetDefault("model.dilation_depth", c.Model.DilationDepth)
	v.SetDefault("model.n_repeat", c.Model.NRepeat)
	v.SetDefault("model.kernel_size", c.Model.KernelSize)
	v.SetDefault("training.lr", c.Training.LR)
	v.SetDefault("training.batch_size", c.Training.BatchSize)
	v.SetDefault("training.n_iters", c.Training.NIters)
	v.SetDefault("training.checkpoint", c.Training.Checkpoint)
	v.SetDefault("training.interval", c.Training.Interval)
	v.SetDefault("training.resume", c.Training.Resume)
	v.SetDefault("training.seed", c.Training.Seed)
	v.SetDefault("training.use_speaker_code", c.Training.UseSpeakerCode)
	v.SetDefault("training.no_shuffle", c.Training.NoShuffle)
	v.SetDefault("training.prefetch", c.Training.Prefetch)
	v.SetDefault("training.batch_mode", c.Training.BatchMode)
	v.SetDefault("runtime.threads", c.Runtime.Threads)
	v.SetDefault("verbose", c.Verbose)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("paths.wav_dir", "wav-dir")
	v.RegisterAlias("paths.feat_dir", "feat-dir")
	v.RegisterAlias("paths.exp_dir", "exp-dir")
	v.RegisterAlias("paths.stats", "stats")
	v.RegisterAlias("model.n_quantize", "n-quantize")
	v.RegisterAlias("model.n_aux", "n-aux")
	v.RegisterAlias("model.n_resch", "n-resch")
	v.RegisterAlias("model.n_skipch", "n-skipch")
	v.RegisterAlias("model.dilation_depth", "dilation-depth")
	v.RegisterAlias("model.n_repeat", "n-repeat")
	v.RegisterAlias("model.kernel_size", "kernel-size")
	v.RegisterAlias("training.lr", "lr")
	v.RegisterAlias("training.batch_size", "batch-size")
	v.RegisterAlias("training.n_iters", "n-iters")
	v.RegisterAlias("training.checkpoint", "checkpoint")
	v.RegisterAlias("training.interval", "interval")
	v.RegisterAlias("training.resume", "resume")
	v.RegisterAlias("training.seed", "seed")
	v.RegisterAlias("training.use_speaker_code", "use-speaker-code")
	v.RegisterAlias("training.no_shuffle", "no-shuffle")
	v.RegisterAlias("training.prefetch", "prefetch")
	v.RegisterAlias("training.batch_mode", "batch-mode")
	v.RegisterAlias("runtime.threads", "threads")
}
