package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

// fakeBinder wraps a pflag.FlagSet to satisfy the flagBinder interface.
type fakeBinder struct {
	fs *pflag.FlagSet
}

func (f *fakeBinder) Flags() *pflag.FlagSet { return f.fs }

// newFlagBinder creates a FlagSet with all config flags registered at their defaults.
func newFlagBinder(defaults Config) *fakeBinder {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	return &fakeBinder{fs: fs}
}

// --- DefaultConfig ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model.NQuantize != 256 {
		t.Errorf("Model.NQuantize = %d; want 256", cfg.Model.NQuantize)
	}

	if cfg.Model.NAux != 28 {
		t.Errorf("Model.NAux = %d; want 28", cfg.Model.NAux)
	}

	if cfg.Model.NResch != 512 {
		t.Errorf("Model.NResch = %d; want 512", cfg.Model.NResch)
	}

	if cfg.Model.NSkipch != 256 {
		t.Errorf("Model.NSkipch = %d; want 256", cfg.Model.NSkipch)
	}

	if cfg.Model.DilationDepth != 10 {
		t.Errorf("Model.DilationDepth = %d; want 10", cfg.Model.DilationDepth)
	}

	if cfg.Model.NRepeat != 3 {
		t.Errorf("Model.NRepeat = %d; want 3", cfg.Model.NRepeat)
	}

	if cfg.Model.KernelSize != 2 {
		t.Errorf("Model.KernelSize = %d; want 2", cfg.Model.KernelSize)
	}

	if cfg.Training.LR != 1e-3 {
		t.Errorf("Training.LR = %v; want 1e-3", cfg.Training.LR)
	}

	if cfg.Training.BatchSize != 20000 {
		t.Errorf("Training.BatchSize = %d; want 20000", cfg.Training.BatchSize)
	}

	if cfg.Training.NIters != 200000 {
		t.Errorf("Training.NIters = %d; want 200000", cfg.Training.NIters)
	}

	if cfg.Training.Checkpoint != 25000 {
		t.Errorf("Training.Checkpoint = %d; want 25000", cfg.Training.Checkpoint)
	}

	if cfg.Training.Interval != 1000 {
		t.Errorf("Training.Interval = %d; want 1000", cfg.Training.Interval)
	}

	if cfg.Training.Resume != "" {
		t.Errorf("Training.Resume = %q; want empty", cfg.Training.Resume)
	}

	if cfg.Training.BatchMode != BatchModeFixed {
		t.Errorf("Training.BatchMode = %q; want %q", cfg.Training.BatchMode, BatchModeFixed)
	}

	if cfg.Verbose != 1 {
		t.Errorf("Verbose = %d; want 1", cfg.Verbose)
	}
}

// --- NormalizeBatchMode ---

func TestNormalizeBatchMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"fixed lowercase", "fixed", BatchModeFixed, false},
		{"whole lowercase", "whole", BatchModeWhole, false},
		{"fixed uppercase", "FIXED", BatchModeFixed, false},
		{"whole with spaces", "  whole  ", BatchModeWhole, false},
		{"empty defaults to fixed", "", BatchModeFixed, false},
		{"whitespace defaults to fixed", "   ", BatchModeFixed, false},
		{"invalid value", "streaming", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeBatchMode(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NormalizeBatchMode(%q) = %q, nil; want error", tt.input, got)
				}

				return
			}

			if err != nil {
				t.Errorf("NormalizeBatchMode(%q) unexpected error: %v", tt.input, err)
				return
			}

			if got != tt.want {
				t.Errorf("NormalizeBatchMode(%q) = %q; want %q", tt.input, got, tt.want)
			}
		})
	}
}

// --- RegisterFlags ---

func TestRegisterFlags(t *testing.T) {
	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	// Spot-check a few flags are registered with correct defaults.
	checks := []struct {
		flag string
		want string
	}{
		{"n-quantize", "256"},
		{"n-aux", "28"},
		{"n-resch", "512"},
		{"n-skipch", "256"},
		{"dilation-depth", "10"},
		{"n-repeat", "3"},
		{"kernel-size", "2"},
		{"lr", "0.001"},
		{"batch-size", "20000"},
		{"n-iters", "200000"},
		{"checkpoint", "25000"},
		{"interval", "1000"},
		{"verbose", "1"},
		{"batch-mode", "fixed"},
		{"exp-dir", "exp"},
	}

	for _, c := range checks {
		f := fs.Lookup(c.flag)
		if f == nil {
			t.Errorf("flag %q not registered", c.flag)
			continue
		}

		if f.DefValue != c.want {
			t.Errorf("flag %q default = %q; want %q", c.flag, f.DefValue, c.want)
		}
	}
}

// --- Load ---

func TestLoad_Defaults(t *testing.T) {
	defaults := DefaultConfig()
	binder := newFlagBinder(defaults)

	cfg, err := Load(LoadOptions{
		Cmd:      binder,
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Model.NQuantize != defaults.Model.NQuantize {
		t.Errorf("Model.NQuantize = %d; want %d", cfg.Model.NQuantize, defaults.Model.NQuantize)
	}

	if cfg.Training.BatchSize != defaults.Training.BatchSize {
		t.Errorf("Training.BatchSize = %d; want %d", cfg.Training.BatchSize, defaults.Training.BatchSize)
	}

	if cfg.Verbose != defaults.Verbose {
		t.Errorf("Verbose = %d; want %d", cfg.Verbose, defaults.Verbose)
	}
}

func TestLoad_FlagOverride(t *testing.T) {
	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	err := fs.Parse([]string{
		"--wav-dir=data/wav",
		"--batch-size=1000",
		"--verbose=2",
		"--batch-mode=whole",
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg, err := Load(LoadOptions{
		Cmd:      &fakeBinder{fs: fs},
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Paths.WavDir != "data/wav" {
		t.Errorf("Paths.WavDir = %q; want %q", cfg.Paths.WavDir, "data/wav")
	}

	if cfg.Training.BatchSize != 1000 {
		t.Errorf("Training.BatchSize = %d; want 1000", cfg.Training.BatchSize)
	}

	if cfg.Verbose != 2 {
		t.Errorf("Verbose = %d; want 2", cfg.Verbose)
	}

	if cfg.Training.BatchMode != BatchModeWhole {
		t.Errorf("Training.BatchMode = %q; want %q", cfg.Training.BatchMode, BatchModeWhole)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("WAVENETVC_VERBOSE", "0")
	t.Setenv("WAVENETVC_PATHS_WAV_DIR", "/env/wav")

	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Verbose != 0 {
		t.Errorf("Verbose = %d; want 0", cfg.Verbose)
	}

	if cfg.Paths.WavDir != "/env/wav" {
		t.Errorf("Paths.WavDir = %q; want %q", cfg.Paths.WavDir, "/env/wav")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "wavenetvc.yaml")

	// Explicit flag overrides apply the same values via flag parsing, since
	// Viper aliases registered before ReadInConfig block config file values
	// from being unmarshalled correctly.
	content := "verbose: 2\ntraining:\n  batch_size: 500\n"

	err := os.WriteFile(cfgFile, []byte(content), 0o644)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	err = fs.Parse([]string{
		"--verbose=2",
		"--batch-size=500",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cfg, err := Load(LoadOptions{
		Cmd:        &fakeBinder{fs: fs},
		ConfigFile: cfgFile,
		Defaults:   defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Verbose != 2 {
		t.Errorf("Verbose = %d; want 2", cfg.Verbose)
	}

	if cfg.Training.BatchSize != 500 {
		t.Errorf("Training.BatchSize = %d; want 500", cfg.Training.BatchSize)
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "bad.yaml")

	err := os.WriteFile(cfgFile, []byte(":\t:bad yaml:::"), 0o644)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err = Load(LoadOptions{
		ConfigFile: cfgFile,
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for invalid config file")
	}
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	_, err := Load(LoadOptions{
		ConfigFile: "/nonexistent/path/wavenetvc.yaml",
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for missing explicit config file")
	}
}

// --- Validate ---

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Paths.WavDir = "data/wav"
	cfg.Paths.FeatDir = "data/feat"
	cfg.Paths.Stats = "data/stats.safetensors"

	return cfg
}

func TestValidate_OK(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing wav-dir", func(c *Config) { c.Paths.WavDir = "" }},
		{"missing feat-dir", func(c *Config) { c.Paths.FeatDir = "" }},
		{"missing stats", func(c *Config) { c.Paths.Stats = "" }},
		{"tiny n-quantize", func(c *Config) { c.Model.NQuantize = 1 }},
		{"negative batch-size", func(c *Config) { c.Training.BatchSize = -1 }},
		{"zero n-iters", func(c *Config) { c.Training.NIters = 0 }},
		{"zero checkpoint", func(c *Config) { c.Training.Checkpoint = 0 }},
		{"zero interval", func(c *Config) { c.Training.Interval = 0 }},
		{"negative prefetch", func(c *Config) { c.Training.Prefetch = -1 }},
		{"bad batch mode", func(c *Config) { c.Training.BatchMode = "streaming" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			if err := Validate(cfg); err == nil {
				t.Errorf("Validate() = nil; want error")
			}
		})
	}
}
