package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/example/go-wavenet-vocoder/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	cfgLoaded bool
	activeCfg config.Config
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "wavenetvc",
		Short: "WaveNet vocoder trainer",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			activeCfg = loaded
			cfgLoaded = true
			setupLogger(loaded.Verbose)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newTrainCmd())
	cmd.AddCommand(newDoctorCmd())

	return cmd
}

// setupLogger configures the process-wide slog default logger. Verbosity 0
// shows warnings only, 1 adds progress reports, 2 adds per-batch detail.
func setupLogger(verbose int) {
	var lvl slog.Level
	switch {
	case verbose <= 0:
		lvl = slog.LevelWarn
	case verbose == 1:
		lvl = slog.LevelInfo
	default:
		lvl = slog.LevelDebug
	}
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
}

func requireConfig() (config.Config, error) {
	if !cfgLoaded {
		return config.Config{}, fmt.Errorf("configuration not loaded")
	}
	return activeCfg, nil
}
