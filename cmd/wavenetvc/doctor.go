package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/example/go-wavenet-vocoder/internal/compute"
	"github.com/example/go-wavenet-vocoder/internal/doctor"
	"github.com/example/go-wavenet-vocoder/internal/feature"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local environment and corpus checks",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			dcfg := doctor.Config{
				Accelerator: func() (string, error) {
					if err := compute.Require(); err != nil {
						return "", err
					}
					return compute.Detect().Name, nil
				},
				WavDir:    cfg.Paths.WavDir,
				FeatDir:   cfg.Paths.FeatDir,
				StatsPath: cfg.Paths.Stats,
				ReadStats: func(path string) error {
					_, err := feature.LoadStats(path)
					return err
				},
				ExpDir: cfg.Paths.ExpDir,
			}

			result := doctor.Run(dcfg, os.Stdout)

			if result.Failed() {
				for _, f := range result.Failures() {
					fmt.Fprintf(os.Stderr, "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(os.Stdout, "doctor checks passed")

			return nil
		},
	}

	return cmd
}
