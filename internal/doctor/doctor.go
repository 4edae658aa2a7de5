// Package doctor provides environment preflight checks for wavenetvc.
package doctor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// Accelerator returns the detected vector ISA name or an error when the
	// CPU lacks the required extensions.
	Accelerator func() (string, error)
	// WavDir and FeatDir are the corpus directories to verify on disk.
	WavDir  string
	FeatDir string
	// StatsPath is the feature statistics file; checked by ReadStats.
	StatsPath string
	// ReadStats attempts to parse the statistics file at the given path.
	ReadStats func(path string) error
	// ExpDir is the checkpoint output directory; verified writable.
	ExpDir string
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- accelerator ------------------------------------------------------
	if cfg.Accelerator != nil {
		name, err := cfg.Accelerator()
		if err != nil {
			res.fail(fmt.Sprintf("accelerator: %v", err))
			fmt.Fprintf(w, "%s accelerator: %v\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s accelerator: %s\n", PassMark, name)
		}
	}

	// ---- corpus directories -----------------------------------------------
	checkDir(&res, w, "wav dir", cfg.WavDir)
	checkDir(&res, w, "feat dir", cfg.FeatDir)

	// ---- statistics file --------------------------------------------------
	if cfg.StatsPath != "" && cfg.ReadStats != nil {
		if err := cfg.ReadStats(cfg.StatsPath); err != nil {
			res.fail(fmt.Sprintf("stats file %q: %v", cfg.StatsPath, err))
			fmt.Fprintf(w, "%s stats file %s: %v\n", FailMark, cfg.StatsPath, err)
		} else {
			fmt.Fprintf(w, "%s stats file: %s\n", PassMark, cfg.StatsPath)
		}
	}

	// ---- experiment directory ---------------------------------------------
	if cfg.ExpDir != "" {
		if err := checkWritable(cfg.ExpDir); err != nil {
			res.fail(fmt.Sprintf("exp dir %q: %v", cfg.ExpDir, err))
			fmt.Fprintf(w, "%s exp dir %s: not writable (%v)\n", FailMark, cfg.ExpDir, err)
		} else {
			fmt.Fprintf(w, "%s exp dir writable: %s\n", PassMark, cfg.ExpDir)
		}
	}

	return res
}

func checkDir(res *Result, w io.Writer, label, dir string) {
	if dir == "" {
		return
	}

	info, err := os.Stat(dir)
	switch {
	case err != nil:
		res.fail(fmt.Sprintf("%s %q: %v", label, dir, err))
		fmt.Fprintf(w, "%s %s %s: not found\n", FailMark, label, dir)
	case !info.IsDir():
		res.fail(fmt.Sprintf("%s %q: not a directory", label, dir))
		fmt.Fprintf(w, "%s %s %s: not a directory\n", FailMark, label, dir)
	default:
		fmt.Fprintf(w, "%s %s: %s\n", PassMark, label, dir)
	}
}

// checkWritable creates the directory if needed and probes it with a
// temporary file, the same way a checkpoint write would.
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}

	name := f.Name()
	if err := f.Close(); err != nil {
		return err
	}

	return os.Remove(filepath.Clean(name))
}
