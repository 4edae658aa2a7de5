// Package corpus discovers matched waveform/feature file pairs.
package corpus

import (
	"fmt"
	"io/fs"
	"math/rand/v2"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// WavExt is the waveform file extension searched for under wavDir.
	WavExt = ".wav"
	// FeatExt is the feature file extension substituted for WavExt.
	FeatExt = ".safetensors"
)

// Pair is one corpus entry: a waveform file and its feature file.
// The feature path is derived from the waveform path, never discovered.
type Pair struct {
	Wav  string
	Feat string
}

// List is an ordered set of corpus pairs. The ordering is deterministic
// after Index and changes only through Shuffle.
type List struct {
	pairs []Pair
}

// Index walks wavDir for waveform files and derives each feature path by
// re-rooting the relative path under featDir and swapping the extension.
// Results are sorted by relative path before any shuffling so two calls
// over the same tree produce identical ordering.
func Index(wavDir, featDir string) (*List, error) {
	var rels []string

	err := filepath.WalkDir(wavDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), WavExt) {
			return nil
		}

		rel, err := filepath.Rel(wavDir, path)
		if err != nil {
			return err
		}

		rels = append(rels, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("corpus: walk %s: %w", wavDir, err)
	}

	if len(rels) == 0 {
		return nil, fmt.Errorf("corpus: no %s files under %s", WavExt, wavDir)
	}

	sort.Strings(rels)

	pairs := make([]Pair, len(rels))
	for i, rel := range rels {
		stem := rel[:len(rel)-len(filepath.Ext(rel))]
		pairs[i] = Pair{
			Wav:  filepath.Join(wavDir, rel),
			Feat: filepath.Join(featDir, stem+FeatExt),
		}
	}

	return &List{pairs: pairs}, nil
}

// Len returns the number of pairs.
func (l *List) Len() int {
	if l == nil {
		return 0
	}

	return len(l.pairs)
}

// Pair returns the i-th pair in the current ordering.
func (l *List) Pair(i int) Pair {
	return l.pairs[i]
}

// Pairs returns a copy of the pairs in the current ordering.
func (l *List) Pairs() []Pair {
	return append([]Pair(nil), l.pairs...)
}

// Shuffle permutes the list in place with one permutation drawn from rng,
// keeping each waveform aligned with its feature file. Calling it again
// draws a fresh independent permutation; the generator invokes it once per
// full pass over the corpus.
func (l *List) Shuffle(rng *rand.Rand) {
	swap := func(i, j int) { l.pairs[i], l.pairs[j] = l.pairs[j], l.pairs[i] }

	if rng != nil {
		rng.Shuffle(len(l.pairs), swap)
		return
	}

	rand.Shuffle(len(l.pairs), swap)
}
