// Package batch turns a corpus of variable-length utterances into an
// endless, shuffled stream of aligned fixed-size training windows.
package batch

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/example/go-wavenet-vocoder/internal/audio"
	"github.com/example/go-wavenet-vocoder/internal/corpus"
	"github.com/example/go-wavenet-vocoder/internal/feature"
	"github.com/example/go-wavenet-vocoder/internal/tensor"
)

// ErrStarved is returned when a full pass over the corpus produced no
// window, i.e. every utterance is shorter than one training window.
var ErrStarved = errors.New("batch: no utterance is long enough for a single window")

// Batch is one training example: a quantized input window, its conditioning
// features in channel-first layout, and the next-sample prediction target.
// Target[i] is the class of the sample following Input[i].
type Batch struct {
	Input  []int64
	Feats  *tensor.Matrix // [dims, len(Input)]
	Target []int64
}

// Config parameterizes a Generator.
type Config struct {
	Pairs          *corpus.List
	ReceptiveField int
	// BatchSize selects fixed-size emission when > 0; 0 emits one batch
	// per whole utterance.
	BatchSize      int
	WaveTransform  feature.WaveTransform
	FeatTransform  feature.FeatTransform // optional
	UseSpeakerCode bool
	Shuffle        bool
	// Rand drives shuffling. nil uses the global source.
	Rand *rand.Rand

	// LoadWave and LoadRecord default to the audio and feature readers;
	// tests inject synthetic loaders.
	LoadWave   func(path string) ([]float32, error)
	LoadRecord func(path string) (*feature.Record, error)
}

// Generator is the explicit state machine behind the batch stream: the
// shuffled file ordering plus cursor (outer state) and the rolling window
// buffers of the current utterance (per-file state). It is not safe for
// concurrent use; wrap it in a Prefetcher to overlap I/O with training.
type Generator struct {
	cfg    Config
	cursor int

	// Buffer pair for fixed-size emission, seeded per file and drained
	// window by window.
	waveBuf []float32
	featBuf *tensor.Matrix

	// filesSinceEmit detects starvation: a full corpus pass in which no
	// file yielded a window.
	filesSinceEmit int
}

// New validates cfg and returns a ready generator. When shuffling is
// enabled the initial ordering is already permuted.
func New(cfg Config) (*Generator, error) {
	if cfg.Pairs.Len() == 0 {
		return nil, errors.New("batch: empty corpus")
	}

	if cfg.WaveTransform == nil {
		return nil, errors.New("batch: wave transform is required")
	}

	if cfg.BatchSize > 0 && cfg.ReceptiveField <= 0 {
		return nil, fmt.Errorf("batch: receptive field %d must be positive in fixed-size mode", cfg.ReceptiveField)
	}

	if cfg.LoadWave == nil {
		cfg.LoadWave = func(path string) ([]float32, error) {
			samples, _, err := audio.LoadWAV(path)
			return samples, err
		}
	}

	if cfg.LoadRecord == nil {
		cfg.LoadRecord = feature.ReadRecord
	}

	if cfg.Shuffle {
		cfg.Pairs.Shuffle(cfg.Rand)
	}

	return &Generator{cfg: cfg}, nil
}

// Next produces the next training batch. The corpus is cyclic: after the
// last file of the current ordering the list is reshuffled and the cursor
// resets, so the stream never ends on its own.
func (g *Generator) Next() (*Batch, error) {
	windowLen := g.cfg.ReceptiveField + g.cfg.BatchSize

	for {
		if g.cfg.BatchSize > 0 && len(g.waveBuf) > windowLen {
			return g.emitWindow(windowLen)
		}

		if g.filesSinceEmit > g.cfg.Pairs.Len() {
			return nil, ErrStarved
		}

		if err := g.loadNextFile(); err != nil {
			return nil, err
		}

		if g.cfg.BatchSize == 0 {
			if len(g.waveBuf) < 2 {
				continue // too short for an input/target split
			}
			return g.emitWindow(len(g.waveBuf))
		}
	}
}

// loadNextFile advances the outer cursor, reshuffling on wraparound, and
// seeds the buffer pair with the aligned per-file working sequences. Any
// remainder from the previous file is dropped.
func (g *Generator) loadNextFile() error {
	if g.cursor >= g.cfg.Pairs.Len() {
		if g.cfg.Shuffle {
			g.cfg.Pairs.Shuffle(g.cfg.Rand)
		}
		g.cursor = 0
	}

	pair := g.cfg.Pairs.Pair(g.cursor)
	g.cursor++
	g.filesSinceEmit++

	wave, err := g.cfg.LoadWave(pair.Wav)
	if err != nil {
		return fmt.Errorf("batch: load waveform: %w", err)
	}

	rec, err := g.cfg.LoadRecord(pair.Feat)
	if err != nil {
		return fmt.Errorf("batch: load features: %w", err)
	}

	feats := rec.Feats
	if g.cfg.UseSpeakerCode {
		if len(rec.SpeakerCode) == 0 {
			return fmt.Errorf("batch: %s has no speaker code", pair.Feat)
		}
		// Broadcast before alignment; the tiled code matches the feature
		// frame count by construction.
		feats, err = feature.TileConcat(feats, rec.SpeakerCode)
		if err != nil {
			return fmt.Errorf("batch: speaker code: %w", err)
		}
	}

	g.waveBuf, g.featBuf = AlignLengths(wave, feats)
	return nil
}

// emitWindow slices one window off the buffer pair, applies the transforms
// to the slice, splits input/target by the next-sample shift, and advances
// the buffers by the stride. In fixed-size mode consecutive windows overlap
// by exactly the receptive field.
func (g *Generator) emitWindow(windowLen int) (*Batch, error) {
	waveSlice := append([]float32(nil), g.waveBuf[:windowLen]...)
	featSlice, err := g.featBuf.NarrowRows(0, windowLen)
	if err != nil {
		return nil, fmt.Errorf("batch: window slice: %w", err)
	}

	classes := g.cfg.WaveTransform(waveSlice)
	if len(classes) != windowLen {
		return nil, fmt.Errorf("batch: wave transform changed window length %d -> %d", windowLen, len(classes))
	}

	if g.cfg.FeatTransform != nil {
		featSlice, err = g.cfg.FeatTransform(featSlice)
		if err != nil {
			return nil, fmt.Errorf("batch: feature transform: %w", err)
		}
	}

	featIn, err := featSlice.NarrowRows(0, windowLen-1)
	if err != nil {
		return nil, fmt.Errorf("batch: feature shift: %w", err)
	}

	b := &Batch{
		Input:  classes[:windowLen-1],
		Feats:  featIn.Transpose(),
		Target: classes[1:],
	}

	if g.cfg.BatchSize > 0 {
		stride := g.cfg.BatchSize
		g.waveBuf = g.waveBuf[stride:]
		g.featBuf, err = g.featBuf.NarrowRows(stride, g.featBuf.Rows()-stride)
		if err != nil {
			return nil, fmt.Errorf("batch: advance buffers: %w", err)
		}
	} else {
		g.waveBuf = nil
		g.featBuf = nil
	}

	g.filesSinceEmit = 0
	return b, nil
}
