package feature

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/example/go-wavenet-vocoder/internal/safetensors"
	"github.com/example/go-wavenet-vocoder/internal/tensor"
)

func TestMuLawEncodeRange(t *testing.T) {
	x := []float32{-1, -0.5, -0.01, 0, 0.01, 0.5, 1}
	y := MuLawEncode(x, 256)

	for i, cls := range y {
		if cls < 0 || cls > 255 {
			t.Fatalf("class %d for x=%v out of [0, 255]", cls, x[i])
		}
	}

	if y[0] != 0 {
		t.Fatalf("encode(-1) = %d, want 0", y[0])
	}
	if y[len(y)-1] != 255 {
		t.Fatalf("encode(1) = %d, want 255", y[len(y)-1])
	}

	// Midpoint maps to the middle of the class range.
	if mid := MuLawEncode([]float32{0}, 256)[0]; mid != 127 && mid != 128 {
		t.Fatalf("encode(0) = %d, want 127 or 128", mid)
	}
}

func TestMuLawMonotonic(t *testing.T) {
	prev := int64(-1)
	for i := 0; i <= 200; i++ {
		x := float32(i)/100 - 1 // [-1, 1]
		cls := MuLawEncode([]float32{x}, 256)[0]
		if cls < prev {
			t.Fatalf("encoding not monotonic at x=%v: %d < %d", x, cls, prev)
		}
		prev = cls
	}
}

func TestMuLawRoundTrip(t *testing.T) {
	x := []float32{-0.9, -0.3, -0.05, 0, 0.05, 0.3, 0.9}
	got := MuLawDecode(MuLawEncode(x, 256), 256)

	for i := range x {
		if d := math.Abs(float64(got[i] - x[i])); d > 0.02 {
			t.Fatalf("round trip x=%v -> %v, error %v too large", x[i], got[i], d)
		}
	}
}

func writeRecord(t *testing.T, dir string, withSpeakerCode bool) string {
	t.Helper()

	tensors := []safetensors.Tensor{
		{Name: KeyFeat, Shape: []int64{4, 3}, Data: []float32{
			1, 2, 3,
			4, 5, 6,
			7, 8, 9,
			10, 11, 12,
		}},
	}
	if withSpeakerCode {
		tensors = append(tensors, safetensors.Tensor{
			Name: KeySpeakerCode, Shape: []int64{2}, Data: []float32{0.25, -0.25},
		})
	}

	path := filepath.Join(dir, "utt.safetensors")
	if err := safetensors.Save(path, tensors); err != nil {
		t.Fatalf("save record: %v", err)
	}

	return path
}

func TestReadRecord(t *testing.T) {
	path := writeRecord(t, t.TempDir(), true)

	rec, err := ReadRecord(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if rec.Feats.Rows() != 4 || rec.Feats.Cols() != 3 {
		t.Fatalf("feats shape = %dx%d, want 4x3", rec.Feats.Rows(), rec.Feats.Cols())
	}

	if len(rec.SpeakerCode) != 2 {
		t.Fatalf("speaker code len = %d, want 2", len(rec.SpeakerCode))
	}
}

func TestReadRecordWithoutSpeakerCode(t *testing.T) {
	path := writeRecord(t, t.TempDir(), false)

	rec, err := ReadRecord(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if rec.SpeakerCode != nil {
		t.Fatal("speaker code should be absent")
	}
}

func TestReadRecordMissingFeat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.safetensors")
	err := safetensors.Save(path, []safetensors.Tensor{
		{Name: "other", Shape: []int64{1}, Data: []float32{1}},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := ReadRecord(path); err == nil {
		t.Fatal("expected error for record without feat tensor")
	}
}

func TestTileConcat(t *testing.T) {
	feats, _ := tensor.FromData([]float32{1, 2, 3, 4}, 2, 2)

	got, err := TileConcat(feats, []float32{9, 8})
	if err != nil {
		t.Fatalf("tile-concat: %v", err)
	}

	if got.Rows() != 2 || got.Cols() != 4 {
		t.Fatalf("shape = %dx%d, want 2x4", got.Rows(), got.Cols())
	}

	for r := range 2 {
		row := got.Row(r)
		if row[2] != 9 || row[3] != 8 {
			t.Fatalf("row %d = %v, want code [9 8] appended", r, row)
		}
	}
}

func TestStatsNormalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.safetensors")
	err := safetensors.Save(path, []safetensors.Tensor{
		{Name: KeyMean, Shape: []int64{2}, Data: []float32{1, 2}},
		{Name: KeyScale, Shape: []int64{2}, Data: []float32{2, 4}},
	})
	if err != nil {
		t.Fatalf("save stats: %v", err)
	}

	stats, err := LoadStats(path)
	if err != nil {
		t.Fatalf("load stats: %v", err)
	}

	// Third column (speaker code) is outside the statistics and passes through.
	m, _ := tensor.FromData([]float32{3, 6, 7, 5, 10, 7}, 2, 3)
	got, err := stats.Normalize(m)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	want := []float32{1, 1, 7, 2, 2, 7}
	for i, w := range want {
		if got.RawData()[i] != w {
			t.Fatalf("normalized[%d] = %v, want %v", i, got.RawData()[i], w)
		}
	}

	// Input untouched.
	if m.At(0, 0) != 3 {
		t.Fatal("normalize must not mutate its input")
	}
}

func TestLoadStatsZeroScale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.safetensors")
	err := safetensors.Save(path, []safetensors.Tensor{
		{Name: KeyMean, Shape: []int64{1}, Data: []float32{0}},
		{Name: KeyScale, Shape: []int64{1}, Data: []float32{0}},
	})
	if err != nil {
		t.Fatalf("save stats: %v", err)
	}

	if _, err := LoadStats(path); err == nil {
		t.Fatal("expected error for zero scale")
	}
}

func TestComposeWave(t *testing.T) {
	double := func(x []float32) []float32 {
		out := make([]float32, len(x))
		for i, v := range x {
			out[i] = 2 * v
		}
		return out
	}

	tr := ComposeWave(MuLawTransform(256), double)

	got := tr([]float32{0.25})
	want := MuLawEncode([]float32{0.5}, 256)
	if got[0] != want[0] {
		t.Fatalf("composed transform = %d, want %d", got[0], want[0])
	}
}
