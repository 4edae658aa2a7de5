package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := make([]float32, 256)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * float64(i) / 64))
	}

	raw, err := EncodeWAV(in, 16000)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	out, rate, err := DecodeWAV(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if rate != 16000 {
		t.Fatalf("sample rate = %d, want 16000", rate)
	}

	if len(out) != len(in) {
		t.Fatalf("decoded %d samples, want %d", len(out), len(in))
	}

	// 16-bit quantization allows ~1/32767 error per sample.
	for i := range in {
		if d := math.Abs(float64(out[i] - in[i])); d > 1e-3 {
			t.Fatalf("sample %d = %v, want ~%v", i, out[i], in[i])
		}
	}
}

func TestLoadWAV(t *testing.T) {
	raw, err := EncodeWAV([]float32{0, 0.5, -0.5, 0.25}, 8000)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	path := filepath.Join(t.TempDir(), "utt.wav")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	samples, rate, err := LoadWAV(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if rate != 8000 || len(samples) != 4 {
		t.Fatalf("got %d samples at %d Hz, want 4 at 8000", len(samples), rate)
	}
}

func TestLoadWAVMissing(t *testing.T) {
	if _, _, err := LoadWAV(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDecodeWAVInvalid(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("definitely not RIFF data")); err == nil {
		t.Fatal("expected error for invalid WAV bytes")
	}

	if _, _, err := DecodeWAV(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}
