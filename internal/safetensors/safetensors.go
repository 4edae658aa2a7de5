// Package safetensors reads and writes the on-disk tensor container used
// for feature records, normalization statistics, and checkpoints.
//
// The format is: 8-byte little-endian header length, JSON header mapping
// tensor names to {dtype, shape, data_offsets}, then raw tensor data.
// Only float32 tensors are supported.
package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
)

const dtypeF32 = "F32"

// metadataKey is the reserved header entry carrying free-form metadata.
// It is skipped on load.
const metadataKey = "__metadata__"

// Tensor holds a single named float32 tensor.
type Tensor struct {
	Name  string
	Shape []int64
	Data  []float32
}

type headerEntry struct {
	DType   string  `json:"dtype"`
	Shape   []int64 `json:"shape"`
	Offsets [2]int  `json:"data_offsets"`
}

// Load reads a safetensors file into a name-keyed map.
func Load(path string) (map[string]*Tensor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("safetensors: read %s: %w", path, err)
	}

	tensors, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("safetensors: decode %s: %w", path, err)
	}

	return tensors, nil
}

// Decode parses a safetensors payload.
func Decode(raw []byte) (map[string]*Tensor, error) {
	if len(raw) < 8 {
		return nil, errors.New("payload shorter than header length prefix")
	}

	headerLen := binary.LittleEndian.Uint64(raw[:8])
	if headerLen > uint64(len(raw)-8) {
		return nil, fmt.Errorf("header length %d exceeds payload size %d", headerLen, len(raw)-8)
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(raw[8:8+headerLen], &header); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}

	data := raw[8+headerLen:]
	tensors := make(map[string]*Tensor, len(header))

	for name, entryRaw := range header {
		if name == metadataKey {
			continue
		}

		var entry headerEntry
		if err := json.Unmarshal(entryRaw, &entry); err != nil {
			return nil, fmt.Errorf("tensor %q: parse entry: %w", name, err)
		}

		if entry.DType != dtypeF32 {
			return nil, fmt.Errorf("tensor %q: unsupported dtype %q", name, entry.DType)
		}

		start, end := entry.Offsets[0], entry.Offsets[1]
		if start < 0 || end < start || end > len(data) {
			return nil, fmt.Errorf("tensor %q: offsets [%d, %d) out of range", name, start, end)
		}

		elems, err := elemCount(entry.Shape)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", name, err)
		}

		if int64(end-start) != elems*4 {
			return nil, fmt.Errorf("tensor %q: shape %v expects %d bytes, got %d", name, entry.Shape, elems*4, end-start)
		}

		values := make([]float32, elems)
		for i := range values {
			values[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[start+i*4:]))
		}

		tensors[name] = &Tensor{
			Name:  name,
			Shape: append([]int64(nil), entry.Shape...),
			Data:  values,
		}
	}

	return tensors, nil
}

// Save writes tensors to path in safetensors format, overwriting any
// existing file.
func Save(path string, tensors []Tensor) error {
	payload, err := Encode(tensors)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("safetensors: write %s: %w", path, err)
	}

	return nil
}

// Encode serializes tensors into a safetensors payload. Tensors are laid
// out in name order so identical inputs produce identical bytes.
func Encode(tensors []Tensor) ([]byte, error) {
	if len(tensors) == 0 {
		return nil, errors.New("safetensors: no tensors to encode")
	}

	sorted := make([]Tensor, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	header := make(map[string]headerEntry, len(sorted))

	var raw []byte
	for _, t := range sorted {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return nil, errors.New("safetensors: tensor name must not be empty")
		}

		if _, exists := header[name]; exists {
			return nil, fmt.Errorf("safetensors: duplicate tensor name %q", name)
		}

		elems, err := elemCount(t.Shape)
		if err != nil {
			return nil, fmt.Errorf("safetensors: tensor %q: %w", name, err)
		}

		if int64(len(t.Data)) != elems {
			return nil, fmt.Errorf("safetensors: tensor %q shape %v expects %d elements, got %d", name, t.Shape, elems, len(t.Data))
		}

		start := len(raw)
		raw = append(raw, make([]byte, len(t.Data)*4)...)
		for i, v := range t.Data {
			binary.LittleEndian.PutUint32(raw[start+i*4:], math.Float32bits(v))
		}

		header[name] = headerEntry{
			DType:   dtypeF32,
			Shape:   append([]int64(nil), t.Shape...),
			Offsets: [2]int{start, len(raw)},
		}
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("safetensors: encode header: %w", err)
	}

	out := make([]byte, 0, 8+len(headerJSON)+len(raw))
	lenPrefix := make([]byte, 8)
	binary.LittleEndian.PutUint64(lenPrefix, uint64(len(headerJSON)))
	out = append(out, lenPrefix...)
	out = append(out, headerJSON...)
	out = append(out, raw...)

	return out, nil
}

func elemCount(shape []int64) (int64, error) {
	total := int64(1)
	for _, dim := range shape {
		if dim < 0 {
			return 0, fmt.Errorf("negative dimension in shape %v", shape)
		}
		total *= dim
	}

	return total, nil
}
