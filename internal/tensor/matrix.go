// Package tensor provides the dense float32 containers and math kernels
// used by the feature pipeline and the network.
package tensor

import (
	"errors"
	"fmt"
)

// Matrix is a dense, row-major float32 matrix. Feature sequences are stored
// as [frames, dims]; network activations as [channels, steps].
type Matrix struct {
	rows int
	cols int
	data []float32
}

// NewMatrix creates a zero-initialized rows x cols matrix.
func NewMatrix(rows, cols int) (*Matrix, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("tensor: invalid matrix shape %dx%d", rows, cols)
	}

	return &Matrix{rows: rows, cols: cols, data: make([]float32, rows*cols)}, nil
}

// FromData creates a matrix copying data, which must hold rows*cols values.
func FromData(data []float32, rows, cols int) (*Matrix, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("tensor: invalid matrix shape %dx%d", rows, cols)
	}

	if len(data) != rows*cols {
		return nil, fmt.Errorf("tensor: data length %d does not match shape %dx%d", len(data), rows, cols)
	}

	return &Matrix{rows: rows, cols: cols, data: append([]float32(nil), data...)}, nil
}

func (m *Matrix) Rows() int {
	if m == nil {
		return 0
	}

	return m.rows
}

func (m *Matrix) Cols() int {
	if m == nil {
		return 0
	}

	return m.cols
}

func (m *Matrix) At(r, c int) float32 {
	return m.data[r*m.cols+c]
}

func (m *Matrix) Set(r, c int, v float32) {
	m.data[r*m.cols+c] = v
}

// Row returns row r as a view into the underlying storage.
// Callers that keep the slice must not outlive the matrix.
func (m *Matrix) Row(r int) []float32 {
	return m.data[r*m.cols : (r+1)*m.cols]
}

// RawData returns the underlying data slice. Callers must treat it as
// read-only unless they own the matrix.
func (m *Matrix) RawData() []float32 {
	if m == nil {
		return nil
	}

	return m.data
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	if m == nil {
		return nil
	}

	return &Matrix{rows: m.rows, cols: m.cols, data: append([]float32(nil), m.data...)}
}

// NarrowRows returns a copy of rows [start, start+length).
func (m *Matrix) NarrowRows(start, length int) (*Matrix, error) {
	if m == nil {
		return nil, errors.New("tensor: narrow on nil matrix")
	}

	if start < 0 || length < 0 || start+length > m.rows {
		return nil, fmt.Errorf("tensor: narrow rows [%d, %d) out of range for %d rows", start, start+length, m.rows)
	}

	out := &Matrix{
		rows: length,
		cols: m.cols,
		data: append([]float32(nil), m.data[start*m.cols:(start+length)*m.cols]...),
	}

	return out, nil
}

// Transpose returns a new cols x rows matrix.
func (m *Matrix) Transpose() *Matrix {
	if m == nil {
		return nil
	}

	out := &Matrix{rows: m.cols, cols: m.rows, data: make([]float32, len(m.data))}
	for r := range m.rows {
		base := r * m.cols
		for c := range m.cols {
			out.data[c*m.rows+r] = m.data[base+c]
		}
	}

	return out
}

// ConcatCols returns [m | other] joined along the column axis.
// Both matrices must have the same number of rows.
func (m *Matrix) ConcatCols(other *Matrix) (*Matrix, error) {
	if m == nil || other == nil {
		return nil, errors.New("tensor: concat on nil matrix")
	}

	if m.rows != other.rows {
		return nil, fmt.Errorf("tensor: concat rows mismatch %d vs %d", m.rows, other.rows)
	}

	out := &Matrix{rows: m.rows, cols: m.cols + other.cols, data: make([]float32, m.rows*(m.cols+other.cols))}
	for r := range m.rows {
		dst := out.Row(r)
		copy(dst, m.Row(r))
		copy(dst[m.cols:], other.Row(r))
	}

	return out, nil
}
