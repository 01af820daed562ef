// Package ndarray is a dense row-major float64 tensor.
package ndarray

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Tensor holds Data in row-major order over Shape.
type Tensor struct {
	Shape []int
	Data  []float64
}

// New allocates a zero tensor.
func New(shape ...int) *Tensor {
	return &Tensor{Shape: append([]int(nil), shape...), Data: make([]float64, size(shape))}
}

func size(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// Len returns the number of elements.
func (t *Tensor) Len() int { return len(t.Data) }

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int { return len(t.Shape) }

// Index returns the flat offset of idx. It panics on a wrong rank or an
// index out of range.
func (t *Tensor) Index(idx ...int) int {
	if len(idx) != len(t.Shape) {
		panic(fmt.Sprintf("ndarray: index rank %d for shape %v", len(idx), t.Shape))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= t.Shape[i] {
			panic(fmt.Sprintf("ndarray: index %v out of range for shape %v", idx, t.Shape))
		}
		off = off*t.Shape[i] + v
	}
	return off
}

func (t *Tensor) At(idx ...int) float64 { return t.Data[t.Index(idx...)] }

func (t *Tensor) Set(v float64, idx ...int) { t.Data[t.Index(idx...)] = v }

// Reshape returns a view over the same data with a new shape.
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	if size(shape) != len(t.Data) {
		return nil, fmt.Errorf("cannot reshape %v to %v", t.Shape, shape)
	}
	return &Tensor{Shape: append([]int(nil), shape...), Data: t.Data}, nil
}

// Expand prepends size-1 dimensions until the tensor has rank n.
func (t *Tensor) Expand(n int) *Tensor {
	if len(t.Shape) >= n {
		return t
	}
	shape := make([]int, n-len(t.Shape), n)
	for i := range shape {
		shape[i] = 1
	}
	return &Tensor{Shape: append(shape, t.Shape...), Data: t.Data}
}

// Squeeze drops every size-1 dimension.
func (t *Tensor) Squeeze() *Tensor {
	shape := make([]int, 0, len(t.Shape))
	for _, s := range t.Shape {
		if s != 1 {
			shape = append(shape, s)
		}
	}
	return &Tensor{Shape: shape, Data: t.Data}
}

// Slab returns the sub-tensor at index i of the first dimension, sharing data.
func (t *Tensor) Slab(i int) *Tensor {
	if len(t.Shape) == 0 || i < 0 || i >= t.Shape[0] {
		panic(fmt.Sprintf("ndarray: slab %d out of range for shape %v", i, t.Shape))
	}
	n := size(t.Shape[1:])
	return &Tensor{Shape: append([]int(nil), t.Shape[1:]...), Data: t.Data[i*n : (i+1)*n : (i+1)*n]}
}

// Take selects index i along axis, dropping that axis. The result is a copy.
func (t *Tensor) Take(axis, i int) *Tensor {
	if axis < 0 || axis >= len(t.Shape) || i < 0 || i >= t.Shape[axis] {
		panic(fmt.Sprintf("ndarray: take %d on axis %d out of range for shape %v", i, axis, t.Shape))
	}
	outer := size(t.Shape[:axis])
	inner := size(t.Shape[axis+1:])
	shape := append(append([]int(nil), t.Shape[:axis]...), t.Shape[axis+1:]...)
	out := &Tensor{Shape: shape, Data: make([]float64, outer*inner)}
	for o := 0; o < outer; o++ {
		src := (o*t.Shape[axis] + i) * inner
		copy(out.Data[o*inner:(o+1)*inner], t.Data[src:src+inner])
	}
	return out
}

// Stats summarizes the tensor values, ignoring NaN.
type Stats struct {
	Count int
	Min   float64
	Max   float64
	Mean  float64
}

func (s Stats) String() string {
	return fmt.Sprintf("count=%d min=%g max=%g mean=%g", s.Count, s.Min, s.Max, s.Mean)
}

// Summary computes Stats over the finite values.
func (t *Tensor) Summary() Stats {
	vals := make([]float64, 0, len(t.Data))
	for _, v := range t.Data {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return Stats{}
	}
	return Stats{
		Count: len(vals),
		Min:   floats.Min(vals),
		Max:   floats.Max(vals),
		Mean:  floats.Sum(vals) / float64(len(vals)),
	}
}

// WriteBinary writes the rank, the shape and the data as little-endian
// int64/float64 values.
func (t *Tensor) WriteBinary(w io.Writer) error {
	head := make([]int64, 0, len(t.Shape)+1)
	head = append(head, int64(len(t.Shape)))
	for _, s := range t.Shape {
		head = append(head, int64(s))
	}
	if err := binary.Write(w, binary.LittleEndian, head); err != nil {
		return fmt.Errorf("writing shape: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, t.Data); err != nil {
		return fmt.Errorf("writing data: %w", err)
	}
	return nil
}

// ReadBinary reads a tensor written by WriteBinary.
func ReadBinary(r io.Reader) (*Tensor, error) {
	var rank int64
	if err := binary.Read(r, binary.LittleEndian, &rank); err != nil {
		return nil, fmt.Errorf("reading rank: %w", err)
	}
	if rank < 0 || rank > 16 {
		return nil, fmt.Errorf("bad rank %d", rank)
	}
	shape64 := make([]int64, rank)
	if err := binary.Read(r, binary.LittleEndian, shape64); err != nil {
		return nil, fmt.Errorf("reading shape: %w", err)
	}
	shape := make([]int, rank)
	for i, s := range shape64 {
		shape[i] = int(s)
	}
	t := New(shape...)
	if err := binary.Read(r, binary.LittleEndian, t.Data); err != nil {
		return nil, fmt.Errorf("reading data: %w", err)
	}
	return t, nil
}
