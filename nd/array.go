// Package nd holds the dense in-memory representation of chunk and
// hyperslab data: a flat typed buffer in row-major order plus a shape
// vector.
package nd

import (
	"fmt"
	"math"

	"github.com/TuSKan/go-zarr/dtype"
)

// FillTolerance is the relative tolerance used when matching float
// elements against the fill value: sqrt of the float64 machine epsilon.
// Data values within tolerance of the fill sentinel are treated as absent.
var FillTolerance = math.Sqrt(2.220446049250313e-16)

// Array is a dense n-dimensional buffer. The backing slice is one of
// []bool, []int8 ... []float64, flat in row-major (C) order.
type Array struct {
	dt    dtype.DataType
	shape []int
	data  any
}

// NumElements returns the product of shape. The empty shape describes a
// scalar and yields 1.
func NumElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Strides computes the row-major strides for a given shape.
func Strides(shape []int) []int {
	s := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = stride
		stride *= shape[i]
	}
	return s
}

// New allocates an Array of zero values.
func New(dt dtype.DataType, shape []int) *Array {
	n := NumElements(shape)
	var data any
	switch dt {
	case dtype.Bool:
		data = make([]bool, n)
	case dtype.Int8:
		data = make([]int8, n)
	case dtype.Int16:
		data = make([]int16, n)
	case dtype.Int32:
		data = make([]int32, n)
	case dtype.Int64:
		data = make([]int64, n)
	case dtype.Uint8:
		data = make([]uint8, n)
	case dtype.Uint16:
		data = make([]uint16, n)
	case dtype.Uint32:
		data = make([]uint32, n)
	case dtype.Uint64:
		data = make([]uint64, n)
	case dtype.Float32:
		data = make([]float32, n)
	case dtype.Float64:
		data = make([]float64, n)
	default:
		panic(fmt.Sprintf("nd: invalid data type %v", dt))
	}
	return &Array{dt: dt, shape: cloneInts(shape), data: data}
}

// NewFilled allocates an Array with every element set to fill.
func NewFilled(dt dtype.DataType, shape []int, fill any) (*Array, error) {
	a := New(dt, shape)
	if err := a.Fill(fill); err != nil {
		return nil, err
	}
	return a, nil
}

// FromSlice wraps an existing flat slice. The slice element type must match
// dt and its length must equal the product of shape. The slice is not
// copied.
func FromSlice(dt dtype.DataType, shape []int, data any) (*Array, error) {
	want := NumElements(shape)
	got, err := sliceLen(dt, data)
	if err != nil {
		return nil, err
	}
	if got != want {
		return nil, fmt.Errorf("nd: slice has %d elements, shape %v wants %d", got, shape, want)
	}
	return &Array{dt: dt, shape: cloneInts(shape), data: data}, nil
}

// DType returns the element type.
func (a *Array) DType() dtype.DataType { return a.dt }

// Shape returns the dimension lengths. The caller must not mutate it.
func (a *Array) Shape() []int { return a.shape }

// Rank returns the number of dimensions.
func (a *Array) Rank() int { return len(a.shape) }

// Len returns the total number of elements.
func (a *Array) Len() int { return NumElements(a.shape) }

// Data exposes the flat backing slice ([]int32, []float64, ...).
func (a *Array) Data() any { return a.data }

// Clone returns a deep copy.
func (a *Array) Clone() *Array {
	out := New(a.dt, a.shape)
	switch src := a.data.(type) {
	case []bool:
		copy(out.data.([]bool), src)
	case []int8:
		copy(out.data.([]int8), src)
	case []int16:
		copy(out.data.([]int16), src)
	case []int32:
		copy(out.data.([]int32), src)
	case []int64:
		copy(out.data.([]int64), src)
	case []uint8:
		copy(out.data.([]uint8), src)
	case []uint16:
		copy(out.data.([]uint16), src)
	case []uint32:
		copy(out.data.([]uint32), src)
	case []uint64:
		copy(out.data.([]uint64), src)
	case []float32:
		copy(out.data.([]float32), src)
	case []float64:
		copy(out.data.([]float64), src)
	}
	return out
}

// Fill sets every element to v, coercing v to the element type first.
func (a *Array) Fill(v any) error {
	s, err := a.dt.Scalar(v)
	if err != nil {
		return err
	}
	switch d := a.data.(type) {
	case []bool:
		fillSlice(d, s.(bool))
	case []int8:
		fillSlice(d, s.(int8))
	case []int16:
		fillSlice(d, s.(int16))
	case []int32:
		fillSlice(d, s.(int32))
	case []int64:
		fillSlice(d, s.(int64))
	case []uint8:
		fillSlice(d, s.(uint8))
	case []uint16:
		fillSlice(d, s.(uint16))
	case []uint32:
		fillSlice(d, s.(uint32))
	case []uint64:
		fillSlice(d, s.(uint64))
	case []float32:
		fillSlice(d, s.(float32))
	case []float64:
		fillSlice(d, s.(float64))
	}
	return nil
}

// AllEqual reports whether every element equals v. Float comparisons use
// FillTolerance, so an all-fill float buffer is recognized even after a
// lossy round trip; a NaN fill matches NaN elements.
func (a *Array) AllEqual(v any) bool {
	s, err := a.dt.Scalar(v)
	if err != nil {
		return false
	}
	switch d := a.data.(type) {
	case []bool:
		return allExact(d, s.(bool))
	case []int8:
		return allExact(d, s.(int8))
	case []int16:
		return allExact(d, s.(int16))
	case []int32:
		return allExact(d, s.(int32))
	case []int64:
		return allExact(d, s.(int64))
	case []uint8:
		return allExact(d, s.(uint8))
	case []uint16:
		return allExact(d, s.(uint16))
	case []uint32:
		return allExact(d, s.(uint32))
	case []uint64:
		return allExact(d, s.(uint64))
	case []float32:
		want := float64(s.(float32))
		for _, x := range d {
			if !NearFill(float64(x), want) {
				return false
			}
		}
		return true
	case []float64:
		want := s.(float64)
		for _, x := range d {
			if !NearFill(x, want) {
				return false
			}
		}
		return true
	}
	return false
}

// FillMask reports, per element, whether the value matches fill. Float
// comparisons use FillTolerance.
func (a *Array) FillMask(fill any) ([]bool, error) {
	s, err := a.dt.Scalar(fill)
	if err != nil {
		return nil, err
	}
	mask := make([]bool, a.Len())
	switch d := a.data.(type) {
	case []bool:
		maskExact(mask, d, s.(bool))
	case []int8:
		maskExact(mask, d, s.(int8))
	case []int16:
		maskExact(mask, d, s.(int16))
	case []int32:
		maskExact(mask, d, s.(int32))
	case []int64:
		maskExact(mask, d, s.(int64))
	case []uint8:
		maskExact(mask, d, s.(uint8))
	case []uint16:
		maskExact(mask, d, s.(uint16))
	case []uint32:
		maskExact(mask, d, s.(uint32))
	case []uint64:
		maskExact(mask, d, s.(uint64))
	case []float32:
		want := float64(s.(float32))
		for i, x := range d {
			mask[i] = NearFill(float64(x), want)
		}
	case []float64:
		want := s.(float64)
		for i, x := range d {
			mask[i] = NearFill(x, want)
		}
	}
	return mask, nil
}

func maskExact[T comparable](mask []bool, s []T, v T) {
	for i, x := range s {
		mask[i] = x == v
	}
}

// NearFill reports whether x matches the fill sentinel v within
// FillTolerance.
func NearFill(x, v float64) bool {
	if x == v {
		return true
	}
	if math.IsNaN(v) {
		return math.IsNaN(x)
	}
	return math.Abs(x-v) <= FillTolerance*math.Max(1, math.Abs(v))
}

// Region copies out the sub-array starting at off with the given counts.
func (a *Array) Region(off, count []int) (*Array, error) {
	if err := a.checkRegion(off, count); err != nil {
		return nil, err
	}
	out := New(a.dt, count)
	copyBetween(out, make([]int, len(count)), a, off, count)
	return out, nil
}

// SetRegion copies src into the receiver at off. Element types must match.
func (a *Array) SetRegion(off []int, src *Array) error {
	if src.dt != a.dt {
		return fmt.Errorf("nd: cannot copy %v data into %v array", src.dt, a.dt)
	}
	if len(src.shape) != len(a.shape) {
		return fmt.Errorf("nd: rank mismatch: %d vs %d", len(src.shape), len(a.shape))
	}
	if err := a.checkRegion(off, src.shape); err != nil {
		return err
	}
	copyBetween(a, off, src, make([]int, len(src.shape)), src.shape)
	return nil
}

func (a *Array) checkRegion(off, count []int) error {
	if len(off) != len(a.shape) || len(count) != len(a.shape) {
		return fmt.Errorf("nd: region rank mismatch: array rank %d", len(a.shape))
	}
	for d := range a.shape {
		if off[d] < 0 || count[d] < 1 || off[d]+count[d] > a.shape[d] {
			return fmt.Errorf("nd: region [%d,%d) out of bounds for dimension %d of length %d",
				off[d], off[d]+count[d], d, a.shape[d])
		}
	}
	return nil
}

// copyBetween copies a count-shaped block from src at srcOff into dst at
// dstOff. Both arrays must share the element type; bounds are the caller's
// responsibility.
func copyBetween(dst *Array, dstOff []int, src *Array, srcOff, count []int) {
	ds, ss := Strides(dst.shape), Strides(src.shape)
	switch d := dst.data.(type) {
	case []bool:
		copyRegion(d, ds, dstOff, src.data.([]bool), ss, srcOff, count)
	case []int8:
		copyRegion(d, ds, dstOff, src.data.([]int8), ss, srcOff, count)
	case []int16:
		copyRegion(d, ds, dstOff, src.data.([]int16), ss, srcOff, count)
	case []int32:
		copyRegion(d, ds, dstOff, src.data.([]int32), ss, srcOff, count)
	case []int64:
		copyRegion(d, ds, dstOff, src.data.([]int64), ss, srcOff, count)
	case []uint8:
		copyRegion(d, ds, dstOff, src.data.([]uint8), ss, srcOff, count)
	case []uint16:
		copyRegion(d, ds, dstOff, src.data.([]uint16), ss, srcOff, count)
	case []uint32:
		copyRegion(d, ds, dstOff, src.data.([]uint32), ss, srcOff, count)
	case []uint64:
		copyRegion(d, ds, dstOff, src.data.([]uint64), ss, srcOff, count)
	case []float32:
		copyRegion(d, ds, dstOff, src.data.([]float32), ss, srcOff, count)
	case []float64:
		copyRegion(d, ds, dstOff, src.data.([]float64), ss, srcOff, count)
	}
}

// copyRegion recursively copies an n-dimensional block, bulk-copying the
// contiguous innermost dimension.
func copyRegion[T any](dst []T, dstStrides, dstOff []int, src []T, srcStrides, srcOff, count []int) {
	if len(count) == 0 {
		copy(dst[:1], src[:1])
		return
	}

	dstStart, srcStart := 0, 0
	for i := range count {
		dstStart += dstOff[i] * dstStrides[i]
		srcStart += srcOff[i] * srcStrides[i]
	}

	var iterate func(dim, srcIdx, dstIdx int)
	iterate = func(dim, srcIdx, dstIdx int) {
		if dim == len(count)-1 {
			n := count[dim]
			if srcStrides[dim] == 1 && dstStrides[dim] == 1 {
				copy(dst[dstIdx:dstIdx+n], src[srcIdx:srcIdx+n])
				return
			}
			for i := 0; i < n; i++ {
				dst[dstIdx+i*dstStrides[dim]] = src[srcIdx+i*srcStrides[dim]]
			}
			return
		}
		for i := 0; i < count[dim]; i++ {
			iterate(dim+1, srcIdx+i*srcStrides[dim], dstIdx+i*dstStrides[dim])
		}
	}
	iterate(0, srcStart, dstStart)
}

// Transpose returns a copy with dimensions permuted: output dimension i is
// input dimension order[i]. order must be a permutation of 0..rank-1.
func (a *Array) Transpose(order []int) (*Array, error) {
	if err := CheckPermutation(order, len(a.shape)); err != nil {
		return nil, err
	}

	outShape := make([]int, len(a.shape))
	for i, o := range order {
		outShape[i] = a.shape[o]
	}
	out := New(a.dt, outShape)

	// Output strides re-expressed against input dimensions: walking input
	// dimension order[i] advances the output by its stride for dimension i.
	outStrides := Strides(outShape)
	perm := make([]int, len(order))
	for i, o := range order {
		perm[o] = outStrides[i]
	}

	switch d := out.data.(type) {
	case []bool:
		permuteInto(d, a.data.([]bool), a.shape, perm)
	case []int8:
		permuteInto(d, a.data.([]int8), a.shape, perm)
	case []int16:
		permuteInto(d, a.data.([]int16), a.shape, perm)
	case []int32:
		permuteInto(d, a.data.([]int32), a.shape, perm)
	case []int64:
		permuteInto(d, a.data.([]int64), a.shape, perm)
	case []uint8:
		permuteInto(d, a.data.([]uint8), a.shape, perm)
	case []uint16:
		permuteInto(d, a.data.([]uint16), a.shape, perm)
	case []uint32:
		permuteInto(d, a.data.([]uint32), a.shape, perm)
	case []uint64:
		permuteInto(d, a.data.([]uint64), a.shape, perm)
	case []float32:
		permuteInto(d, a.data.([]float32), a.shape, perm)
	case []float64:
		permuteInto(d, a.data.([]float64), a.shape, perm)
	}
	return out, nil
}

// permuteInto scatters src (row-major over srcShape) into dst, where
// dstStridesBySrcDim[d] is the dst stride contributed by src dimension d.
func permuteInto[T any](dst, src []T, srcShape, dstStridesBySrcDim []int) {
	if len(srcShape) == 0 {
		dst[0] = src[0]
		return
	}
	var iterate func(dim, srcIdx, dstIdx int)
	iterate = func(dim, srcIdx, dstIdx int) {
		if dim == len(srcShape)-1 {
			stride := dstStridesBySrcDim[dim]
			for i := 0; i < srcShape[dim]; i++ {
				dst[dstIdx+i*stride] = src[srcIdx+i]
			}
			return
		}
		srcStride := 1
		for _, s := range srcShape[dim+1:] {
			srcStride *= s
		}
		for i := 0; i < srcShape[dim]; i++ {
			iterate(dim+1, srcIdx+i*srcStride, dstIdx+i*dstStridesBySrcDim[dim])
		}
	}
	iterate(0, 0, 0)
}

// CheckPermutation validates that order is a permutation of 0..rank-1.
func CheckPermutation(order []int, rank int) error {
	if len(order) != rank {
		return fmt.Errorf("nd: permutation %v does not match rank %d", order, rank)
	}
	seen := make([]bool, rank)
	for _, o := range order {
		if o < 0 || o >= rank || seen[o] {
			return fmt.Errorf("nd: %v is not a permutation of 0..%d", order, rank-1)
		}
		seen[o] = true
	}
	return nil
}

// InversePermutation returns the permutation that undoes order.
func InversePermutation(order []int) []int {
	inv := make([]int, len(order))
	for i, o := range order {
		inv[o] = i
	}
	return inv
}

func fillSlice[T any](s []T, v T) {
	for i := range s {
		s[i] = v
	}
}

func allExact[T comparable](s []T, v T) bool {
	for _, x := range s {
		if x != v {
			return false
		}
	}
	return true
}

func sliceLen(dt dtype.DataType, data any) (int, error) {
	switch d := data.(type) {
	case []bool:
		if dt == dtype.Bool {
			return len(d), nil
		}
	case []int8:
		if dt == dtype.Int8 {
			return len(d), nil
		}
	case []int16:
		if dt == dtype.Int16 {
			return len(d), nil
		}
	case []int32:
		if dt == dtype.Int32 {
			return len(d), nil
		}
	case []int64:
		if dt == dtype.Int64 {
			return len(d), nil
		}
	case []uint8:
		if dt == dtype.Uint8 {
			return len(d), nil
		}
	case []uint16:
		if dt == dtype.Uint16 {
			return len(d), nil
		}
	case []uint32:
		if dt == dtype.Uint32 {
			return len(d), nil
		}
	case []uint64:
		if dt == dtype.Uint64 {
			return len(d), nil
		}
	case []float32:
		if dt == dtype.Float32 {
			return len(d), nil
		}
	case []float64:
		if dt == dtype.Float64 {
			return len(d), nil
		}
	default:
		return 0, fmt.Errorf("nd: unsupported slice type %T", data)
	}
	return 0, fmt.Errorf("nd: slice type %T does not match data type %v", data, dt)
}

func cloneInts(s []int) []int {
	out := make([]int, len(s))
	copy(out, s)
	return out
}
