package zarr

import (
	"context"
	"fmt"
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/TuSKan/go-zarr/nd"
)

// gomlx adapter: hyperslab reads surfaced as tensors, plus a batch
// iterator over the leading dimension for training-style consumption.

// ReadTensor reads the hyperslab [start, start+count) as a tensor.
func (a *Array) ReadTensor(ctx context.Context, start, count []int) (*tensors.Tensor, error) {
	slab, err := a.Read(ctx, start, count)
	if err != nil {
		return nil, err
	}
	return toTensor(slab)
}

// ReadAllTensor reads the whole array as a tensor.
func (a *Array) ReadAllTensor(ctx context.Context) (*tensors.Tensor, error) {
	slab, err := a.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	return toTensor(slab)
}

func toTensor(slab *nd.Array) (*tensors.Tensor, error) {
	dims := slab.Shape()
	switch data := slab.Data().(type) {
	case []bool:
		return tensors.FromFlatDataAndDimensions(data, dims...), nil
	case []int8:
		return tensors.FromFlatDataAndDimensions(data, dims...), nil
	case []int16:
		return tensors.FromFlatDataAndDimensions(data, dims...), nil
	case []int32:
		return tensors.FromFlatDataAndDimensions(data, dims...), nil
	case []int64:
		return tensors.FromFlatDataAndDimensions(data, dims...), nil
	case []uint8:
		return tensors.FromFlatDataAndDimensions(data, dims...), nil
	case []uint16:
		return tensors.FromFlatDataAndDimensions(data, dims...), nil
	case []uint32:
		return tensors.FromFlatDataAndDimensions(data, dims...), nil
	case []uint64:
		return tensors.FromFlatDataAndDimensions(data, dims...), nil
	case []float32:
		return tensors.FromFlatDataAndDimensions(data, dims...), nil
	case []float64:
		return tensors.FromFlatDataAndDimensions(data, dims...), nil
	default:
		return nil, fmt.Errorf("unexpected buffer type: %T", data)
	}
}

// BatchReader iterates an array's leading dimension in batches.
type BatchReader struct {
	arr   *Array
	index int
}

// Batches returns a reader positioned at the first row. The array must
// have rank >= 1.
func (a *Array) Batches() (*BatchReader, error) {
	if a.grid.Rank() == 0 {
		return nil, fmt.Errorf("%w: a scalar array has no batch dimension", ErrShapeMismatch)
	}
	return &BatchReader{arr: a}, nil
}

// Next reads the next batch of up to batchSize rows along dimension 0,
// spanning the full extent of the remaining dimensions. Returns io.EOF
// when the array is exhausted.
func (r *BatchReader) Next(ctx context.Context, batchSize int) (*tensors.Tensor, error) {
	shape := r.arr.Shape()
	if r.index >= shape[0] {
		return nil, io.EOF
	}
	n := min(batchSize, shape[0]-r.index)

	start := make([]int, len(shape))
	count := make([]int, len(shape))
	start[0] = r.index
	count[0] = n
	copy(count[1:], shape[1:])

	t, err := r.arr.ReadTensor(ctx, start, count)
	if err != nil {
		return nil, err
	}
	r.index += n
	return t, nil
}

// Reset rewinds the reader to the first row.
func (r *BatchReader) Reset() { r.index = 0 }
