package zarr

import (
	"context"
	"fmt"

	"github.com/TuSKan/go-zarr/chunk"
	"github.com/TuSKan/go-zarr/codec"
	"github.com/TuSKan/go-zarr/dtype"
	"github.com/TuSKan/go-zarr/meta"
	"github.com/TuSKan/go-zarr/nd"
)

// Array is a hierarchy node holding n-dimensional data, chunked over a
// regular grid and encoded through a codec pipeline.
//
// Selections are 0-based: a start offset plus a count per dimension.
// Elements that were never written read back as the array's fill value;
// for float arrays, stored values within a small tolerance of the fill
// sentinel are indistinguishable from never-written elements.
type Array struct {
	nodeBase
	dt     dtype.DataType
	fill   any
	grid   *chunk.Grid
	pipe   *codec.Pipeline
	keyEnc chunk.KeyEncoding
	chunks map[string]*chunk.IO
}

func newArrayNode(base nodeBase) (*Array, error) {
	doc := base.doc
	grid, err := chunk.NewGrid(doc.Shape, doc.ChunkShape)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", meta.ErrInvalidMetadata, err)
	}
	pipe, err := codec.FromSpecs(doc.Codecs, codec.Context{
		DType:      doc.DataType,
		ChunkShape: doc.ChunkShape,
		Fill:       doc.FillValue,
		Logger:     base.logger,
	})
	if err != nil {
		return nil, err
	}
	enc := chunk.KeyEncoding{Name: doc.KeyEncoding, Separator: doc.KeySeparator}
	return &Array{
		nodeBase: base,
		dt:       doc.DataType,
		fill:     doc.FillValue,
		grid:     grid,
		pipe:     pipe,
		keyEnc:   enc,
		chunks:   map[string]*chunk.IO{},
	}, nil
}

func (a *Array) IsGroup() bool { return false }

// DType returns the element type.
func (a *Array) DType() dtype.DataType { return a.dt }

// Shape returns the array extent per dimension.
func (a *Array) Shape() []int { return a.grid.ArrayShape() }

// ChunkShape returns the chunk extent per dimension.
func (a *Array) ChunkShape() []int { return a.grid.ChunkShape() }

// FillValue returns the value absent chunks materialize as.
func (a *Array) FillValue() any { return a.fill }

// chunkIO returns the unit for a chunk coordinate, creating it on first
// touch. Each unit gets its own pipeline copy.
func (a *Array) chunkIO(coords []int) *chunk.IO {
	key := a.keyEnc.Key(a.Prefix(), coords)
	if c, ok := a.chunks[key]; ok {
		return c
	}
	c := chunk.NewIO(a.store, key, a.dt, a.grid.ChunkShape(), a.fill, a.pipe.Copy())
	a.chunks[key] = c
	return c
}

// Read gathers the hyperslab [start, start+count) into a fresh buffer.
// The buffer starts out filled with the fill value and chunks overwrite
// the regions they cover.
func (a *Array) Read(ctx context.Context, start, count []int) (*nd.Array, error) {
	if len(start) != a.grid.Rank() || len(count) != a.grid.Rank() {
		return nil, fmt.Errorf("%w: selection rank %d, array rank %d",
			ErrShapeMismatch, len(start), a.grid.Rank())
	}
	sections, err := a.grid.Sections(start, count)
	if err != nil {
		return nil, err
	}
	out, err := nd.NewFilled(a.dt, count, a.fill)
	if err != nil {
		return nil, err
	}
	for _, sec := range sections {
		slab, err := a.chunkIO(sec.Coords).Read(ctx, sec.ChunkOffset, sec.Count)
		if err != nil {
			return nil, err
		}
		if err := out.SetRegion(sec.DestOffset, slab); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ReadMasked reads a hyperslab together with a flat mask marking which
// elements hold the fill value, for callers that must tell absent data
// apart from ordinary values.
func (a *Array) ReadMasked(ctx context.Context, start, count []int) (*nd.Array, []bool, error) {
	slab, err := a.Read(ctx, start, count)
	if err != nil {
		return nil, nil, err
	}
	mask, err := slab.FillMask(a.fill)
	if err != nil {
		return nil, nil, err
	}
	return slab, mask, nil
}

// ReadAll reads the whole array.
func (a *Array) ReadAll(ctx context.Context) (*nd.Array, error) {
	return a.Read(ctx, make([]int, a.grid.Rank()), a.Shape())
}

// Write scatters data into the array at start. Every touched chunk is
// merged with its existing contents and flushed before the call returns;
// a failure mid-way leaves already-flushed chunks persisted.
func (a *Array) Write(ctx context.Context, data *nd.Array, start []int) error {
	if data.DType() != a.dt {
		return fmt.Errorf("%w: array holds %v, data is %v", ErrTypeMismatch, a.dt, data.DType())
	}
	if data.Rank() != a.grid.Rank() {
		return fmt.Errorf("%w: data rank %d, array rank %d",
			ErrShapeMismatch, data.Rank(), a.grid.Rank())
	}
	sections, err := a.grid.Sections(start, data.Shape())
	if err != nil {
		return err
	}
	for _, sec := range sections {
		slice, err := data.Region(sec.DestOffset, sec.Count)
		if err != nil {
			return err
		}
		if err := a.chunkIO(sec.Coords).Write(ctx, slice, sec.ChunkOffset, true); err != nil {
			return err
		}
	}
	return nil
}

// WriteFill resets the selection to the fill value, releasing wholly
// emptied chunks from the store on flush.
func (a *Array) WriteFill(ctx context.Context, start, count []int) error {
	data, err := nd.NewFilled(a.dt, count, a.fill)
	if err != nil {
		return err
	}
	return a.Write(ctx, data, start)
}

// WriteAll writes data covering the entire array.
func (a *Array) WriteAll(ctx context.Context, data *nd.Array) error {
	if data.Rank() != a.grid.Rank() || !shapeEqual(data.Shape(), a.Shape()) {
		return fmt.Errorf("%w: data shape %v, array shape %v",
			ErrShapeMismatch, data.Shape(), a.Shape())
	}
	return a.Write(ctx, data, make([]int, a.grid.Rank()))
}

// Flush persists every dirty chunk and the metadata document when
// attributes changed.
func (a *Array) Flush(ctx context.Context) error {
	for _, c := range a.chunks {
		if err := c.Flush(ctx); err != nil {
			return err
		}
	}
	return a.Save(ctx)
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
