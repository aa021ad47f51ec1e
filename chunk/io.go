package chunk

import (
	"context"
	"fmt"

	"github.com/TuSKan/go-zarr/codec"
	"github.com/TuSKan/go-zarr/dtype"
	"github.com/TuSKan/go-zarr/nd"
	"github.com/TuSKan/go-zarr/store"
)

// IO is the read-modify-write unit for one chunk: it lazily decodes the
// stored blob into a buffer of the chunk shape, tracks dirtiness, and on
// flush either re-encodes the buffer or, when the buffer holds nothing
// but the fill value, erases the backing key so sparse arrays stay sparse
// on disk.
type IO struct {
	store store.Store
	key   string
	dt    dtype.DataType
	shape []int
	fill  any
	pipe  *codec.Pipeline

	buf   *nd.Array
	dirty bool
}

// NewIO builds the unit for one chunk key. The pipeline must be a
// dedicated copy: units never share codec state.
func NewIO(st store.Store, key string, dt dtype.DataType, shape []int, fill any, pipe *codec.Pipeline) *IO {
	return &IO{store: st, key: key, dt: dt, shape: shape, fill: fill, pipe: pipe}
}

// Key returns the chunk's store key.
func (c *IO) Key() string { return c.key }

// Dirty reports whether the buffer holds unflushed modifications.
func (c *IO) Dirty() bool { return c.dirty }

// Load materializes the buffer: an absent key yields a fill-value chunk,
// a present key is decoded through the pipeline.
func (c *IO) Load(ctx context.Context) error {
	if c.buf != nil {
		return nil
	}
	raw, err := c.store.Get(ctx, c.key, nil)
	if err != nil {
		return err
	}
	if raw == nil {
		buf, err := nd.NewFilled(c.dt, c.shape, c.fill)
		if err != nil {
			return err
		}
		c.buf = buf
		return nil
	}
	buf, err := c.pipe.Decode(raw)
	if err != nil {
		return fmt.Errorf("chunk %q: %w", c.key, err)
	}
	if buf.Len() != nd.NumElements(c.shape) {
		return fmt.Errorf("chunk %q: decoded %d elements, want %d",
			c.key, buf.Len(), nd.NumElements(c.shape))
	}
	c.buf = buf
	return nil
}

// Read returns a copy of the sub-array at offset with the given counts.
func (c *IO) Read(ctx context.Context, offset, count []int) (*nd.Array, error) {
	if err := c.Load(ctx); err != nil {
		return nil, err
	}
	return c.buf.Region(offset, count)
}

// Write copies data into the buffer at offset. A write covering the whole
// chunk binds the data directly without loading the previous contents;
// partial writes load first so surrounding values survive. When flush is
// set the buffer is flushed before returning.
func (c *IO) Write(ctx context.Context, data *nd.Array, offset []int, flush bool) error {
	if data.DType() != c.dt {
		return fmt.Errorf("chunk %q: cannot write %v data into %v chunk", c.key, data.DType(), c.dt)
	}
	if equalShape(data.Shape(), c.shape) {
		c.buf = data
		c.dirty = true
	} else {
		if err := c.Load(ctx); err != nil {
			return err
		}
		if err := c.buf.SetRegion(offset, data); err != nil {
			return fmt.Errorf("chunk %q: %w", c.key, err)
		}
		c.dirty = true
	}
	if flush {
		return c.Flush(ctx)
	}
	return nil
}

// Flush persists the buffer. An all-fill-value buffer erases the key
// instead of writing it.
func (c *IO) Flush(ctx context.Context) error {
	if !c.dirty {
		return nil
	}
	if c.buf.AllEqual(c.fill) {
		if _, err := c.store.Erase(ctx, c.key); err != nil {
			return err
		}
		c.dirty = false
		return nil
	}
	raw, err := c.pipe.Encode(c.buf)
	if err != nil {
		return fmt.Errorf("chunk %q: %w", c.key, err)
	}
	if err := c.store.Set(ctx, c.key, raw); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

func equalShape(a, b []int) bool {
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
