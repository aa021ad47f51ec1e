package zarr

import (
	"fmt"

	"github.com/TuSKan/go-zarr/codec"
	"github.com/TuSKan/go-zarr/dtype"
	"github.com/TuSKan/go-zarr/meta"
)

// DefaultChunkLength caps the per-dimension chunk extent chosen when a
// shape is set without an explicit chunk shape.
const DefaultChunkLength = 100

// ArrayBuilder assembles and validates a v3 array metadata document.
//
// Setting the shape resets the chunk shape and refreshes the managed
// codec chain; setting the data type resets the fill value to the type's
// default. The default chain is transpose (reversed order, rank >= 2 and
// not portable), bytes, and blosc; portable mode drops the transpose so
// chunks are laid out identically everywhere.
type ArrayBuilder struct {
	dt         dtype.DataType
	dtSet      bool
	shape      []int
	chunkShape []int
	fill       any
	portable   bool

	codecs    []codec.Spec
	autoBlosc bool

	keyEncName string
	keySep     string
}

// NewArrayBuilder returns an empty builder.
func NewArrayBuilder() *ArrayBuilder {
	return &ArrayBuilder{}
}

// SetDataType declares the element type and resets the fill value to the
// type's default.
func (b *ArrayBuilder) SetDataType(dt dtype.DataType) *ArrayBuilder {
	b.dt = dt
	b.dtSet = true
	b.fill = dt.DefaultFill()
	b.refresh()
	return b
}

// SetShape declares the array extent and resets the chunk shape to at
// most DefaultChunkLength per dimension.
func (b *ArrayBuilder) SetShape(dims ...int) *ArrayBuilder {
	b.shape = cloneDims(dims)
	b.chunkShape = make([]int, len(dims))
	for i, d := range dims {
		b.chunkShape[i] = min(d, DefaultChunkLength)
	}
	b.refresh()
	return b
}

// SetChunkShape overrides the chunk extent.
func (b *ArrayBuilder) SetChunkShape(dims ...int) error {
	if len(dims) != len(b.shape) {
		return fmt.Errorf("%w: chunk rank %d, shape rank %d", ErrShapeMismatch, len(dims), len(b.shape))
	}
	for i, d := range dims {
		if d < 1 {
			return fmt.Errorf("%w: non-positive chunk extent in dimension %d", ErrShapeMismatch, i)
		}
	}
	b.chunkShape = cloneDims(dims)
	return nil
}

// SetFillValue overrides the fill value, coercing it to the element type.
func (b *ArrayBuilder) SetFillValue(v any) error {
	if !b.dtSet {
		return fmt.Errorf("%w: set the data type before the fill value", meta.ErrInvalidMetadata)
	}
	fill, err := b.dt.Scalar(v)
	if err != nil {
		return err
	}
	b.fill = fill
	return nil
}

// SetPortable toggles portable layout: portable arrays carry no transpose
// codec, non-portable arrays of rank >= 2 reinstate it with reversed
// order.
func (b *ArrayBuilder) SetPortable(portable bool) *ArrayBuilder {
	b.portable = portable
	b.refresh()
	return b
}

// SetKeyEncoding selects the chunk key scheme ("default" or "v2") and
// separator ("." or "/"). An empty separator defers to the target store's
// default.
func (b *ArrayBuilder) SetKeyEncoding(name, separator string) *ArrayBuilder {
	b.keyEncName = name
	b.keySep = separator
	return b
}

func reversedOrder(rank int) []int {
	order := make([]int, rank)
	for i := range order {
		order[i] = rank - 1 - i
	}
	return order
}

// refresh installs the default chain once the data type and shape are
// both known, and keeps the managed stages in step with later changes.
func (b *ArrayBuilder) refresh() {
	if !b.dtSet || b.shape == nil {
		return
	}
	rank := len(b.shape)

	if len(b.codecs) == 0 {
		if !b.portable && rank >= 2 {
			b.codecs = append(b.codecs, codec.Spec{
				Name:          "transpose",
				Configuration: map[string]any{"order": reversedOrder(rank)},
			})
		}
		b.codecs = append(b.codecs, codec.Spec{Name: "bytes", Configuration: b.bytesConfig()})
		b.codecs = append(b.codecs, codec.Spec{Name: "blosc", Configuration: b.bloscDefaults()})
		b.autoBlosc = true
		return
	}

	ti := b.indexOf("transpose")
	switch {
	case b.portable || rank < 2:
		if ti >= 0 {
			b.codecs = append(b.codecs[:ti], b.codecs[ti+1:]...)
		}
	case ti >= 0:
		b.codecs[ti].Configuration = map[string]any{"order": reversedOrder(rank)}
	default:
		b.codecs = append([]codec.Spec{{
			Name:          "transpose",
			Configuration: map[string]any{"order": reversedOrder(rank)},
		}}, b.codecs...)
	}

	if bi := b.indexOf("bytes"); bi >= 0 {
		b.codecs[bi].Configuration = b.bytesConfig()
	}
	if b.autoBlosc {
		if bl := b.indexOf("blosc"); bl >= 0 {
			b.codecs[bl].Configuration = b.bloscDefaults()
		}
	}
}

func (b *ArrayBuilder) bytesConfig() map[string]any {
	if b.dt.Size() == 1 {
		return nil
	}
	return map[string]any{"endian": "little"}
}

func (b *ArrayBuilder) bloscDefaults() map[string]any {
	return map[string]any{
		"cname":     "zstd",
		"clevel":    1,
		"shuffle":   codec.DefaultShuffle(b.dt),
		"typesize":  b.dt.Size(),
		"blocksize": 0,
	}
}

func (b *ArrayBuilder) indexOf(name string) int {
	for i, s := range b.codecs {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// Codecs returns the current chain in metadata form.
func (b *ArrayBuilder) Codecs() []codec.Spec {
	out := make([]codec.Spec, len(b.codecs))
	copy(out, b.codecs)
	return out
}

func (b *ArrayBuilder) buildPipeline(specs []codec.Spec) error {
	_, err := codec.FromSpecs(specs, codec.Context{
		DType:      b.dt,
		ChunkShape: b.chunkShape,
		Fill:       b.fill,
	})
	return err
}

// AddCodec inserts a codec. Without an explicit position, array-domain
// codecs go to the front and byte-domain codecs to the back. The
// insertion is refused when it would break the chain invariant.
func (b *ArrayBuilder) AddCodec(name string, cfg map[string]any, position ...int) error {
	c, err := codec.New(codec.Spec{Name: name, Configuration: cfg}, codec.Context{
		DType:      b.dt,
		ChunkShape: b.chunkShape,
		Fill:       b.fill,
	})
	if err != nil {
		return err
	}

	pos := len(b.codecs)
	if len(position) > 0 {
		pos = position[0]
	} else if c.From() == codec.DomainArray && c.To() == codec.DomainArray {
		pos = 0
	}
	if pos < 0 || pos > len(b.codecs) {
		return fmt.Errorf("%w: position %d out of range", codec.ErrInvalidChain, pos)
	}

	next := make([]codec.Spec, 0, len(b.codecs)+1)
	next = append(next, b.codecs[:pos]...)
	next = append(next, codec.Spec{Name: name, Configuration: c.Config()})
	next = append(next, b.codecs[pos:]...)
	if err := b.buildPipeline(next); err != nil {
		return err
	}
	b.codecs = next
	if name == "blosc" {
		b.autoBlosc = false
	}
	return nil
}

// RemoveCodec drops the first codec with the given name, refusing when
// the shortened chain would be invalid.
func (b *ArrayBuilder) RemoveCodec(name string) error {
	i := b.indexOf(name)
	if i < 0 {
		return fmt.Errorf("%w: no codec named %q", codec.ErrInvalidChain, name)
	}
	next := make([]codec.Spec, 0, len(b.codecs)-1)
	next = append(next, b.codecs[:i]...)
	next = append(next, b.codecs[i+1:]...)
	if err := b.buildPipeline(next); err != nil {
		return err
	}
	b.codecs = next
	if name == "blosc" {
		b.autoBlosc = false
	}
	return nil
}

// IsValid reports whether the builder describes a complete array: data
// type, shape and chunk shape set, and a valid codec chain.
func (b *ArrayBuilder) IsValid() bool {
	if !b.dtSet || b.shape == nil || b.chunkShape == nil {
		return false
	}
	return b.buildPipeline(b.codecs) == nil
}

// Metadata emits the array document.
func (b *ArrayBuilder) Metadata() (*meta.Document, error) {
	if !b.IsValid() {
		return nil, fmt.Errorf("%w: incomplete array definition", meta.ErrInvalidMetadata)
	}
	name := b.keyEncName
	if name == "" {
		name = meta.KeyEncodingDefault
	}
	return &meta.Document{
		ZarrFormat:   3,
		NodeType:     meta.NodeArray,
		Shape:        cloneDims(b.shape),
		DataType:     b.dt,
		FillValue:    b.fill,
		ChunkShape:   cloneDims(b.chunkShape),
		KeyEncoding:  name,
		KeySeparator: b.keySep,
		Codecs:       b.Codecs(),
	}, nil
}

func cloneDims(dims []int) []int {
	out := make([]int, len(dims))
	copy(out, dims)
	return out
}
