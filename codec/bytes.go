package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/TuSKan/go-zarr/dtype"
	"github.com/TuSKan/go-zarr/nd"
)

func init() {
	Register("bytes", newBytes)
}

// shapeTransformer is implemented by array-to-array stages that change the
// chunk shape seen by later stages. FromSpecs uses it to thread the
// correct decode shape into the array-to-bytes transition.
type shapeTransformer interface {
	EncodedShape(in []int) []int
}

// EncodedShape reports the shape a chunk has after passing through the
// transpose.
func (t *Transpose) EncodedShape(in []int) []int {
	out := make([]int, len(in))
	for i, o := range t.order {
		out[i] = in[o]
	}
	return out
}

// Bytes is the array-to-bytes transition: it serializes the chunk's
// scalars into a tightly packed buffer with a declared endianness, and
// parses such a buffer back into an array of the chunk shape seen at its
// position in the chain.
type Bytes struct {
	dt     dtype.DataType
	shape  []int
	endian string
}

func newBytes(cfg map[string]any, cx Context) (Codec, error) {
	endian, err := cfgString(cfg, "endian", "little")
	if err != nil {
		return nil, err
	}
	return NewBytes(cx.DType, cx.ChunkShape, endian)
}

// NewBytes builds the serialization stage for the given element type and
// chunk shape.
func NewBytes(dt dtype.DataType, shape []int, endian string) (*Bytes, error) {
	if endian != "little" && endian != "big" {
		return nil, fmt.Errorf("%w: endian must be \"little\" or \"big\", got %q", ErrCodec, endian)
	}
	out := make([]int, len(shape))
	copy(out, shape)
	return &Bytes{dt: dt, shape: out, endian: endian}, nil
}

func (b *Bytes) Name() string { return "bytes" }
func (b *Bytes) From() Domain { return DomainArray }
func (b *Bytes) To() Domain   { return DomainBytes }

func (b *Bytes) order() binary.ByteOrder {
	if b.endian == "big" {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (b *Bytes) Encode(v Value) (Value, error) {
	a, err := v.Array()
	if err != nil {
		return Value{}, err
	}
	if a.DType() != b.dt {
		return Value{}, fmt.Errorf("%w: chunk holds %v, pipeline expects %v", ErrCodec, a.DType(), b.dt)
	}
	want := nd.NumElements(b.shape)
	if a.Len() != want {
		return Value{}, fmt.Errorf("%w: chunk has %d elements, want %d", ErrCodec, a.Len(), want)
	}
	return BytesValue(packValues(a, b.order())), nil
}

func (b *Bytes) Decode(v Value) (Value, error) {
	raw, err := v.Bytes()
	if err != nil {
		return Value{}, err
	}
	want := nd.NumElements(b.shape) * b.dt.Size()
	if len(raw) != want {
		return Value{}, fmt.Errorf("%w: chunk is %d bytes, want %d", ErrDecode, len(raw), want)
	}
	a := nd.New(b.dt, b.shape)
	unpackValues(a, raw, b.order())
	return ArrayValue(a), nil
}

// Config omits the endian field for single-byte element types, where byte
// order is meaningless.
func (b *Bytes) Config() map[string]any {
	if b.dt.Size() == 1 {
		return nil
	}
	return map[string]any{"endian": b.endian}
}

func (b *Bytes) Copy() Codec {
	c, _ := NewBytes(b.dt, b.shape, b.endian)
	return c
}

func packValues(a *nd.Array, order binary.ByteOrder) []byte {
	size := a.DType().Size()
	out := make([]byte, a.Len()*size)
	switch d := a.Data().(type) {
	case []bool:
		for i, x := range d {
			if x {
				out[i] = 1
			}
		}
	case []int8:
		for i, x := range d {
			out[i] = byte(x)
		}
	case []uint8:
		copy(out, d)
	case []int16:
		for i, x := range d {
			order.PutUint16(out[i*2:], uint16(x))
		}
	case []uint16:
		for i, x := range d {
			order.PutUint16(out[i*2:], x)
		}
	case []int32:
		for i, x := range d {
			order.PutUint32(out[i*4:], uint32(x))
		}
	case []uint32:
		for i, x := range d {
			order.PutUint32(out[i*4:], x)
		}
	case []int64:
		for i, x := range d {
			order.PutUint64(out[i*8:], uint64(x))
		}
	case []uint64:
		for i, x := range d {
			order.PutUint64(out[i*8:], x)
		}
	case []float32:
		for i, x := range d {
			order.PutUint32(out[i*4:], math.Float32bits(x))
		}
	case []float64:
		for i, x := range d {
			order.PutUint64(out[i*8:], math.Float64bits(x))
		}
	}
	return out
}

func unpackValues(a *nd.Array, raw []byte, order binary.ByteOrder) {
	switch d := a.Data().(type) {
	case []bool:
		for i := range d {
			d[i] = raw[i] != 0
		}
	case []int8:
		for i := range d {
			d[i] = int8(raw[i])
		}
	case []uint8:
		copy(d, raw)
	case []int16:
		for i := range d {
			d[i] = int16(order.Uint16(raw[i*2:]))
		}
	case []uint16:
		for i := range d {
			d[i] = order.Uint16(raw[i*2:])
		}
	case []int32:
		for i := range d {
			d[i] = int32(order.Uint32(raw[i*4:]))
		}
	case []uint32:
		for i := range d {
			d[i] = order.Uint32(raw[i*4:])
		}
	case []int64:
		for i := range d {
			d[i] = int64(order.Uint64(raw[i*8:]))
		}
	case []uint64:
		for i := range d {
			d[i] = order.Uint64(raw[i*8:])
		}
	case []float32:
		for i := range d {
			d[i] = math.Float32frombits(order.Uint32(raw[i*4:]))
		}
	case []float64:
		for i := range d {
			d[i] = math.Float64frombits(order.Uint64(raw[i*8:]))
		}
	}
}
