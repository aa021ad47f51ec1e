// Package codec implements the transformation stages a chunk passes
// through between its in-memory array form and its stored byte form, and
// the validated pipeline that chains them.
package codec

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/TuSKan/go-zarr/dtype"
	"github.com/TuSKan/go-zarr/nd"
)

var (
	// ErrCodec reports a codec fed the wrong domain or an invalid
	// configuration.
	ErrCodec = errors.New("codec error")
	// ErrDecode reports a failure while decoding stored bytes.
	ErrDecode = errors.New("decode error")
)

// Domain is the type of value a codec consumes or produces.
type Domain uint8

const (
	DomainArray Domain = iota
	DomainBytes
)

func (d Domain) String() string {
	if d == DomainArray {
		return "array"
	}
	return "bytes"
}

// Value is either a decoded n-dimensional array or an encoded byte blob,
// depending on which pipeline stage it sits at.
type Value struct {
	domain Domain
	arr    *nd.Array
	raw    []byte
}

// ArrayValue wraps a decoded array.
func ArrayValue(a *nd.Array) Value { return Value{domain: DomainArray, arr: a} }

// BytesValue wraps an encoded blob.
func BytesValue(b []byte) Value { return Value{domain: DomainBytes, raw: b} }

// Domain reports which side of the array/bytes transition v sits on.
func (v Value) Domain() Domain { return v.domain }

// Array unwraps an array value.
func (v Value) Array() (*nd.Array, error) {
	if v.domain != DomainArray {
		return nil, fmt.Errorf("%w: expected array input, got bytes", ErrCodec)
	}
	return v.arr, nil
}

// Bytes unwraps a bytes value.
func (v Value) Bytes() ([]byte, error) {
	if v.domain != DomainBytes {
		return nil, fmt.Errorf("%w: expected bytes input, got array", ErrCodec)
	}
	return v.raw, nil
}

// Codec is a single transformation stage with declared input and output
// domains. Copy must return an independent clone so that chunk units can
// run pipelines without sharing state.
type Codec interface {
	Name() string
	From() Domain
	To() Domain
	Encode(Value) (Value, error)
	Decode(Value) (Value, error)
	Config() map[string]any
	Copy() Codec
}

// Spec is the metadata form of a codec: its name plus configuration
// object, as serialized into the codecs list of an array document.
type Spec struct {
	Name          string         `json:"name"`
	Configuration map[string]any `json:"configuration,omitempty"`
}

// Context carries the array properties a codec may need at construction
// time.
type Context struct {
	DType      dtype.DataType
	ChunkShape []int
	Fill       any
	Logger     *zap.Logger
}

func (cx Context) logger() *zap.Logger {
	if cx.Logger == nil {
		return zap.NewNop()
	}
	return cx.Logger
}

// Builder constructs a codec from its configuration object.
type Builder func(cfg map[string]any, cx Context) (Codec, error)

var registry = map[string]Builder{}

// Register installs a codec constructor under its metadata name.
func Register(name string, b Builder) {
	registry[name] = b
}

// New constructs the codec named by spec.
func New(spec Spec, cx Context) (Codec, error) {
	b, ok := registry[spec.Name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown codec %q", ErrCodec, spec.Name)
	}
	c, err := b(spec.Configuration, cx)
	if err != nil {
		return nil, fmt.Errorf("%s codec: %w", spec.Name, err)
	}
	return c, nil
}

// Names lists the registered codec names, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// configuration object helpers; JSON numbers arrive as float64.

func cfgInt(cfg map[string]any, key string, def int) (int, error) {
	v, ok := cfg[key]
	if !ok {
		return def, nil
	}
	switch x := v.(type) {
	case float64:
		return int(x), nil
	case int:
		return x, nil
	}
	return 0, fmt.Errorf("%w: %q must be an integer, got %T", ErrCodec, key, v)
}

func cfgString(cfg map[string]any, key, def string) (string, error) {
	v, ok := cfg[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q must be a string, got %T", ErrCodec, key, v)
	}
	return s, nil
}

func cfgIntSlice(cfg map[string]any, key string) ([]int, error) {
	v, ok := cfg[key]
	if !ok {
		return nil, nil
	}
	switch x := v.(type) {
	case []int:
		out := make([]int, len(x))
		copy(out, x)
		return out, nil
	case []any:
		out := make([]int, len(x))
		for i, e := range x {
			f, ok := e.(float64)
			if !ok {
				return nil, fmt.Errorf("%w: %q must be an integer list", ErrCodec, key)
			}
			out[i] = int(f)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %q must be an integer list, got %T", ErrCodec, key, v)
}
