package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

func init() {
	Register("zstd", newZstd)
}

// Zstd is a bytes-to-bytes stage using zstandard frames. The encoder and
// decoder are created lazily and owned per instance, so pipeline copies do
// not share compressor state.
type Zstd struct {
	level int
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

func newZstd(cfg map[string]any, cx Context) (Codec, error) {
	level, err := cfgInt(cfg, "level", 1)
	if err != nil {
		return nil, err
	}
	return NewZstd(level)
}

// NewZstd builds a zstd stage at the given compression level in [1, 20].
func NewZstd(level int) (*Zstd, error) {
	if level < 1 || level > 20 {
		return nil, fmt.Errorf("%w: zstd level %d outside [1, 20]", ErrCodec, level)
	}
	return &Zstd{level: level}, nil
}

func (z *Zstd) Name() string { return "zstd" }
func (z *Zstd) From() Domain { return DomainBytes }
func (z *Zstd) To() Domain   { return DomainBytes }

func (z *Zstd) Encode(v Value) (Value, error) {
	raw, err := v.Bytes()
	if err != nil {
		return Value{}, err
	}
	if z.enc == nil {
		z.enc, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(z.level)),
			zstd.WithEncoderConcurrency(1))
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrCodec, err)
		}
	}
	return BytesValue(z.enc.EncodeAll(raw, nil)), nil
}

func (z *Zstd) Decode(v Value) (Value, error) {
	raw, err := v.Bytes()
	if err != nil {
		return Value{}, err
	}
	if z.dec == nil {
		z.dec, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
	}
	out, err := z.dec.DecodeAll(raw, nil)
	if err != nil {
		return Value{}, fmt.Errorf("%w: zstd: %v", ErrDecode, err)
	}
	return BytesValue(out), nil
}

func (z *Zstd) Config() map[string]any {
	return map[string]any{"level": z.level}
}

func (z *Zstd) Copy() Codec {
	return &Zstd{level: z.level}
}
