package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

func init() {
	Register("gzip", newGzip)
}

// Gzip is a bytes-to-bytes stage using gzip framing.
type Gzip struct {
	level int
}

func newGzip(cfg map[string]any, cx Context) (Codec, error) {
	level, err := cfgInt(cfg, "level", 6)
	if err != nil {
		return nil, err
	}
	return NewGzip(level)
}

// NewGzip builds a gzip stage at the given compression level in [0, 9].
func NewGzip(level int) (*Gzip, error) {
	if level < 0 || level > 9 {
		return nil, fmt.Errorf("%w: gzip level %d outside [0, 9]", ErrCodec, level)
	}
	return &Gzip{level: level}, nil
}

func (g *Gzip) Name() string { return "gzip" }
func (g *Gzip) From() Domain { return DomainBytes }
func (g *Gzip) To() Domain   { return DomainBytes }

func (g *Gzip) Encode(v Value) (Value, error) {
	raw, err := v.Bytes()
	if err != nil {
		return Value{}, err
	}
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, g.level)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	if _, err := w.Write(raw); err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	if err := w.Close(); err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return BytesValue(buf.Bytes()), nil
}

func (g *Gzip) Decode(v Value) (Value, error) {
	raw, err := v.Bytes()
	if err != nil {
		return Value{}, err
	}
	r, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return Value{}, fmt.Errorf("%w: gzip: %v", ErrDecode, err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return Value{}, fmt.Errorf("%w: gzip: %v", ErrDecode, err)
	}
	return BytesValue(out), nil
}

func (g *Gzip) Config() map[string]any {
	return map[string]any{"level": g.level}
}

func (g *Gzip) Copy() Codec {
	return &Gzip{level: g.level}
}
