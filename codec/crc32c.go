package codec

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"go.uber.org/zap"
)

func init() {
	Register("crc32c", newCRC32C)
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32C is a bytes-to-bytes stage that appends a little-endian CRC32C
// checksum on encode. On decode a mismatch is logged as a warning, not an
// error; the payload is returned either way.
type CRC32C struct {
	logger *zap.Logger
}

func newCRC32C(cfg map[string]any, cx Context) (Codec, error) {
	return &CRC32C{logger: cx.logger()}, nil
}

// NewCRC32C builds a checksum stage. A nil logger silences mismatch
// warnings.
func NewCRC32C(logger *zap.Logger) *CRC32C {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CRC32C{logger: logger}
}

func (c *CRC32C) Name() string { return "crc32c" }
func (c *CRC32C) From() Domain { return DomainBytes }
func (c *CRC32C) To() Domain   { return DomainBytes }

func (c *CRC32C) Encode(v Value) (Value, error) {
	raw, err := v.Bytes()
	if err != nil {
		return Value{}, err
	}
	out := make([]byte, len(raw)+4)
	copy(out, raw)
	binary.LittleEndian.PutUint32(out[len(raw):], crc32.Checksum(raw, castagnoli))
	return BytesValue(out), nil
}

func (c *CRC32C) Decode(v Value) (Value, error) {
	raw, err := v.Bytes()
	if err != nil {
		return Value{}, err
	}
	if len(raw) < 4 {
		return Value{}, fmt.Errorf("%w: crc32c payload of %d bytes is too short", ErrDecode, len(raw))
	}
	body := raw[:len(raw)-4]
	stored := binary.LittleEndian.Uint32(raw[len(raw)-4:])
	if got := crc32.Checksum(body, castagnoli); got != stored {
		c.logger.Warn("crc32c checksum mismatch",
			zap.Uint32("stored", stored),
			zap.Uint32("computed", got))
	}
	return BytesValue(body), nil
}

func (c *CRC32C) Config() map[string]any { return nil }

func (c *CRC32C) Copy() Codec {
	return &CRC32C{logger: c.logger}
}
