package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/TuSKan/go-zarr/dtype"
)

func init() {
	Register("blosc", newBlosc)
}

// blosc1 container layout: a 16-byte header, then either the raw payload
// (memcpyed) or a table of uint32 block start offsets followed by the
// compressed blocks, everything little-endian.
const (
	bloscVersionFormat = 2
	bloscVersionInner  = 1
	bloscHeaderSize    = 16

	bloscFlagByteShuffle = 0x1
	bloscFlagMemcpyed    = 0x2
	bloscFlagBitShuffle  = 0x4

	bloscMaxBlockSize = 1 << 18
)

// Inner compressor codes stored in bits 5-7 of the flags byte.
const (
	bloscCodeBloscLZ = 0
	bloscCodeLZ4     = 1
	bloscCodeZlib    = 3
	bloscCodeZstd    = 4
)

const (
	ShuffleNone = "noshuffle"
	ShuffleByte = "shuffle"
	ShuffleBit  = "bitshuffle"
)

// Blosc is a bytes-to-bytes stage wrapping payloads in the blosc1 block
// container: data is split into blocks, optionally shuffled by element
// width, and compressed with the configured inner codec. The blosclz
// inner codec is accepted in configuration for compatibility but refused
// at run time.
type Blosc struct {
	cname     string
	clevel    int
	shuffle   string
	typesize  int
	blocksize int

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// DefaultShuffle picks the shuffle filter the builder assigns for a data
// type: none for single-byte types, bit shuffle for eight-byte types,
// byte shuffle otherwise.
func DefaultShuffle(dt dtype.DataType) string {
	switch dt.Size() {
	case 1:
		return ShuffleNone
	case 8:
		return ShuffleBit
	default:
		return ShuffleByte
	}
}

func newBlosc(cfg map[string]any, cx Context) (Codec, error) {
	defShuffle := ShuffleByte
	defTypesize := 1
	if cx.DType.Size() > 0 {
		defShuffle = DefaultShuffle(cx.DType)
		defTypesize = cx.DType.Size()
	}
	cname, err := cfgString(cfg, "cname", "zstd")
	if err != nil {
		return nil, err
	}
	clevel, err := cfgInt(cfg, "clevel", 1)
	if err != nil {
		return nil, err
	}
	shuffle, err := cfgString(cfg, "shuffle", defShuffle)
	if err != nil {
		return nil, err
	}
	typesize, err := cfgInt(cfg, "typesize", defTypesize)
	if err != nil {
		return nil, err
	}
	blocksize, err := cfgInt(cfg, "blocksize", 0)
	if err != nil {
		return nil, err
	}
	return NewBlosc(cname, clevel, shuffle, typesize, blocksize)
}

// NewBlosc validates the configuration and builds the stage. blocksize 0
// selects an automatic block size.
func NewBlosc(cname string, clevel int, shuffle string, typesize, blocksize int) (*Blosc, error) {
	switch cname {
	case "blosclz", "lz4", "lz4hc", "zstd", "zlib":
	default:
		return nil, fmt.Errorf("%w: unknown blosc cname %q", ErrCodec, cname)
	}
	if clevel < 0 || clevel > 9 {
		return nil, fmt.Errorf("%w: blosc clevel %d outside [0, 9]", ErrCodec, clevel)
	}
	switch shuffle {
	case ShuffleNone, ShuffleByte, ShuffleBit:
	default:
		return nil, fmt.Errorf("%w: unknown blosc shuffle %q", ErrCodec, shuffle)
	}
	switch typesize {
	case 1, 2, 4, 8:
	default:
		return nil, fmt.Errorf("%w: blosc typesize %d not in {1,2,4,8}", ErrCodec, typesize)
	}
	if blocksize < 0 {
		return nil, fmt.Errorf("%w: negative blosc blocksize", ErrCodec)
	}
	return &Blosc{cname: cname, clevel: clevel, shuffle: shuffle, typesize: typesize, blocksize: blocksize}, nil
}

func (b *Blosc) Name() string { return "blosc" }
func (b *Blosc) From() Domain { return DomainBytes }
func (b *Blosc) To() Domain   { return DomainBytes }

func (b *Blosc) Config() map[string]any {
	return map[string]any{
		"cname":     b.cname,
		"clevel":    b.clevel,
		"shuffle":   b.shuffle,
		"typesize":  b.typesize,
		"blocksize": b.blocksize,
	}
}

func (b *Blosc) Copy() Codec {
	c, _ := NewBlosc(b.cname, b.clevel, b.shuffle, b.typesize, b.blocksize)
	return c
}

func (b *Blosc) code() byte {
	switch b.cname {
	case "lz4", "lz4hc":
		return bloscCodeLZ4
	case "zlib":
		return bloscCodeZlib
	case "zstd":
		return bloscCodeZstd
	default:
		return bloscCodeBloscLZ
	}
}

func (b *Blosc) Encode(v Value) (Value, error) {
	raw, err := v.Bytes()
	if err != nil {
		return Value{}, err
	}

	ts := b.typesize
	if ts < 1 || len(raw)%ts != 0 {
		ts = 1
	}
	if b.clevel == 0 || len(raw) == 0 {
		return BytesValue(b.memcpyed(raw, ts)), nil
	}
	if b.cname == "blosclz" {
		return Value{}, fmt.Errorf("%w: blosclz is not available", ErrCodec)
	}

	blocksize := b.blocksize
	if blocksize <= 0 {
		blocksize = bloscMaxBlockSize
	}
	blocksize -= blocksize % ts
	if blocksize < ts {
		blocksize = ts
	}
	if blocksize > len(raw) {
		blocksize = len(raw)
	}
	nblocks := (len(raw) + blocksize - 1) / blocksize

	var flags byte
	switch b.shuffle {
	case ShuffleByte:
		flags |= bloscFlagByteShuffle
	case ShuffleBit:
		flags |= bloscFlagBitShuffle
	}
	flags |= b.code() << 5

	var body bytes.Buffer
	bstarts := make([]uint32, nblocks)
	offset := bloscHeaderSize + 4*nblocks
	for i := 0; i < nblocks; i++ {
		lo := i * blocksize
		hi := lo + blocksize
		if hi > len(raw) {
			hi = len(raw)
		}
		block := raw[lo:hi]
		switch b.shuffle {
		case ShuffleByte:
			block = shuffleBytes(block, ts)
		case ShuffleBit:
			block = bitshuffleBytes(block, ts)
		}
		comp, err := b.compressBlock(block)
		if err != nil || len(comp) >= len(block) {
			// Incompressible input: fall back to a verbatim container.
			return BytesValue(b.memcpyed(raw, ts)), nil
		}
		bstarts[i] = uint32(offset + body.Len())
		body.Write(comp)
	}

	cbytes := bloscHeaderSize + 4*nblocks + body.Len()
	if cbytes >= bloscHeaderSize+len(raw) {
		return BytesValue(b.memcpyed(raw, ts)), nil
	}

	out := make([]byte, 0, cbytes)
	out = append(out, bloscHeader(flags, ts, len(raw), blocksize, cbytes)...)
	var tmp [4]byte
	for _, s := range bstarts {
		binary.LittleEndian.PutUint32(tmp[:], s)
		out = append(out, tmp[:]...)
	}
	out = append(out, body.Bytes()...)
	return BytesValue(out), nil
}

func (b *Blosc) memcpyed(raw []byte, ts int) []byte {
	out := make([]byte, 0, bloscHeaderSize+len(raw))
	out = append(out, bloscHeader(bloscFlagMemcpyed|b.code()<<5, ts, len(raw), len(raw), bloscHeaderSize+len(raw))...)
	return append(out, raw...)
}

func bloscHeader(flags byte, typesize, nbytes, blocksize, cbytes int) []byte {
	h := make([]byte, bloscHeaderSize)
	h[0] = bloscVersionFormat
	h[1] = bloscVersionInner
	h[2] = flags
	h[3] = byte(typesize)
	binary.LittleEndian.PutUint32(h[4:], uint32(nbytes))
	binary.LittleEndian.PutUint32(h[8:], uint32(blocksize))
	binary.LittleEndian.PutUint32(h[12:], uint32(cbytes))
	return h
}

func (b *Blosc) Decode(v Value) (Value, error) {
	raw, err := v.Bytes()
	if err != nil {
		return Value{}, err
	}
	if len(raw) < bloscHeaderSize {
		return Value{}, fmt.Errorf("%w: blosc payload of %d bytes is too short", ErrDecode, len(raw))
	}
	flags := raw[2]
	ts := int(raw[3])
	nbytes := int(binary.LittleEndian.Uint32(raw[4:]))
	blocksize := int(binary.LittleEndian.Uint32(raw[8:]))
	cbytes := int(binary.LittleEndian.Uint32(raw[12:]))
	if cbytes != len(raw) {
		return Value{}, fmt.Errorf("%w: blosc header claims %d bytes, payload has %d", ErrDecode, cbytes, len(raw))
	}

	if flags&bloscFlagMemcpyed != 0 {
		if len(raw)-bloscHeaderSize != nbytes {
			return Value{}, fmt.Errorf("%w: blosc verbatim payload length mismatch", ErrDecode)
		}
		out := make([]byte, nbytes)
		copy(out, raw[bloscHeaderSize:])
		return BytesValue(out), nil
	}

	if nbytes == 0 {
		return BytesValue(nil), nil
	}
	if blocksize <= 0 {
		return Value{}, fmt.Errorf("%w: blosc block size %d", ErrDecode, blocksize)
	}
	code := flags >> 5
	nblocks := (nbytes + blocksize - 1) / blocksize
	tableEnd := bloscHeaderSize + 4*nblocks
	if len(raw) < tableEnd {
		return Value{}, fmt.Errorf("%w: blosc block table truncated", ErrDecode)
	}
	bstarts := make([]int, nblocks)
	for i := range bstarts {
		bstarts[i] = int(binary.LittleEndian.Uint32(raw[bloscHeaderSize+4*i:]))
	}

	out := make([]byte, 0, nbytes)
	for i := 0; i < nblocks; i++ {
		start := bstarts[i]
		end := cbytes
		if i+1 < nblocks {
			end = bstarts[i+1]
		}
		if start < tableEnd || end > len(raw) || start > end {
			return Value{}, fmt.Errorf("%w: blosc block %d offsets [%d, %d) invalid", ErrDecode, i, start, end)
		}
		expected := blocksize
		if rem := nbytes - i*blocksize; rem < expected {
			expected = rem
		}
		block, err := decompressBloscBlock(code, raw[start:end], expected, &b.dec)
		if err != nil {
			return Value{}, err
		}
		switch {
		case flags&bloscFlagByteShuffle != 0:
			block = unshuffleBytes(block, ts)
		case flags&bloscFlagBitShuffle != 0:
			block = bitunshuffleBytes(block, ts)
		}
		out = append(out, block...)
	}
	if len(out) != nbytes {
		return Value{}, fmt.Errorf("%w: blosc decoded %d bytes, header claims %d", ErrDecode, len(out), nbytes)
	}
	return BytesValue(out), nil
}

func (b *Blosc) compressBlock(src []byte) ([]byte, error) {
	switch b.cname {
	case "lz4":
		var c lz4.Compressor
		dst := make([]byte, lz4.CompressBlockBound(len(src)))
		n, err := c.CompressBlock(src, dst)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("%w: lz4: incompressible block", ErrCodec)
		}
		return dst[:n], nil
	case "lz4hc":
		c := lz4.CompressorHC{Level: lz4HCLevel(b.clevel)}
		dst := make([]byte, lz4.CompressBlockBound(len(src)))
		n, err := c.CompressBlock(src, dst)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("%w: lz4hc: incompressible block", ErrCodec)
		}
		return dst[:n], nil
	case "zlib":
		var buf bytes.Buffer
		w, err := zlib.NewWriterLevel(&buf, b.clevel)
		if err != nil {
			return nil, fmt.Errorf("%w: zlib: %v", ErrCodec, err)
		}
		if _, err := w.Write(src); err != nil {
			return nil, fmt.Errorf("%w: zlib: %v", ErrCodec, err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("%w: zlib: %v", ErrCodec, err)
		}
		return buf.Bytes(), nil
	case "zstd":
		if b.enc == nil {
			var err error
			b.enc, err = zstd.NewWriter(nil,
				zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(b.clevel)),
				zstd.WithEncoderConcurrency(1))
			if err != nil {
				return nil, fmt.Errorf("%w: zstd: %v", ErrCodec, err)
			}
		}
		return b.enc.EncodeAll(src, nil), nil
	}
	return nil, fmt.Errorf("%w: %s is not available", ErrCodec, b.cname)
}

func decompressBloscBlock(code byte, src []byte, expected int, dec **zstd.Decoder) ([]byte, error) {
	switch code {
	case bloscCodeLZ4:
		dst := make([]byte, expected)
		n, err := lz4.UncompressBlock(src, dst)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrDecode, err)
		}
		if n != expected {
			return nil, fmt.Errorf("%w: lz4 block decoded %d bytes, want %d", ErrDecode, n, expected)
		}
		return dst, nil
	case bloscCodeZlib:
		r, err := zlib.NewReader(bytes.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("%w: zlib: %v", ErrDecode, err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: zlib: %v", ErrDecode, err)
		}
		if len(out) != expected {
			return nil, fmt.Errorf("%w: zlib block decoded %d bytes, want %d", ErrDecode, len(out), expected)
		}
		return out, nil
	case bloscCodeZstd:
		if *dec == nil {
			var err error
			*dec, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
			if err != nil {
				return nil, fmt.Errorf("%w: zstd: %v", ErrDecode, err)
			}
		}
		out, err := (*dec).DecodeAll(src, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrDecode, err)
		}
		if len(out) != expected {
			return nil, fmt.Errorf("%w: zstd block decoded %d bytes, want %d", ErrDecode, len(out), expected)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: blosc inner codec %d is not available", ErrDecode, code)
}

func lz4HCLevel(clevel int) lz4.CompressionLevel {
	switch {
	case clevel <= 1:
		return lz4.Level1
	case clevel == 2:
		return lz4.Level2
	case clevel == 3:
		return lz4.Level3
	case clevel == 4:
		return lz4.Level4
	case clevel == 5:
		return lz4.Level5
	case clevel == 6:
		return lz4.Level6
	case clevel == 7:
		return lz4.Level7
	case clevel == 8:
		return lz4.Level8
	default:
		return lz4.Level9
	}
}
