package codec

import (
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TuSKan/go-zarr/dtype"
	"github.com/TuSKan/go-zarr/nd"
)

func int16Chunk(t *testing.T, shape []int) *nd.Array {
	t.Helper()
	data := make([]int16, nd.NumElements(shape))
	for i := range data {
		data[i] = int16(i*3 - 100)
	}
	a, err := nd.FromSlice(dtype.Int16, shape, data)
	require.NoError(t, err)
	return a
}

func TestBytesRoundTrip(t *testing.T) {
	for _, endian := range []string{"little", "big"} {
		t.Run(endian, func(t *testing.T) {
			shape := []int{3, 4}
			c, err := NewBytes(dtype.Int16, shape, endian)
			require.NoError(t, err)

			a := int16Chunk(t, shape)
			enc, err := c.Encode(ArrayValue(a))
			require.NoError(t, err)
			raw, err := enc.Bytes()
			require.NoError(t, err)
			require.Len(t, raw, 12*2)

			dec, err := c.Decode(BytesValue(raw))
			require.NoError(t, err)
			back, err := dec.Array()
			require.NoError(t, err)
			require.Equal(t, a.Data(), back.Data())
			require.Equal(t, shape, back.Shape())
		})
	}
}

func TestBytesEndianness(t *testing.T) {
	c, err := NewBytes(dtype.Uint16, []int{1}, "big")
	require.NoError(t, err)
	a, err := nd.FromSlice(dtype.Uint16, []int{1}, []uint16{0x0102})
	require.NoError(t, err)
	enc, err := c.Encode(ArrayValue(a))
	require.NoError(t, err)
	raw, _ := enc.Bytes()
	require.Equal(t, []byte{0x01, 0x02}, raw)
}

func TestBytesConfigOmitsEndianForSingleByte(t *testing.T) {
	c, err := NewBytes(dtype.Uint8, []int{4}, "little")
	require.NoError(t, err)
	require.Nil(t, c.Config())

	c2, err := NewBytes(dtype.Int32, []int{4}, "little")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"endian": "little"}, c2.Config())
}

func TestBytesDomainErrors(t *testing.T) {
	c, err := NewBytes(dtype.Int16, []int{2}, "little")
	require.NoError(t, err)
	_, err = c.Encode(BytesValue([]byte{1, 2}))
	require.ErrorIs(t, err, ErrCodec)
	_, err = c.Decode(BytesValue([]byte{1, 2, 3}))
	require.ErrorIs(t, err, ErrDecode)
}

func TestTransposeRoundTrip(t *testing.T) {
	shape := []int{2, 3, 4}
	tr, err := NewTranspose([]int{2, 1, 0})
	require.NoError(t, err)

	a := int16Chunk(t, shape)
	enc, err := tr.Encode(ArrayValue(a))
	require.NoError(t, err)
	perm, err := enc.Array()
	require.NoError(t, err)
	require.Equal(t, []int{4, 3, 2}, perm.Shape())

	dec, err := tr.Decode(ArrayValue(perm))
	require.NoError(t, err)
	back, err := dec.Array()
	require.NoError(t, err)
	require.Equal(t, a.Shape(), back.Shape())
	require.Equal(t, a.Data(), back.Data())
}

func TestTransposeIdentityIsNoop(t *testing.T) {
	tr, err := NewTranspose([]int{0, 1})
	require.NoError(t, err)
	a := int16Chunk(t, []int{2, 2})
	enc, err := tr.Encode(ArrayValue(a))
	require.NoError(t, err)
	got, err := enc.Array()
	require.NoError(t, err)
	require.Same(t, a, got)
}

func TestTransposeValidation(t *testing.T) {
	_, err := NewTranspose([]int{0})
	require.ErrorIs(t, err, ErrCodec)
	_, err = NewTranspose([]int{0, 0})
	require.ErrorIs(t, err, ErrCodec)
}

func bytesToBytesRoundTrip(t *testing.T, c Codec, payload []byte) {
	t.Helper()
	enc, err := c.Encode(BytesValue(payload))
	require.NoError(t, err)
	raw, err := enc.Bytes()
	require.NoError(t, err)

	dec, err := c.Copy().Decode(BytesValue(raw))
	require.NoError(t, err)
	back, err := dec.Bytes()
	require.NoError(t, err)
	require.Equal(t, payload, back)
}

func repetitivePayload(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i % 17)
	}
	return out
}

// noisyPayload resists compression well enough to exercise fallback
// paths.
func noisyPayload(n int) []byte {
	out := make([]byte, n)
	x := uint32(2463534242)
	for i := range out {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		out[i] = byte(x)
	}
	return out
}

func TestGzipRoundTrip(t *testing.T) {
	c, err := NewGzip(5)
	require.NoError(t, err)
	bytesToBytesRoundTrip(t, c, repetitivePayload(4096))

	_, err = NewGzip(10)
	require.ErrorIs(t, err, ErrCodec)
}

func TestGzipDecodeGarbage(t *testing.T) {
	c, err := NewGzip(1)
	require.NoError(t, err)
	_, err = c.Decode(BytesValue([]byte("not gzip at all")))
	require.ErrorIs(t, err, ErrDecode)
}

func TestZstdRoundTrip(t *testing.T) {
	c, err := NewZstd(3)
	require.NoError(t, err)
	bytesToBytesRoundTrip(t, c, repetitivePayload(4096))
	bytesToBytesRoundTrip(t, c, noisyPayload(1024))

	_, err = NewZstd(0)
	require.ErrorIs(t, err, ErrCodec)
	_, err = NewZstd(21)
	require.ErrorIs(t, err, ErrCodec)
}

func TestCRC32CAppendsChecksum(t *testing.T) {
	c := NewCRC32C(nil)
	payload := []byte("chunk bytes")
	enc, err := c.Encode(BytesValue(payload))
	require.NoError(t, err)
	raw, _ := enc.Bytes()
	require.Len(t, raw, len(payload)+4)

	want := crc32.Checksum(payload, crc32.MakeTable(crc32.Castagnoli))
	require.Equal(t, want, binary.LittleEndian.Uint32(raw[len(payload):]))

	dec, err := c.Decode(BytesValue(raw))
	require.NoError(t, err)
	back, _ := dec.Bytes()
	require.Equal(t, payload, back)
}

func TestCRC32CMismatchIsNonFatal(t *testing.T) {
	c := NewCRC32C(nil)
	enc, err := c.Encode(BytesValue([]byte("chunk bytes")))
	require.NoError(t, err)
	raw, _ := enc.Bytes()
	raw[0] ^= 0xFF

	// The corrupted payload is still returned.
	dec, err := c.Decode(BytesValue(raw))
	require.NoError(t, err)
	back, _ := dec.Bytes()
	require.Equal(t, raw[:len(raw)-4], back)
}

func TestCRC32CTooShort(t *testing.T) {
	c := NewCRC32C(nil)
	_, err := c.Decode(BytesValue([]byte{1, 2}))
	require.ErrorIs(t, err, ErrDecode)
}

func TestShuffleRoundTrip(t *testing.T) {
	for _, ts := range []int{1, 2, 4, 8} {
		payload := repetitivePayload(64*ts + 3) // ragged tail
		require.Equal(t, payload, unshuffleBytes(shuffleBytes(payload, ts), ts), "typesize %d", ts)
		require.Equal(t, payload, bitunshuffleBytes(bitshuffleBytes(payload, ts), ts), "typesize %d", ts)
	}
}

func TestShuffleMovesBytes(t *testing.T) {
	// Two uint16 elements 0x0102, 0x0304 shuffle into low bytes then high.
	src := []byte{0x02, 0x01, 0x04, 0x03}
	require.Equal(t, []byte{0x02, 0x04, 0x01, 0x03}, shuffleBytes(src, 2))
}

func TestBloscRoundTrip(t *testing.T) {
	payloads := map[string][]byte{
		"repetitive": repetitivePayload(10000),
		"noisy":      noisyPayload(10000),
		"tiny":       {1, 2, 3, 4},
		"empty":      {},
	}
	for _, cname := range []string{"lz4", "lz4hc", "zstd", "zlib"} {
		for _, shuffle := range []string{ShuffleNone, ShuffleByte, ShuffleBit} {
			for name, payload := range payloads {
				c, err := NewBlosc(cname, 5, shuffle, 4, 0)
				require.NoError(t, err)
				t.Run(cname+"/"+shuffle+"/"+name, func(t *testing.T) {
					enc, err := c.Encode(BytesValue(payload))
					require.NoError(t, err)
					raw, err := enc.Bytes()
					require.NoError(t, err)
					require.GreaterOrEqual(t, len(raw), bloscHeaderSize)

					dec, err := c.Copy().Decode(BytesValue(raw))
					require.NoError(t, err)
					back, err := dec.Bytes()
					require.NoError(t, err)
					if len(payload) == 0 {
						require.Empty(t, back)
					} else {
						require.Equal(t, payload, back)
					}
				})
			}
		}
	}
}

func TestBloscMultiBlock(t *testing.T) {
	c, err := NewBlosc("zstd", 5, ShuffleByte, 8, 4096)
	require.NoError(t, err)
	payload := repetitivePayload(3*4096 + 1024)
	enc, err := c.Encode(BytesValue(payload))
	require.NoError(t, err)
	raw, _ := enc.Bytes()

	dec, err := c.Decode(BytesValue(raw))
	require.NoError(t, err)
	back, _ := dec.Bytes()
	require.Equal(t, payload, back)
}

func TestBloscClevelZeroIsVerbatim(t *testing.T) {
	c, err := NewBlosc("zstd", 0, ShuffleByte, 4, 0)
	require.NoError(t, err)
	payload := repetitivePayload(256)
	enc, err := c.Encode(BytesValue(payload))
	require.NoError(t, err)
	raw, _ := enc.Bytes()
	require.Equal(t, bloscHeaderSize+len(payload), len(raw))
	require.NotZero(t, raw[2]&bloscFlagMemcpyed)

	dec, err := c.Decode(BytesValue(raw))
	require.NoError(t, err)
	back, _ := dec.Bytes()
	require.Equal(t, payload, back)
}

func TestBloscConfigValidation(t *testing.T) {
	_, err := NewBlosc("snappy", 5, ShuffleByte, 4, 0)
	require.ErrorIs(t, err, ErrCodec)
	_, err = NewBlosc("zstd", 10, ShuffleByte, 4, 0)
	require.ErrorIs(t, err, ErrCodec)
	_, err = NewBlosc("zstd", 5, "wat", 4, 0)
	require.ErrorIs(t, err, ErrCodec)
	_, err = NewBlosc("zstd", 5, ShuffleByte, 3, 0)
	require.ErrorIs(t, err, ErrCodec)

	// blosclz is accepted in configuration but refused at encode time.
	c, err := NewBlosc("blosclz", 5, ShuffleByte, 4, 0)
	require.NoError(t, err)
	_, err = c.Encode(BytesValue(repetitivePayload(64)))
	require.ErrorIs(t, err, ErrCodec)
}

func TestBloscDefaultShuffle(t *testing.T) {
	require.Equal(t, ShuffleNone, DefaultShuffle(dtype.Uint8))
	require.Equal(t, ShuffleNone, DefaultShuffle(dtype.Bool))
	require.Equal(t, ShuffleByte, DefaultShuffle(dtype.Int16))
	require.Equal(t, ShuffleByte, DefaultShuffle(dtype.Float32))
	require.Equal(t, ShuffleBit, DefaultShuffle(dtype.Int64))
	require.Equal(t, ShuffleBit, DefaultShuffle(dtype.Float64))
}

func TestRegistry(t *testing.T) {
	cx := Context{DType: dtype.Int16, ChunkShape: []int{4, 4}, Fill: int16(0)}

	c, err := New(Spec{Name: "blosc", Configuration: map[string]any{}}, cx)
	require.NoError(t, err)
	cfg := c.Config()
	require.Equal(t, "zstd", cfg["cname"])
	require.Equal(t, ShuffleByte, cfg["shuffle"])
	require.Equal(t, 2, cfg["typesize"])

	_, err = New(Spec{Name: "nope"}, cx)
	require.ErrorIs(t, err, ErrCodec)

	require.Contains(t, Names(), "transpose")
	require.Contains(t, Names(), "bytes")
	require.Contains(t, Names(), "crc32c")
}
