package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TuSKan/go-zarr/dtype"
)

func testPipeline(t *testing.T, shape []int) *Pipeline {
	t.Helper()
	tr, err := NewTranspose([]int{1, 0})
	require.NoError(t, err)
	// The bytes stage sees the chunk after the transpose has swapped its
	// dimensions.
	by, err := NewBytes(dtype.Int16, []int{shape[1], shape[0]}, "little")
	require.NoError(t, err)
	gz, err := NewGzip(5)
	require.NoError(t, err)
	p, err := NewPipeline(tr, by, gz)
	require.NoError(t, err)
	return p
}

func TestChainValidation(t *testing.T) {
	by, err := NewBytes(dtype.Int16, []int{2, 2}, "little")
	require.NoError(t, err)
	tr, err := NewTranspose([]int{1, 0})
	require.NoError(t, err)
	gz, err := NewGzip(1)
	require.NoError(t, err)

	_, err = NewPipeline()
	require.ErrorIs(t, err, ErrInvalidChain)

	// Missing array-to-bytes transition.
	_, err = NewPipeline(tr)
	require.ErrorIs(t, err, ErrInvalidChain)

	// Starts in the bytes domain.
	_, err = NewPipeline(gz)
	require.ErrorIs(t, err, ErrInvalidChain)

	// Transpose after the transition breaks adjacency.
	_, err = NewPipeline(by, tr)
	require.ErrorIs(t, err, ErrInvalidChain)

	p, err := NewPipeline(tr, by, gz)
	require.NoError(t, err)
	require.Equal(t, []string{"transpose", "bytes", "gzip"}, p.Names())
}

func TestInsertRemove(t *testing.T) {
	p := testPipeline(t, []int{2, 3})

	// A second bytes stage is refused anywhere.
	by2, err := NewBytes(dtype.Int16, []int{2, 3}, "little")
	require.NoError(t, err)
	require.ErrorIs(t, p.Insert(1, by2), ErrInvalidChain)

	// A checksum stage appends cleanly.
	require.NoError(t, p.Insert(p.Len(), NewCRC32C(nil)))
	require.Equal(t, []string{"transpose", "bytes", "gzip", "crc32c"}, p.Names())

	// Removing the transition is refused; removing a trailing stage is fine.
	require.ErrorIs(t, p.Remove("bytes"), ErrInvalidChain)
	require.NoError(t, p.Remove("crc32c"))
	require.NoError(t, p.Remove("gzip"))
	require.Equal(t, []string{"transpose", "bytes"}, p.Names())

	require.ErrorIs(t, p.Remove("gzip"), ErrInvalidChain)
	require.ErrorIs(t, p.RemoveAt(9), ErrInvalidChain)
}

func TestPipelineRoundTrip(t *testing.T) {
	shape := []int{4, 5}
	p := testPipeline(t, shape)

	a := int16Chunk(t, shape)
	raw, err := p.Encode(a)
	require.NoError(t, err)

	back, err := p.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, a.Shape(), back.Shape())
	require.Equal(t, a.Data(), back.Data())
}

func TestFromSpecsThreadsShapeThroughTranspose(t *testing.T) {
	cx := Context{DType: dtype.Int16, ChunkShape: []int{2, 5}, Fill: int16(0)}
	p, err := FromSpecs([]Spec{
		{Name: "transpose", Configuration: map[string]any{"order": []int{1, 0}}},
		{Name: "bytes", Configuration: map[string]any{"endian": "little"}},
		{Name: "zstd", Configuration: map[string]any{"level": 1}},
	}, cx)
	require.NoError(t, err)

	a := int16Chunk(t, []int{2, 5})
	raw, err := p.Encode(a)
	require.NoError(t, err)
	back, err := p.Decode(raw)
	require.NoError(t, err)
	// The decode path must undo the transpose and land on the chunk shape.
	require.Equal(t, []int{2, 5}, back.Shape())
	require.Equal(t, a.Data(), back.Data())
}

func TestCopyIsIndependent(t *testing.T) {
	p := testPipeline(t, []int{2, 3})
	q := p.Copy()
	require.Equal(t, p.Names(), q.Names())

	require.NoError(t, q.Insert(q.Len(), NewCRC32C(nil)))
	require.Len(t, p.Codecs(), 3)
	require.Len(t, q.Codecs(), 4)
	for i := range p.Codecs() {
		require.NotSame(t, p.Codecs()[i], q.Codecs()[i])
	}
}

func TestSpecsEmission(t *testing.T) {
	p := testPipeline(t, []int{2, 3})
	specs := p.Specs()
	require.Len(t, specs, 3)
	require.Equal(t, "transpose", specs[0].Name)
	require.Equal(t, []int{1, 0}, specs[0].Configuration["order"])
	require.Equal(t, "bytes", specs[1].Name)
	require.Equal(t, "little", specs[1].Configuration["endian"])
	require.Equal(t, "gzip", specs[2].Name)
}

func TestDecodeError(t *testing.T) {
	p := testPipeline(t, []int{2, 3})
	_, err := p.Decode([]byte("definitely not gzip"))
	require.ErrorIs(t, err, ErrDecode)
}
