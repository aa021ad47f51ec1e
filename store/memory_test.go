package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TuSKan/go-zarr/meta"
)

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.Equal(t, ".", m.Separator())

	b, err := m.Get(ctx, "missing", nil)
	require.NoError(t, err)
	require.Nil(t, b)

	require.NoError(t, m.Set(ctx, "k", []byte("0123456789")))
	ok, err := m.Exists(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, m.SetIfNotExists(ctx, "k", []byte("zzz")))
	b, err = m.Get(ctx, "k", nil)
	require.NoError(t, err)
	require.Equal(t, "0123456789", string(b))

	// Returned bytes are copies.
	b[0] = 'X'
	b, _ = m.Get(ctx, "k", nil)
	require.Equal(t, "0123456789", string(b))
}

func TestMemoryByteRanges(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "k", []byte("0123456789")))

	b, err := m.Get(ctx, "k", From(6))
	require.NoError(t, err)
	require.Equal(t, "6789", string(b))

	b, err = m.Get(ctx, "k", Suffix(3))
	require.NoError(t, err)
	require.Equal(t, "789", string(b))

	b, err = m.Get(ctx, "k", Between(2, 5))
	require.NoError(t, err)
	require.Equal(t, "234", string(b))

	_, err = m.Get(ctx, "k", From(10))
	require.ErrorIs(t, err, ErrInvalidRange)
	_, err = m.Get(ctx, "k", Between(5, 5))
	require.ErrorIs(t, err, ErrInvalidRange)
	_, err = m.Get(ctx, "k", Between(7, 3))
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestMemoryListing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "zarr.json", []byte("{}")))
	require.NoError(t, m.Set(ctx, "grp1/zarr.json", []byte("{}")))
	require.NoError(t, m.Set(ctx, "grp1/sub/zarr.json", []byte("{}")))
	require.NoError(t, m.Set(ctx, "grp2/zarr.json", []byte("{}")))
	require.NoError(t, m.Set(ctx, "arr/c.0.0", []byte("x")))

	names, err := m.ListDir(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{"arr", "grp1", "grp2", "zarr.json"}, names)

	names, err = m.ListDir(ctx, "grp1/")
	require.NoError(t, err)
	require.Equal(t, []string{"sub", "zarr.json"}, names)

	keys, err := m.ListPrefix(ctx, "grp1/")
	require.NoError(t, err)
	require.Equal(t, []string{"grp1/sub/zarr.json", "grp1/zarr.json"}, keys)
}

func TestMemoryErasePrefixKeepsNode(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "grp/zarr.json", []byte("{}")))
	require.NoError(t, m.Set(ctx, "grp/arr/zarr.json", []byte("{}")))
	require.NoError(t, m.Set(ctx, "grp/arr/c.0", []byte("x")))

	ok, err := m.ErasePrefix(ctx, "grp/")
	require.NoError(t, err)
	require.True(t, ok)

	keys, err := m.ListPrefix(ctx, "grp/")
	require.NoError(t, err)
	require.Equal(t, []string{"grp/zarr.json"}, keys)

	doc, err := m.GetMetadata(ctx, "grp/")
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.False(t, doc.IsArray())
}

func TestMemoryMetadataLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	doc, err := m.GetMetadata(ctx, "")
	require.NoError(t, err)
	require.Nil(t, doc)

	require.NoError(t, m.SetMetadata(ctx, "", meta.Group()))
	doc, err = m.GetMetadata(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.False(t, doc.IsArray())

	child, err := m.CreateGroup(ctx, "", "grp1")
	require.NoError(t, err)
	require.NotNil(t, child)
	doc, err = m.GetMetadata(ctx, "grp1/")
	require.NoError(t, err)
	require.NotNil(t, doc)
}

func TestMemoryReadsV2Documents(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, ".zgroup", []byte(`{"zarr_format": 2}`)))
	require.NoError(t, m.Set(ctx, ".zattrs", []byte(`{"source": "legacy"}`)))
	require.NoError(t, m.Set(ctx, "a/.zarray", []byte(`{
		"zarr_format": 2, "shape": [4], "chunks": [2], "dtype": "<i4",
		"compressor": null, "fill_value": 0, "order": "C"}`)))

	root, err := m.GetMetadata(ctx, "")
	require.NoError(t, err)
	require.False(t, root.IsArray())
	require.Equal(t, "legacy", root.Attributes["source"])

	arr, err := m.GetMetadata(ctx, "a/")
	require.NoError(t, err)
	require.True(t, arr.IsArray())
	require.Equal(t, meta.KeyEncodingV2, arr.KeyEncoding)
}

func TestMemoryClear(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "k", []byte("v")))
	m.Clear()
	ok, err := m.Exists(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryCapabilities(t *testing.T) {
	caps := NewMemory().Capabilities()
	require.True(t, caps.Writes)
	require.True(t, caps.Deletes)
	require.True(t, caps.Listing)
	require.False(t, caps.ReadOnly)
	require.False(t, caps.ConsolidatedMetadata)
}
