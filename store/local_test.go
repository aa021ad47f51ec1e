package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TuSKan/go-zarr/meta"
)

func TestLocalOpenRequiresMetadata(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	_, err := OpenLocal(ctx, dir)
	require.ErrorIs(t, err, ErrStore)

	s, err := CreateLocal(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, s.SetMetadata(ctx, "", meta.Group()))
	require.NoError(t, s.Close())

	s, err = OpenLocal(ctx, dir)
	require.NoError(t, err)
	defer s.Close()
	doc, err := s.GetMetadata(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Equal(t, "/", s.Separator())
}

func TestLocalSetCreatesIntermediateDirectories(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := CreateLocal(ctx, dir)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(ctx, "grp/arr/c/0/1", []byte("chunk")))
	b, err := os.ReadFile(filepath.Join(dir, "grp", "arr", "c", "0", "1"))
	require.NoError(t, err)
	require.Equal(t, "chunk", string(b))

	got, err := s.Get(ctx, "grp/arr/c/0/1", Between(0, 2))
	require.NoError(t, err)
	require.Equal(t, "ch", string(got))
}

func TestLocalListDir(t *testing.T) {
	ctx := context.Background()
	s, err := CreateLocal(ctx, t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetMetadata(ctx, "", meta.Group()))
	require.NoError(t, s.Set(ctx, "grp1/zarr.json", []byte("{}")))
	require.NoError(t, s.Set(ctx, "grp1/sub/zarr.json", []byte("{}")))
	require.NoError(t, s.Set(ctx, "grp2/zarr.json", []byte("{}")))

	names, err := s.ListDir(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{"grp1", "grp2", "zarr.json"}, names)

	names, err = s.ListDir(ctx, "grp1/")
	require.NoError(t, err)
	require.Equal(t, []string{"sub", "zarr.json"}, names)
}

func TestLocalEraseRefusesPopulatedSubtree(t *testing.T) {
	ctx := context.Background()
	s, err := CreateLocal(ctx, t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(ctx, "grp/zarr.json", []byte("{}")))
	require.NoError(t, s.Set(ctx, "grp/arr/zarr.json", []byte("{}")))

	// "grp" still has a descendant directory, so it cannot be erased.
	ok, err := s.Erase(ctx, "grp")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = s.Erase(ctx, "grp/arr/zarr.json")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Erase(ctx, "grp/arr/zarr.json")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLocalErasePrefixRewritesGroup(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := CreateLocal(ctx, dir)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(ctx, "grp/zarr.json", []byte("{}")))
	require.NoError(t, s.Set(ctx, "grp/a/zarr.json", []byte("{}")))
	require.NoError(t, s.Set(ctx, "grp/a/c/0", []byte("x")))

	ok, err := s.ErasePrefix(ctx, "grp/")
	require.NoError(t, err)
	require.True(t, ok)

	keys, err := s.ListPrefix(ctx, "grp/")
	require.NoError(t, err)
	require.Equal(t, []string{"grp/zarr.json"}, keys)

	doc, err := s.GetMetadata(ctx, "grp/")
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.False(t, doc.IsArray())
}
