package zarr

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TuSKan/go-zarr/dtype"
	"github.com/TuSKan/go-zarr/store"
)

// censusServer mimics a v2 store published over HTTP with consolidated
// metadata: five coordinate/data arrays, of which latitude carries real
// chunk data.
func censusServer(t *testing.T) *httptest.Server {
	t.Helper()

	zarray := func(shape, chunks int, dt string) map[string]any {
		return map[string]any{
			"zarr_format": 2,
			"shape":       []int{shape},
			"chunks":      []int{chunks},
			"dtype":       dt,
			"compressor":  nil,
			"fill_value":  nil,
			"order":       "C",
		}
	}
	consolidated := map[string]any{
		"zarr_consolidated_format": 1,
		"metadata": map[string]any{
			".zgroup":                      map[string]any{"zarr_format": 2},
			"age_band_lower_bound/.zarray": zarray(21, 21, "<i4"),
			"demographic_totals/.zarray":   zarray(1440, 720, "<f8"),
			"latitude/.zarray":             zarray(720, 720, "<f8"),
			"latitude/.zattrs":             map[string]any{"units": "degrees_north"},
			"longitude/.zarray":            zarray(1440, 1440, "<f8"),
			"year/.zarray":                 zarray(30, 30, "<i4"),
		},
	}
	zmetadata, err := json.Marshal(consolidated)
	require.NoError(t, err)

	latitude := make([]byte, 720*8)
	for i := 0; i < 720; i++ {
		binary.LittleEndian.PutUint64(latitude[i*8:], math.Float64bits(90-0.25*float64(i)))
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/.zmetadata":
			w.Write(zmetadata)
		case "/latitude/0":
			w.Write(latitude)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenConsolidatedHTTP(t *testing.T) {
	ctx := context.Background()
	srv := censusServer(t)

	st, err := store.OpenHTTP(ctx, srv.URL)
	require.NoError(t, err)
	ds, err := Open(ctx, st)
	require.NoError(t, err)

	require.Equal(t, []string{
		"/age_band_lower_bound",
		"/demographic_totals",
		"/latitude",
		"/longitude",
		"/year",
	}, ds.Arrays())

	lat, err := ds.Array("/latitude")
	require.NoError(t, err)
	require.Equal(t, []int{720}, lat.Shape())
	require.Equal(t, "float64", lat.DType().String())
	units, ok := lat.Attribute("units")
	require.True(t, ok)
	require.Equal(t, "degrees_north", units)

	slab, err := lat.ReadAll(ctx)
	require.NoError(t, err)
	values := slab.Data().([]float64)
	require.Len(t, values, 720)
	require.Equal(t, 90.0, values[0])
	require.Equal(t, -89.75, values[719])
	for i := 1; i < len(values); i++ {
		require.InDelta(t, -0.25, values[i]-values[i-1], 1e-12, "difference at %d", i)
	}
}

func TestHTTPDatasetIsReadOnly(t *testing.T) {
	ctx := context.Background()
	srv := censusServer(t)

	st, err := store.OpenHTTP(ctx, srv.URL)
	require.NoError(t, err)
	ds, err := Open(ctx, st)
	require.NoError(t, err)

	_, err = ds.AddGroup(ctx, "/extra")
	require.ErrorIs(t, err, store.ErrReadOnly)

	root, ok := ds.Root().(*Group)
	require.True(t, ok)
	root.SetAttribute("note", "nope")
	require.ErrorIs(t, root.Save(ctx), store.ErrReadOnly)
}

func TestHTTPUnwrittenChunksReadAsFill(t *testing.T) {
	ctx := context.Background()
	srv := censusServer(t)

	st, err := store.OpenHTTP(ctx, srv.URL)
	require.NoError(t, err)
	ds, err := Open(ctx, st)
	require.NoError(t, err)

	year, err := ds.Array("/year")
	require.NoError(t, err)
	slab, err := year.ReadAll(ctx)
	require.NoError(t, err)
	require.True(t, slab.AllEqual(year.FillValue()),
		"missing chunks must surface the fill value")
}

func ExampleCreate() {
	ctx := context.Background()
	mem := store.NewMemory()

	ds, _ := Create(ctx, mem)
	b := NewArrayBuilder().SetDataType(dtype.Int32).SetShape(4, 4)
	_, _ = ds.AddArray(ctx, "/numbers", b)
	fmt.Println(ds.Arrays())
	// Output: [/numbers]
}
