package nd

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TuSKan/go-zarr/dtype"
)

func TestStrides(t *testing.T) {
	tests := []struct {
		shape    []int
		expected []int
	}{
		{[]int{5, 20, 4}, []int{80, 4, 1}},
		{[]int{3}, []int{1}},
		{[]int{2, 2}, []int{2, 1}},
		{[]int{}, []int{}},
	}
	for _, tt := range tests {
		got := Strides(tt.shape)
		if !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("Strides(%v) = %v, want %v", tt.shape, got, tt.expected)
		}
	}
}

func seqInt32(n int) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(i)
	}
	return out
}

func TestRegionRoundTrip(t *testing.T) {
	a, err := FromSlice(dtype.Int32, []int{4, 6}, seqInt32(24))
	require.NoError(t, err)

	r, err := a.Region([]int{1, 2}, []int{2, 3})
	require.NoError(t, err)
	require.Equal(t, []int{2, 3}, r.Shape())
	// Rows 1..2, columns 2..4 of the 4x6 sequence.
	require.Equal(t, []int32{8, 9, 10, 14, 15, 16}, r.Data())

	dst := New(dtype.Int32, []int{4, 6})
	require.NoError(t, dst.SetRegion([]int{1, 2}, r))
	back, err := dst.Region([]int{1, 2}, []int{2, 3})
	require.NoError(t, err)
	require.Equal(t, r.Data(), back.Data())

	// Untouched elements stay zero.
	require.Equal(t, int32(0), dst.Data().([]int32)[0])
}

func TestRegionBounds(t *testing.T) {
	a := New(dtype.Float64, []int{3, 3})
	_, err := a.Region([]int{2, 0}, []int{2, 1})
	require.Error(t, err)
	_, err = a.Region([]int{0, 0}, []int{0, 1})
	require.Error(t, err)
	_, err = a.Region([]int{0}, []int{1})
	require.Error(t, err)
}

func TestTranspose(t *testing.T) {
	// 2x3 row-major: [[0 1 2] [3 4 5]].
	a, err := FromSlice(dtype.Int32, []int{2, 3}, seqInt32(6))
	require.NoError(t, err)

	tr, err := a.Transpose([]int{1, 0})
	require.NoError(t, err)
	require.Equal(t, []int{3, 2}, tr.Shape())
	require.Equal(t, []int32{0, 3, 1, 4, 2, 5}, tr.Data())

	back, err := tr.Transpose(InversePermutation([]int{1, 0}))
	require.NoError(t, err)
	require.Equal(t, a.Data(), back.Data())
}

func TestTransposeRank3RoundTrip(t *testing.T) {
	order := []int{2, 0, 1}
	a, err := FromSlice(dtype.Uint16, []int{2, 3, 4}, func() []uint16 {
		out := make([]uint16, 24)
		for i := range out {
			out[i] = uint16(i * 7)
		}
		return out
	}())
	require.NoError(t, err)

	tr, err := a.Transpose(order)
	require.NoError(t, err)
	require.Equal(t, []int{4, 2, 3}, tr.Shape())

	back, err := tr.Transpose(InversePermutation(order))
	require.NoError(t, err)
	require.Equal(t, a.Shape(), back.Shape())
	require.Equal(t, a.Data(), back.Data())
}

func TestCheckPermutation(t *testing.T) {
	require.NoError(t, CheckPermutation([]int{2, 0, 1}, 3))
	require.Error(t, CheckPermutation([]int{0, 0, 1}, 3))
	require.Error(t, CheckPermutation([]int{0, 1}, 3))
	require.Error(t, CheckPermutation([]int{0, 3, 1}, 3))
}

func TestAllEqual(t *testing.T) {
	fill := 9.9692099683868690e+36

	a, err := NewFilled(dtype.Float64, []int{2, 2}, fill)
	require.NoError(t, err)
	require.True(t, a.AllEqual(fill))

	// A value within sqrt(eps) relative tolerance of the sentinel still
	// counts as fill.
	a.Data().([]float64)[1] = fill * (1 + 1e-9)
	require.True(t, a.AllEqual(fill))

	a.Data().([]float64)[1] = 1.0
	require.False(t, a.AllEqual(fill))

	b, err := NewFilled(dtype.Int32, []int{3}, int32(-7))
	require.NoError(t, err)
	require.True(t, b.AllEqual(int32(-7)))
	b.Data().([]int32)[2] = -6
	require.False(t, b.AllEqual(int32(-7)))
}

func TestFillCoercion(t *testing.T) {
	a := New(dtype.Int16, []int{3})
	// JSON numbers arrive as float64; Fill coerces.
	require.NoError(t, a.Fill(float64(-32767)))
	require.Equal(t, []int16{-32767, -32767, -32767}, a.Data())
	require.Error(t, a.Fill("nope"))
}

func TestFromSliceValidation(t *testing.T) {
	_, err := FromSlice(dtype.Int32, []int{2, 2}, []int32{1, 2, 3})
	require.Error(t, err)
	_, err = FromSlice(dtype.Int32, []int{2}, []int64{1, 2})
	require.Error(t, err)
	_, err = FromSlice(dtype.Int32, []int{2}, "nope")
	require.Error(t, err)
}
