package codec

import (
	"fmt"

	"github.com/TuSKan/go-zarr/nd"
)

func init() {
	Register("transpose", newTranspose)
}

// Transpose is an array-to-array stage that permutes dimensions so that
// on-disk storage stays in canonical row-major order while the in-memory
// layout follows the producer's preference. When the configured order is
// the identity both directions are no-ops.
type Transpose struct {
	order []int
}

func newTranspose(cfg map[string]any, cx Context) (Codec, error) {
	order, err := cfgIntSlice(cfg, "order")
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: transpose requires an order", ErrCodec)
	}
	return NewTranspose(order)
}

// NewTranspose builds a transpose stage for the given permutation. Rank
// must be at least 2; a rank-1 permutation cannot reorder anything.
func NewTranspose(order []int) (*Transpose, error) {
	if len(order) < 2 {
		return nil, fmt.Errorf("%w: transpose needs rank >= 2, got %d", ErrCodec, len(order))
	}
	if err := nd.CheckPermutation(order, len(order)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	out := make([]int, len(order))
	copy(out, order)
	return &Transpose{order: out}, nil
}

func (t *Transpose) Name() string { return "transpose" }
func (t *Transpose) From() Domain { return DomainArray }
func (t *Transpose) To() Domain   { return DomainArray }

// Order returns the configured permutation.
func (t *Transpose) Order() []int {
	out := make([]int, len(t.order))
	copy(out, t.order)
	return out
}

func (t *Transpose) identity() bool {
	for i, o := range t.order {
		if i != o {
			return false
		}
	}
	return true
}

func (t *Transpose) Encode(v Value) (Value, error) {
	a, err := v.Array()
	if err != nil {
		return Value{}, err
	}
	if t.identity() {
		return v, nil
	}
	out, err := a.Transpose(t.order)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return ArrayValue(out), nil
}

// Decode applies the inverse permutation, derived from the same
// configuration the encode path reads.
func (t *Transpose) Decode(v Value) (Value, error) {
	a, err := v.Array()
	if err != nil {
		return Value{}, err
	}
	if t.identity() {
		return v, nil
	}
	out, err := a.Transpose(nd.InversePermutation(t.order))
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return ArrayValue(out), nil
}

func (t *Transpose) Config() map[string]any {
	return map[string]any{"order": t.Order()}
}

func (t *Transpose) Copy() Codec {
	c, _ := NewTranspose(t.order)
	return c
}
