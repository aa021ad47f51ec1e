package chunk

import (
	"errors"
	"fmt"
)

// ErrBounds reports a hyperslab selection outside the array shape.
var ErrBounds = errors.New("selection out of bounds")

// Grid is the regular chunk grid: an array shape tiled by a fixed chunk
// shape of the same rank.
type Grid struct {
	arrayShape []int
	chunkShape []int
	gridShape  []int
}

// NewGrid validates the shapes and derives the grid extent per dimension.
func NewGrid(arrayShape, chunkShape []int) (*Grid, error) {
	if len(arrayShape) != len(chunkShape) {
		return nil, fmt.Errorf("chunk shape rank %d does not match array rank %d",
			len(chunkShape), len(arrayShape))
	}
	grid := make([]int, len(arrayShape))
	for i := range arrayShape {
		if arrayShape[i] < 1 || chunkShape[i] < 1 {
			return nil, fmt.Errorf("non-positive extent in dimension %d", i)
		}
		grid[i] = (arrayShape[i] + chunkShape[i] - 1) / chunkShape[i]
	}
	return &Grid{
		arrayShape: cloneInts(arrayShape),
		chunkShape: cloneInts(chunkShape),
		gridShape:  grid,
	}, nil
}

// ArrayShape returns the array extent per dimension.
func (g *Grid) ArrayShape() []int { return g.arrayShape }

// ChunkShape returns the chunk extent per dimension.
func (g *Grid) ChunkShape() []int { return g.chunkShape }

// GridShape returns the number of chunks per dimension.
func (g *Grid) GridShape() []int { return g.gridShape }

// Rank returns the dimensionality.
func (g *Grid) Rank() int { return len(g.arrayShape) }

// Section describes one chunk's contribution to a hyperslab: the chunk
// coordinates, the offset of the overlap inside the chunk, the offset of
// the overlap inside the caller's buffer, and the overlap extent.
type Section struct {
	Coords      []int
	ChunkOffset []int
	DestOffset  []int
	Count       []int
}

// Sections decomposes the selection [start, start+count) into per-chunk
// overlaps, enumerating the cross product of touched chunk indices.
func (g *Grid) Sections(start, count []int) ([]Section, error) {
	if len(start) != g.Rank() || len(count) != g.Rank() {
		return nil, fmt.Errorf("selection rank does not match array rank %d", g.Rank())
	}
	for d := range start {
		if start[d] < 0 || count[d] < 1 || start[d]+count[d] > g.arrayShape[d] {
			return nil, fmt.Errorf("%w: [%d, %d) outside dimension %d of length %d",
				ErrBounds, start[d], start[d]+count[d], d, g.arrayShape[d])
		}
	}

	if g.Rank() == 0 {
		return []Section{{Coords: []int{}, ChunkOffset: []int{}, DestOffset: []int{}, Count: []int{}}}, nil
	}

	cLo := make([]int, g.Rank())
	cHi := make([]int, g.Rank())
	for d := range start {
		cLo[d] = start[d] / g.chunkShape[d]
		cHi[d] = (start[d] + count[d] - 1) / g.chunkShape[d]
	}

	var sections []Section
	coords := make([]int, g.Rank())
	copy(coords, cLo)
	for {
		sec := Section{
			Coords:      cloneInts(coords),
			ChunkOffset: make([]int, g.Rank()),
			DestOffset:  make([]int, g.Rank()),
			Count:       make([]int, g.Rank()),
		}
		for d := range coords {
			origin := coords[d] * g.chunkShape[d]
			lo := max(start[d], origin)
			hi := min(start[d]+count[d], origin+g.chunkShape[d])
			sec.ChunkOffset[d] = lo - origin
			sec.DestOffset[d] = lo - start[d]
			sec.Count[d] = hi - lo
		}
		sections = append(sections, sec)

		d := g.Rank() - 1
		for ; d >= 0; d-- {
			coords[d]++
			if coords[d] <= cHi[d] {
				break
			}
			coords[d] = cLo[d]
		}
		if d < 0 {
			break
		}
	}
	return sections, nil
}

func cloneInts(s []int) []int {
	out := make([]int, len(s))
	copy(out, s)
	return out
}
