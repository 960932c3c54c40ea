package join

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"

	"github.com/sells-group/pixelgrid/internal/pixel"
)

// cellPointer lets the quadtree hand back cell slice indexes.
type cellPointer struct {
	idx int
	pt  orb.Point
}

func (c cellPointer) Point() orb.Point { return c.pt }

// CellIndex answers "which cells might a feature touch" via a quadtree over
// the cell centroids. A feature envelope expanded by half a cell size is
// guaranteed to cover the centroid of every cell whose square the feature
// can intersect.
type CellIndex struct {
	grid *pixel.Grid
	qt   *quadtree.Quadtree
}

// NewCellIndex builds the centroid quadtree for a grid.
func NewCellIndex(grid *pixel.Grid) *CellIndex {
	ix := &CellIndex{grid: grid}
	if len(grid.Cells) == 0 {
		return ix
	}
	ix.qt = quadtree.New(grid.Extent())
	for i, c := range grid.Cells {
		// Centroids always lie inside the extent, so Add cannot fail.
		_ = ix.qt.Add(cellPointer{idx: i, pt: c.Centroid})
	}
	return ix
}

// Candidates returns the indexes of cells whose square could intersect a
// feature with the given envelope. Callers still need an exact test.
func (ix *CellIndex) Candidates(b orb.Bound) []int {
	if ix.qt == nil {
		return nil
	}
	padded := b.Pad(ix.grid.CellSize / 2)
	ptrs := ix.qt.InBound(nil, padded)
	out := make([]int, 0, len(ptrs))
	for _, p := range ptrs {
		out = append(out, p.(cellPointer).idx)
	}
	return out
}
