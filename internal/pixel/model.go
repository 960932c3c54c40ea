// Package pixel implements grid synthesis: converting electrical line
// geometries into a fixed-resolution lattice of square cells covering the
// buffered corridor around the lines. All synthesis math happens in a
// projected working CRS with meter units; artifacts are serialized in
// geographic coordinates.
package pixel

import (
	"github.com/paulmach/orb"

	"github.com/sells-group/pixelgrid/internal/crs"
)

// Line is a single electrical line geometry with the attributes carried
// through from the source file.
type Line struct {
	Geometry orb.LineString
	LoadKW   float64
	Utility  string
}

// LineSet is a collection of lines in a declared coordinate reference.
type LineSet struct {
	CRS   crs.CRS
	Lines []Line
}

// Bound returns the envelope of all line geometries.
func (ls *LineSet) Bound() orb.Bound {
	var b orb.Bound
	first := true
	for _, l := range ls.Lines {
		if len(l.Geometry) == 0 {
			continue
		}
		if first {
			b = l.Geometry.Bound()
			first = false
			continue
		}
		b = b.Union(l.Geometry.Bound())
	}
	return b
}

// Cell is one grid cell, identified by its centroid in the grid's CRS.
// Attributes start empty and are populated by the join engine.
type Cell struct {
	Centroid   orb.Point
	Attributes map[string]interface{}
}

// Square returns the closed axis-aligned square of the given side length
// centered on the cell, wound counterclockwise with the first vertex
// repeated as the last.
func (c Cell) Square(size float64) orb.Polygon {
	h := size / 2
	x, y := c.Centroid[0], c.Centroid[1]
	return orb.Polygon{orb.Ring{
		{x - h, y - h},
		{x + h, y - h},
		{x + h, y + h},
		{x - h, y + h},
		{x - h, y - h},
	}}
}

// Bound returns the cell's envelope for the given side length.
func (c Cell) Bound(size float64) orb.Bound {
	h := size / 2
	return orb.Bound{
		Min: orb.Point{c.Centroid[0] - h, c.Centroid[1] - h},
		Max: orb.Point{c.Centroid[0] + h, c.Centroid[1] + h},
	}
}

// Grid is a synthesized pixel grid. Cells are ordered column-major:
// x ascending, then y ascending within each column.
type Grid struct {
	Name     string
	CRS      crs.CRS
	CellSize float64
	Cells    []Cell
}

// Extent returns the envelope of all cell squares.
func (g *Grid) Extent() orb.Bound {
	var b orb.Bound
	for i, c := range g.Cells {
		cb := c.Bound(g.CellSize)
		if i == 0 {
			b = cb
			continue
		}
		b = b.Union(cb)
	}
	return b
}
