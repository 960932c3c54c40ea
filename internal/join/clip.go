package join

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pixelgrid/internal/geomop"
	"github.com/sells-group/pixelgrid/internal/ingest"
	"github.com/sells-group/pixelgrid/internal/pixel"
)

// ClipToBoundary keeps whole cells whose square intersects any boundary
// feature; cells are never split. The boundary must already be in the
// grid's CRS. An empty result is a warning unless requireCells is set, in
// which case it is an error.
func ClipToBoundary(grid *pixel.Grid, name string, boundary *ingest.Dataset, requireCells bool) (*pixel.Grid, error) {
	if boundary == nil || len(boundary.Features) == 0 {
		return nil, eris.Wrapf(pixel.ErrBoundaryMismatch, "jurisdiction %q has no boundary features", name)
	}
	if boundary.CRS != grid.CRS {
		return nil, eris.Wrapf(pixel.ErrBoundaryMismatch,
			"jurisdiction %q boundary is in %s, grid is in %s", name, string(boundary.CRS), string(grid.CRS))
	}

	ix := NewCellIndex(grid)
	keep := make([]bool, len(grid.Cells))
	for _, f := range boundary.Features {
		if f.Geometry == nil {
			continue
		}
		for _, ci := range ix.Candidates(f.Geometry.Bound()) {
			if keep[ci] {
				continue
			}
			if geomop.IntersectsBound(f.Geometry, grid.Cells[ci].Bound(grid.CellSize)) {
				keep[ci] = true
			}
		}
	}

	out := &pixel.Grid{Name: name, CRS: grid.CRS, CellSize: grid.CellSize}
	for i, k := range keep {
		if k {
			out.Cells = append(out.Cells, pixel.Cell{Centroid: grid.Cells[i].Centroid})
		}
	}

	if len(out.Cells) == 0 {
		if requireCells {
			return nil, eris.Wrapf(pixel.ErrBoundaryMismatch,
				"jurisdiction %q intersects no grid cells", name)
		}
		zap.L().Warn("jurisdiction intersects no grid cells",
			zap.String("component", "join"),
			zap.String("jurisdiction", name))
	}
	return out, nil
}
