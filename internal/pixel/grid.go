package pixel

import (
	"context"
	"math"
	"runtime"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/pixelgrid/internal/geomop"
)

// Options controls grid synthesis.
type Options struct {
	// Name labels the resulting grid.
	Name string
	// CellSize is the square side length in working-CRS units.
	CellSize float64
	// Buffer is the corridor radius around line geometries. Cells whose
	// centroid lies farther than Buffer from every line are dropped.
	Buffer float64
	// Extent fixes the lattice envelope. When zero it is derived from the
	// line envelope padded by Buffer.
	Extent orb.Bound
	// TileCols is the number of lattice columns processed per work unit.
	TileCols int
	// Workers bounds synthesis concurrency.
	Workers int
	// MaxCandidates caps the candidate lattice size before any filtering.
	MaxCandidates int64
}

func (o Options) withDefaults() Options {
	if o.CellSize == 0 {
		o.CellSize = 100
	}
	if o.Buffer == 0 {
		o.Buffer = 75
	}
	if o.TileCols <= 0 {
		o.TileCols = 64
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.MaxCandidates <= 0 {
		o.MaxCandidates = 200_000_000
	}
	return o
}

// latticeCounts returns the number of centroid columns and rows covering the
// extent at the given cell size.
func latticeCounts(extent orb.Bound, cellSize float64) (nx, ny int64) {
	nx = int64(math.Ceil((extent.Max[0] - extent.Min[0]) / cellSize))
	ny = int64(math.Ceil((extent.Max[1] - extent.Min[1]) / cellSize))
	return nx, ny
}

// CandidateGrid materializes the full centroid lattice for an extent:
// centroids start half a cell in from the minimum corner and step by the
// cell size, column-major with y ascending within each column.
func CandidateGrid(extent orb.Bound, cellSize float64) []orb.Point {
	nx, ny := latticeCounts(extent, cellSize)
	if nx <= 0 || ny <= 0 {
		return nil
	}
	pts := make([]orb.Point, 0, nx*ny)
	for i := int64(0); i < nx; i++ {
		x := extent.Min[0] + cellSize/2 + float64(i)*cellSize
		for j := int64(0); j < ny; j++ {
			y := extent.Min[1] + cellSize/2 + float64(j)*cellSize
			pts = append(pts, orb.Point{x, y})
		}
	}
	return pts
}

// FilterToBuffer keeps the points within radius of any line, preserving
// input order. Applying it twice yields the same result as once.
func FilterToBuffer(pts []orb.Point, lines *LineSet, radius float64) []orb.Point {
	ix := geomop.NewSegmentIndex(radius)
	for _, l := range lines.Lines {
		ix.AddLine(l.Geometry)
	}
	out := make([]orb.Point, 0, len(pts))
	for _, p := range pts {
		if ix.Within(p) {
			out = append(out, p)
		}
	}
	return out
}

// Synthesize builds the pixel grid for a line set: a centroid lattice over
// the extent, filtered to the buffered corridor around the lines. The
// result's cell order is deterministic regardless of worker count.
func Synthesize(ctx context.Context, lines *LineSet, opts Options) (*Grid, error) {
	opts = opts.withDefaults()
	log := zap.L().With(zap.String("component", "pixel"))

	if opts.CellSize <= 0 {
		return nil, eris.Wrapf(ErrConfiguration, "cell size %v", opts.CellSize)
	}
	if opts.Buffer < 0 {
		return nil, eris.Wrapf(ErrConfiguration, "buffer %v", opts.Buffer)
	}
	if lines == nil || len(lines.Lines) == 0 {
		return nil, eris.Wrap(ErrInputData, "no line geometries")
	}
	if lines.CRS == "" {
		return nil, eris.Wrap(ErrCoordinateReference, "line set has no coordinate reference")
	}

	extent := opts.Extent
	if extent == (orb.Bound{}) {
		lb := lines.Bound()
		if lb == (orb.Bound{}) {
			return nil, eris.Wrap(ErrInputData, "line geometries are empty")
		}
		extent = lb.Pad(opts.Buffer)
	}
	if extent.Min[0] >= extent.Max[0] || extent.Min[1] >= extent.Max[1] {
		return nil, eris.Wrap(ErrInputData, "degenerate grid extent")
	}

	nx, ny := latticeCounts(extent, opts.CellSize)
	if nx*ny > opts.MaxCandidates {
		return nil, eris.Wrapf(ErrResourceExhaustion,
			"candidate lattice %d x %d exceeds budget of %d cells", nx, ny, opts.MaxCandidates)
	}

	ix := geomop.NewSegmentIndex(opts.Buffer)
	for _, l := range lines.Lines {
		ix.AddLine(l.Geometry)
	}
	log.Info("synthesizing grid",
		zap.String("name", opts.Name),
		zap.Int64("columns", nx),
		zap.Int64("rows", ny),
		zap.Int("segments", ix.Len()),
		zap.Float64("cellSize", opts.CellSize),
		zap.Float64("buffer", opts.Buffer))

	// Column stripes keep the global column-major order: stripe i holds the
	// survivors of columns [i*TileCols, (i+1)*TileCols) in lattice order.
	nStripes := int((nx + int64(opts.TileCols) - 1) / int64(opts.TileCols))
	results := make([][]Cell, nStripes)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for si := 0; si < nStripes; si++ {
		si := si
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c0 := int64(si) * int64(opts.TileCols)
			c1 := c0 + int64(opts.TileCols)
			if c1 > nx {
				c1 = nx
			}
			var cells []Cell
			for i := c0; i < c1; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				x := extent.Min[0] + opts.CellSize/2 + float64(i)*opts.CellSize
				for j := int64(0); j < ny; j++ {
					y := extent.Min[1] + opts.CellSize/2 + float64(j)*opts.CellSize
					p := orb.Point{x, y}
					if ix.Within(p) {
						cells = append(cells, Cell{Centroid: p})
					}
				}
			}
			results[si] = cells
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "grid synthesis")
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	cells := make([]Cell, 0, total)
	for _, r := range results {
		cells = append(cells, r...)
	}
	log.Info("grid synthesized",
		zap.String("name", opts.Name),
		zap.Int("cells", len(cells)),
		zap.Int64("candidates", nx*ny))

	return &Grid{
		Name:     opts.Name,
		CRS:      lines.CRS,
		CellSize: opts.CellSize,
		Cells:    cells,
	}, nil
}
