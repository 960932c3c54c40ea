package join

import (
	"context"
	"math"
	"runtime"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/pixelgrid/internal/geomop"
	"github.com/sells-group/pixelgrid/internal/ingest"
	"github.com/sells-group/pixelgrid/internal/pixel"
)

// Binding pairs a rule with the dataset it draws from. The dataset must be
// in the grid's CRS.
type Binding struct {
	SourceName string
	Source     *ingest.Dataset
	Rule       Rule
}

// Engine evaluates attribute-join rules against a grid.
type Engine struct {
	// Workers bounds rule-level concurrency.
	Workers int
}

// strategy computes one attribute column: a value per cell, nil meaning the
// attribute is omitted. matched counts the cells any source feature reached,
// before defaults are applied.
type strategy interface {
	apply(ctx context.Context, grid *pixel.Grid, ix *CellIndex, src *ingest.Dataset, rule Rule) (col []interface{}, matched int)
}

func strategyFor(kind Kind) strategy {
	switch kind {
	case Binary:
		return binaryStrategy{}
	case BinaryCentroid:
		return binaryStrategy{centroidOnly: true}
	case Numeric:
		return numericStrategy{}
	case Nearest:
		return nearestStrategy{}
	}
	return nil
}

// Attach evaluates every binding and returns a new grid whose cells carry
// the resulting attributes. The input grid is not modified. Rules are
// independent: each sees only the bare grid, never another rule's output,
// so evaluation order cannot affect the result.
func (e *Engine) Attach(ctx context.Context, grid *pixel.Grid, bindings []Binding) (*pixel.Grid, error) {
	workers := e.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	log := zap.L().With(zap.String("component", "join"), zap.String("grid", grid.Name))

	seen := make(map[string]bool, len(bindings))
	for _, b := range bindings {
		if err := b.Rule.Validate(); err != nil {
			return nil, err
		}
		if seen[b.Rule.Target] {
			return nil, eris.Wrapf(pixel.ErrConfiguration, "duplicate target attribute %q", b.Rule.Target)
		}
		seen[b.Rule.Target] = true
		if b.Source == nil || len(b.Source.Features) == 0 {
			return nil, eris.Wrapf(pixel.ErrInputData, "rule %q: source %q has no features", b.Rule.Target, b.SourceName)
		}
		if b.Source.CRS != grid.CRS {
			return nil, eris.Wrapf(pixel.ErrCoordinateReference,
				"rule %q: source %q is in %s, grid is in %s",
				b.Rule.Target, b.SourceName, string(b.Source.CRS), string(grid.CRS))
		}
		// A field no feature carries is a misconfiguration (typically a typo),
		// not a zero-match; the warning below is reserved for the latter.
		for _, field := range []string{b.Rule.Field, b.Rule.MultiplyBy} {
			if field == "" {
				continue
			}
			if !hasField(b.Source, field) {
				return nil, eris.Wrapf(pixel.ErrConfiguration,
					"rule %q: source %q has no field %q", b.Rule.Target, b.SourceName, field)
			}
		}
	}

	ix := NewCellIndex(grid)
	columns := make([][]interface{}, len(bindings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for bi, b := range bindings {
		bi, b := bi, b
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rule := b.Rule.withDefaults()
			col, matched := strategyFor(rule.Kind).apply(gctx, grid, ix, b.Source, rule)
			if matched == 0 {
				log.Warn("join rule matched no cells",
					zap.String("target", rule.Target),
					zap.String("source", b.SourceName))
			}
			columns[bi] = col
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "attribute join")
	}

	out := &pixel.Grid{Name: grid.Name, CRS: grid.CRS, CellSize: grid.CellSize,
		Cells: make([]pixel.Cell, len(grid.Cells))}
	for i, c := range grid.Cells {
		attrs := make(map[string]interface{}, len(c.Attributes)+len(bindings))
		for k, v := range c.Attributes {
			attrs[k] = v
		}
		out.Cells[i] = pixel.Cell{Centroid: c.Centroid, Attributes: attrs}
	}
	for bi, b := range bindings {
		for ci, v := range columns[bi] {
			if v == nil {
				continue
			}
			out.Cells[ci].Attributes[b.Rule.Target] = v
		}
	}

	log.Info("attributes attached",
		zap.Int("cells", len(grid.Cells)),
		zap.Int("rules", len(bindings)))
	return out, nil
}

// hasField reports whether any feature in the dataset carries the property.
func hasField(src *ingest.Dataset, field string) bool {
	for _, f := range src.Features {
		if _, ok := f.Properties[field]; ok {
			return true
		}
	}
	return false
}

// unmatched maps the rule's default policy to a column value.
func unmatched(rule Rule) interface{} {
	if rule.Default == DefaultNull {
		return nil
	}
	return 0.0
}

type binaryStrategy struct {
	centroidOnly bool
}

func (s binaryStrategy) apply(_ context.Context, grid *pixel.Grid, ix *CellIndex, src *ingest.Dataset, rule Rule) ([]interface{}, int) {
	hit := make([]bool, len(grid.Cells))
	for _, f := range src.Features {
		if f.Geometry == nil {
			continue
		}
		for _, ci := range ix.Candidates(f.Geometry.Bound()) {
			if hit[ci] {
				continue
			}
			if s.centroidOnly {
				hit[ci] = geomop.Distance(grid.Cells[ci].Centroid, f.Geometry) == 0
			} else {
				hit[ci] = geomop.IntersectsBound(f.Geometry, grid.Cells[ci].Bound(grid.CellSize))
			}
		}
	}

	col := make([]interface{}, len(grid.Cells))
	matched := 0
	for i, m := range hit {
		if m {
			col[i] = 1.0
			matched++
		} else {
			col[i] = unmatched(rule)
		}
	}
	return col, matched
}

type numericStrategy struct{}

func (numericStrategy) apply(_ context.Context, grid *pixel.Grid, ix *CellIndex, src *ingest.Dataset, rule Rule) ([]interface{}, int) {
	n := len(grid.Cells)
	sums := make([]float64, n)
	mins := make([]float64, n)
	maxs := make([]float64, n)
	counts := make([]int, n)
	var skipped int

	for _, f := range src.Features {
		if f.Geometry == nil {
			continue
		}
		val, ok := ingest.ToFloat(f.Properties[rule.Field])
		if rule.Field != "" && !ok {
			skipped++
			continue
		}
		for _, ci := range ix.Candidates(f.Geometry.Bound()) {
			if !geomop.IntersectsBound(f.Geometry, grid.Cells[ci].Bound(grid.CellSize)) {
				continue
			}
			if counts[ci] == 0 {
				mins[ci] = val
				maxs[ci] = val
			} else {
				mins[ci] = math.Min(mins[ci], val)
				maxs[ci] = math.Max(maxs[ci], val)
			}
			sums[ci] += val
			counts[ci]++
		}
	}
	if skipped > 0 {
		zap.L().Debug("numeric join skipped non-numeric features",
			zap.String("component", "join"),
			zap.String("target", rule.Target),
			zap.Int("skipped", skipped))
	}

	col := make([]interface{}, n)
	matched := 0
	for i := 0; i < n; i++ {
		if counts[i] == 0 {
			col[i] = unmatched(rule)
			continue
		}
		matched++
		switch rule.Agg {
		case AggSum:
			col[i] = sums[i]
		case AggMean:
			col[i] = sums[i] / float64(counts[i])
		case AggMax:
			col[i] = maxs[i]
		case AggMin:
			col[i] = mins[i]
		case AggCount:
			col[i] = float64(counts[i])
		}
	}
	return col, matched
}

type nearFeature struct {
	geom  orb.Geometry
	bound orb.Bound
	value interface{}
}

type nearestStrategy struct{}

// apply copies a field from the closest feature to each centroid. Features
// are scanned in source order with a bound-distance lower bound as the
// prune; the strict improvement test makes the lowest-index feature win
// exact ties.
func (nearestStrategy) apply(ctx context.Context, grid *pixel.Grid, _ *CellIndex, src *ingest.Dataset, rule Rule) ([]interface{}, int) {
	feats := make([]nearFeature, 0, len(src.Features))
	for _, f := range src.Features {
		if f.Geometry == nil {
			continue
		}
		var value interface{}
		if rule.MultiplyBy != "" {
			a, okA := ingest.ToFloat(f.Properties[rule.Field])
			b, okB := ingest.ToFloat(f.Properties[rule.MultiplyBy])
			if okA && okB {
				value = a * b
			}
		} else {
			value = f.Properties[rule.Field]
		}
		feats = append(feats, nearFeature{geom: f.Geometry, bound: f.Geometry.Bound(), value: value})
	}

	col := make([]interface{}, len(grid.Cells))
	matched := 0
	for ci, cell := range grid.Cells {
		if ctx.Err() != nil {
			return col, matched
		}
		best := math.Inf(1)
		bestIdx := -1
		for fi := range feats {
			if geomop.BoundDistance(cell.Centroid, feats[fi].bound) >= best {
				continue
			}
			if d := geomop.Distance(cell.Centroid, feats[fi].geom); d < best {
				best = d
				bestIdx = fi
			}
		}
		if bestIdx < 0 || (rule.MaxDistance > 0 && best > rule.MaxDistance) || feats[bestIdx].value == nil {
			col[ci] = unmatched(rule)
			continue
		}
		col[ci] = feats[bestIdx].value
		matched++
	}
	return col, matched
}
