package geomop

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// SegmentIntersectsBound reports whether segment ab touches the box.
// Uses Liang-Barsky parametric clipping after the trivial endpoint checks.
func SegmentIntersectsBound(a, b orb.Point, bound orb.Bound) bool {
	if bound.Contains(a) || bound.Contains(b) {
		return true
	}

	dx := b[0] - a[0]
	dy := b[1] - a[1]
	t0, t1 := 0.0, 1.0

	clip := func(p, q float64) bool {
		if p == 0 {
			return q >= 0
		}
		r := q / p
		if p < 0 {
			if r > t1 {
				return false
			}
			if r > t0 {
				t0 = r
			}
		} else {
			if r < t0 {
				return false
			}
			if r < t1 {
				t1 = r
			}
		}
		return true
	}

	if clip(-dx, a[0]-bound.Min[0]) &&
		clip(dx, bound.Max[0]-a[0]) &&
		clip(-dy, a[1]-bound.Min[1]) &&
		clip(dy, bound.Max[1]-a[1]) {
		return t0 <= t1
	}
	return false
}

// IntersectsBound reports whether g touches the box. Cells are axis-aligned
// squares, so every cell-versus-feature test in the join engine reduces to
// this predicate.
func IntersectsBound(g orb.Geometry, bound orb.Bound) bool {
	if g == nil {
		return false
	}
	if !bound.Intersects(g.Bound()) {
		return false
	}

	switch v := g.(type) {
	case orb.Point:
		return bound.Contains(v)
	case orb.MultiPoint:
		for _, p := range v {
			if bound.Contains(p) {
				return true
			}
		}
		return false
	case orb.LineString:
		return lineTouchesBound(v, bound)
	case orb.MultiLineString:
		for _, ls := range v {
			if IntersectsBound(ls, bound) {
				return true
			}
		}
		return false
	case orb.Ring:
		return IntersectsBound(orb.Polygon{v}, bound)
	case orb.Polygon:
		return polygonTouchesBound(v, bound)
	case orb.MultiPolygon:
		for _, p := range v {
			if polygonTouchesBound(p, bound) {
				return true
			}
		}
		return false
	case orb.Bound:
		return bound.Intersects(v)
	case orb.Collection:
		for _, c := range v {
			if IntersectsBound(c, bound) {
				return true
			}
		}
		return false
	}
	return false
}

func lineTouchesBound(ls orb.LineString, bound orb.Bound) bool {
	for i := 0; i+1 < len(ls); i++ {
		if SegmentIntersectsBound(ls[i], ls[i+1], bound) {
			return true
		}
	}
	return len(ls) == 1 && bound.Contains(ls[0])
}

func polygonTouchesBound(poly orb.Polygon, bound orb.Bound) bool {
	// Any boundary segment crossing or lying inside the box.
	for _, ring := range poly {
		for i := 0; i+1 < len(ring); i++ {
			if SegmentIntersectsBound(ring[i], ring[i+1], bound) {
				return true
			}
		}
	}
	// No edge touches the box, so the box is either fully inside or fully
	// outside the polygon; one containment test settles it.
	return planar.PolygonContains(poly, bound.Center())
}

// Distance returns the Euclidean distance from p to geometry g, zero when p
// lies on or inside g.
func Distance(p orb.Point, g orb.Geometry) float64 {
	if g == nil {
		return math.Inf(1)
	}
	switch v := g.(type) {
	case orb.Point:
		return planar.Distance(p, v)
	case orb.MultiPoint:
		best := math.Inf(1)
		for _, q := range v {
			best = math.Min(best, planar.Distance(p, q))
		}
		return best
	case orb.LineString:
		return distanceToLine(p, v)
	case orb.MultiLineString:
		best := math.Inf(1)
		for _, ls := range v {
			best = math.Min(best, distanceToLine(p, ls))
		}
		return best
	case orb.Ring:
		return Distance(p, orb.Polygon{v})
	case orb.Polygon:
		if planar.PolygonContains(v, p) {
			return 0
		}
		best := math.Inf(1)
		for _, ring := range v {
			best = math.Min(best, distanceToLine(p, orb.LineString(ring)))
		}
		return best
	case orb.MultiPolygon:
		best := math.Inf(1)
		for _, poly := range v {
			best = math.Min(best, Distance(p, poly))
		}
		return best
	case orb.Bound:
		if v.Contains(p) {
			return 0
		}
		return Distance(p, v.ToPolygon())
	case orb.Collection:
		best := math.Inf(1)
		for _, c := range v {
			best = math.Min(best, Distance(p, c))
		}
		return best
	}
	return math.Inf(1)
}

func distanceToLine(p orb.Point, ls orb.LineString) float64 {
	if len(ls) == 1 {
		return planar.Distance(p, ls[0])
	}
	best := math.Inf(1)
	for i := 0; i+1 < len(ls); i++ {
		best = math.Min(best, DistanceToSegment(p, ls[i], ls[i+1]))
	}
	return best
}

// BoundDistance returns a lower bound on the distance from p to anything
// inside b. Used to prune nearest-feature scans.
func BoundDistance(p orb.Point, b orb.Bound) float64 {
	dx := math.Max(math.Max(b.Min[0]-p[0], p[0]-b.Max[0]), 0)
	dy := math.Max(math.Max(b.Min[1]-p[1], p[1]-b.Max[1]), 0)
	return math.Hypot(dx, dy)
}
