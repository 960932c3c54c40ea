// Package geomop provides the planar predicates and spatial prefilters the
// pixel pipeline needs on top of the orb geometry model: point-to-geometry
// distance, axis-aligned box intersection tests, and a grid-bucket index for
// distance queries against large segment sets.
package geomop

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

type segment struct {
	a, b orb.Point
}

type bucketKey struct {
	x, y int64
}

// SegmentIndex answers "is this point within radius of any indexed segment"
// in O(1) per query. Segments are binned into square buckets of side radius;
// each segment is inserted into every bucket its radius-expanded envelope
// touches, so a query only ever inspects the query point's own bucket.
type SegmentIndex struct {
	radius  float64
	side    float64
	buckets map[bucketKey][]segment
	n       int
}

// NewSegmentIndex creates an index answering queries at the given radius.
func NewSegmentIndex(radius float64) *SegmentIndex {
	side := radius
	if side <= 0 {
		side = 1
	}
	return &SegmentIndex{
		radius:  radius,
		side:    side,
		buckets: make(map[bucketKey][]segment),
	}
}

// Radius returns the query radius the index was built for.
func (ix *SegmentIndex) Radius() float64 { return ix.radius }

// Len returns the number of indexed segments.
func (ix *SegmentIndex) Len() int { return ix.n }

// AddLine indexes every segment of the line string.
func (ix *SegmentIndex) AddLine(ls orb.LineString) {
	for i := 0; i+1 < len(ls); i++ {
		ix.addSegment(segment{a: ls[i], b: ls[i+1]})
	}
	if len(ls) == 1 {
		// Degenerate single-vertex input still participates as a point.
		ix.addSegment(segment{a: ls[0], b: ls[0]})
	}
}

func (ix *SegmentIndex) addSegment(s segment) {
	minX := math.Min(s.a[0], s.b[0]) - ix.radius
	maxX := math.Max(s.a[0], s.b[0]) + ix.radius
	minY := math.Min(s.a[1], s.b[1]) - ix.radius
	maxY := math.Max(s.a[1], s.b[1]) + ix.radius

	x0 := int64(math.Floor(minX / ix.side))
	x1 := int64(math.Floor(maxX / ix.side))
	y0 := int64(math.Floor(minY / ix.side))
	y1 := int64(math.Floor(maxY / ix.side))

	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			k := bucketKey{x: x, y: y}
			ix.buckets[k] = append(ix.buckets[k], s)
		}
	}
	ix.n++
}

// Within reports whether p lies within the query radius of any segment.
func (ix *SegmentIndex) Within(p orb.Point) bool {
	k := bucketKey{
		x: int64(math.Floor(p[0] / ix.side)),
		y: int64(math.Floor(p[1] / ix.side)),
	}
	for _, s := range ix.buckets[k] {
		if DistanceToSegment(p, s.a, s.b) <= ix.radius {
			return true
		}
	}
	return false
}

// DistanceToSegment returns the Euclidean distance from p to segment ab.
func DistanceToSegment(p, a, b orb.Point) float64 {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return planar.Distance(p, a)
	}
	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / l2
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return planar.Distance(p, orb.Point{a[0] + t*dx, a[1] + t*dy})
}
