package geomop

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestDistanceToSegment(t *testing.T) {
	a := orb.Point{0, 0}
	b := orb.Point{10, 0}

	assert.InDelta(t, 5, DistanceToSegment(orb.Point{5, 5}, a, b), 1e-12)
	assert.InDelta(t, 0, DistanceToSegment(orb.Point{3, 0}, a, b), 1e-12)
	// Beyond the endpoints the distance is to the nearest endpoint.
	assert.InDelta(t, 5, DistanceToSegment(orb.Point{-3, 4}, a, b), 1e-12)
	assert.InDelta(t, 5, DistanceToSegment(orb.Point{13, 4}, a, b), 1e-12)
	// Degenerate zero-length segment.
	assert.InDelta(t, 5, DistanceToSegment(orb.Point{3, 4}, a, a), 1e-12)
}

func TestSegmentIndexWithin(t *testing.T) {
	ix := NewSegmentIndex(75)
	ix.AddLine(orb.LineString{{0, 0}, {1000, 0}})

	assert.True(t, ix.Within(orb.Point{500, 50}))
	assert.True(t, ix.Within(orb.Point{500, 75}))
	assert.False(t, ix.Within(orb.Point{500, 76}))
	assert.True(t, ix.Within(orb.Point{-50, 0}))
	assert.False(t, ix.Within(orb.Point{-80, 0}))
	// Diagonal from the endpoint.
	assert.True(t, ix.Within(orb.Point{1045, 45}))
	assert.False(t, ix.Within(orb.Point{1060, 60}))
}

func TestSegmentIndexMultipleLines(t *testing.T) {
	ix := NewSegmentIndex(10)
	ix.AddLine(orb.LineString{{0, 0}, {100, 0}})
	ix.AddLine(orb.LineString{{0, 1000}, {100, 1000}})
	assert.Equal(t, 2, ix.Len())

	assert.True(t, ix.Within(orb.Point{50, 5}))
	assert.True(t, ix.Within(orb.Point{50, 995}))
	assert.False(t, ix.Within(orb.Point{50, 500}))
}

func TestSegmentIntersectsBound(t *testing.T) {
	b := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}

	// Endpoint inside.
	assert.True(t, SegmentIntersectsBound(orb.Point{5, 5}, orb.Point{20, 20}, b))
	// Pass-through with both endpoints outside.
	assert.True(t, SegmentIntersectsBound(orb.Point{-5, 5}, orb.Point{15, 5}, b))
	// Diagonal crossing a corner region.
	assert.True(t, SegmentIntersectsBound(orb.Point{-1, 5}, orb.Point{5, 11}, b))
	// Clear miss.
	assert.False(t, SegmentIntersectsBound(orb.Point{-5, 20}, orb.Point{15, 20}, b))
	// Miss that clips the expanded corner but not the box.
	assert.False(t, SegmentIntersectsBound(orb.Point{11, 0}, orb.Point{20, 0.1}, b))
}

func TestIntersectsBound(t *testing.T) {
	b := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}

	assert.True(t, IntersectsBound(orb.Point{5, 5}, b))
	assert.False(t, IntersectsBound(orb.Point{15, 5}, b))

	assert.True(t, IntersectsBound(orb.LineString{{-5, 5}, {15, 5}}, b))
	assert.False(t, IntersectsBound(orb.LineString{{-5, 15}, {15, 15}}, b))

	// Polygon overlapping the box edge.
	overlap := orb.Polygon{{{5, 5}, {20, 5}, {20, 20}, {5, 20}, {5, 5}}}
	assert.True(t, IntersectsBound(overlap, b))

	// Polygon fully containing the box: no edge crossings.
	big := orb.Polygon{{{-100, -100}, {100, -100}, {100, 100}, {-100, 100}, {-100, -100}}}
	assert.True(t, IntersectsBound(big, b))

	// Polygon fully inside the box.
	small := orb.Polygon{{{2, 2}, {4, 2}, {4, 4}, {2, 4}, {2, 2}}}
	assert.True(t, IntersectsBound(small, b))

	// Disjoint polygon whose bbox also misses.
	far := orb.Polygon{{{50, 50}, {60, 50}, {60, 60}, {50, 60}, {50, 50}}}
	assert.False(t, IntersectsBound(far, b))

	// Polygon with a hole covering the box: bbox overlaps, geometry does not.
	ring := orb.Ring{{-100, -100}, {100, -100}, {100, 100}, {-100, 100}, {-100, -100}}
	hole := orb.Ring{{-20, -20}, {-20, 20}, {20, 20}, {20, -20}, {-20, -20}}
	donut := orb.Polygon{ring, hole}
	assert.False(t, IntersectsBound(donut, b))
}

func TestDistance(t *testing.T) {
	assert.InDelta(t, 5, Distance(orb.Point{3, 4}, orb.Point{0, 0}), 1e-12)
	assert.InDelta(t, 4, Distance(orb.Point{5, 4}, orb.LineString{{0, 0}, {10, 0}}), 1e-12)

	poly := orb.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}}
	assert.Equal(t, 0.0, Distance(orb.Point{5, 5}, poly))
	assert.InDelta(t, 3, Distance(orb.Point{13, 5}, poly), 1e-12)

	mp := orb.MultiPoint{{0, 0}, {100, 0}}
	assert.InDelta(t, 2, Distance(orb.Point{98, 0}, mp), 1e-12)

	assert.True(t, math.IsInf(Distance(orb.Point{0, 0}, nil), 1))
}

func TestBoundDistance(t *testing.T) {
	b := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}
	assert.Equal(t, 0.0, BoundDistance(orb.Point{5, 5}, b))
	assert.InDelta(t, 5, BoundDistance(orb.Point{15, 5}, b), 1e-12)
	assert.InDelta(t, 5, BoundDistance(orb.Point{13, 14}, b), 1e-12)
}
