package pixel

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pixelgrid/internal/crs"
)

func testLines(lines ...orb.LineString) *LineSet {
	ls := &LineSet{CRS: crs.CaliforniaAlbers}
	for _, l := range lines {
		ls.Lines = append(ls.Lines, Line{Geometry: l})
	}
	return ls
}

func TestCandidateGrid(t *testing.T) {
	extent := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{300, 300}}
	pts := CandidateGrid(extent, 100)
	require.Len(t, pts, 9)

	// Column-major, y ascending within a column, centroids half a cell in.
	assert.Equal(t, orb.Point{50, 50}, pts[0])
	assert.Equal(t, orb.Point{50, 150}, pts[1])
	assert.Equal(t, orb.Point{50, 250}, pts[2])
	assert.Equal(t, orb.Point{150, 50}, pts[3])
	assert.Equal(t, orb.Point{250, 250}, pts[8])

	// Neighboring centroids are exactly one cell apart.
	assert.InDelta(t, 100, pts[1][1]-pts[0][1], 1e-12)
	assert.InDelta(t, 100, pts[3][0]-pts[0][0], 1e-12)
}

func TestCandidateGridPartialCells(t *testing.T) {
	// 250 x 110 at 100: column and row counts round up.
	extent := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{250, 110}}
	pts := CandidateGrid(extent, 100)
	assert.Len(t, pts, 3*2)
}

func TestCellSquare(t *testing.T) {
	c := Cell{Centroid: orb.Point{50, 50}}
	sq := c.Square(100)
	require.Len(t, sq, 1)
	require.Len(t, sq[0], 5)
	assert.Equal(t, sq[0][0], sq[0][4], "ring closed")
	assert.Equal(t, orb.Point{0, 0}, sq[0][0])
	assert.Equal(t, orb.Point{100, 0}, sq[0][1])
	assert.Equal(t, orb.Point{100, 100}, sq[0][2])
	assert.Equal(t, orb.Point{0, 100}, sq[0][3])

	b := c.Bound(100)
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{100, 100}}, b)
}

func TestFilterToBufferIdempotent(t *testing.T) {
	lines := testLines(orb.LineString{{0, 150}, {300, 150}})
	extent := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{300, 300}}
	pts := CandidateGrid(extent, 100)

	once := FilterToBuffer(pts, lines, 50)
	twice := FilterToBuffer(once, lines, 50)
	assert.Equal(t, once, twice)
	assert.Len(t, once, 3)
}

func TestSynthesizeBisectingLine(t *testing.T) {
	lines := testLines(orb.LineString{{0, 150}, {300, 150}})
	grid, err := Synthesize(context.Background(), lines, Options{
		Name:     "test",
		CellSize: 100,
		Buffer:   50,
		Extent:   orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{300, 300}},
	})
	require.NoError(t, err)

	// Only the middle row's centroids fall within 50 units of the line.
	require.Len(t, grid.Cells, 3)
	assert.Equal(t, orb.Point{50, 150}, grid.Cells[0].Centroid)
	assert.Equal(t, orb.Point{150, 150}, grid.Cells[1].Centroid)
	assert.Equal(t, orb.Point{250, 150}, grid.Cells[2].Centroid)
	assert.Equal(t, crs.CaliforniaAlbers, grid.CRS)
	assert.Equal(t, 100.0, grid.CellSize)
}

func TestSynthesizeOrderIndependentOfWorkers(t *testing.T) {
	lines := testLines(
		orb.LineString{{0, 0}, {1000, 1000}},
		orb.LineString{{0, 1000}, {1000, 0}},
	)
	extent := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1000, 1000}}

	serial, err := Synthesize(context.Background(), lines, Options{
		CellSize: 100, Buffer: 75, Extent: extent, Workers: 1, TileCols: 1,
	})
	require.NoError(t, err)
	parallel, err := Synthesize(context.Background(), lines, Options{
		CellSize: 100, Buffer: 75, Extent: extent, Workers: 8, TileCols: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, serial.Cells, parallel.Cells)
	assert.NotEmpty(t, serial.Cells)
}

func TestSynthesizeDerivedExtent(t *testing.T) {
	lines := testLines(orb.LineString{{100, 100}, {300, 100}})
	grid, err := Synthesize(context.Background(), lines, Options{CellSize: 100, Buffer: 75})
	require.NoError(t, err)
	require.NotEmpty(t, grid.Cells)

	// Every centroid lies within the padded line envelope.
	want := lines.Bound().Pad(75)
	for _, c := range grid.Cells {
		assert.True(t, want.Contains(c.Centroid))
	}
}

func TestSynthesizeErrors(t *testing.T) {
	extent := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{300, 300}}
	lines := testLines(orb.LineString{{0, 150}, {300, 150}})

	_, err := Synthesize(context.Background(), nil, Options{CellSize: 100})
	assert.True(t, eris.Is(err, ErrInputData))

	_, err = Synthesize(context.Background(), &LineSet{CRS: crs.CaliforniaAlbers}, Options{CellSize: 100})
	assert.True(t, eris.Is(err, ErrInputData))

	noCRS := &LineSet{Lines: []Line{{Geometry: orb.LineString{{0, 0}, {1, 1}}}}}
	_, err = Synthesize(context.Background(), noCRS, Options{CellSize: 100})
	assert.True(t, eris.Is(err, ErrCoordinateReference))

	_, err = Synthesize(context.Background(), lines, Options{CellSize: -1})
	assert.True(t, eris.Is(err, ErrConfiguration))

	_, err = Synthesize(context.Background(), lines, Options{
		CellSize: 100, Buffer: 50, Extent: extent, MaxCandidates: 4,
	})
	assert.True(t, eris.Is(err, ErrResourceExhaustion))
}

func TestArtifactRoundTrip(t *testing.T) {
	grid := &Grid{
		Name:     "rt",
		CRS:      crs.CaliforniaAlbers,
		CellSize: 100,
		Cells: []Cell{
			{Centroid: orb.Point{50, 50}, Attributes: map[string]interface{}{"priority": 1.0, "operator": "PGE"}},
			{Centroid: orb.Point{150, 50}},
		},
	}

	path := filepath.Join(t.TempDir(), "rt_pixels.json")
	require.NoError(t, WriteArtifact(path, grid))

	fc, err := ReadArtifact(path)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	// Attributes survive the trip; the cell without any gets an empty set.
	assert.Equal(t, 1.0, fc.Features[0].Properties["priority"])
	assert.Equal(t, "PGE", fc.Features[0].Properties["operator"])
	assert.Empty(t, fc.Features[1].Properties)

	// Squares stay closed five-vertex rings in geographic coordinates.
	poly, ok := fc.Features[0].Geometry.(orb.Polygon)
	require.True(t, ok)
	require.Len(t, poly[0], 5)
	assert.Equal(t, poly[0][0], poly[0][4])
	for _, p := range poly[0] {
		assert.True(t, p[0] >= -180 && p[0] <= 180)
		assert.True(t, p[1] >= -90 && p[1] <= 90)
	}

	back, err := GridFromFeatures("rt", fc, 100, crs.CaliforniaAlbers)
	require.NoError(t, err)
	require.Len(t, back.Cells, 2)
	for i := range grid.Cells {
		assert.InDelta(t, grid.Cells[i].Centroid[0], back.Cells[i].Centroid[0], 0.1)
		assert.InDelta(t, grid.Cells[i].Centroid[1], back.Cells[i].Centroid[1], 0.1)
	}
	assert.Equal(t, 1.0, back.Cells[0].Attributes["priority"])
}

func TestWriteArtifactAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	grid := &Grid{Name: "a", CRS: crs.CaliforniaAlbers, CellSize: 100,
		Cells: []Cell{{Centroid: orb.Point{50, 50}}}}

	require.NoError(t, WriteArtifact(path, grid))
	require.NoError(t, WriteArtifact(path, grid))

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.json", entries[0].Name())
}

func TestReadArtifactErrors(t *testing.T) {
	_, err := ReadArtifact(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("not geojson"), 0o644))
	_, err = ReadArtifact(bad)
	assert.True(t, eris.Is(err, ErrInputData))
}
