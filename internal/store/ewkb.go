package store

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// encodeExtent serializes a grid envelope as an EWKB polygon tagged with the
// SRID parsed from the CRS identifier, so the blob stays meaningful to
// PostGIS and external GIS tools.
func encodeExtent(b orb.Bound, crsID string) ([]byte, error) {
	flat := []float64{
		b.Min[0], b.Min[1],
		b.Max[0], b.Min[1],
		b.Max[0], b.Max[1],
		b.Min[0], b.Max[1],
		b.Min[0], b.Min[1],
	}
	poly := geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}).SetSRID(sridOf(crsID))
	data, err := ewkb.Marshal(poly, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode extent")
	}
	return data, nil
}

// decodeExtent recovers the envelope from an EWKB blob.
func decodeExtent(data []byte) (orb.Bound, error) {
	if len(data) == 0 {
		return orb.Bound{}, nil
	}
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return orb.Bound{}, eris.Wrap(err, "store: decode extent")
	}
	env := g.Bounds()
	return orb.Bound{
		Min: orb.Point{env.Min(0), env.Min(1)},
		Max: orb.Point{env.Max(0), env.Max(1)},
	}, nil
}

func sridOf(crsID string) int {
	s := strings.TrimPrefix(strings.ToUpper(crsID), "EPSG:")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
