package ingest

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pixelgrid/internal/crs"
	"github.com/sells-group/pixelgrid/internal/pixel"
)

func readShapefile(path string, declared crs.CRS) (*Dataset, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	ds := &Dataset{CRS: declared}
	var skipped int
	row := 0
	for reader.Next() {
		_, shape := reader.Shape()
		g := shapeToGeometry(shape)
		if g == nil {
			skipped++
			row++
			continue
		}

		props := make(map[string]interface{}, len(names))
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val == "" {
				continue
			}
			if f, ok := ToFloat(val); ok {
				props[name] = f
			} else {
				props[name] = val
			}
		}
		ds.Features = append(ds.Features, Feature{Geometry: g, Properties: props})
		row++
	}

	if skipped > 0 {
		zap.L().Debug("ingest: skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	if len(ds.Features) == 0 {
		return nil, eris.Wrapf(pixel.ErrInputData, "shapefile %s has no usable records", path)
	}
	return ds, nil
}

func shapeToGeometry(shape shp.Shape) orb.Geometry {
	switch s := shape.(type) {
	case *shp.Point:
		return orb.Point{s.X, s.Y}
	case *shp.PolyLine:
		return polyLineToGeometry(s)
	case *shp.Polygon:
		return polygonToGeometry((*shp.PolyLine)(s))
	}
	return nil
}

func polyLineToGeometry(pl *shp.PolyLine) orb.Geometry {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}
	var mls orb.MultiLineString
	for i := int32(0); i < pl.NumParts; i++ {
		pts := partPoints(pl, i)
		if len(pts) < 2 {
			continue
		}
		ls := make(orb.LineString, len(pts))
		for j, p := range pts {
			ls[j] = orb.Point{p.X, p.Y}
		}
		mls = append(mls, ls)
	}
	switch len(mls) {
	case 0:
		return nil
	case 1:
		return mls[0]
	}
	return mls
}

// polygonToGeometry groups shapefile rings into polygons. Shapefiles wind
// outer rings clockwise and holes counterclockwise; a hole belongs to the
// most recent outer ring.
func polygonToGeometry(p *shp.PolyLine) orb.Geometry {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}
	var mp orb.MultiPolygon
	for i := int32(0); i < p.NumParts; i++ {
		pts := partPoints(p, i)
		if len(pts) < 4 {
			continue
		}
		ring := make(orb.Ring, len(pts))
		for j, q := range pts {
			ring[j] = orb.Point{q.X, q.Y}
		}
		if ring[0] != ring[len(ring)-1] {
			ring = append(ring, ring[0])
		}
		if signedArea(ring) > 0 && len(mp) > 0 {
			mp[len(mp)-1] = append(mp[len(mp)-1], ring)
			continue
		}
		mp = append(mp, orb.Polygon{ring})
	}
	switch len(mp) {
	case 0:
		return nil
	case 1:
		return mp[0]
	}
	return mp
}

func partPoints(pl *shp.PolyLine, part int32) []shp.Point {
	start := pl.Parts[part]
	end := int32(len(pl.Points))
	if part+1 < pl.NumParts {
		end = pl.Parts[part+1]
	}
	if start < 0 || end > int32(len(pl.Points)) || start >= end {
		return nil
	}
	return pl.Points[start:end]
}

// signedArea is positive for counterclockwise rings.
func signedArea(r orb.Ring) float64 {
	var sum float64
	for i := 0; i+1 < len(r); i++ {
		sum += r[i][0]*r[i+1][1] - r[i+1][0]*r[i][1]
	}
	return sum / 2
}
