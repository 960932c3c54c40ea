package crs

import (
	"strings"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
)

// A CRS identifies a coordinate reference system by EPSG code.
type CRS string

const (
	// WGS84 is geographic longitude/latitude in degrees.
	WGS84 CRS = "EPSG:4326"
	// CaliforniaAlbers is NAD83 / California Albers, the working projected
	// CRS for grid synthesis. Units are meters.
	CaliforniaAlbers CRS = "EPSG:3310"
	// WebMercator is the spherical Mercator projection used by web maps.
	WebMercator CRS = "EPSG:3857"
)

// ErrUnknown indicates a CRS that is missing or not in the registry.
var ErrUnknown = eris.New("crs: unknown or missing coordinate reference")

// projection converts between geographic coordinates (degrees) and
// projected coordinates. WGS84 itself uses the identity projection.
type projection interface {
	forward(lon, lat float64) (x, y float64)
	inverse(x, y float64) (lon, lat float64)
}

type geographic struct{}

func (geographic) forward(lon, lat float64) (float64, float64) { return lon, lat }
func (geographic) inverse(x, y float64) (float64, float64)     { return x, y }

var registry = map[CRS]projection{
	WGS84:            geographic{},
	CaliforniaAlbers: newCaliforniaAlbers(),
	WebMercator:      sphericalMercator{},
}

// Parse normalizes a CRS identifier. It accepts EPSG:<code> in any case and
// the OGC CRS84 aliases commonly found in GeoJSON files.
func Parse(s string) (CRS, error) {
	if s == "" {
		return "", eris.Wrap(ErrUnknown, "empty identifier")
	}
	u := strings.ToUpper(strings.TrimSpace(s))
	switch u {
	case "CRS84", "OGC:CRS84", "URN:OGC:DEF:CRS:OGC:1.3:CRS84":
		return WGS84, nil
	}
	if !strings.HasPrefix(u, "EPSG:") {
		return "", eris.Wrapf(ErrUnknown, "identifier %q", s)
	}
	c := CRS(u)
	if _, ok := registry[c]; !ok {
		return "", eris.Wrapf(ErrUnknown, "identifier %q", s)
	}
	return c, nil
}

// Transform converts coordinates from one CRS to another by way of
// geographic coordinates.
type Transform struct {
	src, dst CRS
	from, to projection
}

// NewTransform builds a transform between two registered systems.
func NewTransform(src, dst CRS) (*Transform, error) {
	from, ok := registry[src]
	if !ok {
		return nil, eris.Wrapf(ErrUnknown, "source %q", string(src))
	}
	to, ok := registry[dst]
	if !ok {
		return nil, eris.Wrapf(ErrUnknown, "destination %q", string(dst))
	}
	return &Transform{src: src, dst: dst, from: from, to: to}, nil
}

// Identity reports whether the transform is a no-op.
func (t *Transform) Identity() bool { return t.src == t.dst }

// Point transforms a single coordinate pair.
func (t *Transform) Point(p orb.Point) orb.Point {
	if t.Identity() {
		return p
	}
	lon, lat := t.from.inverse(p[0], p[1])
	x, y := t.to.forward(lon, lat)
	return orb.Point{x, y}
}

// Geometry returns a transformed copy of g. The input is not modified.
func (t *Transform) Geometry(g orb.Geometry) orb.Geometry {
	if g == nil {
		return nil
	}
	if t.Identity() {
		return orb.Clone(g)
	}
	switch v := g.(type) {
	case orb.Point:
		return t.Point(v)
	case orb.MultiPoint:
		out := make(orb.MultiPoint, len(v))
		for i, p := range v {
			out[i] = t.Point(p)
		}
		return out
	case orb.LineString:
		out := make(orb.LineString, len(v))
		for i, p := range v {
			out[i] = t.Point(p)
		}
		return out
	case orb.MultiLineString:
		out := make(orb.MultiLineString, len(v))
		for i, ls := range v {
			out[i] = t.Geometry(ls).(orb.LineString)
		}
		return out
	case orb.Ring:
		out := make(orb.Ring, len(v))
		for i, p := range v {
			out[i] = t.Point(p)
		}
		return out
	case orb.Polygon:
		out := make(orb.Polygon, len(v))
		for i, r := range v {
			out[i] = t.Geometry(r).(orb.Ring)
		}
		return out
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(v))
		for i, p := range v {
			out[i] = t.Geometry(p).(orb.Polygon)
		}
		return out
	case orb.Collection:
		out := make(orb.Collection, len(v))
		for i, c := range v {
			out[i] = t.Geometry(c)
		}
		return out
	case orb.Bound:
		// Transform all four corners so rotation under projection is covered.
		ll := t.Point(v.Min)
		ur := t.Point(v.Max)
		lr := t.Point(orb.Point{v.Max[0], v.Min[1]})
		ul := t.Point(orb.Point{v.Min[0], v.Max[1]})
		b := orb.Bound{Min: ll, Max: ll}
		for _, p := range []orb.Point{ur, lr, ul} {
			b = b.Extend(p)
		}
		return b
	}
	return orb.Clone(g)
}
