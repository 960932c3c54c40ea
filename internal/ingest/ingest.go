// Package ingest reads geometry sources from disk into a common in-memory
// form. GeoJSON, shapefile, and XLSX point tables are supported; every
// dataset carries an explicit coordinate reference so downstream stages can
// reproject deliberately instead of guessing.
package ingest

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pixelgrid/internal/crs"
	"github.com/sells-group/pixelgrid/internal/pixel"
)

// Feature is one geometry with its attribute record.
type Feature struct {
	Geometry   orb.Geometry
	Properties map[string]interface{}
}

// Dataset is an ordered feature collection in a known CRS. Feature order is
// the source file's record order and is significant for nearest-join
// tie-breaking.
type Dataset struct {
	CRS      crs.CRS
	Features []Feature
}

// ReadFile loads a geometry source, dispatching on extension. declared is
// the CRS identifier from configuration; when empty, GeoJSON and XLSX
// sources default to geographic coordinates while shapefiles are rejected,
// since the format carries no reference the reader understands.
func ReadFile(path, declared string) (*Dataset, error) {
	var declaredCRS crs.CRS
	if declared != "" {
		c, err := crs.Parse(declared)
		if err != nil {
			return nil, eris.Wrapf(pixel.ErrCoordinateReference, "source %s: %v", path, err)
		}
		declaredCRS = c
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return readGeoJSON(path, declaredCRS)
	case ".shp":
		if declaredCRS == "" {
			return nil, eris.Wrapf(pixel.ErrCoordinateReference,
				"shapefile %s requires a declared crs", path)
		}
		return readShapefile(path, declaredCRS)
	case ".xlsx":
		return readXLSX(path, declaredCRS)
	}
	return nil, eris.Wrapf(pixel.ErrInputData, "unsupported source format %q", filepath.Ext(path))
}

func readGeoJSON(path string, declared crs.CRS) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reading %s", path)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, eris.Wrapf(pixel.ErrInputData, "parsing %s: %v", path, err)
	}

	c := declared
	if c == "" {
		c = crs.WGS84
	}
	ds := &Dataset{CRS: c, Features: make([]Feature, 0, len(fc.Features))}
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		props := make(map[string]interface{}, len(f.Properties))
		for k, v := range f.Properties {
			props[k] = v
		}
		ds.Features = append(ds.Features, Feature{Geometry: f.Geometry, Properties: props})
	}
	return ds, nil
}

// Reproject returns a copy of the dataset in the target CRS. Properties are
// shared with the receiver; geometries are fresh.
func (d *Dataset) Reproject(to crs.CRS) (*Dataset, error) {
	tr, err := crs.NewTransform(d.CRS, to)
	if err != nil {
		return nil, eris.Wrapf(pixel.ErrCoordinateReference,
			"reprojecting %s to %s: %v", string(d.CRS), string(to), err)
	}
	out := &Dataset{CRS: to, Features: make([]Feature, len(d.Features))}
	for i, f := range d.Features {
		out.Features[i] = Feature{
			Geometry:   tr.Geometry(f.Geometry),
			Properties: f.Properties,
		}
	}
	return out, nil
}

// ToFloat coerces the attribute values that appear across the supported
// formats into a float64.
func ToFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
