package pixel

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pixelgrid/internal/crs"
)

// WriteArtifact serializes the grid as a GeoJSON feature collection of
// closed square polygons in geographic coordinates. The file appears
// atomically: a partial write never replaces an existing artifact.
func WriteArtifact(path string, grid *Grid) error {
	tr, err := crs.NewTransform(grid.CRS, crs.WGS84)
	if err != nil {
		return eris.Wrapf(ErrCoordinateReference, "grid %q: %v", grid.Name, err)
	}

	fc := geojson.NewFeatureCollection()
	for _, c := range grid.Cells {
		f := geojson.NewFeature(tr.Geometry(c.Square(grid.CellSize)))
		f.Properties = geojson.Properties{}
		for k, v := range c.Attributes {
			f.Properties[k] = v
		}
		fc.Append(f)
	}
	return WriteFeatureCollection(path, fc)
}

// WriteFeatureCollection writes a feature collection to path via a
// temporary file in the same directory followed by a rename.
func WriteFeatureCollection(path string, fc *geojson.FeatureCollection) error {
	data, err := json.Marshal(fc)
	if err != nil {
		return eris.Wrap(err, "encoding feature collection")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "creating %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".pixelgrid-*")
	if err != nil {
		return eris.Wrap(err, "creating temp artifact")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return eris.Wrapf(err, "writing %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "closing %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "publishing %s", path)
	}
	return nil
}

// ReadArtifact loads a GeoJSON feature collection from disk.
func ReadArtifact(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reading %s", path)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, eris.Wrapf(ErrInputData, "parsing %s: %v", path, err)
	}
	return fc, nil
}

// GridFromFeatures reconstructs a grid in the working CRS from a pixel
// artifact. Cell centroids are recovered from the envelope center of each
// square feature and reprojected out of geographic coordinates.
func GridFromFeatures(name string, fc *geojson.FeatureCollection, cellSize float64, working crs.CRS) (*Grid, error) {
	if fc == nil || len(fc.Features) == 0 {
		return nil, eris.Wrap(ErrInputData, "empty feature collection")
	}
	tr, err := crs.NewTransform(crs.WGS84, working)
	if err != nil {
		return nil, eris.Wrapf(ErrCoordinateReference, "working CRS %q: %v", string(working), err)
	}

	cells := make([]Cell, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			return nil, eris.Wrapf(ErrInputData, "feature %d has no geometry", i)
		}
		center := tr.Point(f.Geometry.Bound().Center())
		var attrs map[string]interface{}
		if len(f.Properties) > 0 {
			attrs = make(map[string]interface{}, len(f.Properties))
			for k, v := range f.Properties {
				attrs[k] = v
			}
		}
		cells = append(cells, Cell{Centroid: center, Attributes: attrs})
	}
	return &Grid{Name: name, CRS: working, CellSize: cellSize, Cells: cells}, nil
}
