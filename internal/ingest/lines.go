package ingest

import (
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pixelgrid/internal/pixel"
)

// FieldMap names the source columns carrying the line attributes the
// pipeline keeps. Zero values select the conventional names.
type FieldMap struct {
	LoadKW  string
	Utility string
}

func (fm FieldMap) withDefaults() FieldMap {
	if fm.LoadKW == "" {
		fm.LoadKW = "load_kw"
	}
	if fm.Utility == "" {
		fm.Utility = "utility"
	}
	return fm
}

// NormalizeLines converts a dataset of line features into the synthesis
// input form. MultiLineString features are split into one line per part,
// each carrying the feature's attributes. Any polygon or point feature is
// rejected as bad input.
func NormalizeLines(d *Dataset, fm FieldMap) (*pixel.LineSet, error) {
	fm = fm.withDefaults()
	out := &pixel.LineSet{CRS: d.CRS}
	var skipped int

	for i, f := range d.Features {
		var parts []orb.LineString
		switch g := f.Geometry.(type) {
		case nil:
			skipped++
			continue
		case orb.LineString:
			parts = []orb.LineString{g}
		case orb.MultiLineString:
			parts = g
		default:
			return nil, eris.Wrapf(pixel.ErrInputData,
				"feature %d: expected line geometry, got %s", i, f.Geometry.GeoJSONType())
		}

		var loadKW float64
		if v, ok := ToFloat(f.Properties[fm.LoadKW]); ok {
			loadKW = v
		}
		utility, _ := f.Properties[fm.Utility].(string)

		for _, ls := range parts {
			if len(ls) < 2 {
				skipped++
				continue
			}
			out.Lines = append(out.Lines, pixel.Line{
				Geometry: ls,
				LoadKW:   loadKW,
				Utility:  utility,
			})
		}
	}

	if skipped > 0 {
		zap.L().Debug("ingest: skipped degenerate line features", zap.Int("skipped", skipped))
	}
	if len(out.Lines) == 0 {
		return nil, eris.Wrap(pixel.ErrInputData, "no line geometries in source")
	}
	return out, nil
}
