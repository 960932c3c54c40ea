package ingest

import (
	"strings"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/pixelgrid/internal/crs"
	"github.com/sells-group/pixelgrid/internal/pixel"
)

// readXLSX parses a point table from the first sheet: a header row naming a
// longitude and latitude column, one point feature per data row. Remaining
// columns become properties, numeric where they parse.
func readXLSX(path string, declared crs.CRS) (*Dataset, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Wrapf(pixel.ErrInputData, "xlsx %s has no sheets", path)
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) < 2 {
		return nil, eris.Wrapf(pixel.ErrInputData, "xlsx %s has no data rows", path)
	}

	header := make([]string, len(sheet.Rows[0].Cells))
	for i, cell := range sheet.Rows[0].Cells {
		header[i] = strings.TrimSpace(cell.String())
	}
	lonIdx := findColumn(header, "lon", "long", "longitude", "x")
	latIdx := findColumn(header, "lat", "latitude", "y")
	if lonIdx < 0 || latIdx < 0 {
		return nil, eris.Wrapf(pixel.ErrInputData,
			"xlsx %s: no longitude/latitude columns in header %v", path, header)
	}

	c := declared
	if c == "" {
		c = crs.WGS84
	}
	ds := &Dataset{CRS: c}
	var skipped int
	for _, row := range sheet.Rows[1:] {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = strings.TrimSpace(cell.String())
		}
		if lonIdx >= len(cells) || latIdx >= len(cells) {
			skipped++
			continue
		}
		lon, okLon := ToFloat(cells[lonIdx])
		lat, okLat := ToFloat(cells[latIdx])
		if !okLon || !okLat {
			skipped++
			continue
		}

		props := make(map[string]interface{}, len(header))
		for j, name := range header {
			if j == lonIdx || j == latIdx || name == "" || j >= len(cells) || cells[j] == "" {
				continue
			}
			if v, ok := ToFloat(cells[j]); ok {
				props[name] = v
			} else {
				props[name] = cells[j]
			}
		}
		ds.Features = append(ds.Features, Feature{
			Geometry:   orb.Point{lon, lat},
			Properties: props,
		})
	}

	if skipped > 0 {
		zap.L().Debug("ingest: skipped xlsx rows",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	if len(ds.Features) == 0 {
		return nil, eris.Wrapf(pixel.ErrInputData, "xlsx %s has no usable rows", path)
	}
	return ds, nil
}

func findColumn(header []string, names ...string) int {
	for i, h := range header {
		h = strings.ToLower(h)
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}
