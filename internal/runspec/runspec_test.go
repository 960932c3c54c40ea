package runspec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pixelgrid/internal/join"
	"github.com/sells-group/pixelgrid/internal/pixel"
)

const validYAML = `
name: east-bay
jurisdictions:
  - name: alameda
    boundary: data/boundaries/alameda.geojson
    boundary_crs: EPSG:4326
    require_cells: true
  - name: contra-costa
    boundary: data/boundaries/contra_costa.geojson
outputs:
  priority:
    pixels: data/ces_pixels.json
    attributes:
      - file: data/dac.geojson
        crs: EPSG:4326
        columns:
          - name: dac
            join: binary
          - name: population
            join: numeric
            column: pop
            agg: sum
            default: zero
  feasibility:
    pixels: data/utility_pixels.json
    cell_size: 100
    attributes:
      - file: data/substations.geojson
        columns:
          - name: substation_kv
            join: nearest
            column: kv
            max_distance: 5000
            default: "null"
fetch:
  - url: https://example.com/dac.zip
    dest: data/dac.zip
    unzip: true
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "east-bay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "east-bay", cfg.Name)
	require.Len(t, cfg.Jurisdictions, 2)
	assert.True(t, cfg.Jurisdictions[0].RequireCells)
	assert.False(t, cfg.Jurisdictions[1].RequireCells)

	require.NotNil(t, cfg.Outputs.Priority)
	require.NotNil(t, cfg.Outputs.Feasibility)
	assert.Equal(t, "data/ces_pixels.json", cfg.Outputs.Priority.Pixels)
	assert.Equal(t, 100.0, cfg.Outputs.Priority.EffectiveCellSize())

	require.Len(t, cfg.Fetch, 1)
	assert.True(t, cfg.Fetch[0].Unzip)
}

func TestColumnRule(t *testing.T) {
	col := Column{
		Name: "substation_kv", Join: "nearest", Column: "kv",
		MaxDistance: 5000, Default: "null",
	}
	rule := col.Rule()
	assert.Equal(t, join.Rule{
		Target:      "substation_kv",
		Kind:        join.Nearest,
		Field:       "kv",
		Default:     join.DefaultNull,
		MaxDistance: 5000,
	}, rule)
	assert.NoError(t, rule.Validate())
}

func TestLoadMissingOutput(t *testing.T) {
	const missingFeasibility = `
jurisdictions:
  - name: a
    boundary: b.geojson
outputs:
  priority:
    pixels: p.json
`
	_, err := Load(writeConfig(t, missingFeasibility))
	assert.True(t, eris.Is(err, pixel.ErrConfiguration))
}

func TestValidateRejections(t *testing.T) {
	base := func() *Config {
		return &Config{
			Jurisdictions: []Jurisdiction{{Name: "a", Boundary: "a.geojson"}},
			Outputs: Outputs{
				Priority:    &Output{Pixels: "p.json"},
				Feasibility: &Output{Pixels: "f.json"},
			},
		}
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no jurisdictions", func(c *Config) { c.Jurisdictions = nil }},
		{"unnamed jurisdiction", func(c *Config) { c.Jurisdictions[0].Name = "" }},
		{"no boundary", func(c *Config) { c.Jurisdictions[0].Boundary = "" }},
		{"duplicate jurisdiction", func(c *Config) {
			c.Jurisdictions = append(c.Jurisdictions, c.Jurisdictions[0])
		}},
		{"no pixels", func(c *Config) { c.Outputs.Priority.Pixels = "" }},
		{"sourceless columns", func(c *Config) {
			c.Outputs.Priority.Attributes = []AttributeSource{{File: "x.geojson"}}
		}},
		{"bad join kind", func(c *Config) {
			c.Outputs.Priority.Attributes = []AttributeSource{{
				File:    "x.geojson",
				Columns: []Column{{Name: "x", Join: "overlap"}},
			}}
		}},
		{"duplicate column", func(c *Config) {
			c.Outputs.Priority.Attributes = []AttributeSource{{
				File: "x.geojson",
				Columns: []Column{
					{Name: "x", Join: "binary"},
					{Name: "x", Join: "binary"},
				},
			}}
		}},
		{"incomplete fetch", func(c *Config) {
			c.Fetch = []FetchItem{{URL: "https://example.com/a.zip"}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, eris.Is(err, pixel.ErrConfiguration))
		})
	}

	assert.NoError(t, base().Validate())
}

func TestResolve(t *testing.T) {
	assert.Equal(t, filepath.Join("configs", "east-bay.yaml"), Resolve("configs", "east-bay"))
	assert.Equal(t, "direct/path.yaml", Resolve("configs", "direct/path.yaml"))
	assert.Equal(t, "other.yml", Resolve("configs", "other.yml"))
}

func TestLoadBadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "jurisdictions: [[["))
	assert.True(t, eris.Is(err, pixel.ErrConfiguration))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
