// Package runspec loads and validates the YAML run configuration that
// drives jurisdiction processing: which boundaries to process, which pixel
// artifacts feed each output, and the attribute-join rules per output.
package runspec

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/pixelgrid/internal/join"
	"github.com/sells-group/pixelgrid/internal/pixel"
)

// Config is one run declaration: a set of jurisdictions processed against
// the two declared output groups.
type Config struct {
	Name          string         `yaml:"name"`
	Jurisdictions []Jurisdiction `yaml:"jurisdictions"`
	Outputs       Outputs        `yaml:"outputs"`
	Fetch         []FetchItem    `yaml:"fetch"`
}

// Jurisdiction selects one boundary file to clip and enrich.
type Jurisdiction struct {
	Name        string `yaml:"name"`
	Boundary    string `yaml:"boundary"`
	BoundaryCRS string `yaml:"boundary_crs"`
	// RequireCells turns a zero-intersection clip from a warning into a
	// fatal error for this jurisdiction.
	RequireCells bool `yaml:"require_cells"`
}

// Outputs declares the two output groups. Both must be present; the
// partitioning of attributes between them is complete by construction.
type Outputs struct {
	Priority    *Output `yaml:"priority"`
	Feasibility *Output `yaml:"feasibility"`
}

// Output binds a pixel artifact to the attribute sources joined onto it.
type Output struct {
	Pixels     string            `yaml:"pixels"`
	CellSize   float64           `yaml:"cell_size"`
	Attributes []AttributeSource `yaml:"attributes"`
}

// AttributeSource is one dataset and the columns drawn from it.
type AttributeSource struct {
	File    string   `yaml:"file"`
	CRS     string   `yaml:"crs"`
	Columns []Column `yaml:"columns"`
}

// Column is one declared join rule.
type Column struct {
	Name        string  `yaml:"name"`
	Join        string  `yaml:"join"`
	Column      string  `yaml:"column"`
	Agg         string  `yaml:"agg"`
	Default     string  `yaml:"default"`
	MultiplyBy  string  `yaml:"multiply_by"`
	MaxDistance float64 `yaml:"max_distance"`
}

// FetchItem is one remote dataset pulled by the fetch command.
type FetchItem struct {
	URL   string `yaml:"url"`
	Dest  string `yaml:"dest"`
	Unzip bool   `yaml:"unzip"`
}

// Rule converts the declaration into an engine rule.
func (c Column) Rule() join.Rule {
	return join.Rule{
		Target:      c.Name,
		Kind:        join.Kind(c.Join),
		Field:       c.Column,
		Agg:         join.Agg(c.Agg),
		Default:     join.Default(c.Default),
		MultiplyBy:  c.MultiplyBy,
		MaxDistance: c.MaxDistance,
	}
}

// Resolve maps a configuration identifier to a file path. An identifier
// that already names a YAML file is used as-is; anything else is looked up
// under configDir.
func Resolve(configDir, name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".yaml" || ext == ".yml" {
		return name
	}
	return filepath.Join(configDir, name+".yaml")
}

// Load reads and validates a run configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reading run config %s", path)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, eris.Wrapf(pixel.ErrConfiguration, "parsing %s: %v", path, err)
	}
	if cfg.Name == "" {
		cfg.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := cfg.Validate(); err != nil {
		return nil, eris.Wrapf(err, "run config %s", path)
	}
	return &cfg, nil
}

// Validate checks the configuration before any data is read.
func (c *Config) Validate() error {
	if len(c.Jurisdictions) == 0 {
		return eris.Wrap(pixel.ErrConfiguration, "no jurisdictions declared")
	}
	seen := make(map[string]bool, len(c.Jurisdictions))
	for i, j := range c.Jurisdictions {
		if j.Name == "" {
			return eris.Wrapf(pixel.ErrConfiguration, "jurisdiction %d has no name", i)
		}
		if j.Boundary == "" {
			return eris.Wrapf(pixel.ErrConfiguration, "jurisdiction %q has no boundary file", j.Name)
		}
		if seen[j.Name] {
			return eris.Wrapf(pixel.ErrConfiguration, "duplicate jurisdiction %q", j.Name)
		}
		seen[j.Name] = true
	}

	if c.Outputs.Priority == nil || c.Outputs.Feasibility == nil {
		return eris.Wrap(pixel.ErrConfiguration,
			"both priority and feasibility outputs must be declared")
	}
	if err := c.Outputs.Priority.validate("priority"); err != nil {
		return err
	}
	if err := c.Outputs.Feasibility.validate("feasibility"); err != nil {
		return err
	}

	for i, f := range c.Fetch {
		if f.URL == "" || f.Dest == "" {
			return eris.Wrapf(pixel.ErrConfiguration, "fetch item %d needs url and dest", i)
		}
	}
	return nil
}

func (o *Output) validate(name string) error {
	if o.Pixels == "" {
		return eris.Wrapf(pixel.ErrConfiguration, "output %q has no pixels artifact", name)
	}
	if o.CellSize < 0 {
		return eris.Wrapf(pixel.ErrConfiguration, "output %q: negative cell size", name)
	}
	targets := make(map[string]bool)
	for _, src := range o.Attributes {
		if src.File == "" {
			return eris.Wrapf(pixel.ErrConfiguration, "output %q: attribute source has no file", name)
		}
		if len(src.Columns) == 0 {
			return eris.Wrapf(pixel.ErrConfiguration, "output %q: source %s declares no columns", name, src.File)
		}
		for _, col := range src.Columns {
			if err := col.Rule().Validate(); err != nil {
				return eris.Wrapf(err, "output %q, source %s", name, src.File)
			}
			if targets[col.Name] {
				return eris.Wrapf(pixel.ErrConfiguration, "output %q: duplicate column %q", name, col.Name)
			}
			targets[col.Name] = true
		}
	}
	return nil
}

// EffectiveCellSize returns the declared cell size or the conventional
// default.
func (o *Output) EffectiveCellSize() float64 {
	if o.CellSize > 0 {
		return o.CellSize
	}
	return 100
}
