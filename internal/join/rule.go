// Package join attaches source attributes to pixel grid cells. Each rule
// produces one output attribute; rules are independent of one another, so
// the engine may evaluate them in any order or in parallel without changing
// the result.
package join

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/pixelgrid/internal/pixel"
)

// Kind selects the spatial matching strategy for a rule.
type Kind string

const (
	// Binary writes 1 for cells whose square intersects any source
	// feature and 0 otherwise.
	Binary Kind = "binary"
	// BinaryCentroid is Binary but tests only the cell centroid.
	BinaryCentroid Kind = "binary_centroid"
	// Numeric aggregates a numeric source field over the features
	// intersecting each cell square.
	Numeric Kind = "numeric"
	// Nearest copies a field from the closest source feature.
	Nearest Kind = "nearest"
)

// Agg is the aggregation applied by Numeric rules when several features
// intersect the same cell.
type Agg string

const (
	AggSum   Agg = "sum"
	AggMean  Agg = "mean"
	AggMax   Agg = "max"
	AggMin   Agg = "min"
	AggCount Agg = "count"
)

// Default says what unmatched cells receive.
type Default string

const (
	// DefaultZero writes 0, matching the historical fill behavior.
	DefaultZero Default = "zero"
	// DefaultNull omits the attribute entirely.
	DefaultNull Default = "null"
)

// Rule is one attribute-join declaration.
type Rule struct {
	// Target is the output attribute name.
	Target string
	// Kind selects the matching strategy.
	Kind Kind
	// Field is the source attribute consumed by Numeric and Nearest rules.
	Field string
	// Agg applies to Numeric rules; empty means sum.
	Agg Agg
	// Default applies to unmatched cells; empty means zero.
	Default Default
	// MultiplyBy names a second numeric field of the nearest feature whose
	// value scales the copied one. Nearest only.
	MultiplyBy string
	// MaxDistance caps the nearest-feature search; 0 means unlimited.
	MaxDistance float64
}

func (r Rule) withDefaults() Rule {
	if r.Agg == "" {
		r.Agg = AggSum
	}
	if r.Default == "" {
		r.Default = DefaultZero
	}
	return r
}

// Validate checks the rule for internal consistency.
func (r Rule) Validate() error {
	if r.Target == "" {
		return eris.Wrap(pixel.ErrConfiguration, "rule has no target attribute")
	}
	switch r.Kind {
	case Binary, BinaryCentroid:
		if r.Field != "" {
			return eris.Wrapf(pixel.ErrConfiguration, "rule %q: %s join takes no field", r.Target, r.Kind)
		}
	case Numeric:
		switch r.Agg {
		case "", AggSum, AggMean, AggMax, AggMin:
			if r.Field == "" {
				return eris.Wrapf(pixel.ErrConfiguration, "rule %q: numeric join requires a field", r.Target)
			}
		case AggCount:
		default:
			return eris.Wrapf(pixel.ErrConfiguration, "rule %q: unknown aggregation %q", r.Target, r.Agg)
		}
	case Nearest:
		if r.Field == "" {
			return eris.Wrapf(pixel.ErrConfiguration, "rule %q: nearest join requires a field", r.Target)
		}
	default:
		return eris.Wrapf(pixel.ErrConfiguration, "rule %q: unknown join kind %q", r.Target, r.Kind)
	}

	if r.MultiplyBy != "" && r.Kind != Nearest {
		return eris.Wrapf(pixel.ErrConfiguration, "rule %q: multiply_by applies to nearest joins only", r.Target)
	}
	if r.MaxDistance < 0 {
		return eris.Wrapf(pixel.ErrConfiguration, "rule %q: negative max distance", r.Target)
	}
	if r.MaxDistance > 0 && r.Kind != Nearest {
		return eris.Wrapf(pixel.ErrConfiguration, "rule %q: max_distance applies to nearest joins only", r.Target)
	}
	switch r.Default {
	case "", DefaultZero, DefaultNull:
	default:
		return eris.Wrapf(pixel.ErrConfiguration, "rule %q: unknown default %q", r.Target, r.Default)
	}
	return nil
}
