package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/pixelgrid/internal/crs"
	"github.com/sells-group/pixelgrid/internal/ingest"
	"github.com/sells-group/pixelgrid/internal/join"
	"github.com/sells-group/pixelgrid/internal/pixel"
	"github.com/sells-group/pixelgrid/internal/runspec"
	"github.com/sells-group/pixelgrid/internal/store"
)

var processCmd = &cobra.Command{
	Use:   "process <config>",
	Short: "Clip and enrich pixel grids per jurisdiction",
	Long:  "Loads a run configuration, clips the pixel artifacts to each jurisdiction boundary, applies the declared attribute joins, and writes priority and feasibility rasters. A failure in one jurisdiction does not stop the others.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rc, err := runspec.Load(runspec.Resolve(cfg.Paths.ConfigDir, args[0]))
		if err != nil {
			return err
		}
		working, err := crs.Parse(cfg.Grid.WorkingCRS)
		if err != nil {
			return eris.Wrap(err, "working crs")
		}

		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		log := zap.L().With(zap.String("config", rc.Name))
		p := message.NewPrinter(language.English)

		var failed int
		for _, j := range rc.Jurisdictions {
			if err := ctx.Err(); err != nil {
				return err
			}

			run, err := st.CreateRun(ctx, rc.Name, j.Name)
			if err != nil {
				return err
			}

			cells, err := processJurisdiction(ctx, rc, j, working)
			if err != nil {
				failed++
				log.Error("jurisdiction failed",
					zap.String("jurisdiction", j.Name),
					zap.Error(err))
				if ferr := st.FinishRun(ctx, run.ID, store.RunStatusFailed, 0, err.Error()); ferr != nil {
					log.Warn("recording failed run", zap.Error(ferr))
				}
				continue
			}

			if err := st.FinishRun(ctx, run.ID, store.RunStatusComplete, cells, ""); err != nil {
				return err
			}
			p.Printf("%s: %d cells\n", j.Name, cells)
		}

		if failed > 0 {
			return eris.Errorf("%d of %d jurisdictions failed", failed, len(rc.Jurisdictions))
		}
		return nil
	},
}

// processJurisdiction runs both outputs for one boundary and returns the
// total cell count written.
func processJurisdiction(ctx context.Context, rc *runspec.Config, j runspec.Jurisdiction, working crs.CRS) (int, error) {
	start := time.Now()
	log := zap.L().With(
		zap.String("component", "process"),
		zap.String("jurisdiction", j.Name))

	boundary, err := ingest.ReadFile(dataPath(j.Boundary), j.BoundaryCRS)
	if err != nil {
		return 0, err
	}
	boundary, err = boundary.Reproject(working)
	if err != nil {
		return 0, err
	}

	// Attribute sources shared across outputs load once.
	sources := make(map[string]*ingest.Dataset)

	outputs := []struct {
		name string
		out  *runspec.Output
	}{
		{"priority", rc.Outputs.Priority},
		{"feasibility", rc.Outputs.Feasibility},
	}

	// Stage every output before publishing any: a failure partway through
	// must not leave a fresh artifact from a run recorded as failed.
	staged := make([]*pixel.Grid, len(outputs))
	for oi, o := range outputs {
		fc, err := pixel.ReadArtifact(dataPath(o.out.Pixels))
		if err != nil {
			return 0, err
		}
		grid, err := pixel.GridFromFeatures(j.Name, fc, o.out.EffectiveCellSize(), working)
		if err != nil {
			return 0, err
		}

		clipped, err := join.ClipToBoundary(grid, j.Name, boundary, j.RequireCells)
		if err != nil {
			return 0, err
		}

		bindings, err := outputBindings(o.out, working, sources)
		if err != nil {
			return 0, err
		}
		engine := &join.Engine{Workers: cfg.Grid.Workers}
		enriched, err := engine.Attach(ctx, clipped, bindings)
		if err != nil {
			return 0, err
		}
		staged[oi] = enriched
	}

	var total int
	for oi, o := range outputs {
		dest := filepath.Join(cfg.Paths.OutDir, fmt.Sprintf("%s_%s.json", j.Name, o.name))
		if err := pixel.WriteArtifact(dest, staged[oi]); err != nil {
			return 0, err
		}
		log.Info("output written",
			zap.String("output", o.name),
			zap.String("path", dest),
			zap.Int("cells", len(staged[oi].Cells)))
		total += len(staged[oi].Cells)
	}

	log.Info("jurisdiction processed",
		zap.Int("cells", total),
		zap.Duration("elapsed", time.Since(start)))
	return total, nil
}

// outputBindings loads the output's attribute sources, reprojects them to
// the working CRS, and pairs every declared column with its dataset.
func outputBindings(out *runspec.Output, working crs.CRS, cache map[string]*ingest.Dataset) ([]join.Binding, error) {
	var bindings []join.Binding
	for _, src := range out.Attributes {
		ds, ok := cache[src.File]
		if !ok {
			loaded, err := ingest.ReadFile(dataPath(src.File), src.CRS)
			if err != nil {
				return nil, err
			}
			loaded, err = loaded.Reproject(working)
			if err != nil {
				return nil, err
			}
			cache[src.File] = loaded
			ds = loaded
		}
		for _, col := range src.Columns {
			bindings = append(bindings, join.Binding{
				SourceName: src.File,
				Source:     ds,
				Rule:       col.Rule(),
			})
		}
	}
	return bindings, nil
}

func init() {
	rootCmd.AddCommand(processCmd)
}
