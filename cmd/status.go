package main

import (
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/pixelgrid/internal/store"
)

var statusRunLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show registered grids and recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		grids, err := st.ListGrids(ctx)
		if err != nil {
			return err
		}
		runs, err := st.ListRuns(ctx, statusRunLimit)
		if err != nil {
			return err
		}

		p := message.NewPrinter(language.English)
		p.Printf("Grids (%d)\n", len(grids))
		for _, g := range grids {
			p.Printf("  %-24s %12d cells  %5.0fm  %s\n",
				g.Name, g.Cells, g.CellSize, g.CreatedAt.Format(time.RFC3339))
		}

		p.Printf("Runs (%d)\n", len(runs))
		for _, r := range runs {
			line := p.Sprintf("  %-24s %-10s %10d cells  %s",
				r.Jurisdiction, r.Status, r.Cells, r.StartedAt.Format(time.RFC3339))
			if r.Error != "" {
				line += "  " + r.Error
			}
			p.Println(line)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusRunLimit, "runs", 20, "number of recent runs to show")
	rootCmd.AddCommand(statusCmd)
}
