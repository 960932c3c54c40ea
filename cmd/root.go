package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pixelgrid/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pixelgrid",
	Short: "Pixel grid synthesis and jurisdiction processing",
	Long:  "Converts utility line datasets into fixed-resolution pixel grids, then clips and enriches them per jurisdiction into priority and feasibility rasters.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// dataPath resolves a configured file reference under the data directory.
// Absolute paths pass through untouched.
func dataPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(cfg.Paths.DataDir, p)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
