package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/pixelgrid/internal/fetch"
	"github.com/sells-group/pixelgrid/internal/runspec"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <config>",
	Short: "Download the datasets a run configuration declares",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rc, err := runspec.Load(runspec.Resolve(cfg.Paths.ConfigDir, args[0]))
		if err != nil {
			return err
		}
		if len(rc.Fetch) == 0 {
			zap.L().Info("no fetch items declared", zap.String("config", rc.Name))
			return nil
		}

		f := fetch.New(fetch.Options{
			UserAgent:   cfg.Fetch.UserAgent,
			Timeout:     time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			MaxRetries:  cfg.Fetch.MaxRetries,
			RatePerHost: rate.Limit(cfg.Fetch.RatePerHost),
		})
		return f.Run(ctx, rc.Fetch, cfg.Paths.DataDir)
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
