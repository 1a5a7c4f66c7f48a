package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/lead-triage/internal/monitoring"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Report reply handling health and send threshold alerts",
	Long:  "Computes route and failure rates from the reply log over the lookback window and alerts the monitoring webhook when thresholds are exceeded. With --watch it keeps checking on the configured interval.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if hours, _ := cmd.Flags().GetInt("lookback"); hours > 0 {
			cfg.Monitoring.LookbackWindowHours = hours
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		checker := monitoring.NewChecker(
			monitoring.NewCollector(st),
			monitoring.NewAlerter(cfg.Monitoring),
			cfg.Monitoring,
		)

		if watch, _ := cmd.Flags().GetBool("watch"); watch {
			checker.Run(ctx)
			return nil
		}

		snap, alerts, err := checker.Check(ctx)
		if err != nil {
			return err
		}
		return writeJSON(os.Stdout, map[string]any{"snapshot": snap, "alerts": alerts})
	},
}

func init() {
	monitorCmd.Flags().Int("lookback", 0, "lookback window in hours (default from config)")
	monitorCmd.Flags().Bool("watch", false, "keep checking on the configured interval")
	rootCmd.AddCommand(monitorCmd)
}
