package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/lead-triage/internal/scheduler"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued referral sends",
	Long:  "Runs the asynq worker that delivers delayed referral asks enqueued by the not-interested workflow.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("worker"); err != nil {
			return err
		}

		w, err := scheduler.NewWorker(schedulerConfig(), initMessenger(initPolicy()))
		if err != nil {
			return err
		}
		return w.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
