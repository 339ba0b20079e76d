package commands

import (
	"log/slog"
	"os"

	"boledger/internal/components/chrono"
	"boledger/internal/components/telemetry"
	"boledger/internal/ledger"

	"github.com/spf13/cobra"
)

var daemonNow bool

func init() {
	daemonCmd.Flags().BoolVar(&daemonNow, "now", false, "Trigger a run immediately on start.")
	rootCmd.AddCommand(daemonCmd)
}

var daemonCmd = &cobra.Command{
	Use:   "daemon [--now]",
	Short: "Runs the pull for yesterday on schedule.cron until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		clock, err := newClock()
		if err != nil {
			return err
		}
		runner, err := newRunner(ctx, false)
		if err != nil {
			return err
		}

		run := func() {
			summary := runner.Run(ctx, ledger.RunRequest{Date: chrono.Yesterday(clock)})
			summary.Render(os.Stdout)
			next, err := chrono.Next(cfg.Schedule.Cron, clock.Now())
			if err == nil {
				slog.Info("next run scheduled", "at", next)
			}
		}

		cron := chrono.NewStandardCron(telemetry.SlogAPI{}, clock.Location())
		err = cron.Cron(cfg.Schedule.Cron, run)
		if err != nil {
			return err
		}
		if daemonNow {
			run()
		}

		next, err := chrono.Next(cfg.Schedule.Cron, clock.Now())
		if err != nil {
			return err
		}
		slog.Info("daemon started", "cron", cfg.Schedule.Cron, "timezone", cfg.Schedule.Timezone, "next", next)
		cron.Run(ctx)
		slog.Info("daemon stopped")
		return nil
	},
}
