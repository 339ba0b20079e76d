package commands

import (
	"fmt"
	"os"
	"time"

	"boledger/internal/backoffice"
	"boledger/internal/components/chrono"
	"boledger/internal/ledger"

	"github.com/spf13/cobra"
)

var (
	runDate    string
	runBrands  []string
	runReports []string
	runDryRun  bool
)

func init() {
	runCmd.Flags().StringVar(&runDate, "date", "", "The reported day as YYYY-MM-DD, defaults to yesterday in schedule.timezone.")
	runCmd.Flags().StringSliceVar(&runBrands, "brand", nil, "Only run these brands (repeatable).")
	runCmd.Flags().StringSliceVar(&runReports, "report", nil, "Only run these reports: Affiliates, SocialMedia (repeatable).")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Fetch and project but do not append to the destination sheets.")
	rootCmd.AddCommand(runCmd)
}

func parseRunRequest(clock chrono.API) (ledger.RunRequest, error) {
	req := ledger.RunRequest{Date: chrono.Yesterday(clock)}
	if runDate != "" {
		day, err := chrono.ParseDay(clock, runDate)
		if err != nil {
			return req, fmt.Errorf("--date: %w", err)
		}
		req.Date = day
	}
	for _, b := range runBrands {
		req.Brands = append(req.Brands, backoffice.Brand(b))
	}
	for _, name := range runReports {
		report, err := backoffice.ParseReportType(name)
		if err != nil {
			return req, fmt.Errorf("--report: %w", err)
		}
		req.Reports = append(req.Reports, report)
	}
	return req, nil
}

var runCmd = &cobra.Command{
	Use:   "run [--date YYYY-MM-DD] [--brand <brand>...] [--report <report>...] [--dry-run]",
	Short: "Pulls the reports of a day once and appends them to the ledgers.",
	RunE: func(cmd *cobra.Command, args []string) error {
		clock, err := newClock()
		if err != nil {
			return err
		}
		req, err := parseRunRequest(clock)
		if err != nil {
			return err
		}
		runner, err := newRunner(cmd.Context(), runDryRun)
		if err != nil {
			return err
		}

		start := time.Now()
		summary := runner.Run(cmd.Context(), req)
		summary.Render(os.Stdout)
		fmt.Fprintf(os.Stdout, "finished in %s\n", time.Since(start).Round(time.Millisecond))

		if summary.Failed() {
			return fmt.Errorf("run %s: one or more reports failed", summary.RunID)
		}
		return nil
	},
}
