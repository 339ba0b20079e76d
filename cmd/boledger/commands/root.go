package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"boledger/internal/components/serviceutil"
	"boledger/internal/components/telemetry"
	"boledger/internal/configutil"
	"boledger/internal/ledger"

	"github.com/spf13/cobra"
)

var (
	configPath string
	envFile    string
	logLevel   string

	cfg      ledger.Config
	otelRuns telemetry.Telemetry
)

var rootCmd = &cobra.Command{
	Use:   "boledger",
	Short: "boledger pulls back-office affiliate reports into spreadsheet ledgers.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		err := configutil.LoadDotenv(envFile)
		if err != nil {
			return err
		}
		cfg, err = ledger.ReadConfig(configPath)
		if err != nil {
			return err
		}
		level := cfg.Telemetry.LogLevel
		if logLevel != "" {
			level = logLevel
		}
		telemetry.InitSlog(level)

		otelRuns, err = telemetry.Setup(cmd.Context(), "boledger", cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("setup telemetry: %w", err)
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json5", "The config file, <name>.local.json5 is merged over it.")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Env file holding the back-office and google credentials.")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Overrides telemetry.log_level (debug, info, warn, error).")
}

func ExecuteContext(ctx context.Context) {
	err := execute(ctx, rootCmd, func(ctx context.Context) error {
		return otelRuns.Shutdown(ctx)
	})
	if err != nil {
		serviceutil.Fatal("boledger", err)
	}
}

// execute runs cmd and flushes telemetry afterwards, cobra skips post-run hooks
// when RunE fails so failed runs are flushed here.
func execute(ctx context.Context, cmd *cobra.Command, flush func(context.Context) error) error {
	runErr := cmd.ExecuteContext(ctx)

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := flush(flushCtx); err != nil {
		slog.Warn("telemetry shutdown", "err", err)
	}
	return runErr
}
