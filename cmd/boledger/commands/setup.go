package commands

import (
	"context"
	"fmt"

	"boledger/internal/components/chrono"
	"boledger/internal/components/telemetry"
	"boledger/internal/ledger"
	"boledger/internal/sheets"
)

// newRunner wires the ledger runner from the loaded config and the environment.
// A dry run still reads keywords from the real source sheet but appends to memory.
func newRunner(ctx context.Context, dryRun bool) (*ledger.Runner, error) {
	secrets, err := ledger.LoadSecrets()
	if err != nil {
		return nil, err
	}
	credentials, err := sheets.Credentials(secrets.ServiceAccountFile, secrets.ServiceAccountJSON)
	if err != nil {
		return nil, err
	}

	tel := telemetry.SlogAPI{}
	google, err := sheets.NewGoogle(ctx, tel, credentials)
	if err != nil {
		return nil, err
	}
	var sink sheets.Sink = google
	if dryRun {
		sink = sheets.NewMemory()
	}

	var dumper *ledger.Dumper
	if cfg.Debug.DumpDir != "" {
		dumper, err = ledger.NewDumper(cfg.Debug.DumpDir, cfg.Debug.Compress)
		if err != nil {
			return nil, err
		}
	}

	var httpOutput telemetry.MessageOutput
	if cfg.Debug.HttpDir != "" {
		output, err := telemetry.NewFilesystemOutput(cfg.Debug.HttpDir, tel)
		if err != nil {
			return nil, fmt.Errorf("prepare http dump dir: %w", err)
		}
		httpOutput = output
	}

	return ledger.NewRunner(ledger.Options{
		Config:     cfg,
		Secrets:    secrets,
		Source:     google,
		Sink:       sink,
		Dumper:     dumper,
		HttpOutput: httpOutput,
		Tel:        tel,
	})
}

func newClock() (chrono.StandardImpl, error) {
	clock, err := chrono.NewStandardImpl(cfg.Schedule.Timezone)
	if err != nil {
		return chrono.StandardImpl{}, fmt.Errorf("schedule.timezone: %w", err)
	}
	return clock, nil
}
