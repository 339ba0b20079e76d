// Package ledger runs the daily pull: for every brand it reads the keyword list,
// logs in per report, fetches, projects and appends the rows to the brand's sheet.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"boledger/internal/backoffice"
	"boledger/internal/components/assert"
	"boledger/internal/components/telemetry"
	"boledger/internal/projector"
	"boledger/internal/sheets"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("boledger/ledger")

const (
	report_runner_brand  = "runner.brand"
	report_runner_report = "runner.report"
	report_runner_dump   = "runner.dump"
)

// SheetDateLayout is how the day is written into the ledger's first column.
const SheetDateLayout = "02/01/2006"

type Options struct {
	Config  Config
	Secrets Secrets
	Source  sheets.Source
	Sink    sheets.Sink
	// Dumper is optional.
	Dumper *Dumper
	// HttpOutput is optional, it receives every raw HTTP exchange.
	HttpOutput telemetry.MessageOutput
	Tel        telemetry.API
}

type Runner struct {
	cfg        Config
	secrets    Secrets
	endpoints  backoffice.Endpoints
	fetchOpts  backoffice.FetchOptions
	source     sheets.Source
	sink       sheets.Sink
	dumper     *Dumper
	httpOutput telemetry.MessageOutput
	tel        telemetry.API
	sleep      backoffice.Sleeper
}

func NewRunner(opts Options) (*Runner, error) {
	assert.NotNil(opts.Source)
	assert.NotNil(opts.Sink)
	assert.NotNil(opts.Tel)

	cfg := opts.Config.WithDefaults()
	endpoints, err := cfg.Endpoints()
	if err != nil {
		return nil, err
	}
	return &Runner{
		cfg:        cfg,
		secrets:    opts.Secrets,
		endpoints:  endpoints,
		fetchOpts:  cfg.FetchOptions(),
		source:     opts.Source,
		sink:       opts.Sink,
		dumper:     opts.Dumper,
		httpOutput: opts.HttpOutput,
		tel:        telemetry.NewScopedAPI("ledger", opts.Tel),
	}, nil
}

// SetSleeper overrides the fetchers' retry wait.
func (r *Runner) SetSleeper(sleep backoffice.Sleeper) {
	r.sleep = sleep
}

// Brands lists the configured brands.
func (r *Runner) Brands() []backoffice.Brand {
	return r.endpoints.Brands()
}

type RunRequest struct {
	// Date is the reported day.
	Date time.Time
	// Brands and Reports restrict the run, empty means everything configured.
	Brands  []backoffice.Brand
	Reports []backoffice.ReportType
}

// Outcome is the result of one brand's report.
type Outcome struct {
	Brand   backoffice.Brand
	Report  backoffice.ReportType
	Fetched int
	Written int
	// LastRow is the last occupied sheet row after the append, 0 when nothing was written.
	LastRow int
	// Degraded counts batches that ended with an error.
	Degraded int
	Err      error
}

type Summary struct {
	RunID    string
	Date     time.Time
	Outcomes []Outcome
}

// Failed reports whether any brand or report failed.
func (s Summary) Failed() bool {
	for _, o := range s.Outcomes {
		if o.Err != nil {
			return true
		}
	}
	return false
}

// Run processes brands one after another. A brand's failure is recorded in its
// outcomes and never stops the run.
func (r *Runner) Run(ctx context.Context, req RunRequest) Summary {
	summary := Summary{RunID: uuid.NewString(), Date: req.Date}
	ctx, span := tracer.Start(ctx, "runner:Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", summary.RunID),
		attribute.String("date", req.Date.Format(time.DateOnly)),
	)

	brands := req.Brands
	if len(brands) == 0 {
		brands = r.endpoints.Brands()
	}
	for _, brand := range brands {
		if ctx.Err() != nil {
			r.tel.ReportWarning(report_runner_brand, fmt.Errorf("run interrupted before brand %s: %w", brand, ctx.Err()))
			break
		}
		outcomes := r.runBrand(ctx, summary.RunID, brand, req)
		summary.Outcomes = append(summary.Outcomes, outcomes...)
	}
	return summary
}

func (r *Runner) reportsFor(brand backoffice.Brand, wanted []backoffice.ReportType) []backoffice.ReportType {
	configured := r.endpoints.Reports(brand)
	if len(wanted) == 0 {
		return configured
	}
	var out []backoffice.ReportType
	for _, rt := range configured {
		if slices.Contains(wanted, rt) {
			out = append(out, rt)
		}
	}
	return out
}

func brandFailure(brand backoffice.Brand, reports []backoffice.ReportType, err error) []Outcome {
	if len(reports) == 0 {
		return []Outcome{{Brand: brand, Err: err}}
	}
	out := make([]Outcome, len(reports))
	for i, rt := range reports {
		out[i] = Outcome{Brand: brand, Report: rt, Err: err}
	}
	return out
}

func (r *Runner) runBrand(ctx context.Context, runID string, brand backoffice.Brand, req RunRequest) []Outcome {
	ctx, span := tracer.Start(ctx, "runner:runBrand")
	defer span.End()
	span.SetAttributes(attribute.String("brand", string(brand)))

	reports := r.reportsFor(brand, req.Reports)
	brandCfg, ok := r.cfg.Brands[string(brand)]
	if !ok {
		err := &backoffice.Error{Kind: backoffice.KindConfiguration, Brand: brand, Err: fmt.Errorf("brand is not configured")}
		r.tel.ReportBroken(report_runner_brand, err)
		return brandFailure(brand, reports, err)
	}
	if len(reports) == 0 {
		r.tel.ReportDebug("no reports selected for brand", brand)
		return nil
	}

	keywords, err := r.source.Keywords(ctx, r.secrets.SourceSheet, brandCfg.SourceRange)
	if err != nil {
		err = fmt.Errorf("read keywords of %s: %w", brand, err)
		r.tel.ReportBroken(report_runner_brand, err)
		return brandFailure(brand, reports, err)
	}
	if len(keywords) == 0 {
		err = fmt.Errorf("no keywords found for %s in %s", brand, brandCfg.SourceRange)
		r.tel.ReportBroken(report_runner_brand, err)
		return brandFailure(brand, reports, err)
	}
	destination := r.secrets.SourceSheet
	if len(keywords) > 1 {
		destination = keywords[1]
	}
	r.tel.ReportDebug("keywords loaded", brand, "display", keywords[0], "identifiers", len(keywords)-2)

	session, err := backoffice.NewSession(backoffice.SessionOptions{
		Brand:             brand,
		Credentials:       r.secrets.Credentials,
		RequestsPerSecond: r.cfg.Fetch.RequestsPerSecond,
		Cloudflare:        brandCfg.Cloudflare,
		UserAgent:         brandCfg.UserAgent,
		Output:            r.httpOutput,
		Tel:               r.tel,
	})
	if err != nil {
		r.tel.ReportBroken(report_runner_brand, err)
		return brandFailure(brand, reports, err)
	}
	defer session.Close()

	auth := backoffice.NewAuthenticator(r.endpoints, r.tel)
	auth.SetTimeout(time.Duration(r.cfg.Fetch.AuthTimeoutSecs) * time.Second)

	var outcomes []Outcome
	for i, report := range reports {
		outcome := r.runReport(ctx, runID, session, auth, report, keywords, destination, req.Date)
		outcomes = append(outcomes, outcome)
		if backoffice.IsKind(outcome.Err, backoffice.KindConfiguration) {
			for _, skipped := range reports[i+1:] {
				outcomes = append(outcomes, Outcome{Brand: brand, Report: skipped, Err: outcome.Err})
			}
			break
		}
	}
	return outcomes
}

func (r *Runner) runReport(
	ctx context.Context,
	runID string,
	session *backoffice.Session,
	auth *backoffice.Authenticator,
	report backoffice.ReportType,
	keywords []string,
	destination string,
	date time.Time,
) Outcome {
	brand := session.Brand()
	outcome := Outcome{Brand: brand, Report: report}

	plan, err := r.cfg.Plan(report)
	if err != nil {
		outcome.Err = &backoffice.Error{Kind: backoffice.KindConfiguration, Brand: brand, Report: report, Err: err}
		r.tel.ReportBroken(report_runner_report, outcome.Err)
		return outcome
	}
	endpoints, err := r.endpoints.Lookup(brand, report)
	if err != nil {
		outcome.Err = err
		return outcome
	}

	// every report gets its own handshake, report types may sit behind different logins
	_, err = auth.Login(ctx, session, report)
	if err != nil {
		outcome.Err = err
		return outcome
	}

	fetcher := backoffice.NewFetcher(session, r.tel, r.fetchOpts)
	if r.sleep != nil {
		fetcher.SetSleeper(r.sleep)
	}
	result, err := fetcher.Fetch(ctx, backoffice.FetchRequest{
		Endpoint:    endpoints.Report,
		Report:      report,
		Identifiers: keywords,
		Date:        date,
		BatchSize:   plan.BatchSize,
		PageSize:    plan.PageSize,
	})
	if err != nil {
		outcome.Err = err
		r.tel.ReportBroken(report_runner_report, err)
		return outcome
	}
	outcome.Fetched = len(result.Rows)
	for _, b := range result.Batches {
		if b.Err != nil {
			outcome.Degraded++
		}
	}

	if r.dumper != nil {
		path, err := r.dumper.Dump(runID, brand, report, date, result)
		if err != nil {
			r.tel.ReportWarning(report_runner_dump, err)
		} else {
			r.tel.ReportDebug("fetch result dumped", path)
		}
	}

	rows := Layout(date, plan.Fields, projector.Project(plan.Fields, result.Rows))
	if len(rows) == 0 {
		r.tel.ReportDebug("nothing to write", brand, report)
		return outcome
	}

	last, err := r.sink.Append(ctx, destination, plan.Tab, rows)
	if err != nil {
		if errors.Is(err, sheets.ErrNothingToWrite) {
			return outcome
		}
		outcome.Err = fmt.Errorf("append %s %s to %s: %w", brand, report, plan.Tab, err)
		r.tel.ReportBroken(report_runner_report, outcome.Err)
		return outcome
	}
	outcome.Written = len(rows)
	outcome.LastRow = last
	r.tel.ReportCount(report_runner_report, int64(len(rows)))
	return outcome
}

// Layout renders records as ledger rows: the day, an empty notes column, then the
// mapped columns in field map order. Missing values become empty cells.
func Layout(date time.Time, fields projector.FieldMap, records []projector.Record) [][]any {
	day := date.Format(SheetDateLayout)
	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		row := make([]any, 0, len(fields.Fields)+2)
		row = append(row, day, "")
		for _, v := range fields.Values(rec) {
			if v == nil {
				v = ""
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}
	return rows
}
