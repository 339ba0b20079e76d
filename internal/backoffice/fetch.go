package backoffice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"time"

	"boledger/internal/components/assert"
	"boledger/internal/components/telemetry"

	"github.com/cespare/xxhash/v2"
	json "github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_fetcher_fetch       = "fetcher.fetch"
	report_fetcher_fetch_batch = "fetcher.fetch-batch"
	report_fetcher_fetch_page  = "fetcher.fetch-page"
)

const (
	DefaultBatchSize      = 5
	DefaultPageSize       = 100
	DefaultMaxRetries     = 3
	DefaultMaxPages       = 100
	DefaultStallThreshold = 3
	DefaultDataTimeout    = 30 * time.Second
)

var (
	meter           = otel.Meter("boledger/backoffice")
	pagesCounter, _ = meter.Int64Counter("backoffice.pages", metric.WithDescription("report pages requested"))
	rowsCounter, _  = meter.Int64Counter("backoffice.rows", metric.WithDescription("report rows fetched"))
)

// Row is one result row exactly as the report endpoint returned it, numbers are
// kept as json.Number so nothing is lost before the spreadsheet parses them.
type Row map[string]any

type FetchOptions struct {
	// MaxRetries is the number of attempts a page gets when it times out.
	MaxRetries int
	// MaxPages is a safety ceiling on pages per batch.
	MaxPages int
	// StallThreshold is how many consecutive repeated pages end a batch.
	StallThreshold int
	StallMatch     StallMatch
	CurrencyType   int
	// DataTimeout bounds each page request.
	DataTimeout time.Duration
}

func DefaultFetchOptions() FetchOptions {
	return FetchOptions{
		MaxRetries:     DefaultMaxRetries,
		MaxPages:       DefaultMaxPages,
		StallThreshold: DefaultStallThreshold,
		StallMatch:     StallMatchContent,
		CurrencyType:   AllCurrencies,
		DataTimeout:    DefaultDataTimeout,
	}
}

func (o FetchOptions) withDefaults() FetchOptions {
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	if o.StallThreshold <= 0 {
		o.StallThreshold = DefaultStallThreshold
	}
	if o.DataTimeout <= 0 {
		o.DataTimeout = DefaultDataTimeout
	}
	return o
}

// FetchRequest describes one report pull. Identifiers is the raw source list: its
// first two entries are the display brand name and the destination sheet and are
// never queried.
type FetchRequest struct {
	Endpoint    string
	Report      ReportType
	Identifiers []string
	Date        time.Time
	BatchSize   int
	PageSize    int
}

// StopReason is why a batch stopped paging.
type StopReason int

const (
	StopLastPage StopReason = iota + 1
	StopEmpty
	StopStall
	StopPageCeiling
	StopRetriesExhausted
	StopRequestFailed
)

func (r StopReason) String() string {
	switch r {
	case StopLastPage:
		return "last_page"
	case StopEmpty:
		return "empty"
	case StopStall:
		return "stall"
	case StopPageCeiling:
		return "page_ceiling"
	case StopRetriesExhausted:
		return "retries_exhausted"
	case StopRequestFailed:
		return "request_failed"
	default:
		return "unknown"
	}
}

type BatchOutcome struct {
	// Index is 1-based.
	Index       int
	Identifiers []string
	// Pages is the number of pages attempted, Requests also counts retries.
	Pages    int
	Requests int
	Rows     int
	Stop     StopReason
	// Err is the last problem seen in the batch, nil for a clean run.
	Err error
}

type FetchResult struct {
	Rows    []Row
	Batches []BatchOutcome
}

// Requests sums the HTTP requests issued across batches.
func (r FetchResult) Requests() int {
	n := 0
	for _, b := range r.Batches {
		n += b.Requests
	}
	return n
}

// Sleeper waits between retries.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Backoff is the wait after failed attempt `attempt` (0-based): 1s, 2s, 4s, ...
func Backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

// QueryIdentifiers drops the two leading metadata entries of a source list.
func QueryIdentifiers(list []string) []string {
	if len(list) <= 2 {
		return nil
	}
	return list[2:]
}

// Partition splits identifiers into consecutive batches of at most `size`.
func Partition(identifiers []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var batches [][]string
	for start := 0; start < len(identifiers); start += size {
		end := min(start+size, len(identifiers))
		batches = append(batches, identifiers[start:end])
	}
	return batches
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Fetcher pages through a report for an authenticated session.
type Fetcher struct {
	session *Session
	tel     telemetry.API
	opts    FetchOptions
	sleep   Sleeper
}

func NewFetcher(session *Session, tel telemetry.API, opts FetchOptions) *Fetcher {
	assert.NotNil(session)
	assert.NotNil(tel)
	return &Fetcher{
		session: session,
		tel:     telemetry.NewScopedAPI("backoffice", tel),
		opts:    opts.withDefaults(),
		sleep:   sleepContext,
	}
}

// SetSleeper replaces the retry wait, tests use it to skip real backoff.
func (f *Fetcher) SetSleeper(sleep Sleeper) {
	f.sleep = sleep
}

// Fetch pulls every row of the report for the request's identifiers, batches in input
// order then pages in ascending order. Failures while paging never fail the fetch,
// they end up in the batch outcomes, only an invalid request returns an error.
func (f *Fetcher) Fetch(ctx context.Context, req FetchRequest) (FetchResult, error) {
	ctx, span := tracer.Start(ctx, "fetcher:Fetch")
	defer span.End()

	if req.Endpoint == "" || req.Report == 0 {
		err := &Error{
			Kind:   KindConfiguration,
			Brand:  f.session.brand,
			Report: req.Report,
			Err:    fmt.Errorf("fetch request needs an endpoint and a report type"),
		}
		span.SetStatus(codes.Error, err.Error())
		return FetchResult{}, err
	}
	if req.PageSize <= 0 {
		req.PageSize = DefaultPageSize
	}

	batches := Partition(QueryIdentifiers(req.Identifiers), req.BatchSize)
	span.SetAttributes(
		attribute.String("brand", string(f.session.brand)),
		attribute.String("report", req.Report.String()),
		attribute.Int("batches", len(batches)),
	)
	f.tel.ReportDebug("fetch start", f.session.brand, req.Report, len(batches))

	result := FetchResult{Rows: []Row{}}
	for i, batch := range batches {
		outcome := f.fetchBatch(ctx, req, i+1, batch, &result.Rows)
		result.Batches = append(result.Batches, outcome)
	}

	f.tel.ReportCount(report_fetcher_fetch, int64(len(result.Rows)))
	return result, nil
}

func (f *Fetcher) fetchBatch(ctx context.Context, req FetchRequest, index int, identifiers []string, out *[]Row) BatchOutcome {
	outcome := BatchOutcome{Index: index, Identifiers: identifiers}
	stall := newStallDetector(f.opts.StallThreshold, f.opts.StallMatch)

	for page := 1; ; page++ {
		if page > f.opts.MaxPages {
			outcome.Stop = StopPageCeiling
			f.tel.ReportWarning(
				report_fetcher_fetch_batch,
				fmt.Errorf("page ceiling of %d reached, abandoning batch", f.opts.MaxPages),
				f.session.brand, req.Report, index,
			)
			return outcome
		}

		query := PageQuery{
			Report:       req.Report,
			Identifiers:  identifiers,
			Date:         req.Date,
			Page:         page,
			PageSize:     req.PageSize,
			CurrencyType: f.opts.CurrencyType,
		}
		res, requests, err := f.fetchPageWithRetry(ctx, req.Endpoint, index, query)
		outcome.Pages++
		outcome.Requests += requests
		if err != nil {
			outcome.Err = err
			outcome.Stop = StopRequestFailed
			if IsKind(err, KindTimeout) {
				outcome.Stop = StopRetriesExhausted
			}
			f.tel.ReportBroken(report_fetcher_fetch_batch, err)
			return outcome
		}
		if res.problem != nil {
			outcome.Err = res.problem
		}

		*out = append(*out, res.rows...)
		outcome.Rows += len(res.rows)

		switch {
		case len(res.rows) == 0:
			outcome.Stop = StopEmpty
			return outcome
		case len(res.rows) < req.PageSize:
			outcome.Stop = StopLastPage
			return outcome
		case stall.observe(len(res.rows), res.sum):
			outcome.Stop = StopStall
			outcome.Err = f.pageError(KindStall, req.Report, index, page, 0, req.Endpoint,
				fmt.Errorf("%d consecutive pages repeated (match=%s)", f.opts.StallThreshold, f.opts.StallMatch))
			f.tel.ReportWarning(report_fetcher_fetch_batch, outcome.Err)
			return outcome
		}
	}
}

// fetchPageWithRetry retries timeouts only, it returns the number of requests made.
func (f *Fetcher) fetchPageWithRetry(ctx context.Context, endpoint string, batch int, query PageQuery) (pageResult, int, error) {
	var lastErr error
	for attempt := 0; attempt < f.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := Backoff(attempt - 1)
			err := f.sleep(ctx, delay)
			if err != nil {
				return pageResult{}, attempt, f.pageError(KindNetwork, query.Report, batch, query.Page, 0, endpoint, fmt.Errorf("backoff interrupted: %w", err))
			}
		}

		res, err := f.fetchPage(ctx, endpoint, batch, query)
		if err == nil {
			return res, attempt + 1, nil
		}
		if !IsKind(err, KindTimeout) {
			return pageResult{}, attempt + 1, err
		}
		lastErr = err
		f.tel.ReportWarning(report_fetcher_fetch_page, err, "attempt", attempt+1, "of", f.opts.MaxRetries)
	}
	return pageResult{}, f.opts.MaxRetries, lastErr
}

type pageResult struct {
	rows []Row
	sum  uint64
	// problem is set when the page degraded to zero rows (bad status, bad payload).
	problem error
}

func (f *Fetcher) pageError(kind Kind, report ReportType, batch, page, status int, endpoint string, err error) *Error {
	return &Error{
		Kind:   kind,
		Brand:  f.session.brand,
		Report: report,
		Batch:  batch,
		Page:   page,
		Status: status,
		URL:    endpoint,
		Err:    err,
	}
}

// fetchPage returns an error only for transport failures, everything the server says
// is folded into the page result.
func (f *Fetcher) fetchPage(ctx context.Context, endpoint string, batch int, query PageQuery) (pageResult, error) {
	ctx, span := tracer.Start(ctx, "fetcher:fetchPage", trace.WithAttributes(
		attribute.Int("batch", batch),
		attribute.Int("page", query.Page),
	))
	defer span.End()

	attrs := metric.WithAttributes(
		attribute.String("brand", string(f.session.brand)),
		attribute.String("report", query.Report.String()),
	)
	pagesCounter.Add(ctx, 1, attrs)

	reqCtx, cancel := context.WithTimeout(ctx, f.opts.DataTimeout)
	defer cancel()

	res, err := f.session.http.R().
		SetContext(reqCtx).
		SetQueryParamsFromValues(query.Values()).
		Get(endpoint)
	if err != nil {
		kind := KindNetwork
		if ctx.Err() == nil && isTimeout(err) {
			kind = KindTimeout
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, kind.String())
		return pageResult{}, f.pageError(kind, query.Report, batch, query.Page, 0, endpoint, err)
	}

	if res.StatusCode() == http.StatusUnauthorized || res.StatusCode() == http.StatusForbidden {
		f.session.Invalidate()
		problem := f.pageError(KindAuthExpired, query.Report, batch, query.Page, res.StatusCode(), endpoint,
			fmt.Errorf("session rejected by the back-office"))
		f.tel.ReportWarning(report_fetcher_fetch_page, problem)
		span.SetStatus(codes.Error, problem.Kind.String())
		return pageResult{problem: problem}, nil
	}
	if !res.IsSuccess() {
		problem := f.pageError(KindNetwork, query.Report, batch, query.Page, res.StatusCode(), endpoint,
			fmt.Errorf("unexpected status"))
		f.tel.ReportBroken(report_fetcher_fetch_page, problem)
		span.SetStatus(codes.Error, problem.Kind.String())
		return pageResult{problem: problem}, nil
	}

	rows, sum, err := decodePage(res.Body())
	if err != nil {
		problem := f.pageError(KindProtocol, query.Report, batch, query.Page, res.StatusCode(), endpoint, err)
		f.tel.ReportBroken(report_fetcher_fetch_page, problem)
		span.SetStatus(codes.Error, problem.Kind.String())
		return pageResult{problem: problem}, nil
	}

	rowsCounter.Add(ctx, int64(len(rows)), attrs)
	return pageResult{rows: rows, sum: sum}, nil
}

// decodePage extracts the `aaData` rows. An absent or null `aaData` is an empty page,
// anything else that is not a list of objects is a protocol error.
func decodePage(body []byte) ([]Row, uint64, error) {
	var payload struct {
		AaData json.RawMessage `json:"aaData"`
	}
	err := json.Unmarshal(body, &payload)
	if err != nil {
		return nil, 0, fmt.Errorf("decode page body: %w", err)
	}

	raw := bytes.TrimSpace(payload.AaData)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, 0, nil
	}
	if raw[0] != '[' {
		return nil, 0, fmt.Errorf("aaData is not a list")
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var rows []Row
	err = decoder.Decode(&rows)
	if err != nil {
		return nil, 0, fmt.Errorf("decode aaData rows: %w", err)
	}
	return rows, xxhash.Sum64(raw), nil
}
