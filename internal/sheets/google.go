package sheets

import (
	"context"
	"fmt"
	"os"

	"boledger/internal/components/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var tracer = otel.Tracer("boledger/sheets")

const report_google_append = "google.append"

// Credentials picks a service account key, an inline JSON key wins over a key file.
func Credentials(file, inline string) (option.ClientOption, error) {
	if inline != "" {
		return option.WithCredentialsJSON([]byte(inline)), nil
	}
	if file == "" {
		return nil, fmt.Errorf("no google service account credentials configured")
	}
	_, err := os.Stat(file)
	if err != nil {
		return nil, fmt.Errorf("service account file: %w", err)
	}
	return option.WithCredentialsFile(file), nil
}

// Google is the Source and Sink backed by the Sheets v4 API.
type Google struct {
	svc *sheets.Service
	tel telemetry.API
}

func NewGoogle(ctx context.Context, tel telemetry.API, opts ...option.ClientOption) (Google, error) {
	opts = append([]option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}, opts...)
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return Google{}, fmt.Errorf("create sheets service: %w", err)
	}
	return Google{svc: svc, tel: telemetry.NewScopedAPI("sheets", tel)}, nil
}

func (g Google) Keywords(ctx context.Context, spreadsheet, rng string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "google:Keywords")
	defer span.End()

	id, err := ExtractSpreadsheetID(spreadsheet)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("spreadsheet", id), attribute.String("range", rng))

	res, err := g.svc.Spreadsheets.Values.Get(id, rng).
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("read %s from %s: %w", rng, id, err)
	}
	return cleanColumn(res.Values), nil
}

func (g Google) Append(ctx context.Context, spreadsheet, tab string, rows [][]any) (int, error) {
	ctx, span := tracer.Start(ctx, "google:Append")
	defer span.End()

	if len(rows) == 0 {
		return 0, ErrNothingToWrite
	}
	id, err := ExtractSpreadsheetID(spreadsheet)
	if err != nil {
		return 0, err
	}
	span.SetAttributes(
		attribute.String("spreadsheet", id),
		attribute.String("tab", tab),
		attribute.Int("rows", len(rows)),
	)

	res, err := g.svc.Spreadsheets.Values.Append(id, TabRange(tab, "A1"), &sheets.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		IncludeValuesInResponse(false).
		Context(ctx).
		Do()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("append to %s/%s: %w", id, tab, err)
	}
	if res.Updates == nil {
		return 0, fmt.Errorf("append to %s/%s: response has no update summary", id, tab)
	}

	last, err := lastRowFromRange(res.Updates.UpdatedRange)
	if err != nil {
		return 0, fmt.Errorf("append to %s/%s: %w", id, tab, err)
	}
	g.tel.ReportDebug(report_google_append, id, tab, len(rows), last)
	return last, nil
}
