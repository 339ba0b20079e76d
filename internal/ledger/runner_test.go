package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"boledger/internal/backoffice"
	"boledger/internal/components/telemetry"
	"boledger/internal/projector"
	"boledger/internal/sheets"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

var runDay = time.Date(2024, time.March, 6, 0, 0, 0, 0, time.UTC)

func TestRunWritesLedgerRows(t *testing.T) {
	fake := newFakeBackoffice(t)
	source := sheets.NewMemory()
	source.SetKeywords("src", "SocialMedia!A1:A", []string{"BAJI", "dest", "u1", "u2", "u3"})
	sink := sheets.NewMemory()

	runner := newTestRunner(t, Config{Brands: map[string]BrandConfig{"baji": fake.brand("/login")}}, source, sink, nil)
	summary := runner.Run(context.Background(), RunRequest{Date: runDay})

	require.False(t, summary.Failed())
	require.NotEmpty(t, summary.RunID)
	require.Len(t, summary.Outcomes, 2)

	affiliates := summary.Outcomes[0]
	require.Equal(t, backoffice.Affiliates, affiliates.Report)
	require.Equal(t, 2, affiliates.Fetched)
	require.Equal(t, 2, affiliates.Written)
	require.Equal(t, 2, affiliates.LastRow)

	players := sink.Rows("dest", defaultPlayerTab)
	require.Equal(t, [][]any{
		{"06/03/2024", "", "aff", "PKR", "p1", "100.00", "0", "4", "250.5", "-12", ""},
		{"06/03/2024", "", "aff", "PKR", "p2", "5", "1", "1", "5", "3", "1"},
	}, players)

	social := sink.Rows("dest", defaultSocialMediaTab)
	require.Len(t, social, 1)
	require.Len(t, social[0], 2+len(projector.SocialMedia.Fields))
	require.Equal(t, "12", fmt.Sprint(social[0][4]))

	logins, queries := fake.counts()
	require.Equal(t, 2, logins, "one handshake per report")
	require.Equal(t, 2, queries, "short first pages end each batch")
}

func TestRunnerFillsConfigDefaults(t *testing.T) {
	fake := newFakeBackoffice(t)
	source := sheets.NewMemory()
	source.SetKeywords("src", "SocialMedia!A1:A", []string{"BAJI", "dest", "u1"})
	sink := sheets.NewMemory()

	runner, err := NewRunner(Options{
		Config: Config{Brands: map[string]BrandConfig{"baji": fake.brand("/login")}},
		Secrets: Secrets{
			Credentials: backoffice.Credentials{Username: "ops", Password: "secret"},
			SourceSheet: "src",
		},
		Source: source,
		Sink:   sink,
		Tel:    &telemetry.Recorder{},
	})
	require.NoError(t, err)
	require.Equal(t, int(backoffice.DefaultAuthTimeout/time.Second), runner.cfg.Fetch.AuthTimeoutSecs)

	summary := runner.Run(context.Background(), RunRequest{Date: runDay})
	require.False(t, summary.Failed(), summary.Outcomes)
	logins, _ := fake.counts()
	require.Equal(t, 2, logins)
}

func TestRunIsolatesBrandFailures(t *testing.T) {
	fake := newFakeBackoffice(t)
	source := sheets.NewMemory()
	source.SetKeywords("src", "SocialMedia!A1:A", []string{"GOOD", "dest", "u1"})
	sink := sheets.NewMemory()

	bad := fake.brand("/broken/login")
	empty := fake.brand("/login")
	empty.SourceRange = "SocialMedia!Z1:Z"
	source.SetKeywords("src", "SocialMedia!Z1:Z", []string{"", " "})

	runner := newTestRunner(t, Config{Brands: map[string]BrandConfig{
		"bad":   bad,
		"empty": empty,
		"good":  fake.brand("/login"),
	}}, source, sink, nil)
	summary := runner.Run(context.Background(), RunRequest{Date: runDay, Reports: []backoffice.ReportType{backoffice.Affiliates}})

	require.True(t, summary.Failed())
	require.Len(t, summary.Outcomes, 3)

	require.Equal(t, backoffice.Brand("bad"), summary.Outcomes[0].Brand)
	require.True(t, backoffice.IsKind(summary.Outcomes[0].Err, backoffice.KindNetwork), summary.Outcomes[0].Err)

	require.Equal(t, backoffice.Brand("empty"), summary.Outcomes[1].Brand)
	require.ErrorContains(t, summary.Outcomes[1].Err, "no keywords")

	good := summary.Outcomes[2]
	require.NoError(t, good.Err)
	require.Equal(t, backoffice.Affiliates, good.Report)
	require.Equal(t, 2, good.Written)
	require.Empty(t, sink.Rows("dest", defaultSocialMediaTab))
}

func TestRunMetadataOnlyWritesNothing(t *testing.T) {
	fake := newFakeBackoffice(t)
	source := sheets.NewMemory()
	source.SetKeywords("src", "SocialMedia!A1:A", []string{"BAJI"})
	sink := sheets.NewMemory()

	runner := newTestRunner(t, Config{Brands: map[string]BrandConfig{"baji": fake.brand("/login")}}, source, sink, nil)
	summary := runner.Run(context.Background(), RunRequest{Date: runDay, Brands: []backoffice.Brand{"baji"}})

	require.False(t, summary.Failed())
	for _, o := range summary.Outcomes {
		require.Zero(t, o.Fetched)
		require.Zero(t, o.Written)
	}
	_, queries := fake.counts()
	require.Zero(t, queries)
	// destination falls back to the source sheet
	require.Empty(t, sink.Rows("src", defaultPlayerTab))
}

func TestRunUnknownBrand(t *testing.T) {
	fake := newFakeBackoffice(t)
	runner := newTestRunner(t, Config{Brands: map[string]BrandConfig{"baji": fake.brand("/login")}}, sheets.NewMemory(), sheets.NewMemory(), nil)

	summary := runner.Run(context.Background(), RunRequest{Date: runDay, Brands: []backoffice.Brand{"nope"}})
	require.Len(t, summary.Outcomes, 1)
	require.True(t, backoffice.IsKind(summary.Outcomes[0].Err, backoffice.KindConfiguration))
}

func TestRunDumpsResults(t *testing.T) {
	fake := newFakeBackoffice(t)
	source := sheets.NewMemory()
	source.SetKeywords("src", "SocialMedia!A1:A", []string{"BAJI", "dest", "u1"})

	dumper, err := NewDumper(t.TempDir(), true)
	require.NoError(t, err)

	runner := newTestRunner(t, Config{Brands: map[string]BrandConfig{"baji": fake.brand("/login")}}, source, sheets.NewMemory(), dumper)
	summary := runner.Run(context.Background(), RunRequest{Date: runDay, Reports: []backoffice.ReportType{backoffice.Affiliates}})
	require.False(t, summary.Failed())

	path := dumper.Path("baji", backoffice.Affiliates, runDay)
	require.Equal(t, "baji-Affiliates-2024-03-06.json.gz", filepath.Base(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var dump dumpFile
	require.NoError(t, json.NewDecoder(gz).Decode(&dump))
	require.Equal(t, summary.RunID, dump.RunID)
	require.Equal(t, "Affiliates", dump.Report)
	require.Equal(t, 2, dump.Total)
	require.Len(t, dump.Data, 2)
	require.Len(t, dump.Batches, 1)
	require.Equal(t, "last_page", dump.Batches[0].Stop)
	require.Equal(t, []string{"u1"}, dump.Batches[0].Identifiers)
}

func TestLayout(t *testing.T) {
	fields := projector.FieldMap{Name: "mini", Fields: []projector.Field{
		{Raw: "a", Column: "col_a"},
		{Raw: "b", Column: "col_b"},
	}}
	records := projector.Project(fields, []map[string]any{{"a": 1, "c": 3}})
	require.Equal(t, [][]any{{"06/03/2024", "", 1, ""}}, Layout(runDay, fields, records))
	require.Empty(t, Layout(runDay, fields, nil))
}
