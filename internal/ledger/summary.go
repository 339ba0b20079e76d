package ledger

import (
	"io"
	"strconv"
	"time"

	"boledger/internal/backoffice"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func errorCell(err error) string {
	if err == nil {
		return ""
	}
	if kind := backoffice.KindOf(err); kind != 0 {
		return kind.String()
	}
	return err.Error()
}

// Render prints one line per brand report.
func (s Summary) Render(w io.Writer) {
	t := newTable(w)
	t.SetTitle("run " + s.RunID + " " + s.Date.Format(time.DateOnly))
	t.AppendHeader(table.Row{"Brand", "Report", "Fetched", "Written", "Last row", "Degraded", "Error"})
	for _, o := range s.Outcomes {
		report := ""
		if o.Report != 0 {
			report = o.Report.String()
		}
		lastRow := ""
		if o.LastRow > 0 {
			lastRow = strconv.Itoa(o.LastRow)
		}
		t.AppendRow(table.Row{o.Brand, report, o.Fetched, o.Written, lastRow, o.Degraded, errorCell(o.Err)})
	}
	t.Render()
}

// RenderBrands prints the endpoint set of every configured brand.
func RenderBrands(w io.Writer, cfg Config, endpoints backoffice.Endpoints) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Brand", "Report", "Login page", "Report URL", "Source range"})
	for _, brand := range endpoints.Brands() {
		for _, report := range endpoints.Reports(brand) {
			set, err := endpoints.Lookup(brand, report)
			if err != nil {
				continue
			}
			t.AppendRow(table.Row{brand, report.String(), set.LoginPage, set.Report, cfg.Brands[string(brand)].SourceRange})
		}
	}
	t.Render()
}
