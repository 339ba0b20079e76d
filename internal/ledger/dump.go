package ledger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"boledger/internal/backoffice"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

type dumpBatch struct {
	Index       int      `json:"index"`
	Identifiers []string `json:"identifiers"`
	Pages       int      `json:"pages"`
	Requests    int      `json:"requests"`
	Rows        int      `json:"rows"`
	Stop        string   `json:"stop"`
	Error       string   `json:"error,omitempty"`
}

type dumpFile struct {
	RunID   string           `json:"run_id"`
	Brand   string           `json:"brand"`
	Report  string           `json:"report"`
	Date    string           `json:"date"`
	Total   int              `json:"total"`
	Batches []dumpBatch      `json:"batches"`
	Data    []backoffice.Row `json:"data"`
}

// Dumper writes raw fetch results to disk for offline inspection.
type Dumper struct {
	dir      string
	compress bool
}

func NewDumper(dir string, compress bool) (*Dumper, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("create dump dir: %w", err)
	}
	return &Dumper{dir: dir, compress: compress}, nil
}

// Path is where the dump of a brand's report for a day is written.
func (d *Dumper) Path(brand backoffice.Brand, report backoffice.ReportType, date time.Time) string {
	name := fmt.Sprintf("%s-%s-%s.json", brand, report, date.Format(time.DateOnly))
	if d.compress {
		name += ".gz"
	}
	return filepath.Join(d.dir, name)
}

func (d *Dumper) Dump(runID string, brand backoffice.Brand, report backoffice.ReportType, date time.Time, result backoffice.FetchResult) (string, error) {
	file := dumpFile{
		RunID:  runID,
		Brand:  string(brand),
		Report: report.String(),
		Date:   date.Format(time.DateOnly),
		Total:  len(result.Rows),
		Data:   result.Rows,
	}
	for _, b := range result.Batches {
		batch := dumpBatch{
			Index:       b.Index,
			Identifiers: b.Identifiers,
			Pages:       b.Pages,
			Requests:    b.Requests,
			Rows:        b.Rows,
			Stop:        b.Stop.String(),
		}
		if b.Err != nil {
			batch.Error = b.Err.Error()
		}
		file.Batches = append(file.Batches, batch)
	}

	contents, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode dump: %w", err)
	}

	path := d.Path(brand, report, date)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if d.compress {
		gz = gzip.NewWriter(f)
		w = gz
	}
	_, err = w.Write(contents)
	if err != nil {
		return "", fmt.Errorf("write dump: %w", err)
	}
	if gz != nil {
		err = gz.Close()
		if err != nil {
			return "", fmt.Errorf("flush dump: %w", err)
		}
	}
	return path, f.Close()
}
