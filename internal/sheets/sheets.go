// Package sheets reads identifier lists from and appends ledger rows to spreadsheets.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrNothingToWrite is returned by Sink.Append for an empty row list.
var ErrNothingToWrite = errors.New("nothing to write")

// Source reads keyword columns.
type Source interface {
	// Keywords returns the non-blank, trimmed values of the first column of `rng`.
	Keywords(ctx context.Context, spreadsheet, rng string) ([]string, error)
}

// Sink appends rows below the existing data of a tab.
type Sink interface {
	// Append returns the last occupied row (1-based) after the write.
	Append(ctx context.Context, spreadsheet, tab string, rows [][]any) (int, error)
}

var idPattern = regexp.MustCompile(`/d/([a-zA-Z0-9-_]+)`)

// ExtractSpreadsheetID accepts either a bare spreadsheet id or any sheets/docs url
// that contains `/d/<id>`.
func ExtractSpreadsheetID(linkOrID string) (string, error) {
	linkOrID = strings.TrimSpace(linkOrID)
	if linkOrID == "" {
		return "", fmt.Errorf("empty spreadsheet reference")
	}
	if !strings.Contains(linkOrID, "/") {
		return linkOrID, nil
	}
	match := idPattern.FindStringSubmatch(linkOrID)
	if match == nil {
		return "", fmt.Errorf("could not parse spreadsheet id from %q", linkOrID)
	}
	return match[1], nil
}

// TabRange renders `tab!cell` with the tab quoted, tab names such as
// "*Daily_Data (Player)" are not valid A1 notation otherwise.
func TabRange(tab, cell string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(tab, "'", "''"), cell)
}

// lastRowFromRange reads the final row of an A1 range, "'Tab'!A45:H52" -> 52.
func lastRowFromRange(rng string) (int, error) {
	cells := rng
	if i := strings.LastIndex(cells, "!"); i >= 0 {
		cells = cells[i+1:]
	}
	if i := strings.LastIndex(cells, ":"); i >= 0 {
		cells = cells[i+1:]
	}
	digits := strings.TrimLeft(cells, "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz$")
	row, err := strconv.Atoi(digits)
	if err != nil || row <= 0 {
		return 0, fmt.Errorf("no row number in range %q", rng)
	}
	return row, nil
}

// cleanColumn returns the trimmed, non-blank first cells of a value grid.
func cleanColumn(values [][]any) []string {
	out := []string{}
	for _, row := range values {
		if len(row) == 0 || row[0] == nil {
			continue
		}
		cell := strings.TrimSpace(fmt.Sprint(row[0]))
		if cell == "" {
			continue
		}
		out = append(out, cell)
	}
	return out
}
