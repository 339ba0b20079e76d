package sheets

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Source and Sink, used for dry runs and tests.
type Memory struct {
	mu       sync.Mutex
	keywords map[string][]string
	tabs     map[string][][]any
}

func NewMemory() *Memory {
	return &Memory{
		keywords: map[string][]string{},
		tabs:     map[string][][]any{},
	}
}

func memoryKey(spreadsheet, name string) string {
	return spreadsheet + "\x00" + name
}

// SetKeywords seeds the column returned for a spreadsheet range.
func (m *Memory) SetKeywords(spreadsheet, rng string, values []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keywords[memoryKey(spreadsheet, rng)] = values
}

func (m *Memory) Keywords(_ context.Context, spreadsheet, rng string) ([]string, error) {
	id, err := ExtractSpreadsheetID(spreadsheet)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	values, ok := m.keywords[memoryKey(id, rng)]
	if !ok {
		return nil, fmt.Errorf("range %s not found in %s", rng, id)
	}
	grid := make([][]any, len(values))
	for i, v := range values {
		grid[i] = []any{v}
	}
	return cleanColumn(grid), nil
}

func (m *Memory) Append(_ context.Context, spreadsheet, tab string, rows [][]any) (int, error) {
	if len(rows) == 0 {
		return 0, ErrNothingToWrite
	}
	id, err := ExtractSpreadsheetID(spreadsheet)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := memoryKey(id, tab)
	m.tabs[key] = append(m.tabs[key], rows...)
	return len(m.tabs[key]), nil
}

// Rows returns everything appended to a tab so far.
func (m *Memory) Rows(spreadsheet, tab string) [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]any(nil), m.tabs[memoryKey(spreadsheet, tab)]...)
}
