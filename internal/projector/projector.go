// Package projector narrows raw back-office rows down to the business columns written
// to the ledger.
package projector

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Field maps one raw row key to one output column.
type Field struct {
	Raw    string `json:"raw"`
	Column string `json:"column"`
}

// FieldMap is an ordered projection, the order is the column order of the ledger.
type FieldMap struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Record is a projected row, it holds exactly the columns of its FieldMap.
type Record map[string]any

func (m FieldMap) Columns() []string {
	out := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		out[i] = f.Column
	}
	return out
}

// Validate rejects empty keys and columns that appear twice.
func (m FieldMap) Validate() error {
	if len(m.Fields) == 0 {
		return fmt.Errorf("field map %q has no fields", m.Name)
	}
	var errs []error
	seen := map[string]bool{}
	for i, f := range m.Fields {
		if strings.TrimSpace(f.Raw) == "" || strings.TrimSpace(f.Column) == "" {
			errs = append(errs, fmt.Errorf("field map %q: field %d needs both raw and column", m.Name, i))
			continue
		}
		if seen[f.Column] {
			errs = append(errs, fmt.Errorf("field map %q: column %q is mapped twice", m.Name, f.Column))
		}
		seen[f.Column] = true
	}
	return errors.Join(errs...)
}

// Project maps every row through the field map. A raw key missing from a row
// projects to nil, keys that are not mapped are dropped.
func Project[R ~map[string]any](m FieldMap, rows []R) []Record {
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := make(Record, len(m.Fields))
		for _, f := range m.Fields {
			rec[f.Column] = row[f.Raw]
		}
		out = append(out, rec)
	}
	return out
}

// Values lays a record out in column order.
func (m FieldMap) Values(rec Record) []any {
	out := make([]any, len(m.Fields))
	for i, f := range m.Fields {
		out[i] = rec[f.Column]
	}
	return out
}

var (
	// Player is the player-level shape of the Affiliates report.
	Player = FieldMap{
		Name: "player",
		Fields: []Field{
			{Raw: "affiliateName", Column: "affiliate_username"},
			{Raw: "affiliateCurrency", Column: "currency"},
			{Raw: "player", Column: "username"},
			{Raw: "deposit", Column: "total_deposit"},
			{Raw: "withdrawal", Column: "total_withdrawal"},
			{Raw: "betCount", Column: "total_number_of_bets"},
			{Raw: "turnover", Column: "total_turnover"},
			{Raw: "profit", Column: "total_profit_and_loss"},
			{Raw: "bonus", Column: "total_bonus"},
		},
	}
	// Affiliate rolls the same money columns up to one row per affiliate.
	Affiliate = FieldMap{
		Name: "affiliate",
		Fields: []Field{
			{Raw: "affiliateName", Column: "affiliate_username"},
			{Raw: "affiliateCurrency", Column: "currency"},
			{Raw: "deposit", Column: "total_deposit"},
			{Raw: "withdrawal", Column: "total_withdrawal"},
			{Raw: "betCount", Column: "total_number_of_bets"},
			{Raw: "turnover", Column: "total_turnover"},
			{Raw: "profit", Column: "total_profit_and_loss"},
			{Raw: "bonus", Column: "total_bonus"},
		},
	}
	// SocialMedia is the acquisition shape of the SocialMedia report.
	SocialMedia = FieldMap{
		Name: "socialmedia",
		Fields: []Field{
			{Raw: "affiliateName", Column: "affiliate_username"},
			{Raw: "affiliateCurrency", Column: "currency"},
			{Raw: "registerCount", Column: "registered_users"},
			{Raw: "firstDepositCount", Column: "number_of_fd"},
			{Raw: "firstDeposit", Column: "first_deposit"},
			{Raw: "activePlayer", Column: "active_player"},
		},
	}
)

var builtins = map[string]FieldMap{
	Player.Name:      Player,
	Affiliate.Name:   Affiliate,
	SocialMedia.Name: SocialMedia,
}

// Builtins returns the names of the built-in field maps.
func Builtins() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns a built-in field map by name.
func Lookup(name string) (FieldMap, error) {
	m, ok := builtins[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return FieldMap{}, fmt.Errorf("unknown field map %q, expected one of %s", name, strings.Join(Builtins(), ", "))
	}
	return m, nil
}
