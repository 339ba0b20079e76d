package backoffice

import (
	"fmt"
	"strings"
)

// ReportType selects which back-office report is pulled and how its result rows are shaped.
type ReportType int

const (
	// Affiliates pulls player-level rows (one row per player under an affiliate).
	Affiliates ReportType = iota + 1
	// SocialMedia pulls affiliate-level acquisition rows.
	SocialMedia
)

// ReportTypes lists every supported report in run order.
var ReportTypes = []ReportType{Affiliates, SocialMedia}

func (r ReportType) String() string {
	switch r {
	case Affiliates:
		return "Affiliates"
	case SocialMedia:
		return "SocialMedia"
	default:
		return fmt.Sprintf("ReportType(%d)", int(r))
	}
}

// ParseReportType accepts report names case-insensitively.
func ParseReportType(name string) (ReportType, error) {
	for _, r := range ReportTypes {
		if strings.EqualFold(strings.TrimSpace(name), r.String()) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown report type %q", name)
}

func (r ReportType) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *ReportType) UnmarshalText(text []byte) error {
	parsed, err := ParseReportType(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// resultBy is the vendor's switch between affiliate-level and player-level result shapes.
func (r ReportType) resultBy() string {
	if r == SocialMedia {
		return ""
	}
	return "1"
}
