package backoffice

import "fmt"

// StallMatch decides when a page counts as a repeat of the previous one.
type StallMatch int

const (
	// StallMatchContent requires the same row count and byte-identical rows.
	StallMatchContent StallMatch = iota
	// StallMatchCount only compares row counts.
	StallMatchCount
)

func ParseStallMatch(name string) (StallMatch, error) {
	switch name {
	case "", "content":
		return StallMatchContent, nil
	case "count":
		return StallMatchCount, nil
	default:
		return 0, fmt.Errorf("unknown stall match %q, expected \"content\" or \"count\"", name)
	}
}

func (m StallMatch) String() string {
	if m == StallMatchCount {
		return "count"
	}
	return "content"
}

// stallDetector catches a server that keeps answering with the same page instead
// of advancing the cursor.
type stallDetector struct {
	threshold int
	match     StallMatch

	run       int
	prevCount int
	prevSum   uint64
}

func newStallDetector(threshold int, match StallMatch) *stallDetector {
	return &stallDetector{threshold: threshold, match: match}
}

// observe records a page and reports whether the last `threshold` pages repeated.
func (d *stallDetector) observe(count int, sum uint64) bool {
	repeated := d.run > 0 &&
		count == d.prevCount &&
		(d.match == StallMatchCount || sum == d.prevSum)
	if repeated {
		d.run++
	} else {
		d.run = 1
	}
	d.prevCount = count
	d.prevSum = sum
	return d.run >= d.threshold
}
