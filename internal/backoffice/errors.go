package backoffice

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a back-office failure, the kind decides how far a failure travels:
// configuration errors abort a brand, authentication failures skip a report, everything
// that happens while paging only costs the rows of a page or a batch.
type Kind int

const (
	KindConfiguration Kind = iota + 1
	KindNetwork
	KindProtocol
	KindTimeout
	KindStall
	KindAuthExpired
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindNetwork:
		return "network"
	case KindProtocol:
		return "protocol"
	case KindTimeout:
		return "timeout"
	case KindStall:
		return "stall"
	case KindAuthExpired:
		return "auth_expired"
	default:
		return "unknown"
	}
}

// Error carries enough context to diagnose a failure without rerunning. Zero-valued
// context fields are omitted from the message.
type Error struct {
	Kind   Kind
	Brand  Brand
	Report ReportType
	// Batch is the 1-based batch index, 0 when not paging.
	Batch int
	// Page is the 1-based page number, 0 when not paging.
	Page   int
	Status int
	URL    string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("backoffice: ")
	b.WriteString(e.Kind.String())
	if e.Brand != "" {
		fmt.Fprintf(&b, " brand=%s", e.Brand)
	}
	if e.Report != 0 {
		fmt.Fprintf(&b, " report=%s", e.Report)
	}
	if e.Batch > 0 {
		fmt.Fprintf(&b, " batch=%d", e.Batch)
	}
	if e.Page > 0 {
		fmt.Fprintf(&b, " page=%d", e.Page)
	}
	if e.Status > 0 {
		fmt.Fprintf(&b, " status=%d", e.Status)
	}
	if e.URL != "" {
		fmt.Fprintf(&b, " url=%s", e.URL)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, 0 if there is none.
func KindOf(err error) Kind {
	var boErr *Error
	if errors.As(err, &boErr) {
		return boErr.Kind
	}
	return 0
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
