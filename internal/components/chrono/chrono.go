package chrono

import (
	"time"
	_ "time/tzdata"
)

// API is the clock every date-dependent component reads from.
type API interface {
	Now() time.Time
	Location() *time.Location
}

type StandardImpl struct {
	location *time.Location
}

// NewStandardImpl pins the clock to `timezone`, the back-office reports on
// calendar days so "yesterday" must be computed in the vendor's zone rather
// than wherever the process happens to run.
func NewStandardImpl(timezone string) (StandardImpl, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return StandardImpl{}, err
	}
	return StandardImpl{location: location}, nil
}

func (s StandardImpl) Now() time.Time {
	return time.Now().In(s.location)
}

func (s StandardImpl) Location() *time.Location {
	return s.location
}

// FixedImpl always returns the same instant.
type FixedImpl struct {
	At time.Time
}

func (f FixedImpl) Now() time.Time {
	return f.At
}

func (f FixedImpl) Location() *time.Location {
	return f.At.Location()
}

// Yesterday returns midnight of the previous calendar day in the clock's location.
func Yesterday(clock API) time.Time {
	now := clock.Now().In(clock.Location())
	return time.Date(now.Year(), now.Month(), now.Day()-1, 0, 0, 0, 0, clock.Location())
}

// ParseDay parses a YYYY-MM-DD day in the clock's location.
func ParseDay(clock API, day string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, day, clock.Location())
}
