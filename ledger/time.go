package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// TIMESTAMP - Unix seconds, day boundary at midnight UTC
// =============================================================================

// DayLength is the length of a rental day in seconds.
const DayLength int64 = 86400

// Timestamp is a point in time in Unix seconds. Rental dates must sit on a
// day boundary, which is fixed at midnight UTC.
type Timestamp int64

// Date returns midnight UTC of the given calendar day.
func Date(year int, month time.Month, day int) Timestamp {
	return Timestamp(time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Unix())
}

func FromTime(t time.Time) Timestamp { return Timestamp(t.Unix()) }

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) Timestamp {
	u := t.UTC()
	return Date(u.Year(), u.Month(), u.Day())
}

// ParseDay parses "2006-01-02" as midnight UTC.
func ParseDay(s string) (Timestamp, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return 0, fmt.Errorf("%w: date %q: %v", ErrInvalidDates, s, err)
	}
	return FromTime(t), nil
}

func (ts Timestamp) Time() time.Time { return time.Unix(int64(ts), 0).UTC() }
func (ts Timestamp) Unix() int64 { return int64(ts) }
func (ts Timestamp) DayAligned() bool { return int64(ts)%DayLength == 0 }
func (ts Timestamp) AddDays(n int64) Timestamp { return ts + Timestamp(n*DayLength) }
func (ts Timestamp) Before(o Timestamp) bool { return ts < o }
func (ts Timestamp) After(o Timestamp) bool { return ts > o }

func (ts Timestamp) String() string {
	if ts.DayAligned() {
		return ts.Time().Format("2006-01-02")
	}
	return ts.Time().Format(time.RFC3339)
}

// WholeDaysSince returns the number of complete days from earlier to ts,
// or 0 when ts is not after earlier.
func (ts Timestamp) WholeDaysSince(earlier Timestamp) int64 {
	if ts <= earlier {
		return 0
	}
	return (int64(ts) - int64(earlier)) / DayLength
}

// =============================================================================
// PERIOD - Half-open [Start, End) rental range
// =============================================================================

// Period is the range a reservation claims. End is exclusive: a period
// ending at midnight does not include the day that starts there.
type Period struct {
	Start Timestamp
	End   Timestamp
}

// Overlaps reports whether the two ranges share any instant.
// Adjacent ranges (one ends where the other starts) do not overlap.
func (p Period) Overlaps(o Period) bool {
	return p.Start < o.End && p.End > o.Start
}

// Validate checks ordering first, then day alignment.
func (p Period) Validate() error {
	if p.Start >= p.End {
		return fmt.Errorf("%w: start %s is not before end %s", ErrInvalidDates, p.Start, p.End)
	}
	if !p.Start.DayAligned() || !p.End.DayAligned() {
		return fmt.Errorf("%w: %s", ErrNotDayAligned, p)
	}
	return nil
}

// Days returns the number of rental days in the period.
func (p Period) Days() (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	span := int64(p.End) - int64(p.Start)
	if span%DayLength != 0 {
		return 0, fmt.Errorf("%w: %s", ErrNotDayAligned, p)
	}
	return span / DayLength, nil
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + ")"
}
