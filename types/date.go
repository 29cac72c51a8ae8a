package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-day layout accepted on input.
const DateLayout = "2006-01-02"

// TimestampLayout renders instants the way browsers print Date.toISOString.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Date is a business date (received, used, needed-by). It is always held in
// UTC. JSON input may be a bare day ("2024-05-01") or a full RFC 3339
// timestamp; output is always a millisecond ISO-8601 timestamp.
type Date struct {
	t time.Time
}

// NewDate wraps t, normalized to UTC.
func NewDate(t time.Time) Date {
	return Date{t: t.UTC()}
}

// Day returns midnight UTC of the given calendar day.
func Day(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts a bare day or an RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("types: parse date: empty string")
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{t: t.UTC()}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Date{}, fmt.Errorf("types: parse date %q: %w", s, err)
	}
	return Date{t: t.UTC()}, nil
}

// Time returns the underlying instant.
func (d Date) Time() time.Time { return d.t }

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d.t.IsZero() }

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }

// DayString renders the calendar day.
func (d Date) DayString() string { return d.t.Format(DateLayout) }

// MonthKey renders the calendar month ("2024-05") used for trend buckets.
func (d Date) MonthKey() string { return d.t.Format("2006-01") }

func (d Date) String() string {
	if d.t.IsZero() {
		return ""
	}
	return d.t.Format(TimestampLayout)
}

// MarshalJSON implements json.Marshaler. The zero date encodes as null.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.t.Format(TimestampLayout))
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("types: date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
