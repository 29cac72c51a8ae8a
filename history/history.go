// Package history implements the per-item stock ledger: a structured entry
// type, its one-line text form, and the reducer that derives stock from it.
package history

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Label names the kind of stock change an entry records.
type Label string

const (
	// LabelStock is a manual stock adjustment (item creation or edit).
	LabelStock Label = "Stock"
	// LabelReceived is written for order-history (receipt) records.
	LabelReceived Label = "Received"
	// LabelUsed is written for use-history records.
	LabelUsed Label = "Used"
)

// Valid reports whether l is one of the known labels.
func (l Label) Valid() bool {
	switch l {
	case LabelStock, LabelReceived, LabelUsed:
		return true
	}
	return false
}

// TimestampLayout is the rendering of entry timestamps (UTC, milliseconds).
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// UnknownActor stands in for an entry written without a known user.
const UnknownActor = "unknown"

var (
	// ErrEmpty is returned when parsing a blank line.
	ErrEmpty = errors.New("history: empty entry")
	// ErrNoDelta is returned when a line carries no signed integer. The
	// returned entry is still usable and counts as zero.
	ErrNoDelta = errors.New("history: entry has no signed quantity")
)

// Entry is one signed stock change on an item.
type Entry struct {
	Actor         string
	Delta         int
	Label         Label
	Timestamp     time.Time
	CorrelationID string

	// Raw keeps the original text of a line that did not match the canonical
	// layout, so formatting it again reproduces it unchanged.
	Raw string
}

// NewEntry builds a canonical entry. The timestamp is truncated to the
// millisecond precision the text form carries.
func NewEntry(actor string, delta int, label Label, at time.Time, correlationID string) Entry {
	return Entry{
		Actor:         CleanActor(actor),
		Delta:         delta,
		Label:         label,
		Timestamp:     at.UTC().Truncate(time.Millisecond),
		CorrelationID: correlationID,
	}
}

// CleanActor normalizes a user name for use in a ledger line. The name must
// be one token: whitespace runs become an underscore and so does a sign
// directly before a digit, so "user-1" cannot be read as a quantity. An
// empty name becomes UnknownActor.
func CleanActor(actor string) string {
	actor = strings.Join(strings.Fields(actor), "_")
	actor = signedInt.ReplaceAllStringFunc(actor, func(s string) string {
		return "_" + s[1:]
	})
	if actor == "" {
		return UnknownActor
	}
	return actor
}

// IsCorrelated reports whether the entry belongs to a record.
func (e Entry) IsCorrelated() bool {
	return e.CorrelationID != ""
}

// IsLegacy reports whether the entry was parsed loosely.
func (e Entry) IsLegacy() bool {
	return e.Raw != ""
}

// String renders the entry; see Format.
func (e Entry) String() string {
	return Format(e)
}

// MarshalText implements encoding.TextMarshaler.
func (e Entry) MarshalText() ([]byte, error) {
	return []byte(Format(e)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Lines without a
// quantity are kept (they count as zero); only blank lines are rejected.
func (e *Entry) UnmarshalText(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil && !errors.Is(err, ErrNoDelta) {
		return err
	}
	*e = parsed
	return nil
}

// Format renders an entry as
//
//	<actor> <+N|-N> <Label> <timestamp>[ (<correlation id>)]
//
// Non-negative deltas carry an explicit plus sign.
func Format(e Entry) string {
	if e.Raw != "" {
		return e.Raw
	}
	var b strings.Builder
	b.WriteString(e.Actor)
	b.WriteByte(' ')
	b.WriteString(FormatDelta(e.Delta))
	b.WriteByte(' ')
	b.WriteString(string(e.Label))
	b.WriteByte(' ')
	b.WriteString(e.Timestamp.UTC().Format(TimestampLayout))
	if e.CorrelationID != "" {
		b.WriteString(" (")
		b.WriteString(e.CorrelationID)
		b.WriteByte(')')
	}
	return b.String()
}

// FormatDelta renders a signed quantity with an explicit sign.
func FormatDelta(d int) string {
	if d >= 0 {
		return "+" + strconv.Itoa(d)
	}
	return strconv.Itoa(d)
}

var (
	canonicalLine = regexp.MustCompile(`^(.+?) ([+-]\d+) (Stock|Received|Used) (\S+)(?: \(([^()]+)\))?$`)
	signedInt     = regexp.MustCompile(`[+-]\d+`)
	trailingCID   = regexp.MustCompile(`\(([^()]+)\)\s*$`)
)

// Parse reads one ledger line. Canonical lines round-trip through Format.
// Anything else is parsed loosely: the actor is the first token, the delta
// is the first signed integer anywhere in the line, and a trailing
// parenthesized token is the correlation id. Such entries keep the original
// text in Raw.
func Parse(raw string) (Entry, error) {
	if strings.TrimSpace(raw) == "" {
		return Entry{}, ErrEmpty
	}
	if e, ok := parseCanonical(raw); ok {
		return e, nil
	}
	return parseLoose(raw)
}

func parseCanonical(raw string) (Entry, bool) {
	m := canonicalLine.FindStringSubmatch(raw)
	// An actor containing a signed integer would shadow the delta for
	// readers that take the first one in the line.
	if m == nil || signedInt.MatchString(m[1]) {
		return Entry{}, false
	}
	delta, err := strconv.Atoi(m[2])
	if err != nil {
		return Entry{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, m[4])
	if err != nil {
		return Entry{}, false
	}
	e := Entry{
		Actor:         m[1],
		Delta:         delta,
		Label:         Label(m[3]),
		Timestamp:     ts.UTC(),
		CorrelationID: m[5],
	}
	// Only lines that render back identically are canonical.
	if Format(e) != raw {
		return Entry{}, false
	}
	return e, true
}

func parseLoose(raw string) (Entry, error) {
	e := Entry{Raw: raw}
	fields := strings.Fields(raw)
	e.Actor = fields[0]

	if m := trailingCID.FindStringSubmatch(raw); m != nil {
		e.CorrelationID = m[1]
	}
	for _, f := range fields[1:] {
		if l := Label(f); l.Valid() && e.Label == "" {
			e.Label = l
			continue
		}
		if e.Timestamp.IsZero() {
			if ts, err := time.Parse(time.RFC3339Nano, f); err == nil {
				e.Timestamp = ts.UTC()
			}
		}
	}

	loc := signedInt.FindString(raw)
	if loc == "" {
		return e, fmt.Errorf("%w: %q", ErrNoDelta, raw)
	}
	delta, err := strconv.Atoi(loc)
	if err != nil {
		// Out of range for int; treat like a missing quantity.
		return e, fmt.Errorf("%w: %q", ErrNoDelta, raw)
	}
	e.Delta = delta
	return e, nil
}

// ParseAll parses every line, keeping lines that carry no quantity.
func ParseAll(lines []string) ([]Entry, error) {
	out := make([]Entry, 0, len(lines))
	for i, line := range lines {
		e, err := Parse(line)
		if err != nil && !errors.Is(err, ErrNoDelta) {
			return nil, fmt.Errorf("history: line %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// FormatAll renders entries in order.
func FormatAll(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = Format(e)
	}
	return out
}
