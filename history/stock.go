package history

// Stock is the net quantity recorded by entries. Order does not matter.
func Stock(entries []Entry) int {
	total := 0
	for _, e := range entries {
		total += e.Delta
	}
	return total
}

// StockOf computes stock straight from ledger lines. Lines that cannot be
// parsed contribute nothing.
func StockOf(lines []string) int {
	total := 0
	for _, line := range lines {
		e, _ := Parse(line) //nolint:errcheck // unparseable lines count as zero
		total += e.Delta
	}
	return total
}

// FindCorrelated returns the index of the first entry tagged with cid, or -1.
func FindCorrelated(entries []Entry, cid string) int {
	if cid == "" {
		return -1
	}
	for i, e := range entries {
		if e.CorrelationID == cid {
			return i
		}
	}
	return -1
}

// Correlated returns all entries tagged with cid, in order.
func Correlated(entries []Entry, cid string) []Entry {
	var out []Entry
	if cid == "" {
		return out
	}
	for _, e := range entries {
		if e.CorrelationID == cid {
			out = append(out, e)
		}
	}
	return out
}

// WithoutCorrelated returns a copy of entries minus every entry tagged with
// cid, and how many were dropped. Manual entries are never affected.
func WithoutCorrelated(entries []Entry, cid string) ([]Entry, int) {
	out := make([]Entry, 0, len(entries))
	removed := 0
	for _, e := range entries {
		if cid != "" && e.CorrelationID == cid {
			removed++
			continue
		}
		out = append(out, e)
	}
	return out, removed
}

// Clone returns an independent copy of entries.
func Clone(entries []Entry) []Entry {
	if entries == nil {
		return nil
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}
