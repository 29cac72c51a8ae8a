package reconcile

import (
	"sort"

	"github.com/xraph/stockwise/history"
)

// Problem classifies an integrity finding.
type Problem string

const (
	// ProblemMissing means a record line has no correlated entry on its item.
	ProblemMissing Problem = "missing"
	// ProblemDuplicate means an item carries several entries for one record.
	ProblemDuplicate Problem = "duplicate"
	// ProblemMismatch means the entry delta disagrees with the record quantity.
	ProblemMismatch Problem = "mismatch"
	// ProblemOrphan means an entry is correlated to a record that does not
	// exist or no longer lists the item.
	ProblemOrphan Problem = "orphan"
	// ProblemUnknownItem means a record references an item that does not exist.
	ProblemUnknownItem Problem = "unknown_item"
)

// Ledger is the entry list of one item, keyed by its item number.
type Ledger struct {
	ItemID  string
	Entries []history.Entry
}

// Record is the reconciliation view of an order or use record.
type Record struct {
	ID    string
	Kind  Kind
	Lines []Line
}

// Finding is one violation reported by Check.
type Finding struct {
	ItemID   string  `json:"itemId"`
	RecordID string  `json:"recordId"`
	Problem  Problem `json:"problem"`
	Want     int     `json:"want"`
	Got      int     `json:"got"`
}

// Check audits ledgers against records: every record line must be matched by
// exactly one correlated entry with the right delta, and no correlated entry
// may point at a missing record. Findings are sorted by item then record.
func Check(ledgers []Ledger, records []Record) []Finding {
	byItem := make(map[string][]history.Entry, len(ledgers))
	for _, l := range ledgers {
		byItem[l.ItemID] = l.Entries
	}

	type key struct{ item, record string }
	expected := make(map[key]int)
	var findings []Finding

	for _, r := range records {
		for _, line := range r.Lines {
			k := key{line.ItemID, r.ID}
			if _, dup := expected[k]; dup {
				continue
			}
			want := r.Kind.Delta(line.Quantity)
			expected[k] = want

			entries, ok := byItem[line.ItemID]
			if !ok {
				findings = append(findings, Finding{ItemID: line.ItemID, RecordID: r.ID, Problem: ProblemUnknownItem, Want: want})
				continue
			}
			matched := history.Correlated(entries, r.ID)
			switch {
			case len(matched) == 0:
				findings = append(findings, Finding{ItemID: line.ItemID, RecordID: r.ID, Problem: ProblemMissing, Want: want})
			case len(matched) > 1:
				findings = append(findings, Finding{ItemID: line.ItemID, RecordID: r.ID, Problem: ProblemDuplicate, Want: want, Got: history.Stock(matched)})
			case matched[0].Delta != want:
				findings = append(findings, Finding{ItemID: line.ItemID, RecordID: r.ID, Problem: ProblemMismatch, Want: want, Got: matched[0].Delta})
			}
		}
	}

	for _, l := range ledgers {
		reported := make(map[string]struct{})
		for _, e := range l.Entries {
			if !e.IsCorrelated() {
				continue
			}
			if _, ok := expected[key{l.ItemID, e.CorrelationID}]; ok {
				continue
			}
			if _, ok := reported[e.CorrelationID]; ok {
				continue
			}
			reported[e.CorrelationID] = struct{}{}
			got := history.Stock(history.Correlated(l.Entries, e.CorrelationID))
			findings = append(findings, Finding{ItemID: l.ItemID, RecordID: e.CorrelationID, Problem: ProblemOrphan, Got: got})
		}
	}

	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].ItemID != findings[j].ItemID {
			return findings[i].ItemID < findings[j].ItemID
		}
		return findings[i].RecordID < findings[j].RecordID
	})
	return findings
}
