package model

import (
	"fmt"
	"sort"
)

// Mention is a single occurrence of a toponym in a document.
// HighlightStart/HighlightEnd locate the mention inside Context in bytes; both are -1 when unknown.
type Mention struct {
	Name           string   `json:"name"`
	ParagraphID    string   `json:"paragraph_id"`
	Start          int      `json:"char_start"`
	End            int      `json:"char_end"`
	Context        string   `json:"context"`
	HighlightStart int      `json:"highlight_start"`
	HighlightEnd   int      `json:"highlight_end"`
	Nearby         []string `json:"nearby"`   // Sorted, distinct
	Position       float64  `json:"position"` // Start offset / document length
}

// Span returns the document-level character range of the mention
func (m Mention) Span() Span {
	return Span{Start: m.Start, End: m.End}
}

// HasNearby reports whether the mention carries any co-occurrence evidence
func (m Mention) HasNearby() bool {
	return len(m.Nearby) > 0
}

// Highlighted returns the context text with the mention wrapped in markers
func (m Mention) Highlighted(open, close string) string {
	if m.HighlightStart < 0 || m.HighlightEnd > len(m.Context) || m.HighlightStart >= m.HighlightEnd {
		return m.Context
	}
	return m.Context[:m.HighlightStart] + open + m.Context[m.HighlightStart:m.HighlightEnd] + close + m.Context[m.HighlightEnd:]
}

// Span is a half-open character range [Start, End)
type Span struct {
	Start int
	End   int
}

// Distance is the gap between two spans; overlapping spans are at distance 0
func (s Span) Distance(o Span) int {
	if o.Start <= s.End && s.Start <= o.End {
		return 0
	}
	return min(abs(o.Start-s.End), abs(o.End-s.Start))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// ToponymRecord aggregates every mention of one literal name in a document
type ToponymRecord struct {
	name       string
	documentID string
	mentions   []Mention
	universe   []string
}

// NewToponymRecord builds a record; mentions are copied and ordered by start offset
func NewToponymRecord(documentID, name string, mentions []Mention, universe []string) (*ToponymRecord, error) {
	if len(mentions) == 0 {
		return nil, fmt.Errorf("%q in %s: %w", name, documentID, ErrNoMentions)
	}

	ordered := make([]Mention, len(mentions))
	copy(ordered, mentions)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Start != ordered[j].Start {
			return ordered[i].Start < ordered[j].Start
		}
		return ordered[i].End < ordered[j].End
	})

	u := make([]string, len(universe))
	copy(u, universe)

	return &ToponymRecord{
		name:       name,
		documentID: documentID,
		mentions:   ordered,
		universe:   u,
	}, nil
}

// Name returns the literal toponym string
func (r *ToponymRecord) Name() string { return r.name }

// DocumentID returns the identifier of the containing document
func (r *ToponymRecord) DocumentID() string { return r.documentID }

// MentionCount returns the number of mentions
func (r *ToponymRecord) MentionCount() int { return len(r.mentions) }

// Mention returns the i-th mention
func (r *ToponymRecord) Mention(i int) Mention { return r.mentions[i] }

// Mentions returns a copy of the ordered mentions
func (r *ToponymRecord) Mentions() []Mention {
	out := make([]Mention, len(r.mentions))
	copy(out, r.mentions)
	return out
}

// Universe returns all distinct place names in the document
func (r *ToponymRecord) Universe() []string {
	out := make([]string, len(r.universe))
	copy(out, r.universe)
	return out
}

// Subset derives a new record holding only the mentions for which keep returns true
func (r *ToponymRecord) Subset(keep func(Mention) bool) (*ToponymRecord, error) {
	var kept []Mention
	for _, m := range r.mentions {
		if keep(m) {
			kept = append(kept, m)
		}
	}
	return NewToponymRecord(r.documentID, r.name, kept, r.universe)
}
