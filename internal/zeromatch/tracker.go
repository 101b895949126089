// Package zeromatch records toponyms the gazetteer knows nothing about, so a
// reviewer can decide whether to filter them, alias them or add the place.
package zeromatch

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"unicode/utf8"
)

// Review limits
const (
	MaxSamples       = 3
	MaxSampleRunes   = 200
	truncationSuffix = "..."
)

// Item is one reviewable toponym
type Item struct {
	Toponym   string   `json:"toponym"`
	Frequency int      `json:"frequency"`
	Contexts  []string `json:"contexts"`
}

type entry struct {
	count    int
	contexts []string
}

// Tracker counts zero-candidate toponyms; safe for concurrent use
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]*entry)}
}

// Record counts one occurrence of name and keeps the first sample contexts
func (t *Tracker) Record(name string, contexts ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[name]
	if !ok {
		e = &entry{}
		t.entries[name] = e
	}
	e.count++
	for _, c := range contexts {
		if len(e.contexts) >= MaxSamples {
			break
		}
		if c == "" {
			continue
		}
		e.contexts = append(e.contexts, truncate(c))
	}
}

// Count returns how often name was recorded
func (t *Tracker) Count(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[name]; ok {
		return e.count
	}
	return 0
}

// Totals returns the number of distinct names and of occurrences
func (t *Tracker) Totals() (unique, occurrences int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		occurrences += e.count
	}
	return len(t.entries), occurrences
}

// Report lists names recorded at least minFrequency times, most frequent
// first and by name on ties
func (t *Tracker) Report(minFrequency int) []Item {
	t.mu.Lock()
	items := make([]Item, 0, len(t.entries))
	for name, e := range t.entries {
		if e.count < minFrequency {
			continue
		}
		contexts := make([]string, len(e.contexts))
		copy(contexts, e.contexts)
		items = append(items, Item{Toponym: name, Frequency: e.count, Contexts: contexts})
	}
	t.mu.Unlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].Frequency != items[j].Frequency {
			return items[i].Frequency > items[j].Frequency
		}
		return items[i].Toponym < items[j].Toponym
	})
	return items
}

// Top returns the n most frequent names
func (t *Tracker) Top(n int) []Item {
	items := t.Report(1)
	if n >= 0 && len(items) > n {
		items = items[:n]
	}
	return items
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxSampleRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxSampleRunes]) + truncationSuffix
}

// Export is the JSON document handed to reviewers
type Export struct {
	Metadata     Metadata     `json:"metadata"`
	Instructions Instructions `json:"instructions"`
	ReviewItems  []Item       `json:"review_items"`
}

// Metadata summarizes an export
type Metadata struct {
	Description      string `json:"description"`
	TotalUnique      int    `json:"total_unique"`
	TotalOccurrences int    `json:"total_occurrences"`
	MinFrequency     int    `json:"min_frequency"`
	ItemsInReport    int    `json:"items_in_report"`
}

// Instructions describe the review workflow
type Instructions struct {
	Workflow []string `json:"workflow"`
	Priority string   `json:"priority"`
}

var reviewWorkflow = []string{
	"1. Review each toponym starting from highest frequency",
	"2. Check sample contexts to understand usage",
	"3. Decide action:",
	"   a) FILTER: add to the ambiguous terms file (ungroundable)",
	"   b) MAP: record it as a variant of a known place name",
	"   c) CREATE: flag for gazetteer addition (missing entity)",
	"4. Document the decision next to the item",
}

// BuildExport snapshots the tracker for review
func (t *Tracker) BuildExport(minFrequency int) Export {
	items := t.Report(minFrequency)
	unique, occurrences := t.Totals()
	return Export{
		Metadata: Metadata{
			Description:      "Zero-match toponyms for human review",
			TotalUnique:      unique,
			TotalOccurrences: occurrences,
			MinFrequency:     minFrequency,
			ItemsInReport:    len(items),
		},
		Instructions: Instructions{
			Workflow: reviewWorkflow,
			Priority: "High-frequency items have the biggest impact on coverage",
		},
		ReviewItems: items,
	}
}

// WriteFile exports the review report as indented JSON
func (t *Tracker) WriteFile(path string, minFrequency int) error {
	data, err := json.MarshalIndent(t.BuildExport(minFrequency), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal zero-match export: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write zero-match export: %w", err)
	}
	return nil
}

// ReadFile loads a previously written export
func ReadFile(path string) (*Export, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read zero-match export: %w", err)
	}
	var e Export
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("parse zero-match export %s: %w", path, err)
	}
	return &e, nil
}
