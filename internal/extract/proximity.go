package extract

import (
	"sort"

	"github.com/ppiankov/toporag/internal/model"
)

// DefaultProximityWindow is the character distance within which names co-occur
const DefaultProximityWindow = 500

// located is one annotated name occurrence used by the proximity index
type located struct {
	name string
	span model.Span
}

// ProximityIndex answers "which other names occur within W characters" queries.
// Occurrences are sorted by start offset so each query touches only the
// occurrences whose start lies in [s - W - maxLen, e + W].
type ProximityIndex struct {
	items  []located
	window int
	maxLen int
}

// NewProximityIndex builds an index over every occurrence in a document
func NewProximityIndex(mentions []model.RawMention, window int) *ProximityIndex {
	if window < 0 {
		window = 0
	}

	items := make([]located, 0, len(mentions))
	maxLen := 0
	for _, m := range mentions {
		span := model.Span{Start: m.Start, End: m.End}
		items = append(items, located{name: m.Name, span: span})
		if l := span.End - span.Start; l > maxLen {
			maxLen = l
		}
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].span.Start != items[j].span.Start {
			return items[i].span.Start < items[j].span.Start
		}
		if items[i].span.End != items[j].span.End {
			return items[i].span.End < items[j].span.End
		}
		return items[i].name < items[j].name
	})

	return &ProximityIndex{items: items, window: window, maxLen: maxLen}
}

// Window returns the configured proximity window
func (p *ProximityIndex) Window() int {
	return p.window
}

// Nearby returns the sorted distinct names within the window of the target span.
// Occurrences with the identical span and occurrences of the target's own name are excluded.
func (p *ProximityIndex) Nearby(name string, target model.Span) []string {
	lo := target.Start - p.window - p.maxLen
	hi := target.End + p.window

	first := sort.Search(len(p.items), func(i int) bool {
		return p.items[i].span.Start >= lo
	})

	seen := make(map[string]bool)
	for i := first; i < len(p.items) && p.items[i].span.Start <= hi; i++ {
		it := p.items[i]
		if it.span == target || it.name == name {
			continue
		}
		if target.Distance(it.span) <= p.window {
			seen[it.name] = true
		}
	}

	nearby := make([]string, 0, len(seen))
	for n := range seen {
		nearby = append(nearby, n)
	}
	sort.Strings(nearby)
	return nearby
}

// Within reports whether two spans are within the window of each other
func (p *ProximityIndex) Within(a, b model.Span) bool {
	return a.Distance(b) <= p.window
}
