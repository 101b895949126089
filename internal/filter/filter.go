// Package filter rejects names that cannot be grounded to a specific place
// before any gazetteer or judgment cost is spent on them.
package filter

import (
	"github.com/ppiankov/toporag/internal/model"
)

// Reason explains why a name was filtered
type Reason string

const (
	ReasonNone                  Reason = ""
	ReasonGenericDescriptor     Reason = "generic_descriptor"
	ReasonRelativeReference     Reason = "relative_reference"
	ReasonNonSpecific           Reason = "non_specific"
	ReasonAmbiguousAbbreviation Reason = "ambiguous_abbreviation"
	ReasonTooShort              Reason = "too_short"
	ReasonNumericOnly           Reason = "numeric_only"
	ReasonLikelyPersonName      Reason = "likely_person_name"
	ReasonDemonym               Reason = "demonym"
	ReasonBlacklisted           Reason = "blacklisted"
	ReasonAmbiguousTerm         Reason = "ambiguous_term"
)

// Filter decides whether a name in a given context can be grounded.
// An empty context means no context is available.
type Filter interface {
	Check(name, context string) (Reason, bool)
}

// MentionFilter is implemented by filters that can use the mention's position
// inside its context
type MentionFilter interface {
	CheckMention(m model.Mention) (Reason, bool)
}

// checkMention prefers the position-aware check when f offers one
func checkMention(f Filter, m model.Mention) (Reason, bool) {
	if mf, ok := f.(MentionFilter); ok {
		return mf.CheckMention(m)
	}
	return f.Check(m.Name, m.Context)
}

// Noop accepts every name
type Noop struct{}

// Check always reports the name as groundable
func (Noop) Check(string, string) (Reason, bool) {
	return ReasonNone, true
}

// Rejection is one mention refused by a filter
type Rejection struct {
	Mention model.Mention
	Reason  Reason
}

// Split applies f to every mention of a record. It returns the derived record
// of groundable mentions, nil when nothing survives, and the refused mentions
// in record order.
func Split(f Filter, record *model.ToponymRecord) (*model.ToponymRecord, []Rejection) {
	if f == nil {
		return record, nil
	}

	var rejected []Rejection
	kept, err := record.Subset(func(m model.Mention) bool {
		reason, ok := checkMention(f, m)
		if !ok {
			rejected = append(rejected, Rejection{Mention: m, Reason: reason})
		}
		return ok
	})
	if err != nil {
		return nil, rejected
	}
	return kept, rejected
}

// Record is Split reduced to the reason of the first refused mention when
// nothing survives
func Record(f Filter, record *model.ToponymRecord) (*model.ToponymRecord, Reason) {
	kept, rejected := Split(f, record)
	if kept == nil && len(rejected) > 0 {
		return nil, rejected[0].Reason
	}
	return kept, ReasonNone
}
