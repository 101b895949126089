package disambiguate

import (
	"fmt"

	"github.com/ppiankov/toporag/internal/model"
)

// Decision is the outcome of applying the acceptance policy to one judgment
type Decision struct {
	Selected      *model.Candidate
	Confidence    model.Tier
	Reason        model.Reason
	Justification string
}

// Policy gates judgments on their confidence tier. It is a pure function of
// the judgment and the candidate list.
type Policy struct {
	MinConfidence model.Tier
}

// NewPolicy creates a policy; an unknown minimum falls back to medium
func NewPolicy(minimum model.Tier) Policy {
	if minimum == model.TierUnknown {
		minimum = model.TierMedium
	}
	return Policy{MinConfidence: minimum}
}

// Apply accepts the judged candidate iff it is in the list and its tier meets the minimum
func (p Policy) Apply(j model.Judgment, candidates []model.Candidate) Decision {
	confidence := j.Confidence
	if confidence == model.TierUnknown {
		confidence = model.TierLow
	}

	if !j.Selected() {
		return Decision{
			Confidence:    confidence,
			Reason:        model.ReasonNoSelection,
			Justification: withReasoning("judge selected no candidate", j.Reasoning),
		}
	}

	c, ok := findCandidate(candidates, *j.SelectedID)
	if !ok {
		return Decision{
			Confidence:    model.TierLow,
			Reason:        model.ReasonUnknownCandidate,
			Justification: withReasoning(fmt.Sprintf("judge selected %q, which is not among the candidates", *j.SelectedID), j.Reasoning),
		}
	}

	if !confidence.AtLeast(p.MinConfidence) {
		return Decision{
			Confidence: confidence,
			Reason:     model.ReasonBelowThreshold,
			Justification: withReasoning(fmt.Sprintf("judge proposed %s (%s) at %s confidence, below the %s minimum",
				c.Name, c.ID, confidence, p.MinConfidence), j.Reasoning),
		}
	}

	return Decision{
		Selected:      &c,
		Confidence:    confidence,
		Reason:        model.ReasonSelected,
		Justification: j.Reasoning,
	}
}

func findCandidate(candidates []model.Candidate, id string) (model.Candidate, bool) {
	for _, c := range candidates {
		if c.ID == id {
			return c, true
		}
	}
	return model.Candidate{}, false
}

func withReasoning(summary, reasoning string) string {
	if reasoning == "" {
		return summary
	}
	return summary + "; judge reasoning: " + reasoning
}
