package model

// JudgmentRequest is the structured evidence sent to the judgment collaborator
type JudgmentRequest struct {
	Toponym     string               `json:"toponym"`
	Contexts    []string             `json:"contexts"` // Mention highlighted with HighlightOpen/HighlightClose
	Nearby      []string             `json:"nearby"`
	Candidates  []AnnotatedCandidate `json:"candidates"`
	SupportTier Tier                 `json:"support_tier"`
	Source      *SourcePlace         `json:"source,omitempty"`
}

// Markers wrapping the mention inside each context
const (
	HighlightOpen  = "[["
	HighlightClose = "]]"
)

// AnnotatedCandidate is a candidate with its explicit feature type label
type AnnotatedCandidate struct {
	Candidate
	TypeLabel string `json:"type_label"`
}

// Annotate labels every candidate with its feature type
func Annotate(candidates []Candidate) []AnnotatedCandidate {
	out := make([]AnnotatedCandidate, len(candidates))
	for i, c := range candidates {
		out[i] = AnnotatedCandidate{Candidate: c, TypeLabel: c.FeatureLabel()}
	}
	return out
}

// Judgment is the structured answer of the judgment collaborator
type Judgment struct {
	SelectedID *string `json:"selected_id"`
	Confidence Tier    `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Raw        string  `json:"-"`
}

// Selected reports whether the judgment names a candidate
func (j Judgment) Selected() bool {
	return j.SelectedID != nil && *j.SelectedID != ""
}
