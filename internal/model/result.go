package model

// Reason types the outcome of a disambiguation
type Reason string

const (
	ReasonSelected          Reason = "selected"
	ReasonNoCandidates      Reason = "no_candidates"
	ReasonParseFailure      Reason = "parse_failure"
	ReasonBelowThreshold    Reason = "below_confidence_threshold"
	ReasonCoherenceConflict Reason = "coherence_conflict"
	ReasonNoSelection       Reason = "no_selection"      // Judge declined to pick a candidate
	ReasonUnknownCandidate  Reason = "unknown_candidate" // Judge named an id outside the list
	ReasonFiltered          Reason = "filtered"
	ReasonGazetteerError    Reason = "gazetteer_error"
	ReasonCancelled         Reason = "cancelled"
)

// Evidence is the literal material a decision was based on
type Evidence struct {
	Contexts []string `json:"contexts"`
	Nearby   []string `json:"nearby"`
}

// ClusterResult is the decision for one referent cluster
type ClusterResult struct {
	ClusterIndex  int             `json:"cluster_index"`
	Cluster       ReferentCluster `json:"cluster"`
	Selected      *Candidate      `json:"selected"`
	Confidence    Tier            `json:"confidence"`
	Reason        Reason          `json:"reason"`
	Justification string          `json:"justification"`
	Evidence      Evidence        `json:"evidence"`
	Conflicts     []string        `json:"conflicts,omitempty"` // Nearby names inconsistent with the proposal
	Judgment      *Judgment       `json:"judgment,omitempty"`  // Original judgment, kept for transparency
	Attempts      int             `json:"attempts,omitempty"`
}

// Alternative is a secondary interpretation of a multi-referent toponym
type Alternative struct {
	ClusterIndex int        `json:"cluster_index"`
	Support      int        `json:"support"`
	Candidate    *Candidate `json:"candidate"`
	Confidence   Tier       `json:"confidence"`
	Reason       Reason     `json:"reason"`
}

// DisambiguationResult is the final output for one toponym in one document
type DisambiguationResult struct {
	DocumentID    string     `json:"document_id"`
	Toponym       string     `json:"toponym"`
	MentionCount  int        `json:"mention_count"`
	Selected      *Candidate `json:"selected"`
	Confidence    Tier       `json:"confidence"`
	Reason        Reason     `json:"reason"`
	Justification string     `json:"justification"`
	FilterReason  string     `json:"filter_reason,omitempty"`

	HasMultipleReferents       bool            `json:"has_multiple_referents"`
	Clusters                   []ClusterResult `json:"clusters"`
	AlternativeInterpretations []Alternative   `json:"alternative_interpretations,omitempty"`
	Candidates                 []Candidate     `json:"candidates,omitempty"`
	Evidence                   Evidence        `json:"evidence"`
}

// NonSelection builds a result that explicitly selects nothing
func NonSelection(documentID, toponym string, mentions int, reason Reason, justification string) DisambiguationResult {
	return DisambiguationResult{
		DocumentID:    documentID,
		Toponym:       toponym,
		MentionCount:  mentions,
		Confidence:    TierLow,
		Reason:        reason,
		Justification: justification,
		Clusters:      []ClusterResult{},
	}
}

// DocumentReport is the complete output for one document
type DocumentReport struct {
	DocumentID          string                    `json:"document_id"`
	TotalToponyms       int                       `json:"total_toponyms"`
	FilteredToponyms    int                       `json:"filtered_toponyms"`
	ProcessedToponyms   int                       `json:"processed_toponyms"`
	MultiReferent       int                       `json:"multi_referent_detected"`
	RejectedMentions    int                       `json:"rejected_mentions"` // Malformed input annotations
	Results             []DisambiguationResult    `json:"results"`
	FilterStatistics    map[string]FilterStat     `json:"filter_statistics,omitempty"`
	CooccurrenceNetwork map[string]map[string]int `json:"cooccurrence_network,omitempty"`
}

// FilterStat counts mentions rejected for one filter reason
type FilterStat struct {
	Count    int      `json:"count"`
	Examples []string `json:"examples"`
}
