package model

// ReferentCluster is a subset of a record's mentions hypothesized to share a referent
type ReferentCluster struct {
	Members   []int            `json:"members"`   // Indices into the record's mentions, ascending
	Cohesion  float64          `json:"cohesion"`  // Average pairwise Jaccard of informative members, [0,1]
	Signature []SignatureEntry `json:"signature"` // Union of member nearby sets with frequencies
	Support   int              `json:"support"`
	Tier      Tier             `json:"support_tier"` // Share of the record's mentions
}

// SignatureEntry is one co-occurring name with the number of members that saw it
type SignatureEntry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// SignatureNames returns the signature names ordered by frequency
func (c ReferentCluster) SignatureNames() []string {
	names := make([]string, len(c.Signature))
	for i, e := range c.Signature {
		names[i] = e.Name
	}
	return names
}

// SupportTier maps a cluster's share of mentions onto a tier
func SupportTier(support, total int) Tier {
	if total <= 0 {
		return TierLow
	}
	share := float64(support) / float64(total)
	switch {
	case share >= 0.6:
		return TierHigh
	case share >= 0.3:
		return TierMedium
	default:
		return TierLow
	}
}
