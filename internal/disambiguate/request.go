package disambiguate

import (
	"github.com/ppiankov/toporag/internal/model"
)

// BuildRequest assembles the judgment request for one cluster from its
// representative mentions and the ranked candidates
func BuildRequest(toponym string, cluster model.ReferentCluster, representatives []model.Mention,
	candidates []model.Candidate, source *model.SourcePlace) model.JudgmentRequest {
	return model.JudgmentRequest{
		Toponym:     toponym,
		Contexts:    highlight(representatives),
		Nearby:      cluster.SignatureNames(),
		Candidates:  model.Annotate(candidates),
		SupportTier: cluster.Tier,
		Source:      source,
	}
}

func highlight(mentions []model.Mention) []string {
	out := make([]string, len(mentions))
	for i, m := range mentions {
		out[i] = m.Highlighted(model.HighlightOpen, model.HighlightClose)
	}
	return out
}
