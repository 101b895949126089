package disambiguate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ppiankov/toporag/internal/gazetteer"
	"github.com/ppiankov/toporag/internal/model"
)

func pop(n int64) *int64 { return &n }

var (
	londonUK      = model.Candidate{ID: "2643743", Name: "London", Lat: 51.50853, Lon: -0.12574, FeatureClass: "P", FeatureCode: "PPLC", Country: "GB", Admin1: "ENG", Population: pop(8961989)}
	londonOntario = model.Candidate{ID: "6058560", Name: "London", Lat: 42.98339, Lon: -81.23304, FeatureClass: "P", FeatureCode: "PPL", Country: "CA", Admin1: "08", Population: pop(346765)}
	ontario       = model.Candidate{ID: "6093943", Name: "Ontario", Lat: 49.25014, Lon: -84.49983, FeatureClass: "A", FeatureCode: "ADM1", Country: "CA", Admin1: "08"}
	canada        = model.Candidate{ID: "6251999", Name: "Canada", Lat: 60.10867, Lon: -113.64258, FeatureClass: "A", FeatureCode: "PCLI", Country: "CA"}
	england       = model.Candidate{ID: "6269131", Name: "England", Lat: 52.16045, Lon: -0.70312, FeatureClass: "A", FeatureCode: "ADM1", Country: "GB", Admin1: "ENG"}
	thames        = model.Candidate{ID: "2636063", Name: "Thames", Lat: 51.50000, Lon: 0.58333, FeatureClass: "H", FeatureCode: "STM", Country: "GB", Admin1: "ENG"}
	seattle       = model.Candidate{ID: "5809844", Name: "Seattle", Lat: 47.60621, Lon: -122.33207, FeatureClass: "P", FeatureCode: "PPLA2", Country: "US", Admin1: "WA", Population: pop(737015)}
	washington    = model.Candidate{ID: "5815135", Name: "Washington", Lat: 47.50012, Lon: -120.50147, FeatureClass: "A", FeatureCode: "ADM1", Country: "US", Admin1: "WA"}
)

func testGazetteer() *gazetteer.Static {
	return gazetteer.NewStatic([]model.Candidate{londonUK, londonOntario, ontario, canada, england, thames, seattle, washington})
}

type failingGazetteer struct{}

func (failingGazetteer) Candidates(ctx context.Context, name string, limit int) ([]model.Candidate, error) {
	return nil, errors.New("gazetteer offline")
}

func (failingGazetteer) NearbyPlaces(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]model.Place, error) {
	return nil, errors.New("gazetteer offline")
}

// scriptedJudge answers from a fixed list, repeating the last entry
type scriptedJudge struct {
	mu       sync.Mutex
	answers  []answer
	requests []model.JudgmentRequest
}

type answer struct {
	judgment model.Judgment
	err      error
}

func (s *scriptedJudge) Judge(ctx context.Context, req model.JudgmentRequest) (model.Judgment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.requests)
	s.requests = append(s.requests, req)
	if i >= len(s.answers) {
		i = len(s.answers) - 1
	}
	return s.answers[i].judgment, s.answers[i].err
}

func (s *scriptedJudge) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func pick(id string, tier model.Tier) answer {
	return answer{judgment: model.Judgment{SelectedID: &id, Confidence: tier, Reasoning: "context points there"}}
}

func malformed() answer {
	return answer{judgment: model.Judgment{Raw: "not json"}, err: model.ErrMalformedJudgment}
}

// recordWith builds a record whose mentions each carry one context sentence
func recordWith(t *testing.T, name string, nearby ...[]string) (*model.ToponymRecord, []model.ReferentCluster) {
	t.Helper()
	mentions := make([]model.Mention, len(nearby))
	members := make([]int, len(nearby))
	for i, n := range nearby {
		ctx := "They arrived at " + name + " in spring."
		start := strings.Index(ctx, name)
		mentions[i] = model.Mention{
			Name:           name,
			Start:          i * 1000,
			End:            i*1000 + len(name),
			Context:        ctx,
			HighlightStart: start,
			HighlightEnd:   start + len(name),
			Nearby:         n,
			Position:       float64(i) / float64(len(nearby)),
		}
		members[i] = i
	}
	r, err := model.NewToponymRecord("doc-1", name, mentions, nil)
	require.NoError(t, err)

	signature := map[string]int{}
	for _, n := range nearby {
		for _, nb := range n {
			signature[nb]++
		}
	}
	c := model.ReferentCluster{Members: members, Support: len(members), Cohesion: 1, Tier: model.TierHigh}
	for _, n := range nearby {
		for _, nb := range n {
			if signature[nb] > 0 {
				c.Signature = append(c.Signature, model.SignatureEntry{Name: nb, Count: signature[nb]})
				signature[nb] = 0
			}
		}
	}
	return r, []model.ReferentCluster{c}
}
