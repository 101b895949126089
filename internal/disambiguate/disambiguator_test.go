package disambiguate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/toporag/internal/model"
)

func newTestDisambiguator(judge Judge, opts Options) *Disambiguator {
	if opts.MinConfidence == model.TierUnknown {
		opts.MinConfidence = model.TierMedium
	}
	if opts.Retry.MaxRetries == 0 {
		opts.Retry.MaxRetries = 2
	}
	d := NewDisambiguator(judge, opts)
	d.judge.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return d
}

func TestDisambiguate_SeattleLabelsAreExplicit(t *testing.T) {
	judge := &scriptedJudge{answers: []answer{pick(seattle.ID, model.TierHigh)}}
	d := newTestDisambiguator(judge, Options{})

	record, clusters := recordWith(t, "Seattle", []string{"Washington"})
	res := d.Disambiguate(context.Background(), record, clusters, []model.Candidate{seattle, washington}, nil)

	require.Equal(t, 1, judge.calls())
	req := judge.requests[0]
	require.Len(t, req.Candidates, 2)
	assert.Equal(t, "CITY/TOWN (populated place)", req.Candidates[0].TypeLabel)
	assert.Equal(t, "STATE/PROVINCE (first-level administrative division)", req.Candidates[1].TypeLabel)
	assert.NotEqual(t, req.Candidates[0].TypeLabel, req.Candidates[1].TypeLabel)
	assert.Equal(t, []string{"They arrived at [[Seattle]] in spring."}, req.Contexts)
	assert.Equal(t, []string{"Washington"}, req.Nearby)

	require.NotNil(t, res.Selected)
	assert.Equal(t, seattle.ID, res.Selected.ID)
	assert.Equal(t, "P", res.Selected.FeatureClass)
	assert.Equal(t, model.ReasonSelected, res.Reason)
	assert.False(t, res.HasMultipleReferents)
}

func TestDisambiguate_StateIsNeverReadAsCity(t *testing.T) {
	judge := &scriptedJudge{answers: []answer{pick(washington.ID, model.TierHigh)}}
	d := newTestDisambiguator(judge, Options{})

	record, clusters := recordWith(t, "Seattle", []string{"Washington"})
	res := d.Disambiguate(context.Background(), record, clusters, []model.Candidate{seattle, washington}, nil)

	require.NotNil(t, res.Selected)
	assert.Equal(t, washington.ID, res.Selected.ID)
	assert.Equal(t, "STATE/PROVINCE (first-level administrative division)", res.Selected.FeatureLabel())
}

func TestDisambiguate_SingleMentionSingleCandidate(t *testing.T) {
	halifax := model.Candidate{ID: "6324729", Name: "Halifax", FeatureClass: "P", FeatureCode: "PPLA", Country: "CA"}

	for _, tt := range []struct {
		minimum  model.Tier
		selected bool
	}{
		{model.TierLow, true},
		{model.TierMedium, true},
		{model.TierHigh, false},
	} {
		judge := &scriptedJudge{answers: []answer{pick(halifax.ID, model.TierMedium)}}
		d := newTestDisambiguator(judge, Options{MinConfidence: tt.minimum, MaxCandidates: 1})

		record, clusters := recordWith(t, "Halifax", nil)
		res := d.Disambiguate(context.Background(), record, clusters, []model.Candidate{halifax, londonUK}, nil)

		require.Len(t, res.Clusters, 1)
		require.Len(t, judge.requests[0].Candidates, 1, "max_candidates caps the request")
		assert.Len(t, res.Candidates, 1)
		assert.Equal(t, tt.selected, res.Selected != nil, "min %s", tt.minimum)
		assert.Equal(t, model.TierMedium, res.Confidence)
		if !tt.selected {
			assert.Equal(t, model.ReasonBelowThreshold, res.Reason)
		}
	}
}

func TestDisambiguate_ParseFailure(t *testing.T) {
	judge := &scriptedJudge{answers: []answer{malformed()}}
	d := newTestDisambiguator(judge, Options{})

	record, clusters := recordWith(t, "London", []string{"Thames"})
	res := d.DisambiguateCluster(context.Background(), record, 0, clusters[0], []model.Candidate{londonUK}, nil)

	assert.Equal(t, 3, judge.calls())
	assert.Equal(t, 3, res.Attempts)
	assert.Nil(t, res.Selected)
	assert.Equal(t, model.ReasonParseFailure, res.Reason)
	assert.Equal(t, model.TierLow, res.Confidence)
	assert.Equal(t, "parse failure", res.Justification)
}

func TestDisambiguate_CoherenceConflict(t *testing.T) {
	judge := &scriptedJudge{answers: []answer{pick(londonUK.ID, model.TierHigh)}}
	d := newTestDisambiguator(judge, Options{Coherence: NewCoherenceChecker(testGazetteer(), 0)})

	record, clusters := recordWith(t, "London", []string{"Ontario", "Canada"})
	res := d.DisambiguateCluster(context.Background(), record, 0, clusters[0], []model.Candidate{londonUK, londonOntario}, nil)

	assert.Nil(t, res.Selected)
	assert.Equal(t, model.ReasonCoherenceConflict, res.Reason)
	assert.Equal(t, []string{"Ontario", "Canada"}, res.Conflicts)
	assert.Contains(t, res.Justification, "Ontario")
	require.NotNil(t, res.Judgment)
	assert.Equal(t, londonUK.ID, *res.Judgment.SelectedID, "original judgment is kept")
}

func TestDisambiguate_CoherentSelectionSurvives(t *testing.T) {
	judge := &scriptedJudge{answers: []answer{pick(londonOntario.ID, model.TierHigh)}}
	d := newTestDisambiguator(judge, Options{Coherence: NewCoherenceChecker(testGazetteer(), 0)})

	record, clusters := recordWith(t, "London", []string{"Ontario", "Canada"})
	res := d.DisambiguateCluster(context.Background(), record, 0, clusters[0], []model.Candidate{londonUK, londonOntario}, nil)

	require.NotNil(t, res.Selected)
	assert.Equal(t, londonOntario.ID, res.Selected.ID)
}

func TestDisambiguate_OracleErrorKeepsSelection(t *testing.T) {
	judge := &scriptedJudge{answers: []answer{pick(londonUK.ID, model.TierHigh)}}
	d := newTestDisambiguator(judge, Options{Coherence: NewCoherenceChecker(failingGazetteer{}, 0)})

	record, clusters := recordWith(t, "London", []string{"Ontario"})
	res := d.DisambiguateCluster(context.Background(), record, 0, clusters[0], []model.Candidate{londonUK}, nil)

	require.NotNil(t, res.Selected)
	assert.Equal(t, model.ReasonSelected, res.Reason)
}

func TestDisambiguate_NoCandidatesSkipsJudge(t *testing.T) {
	judge := &scriptedJudge{answers: []answer{pick("1", model.TierHigh)}}
	d := newTestDisambiguator(judge, Options{})

	record, clusters := recordWith(t, "Atlantis", nil)
	res := d.DisambiguateCluster(context.Background(), record, 0, clusters[0], nil, nil)

	assert.Equal(t, 0, judge.calls())
	assert.Equal(t, model.ReasonNoCandidates, res.Reason)
	assert.Nil(t, res.Selected)
}

func TestDisambiguate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	judge := JudgeFunc(func(ctx context.Context, req model.JudgmentRequest) (model.Judgment, error) {
		return model.Judgment{}, ctx.Err()
	})
	d := newTestDisambiguator(judge, Options{})

	record, clusters := recordWith(t, "London", []string{"Thames"})
	res := d.DisambiguateCluster(ctx, record, 0, clusters[0], []model.Candidate{londonUK}, nil)

	assert.Equal(t, model.ReasonCancelled, res.Reason)
	assert.Nil(t, res.Selected)
}

func TestDisambiguate_SourceReachesRequest(t *testing.T) {
	judge := &scriptedJudge{answers: []answer{pick(seattle.ID, model.TierHigh)}}
	d := newTestDisambiguator(judge, Options{})
	source := &model.SourcePlace{City: "Tacoma", State: "Washington"}

	record, clusters := recordWith(t, "Seattle", nil)
	d.Disambiguate(context.Background(), record, clusters, []model.Candidate{seattle}, source)

	assert.Equal(t, source, judge.requests[0].Source)
}

func TestAggregate_MultipleReferents(t *testing.T) {
	record, _ := recordWith(t, "London", []string{"Thames"}, []string{"Ontario"}, []string{"Thames"}, []string{"Ontario"}, []string{"Ontario"})
	uk, on := londonUK, londonOntario

	results := []model.ClusterResult{
		{ClusterIndex: 0, Cluster: model.ReferentCluster{Members: []int{0, 2}, Support: 2}, Selected: &uk, Confidence: model.TierHigh, Reason: model.ReasonSelected},
		{ClusterIndex: 1, Cluster: model.ReferentCluster{Members: []int{1, 3, 4}, Support: 3}, Selected: &on, Confidence: model.TierMedium, Reason: model.ReasonSelected},
	}
	res := Aggregate(record, results, []model.Candidate{uk, on})

	assert.True(t, res.HasMultipleReferents)
	require.NotNil(t, res.Selected)
	assert.Equal(t, on.ID, res.Selected.ID, "best supported selection is primary")
	require.Len(t, res.AlternativeInterpretations, 1)
	alt := res.AlternativeInterpretations[0]
	assert.Equal(t, 0, alt.ClusterIndex)
	assert.Equal(t, 2, alt.Support)
	assert.Equal(t, uk.ID, alt.Candidate.ID)
	assert.Len(t, res.Clusters, 2)
}

func TestAggregate_PrefersSelectionOverSupport(t *testing.T) {
	record, _ := recordWith(t, "London", nil, nil, nil)
	uk := londonUK

	results := []model.ClusterResult{
		{ClusterIndex: 0, Cluster: model.ReferentCluster{Support: 2}, Reason: model.ReasonBelowThreshold},
		{ClusterIndex: 1, Cluster: model.ReferentCluster{Support: 1}, Selected: &uk, Confidence: model.TierHigh, Reason: model.ReasonSelected},
	}
	res := Aggregate(record, results, nil)

	assert.Equal(t, model.ReasonSelected, res.Reason)
	require.Len(t, res.AlternativeInterpretations, 1)
	assert.Nil(t, res.AlternativeInterpretations[0].Candidate)
	assert.Equal(t, model.ReasonBelowThreshold, res.AlternativeInterpretations[0].Reason)
}
