package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/toporag/internal/model"
	"github.com/ppiankov/toporag/internal/pipeline"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRun(id string, started time.Time) *pipeline.CorpusReport {
	selected := model.Candidate{ID: "2643743", Name: "London", FeatureClass: "P", FeatureCode: "PPLC", Country: "GB"}
	london := model.DisambiguationResult{
		DocumentID:           "doc-1",
		Toponym:              "London",
		MentionCount:         4,
		Selected:             &selected,
		Confidence:           model.TierHigh,
		Reason:               model.ReasonSelected,
		Justification:        "capital on the Thames",
		HasMultipleReferents: true,
		Clusters:             []model.ClusterResult{},
	}
	atlantis := model.NonSelection("doc-1", "Atlantis", 1, model.ReasonNoCandidates, "gazetteer returned no candidates")

	return &pipeline.CorpusReport{
		RunID:         id,
		StartedAt:     started,
		FinishedAt:    started.Add(time.Second),
		TotalToponyms: 2,
		Selected:      1,
		Documents: []*model.DocumentReport{{
			DocumentID:    "doc-1",
			TotalToponyms: 2,
			Results:       []model.DisambiguationResult{atlantis, london},
		}},
		Errors: []pipeline.DocumentError{{Path: "broken.xml", Error: "bad xml"}},
	}
}

func TestSQLite_SaveAndQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveRun(ctx, sampleRun("run-1", started)))

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, 1, runs[0].Documents)
	assert.Equal(t, 1, runs[0].Errors)
	assert.Equal(t, 1, runs[0].Selected)
	assert.True(t, runs[0].StartedAt.Equal(started))

	all, err := s.Results(ctx, Query{RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Atlantis", all[0].Toponym)
	assert.Empty(t, all[0].SelectedID)
	assert.Equal(t, model.ReasonNoCandidates, all[0].Reason)
	assert.Equal(t, model.TierLow, all[0].Confidence)

	london, err := s.Results(ctx, Query{Toponym: "london"})
	require.NoError(t, err)
	require.Len(t, london, 1)
	assert.Equal(t, "2643743", london[0].SelectedID)
	assert.Equal(t, "P", london[0].FeatureClass)
	assert.True(t, london[0].HasMultipleReferents)

	byReason, err := s.Results(ctx, Query{Reason: model.ReasonSelected})
	require.NoError(t, err)
	assert.Len(t, byReason, 1)
}

func TestSQLite_ResultPayload(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveRun(ctx, sampleRun("run-1", time.Now().UTC())))

	r, err := s.Result(ctx, "run-1", "doc-1", "London")
	require.NoError(t, err)
	require.NotNil(t, r.Selected)
	assert.Equal(t, "London", r.Selected.Name)
	assert.Equal(t, "capital on the Thames", r.Justification)

	_, err = s.Result(ctx, "run-1", "doc-1", "Paris")
	assert.Error(t, err)
}

func TestSQLite_SaveRunReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	run := sampleRun("run-1", time.Now().UTC())

	require.NoError(t, s.SaveRun(ctx, run))
	require.NoError(t, s.SaveRun(ctx, run))

	results, err := s.Results(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSQLite_RunsNewestFirstAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveRun(ctx, sampleRun("older", base)))
	require.NoError(t, s.SaveRun(ctx, sampleRun("newer", base.Add(time.Hour))))

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "newer", runs[0].ID)

	limited, err := s.Results(ctx, Query{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, limited, 3)
}

func TestNewSQLite_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.db")
	s, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveRun(context.Background(), sampleRun("run-1", time.Now().UTC())))
	require.NoError(t, s.Close())

	reopened, err := NewSQLite(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	runs, err := reopened.Runs(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
