package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/toporag/internal/disambiguate"
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
)

func testGazetteer() *gazetteer.Static {
	return gazetteer.NewStatic([]model.Candidate{londonUK, londonOntario, ontario, canada, england, thames, seattle})
}

type para struct {
	start int
	text  string
	names []string
}

// document lays paragraphs out at the given offsets and annotates every
// occurrence of each listed name
func document(id string, paras ...para) model.Document {
	doc := model.Document{ID: id}
	for i, p := range paras {
		pid := "p" + string(rune('0'+i))
		doc.Paragraphs = append(doc.Paragraphs, model.Paragraph{ID: pid, Start: p.start, End: p.start + len(p.text), Text: p.text})
		for _, name := range p.names {
			from := 0
			for {
				at := strings.Index(p.text[from:], name)
				if at < 0 {
					break
				}
				start := p.start + from + at
				doc.Mentions = append(doc.Mentions, model.RawMention{Name: name, ParagraphID: pid, Start: start, End: start + len(name)})
				from += at + len(name)
			}
		}
	}
	return doc
}

func londonDocument() model.Document {
	return document("london",
		para{0, "London grew along the Thames, the greatest river in England.", []string{"London", "Thames", "England"}},
		para{3000, "London in Ontario, Canada sits on a smaller river.", []string{"London", "Ontario", "Canada"}},
		para{6000, "From London the Thames runs east through England.", []string{"London", "Thames", "England"}},
		para{9000, "London, Ontario, Canada welcomed the settlers.", []string{"London", "Ontario", "Canada"}},
	)
}

// contextJudge picks by toponym, choosing the Canadian London when Ontario is nearby
func contextJudge(tier model.Tier) disambiguate.JudgeFunc {
	ids := map[string]string{
		"Thames": thames.ID, "England": england.ID, "Ontario": ontario.ID,
		"Canada": canada.ID, "Seattle": seattle.ID,
	}
	return func(ctx context.Context, req model.JudgmentRequest) (model.Judgment, error) {
		id := ids[req.Toponym]
		if req.Toponym == "London" {
			id = londonUK.ID
			if slices.Contains(req.Nearby, "Ontario") {
				id = londonOntario.ID
			}
		}
		return model.Judgment{SelectedID: &id, Confidence: tier, Reasoning: "nearby names"}, nil
	}
}

func newTestPipeline(t *testing.T, judge disambiguate.Judge, mutate func(*model.Config)) *Pipeline {
	t.Helper()
	cfg := model.DefaultConfig()
	cfg.Gazetteer.Backend = "static"
	cfg.Gazetteer.File = "places.yaml"
	cfg.LLM.RetryBackoff = 0
	if mutate != nil {
		mutate(cfg)
	}
	p, err := New(Options{Config: cfg, Gazetteer: testGazetteer(), Judge: judge})
	require.NoError(t, err)
	return p
}

func resultFor(t *testing.T, report *model.DocumentReport, toponym string) model.DisambiguationResult {
	t.Helper()
	for _, r := range report.Results {
		if r.Toponym == toponym {
			return r
		}
	}
	t.Fatalf("no result for %q", toponym)
	return model.DisambiguationResult{}
}

func TestProcessDocument_MultipleReferents(t *testing.T) {
	p := newTestPipeline(t, contextJudge(model.TierHigh), nil)

	report := p.ProcessDocument(context.Background(), londonDocument())

	london := resultFor(t, report, "London")
	assert.True(t, london.HasMultipleReferents)
	require.Len(t, london.Clusters, 2)
	require.Len(t, london.AlternativeInterpretations, 1)

	assert.Equal(t, model.ReasonSelected, london.Clusters[0].Reason)
	assert.Equal(t, londonUK.ID, london.Clusters[0].Selected.ID)
	assert.Equal(t, model.ReasonSelected, london.Clusters[1].Reason)
	assert.Equal(t, londonOntario.ID, london.Clusters[1].Selected.ID)

	require.NotNil(t, london.Selected)
	assert.Equal(t, londonUK.ID, london.Selected.ID, "equal support goes to the earlier cluster")
	assert.Equal(t, londonOntario.ID, london.AlternativeInterpretations[0].Candidate.ID)

	assert.Equal(t, 5, report.TotalToponyms)
	assert.Equal(t, 1, report.MultiReferent)
	assert.Equal(t, 2, report.CooccurrenceNetwork["London"]["Thames"])
}

func TestProcessDocument_ResultsOrderedByName(t *testing.T) {
	p := newTestPipeline(t, contextJudge(model.TierHigh), nil)

	report := p.ProcessDocument(context.Background(), londonDocument())

	var names []string
	for _, r := range report.Results {
		names = append(names, r.Toponym)
	}
	assert.Equal(t, []string{"Canada", "England", "London", "Ontario", "Thames"}, names)
}

func TestProcessDocument_LargeAreasPassCoherence(t *testing.T) {
	p := newTestPipeline(t, contextJudge(model.TierHigh), nil)

	report := p.ProcessDocument(context.Background(), londonDocument())

	for _, r := range report.Results {
		assert.Equal(t, model.ReasonSelected, r.Reason, "%s: %s", r.Toponym, r.Justification)
		assert.NotNil(t, r.Selected, r.Toponym)
	}
	canadaResult := resultFor(t, report, "Canada")
	require.NotNil(t, canadaResult.Selected)
	assert.Equal(t, canada.ID, canadaResult.Selected.ID)
}

func TestProcessDocument_ZeroCandidates(t *testing.T) {
	p := newTestPipeline(t, contextJudge(model.TierHigh), nil)
	doc := document("atlantis", para{0, "The ship sailed for Atlantis at dawn.", []string{"Atlantis"}})

	report := p.ProcessDocument(context.Background(), doc)

	r := resultFor(t, report, "Atlantis")
	assert.Nil(t, r.Selected)
	assert.Equal(t, model.ReasonNoCandidates, r.Reason)
	assert.Equal(t, 1, p.Tracker().Count("Atlantis"))
}

func TestProcessDocument_SingleCandidateHonorsMinimum(t *testing.T) {
	tests := []struct {
		minimum string
		tier    model.Tier
		accept  bool
	}{
		{"high", model.TierHigh, true},
		{"high", model.TierMedium, false},
		{"medium", model.TierMedium, true},
		{"medium", model.TierLow, false},
		{"low", model.TierLow, true},
	}

	for _, tt := range tests {
		t.Run(tt.minimum+"/"+tt.tier.String(), func(t *testing.T) {
			p := newTestPipeline(t, contextJudge(tt.tier), func(c *model.Config) {
				c.Pipeline.MaxCandidates = 1
				c.Pipeline.MinConfidence = tt.minimum
			})
			doc := document("seattle", para{0, "The steamer reached Seattle at noon.", []string{"Seattle"}})

			r := resultFor(t, p.ProcessDocument(context.Background(), doc), "Seattle")
			require.Len(t, r.Clusters, 1)
			require.Len(t, r.Candidates, 1)
			assert.Equal(t, tt.tier, r.Confidence)
			if tt.accept {
				require.NotNil(t, r.Selected)
				assert.Equal(t, seattle.ID, r.Selected.ID)
				assert.Equal(t, model.ReasonSelected, r.Reason)
			} else {
				assert.Nil(t, r.Selected)
				assert.Equal(t, model.ReasonBelowThreshold, r.Reason)
			}
		})
	}
}

func TestProcessDocument_FilteredToponym(t *testing.T) {
	var calls atomic.Int32
	judge := disambiguate.JudgeFunc(func(ctx context.Context, req model.JudgmentRequest) (model.Judgment, error) {
		calls.Add(1)
		return model.Judgment{Confidence: model.TierLow}, nil
	})
	p := newTestPipeline(t, judge, nil)
	doc := document("river", para{0, "We walked down the river and back up the river.", []string{"the river"}})

	report := p.ProcessDocument(context.Background(), doc)

	r := resultFor(t, report, "the river")
	assert.Equal(t, model.ReasonFiltered, r.Reason)
	assert.Equal(t, "generic_descriptor", r.FilterReason)
	assert.Equal(t, 1, report.FilteredToponyms)
	assert.Equal(t, 0, report.ProcessedToponyms)
	assert.Equal(t, 2, report.FilterStatistics["generic_descriptor"].Count)
	assert.Equal(t, []string{"the river"}, report.FilterStatistics["generic_descriptor"].Examples)
	assert.Zero(t, calls.Load(), "filtered toponyms are never judged")
}

type brokenGazetteer struct{}

func (brokenGazetteer) Candidates(ctx context.Context, name string, limit int) ([]model.Candidate, error) {
	return nil, errors.New("connection refused")
}

func (brokenGazetteer) NearbyPlaces(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]model.Place, error) {
	return nil, errors.New("connection refused")
}

func TestProcessDocument_GazetteerError(t *testing.T) {
	cfg := model.DefaultConfig()
	p, err := New(Options{Config: cfg, Gazetteer: brokenGazetteer{}, Judge: contextJudge(model.TierHigh)})
	require.NoError(t, err)

	report := p.ProcessDocument(context.Background(), londonDocument())
	for _, r := range report.Results {
		assert.Equal(t, model.ReasonGazetteerError, r.Reason, r.Toponym)
		assert.Nil(t, r.Selected)
	}
	assert.Zero(t, p.Tracker().Count("London"), "lookup failures are not zero matches")
}

func TestProcessDocument_Cancelled(t *testing.T) {
	p := newTestPipeline(t, contextJudge(model.TierHigh), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := p.ProcessDocument(ctx, londonDocument())
	require.Len(t, report.Results, 5)
	for _, r := range report.Results {
		assert.Equal(t, model.ReasonCancelled, r.Reason, r.Toponym)
		assert.Nil(t, r.Selected)
	}
}

func TestProcessDocument_Idempotent(t *testing.T) {
	p := newTestPipeline(t, contextJudge(model.TierHigh), nil)

	first, err := json.Marshal(p.ProcessDocument(context.Background(), londonDocument()))
	require.NoError(t, err)
	second, err := json.Marshal(p.ProcessDocument(context.Background(), londonDocument()))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Pipeline.MinConfidence = "certain"

	_, err := New(Options{Config: cfg, Gazetteer: testGazetteer(), Judge: contextJudge(model.TierHigh)})
	assert.ErrorIs(t, err, model.ErrInvalidConfig)

	_, err = New(Options{Config: model.DefaultConfig(), Judge: contextJudge(model.TierHigh)})
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
}

func writeDocument(t *testing.T, dir string, doc model.Document) string {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(dir, doc.ID+".json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestProcessCorpus(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeDocument(t, dir, londonDocument()),
		filepath.Join(dir, "missing.json"),
		writeDocument(t, dir, document("atlantis", para{0, "Bound for Atlantis.", []string{"Atlantis"}})),
	}
	p := newTestPipeline(t, contextJudge(model.TierHigh), nil)

	report := p.ProcessCorpus(context.Background(), paths)

	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Documents, 2)
	assert.Equal(t, "london", report.Documents[0].DocumentID)
	assert.Equal(t, "atlantis", report.Documents[1].DocumentID)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, paths[1], report.Errors[0].Path)
	assert.Equal(t, 6, report.TotalToponyms)
	assert.Equal(t, 1, report.ReasonCounts[model.ReasonNoCandidates])
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}
