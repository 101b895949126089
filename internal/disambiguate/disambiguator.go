// Package disambiguate turns clustered mentions and gazetteer candidates into
// calibrated selections: it asks the judge, gates the answer on confidence
// and checks it for geographic coherence.
package disambiguate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ppiankov/toporag/internal/cluster"
	"github.com/ppiankov/toporag/internal/model"
)

// Options configures a Disambiguator
type Options struct {
	MinConfidence model.Tier
	MaxContexts   int     // Representative mentions per cluster
	MinSpacing    float64 // Minimum position spacing between representatives
	MaxCandidates int
	Retry         RetryConfig
	Coherence     *CoherenceChecker // nil disables the coherence check
	Logger        *slog.Logger
}

// Disambiguator decides each referent cluster independently
type Disambiguator struct {
	judge         *RetryingJudge
	policy        Policy
	selector      *cluster.Selector
	coherence     *CoherenceChecker
	maxCandidates int
	logger        *slog.Logger
}

// NewDisambiguator wraps judge in the retry policy described by opts
func NewDisambiguator(judge Judge, opts Options) *Disambiguator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Disambiguator{
		judge:         NewRetryingJudge(judge, opts.Retry, logger),
		policy:        NewPolicy(opts.MinConfidence),
		selector:      cluster.NewSelector(opts.MaxContexts, opts.MinSpacing),
		coherence:     opts.Coherence,
		maxCandidates: opts.MaxCandidates,
		logger:        logger,
	}
}

// Policy returns the acceptance policy in use
func (d *Disambiguator) Policy() Policy {
	return d.policy
}

// DisambiguateCluster produces exactly one decision for one cluster. It never
// fails: every problem is a typed non-selection.
func (d *Disambiguator) DisambiguateCluster(ctx context.Context, record *model.ToponymRecord, index int,
	c model.ReferentCluster, candidates []model.Candidate, source *model.SourcePlace) model.ClusterResult {

	candidates = d.Candidates(candidates)
	representatives := d.selector.Select(record, c)
	req := BuildRequest(record.Name(), c, representatives, candidates, source)

	result := model.ClusterResult{
		ClusterIndex: index,
		Cluster:      c,
		Confidence:   model.TierLow,
		Evidence:     model.Evidence{Contexts: req.Contexts, Nearby: req.Nearby},
	}

	if len(candidates) == 0 {
		result.Reason = model.ReasonNoCandidates
		result.Justification = "gazetteer returned no candidates"
		return result
	}

	judgment, attempts, err := d.judge.Do(ctx, req)
	result.Attempts = attempts
	if err != nil {
		if ctx.Err() != nil {
			result.Reason = model.ReasonCancelled
			result.Justification = "cancelled before a judgment completed"
			return result
		}
		d.logger.Warn("judgment failed", "document", record.DocumentID(), "toponym", record.Name(),
			"cluster", index, "attempts", attempts, "error", err)
		result.Reason = model.ReasonParseFailure
		result.Justification = "parse failure"
		return result
	}
	result.Judgment = &judgment

	decision := d.policy.Apply(judgment, candidates)
	result.Selected = decision.Selected
	result.Confidence = decision.Confidence
	result.Reason = decision.Reason
	result.Justification = decision.Justification

	if decision.Selected != nil && d.coherence != nil {
		d.checkCoherence(ctx, record, &result)
	}
	return result
}

func (d *Disambiguator) checkCoherence(ctx context.Context, record *model.ToponymRecord, result *model.ClusterResult) {
	verdict, err := d.coherence.Check(ctx, *result.Selected, result.Evidence.Nearby)
	if err != nil {
		d.logger.Warn("coherence check unavailable, keeping selection",
			"toponym", record.Name(), "candidate", result.Selected.ID, "error", err)
		return
	}
	if verdict.Coherent {
		return
	}

	proposed := result.Selected
	result.Selected = nil
	result.Confidence = model.TierLow
	result.Reason = model.ReasonCoherenceConflict
	result.Conflicts = verdict.Conflicts
	result.Justification = withReasoning(
		fmt.Sprintf("proposed %s (%s, %s) is inconsistent with nearby %v", proposed.Name, proposed.ID, proposed.Country, verdict.Conflicts),
		result.Judgment.Reasoning)
}

// Disambiguate decides every cluster in order and aggregates the toponym result
func (d *Disambiguator) Disambiguate(ctx context.Context, record *model.ToponymRecord, clusters []model.ReferentCluster,
	candidates []model.Candidate, source *model.SourcePlace) model.DisambiguationResult {
	results := make([]model.ClusterResult, len(clusters))
	for i, c := range clusters {
		results[i] = d.DisambiguateCluster(ctx, record, i, c, candidates, source)
	}
	return Aggregate(record, results, d.Candidates(candidates))
}

// Candidates returns the prefix of candidates the disambiguator will consider
func (d *Disambiguator) Candidates(candidates []model.Candidate) []model.Candidate {
	if d.maxCandidates > 0 && len(candidates) > d.maxCandidates {
		return candidates[:d.maxCandidates]
	}
	return candidates
}

// Aggregate folds per-cluster results into one toponym result. The primary
// cluster is the best supported one holding a selection, or the best
// supported cluster when none selected; ties go to the earlier cluster.
// Every other cluster becomes an alternative interpretation.
func Aggregate(record *model.ToponymRecord, results []model.ClusterResult, candidates []model.Candidate) model.DisambiguationResult {
	out := model.DisambiguationResult{
		DocumentID:           record.DocumentID(),
		Toponym:              record.Name(),
		MentionCount:         record.MentionCount(),
		Confidence:           model.TierLow,
		HasMultipleReferents: len(results) > 1,
		Clusters:             results,
		Candidates:           candidates,
	}
	if out.Clusters == nil {
		out.Clusters = []model.ClusterResult{}
	}
	if len(results) == 0 {
		out.Reason = model.ReasonNoSelection
		out.Justification = "no clusters"
		return out
	}

	primary := primaryIndex(results)
	p := results[primary]
	out.Selected = p.Selected
	out.Confidence = p.Confidence
	out.Reason = p.Reason
	out.Justification = p.Justification
	out.Evidence = p.Evidence

	for i, r := range results {
		if i == primary {
			continue
		}
		out.AlternativeInterpretations = append(out.AlternativeInterpretations, model.Alternative{
			ClusterIndex: r.ClusterIndex,
			Support:      r.Cluster.Support,
			Candidate:    r.Selected,
			Confidence:   r.Confidence,
			Reason:       r.Reason,
		})
	}
	return out
}

func primaryIndex(results []model.ClusterResult) int {
	best := -1
	for i, r := range results {
		if r.Selected == nil {
			continue
		}
		if best < 0 || r.Cluster.Support > results[best].Cluster.Support {
			best = i
		}
	}
	if best >= 0 {
		return best
	}
	best = 0
	for i, r := range results {
		if r.Cluster.Support > results[best].Cluster.Support {
			best = i
		}
	}
	return best
}
