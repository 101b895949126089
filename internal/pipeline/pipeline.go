// Package pipeline orchestrates disambiguation of whole documents and corpora.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ppiankov/toporag/internal/cluster"
	"github.com/ppiankov/toporag/internal/disambiguate"
	"github.com/ppiankov/toporag/internal/extract"
	"github.com/ppiankov/toporag/internal/filter"
	"github.com/ppiankov/toporag/internal/gazetteer"
	"github.com/ppiankov/toporag/internal/model"
	"github.com/ppiankov/toporag/internal/worker"
	"github.com/ppiankov/toporag/internal/zeromatch"
)

// maxFilterExamples bounds the example names kept per filter reason
const maxFilterExamples = 10

// Options wires the collaborators of a pipeline
type Options struct {
	Config    *model.Config
	Gazetteer gazetteer.Gazetteer
	Judge     disambiguate.Judge
	Filter    filter.Filter      // Overrides the rule filter built from Config when set
	Tracker   *zeromatch.Tracker // Shared zero-match tracker; a new one is created when nil
	Logger    *slog.Logger
}

// Pipeline orchestrates extraction, filtering, clustering, candidate lookup
// and judgment for documents
type Pipeline struct {
	config        *model.Config
	extractor     *extract.Extractor
	filter        filter.Filter
	clusterer     *cluster.Clusterer
	gazetteer     gazetteer.Gazetteer
	disambiguator *disambiguate.Disambiguator
	tracker       *zeromatch.Tracker
	logger        *slog.Logger
}

// New validates the configuration and builds a pipeline. Configuration
// problems are returned wrapped in model.ErrInvalidConfig before any document
// is read.
func New(opts Options) (*Pipeline, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Gazetteer == nil {
		return nil, fmt.Errorf("%w: no gazetteer configured", model.ErrInvalidConfig)
	}
	if opts.Judge == nil {
		return nil, fmt.Errorf("%w: no judgment provider configured", model.ErrInvalidConfig)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	f := opts.Filter
	if f == nil {
		if cfg.Pipeline.EnableFiltering {
			rf, err := filter.NewRuleFilter(filter.Options{
				StrictMode:         cfg.Pipeline.FilterStrictMode,
				AmbiguousTermsFile: cfg.Filter.AmbiguousTermsFile,
			})
			if err != nil {
				return nil, fmt.Errorf("%w: %v", model.ErrInvalidConfig, err)
			}
			f = rf
		} else {
			f = filter.Noop{}
		}
	}

	tracker := opts.Tracker
	if tracker == nil {
		tracker = zeromatch.NewTracker()
	}

	var coherence *disambiguate.CoherenceChecker
	if cfg.Pipeline.CoherenceCheck {
		coherence = disambiguate.NewCoherenceChecker(opts.Gazetteer, cfg.Pipeline.CoherenceRadiusKm)
	}

	return &Pipeline{
		config: cfg,
		extractor: extract.NewExtractor(extract.ExtractorConfig{
			ProximityWindow:   cfg.Pipeline.ProximityWindowChars,
			ContextParagraphs: cfg.Pipeline.ContextParagraphs,
			Logger:            logger,
		}),
		filter:    f,
		clusterer: cluster.NewClusterer(cfg.Pipeline.SimilarityThreshold),
		gazetteer: opts.Gazetteer,
		disambiguator: disambiguate.NewDisambiguator(opts.Judge, disambiguate.Options{
			MinConfidence: cfg.MinConfidenceTier(),
			MaxContexts:   cfg.Pipeline.MaxContextsPerCluster,
			MinSpacing:    cfg.Pipeline.MinPositionSpacing,
			MaxCandidates: cfg.Pipeline.MaxCandidates,
			Retry: disambiguate.RetryConfig{
				MaxRetries: cfg.LLM.MaxRetries,
				Backoff:    cfg.LLM.RetryBackoff,
				Timeout:    llmTimeout(cfg),
			},
			Coherence: coherence,
			Logger:    logger,
		}),
		tracker: tracker,
		logger:  logger,
	}, nil
}

// Tracker returns the zero-match tracker fed by this pipeline
func (p *Pipeline) Tracker() *zeromatch.Tracker {
	return p.tracker
}

// toponymWork is the outcome of the toponym stage for one record
type toponymWork struct {
	record     *model.ToponymRecord // Surviving mentions
	clusters   []model.ReferentCluster
	candidates []model.Candidate
	rejected   []filter.Rejection
	final      *model.DisambiguationResult // Set when no judgment is needed
}

type clusterJob struct {
	toponym int
	cluster int
}

// ProcessFile loads one document file and processes it
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*model.DocumentReport, error) {
	doc, err := extract.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return p.ProcessDocument(ctx, doc), nil
}

// ProcessDocument disambiguates every toponym of a document. It never fails:
// each toponym gets exactly one result, ordered by name. Work cut short by
// ctx yields cancelled results; completed results are kept.
func (p *Pipeline) ProcessDocument(ctx context.Context, doc model.Document) *model.DocumentReport {
	extraction := p.extractor.Extract(doc)
	records := extraction.Records
	workers := p.config.Concurrency.Judgments

	// Toponym stage: filter, cluster, look up candidates
	stage, done := worker.Map(ctx, workers, len(records), func(ctx context.Context, i int) toponymWork {
		return p.prepare(ctx, records[i])
	})

	var jobs []clusterJob
	for i, w := range stage {
		if !done[i] || w.final != nil {
			continue
		}
		for ci := range w.clusters {
			jobs = append(jobs, clusterJob{toponym: i, cluster: ci})
		}
	}

	// Cluster stage: one judgment per referent cluster
	decided, decidedDone := worker.Map(ctx, workers, len(jobs), func(ctx context.Context, j int) model.ClusterResult {
		w := stage[jobs[j].toponym]
		ci := jobs[j].cluster
		return p.disambiguator.DisambiguateCluster(ctx, w.record, ci, w.clusters[ci], w.candidates, doc.Source)
	})

	perToponym := make([][]model.ClusterResult, len(records))
	for i, w := range stage {
		if done[i] && w.final == nil {
			perToponym[i] = make([]model.ClusterResult, len(w.clusters))
		}
	}
	for j, job := range jobs {
		r := decided[j]
		if !decidedDone[j] {
			w := stage[job.toponym]
			r = model.ClusterResult{
				ClusterIndex:  job.cluster,
				Cluster:       w.clusters[job.cluster],
				Confidence:    model.TierLow,
				Reason:        model.ReasonCancelled,
				Justification: "cancelled before a judgment completed",
			}
		}
		perToponym[job.toponym][job.cluster] = r
	}

	report := &model.DocumentReport{
		DocumentID:          doc.ID,
		TotalToponyms:       len(records),
		RejectedMentions:    len(extraction.Rejected),
		Results:             make([]model.DisambiguationResult, 0, len(records)),
		FilterStatistics:    map[string]model.FilterStat{},
		CooccurrenceNetwork: extraction.Network,
	}

	for i, record := range records {
		var result model.DisambiguationResult
		switch w := stage[i]; {
		case !done[i]:
			result = model.NonSelection(doc.ID, record.Name(), record.MentionCount(), model.ReasonCancelled,
				"cancelled before candidate lookup")
		case w.final != nil:
			result = *w.final
		default:
			result = disambiguate.Aggregate(w.record, perToponym[i], p.disambiguator.Candidates(w.candidates))
		}

		if done[i] {
			addFilterStats(report.FilterStatistics, stage[i].rejected)
		}
		if result.Reason == model.ReasonFiltered {
			report.FilteredToponyms++
		}
		if result.HasMultipleReferents {
			report.MultiReferent++
		}
		report.Results = append(report.Results, result)
	}
	report.ProcessedToponyms = report.TotalToponyms - report.FilteredToponyms

	sort.SliceStable(report.Results, func(i, j int) bool {
		return report.Results[i].Toponym < report.Results[j].Toponym
	})

	p.logger.Info("document processed",
		"document", doc.ID,
		"toponyms", report.TotalToponyms,
		"filtered", report.FilteredToponyms,
		"multi_referent", report.MultiReferent,
		"rejected_mentions", report.RejectedMentions,
	)
	return report
}

// prepare runs the toponym stage for one record
func (p *Pipeline) prepare(ctx context.Context, record *model.ToponymRecord) toponymWork {
	kept, rejected := filter.Split(p.filter, record)
	w := toponymWork{record: kept, rejected: rejected}

	if kept == nil {
		reason := string(rejected[0].Reason)
		r := model.NonSelection(record.DocumentID(), record.Name(), record.MentionCount(), model.ReasonFiltered,
			fmt.Sprintf("every mention filtered (%s)", reason))
		r.FilterReason = reason
		w.final = &r
		return w
	}

	w.clusters = p.clusterer.Cluster(kept)

	candidates, err := p.gazetteer.Candidates(ctx, model.CleanToponym(kept.Name()), p.config.Pipeline.MaxCandidates)
	if err != nil {
		reason, why := model.ReasonGazetteerError, fmt.Sprintf("candidate lookup failed: %v", err)
		if ctx.Err() != nil {
			reason, why = model.ReasonCancelled, "cancelled during candidate lookup"
		} else {
			p.logger.Warn("candidate lookup failed", "document", kept.DocumentID(), "toponym", kept.Name(), "error", err)
		}
		r := model.NonSelection(kept.DocumentID(), kept.Name(), kept.MentionCount(), reason, why)
		w.final = &r
		return w
	}

	if len(candidates) == 0 {
		p.tracker.Record(kept.Name(), sampleContexts(kept)...)
		r := model.NonSelection(kept.DocumentID(), kept.Name(), kept.MentionCount(), model.ReasonNoCandidates,
			"gazetteer returned no candidates")
		w.final = &r
		return w
	}

	w.candidates = candidates
	return w
}

func sampleContexts(record *model.ToponymRecord) []string {
	n := min(record.MentionCount(), zeromatch.MaxSamples)
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = record.Mention(i).Context
	}
	return out
}

func addFilterStats(stats map[string]model.FilterStat, rejected []filter.Rejection) {
	for _, r := range rejected {
		key := string(r.Reason)
		s := stats[key]
		s.Count++
		if len(s.Examples) < maxFilterExamples && !contains(s.Examples, r.Mention.Name) {
			s.Examples = append(s.Examples, r.Mention.Name)
		}
		stats[key] = s
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func llmTimeout(cfg *model.Config) time.Duration {
	return time.Duration(cfg.LLM.Timeout) * time.Second
}
