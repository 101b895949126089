package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/toporag/internal/model"
	"github.com/ppiankov/toporag/internal/worker"
)

// DocumentError records a document that produced no report
type DocumentError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// CorpusReport summarizes one run over a set of documents
type CorpusReport struct {
	RunID            string                      `json:"run_id"`
	StartedAt        time.Time                   `json:"started_at"`
	FinishedAt       time.Time                   `json:"finished_at"`
	Documents        []*model.DocumentReport     `json:"documents"`
	Errors           []DocumentError             `json:"errors,omitempty"`
	TotalToponyms    int                         `json:"total_toponyms"`
	Selected         int                         `json:"selected"`
	MultiReferent    int                         `json:"multi_referent_detected"`
	ReasonCounts     map[model.Reason]int        `json:"reason_counts"`
	FilterStatistics map[string]model.FilterStat `json:"filter_statistics,omitempty"`
}

// ProcessCorpus processes document files concurrently. Reports keep input
// order; unreadable or cancelled documents are listed under Errors.
func (p *Pipeline) ProcessCorpus(ctx context.Context, paths []string) *CorpusReport {
	report := &CorpusReport{
		RunID:            uuid.NewString(),
		StartedAt:        time.Now().UTC(),
		Documents:        []*model.DocumentReport{},
		ReasonCounts:     map[model.Reason]int{},
		FilterStatistics: map[string]model.FilterStat{},
	}

	p.logger.Info("corpus run started", "run_id", report.RunID, "documents", len(paths))

	batch := worker.NewBatchProcessor(p, p.config.Concurrency.Documents)
	for _, r := range batch.ProcessPaths(ctx, paths) {
		if r.Error != nil {
			p.logger.Warn("document failed", "path", r.Path, "error", r.Error)
			report.Errors = append(report.Errors, DocumentError{Path: r.Path, Error: r.Error.Error()})
			continue
		}
		report.add(r.Report)
	}

	report.FinishedAt = time.Now().UTC()
	p.logger.Info("corpus run finished",
		"run_id", report.RunID,
		"documents", len(report.Documents),
		"errors", len(report.Errors),
		"toponyms", report.TotalToponyms,
		"selected", report.Selected,
		"elapsed", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond),
	)
	return report
}

func (c *CorpusReport) add(doc *model.DocumentReport) {
	c.Documents = append(c.Documents, doc)
	c.TotalToponyms += doc.TotalToponyms
	c.MultiReferent += doc.MultiReferent
	for _, r := range doc.Results {
		c.ReasonCounts[r.Reason]++
		if r.Selected != nil {
			c.Selected++
		}
	}
	for reason, stat := range doc.FilterStatistics {
		merged := c.FilterStatistics[reason]
		merged.Count += stat.Count
		for _, ex := range stat.Examples {
			if len(merged.Examples) < maxFilterExamples && !contains(merged.Examples, ex) {
				merged.Examples = append(merged.Examples, ex)
			}
		}
		c.FilterStatistics[reason] = merged
	}
}

// Reasons returns the reason counts sorted by count descending then name
func (c *CorpusReport) Reasons() []ReasonCount {
	out := make([]ReasonCount, 0, len(c.ReasonCounts))
	for reason, n := range c.ReasonCounts {
		out = append(out, ReasonCount{Reason: reason, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

// ReasonCount pairs an outcome with its frequency
type ReasonCount struct {
	Reason model.Reason
	Count  int
}
