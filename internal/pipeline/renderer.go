package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ppiankov/toporag/internal/model"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Renderer writes reports to an output directory
type Renderer struct {
	dir string
}

// NewRenderer creates a renderer writing under dir
func NewRenderer(dir string) *Renderer {
	return &Renderer{dir: dir}
}

// DocumentPath returns the report path for a document id
func (r *Renderer) DocumentPath(documentID string) string {
	name := unsafeFileChars.ReplaceAllString(documentID, "_")
	if name == "" {
		name = "document"
	}
	return filepath.Join(r.dir, name+".json")
}

// RenderDocument writes one document report as indented JSON
func (r *Renderer) RenderDocument(report *model.DocumentReport) (string, error) {
	path := r.DocumentPath(report.DocumentID)
	if err := writeJSON(path, report); err != nil {
		return "", fmt.Errorf("render document %s: %w", report.DocumentID, err)
	}
	return path, nil
}

// corpusSummary is the on-disk corpus report; documents are referenced by path
type corpusSummary struct {
	*CorpusReport
	Documents []documentRef `json:"documents"`
}

type documentRef struct {
	DocumentID    string `json:"document_id"`
	Report        string `json:"report"`
	TotalToponyms int    `json:"total_toponyms"`
	MultiReferent int    `json:"multi_referent_detected"`
}

// RenderCorpus writes every document report plus a run summary and returns
// the summary path
func (r *Renderer) RenderCorpus(report *CorpusReport) (string, error) {
	summary := corpusSummary{CorpusReport: report, Documents: make([]documentRef, 0, len(report.Documents))}
	for _, doc := range report.Documents {
		path, err := r.RenderDocument(doc)
		if err != nil {
			return "", err
		}
		summary.Documents = append(summary.Documents, documentRef{
			DocumentID:    doc.DocumentID,
			Report:        filepath.Base(path),
			TotalToponyms: doc.TotalToponyms,
			MultiReferent: doc.MultiReferent,
		})
	}

	path := filepath.Join(r.dir, "run-"+report.RunID+".json")
	if err := writeJSON(path, summary); err != nil {
		return "", fmt.Errorf("render corpus summary: %w", err)
	}
	return path, nil
}

// RenderSummary prints a Markdown overview of a run
func RenderSummary(w io.Writer, report *CorpusReport) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Toponym disambiguation run %s\n\n", report.RunID)
	fmt.Fprintf(&b, "- Documents: %d (%d failed)\n", len(report.Documents), len(report.Errors))
	fmt.Fprintf(&b, "- Toponyms: %d\n", report.TotalToponyms)
	fmt.Fprintf(&b, "- Selected: %d\n", report.Selected)
	fmt.Fprintf(&b, "- Multiple referents: %d\n", report.MultiReferent)
	fmt.Fprintf(&b, "- Duration: %s\n\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))

	if len(report.ReasonCounts) > 0 {
		b.WriteString("## Outcomes\n\n| Reason | Count |\n|---|---|\n")
		for _, rc := range report.Reasons() {
			fmt.Fprintf(&b, "| %s | %d |\n", rc.Reason, rc.Count)
		}
		b.WriteString("\n")
	}

	if len(report.Errors) > 0 {
		b.WriteString("## Failed documents\n\n")
		for _, e := range report.Errors {
			fmt.Fprintf(&b, "- `%s`: %s\n", e.Path, e.Error)
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
