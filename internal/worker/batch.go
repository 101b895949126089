package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/toporag/internal/model"
)

// DocumentProcessor produces the report for one document file
type DocumentProcessor interface {
	ProcessFile(ctx context.Context, path string) (*model.DocumentReport, error)
}

// DocumentJob represents one document of a corpus
type DocumentJob struct {
	Index     int
	Path      string
	Processor DocumentProcessor
}

// Execute executes the document job
func (j *DocumentJob) Execute(ctx context.Context) Result {
	report, err := j.Processor.ProcessFile(ctx, j.Path)
	return &DocumentResult{Index: j.Index, Path: j.Path, Report: report, Error: err}
}

// DocumentResult represents the result of a document job
type DocumentResult struct {
	Index  int
	Path   string
	Report *model.DocumentReport
	Error  error
}

// GetError returns the error from the document result
func (r *DocumentResult) GetError() error {
	return r.Error
}

// BatchProcessor processes corpus documents concurrently
type BatchProcessor struct {
	processor   DocumentProcessor
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(processor DocumentProcessor, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		processor:   processor,
		concurrency: concurrency,
	}
}

// ProcessPaths processes every path and returns results in input order.
// Documents never started because ctx was cancelled carry ctx's error.
func (b *BatchProcessor) ProcessPaths(ctx context.Context, paths []string) []*DocumentResult {
	if len(paths) == 0 {
		return []*DocumentResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, path := range paths {
		job := &DocumentJob{
			Index:     i,
			Path:      path,
			Processor: b.processor,
		}
		if !pool.Submit(job) {
			break
		}
	}

	ordered := make([]*DocumentResult, len(paths))
	for _, result := range pool.Wait() {
		r := result.(*DocumentResult)
		ordered[r.Index] = r
	}

	for i, r := range ordered {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			ordered[i] = &DocumentResult{Index: i, Path: paths[i], Error: err}
		}
	}
	return ordered
}

// ProcessFile reads document paths from a list file and processes them
func (b *BatchProcessor) ProcessFile(ctx context.Context, listPath string) ([]*DocumentResult, error) {
	paths, err := ReadPathsFromFile(listPath)
	if err != nil {
		return nil, fmt.Errorf("read document list: %w", err)
	}

	return b.ProcessPaths(ctx, paths), nil
}

// ReadPathsFromFile reads document paths from a file (one per line)
func ReadPathsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}
