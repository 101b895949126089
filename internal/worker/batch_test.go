package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/toporag/internal/model"
)

// mockProcessor implements DocumentProcessor
type mockProcessor struct {
	failOn string
	calls  int32
}

func (m *mockProcessor) ProcessFile(ctx context.Context, path string) (*model.DocumentReport, error) {
	atomic.AddInt32(&m.calls, 1)
	time.Sleep(5 * time.Millisecond) // Simulate work
	if m.failOn != "" && strings.Contains(path, m.failOn) {
		return nil, errors.New("parse error")
	}
	return &model.DocumentReport{DocumentID: filepath.Base(path)}, nil
}

func TestBatchProcessor_ProcessPaths(t *testing.T) {
	processor := NewBatchProcessor(&mockProcessor{}, 2)

	paths := []string{"a.xml", "b.xml", "c.xml", "d.xml"}
	results := processor.ProcessPaths(context.Background(), paths)

	if len(results) != len(paths) {
		t.Fatalf("expected %d results, got %d", len(paths), len(results))
	}
	for i, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error for %s: %v", res.Path, res.Error)
			continue
		}
		if res.Path != paths[i] || res.Index != i {
			t.Errorf("result %d out of order: %+v", i, res)
		}
		if res.Report == nil || res.Report.DocumentID != paths[i] {
			t.Errorf("expected report for %s", paths[i])
		}
	}
}

func TestBatchProcessor_ProcessPaths_Error(t *testing.T) {
	processor := NewBatchProcessor(&mockProcessor{failOn: "bad"}, 2)

	results := processor.ProcessPaths(context.Background(), []string{"good.xml", "bad.xml"})

	if results[0].Error != nil {
		t.Errorf("unexpected error: %v", results[0].Error)
	}
	if results[1].Error == nil {
		t.Error("expected error, got nil")
	}
	if results[1].Report != nil {
		t.Error("expected nil report on error")
	}
}

func TestBatchProcessor_ProcessPaths_Empty(t *testing.T) {
	processor := NewBatchProcessor(&mockProcessor{}, 2)

	results := processor.ProcessPaths(context.Background(), []string{})
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessPaths_Cancelled(t *testing.T) {
	mock := &mockProcessor{}
	processor := NewBatchProcessor(mock, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := processor.ProcessPaths(ctx, []string{"a.xml", "b.xml", "c.xml"})
	if len(results) != 3 {
		t.Fatalf("every path needs a result, got %d", len(results))
	}
	for _, res := range results {
		if !errors.Is(res.Error, context.Canceled) {
			t.Errorf("expected cancelled result for %s, got %v", res.Path, res.Error)
		}
	}
	if atomic.LoadInt32(&mock.calls) != 0 {
		t.Errorf("no document should start after cancellation, got %d", mock.calls)
	}
}

func writeList(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "documents.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadPathsFromFile(t *testing.T) {
	path := writeList(t, "corpus/a.xml\n# comment\ncorpus/b.json\n   \ncorpus/c.xml   \ncorpus/a.xml\n")

	paths, err := ReadPathsFromFile(path)
	if err != nil {
		t.Fatalf("ReadPathsFromFile failed: %v", err)
	}

	expected := []string{"corpus/a.xml", "corpus/b.json", "corpus/c.xml"}
	if len(paths) != len(expected) {
		t.Fatalf("expected %d paths, got %d", len(expected), len(paths))
	}
	for i, p := range paths {
		if p != expected[i] {
			t.Errorf("expected path %s at index %d, got %s", expected[i], i, p)
		}
	}
}

func TestReadPathsFromFile_NonExistent(t *testing.T) {
	if _, err := ReadPathsFromFile("non_existent_file.txt"); err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestDocumentResult_GetError(t *testing.T) {
	r1 := &DocumentResult{Path: "a.xml"}
	if r1.GetError() != nil {
		t.Errorf("expected nil error, got %v", r1.GetError())
	}

	expected := errors.New("parse failed")
	r2 := &DocumentResult{Path: "a.xml", Error: expected}
	if r2.GetError() != expected {
		t.Errorf("expected %v, got %v", expected, r2.GetError())
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	processor := NewBatchProcessor(&mockProcessor{}, 2)

	results, err := processor.ProcessFile(context.Background(), writeList(t, "a.xml\nb.xml\n# c.xml\n"))
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}

	if _, err := processor.ProcessFile(context.Background(), "no_such_file.txt"); err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}
