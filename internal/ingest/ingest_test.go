package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/screenager/spattplus/internal/spattplus"
)

// fakeEmbedder returns a deterministic low-dimensional vector per text so
// tests don't require an ONNX model on disk.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		var sum float32
		for _, r := range t {
			sum += float32(r)
		}
		out[i] = []float32{sum, float32(len(t))}
	}
	return out, nil
}

func newTestIngestor(t *testing.T, nMax uint32) *Ingestor {
	t.Helper()
	b, err := spattplus.NewBuilder(spattplus.IndexParameters{NMax: nMax, W: 1, M: 4, B: 2, Space: "l2"})
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	ing, err := New(b, fakeEmbedder{}, spattplus.BuildRuntime{EfConstruction: 16, Threads: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ing
}

func TestAddFileIngestsChunks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("hello world, this is a small test document about cats and dogs."), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ing := newTestIngestor(t, 64)
	skipped, err := ing.AddFile(path)
	if err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	if skipped {
		t.Fatal("expected file to be ingested, not skipped")
	}
	docs := ing.Docs()
	if len(docs) == 0 {
		t.Fatal("expected at least one chunk ingested")
	}
	for i, d := range docs {
		if d.Label != uint32(i) {
			t.Errorf("doc %d: label = %d, want %d (arrival order)", i, d.Label, i)
		}
		if d.Path != path {
			t.Errorf("doc %d: path = %q, want %q", i, d.Path, path)
		}
	}
}

func TestAddFileSkipsUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("unchanging content for the skip check"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ing := newTestIngestor(t, 64)
	if _, err := ing.AddFile(path); err != nil {
		t.Fatalf("first AddFile: %v", err)
	}
	skipped, err := ing.AddFile(path)
	if err != nil {
		t.Fatalf("second AddFile: %v", err)
	}
	if !skipped {
		t.Fatal("expected second AddFile on unchanged mtime to be skipped")
	}
}

func TestAddFileCapacityOverflow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	big := ""
	for i := 0; i < 50; i++ {
		big += "this is a paragraph of filler text meant to force multiple chunks. "
	}
	if err := os.WriteFile(path, []byte(big), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ing := newTestIngestor(t, 1)
	if _, err := ing.AddFile(path); err == nil {
		t.Fatal("expected capacity overflow once labels exceed NMax")
	}
}

func TestUnsupportedFileSkipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.png")
	if err := os.WriteFile(path, []byte{0x89, 'P', 'N', 'G'}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ing := newTestIngestor(t, 64)
	skipped, err := ing.AddFile(path)
	if err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	if !skipped {
		t.Fatal("expected unsupported extension to be skipped")
	}
}
