// Package ingest watches a drop directory for new or changed documents and
// streams them into a growing index: chunk, embed, insert. It is the
// streaming counterpart to a one-shot Builder.BuildIndex call, adapted from
// the teacher's fsnotify-based watcher but driving spattplus.Builder.Insert
// instead of an hnsw.Graph rebuild.
//
// The label assigned to each chunk is its arrival order. That also makes it
// the attribute the index windows on: a query filter [l,u] selects "chunks
// ingested between the l-th and u-th", which is exactly the recency-range
// query spattplus is built to answer quickly.
package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/screenager/spattplus/internal/chunker"
	"github.com/screenager/spattplus/internal/spattlog"
	"github.com/screenager/spattplus/internal/spattplus"
)

// Embedder turns document text into vectors. *embed.Embedder satisfies
// this; tests substitute a fake so they don't need an ONNX model on disk.
type Embedder interface {
	Embed(texts []string) ([][]float32, error)
}

// vectorStore is a growable spattplus.VectorStore pre-sized to NMax so
// concurrent Put/VecOf calls never race a slice grow.
type vectorStore struct {
	mu   sync.RWMutex
	vecs [][]float32
}

func newVectorStore(nMax uint32) *vectorStore {
	return &vectorStore{vecs: make([][]float32, nMax)}
}

func (v *vectorStore) VecOf(label uint32) []float32 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.vecs[label]
}

func (v *vectorStore) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.vecs)
}

func (v *vectorStore) put(label uint32, vec []float32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vecs[label] = vec
}

// Doc is a single indexed unit of provenance, recorded so a result label can
// be traced back to the file and byte range it came from.
type Doc struct {
	Label     uint32
	Path      string
	LineNum   int
	StartByte int64
	EndByte   int64
	Preview   string
	IngestAt  time.Time
}

// Ingestor streams chunked, embedded documents into a Builder as they
// arrive, either via AddFile (one-shot) or Watch (continuous).
type Ingestor struct {
	mu       sync.Mutex
	builder  *spattplus.Builder
	embedder Embedder
	vecs     *vectorStore
	opts     chunker.Options
	next     uint32
	docs     []Doc
	fileMu   sync.Mutex
	fileMT   map[string]time.Time
	log      *spattlog.Logger
}

// New takes a freshly Parameterized builder, wires it to a growable vector
// store sized to its NMax, and calls Init so the builder's traversal engine
// reads from the same store AddFile writes to.
func New(builder *spattplus.Builder, embedder Embedder, runtime spattplus.BuildRuntime) (*Ingestor, error) {
	vecs := newVectorStore(builder.Params().NMax)
	if err := builder.Init(vecs, runtime); err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	return &Ingestor{
		builder:  builder,
		embedder: embedder,
		vecs:     vecs,
		opts:     chunker.DefaultOptions(),
		fileMT:   make(map[string]time.Time),
		log:      spattlog.New("ingest"),
	}, nil
}

// VectorStore exposes the backing VectorStore, for a Searcher built over
// the same label space after ingestion (or mid-ingestion, for "search what
// has arrived so far").
func (g *Ingestor) VectorStore() spattplus.VectorStore { return g.vecs }

// Vectors snapshots every vector ingested so far, indexed by label, for
// persistence alongside the graph (the graph file itself stores no
// vectors -- spec §5 "Vector storage is out of scope for C3").
func (g *Ingestor) Vectors() [][]float32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.vecs.mu.RLock()
	defer g.vecs.mu.RUnlock()
	out := make([][]float32, g.next)
	copy(out, g.vecs.vecs[:g.next])
	return out
}

// Docs returns the provenance record for every chunk ingested so far,
// indexed by label.
func (g *Ingestor) Docs() []Doc {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Doc, len(g.docs))
	copy(out, g.docs)
	return out
}

// AddFile chunks, embeds and inserts every chunk of path. If path's mtime
// matches the last ingested mtime it is skipped (mirrors the teacher's
// fileCache skip check). Files chunker.IsSupportedFile rejects are skipped
// as well.
func (g *Ingestor) AddFile(path string) (skipped bool, err error) {
	if !chunker.IsSupportedFile(path) {
		return true, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("ingest: stat %s: %w", path, err)
	}

	g.fileMu.Lock()
	if last, ok := g.fileMT[path]; ok && !info.ModTime().After(last) {
		g.fileMu.Unlock()
		return true, nil
	}
	g.fileMu.Unlock()

	chunks, err := chunker.ChunkFile(path, g.opts)
	if err != nil {
		return false, fmt.Errorf("ingest: chunk %s: %w", path, err)
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := g.embedder.Embed(texts)
	if err != nil {
		return false, fmt.Errorf("ingest: embed %s: %w", path, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	for i, c := range chunks {
		label := g.next
		if uint32(label) >= g.builder.Params().NMax {
			return false, fmt.Errorf("ingest: %s: %w", path, spattplus.ErrCapacity)
		}
		g.next++
		g.vecs.put(label, vecs[i])
		if err := g.builder.Insert(label); err != nil {
			return false, fmt.Errorf("ingest: insert label %d (%s chunk %d): %w", label, path, c.Index, err)
		}
		preview := c.Text
		if len(preview) > 200 {
			preview = preview[:200]
		}
		g.docs = append(g.docs, Doc{
			Label:     label,
			Path:      c.Path,
			LineNum:   c.LineNum,
			StartByte: c.StartByte,
			EndByte:   c.EndByte,
			Preview:   preview,
			IngestAt:  now,
		})
	}

	g.fileMu.Lock()
	g.fileMT[path] = info.ModTime()
	g.fileMu.Unlock()

	g.log.Infof("ingested %s: %d chunks (next label %d)", path, len(chunks), g.next)
	return false, nil
}

// Watch watches rootDir (and subdirectories) and ingests files as they
// appear or change, debouncing rapid saves. It blocks until done is closed.
func (g *Ingestor) Watch(rootDir string, done <-chan struct{}) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ingest: fsnotify: %w", err)
	}
	if err := addDirRecursive(fw, rootDir, g.log); err != nil {
		return err
	}

	pending := make(map[string]*time.Timer)
	for {
		select {
		case <-done:
			return fw.Close()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			path := event.Name
			if event.Has(fsnotify.Create) {
				if fi, err := os.Stat(path); err == nil && fi.IsDir() {
					_ = addDirRecursive(fw, path, g.log)
				}
			}
			if !chunker.IsSupportedFile(path) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if t, ok := pending[path]; ok {
					t.Stop()
				}
				pending[path] = time.AfterFunc(500*time.Millisecond, func() {
					if _, err := g.AddFile(path); err != nil {
						g.log.Infof("error ingesting %s: %v", path, err)
					}
				})
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			g.log.Infof("watch error: %v", err)
		}
	}
}

func addDirRecursive(fw *fsnotify.Watcher, dir string, log *spattlog.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("ingest: watch %s: %w", dir, err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if e.IsDir() {
			if err := addDirRecursive(fw, filepath.Join(dir, e.Name()), log); err != nil {
				log.Infof("skip dir %s: %v", e.Name(), err)
			}
		}
	}
	return nil
}
