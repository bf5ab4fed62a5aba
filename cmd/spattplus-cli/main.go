package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pelletier/go-toml/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/screenager/spattplus/internal/embed"
	"github.com/screenager/spattplus/internal/ingest"
	"github.com/screenager/spattplus/internal/spattlog"
	"github.com/screenager/spattplus/internal/spattmetrics"
	"github.com/screenager/spattplus/internal/spattplus"
	"github.com/screenager/spattplus/internal/tui"
	"github.com/screenager/spattplus/internal/vecio"
)

var (
	defaultModelDir  = "./models"
	defaultIndexFile = "index.bin"
	defaultOrtLib    = "./lib/onnxruntime.so"
	defaultThreads   = 0
)

type config struct {
	ModelDir string `toml:"model-dir"`
	OrtLib   string `toml:"ort-lib"`
	Threads  int    `toml:"threads"`
	NMax     uint32 `toml:"nmax"`
	W        uint32 `toml:"w"`
	M        uint32 `toml:"m"`
	B        uint32 `toml:"b"`
	Space    string `toml:"space"`
}

func defaultConfig() config {
	return config{ModelDir: defaultModelDir, OrtLib: defaultOrtLib, NMax: 100000, W: 4, M: 16, B: 2, Space: "l2"}
}

func loadConfig(path string) config {
	cfg := defaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	if err := toml.Unmarshal(b, &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "spattplus-cli: ignoring malformed %s: %v\n", path, err)
		return defaultConfig()
	}
	return cfg
}

func resolveOrtLib(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "lib", "onnxruntime.so")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if _, err := os.Stat(fallback); err == nil {
		abs, _ := filepath.Abs(fallback)
		return abs
	}
	return ""
}

func main() {
	cfg := loadConfig(".spattplus.toml")

	root := &cobra.Command{
		Use:   "spattplus-cli",
		Short: "Windowed proximity-graph ANN index over documents",
		Long:  "spattplus-cli builds and queries a windowed multi-layer proximity-graph index: approximate nearest-neighbor search restricted to a range of a totally-ordered attribute.",
	}

	var modelDir, ortLib, indexPath string
	var numThreads int
	root.PersistentFlags().StringVar(&modelDir, "model-dir", cfg.ModelDir, "directory containing ONNX model files")
	root.PersistentFlags().StringVar(&ortLib, "ort-lib", cfg.OrtLib, "path to onnxruntime.so (auto-detected if empty)")
	root.PersistentFlags().IntVar(&numThreads, "threads", cfg.Threads, "ONNX intra-op thread count (0 = auto)")
	root.PersistentFlags().StringVar(&indexPath, "index", defaultIndexFile, "path to the persisted index file")

	openEmbedder := func() (*embed.Embedder, error) {
		return embed.New(modelDir, resolveOrtLib(ortLib, cfg.OrtLib), numThreads)
	}

	// ---- build <dir> --------------------------------------------------
	buildCmd := &cobra.Command{
		Use:   "build <dir> [dir...]",
		Short: "Chunk, embed and index every supported file under dir",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := spattplus.IndexParameters{NMax: cfg.NMax, W: cfg.W, M: cfg.M, B: cfg.B, Space: cfg.Space}
			builder, err := spattplus.NewBuilder(params)
			if err != nil {
				return err
			}

			e, err := openEmbedder()
			if err != nil {
				return fmt.Errorf("embedder: %w", err)
			}
			defer e.Close()

			ing, err := ingest.New(builder, e, spattplus.BuildRuntime{EfConstruction: 200, Threads: max(1, numThreads)})
			if err != nil {
				return err
			}

			var nFiles int
			for _, dir := range args {
				err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
					if err != nil || d.IsDir() {
						return err
					}
					skipped, err := ing.AddFile(path)
					if err != nil {
						fmt.Fprintf(os.Stderr, "skip %s: %v\n", path, err)
						return nil
					}
					if !skipped {
						nFiles++
					}
					return nil
				})
				if err != nil {
					return err
				}
			}

			savedPath, err := builder.Save(filepath.Dir(indexPath), "spattplus", "doc", embed.EmbeddingDim)
			if err != nil {
				return fmt.Errorf("save: %w", err)
			}
			if err := os.Rename(savedPath, indexPath); err != nil {
				return fmt.Errorf("rename %s -> %s: %w", savedPath, indexPath, err)
			}
			if err := vecio.SaveFvecs(vectorsSidecar(indexPath), vecio.MemVectorStore(ing.Vectors())); err != nil {
				return fmt.Errorf("save vectors: %w", err)
			}
			if err := saveDocs(indexPath, ing.Docs()); err != nil {
				return err
			}
			fmt.Printf("indexed %d files, %d chunks -> %s\n", nFiles, len(ing.Docs()), indexPath)
			return nil
		},
	}
	root.AddCommand(buildCmd)

	// ---- search <query> -------------------------------------------------
	var lo, hi uint32
	var k int
	var jsonOut bool
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a single windowed nearest-neighbor query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			e, err := openEmbedder()
			if err != nil {
				return fmt.Errorf("embedder: %w", err)
			}
			defer e.Close()

			memVecs, _, err := vecio.LoadFvecs(vectorsSidecar(indexPath), 0)
			if err != nil {
				return fmt.Errorf("load vectors: %w", err)
			}
			s, err := spattplus.Load(indexPath, memVecs)
			if err != nil {
				return fmt.Errorf("load index: %w", err)
			}

			qv, err := e.EmbedQuery(query)
			if err != nil {
				return err
			}
			results, status := s.Search(qv, lo, hi, spattplus.SearchParameters{Efs: 64, K: k, IsDynamic: true})

			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				return enc.Encode(results)
			}
			docs := loadDocs(indexPath)
			for i, r := range results {
				if r.IsSentinel(s.Params().NMax) {
					continue
				}
				loc := ""
				if d, ok := docs[r.Label]; ok {
					loc = fmt.Sprintf("%s:%d", d.Path, d.LineNum)
				}
				fmt.Printf("%2d  %.4f  #%-6d %s\n", i+1, r.Dist, r.Label, loc)
			}
			fmt.Fprintf(os.Stderr, "dist_computations=%d hops=%d\n", status.DistComputations, status.Hops)
			return nil
		},
	}
	searchCmd.Flags().Uint32Var(&lo, "lo", 0, "lower bound of the attribute window")
	searchCmd.Flags().Uint32Var(&hi, "hi", ^uint32(0), "upper bound of the attribute window")
	searchCmd.Flags().IntVar(&k, "k", 10, "number of results")
	searchCmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	root.AddCommand(searchCmd)

	// ---- watch <dir> ------------------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "watch <dir> [dir...]",
		Short: "Build then continuously ingest new/changed files under dir",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			params := spattplus.IndexParameters{NMax: cfg.NMax, W: cfg.W, M: cfg.M, B: cfg.B, Space: cfg.Space}
			builder, err := spattplus.NewBuilder(params)
			if err != nil {
				return err
			}
			e, err := openEmbedder()
			if err != nil {
				return err
			}
			defer e.Close()
			ing, err := ingest.New(builder, e, spattplus.BuildRuntime{EfConstruction: 200, Threads: max(1, numThreads)})
			if err != nil {
				return err
			}

			log := spattlog.New("watch")
			for _, dir := range args {
				err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
					if err != nil || d.IsDir() {
						return err
					}
					if _, err := ing.AddFile(path); err != nil {
						log.Infof("skip %s: %v", path, err)
					}
					return nil
				})
				if err != nil {
					return err
				}
			}
			done := make(chan struct{})
			go func() {
				<-ctx.Done()
				close(done)
			}()
			for _, dir := range args {
				go func(d string) {
					if err := ing.Watch(d, done); err != nil {
						log.Infof("watch error %s: %v", d, err)
					}
				}(dir)
			}
			log.Infof("watching %v (Ctrl+C to stop)", args)
			<-done
			return nil
		},
	})

	// ---- browse -------------------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "browse",
		Short: "Launch the interactive BubbleTea query browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEmbedder()
			if err != nil {
				return err
			}
			defer e.Close()

			memVecs, _, err := vecio.LoadFvecs(vectorsSidecar(indexPath), 0)
			if err != nil {
				return fmt.Errorf("load vectors: %w", err)
			}
			s, err := spattplus.Load(indexPath, memVecs)
			if err != nil {
				return err
			}
			docs := loadDocs(indexPath)
			docList := make([]ingest.Doc, 0, len(docs))
			for _, d := range docs {
				docList = append(docList, d)
			}

			m := tui.New(s, e, docList, s.Params().NMax)
			p := tea.NewProgram(m, tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	})

	// ---- serve ----------------------------------------------------------
	var addr string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the spattplus Prometheus collectors on /metrics (no build or search runs in this process, so they stay at zero)",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := prometheus.NewRegistry()
			spattmetrics.NewRegistry(reg, indexPath)
			http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			spattlog.New("serve").Infof("listening on %s", addr)
			return http.ListenAndServe(addr, nil)
		},
	}
	serveCmd.Flags().StringVar(&addr, "addr", ":9090", "listen address for /metrics")
	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func vectorsSidecar(indexPath string) string {
	return indexPath + ".vecs.fvecs"
}

func docsSidecar(indexPath string) string {
	return indexPath + ".docs.json"
}

func saveDocs(indexPath string, docs []ingest.Doc) error {
	f, err := os.Create(docsSidecar(indexPath))
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(docs)
}

func loadDocs(indexPath string) map[uint32]ingest.Doc {
	out := map[uint32]ingest.Doc{}
	b, err := os.ReadFile(docsSidecar(indexPath))
	if err != nil {
		return out
	}
	var docs []ingest.Doc
	if err := json.Unmarshal(b, &docs); err != nil {
		return out
	}
	for _, d := range docs {
		out[d.Label] = d
	}
	return out
}
