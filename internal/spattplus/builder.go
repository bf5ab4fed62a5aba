package spattplus

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/screenager/spattplus/internal/bitset"
	"github.com/screenager/spattplus/internal/graphstore"
	"github.com/screenager/spattplus/internal/metric"
	"github.com/screenager/spattplus/internal/ordertable"
	"github.com/screenager/spattplus/internal/spattlog"
	"github.com/screenager/spattplus/internal/synclocks"
	"github.com/screenager/spattplus/internal/traversal"
)

// state is the builder's position in the Fresh -> Parameterized -> Growing
// -> Saved sequence (spec §4.5 "State machine (builder)").
type state int

const (
	stateFresh state = iota
	stateParameterized
	stateGrowing
	stateSaved
)

type vectorSourceAdapter struct{ vs VectorStore }

func (a vectorSourceAdapter) Vector(label uint32) []float32 { return a.vs.VecOf(label) }

// Builder drives incremental construction of the windowed proximity graph
// (spec §4.5 "Builder"). A Builder is used once: New, BuildIndex, Save.
type Builder struct {
	params  IndexParameters
	runtime BuildRuntime
	space   metric.Space

	vecs   VectorStore
	store  *graphstore.Store
	order  *ordertable.Table
	locks  *synclocks.Table
	pool   *bitset.Pool
	engine *traversal.Engine

	growthMu        sync.Mutex
	currentMaxLayer int
	curNum          uint64
	windows         []uint64

	state state
	log   *spattlog.Logger

	distComputations uint64
	hops             uint64
}

// NewBuilder validates IndexParameters and resolves the metric space, moving
// the builder from Fresh to Parameterized (spec §7 "Configuration" errors
// are fatal at construction).
func NewBuilder(params IndexParameters) (*Builder, error) {
	space, err := metric.New(params.Space)
	if err != nil {
		return nil, fmt.Errorf("spattplus: %w: %v", ErrUnsupportedMetric, err)
	}
	if params.M == 0 {
		return nil, fmt.Errorf("spattplus: degenerate M=0")
	}
	return &Builder{
		params:  params,
		space:   space,
		windows: params.windowSchedule(),
		state:   stateParameterized,
		log:     spattlog.New("builder"),
	}, nil
}

// Init allocates the graph store, order table and traversal engine and moves
// the builder from Parameterized to Growing without inserting any point,
// for callers that don't know the final corpus size up front (spec §4.5's
// per-insertion loop is, by construction, independent of batch size — a
// drop-directory ingestion pipeline calls Init once and then Insert per
// arriving document instead of calling BuildIndex with a fixed VectorStore).
func (b *Builder) Init(vecs VectorStore, runtime BuildRuntime) error {
	if b.state != stateParameterized {
		return ErrBadState
	}
	if runtime.Threads < 1 {
		runtime.Threads = 1
	}
	b.runtime = runtime
	b.vecs = vecs

	store, err := graphstore.New(b.params.NMax, b.params.W, b.params.M)
	if err != nil {
		return fmt.Errorf("spattplus: %w: %v", ErrAllocation, err)
	}
	b.store = store
	b.order = ordertable.New()
	b.locks = synclocks.New(b.params.NMax)
	b.pool = bitset.NewPool(int(b.params.NMax))
	b.engine = traversal.New(store, b.space, vectorSourceAdapter{vecs}, b.pool, b.locks)
	b.state = stateGrowing

	b.log.Infof("init: NMax=%d W=%d M=%d b=%d efc=%d threads=%d", b.params.NMax, b.params.W, b.params.M, b.params.B, runtime.EfConstruction, runtime.Threads)
	return nil
}

// Insert adds a single already-vectorized point to a Growing builder. vecs
// passed to Init (or BuildIndex) must already resolve label's vector before
// Insert is called — callers streaming from a drop directory append to
// their VectorStore first, then call Insert with the new label.
func (b *Builder) Insert(label uint32) error {
	if b.state != stateGrowing {
		return ErrBadState
	}
	if label >= b.params.NMax {
		return fmt.Errorf("spattplus: %w: label=%d NMax=%d", ErrCapacity, label, b.params.NMax)
	}
	return b.addPoint(label)
}

// BuildIndex streams every point in vecs through incremental insertion,
// spreading the work across runtime.Threads workers (spec §4.5
// "Parallelism"). It is fatal if vecs.Len() exceeds the builder's NMax.
func (b *Builder) BuildIndex(vecs VectorStore, runtime BuildRuntime) error {
	n := vecs.Len()
	if uint32(n) > b.params.NMax {
		return fmt.Errorf("spattplus: %w: N=%d > NMax=%d", ErrCapacity, n, b.params.NMax)
	}
	if err := b.Init(vecs, runtime); err != nil {
		return err
	}

	order := rand.New(rand.NewSource(1)).Perm(n)

	var wg sync.WaitGroup
	var next int64 = -1
	var processed int64
	var firstErr atomic.Value // error
	for w := 0; w < runtime.Threads; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := atomic.AddInt64(&next, 1)
				if i >= int64(n) {
					return
				}
				if err := b.Insert(uint32(order[i])); err != nil {
					firstErr.CompareAndSwap(nil, err)
					return
				}
				if p := atomic.AddInt64(&processed, 1); p%1000 == 0 {
					b.log.Infof("processed %d/%d", p, n)
				}
			}
		}()
	}
	wg.Wait()
	if v := firstErr.Load(); v != nil {
		return v.(error)
	}
	status := b.Status(0)
	b.log.Infof("build complete: dist_computations=%d hops=%d avg_degree=%v", status.DistComputations, status.Hops, status.AvgDegree)
	return nil
}

// addPoint runs the layer-growth protocol followed by the per-insertion
// search/prune loop (spec §4.5).
func (b *Builder) addPoint(label uint32) error {
	b.log.Debugf("AddPoint: %d", label)
	maxLevel, isFirst, err := b.grow(label)
	if err != nil {
		return err
	}
	if isFirst {
		b.order.Insert(label)
		return nil
	}

	query := b.vecs.VecOf(label)
	tmpLinklist := make([][]uint32, maxLevel+1)
	var prevLayerAllc []traversal.Candidate

	for l := maxLevel; l >= 0; l-- {
		halfW := int(b.params.windowAt(l) / 2) // window[l] = 2*b^l, half_w = b^l
		if halfW < 1 {
			halfW = 1
		}
		lo, hi, entryLabels := b.order.WindowEndpoints(label, halfW)
		filter := traversal.Filter{L: lo, U: hi}

		filtered := filterByWindow(prevLayerAllc, filter)

		var beam []traversal.Candidate
		if len(filtered) > int(b.params.M) {
			beam = filtered
		} else {
			entries := entryLabels
			if len(entries) == 0 {
				entries = []uint32{label}
			}
			cands, counters := b.engine.Search(traversal.Params{
				Entries:   entries,
				Query:     query,
				Filter:    filter,
				Layers:    traversal.LayerRange{Lo: l, Hi: maxLevel},
				Ef:        b.runtime.EfConstruction,
				Ignore:    label,
				HasIgnore: true,
				Build:     true,
			})
			atomic.AddUint64(&b.distComputations, counters.DistComputations)
			atomic.AddUint64(&b.hops, counters.Hops)
			beam = mergeUnique(b.pool, filtered, cands)
		}

		distComps := 0
		pruned := rngPrune(b.space, b.vecs.VecOf, beam, int(b.params.M)/2, &distComps)
		atomic.AddUint64(&b.distComputations, uint64(distComps))
		tmpLinklist[l] = labelsOf(pruned)
		prevLayerAllc = beam
	}

	b.locks.Lock(label)
	for l := 0; l <= maxLevel; l++ {
		if b.store.Count(label, l) != 0 {
			b.locks.Unlock(label)
			return fmt.Errorf("spattplus: label %d layer %d was not zero before first write", label, l)
		}
		b.store.WriteList(label, l, tmpLinklist[l])
	}
	b.locks.Unlock(label)

	for l := 0; l <= maxLevel; l++ {
		halfW := int(b.params.windowAt(l) / 2)
		if halfW < 1 {
			halfW = 1
		}
		for _, u := range tmpLinklist[l] {
			if u == label {
				return ErrSelfReference
			}
			if err := b.reciprocate(label, u, l, halfW, query); err != nil {
				return err
			}
		}
	}

	b.order.Insert(label)
	return nil
}

// reciprocate appends label to u's adjacency list at layer l, re-pruning if
// the list is already full (spec §4.5, final paragraph of "Per-insertion
// loop").
func (b *Builder) reciprocate(label, u uint32, l, halfW int, selfVec []float32) error {
	b.locks.Lock(u)
	defer b.locks.Unlock(u)

	cnt := b.store.Count(u, l)
	if cnt < int(b.params.M) {
		b.store.SetNeighbor(u, l, cnt, label)
		b.store.SetCount(u, l, cnt+1)
		return nil
	}

	uVec := b.vecs.VecOf(u)
	nnAllc := make([]traversal.Candidate, 0, cnt+1)
	for i := 0; i < cnt; i++ {
		w := b.store.Neighbor(u, l, i)
		nnAllc = append(nnAllc, traversal.Candidate{Label: w, Dist: b.space.Distance(uVec, b.vecs.VecOf(w))})
	}
	nnAllc = append(nnAllc, traversal.Candidate{Label: label, Dist: b.space.Distance(uVec, selfVec)})

	lo, hi, _ := b.order.WindowEndpoints(u, halfW)
	restricted := filterByWindow(nnAllc, traversal.Filter{L: lo, U: hi})
	distComps := 0
	pruned := rngPrune(b.space, b.vecs.VecOf, restricted, int(b.params.M), &distComps)
	atomic.AddUint64(&b.distComputations, uint64(distComps))
	b.store.WriteList(u, l, labelsOf(pruned))
	return nil
}

// grow increments the population counter and performs the layer-growth
// protocol under the single growth mutex (spec §4.5 "Layer-growth
// protocol"). The copy from the old top layer is performed here, under
// growthMu, while every writer to that layer also takes a per-label lock
// for the duration of its own write -- see Builder's use of synclocks.Table,
// which closes the race spec §9 warns against (option (a): acquire each
// per-label lock during the copy).
func (b *Builder) grow(label uint32) (maxLevel int, isFirst bool, err error) {
	b.growthMu.Lock()
	defer b.growthMu.Unlock()

	b.curNum++
	if b.curNum == 1 {
		return 0, true, nil
	}
	// Growth stops for good once current_max_layer reaches W: the top layer
	// then absorbs every further insertion directly, rather than raising
	// ErrOverflow on every insertion past window[W]. A window schedule that
	// undershoots the eventual population is a sizing choice, not a fatal
	// condition on its own, so no path here returns ErrOverflow.
	//
	// At most one layer is added per insertion, matching the reference's
	// single `if` here. A degenerate window[] schedule (b<=1, where
	// window[l]<=2 for every l) can leave several consecutive thresholds
	// already satisfied; those extra layers are picked up one at a time on
	// later insertions rather than all at once here.
	if b.currentMaxLayer < int(b.params.W) && b.curNum > b.windows[b.currentMaxLayer] {
		old := b.currentMaxLayer
		b.currentMaxLayer++
		b.log.Infof("layer copy triggered: cur_num=%d window[%d]=%d -> layer %d", b.curNum, old, b.windows[old], b.currentMaxLayer)
		for v := uint32(0); v < b.params.NMax; v++ {
			b.locks.Lock(v)
			b.store.CopyLabelLayer(v, b.currentMaxLayer, old)
			b.locks.Unlock(v)
		}
	}
	return b.currentMaxLayer, false, nil
}

func mergeUnique(pool *bitset.Pool, a, b []traversal.Candidate) []traversal.Candidate {
	seen := pool.Get()
	defer pool.Return(seen)
	seen.Clear()
	out := make([]traversal.Candidate, 0, len(a)+len(b))
	for _, c := range a {
		if !seen.Test(c.Label) {
			seen.Set(c.Label)
			out = append(out, c)
		}
	}
	for _, c := range b {
		if !seen.Test(c.Label) {
			seen.Set(c.Label)
			out = append(out, c)
		}
	}
	return out
}

// Params returns the IndexParameters this builder was constructed with, for
// collaborators (ingestion pipelines, CLI stats commands) that need NMax/W/M
// without threading them through separately.
func (b *Builder) Params() IndexParameters { return b.params }

// Searcher returns a ready-to-query Searcher over the just-built graph,
// without requiring a Save/Load round trip first (spec §8 scenario S3
// queries the index it just built).
func (b *Builder) Searcher() (*Searcher, error) {
	if b.state != stateGrowing {
		return nil, ErrBadState
	}
	return newSearcher(b.params, b.space, b.vecs, b.store, b.order, b.currentMaxLayer), nil
}

// Status returns the accumulated build-time runtime counters (spec §3,
// §4.5), including the average out-degree per layer.
func (b *Builder) Status(elapsed time.Duration) RuntimeStatus {
	avg := make([]float64, b.currentMaxLayer+1)
	n := b.order.Len()
	for l := range avg {
		if n == 0 {
			continue
		}
		var total int
		for v := uint32(0); v < b.params.NMax && int(v) < n; v++ {
			total += b.store.Count(v, l)
		}
		avg[l] = float64(total) / float64(n)
	}
	return RuntimeStatus{
		RunTime:          elapsed,
		DistComputations: atomic.LoadUint64(&b.distComputations),
		Hops:             atomic.LoadUint64(&b.hops),
		AvgDegree:        avg,
	}
}
