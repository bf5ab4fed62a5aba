package spattplus

import (
	"sort"
	"time"

	"github.com/screenager/spattplus/internal/bitset"
	"github.com/screenager/spattplus/internal/graphstore"
	"github.com/screenager/spattplus/internal/metric"
	"github.com/screenager/spattplus/internal/ordertable"
	"github.com/screenager/spattplus/internal/traversal"
)

// Searcher answers range-filtered nearest-neighbour queries against a built
// or loaded index (spec §4.5 "Searcher").
type Searcher struct {
	params  IndexParameters
	space   metric.Space
	vecs    VectorStore
	store   *graphstore.Store
	order   *ordertable.Table
	pool    *bitset.Pool
	engine  *traversal.Engine
	windows []uint64
	maxLvl  int
}

// newSearcher wires a Searcher over an already-populated graph store and
// order table; used by both Builder.Save round-trips (via Load) and direct
// construction after a build, since search never mutates the graph.
func newSearcher(params IndexParameters, space metric.Space, vecs VectorStore, store *graphstore.Store, order *ordertable.Table, maxLayer int) *Searcher {
	pool := bitset.NewPool(int(params.NMax))
	return &Searcher{
		params:  params,
		space:   space,
		vecs:    vecs,
		store:   store,
		order:   order,
		pool:    pool,
		engine:  traversal.New(store, space, vectorSourceAdapter{vecs}, pool, nil),
		windows: params.windowSchedule(),
		maxLvl:  maxLayer,
	}
}

// Params returns the IndexParameters this Searcher was built or loaded
// with, for callers (CLI output, the TUI) that need NMax to recognize
// sentinel results.
func (s *Searcher) Params() IndexParameters { return s.params }

// Search runs a single range-filtered query (spec §4.5 "Searcher.Search").
func (s *Searcher) Search(q []float32, l, u uint32, sp SearchParameters) ([]Result, RuntimeStatus) {
	start := time.Now()

	if l > u {
		return s.sentinelResults(sp.K), RuntimeStatus{RunTime: time.Since(start)}
	}

	layerLo, layerHi := sp.LayerLo, sp.LayerHi
	if sp.IsDynamic {
		layerLo, layerHi = s.decideLayerRange(l, u)
	}
	if layerHi > s.maxLvl {
		layerHi = s.maxLvl
	}
	if layerLo > layerHi {
		layerLo = layerHi
	}

	entry := l + (u-l)/2
	cands, counters := s.engine.Search(traversal.Params{
		Entries: []uint32{entry},
		Query:   q,
		Filter:  traversal.Filter{L: l, U: u},
		Layers:  traversal.LayerRange{Lo: layerLo, Hi: layerHi},
		Ef:      sp.Efs,
		Build:   false,
	})

	sort.Slice(cands, func(i, j int) bool { return cands[i].Dist < cands[j].Dist })
	if len(cands) > sp.K {
		cands = cands[:sp.K]
	}

	out := make([]Result, 0, sp.K)
	for _, c := range cands {
		out = append(out, Result{Label: c.Label, Dist: c.Dist})
	}
	for len(out) < sp.K {
		out = append(out, Result{Label: s.params.NMax, Dist: 0})
	}

	return out, RuntimeStatus{
		RunTime:          time.Since(start),
		DistComputations: counters.DistComputations,
		Hops:             counters.Hops,
	}
}

func (s *Searcher) sentinelResults(k int) []Result {
	out := make([]Result, k)
	for i := range out {
		out[i] = Result{Label: s.params.NMax}
	}
	return out
}

// decideLayerRange is the dynamic layer-range selector (spec §4.5.LAYER),
// ported from SpattPlusSearcher::DecideLayerRange in
// original_source/src/spattplus/spattplussearcher.hh. The reference
// implementation computes a carefully balanced [l,u] and then forces l back
// to 0 before returning; that override is preserved here verbatim for
// bit-exact parity with the benchmark harness (spec §9 "Open questions" --
// the design notes cannot tell whether it is deliberate or an oversight, but
// either way the behavior is contractual for this index).
func (s *Searcher) decideLayerRange(l, u uint32) (lo, hi int) {
	filterLength := int(u-l) + 1

	cItIdx := sort.Search(len(s.windows), func(i int) bool { return s.windows[i] >= uint64(filterLength) })
	if cItIdx == len(s.windows) || s.windows[cItIdx] > uint64(filterLength) {
		cItIdx--
	}
	if cItIdx < 0 {
		cItIdx = 0
	}

	var newLo, newHi int
	switch {
	case cItIdx == 0:
		newLo, newHi = 0, cItIdx+1
	case cItIdx == int(s.params.W):
		newLo, newHi = cItIdx-1, cItIdx
	default:
		cl, cu := cItIdx-1, cItIdx+1
		fracL := float64(s.windows[cl]) / float64(filterLength)
		cuWindow := s.windows[cu]
		maxN := uint64(s.params.NMax)
		if cuWindow > maxN {
			cuWindow = maxN
		}
		fracU := float64(filterLength) / float64(cuWindow)
		if fracL > fracU {
			newLo, newHi = cl, cItIdx
		} else {
			newLo, newHi = cItIdx, cu
		}
	}

	// Reference quirk: always restart from layer 0 regardless of the
	// computation above.
	newLo = 0
	return newLo, newHi
}
