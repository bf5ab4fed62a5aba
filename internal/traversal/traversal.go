// Package traversal implements the single "search candidates" routine
// shared by build and query (spec §4.4, component C4). It is ported
// directly from original_source/src/spattplus/spattplusindex.hh's
// SearchCandidates<is_build> — one templated routine in the original,
// expressed here as one function taking a Build flag, since Go has no
// compile-time bool template parameter worth emulating for a single call
// site per mode.
package traversal

import (
	"container/heap"
	"sort"

	"github.com/screenager/spattplus/internal/bitset"
	"github.com/screenager/spattplus/internal/graphstore"
	"github.com/screenager/spattplus/internal/metric"
)

// VectorSource looks up the base vector for a label. Vector storage is
// external to the core (spec §1); this is the "vec_of" operation from §6.
type VectorSource interface {
	Vector(label uint32) []float32
}

// Locker guards a label's adjacency lists across all layers. Acquired only
// in Build mode (spec §4.4 step 4).
type Locker interface {
	Lock(label uint32)
	Unlock(label uint32)
}

// Filter is the closed attribute range [L, U] a candidate must lie in.
type Filter struct {
	L, U uint32
}

// Contains reports whether label is inside the filter.
func (f Filter) Contains(label uint32) bool { return label >= f.L && label <= f.U }

// LayerRange is the closed, inclusive range of graph layers to scan.
type LayerRange struct {
	Lo, Hi int
}

// Candidate is a (distance, label) pair.
type Candidate struct {
	Dist  float32
	Label uint32
}

// Counters accumulates the per-call runtime statistics spec §3 calls for:
// distance-computation count and hop count.
type Counters struct {
	DistComputations uint64
	Hops             uint64
}

// Params bundles a single traversal call's inputs (spec §4.4).
type Params struct {
	Entries []uint32
	Query   []float32
	Filter  Filter
	Layers  LayerRange
	Ef      int
	// Ignore, when HasIgnore is set, is pre-marked visited before seeding —
	// used at build time so a point never links to itself.
	Ignore    uint32
	HasIgnore bool
	Build     bool
}

// Engine runs SearchCandidates over a fixed graph store, metric space and
// vector source. One Engine is shared by every concurrent build worker and
// every concurrent searcher — it holds no per-call mutable state itself.
type Engine struct {
	store *graphstore.Store
	space metric.Space
	vecs  VectorSource
	pool  *bitset.Pool
	locks Locker // nil unless the engine is ever used in Build mode
	m     uint32
}

// New creates a traversal Engine. locks may be nil if Search will only ever
// be called with Params.Build == false.
func New(store *graphstore.Store, space metric.Space, vecs VectorSource, pool *bitset.Pool, locks Locker) *Engine {
	return &Engine{store: store, space: space, vecs: vecs, pool: pool, locks: locks, m: store.M()}
}

// Search runs the shared beam-search routine and returns up to Ef
// (distance, label) pairs sorted ascending by distance (closest first),
// together with the distance/hop counts it accumulated.
func (e *Engine) Search(p Params) ([]Candidate, Counters) {
	var status Counters

	visited := e.pool.Get()
	defer e.pool.Return(visited)

	if p.Build {
		visited.Clear()
	} else {
		visited.ClearRange(p.Filter.L, p.Filter.U)
	}
	if p.Build && p.HasIgnore {
		visited.Set(p.Ignore)
	}

	// candidates: min-heap by distance (frontier to expand, nearest first).
	// results: max-heap by distance, bounded to Ef (worst on top for O(1) trim).
	candidates := &minHeap{}
	results := &maxHeap{}

	for _, ep := range p.Entries {
		if visited.Test(ep) {
			continue
		}
		d := e.space.Distance(p.Query, e.vecs.Vector(ep))
		status.DistComputations++
		heap.Push(candidates, Candidate{Dist: d, Label: ep})
		heap.Push(results, Candidate{Dist: d, Label: ep})
		visited.Set(ep)
	}

	if len(*results) == 0 {
		return nil, status
	}
	resMaxDist := (*results)[0].Dist

	for candidates.Len() > 0 {
		c := (*candidates)[0]
		shouldStop := c.Dist > resMaxDist
		if p.Build {
			shouldStop = shouldStop && len(*results) >= p.Ef
		}
		if shouldStop {
			break
		}
		heap.Pop(candidates)
		status.Hops++

		if p.Build {
			e.locks.Lock(c.Label)
		}

		neighborCnt := 0
		for layer := p.Layers.Hi; layer >= p.Layers.Lo; layer-- {
			if neighborCnt >= int(e.m) {
				break
			}
			nbrs := e.store.Neighbors(c.Label, layer)
			sawOutOfWindow := false
			for _, nn := range nbrs {
				if neighborCnt >= int(e.m) {
					break
				}
				if !p.Filter.Contains(nn) {
					sawOutOfWindow = true
					continue
				}
				if visited.Test(nn) {
					continue
				}
				visited.Set(nn)
				d := e.space.Distance(p.Query, e.vecs.Vector(nn))
				status.DistComputations++
				neighborCnt++

				if len(*results) < p.Ef || d < resMaxDist {
					heap.Push(candidates, Candidate{Dist: d, Label: nn})
					heap.Push(results, Candidate{Dist: d, Label: nn})
					if len(*results) > p.Ef {
						heap.Pop(results)
					}
					resMaxDist = (*results)[0].Dist
				}
			}
			if !p.Build && !sawOutOfWindow {
				// The whole layer was inside the window: the window has
				// been fully observed, no need to descend further (spec
				// §4.4's cross-layer policy, query mode only).
				break
			}
		}

		if p.Build {
			e.locks.Unlock(c.Label)
		}
	}

	out := make([]Candidate, len(*results))
	copy(out, *results)
	sort.Slice(out, func(i, j int) bool { return out[i].Dist < out[j].Dist })
	return out, status
}

// minHeap orders Candidates ascending by distance — the frontier to expand.
type minHeap []Candidate

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].Dist < h[j].Dist }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(Candidate)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// maxHeap orders Candidates descending by distance — bounded to Ef so the
// worst result is always on top for O(1) eviction.
type maxHeap []Candidate

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].Dist > h[j].Dist }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) { *h = append(*h, x.(Candidate)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
