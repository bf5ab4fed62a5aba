package traversal

import (
	"testing"

	"github.com/screenager/spattplus/internal/bitset"
	"github.com/screenager/spattplus/internal/graphstore"
	"github.com/screenager/spattplus/internal/metric"
)

type fakeVectors [][]float32

func (f fakeVectors) Vector(label uint32) []float32 { return f[label] }

type noopLocks struct{}

func (noopLocks) Lock(uint32)   {}
func (noopLocks) Unlock(uint32) {}

// buildLineGraph places points at (i,0) for i in [0,n) and wires a simple
// chain graph at layer 0 (i <-> i+1), mirroring spec scenario S1's layout.
func buildLineGraph(t *testing.T, n int) (*graphstore.Store, fakeVectors) {
	t.Helper()
	store, err := graphstore.New(uint32(n), 0, 4)
	if err != nil {
		t.Fatalf("graphstore.New: %v", err)
	}
	vecs := make(fakeVectors, n)
	for i := 0; i < n; i++ {
		vecs[i] = []float32{float32(i), 0}
	}
	for i := 0; i < n; i++ {
		var nbrs []uint32
		if i > 0 {
			nbrs = append(nbrs, uint32(i-1))
		}
		if i < n-1 {
			nbrs = append(nbrs, uint32(i+1))
		}
		store.WriteList(uint32(i), 0, nbrs)
	}
	return store, vecs
}

func TestSearchFindsNearestInRange(t *testing.T) {
	store, vecs := buildLineGraph(t, 8)
	defer store.Close()
	space, _ := metric.New("l2")
	pool := bitset.NewPool(8)
	eng := New(store, space, vecs, pool, noopLocks{})

	q := []float32{3.1, 0}
	results, _ := eng.Search(Params{
		Entries: []uint32{3},
		Query:   q,
		Filter:  Filter{L: 0, U: 7},
		Layers:  LayerRange{Lo: 0, Hi: 0},
		Ef:      3,
	})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	want := map[uint32]bool{2: true, 3: true, 4: true}
	for _, r := range results {
		if !want[r.Label] {
			t.Errorf("unexpected result label %d", r.Label)
		}
	}
}

func TestSearchRespectsFilter(t *testing.T) {
	store, vecs := buildLineGraph(t, 8)
	defer store.Close()
	space, _ := metric.New("l2")
	pool := bitset.NewPool(8)
	eng := New(store, space, vecs, pool, noopLocks{})

	q := []float32{3.1, 0}
	results, _ := eng.Search(Params{
		Entries: []uint32{6},
		Query:   q,
		Filter:  Filter{L: 5, U: 7},
		Layers:  LayerRange{Lo: 0, Hi: 0},
		Ef:      3,
	})
	got := map[uint32]bool{}
	for _, r := range results {
		got[r.Label] = true
		if r.Label < 5 || r.Label > 7 {
			t.Errorf("result %d escaped filter [5,7]", r.Label)
		}
	}
	for _, want := range []uint32{5, 6, 7} {
		if !got[want] {
			t.Errorf("expected label %d in results, got %v", want, results)
		}
	}
}

func TestSearchIgnoresSelfAtBuild(t *testing.T) {
	store, vecs := buildLineGraph(t, 5)
	defer store.Close()
	space, _ := metric.New("l2")
	pool := bitset.NewPool(5)
	eng := New(store, space, vecs, pool, noopLocks{})

	results, _ := eng.Search(Params{
		Entries:   []uint32{2},
		Query:     vecs[2],
		Filter:    Filter{L: 0, U: 4},
		Layers:    LayerRange{Lo: 0, Hi: 0},
		Ef:        5,
		Ignore:    2,
		HasIgnore: true,
		Build:     true,
	})
	for _, r := range results {
		if r.Label == 2 {
			t.Fatal("ignored label leaked into results")
		}
	}
}

func TestSearchEmptyEntriesReturnsNil(t *testing.T) {
	store, vecs := buildLineGraph(t, 3)
	defer store.Close()
	space, _ := metric.New("l2")
	pool := bitset.NewPool(3)
	eng := New(store, space, vecs, pool, noopLocks{})

	results, _ := eng.Search(Params{
		Entries: nil,
		Query:   []float32{0, 0},
		Filter:  Filter{L: 0, U: 2},
		Layers:  LayerRange{Lo: 0, Hi: 0},
		Ef:      3,
	})
	if results != nil {
		t.Fatalf("expected nil results for empty entry set, got %v", results)
	}
}
