package spattplus

import (
	"testing"

	"github.com/screenager/spattplus/internal/metric"
	"github.com/screenager/spattplus/internal/traversal"
)

func TestRNGPruneZeroCap(t *testing.T) {
	space, _ := metric.New("l2")
	cands := []traversal.Candidate{{Label: 1, Dist: 1}, {Label: 2, Dist: 2}}
	got := rngPrune(space, func(uint32) []float32 { return nil }, cands, 0, nil)
	if len(got) != 0 {
		t.Fatalf("cap 0 should prune to empty, got %v", got)
	}
}

func TestRNGPruneCapOne(t *testing.T) {
	space, _ := metric.New("l2")
	cands := []traversal.Candidate{{Label: 2, Dist: 2}, {Label: 1, Dist: 1}}
	got := rngPrune(space, func(uint32) []float32 { return nil }, cands, 1, nil)
	if len(got) != 1 || got[0].Label != 1 {
		t.Fatalf("cap 1 should keep closest only, got %v", got)
	}
}

func TestRNGPruneShadowing(t *testing.T) {
	// Point 2 sits almost on top of point 1 (much closer to it than to the
	// query) so it is shadowed and pruned; point 3 sits off-axis, far
	// enough from point 1 that it survives even though it is the farthest
	// from the query.
	vecs := map[uint32][]float32{
		1: {1, 0},
		2: {1.1, 0},
		3: {0, 10},
	}
	space, _ := metric.New("l2")
	q := []float32{0, 0}
	cands := []traversal.Candidate{
		{Label: 1, Dist: space.Distance(q, vecs[1])},
		{Label: 2, Dist: space.Distance(q, vecs[2])},
		{Label: 3, Dist: space.Distance(q, vecs[3])},
	}
	got := rngPrune(space, func(l uint32) []float32 { return vecs[l] }, cands, 2, nil)
	if len(got) != 2 {
		t.Fatalf("expected 2 survivors, got %d: %v", len(got), got)
	}
	labels := map[uint32]bool{got[0].Label: true, got[1].Label: true}
	if !labels[1] || !labels[3] {
		t.Fatalf("expected {1,3} to survive shadowing, got %v", got)
	}
}

func TestRNGPruneCountsDistComputations(t *testing.T) {
	vecs := map[uint32][]float32{
		1: {1, 0},
		2: {1.1, 0},
		3: {0, 10},
	}
	space, _ := metric.New("l2")
	q := []float32{0, 0}
	cands := []traversal.Candidate{
		{Label: 1, Dist: space.Distance(q, vecs[1])},
		{Label: 2, Dist: space.Distance(q, vecs[2])},
		{Label: 3, Dist: space.Distance(q, vecs[3])},
	}
	var distComps int
	rngPrune(space, func(l uint32) []float32 { return vecs[l] }, cands, 2, &distComps)
	if distComps == 0 {
		t.Fatalf("expected pairwise distance checks against accepted neighbours to be counted, got 0")
	}
}
