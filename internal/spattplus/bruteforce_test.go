package spattplus

import (
	"sort"

	"github.com/screenager/spattplus/internal/metric"
)

// memStore is the in-test VectorStore: a plain slice of base vectors,
// standing in for the external collaborator spec §6 describes.
type memStore [][]float32

func (m memStore) VecOf(label uint32) []float32 { return m[label] }
func (m memStore) Len() int                     { return len(m) }

// bruteForceWindowed computes the exact k nearest labels to q inside [l,u],
// grounded on the gtmanager-shaped ground-truth generator the original
// benchmark uses for recall accounting (spec §1 "ground-truth generation"
// is an out-of-core collaborator; this is the minimal stand-in needed to
// exercise recall in tests).
func bruteForceWindowed(vecs memStore, q []float32, l, u uint32, k int, space metric.Space) []uint32 {
	type scored struct {
		label uint32
		dist  float32
	}
	var all []scored
	for label := uint32(0); label < uint32(len(vecs)); label++ {
		if label < l || label > u {
			continue
		}
		all = append(all, scored{label, space.Distance(q, vecs[label])})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].dist < all[j].dist })
	if len(all) > k {
		all = all[:k]
	}
	out := make([]uint32, len(all))
	for i, s := range all {
		out[i] = s.label
	}
	return out
}

func recallAt(got, want []uint32) float64 {
	wantSet := make(map[uint32]bool, len(want))
	for _, w := range want {
		wantSet[w] = true
	}
	hit := 0
	for _, g := range got {
		if wantSet[g] {
			hit++
		}
	}
	if len(want) == 0 {
		return 1
	}
	return float64(hit) / float64(len(want))
}
