package spattplus

import (
	"sort"

	"github.com/screenager/spattplus/internal/metric"
	"github.com/screenager/spattplus/internal/traversal"
)

// rngPrune is the heuristic neighbour-pruning rule of spec §4.5.RNG, ported
// from PruneByHeuristic in original_source/src/spattplus/spattplusbuilder.hh.
// cands holds (distance-to-target, label) pairs already measured against
// whatever point is being pruned for; vecOf resolves a candidate's own
// vector so pairwise distances between accepted neighbours can be checked.
//
// Candidates are walked in ascending distance order; b is accepted iff for
// every already-accepted a, d(a,b) >= d(target,b) — b is not "shadowed" by
// a closer, already-kept neighbour. The general loop already produces the
// spec's special cases (cap 0 -> empty, cap 1 -> first candidate only)
// without a separate branch.
//
// distComps, if non-nil, is incremented once per pairwise distance computed
// between already-accepted neighbours, matching the reference's
// status_.dist_computation_++ inside the same loop.
func rngPrune(space metric.Space, vecOf func(uint32) []float32, cands []traversal.Candidate, cap int, distComps *int) []traversal.Candidate {
	if cap <= 0 || len(cands) == 0 {
		return nil
	}
	sorted := make([]traversal.Candidate, len(cands))
	copy(sorted, cands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Dist < sorted[j].Dist })

	accepted := make([]traversal.Candidate, 0, cap)
	for _, b := range sorted {
		if len(accepted) >= cap {
			break
		}
		keep := true
		for _, a := range accepted {
			if distComps != nil {
				*distComps++
			}
			if space.Distance(vecOf(a.Label), vecOf(b.Label)) < b.Dist {
				keep = false
				break
			}
		}
		if keep {
			accepted = append(accepted, b)
		}
	}
	return accepted
}

func labelsOf(cands []traversal.Candidate) []uint32 {
	out := make([]uint32, len(cands))
	for i, c := range cands {
		out[i] = c.Label
	}
	return out
}

func filterByWindow(cands []traversal.Candidate, f traversal.Filter) []traversal.Candidate {
	out := cands[:0:0]
	for _, c := range cands {
		if f.Contains(c.Label) {
			out = append(out, c)
		}
	}
	return out
}
