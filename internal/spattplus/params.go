package spattplus

import "time"

// IndexParameters are frozen at build time and persisted with the index
// (spec §3, §6).
type IndexParameters struct {
	NMax  uint32 // capacity in points
	W     uint32 // top layer index; layers are 0..W
	M     uint32 // per-layer out-degree cap
	B     uint32 // window base (local_M)
	Space string // "l2", "ip" or "cos"
}

// windowAt returns window[l] = 2 * B^l, the population threshold that
// triggers growth past layer l (spec §3).
func (p IndexParameters) windowAt(l int) uint64 {
	w := uint64(2)
	for i := 0; i < l; i++ {
		w *= uint64(p.B)
	}
	return w
}

// windowSchedule returns window[0..W] in order.
func (p IndexParameters) windowSchedule() []uint64 {
	out := make([]uint64, p.W+1)
	for l := range out {
		out[l] = p.windowAt(l)
	}
	return out
}

// BuildRuntime configures a single BuildIndex call (spec §4.5).
type BuildRuntime struct {
	EfConstruction int
	Threads        int
}

// SearchParameters configures a single Search call (spec §6).
type SearchParameters struct {
	Efs       int
	K         int
	IsDynamic bool
	LayerLo   int // used only when !IsDynamic
	LayerHi   int
}

// RuntimeStatus is the counters surfaced to collaborators after a build or
// search call (spec §3, §6).
type RuntimeStatus struct {
	RunTime          time.Duration
	DistComputations uint64
	Hops             uint64
	// AvgDegree holds the average out-degree per layer after a build,
	// index 0..current_max_layer. Left nil after a search call.
	AvgDegree []float64
}

// Result is a single (label, distance) pair in a search result. A result
// set shorter than k is padded with sentinel entries (Label == NMax, spec
// §4.5 and §7's "Result-short" policy).
type Result struct {
	Label uint32
	Dist  float32
}

// IsSentinel reports whether r is a padding entry rather than a real match.
func (r Result) IsSentinel(nMax uint32) bool { return r.Label == nMax }
