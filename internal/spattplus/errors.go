package spattplus

import "errors"

// Sentinel errors for the fatal conditions spec §7 enumerates. All of them
// abort the in-flight build or load; none is returned from Search, which
// only ever reports recoverable conditions through padded results.
var (
	// ErrUnsupportedMetric is returned when IndexParameters.Space names an
	// unknown metric.
	ErrUnsupportedMetric = errors.New("spattplus: unsupported metric")

	// ErrCapacity is returned when the number of points to build exceeds
	// IndexParameters.NMax.
	ErrCapacity = errors.New("spattplus: point count exceeds NMax")

	// ErrOverflow names a layer-growth request with current_max_layer
	// already at W. The builder does not return it: once the top layer is
	// reached, further insertions are placed there without growing.
	ErrOverflow = errors.New("spattplus: layer growth requested beyond W")

	// ErrSelfReference is returned if a point would be linked to itself.
	ErrSelfReference = errors.New("spattplus: attempted self-link")

	// ErrAllocation is returned when the graph store or a supporting
	// structure cannot be allocated.
	ErrAllocation = errors.New("spattplus: allocation failed")

	// ErrCorrupted is returned when a persisted index fails its size or
	// header checks on load.
	ErrCorrupted = errors.New("spattplus: corrupted index file")

	// ErrBadState is returned when a Builder method is called out of the
	// Fresh -> Parameterized -> Growing -> Saved sequence.
	ErrBadState = errors.New("spattplus: builder used out of sequence")
)
