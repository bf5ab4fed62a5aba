// Package spattplus implements component C5, the windowed multi-layer
// proximity-graph index itself: Builder drives incremental insertion over
// internal/traversal and internal/graphstore, Searcher answers range-filtered
// nearest-neighbour queries, and both share the on-disk persistence format.
//
// Grounded on original_source/src/spattplus/{spattplusbuilder.hh,
// spattplusindex.hh,spattplussearcher.hh}; adapted from the from-scratch
// construction/search loop in the teacher's internal/hnsw package.
package spattplus
