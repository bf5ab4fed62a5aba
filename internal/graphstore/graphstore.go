// Package graphstore is the flat packed adjacency memory of component C3:
// for every label, (W+1) per-layer slots each holding up to M neighbour ids
// plus a trailing count slot. Offsets are computed the way
// spattplusindex.hh lays them out (elemperlinklist_ = (M+1)*(W+1)), and the
// whole buffer is one allocation — the store owns no per-node pointers, so
// there is nothing to leak on growth and nothing to invalidate on resize
// (there is no resize: capacity is fixed at construction, spec §3).
package graphstore

import "fmt"

// Store is the fixed-capacity packed neighbour-list buffer.
type Store struct {
	buf         []uint32
	alloc       allocation
	nMax        uint32
	w           uint32 // top layer index
	m           uint32 // per-layer out-degree cap
	elemPerList uint32 // M + 1
	stride      uint32 // (W+1) * (M+1), per-label block size
}

// New allocates a store for up to nMax labels, layers 0..w, out-degree cap m.
// The backing buffer is requested in huge/2MB pages where the platform
// supports it (spec §5 Memory) and falls back to a plain slice otherwise.
func New(nMax, w, m uint32) (*Store, error) {
	elemPerList := m + 1
	stride := (w + 1) * elemPerList
	total := uint64(nMax) * uint64(stride)
	if total == 0 {
		return nil, fmt.Errorf("graphstore: degenerate size (nMax=%d, w=%d, m=%d)", nMax, w, m)
	}

	alloc, err := allocateUint32(total)
	if err != nil {
		return nil, fmt.Errorf("graphstore: allocate %d labels: %w", total, err)
	}

	return &Store{
		buf:         alloc.slice,
		alloc:       alloc,
		nMax:        nMax,
		w:           w,
		m:           m,
		elemPerList: elemPerList,
		stride:      stride,
	}, nil
}

// Close releases the backing buffer. It is a no-op for non-mmap-backed
// stores (ordinary Go slices are left for the GC).
func (s *Store) Close() error {
	if s.alloc.release == nil {
		return nil
	}
	return s.alloc.release()
}

// NMax, W, M and ElemPerLinklist expose the frozen parameters used to lay
// out offsets, needed by persistence and by the builder's layer-growth copy.
func (s *Store) NMax() uint32         { return s.nMax }
func (s *Store) W() uint32            { return s.w }
func (s *Store) M() uint32            { return s.m }
func (s *Store) ElemPerLinklist() uint32 { return s.elemPerList }
func (s *Store) Stride() uint32       { return s.stride }

func (s *Store) offset(label uint32, layer int) uint32 {
	return label*s.stride + uint32(layer)*s.elemPerList
}

// Count returns the current neighbour count at (label, layer).
func (s *Store) Count(label uint32, layer int) int {
	return int(s.buf[s.offset(label, layer)+s.m])
}

// SetCount overwrites the neighbour count at (label, layer).
func (s *Store) SetCount(label uint32, layer int, c int) {
	s.buf[s.offset(label, layer)+s.m] = uint32(c)
}

// Neighbor returns the i-th neighbour id at (label, layer).
func (s *Store) Neighbor(label uint32, layer, i int) uint32 {
	return s.buf[s.offset(label, layer)+uint32(i)]
}

// SetNeighbor overwrites the i-th neighbour id at (label, layer).
func (s *Store) SetNeighbor(label uint32, layer, i int, v uint32) {
	s.buf[s.offset(label, layer)+uint32(i)] = v
}

// Neighbors returns a live view of the valid neighbour ids at (label,
// layer) — callers must not retain it past a concurrent write to that slot.
func (s *Store) Neighbors(label uint32, layer int) []uint32 {
	off := s.offset(label, layer)
	n := s.buf[off+s.m]
	return s.buf[off : off+n]
}

// WriteList overwrites the full neighbour list at (label, layer) with ids,
// which must have length <= M. The caller (the builder, under the
// label's lock) is responsible for not exceeding the cap.
func (s *Store) WriteList(label uint32, layer int, ids []uint32) {
	off := s.offset(label, layer)
	for i, id := range ids {
		s.buf[off+uint32(i)] = id
	}
	s.buf[off+s.m] = uint32(len(ids))
}

// CopyLabelLayer copies a single label's (src) block to (dst), used by the
// layer-growth protocol. A label with count 0 at src is skipped -- dst is
// already zero-initialized. Callers that need the copy to be atomic with
// respect to concurrent writers of that label's adjacency (spec §9
// "Layer-growth race") should hold the label's own lock around this call.
func (s *Store) CopyLabelLayer(label uint32, dst, src int) {
	srcOff := s.offset(label, src)
	if s.buf[srcOff+s.m] == 0 {
		return
	}
	dstOff := s.offset(label, dst)
	copy(s.buf[dstOff:dstOff+s.elemPerList], s.buf[srcOff:srcOff+s.elemPerList])
}

// Raw exposes the backing buffer for persistence (spec §4.5's
// "linklistsmemory : N_max * (W+1) * (M+1) labels").
func (s *Store) Raw() []uint32 { return s.buf }

// LoadRaw constructs a Store over a buffer already populated by a loader
// (spec §4.5 LoadIndex), e.g. one read straight off disk.
func LoadRaw(buf []uint32, nMax, w, m uint32) (*Store, error) {
	elemPerList := m + 1
	stride := (w + 1) * elemPerList
	want := uint64(nMax) * uint64(stride)
	if uint64(len(buf)) != want {
		return nil, fmt.Errorf("graphstore: corrupted buffer size: got %d words, want %d", len(buf), want)
	}
	return &Store{
		buf:         buf,
		nMax:        nMax,
		w:           w,
		m:           m,
		elemPerList: elemPerList,
		stride:      stride,
	}, nil
}
