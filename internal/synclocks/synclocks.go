// Package synclocks provides the fixed-size per-label mutex vector the
// builder and traversal engine share (spec §5: "per_label_mutex[label] —
// guards the adjacency list at every layer for that label"). A vector of
// N_max mutexes is "the simplest correct choice" per spec §9; a striped
// table is the documented alternative for very large N_max, offered here
// via Stripes.
package synclocks

import "sync"

// Table is a fixed-size vector of per-label mutexes.
type Table struct {
	locks []sync.Mutex
}

// New allocates one mutex per label in [0, n).
func New(n uint32) *Table {
	return &Table{locks: make([]sync.Mutex, n)}
}

func (t *Table) Lock(label uint32)   { t.locks[label].Lock() }
func (t *Table) Unlock(label uint32) { t.locks[label].Unlock() }

// Stripes is a striped lock table: labels hash (by modulus) onto a fixed
// number of mutexes, trading contention for memory when N_max is very
// large (spec §9).
type Stripes struct {
	locks []sync.Mutex
}

// NewStripes allocates stripes mutexes shared by all N_max labels.
func NewStripes(stripes uint32) *Stripes {
	if stripes == 0 {
		stripes = 1
	}
	return &Stripes{locks: make([]sync.Mutex, stripes)}
}

func (s *Stripes) Lock(label uint32)   { s.locks[label%uint32(len(s.locks))].Lock() }
func (s *Stripes) Unlock(label uint32) { s.locks[label%uint32(len(s.locks))].Unlock() }
