// Package ordertable implements the order-preserving index over inserted
// attribute labels (spec §3, §4.2, component C2). The reference
// implementation (original_source/src/spattplus/order_table.hh) is a
// weight-balanced tree (ygg's WBTree) guarded by a single mutex per call —
// not per-node locking. This is a size-augmented AVL tree guarded the same
// way: every public method takes the table's lock for its whole duration,
// which is enough to give O(log n) window/rank queries under concurrent
// inserters without the complexity of lock-free balancing.
//
// The benchmark this index is built for uses the label itself as the
// attribute (spec §3), so Table is keyed directly on label. A caller
// wanting a distinct attribute column would map attribute -> label
// upstream; the windowed search algorithm only ever needs label order.
package ordertable

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"sync"
)

type node struct {
	label       uint32
	left, right *node
	size        int // size of subtree rooted here, including this node
	height      int
}

func sizeOf(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func heightOf(n *node) int {
	if n == nil {
		return 0
	}
	return n.height
}

func newLeaf(label uint32) *node {
	return &node{label: label, size: 1, height: 1}
}

func (n *node) update() {
	n.size = 1 + sizeOf(n.left) + sizeOf(n.right)
	h := heightOf(n.left)
	if hr := heightOf(n.right); hr > h {
		h = hr
	}
	n.height = h + 1
}

func balanceFactor(n *node) int {
	return heightOf(n.left) - heightOf(n.right)
}

func rotateRight(n *node) *node {
	l := n.left
	n.left = l.right
	l.right = n
	n.update()
	l.update()
	return l
}

func rotateLeft(n *node) *node {
	r := n.right
	n.right = r.left
	r.left = n
	n.update()
	r.update()
	return r
}

func rebalance(n *node) *node {
	n.update()
	bf := balanceFactor(n)
	if bf > 1 {
		if balanceFactor(n.left) < 0 {
			n.left = rotateLeft(n.left)
		}
		return rotateRight(n)
	}
	if bf < -1 {
		if balanceFactor(n.right) > 0 {
			n.right = rotateRight(n.right)
		}
		return rotateLeft(n)
	}
	return n
}

func insert(n *node, label uint32) *node {
	if n == nil {
		return newLeaf(label)
	}
	if label < n.label {
		n.left = insert(n.left, label)
	} else if label > n.label {
		n.right = insert(n.right, label)
	} else {
		return n // already present; labels are inserted exactly once (spec §3)
	}
	return rebalance(n)
}

// Table is the concurrent ordered multiset of inserted labels.
type Table struct {
	mu   sync.Mutex
	root *node
	n    int
	rng  *rand.Rand
}

// New creates an empty order table.
func New() *Table {
	return &Table{rng: rand.New(rand.NewSource(1))}
}

// Insert adds label to the ordered multiset.
func (t *Table) Insert(label uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.root = insert(t.root, label)
	t.n = sizeOf(t.root)
}

// Len returns the number of distinct labels currently inserted.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.n
}

// positionFor returns the 0-indexed position at which center would be
// inserted: the number of currently-inserted labels strictly less than
// center.
func positionFor(n *node, center uint32) int {
	pos := 0
	for n != nil {
		if center <= n.label {
			n = n.left
		} else {
			pos += sizeOf(n.left) + 1
			n = n.right
		}
	}
	return pos
}

// kth returns the 0-indexed k-th smallest label in the table.
func kth(n *node, k int) (uint32, bool) {
	for n != nil {
		left := sizeOf(n.left)
		switch {
		case k < left:
			n = n.left
		case k == left:
			return n.label, true
		default:
			k -= left + 1
			n = n.right
		}
	}
	return 0, false
}

// WindowEndpoints implements spec §4.2's window_endpoints: returns the
// attribute values bounding the half_w window around center and up to 3
// uniformly sampled entry labels from that window. center need not be
// present in the table (during build, the point being inserted has not
// registered yet).
func (t *Table) WindowEndpoints(center uint32, halfW int) (lo, hi uint32, entries []uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.windowEndpointsLocked(center, halfW)
}

func (t *Table) windowEndpointsLocked(center uint32, halfW int) (lo, hi uint32, entries []uint32) {
	if t.n == 0 {
		return 0, 0, nil
	}
	if 2*halfW >= t.n {
		min, _ := kth(t.root, 0)
		max, _ := kth(t.root, t.n-1)
		return min, max, []uint32{min}
	}
	pos := positionFor(t.root, center)
	if pos >= t.n {
		pos = t.n - 1
	}
	posLo := pos - halfW
	if posLo < 0 {
		posLo = 0
	}
	posHi := pos + halfW
	if posHi > t.n-1 {
		posHi = t.n - 1
	}
	lo, _ = kth(t.root, posLo)
	hi, _ = kth(t.root, posHi)

	seen := make(map[uint32]bool, 3)
	span := posHi - posLo + 1
	want := 3
	if span < want {
		want = span
	}
	for i := 0; i < want; i++ {
		idx := posLo + t.rng.Intn(span)
		v, _ := kth(t.root, idx)
		if !seen[v] {
			seen[v] = true
			entries = append(entries, v)
		}
	}
	return lo, hi, entries
}

// FilterCandidates retains only the candidate labels that fall inside the
// window around center (spec §4.2's filter_candidates). Labels are compared
// by value against the window endpoints, matching
// WBTreeOrderTable::GetInWindowCandidates.
func (t *Table) FilterCandidates(cands []uint32, center uint32, halfW int) []uint32 {
	lo, hi, _ := t.WindowEndpoints(center, halfW)
	out := cands[:0:0]
	for _, c := range cands {
		if c >= lo && c <= hi {
			out = append(out, c)
		}
	}
	return out
}

// InWindow reports whether label lies within [lo, hi].
func InWindow(label, lo, hi uint32) bool {
	return label >= lo && label <= hi
}

// Cardinality returns rank(u) - rank(l) + 1, the number of inserted labels
// in [l, u] (spec §4.2's cardinality).
func (t *Table) Cardinality(l, u uint32) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.n == 0 || l > u {
		return 0
	}
	lowIdx, ok := lowerBoundIdx(t.root, l)
	if !ok {
		return 0
	}
	highIdx, ok := upperBoundIdx(t.root, u)
	if !ok || highIdx < lowIdx {
		return 0
	}
	return highIdx - lowIdx + 1
}

// lowerBoundIdx returns the position of the smallest inserted label >= l.
func lowerBoundIdx(n *node, l uint32) (int, bool) {
	pos := -1
	idx := 0
	cur := n
	for cur != nil {
		if cur.label >= l {
			pos = sizeOf(cur.left) + idx
			cur = cur.left
		} else {
			idx += sizeOf(cur.left) + 1
			cur = cur.right
		}
	}
	return pos, pos >= 0
}

// upperBoundIdx returns the position of the largest inserted label <= u.
func upperBoundIdx(n *node, u uint32) (int, bool) {
	pos := -1
	idx := 0
	cur := n
	for cur != nil {
		if cur.label <= u {
			pos = sizeOf(cur.left) + idx
			idx = pos + 1
			cur = cur.right
		} else {
			cur = cur.left
		}
	}
	return pos, pos >= 0
}

// Serialize writes a length-prefixed list of labels in ascending order
// (spec §4.2's serialize).
func (t *Table) Serialize(w io.Writer) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, uint64(t.n)); err != nil {
		return err
	}
	var walkErr error
	var walk func(*node)
	walk = func(n *node) {
		if n == nil || walkErr != nil {
			return
		}
		walk(n.left)
		if walkErr = binary.Write(bw, binary.LittleEndian, n.label); walkErr != nil {
			return
		}
		walk(n.right)
	}
	walk(t.root)
	if walkErr != nil {
		return walkErr
	}
	return bw.Flush()
}

// Deserialize rebuilds the table from the format Serialize writes.
func Deserialize(r io.Reader) (*Table, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("ordertable: read length: %w", err)
	}
	t := New()
	br := bufio.NewReader(r)
	for i := uint64(0); i < n; i++ {
		var label uint32
		if err := binary.Read(br, binary.LittleEndian, &label); err != nil {
			return nil, fmt.Errorf("ordertable: read label %d/%d: %w", i, n, err)
		}
		t.root = insert(t.root, label)
		t.n++
	}
	return t, nil
}
