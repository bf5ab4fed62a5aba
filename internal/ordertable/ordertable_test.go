package ordertable

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestInsertAndWindowEndpoints(t *testing.T) {
	tb := New()
	for i := uint32(0); i < 20; i++ {
		tb.Insert(i * 10) // labels 0,10,...,190
	}
	if tb.Len() != 20 {
		t.Fatalf("Len() = %d, want 20", tb.Len())
	}

	lo, hi, entries := tb.WindowEndpoints(95, 2)
	if lo != 80 || hi != 120 {
		t.Errorf("window(95,2) = [%d,%d], want [80,120]", lo, hi)
	}
	if len(entries) == 0 || len(entries) > 3 {
		t.Errorf("expected 1-3 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e < lo || e > hi {
			t.Errorf("entry %d outside window [%d,%d]", e, lo, hi)
		}
	}
}

func TestWindowEndpointsWholeTable(t *testing.T) {
	tb := New()
	for i := uint32(0); i < 5; i++ {
		tb.Insert(i)
	}
	lo, hi, entries := tb.WindowEndpoints(2, 100)
	if lo != 0 || hi != 4 {
		t.Errorf("expected whole-table window [0,4], got [%d,%d]", lo, hi)
	}
	if len(entries) != 1 || entries[0] != 0 {
		t.Errorf("expected single entry = min label, got %v", entries)
	}
}

func TestFilterCandidates(t *testing.T) {
	tb := New()
	for i := uint32(0); i < 100; i++ {
		tb.Insert(i)
	}
	cands := []uint32{1, 10, 50, 90, 99}
	filtered := tb.FilterCandidates(cands, 50, 10)
	for _, c := range filtered {
		if c < 40 || c > 60 {
			t.Errorf("candidate %d leaked outside window", c)
		}
	}
	want := map[uint32]bool{50: true}
	for _, c := range filtered {
		if !want[c] {
			t.Errorf("unexpected candidate %d survived filter", c)
		}
	}
}

func TestCardinality(t *testing.T) {
	tb := New()
	for _, l := range []uint32{1, 3, 5, 7, 9, 11} {
		tb.Insert(l)
	}
	if got := tb.Cardinality(3, 9); got != 4 { // 3,5,7,9
		t.Errorf("Cardinality(3,9) = %d, want 4", got)
	}
	if got := tb.Cardinality(4, 6); got != 1 { // only 5
		t.Errorf("Cardinality(4,6) = %d, want 1", got)
	}
	if got := tb.Cardinality(100, 200); got != 0 {
		t.Errorf("Cardinality(100,200) = %d, want 0", got)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	tb := New()
	rng := rand.New(rand.NewSource(3))
	seen := map[uint32]bool{}
	for len(seen) < 200 {
		l := uint32(rng.Intn(10000))
		if !seen[l] {
			seen[l] = true
			tb.Insert(l)
		}
	}

	var buf bytes.Buffer
	if err := tb.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	tb2, err := Deserialize(&buf)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if tb2.Len() != tb.Len() {
		t.Fatalf("round-trip length mismatch: %d vs %d", tb2.Len(), tb.Len())
	}
	for l := range seen {
		lo, hi, _ := tb2.WindowEndpoints(l, 0)
		if lo != l || hi != l {
			t.Errorf("label %d missing after round-trip (window = [%d,%d])", l, lo, hi)
		}
	}
}

func TestBalancedDepth(t *testing.T) {
	tb := New()
	for i := uint32(0); i < 10000; i++ {
		tb.Insert(i)
	}
	if tb.root.height > 32 {
		t.Errorf("tree height %d too large for 10000 sequential inserts — rebalancing broken", tb.root.height)
	}
}
