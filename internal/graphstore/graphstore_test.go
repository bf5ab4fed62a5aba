package graphstore

import "testing"

func TestWriteAndReadNeighbors(t *testing.T) {
	s, err := New(100, 2, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	s.WriteList(7, 1, []uint32{3, 9, 1})
	if got := s.Count(7, 1); got != 3 {
		t.Fatalf("Count = %d, want 3", got)
	}
	if got := s.Neighbors(7, 1); !equal(got, []uint32{3, 9, 1}) {
		t.Fatalf("Neighbors = %v, want [3 9 1]", got)
	}
	// Untouched slots remain zero-initialized.
	if got := s.Count(8, 1); got != 0 {
		t.Fatalf("Count(8,1) = %d, want 0 (zero-init)", got)
	}
}

func TestCopyLabelLayer(t *testing.T) {
	s, err := New(10, 3, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	s.WriteList(2, 1, []uint32{5, 6})
	s.WriteList(3, 1, []uint32{})
	s.CopyLabelLayer(2, 2, 1)
	s.CopyLabelLayer(3, 2, 1)

	if got := s.Neighbors(2, 2); !equal(got, []uint32{5, 6}) {
		t.Fatalf("after copy, label 2 layer 2 = %v, want [5 6]", got)
	}
	if got := s.Count(3, 2); got != 0 {
		t.Fatalf("label 3 had count 0 at src, should stay 0 at dst, got %d", got)
	}
}

func TestLoadRawSizeMismatch(t *testing.T) {
	if _, err := LoadRaw(make([]uint32, 10), 100, 2, 4); err == nil {
		t.Fatal("expected error for mismatched buffer size")
	}
}

func equal(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
