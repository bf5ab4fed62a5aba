package bitset

import "testing"

func TestSetTestClear(t *testing.T) {
	b := New(200)
	b.Set(5)
	b.Set(130)
	if !b.Test(5) || !b.Test(130) {
		t.Fatal("expected bits 5 and 130 set")
	}
	if b.Test(6) {
		t.Fatal("bit 6 should be unset")
	}
	b.Clear()
	if b.Test(5) || b.Test(130) {
		t.Fatal("expected all bits cleared")
	}
}

func TestClearRange(t *testing.T) {
	b := New(300)
	for i := uint32(0); i < 300; i += 3 {
		b.Set(i)
	}
	b.ClearRange(60, 130)
	for i := uint32(0); i < 300; i++ {
		want := i%3 == 0 && (i < 60 || i > 130)
		if got := b.Test(i); got != want {
			t.Fatalf("bit %d: got %v want %v", i, got, want)
		}
	}
}

func TestPoolReuse(t *testing.T) {
	p := NewPool(64)
	b1 := p.Get()
	b1.Set(3)
	p.Return(b1)
	b2 := p.Get()
	if b2 != b1 {
		t.Fatal("expected pool to reuse the returned bitset")
	}
	// Caller is responsible for clearing before reuse.
	if !b2.Test(3) {
		t.Fatal("pool should not clear on Return")
	}
}
