package bitmap

import "testing"

func TestFirstFreeAndConservation(t *testing.T) {
	b := New(10)
	for i := 0; i < 10; i++ {
		idx := b.FirstFree()
		if idx != i {
			t.Fatalf("expected first free %d, got %d", i, idx)
		}
		b.Set(idx)
	}
	if idx := b.FirstFree(); idx != Full {
		t.Fatalf("expected Full, got %d", idx)
	}
	if c := b.Count(); c != 10 {
		t.Fatalf("expected count 10, got %d", c)
	}
}

func TestSetClearCheck(t *testing.T) {
	b := New(128)
	b.Set(5)
	b.Set(127)
	if !b.Check(5) || !b.Check(127) {
		t.Fatal("expected bits 5 and 127 set")
	}
	b.Clear(5)
	if b.Check(5) {
		t.Fatal("expected bit 5 clear")
	}
	if b.Count() != 1 {
		t.Fatalf("expected count 1, got %d", b.Count())
	}
}

func TestFirstFreeSkipsFullWords(t *testing.T) {
	b := New(130)
	for i := 0; i < 128; i++ {
		b.Set(i)
	}
	if idx := b.FirstFree(); idx != 128 {
		t.Fatalf("expected 128, got %d", idx)
	}
}
