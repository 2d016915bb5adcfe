package respool

import "testing"

func TestAllocFreeFirstFit(t *testing.T) {
	p := New(3)
	a := p.Alloc()
	b := p.Alloc()
	if a != 0 || b != 1 {
		t.Fatalf("expected 0,1 got %d,%d", a, b)
	}
	p.Free(a)
	c := p.Alloc()
	if c != 0 {
		t.Fatalf("expected reused index 0, got %d", c)
	}
	d := p.Alloc()
	if d != 2 {
		t.Fatalf("expected 2, got %d", d)
	}
	if p.Alloc() != -1 {
		t.Fatal("expected pool exhaustion")
	}
}

func TestBusyDirtyValidFlags(t *testing.T) {
	p := New(1)
	i := p.Alloc()
	if !p.IsBusy(i) {
		t.Fatal("expected fresh entry to be busy (not pending removal)")
	}
	p.SetNotBusy(i)
	if p.IsBusy(i) {
		t.Fatal("expected not-busy after SetNotBusy")
	}

	p.SetDirty(i)
	if !p.IsDirty(i) || p.flags[i]&FlagClean != 0 {
		t.Fatal("expected dirty set and clean cleared")
	}
	p.SetClean(i)
	if p.IsDirty(i) {
		t.Fatal("expected clean after SetClean")
	}

	if p.IsValid(i) {
		t.Fatal("expected fresh entry invalid")
	}
	p.SetValid(i)
	if !p.IsValid(i) {
		t.Fatal("expected valid after SetValid")
	}
	p.SetInvalid(i)
	if p.IsValid(i) {
		t.Fatal("expected invalid after SetInvalid")
	}
}
