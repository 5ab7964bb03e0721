package heappool

import (
	"testing"

	"pathgrid/pkg/pgstatus"
)

func TestAcquireReleaseLIFO(t *testing.T) {
	p := New(10)
	a, status := p.Acquire(4)
	if status != pgstatus.Success {
		t.Fatalf("Acquire(4) status = %v", status)
	}
	b, status := p.Acquire(4)
	if status != pgstatus.Success {
		t.Fatalf("Acquire(4) status = %v", status)
	}
	if p.Cursor() != 8 {
		t.Fatalf("cursor = %d, want 8", p.Cursor())
	}

	p.Release(b)
	if p.Cursor() != 4 {
		t.Fatalf("cursor after releasing inner slice = %d, want 4", p.Cursor())
	}
	p.Release(a)
	if p.Cursor() != 0 {
		t.Fatalf("cursor after releasing outer slice = %d, want 0", p.Cursor())
	}
}

func TestReleaseOutOfOrderPanics(t *testing.T) {
	p := New(10)
	a, _ := p.Acquire(4)
	_, _ = p.Acquire(4)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic releasing out of LIFO order")
		}
	}()
	p.Release(a)
}

func TestAcquireOverflowReturnsHeapFull(t *testing.T) {
	p := New(4)
	if _, status := p.Acquire(5); status != pgstatus.HeapFull {
		t.Fatalf("status = %v, want HeapFull", status)
	}
}

func TestPushPopOrdering(t *testing.T) {
	p := New(16)
	s, _ := p.Acquire(16)

	vals := []float32{5, 3, 8, 1, 9, 2}
	for i, v := range vals {
		if status := s.Push(uint32(i), v); status != pgstatus.Success {
			t.Fatalf("Push failed: %v", status)
		}
	}

	var got []float32
	for !s.IsEmpty() {
		e, ok := s.Pop()
		if !ok {
			t.Fatal("Pop reported empty unexpectedly")
		}
		got = append(got, e.FScore)
	}

	want := []float32{1, 2, 3, 5, 8, 9}
	if len(got) != len(want) {
		t.Fatalf("got %v entries, want %v", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pop order[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPushFullReturnsHeapFull(t *testing.T) {
	p := New(4)
	s, _ := p.Acquire(2)
	if status := s.Push(0, 1); status != pgstatus.Success {
		t.Fatalf("first push failed: %v", status)
	}
	if status := s.Push(1, 2); status != pgstatus.Success {
		t.Fatalf("second push failed: %v", status)
	}
	if status := s.Push(2, 3); status != pgstatus.HeapFull {
		t.Fatalf("third push status = %v, want HeapFull", status)
	}
}

func TestBuildFromHeapifies(t *testing.T) {
	p := New(8)
	s, _ := p.Acquire(8)

	entries := []Entry{{0, 9}, {1, 1}, {2, 5}, {3, 3}}
	if status := s.BuildFrom(entries); status != pgstatus.Success {
		t.Fatalf("BuildFrom failed: %v", status)
	}

	top, ok := s.Peek()
	if !ok || top.FScore != 1 {
		t.Fatalf("Peek after BuildFrom = %+v, want FScore 1", top)
	}
}

func TestDecreaseKey(t *testing.T) {
	p := New(8)
	s, _ := p.Acquire(8)
	s.Push(0, 10)
	s.Push(1, 20)

	if !s.DecreaseKey(1, 1) {
		t.Fatal("DecreaseKey should find node 1")
	}
	top, _ := s.Peek()
	if top.Node != 1 {
		t.Fatalf("after DecreaseKey, top = %+v, want node 1", top)
	}
}
