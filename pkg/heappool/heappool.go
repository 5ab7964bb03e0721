// Package heappool implements the pre-allocated heap pool A* slices its
// open set from. The pool owns one contiguous buffer of heap entries,
// sized by New's capacity argument, and a watermark cursor; Acquire/Release
// must nest strictly LIFO, and Release panics when they do not.
package heappool

import "pathgrid/pkg/pgstatus"

// Entry is a single (node, f_score) pair in the binary min-heap.
type Entry struct {
	Node   uint32
	FScore float32
}

// Pool is the backing buffer all per-search heap Slices are carved from.
type Pool struct {
	buffer []Entry
	cursor uint32
}

// New allocates a Pool with room for capacity heap entries.
func New(capacity uint32) *Pool {
	return &Pool{buffer: make([]Entry, capacity)}
}

// Capacity returns the pool's total entry capacity.
func (p *Pool) Capacity() uint32 { return uint32(len(p.buffer)) }

// Cursor returns the current watermark, exposed for LIFO-discipline tests.
func (p *Pool) Cursor() uint32 { return p.cursor }

// Acquire carves a blockSize-entry slice starting at the current
// watermark and advances it. Returns pgstatus.HeapFull if the slice would
// overflow the pool.
func (p *Pool) Acquire(blockSize uint32) (*Slice, pgstatus.Status) {
	if blockSize > uint32(len(p.buffer))-p.cursor {
		return nil, pgstatus.HeapFull
	}
	start := p.cursor
	p.cursor += blockSize
	return &Slice{
		items: p.buffer[start : start+blockSize],
		start: start,
		pool:  p,
	}, pgstatus.Success
}

// Release returns a slice to the pool. Slices must be released in the
// reverse order they were acquired (LIFO) — releasing out of order is a
// programming error and panics, per the pool's nesting invariant.
func (p *Pool) Release(s *Slice) {
	expected := s.start + uint32(len(s.items))
	if p.cursor != expected {
		panic("heappool: Release called out of LIFO order")
	}
	p.cursor = s.start
}

// Slice is a per-search binary min-heap carved from the pool, ordered by
// FScore; ties are broken arbitrarily (no stable tiebreak is required).
type Slice struct {
	items []Entry // items[:size] is the live heap
	size  int
	start uint32
	pool  *Pool
}

// Len returns the number of live entries.
func (s *Slice) Len() int { return s.size }

// IsEmpty reports whether the heap has no live entries.
func (s *Slice) IsEmpty() bool { return s.size == 0 }

// Cap returns the slice's total capacity (the block size it was acquired with).
func (s *Slice) Cap() int { return len(s.items) }

// Push inserts (node, fScore). Returns pgstatus.HeapFull if the slice's
// capacity is exhausted — the caller must abort the search on this status.
func (s *Slice) Push(node uint32, fScore float32) pgstatus.Status {
	if s.size >= len(s.items) {
		return pgstatus.HeapFull
	}
	s.items[s.size] = Entry{Node: node, FScore: fScore}
	s.siftUp(s.size)
	s.size++
	return pgstatus.Success
}

// Pop removes and returns the minimum-FScore entry.
func (s *Slice) Pop() (Entry, bool) {
	if s.size == 0 {
		return Entry{}, false
	}
	top := s.items[0]
	s.size--
	if s.size > 0 {
		s.items[0] = s.items[s.size]
		s.siftDown(0)
	}
	return top, true
}

// Peek returns the minimum-FScore entry without removing it.
func (s *Slice) Peek() (Entry, bool) {
	if s.size == 0 {
		return Entry{}, false
	}
	return s.items[0], true
}

// DecreaseKey linearly searches for node and lowers its f-score in place.
// A* itself uses lazy decrease (pushing a duplicate and letting the
// closed-set check skip stale pops); this is provided for completeness,
// matching the original's documented (if inefficient) API.
func (s *Slice) DecreaseKey(node uint32, newFScore float32) bool {
	for i := 0; i < s.size; i++ {
		if s.items[i].Node == node {
			if newFScore < s.items[i].FScore {
				s.items[i].FScore = newFScore
				s.siftUp(i)
			}
			return true
		}
	}
	return false
}

// BuildFrom bulk-seeds the heap from an unsorted slice using Floyd's O(n)
// heapify, for batch seeding (e.g. multi-source projection seeds).
func (s *Slice) BuildFrom(entries []Entry) pgstatus.Status {
	if len(entries) > len(s.items) {
		return pgstatus.HeapFull
	}
	copy(s.items, entries)
	s.size = len(entries)
	for i := s.size/2 - 1; i >= 0; i-- {
		s.siftDown(i)
	}
	return pgstatus.Success
}

// Reset empties the slice for reuse without releasing it to the pool.
func (s *Slice) Reset() { s.size = 0 }

func (s *Slice) siftUp(i int) {
	item := s.items[i]
	for i > 0 {
		parent := (i - 1) / 2
		if item.FScore >= s.items[parent].FScore {
			break
		}
		s.items[i] = s.items[parent]
		i = parent
	}
	s.items[i] = item
}

func (s *Slice) siftDown(i int) {
	item := s.items[i]
	for {
		child := 2*i + 1
		if child >= s.size {
			break
		}
		if right := child + 1; right < s.size && s.items[right].FScore < s.items[child].FScore {
			child = right
		}
		if item.FScore <= s.items[child].FScore {
			break
		}
		s.items[i] = s.items[child]
		i = child
	}
	s.items[i] = item
}
