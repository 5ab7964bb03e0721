// Package distcache implements the commutative node-pair Euclidean
// distance cache: a hash table with linear probing, sized from the node
// count, whose entries participate in per-node intrusive invalidation
// chains so a single node's cached distances can be dropped in O(k)
// instead of scanning the whole table.
package distcache

import "pathgrid/pkg/geom"

// MaxProbes bounds the linear probe sequence on both lookup and insert.
const MaxProbes = 8

const invalidSlot = ^uint32(0)

// PositionLookup resolves a node id to its current position.
type PositionLookup func(id uint32) geom.Position

type entry struct {
	a, b  uint32
	dist  float64
	valid bool

	// Each entry threads through two independent doubly-linked chains at
	// once: a's and b's. prevA/nextA are this entry's links within a's
	// chain, prevB/nextB within b's. Both chains must be kept consistent
	// on every insert and removal, or a later slot reuse overwrites a
	// link another chain still depends on.
	prevA, nextA uint32
	prevB, nextB uint32
}

// Cache is the commutative pairwise distance cache.
type Cache struct {
	entries []entry
	mask    uint32
	heads   []uint32 // per-node chain head, indexed by node id

	hits, misses uint64
}

// New builds a Cache sized for nodeCount nodes, per spec:
// size = nextPow2(min(nodeCount*8, 65536)).
func New(nodeCount uint32) *Cache {
	size := tableSize(nodeCount)
	heads := make([]uint32, nodeCount)
	for i := range heads {
		heads[i] = invalidSlot
	}
	return &Cache{
		entries: make([]entry, size),
		mask:    size - 1,
		heads:   heads,
	}
}

func tableSize(nodeCount uint32) uint32 {
	want := uint64(nodeCount) * 8
	if want > 65536 {
		want = 65536
	}
	if want < 1 {
		want = 1
	}
	return nextPow2(uint32(want))
}

func nextPow2(n uint32) uint32 {
	if n == 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}

// hash is commutative: hash(a,b) == hash(b,a).
func hash(a, b uint32) uint32 {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	// A simple integer mix (Murmur-style finalizer) over the ordered pair,
	// packed into one 64-bit key before folding down to 32 bits.
	x := uint64(lo) | uint64(hi)<<32
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return uint32(x)
}

// GetOrCompute returns the distance between a and b, computing and caching
// it on a miss via posOf. The all-ones sentinel id returns 0 and is never
// cached. If every probed slot is occupied by an unrelated valid entry,
// the distance is computed directly without being cached.
func (c *Cache) GetOrCompute(a, b uint32, posOf PositionLookup) float64 {
	if a == invalidSlot || b == invalidSlot {
		return 0
	}

	key := hash(a, b)
	base := key & c.mask

	var firstEmpty = -1
	for probe := uint32(0); probe < MaxProbes; probe++ {
		idx := (base + probe) & c.mask
		e := &c.entries[idx]
		if e.valid {
			if (e.a == a && e.b == b) || (e.a == b && e.b == a) {
				c.hits++
				return e.dist
			}
			continue
		}
		if firstEmpty < 0 {
			firstEmpty = int(idx)
		}
	}

	c.misses++
	dist := geom.Distance(posOf(a), posOf(b))

	if firstEmpty >= 0 {
		c.store(uint32(firstEmpty), a, b, dist)
	}
	return dist
}

func (c *Cache) store(slot, a, b uint32, dist float64) {
	e := &c.entries[slot]
	e.a, e.b, e.dist, e.valid = a, b, dist, true
	e.prevA, e.nextA = invalidSlot, invalidSlot
	e.prevB, e.nextB = invalidSlot, invalidSlot

	c.linkInto(slot, a)
	if b != a {
		// a==b (h(goal,goal), reached via A*'s heuristic on a neighbor
		// that happens to be the goal) would otherwise thread the same
		// slot into the same chain twice via the same role field,
		// leaving it pointing at itself.
		c.linkInto(slot, b)
	}
}

// linkInto threads slot onto the head of node's chain. slot must already
// have its a/b fields set; it is linked via whichever role (a or b) it
// plays for node.
func (c *Cache) linkInto(slot, node uint32) {
	if int(node) >= len(c.heads) {
		return
	}
	old := c.heads[node]
	c.setNext(slot, node, old)
	c.setPrev(slot, node, invalidSlot)
	if old != invalidSlot {
		c.setPrev(old, node, slot)
	}
	c.heads[node] = slot
}

// unlinkFrom splices slot out of node's chain, reconnecting its neighbors
// (or the chain head) around it. After this call slot no longer appears
// anywhere in node's chain and is safe to repurpose for that role.
func (c *Cache) unlinkFrom(slot, node uint32) {
	if int(node) >= len(c.heads) {
		return
	}
	prev := c.getPrev(slot, node)
	next := c.getNext(slot, node)
	if prev == invalidSlot {
		c.heads[node] = next
	} else {
		c.setNext(prev, node, next)
	}
	if next != invalidSlot {
		c.setPrev(next, node, prev)
	}
}

// setNext/getNext/setPrev/getPrev address an entry's link fields by the
// role (a or b) it plays in node's chain, since a single slot threads
// through two unrelated chains simultaneously.
func (c *Cache) setNext(slot, node, val uint32) {
	e := &c.entries[slot]
	if e.a == node {
		e.nextA = val
	} else if e.b == node {
		e.nextB = val
	}
}

func (c *Cache) getNext(slot, node uint32) uint32 {
	e := &c.entries[slot]
	if e.a == node {
		return e.nextA
	}
	return e.nextB
}

func (c *Cache) setPrev(slot, node, val uint32) {
	e := &c.entries[slot]
	if e.a == node {
		e.prevA = val
	} else if e.b == node {
		e.prevB = val
	}
}

func (c *Cache) getPrev(slot, node uint32) uint32 {
	e := &c.entries[slot]
	if e.a == node {
		return e.prevA
	}
	return e.prevB
}

// InvalidateNode walks node's chain, marking every reached entry invalid
// and splicing it out of its *other* endpoint's chain too (not just
// node's), then drops node's own chain head. Without that second splice,
// a reused slot's store() overwrite of its link fields would corrupt
// whatever chain still threaded through it — see the regression test for
// the exact collision this guards against.
func (c *Cache) InvalidateNode(node uint32) {
	if int(node) >= len(c.heads) {
		return
	}
	slot := c.heads[node]
	for slot != invalidSlot {
		e := &c.entries[slot]
		next := c.getNext(slot, node)
		e.valid = false

		other := e.a
		if other == node {
			other = e.b
		}
		c.unlinkFrom(slot, other)

		slot = next
	}
	c.heads[node] = invalidSlot
}

// Resize reallocates the cache for a new node count. If the number of
// currently valid entries is small (<=1024) they are preserved by
// reinsertion; otherwise the cache is cleared, matching the documented
// tradeoff against an unbounded temporary allocation.
func (c *Cache) Resize(newNodeCount uint32) {
	type saved struct {
		a, b uint32
		dist float64
	}
	var preserved []saved
	if validCount := c.countValid(); validCount > 0 && validCount <= 1024 {
		preserved = make([]saved, 0, validCount)
		for _, e := range c.entries {
			if e.valid {
				preserved = append(preserved, saved{e.a, e.b, e.dist})
			}
		}
	}

	size := tableSize(newNodeCount)
	c.entries = make([]entry, size)
	c.mask = size - 1
	heads := make([]uint32, newNodeCount)
	for i := range heads {
		heads[i] = invalidSlot
	}
	c.heads = heads

	for _, s := range preserved {
		if s.a >= newNodeCount || s.b >= newNodeCount {
			continue
		}
		c.insertKnown(s.a, s.b, s.dist)
	}
}

// insertKnown stores an already-known distance, used when reinserting
// preserved entries during Resize.
func (c *Cache) insertKnown(a, b uint32, dist float64) {
	key := hash(a, b)
	base := key & c.mask
	for probe := uint32(0); probe < MaxProbes; probe++ {
		idx := (base + probe) & c.mask
		if !c.entries[idx].valid {
			c.store(idx, a, b, dist)
			return
		}
	}
	// No free slot within the probe sequence: drop it, matching
	// GetOrCompute's fall-through-without-caching behavior.
}

func (c *Cache) countValid() int {
	n := 0
	for _, e := range c.entries {
		if e.valid {
			n++
		}
	}
	return n
}

// Clear invalidates every entry and resets statistics.
func (c *Cache) Clear() {
	for i := range c.entries {
		c.entries[i] = entry{}
	}
	for i := range c.heads {
		c.heads[i] = invalidSlot
	}
	c.hits, c.misses = 0, 0
}

// Stats returns the table size and hit/miss counters.
func (c *Cache) Stats() (size int, hits, misses uint64) {
	return len(c.entries), c.hits, c.misses
}
