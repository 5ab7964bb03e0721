// Package pathcache implements the two LRU path-cache tables: node-to-node
// and point-to-node. Both are backed by hashicorp/golang-lru/v2 (the one
// pack-wide library that maps directly onto this spec's "fixed-capacity
// LRU table" requirement — see DESIGN.md), wrapped with a per-node
// inverted index so a single moved or removed node can invalidate exactly
// the entries that reference it in O(k), in addition to the lazy
// version-snapshot check every Lookup already performs.
package pathcache

import (
	"math"

	lru "github.com/hashicorp/golang-lru/v2"

	"pathgrid/pkg/geom"
	"pathgrid/pkg/graphstore"
)

// QuantizeEpsilon is the point-to-node cache key quantization step. It is
// coarser than geom.Epsilon (which governs node-movement detection). Query
// points that floor to the same QuantizeEpsilon-sized cell share a cache
// key; a drift smaller than this that crosses a cell boundary produces a
// different key and misses.
const QuantizeEpsilon = 0.01

// NodeKey identifies a node-to-node cache entry.
type NodeKey struct {
	Start, Goal uint32
}

// PointKey identifies a point-to-node cache entry by quantized start.
type PointKey struct {
	QX, QY int32
	Goal   uint32
}

// Quantize maps a position to its quantization cell.
func Quantize(p geom.Position) (int32, int32) {
	return int32(math.Floor(float64(p.X) / QuantizeEpsilon)), int32(math.Floor(float64(p.Y) / QuantizeEpsilon))
}

// entry is the shared payload of both tables.
type entry struct {
	nodes        []uint32
	nodeVersions []uint32 // parallel to nodes
	edgeVersion  uint32
	entryPoint   geom.Position // only meaningful for the point-to-node table
}

func (e *entry) consistent(g *graphstore.Graph) bool {
	if g.Version().Edge != e.edgeVersion {
		return false
	}
	for i, n := range e.nodes {
		if !g.Active(n) || g.NodeVersion(n) != e.nodeVersions[i] {
			return false
		}
	}
	return true
}

// Cache owns both LRU tables and their inverted node indices.
type Cache struct {
	maxPathLength int
	capacity      int

	nodeLRU   *lru.Cache[NodeKey, *entry]
	nodeIndex map[uint32]map[NodeKey]struct{}
	nodeHits  uint64
	nodeMiss  uint64

	pointLRU   *lru.Cache[PointKey, *entry]
	pointIndex map[uint32]map[PointKey]struct{}
	pointHits  uint64
	pointMiss  uint64
}

// New creates a Cache with the given per-table capacity and the maximum
// path length that may be cached (spec's max_cache_path_length).
func New(capacity int, maxPathLength int) *Cache {
	c := &Cache{
		maxPathLength: maxPathLength,
		capacity:      capacity,
		nodeIndex:     make(map[uint32]map[NodeKey]struct{}),
		pointIndex:    make(map[uint32]map[PointKey]struct{}),
	}

	c.nodeLRU, _ = lru.NewWithEvict(capacity, func(key NodeKey, val *entry) {
		c.unindexNode(key, val)
	})
	c.pointLRU, _ = lru.NewWithEvict(capacity, func(key PointKey, val *entry) {
		c.unindexPoint(key, val)
	})
	return c
}

func (c *Cache) unindexNode(key NodeKey, e *entry) {
	for _, n := range e.nodes {
		if set, ok := c.nodeIndex[n]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(c.nodeIndex, n)
			}
		}
	}
}

func (c *Cache) unindexPoint(key PointKey, e *entry) {
	for _, n := range e.nodes {
		if set, ok := c.pointIndex[n]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(c.pointIndex, n)
			}
		}
	}
}

// LookupNode looks up (start, goal), validating the entry against the
// live graph (edge version and every referenced node's active flag and
// per-node version). An inconsistent hit is evicted and reported as a
// miss.
func (c *Cache) LookupNode(g *graphstore.Graph, start, goal uint32) ([]uint32, bool) {
	key := NodeKey{start, goal}
	e, ok := c.nodeLRU.Get(key)
	if !ok {
		c.nodeMiss++
		return nil, false
	}
	if !e.consistent(g) {
		c.nodeLRU.Remove(key)
		c.nodeMiss++
		return nil, false
	}
	c.nodeHits++
	out := make([]uint32, len(e.nodes))
	copy(out, e.nodes)
	return out, true
}

// InsertNode caches a node-to-node path. Paths longer than maxPathLength
// are not cached (still returned to the caller by the search layer).
func (c *Cache) InsertNode(g *graphstore.Graph, start, goal uint32, path []uint32) {
	if len(path) > c.maxPathLength {
		return
	}
	key := NodeKey{start, goal}
	e := &entry{
		nodes:        append([]uint32(nil), path...),
		nodeVersions: make([]uint32, len(path)),
		edgeVersion:  g.Version().Edge,
	}
	for i, n := range path {
		e.nodeVersions[i] = g.NodeVersion(n)
	}
	c.nodeLRU.Add(key, e)
	for _, n := range path {
		set, ok := c.nodeIndex[n]
		if !ok {
			set = make(map[NodeKey]struct{})
			c.nodeIndex[n] = set
		}
		set[key] = struct{}{}
	}
}

// LookupPoint looks up (quantized start point, goal), same validation
// rules as LookupNode, additionally returning the cached entry point.
func (c *Cache) LookupPoint(g *graphstore.Graph, start geom.Position, goal uint32) ([]uint32, geom.Position, bool) {
	qx, qy := Quantize(start)
	key := PointKey{qx, qy, goal}
	e, ok := c.pointLRU.Get(key)
	if !ok {
		c.pointMiss++
		return nil, geom.Position{}, false
	}
	if !e.consistent(g) {
		c.pointLRU.Remove(key)
		c.pointMiss++
		return nil, geom.Position{}, false
	}
	c.pointHits++
	out := make([]uint32, len(e.nodes))
	copy(out, e.nodes)
	return out, e.entryPoint, true
}

// InsertPoint caches a point-to-node path and its entry projection.
func (c *Cache) InsertPoint(g *graphstore.Graph, start geom.Position, goal uint32, path []uint32, entryPoint geom.Position) {
	if len(path) > c.maxPathLength {
		return
	}
	qx, qy := Quantize(start)
	key := PointKey{qx, qy, goal}
	e := &entry{
		nodes:        append([]uint32(nil), path...),
		nodeVersions: make([]uint32, len(path)),
		edgeVersion:  g.Version().Edge,
		entryPoint:   entryPoint,
	}
	for i, n := range path {
		e.nodeVersions[i] = g.NodeVersion(n)
	}
	c.pointLRU.Add(key, e)
	for _, n := range path {
		set, ok := c.pointIndex[n]
		if !ok {
			set = make(map[PointKey]struct{})
			c.pointIndex[n] = set
		}
		set[key] = struct{}{}
	}
}

// InvalidateNode evicts every cache entry (in both tables) that
// references node — called by the engine whenever a node moves or is
// removed.
func (c *Cache) InvalidateNode(node uint32) {
	if set, ok := c.nodeIndex[node]; ok {
		keys := make([]NodeKey, 0, len(set))
		for k := range set {
			keys = append(keys, k)
		}
		for _, k := range keys {
			c.nodeLRU.Remove(k)
		}
	}
	if set, ok := c.pointIndex[node]; ok {
		keys := make([]PointKey, 0, len(set))
		for k := range set {
			keys = append(keys, k)
		}
		for _, k := range keys {
			c.pointLRU.Remove(k)
		}
	}
}

// Stats reports entries/capacity/hit-rate for both tables.
type Stats struct {
	NodeEntries, NodeCapacity int
	NodeHitRate               float64
	PointEntries, PointCapacity int
	PointHitRate              float64
}

// Stats returns current cache introspection data.
func (c *Cache) Stats() Stats {
	return Stats{
		NodeEntries:   c.nodeLRU.Len(),
		NodeCapacity:  c.capacity,
		NodeHitRate:   hitRate(c.nodeHits, c.nodeMiss),
		PointEntries:  c.pointLRU.Len(),
		PointCapacity: c.capacity,
		PointHitRate:  hitRate(c.pointHits, c.pointMiss),
	}
}

func hitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
