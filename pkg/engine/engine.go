// Package engine is pathgrid's public façade: it wires the graph store,
// distance cache, heap pool, spatial index, A* engine, path cache, and
// projection protocol behind the operation surface a host actually calls,
// handling cache consult/populate and cross-component invalidation so none
// of the lower packages need to know about each other.
package engine

import (
	"context"

	"pathgrid/pkg/astar"
	"pathgrid/pkg/distcache"
	"pathgrid/pkg/geom"
	"pathgrid/pkg/graphstore"
	"pathgrid/pkg/heappool"
	"pathgrid/pkg/pathcache"
	"pathgrid/pkg/pgstatus"
	"pathgrid/pkg/projection"
	"pathgrid/pkg/spatial"
)

// Engine is the single-instance, non-concurrent-safe entry point over one
// graph. Callers needing concurrency shard Engine instances across
// goroutines rather than sharing one.
type Engine struct {
	cfg Config

	graph *graphstore.Graph
	dist  *distcache.Cache
	pool  *heappool.Pool
	grid  *spatial.Grid

	search *astar.Engine
	cache  *pathcache.Cache
	proj   *projection.Projector
}

// New allocates every fixed-capacity array and cache up front, per cfg.
func New(cfg Config) *Engine {
	if cfg.HeapPoolBlockSize > cfg.MaxNodes {
		cfg.HeapPoolBlockSize = cfg.MaxNodes
	}

	graph := graphstore.New(cfg.MaxNodes, cfg.MaxEdgesPerNode)
	dist := distcache.New(cfg.MaxNodes)
	pool := heappool.New(cfg.HeapPoolCapacity)
	grid := spatial.New(cfg.SpatialCellSize)
	grid.SetForceEnabled(cfg.SpatialIndexEnabled)
	search := astar.New(graph, dist, pool, cfg.HeapPoolBlockSize)
	cache := pathcache.New(cfg.PathCacheCapacity, cfg.MaxCachePathLength)
	proj := projection.New(graph, grid, search, cfg.VirtualMaxPath)

	return &Engine{
		cfg:    cfg,
		graph:  graph,
		dist:   dist,
		pool:   pool,
		grid:   grid,
		search: search,
		cache:  cache,
		proj:   proj,
	}
}

// Shutdown releases resources the spatial index holds. Engine instances are
// not reused after Shutdown.
func (e *Engine) Shutdown() {
	e.grid.Shutdown()
}

// AddNode activates a new node slot at pos.
func (e *Engine) AddNode(pos geom.Position) (graphstore.NodeID, pgstatus.Status) {
	id, ok := e.graph.AddNode(pos)
	if !ok {
		return graphstore.InvalidID, pgstatus.NodeFull
	}
	return id, pgstatus.Success
}

// MoveNode repositions id, invalidating the distance cache, path cache, and
// spatial index entries that depend on it. A no-op move (below geom.Epsilon,
// or an inactive id) touches nothing.
func (e *Engine) MoveNode(id graphstore.NodeID, pos geom.Position) {
	if !e.graph.MoveNode(id, pos) {
		return
	}
	e.dist.InvalidateNode(id)
	e.cache.InvalidateNode(id)
	e.grid.UpdateNodePosition()
}

// RemoveNode deactivates id and removes every edge incident to it,
// invalidating the same dependents as MoveNode.
func (e *Engine) RemoveNode(id graphstore.NodeID) {
	if !e.graph.RemoveNode(id) {
		return
	}
	e.dist.InvalidateNode(id)
	e.cache.InvalidateNode(id)
	e.grid.InvalidateNode()
}

// AddEdge appends u->v (and v->u if bidirectional). Existing path-cache
// entries become stale via the bumped edge_version, caught lazily at
// lookup; no eager invalidation is needed since AddEdge cannot shorten an
// already-cached route's node set.
func (e *Engine) AddEdge(u, v graphstore.NodeID, cost float32, bidirectional bool) pgstatus.Status {
	if !e.graph.Active(u) {
		return pgstatus.StartNodeInvalid
	}
	if !e.graph.AddEdge(u, v, cost, bidirectional) {
		return pgstatus.EdgeFull
	}
	e.grid.AddEdge()
	return pgstatus.Success
}

// RemoveEdge removes the first u->v edge found, unidirectional per
// graphstore's contract.
func (e *Engine) RemoveEdge(u, v graphstore.NodeID) {
	if !e.graph.RemoveEdge(u, v) {
		return
	}
	e.grid.RemoveEdge()
}

// NodePosition returns id's position and whether id is active.
func (e *Engine) NodePosition(id graphstore.NodeID) (geom.Position, bool) {
	return e.graph.Position(id), e.graph.Active(id)
}

// NodeEdges enumerates edges touching id, per graphstore.NodeEdges.
func (e *Engine) NodeEdges(id graphstore.NodeID, includeBidirectional, includeIncoming bool) []graphstore.EdgeView {
	return e.graph.NodeEdges(id, includeBidirectional, includeIncoming)
}

// FindPath searches start -> goal, consulting the node-to-node path cache
// first and populating it on a successful search miss. out is reused
// (truncated then grown) rather than reallocated when it already has
// sufficient capacity.
func (e *Engine) FindPath(ctx context.Context, start, goal graphstore.NodeID, out []graphstore.NodeID) ([]graphstore.NodeID, pgstatus.Status) {
	if !e.graph.Active(start) {
		return out[:0], pgstatus.StartNodeInvalid
	}
	if !e.graph.Active(goal) {
		return out[:0], pgstatus.GoalNodeInvalid
	}
	if start == goal {
		return out[:0], pgstatus.StartGoalNodeSame
	}

	if path, ok := e.cache.LookupNode(e.graph, start, goal); ok {
		return appendPath(out, path), pgstatus.Success
	}

	path, status := e.search.FindPath(ctx, start, goal)
	if status != pgstatus.Success {
		return out[:0], status
	}
	e.cache.InsertNode(e.graph, start, goal, path)
	return appendPath(out, path), pgstatus.Success
}

// FindPathProjectedFromPoint finds a path from an arbitrary world point p to
// goal, consulting and populating the point-to-node path cache.
// virtualMaxPath overrides the engine's default search-depth budget for the
// virtual-node leg; 0 uses the default.
func (e *Engine) FindPathProjectedFromPoint(ctx context.Context, p geom.Position, goal graphstore.NodeID, out []graphstore.NodeID, virtualMaxPath int) ([]graphstore.NodeID, pgstatus.Status, geom.Position) {
	if path, entry, ok := e.cache.LookupPoint(e.graph, p, goal); ok {
		return appendPath(out, path), pgstatus.Success, entry
	}

	path, entry, status := e.proj.FromPointBudgeted(ctx, p, goal, uint32(virtualMaxPath))
	if status != pgstatus.Success {
		return out[:0], status, entry
	}
	e.cache.InsertPoint(e.graph, p, goal, path, entry)
	return appendPath(out, path), pgstatus.Success, entry
}

// FindPathProjectedWithExit resolves start (a node or an arbitrary point) to
// end, an arbitrary point. Because end has no stable node id, this path is
// never cached — every projected-point goal is effectively unique. entry is
// nil when start was already a node.
func (e *Engine) FindPathProjectedWithExit(ctx context.Context, start projection.Endpoint, end geom.Position, out []graphstore.NodeID) ([]graphstore.NodeID, pgstatus.Status, *geom.Position, geom.Position) {
	path, entry, exit, status := e.proj.WithExit(ctx, start, end)
	if status != pgstatus.Success {
		return out[:0], status, entry, exit
	}
	return appendPath(out, path), pgstatus.Success, entry, exit
}

// LargestComponent returns the node ids of the graph's largest weakly
// connected component among currently active nodes.
func (e *Engine) LargestComponent() []graphstore.NodeID {
	return graphstore.LargestComponent(e.graph)
}

// IsGraphConnected reports whether every active node belongs to the single
// largest weakly connected component.
func (e *Engine) IsGraphConnected() bool {
	active := e.graph.NumActiveNodes()
	if active == 0 {
		return true
	}
	return uint32(len(e.LargestComponent())) == active
}

// EngineStats surfaces the introspection data §6 calls for: path-cache
// entries/capacity/hit-rate for both tables, distance-cache size and
// hit/miss counters, spatial-grid cell count/max-bucket-size, and the
// largest weakly-connected component's size.
type EngineStats struct {
	PathCache pathcache.Stats

	DistCacheSize    int
	DistCacheHits    uint64
	DistCacheMisses  uint64
	DistCacheHitRate float64

	SpatialCells     int
	SpatialMaxBucket int

	ActiveNodes          uint32
	LargestComponentSize int
}

// Stats gathers a point-in-time snapshot across every owned component.
func (e *Engine) Stats() EngineStats {
	size, hits, misses := e.dist.Stats()
	cells, maxBucket := e.grid.Stats()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return EngineStats{
		PathCache:            e.cache.Stats(),
		DistCacheSize:        size,
		DistCacheHits:        hits,
		DistCacheMisses:      misses,
		DistCacheHitRate:     hitRate,
		SpatialCells:         cells,
		SpatialMaxBucket:     maxBucket,
		ActiveNodes:          e.graph.NumActiveNodes(),
		LargestComponentSize: len(e.LargestComponent()),
	}
}

// appendPath resets out and appends path, reusing out's backing array when
// it has enough capacity and growing it (never truncating) otherwise.
func appendPath(out []graphstore.NodeID, path []graphstore.NodeID) []graphstore.NodeID {
	out = out[:0]
	return append(out, path...)
}
