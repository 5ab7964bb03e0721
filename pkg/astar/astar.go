// Package astar implements the node-to-node A* search: pooled min-heap
// open set, per-search state reused across calls via a touched-list fast
// reset (grounded on the teacher's QueryState.Touched pattern), and the
// graph-version-snapshot retry protocol that tolerates mutation racing
// with an in-flight search.
package astar

import (
	"context"
	"math"

	"pathgrid/pkg/distcache"
	"pathgrid/pkg/graphstore"
	"pathgrid/pkg/heappool"
	"pathgrid/pkg/pgstatus"
)

const maxRetries = 3

// cancelCheckInterval is how often (in heap pops) the search checks
// ctx.Err(), grounded on the teacher's iterations%100 cadence.
const cancelCheckInterval = 100

var infG = float32(math.Inf(1))

// Hook is a test-only instrumentation seam invoked once per node
// expansion, immediately before the graph-version check. Production
// callers leave it nil.
type Hook func()

// Engine runs A* searches against one graph, reusing its heap pool,
// distance cache, and per-search scoring arrays across calls.
type Engine struct {
	graph *graphstore.Graph
	dist  *distcache.Cache
	pool  *heappool.Pool

	blockSize uint32

	gScore   []float32
	cameFrom []graphstore.NodeID
	closed   []bool
	touched  []graphstore.NodeID

	Hook Hook
}

// New creates an Engine over graph, using dist for heuristic lookups and
// pool for per-search heap slices. blockSize is clamped to graph's node
// capacity, per spec.
func New(graph *graphstore.Graph, dist *distcache.Cache, pool *heappool.Pool, blockSize uint32) *Engine {
	n := graph.MaxNodes()
	if blockSize > n {
		blockSize = n
	}
	gScore := make([]float32, n)
	cameFrom := make([]graphstore.NodeID, n)
	for i := range gScore {
		gScore[i] = infG
		cameFrom[i] = graphstore.InvalidID
	}
	return &Engine{
		graph:     graph,
		dist:      dist,
		pool:      pool,
		blockSize: blockSize,
		gScore:    gScore,
		cameFrom:  cameFrom,
		closed:    make([]bool, n),
		touched:   make([]graphstore.NodeID, 0, 1024),
	}
}

// reset clears only the slots touched by the previous search, so cost is
// O(visited) rather than O(max_nodes).
func (e *Engine) reset() {
	for _, n := range e.touched {
		e.gScore[n] = infG
		e.cameFrom[n] = graphstore.InvalidID
		e.closed[n] = false
	}
	e.touched = e.touched[:0]
}

func (e *Engine) touch(node graphstore.NodeID) {
	if math.IsInf(float64(e.gScore[node]), 1) {
		e.touched = append(e.touched, node)
	}
}

// FindPath searches start -> goal. On GRAPH_CHANGED it retries up to 3
// times (4 attempts total); after the 3rd retry still sees a changed
// graph, it returns GraphChangedTooOften. ctx is checked periodically and
// surfaces as pgstatus.Canceled; it is not a substitute for HEAP_FULL or
// GRAPH_CHANGED, which remain the primary budget mechanisms.
func (e *Engine) FindPath(ctx context.Context, start, goal graphstore.NodeID) ([]graphstore.NodeID, pgstatus.Status) {
	return e.FindPathBudgeted(ctx, start, goal, e.blockSize)
}

// FindPathBudgeted is FindPath with a per-call heap slice size, used by
// the projection protocol's virtual_max_path search-depth budget.
func (e *Engine) FindPathBudgeted(ctx context.Context, start, goal graphstore.NodeID, blockSize uint32) ([]graphstore.NodeID, pgstatus.Status) {
	if !e.graph.Active(start) {
		return nil, pgstatus.StartNodeInvalid
	}
	if !e.graph.Active(goal) {
		return nil, pgstatus.GoalNodeInvalid
	}
	if start == goal {
		return nil, pgstatus.StartGoalNodeSame
	}
	if blockSize > e.graph.MaxNodes() {
		blockSize = e.graph.MaxNodes()
	}

	for attempt := 0; attempt < maxRetries+1; attempt++ {
		path, status := e.runOnce(ctx, start, goal, blockSize)
		if status != pgstatus.GraphChanged {
			return path, status
		}
	}
	return nil, pgstatus.GraphChangedTooOften
}

func (e *Engine) runOnce(ctx context.Context, start, goal graphstore.NodeID, blockSize uint32) ([]graphstore.NodeID, pgstatus.Status) {
	defer e.reset()

	snap := e.graph.Version()

	slice, status := e.pool.Acquire(blockSize)
	if !status.OK() {
		return nil, status
	}
	defer e.pool.Release(slice)

	e.touch(start)
	e.gScore[start] = 0
	if pushStatus := slice.Push(start, e.heuristic(start, goal)); !pushStatus.OK() {
		return nil, pushStatus
	}

	iterations := 0
	for !slice.IsEmpty() {
		entry, _ := slice.Pop()
		current := entry.Node

		iterations++
		if iterations%cancelCheckInterval == 0 && ctx.Err() != nil {
			return nil, pgstatus.Canceled
		}

		if e.closed[current] {
			continue
		}
		if current == goal {
			return e.reconstruct(start, goal), pgstatus.Success
		}
		e.closed[current] = true

		if e.Hook != nil {
			e.Hook()
		}

		now := e.graph.Version()
		if now.Edge != snap.Edge || now.Node != snap.Node {
			return nil, pgstatus.GraphChanged
		}

		currentG := e.gScore[current]
		for _, edge := range e.graph.EdgesFrom(current) {
			v := edge.To
			if !e.graph.Active(v) {
				continue
			}
			tentative := currentG + edge.Cost
			if tentative >= e.gScore[v] {
				continue
			}
			e.touch(v)
			e.gScore[v] = tentative
			e.cameFrom[v] = current
			f := tentative + e.heuristic(v, goal)
			if pushStatus := slice.Push(v, f); !pushStatus.OK() {
				return nil, pushStatus
			}
		}
	}

	return nil, pgstatus.NoPath
}

func (e *Engine) heuristic(a, b graphstore.NodeID) float32 {
	return float32(e.dist.GetOrCompute(a, b, e.graph.Position))
}

func (e *Engine) reconstruct(start, goal graphstore.NodeID) []graphstore.NodeID {
	var rev []graphstore.NodeID
	node := goal
	for {
		rev = append(rev, node)
		if node == start {
			break
		}
		node = e.cameFrom[node]
		if node == graphstore.InvalidID {
			break
		}
	}
	path := make([]graphstore.NodeID, len(rev))
	for i, n := range rev {
		path[len(rev)-1-i] = n
	}
	return path
}
