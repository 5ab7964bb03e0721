// Package graphstore implements the core graph store: flat pre-allocated
// arrays of nodes and per-node edge slots, active flags, and the version
// counters the rest of pathgrid stamps into heap slices and cache entries.
//
// All capacities are fixed at construction; no method on Graph allocates
// on its hot path (AddNode/AddEdge/MoveNode/RemoveNode/RemoveEdge), except
// where Go's slice growth for read-only enumeration results (NodeEdges)
// is the one documented exception, matching the rest of pathgrid.
package graphstore

import "pathgrid/pkg/geom"

// NodeID identifies a node by its slot index in the dense array.
type NodeID = uint32

// InvalidID is the sentinel "no such node" value, matching the all-ones
// sentinel used throughout pathgrid (original_source's INVALID_ID).
const InvalidID NodeID = ^uint32(0)

// Version is a pair of monotonic counters stamped into heap slices and
// cache entries to detect mutation between creation and use.
type Version struct {
	Node uint32
	Edge uint32
}

// Edge is a directed edge stored in a source node's flat edge region.
type Edge struct {
	To            NodeID
	Cost          float32
	Bidirectional bool
	used          bool // slot occupancy within the fixed-stride region
}

// EdgeView is a read-only edge enumerated by NodeEdges.
type EdgeView struct {
	From, To      NodeID
	Cost          float32
	Bidirectional bool
}

// Graph is the dense-array graph store. It is not safe for concurrent use.
type Graph struct {
	maxNodes        uint32
	maxEdgesPerNode uint32

	active      []bool
	position    []geom.Position
	nodeVersion []uint32 // per-node version, bumped on every position change
	edgeCount   []uint32 // number of used edge slots for node i
	edges       []Edge   // flat region: edges[i*maxEdgesPerNode : i*maxEdgesPerNode+maxEdgesPerNode]

	activeCount uint32
	version     Version // graph-wide (node_version, edge_version)
}

// New allocates a Graph with fixed capacity for maxNodes nodes, each with
// up to maxEdgesPerNode outgoing edge slots.
func New(maxNodes, maxEdgesPerNode uint32) *Graph {
	return &Graph{
		maxNodes:        maxNodes,
		maxEdgesPerNode: maxEdgesPerNode,
		active:          make([]bool, maxNodes),
		position:        make([]geom.Position, maxNodes),
		nodeVersion:     make([]uint32, maxNodes),
		edgeCount:       make([]uint32, maxNodes),
		edges:           make([]Edge, maxNodes*maxEdgesPerNode),
	}
}

// MaxNodes returns the fixed node capacity.
func (g *Graph) MaxNodes() uint32 { return g.maxNodes }

// MaxEdgesPerNode returns the fixed per-node edge capacity.
func (g *Graph) MaxEdgesPerNode() uint32 { return g.maxEdgesPerNode }

// NumActiveNodes returns the number of currently active node slots.
func (g *Graph) NumActiveNodes() uint32 { return g.activeCount }

// Version returns the current graph-wide version pair.
func (g *Graph) Version() Version { return g.version }

// Active reports whether id is a valid, active node slot.
func (g *Graph) Active(id NodeID) bool {
	return id < g.maxNodes && g.active[id]
}

// NodeVersion returns the per-node version of id, or 0 if id is invalid.
func (g *Graph) NodeVersion(id NodeID) uint32 {
	if id >= g.maxNodes {
		return 0
	}
	return g.nodeVersion[id]
}

// Position returns the position of id. For an out-of-range id it returns
// the zero value; for an inactive slot it returns whatever position that
// slot last held.
func (g *Graph) Position(id NodeID) geom.Position {
	if id >= g.maxNodes {
		return geom.Position{}
	}
	return g.position[id]
}

// AddNode activates the first free slot at pos and returns its id.
func (g *Graph) AddNode(pos geom.Position) (NodeID, bool) {
	if g.activeCount >= g.maxNodes {
		return InvalidID, false
	}
	for i := uint32(0); i < g.maxNodes; i++ {
		if !g.active[i] {
			g.active[i] = true
			g.position[i] = pos
			g.version.Node++
			g.nodeVersion[i] = g.version.Node
			g.edgeCount[i] = 0
			g.activeCount++
			return i, true
		}
	}
	return InvalidID, false
}

// MoveNode repositions an active node. It is a no-op for invalid/inactive
// ids and for moves smaller than geom.Epsilon. Returns true if the move
// actually happened (and hence versions were bumped and caches need
// invalidating by the caller).
func (g *Graph) MoveNode(id NodeID, pos geom.Position) bool {
	if !g.Active(id) {
		return false
	}
	if geom.NearlyEqual(g.position[id], pos) {
		return false
	}
	g.position[id] = pos
	g.version.Node++
	g.nodeVersion[id] = g.version.Node
	return true
}

// RemoveNode deactivates id, removing all edges incident to it (both
// outgoing and incoming, via swap-and-pop). Idempotent on invalid/inactive
// ids. Returns false if id was not active (no-op).
func (g *Graph) RemoveNode(id NodeID) bool {
	if !g.Active(id) {
		return false
	}

	// Remove id's own outgoing edges.
	g.edgeCount[id] = 0

	// Remove every other node's edges that point at id.
	for u := uint32(0); u < g.maxNodes; u++ {
		if u == id || !g.active[u] {
			continue
		}
		region := g.region(u)
		count := g.edgeCount[u]
		for i := uint32(0); i < count; {
			if region[i].To == id {
				count--
				region[i] = region[count]
				g.version.Edge++
			} else {
				i++
			}
		}
		g.edgeCount[u] = count
	}

	g.active[id] = false
	g.version.Node++
	g.version.Edge++
	g.nodeVersion[id] = g.version.Node
	g.activeCount--
	return true
}

// region returns the fixed-stride edge slice for node u (len == maxEdgesPerNode,
// only the first edgeCount[u] entries are meaningful).
func (g *Graph) region(u uint32) []Edge {
	start := u * g.maxEdgesPerNode
	return g.edges[start : start+g.maxEdgesPerNode]
}

// AddEdge appends a directed edge u->v with the given cost. If
// bidirectional is true, it also appends v->u and sets the flag on both.
// Duplicate edges are not detected: adding the same (u,v) twice creates
// two traversable entries, matching the documented behavior.
func (g *Graph) AddEdge(u, v NodeID, cost float32, bidirectional bool) bool {
	if !g.Active(u) {
		return false
	}
	if !g.appendEdge(u, v, cost, bidirectional) {
		return false
	}
	if bidirectional {
		if !g.appendEdge(v, u, cost, bidirectional) {
			// Roll back the forward edge so the graph stays consistent.
			g.popLastEdge(u)
			return false
		}
	}
	g.version.Edge++
	return true
}

func (g *Graph) appendEdge(from, to NodeID, cost float32, bidirectional bool) bool {
	if from >= g.maxNodes {
		return false
	}
	count := g.edgeCount[from]
	if count >= g.maxEdgesPerNode {
		return false
	}
	region := g.region(from)
	region[count] = Edge{To: to, Cost: cost, Bidirectional: bidirectional, used: true}
	g.edgeCount[from] = count + 1
	return true
}

func (g *Graph) popLastEdge(from NodeID) {
	if g.edgeCount[from] > 0 {
		g.edgeCount[from]--
	}
}

// RemoveEdge removes the first edge u->v via swap-and-pop. It is
// unidirectional: callers wanting to remove both directions call it twice.
// Missing edges are a no-op.
func (g *Graph) RemoveEdge(u, v NodeID) bool {
	if u >= g.maxNodes {
		return false
	}
	region := g.region(u)
	count := g.edgeCount[u]
	for i := uint32(0); i < count; i++ {
		if region[i].To == v {
			region[i] = region[count-1]
			g.edgeCount[u] = count - 1
			g.version.Edge++
			return true
		}
	}
	return false
}

// EdgesFrom returns the live edge slice for u (outgoing only).
func (g *Graph) EdgesFrom(u NodeID) []Edge {
	if u >= g.maxNodes {
		return nil
	}
	return g.region(u)[:g.edgeCount[u]]
}

// HasReverse reports whether the reverse edge v->u exists by scanning v's
// region. The Bidirectional flag is not consulted, so the check is always
// linear in v's edge count.
func (g *Graph) HasReverse(u, v NodeID) bool {
	for _, e := range g.EdgesFrom(v) {
		if e.To == u {
			return true
		}
	}
	return false
}

// NodeEdges enumerates edges touching id for introspection. When
// includeIncoming is requested, every source's region is scanned (this is
// the one place a full scan is documented as acceptable, per spec 4.1).
func (g *Graph) NodeEdges(id NodeID, includeBidirectional, includeIncoming bool) []EdgeView {
	var out []EdgeView
	for _, e := range g.EdgesFrom(id) {
		if !includeBidirectional && e.Bidirectional {
			continue
		}
		out = append(out, EdgeView{From: id, To: e.To, Cost: e.Cost, Bidirectional: e.Bidirectional})
	}
	if includeIncoming {
		for u := uint32(0); u < g.maxNodes; u++ {
			if u == id || !g.active[u] {
				continue
			}
			for _, e := range g.EdgesFrom(u) {
				if e.To != id {
					continue
				}
				if !includeBidirectional && e.Bidirectional {
					continue
				}
				out = append(out, EdgeView{From: u, To: id, Cost: e.Cost, Bidirectional: e.Bidirectional})
			}
		}
	}
	return out
}
