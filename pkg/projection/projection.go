// Package projection implements the virtual-node protocol: injecting an
// arbitrary off-graph point into A* by locating its nearest edge,
// inserting a transient node at the projection, wiring it to that
// edge's endpoints, searching, and tearing the transient node back down
// on every exit path — success, search failure, or capacity exhaustion.
package projection

import (
	"context"

	"pathgrid/pkg/astar"
	"pathgrid/pkg/geom"
	"pathgrid/pkg/graphstore"
	"pathgrid/pkg/pgstatus"
	"pathgrid/pkg/spatial"
)

// DefaultVirtualMaxPath is the default search-depth budget for searches
// that start or end at a virtual node.
const DefaultVirtualMaxPath = 64

// Endpoint is either an existing graph node or an arbitrary point to be
// projected, used by the point-to-point/node-to-point entry points so one
// call can express either case.
type Endpoint struct {
	isNode bool
	node   graphstore.NodeID
	point  geom.Position
}

// NodeEndpoint builds an Endpoint referring to an existing node.
func NodeEndpoint(id graphstore.NodeID) Endpoint {
	return Endpoint{isNode: true, node: id}
}

// PointEndpoint builds an Endpoint referring to an arbitrary point.
func PointEndpoint(p geom.Position) Endpoint {
	return Endpoint{point: p}
}

// Projector runs projected searches over one graph, using grid to find
// nearest edges and search to run A*.
type Projector struct {
	graph          *graphstore.Graph
	grid           *spatial.Grid
	search         *astar.Engine
	virtualMaxPath uint32
}

// New creates a Projector. virtualMaxPath of 0 uses DefaultVirtualMaxPath.
func New(graph *graphstore.Graph, grid *spatial.Grid, search *astar.Engine, virtualMaxPath uint32) *Projector {
	if virtualMaxPath == 0 {
		virtualMaxPath = DefaultVirtualMaxPath
	}
	return &Projector{graph: graph, grid: grid, search: search, virtualMaxPath: virtualMaxPath}
}

type direction int

const (
	outgoing direction = iota // edges run virtual -> real (point is the search start)
	incoming                  // edges run real -> virtual (point is the search goal)
)

// insertVirtual inserts a transient node at hit.Projection and wires it
// to hit's endpoints per dir. On any failure it rolls back (deactivates
// the transient node, which also removes any edges already added) and
// returns NodeFull or EdgeFull; the exported callers report either as
// VirtualNodeFailed.
func (p *Projector) insertVirtual(hit spatial.Hit, dir direction) (graphstore.NodeID, pgstatus.Status) {
	id, ok := p.graph.AddNode(hit.Projection)
	if !ok {
		return graphstore.InvalidID, pgstatus.NodeFull
	}

	bidirectional := false
	for _, e := range p.graph.EdgesFrom(hit.From) {
		if e.To == hit.To {
			bidirectional = e.Bidirectional
			break
		}
	}

	distFrom := geom.Distance(hit.Projection, p.graph.Position(hit.From))
	distTo := geom.Distance(hit.Projection, p.graph.Position(hit.To))

	var ok1, ok2 bool
	switch dir {
	case outgoing:
		ok1 = p.graph.AddEdge(id, hit.To, float32(distTo), false)
		if bidirectional {
			ok2 = p.graph.AddEdge(id, hit.From, float32(distFrom), false)
		} else {
			ok2 = true
		}
	case incoming:
		ok1 = p.graph.AddEdge(hit.From, id, float32(distFrom), false)
		if bidirectional {
			ok2 = p.graph.AddEdge(hit.To, id, float32(distTo), false)
		} else {
			ok2 = true
		}
	}

	if !ok1 || !ok2 {
		p.graph.RemoveNode(id)
		p.grid.InvalidateNode()
		return graphstore.InvalidID, pgstatus.EdgeFull
	}

	p.grid.AddEdge()
	return id, pgstatus.Success
}

func (p *Projector) removeVirtual(id graphstore.NodeID) {
	p.graph.RemoveNode(id)
	p.grid.InvalidateNode()
}

// FromPoint finds a path from an arbitrary point to goal using the
// Projector's default search-depth budget.
func (p *Projector) FromPoint(ctx context.Context, point geom.Position, goal graphstore.NodeID) ([]graphstore.NodeID, geom.Position, pgstatus.Status) {
	return p.FromPointBudgeted(ctx, point, goal, 0)
}

// FromPointBudgeted is FromPoint with a per-call virtual_max_path override
// (0 uses the Projector's default). The returned path excludes the
// transient node; the caller combines entryPoint with it to recover the
// full geometric route.
func (p *Projector) FromPointBudgeted(ctx context.Context, point geom.Position, goal graphstore.NodeID, budget uint32) ([]graphstore.NodeID, geom.Position, pgstatus.Status) {
	hit, ok := p.grid.QueryNearestEdge(p.graph, point)
	if !ok {
		return nil, geom.Position{}, pgstatus.NoProjection
	}
	if !p.graph.Active(goal) {
		return nil, geom.Position{}, pgstatus.GoalNodeInvalid
	}

	virtualID, status := p.insertVirtual(hit, outgoing)
	if !status.OK() {
		return nil, hit.Projection, pgstatus.VirtualNodeFailed
	}
	defer p.removeVirtual(virtualID)

	path, status := p.search.FindPathBudgeted(ctx, virtualID, goal, p.budget(budget))
	if !status.OK() {
		return nil, hit.Projection, status
	}
	return path[1:], hit.Projection, pgstatus.Success
}

// ToPoint finds a path from start to an arbitrary point using the
// Projector's default search-depth budget.
func (p *Projector) ToPoint(ctx context.Context, start graphstore.NodeID, point geom.Position) ([]graphstore.NodeID, geom.Position, pgstatus.Status) {
	return p.ToPointBudgeted(ctx, start, point, 0)
}

// ToPointBudgeted is ToPoint with a per-call virtual_max_path override.
func (p *Projector) ToPointBudgeted(ctx context.Context, start graphstore.NodeID, point geom.Position, budget uint32) ([]graphstore.NodeID, geom.Position, pgstatus.Status) {
	hit, ok := p.grid.QueryNearestEdge(p.graph, point)
	if !ok {
		return nil, geom.Position{}, pgstatus.NoProjection
	}
	if !p.graph.Active(start) {
		return nil, geom.Position{}, pgstatus.StartNodeInvalid
	}

	virtualID, status := p.insertVirtual(hit, incoming)
	if !status.OK() {
		return nil, hit.Projection, pgstatus.VirtualNodeFailed
	}
	defer p.removeVirtual(virtualID)

	path, status := p.search.FindPathBudgeted(ctx, start, virtualID, p.budget(budget))
	if !status.OK() {
		return nil, hit.Projection, status
	}
	return path[:len(path)-1], hit.Projection, pgstatus.Success
}

// PointToPoint finds a path between two arbitrary points, inserting a
// transient node at each projection and removing both before returning,
// using the Projector's default search-depth budget.
func (p *Projector) PointToPoint(ctx context.Context, start, end geom.Position) ([]graphstore.NodeID, geom.Position, geom.Position, pgstatus.Status) {
	return p.PointToPointBudgeted(ctx, start, end, 0)
}

// PointToPointBudgeted is PointToPoint with a per-call virtual_max_path
// override.
func (p *Projector) PointToPointBudgeted(ctx context.Context, start, end geom.Position, budget uint32) ([]graphstore.NodeID, geom.Position, geom.Position, pgstatus.Status) {
	startHit, ok := p.grid.QueryNearestEdge(p.graph, start)
	if !ok {
		return nil, geom.Position{}, geom.Position{}, pgstatus.NoProjection
	}
	startID, status := p.insertVirtual(startHit, outgoing)
	if !status.OK() {
		return nil, startHit.Projection, geom.Position{}, pgstatus.VirtualNodeFailed
	}
	defer p.removeVirtual(startID)

	endHit, ok := p.grid.QueryNearestEdge(p.graph, end)
	if !ok {
		return nil, startHit.Projection, geom.Position{}, pgstatus.NoProjection
	}
	endID, status := p.insertVirtual(endHit, incoming)
	if !status.OK() {
		return nil, startHit.Projection, endHit.Projection, pgstatus.VirtualNodeFailed
	}
	defer p.removeVirtual(endID)

	path, status := p.search.FindPathBudgeted(ctx, startID, endID, p.budget(budget))
	if !status.OK() {
		return nil, startHit.Projection, endHit.Projection, status
	}
	return path[1 : len(path)-1], startHit.Projection, endHit.Projection, pgstatus.Success
}

// WithExit resolves start (a node or a point) to end (always a point),
// returning the entry point (nil if start was already a node) and the
// exit projection. This backs Engine.FindPathProjectedWithExit.
func (p *Projector) WithExit(ctx context.Context, start Endpoint, end geom.Position) ([]graphstore.NodeID, *geom.Position, geom.Position, pgstatus.Status) {
	if start.isNode {
		path, exit, status := p.ToPoint(ctx, start.node, end)
		return path, nil, exit, status
	}
	path, entry, exit, status := p.PointToPoint(ctx, start.point, end)
	return path, &entry, exit, status
}

func (p *Projector) budget(override uint32) uint32 {
	if override == 0 {
		return p.virtualMaxPath
	}
	return override
}
