// Package spatial implements the uniform grid spatial index used to
// accelerate "nearest edge to point" queries during projection. Cells are
// stored as a flat slice sorted by cell key and searched by binary range,
// the same flat-region layout the graph store itself uses for edges —
// grounded on the teacher's flat sorted-grid Snapper.
package spatial

import (
	"math"
	"sort"

	"pathgrid/pkg/geom"
	"pathgrid/pkg/graphstore"
)

const (
	minCellSize      = 10.0
	maxCellSize      = 500.0
	maxTotalCells    = 1_000_000
	autoThresholdN   = 100 // below this node count, building the grid at all is optional
)

// Hit is a located nearest-edge result.
type Hit struct {
	From, To   uint32
	Projection geom.Position
	Dist       float64
}

type cellEdge struct {
	key      uint64
	from, to uint32
}

// Grid is a uniform spatial grid over the bounding box of active nodes.
type Grid struct {
	explicitCellSize float64 // 0 = auto-compute
	forceEnabled     bool    // true: always index, regardless of graph size

	cellSize   float64
	minX, minY float64
	cols, rows uint32

	entries []cellEdge // sorted by key
	dirty   bool
	built   bool
}

// New creates a Grid. explicitCellSize of 0 requests auto-sizing
// (≈2× mean active-edge length, clamped to [10,500]). The grid starts out
// not force-enabled: below ShouldAutoEnable's threshold, queries fall back
// to a full linear scan instead of building and maintaining the index. Call
// SetForceEnabled to override this.
func New(explicitCellSize float64) *Grid {
	return &Grid{explicitCellSize: explicitCellSize, dirty: true}
}

// SetForceEnabled controls whether the grid is built and maintained
// regardless of graph size. When false (the default), a graph smaller than
// ShouldAutoEnable's threshold is served by a full linear scan instead,
// per spec 4.6's "optional, size-driven" index.
func (g *Grid) SetForceEnabled(enabled bool) {
	g.forceEnabled = enabled
}

// Invalidate marks the grid stale; it is lazily rebuilt on the next query.
// AddEdge/RemoveEdge/UpdateNodePosition/InvalidateNode below all resolve
// to this — for a uniform grid, fine-grained incremental cell maintenance
// buys little over a lazy full rebuild at this scale, and the spec assigns
// implementers freedom here ("behave as their names suggest").
func (g *Grid) Invalidate() { g.dirty = true }

// AddEdge records that the graph topology changed; see Invalidate.
func (g *Grid) AddEdge() { g.Invalidate() }

// RemoveEdge records that the graph topology changed; see Invalidate.
func (g *Grid) RemoveEdge() { g.Invalidate() }

// UpdateNodePosition records that a node moved; see Invalidate.
func (g *Grid) UpdateNodePosition() { g.Invalidate() }

// InvalidateNode records that a node was removed; see Invalidate.
func (g *Grid) InvalidateNode() { g.Invalidate() }

// Shutdown releases the grid's storage.
func (g *Grid) Shutdown() {
	g.entries = nil
	g.built = false
}

// Rebuild forces a full rebuild from the current graph state.
func (g *Grid) Rebuild(gr *graphstore.Graph) {
	g.build(gr)
}

func (g *Grid) build(gr *graphstore.Graph) {
	g.dirty = false
	g.built = true
	g.entries = g.entries[:0]

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	var totalLen float64
	var edgeCount int

	type rawEdge struct{ from, to uint32 }
	var raw []rawEdge

	for u := uint32(0); u < gr.MaxNodes(); u++ {
		if !gr.Active(u) {
			continue
		}
		p := gr.Position(u)
		minX, maxX = math.Min(minX, float64(p.X)), math.Max(maxX, float64(p.X))
		minY, maxY = math.Min(minY, float64(p.Y)), math.Max(maxY, float64(p.Y))
		for _, e := range gr.EdgesFrom(u) {
			raw = append(raw, rawEdge{u, e.To})
			totalLen += geom.Distance(p, gr.Position(e.To))
			edgeCount++
		}
	}

	if edgeCount == 0 {
		g.cols, g.rows = 0, 0
		return
	}

	g.minX, g.minY = minX, minY

	cellSize := g.explicitCellSize
	if cellSize <= 0 {
		mean := totalLen / float64(edgeCount)
		cellSize = mean * 2
	}
	if cellSize < minCellSize {
		cellSize = minCellSize
	}
	if cellSize > maxCellSize {
		cellSize = maxCellSize
	}

	width := maxX - minX
	height := maxY - minY
	for {
		cols := uint32(width/cellSize) + 1
		rows := uint32(height/cellSize) + 1
		if uint64(cols)*uint64(rows) <= maxTotalCells {
			g.cols, g.rows = cols, rows
			g.cellSize = cellSize
			break
		}
		cellSize *= 1.5 // grow cell size until the grid fits the cap
	}

	for _, e := range raw {
		up, vp := gr.Position(e.from), gr.Position(e.to)
		loCol, loRow := g.cellOf(math.Min(float64(up.X), float64(vp.X)), math.Min(float64(up.Y), float64(vp.Y)))
		hiCol, hiRow := g.cellOf(math.Max(float64(up.X), float64(vp.X)), math.Max(float64(up.Y), float64(vp.Y)))
		for c := loCol; c <= hiCol; c++ {
			for r := loRow; r <= hiRow; r++ {
				g.entries = append(g.entries, cellEdge{key: g.cellKey(c, r), from: e.from, to: e.to})
			}
		}
	}

	sort.Slice(g.entries, func(i, j int) bool { return g.entries[i].key < g.entries[j].key })
}

func (g *Grid) cellOf(x, y float64) (col, row uint32) {
	c := (x - g.minX) / g.cellSize
	r := (y - g.minY) / g.cellSize
	if c < 0 {
		c = 0
	}
	if r < 0 {
		r = 0
	}
	return uint32(c), uint32(r)
}

func (g *Grid) cellKey(col, row uint32) uint64 {
	return uint64(col)<<32 | uint64(row)
}

func (g *Grid) cellRange(key uint64) []cellEdge {
	lo := sort.Search(len(g.entries), func(i int) bool { return g.entries[i].key >= key })
	if lo >= len(g.entries) || g.entries[lo].key != key {
		return nil
	}
	hi := sort.Search(len(g.entries), func(i int) bool { return g.entries[i].key > key })
	return g.entries[lo:hi]
}

// QueryNearestEdge locates the nearest edge to p by searching its cell and
// the surrounding 3x3 neighborhood, projecting p onto each candidate
// segment. It lazily rebuilds the grid first if stale. If the 3x3
// neighborhood holds no candidates, it falls back to a full linear scan
// over the graph's active edges — correctness over speed, per spec.
//
// Below ShouldAutoEnable's threshold, and unless SetForceEnabled(true) was
// called, the index is never built at all: the query goes straight to the
// linear scan, since maintaining the grid buys nothing at that scale.
func (g *Grid) QueryNearestEdge(gr *graphstore.Graph, p geom.Position) (Hit, bool) {
	if !g.forceEnabled && !ShouldAutoEnable(gr.NumActiveNodes()) {
		return g.linearScan(gr, p)
	}

	if g.dirty || !g.built {
		g.build(gr)
	}

	if g.cols == 0 {
		return g.linearScan(gr, p)
	}

	col, row := g.cellOf(float64(p.X), float64(p.Y))
	best := Hit{Dist: math.Inf(1)}
	found := false

	for dc := int64(-1); dc <= 1; dc++ {
		for dr := int64(-1); dr <= 1; dr++ {
			c := int64(col) + dc
			r := int64(row) + dr
			if c < 0 || r < 0 {
				continue
			}
			for _, ce := range g.cellRange(g.cellKey(uint32(c), uint32(r))) {
				if !gr.Active(ce.from) || !gr.Active(ce.to) {
					continue
				}
				dist, t := geom.PointToSegmentDist(p, gr.Position(ce.from), gr.Position(ce.to))
				if dist < best.Dist {
					best = Hit{
						From:       ce.from,
						To:         ce.to,
						Projection: geom.At(gr.Position(ce.from), gr.Position(ce.to), t),
						Dist:       dist,
					}
					found = true
				}
			}
		}
	}

	if !found {
		return g.linearScan(gr, p)
	}
	return best, true
}

func (g *Grid) linearScan(gr *graphstore.Graph, p geom.Position) (Hit, bool) {
	best := Hit{Dist: math.Inf(1)}
	found := false
	for u := uint32(0); u < gr.MaxNodes(); u++ {
		if !gr.Active(u) {
			continue
		}
		for _, e := range gr.EdgesFrom(u) {
			if !gr.Active(e.To) {
				continue
			}
			dist, t := geom.PointToSegmentDist(p, gr.Position(u), gr.Position(e.To))
			if dist < best.Dist {
				best = Hit{
					From:       u,
					To:         e.To,
					Projection: geom.At(gr.Position(u), gr.Position(e.To), t),
					Dist:       dist,
				}
				found = true
			}
		}
	}
	return best, found
}

// Stats returns the number of cells registered and the largest bucket
// size, for introspection.
func (g *Grid) Stats() (cells int, maxBucket int) {
	if len(g.entries) == 0 {
		return 0, 0
	}
	count := 0
	run := 1
	prevKey := g.entries[0].key
	for i := 1; i < len(g.entries); i++ {
		if g.entries[i].key == prevKey {
			run++
		} else {
			count++
			if run > maxBucket {
				maxBucket = run
			}
			run = 1
			prevKey = g.entries[i].key
		}
	}
	count++
	if run > maxBucket {
		maxBucket = run
	}
	return count, maxBucket
}

// ShouldAutoEnable reports whether a graph of the given active node count
// has reached the threshold (100 nodes or more) where the spatial index is
// worth building automatically.
func ShouldAutoEnable(activeNodes uint32) bool {
	return activeNodes >= autoThresholdN
}
