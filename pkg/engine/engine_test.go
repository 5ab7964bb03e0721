package engine

import (
	"context"
	"math"
	"testing"

	"pathgrid/pkg/geom"
	"pathgrid/pkg/graphstore"
	"pathgrid/pkg/pgstatus"
	"pathgrid/pkg/projection"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxNodes = 16
	cfg.MaxEdgesPerNode = 4
	cfg.HeapPoolCapacity = 32
	cfg.HeapPoolBlockSize = 16
	return cfg
}

// Scenario A.
func TestFindPathStraightChain(t *testing.T) {
	e := New(smallConfig())
	n0, _ := e.AddNode(geom.Position{X: 0, Y: 0})
	n1, _ := e.AddNode(geom.Position{X: 10, Y: 0})
	n2, _ := e.AddNode(geom.Position{X: 20, Y: 0})
	n3, _ := e.AddNode(geom.Position{X: 30, Y: 0})
	e.AddEdge(n0, n1, 10, true)
	e.AddEdge(n1, n2, 10, true)
	e.AddEdge(n2, n3, 10, true)

	path, status := e.FindPath(context.Background(), n0, n3, nil)
	if status != pgstatus.Success {
		t.Fatalf("status = %v, want Success", status)
	}
	want := []graphstore.NodeID{n0, n1, n2, n3}
	if len(path) != len(want) {
		t.Fatalf("path = %v, want %v", path, want)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Errorf("path[%d] = %d, want %d", i, path[i], want[i])
		}
	}

	var total float32
	for i := 0; i+1 < len(path); i++ {
		for _, edge := range e.NodeEdges(path[i], true, false) {
			if edge.To == path[i+1] {
				total += edge.Cost
				break
			}
		}
	}
	if math.Abs(float64(total)-30) > 1e-3 {
		t.Errorf("total cost = %v, want 30", total)
	}
}

// Scenario B.
func TestFindPathDiamond(t *testing.T) {
	e := New(smallConfig())
	a, _ := e.AddNode(geom.Position{X: 0, Y: 0})
	b, _ := e.AddNode(geom.Position{X: 10, Y: 10})
	c, _ := e.AddNode(geom.Position{X: 10, Y: -10})
	d, _ := e.AddNode(geom.Position{X: 20, Y: 0})
	e.AddEdge(a, b, 14.14, true)
	e.AddEdge(a, c, 14.14, true)
	e.AddEdge(b, d, 14.14, true)
	e.AddEdge(c, d, 14.14, true)

	path, status := e.FindPath(context.Background(), a, d, nil)
	if status != pgstatus.Success {
		t.Fatalf("status = %v, want Success", status)
	}
	if len(path) != 3 || path[0] != a || path[2] != d {
		t.Fatalf("path = %v, want length 3 from a to d", path)
	}
	if path[1] != b && path[1] != c {
		t.Fatalf("path[1] = %d, want b(%d) or c(%d)", path[1], b, c)
	}
}

// Scenario C.
func TestFindPathProjectedFromPointRoundtrip(t *testing.T) {
	e := New(smallConfig())
	n1, _ := e.AddNode(geom.Position{X: 0, Y: 0})
	n2, _ := e.AddNode(geom.Position{X: 100, Y: 0})
	e.AddEdge(n1, n2, 100, true)

	beforeNodes := e.graph.NumActiveNodes()
	beforeVersion := e.graph.Version()

	path, status, entry := e.FindPathProjectedFromPoint(context.Background(), geom.Position{X: 50, Y: 5}, n2, nil, 0)
	if status != pgstatus.Success {
		t.Fatalf("status = %v, want Success", status)
	}
	if math.Abs(float64(entry.X)-50) > 1e-3 || math.Abs(float64(entry.Y)) > 1e-3 {
		t.Errorf("entry = %+v, want ~(50,0)", entry)
	}
	if len(path) != 1 || path[0] != n2 {
		t.Fatalf("path = %v, want [%d] (entry point is returned separately)", path, n2)
	}

	if e.graph.NumActiveNodes() != beforeNodes {
		t.Errorf("active node count = %d, want %d", e.graph.NumActiveNodes(), beforeNodes)
	}
	after := e.graph.Version()
	if after.Node <= beforeVersion.Node || after.Edge <= beforeVersion.Edge {
		t.Errorf("expected versions to advance, got before=%+v after=%+v", beforeVersion, after)
	}
}

// Scenario D.
func TestAddNodeCapacityExhaustion(t *testing.T) {
	cfg := smallConfig()
	cfg.MaxNodes = 2
	e := New(cfg)

	if _, status := e.AddNode(geom.Position{}); status != pgstatus.Success {
		t.Fatalf("first AddNode status = %v, want Success", status)
	}
	if _, status := e.AddNode(geom.Position{}); status != pgstatus.Success {
		t.Fatalf("second AddNode status = %v, want Success", status)
	}
	if _, status := e.AddNode(geom.Position{}); status != pgstatus.NodeFull {
		t.Fatalf("third AddNode status = %v, want NodeFull", status)
	}
	if got := e.graph.NumActiveNodes(); got != 2 {
		t.Errorf("active nodes = %d, want 2", got)
	}
}

// Scenario F.
func TestFindPathProjectedFromPointNoProjectionOnEmptyGraph(t *testing.T) {
	e := New(smallConfig())

	_, status, _ := e.FindPathProjectedFromPoint(context.Background(), geom.Position{X: 0, Y: 0}, 0, nil, 0)
	if status != pgstatus.NoProjection {
		t.Fatalf("status = %v, want NoProjection on an empty graph", status)
	}
}

// Property 5: cache consistency across repeat lookups, node moves, and
// edge-version-bumping mutations.
func TestCacheConsistency(t *testing.T) {
	e := New(smallConfig())
	a, _ := e.AddNode(geom.Position{X: 0, Y: 0})
	b, _ := e.AddNode(geom.Position{X: 10, Y: 0})
	c, _ := e.AddNode(geom.Position{X: 20, Y: 0})
	e.AddEdge(a, b, 10, true)
	e.AddEdge(b, c, 10, true)

	first, status := e.FindPath(context.Background(), a, c, nil)
	if status != pgstatus.Success {
		t.Fatalf("status = %v, want Success", status)
	}
	second, status := e.FindPath(context.Background(), a, c, nil)
	if status != pgstatus.Success {
		t.Fatalf("status = %v, want Success", status)
	}
	if len(first) != len(second) {
		t.Fatalf("second lookup = %v, want identical to %v", second, first)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("second lookup = %v, want identical to %v", second, first)
		}
	}

	if _, ok := e.cache.LookupNode(e.graph, a, c); !ok {
		t.Fatal("expected a warm cache entry before mutation")
	}

	e.MoveNode(b, geom.Position{X: 10, Y: 7})
	if _, ok := e.cache.LookupNode(e.graph, a, c); ok {
		t.Fatal("expected cache miss after moving a node on the cached path")
	}

	// Re-insert, then bump edge_version via an unrelated edge mutation.
	e.FindPath(context.Background(), a, c, nil)
	d, _ := e.AddNode(geom.Position{X: 0, Y: 10})
	e.AddEdge(a, d, 10, true)
	if _, ok := e.cache.LookupNode(e.graph, a, c); ok {
		t.Fatal("expected cache miss after an edge_version-bumping mutation")
	}
}

// Scenario E, exercised through the façade: an instrumented search hook
// forces GRAPH_CHANGED on every expansion, exhausting the retry budget.
func TestFindPathRetryLimitExceeded(t *testing.T) {
	e := New(smallConfig())
	a, _ := e.AddNode(geom.Position{X: 0, Y: 0})
	b, _ := e.AddNode(geom.Position{X: 10, Y: 0})
	c, _ := e.AddNode(geom.Position{X: 20, Y: 0})
	e.AddEdge(a, b, 10, true)
	e.AddEdge(b, c, 10, true)

	attempts := 0
	e.search.Hook = func() {
		attempts++
		e.graph.MoveNode(b, geom.Position{X: 10, Y: float32(attempts)})
	}

	_, status := e.FindPath(context.Background(), a, c, nil)
	if status != pgstatus.GraphChangedTooOften {
		t.Fatalf("status = %v, want GraphChangedTooOften", status)
	}
}

func TestFindPathProjectedWithExitNodeStart(t *testing.T) {
	e := New(smallConfig())
	n1, _ := e.AddNode(geom.Position{X: 0, Y: 0})
	n2, _ := e.AddNode(geom.Position{X: 100, Y: 0})
	e.AddEdge(n1, n2, 100, true)

	path, status, entry, exit := e.FindPathProjectedWithExit(context.Background(), projection.NodeEndpoint(n1), geom.Position{X: 50, Y: 5}, nil)
	if status != pgstatus.Success {
		t.Fatalf("status = %v, want Success", status)
	}
	if entry != nil {
		t.Errorf("entry = %+v, want nil (start was already a node)", entry)
	}
	if len(path) != 1 || path[0] != n1 {
		t.Fatalf("path = %v, want [%d]", path, n1)
	}
	if math.Abs(float64(exit.X)-50) > 1e-3 {
		t.Errorf("exit = %+v, want x~=50", exit)
	}
}

func TestFindPathProjectedWithExitPointStart(t *testing.T) {
	e := New(smallConfig())
	n1, _ := e.AddNode(geom.Position{X: 0, Y: 0})
	n2, _ := e.AddNode(geom.Position{X: 100, Y: 0})
	e.AddEdge(n1, n2, 100, true)

	path, status, entry, _ := e.FindPathProjectedWithExit(context.Background(), projection.PointEndpoint(geom.Position{X: 10, Y: 1}), geom.Position{X: 90, Y: 1}, nil)
	if status != pgstatus.Success {
		t.Fatalf("status = %v, want Success", status)
	}
	if entry == nil {
		t.Fatal("entry = nil, want a projected entry point")
	}
	for _, n := range path {
		if n != n1 && n != n2 {
			t.Errorf("path contains unexpected node %d", n)
		}
	}
}

func TestStatsReportsLargestComponent(t *testing.T) {
	e := New(smallConfig())
	a, _ := e.AddNode(geom.Position{X: 0, Y: 0})
	b, _ := e.AddNode(geom.Position{X: 10, Y: 0})
	e.AddEdge(a, b, 10, true)
	e.AddNode(geom.Position{X: 500, Y: 500}) // isolated

	stats := e.Stats()
	if stats.LargestComponentSize != 2 {
		t.Errorf("largest component size = %d, want 2", stats.LargestComponentSize)
	}
	if stats.ActiveNodes != 3 {
		t.Errorf("active nodes = %d, want 3", stats.ActiveNodes)
	}
	if e.IsGraphConnected() {
		t.Error("IsGraphConnected() = true, want false (one isolated node)")
	}
}

func TestFindPathOutBufferReused(t *testing.T) {
	e := New(smallConfig())
	a, _ := e.AddNode(geom.Position{X: 0, Y: 0})
	b, _ := e.AddNode(geom.Position{X: 10, Y: 0})
	e.AddEdge(a, b, 10, true)

	out := make([]graphstore.NodeID, 0, 8)
	path, status := e.FindPath(context.Background(), a, b, out)
	if status != pgstatus.Success {
		t.Fatalf("status = %v, want Success", status)
	}
	if cap(path) != cap(out) {
		t.Error("expected FindPath to reuse out's backing array when it has capacity")
	}
}
