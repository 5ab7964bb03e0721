package spatial

import (
	"math"
	"testing"

	"pathgrid/pkg/geom"
	"pathgrid/pkg/graphstore"
)

func buildLineGraph(t *testing.T) *graphstore.Graph {
	t.Helper()
	g := graphstore.New(4, 4)
	a, _ := g.AddNode(geom.Position{X: 0, Y: 0})
	b, _ := g.AddNode(geom.Position{X: 100, Y: 0})
	if !g.AddEdge(a, b, 100, true) {
		t.Fatal("setup AddEdge failed")
	}
	return g
}

func TestQueryNearestEdgeProjectsOntoSegment(t *testing.T) {
	g := buildLineGraph(t)
	grid := New(0)
	grid.SetForceEnabled(true) // exercise the indexed path, not the small-graph fallback

	hit, ok := grid.QueryNearestEdge(g, geom.Position{X: 50, Y: 5})
	if !ok {
		t.Fatal("expected a hit")
	}
	if math.Abs(float64(hit.Projection.X)-50) > 1e-3 || math.Abs(float64(hit.Projection.Y)) > 1e-3 {
		t.Errorf("projection = %+v, want ~(50,0)", hit.Projection)
	}
	if math.Abs(hit.Dist-5) > 1e-3 {
		t.Errorf("dist = %v, want 5", hit.Dist)
	}
}

func TestQueryNearestEdgeEmptyGraph(t *testing.T) {
	g := graphstore.New(4, 4)
	grid := New(0)
	grid.SetForceEnabled(true)
	if _, ok := grid.QueryNearestEdge(g, geom.Position{}); ok {
		t.Error("expected no hit on an empty graph")
	}
}

func TestInvalidateTriggersRebuildOnNextQuery(t *testing.T) {
	g := buildLineGraph(t)
	grid := New(0)
	grid.SetForceEnabled(true)

	if _, ok := grid.QueryNearestEdge(g, geom.Position{X: 50, Y: 1}); !ok {
		t.Fatal("expected a hit before the edge is added")
	}

	c, _ := g.AddNode(geom.Position{X: 200, Y: 200})
	g.AddEdge(c, c, 0, false) // no-op-ish edge addition just to exercise Invalidate path below
	grid.AddEdge()

	hit, ok := grid.QueryNearestEdge(g, geom.Position{X: 199, Y: 200})
	if !ok {
		t.Fatal("expected a hit after rebuild picks up the new edge")
	}
	if hit.From != c || hit.To != c {
		t.Errorf("hit = %+v, want the new edge %d->%d (stale grid would return the a-b edge)", hit, c, c)
	}
}

// Below ShouldAutoEnable's threshold and without SetForceEnabled, queries
// must still return correct hits, but via the linear-scan fallback: the
// grid itself is never built.
func TestQueryNearestEdgeSkipsIndexBelowThresholdUnlessForced(t *testing.T) {
	g := buildLineGraph(t)
	grid := New(0)

	hit, ok := grid.QueryNearestEdge(g, geom.Position{X: 50, Y: 5})
	if !ok {
		t.Fatal("expected a hit via the linear-scan fallback")
	}
	if math.Abs(float64(hit.Projection.X)-50) > 1e-3 {
		t.Errorf("projection = %+v, want ~(50,0)", hit.Projection)
	}
	if grid.built {
		t.Error("grid.built = true, want false: small graph should use linear scan, not the index")
	}

	grid.SetForceEnabled(true)
	if _, ok := grid.QueryNearestEdge(g, geom.Position{X: 50, Y: 5}); !ok {
		t.Fatal("expected a hit once force-enabled")
	}
	if !grid.built {
		t.Error("grid.built = false, want true once force-enabled")
	}
}

func TestShouldAutoEnableThreshold(t *testing.T) {
	if ShouldAutoEnable(autoThresholdN - 1) {
		t.Errorf("ShouldAutoEnable(%d) = true, want false", autoThresholdN-1)
	}
	if !ShouldAutoEnable(autoThresholdN) {
		t.Errorf("ShouldAutoEnable(%d) = false, want true", autoThresholdN)
	}
}

func TestCellSizeClampedToBounds(t *testing.T) {
	g := graphstore.New(4, 4)
	a, _ := g.AddNode(geom.Position{X: 0, Y: 0})
	b, _ := g.AddNode(geom.Position{X: 1, Y: 0}) // very short edge -> mean*2 would be < 10
	g.AddEdge(a, b, 1, true)

	grid := New(0)
	grid.Rebuild(g)
	if grid.cellSize < minCellSize {
		t.Errorf("cellSize = %v, want >= %v", grid.cellSize, minCellSize)
	}
}
