// Command demo builds a small graph, runs pathgrid's seed scenarios against
// it, and logs the results — a smoke check for the engine, not a benchmark.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"pathgrid/pkg/engine"
	"pathgrid/pkg/geom"
	"pathgrid/pkg/pgstatus"
	"pathgrid/pkg/projection"
)

func main() {
	maxNodes := flag.Uint("max-nodes", 1024, "fixed node capacity")
	maxEdges := flag.Uint("max-edges-per-node", 8, "fixed per-node outgoing edge capacity")
	pathCacheCap := flag.Int("path-cache-capacity", 256, "per-table path cache LRU capacity")
	spatial := flag.Bool("spatial-index", false, "force the spatial index on regardless of graph size")
	flag.Parse()

	cfg := engine.DefaultConfig()
	cfg.MaxNodes = uint32(*maxNodes)
	cfg.MaxEdgesPerNode = uint32(*maxEdges)
	cfg.HeapPoolCapacity = cfg.MaxNodes * 2
	cfg.HeapPoolBlockSize = cfg.MaxNodes
	cfg.PathCacheCapacity = *pathCacheCap
	cfg.SpatialIndexEnabled = *spatial

	start := time.Now()
	e := engine.New(cfg)
	defer e.Shutdown()

	runStraightChain(e)
	runDiamond(e)
	runProjectedQuery(e)

	log.Printf("done in %s", time.Since(start).Round(time.Microsecond))
}

// Scenario A: a straight chain of four nodes, bidirectional cost-10 edges.
func runStraightChain(e *engine.Engine) {
	n0, _ := e.AddNode(geom.Position{X: 0, Y: 0})
	n1, _ := e.AddNode(geom.Position{X: 10, Y: 0})
	n2, _ := e.AddNode(geom.Position{X: 20, Y: 0})
	n3, _ := e.AddNode(geom.Position{X: 30, Y: 0})
	e.AddEdge(n0, n1, 10, true)
	e.AddEdge(n1, n2, 10, true)
	e.AddEdge(n2, n3, 10, true)

	path, status := e.FindPath(context.Background(), n0, n3, nil)
	log.Printf("straight chain: status=%s path=%v", status, path)
	if status != pgstatus.Success {
		log.Fatalf("straight chain scenario failed: %s", status)
	}
}

// Scenario B: a diamond with two equal-cost routes between A and D.
func runDiamond(e *engine.Engine) {
	a, _ := e.AddNode(geom.Position{X: 100, Y: 0})
	b, _ := e.AddNode(geom.Position{X: 110, Y: 10})
	c, _ := e.AddNode(geom.Position{X: 110, Y: -10})
	d, _ := e.AddNode(geom.Position{X: 120, Y: 0})
	e.AddEdge(a, b, 14.14, true)
	e.AddEdge(a, c, 14.14, true)
	e.AddEdge(b, d, 14.14, true)
	e.AddEdge(c, d, 14.14, true)

	path, status := e.FindPath(context.Background(), a, d, nil)
	log.Printf("diamond: status=%s path=%v", status, path)
	if status != pgstatus.Success {
		log.Fatalf("diamond scenario failed: %s", status)
	}
}

// Scenario C: projecting an arbitrary point onto a two-node edge.
func runProjectedQuery(e *engine.Engine) {
	n1, _ := e.AddNode(geom.Position{X: 200, Y: 0})
	n2, _ := e.AddNode(geom.Position{X: 300, Y: 0})
	e.AddEdge(n1, n2, 100, true)

	path, status, entry := e.FindPathProjectedFromPoint(context.Background(), geom.Position{X: 250, Y: 5}, n2, nil, 0)
	log.Printf("projected query: status=%s entry=%+v path=%v", status, entry, path)
	if status != pgstatus.Success {
		log.Fatalf("projected query scenario failed: %s", status)
	}

	exitPath, status, exitEntry, exit := e.FindPathProjectedWithExit(context.Background(), projection.NodeEndpoint(n1), geom.Position{X: 250, Y: -5}, nil)
	log.Printf("projected exit: status=%s entry=%v exit=%+v path=%v", status, exitEntry, exit, exitPath)
	if status != pgstatus.Success {
		log.Fatalf("projected exit scenario failed: %s", status)
	}

	stats := e.Stats()
	log.Printf("stats: active_nodes=%d largest_component=%d path_cache_hit_rate=%.2f dist_cache_hit_rate=%.2f",
		stats.ActiveNodes, stats.LargestComponentSize, stats.PathCache.NodeHitRate, stats.DistCacheHitRate)
}
