// Package geom provides the 2D planar geometry primitives the rest of
// pathgrid is built on: positions, Euclidean distance, and the
// closest-point-on-segment projection used by the spatial index.
package geom

import "math"

// Epsilon is the float comparison tolerance used for near-zero position
// checks (node movement detection, degenerate-segment detection).
const Epsilon = 1e-4

// Position is a 2D point in world space.
type Position struct {
	X, Y float32
}

// Sub returns p - q.
func (p Position) Sub(q Position) Position {
	return Position{p.X - q.X, p.Y - q.Y}
}

// LenSq returns the squared length of p treated as a vector.
func (p Position) LenSq() float64 {
	x, y := float64(p.X), float64(p.Y)
	return x*x + y*y
}

// NearlyEqual reports whether p and q differ by less than Epsilon in both
// axes — the "|new - old| < ε" check used by move_node.
func NearlyEqual(p, q Position) bool {
	return math.Abs(float64(p.X-q.X)) < Epsilon && math.Abs(float64(p.Y-q.Y)) < Epsilon
}

// Distance returns the 2D Euclidean distance between a and b.
func Distance(a, b Position) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// PointToSegmentDist computes the distance from p to the closest point on
// segment ab, clamping the projection to the segment's endpoints. It
// returns the distance and the projection ratio t in [0,1] (0 = at a,
// 1 = at b).
func PointToSegmentDist(p, a, b Position) (dist float64, t float64) {
	if NearlyEqual(a, b) {
		return Distance(p, a), 0
	}

	ax, ay := float64(a.X), float64(a.Y)
	bx, by := float64(b.X), float64(b.Y)
	px, py := float64(p.X), float64(p.Y)

	dx := bx - ax
	dy := by - ay
	lenSq := dx*dx + dy*dy

	t = ((px-ax)*dx + (py-ay)*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	ex := px - (ax + t*dx)
	ey := py - (ay + t*dy)
	return math.Sqrt(ex*ex + ey*ey), t
}

// At returns the point at parameter t along segment ab (t=0 -> a, t=1 -> b).
func At(a, b Position, t float64) Position {
	return Position{
		X: a.X + float32(t)*(b.X-a.X),
		Y: a.Y + float32(t)*(b.Y-a.Y),
	}
}
