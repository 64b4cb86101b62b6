// pkg/core/geometry.go
package core

import "math"

// Point represents a 2D field coordinate in meters.
type Point struct {
	X float64 `json:"x_meters"`
	Y float64 `json:"y_meters"`
}

// Distance returns the straight-line distance to other.
func (p Point) Distance(other Point) float64 {
	return math.Hypot(other.X-p.X, other.Y-p.Y)
}

// Lerp returns the point a fraction alpha of the way from p to other.
// alpha 0 returns p, alpha 1 returns other.
func (p Point) Lerp(other Point, alpha float64) Point {
	return Point{
		X: p.X + (other.X-p.X)*alpha,
		Y: p.Y + (other.Y-p.Y)*alpha,
	}
}

// Pose represents a planar position and heading.
type Pose struct {
	Position Point   `json:"position"`
	Heading  float64 `json:"heading_radians"`
}

// WrapAngle normalizes an angle in radians to (-pi, pi].
func WrapAngle(rad float64) float64 {
	wrapped := math.Mod(rad+math.Pi, 2*math.Pi)
	if wrapped < 0 {
		wrapped += 2 * math.Pi
	}
	return wrapped - math.Pi
}

// ShortestArc returns the signed smallest rotation from one heading to
// another, in radians within (-pi, pi].
func ShortestArc(from, to float64) float64 {
	return WrapAngle(to - from)
}

// LerpAngle interpolates between two headings along the shortest arc.
func LerpAngle(from, to, alpha float64) float64 {
	return WrapAngle(from + ShortestArc(from, to)*alpha)
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
