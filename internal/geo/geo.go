// Package geo builds simplefeatures geometries from field-frame coordinates.
// Everything here is planar: positions are meters in the field frame, so no
// CRS transforms apply. Trails are stored in the WKB format, which is a
// binary representation of the geometry data.
package geo

import (
	"errors"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/edanliahovetsky/bline-engine/pkg/core"
)

// ErrInvalidCoordinates is returned when a coordinate string cannot be parsed.
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// PointFromString parses a field position from "x,y" (meters).
func PointFromString(coords string) (core.Point, error) {
	parts := strings.Split(coords, ",")
	if len(parts) != 2 {
		return core.Point{}, ErrInvalidCoordinates
	}

	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return core.Point{}, ErrInvalidCoordinates
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return core.Point{}, ErrInvalidCoordinates
	}

	return core.Point{X: x, Y: y}, nil
}

// PoseFromString parses a start pose from "x,y" or "x,y,heading"
// (meters, radians). A missing heading defaults to zero.
func PoseFromString(coords string) (core.Pose, error) {
	parts := strings.Split(coords, ",")
	if len(parts) != 2 && len(parts) != 3 {
		return core.Pose{}, ErrInvalidCoordinates
	}

	point, err := PointFromString(strings.Join(parts[:2], ","))
	if err != nil {
		return core.Pose{}, err
	}

	pose := core.Pose{Position: point}
	if len(parts) == 3 {
		heading, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return core.Pose{}, ErrInvalidCoordinates
		}
		pose.Heading = heading
	}

	return pose, nil
}

// GeomPoint converts a field position to a simplefeatures point.
func GeomPoint(p core.Point) geom.Point {
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: p.X, Y: p.Y},
			Type: geom.DimXY,
		},
	)
}

// Trail builds a LineString through the positions of a sample series.
func Trail(samples []core.Sample) (geom.LineString, error) {
	if len(samples) < 2 {
		return geom.LineString{}, errors.New("trail needs at least 2 samples")
	}

	flatCoords := make([]float64, 0, len(samples)*2)
	for _, s := range samples {
		flatCoords = append(flatCoords, s.X, s.Y)
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	return geom.NewLineString(seq), nil
}

// TrailWKT renders the sample trail as WKT, or "" when the trail is
// degenerate.
func TrailWKT(samples []core.Sample) string {
	ls, err := Trail(samples)
	if err != nil {
		return ""
	}
	return ls.AsText()
}

// TrailLength returns the cumulative planar distance covered by the samples
// in meters.
func TrailLength(samples []core.Sample) float64 {
	ls, err := Trail(samples)
	if err != nil {
		return 0
	}
	return ls.Length()
}

// PlannedLine builds a LineString through a planned route, start position
// first and then each translation anchor. This is the straight-segment route
// the trajectory converges toward, not the trajectory itself.
func PlannedLine(route []core.Point) (geom.LineString, error) {
	if len(route) < 2 {
		return geom.LineString{}, errors.New("planned line needs a start and at least 1 anchor")
	}

	flatCoords := make([]float64, 0, len(route)*2)
	for _, p := range route {
		flatCoords = append(flatCoords, p.X, p.Y)
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	return geom.NewLineString(seq), nil
}
