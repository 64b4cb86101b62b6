package geo

import (
	"encoding/json"
	"fmt"

	"github.com/edanliahovetsky/bline-engine/pkg/core"
)

// ParsePolylinePoints parses a JSON array of coordinates into field points.
// Input format: "[[x1,y1],[x2,y2],...]"
func ParsePolylinePoints(input string) ([]core.Point, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return nil, fmt.Errorf("failed to parse polyline JSON: %w", err)
	}

	if len(coords) < 2 {
		return nil, fmt.Errorf("polyline must have at least 2 points, got %d", len(coords))
	}

	points := make([]core.Point, len(coords))
	for i, coord := range coords {
		if len(coord) < 2 {
			return nil, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		points[i] = core.Point{X: coord[0], Y: coord[1]}
	}

	return points, nil
}

// EncodePolyline renders field points in the polyline wire form, a JSON
// array of [x,y] pairs.
func EncodePolyline(points []core.Point) (string, error) {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.X, p.Y}
	}

	out, err := json.Marshal(coords)
	if err != nil {
		return "", fmt.Errorf("failed to encode polyline JSON: %w", err)
	}
	return string(out), nil
}
