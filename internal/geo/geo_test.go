package geo

import (
	"errors"
	"math"
	"strings"
	"testing"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/edanliahovetsky/bline-engine/pkg/core"
)

func TestPointFromString_Valid(t *testing.T) {
	point, err := PointFromString("100.5,200.25")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if point.X != 100.5 {
		t.Errorf("expected X=100.5, got %f", point.X)
	}
	if point.Y != 200.25 {
		t.Errorf("expected Y=200.25, got %f", point.Y)
	}
}

func TestPointFromString_NegativeCoordinates(t *testing.T) {
	point, err := PointFromString("-1.5,-2.25")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if point.X != -1.5 {
		t.Errorf("expected X=-1.5, got %f", point.X)
	}
	if point.Y != -2.25 {
		t.Errorf("expected Y=-2.25, got %f", point.Y)
	}
}

func TestPointFromString_TrimsSpaces(t *testing.T) {
	point, err := PointFromString(" 3.0 , 4.0 ")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if point.X != 3.0 {
		t.Errorf("expected X=3.0, got %f", point.X)
	}
	if point.Y != 4.0 {
		t.Errorf("expected Y=4.0, got %f", point.Y)
	}
}

func TestPointFromString_ScientificNotation(t *testing.T) {
	point, err := PointFromString("1e2,2e1")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if point.X != 100 {
		t.Errorf("expected X=100, got %f", point.X)
	}
	if point.Y != 20 {
		t.Errorf("expected Y=20, got %f", point.Y)
	}
}

func TestPointFromString_InvalidTooFewComponents(t *testing.T) {
	_, err := PointFromString("100.5")

	if err == nil {
		t.Fatal("expected error for invalid coordinates")
	}
	if !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
}

func TestPointFromString_InvalidTooManyComponents(t *testing.T) {
	_, err := PointFromString("1,2,3")

	if err == nil {
		t.Fatal("expected error for invalid coordinates")
	}
	if !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
}

func TestPointFromString_InvalidEmptyString(t *testing.T) {
	_, err := PointFromString("")

	if err == nil {
		t.Fatal("expected error for empty string")
	}
	if !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
}

func TestPointFromString_InvalidX(t *testing.T) {
	_, err := PointFromString("abc,200.25")

	if err == nil {
		t.Fatal("expected error for invalid x")
	}
	if !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
}

func TestPointFromString_InvalidY(t *testing.T) {
	_, err := PointFromString("100.5,xyz")

	if err == nil {
		t.Fatal("expected error for invalid y")
	}
	if !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
}

func TestPoseFromString_WithHeading(t *testing.T) {
	pose, err := PoseFromString("1.0,2.0,1.5708")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pose.Position.X != 1.0 {
		t.Errorf("expected X=1.0, got %f", pose.Position.X)
	}
	if pose.Position.Y != 2.0 {
		t.Errorf("expected Y=2.0, got %f", pose.Position.Y)
	}
	if pose.Heading != 1.5708 {
		t.Errorf("expected heading=1.5708, got %f", pose.Heading)
	}
}

func TestPoseFromString_WithoutHeading(t *testing.T) {
	pose, err := PoseFromString("1.0,2.0")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pose.Heading != 0 {
		t.Errorf("expected heading=0, got %f", pose.Heading)
	}
}

func TestPoseFromString_InvalidHeading(t *testing.T) {
	_, err := PoseFromString("1.0,2.0,north")

	if err == nil {
		t.Fatal("expected error for invalid heading")
	}
	if !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
}

func TestPoseFromString_InvalidExtraComponents(t *testing.T) {
	_, err := PoseFromString("1,2,3,4")

	if err == nil {
		t.Fatal("expected error for extra components")
	}
	if !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
}

func TestGeomPoint(t *testing.T) {
	point := GeomPoint(core.Point{X: 3.5, Y: -1.25})

	coords, ok := point.Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	if coords.X != 3.5 {
		t.Errorf("expected X=3.5, got %f", coords.X)
	}
	if coords.Y != -1.25 {
		t.Errorf("expected Y=-1.25, got %f", coords.Y)
	}
}

func trailSamples() []core.Sample {
	return []core.Sample{
		{T: 0, X: 0, Y: 0},
		{T: 0.02, X: 3, Y: 0},
		{T: 0.04, X: 3, Y: 4},
	}
}

func TestTrail_Valid(t *testing.T) {
	ls, err := Trail(trailSamples())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seq := ls.Coordinates()
	if seq.Length() != 3 {
		t.Fatalf("expected 3 points, got %d", seq.Length())
	}
	if got := seq.GetXY(1); got != (geom.XY{X: 3, Y: 0}) {
		t.Errorf("expected point 1 at (3,0), got %v", got)
	}
	if got := seq.GetXY(2); got != (geom.XY{X: 3, Y: 4}) {
		t.Errorf("expected point 2 at (3,4), got %v", got)
	}
}

func TestTrail_TooFewSamples(t *testing.T) {
	_, err := Trail([]core.Sample{{X: 1, Y: 2}})

	if err == nil {
		t.Fatal("expected error for single-sample trail")
	}
}

func TestTrailLength(t *testing.T) {
	length := TrailLength(trailSamples())

	if math.Abs(length-7) > 1e-9 {
		t.Errorf("expected length 7, got %f", length)
	}
}

func TestTrailLength_Degenerate(t *testing.T) {
	if length := TrailLength(nil); length != 0 {
		t.Errorf("expected length 0 for empty trail, got %f", length)
	}
}

func TestTrailWKT(t *testing.T) {
	wkt := TrailWKT(trailSamples())

	if !strings.HasPrefix(wkt, "LINESTRING") {
		t.Errorf("expected LINESTRING WKT, got %q", wkt)
	}
}

func TestTrailWKT_Degenerate(t *testing.T) {
	if wkt := TrailWKT(nil); wkt != "" {
		t.Errorf("expected empty WKT for empty trail, got %q", wkt)
	}
}

func TestPlannedLine(t *testing.T) {
	route := []core.Point{
		{X: 0, Y: 0},
		{X: 2, Y: 0},
		{X: 2, Y: 2},
	}

	ls, err := PlannedLine(route)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seq := ls.Coordinates()
	if seq.Length() != 3 {
		t.Fatalf("expected 3 points, got %d", seq.Length())
	}
	if got := seq.GetXY(0); got != (geom.XY{X: 0, Y: 0}) {
		t.Errorf("expected start at origin, got %v", got)
	}
	if math.Abs(ls.Length()-4) > 1e-9 {
		t.Errorf("expected planned length 4, got %f", ls.Length())
	}
}

func TestPlannedLine_StartOnly(t *testing.T) {
	_, err := PlannedLine([]core.Point{{X: 1, Y: 1}})

	if err == nil {
		t.Fatal("expected error for a route with no anchors")
	}
}
