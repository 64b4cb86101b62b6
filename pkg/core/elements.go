package core

// PathElement is a single entry in a Path. Exactly three kinds exist:
// Waypoint, TranslationTarget and RotationTarget. The set is closed;
// consumers dispatch over it with a type switch.
type PathElement interface {
	pathElement()
}

// Waypoint is both a translation anchor and a rotation anchor: the robot
// drives through its position and carries a target heading there.
type Waypoint struct {
	Position         Point
	HandoffRadius    float64 // meters, must be > 0
	Heading          float64 // radians
	ProfiledRotation bool
}

// TranslationTarget is a translation anchor only; it carries no heading.
type TranslationTarget struct {
	Position      Point
	HandoffRadius float64 // meters, must be > 0
}

// RotationTarget is a rotation anchor with no position of its own. It is
// attached to the translation segment enclosing it in path order; its derived
// position is that segment interpolated at TRatio.
type RotationTarget struct {
	Heading          float64 // radians
	TRatio           float64 // fraction of the framing segment, in [0,1]
	ProfiledRotation bool
}

func (Waypoint) pathElement()          {}
func (TranslationTarget) pathElement() {}
func (RotationTarget) pathElement()    {}

// Path is an ordered sequence of path elements.
type Path struct {
	Elements []PathElement
}

// Document pairs a path with the constraints that apply to it. This is the
// unit of work the engine accepts.
type Document struct {
	Path        Path
	Constraints ConstraintSet
}

// TranslationAnchor is the derived view of one translation-bearing element.
type TranslationAnchor struct {
	ElementIndex  int // index into Path.Elements
	Ordinal       int // 0-based translation ordinal
	Position      Point
	HandoffRadius float64
}

// RotationAnchor is the derived view of one rotation-bearing element.
// TRatio is meaningful only when IsWaypoint is false.
type RotationAnchor struct {
	ElementIndex int // index into Path.Elements
	Ordinal      int // 0-based rotation ordinal
	Heading      float64
	Profiled     bool
	IsWaypoint   bool
	TRatio       float64
}

// TranslationOrdinals returns the element index of each translation-bearing
// element in path order. The slice position is the translation ordinal, so
// the two ordinal spaces are always recomputed from the current path and
// never stored on elements.
func (p Path) TranslationOrdinals() []int {
	indexes := make([]int, 0, len(p.Elements))
	for i, el := range p.Elements {
		switch el.(type) {
		case Waypoint, TranslationTarget:
			indexes = append(indexes, i)
		case RotationTarget:
		}
	}
	return indexes
}

// RotationOrdinals returns the element index of each rotation-bearing element
// in path order. The slice position is the rotation ordinal.
func (p Path) RotationOrdinals() []int {
	indexes := make([]int, 0, len(p.Elements))
	for i, el := range p.Elements {
		switch el.(type) {
		case Waypoint, RotationTarget:
			indexes = append(indexes, i)
		case TranslationTarget:
		}
	}
	return indexes
}

// TranslationAnchors returns the translation-bearing elements in path order
// with their ordinals and element indexes.
func (p Path) TranslationAnchors() []TranslationAnchor {
	anchors := make([]TranslationAnchor, 0, len(p.Elements))
	for i, el := range p.Elements {
		switch e := el.(type) {
		case Waypoint:
			anchors = append(anchors, TranslationAnchor{
				ElementIndex:  i,
				Ordinal:       len(anchors),
				Position:      e.Position,
				HandoffRadius: e.HandoffRadius,
			})
		case TranslationTarget:
			anchors = append(anchors, TranslationAnchor{
				ElementIndex:  i,
				Ordinal:       len(anchors),
				Position:      e.Position,
				HandoffRadius: e.HandoffRadius,
			})
		case RotationTarget:
		}
	}
	return anchors
}

// RotationAnchors returns the rotation-bearing elements in path order with
// their ordinals and element indexes.
func (p Path) RotationAnchors() []RotationAnchor {
	anchors := make([]RotationAnchor, 0, len(p.Elements))
	for i, el := range p.Elements {
		switch e := el.(type) {
		case Waypoint:
			anchors = append(anchors, RotationAnchor{
				ElementIndex: i,
				Ordinal:      len(anchors),
				Heading:      e.Heading,
				Profiled:     e.ProfiledRotation,
				IsWaypoint:   true,
			})
		case RotationTarget:
			anchors = append(anchors, RotationAnchor{
				ElementIndex: i,
				Ordinal:      len(anchors),
				Heading:      e.Heading,
				Profiled:     e.ProfiledRotation,
				TRatio:       e.TRatio,
			})
		case TranslationTarget:
		}
	}
	return anchors
}
