// pkg/core/constraints.go
package core

// ConstraintKind identifies one of the six scalar motion limits.
type ConstraintKind int

const (
	MaxVelocity ConstraintKind = iota
	MaxAcceleration
	MaxRotVelocity
	MaxRotAcceleration
	EndTranslationTolerance
	EndRotationTolerance
)

// ConstraintKinds lists every kind in declaration order.
var ConstraintKinds = []ConstraintKind{
	MaxVelocity,
	MaxAcceleration,
	MaxRotVelocity,
	MaxRotAcceleration,
	EndTranslationTolerance,
	EndRotationTolerance,
}

// OrdinalSpace identifies which derived index space a constraint kind is
// counted in.
type OrdinalSpace int

const (
	TranslationSpace OrdinalSpace = iota
	RotationSpace
)

func (s OrdinalSpace) String() string {
	switch s {
	case TranslationSpace:
		return "translation"
	case RotationSpace:
		return "rotation"
	}
	return "unknown"
}

// Key returns the document key for the kind.
func (k ConstraintKind) Key() string {
	switch k {
	case MaxVelocity:
		return "max_velocity_meters_per_sec"
	case MaxAcceleration:
		return "max_acceleration_meters_per_sec2"
	case MaxRotVelocity:
		return "max_velocity_deg_per_sec"
	case MaxRotAcceleration:
		return "max_acceleration_deg_per_sec2"
	case EndTranslationTolerance:
		return "end_translation_tolerance_meters"
	case EndRotationTolerance:
		return "end_rotation_tolerance_deg"
	}
	return "unknown"
}

func (k ConstraintKind) String() string {
	return k.Key()
}

// Space returns the ordinal space the kind is ranged over. Velocity,
// acceleration and translation tolerance count translation anchors; the
// rotational kinds count rotation anchors.
func (k ConstraintKind) Space() OrdinalSpace {
	switch k {
	case MaxVelocity, MaxAcceleration, EndTranslationTolerance:
		return TranslationSpace
	case MaxRotVelocity, MaxRotAcceleration, EndRotationTolerance:
		return RotationSpace
	}
	return TranslationSpace
}

// RangedConstraint overrides one scalar kind over an inclusive ordinal
// interval in that kind's space.
type RangedConstraint struct {
	Kind         ConstraintKind
	Value        float64
	StartOrdinal int
	EndOrdinal   int
}

// Width returns the number of ordinals the range covers.
func (r RangedConstraint) Width() int {
	return r.EndOrdinal - r.StartOrdinal + 1
}

// ConstraintSet holds the six global scalars plus ranged overrides. Ranged
// preserves declaration order across kinds; overlap resolution depends on it.
// A ConstraintSet is treated as an immutable value once handed to the engine.
type ConstraintSet struct {
	MaxVelocityMPS           float64 // m/s
	MaxAccelerationMPS2      float64 // m/s^2
	MaxRotVelocityDegS       float64 // deg/s
	MaxRotAccelerationDegS2  float64 // deg/s^2
	EndTranslationToleranceM float64 // meters
	EndRotationToleranceDeg  float64 // degrees

	Ranged []RangedConstraint
}

// Global returns the global scalar for the kind.
func (c ConstraintSet) Global(kind ConstraintKind) float64 {
	switch kind {
	case MaxVelocity:
		return c.MaxVelocityMPS
	case MaxAcceleration:
		return c.MaxAccelerationMPS2
	case MaxRotVelocity:
		return c.MaxRotVelocityDegS
	case MaxRotAcceleration:
		return c.MaxRotAccelerationDegS2
	case EndTranslationTolerance:
		return c.EndTranslationToleranceM
	case EndRotationTolerance:
		return c.EndRotationToleranceDeg
	}
	return 0
}

// RangedFor returns the ranged overrides of the kind in declaration order.
func (c ConstraintSet) RangedFor(kind ConstraintKind) []RangedConstraint {
	var out []RangedConstraint
	for _, r := range c.Ranged {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}
