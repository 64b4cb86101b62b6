package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edanliahovetsky/bline-engine/pkg/core"
)

func validDocument() core.Document {
	return core.Document{
		Path: core.Path{Elements: []core.PathElement{
			core.Waypoint{Position: core.Point{X: 0, Y: 0}, HandoffRadius: 0.2, Heading: 0, ProfiledRotation: true},
			core.RotationTarget{Heading: 1.0, TRatio: 0.5, ProfiledRotation: true},
			core.TranslationTarget{Position: core.Point{X: 2, Y: 0}, HandoffRadius: 0.25},
			core.Waypoint{Position: core.Point{X: 2, Y: 3}, HandoffRadius: 0.2, Heading: 1.57, ProfiledRotation: false},
		}},
		Constraints: core.ConstraintSet{
			MaxVelocityMPS:           4.5,
			MaxAccelerationMPS2:      7.0,
			MaxRotVelocityDegS:       720,
			MaxRotAccelerationDegS2:  1500,
			EndTranslationToleranceM: 0.03,
			EndRotationToleranceDeg:  2.0,
			Ranged: []core.RangedConstraint{
				{Kind: core.MaxVelocity, Value: 2.0, StartOrdinal: 0, EndOrdinal: 1},
				{Kind: core.MaxRotVelocity, Value: 180, StartOrdinal: 1, EndOrdinal: 2},
			},
		},
	}
}

func TestDocument_Valid(t *testing.T) {
	require.NoError(t, Document(validDocument()))
}

func TestDocument_NoTranslationElement(t *testing.T) {
	doc := core.Document{
		Path: core.Path{Elements: []core.PathElement{
			core.RotationTarget{Heading: 1.0, TRatio: 0.5},
		}},
	}

	err := Document(doc)
	require.Error(t, err)

	var structural *core.StructuralError
	require.True(t, errors.As(err, &structural))
	assert.Contains(t, err.Error(), "no translation-bearing element")
}

func TestDocument_UnframedRotationTarget(t *testing.T) {
	first := core.Document{
		Path: core.Path{Elements: []core.PathElement{
			core.RotationTarget{Heading: 1.0, TRatio: 0.5},
			core.Waypoint{Position: core.Point{X: 1, Y: 1}, HandoffRadius: 0.2},
			core.TranslationTarget{Position: core.Point{X: 2, Y: 2}, HandoffRadius: 0.2},
		}},
	}
	err := Document(first)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "before and after")

	last := core.Document{
		Path: core.Path{Elements: []core.PathElement{
			core.Waypoint{Position: core.Point{X: 1, Y: 1}, HandoffRadius: 0.2},
			core.TranslationTarget{Position: core.Point{X: 2, Y: 2}, HandoffRadius: 0.2},
			core.RotationTarget{Heading: 1.0, TRatio: 0.5},
		}},
	}
	err = Document(last)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "before and after")
}

func TestDocument_NonPositiveHandoffRadius(t *testing.T) {
	doc := core.Document{
		Path: core.Path{Elements: []core.PathElement{
			core.Waypoint{Position: core.Point{X: 0, Y: 0}, HandoffRadius: 0},
			core.TranslationTarget{Position: core.Point{X: 1, Y: 0}, HandoffRadius: -0.5},
		}},
	}

	err := Document(doc)
	require.Error(t, err)

	var structural *core.StructuralError
	require.True(t, errors.As(err, &structural))
	require.Len(t, structural.Issues, 2)
	assert.Equal(t, 0, structural.Issues[0].ElementIndex)
	assert.Equal(t, 1, structural.Issues[1].ElementIndex)
}

func TestDocument_TRatioOutOfRange(t *testing.T) {
	doc := core.Document{
		Path: core.Path{Elements: []core.PathElement{
			core.Waypoint{Position: core.Point{X: 0, Y: 0}, HandoffRadius: 0.2},
			core.RotationTarget{Heading: 1.0, TRatio: 1.5},
			core.Waypoint{Position: core.Point{X: 1, Y: 0}, HandoffRadius: 0.2},
		}},
	}

	err := Document(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "t_ratio")
}

func TestDocument_RangedConstraintOutOfBounds(t *testing.T) {
	doc := validDocument()
	doc.Constraints.Ranged = []core.RangedConstraint{
		{Kind: core.MaxVelocity, Value: 2.0, StartOrdinal: 0, EndOrdinal: 7},
	}

	err := Document(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of bounds")
	assert.Contains(t, err.Error(), "translation ordinal space")
}

func TestDocument_RangedConstraintInverted(t *testing.T) {
	doc := validDocument()
	doc.Constraints.Ranged = []core.RangedConstraint{
		{Kind: core.MaxRotVelocity, Value: 90, StartOrdinal: 2, EndOrdinal: 1},
	}

	err := Document(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inverted")
}

func TestDocument_CollectsAllIssues(t *testing.T) {
	doc := core.Document{
		Path: core.Path{Elements: []core.PathElement{
			core.Waypoint{Position: core.Point{X: 0, Y: 0}, HandoffRadius: -1},
			core.RotationTarget{Heading: 0, TRatio: 2},
		}},
		Constraints: core.ConstraintSet{
			Ranged: []core.RangedConstraint{
				{Kind: core.MaxAcceleration, Value: 1, StartOrdinal: 3, EndOrdinal: 2},
			},
		},
	}

	err := Document(doc)
	require.Error(t, err)

	var structural *core.StructuralError
	require.True(t, errors.As(err, &structural))
	// bad radius, bad t_ratio, unframed rotation, inverted range
	assert.Len(t, structural.Issues, 4)
}
