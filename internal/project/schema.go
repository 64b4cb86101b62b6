package project

import (
	"reflect"

	"github.com/iancoleman/orderedmap"
	"github.com/invopop/jsonschema"

	"github.com/edanliahovetsky/bline-engine/pkg/core"
)

// DocumentSchema builds the JSON Schema describing the on-disk document
// shape, for editor integration and the schema CLI subcommand.
func DocumentSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{DoNotReference: true}

	waypoint := reflector.ReflectFromType(reflect.TypeOf(waypointWire{}))
	waypoint.Version = ""
	waypoint.Title = "Waypoint Element"
	waypoint.Description = "A translation anchor that also carries a target heading."

	translation := reflector.ReflectFromType(reflect.TypeOf(translationWire{}))
	translation.Version = ""
	translation.Title = "Translation Element"
	translation.Description = "A position the robot drives through with no heading of its own."

	rotation := reflector.ReflectFromType(reflect.TypeOf(rotationWire{}))
	rotation.Version = ""
	rotation.Title = "Rotation Element"
	rotation.Description = "A target heading placed at t_ratio of its enclosing translation segment."

	element := &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{waypoint, translation, rotation},
	}

	ranged := reflector.ReflectFromType(reflect.TypeOf(rangedWire{}))
	ranged.Version = ""
	ranged.Title = "Ranged Constraint"
	ranged.Description = "A limit override over an inclusive ordinal interval."

	constraintValue := &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "number"},
			{Type: "array", Items: ranged},
		},
	}

	constraintProps := orderedmap.New()
	for _, kind := range core.ConstraintKinds {
		constraintProps.Set(kind.Key(), constraintValue)
	}
	constraints := &jsonschema.Schema{
		Type:        "object",
		Title:       "Constraints",
		Description: "Each key holds either a global scalar or an array of ranged overrides.",
		Properties:  constraintProps,
	}

	rootProps := orderedmap.New()
	rootProps.Set("path_elements", &jsonschema.Schema{
		Type:  "array",
		Items: element,
	})
	rootProps.Set("constraints", constraints)

	return &jsonschema.Schema{
		Version:     jsonschema.Version,
		Type:        "object",
		Title:       "Path Document",
		Description: "An ordered element list plus the motion constraints that govern it.",
		Properties:  rootProps,
		Required:    []string{"path_elements"},
	}
}
