// Package project converts between the on-disk path document shape and the
// core model. A document pairs an ordered element list (discriminated by a
// "type" field) with a constraints object whose keys each hold either a
// global scalar or an array of ranged overrides.
package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/edanliahovetsky/bline-engine/pkg/core"
)

// Codec decodes and encodes path documents. Omitted constraint keys are
// filled from the defaults captured at construction, omitted handoff radii
// from defaultRadius. Decoding never mutates the defaults.
type Codec struct {
	logger        *slog.Logger
	defaults      core.ConstraintSet
	defaultRadius float64
}

// NewCodec creates a codec with only a logger and default-fill dependencies.
func NewCodec(logger *slog.Logger, defaults core.ConstraintSet, defaultRadius float64) *Codec {
	return &Codec{
		logger:        logger,
		defaults:      defaults,
		defaultRadius: defaultRadius,
	}
}

type documentWire struct {
	PathElements []json.RawMessage `json:"path_elements"`
	Constraints  json.RawMessage   `json:"constraints,omitempty"`
}

// translationWire doubles as the flat "translation" element and the nested
// waypoint translation_target (Type left empty there).
type translationWire struct {
	Type          string   `json:"type,omitempty"`
	X             float64  `json:"x_meters"`
	Y             float64  `json:"y_meters"`
	HandoffRadius *float64 `json:"intermediate_handoff_radius_meters,omitempty"`
}

// rotationWire doubles as the flat "rotation" element and the nested waypoint
// rotation_target, which carries no t_ratio.
type rotationWire struct {
	Type     string   `json:"type,omitempty"`
	Heading  float64  `json:"rotation_radians"`
	TRatio   *float64 `json:"t_ratio,omitempty"`
	Profiled *bool    `json:"profiled_rotation,omitempty"`
}

type waypointWire struct {
	Type        string          `json:"type"`
	Translation translationWire `json:"translation_target"`
	Rotation    rotationWire    `json:"rotation_target"`
}

type rangedWire struct {
	Value        float64 `json:"value"`
	StartOrdinal int     `json:"start_ordinal"`
	EndOrdinal   int     `json:"end_ordinal"`
}

// constraintsWire keeps each key raw so a key can hold either a scalar or an
// array of ranged entries. The same struct serves decode and encode.
type constraintsWire struct {
	MaxVelocity             json.RawMessage `json:"max_velocity_meters_per_sec,omitempty"`
	MaxAcceleration         json.RawMessage `json:"max_acceleration_meters_per_sec2,omitempty"`
	MaxRotVelocity          json.RawMessage `json:"max_velocity_deg_per_sec,omitempty"`
	MaxRotAcceleration      json.RawMessage `json:"max_acceleration_deg_per_sec2,omitempty"`
	EndTranslationTolerance json.RawMessage `json:"end_translation_tolerance_meters,omitempty"`
	EndRotationTolerance    json.RawMessage `json:"end_rotation_tolerance_deg,omitempty"`
}

func (w *constraintsWire) slot(kind core.ConstraintKind) *json.RawMessage {
	switch kind {
	case core.MaxVelocity:
		return &w.MaxVelocity
	case core.MaxAcceleration:
		return &w.MaxAcceleration
	case core.MaxRotVelocity:
		return &w.MaxRotVelocity
	case core.MaxRotAcceleration:
		return &w.MaxRotAcceleration
	case core.EndTranslationTolerance:
		return &w.EndTranslationTolerance
	case core.EndRotationTolerance:
		return &w.EndRotationTolerance
	}
	return nil
}

// Decode parses a document into a path plus its constraint set. Shape
// problems wrap core.ErrMalformedDocument or core.ErrUnknownElementType;
// the decoder never panics on hostile input.
func (c *Codec) Decode(data []byte) (core.Document, error) {
	var wire documentWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return core.Document{}, fmt.Errorf("%w: %v", core.ErrMalformedDocument, err)
	}

	doc := core.Document{Constraints: c.defaults}
	doc.Constraints.Ranged = append([]core.RangedConstraint(nil), c.defaults.Ranged...)
	doc.Path.Elements = make([]core.PathElement, 0, len(wire.PathElements))
	for i, raw := range wire.PathElements {
		el, err := c.decodeElement(raw)
		if err != nil {
			return core.Document{}, fmt.Errorf("element %d: %w", i, err)
		}
		doc.Path.Elements = append(doc.Path.Elements, el)
	}

	if err := c.decodeConstraints(wire.Constraints, &doc.Constraints); err != nil {
		return core.Document{}, err
	}

	c.logger.Debug("Decoded path document",
		"elements", len(doc.Path.Elements),
		"rangedConstraints", len(doc.Constraints.Ranged))

	return doc, nil
}

func (c *Codec) decodeElement(raw json.RawMessage) (core.PathElement, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedDocument, err)
	}

	switch probe.Type {
	case "translation":
		var tw translationWire
		if err := json.Unmarshal(raw, &tw); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrMalformedDocument, err)
		}
		return core.TranslationTarget{
			Position:      core.Point{X: tw.X, Y: tw.Y},
			HandoffRadius: c.radiusOrDefault(tw.HandoffRadius),
		}, nil

	case "rotation":
		var rw rotationWire
		if err := json.Unmarshal(raw, &rw); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrMalformedDocument, err)
		}
		return core.RotationTarget{
			Heading:          rw.Heading,
			TRatio:           floatOrZero(rw.TRatio),
			ProfiledRotation: boolOrTrue(rw.Profiled),
		}, nil

	case "waypoint":
		var ww waypointWire
		if err := json.Unmarshal(raw, &ww); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrMalformedDocument, err)
		}
		return core.Waypoint{
			Position:         core.Point{X: ww.Translation.X, Y: ww.Translation.Y},
			HandoffRadius:    c.radiusOrDefault(ww.Translation.HandoffRadius),
			Heading:          ww.Rotation.Heading,
			ProfiledRotation: boolOrTrue(ww.Rotation.Profiled),
		}, nil

	case "":
		return nil, fmt.Errorf("%w: missing type discriminator", core.ErrUnknownElementType)
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownElementType, probe.Type)
	}
}

func (c *Codec) decodeConstraints(raw json.RawMessage, set *core.ConstraintSet) error {
	if len(raw) == 0 {
		return nil
	}
	var wire constraintsWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return fmt.Errorf("%w: constraints: %v", core.ErrMalformedDocument, err)
	}
	for _, kind := range core.ConstraintKinds {
		entry := *wire.slot(kind)
		if len(entry) == 0 {
			continue
		}
		if err := applyConstraint(set, kind, entry); err != nil {
			return fmt.Errorf("%w: constraints.%s: %v", core.ErrMalformedDocument, kind.Key(), err)
		}
	}
	return nil
}

// applyConstraint interprets one constraint key: an array appends ranged
// overrides in declaration order, anything else is parsed as the global
// scalar. A JSON null leaves the configured default in place.
func applyConstraint(set *core.ConstraintSet, kind core.ConstraintKind, raw json.RawMessage) error {
	if entry := bytes.TrimSpace(raw); len(entry) > 0 && entry[0] == '[' {
		var ranges []rangedWire
		if err := json.Unmarshal(raw, &ranges); err != nil {
			return err
		}
		for _, r := range ranges {
			set.Ranged = append(set.Ranged, core.RangedConstraint{
				Kind:         kind,
				Value:        r.Value,
				StartOrdinal: r.StartOrdinal,
				EndOrdinal:   r.EndOrdinal,
			})
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	setGlobal(set, kind, v)
	return nil
}

func setGlobal(set *core.ConstraintSet, kind core.ConstraintKind, v float64) {
	switch kind {
	case core.MaxVelocity:
		set.MaxVelocityMPS = v
	case core.MaxAcceleration:
		set.MaxAccelerationMPS2 = v
	case core.MaxRotVelocity:
		set.MaxRotVelocityDegS = v
	case core.MaxRotAcceleration:
		set.MaxRotAccelerationDegS2 = v
	case core.EndTranslationTolerance:
		set.EndTranslationToleranceM = v
	case core.EndRotationTolerance:
		set.EndRotationToleranceDeg = v
	}
}

// Encode renders a document back into the on-disk shape. Every constraint
// key is written; a kind with ranged overrides is written as the array form,
// so its global reverts to the configured default on the next decode.
func (c *Codec) Encode(doc core.Document) ([]byte, error) {
	wire := documentWire{
		PathElements: make([]json.RawMessage, 0, len(doc.Path.Elements)),
	}

	for i, el := range doc.Path.Elements {
		entry, err := encodeElement(el)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		raw, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		wire.PathElements = append(wire.PathElements, raw)
	}

	cw, err := encodeConstraints(doc.Constraints)
	if err != nil {
		return nil, err
	}
	wire.Constraints, err = json.Marshal(cw)
	if err != nil {
		return nil, err
	}

	return json.MarshalIndent(wire, "", "  ")
}

func encodeElement(el core.PathElement) (any, error) {
	switch e := el.(type) {
	case core.TranslationTarget:
		r := e.HandoffRadius
		return translationWire{
			Type:          "translation",
			X:             e.Position.X,
			Y:             e.Position.Y,
			HandoffRadius: &r,
		}, nil
	case core.RotationTarget:
		t := e.TRatio
		p := e.ProfiledRotation
		return rotationWire{
			Type:     "rotation",
			Heading:  e.Heading,
			TRatio:   &t,
			Profiled: &p,
		}, nil
	case core.Waypoint:
		r := e.HandoffRadius
		p := e.ProfiledRotation
		return waypointWire{
			Type: "waypoint",
			Translation: translationWire{
				X:             e.Position.X,
				Y:             e.Position.Y,
				HandoffRadius: &r,
			},
			Rotation: rotationWire{
				Heading:  e.Heading,
				Profiled: &p,
			},
		}, nil
	default:
		return nil, fmt.Errorf("%w: %T", core.ErrUnknownElementType, el)
	}
}

func encodeConstraints(set core.ConstraintSet) (constraintsWire, error) {
	var wire constraintsWire
	for _, kind := range core.ConstraintKinds {
		var payload any
		if ranges := set.RangedFor(kind); len(ranges) > 0 {
			entries := make([]rangedWire, len(ranges))
			for i, r := range ranges {
				entries[i] = rangedWire{
					Value:        r.Value,
					StartOrdinal: r.StartOrdinal,
					EndOrdinal:   r.EndOrdinal,
				}
			}
			payload = entries
		} else {
			payload = set.Global(kind)
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return wire, fmt.Errorf("constraints.%s: %w", kind.Key(), err)
		}
		*wire.slot(kind) = raw
	}
	return wire, nil
}

// EncodeConstraints renders a constraint set alone in the document wire
// shape. Storage backends snapshot resolved constraints with this.
func EncodeConstraints(set core.ConstraintSet) ([]byte, error) {
	wire, err := encodeConstraints(set)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wire)
}

// Load reads and decodes a document file.
func (c *Codec) Load(path string) (core.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Document{}, fmt.Errorf("error reading path document: %w", err)
	}
	doc, err := c.Decode(data)
	if err != nil {
		return core.Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Save encodes a document and writes it to path.
func (c *Codec) Save(doc core.Document, path string) error {
	data, err := c.Encode(doc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing path document: %w", err)
	}
	return nil
}

func (c *Codec) radiusOrDefault(v *float64) float64 {
	if v != nil {
		return *v
	}
	return c.defaultRadius
}

func floatOrZero(v *float64) float64 {
	if v != nil {
		return *v
	}
	return 0
}

func boolOrTrue(v *bool) bool {
	if v != nil {
		return *v
	}
	return true
}
