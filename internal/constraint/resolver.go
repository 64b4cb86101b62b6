// Package constraint resolves the effective scalar limit in force at any
// point along a path, combining the global constraint scalars with ranged
// overrides declared over the translation and rotation ordinal spaces.
package constraint

import (
	"math"

	"github.com/edanliahovetsky/bline-engine/pkg/core"
)

// Resolver answers effective-limit lookups over one constraint set snapshot.
// It is a total function: every lookup resolves to a ranged override or the
// global scalar, never an error.
type Resolver struct {
	set core.ConstraintSet
}

// New builds a resolver for the constraint set. The set is expected to have
// passed validation; out-of-bounds ranges simply never match.
func New(set core.ConstraintSet) Resolver {
	return Resolver{set: set}
}

// Effective returns the limit of the given kind in force at an ordinal of
// that kind's space. The ordinal may be fractional: a position strictly
// between two anchors. Ranges are in force while approaching and at their
// covered ordinals, so a fractional position is governed by the anchor being
// approached and any position before the first anchor is governed by ordinal
// zero. Among covering ranges the narrowest wins; at equal width the later
// declared one wins; with no cover the global scalar applies.
func (r Resolver) Effective(kind core.ConstraintKind, ordinal float64) float64 {
	governing := governingOrdinal(ordinal)

	best := -1
	bestWidth := 0
	for i, rc := range r.set.Ranged {
		if rc.Kind != kind {
			continue
		}
		if governing < rc.StartOrdinal || governing > rc.EndOrdinal {
			continue
		}
		if best == -1 || rc.Width() <= bestWidth {
			best = i
			bestWidth = rc.Width()
		}
	}
	if best == -1 {
		return r.set.Global(kind)
	}
	return r.set.Ranged[best].Value
}

// governingOrdinal maps a possibly fractional ordinal to the whole ordinal
// whose ranges govern it: the anchor being approached. Positions at or before
// the first anchor are governed by ordinal zero.
func governingOrdinal(ordinal float64) int {
	g := int(math.Ceil(ordinal))
	if g < 0 {
		return 0
	}
	return g
}
