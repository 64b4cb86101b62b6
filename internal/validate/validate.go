// Package validate implements the structural rules a path document must
// satisfy before constraint resolution or simulation. The checks are purely
// structural; motion semantics are the engine's concern.
package validate

import (
	"fmt"

	"github.com/edanliahovetsky/bline-engine/pkg/core"
)

// Document checks a path document against the structural rules and returns
// nil or a *core.StructuralError aggregating every violation:
//
//  1. the path contains at least one translation-bearing element
//  2. every rotation target has a translation anchor before and after it
//  3. every handoff radius is positive and every t_ratio lies in [0,1]
//  4. every ranged constraint is in bounds for its ordinal space with
//     start_ordinal <= end_ordinal
func Document(doc core.Document) error {
	var issues []core.Issue
	issues = append(issues, pathIssues(doc.Path)...)
	issues = append(issues, rangedIssues(doc.Path, doc.Constraints)...)
	if len(issues) == 0 {
		return nil
	}
	return &core.StructuralError{Issues: issues}
}

func pathIssues(p core.Path) []core.Issue {
	var issues []core.Issue

	translationIdx := p.TranslationOrdinals()
	if len(translationIdx) == 0 {
		issues = append(issues, core.Issue{
			ElementIndex: -1,
			Message:      "path has no translation-bearing element (waypoint or translation target)",
		})
	}

	for i, el := range p.Elements {
		switch e := el.(type) {
		case core.Waypoint:
			if !(e.HandoffRadius > 0) {
				issues = append(issues, core.Issue{
					ElementIndex: i,
					Message:      fmt.Sprintf("waypoint handoff radius must be positive, got %v", e.HandoffRadius),
				})
			}
		case core.TranslationTarget:
			if !(e.HandoffRadius > 0) {
				issues = append(issues, core.Issue{
					ElementIndex: i,
					Message:      fmt.Sprintf("translation target handoff radius must be positive, got %v", e.HandoffRadius),
				})
			}
		case core.RotationTarget:
			if !(e.TRatio >= 0 && e.TRatio <= 1) {
				issues = append(issues, core.Issue{
					ElementIndex: i,
					Message:      fmt.Sprintf("rotation target t_ratio must lie in [0,1], got %v", e.TRatio),
				})
			}
			if !hasAnchorBefore(translationIdx, i) || !hasAnchorAfter(translationIdx, i) {
				issues = append(issues, core.Issue{
					ElementIndex: i,
					Message:      "rotation target needs a translation anchor both before and after it",
				})
			}
		}
	}
	return issues
}

func rangedIssues(p core.Path, c core.ConstraintSet) []core.Issue {
	counts := map[core.OrdinalSpace]int{
		core.TranslationSpace: len(p.TranslationOrdinals()),
		core.RotationSpace:    len(p.RotationOrdinals()),
	}

	var issues []core.Issue
	for _, r := range c.Ranged {
		space := r.Kind.Space()
		count := counts[space]
		if r.StartOrdinal > r.EndOrdinal {
			issues = append(issues, core.Issue{
				ElementIndex: -1,
				Message: fmt.Sprintf("%s range [%d,%d] is inverted",
					r.Kind.Key(), r.StartOrdinal, r.EndOrdinal),
			})
			continue
		}
		if r.StartOrdinal < 0 || r.EndOrdinal >= count {
			issues = append(issues, core.Issue{
				ElementIndex: -1,
				Message: fmt.Sprintf("%s range [%d,%d] is out of bounds for the %s ordinal space (0..%d)",
					r.Kind.Key(), r.StartOrdinal, r.EndOrdinal, space, count-1),
			})
		}
	}
	return issues
}

// hasAnchorBefore reports whether any translation-bearing element precedes
// element index i. translationIdx is sorted ascending by construction.
func hasAnchorBefore(translationIdx []int, i int) bool {
	return len(translationIdx) > 0 && translationIdx[0] < i
}

func hasAnchorAfter(translationIdx []int, i int) bool {
	return len(translationIdx) > 0 && translationIdx[len(translationIdx)-1] > i
}
