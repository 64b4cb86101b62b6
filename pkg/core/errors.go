package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedDocument is returned when a path document cannot be decoded at
// all (not valid JSON, or a shape the codec does not recognize).
var ErrMalformedDocument = errors.New("malformed path document")

// ErrUnknownElementType is returned when a path element carries a type
// discriminator other than waypoint, translation or rotation.
var ErrUnknownElementType = errors.New("unknown path element type")

// Issue is a single structural problem found in a path document.
// ElementIndex is -1 when the issue is not tied to one element.
type Issue struct {
	ElementIndex int    `json:"element_index"`
	Message      string `json:"message"`
}

func (i Issue) String() string {
	if i.ElementIndex < 0 {
		return i.Message
	}
	return fmt.Sprintf("element %d: %s", i.ElementIndex, i.Message)
}

// StructuralError aggregates every structural rule violation found in a
// document. Validation collects all issues in one pass rather than stopping
// at the first.
type StructuralError struct {
	Issues []Issue
}

func (e *StructuralError) Error() string {
	if len(e.Issues) == 0 {
		return "path failed validation"
	}
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.String()
	}
	return fmt.Sprintf("path failed validation: %s", strings.Join(msgs, "; "))
}
