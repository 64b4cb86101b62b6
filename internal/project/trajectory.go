package project

import (
	"encoding/json"
	"fmt"

	"github.com/edanliahovetsky/bline-engine/pkg/core"
)

// EncodeResult renders a finished run as the trajectory export: the sample
// array plus outcome, iteration count and handoff events.
func EncodeResult(result core.RunResult) ([]byte, error) {
	return json.MarshalIndent(result, "", "  ")
}

// DecodeResult parses a trajectory export back into a run result.
func DecodeResult(data []byte) (core.RunResult, error) {
	var result core.RunResult
	if err := json.Unmarshal(data, &result); err != nil {
		return core.RunResult{}, fmt.Errorf("%w: %v", core.ErrMalformedDocument, err)
	}
	return result, nil
}
