package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"EngineInfo", &EngineInfo{}, "engine_infos"},
		{"EnginePerformance", &EnginePerformance{}, "engine_performances"},
		{"Document", &Document{}, "documents"},
		{"Run", &Run{}, "runs"},
		{"TrajectorySample", &TrajectorySample{}, "trajectory_samples"},
		{"HandoffEvent", &HandoffEvent{}, "handoff_events"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestDatabaseModels_CoverAllTables(t *testing.T) {
	assert.Len(t, DatabaseModels, 6)
	assert.Len(t, DatabaseModelsSQLite, len(DatabaseModels))
}
