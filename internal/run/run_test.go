package run

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID_Unique(t *testing.T) {
	a := NewID()
	b := NewID()

	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestContext_BeginActiveEnd(t *testing.T) {
	rc := NewContext()

	_, active := rc.Active()
	assert.False(t, active)

	rc.Begin(Info{ID: "run-1", DocumentName: "figure8.json"})

	info, active := rc.Active()
	require.True(t, active)
	assert.Equal(t, "run-1", info.ID)
	assert.Equal(t, "figure8.json", info.DocumentName)

	rc.End()

	info, active = rc.Active()
	assert.False(t, active)
	assert.Empty(t, info.ID)
}

func TestContext_LogAttrs(t *testing.T) {
	rc := NewContext()

	assert.Nil(t, rc.LogAttrs())

	rc.Begin(Info{ID: "run-2", DocumentName: "slalom.json"})

	attrs := rc.LogAttrs()
	require.Len(t, attrs, 2)
	assert.Equal(t, "runID", attrs[0].Key)
	assert.Equal(t, "run-2", attrs[0].Value.String())
	assert.Equal(t, "document", attrs[1].Key)
}

func TestContext_LogAttrs_NoDocumentName(t *testing.T) {
	rc := NewContext()
	rc.Begin(Info{ID: "run-3"})

	attrs := rc.LogAttrs()
	require.Len(t, attrs, 1)
	assert.Equal(t, "runID", attrs[0].Key)
}
