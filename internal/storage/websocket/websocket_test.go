package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edanliahovetsky/bline-engine/internal/run"
	"github.com/edanliahovetsky/bline-engine/internal/storage"
	"github.com/edanliahovetsky/bline-engine/pkg/core"
	"github.com/edanliahovetsky/bline-engine/pkg/streaming"
)

// Compile-time interface check.
var _ storage.Backend = (*Backend)(nil)

// testServer creates an httptest server that upgrades to WebSocket,
// records received messages, and sends acks for run_start/run_end.
func testServer(t *testing.T) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			// Ack run_start and run_end.
			if env.Type == streaming.TypeRunStart || env.Type == streaming.TypeRunEnd {
				ack := streaming.AckMessage{Type: "ack", For: env.Type}
				data, _ := json.Marshal(ack)
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))

	return srv, ml
}

type messageLog struct {
	mu       sync.Mutex
	messages []streaming.Envelope
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testRunInfo() run.Info {
	return run.Info{
		ID:            "7d5b7c3a-9f11-4c28-8f0a-6b1d2e3f4a5b",
		DocumentName:  "figure8.json",
		StartedAt:     time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC),
		StartPose:     core.Pose{Position: core.Point{X: 1, Y: 2}, Heading: 0.5},
		Constraints:   core.ConstraintSet{MaxVelocityMPS: 4.5, MaxAccelerationMPS2: 7},
		TimeStep:      0.02,
		MaxIterations: 15000,
		RobotLength:   0.5,
		RobotWidth:    0.5,
		EngineVersion: "0.1.0",
		PlannedPath:   []core.Point{{X: 1, Y: 2}, {X: 4, Y: 2}},
	}
}

func testRunResult() core.RunResult {
	return core.RunResult{
		Outcome:    core.Converged,
		Iterations: 3,
		Duration:   0.06,
		Samples: []core.Sample{
			{T: 0, X: 1, Y: 2},
			{T: 0.02, X: 1.5, Y: 2, Velocity: 2.5},
			{T: 0.04, X: 4, Y: 2},
		},
		Handoffs: []core.HandoffEvent{
			{T: 0.02, FromOrdinal: 0, ToOrdinal: 1, X: 1.5, Y: 2},
		},
	}
}

func TestStartAndEndRun(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "test"})
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartRun(testRunInfo()))
	require.NoError(t, b.EndRun(core.RunResult{Outcome: core.Converged}))

	msgs := ml.all()
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, streaming.TypeRunStart, msgs[0].Type)
	assert.Equal(t, streaming.TypeRunEnd, msgs[len(msgs)-1].Type)
}

func TestRunStartPayloadFields(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "test"})
	require.NoError(t, b.Init())
	defer b.Close()

	info := testRunInfo()
	require.NoError(t, b.StartRun(info))

	msgs := ml.all()
	require.NotEmpty(t, msgs)

	var p streaming.RunStartPayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &p))
	assert.Equal(t, info.ID, p.RunID)
	assert.Equal(t, "figure8.json", p.DocumentName)
	assert.Equal(t, "0.1.0", p.EngineVersion)
	assert.Equal(t, 0.02, p.TimeStep)
	assert.Equal(t, 15000, p.MaxIterations)
	assert.Len(t, p.PlannedPath, 2)
	assert.NotEmpty(t, p.Constraints)
}

func TestFireAndForgetMessages(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "s"})
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartRun(testRunInfo()))

	result := testRunResult()
	require.NoError(t, b.RecordSamples(result.Samples[:2]))
	require.NoError(t, b.RecordSamples(result.Samples[2:]))
	require.NoError(t, b.RecordHandoff(result.Handoffs[0]))

	require.NoError(t, b.EndRun(result))

	// Give a moment for all messages to arrive at server.
	time.Sleep(50 * time.Millisecond)

	msgs := ml.all()

	types := make(map[string]int)
	for _, m := range msgs {
		types[m.Type]++
	}

	assert.Equal(t, 1, types[streaming.TypeRunStart])
	assert.Equal(t, 1, types[streaming.TypeRunEnd])
	assert.Equal(t, 2, types[streaming.TypeSamples])
	assert.Equal(t, 1, types[streaming.TypeHandoff])
}

func TestRunEndReportsStreamedCounts(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "s"})
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartRun(testRunInfo()))

	result := testRunResult()
	require.NoError(t, b.RecordSamples(result.Samples))
	require.NoError(t, b.RecordHandoff(result.Handoffs[0]))
	require.NoError(t, b.EndRun(result))

	msgs := ml.all()
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	require.Equal(t, streaming.TypeRunEnd, last.Type)

	var p streaming.RunEndPayload
	require.NoError(t, json.Unmarshal(last.Payload, &p))
	assert.Equal(t, "converged", p.Outcome)
	assert.Equal(t, 3, p.Iterations)
	assert.Equal(t, 0.06, p.DurationSeconds)
	assert.Equal(t, 3, p.SampleCount)
	assert.Equal(t, 1, p.HandoffCount)
}

func TestEndRunFlushesUnstreamedResult(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "s"})
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartRun(testRunInfo()))
	require.NoError(t, b.EndRun(testRunResult()))

	time.Sleep(50 * time.Millisecond)

	msgs := ml.all()
	types := make(map[string]int)
	for _, m := range msgs {
		types[m.Type]++
	}
	assert.Equal(t, 1, types[streaming.TypeSamples])
	assert.Equal(t, 1, types[streaming.TypeHandoff])

	last := msgs[len(msgs)-1]
	require.Equal(t, streaming.TypeRunEnd, last.Type)
	var p streaming.RunEndPayload
	require.NoError(t, json.Unmarshal(last.Payload, &p))
	assert.Equal(t, 3, p.SampleCount)
	assert.Equal(t, 1, p.HandoffCount)
}

func TestEndRunWithoutStartRun(t *testing.T) {
	srv, _ := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "s"})
	require.NoError(t, b.Init())
	defer b.Close()

	assert.Error(t, b.EndRun(core.RunResult{}))
}

func TestRecordSamplesWithoutStartRun(t *testing.T) {
	srv, _ := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "s"})
	require.NoError(t, b.Init())
	defer b.Close()

	assert.Error(t, b.RecordSamples([]core.Sample{{T: 0}}))
	assert.Error(t, b.RecordHandoff(core.HandoffEvent{}))
}

func TestEnvelopeSerialization(t *testing.T) {
	payload := streaming.HandoffPayload{
		RunID:   "abc",
		Handoff: core.HandoffEvent{T: 1.5, FromOrdinal: 2, ToOrdinal: 3, X: 10, Y: 20},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	env := streaming.Envelope{Type: streaming.TypeHandoff, Payload: raw}
	data, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded streaming.Envelope
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, streaming.TypeHandoff, decoded.Type)

	var hp streaming.HandoffPayload
	require.NoError(t, json.Unmarshal(decoded.Payload, &hp))
	assert.Equal(t, "abc", hp.RunID)
	assert.Equal(t, 2, hp.Handoff.FromOrdinal)
	assert.Equal(t, 3, hp.Handoff.ToOrdinal)
}
