package sim

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T) *GatewayNode {
	t.Helper()
	n := NewGatewayNode()
	require.NoError(t, n.Init("gateway", json.RawMessage(`{"seed":42}`)))
	return n
}

func reading(from string, timeUS int64, temp float64) Event {
	return Event{
		EventType:   EventTransmit,
		TimeUS:      timeUS,
		Source:      from,
		Destination: "gateway",
		Payload:     map[string]any{"temperature": temp, "unit": "C"},
		SizeBytes:   64,
	}
}

func TestGatewayNode_ProcessesAfterFixedDelay(t *testing.T) {
	n := newTestGateway(t)

	// Reading at t=1000; processing completes at t=1100.
	_, err := n.Advance(1050, []Event{reading("sensor1", 1000, 21.0)})
	require.NoError(t, err)
	assert.Equal(t, 1, n.MessagesReceived)
	assert.Equal(t, 0, n.MessagesProcessed, "processing at t=1100 must not run in a cycle ending at 1050")

	_, err = n.Advance(2000, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n.MessagesProcessed)
	assert.Equal(t, []float64{21.0}, n.Readings["sensor1"])
}

func TestGatewayNode_ProcessAtExactTarget_DeferredToNextCycle(t *testing.T) {
	n := newTestGateway(t)

	// Reading at t=900 processes at exactly t=1000, the cycle target: the
	// boundary rule defers it.
	_, err := n.Advance(1000, []Event{reading("sensor1", 900, 18.0)})
	require.NoError(t, err)
	assert.Equal(t, 0, n.MessagesProcessed)

	_, err = n.Advance(2000, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n.MessagesProcessed)
}

func TestGatewayNode_AggregatesPerSensor(t *testing.T) {
	n := newTestGateway(t)

	_, err := n.Advance(10_000, []Event{
		reading("sensor1", 1000, 20.0),
		reading("sensor2", 1000, 25.0),
		reading("sensor1", 2000, 21.0),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, n.MessagesReceived)
	assert.Equal(t, 3, n.MessagesProcessed)
	assert.Equal(t, []float64{20.0, 21.0}, n.Readings["sensor1"])
	assert.Equal(t, []float64{25.0}, n.Readings["sensor2"])
}

func TestGatewayNode_InboundOlderThanClock_StillProcessed(t *testing.T) {
	// Cross-node delivery happens at quantum boundaries: a reading produced
	// late in the previous quantum arrives after the gateway's clock has
	// already passed its timestamp. It must be processed, not rejected.
	n := newTestGateway(t)
	_, err := n.Advance(2_000_000, nil)
	require.NoError(t, err)
	require.Equal(t, int64(2_000_000), n.CurrentTimeUS())

	_, err = n.Advance(3_000_000, []Event{reading("sensor1", 1_999_900, 22.5)})
	require.NoError(t, err)
	assert.Equal(t, 1, n.MessagesProcessed)
	assert.Equal(t, []float64{22.5}, n.Readings["sensor1"])
}

func TestGatewayNode_UnknownEventType_IsIgnored(t *testing.T) {
	n := newTestGateway(t)

	_, err := n.Advance(1000, []Event{{EventType: "MYSTERY", TimeUS: 10, Source: "x", Destination: "gateway"}})
	require.NoError(t, err)
	assert.Equal(t, 0, n.MessagesReceived)
}
