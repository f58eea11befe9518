package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeEvents_RoundTrip(t *testing.T) {
	// GIVEN a batch with routing fields, payload, and an undirected event
	original := []Event{
		{
			EventType:   "TRANSMIT",
			TimeUS:      1_000_000,
			Source:      "sensor1",
			Destination: "gateway",
			Payload:     map[string]any{"temperature": 21.5, "unit": "C"},
			SizeBytes:   64,
		},
		{
			EventType: "SAMPLE",
			TimeUS:    2_000_000,
			Source:    "sensor1",
		},
	}

	// WHEN encoding then decoding
	data, err := EncodeEvents(original)
	require.NoError(t, err)
	decoded, err := DecodeEvents(data)
	require.NoError(t, err)

	// THEN every field survives
	assert.Equal(t, original, decoded)
}

func TestEncodeEvents_NilEncodesAsEmptyArray(t *testing.T) {
	data, err := EncodeEvents(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestDecodeEvents_EmptyArrayIsValid(t *testing.T) {
	// "no events" is the common quiet-cycle response, not an error
	events, err := DecodeEvents([]byte("[]"))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestDecodeEvents_RejectsNonJSON(t *testing.T) {
	_, err := DecodeEvents([]byte("this is not json"))
	assert.Error(t, err)
}

func TestDecodeEvents_RejectsNonArray(t *testing.T) {
	_, err := DecodeEvents([]byte(`{"event_type":"X"}`))
	assert.Error(t, err)
}

func TestDecodeEvents_RejectsInvalidEvents(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"missing event_type", `[{"time_us":1,"source":"a"}]`},
		{"missing source", `[{"event_type":"X","time_us":1}]`},
		{"negative time", `[{"event_type":"X","time_us":-5,"source":"a"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEvents([]byte(tt.json))
			assert.Error(t, err)
		})
	}
}
