package sim

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// duplex joins a read side and a write side into one io.ReadWriter.
type duplex struct {
	io.Reader
	io.Writer
}

// oneByteReader forces the codec to see maximally fragmented input: every
// read returns a single byte, so framing must buffer until a full line.
type oneByteReader struct {
	r io.Reader
}

func (o oneByteReader) Read(p []byte) (int, error) {
	if len(p) > 1 {
		p = p[:1]
	}
	return o.r.Read(p)
}

var transcriptEvents = []Event{
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

func TestCodec_CoordinatorTranscript_Golden(t *testing.T) {
	// The wire bytes are a cross-language contract: nodes in any language
	// parse them. Pin them exactly.
	var buf bytes.Buffer
	c := NewCodec("sensor1", &buf)

	require.NoError(t, c.WriteInit("sensor1", []byte(`{"seed":42}`)))
	require.NoError(t, c.WriteAdvance(2_000_000, transcriptEvents))
	require.NoError(t, c.WriteShutdown())

	g := goldie.New(t)
	g.Assert(t, "coordinator_transcript", buf.Bytes())
}

func TestCodec_NodeTranscript_Golden(t *testing.T) {
	var buf bytes.Buffer
	c := NewCodec("coordinator", &buf)

	require.NoError(t, c.WriteReady())
	require.NoError(t, c.WriteDone(transcriptEvents))

	g := goldie.New(t)
	g.Assert(t, "node_transcript", buf.Bytes())
}

func TestCodec_AdvanceRoundTrip(t *testing.T) {
	// GIVEN a coordinator writing an ADVANCE exchange into a buffer
	var buf bytes.Buffer
	writer := NewCodec("n", &buf)
	require.NoError(t, writer.WriteAdvance(5000, transcriptEvents))

	// WHEN the node side parses it
	reader := NewCodec("n", &buf)
	cmd, err := reader.ReadCommand()
	require.NoError(t, err)
	inbound, err := reader.ReadEvents()
	require.NoError(t, err)

	// THEN the command and every event field survive
	assert.Equal(t, CmdAdvance, cmd.Kind)
	assert.Equal(t, int64(5000), cmd.TargetUS)
	assert.Equal(t, transcriptEvents, inbound)
}

func TestCodec_DoneRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCodec("n", &buf).WriteDone(transcriptEvents))

	got, err := NewCodec("n", &buf).ReadDone()
	require.NoError(t, err)
	assert.Equal(t, transcriptEvents, got)
}

func TestCodec_EmptyEventArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCodec("n", &buf).WriteDone(nil))

	got, err := NewCodec("n", &buf).ReadDone()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCodec_PartialReads_StillFrameCorrectly(t *testing.T) {
	// One read never equals one message: feed the parser a byte at a time.
	var buf bytes.Buffer
	writer := NewCodec("n", &buf)
	require.NoError(t, writer.WriteInit("sensor1", []byte(`{"seed":7}`)))
	require.NoError(t, writer.WriteAdvance(1000, nil))

	reader := NewCodec("n", duplex{Reader: oneByteReader{&buf}, Writer: io.Discard})

	cmd, err := reader.ReadCommand()
	require.NoError(t, err)
	assert.Equal(t, CmdInit, cmd.Kind)
	assert.Equal(t, "sensor1", cmd.NodeID)
	assert.JSONEq(t, `{"seed":7}`, string(cmd.Config))

	cmd, err = reader.ReadCommand()
	require.NoError(t, err)
	assert.Equal(t, CmdAdvance, cmd.Kind)
	events, err := reader.ReadEvents()
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCodec_RejectsUnknownKeyword(t *testing.T) {
	buf := bytes.NewBufferString("FROBNICATE 123\n")
	_, err := NewCodec("n", buf).ReadCommand()
	require.Error(t, err)
	var ne *NodeError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, KindProtocol, ne.Kind)
}

func TestCodec_RejectsMalformedLines(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"INIT without config", "INIT sensor1\n"},
		{"INIT with invalid json", "INIT sensor1 {broken\n"},
		{"ADVANCE without target", "ADVANCE\n"},
		{"ADVANCE with negative target", "ADVANCE -5\n"},
		{"ADVANCE with garbage target", "ADVANCE soon\n"},
		{"SHUTDOWN with arguments", "SHUTDOWN now\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCodec("n", bytes.NewBufferString(tt.line)).ReadCommand()
			require.Error(t, err)
			assert.Equal(t, KindProtocol, KindOf(err))
		})
	}
}

func TestCodec_ReadDone_RejectsWrongKeyword(t *testing.T) {
	buf := bytes.NewBufferString("READY\n[]\n")
	_, err := NewCodec("n", buf).ReadDone()
	require.Error(t, err)
	assert.Equal(t, KindProtocol, KindOf(err))
}

func TestCodec_ReadEvents_RejectsNonJSONLine(t *testing.T) {
	buf := bytes.NewBufferString("definitely not an array\n")
	_, err := NewCodec("n", buf).ReadEvents()
	require.Error(t, err)
	assert.Equal(t, KindProtocol, KindOf(err))
}

func TestCodec_EOFIsTransport(t *testing.T) {
	_, err := NewCodec("n", &bytes.Buffer{}).ReadCommand()
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
}
