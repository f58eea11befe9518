// Implements the line-oriented wire codec spoken between the coordinator and
// node processes. The format is deliberately minimal (newline-terminated
// UTF-8 text, JSON arrays for event payloads) so that nodes written in any
// language can implement it with a socket and a JSON library:
//
//	Coordinator -> Node:  INIT <node_id> <config-json>\n
//	Node -> Coordinator:  READY\n
//	Coordinator -> Node:  ADVANCE <target_time_us>\n
//	Coordinator -> Node:  <json-array-of-inbound-events>\n
//	Node -> Coordinator:  DONE\n
//	Node -> Coordinator:  <json-array-of-outbound-events>\n
//	Coordinator -> Node:  SHUTDOWN\n

package sim

import (
	"bufio"
	"encoding/json"
	"io"
	"strconv"
	"strings"
)

// Wire keywords. Anything else on a command/response line is rejected, not
// silently ignored.
const (
	wireInit     = "INIT"
	wireAdvance  = "ADVANCE"
	wireShutdown = "SHUTDOWN"
	wireReady    = "READY"
	wireDone     = "DONE"
)

// CommandKind discriminates parsed coordinator->node commands.
type CommandKind string

const (
	CmdInit     CommandKind = wireInit
	CmdAdvance  CommandKind = wireAdvance
	CmdShutdown CommandKind = wireShutdown
)

// Command is one parsed coordinator->node command line. For CmdAdvance the
// inbound event array follows on the next line and is read separately via
// ReadEvents.
type Command struct {
	Kind     CommandKind
	NodeID   string          // CmdInit only
	Config   json.RawMessage // CmdInit only
	TargetUS int64           // CmdAdvance only
}

// Codec frames messages over one node connection. Reads are buffered: frame
// boundaries are newlines and a single read from the transport may carry a
// partial line or several lines, so the codec accumulates until a full line
// is available rather than assuming one read equals one message.
//
// Parse failures come back as KindProtocol NodeErrors, I/O failures as
// KindTransport; callers only need to forward them.
type Codec struct {
	nodeID string
	r      *bufio.Reader
	w      *bufio.Writer
}

// NewCodec wraps a byte-stream transport. nodeID is used only for error
// attribution in logs and NodeErrors.
func NewCodec(nodeID string, rw io.ReadWriter) *Codec {
	return &Codec{
		nodeID: nodeID,
		r:      bufio.NewReader(rw),
		w:      bufio.NewWriter(rw),
	}
}

// readLine returns the next newline-terminated line with the terminator (and
// any trailing \r) stripped.
func (c *Codec) readLine() (string, error) {
	line, err := c.r.ReadString('\n')
	if err != nil {
		return "", TransportError(c.nodeID, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *Codec) writeLine(line string) error {
	if _, err := c.w.WriteString(line); err != nil {
		return TransportError(c.nodeID, err)
	}
	if err := c.w.WriteByte('\n'); err != nil {
		return TransportError(c.nodeID, err)
	}
	return nil
}

func (c *Codec) flush() error {
	if err := c.w.Flush(); err != nil {
		return TransportError(c.nodeID, err)
	}
	return nil
}

// === Coordinator side ===

// WriteInit sends INIT with the node's id and its JSON configuration object.
func (c *Codec) WriteInit(nodeID string, config json.RawMessage) error {
	if len(config) == 0 {
		config = json.RawMessage("{}")
	}
	if err := c.writeLine(wireInit + " " + nodeID + " " + string(config)); err != nil {
		return err
	}
	return c.flush()
}

// WriteAdvance sends ADVANCE with the target time and the inbound event array.
func (c *Codec) WriteAdvance(targetUS int64, inbound []Event) error {
	data, err := EncodeEvents(inbound)
	if err != nil {
		return ProtocolErrorf(c.nodeID, "encoding inbound events: %v", err)
	}
	if err := c.writeLine(wireAdvance + " " + strconv.FormatInt(targetUS, 10)); err != nil {
		return err
	}
	if err := c.writeLine(string(data)); err != nil {
		return err
	}
	return c.flush()
}

// WriteShutdown sends SHUTDOWN.
func (c *Codec) WriteShutdown() error {
	if err := c.writeLine(wireShutdown); err != nil {
		return err
	}
	return c.flush()
}

// ReadReady consumes the READY response to an INIT.
func (c *Codec) ReadReady() error {
	line, err := c.readLine()
	if err != nil {
		return err
	}
	if line != wireReady {
		return ProtocolErrorf(c.nodeID, "expected READY, got %q", line)
	}
	return nil
}

// ReadDone consumes the DONE response to an ADVANCE and the event array line
// that follows it. An empty array is the normal quiet-cycle response.
func (c *Codec) ReadDone() ([]Event, error) {
	line, err := c.readLine()
	if err != nil {
		return nil, err
	}
	if line != wireDone {
		return nil, ProtocolErrorf(c.nodeID, "expected DONE, got %q", line)
	}
	return c.ReadEvents()
}

// === Node side ===

// ReadCommand parses the next coordinator->node command line. For CmdAdvance
// the caller must read the inbound array next via ReadEvents.
func (c *Codec) ReadCommand() (Command, error) {
	line, err := c.readLine()
	if err != nil {
		return Command{}, err
	}
	keyword, rest, _ := strings.Cut(line, " ")
	switch keyword {
	case wireInit:
		nodeID, config, ok := strings.Cut(rest, " ")
		if !ok || nodeID == "" {
			return Command{}, ProtocolErrorf(c.nodeID, "malformed INIT line %q", line)
		}
		if !json.Valid([]byte(config)) {
			return Command{}, ProtocolErrorf(c.nodeID, "INIT config is not valid JSON: %q", config)
		}
		return Command{Kind: CmdInit, NodeID: nodeID, Config: json.RawMessage(config)}, nil
	case wireAdvance:
		target, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || target < 0 {
			return Command{}, ProtocolErrorf(c.nodeID, "malformed ADVANCE target %q", rest)
		}
		return Command{Kind: CmdAdvance, TargetUS: target}, nil
	case wireShutdown:
		if rest != "" {
			return Command{}, ProtocolErrorf(c.nodeID, "unexpected arguments on SHUTDOWN: %q", rest)
		}
		return Command{Kind: CmdShutdown}, nil
	default:
		return Command{}, ProtocolErrorf(c.nodeID, "unknown command %q", keyword)
	}
}

// ReadEvents reads and decodes one JSON event-array line.
func (c *Codec) ReadEvents() ([]Event, error) {
	line, err := c.readLine()
	if err != nil {
		return nil, err
	}
	events, err := DecodeEvents([]byte(line))
	if err != nil {
		return nil, ProtocolErrorf(c.nodeID, "bad event array: %v", err)
	}
	return events, nil
}

// WriteReady sends READY in response to INIT.
func (c *Codec) WriteReady() error {
	if err := c.writeLine(wireReady); err != nil {
		return err
	}
	return c.flush()
}

// WriteDone sends DONE plus the outbound event array.
func (c *Codec) WriteDone(outbound []Event) error {
	data, err := EncodeEvents(outbound)
	if err != nil {
		return ProtocolErrorf(c.nodeID, "encoding outbound events: %v", err)
	}
	if err := c.writeLine(wireDone); err != nil {
		return err
	}
	if err := c.writeLine(string(data)); err != nil {
		return err
	}
	return c.flush()
}
