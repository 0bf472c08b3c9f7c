package internal

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

// EventType is the "type" discriminator of a stream event
type EventType string

const (
	EventContent     EventType = "content"
	EventAgentSwitch EventType = "agent_switch"
	EventToolCall    EventType = "tool_call"
	EventToolOutput  EventType = "tool_output"
	EventError       EventType = "error"
	EventDone        EventType = "done"
)

// StreamEvent is one decoded server-push event
type StreamEvent struct {
	Type  EventType       `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// HasData reports whether the event carries a non-null payload
func (e StreamEvent) HasData() bool {
	trimmed := strings.TrimSpace(string(e.Data))
	return trimmed != "" && trimmed != "null"
}

// Text returns a string payload as-is and any other payload as its JSON text
func (e StreamEvent) Text() string {
	if !e.HasData() {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Data, &s); err == nil {
		return s
	}
	return string(e.Data)
}

// AgentName returns data.agent_name of an agent_switch event
func (e StreamEvent) AgentName() string {
	var payload struct {
		AgentName string `json:"agent_name"`
	}
	if !e.HasData() || json.Unmarshal(e.Data, &payload) != nil {
		return ""
	}
	return payload.AgentName
}

// ToolName returns data.tool of a tool_call event
func (e StreamEvent) ToolName() string {
	var payload struct {
		Tool string `json:"tool"`
	}
	if !e.HasData() || json.Unmarshal(e.Data, &payload) != nil {
		return ""
	}
	return payload.Tool
}

// EventStream is an open server-push connection. Next returns io.EOF when
// the server ends the stream and ErrStreamClosed after Close.
type EventStream interface {
	Next() (StreamEvent, error)
	Close() error
}

// SSEReader decodes "data:" framed events from a response body
type SSEReader struct {
	body   io.ReadCloser
	reader *bufio.Reader
	closed atomic.Bool
	once   sync.Once
}

// NewSSEReader wraps body. The reader owns body and closes it on Close.
func NewSSEReader(body io.ReadCloser) *SSEReader {
	return &SSEReader{body: body, reader: bufio.NewReader(body)}
}

// Next blocks until the next complete event is available
func (r *SSEReader) Next() (StreamEvent, error) {
	if r.closed.Load() {
		return StreamEvent{}, ErrStreamClosed
	}

	var (
		data    strings.Builder
		hasData bool
	)
	for {
		line, err := r.reader.ReadString('\n')
		if line != "" {
			line = strings.TrimRight(line, "\r\n")
			if line == "" {
				if hasData {
					return decodeEvent(data.String())
				}
			} else if field, value := splitField(line); field == "data" {
				if hasData {
					data.WriteByte('\n')
				}
				data.WriteString(value)
				hasData = true
			}
		}
		if err != nil {
			if r.closed.Load() {
				return StreamEvent{}, ErrStreamClosed
			}
			if errors.Is(err, io.EOF) && hasData {
				return decodeEvent(data.String())
			}
			return StreamEvent{}, err
		}
	}
}

// Close closes the underlying body; it is safe to call more than once
func (r *SSEReader) Close() error {
	var err error
	r.once.Do(func() {
		r.closed.Store(true)
		err = r.body.Close()
	})
	return err
}

// splitField splits "field: value" and drops one leading space from value.
// Comment lines (":...") yield an empty field.
func splitField(line string) (string, string) {
	field, value, found := strings.Cut(line, ":")
	if !found {
		return line, ""
	}
	return field, strings.TrimPrefix(value, " ")
}

func decodeEvent(payload string) (StreamEvent, error) {
	var ev StreamEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return StreamEvent{}, &ParseError{Source: "stream", Key: abbreviate(payload, 64), Err: err}
	}
	return ev, nil
}

func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
