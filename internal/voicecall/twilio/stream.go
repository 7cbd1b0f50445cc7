package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"voice-server/internal/observability"

	"github.com/gorilla/websocket"
)

// Media Streams event names.
const (
	EventStart    = "start"
	EventMedia    = "media"
	EventStop     = "stop"
	EventMark     = "mark"
	EventResponse = "response"
)

// Event is one inbound JSON frame from a Twilio Media Stream. Twilio nests
// call metadata under "start", but some stream clients put callSid/from/to
// at the top level; both shapes are accepted and the nested form wins.
type Event struct {
	Event     string `json:"event"`
	CallSid   string `json:"callSid,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	StreamSid string `json:"streamSid,omitempty"`
	Start     struct {
		StreamSid string `json:"streamSid"`
		CallSid   string `json:"callSid"`
		From      string `json:"from"`
		To        string `json:"to"`
	} `json:"start,omitempty"`
	Media struct {
		Payload string `json:"payload"`
	} `json:"media,omitempty"`
	Stop struct {
		StreamSid string `json:"streamSid"`
	} `json:"stop,omitempty"`
}

// StartCallSid resolves the call SID announced by a start event.
func (e *Event) StartCallSid() string {
	if e.Start.CallSid != "" {
		return e.Start.CallSid
	}
	return e.CallSid
}

// StartFrom resolves the originating number announced by a start event.
func (e *Event) StartFrom() string {
	if e.Start.From != "" {
		return e.Start.From
	}
	return e.From
}

// StartTo resolves the destination number announced by a start event.
func (e *Event) StartTo() string {
	if e.Start.To != "" {
		return e.Start.To
	}
	return e.To
}

// MediaEvent is an outbound audio frame.
type MediaEvent struct {
	Event     string       `json:"event"`
	StreamSid string       `json:"streamSid"`
	Media     MediaPayload `json:"media"`
}

type MediaPayload struct {
	Payload string `json:"payload"`
}

// MarkEvent signals a named point in the outbound stream.
type MarkEvent struct {
	Event     string   `json:"event"`
	StreamSid string   `json:"streamSid"`
	Mark      MarkName `json:"mark"`
}

type MarkName struct {
	Name string `json:"name"`
}

// ResponseEvent carries the agent's reply as plain text alongside audio.
type ResponseEvent struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid"`
	Text      string `json:"text"`
}

// Stream adapts one Twilio Media Streams WebSocket connection to the
// session handler's transport contract: ordered event reads, serialized
// writes, and a liveness check. Reads and writes may run concurrently;
// writes are mutex-guarded because gorilla/websocket allows one writer.
type Stream struct {
	conn    *websocket.Conn
	logger  *observability.Logger
	writeMu sync.Mutex
	closed  atomic.Bool
}

func NewStream(conn *websocket.Conn, logger *observability.Logger) *Stream {
	return &Stream{conn: conn, logger: logger}
}

// ReadEvent returns the next inbound event in arrival order. Frames that do
// not parse as JSON are logged and skipped rather than ending the session.
// A read error marks the stream disconnected and is returned to the caller.
func (s *Stream) ReadEvent(ctx context.Context) (Event, error) {
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			s.closed.Store(true)
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info(ctx, "WebSocket closed normally")
			}
			return Event{}, err
		}

		var event Event
		if err := json.Unmarshal(msg, &event); err != nil {
			s.logger.Error(ctx, "Failed to parse Twilio event", err)
			continue
		}
		return event, nil
	}
}

// WriteEvent marshals and sends one outbound frame. A write failure marks
// the stream disconnected; callers treat post-disconnect failures as
// expected rather than as errors to escalate.
func (s *Stream) WriteEvent(v interface{}) error {
	msg, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal outbound event: %w", err)
	}

	s.writeMu.Lock()
	err = s.conn.WriteMessage(websocket.TextMessage, msg)
	s.writeMu.Unlock()

	if err != nil {
		s.closed.Store(true)
		return err
	}
	return nil
}

// Connected reports whether the peer is still reachable.
func (s *Stream) Connected() bool {
	return !s.closed.Load()
}

// Close sends a close frame and tears down the connection.
func (s *Stream) Close() {
	s.closed.Store(true)

	s.writeMu.Lock()
	s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()

	s.conn.Close()
}
