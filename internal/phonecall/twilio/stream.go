package twilio

import (
	"context"
	"encoding/json"
	"sync"

	"voice-bridge-server/internal/observability"

	"github.com/gorilla/websocket"
)

// Media stream event tags.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventStop      = "stop"
)

// MediaEvent is one JSON-framed event on the Twilio media stream socket.
type MediaEvent struct {
	Event string `json:"event"`
	Start struct {
		StreamSid string `json:"streamSid"`
		CallSid   string `json:"callSid"`
	} `json:"start,omitempty"`
	Media struct {
		Payload string `json:"payload"`
	} `json:"media,omitempty"`
	Stop struct {
		StreamSid string `json:"streamSid"`
	} `json:"stop,omitempty"`
}

type mediaFrame struct {
	Event     string       `json:"event"`
	StreamSid string       `json:"streamSid"`
	Media     mediaPayload `json:"media"`
}

type mediaPayload struct {
	Payload string `json:"payload"`
}

// MediaStream wraps the websocket Twilio opens for one call leg.
type MediaStream struct {
	conn       *websocket.Conn
	logger     *observability.Logger
	writeMutex sync.Mutex
	closeOnce  sync.Once
}

func NewMediaStream(conn *websocket.Conn, logger *observability.Logger) *MediaStream {
	return &MediaStream{conn: conn, logger: logger}
}

// ReadEvent blocks until the next media stream event arrives. Frames that do
// not parse as JSON are skipped.
func (m *MediaStream) ReadEvent() (MediaEvent, error) {
	for {
		_, msg, err := m.conn.ReadMessage()
		if err != nil {
			return MediaEvent{}, err
		}
		var event MediaEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			m.logger.Error(context.Background(), "Failed to parse Twilio event", err)
			continue
		}
		return event, nil
	}
}

// WriteMedia sends one outbound audio frame addressed to the given stream.
func (m *MediaStream) WriteMedia(streamSid, payload string) error {
	frame := mediaFrame{
		Event:     EventMedia,
		StreamSid: streamSid,
		Media:     mediaPayload{Payload: payload},
	}

	m.writeMutex.Lock()
	defer m.writeMutex.Unlock()
	return m.conn.WriteJSON(frame)
}

// Close sends a close frame and releases the socket. Safe to call more than once.
func (m *MediaStream) Close() {
	m.closeOnce.Do(func() {
		m.writeMutex.Lock()
		m.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		m.writeMutex.Unlock()

		m.conn.Close()
	})
}
