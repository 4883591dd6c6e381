package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"voice-bridge-server/internal/observability"

	"github.com/gorilla/websocket"
)

const defaultRealtimeURL = "wss://api.openai.com/v1/realtime?model=gpt-4o-realtime-preview-2024-10-01"

// TelephonyAudioFormat is the encoding the telephony media stream carries.
// Session audio formats must match it; the relay never transcodes.
const TelephonyAudioFormat = "g711_ulaw"

const (
	maxConnectAttempts = 3
	connectRetryDelay  = time.Second
)

// Outbound message types.
const (
	TypeSessionUpdate    = "session.update"
	TypeInputAudioAppend = "input_audio_buffer.append"
)

// Inbound event types.
const (
	TypeAudioDelta     = "response.audio.delta"
	TypeTextDelta      = "response.text.delta"
	TypeSessionUpdated = "session.updated"
	TypeError          = "error"
)

// TurnDetection configures silence-based auto turn-taking on the server side.
type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitempty"`
	CreateResponse    bool    `json:"create_response,omitempty"`
}

// SessionConfig holds the one-time session configuration sent immediately
// after the realtime socket connects and before any audio is forwarded.
type SessionConfig struct {
	Voice             string
	InputAudioFormat  string
	OutputAudioFormat string
	Instructions      string
	Modalities        []string
	Temperature       float64
	TurnDetection     TurnDetection
}

// DefaultSessionConfig returns the canonical voice-call session configuration.
func DefaultSessionConfig(instructions string) SessionConfig {
	return SessionConfig{
		Voice:             "echo",
		InputAudioFormat:  TelephonyAudioFormat,
		OutputAudioFormat: TelephonyAudioFormat,
		Instructions:      instructions,
		Modalities:        []string{"text", "audio"},
		Temperature:       0.8,
		TurnDetection: TurnDetection{
			Type:              "server_vad",
			Threshold:         0.5,
			PrefixPaddingMs:   300,
			SilenceDurationMs: 500,
			CreateResponse:    true,
		},
	}
}

// Validate rejects configurations whose audio encoding cannot ride the
// telephony leg. A mismatch here is a deployment error, not a runtime one.
func (c SessionConfig) Validate() error {
	if c.InputAudioFormat != TelephonyAudioFormat || c.OutputAudioFormat != TelephonyAudioFormat {
		return fmt.Errorf("session audio format must be %q for the telephony leg (got input %q, output %q)",
			TelephonyAudioFormat, c.InputAudioFormat, c.OutputAudioFormat)
	}
	if c.Voice == "" {
		return fmt.Errorf("session voice is required")
	}
	if len(c.Modalities) == 0 {
		return fmt.Errorf("at least one modality is required")
	}
	return nil
}

type sessionUpdateMessage struct {
	Type    string         `json:"type"`
	Session sessionPayload `json:"session"`
}

type sessionPayload struct {
	TurnDetection     TurnDetection `json:"turn_detection"`
	InputAudioFormat  string        `json:"input_audio_format"`
	OutputAudioFormat string        `json:"output_audio_format"`
	Voice             string        `json:"voice"`
	Instructions      string        `json:"instructions"`
	Modalities        []string      `json:"modalities"`
	Temperature       float64       `json:"temperature"`
}

type audioAppendMessage struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

// ServerEvent is one JSON-framed event from the realtime endpoint.
type ServerEvent struct {
	Type  string       `json:"type"`
	Delta string       `json:"delta,omitempty"`
	Error *ServerError `json:"error,omitempty"`
}

// ServerError carries the detail of a realtime "error" event.
type ServerError struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Client dials realtime speech sessions.
type Client struct {
	apiKey string
	logger *observability.Logger

	// Endpoint overrides the realtime URL; used by tests.
	Endpoint string
}

func NewClient(apiKey string, logger *observability.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	return &Client{apiKey: apiKey, logger: logger, Endpoint: defaultRealtimeURL}, nil
}

// DialRealtime opens a realtime session and sends the session configuration
// before returning. The initial connection is retried a bounded number of
// times with a fixed delay; exhausting retries fails the session.
func (c *Client) DialRealtime(ctx context.Context, cfg SessionConfig) (*RealtimeConn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.apiKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{}

	var lastErr error
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		conn, _, err := dialer.DialContext(ctx, c.Endpoint, headers)
		if err == nil {
			rc := &RealtimeConn{conn: conn, logger: c.logger}
			if err := rc.sendSessionUpdate(cfg); err != nil {
				rc.Close()
				lastErr = err
			} else {
				return rc, nil
			}
		} else {
			lastErr = err
		}

		c.logger.Error(ctx, fmt.Sprintf("Realtime connect attempt %d/%d failed", attempt, maxConnectAttempts), lastErr)
		if attempt < maxConnectAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(connectRetryDelay):
			}
		}
	}
	return nil, fmt.Errorf("failed to connect to realtime endpoint after %d attempts: %w",
		maxConnectAttempts, lastErr)
}

// RealtimeConn is one open realtime session socket.
type RealtimeConn struct {
	conn       *websocket.Conn
	logger     *observability.Logger
	writeMutex sync.Mutex
}

func (rc *RealtimeConn) sendSessionUpdate(cfg SessionConfig) error {
	msg := sessionUpdateMessage{
		Type: TypeSessionUpdate,
		Session: sessionPayload{
			TurnDetection:     cfg.TurnDetection,
			InputAudioFormat:  cfg.InputAudioFormat,
			OutputAudioFormat: cfg.OutputAudioFormat,
			Voice:             cfg.Voice,
			Instructions:      cfg.Instructions,
			Modalities:        cfg.Modalities,
			Temperature:       cfg.Temperature,
		},
	}
	rc.writeMutex.Lock()
	defer rc.writeMutex.Unlock()
	if err := rc.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send session update: %w", err)
	}
	return nil
}

// AppendAudio forwards one opaque base64 audio payload to the session's
// input audio buffer. The payload is never inspected or re-encoded.
func (rc *RealtimeConn) AppendAudio(payload string) error {
	rc.writeMutex.Lock()
	defer rc.writeMutex.Unlock()
	if err := rc.conn.WriteJSON(audioAppendMessage{Type: TypeInputAudioAppend, Audio: payload}); err != nil {
		return fmt.Errorf("failed to append audio: %w", err)
	}
	return nil
}

// ReadEvent blocks until the next event arrives. Frames that do not parse
// as JSON are skipped.
func (rc *RealtimeConn) ReadEvent() (ServerEvent, error) {
	for {
		_, msg, err := rc.conn.ReadMessage()
		if err != nil {
			return ServerEvent{}, err
		}
		var event ServerEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			rc.logger.Error(context.Background(), "Failed to parse realtime event", err)
			continue
		}
		return event, nil
	}
}

// Close releases the socket.
func (rc *RealtimeConn) Close() error {
	rc.writeMutex.Lock()
	rc.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	rc.writeMutex.Unlock()
	return rc.conn.Close()
}
