package relay

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"voice-bridge-server/internal/clients/openai"
	"voice-bridge-server/internal/observability"
	"voice-bridge-server/internal/phonecall/twilio"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// speechStub plays the realtime speech endpoint: it accepts one websocket,
// records every message the session sends, and lets tests push events back.
type speechStub struct {
	URL      string
	received chan map[string]interface{}
	conns    chan *websocket.Conn
}

func newSpeechStub(t *testing.T) *speechStub {
	stub := &speechStub{
		received: make(chan map[string]interface{}, 64),
		conns:    make(chan *websocket.Conn, 1),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		stub.conns <- conn
		for {
			var msg map[string]interface{}
			if err := conn.ReadJSON(&msg); err != nil {
				close(stub.received)
				return
			}
			stub.received <- msg
		}
	}))
	t.Cleanup(srv.Close)
	stub.URL = wsURL(srv)
	return stub
}

func (s *speechStub) waitForConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-s.conns:
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("speech stub never received a connection")
		return nil
	}
}

func (s *speechStub) waitForMessage(t *testing.T, wantType string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case msg, ok := <-s.received:
			require.True(t, ok, "speech socket closed while waiting for %s", wantType)
			if msg["type"] == wantType {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", wantType)
		}
	}
}

func newTestSpeechClient(t *testing.T, endpoint string) *openai.Client {
	t.Helper()
	client, err := openai.NewClient("test-key", observability.NewLogger())
	require.NoError(t, err)
	client.Endpoint = endpoint
	return client
}

type sessionResult struct {
	session *Session
	err     error
}

// startRelaySession stands up a media-stream endpoint that runs one Session
// per connection, then dials it as the telephony side would.
func startRelaySession(t *testing.T, client *openai.Client) (*websocket.Conn, chan sessionResult) {
	t.Helper()
	logger := observability.NewLogger()
	results := make(chan sessionResult, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		session := NewSession(twilio.NewMediaStream(conn, logger), client,
			openai.DefaultSessionConfig("You are a test assistant."), logger)
		results <- sessionResult{session: session, err: session.Run(context.Background())}
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, results
}

func waitForResult(t *testing.T, results chan sessionResult) sessionResult {
	t.Helper()
	select {
	case res := <-results:
		return res
	case <-time.After(10 * time.Second):
		t.Fatal("session did not finish")
		return sessionResult{}
	}
}

func startMsg(streamSid string) map[string]interface{} {
	return map[string]interface{}{
		"event": "start",
		"start": map[string]string{"streamSid": streamSid, "callSid": "CA123"},
	}
}

func mediaMsg(payload string) map[string]interface{} {
	return map[string]interface{}{
		"event": "media",
		"media": map[string]string{"payload": payload},
	}
}

func stopMsg(streamSid string) map[string]interface{} {
	return map[string]interface{}{
		"event": "stop",
		"stop":  map[string]string{"streamSid": streamSid},
	}
}

func TestSession_DropsMediaBeforeStart(t *testing.T) {
	stub := newSpeechStub(t)
	client := newTestSpeechClient(t, stub.URL)
	conn, results := startRelaySession(t, client)

	send := func(v interface{}) {
		require.NoError(t, conn.WriteJSON(v))
	}

	send(map[string]string{"event": "connected"})
	for i := 0; i < 3; i++ {
		send(mediaMsg("early-frame"))
	}
	send(startMsg("MZ1"))
	for i := 0; i < 2; i++ {
		send(mediaMsg("routable-frame"))
	}
	send(stopMsg("MZ1"))

	res := waitForResult(t, results)
	require.NoError(t, res.err)

	assert.Equal(t, "MZ1", res.session.StreamSid())
	assert.EqualValues(t, 3, res.session.FramesDropped())
	in, _ := res.session.FramesForwarded()
	assert.EqualValues(t, 2, in)

	// The speech leg must see the session configuration first, then exactly
	// the frames that arrived after the start event.
	var types []string
	for msg := range stub.received {
		msgType, _ := msg["type"].(string)
		types = append(types, msgType)
	}
	require.NotEmpty(t, types)
	assert.Equal(t, openai.TypeSessionUpdate, types[0])
	assert.Equal(t, []string{openai.TypeInputAudioAppend, openai.TypeInputAudioAppend}, types[1:])
}

func TestSession_ForwardsSpeechAudioToTelephonyLeg(t *testing.T) {
	stub := newSpeechStub(t)
	client := newTestSpeechClient(t, stub.URL)
	conn, results := startRelaySession(t, client)

	require.NoError(t, conn.WriteJSON(startMsg("MZ7")))
	require.NoError(t, conn.WriteJSON(mediaMsg("inbound-audio")))

	speechConn := stub.waitForConn(t)
	stub.waitForMessage(t, openai.TypeSessionUpdate)
	// Once an append arrives the session has recorded the stream identifier,
	// so deltas sent from here on are routable.
	stub.waitForMessage(t, openai.TypeInputAudioAppend)

	for i := 0; i < 3; i++ {
		require.NoError(t, speechConn.WriteJSON(map[string]string{
			"type":  openai.TypeAudioDelta,
			"delta": fmt.Sprintf("outbound-audio-%d", i),
		}))
	}

	for i := 0; i < 3; i++ {
		var frame struct {
			Event     string `json:"event"`
			StreamSid string `json:"streamSid"`
			Media     struct {
				Payload string `json:"payload"`
			} `json:"media"`
		}
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		require.NoError(t, conn.ReadJSON(&frame))
		assert.Equal(t, "media", frame.Event)
		assert.Equal(t, "MZ7", frame.StreamSid)
		assert.Equal(t, fmt.Sprintf("outbound-audio-%d", i), frame.Media.Payload)
	}

	require.NoError(t, conn.WriteJSON(stopMsg("MZ7")))

	res := waitForResult(t, results)
	require.NoError(t, res.err)
	_, out := res.session.FramesForwarded()
	assert.EqualValues(t, 3, out)
}

func TestSession_SpeechCloseTearsDownTelephonyLeg(t *testing.T) {
	stub := newSpeechStub(t)
	client := newTestSpeechClient(t, stub.URL)
	conn, results := startRelaySession(t, client)

	speechConn := stub.waitForConn(t)
	stub.waitForMessage(t, openai.TypeSessionUpdate)
	speechConn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "telephony socket should be closed once the speech leg drops")

	res := waitForResult(t, results)
	assert.NoError(t, res.err)
}

func TestSession_ConnectFailureClosesTelephonyLeg(t *testing.T) {
	refusing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(refusing.Close)

	client := newTestSpeechClient(t, wsURL(refusing))
	conn, results := startRelaySession(t, client)

	res := waitForResult(t, results)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "failed to establish speech session")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "telephony socket should be closed when the speech session cannot be established")
}
