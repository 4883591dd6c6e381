package handler

import (
	"fmt"
	"net/http"

	"voice-bridge-server/internal/clients/openai"
	"voice-bridge-server/internal/observability"
	"voice-bridge-server/internal/phonecall/relay"
	"voice-bridge-server/internal/phonecall/twilio"

	"github.com/gin-gonic/gin"
	"github.com/twilio/twilio-go/twiml"
)

const greeting = "Hello! Connecting you to our assistant. One moment please."

const systemInstructions = "You are a helpful AI assistant on a phone call. " +
	"Keep your responses concise and conversational."

// HandleInboundCall answers the provider's inbound call webhook with a voice
// response that speaks a greeting and opens the bidirectional media stream.
// The pauses give the websocket time to come up before audio flows.
func (h *Handler) HandleInboundCall(c *gin.Context) {
	ctx := c.Request.Context()

	callSID := c.PostForm("CallSid")
	ctx = observability.WithFields(ctx, observability.Field{Key: "call_sid", Value: callSID})
	h.logger.Info(ctx, "Incoming call")

	streamURL := fmt.Sprintf("wss://%s/api/phone/media-stream", h.publicHost)

	say := &twiml.VoiceSay{
		Message: greeting,
	}
	preStreamPause := &twiml.VoicePause{
		Length: "2",
	}
	stream := twiml.VoiceStream{
		Name: "media-stream",
		Url:  streamURL,
	}
	connect := &twiml.VoiceConnect{
		InnerElements: []twiml.Element{stream},
	}
	postStreamPause := &twiml.VoicePause{
		Length: "3",
	}

	twimlResult, err := twiml.Voice([]twiml.Element{say, preStreamPause, connect, postStreamPause})
	if err != nil {
		h.logger.Error(ctx, "Failed to build voice response", err)
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	c.Header("Content-Type", "text/xml")
	c.String(http.StatusOK, twimlResult)
}

// HandleMediaStream upgrades the media stream connection and runs one relay
// session for the lifetime of the call leg.
func (h *Handler) HandleMediaStream(c *gin.Context) {
	ctx := c.Request.Context()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error(ctx, "WebSocket upgrade failed", err)
		return
	}

	h.logger.Info(ctx, "Media stream connection established")

	stream := twilio.NewMediaStream(conn, h.logger)
	cfg := openai.DefaultSessionConfig(systemInstructions)

	session := relay.NewSession(stream, h.speech, cfg, h.logger)
	if err := session.Run(ctx); err != nil {
		h.logger.Error(ctx, "Relay session failed", err)
	}
}
