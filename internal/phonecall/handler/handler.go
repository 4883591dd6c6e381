package handler

import (
	"net/http"

	"voice-bridge-server/internal/clients/openai"
	"voice-bridge-server/internal/observability"
	"voice-bridge-server/internal/phonecall/processor"

	"github.com/gorilla/websocket"
)

type Handler struct {
	processor  *processor.Processor
	speech     *openai.Client
	publicHost string
	logger     *observability.Logger
}

func New(p *processor.Processor, speech *openai.Client, publicHost string,
	logger *observability.Logger) Handler {
	return Handler{
		processor:  p,
		speech:     speech,
		publicHost: publicHost,
		logger:     logger,
	}
}

// upgrader is a shared WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Twilio's media stream client sends no browser origin.
		return true
	},
}
