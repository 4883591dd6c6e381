package relay

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"voice-bridge-server/internal/clients/openai"
	"voice-bridge-server/internal/observability"
	"voice-bridge-server/internal/phonecall/twilio"
)

// Session pumps opaque base64 audio payloads between one Twilio media stream
// and one realtime speech session. It owns both sockets: a failure or close
// on either leg tears down the other, and nothing outlives the session.
type Session struct {
	stream *twilio.MediaStream
	speech *openai.Client
	cfg    openai.SessionConfig
	logger *observability.Logger

	mu        sync.Mutex
	streamSid string

	framesIn      atomic.Int64
	framesOut     atomic.Int64
	framesDropped atomic.Int64
}

func NewSession(stream *twilio.MediaStream, speech *openai.Client, cfg openai.SessionConfig,
	logger *observability.Logger) *Session {
	return &Session{
		stream: stream,
		speech: speech,
		cfg:    cfg,
		logger: logger,
	}
}

// StreamSid returns the stream identifier, or "" before the start event.
func (s *Session) StreamSid() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamSid
}

func (s *Session) setStreamSid(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamSid = sid
}

// FramesForwarded returns the inbound and outbound frame counts.
func (s *Session) FramesForwarded() (in, out int64) {
	return s.framesIn.Load(), s.framesOut.Load()
}

// FramesDropped returns the count of frames dropped before the stream
// identifier was known.
func (s *Session) FramesDropped() int64 {
	return s.framesDropped.Load()
}

// Run drives the session until either leg closes, errors, or a stop event
// arrives. It always releases both sockets before returning.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, err := s.speech.DialRealtime(ctx, s.cfg)
	if err != nil {
		s.stream.Close()
		return fmt.Errorf("failed to establish speech session: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		s.pumpInbound(ctx, conn)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		s.pumpOutbound(ctx, conn)
	}()

	// Either pump exiting cancels the context; closing both sockets then
	// unblocks whichever pump is still waiting on a read.
	<-ctx.Done()
	conn.Close()
	s.stream.Close()
	wg.Wait()

	in, out := s.FramesForwarded()
	s.logger.Info(ctx, fmt.Sprintf("Relay session ended: %d frames in, %d frames out, %d dropped",
		in, out, s.FramesDropped()))
	return nil
}

// pumpInbound forwards telephony audio to the speech session.
func (s *Session) pumpInbound(ctx context.Context, conn *openai.RealtimeConn) {
	for {
		event, err := s.stream.ReadEvent()
		if err != nil {
			s.logger.Info(ctx, "Media stream closed")
			return
		}

		switch event.Event {
		case twilio.EventConnected:
			s.logger.Info(ctx, "Media stream connected")

		case twilio.EventStart:
			s.setStreamSid(event.Start.StreamSid)
			s.logger.Info(ctx, fmt.Sprintf("Media stream started: %s", event.Start.StreamSid))

		case twilio.EventMedia:
			// Frames arriving before the start event carry no routable
			// stream identifier and are dropped, never buffered.
			if s.StreamSid() == "" {
				s.framesDropped.Add(1)
				continue
			}
			if err := conn.AppendAudio(event.Media.Payload); err != nil {
				s.logger.Error(ctx, "Failed to forward audio to speech session", err)
				return
			}
			s.framesIn.Add(1)

		case twilio.EventStop:
			s.logger.Info(ctx, fmt.Sprintf("Media stream stopped: %s", event.Stop.StreamSid))
			return

		default:
			s.logger.Debug(ctx, fmt.Sprintf("Ignoring media stream event: %s", event.Event))
		}
	}
}

// pumpOutbound forwards speech audio back to the telephony leg.
func (s *Session) pumpOutbound(ctx context.Context, conn *openai.RealtimeConn) {
	for {
		event, err := conn.ReadEvent()
		if err != nil {
			s.logger.Info(ctx, "Speech session closed")
			return
		}

		switch event.Type {
		case openai.TypeAudioDelta:
			sid := s.StreamSid()
			if sid == "" {
				s.framesDropped.Add(1)
				continue
			}
			if err := s.stream.WriteMedia(sid, event.Delta); err != nil {
				s.logger.Error(ctx, "Failed to forward audio to media stream", err)
				return
			}
			s.framesOut.Add(1)

		case openai.TypeTextDelta:
			s.logger.Debug(ctx, fmt.Sprintf("Speech transcript delta: %s", event.Delta))

		case openai.TypeSessionUpdated:
			s.logger.Info(ctx, "Speech session configured")

		case openai.TypeError:
			detail := "unknown error"
			if event.Error != nil {
				detail = event.Error.Message
			}
			s.logger.Error(ctx, "Speech session error", fmt.Errorf("%s", detail))
			return

		default:
			s.logger.Debug(ctx, fmt.Sprintf("Ignoring speech event: %s", event.Type))
		}
	}
}
