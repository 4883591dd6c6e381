package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voice-bridge-server/internal/observability"
	"voice-bridge-server/internal/store"
)

// terminalTwilioStatuses are the provider statuses that end a call. Any of
// them moves the record to its own terminal status; the raw provider status
// is kept on the record for callers that need the success/failure
// distinction.
var terminalTwilioStatuses = map[string]bool{
	"completed": true,
	"failed":    true,
	"busy":      true,
	"no-answer": true,
	"canceled":  true,
}

// ScheduleCallParams is a validated-on-entry scheduling request.
type ScheduleCallParams struct {
	PhoneNumber   string
	ScheduledTime string
	Metadata      map[string]interface{}
}

// VoiceURL returns the webhook Twilio invokes when the call connects.
func (p *Processor) VoiceURL() string {
	return fmt.Sprintf("https://%s/api/phone/voice", p.publicHost)
}

// StatusCallbackURL returns the webhook Twilio posts call status updates to.
func (p *Processor) StatusCallbackURL() string {
	return fmt.Sprintf("https://%s/api/phone/status-callback", p.publicHost)
}

// ScheduleCall validates the request and creates a pending call record.
func (p *Processor) ScheduleCall(ctx context.Context, params ScheduleCallParams) (store.ScheduledCall, error) {
	phoneNumber, err := NormalizePhoneNumber(params.PhoneNumber)
	if err != nil {
		return store.ScheduledCall{}, err
	}

	scheduledTime, err := ValidateScheduledTime(params.ScheduledTime, time.Now().UTC())
	if err != nil {
		return store.ScheduledCall{}, err
	}

	call, err := p.store.CreateScheduledCall(ctx, store.CreateScheduledCallParams{
		PhoneNumber:   phoneNumber,
		ScheduledTime: scheduledTime,
		VoiceURL:      p.VoiceURL(),
		CallbackURL:   p.StatusCallbackURL(),
		Metadata:      params.Metadata,
	})
	if err != nil {
		return store.ScheduledCall{}, fmt.Errorf("failed to schedule call: %w", err)
	}

	ctx = observability.WithFields(ctx, observability.Field{Key: "call_id", Value: call.ID})
	p.logger.Info(ctx, fmt.Sprintf("Scheduled call to %s at %s", call.PhoneNumber,
		call.ScheduledTime.Format(time.RFC3339)))
	return call, nil
}

// ApplyStatusCallback maps an asynchronous provider status notification onto
// the call record state machine. An unknown call SID is a no-op, not an
// error: the provider may post updates for calls this system never placed.
func (p *Processor) ApplyStatusCallback(ctx context.Context, callSID, callStatus string) error {
	call, err := p.store.GetScheduledCallByCallSID(ctx, callSID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			p.logger.Info(ctx, fmt.Sprintf("No scheduled call for SID %s, ignoring status %s", callSID, callStatus))
			return nil
		}
		return fmt.Errorf("failed to look up call by SID: %w", err)
	}

	now := time.Now().UTC()
	if err := p.store.UpdateScheduledCallTwilioStatus(ctx, call.ID, callStatus, now); err != nil {
		return fmt.Errorf("failed to record provider status: %w", err)
	}

	if !terminalTwilioStatuses[callStatus] {
		return nil
	}

	// Records already in a terminal status stay put: a repeated terminal
	// callback is a no-op transition.
	if call.Status == store.CallStatusCompleted || call.Status == store.CallStatusFailed {
		return nil
	}

	if err := p.store.CompleteScheduledCall(ctx, call.ID, now); err != nil {
		return fmt.Errorf("failed to complete call: %w", err)
	}

	p.logger.Info(ctx, fmt.Sprintf("Call %s completed with provider status %s", call.ID, callStatus))
	return nil
}

// ConfigureVoiceWebhook points the provider phone number at this
// deployment's inbound voice webhook.
func (p *Processor) ConfigureVoiceWebhook(ctx context.Context) error {
	if err := p.numbers.UpdateVoiceURL(ctx, p.VoiceURL()); err != nil {
		return fmt.Errorf("failed to configure voice webhook: %w", err)
	}
	return nil
}
