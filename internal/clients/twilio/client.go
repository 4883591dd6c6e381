package twilio

import (
	"context"
	"fmt"

	"voice-bridge-server/internal/observability"

	twilioclient "github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// statusCallbackEvents is the status-callback event set requested on every
// outbound placement.
var statusCallbackEvents = []string{"initiated", "ringing", "answered", "completed"}

// Client wraps the Twilio REST API for call placement and number configuration.
type Client struct {
	api        *twilioclient.RestClient
	fromNumber string
	logger     *observability.Logger
}

func NewClient(accountSID, authToken, fromNumber string, logger *observability.Logger) (*Client, error) {
	if accountSID == "" || authToken == "" {
		return nil, fmt.Errorf("twilio credentials are required")
	}
	api := twilioclient.NewRestClientWithParams(twilioclient.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &Client{api: api, fromNumber: fromNumber, logger: logger}, nil
}

// PlaceCallParams holds the endpoints Twilio invokes for one outbound call.
type PlaceCallParams struct {
	To                string
	VoiceURL          string
	StatusCallbackURL string
}

// PlaceCall requests an outbound call and returns the provider's call SID.
func (c *Client) PlaceCall(ctx context.Context, params PlaceCallParams) (string, error) {
	callParams := &twilioApi.CreateCallParams{}
	callParams.SetTo(params.To)
	callParams.SetFrom(c.fromNumber)
	callParams.SetUrl(params.VoiceURL)
	callParams.SetMethod("POST")
	callParams.SetStatusCallback(params.StatusCallbackURL)
	callParams.SetStatusCallbackMethod("POST")
	callParams.SetStatusCallbackEvent(statusCallbackEvents)

	resp, err := c.api.Api.CreateCall(callParams)
	if err != nil {
		c.logger.Error(ctx, fmt.Sprintf("Failed to place call to %s", params.To), err)
		return "", fmt.Errorf("failed to place call: %w", err)
	}
	if resp.Sid == nil {
		return "", fmt.Errorf("call placement returned no SID")
	}

	c.logger.Info(ctx, fmt.Sprintf("Call initiated with SID: %s", *resp.Sid))
	return *resp.Sid, nil
}

// UpdateVoiceURL points the account phone number's voice webhook at the
// given URL so inbound calls reach this deployment.
func (c *Client) UpdateVoiceURL(ctx context.Context, voiceURL string) error {
	listParams := &twilioApi.ListIncomingPhoneNumberParams{}
	listParams.SetPhoneNumber(c.fromNumber)

	numbers, err := c.api.Api.ListIncomingPhoneNumber(listParams)
	if err != nil {
		c.logger.Error(ctx, "Failed to list incoming phone numbers", err)
		return fmt.Errorf("failed to list incoming phone numbers: %w", err)
	}
	if len(numbers) == 0 || numbers[0].Sid == nil {
		return fmt.Errorf("no phone number found matching %s", c.fromNumber)
	}

	updateParams := &twilioApi.UpdateIncomingPhoneNumberParams{}
	updateParams.SetVoiceUrl(voiceURL)
	updateParams.SetVoiceMethod("POST")

	if _, err := c.api.Api.UpdateIncomingPhoneNumber(*numbers[0].Sid, updateParams); err != nil {
		c.logger.Error(ctx, fmt.Sprintf("Failed to update voice URL for %s", c.fromNumber), err)
		return fmt.Errorf("failed to update voice URL: %w", err)
	}

	c.logger.Info(ctx, fmt.Sprintf("Updated voice URL for %s to %s", c.fromNumber, voiceURL))
	return nil
}
