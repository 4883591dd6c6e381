package bootstrap

import (
	"context"
	"fmt"

	"voice-bridge-server/internal/clients/openai"
	twilioClient "voice-bridge-server/internal/clients/twilio"
	"voice-bridge-server/internal/config"
	"voice-bridge-server/internal/dispatch"
	"voice-bridge-server/internal/observability"
	phoneHandler "voice-bridge-server/internal/phonecall/handler"
	phoneProcessor "voice-bridge-server/internal/phonecall/processor"
	"voice-bridge-server/internal/store"
)

// Dependencies holds all initialized application dependencies
type Dependencies struct {
	// Core
	Store  store.Store
	Logger *observability.Logger

	// Handlers
	PhoneHandler phoneHandler.Handler

	// Background workers
	Dispatcher *dispatch.Dispatcher
}

// Initialize sets up all application dependencies
func Initialize(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Logger: logger,
	}

	// Initialize database store
	connectionString := cfg.Database.ConnectionString()
	var err error
	deps.Store, err = store.New(connectionString, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize clients
	speechClient, err := openai.NewClient(cfg.OpenAI.APIKey, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	telephonyClient, err := twilioClient.NewClient(
		cfg.Twilio.AccountSID,
		cfg.Twilio.AuthToken,
		cfg.Twilio.PhoneNumber,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create telephony client: %w", err)
	}

	// Initialize phone call processor and handler
	processor := phoneProcessor.New(&deps.Store, telephonyClient, cfg.Server.PublicHost, logger)
	deps.PhoneHandler = phoneHandler.New(processor, speechClient, cfg.Server.PublicHost, logger)

	// Initialize the scheduled-call dispatcher
	deps.Dispatcher = dispatch.NewDispatcher(&deps.Store, telephonyClient, logger, cfg.Dispatch.Interval)

	return deps, nil
}

// Cleanup releases held resources
func (d *Dependencies) Cleanup() {
	d.Store.Close()
}
