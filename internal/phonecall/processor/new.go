package processor

import (
	"context"
	"errors"
	"time"

	"voice-bridge-server/internal/observability"
	"voice-bridge-server/internal/store"

	"github.com/google/uuid"
)

var (
	ErrInvalidPhoneNumber   = errors.New("invalid phone number")
	ErrInvalidScheduledTime = errors.New("scheduled time must be in the future")
	ErrCallNotFound         = errors.New("scheduled call not found")
)

// CallStore defines the database operations required by the processor
type CallStore interface {
	CreateScheduledCall(ctx context.Context, params store.CreateScheduledCallParams) (store.ScheduledCall, error)
	GetScheduledCallByCallSID(ctx context.Context, callSID string) (store.ScheduledCall, error)
	UpdateScheduledCallTwilioStatus(ctx context.Context, id uuid.UUID, twilioStatus string, updatedAt time.Time) error
	CompleteScheduledCall(ctx context.Context, id uuid.UUID, completedAt time.Time) error
}

// NumberConfigurer points the provider's phone number at a voice webhook
type NumberConfigurer interface {
	UpdateVoiceURL(ctx context.Context, voiceURL string) error
}

type Processor struct {
	store      CallStore
	numbers    NumberConfigurer
	publicHost string
	logger     *observability.Logger
}

func New(callStore CallStore, numbers NumberConfigurer, publicHost string,
	logger *observability.Logger) *Processor {
	return &Processor{
		store:      callStore,
		numbers:    numbers,
		publicHost: publicHost,
		logger:     logger,
	}
}
