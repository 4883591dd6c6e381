package dispatch

import (
	"context"
	"fmt"
	"time"

	"voice-bridge-server/internal/clients/twilio"
	"voice-bridge-server/internal/observability"
	"voice-bridge-server/internal/store"

	"github.com/google/uuid"
)

// DispatcherStore defines the database operations required by the Dispatcher
type DispatcherStore interface {
	GetScheduledCallsByStatus(ctx context.Context, status string) ([]store.ScheduledCall, error)
	MarkScheduledCallInProgress(ctx context.Context, id uuid.UUID, callSID string, startedAt time.Time) error
	MarkScheduledCallFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
}

// CallPlacer places outbound calls through the telephony REST API
type CallPlacer interface {
	PlaceCall(ctx context.Context, params twilio.PlaceCallParams) (string, error)
}

// Dispatcher periodically polls for due scheduled calls and places them.
// It runs for the process lifetime: a failing cycle is logged and the next
// tick runs as usual.
type Dispatcher struct {
	store         DispatcherStore
	placer        CallPlacer
	logger        *observability.Logger
	checkInterval time.Duration
	stopChan      chan struct{}
}

// NewDispatcher creates a new scheduled-call dispatcher
func NewDispatcher(dispatcherStore DispatcherStore, placer CallPlacer,
	logger *observability.Logger, checkInterval time.Duration) *Dispatcher {
	if checkInterval <= 0 {
		checkInterval = 60 * time.Second
	}

	return &Dispatcher{
		store:         dispatcherStore,
		placer:        placer,
		logger:        logger,
		checkInterval: checkInterval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the dispatch loop
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info(ctx, fmt.Sprintf("Starting call dispatcher with %v interval", d.checkInterval))

	ticker := time.NewTicker(d.checkInterval)
	defer ticker.Stop()

	// Run immediately on start
	d.dispatchDueCalls(ctx)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info(ctx, "Call dispatcher stopping: context cancelled")
			return
		case <-d.stopChan:
			d.logger.Info(ctx, "Call dispatcher stopping: stop signal received")
			return
		case <-ticker.C:
			d.dispatchDueCalls(ctx)
		}
	}
}

// Stop signals the dispatcher to stop
func (d *Dispatcher) Stop() {
	close(d.stopChan)
}

// dispatchDueCalls runs one dispatch cycle. Errors are logged, never raised:
// the loop must survive every cycle.
func (d *Dispatcher) dispatchDueCalls(ctx context.Context) {
	now := time.Now().UTC()

	pending, err := d.store.GetScheduledCallsByStatus(ctx, store.CallStatusPending)
	if err != nil {
		d.logger.Error(ctx, "Failed to query pending calls", err)
		return
	}

	for _, call := range pending {
		if call.ScheduledTime.After(now) {
			continue
		}
		d.placeCall(ctx, call)
	}
}

// placeCall drives one due record through exactly one transition:
// pending to in_progress on provider acceptance, pending to failed on
// rejection. A rejection is data on the record, not an error, and is
// never retried by the loop.
func (d *Dispatcher) placeCall(ctx context.Context, call store.ScheduledCall) {
	callCtx := observability.WithFields(ctx, observability.Field{Key: "call_id", Value: call.ID})

	callSID, err := d.placer.PlaceCall(callCtx, twilio.PlaceCallParams{
		To:                call.PhoneNumber,
		VoiceURL:          call.VoiceURL,
		StatusCallbackURL: call.CallbackURL,
	})
	if err != nil {
		d.logger.Error(callCtx, fmt.Sprintf("Call placement rejected for %s", call.PhoneNumber), err)
		if err := d.store.MarkScheduledCallFailed(callCtx, call.ID, err.Error()); err != nil {
			d.logger.Error(callCtx, "Failed to mark call failed", err)
		}
		return
	}

	if err := d.store.MarkScheduledCallInProgress(callCtx, call.ID, callSID, time.Now().UTC()); err != nil {
		d.logger.Error(callCtx, "Failed to mark call in progress", err)
		return
	}

	d.logger.Info(callCtx, fmt.Sprintf("Placed scheduled call %s with SID %s", call.ID, callSID))
}
